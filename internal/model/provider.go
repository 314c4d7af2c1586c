package model

import (
	"maps"
	"slices"
	"strings"
)

// ProviderSettings is the administrator-controlled configuration of one
// external provider.
type ProviderSettings struct {
	Key         string `json:"key" yaml:"key"`
	Label       string `json:"label" yaml:"label"`
	Description string `json:"description" yaml:"description"`
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	APIKey      string `json:"api_key,omitempty" yaml:"-"`
}

// Configured reports whether the provider is enabled and, when a credential
// is required, has one.
func (p ProviderSettings) Configured(requireKey bool) bool {
	if !p.Enabled {
		return false
	}
	return !requireKey || p.APIKey != ""
}

// Masked returns a copy with the API key reduced to a presence hint.
func (p ProviderSettings) Masked() ProviderSettings {
	if len(p.APIKey) > 4 {
		p.APIKey = "****" + p.APIKey[len(p.APIKey)-4:]
	} else if p.APIKey != "" {
		p.APIKey = "****"
	}
	return p
}

// ProviderUpdate changes the enabled flag and credential of a provider.
// A nil APIKey leaves the stored credential untouched.
type ProviderUpdate struct {
	Enabled bool    `json:"enabled"`
	APIKey  *string `json:"api_key,omitempty"`
}

// Settings is a snapshot of every provider's settings, read once at the start
// of a request. Components receive it explicitly and never reload it.
type Settings struct {
	providers map[string]ProviderSettings
}

// NewSettings builds a snapshot from a list of provider settings.
func NewSettings(list []ProviderSettings) Settings {
	m := make(map[string]ProviderSettings, len(list))
	for _, p := range list {
		m[p.Key] = p
	}
	return Settings{providers: m}
}

// Get returns the settings for key; unknown keys are disabled.
func (s Settings) Get(key string) ProviderSettings {
	p, ok := s.providers[key]
	if !ok {
		return ProviderSettings{Key: key, Label: key}
	}
	return p
}

// WithFallbackKeys returns a snapshot where providers with an empty stored
// credential take the fallback (typically from the environment).
func (s Settings) WithFallbackKeys(fallback map[string]string) Settings {
	out := maps.Clone(s.providers)
	if out == nil {
		out = map[string]ProviderSettings{}
	}
	for key, apiKey := range fallback {
		p, ok := out[key]
		if !ok || p.APIKey != "" || apiKey == "" {
			continue
		}
		p.APIKey = apiKey
		out[key] = p
	}
	return Settings{providers: out}
}

// List returns every provider in the snapshot ordered by key.
func (s Settings) List() []ProviderSettings {
	out := make([]ProviderSettings, 0, len(s.providers))
	for _, p := range s.providers {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b ProviderSettings) int {
		return strings.Compare(a.Key, b.Key)
	})
	return out
}
