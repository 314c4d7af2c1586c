// Package profile builds one canonical company profile out of the partial,
// inconsistent payloads returned by the registry sources.
package profile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sells-group/credit-cli/internal/model"
)

// Partial is one source's raw payload.
type Partial struct {
	Source  string
	Payload map[string]any
}

// Merge canonicalizes each partial and combines them. Partials are given
// highest priority first. They are applied lowest first, and only truthy
// values overwrite, so a field comes from the highest-priority source that
// has a non-empty value for it.
func Merge(partials ...Partial) model.Profile {
	out := model.Profile{}
	for i := len(partials) - 1; i >= 0; i-- {
		for k, v := range Canonicalize(partials[i].Payload) {
			if Truthy(v) {
				out[k] = v
			}
		}
	}
	return out
}

// Canonicalize maps a vendor payload onto canonical keys. Unknown keys are
// dropped and empty values are left out.
func Canonicalize(payload map[string]any) model.Profile {
	out := model.Profile{}
	if len(payload) == 0 {
		return out
	}
	flat := flatten(payload)
	for _, a := range fieldAliases {
		if _, done := out[a.canonical]; done {
			continue
		}
		v, ok := flat[a.path]
		if !ok || !Truthy(v) {
			continue
		}
		if a.canonical == model.FieldPartners {
			if partners := canonicalPartners(v); len(partners) > 0 {
				out[a.canonical] = partners
			}
			continue
		}
		out[a.canonical] = scalar(v)
	}
	return out
}

func canonicalPartners(v any) []model.Partner {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]model.Partner, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		flat := flatten(obj)
		var p model.Partner
		seen := map[string]bool{}
		for _, a := range partnerAliases {
			if seen[a.field] {
				continue
			}
			val, ok := flat[a.path]
			if !ok || !Truthy(val) {
				continue
			}
			setPartnerField(&p, a.field, text(val))
			seen[a.field] = true
		}
		if p.Name != "" {
			out = append(out, p)
		}
	}
	return out
}

// Truthy reports whether v carries information: non-nil, non-empty string,
// slice or map, non-zero number, or true.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case []any:
		return len(t) > 0
	case []model.Partner:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// flatten expands nested objects into dotted paths. Arrays are kept whole.
func flatten(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			path := k
			if prefix != "" {
				path = prefix + "." + k
			}
			if nested, ok := v.(map[string]any); ok {
				walk(path, nested)
				continue
			}
			out[path] = v
		}
	}
	walk("", m)
	return out
}

// scalar keeps strings and numbers as they are and renders anything else as
// text.
func scalar(v any) any {
	switch v.(type) {
	case string, float64, bool:
		return v
	default:
		return text(v)
	}
}

func text(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
