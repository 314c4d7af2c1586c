// Package sources holds the registry adapters that look a company up by
// CNPJ. Each adapter only knows how to address its provider; payloads are
// returned raw and canonicalized by the profile merger.
package sources

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/sells-group/credit-cli/internal/gateway"
	"github.com/sells-group/credit-cli/internal/model"
)

// Fetcher performs gated JSON calls. *gateway.Gateway satisfies it.
type Fetcher interface {
	FetchJSON(ctx context.Context, spec gateway.Spec, req gateway.Request) gateway.Result
}

// Source is one company registry.
type Source interface {
	Key() string
	Fetch(ctx context.Context, settings model.Settings, cnpj string) gateway.Result
}

// Endpoint is the transport configuration of a registry.
type Endpoint struct {
	BaseURL string
	Timeout time.Duration
}

type registry struct {
	key        string
	requireKey bool
	endpoint   Endpoint
	fetcher    Fetcher
	build      func(base, cnpj, apiKey string) gateway.Request
}

func (r *registry) Key() string { return r.key }

func (r *registry) Fetch(ctx context.Context, settings model.Settings, cnpj string) gateway.Result {
	ps := settings.Get(r.key)
	spec := gateway.Spec{Settings: ps, RequireKey: r.requireKey, Timeout: r.endpoint.Timeout}
	return r.fetcher.FetchJSON(ctx, spec, r.build(strings.TrimRight(r.endpoint.BaseURL, "/"), cnpj, ps.APIKey))
}

// NewOpenCNPJ returns the OpenCNPJ adapter (no credential).
func NewOpenCNPJ(f Fetcher, ep Endpoint) Source {
	return &registry{key: model.ProviderOpenCNPJ, endpoint: ep, fetcher: f,
		build: func(base, cnpj, _ string) gateway.Request {
			return gateway.Request{URL: base + "/" + cnpj}
		}}
}

// NewBrasilAPI returns the BrasilAPI adapter (no credential).
func NewBrasilAPI(f Fetcher, ep Endpoint) Source {
	return &registry{key: model.ProviderBrasilAPI, endpoint: ep, fetcher: f,
		build: func(base, cnpj, _ string) gateway.Request {
			return gateway.Request{URL: base + "/" + cnpj}
		}}
}

// NewCNPJa returns the CNPJá adapter. The key goes in the Authorization
// header verbatim.
func NewCNPJa(f Fetcher, ep Endpoint) Source {
	return &registry{key: model.ProviderCNPJa, requireKey: true, endpoint: ep, fetcher: f,
		build: func(base, cnpj, apiKey string) gateway.Request {
			return gateway.Request{
				URL:     base + "/" + cnpj,
				Headers: map[string]string{"Authorization": apiKey},
			}
		}}
}

// NewInverTexto returns the InverTexto adapter. The key is a query parameter.
func NewInverTexto(f Fetcher, ep Endpoint) Source {
	return &registry{key: model.ProviderInverTexto, requireKey: true, endpoint: ep, fetcher: f,
		build: func(base, cnpj, apiKey string) gateway.Request {
			return gateway.Request{URL: base + "/" + cnpj + "?token=" + url.QueryEscape(apiKey)}
		}}
}
