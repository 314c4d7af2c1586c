package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/credit-cli/internal/analysis"
	"github.com/sells-group/credit-cli/internal/config"
	"github.com/sells-group/credit-cli/internal/cost"
	"github.com/sells-group/credit-cli/internal/gateway"
	"github.com/sells-group/credit-cli/internal/litigation"
	"github.com/sells-group/credit-cli/internal/model"
	"github.com/sells-group/credit-cli/internal/narrative"
	"github.com/sells-group/credit-cli/internal/report"
	"github.com/sells-group/credit-cli/internal/reputation"
	"github.com/sells-group/credit-cli/internal/sources"
	"github.com/sells-group/credit-cli/internal/store"
)

// Per-call deadlines used when the provider block leaves timeout_secs unset.
const (
	registryTimeout   = 10 * time.Second
	litigationTimeout = 15 * time.Second
)

// initStore opens the configured backend, migrates it and seeds the
// provider catalog. Seeding never overwrites administrator edits.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "credito.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	catalog, err := config.DefaultProviders()
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	if err := st.Seed(ctx, catalog); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func endpoint(key string) sources.Endpoint {
	p := cfg.Provider(key)
	return sources.Endpoint{BaseURL: p.BaseURL, Timeout: p.Timeout(registryTimeout)}
}

func stage(key string, def narrative.ModelConfig) narrative.ModelConfig {
	p := cfg.Provider(key)
	if p.Model != "" {
		def.Model = p.Model
	}
	if p.MaxTokens > 0 {
		def.MaxTokens = p.MaxTokens
	}
	def.Timeout = p.Timeout(def.Timeout)
	return def
}

func costRates(p config.PricingConfig) cost.Rates {
	rates := cost.DefaultRates()
	for name, m := range p.Anthropic {
		rates.Anthropic[name] = cost.ModelRate{Input: m.Input, Output: m.Output}
	}
	if p.Perplexity.PerQuery > 0 || p.Perplexity.PerMTok > 0 {
		rates.Perplexity = cost.PerplexityRate{PerQuery: p.Perplexity.PerQuery, PerMTok: p.Perplexity.PerMTok}
	}
	return rates
}

func newGateway(client *http.Client) *gateway.Gateway {
	return gateway.New(
		gateway.WithHTTPClient(client),
		gateway.WithRateLimiters(gateway.DefaultRateLimiters()),
	)
}

// initService wires the gateway, registry adapters, litigation search and
// narrative orchestrator into an analysis service backed by st.
func initService(st store.Store) *analysis.Service {
	gw := newGateway(&http.Client{})

	// Registry priority: earlier sources win field conflicts.
	srcs := []sources.Source{
		sources.NewOpenCNPJ(gw, endpoint(model.ProviderOpenCNPJ)),
		sources.NewBrasilAPI(gw, endpoint(model.ProviderBrasilAPI)),
		sources.NewCNPJa(gw, endpoint(model.ProviderCNPJa)),
		sources.NewInverTexto(gw, endpoint(model.ProviderInverTexto)),
	}

	dj := cfg.Provider(model.ProviderDataJud)
	lit := litigation.NewDataJud(gw, dj.BaseURL, dj.Timeout(litigationTimeout))

	defaults := narrative.DefaultConfig()
	narr := narrative.New(gw, narrative.Config{
		Research:   stage("research", defaults.Research),
		Anthropic:  stage(model.ProviderAnthropic, defaults.Anthropic),
		Perplexity: stage(model.ProviderPerplexity, defaults.Perplexity),
	}, narrative.WithCalculator(cost.NewCalculator(costRates(cfg.Pricing))))

	opts := []analysis.Option{
		analysis.WithFallbackKeys(cfg.FallbackKeys()),
		analysis.WithRecorder(st),
	}
	if cfg.Report.Enabled {
		opts = append(opts, analysis.WithRenderer(report.NewRenderer(cfg.Report.Dir)))
	}
	return analysis.New(st, srcs, lit, reputation.Stub{}, narr, opts...)
}
