// Package narrative produces the qualitative write-up of an analysis. It runs
// two independent fallback chains: web research, then generation by a
// primary provider with a secondary fallback.
package narrative

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/credit-cli/internal/cost"
	"github.com/sells-group/credit-cli/internal/gateway"
	"github.com/sells-group/credit-cli/internal/model"
	"github.com/sells-group/credit-cli/pkg/anthropic"
	"github.com/sells-group/credit-cli/pkg/perplexity"
)

// Fixed texts of the degraded outcomes.
const (
	ResearchPlaceholder = "Pesquisa web não realizada (Perplexity desabilitada ou sem chave configurada)."
	NotConfiguredText   = "Nenhuma IA configurada. Acesse Configurações de API e insira a chave da Anthropic ou da Perplexity para gerar a análise automática."
	unavailablePrefix   = "Análise IA indisponível: "
	researchSeparator   = "\n\n---\n\n"
)

// Completer runs gated single-shot completions. *gateway.Gateway satisfies it.
type Completer interface {
	Complete(ctx context.Context, spec gateway.Spec, endpoint string, fn gateway.CompleteFunc) gateway.Result
}

// ModelConfig is the model, token budget and deadline of one stage.
type ModelConfig struct {
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Config configures the three provider stages.
type Config struct {
	Research   ModelConfig
	Anthropic  ModelConfig
	Perplexity ModelConfig
}

// DefaultConfig returns the stock models, budgets and deadlines.
func DefaultConfig() Config {
	return Config{
		Research:   ModelConfig{Model: "sonar", MaxTokens: 800, Timeout: 20 * time.Second},
		Anthropic:  ModelConfig{Model: "claude-sonnet-4-5-20250929", MaxTokens: 2500, Timeout: 60 * time.Second},
		Perplexity: ModelConfig{Model: "sonar-pro", MaxTokens: 2500, Timeout: 30 * time.Second},
	}
}

// Research is the outcome of the research stage.
type Research struct {
	Digest    string
	Performed bool
	CostUSD   float64
}

// Orchestrator runs the research and generation stages.
type Orchestrator struct {
	completer     Completer
	cfg           Config
	calc          *cost.Calculator
	newAnthropic  func(apiKey string) anthropic.Client
	newPerplexity func(apiKey string) perplexity.Client
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAnthropicFactory overrides how Anthropic clients are built.
func WithAnthropicFactory(f func(apiKey string) anthropic.Client) Option {
	return func(o *Orchestrator) { o.newAnthropic = f }
}

// WithPerplexityFactory overrides how Perplexity clients are built.
func WithPerplexityFactory(f func(apiKey string) perplexity.Client) Option {
	return func(o *Orchestrator) { o.newPerplexity = f }
}

// WithCalculator sets the cost calculator.
func WithCalculator(c *cost.Calculator) Option {
	return func(o *Orchestrator) { o.calc = c }
}

// New creates an Orchestrator.
func New(c Completer, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		completer: c,
		cfg:       cfg,
		calc:      cost.NewCalculator(cost.DefaultRates()),
		newAnthropic: func(apiKey string) anthropic.Client {
			return anthropic.NewClient(apiKey)
		},
		newPerplexity: func(apiKey string) perplexity.Client {
			return perplexity.NewClient(apiKey)
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ResearchQueries returns the topical queries for a company, in digest order.
func ResearchQueries(name, cnpj string) []string {
	return []string{
		fmt.Sprintf(`"%s" CNPJ %s notícias recentes problemas dívidas`, name, cnpj),
		fmt.Sprintf(`"%s" processos judiciais falência recuperação judicial`, name),
		fmt.Sprintf(`"%s" reputação reclamações Reclame Aqui avaliações`, name),
	}
}

// Research runs the topical queries concurrently. A failed query becomes a
// "search failed" line and never aborts the others. When the research
// provider is not usable the placeholder digest is returned.
func (o *Orchestrator) Research(ctx context.Context, settings model.Settings, name, cnpj string) Research {
	ps := settings.Get(model.ProviderPerplexity)
	if !ps.Configured(true) {
		zap.L().Debug("narrative: research provider not configured, skipping")
		return Research{Digest: ResearchPlaceholder}
	}

	queries := ResearchQueries(name, cnpj)
	entries := make([]string, len(queries))
	costs := make([]float64, len(queries))
	client := o.newPerplexity(ps.APIKey)
	spec := gateway.Spec{Settings: ps, RequireKey: true, Timeout: o.cfg.Research.Timeout}

	var g errgroup.Group
	for i, q := range queries {
		g.Go(func() error {
			var tokens int
			res := o.completer.Complete(ctx, spec, "research", func(ctx context.Context) (string, error) {
				maxTokens := o.cfg.Research.MaxTokens
				resp, err := client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
					Model: o.cfg.Research.Model,
					Messages: []perplexity.Message{
						perplexity.System(researchPersona),
						perplexity.User("Pesquise na web: " + q + "\n\nResuma os resultados mais relevantes encontrados, incluindo datas e fontes."),
					},
					MaxTokens:           &maxTokens,
					SearchRecencyFilter: perplexity.RecencyMonth,
					ReturnCitations:     true,
				})
				if err != nil {
					return "", err
				}
				tokens = resp.Usage.Total()
				return resp.Content(), nil
			})
			if res.OK() {
				entries[i] = "[Busca: " + q + "]\n" + res.Text
				costs[i] = o.calc.Perplexity(1, tokens)
				return nil
			}
			entries[i] = "[Busca falhou: " + q + "] Erro: " + errText(res)
			return nil
		})
	}
	_ = g.Wait()

	out := Research{Performed: true}
	var kept []string
	for i, e := range entries {
		if e != "" {
			kept = append(kept, e)
		}
		out.CostUSD += costs[i]
	}
	if len(kept) == 0 {
		return Research{Digest: ResearchPlaceholder}
	}
	out.Digest = strings.Join(kept, researchSeparator)
	return out
}

// Generate produces the narrative. A primary failure falls through silently
// to the secondary; a secondary failure is reported as an error narrative.
func (o *Orchestrator) Generate(ctx context.Context, settings model.Settings, in PromptInput) model.Narrative {
	prompt := BuildPrompt(in)

	if n, ok := o.generateAnthropic(ctx, settings, prompt); ok {
		return n
	}

	ps := settings.Get(model.ProviderPerplexity)
	var usage perplexity.Usage
	cfg := o.cfg.Perplexity
	res := o.completer.Complete(ctx, gateway.Spec{Settings: ps, RequireKey: true, Timeout: cfg.Timeout}, "narrative",
		func(ctx context.Context) (string, error) {
			maxTokens := cfg.MaxTokens
			resp, err := o.newPerplexity(ps.APIKey).ChatCompletion(ctx, perplexity.ChatCompletionRequest{
				Model:     cfg.Model,
				Messages:  []perplexity.Message{perplexity.System(analystPersona), perplexity.User(prompt)},
				MaxTokens: &maxTokens,
			})
			if err != nil {
				return "", err
			}
			usage = resp.Usage
			return resp.Content(), nil
		})

	switch res.Outcome {
	case gateway.OutcomeOK:
		n := model.Narrative{
			Text:     res.Text,
			Provider: model.ProviderPerplexity,
			Model:    cfg.Model,
			CostUSD:  o.calc.Perplexity(1, usage.Total()),
		}
		logCost(n)
		return n
	case gateway.OutcomeFailed:
		return model.Narrative{Text: unavailablePrefix + errText(res), Provider: model.ProviderError}
	default:
		return model.Narrative{Text: NotConfiguredText, Provider: model.ProviderNotConfigured}
	}
}

func (o *Orchestrator) generateAnthropic(ctx context.Context, settings model.Settings, prompt string) (model.Narrative, bool) {
	ps := settings.Get(model.ProviderAnthropic)
	cfg := o.cfg.Anthropic
	var usage anthropic.TokenUsage
	var usedModel string

	res := o.completer.Complete(ctx, gateway.Spec{Settings: ps, RequireKey: true, Timeout: cfg.Timeout}, "narrative",
		func(ctx context.Context) (string, error) {
			resp, err := o.newAnthropic(ps.APIKey).CreateMessage(ctx, anthropic.MessageRequest{
				Model:     cfg.Model,
				MaxTokens: int64(cfg.MaxTokens),
				Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
			})
			if err != nil {
				return "", err
			}
			usage = resp.Usage
			usedModel = resp.Model
			return resp.Text(), nil
		})

	if res.Outcome == gateway.OutcomeFailed {
		zap.L().Warn("narrative: primary provider failed, falling back",
			zap.String("provider", model.ProviderAnthropic),
			zap.String("kind", string(res.Kind)),
			zap.Error(res.Err),
		)
	}
	if !res.OK() {
		return model.Narrative{}, false
	}

	if usedModel == "" {
		usedModel = cfg.Model
	}
	n := model.Narrative{
		Text:     res.Text,
		Provider: model.ProviderAnthropic,
		Model:    usedModel,
		CostUSD:  o.calc.Claude(usedModel, int(usage.InputTokens), int(usage.OutputTokens)),
	}
	logCost(n)
	return n, true
}

func logCost(n model.Narrative) {
	zap.L().Info("cost attribution",
		zap.String("provider", n.Provider),
		zap.String("model", n.Model),
		zap.String("phase", "narrative"),
		zap.Float64("estimated_cost_usd", n.CostUSD),
	)
}

func errText(res gateway.Result) string {
	if res.Err == nil {
		return string(res.Kind)
	}
	return res.Err.Error()
}
