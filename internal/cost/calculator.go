package cost

import "github.com/shopspring/decimal"

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic  map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity PerplexityRate       `yaml:"perplexity" mapstructure:"perplexity"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// PerplexityRate holds Perplexity pricing: a flat request fee plus tokens.
type PerplexityRate struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
	PerMTok  float64 `yaml:"per_mtok" mapstructure:"per_mtok"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

var million = decimal.NewFromInt(1_000_000)

func perMillion(tokens int, rate float64) decimal.Decimal {
	return decimal.NewFromInt(int64(tokens)).Div(million).Mul(decimal.NewFromFloat(rate))
}

// Claude computes the cost for a Claude API call. Unknown models cost 0.
func (c *Calculator) Claude(model string, input, output int) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}
	total := perMillion(input, rate.Input).Add(perMillion(output, rate.Output))
	return total.Round(6).InexactFloat64()
}

// Perplexity computes the cost of queries Perplexity requests totalling tokens.
func (c *Calculator) Perplexity(queries, tokens int) float64 {
	flat := decimal.NewFromFloat(c.rates.Perplexity.PerQuery).Mul(decimal.NewFromInt(int64(queries)))
	return flat.Add(perMillion(tokens, c.rates.Perplexity.PerMTok)).Round(6).InexactFloat64()
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
		},
		Perplexity: PerplexityRate{PerQuery: 0.005, PerMTok: 1.00},
	}
}
