package model

// Marker tags a reasons-ledger entry as favourable, neutral or unfavourable.
type Marker string

const (
	MarkerPositive Marker = "positive"
	MarkerNeutral  Marker = "neutral"
	MarkerNegative Marker = "negative"
)

// Symbol is the short glyph used by reports for the marker.
func (m Marker) Symbol() string {
	switch m {
	case MarkerPositive:
		return "✓"
	case MarkerNegative:
		return "✗"
	default:
		return "~"
	}
}

// Reason is one entry of the reasons ledger.
type Reason struct {
	Marker  Marker `json:"marker"`
	Message string `json:"message"`
	Delta   int    `json:"delta"`
}

// Tier is the risk classification derived from the final score.
type Tier string

const (
	TierLow      Tier = "LOW"
	TierMedium   Tier = "MEDIUM"
	TierHigh     Tier = "HIGH"
	TierVeryHigh Tier = "VERY_HIGH"
)

// Label returns the pt-BR label shown in reports and prompts.
func (t Tier) Label() string {
	switch t {
	case TierLow:
		return "BAIXO"
	case TierMedium:
		return "MÉDIO"
	case TierHigh:
		return "ALTO"
	case TierVeryHigh:
		return "MUITO ALTO"
	default:
		return string(t)
	}
}

// Color returns the display color token for the tier.
func (t Tier) Color() string {
	switch t {
	case TierLow:
		return "#10b981"
	case TierMedium:
		return "#f59e0b"
	case TierHigh:
		return "#ef4444"
	default:
		return "#dc2626"
	}
}

// ScoreResult is the output of the risk scoring engine.
type ScoreResult struct {
	Score           int      `json:"score"`
	Tier            Tier     `json:"tier"`
	Color           string   `json:"color"`
	SuggestedAmount float64  `json:"suggested_amount"`
	Multiplier      float64  `json:"multiplier"`
	Reasons         []Reason `json:"reasons"`
}
