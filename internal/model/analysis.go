package model

import (
	"encoding/json"
	"time"
)

// Narrative provider identifiers. ProviderError and ProviderNotConfigured are
// sentinels that never collide with a real provider key.
const (
	ProviderOpenCNPJ      = "opencnpj"
	ProviderBrasilAPI     = "brasilapi"
	ProviderCNPJa         = "cnpja"
	ProviderInverTexto    = "invertexto"
	ProviderDataJud       = "datajud"
	ProviderAnthropic     = "anthropic"
	ProviderPerplexity    = "perplexity"
	ProviderError         = "error"
	ProviderNotConfigured = "not-configured"
)

// CreditRequest is the input of a credit analysis.
type CreditRequest struct {
	CNPJ            string  `json:"cnpj"`
	RequestedAmount float64 `json:"requested_amount"`
	Installments    int     `json:"installments,omitempty"`
	MonthlyRate     float64 `json:"monthly_rate,omitempty"`
	// Profile, when set, is used instead of fetching the registries again
	// (the caller already ran a lookup).
	Profile Profile `json:"profile,omitempty"`
	// DeclaredCapital overrides the profile's share capital for scoring.
	DeclaredCapital string `json:"declared_capital,omitempty"`
}

// Proceeding is one judicial proceeding returned by the litigation search.
type Proceeding struct {
	Number    string   `json:"number"`
	Court     string   `json:"court,omitempty"`
	Class     string   `json:"class,omitempty"`
	Subjects  []string `json:"subjects,omitempty"`
	FiledAt   string   `json:"filed_at,omitempty"`
	UpdatedAt string   `json:"updated_at,omitempty"`
}

// LitigationSummary is the count of matching proceedings plus the raw payload.
type LitigationSummary struct {
	Count       int             `json:"count"`
	Proceedings []Proceeding    `json:"proceedings,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// ReputationSignal summarizes public reputation. Social networks are not
// scraped; the signal is a placeholder unless Controversies is set.
type ReputationSignal struct {
	Instagram     *string `json:"instagram"`
	LinkedIn      *string `json:"linkedin"`
	Facebook      *string `json:"facebook"`
	Controversies bool    `json:"controversies"`
	Note          string  `json:"note,omitempty"`
}

// Narrative is the generated qualitative write-up.
type Narrative struct {
	Text              string  `json:"text"`
	Provider          string  `json:"provider"`
	Model             string  `json:"model,omitempty"`
	CostUSD           float64 `json:"cost_usd,omitempty"`
	ResearchPerformed bool    `json:"research_performed"`
}

// CallLog records one provider call made while serving a request.
type CallLog struct {
	ID         string    `json:"id"`
	Provider   string    `json:"provider"`
	Endpoint   string    `json:"endpoint"`
	Outcome    string    `json:"outcome"`
	Kind       string    `json:"kind,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Analysis is the composite result of one credit analysis. It is created once
// per request and never modified afterwards.
type Analysis struct {
	ID         int64             `json:"id,omitempty"`
	Request    CreditRequest     `json:"request"`
	Profile    Profile           `json:"profile"`
	Sources    map[string]bool   `json:"sources,omitempty"`
	Litigation LitigationSummary `json:"litigation"`
	Reputation ReputationSignal  `json:"reputation"`
	Score      ScoreResult       `json:"score"`
	Narrative  Narrative         `json:"narrative"`
	Calls      []CallLog         `json:"calls,omitempty"`
	ReportPath string            `json:"report_path,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// AnalysisSummary is the list view of a stored analysis.
type AnalysisSummary struct {
	ID              int64     `json:"id"`
	CNPJ            string    `json:"cnpj"`
	LegalName       string    `json:"legal_name"`
	TradeName       string    `json:"trade_name,omitempty"`
	RequestedAmount float64   `json:"requested_amount"`
	SuggestedAmount float64   `json:"suggested_amount"`
	Score           int       `json:"score"`
	Tier            Tier      `json:"tier"`
	Provider        string    `json:"provider"`
	HasReport       bool      `json:"has_report"`
	CreatedAt       time.Time `json:"created_at"`
}

// Stats aggregates stored analyses for the dashboard.
type Stats struct {
	Total        int     `json:"total"`
	Low          int     `json:"low"`
	Medium       int     `json:"medium"`
	High         int     `json:"high"`
	AverageScore float64 `json:"average_score"`
}

// Report describes a rendered PDF report.
type Report struct {
	AnalysisID  int64     `json:"analysis_id"`
	Path        string    `json:"path"`
	SizeBytes   int64     `json:"size_bytes"`
	GeneratedAt time.Time `json:"generated_at"`
}
