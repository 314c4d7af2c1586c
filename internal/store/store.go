// Package store persists analyses, provider settings and the provider call
// journal. SQLite is the default backend; Postgres is used when configured.
package store

import (
	"context"
	"encoding/json"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/credit-cli/internal/model"
)

// ErrNotFound is returned when an analysis or provider does not exist.
var ErrNotFound = eris.New("store: not found")

// AnalysisFilter specifies criteria for listing analyses.
type AnalysisFilter struct {
	CNPJ   string     `json:"cnpj,omitempty"`
	Tier   model.Tier `json:"tier,omitempty"`
	Limit  int        `json:"limit,omitempty"`
	Offset int        `json:"offset,omitempty"`
}

const defaultListLimit = 50

func (f AnalysisFilter) limit() int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

// Store defines the persistence interface of the credit engine.
type Store interface {
	// Provider settings
	ListProviders(ctx context.Context) ([]model.ProviderSettings, error)
	UpdateProvider(ctx context.Context, key string, upd model.ProviderUpdate) (*model.ProviderSettings, error)

	// Analyses
	SaveAnalysis(ctx context.Context, a *model.Analysis) (int64, error)
	GetAnalysis(ctx context.Context, id int64) (*model.Analysis, error)
	ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.AnalysisSummary, error)
	DeleteAnalysis(ctx context.Context, id int64) error
	Stats(ctx context.Context) (*model.Stats, error)

	// Reports
	SaveReport(ctx context.Context, r model.Report) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Seed(ctx context.Context, providers []model.ProviderSettings) error
	Close() error
}

// analysisColumns is the insert column list shared by both backends; the
// order matches analysisValues.
var analysisColumns = []string{
	"cnpj", "legal_name", "trade_name",
	"requested_amount", "installments", "monthly_rate",
	"score", "tier", "suggested_amount",
	"registration_status", "size_tier", "legal_nature", "share_capital",
	"founded_on", "municipality", "state", "email", "main_activity",
	"partner_count", "proceeding_count", "narrative_provider",
	"payload", "created_at",
}

func analysisValues(a *model.Analysis) ([]any, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal analysis")
	}
	p := a.Profile
	return []any{
		a.Request.CNPJ, p.LegalName(), p.String(model.FieldTradeName),
		a.Request.RequestedAmount, a.Request.Installments, a.Request.MonthlyRate,
		a.Score.Score, string(a.Score.Tier), a.Score.SuggestedAmount,
		p.String(model.FieldRegistrationStatus), p.String(model.FieldSizeTier),
		p.String(model.FieldLegalNature), p.String(model.FieldShareCapital),
		p.String(model.FieldFoundedOn), p.String(model.FieldMunicipality),
		p.String(model.FieldState), p.String(model.FieldEmail), p.String(model.FieldMainActivity),
		len(p.Partners()), a.Litigation.Count, a.Narrative.Provider,
		string(payload), a.CreatedAt.UTC(),
	}, nil
}

func decodeAnalysis(id int64, payload []byte, reportPath string) (*model.Analysis, error) {
	var a model.Analysis
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, eris.Wrapf(err, "store: decode analysis %d", id)
	}
	a.ID = id
	a.ReportPath = reportPath
	return &a, nil
}

// statsQuery works unchanged on both backends.
const statsQuery = `SELECT
	COUNT(*),
	COALESCE(SUM(CASE WHEN tier = 'LOW' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN tier = 'MEDIUM' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN tier IN ('HIGH', 'VERY_HIGH') THEN 1 ELSE 0 END), 0),
	COALESCE(AVG(score), 0)
FROM analyses`

func roundAverage(v float64) float64 {
	return math.Round(v*10) / 10
}

// summaryColumns is the select list read by scanSummary.
const summaryColumns = `id, cnpj, legal_name, trade_name, requested_amount, suggested_amount, score, tier, narrative_provider, COALESCE(report_path, ''), created_at`

type scannable interface {
	Scan(dest ...any) error
}

func scanSummary(row scannable) (*model.AnalysisSummary, error) {
	var s model.AnalysisSummary
	var tier string
	var reportPath string
	if err := row.Scan(&s.ID, &s.CNPJ, &s.LegalName, &s.TradeName, &s.RequestedAmount,
		&s.SuggestedAmount, &s.Score, &tier, &s.Provider, &reportPath, &s.CreatedAt); err != nil {
		return nil, eris.Wrap(err, "store: scan analysis summary")
	}
	s.Tier = model.Tier(tier)
	s.HasReport = reportPath != ""
	return &s, nil
}

func scanProvider(row scannable) (*model.ProviderSettings, error) {
	var p model.ProviderSettings
	if err := row.Scan(&p.Key, &p.Label, &p.Description, &p.Enabled, &p.APIKey); err != nil {
		return nil, err
	}
	return &p, nil
}
