// Package analysis orchestrates a credit analysis: it snapshots provider
// settings, gathers registry data, scores the company, generates the
// narrative and assembles the immutable result.
package analysis

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/credit-cli/internal/gateway"
	"github.com/sells-group/credit-cli/internal/metrics"
	"github.com/sells-group/credit-cli/internal/model"
	"github.com/sells-group/credit-cli/internal/narrative"
	"github.com/sells-group/credit-cli/internal/profile"
	"github.com/sells-group/credit-cli/internal/scoring"
	"github.com/sells-group/credit-cli/internal/sources"
)

// ErrInvalidCNPJ is the only fatal request error.
var ErrInvalidCNPJ = eris.New("analysis: invalid CNPJ")

// Request defaults applied when the caller leaves them unset.
const (
	DefaultInstallments = 12
	DefaultMonthlyRate  = 2.5
)

// SettingsStore loads the administrator-controlled provider settings.
type SettingsStore interface {
	ListProviders(ctx context.Context) ([]model.ProviderSettings, error)
}

// LitigationSearcher looks up judicial proceedings by company name.
type LitigationSearcher interface {
	Search(ctx context.Context, settings model.Settings, name string) (model.LitigationSummary, gateway.Result)
}

// ReputationAssessor produces the public reputation signal.
type ReputationAssessor interface {
	Assess(ctx context.Context, p model.Profile) model.ReputationSignal
}

// Narrator runs the research and narrative stages.
type Narrator interface {
	Research(ctx context.Context, settings model.Settings, name, cnpj string) narrative.Research
	Generate(ctx context.Context, settings model.Settings, in narrative.PromptInput) model.Narrative
}

// Recorder persists finished analyses and their reports.
type Recorder interface {
	SaveAnalysis(ctx context.Context, a *model.Analysis) (int64, error)
	SaveReport(ctx context.Context, r model.Report) error
}

// Renderer produces the PDF report of a stored analysis.
type Renderer interface {
	Render(a *model.Analysis) (*model.Report, error)
}

// Lookup is the merged profile of a CNPJ plus per-source availability.
type Lookup struct {
	CNPJ    string          `json:"cnpj"`
	Profile model.Profile   `json:"profile"`
	Sources map[string]bool `json:"sources"`
	Calls   []model.CallLog `json:"calls,omitempty"`
}

// Service runs lookups and analyses.
type Service struct {
	settings   SettingsStore
	fallback   map[string]string
	sources    []sources.Source
	litigation LitigationSearcher
	reputation ReputationAssessor
	narrator   Narrator
	recorder   Recorder
	renderer   Renderer
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithFallbackKeys sets credentials used when a stored key is empty.
func WithFallbackKeys(keys map[string]string) Option {
	return func(s *Service) { s.fallback = keys }
}

// WithRecorder persists every finished analysis.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithRenderer renders a PDF report for every persisted analysis.
func WithRenderer(r Renderer) Option {
	return func(s *Service) { s.renderer = r }
}

// WithClock overrides the clock used for scoring and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service. srcs are the registry sources in merge priority
// order, highest first.
func New(settings SettingsStore, srcs []sources.Source, lit LitigationSearcher, rep ReputationAssessor, narr Narrator, opts ...Option) *Service {
	s := &Service{
		settings:   settings,
		sources:    srcs,
		litigation: lit,
		reputation: rep,
		narrator:   narr,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validate(raw string) (string, error) {
	cnpj := model.NormalizeCNPJ(raw)
	if !model.ValidCNPJ(cnpj) {
		return "", eris.Wrapf(ErrInvalidCNPJ, "%q", raw)
	}
	return cnpj, nil
}

// snapshot reads the provider settings once per request. An unreadable store
// yields an empty snapshot, so every provider is disabled and gated as
// skipped.
func (s *Service) snapshot(ctx context.Context) model.Settings {
	list, err := s.settings.ListProviders(ctx)
	if err != nil {
		zap.L().Warn("analysis: provider settings unavailable, all providers disabled",
			zap.Error(eris.Wrap(err, "analysis: load provider settings")))
		return model.NewSettings(nil)
	}
	return model.NewSettings(list).WithFallbackKeys(s.fallback)
}

// Lookup fetches and merges the registry data of a CNPJ.
func (s *Service) Lookup(ctx context.Context, raw string) (*Lookup, error) {
	cnpj, err := validate(raw)
	if err != nil {
		return nil, err
	}
	journal := gateway.NewJournal()
	ctx = gateway.WithJournal(ctx, journal)

	settings := s.snapshot(ctx)
	p, avail := s.fetchProfile(ctx, settings, cnpj)
	return &Lookup{CNPJ: cnpj, Profile: p, Sources: avail, Calls: journal.Calls()}, nil
}

// fetchProfile queries every source concurrently and merges the successful
// payloads in priority order, independent of completion order.
func (s *Service) fetchProfile(ctx context.Context, settings model.Settings, cnpj string) (model.Profile, map[string]bool) {
	results := make([]gateway.Result, len(s.sources))
	var g errgroup.Group
	for i, src := range s.sources {
		g.Go(func() error {
			results[i] = src.Fetch(ctx, settings, cnpj)
			return nil
		})
	}
	_ = g.Wait()

	avail := make(map[string]bool, len(s.sources))
	partials := make([]profile.Partial, 0, len(s.sources))
	for i, res := range results {
		key := s.sources[i].Key()
		avail[key] = res.OK()
		if res.OK() {
			partials = append(partials, profile.Partial{Source: key, Payload: res.Payload})
		}
	}
	return profile.Merge(partials...), avail
}

// Analyze runs a full credit analysis. Provider failures degrade the result
// and never fail the call; only an invalid CNPJ returns an error.
func (s *Service) Analyze(ctx context.Context, req model.CreditRequest) (*model.Analysis, error) {
	cnpj, err := validate(req.CNPJ)
	if err != nil {
		return nil, err
	}
	start := s.now()
	req.CNPJ = cnpj
	if req.Installments <= 0 {
		req.Installments = DefaultInstallments
	}
	if req.MonthlyRate <= 0 {
		req.MonthlyRate = DefaultMonthlyRate
	}

	log := zap.L().With(zap.String("cnpj", cnpj))
	journal := gateway.NewJournal()
	ctx = gateway.WithJournal(ctx, journal)

	settings := s.snapshot(ctx)

	var p model.Profile
	var avail map[string]bool
	if len(req.Profile) > 0 {
		p = req.Profile.Clone()
	} else {
		p, avail = s.fetchProfile(ctx, settings, cnpj)
	}
	req.Profile = nil
	name := p.LegalName()

	var lit model.LitigationSummary
	if name != "" {
		lit, _ = s.litigation.Search(ctx, settings, name)
	}
	rep := s.reputation.Assess(ctx, p)

	var research narrative.Research
	var g errgroup.Group
	g.Go(func() error {
		research = s.narrator.Research(ctx, settings, name, cnpj)
		return nil
	})
	score := scoring.Score(scoring.Input{
		Profile:         p,
		Litigation:      lit,
		Reputation:      rep,
		RequestedAmount: req.RequestedAmount,
		DeclaredCapital: req.DeclaredCapital,
	}, start)
	_ = g.Wait()

	narr := s.narrator.Generate(ctx, settings, narrative.PromptInput{
		Profile:    p,
		Litigation: lit,
		Research:   research.Digest,
		Score:      score,
	})
	narr.ResearchPerformed = research.Performed
	narr.CostUSD += research.CostUSD

	a := &model.Analysis{
		Request:    req,
		Profile:    p,
		Sources:    avail,
		Litigation: lit,
		Reputation: rep,
		Score:      score,
		Narrative:  narr,
		Calls:      journal.Calls(),
		CreatedAt:  start.UTC(),
	}

	metrics.AnalysesCompleted.WithLabelValues(string(score.Tier)).Inc()
	metrics.NarrativesGenerated.WithLabelValues(narr.Provider).Inc()
	metrics.AnalysisDuration.Observe(s.now().Sub(start).Seconds())

	log.Info("analysis: complete",
		zap.Int("score", score.Score),
		zap.String("tier", string(score.Tier)),
		zap.String("narrative_provider", narr.Provider),
		zap.Int("proceedings", lit.Count),
		zap.Int("calls", len(a.Calls)),
	)

	s.persist(ctx, log, a)
	return a, nil
}

// persist stores the analysis and renders its report. Failures are logged;
// the caller still receives the analysis.
func (s *Service) persist(ctx context.Context, log *zap.Logger, a *model.Analysis) {
	if s.recorder == nil {
		return
	}
	id, err := s.recorder.SaveAnalysis(ctx, a)
	if err != nil {
		log.Error("analysis: failed to save", zap.Error(err))
		return
	}
	a.ID = id

	if s.renderer == nil {
		return
	}
	rep, err := s.renderer.Render(a)
	if err != nil {
		log.Warn("analysis: report rendering failed", zap.Int64("analysis_id", id), zap.Error(err))
		return
	}
	if err := s.recorder.SaveReport(ctx, *rep); err != nil {
		log.Warn("analysis: failed to save report", zap.Int64("analysis_id", id), zap.Error(err))
		return
	}
	a.ReportPath = rep.Path
}
