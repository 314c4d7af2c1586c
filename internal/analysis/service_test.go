package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/credit-cli/internal/gateway"
	"github.com/sells-group/credit-cli/internal/model"
	"github.com/sells-group/credit-cli/internal/narrative"
	"github.com/sells-group/credit-cli/internal/reputation"
	"github.com/sells-group/credit-cli/internal/sources"
)

const validCNPJ = "11222333000181"

var fixedNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func okResult(provider string, payload map[string]any) gateway.Result {
	return gateway.Result{Provider: provider, Outcome: gateway.OutcomeOK, Payload: payload}
}

func skipped(provider string) gateway.Result {
	return gateway.Result{Provider: provider, Outcome: gateway.OutcomeSkipped}
}

type fixture struct {
	settings   *mockSettings
	srcA, srcB *mockSource
	litigation *mockLitigation
	narrator   *mockNarrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		settings:   &mockSettings{},
		srcA:       &mockSource{key: model.ProviderOpenCNPJ},
		srcB:       &mockSource{key: model.ProviderBrasilAPI},
		litigation: &mockLitigation{},
		narrator:   &mockNarrator{},
	}
	f.settings.On("ListProviders", mock.Anything).Return([]model.ProviderSettings{
		{Key: model.ProviderOpenCNPJ, Enabled: true},
		{Key: model.ProviderBrasilAPI, Enabled: true},
		{Key: model.ProviderPerplexity, Enabled: true},
	}, nil).Maybe()
	return f
}

func (f *fixture) service(opts ...Option) *Service {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(f.settings, []sources.Source{f.srcA, f.srcB}, f.litigation, reputation.Stub{}, f.narrator, opts...)
}

func (f *fixture) expectNarrative() {
	f.narrator.On("Research", mock.Anything, mock.Anything, mock.Anything, validCNPJ).
		Return(narrative.Research{Digest: "digest", Performed: true, CostUSD: 0.01})
	f.narrator.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(model.Narrative{Text: "texto", Provider: model.ProviderPerplexity, CostUSD: 0.02})
}

func TestLookup_InvalidCNPJ(t *testing.T) {
	f := newFixture(t)
	for _, raw := range []string{"", "123", "11.222.333/0001-82", "00000000000000"} {
		_, err := f.service().Lookup(context.Background(), raw)
		assert.ErrorIs(t, err, ErrInvalidCNPJ, raw)
	}
	f.settings.AssertNotCalled(t, "ListProviders", mock.Anything)
}

func TestLookup_MergesInPriorityOrder(t *testing.T) {
	f := newFixture(t)
	f.srcA.On("Fetch", mock.Anything, mock.Anything, validCNPJ).
		After(20*time.Millisecond).
		Return(okResult(model.ProviderOpenCNPJ, map[string]any{"razao_social": "ACME A", "uf": ""}))
	f.srcB.On("Fetch", mock.Anything, mock.Anything, validCNPJ).
		Return(okResult(model.ProviderBrasilAPI, map[string]any{"razao_social": "ACME B", "uf": "SP"}))

	got, err := f.service().Lookup(context.Background(), "11.222.333/0001-81")
	require.NoError(t, err)
	assert.Equal(t, validCNPJ, got.CNPJ)
	assert.Equal(t, "ACME A", got.Profile.LegalName(), "higher priority wins even when it finishes last")
	assert.Equal(t, "SP", got.Profile.String(model.FieldState), "empty values never overwrite")
	assert.Equal(t, map[string]bool{model.ProviderOpenCNPJ: true, model.ProviderBrasilAPI: true}, got.Sources)
}

func TestLookup_SourceAvailability(t *testing.T) {
	f := newFixture(t)
	f.srcA.On("Fetch", mock.Anything, mock.Anything, validCNPJ).
		Return(gateway.Result{Provider: model.ProviderOpenCNPJ, Outcome: gateway.OutcomeFailed, Kind: gateway.KindTimeout})
	f.srcB.On("Fetch", mock.Anything, mock.Anything, validCNPJ).
		Return(okResult(model.ProviderBrasilAPI, map[string]any{"razao_social": "ACME B"}))

	got, err := f.service().Lookup(context.Background(), validCNPJ)
	require.NoError(t, err)
	assert.False(t, got.Sources[model.ProviderOpenCNPJ])
	assert.True(t, got.Sources[model.ProviderBrasilAPI])
	assert.Equal(t, "ACME B", got.Profile.LegalName())
}

func TestLookup_SettingsFailureDisablesEveryProvider(t *testing.T) {
	f := newFixture(t)
	f.settings = &mockSettings{}
	f.settings.On("ListProviders", mock.Anything).Return(nil, errors.New("database is locked"))
	allDisabled := mock.MatchedBy(func(s model.Settings) bool {
		return !s.Get(model.ProviderOpenCNPJ).Enabled && !s.Get(model.ProviderBrasilAPI).Enabled
	})
	f.srcA.On("Fetch", mock.Anything, allDisabled, validCNPJ).Return(skipped(model.ProviderOpenCNPJ))
	f.srcB.On("Fetch", mock.Anything, allDisabled, validCNPJ).Return(skipped(model.ProviderBrasilAPI))

	got, err := f.service().Lookup(context.Background(), validCNPJ)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{model.ProviderOpenCNPJ: false, model.ProviderBrasilAPI: false}, got.Sources)
	assert.Empty(t, got.Profile.LegalName())
	f.srcA.AssertExpectations(t)
	f.srcB.AssertExpectations(t)
}

func TestAnalyze_FullFlow(t *testing.T) {
	f := newFixture(t)
	f.srcA.On("Fetch", mock.Anything, mock.Anything, validCNPJ).
		Return(okResult(model.ProviderOpenCNPJ, map[string]any{
			"razao_social":          "ACME LTDA",
			"situacao_cadastral":    "ATIVA",
			"data_inicio_atividade": "2014-03-01",
			"capital_social":        "500000,00",
		}))
	f.srcB.On("Fetch", mock.Anything, mock.Anything, validCNPJ).Return(skipped(model.ProviderBrasilAPI))
	f.litigation.On("Search", mock.Anything, mock.Anything, "ACME LTDA").
		Return(model.LitigationSummary{Count: 0}, okResult(model.ProviderDataJud, nil))
	f.narrator.On("Research", mock.Anything, mock.Anything, "ACME LTDA", validCNPJ).
		Return(narrative.Research{Digest: "digest", Performed: true, CostUSD: 0.01})
	f.narrator.On("Generate", mock.Anything, mock.Anything, mock.MatchedBy(func(in narrative.PromptInput) bool {
		return in.Research == "digest" && in.Score.Score == 100 && in.Profile.LegalName() == "ACME LTDA"
	})).Return(model.Narrative{Text: "texto", Provider: model.ProviderAnthropic, CostUSD: 0.02})

	a, err := f.service().Analyze(context.Background(), model.CreditRequest{CNPJ: validCNPJ, RequestedAmount: 100000})
	require.NoError(t, err)

	assert.Equal(t, 100, a.Score.Score)
	assert.Equal(t, model.TierLow, a.Score.Tier)
	assert.InDelta(t, 100000, a.Score.SuggestedAmount, 0.001)
	assert.Equal(t, DefaultInstallments, a.Request.Installments)
	assert.InDelta(t, DefaultMonthlyRate, a.Request.MonthlyRate, 0.0001)
	assert.Equal(t, model.ProviderAnthropic, a.Narrative.Provider)
	assert.True(t, a.Narrative.ResearchPerformed)
	assert.InDelta(t, 0.03, a.Narrative.CostUSD, 1e-9)
	assert.Equal(t, map[string]bool{model.ProviderOpenCNPJ: true, model.ProviderBrasilAPI: false}, a.Sources)
	assert.Equal(t, fixedNow, a.CreatedAt)
	assert.Zero(t, a.ID)
	f.litigation.AssertExpectations(t)
	f.narrator.AssertExpectations(t)
}

func TestAnalyze_AllProvidersDisabled(t *testing.T) {
	f := newFixture(t)
	f.srcA.On("Fetch", mock.Anything, mock.Anything, validCNPJ).Return(skipped(model.ProviderOpenCNPJ))
	f.srcB.On("Fetch", mock.Anything, mock.Anything, validCNPJ).Return(skipped(model.ProviderBrasilAPI))
	f.narrator.On("Research", mock.Anything, mock.Anything, "", validCNPJ).
		Return(narrative.Research{Digest: narrative.ResearchPlaceholder})
	f.narrator.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(model.Narrative{Text: narrative.NotConfiguredText, Provider: model.ProviderNotConfigured})

	a, err := f.service().Analyze(context.Background(), model.CreditRequest{CNPJ: validCNPJ, RequestedAmount: 50000})
	require.NoError(t, err)

	assert.Empty(t, a.Profile)
	assert.Equal(t, 33, a.Score.Score)
	assert.Equal(t, model.TierHigh, a.Score.Tier)
	assert.Equal(t, model.ProviderNotConfigured, a.Narrative.Provider)
	assert.False(t, a.Narrative.ResearchPerformed)
	f.litigation.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnalyze_UsesSuppliedProfile(t *testing.T) {
	f := newFixture(t)
	f.litigation.On("Search", mock.Anything, mock.Anything, "ACME LTDA").
		Return(model.LitigationSummary{Count: 2}, okResult(model.ProviderDataJud, nil))
	f.expectNarrative()

	supplied := model.Profile{model.FieldLegalName: "ACME LTDA", model.FieldRegistrationStatus: "ATIVA"}
	a, err := f.service().Analyze(context.Background(), model.CreditRequest{CNPJ: validCNPJ, RequestedAmount: 1000, Profile: supplied})
	require.NoError(t, err)

	assert.Equal(t, "ACME LTDA", a.Profile.LegalName())
	assert.Nil(t, a.Sources)
	assert.Nil(t, a.Request.Profile)
	assert.Equal(t, 2, a.Litigation.Count)
	f.srcA.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything)
	f.srcB.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything)

	a.Profile[model.FieldLegalName] = "changed"
	assert.Equal(t, "ACME LTDA", supplied.LegalName(), "the caller's profile is not shared")
}

func TestAnalyze_FallbackKeysReachNarrator(t *testing.T) {
	f := newFixture(t)
	f.srcA.On("Fetch", mock.Anything, mock.Anything, validCNPJ).Return(skipped(model.ProviderOpenCNPJ))
	f.srcB.On("Fetch", mock.Anything, mock.Anything, validCNPJ).Return(skipped(model.ProviderBrasilAPI))

	hasEnvKey := mock.MatchedBy(func(s model.Settings) bool {
		return s.Get(model.ProviderPerplexity).APIKey == "pplx-env"
	})
	f.narrator.On("Research", mock.Anything, hasEnvKey, "", validCNPJ).
		Return(narrative.Research{Digest: narrative.ResearchPlaceholder})
	f.narrator.On("Generate", mock.Anything, hasEnvKey, mock.Anything).
		Return(model.Narrative{Provider: model.ProviderPerplexity})

	_, err := f.service(WithFallbackKeys(map[string]string{model.ProviderPerplexity: "pplx-env"})).
		Analyze(context.Background(), model.CreditRequest{CNPJ: validCNPJ})
	require.NoError(t, err)
	f.narrator.AssertExpectations(t)
}

func TestAnalyze_PersistsAndRendersReport(t *testing.T) {
	f := newFixture(t)
	f.srcA.On("Fetch", mock.Anything, mock.Anything, validCNPJ).Return(skipped(model.ProviderOpenCNPJ))
	f.srcB.On("Fetch", mock.Anything, mock.Anything, validCNPJ).Return(skipped(model.ProviderBrasilAPI))
	f.expectNarrative()

	rec := &mockRecorder{}
	rec.On("SaveAnalysis", mock.Anything, mock.Anything).Return(int64(7), nil)
	rec.On("SaveReport", mock.Anything, mock.MatchedBy(func(r model.Report) bool { return r.AnalysisID == 7 })).Return(nil)
	ren := &mockRenderer{}
	ren.On("Render", mock.MatchedBy(func(a *model.Analysis) bool { return a.ID == 7 })).
		Return(&model.Report{AnalysisID: 7, Path: "reports/7.pdf", SizeBytes: 1024}, nil)

	a, err := f.service(WithRecorder(rec), WithRenderer(ren)).
		Analyze(context.Background(), model.CreditRequest{CNPJ: validCNPJ, RequestedAmount: 1000})
	require.NoError(t, err)
	assert.Equal(t, int64(7), a.ID)
	assert.Equal(t, "reports/7.pdf", a.ReportPath)
	rec.AssertExpectations(t)
	ren.AssertExpectations(t)
}

func TestAnalyze_PersistenceFailuresAreNotFatal(t *testing.T) {
	t.Run("save", func(t *testing.T) {
		f := newFixture(t)
		f.srcA.On("Fetch", mock.Anything, mock.Anything, validCNPJ).Return(skipped(model.ProviderOpenCNPJ))
		f.srcB.On("Fetch", mock.Anything, mock.Anything, validCNPJ).Return(skipped(model.ProviderBrasilAPI))
		f.expectNarrative()

		rec := &mockRecorder{}
		rec.On("SaveAnalysis", mock.Anything, mock.Anything).Return(int64(0), errors.New("disk full"))
		ren := &mockRenderer{}

		a, err := f.service(WithRecorder(rec), WithRenderer(ren)).
			Analyze(context.Background(), model.CreditRequest{CNPJ: validCNPJ})
		require.NoError(t, err)
		assert.Zero(t, a.ID)
		ren.AssertNotCalled(t, "Render", mock.Anything)
	})

	t.Run("render", func(t *testing.T) {
		f := newFixture(t)
		f.srcA.On("Fetch", mock.Anything, mock.Anything, validCNPJ).Return(skipped(model.ProviderOpenCNPJ))
		f.srcB.On("Fetch", mock.Anything, mock.Anything, validCNPJ).Return(skipped(model.ProviderBrasilAPI))
		f.expectNarrative()

		rec := &mockRecorder{}
		rec.On("SaveAnalysis", mock.Anything, mock.Anything).Return(int64(3), nil)
		ren := &mockRenderer{}
		ren.On("Render", mock.Anything).Return(nil, errors.New("font missing"))

		a, err := f.service(WithRecorder(rec), WithRenderer(ren)).
			Analyze(context.Background(), model.CreditRequest{CNPJ: validCNPJ})
		require.NoError(t, err)
		assert.Equal(t, int64(3), a.ID)
		assert.Empty(t, a.ReportPath)
		rec.AssertNotCalled(t, "SaveReport", mock.Anything, mock.Anything)
	})
}

func TestAnalyze_InvalidCNPJ(t *testing.T) {
	f := newFixture(t)
	_, err := f.service().Analyze(context.Background(), model.CreditRequest{CNPJ: "11222333000182"})
	assert.ErrorIs(t, err, ErrInvalidCNPJ)
	f.narrator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}
