package analysis

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/credit-cli/internal/gateway"
	"github.com/sells-group/credit-cli/internal/model"
	"github.com/sells-group/credit-cli/internal/narrative"
)

type mockSettings struct {
	mock.Mock
}

func (m *mockSettings) ListProviders(ctx context.Context) ([]model.ProviderSettings, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]model.ProviderSettings)
	return list, args.Error(1)
}

type mockSource struct {
	mock.Mock
	key string
}

func (m *mockSource) Key() string { return m.key }

func (m *mockSource) Fetch(ctx context.Context, settings model.Settings, cnpj string) gateway.Result {
	args := m.Called(ctx, settings, cnpj)
	return args.Get(0).(gateway.Result)
}

type mockLitigation struct {
	mock.Mock
}

func (m *mockLitigation) Search(ctx context.Context, settings model.Settings, name string) (model.LitigationSummary, gateway.Result) {
	args := m.Called(ctx, settings, name)
	return args.Get(0).(model.LitigationSummary), args.Get(1).(gateway.Result)
}

type mockNarrator struct {
	mock.Mock
}

func (m *mockNarrator) Research(ctx context.Context, settings model.Settings, name, cnpj string) narrative.Research {
	args := m.Called(ctx, settings, name, cnpj)
	return args.Get(0).(narrative.Research)
}

func (m *mockNarrator) Generate(ctx context.Context, settings model.Settings, in narrative.PromptInput) model.Narrative {
	args := m.Called(ctx, settings, in)
	return args.Get(0).(model.Narrative)
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) SaveAnalysis(ctx context.Context, a *model.Analysis) (int64, error) {
	args := m.Called(ctx, a)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRecorder) SaveReport(ctx context.Context, r model.Report) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) Render(a *model.Analysis) (*model.Report, error) {
	args := m.Called(a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Report), args.Error(1)
}
