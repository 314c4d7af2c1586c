package server

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/credit-cli/internal/analysis"
	"github.com/sells-group/credit-cli/internal/model"
	"github.com/sells-group/credit-cli/internal/store"
)

type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) Lookup(ctx context.Context, cnpj string) (*analysis.Lookup, error) {
	args := m.Called(ctx, cnpj)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analysis.Lookup), args.Error(1)
}

func (m *mockAnalyzer) Analyze(ctx context.Context, req model.CreditRequest) (*model.Analysis, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Analysis), args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ListProviders(ctx context.Context) ([]model.ProviderSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ProviderSettings), args.Error(1)
}

func (m *mockStore) UpdateProvider(ctx context.Context, key string, upd model.ProviderUpdate) (*model.ProviderSettings, error) {
	args := m.Called(ctx, key, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProviderSettings), args.Error(1)
}

func (m *mockStore) GetAnalysis(ctx context.Context, id int64) (*model.Analysis, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Analysis), args.Error(1)
}

func (m *mockStore) ListAnalyses(ctx context.Context, filter store.AnalysisFilter) ([]model.AnalysisSummary, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AnalysisSummary), args.Error(1)
}

func (m *mockStore) DeleteAnalysis(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockStore) Stats(ctx context.Context) (*model.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Stats), args.Error(1)
}
