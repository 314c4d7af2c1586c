package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/credit-cli/internal/gateway"
	"github.com/sells-group/credit-cli/internal/model"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchJSON(ctx context.Context, spec gateway.Spec, req gateway.Request) gateway.Result {
	args := m.Called(ctx, spec, req)
	return args.Get(0).(gateway.Result)
}

const cnpj = "11222333000181"

func settings(list ...model.ProviderSettings) model.Settings {
	return model.NewSettings(list)
}

func TestRequests(t *testing.T) {
	ep := Endpoint{BaseURL: "https://example.test/api/", Timeout: 7 * time.Second}
	all := settings(
		model.ProviderSettings{Key: model.ProviderOpenCNPJ, Enabled: true},
		model.ProviderSettings{Key: model.ProviderBrasilAPI, Enabled: true},
		model.ProviderSettings{Key: model.ProviderCNPJa, Enabled: true, APIKey: "cnpja-key"},
		model.ProviderSettings{Key: model.ProviderInverTexto, Enabled: true, APIKey: "tok en"},
	)

	tests := []struct {
		name       string
		ctor       func(Fetcher, Endpoint) Source
		key        string
		requireKey bool
		url        string
		headers    map[string]string
	}{
		{"opencnpj", NewOpenCNPJ, model.ProviderOpenCNPJ, false, "https://example.test/api/" + cnpj, nil},
		{"brasilapi", NewBrasilAPI, model.ProviderBrasilAPI, false, "https://example.test/api/" + cnpj, nil},
		{"cnpja", NewCNPJa, model.ProviderCNPJa, true, "https://example.test/api/" + cnpj, map[string]string{"Authorization": "cnpja-key"}},
		{"invertexto", NewInverTexto, model.ProviderInverTexto, true, "https://example.test/api/" + cnpj + "?token=tok+en", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &mockFetcher{}
			want := gateway.Result{Provider: tt.key, Outcome: gateway.OutcomeOK}
			f.On("FetchJSON", mock.Anything, mock.MatchedBy(func(s gateway.Spec) bool {
				return s.Settings.Key == tt.key && s.RequireKey == tt.requireKey && s.Timeout == 7*time.Second
			}), gateway.Request{URL: tt.url, Headers: tt.headers}).Return(want)

			src := tt.ctor(f, ep)
			assert.Equal(t, tt.key, src.Key())
			assert.Equal(t, want, src.Fetch(context.Background(), all, cnpj))
			f.AssertExpectations(t)
		})
	}
}

func TestCNPJaSkippedWithoutKey(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	defer srv.Close()

	src := NewCNPJa(gateway.New(), Endpoint{BaseURL: srv.URL})
	res := src.Fetch(context.Background(), settings(model.ProviderSettings{Key: model.ProviderCNPJa, Enabled: true}), cnpj)

	assert.Equal(t, gateway.OutcomeSkipped, res.Outcome)
	assert.Zero(t, hits)
}

func TestOpenCNPJAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/"+cnpj, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"cnpj":"11222333000181","razao_social":"ACME LTDA","situacao_cadastral":"Ativa"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	src := NewOpenCNPJ(gateway.New(), Endpoint{BaseURL: srv.URL})
	res := src.Fetch(context.Background(), settings(model.ProviderSettings{Key: model.ProviderOpenCNPJ, Enabled: true}), cnpj)

	require.True(t, res.OK(), "err: %v", res.Err)
	assert.Equal(t, "ACME LTDA", res.Payload["razao_social"])
}
