package litigation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/credit-cli/internal/gateway"
	"github.com/sells-group/credit-cli/internal/model"
)

const searchResponse = `{
	"took": 12,
	"hits": {
		"total": {"value": 2, "relation": "eq"},
		"hits": [
			{"_source": {
				"numeroProcesso": "10012345620238260100",
				"tribunal": "TJSP",
				"classe": {"codigo": 7, "nome": "Procedimento Comum Cível"},
				"assuntos": [{"codigo": 1, "nome": "Cobrança"}, {"codigo": 2, "nome": "Contratos"}],
				"dataAjuizamento": "2023-05-10T00:00:00.000Z",
				"dataHoraUltimaAtualizacao": "2024-01-02T10:00:00.000Z"
			}},
			{"_source": {"numeroProcesso": "20000000020228260100", "tribunal": "TJSP"}}
		]
	}
}`

func TestSummarize(t *testing.T) {
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(searchResponse), &payload))

	s := Summarize(payload, []byte(searchResponse))

	assert.Equal(t, 2, s.Count)
	require.Len(t, s.Proceedings, 2)
	assert.Equal(t, model.Proceeding{
		Number:    "10012345620238260100",
		Court:     "TJSP",
		Class:     "Procedimento Comum Cível",
		Subjects:  []string{"Cobrança", "Contratos"},
		FiledAt:   "2023-05-10T00:00:00.000Z",
		UpdatedAt: "2024-01-02T10:00:00.000Z",
	}, s.Proceedings[0])
	assert.JSONEq(t, searchResponse, string(s.Raw))
}

func TestTotalHits(t *testing.T) {
	tests := []struct {
		name string
		hits map[string]any
		want int
	}{
		{"bare number", map[string]any{"total": 15.0}, 15},
		{"object", map[string]any{"total": map[string]any{"value": 3.0}}, 3},
		{"missing", map[string]any{}, 0},
		{"nil hits", nil, 0},
		{"wrong type", map[string]any{"total": "many"}, 0},
		{"negative", map[string]any{"total": -4.0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, totalHits(tt.hits))
		})
	}
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "APIKey cnj-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(10), body["size"])
		match := body["query"].(map[string]any)["match"].(map[string]any)
		assert.Equal(t, "ACME LTDA", match["partes.nome"])

		w.Write([]byte(searchResponse)) //nolint:errcheck
	}))
	defer srv.Close()

	d := NewDataJud(gateway.New(), srv.URL, time.Second)
	settings := model.NewSettings([]model.ProviderSettings{{Key: model.ProviderDataJud, Enabled: true, APIKey: "cnj-key"}})

	s, res := d.Search(context.Background(), settings, "ACME LTDA")
	require.True(t, res.OK(), "err: %v", res.Err)
	assert.Equal(t, 2, s.Count)
}

func TestSearch_DisabledAndFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	d := NewDataJud(gateway.New(), srv.URL, time.Second)

	s, res := d.Search(context.Background(), model.NewSettings(nil), "ACME")
	assert.Equal(t, gateway.OutcomeSkipped, res.Outcome)
	assert.Zero(t, s.Count)

	enabled := model.NewSettings([]model.ProviderSettings{{Key: model.ProviderDataJud, Enabled: true}})
	s, res = d.Search(context.Background(), enabled, "ACME")
	assert.Equal(t, gateway.OutcomeFailed, res.Outcome)
	assert.Equal(t, gateway.KindStatus, res.Kind)
	assert.Zero(t, s.Count)
}
