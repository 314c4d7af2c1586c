// Package litigation searches the CNJ DataJud public API for judicial
// proceedings naming a company.
package litigation

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sells-group/credit-cli/internal/gateway"
	"github.com/sells-group/credit-cli/internal/model"
)

const defaultPageSize = 10

// Fetcher performs gated JSON calls. *gateway.Gateway satisfies it.
type Fetcher interface {
	FetchJSON(ctx context.Context, spec gateway.Spec, req gateway.Request) gateway.Result
}

// DataJud queries one tribunal index of the DataJud API.
type DataJud struct {
	fetcher  Fetcher
	url      string
	timeout  time.Duration
	pageSize int
}

// NewDataJud creates a DataJud client for the given search URL.
func NewDataJud(f Fetcher, searchURL string, timeout time.Duration) *DataJud {
	return &DataJud{fetcher: f, url: searchURL, timeout: timeout, pageSize: defaultPageSize}
}

// Search looks up proceedings whose parties match name. The credential is
// optional; when present it is sent as a DataJud API key.
func (d *DataJud) Search(ctx context.Context, settings model.Settings, name string) (model.LitigationSummary, gateway.Result) {
	ps := settings.Get(model.ProviderDataJud)
	req := gateway.Request{
		Method: "POST",
		URL:    d.url,
		Body: map[string]any{
			"query": map[string]any{"match": map[string]any{"partes.nome": name}},
			"size":  d.pageSize,
		},
	}
	if ps.APIKey != "" {
		req.Headers = map[string]string{"Authorization": "APIKey " + ps.APIKey}
	}

	res := d.fetcher.FetchJSON(ctx, gateway.Spec{Settings: ps, Timeout: d.timeout}, req)
	if !res.OK() {
		return model.LitigationSummary{}, res
	}
	return Summarize(res.Payload, res.Raw), res
}

// Summarize extracts the hit count and proceedings from a search response.
func Summarize(payload map[string]any, raw []byte) model.LitigationSummary {
	hits, _ := payload["hits"].(map[string]any)
	s := model.LitigationSummary{Count: totalHits(hits)}
	if len(raw) > 0 && json.Valid(raw) {
		s.Raw = json.RawMessage(raw)
	}

	list, _ := hits["hits"].([]any)
	for _, h := range list {
		hit, _ := h.(map[string]any)
		src, _ := hit["_source"].(map[string]any)
		if src == nil {
			continue
		}
		p := model.Proceeding{
			Number:    str(src["numeroProcesso"]),
			Court:     str(src["tribunal"]),
			FiledAt:   str(src["dataAjuizamento"]),
			UpdatedAt: str(src["dataHoraUltimaAtualizacao"]),
		}
		if class, ok := src["classe"].(map[string]any); ok {
			p.Class = str(class["nome"])
		}
		if subjects, ok := src["assuntos"].([]any); ok {
			for _, sub := range subjects {
				if m, ok := sub.(map[string]any); ok && str(m["nome"]) != "" {
					p.Subjects = append(p.Subjects, str(m["nome"]))
				}
			}
		}
		if p.Number != "" {
			s.Proceedings = append(s.Proceedings, p)
		}
	}
	return s
}

// totalHits reads hits.total, which is either a bare number or an object
// with a "value" field. Anything else counts as zero.
func totalHits(hits map[string]any) int {
	switch t := hits["total"].(type) {
	case float64:
		return max(int(t), 0)
	case map[string]any:
		if v, ok := t["value"].(float64); ok {
			return max(int(v), 0)
		}
	}
	return 0
}

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
