package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/credit-cli/internal/model"
)

func enabled(key string) model.ProviderSettings {
	return model.ProviderSettings{Key: key, Enabled: true}
}

func TestFetchJSON_SkippedWhenDisabled(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	g := New()
	res := g.FetchJSON(context.Background(), Spec{Settings: model.ProviderSettings{Key: "opencnpj"}}, Request{URL: srv.URL})

	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Equal(t, "opencnpj", res.Provider)
	assert.Zero(t, hits.Load(), "no network attempt for a disabled provider")
}

func TestFetchJSON_SkippedWhenKeyRequiredAndMissing(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	res := New().FetchJSON(context.Background(), Spec{Settings: enabled("cnpja"), RequireKey: true}, Request{URL: srv.URL})

	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Zero(t, hits.Load())
}

func TestFetchJSON_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "key-1", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, defaultUserAgent, r.Header.Get("User-Agent"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(10), body["size"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"razao_social":"ACME LTDA","capital_social":1000}`))
	}))
	defer srv.Close()

	res := New().FetchJSON(context.Background(), Spec{Settings: enabled("datajud")}, Request{
		Method:  http.MethodPost,
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "key-1"},
		Body:    map[string]any{"size": 10},
	})

	require.True(t, res.OK(), "err: %v", res.Err)
	assert.Equal(t, "ACME LTDA", res.Payload["razao_social"])
	assert.Equal(t, float64(1000), res.Payload["capital_social"])
	assert.NotEmpty(t, res.Raw)
}

func TestFetchJSON_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		kind    Kind
	}{
		{
			name:    "non-2xx status",
			handler: func(w http.ResponseWriter, r *http.Request) { http.Error(w, "nope", http.StatusTooManyRequests) },
			kind:    KindStatus,
		},
		{
			name:    "non-json body",
			handler: func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("<html>")) },
			kind:    KindDecode,
		},
		{
			name:    "json array payload",
			handler: func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`[1,2]`)) },
			kind:    KindDecode,
		},
		{
			name: "slow server",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(2 * time.Second):
				case <-r.Context().Done():
				}
			},
			kind: KindTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				tt.handler(w, r)
			}))
			defer srv.Close()

			res := New().FetchJSON(context.Background(), Spec{Settings: enabled("opencnpj"), Timeout: 100 * time.Millisecond}, Request{URL: srv.URL})

			assert.Equal(t, OutcomeFailed, res.Outcome)
			assert.Equal(t, tt.kind, res.Kind)
			assert.Error(t, res.Err)
			assert.Equal(t, int32(1), hits.Load(), "exactly one attempt, no retries")
		})
	}
}

func TestFetchJSON_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := New().FetchJSON(context.Background(), Spec{Settings: enabled("brasilapi")}, Request{URL: url})

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, KindTransport, res.Kind)
}

func TestFetchJSON_RateLimiterWaitCountsAgainstTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	lim := rate.NewLimiter(rate.Every(time.Hour), 1)
	g := New(WithRateLimiters(map[string]*rate.Limiter{host: lim}))
	spec := Spec{Settings: enabled("opencnpj"), Timeout: 50 * time.Millisecond}

	first := g.FetchJSON(context.Background(), spec, Request{URL: srv.URL})
	require.True(t, first.OK())

	second := g.FetchJSON(context.Background(), spec, Request{URL: srv.URL})
	assert.Equal(t, OutcomeFailed, second.Outcome)
	assert.Equal(t, KindTimeout, second.Kind)
}

func TestComplete(t *testing.T) {
	ctx := context.Background()
	spec := Spec{Settings: model.ProviderSettings{Key: "anthropic", Enabled: true, APIKey: "k"}, RequireKey: true}

	t.Run("ok", func(t *testing.T) {
		res := New().Complete(ctx, spec, "messages", func(context.Context) (string, error) { return "análise", nil })
		require.True(t, res.OK())
		assert.Equal(t, "análise", res.Text)
	})

	t.Run("empty completion fails", func(t *testing.T) {
		res := New().Complete(ctx, spec, "messages", func(context.Context) (string, error) { return "  ", nil })
		assert.Equal(t, OutcomeFailed, res.Outcome)
		assert.Equal(t, KindEmpty, res.Kind)
	})

	t.Run("error classified", func(t *testing.T) {
		res := New().Complete(ctx, spec, "messages", func(context.Context) (string, error) {
			return "", errors.New("perplexity: unexpected status 503")
		})
		assert.Equal(t, OutcomeFailed, res.Outcome)
		assert.Equal(t, KindStatus, res.Kind)
	})

	t.Run("skipped without key", func(t *testing.T) {
		called := false
		noKey := spec
		noKey.Settings.APIKey = ""
		res := New().Complete(ctx, noKey, "messages", func(context.Context) (string, error) {
			called = true
			return "x", nil
		})
		assert.Equal(t, OutcomeSkipped, res.Outcome)
		assert.False(t, called)
	})

	t.Run("deadline", func(t *testing.T) {
		slow := spec
		slow.Timeout = 20 * time.Millisecond
		res := New().Complete(ctx, slow, "messages", func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})
		assert.Equal(t, KindTimeout, res.Kind)
	})
}

func TestJournalRecordsCallsWithoutQueryString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	j := NewJournal()
	ctx := WithJournal(context.Background(), j)
	g := New()

	g.FetchJSON(ctx, Spec{Settings: enabled("invertexto")}, Request{URL: srv.URL + "/v1/cnpj/1?token=secret"})
	g.FetchJSON(ctx, Spec{Settings: model.ProviderSettings{Key: "cnpja"}}, Request{URL: srv.URL})

	calls := j.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "invertexto", calls[0].Provider)
	assert.Equal(t, "ok", calls[0].Outcome)
	assert.NotContains(t, calls[0].Endpoint, "secret")
	assert.NotEmpty(t, calls[0].ID)
	assert.Equal(t, "skipped", calls[1].Outcome)
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		err  error
		want Kind
	}{
		{&StatusError{Code: 500}, KindStatus},
		{errors.New("POST \"https://api.anthropic.com/v1/messages\": 529 status overloaded"), KindStatus},
		{errors.New("dial tcp: i/o timeout"), KindTimeout},
		{context.DeadlineExceeded, KindTimeout},
		{errors.New("connection refused"), KindTransport},
		{errors.New("status 2000 items"), KindTransport},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classify(ctx, tt.err), tt.err.Error())
	}
}
