// Package gateway wraps every call to an external provider: the
// configuration gate, a single attempt bounded by a timeout, and an explicit
// Result the caller switches on. It never retries.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/credit-cli/internal/metrics"
	"github.com/sells-group/credit-cli/internal/model"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "credit-cli/1.0"
	maxBodyBytes     = 8 << 20
)

// Outcome is the result class of a provider call.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Spec describes the gate and deadline for one provider call.
type Spec struct {
	Settings   model.ProviderSettings
	RequireKey bool
	Timeout    time.Duration
}

// Request is an HTTP JSON request. Body, when non-nil, is JSON-encoded.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any
}

// Result is the explicit outcome of a provider call. Payload is set for
// FetchJSON and Text for Complete when Outcome is OutcomeOK.
type Result struct {
	Provider string
	Outcome  Outcome
	Kind     Kind
	Payload  map[string]any
	Raw      []byte
	Text     string
	Err      error
	Duration time.Duration
}

// OK reports whether the call produced a usable value.
func (r Result) OK() bool { return r.Outcome == OutcomeOK }

// CompleteFunc performs one text completion. It must honor ctx.
type CompleteFunc func(ctx context.Context) (string, error)

// Gateway executes gated, single-attempt provider calls.
type Gateway struct {
	client    *http.Client
	limiters  map[string]*rate.Limiter
	userAgent string
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient sets the HTTP client used for JSON fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.client = c }
}

// WithRateLimiters sets per-host limiters, keyed by URL host.
func WithRateLimiters(l map[string]*rate.Limiter) Option {
	return func(g *Gateway) { g.limiters = l }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(g *Gateway) { g.userAgent = ua }
}

// DefaultRateLimiters returns the per-host limiters for the free registry
// tiers. Limiters are shared by every request, so each refill interval stays
// well below the registry call deadline; a wait that cannot fit the deadline
// fails the call. CNPJá's free tier (one call per 12s) is left unlimited for
// that reason and its 429s surface as status failures.
func DefaultRateLimiters() map[string]*rate.Limiter {
	return map[string]*rate.Limiter{
		"api.opencnpj.org": rate.NewLimiter(rate.Every(time.Second/2), 2),
		"brasilapi.com.br": rate.NewLimiter(3, 3),
	}
}

// New creates a Gateway.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		client:    &http.Client{},
		limiters:  map[string]*rate.Limiter{},
		userAgent: defaultUserAgent,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// gate returns a skipped Result when the provider may not be called.
func gate(spec Spec) (Result, bool) {
	if spec.Settings.Configured(spec.RequireKey) {
		return Result{}, false
	}
	return Result{Provider: spec.Settings.Key, Outcome: OutcomeSkipped}, true
}

// FetchJSON performs one HTTP request and decodes a JSON object response.
func (g *Gateway) FetchJSON(ctx context.Context, spec Spec, req Request) Result {
	endpoint := endpointOf(req.URL)
	if res, skip := gate(spec); skip {
		g.finish(ctx, endpoint, res)
		return res
	}

	start := time.Now()
	res := g.fetch(ctx, spec, req)
	res.Provider = spec.Settings.Key
	res.Duration = time.Since(start)
	g.finish(ctx, endpoint, res)
	return res
}

func (g *Gateway) fetch(ctx context.Context, spec Spec, req Request) Result {
	ctx, cancel := context.WithTimeout(ctx, timeoutOf(spec))
	defer cancel()

	if err := g.wait(ctx, req.URL); err != nil {
		// The limiter refuses waits that would outlive the deadline.
		return failed(KindTimeout, eris.Wrap(err, "gateway: rate limit wait"))
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return failed(KindTransport, eris.Wrap(err, "gateway: encode body"))
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return failed(KindTransport, eris.Wrap(err, "gateway: build request"))
	}
	httpReq.Header.Set("User-Agent", g.userAgent)
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return failed(classify(ctx, err), eris.Wrap(err, "gateway: do request"))
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return failed(classify(ctx, err), eris.Wrap(err, "gateway: read body"))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return failed(KindStatus, &StatusError{Code: resp.StatusCode, Body: truncate(string(raw), 200)})
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return failed(KindDecode, eris.Wrap(err, "gateway: decode json"))
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return failed(KindDecode, eris.New("gateway: payload is not a json object"))
	}

	return Result{Outcome: OutcomeOK, Payload: obj, Raw: raw}
}

// Complete gates and runs a single text completion. An empty completion is a
// failure of KindEmpty.
func (g *Gateway) Complete(ctx context.Context, spec Spec, endpoint string, fn CompleteFunc) Result {
	if res, skip := gate(spec); skip {
		g.finish(ctx, endpoint, res)
		return res
	}

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, timeoutOf(spec))
	text, err := fn(callCtx)
	res := Result{Outcome: OutcomeOK, Text: text}
	switch {
	case err != nil:
		res = failed(classify(callCtx, err), err)
	case strings.TrimSpace(text) == "":
		res = failed(KindEmpty, eris.New("gateway: empty completion"))
	}
	cancel()

	res.Provider = spec.Settings.Key
	res.Duration = time.Since(start)
	g.finish(ctx, endpoint, res)
	return res
}

func (g *Gateway) wait(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	if l, ok := g.limiters[u.Host]; ok {
		return l.Wait(ctx)
	}
	return nil
}

// finish logs, counts and journals a completed call.
func (g *Gateway) finish(ctx context.Context, endpoint string, res Result) {
	log := zap.L().With(
		zap.String("provider", res.Provider),
		zap.String("endpoint", endpoint),
		zap.String("outcome", string(res.Outcome)),
		zap.Duration("duration", res.Duration),
	)
	switch res.Outcome {
	case OutcomeSkipped:
		log.Debug("gateway: provider not configured, skipped")
	case OutcomeFailed:
		log.Warn("gateway: provider call failed", zap.String("kind", string(res.Kind)), zap.Error(res.Err))
	default:
		log.Debug("gateway: provider call ok")
	}

	metrics.ObserveCall(res.Provider, string(res.Outcome), string(res.Kind), res.Duration)

	if j := JournalFrom(ctx); j != nil {
		j.Record(endpoint, res)
	}
}

func failed(kind Kind, err error) Result {
	return Result{Outcome: OutcomeFailed, Kind: kind, Err: err}
}

func timeoutOf(spec Spec) time.Duration {
	if spec.Timeout <= 0 {
		return defaultTimeout
	}
	return spec.Timeout
}

// endpointOf strips the query string so credentials passed as query
// parameters never reach logs or the journal.
func endpointOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
