// Package server exposes the credit engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/sells-group/credit-cli/internal/analysis"
	"github.com/sells-group/credit-cli/internal/metrics"
	"github.com/sells-group/credit-cli/internal/model"
	"github.com/sells-group/credit-cli/internal/report"
	"github.com/sells-group/credit-cli/internal/store"
)

const maxBodyBytes = 1 << 20

// Analyzer runs lookups and analyses. *analysis.Service satisfies it.
type Analyzer interface {
	Lookup(ctx context.Context, cnpj string) (*analysis.Lookup, error)
	Analyze(ctx context.Context, req model.CreditRequest) (*model.Analysis, error)
}

// Store is the persistence subset the HTTP API reads and administers.
type Store interface {
	ListProviders(ctx context.Context) ([]model.ProviderSettings, error)
	UpdateProvider(ctx context.Context, key string, upd model.ProviderUpdate) (*model.ProviderSettings, error)
	GetAnalysis(ctx context.Context, id int64) (*model.Analysis, error)
	ListAnalyses(ctx context.Context, filter store.AnalysisFilter) ([]model.AnalysisSummary, error)
	DeleteAnalysis(ctx context.Context, id int64) error
	Stats(ctx context.Context) (*model.Stats, error)
}

// Server holds the HTTP handlers.
type Server struct {
	analyzer       Analyzer
	store          Store
	allowedOrigins []string
	render         func(*model.Analysis, time.Time) ([]byte, error)
}

// New creates a Server.
func New(a Analyzer, st Store, allowedOrigins []string) *Server {
	return &Server{analyzer: a, store: st, allowedOrigins: allowedOrigins, render: report.Build}
}

// Routes returns the router with every endpoint mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/lookup", s.handleLookup)
		r.Route("/analyses", func(r chi.Router) {
			r.Post("/", s.handleAnalyze)
			r.Get("/", s.handleListAnalyses)
			r.Get("/{id}", s.handleGetAnalysis)
			r.Delete("/{id}", s.handleDeleteAnalysis)
			r.Get("/{id}/report.pdf", s.handleReport)
		})
		r.Get("/providers", s.handleListProviders)
		r.Put("/providers/{key}", s.handleUpdateProvider)
		r.Get("/stats", s.handleStats)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CNPJ string `json:"cnpj"`
	}
	if !decodeValidated(w, r, lookupValidator, &req) {
		return
	}
	res, err := s.analyzer.Lookup(r.Context(), req.CNPJ)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req model.CreditRequest
	if !decodeValidated(w, r, analysisValidator, &req) {
		return
	}
	a, err := s.analyzer.Analyze(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.AnalysisFilter{
		CNPJ: model.NormalizeCNPJ(q.Get("cnpj")),
		Tier: model.Tier(q.Get("tier")),
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	list, err := s.store.ListAnalyses(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []model.AnalysisSummary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	a, err := s.store.GetAnalysis(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteAnalysis(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReport serves the stored PDF, rendering it on the fly when the file
// was never produced or has been removed.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	a, err := s.store.GetAnalysis(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if a.ReportPath != "" {
		if _, err := os.Stat(a.ReportPath); err == nil {
			setPDFHeaders(w, id)
			http.ServeFile(w, r, a.ReportPath)
			return
		}
	}
	doc, err := s.render(a, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	setPDFHeaders(w, id)
	w.WriteHeader(http.StatusOK)
	w.Write(doc) //nolint:errcheck
}

func setPDFHeaders(w http.ResponseWriter, id int64) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="relatorio_credito_`+strconv.FormatInt(id, 10)+`.pdf"`)
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListProviders(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]model.ProviderSettings, len(list))
	for i, p := range list {
		out[i] = p.Masked()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateProvider(w http.ResponseWriter, r *http.Request) {
	var upd model.ProviderUpdate
	if !decodeValidated(w, r, providerUpdateValidator, &upd) {
		return
	}
	p, err := s.store.UpdateProvider(r.Context(), chi.URLParam(r, "key"), upd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p.Masked())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// helpers

func decodeValidated(w http.ResponseWriter, r *http.Request, schema *gojsonschema.Schema, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "could not read request body"})
		return false
	}
	if err := validateBody(schema, body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid analysis id"})
		return 0, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, analysis.ErrInvalidCNPJ):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "CNPJ inválido"})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		zap.L().Error("http: request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
