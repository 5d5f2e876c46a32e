// Package api exposes the HTTP interface for the scrape service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

// RunStarter launches a scrape run.
type RunStarter interface {
	RunScrape(ctx context.Context, sourceFilter string, opts scrape.RunOptions) (scrape.RunSummary, error)
}

// RunStatus tracks one submitted run.
type RunStatus struct {
	ID        string            `json:"id"`
	Source    string            `json:"source,omitempty"`
	Status    string            `json:"status"`
	Summary   scrape.RunSummary `json:"summary"`
	Error     string            `json:"error,omitempty"`
	Submitted time.Time         `json:"submitted"`
}

// Server wires HTTP handlers to the runner.
type Server struct {
	router chi.Router
	runner RunStarter
	logger *zap.Logger

	mu   sync.RWMutex
	runs map[string]*RunStatus
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runner RunStarter, logger *zap.Logger) *Server {
	s := &Server{
		runner: runner,
		logger: logger,
		runs:   make(map[string]*RunStatus),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/runs", s.submitRun)
		r.Get("/runs/{run_id}", s.getRun)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type runRequest struct {
	Source            string `json:"source"`
	ScrapeDetailPages bool   `json:"scrape_detail_pages"`
	MaxItems          int    `json:"max_items"`
	Resume            bool   `json:"resume"`
}

func (s *Server) submitRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	status := &RunStatus{
		ID:        uuid.NewString(),
		Source:    req.Source,
		Status:    "running",
		Submitted: time.Now(),
	}
	s.mu.Lock()
	s.runs[status.ID] = status
	s.mu.Unlock()

	// The run outlives the request; it is tied to the server, not the
	// submitting client.
	go func() {
		summary, err := s.runner.RunScrape(context.Background(), req.Source, scrape.RunOptions{
			ScrapeDetailPages: req.ScrapeDetailPages,
			MaxItems:          req.MaxItems,
			Resume:            req.Resume,
		})

		s.mu.Lock()
		defer s.mu.Unlock()
		status.Summary = summary
		if err != nil {
			status.Status = "failed"
			status.Error = err.Error()
			s.logger.Error("run failed", zap.String("run_id", status.ID), zap.Error(err))
			return
		}
		status.Status = "completed"
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": status.ID})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	s.mu.RLock()
	status, ok := s.runs[runID]
	var snapshot RunStatus
	if ok {
		snapshot = *status
	}
	s.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
