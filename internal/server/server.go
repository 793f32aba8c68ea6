package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hazz-dev/urlcanary/internal/canary"
	"github.com/hazz-dev/urlcanary/internal/probe"
)

// Runner runs one canary step.
type Runner interface {
	Run(ctx context.Context, req probe.Request) canary.Report
}

// Server exposes the canary over HTTP so an external scheduler can trigger
// probes.
type Server struct {
	runner  Runner
	request probe.Request
	metrics http.Handler
	router  chi.Router
	logger  *zap.Logger

	mu   sync.RWMutex
	last *canary.Report
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLogger sets the request logger. The default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Server that probes req on every trigger.
func New(runner Runner, req probe.Request, opts ...Option) *Server {
	s := &Server{
		runner:  runner,
		request: req,
		router:  chi.NewRouter(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s
}

// Router returns the chi router (for mounting or testing).
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/api/health", s.handleHealth)
	r.Post("/api/run", s.handleRun)
	r.Get("/api/last", s.handleLast)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
}

// --- Response helpers ---

type envelope struct {
	Data  interface{} `json:"data"`
	Error string      `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Error: msg})
}

type reportResponse struct {
	Step       string     `json:"step"`
	Target     string     `json:"target"`
	Passed     bool       `json:"passed"`
	Kind       probe.Kind `json:"kind"`
	StatusCode int        `json:"status_code,omitempty"`
	Message    string     `json:"message,omitempty"`
	ElapsedMs  int64      `json:"elapsed_ms"`
	StartedAt  time.Time  `json:"started_at"`
}

func newReportResponse(rep canary.Report) reportResponse {
	return reportResponse{
		Step:       rep.Step,
		Target:     rep.Target,
		Passed:     rep.Passed(),
		Kind:       rep.Outcome.Kind,
		StatusCode: rep.Outcome.StatusCode,
		Message:    rep.Outcome.Message,
		ElapsedMs:  rep.Elapsed.Milliseconds(),
		StartedAt:  rep.StartedAt.UTC(),
	}
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleRun answers 200 for every settled probe; failures are data.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	// Only the probe timeout may cancel a probe, not a departing client.
	rep := s.runner.Run(context.WithoutCancel(r.Context()), s.request)

	s.mu.Lock()
	s.last = &rep
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, newReportResponse(rep))
}

func (s *Server) handleLast(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()

	if last == nil {
		writeError(w, http.StatusNotFound, "no probe has run yet")
		return
	}
	writeJSON(w, http.StatusOK, newReportResponse(*last))
}

// --- Middleware ---

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
