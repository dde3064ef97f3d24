// Package api serves the admin and ingest HTTP surface: rule
// administration, the execution ledger, event ingest, health and metrics.
//
// Authentication is not handled here; mount the router behind whatever
// gateway owns staff sessions.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/switchyard/internal/domain"
	"github.com/roach88/switchyard/internal/ident"
	"github.com/roach88/switchyard/internal/store"
)

// Store is the storage the handlers read and administer.
type Store interface {
	Ping(ctx context.Context) error

	ListRules(ctx context.Context, f store.RuleFilter) ([]domain.WorkflowRule, error)
	GetRule(ctx context.Context, id string) (domain.WorkflowRule, error)
	CreateRule(ctx context.Context, r domain.WorkflowRule) error
	UpdateRule(ctx context.Context, id string, patch domain.RulePatch, at time.Time) (domain.WorkflowRule, error)
	DeleteRule(ctx context.Context, id string) error

	ListExecutions(ctx context.Context, f store.ExecutionFilter) ([]domain.RuleExecution, error)
	CountExecutions(ctx context.Context, f store.ExecutionFilter) (int, error)

	ListEvents(ctx context.Context, f store.EventFilter) ([]domain.DomainEvent, error)
	CountEvents(ctx context.Context, f store.EventFilter) (int, error)
}

// EventAppender appends an event and runs the rules it triggers.
type EventAppender interface {
	Append(ctx context.Context, ev domain.NewEvent) (domain.DomainEvent, error)
}

// Server holds the handler dependencies.
type Server struct {
	store    Store
	events   EventAppender
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	clock    ident.Clock
	ids      ident.Generator
	timeout  time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithGatherer sets the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithClock sets the clock used for rule timestamps.
func WithClock(c ident.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithIDs sets the generator for new rule IDs.
func WithIDs(g ident.Generator) Option {
	return func(s *Server) { s.ids = g }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// New creates a Server.
func New(st Store, events EventAppender, opts ...Option) *Server {
	s := &Server{
		store:    st,
		events:   events,
		logger:   slog.Default(),
		gatherer: prometheus.DefaultGatherer,
		clock:    ident.SystemClock{},
		ids:      ident.UUIDv7{},
		timeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/admin/workflows", func(r chi.Router) {
			r.Get("/", s.handleListRules)
			r.Post("/", s.handleCreateRule)
			r.Get("/executions", s.handleListExecutions)
			r.Get("/{id}", s.handleGetRule)
			r.Patch("/{id}", s.handlePatchRule)
			r.Delete("/{id}", s.handleDeleteRule)
		})
		r.Post("/events", s.handleAppendEvent)
		r.Get("/events", s.handleListEvents)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.ErrorContext(r.Context(), "health check failed", "error", err)
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.InfoContext(r.Context(), "http request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}
