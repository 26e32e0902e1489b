// Package api provides the HTTP API for Worklog.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fentz26/worklog/internal/clock"
	"github.com/fentz26/worklog/internal/ledger"
	"github.com/fentz26/worklog/internal/metrics"
	"github.com/fentz26/worklog/internal/productivity"
	"github.com/fentz26/worklog/internal/store"
	"github.com/fentz26/worklog/internal/tasks"
	"github.com/fentz26/worklog/internal/version"
)

// Deps are the services the server exposes.
type Deps struct {
	Store   *store.Store
	Tasks   *tasks.Service
	Ledger  *ledger.Ledger
	Stats   *productivity.Aggregator
	Metrics *metrics.Metrics
	Clock   clock.Clock
	Logger  *slog.Logger
}

// Server provides the HTTP API for Worklog.
type Server struct {
	store   *store.Store
	tasks   *tasks.Service
	ledger  *ledger.Ledger
	stats   *productivity.Aggregator
	metrics *metrics.Metrics
	clock   clock.Clock
	logger  *slog.Logger

	addr   string
	server *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(d Deps, addr string) *Server {
	s := &Server{
		store:   d.Store,
		tasks:   d.Tasks,
		ledger:  d.Ledger,
		stats:   d.Stats,
		metrics: d.Metrics,
		clock:   d.Clock,
		logger:  d.Logger,
		addr:    addr,
	}
	if s.clock == nil {
		s.clock = clock.System{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Handler builds the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Task endpoints
	mux.HandleFunc("/tasks", s.withIdentity(s.handleTasks))
	mux.HandleFunc("/tasks/", s.withIdentity(s.handleTaskByID))
	mux.HandleFunc("/dependencies", s.withIdentity(s.handleDependencies))
	mux.HandleFunc("/dependencies/", s.withIdentity(s.handleDependencyByID))

	// Time tracking endpoints
	mux.HandleFunc("/timers", s.withIdentity(s.handleTimers))
	mux.HandleFunc("/timers/", s.withIdentity(s.handleTimerByID))
	mux.HandleFunc("/time-logs", s.withIdentity(s.handleTimeLogs))
	mux.HandleFunc("/time-logs/", s.withIdentity(s.handleTimeLogByID))
	mux.HandleFunc("/stats", s.withIdentity(s.handleStats))
	mux.HandleFunc("/audit", s.withIdentity(s.handleAudit))

	mux.HandleFunc("/health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	return s.instrument(mux)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info("starting worklog daemon", "addr", s.addr, "version", version.Version)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument logs every request and feeds the HTTP metrics.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		route := routeOf(r.URL.Path)
		if s.metrics != nil {
			s.metrics.ObserveRequest(r.Method, route, rec.status, elapsed)
		}
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "elapsed", elapsed)
	})
}

// routeOf reduces a path to its first segment so ids never become labels.
func routeOf(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[:i]
	}
	return "/" + trimmed
}

// splitPath returns the id and action after prefix, e.g. "/tasks/42/complete"
// gives "42", "complete".
func splitPath(path, prefix string) (id, action string) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(path, prefix), "/"), "/")
	id = parts[0]
	if len(parts) > 1 {
		action = parts[1]
	}
	return id, action
}
