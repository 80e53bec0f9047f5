// Package server is the local viewer: it serves the interactive graph page for
// each repository and a small JSON API the page calls to switch layouts,
// regenerate and export.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/codebaseqa/cqa/internal/api"
	"github.com/codebaseqa/cqa/internal/graph"
	"github.com/codebaseqa/cqa/internal/layout"
	"github.com/codebaseqa/cqa/internal/view"
)

// Backend is the part of the API client the viewer needs.
type Backend interface {
	ListRepos(ctx context.Context) (*api.RepoList, error)
	GetGraph(ctx context.Context, repoID string, q api.GraphQuery) (*graph.Payload, error)
	RecordGraphView(ctx context.Context, repoID string) (*api.GraphViewResult, error)
}

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

// Server serves graph views. One controller exists per repository; they all
// share the engine and therefore its layout cache.
type Server struct {
	router    *mux.Router
	backend   Backend
	engine    *layout.Engine
	snapshots view.SnapshotStore
	query     api.GraphQuery
	mode      layout.Mode
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	ctrl   *view.Controller
	viewed sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSnapshots stores every fetched payload.
func WithSnapshots(store view.SnapshotStore) Option {
	return func(s *Server) { s.snapshots = store }
}

// WithQuery sets the graph query used for every repository.
func WithQuery(q api.GraphQuery) Option {
	return func(s *Server) { s.query = q }
}

// WithMode sets the initial layout mode of new sessions.
func WithMode(m layout.Mode) Option {
	return func(s *Server) { s.mode = m }
}

// New creates a viewer server.
func New(backend Backend, engine *layout.Engine, opts ...Option) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		backend:  backend,
		engine:   engine,
		mode:     layout.ModeHorizontal,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	s.router.Use(s.logRequests)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	s.router.HandleFunc("/repos/{id}/graph", s.handleGraphPage).Methods(http.MethodGet)

	const v = "/api/view/{id}"
	s.router.HandleFunc(v, s.handleView).Methods(http.MethodGet)
	s.router.HandleFunc(v, s.handleDrop).Methods(http.MethodDelete)
	s.router.HandleFunc(v+"/layout", s.handleLayout).Methods(http.MethodPost)
	s.router.HandleFunc(v+"/regenerate", s.handleRegenerate).Methods(http.MethodPost)
	s.router.HandleFunc(v+"/search", s.handleSearch).Methods(http.MethodPost)
	s.router.HandleFunc(v+"/types/reset", s.handleShowAll).Methods(http.MethodPost)
	s.router.HandleFunc(v+"/types/{type}/toggle", s.handleToggleType).Methods(http.MethodPost)
	s.router.HandleFunc(v+"/select", s.handleSelect).Methods(http.MethodPost)
	s.router.HandleFunc(v+"/reset", s.handleReset).Methods(http.MethodPost)
	s.router.HandleFunc(v+"/export.png", s.handleExportPNG).Methods(http.MethodGet)
	s.router.HandleFunc(v+"/export.svg", s.handleExportSVG).Methods(http.MethodGet)
}

// ListenAndServe serves on addr until ctx is cancelled. The bound address is
// passed to ready (if non-nil) once the listener is open.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("viewer listening", "addr", ln.Addr().String())
	if ready != nil {
		ready(ln.Addr())
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// session returns the session for repoID, creating it on first use.
func (s *Server) session(repoID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[repoID]; ok {
		return sess
	}

	fetch := view.FetcherFunc(func(ctx context.Context) (*graph.Payload, error) {
		return s.backend.GetGraph(ctx, repoID, s.query)
	})
	opts := []view.Option{
		view.WithLogger(s.logger),
		view.WithTitle(repoID),
		view.WithMode(s.mode),
	}
	if s.snapshots != nil {
		opts = append(opts, view.WithSnapshots(s.snapshots, repoID, api.QueryKey(s.query)))
	}
	sess := &session{ctrl: view.New(fetch, s.engine, opts...)}
	s.sessions[repoID] = sess
	return sess
}

// drop forgets the session so the next request starts from scratch.
func (s *Server) drop(repoID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[repoID]
	delete(s.sessions, repoID)
	return ok
}

// load makes sure the session has a graph. Fetch failures are kept on the
// controller and shown by the page, so they are only logged here.
func (s *Server) load(ctx context.Context, repoID string) *session {
	sess := s.session(repoID)
	err := sess.ctrl.Load(ctx, false)
	switch {
	case err == nil:
		s.recordView(ctx, repoID, sess)
	case errors.Is(err, view.ErrFetchInFlight):
	default:
		s.logger.Debug("graph load failed", "repo", repoID, "error", err)
	}
	return sess
}

// recordView reports the first successful graph view per session. Failures
// are logged and otherwise ignored.
func (s *Server) recordView(ctx context.Context, repoID string, sess *session) {
	sess.viewed.Do(func() {
		res, err := s.backend.RecordGraphView(ctx, repoID)
		if err != nil {
			s.logger.Warn("recording graph view failed", "repo", repoID, "error", err)
			return
		}
		if res != nil && res.AchievementUnlocked != nil {
			s.logger.Info("achievement unlocked", "repo", repoID, "xp", res.XPAwarded)
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
