package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"nutridash/internal/nutrition/handler"
	"nutridash/internal/nutrition/session"
	"nutridash/internal/platform/httpserver"
	"nutridash/internal/platform/middleware"
	"nutridash/pkg/platform/httputil"
)

const (
	requestTimeout  = 30 * time.Second
	cleanupInterval = time.Minute
	shutdownTimeout = 10 * time.Second
	healthTimeout   = 2 * time.Second
)

// Server is the dashboard HTTP server plus its session registry.
type Server struct {
	deps     *Deps
	sessions *session.Registry
	router   chi.Router
	http     *http.Server
}

func NewServer(d *Deps) (*Server, error) {
	if d == nil {
		return nil, errors.New("dependencies are required")
	}
	sessions, err := session.New(d.NewModel, d.Config.SessionTTL,
		session.WithLogger(d.Logger),
		session.WithGauge(d.HTTPMetrics),
	)
	if err != nil {
		return nil, err
	}
	ingester, err := d.NewIngester()
	if err != nil {
		return nil, err
	}

	s := &Server{deps: d, sessions: sessions}
	s.router = s.newRouter(handler.New(sessions, ingester, d.Logger))
	s.http = httpserver.New(d.Config.Addr, s.router)
	return s, nil
}

func (s *Server) newRouter(h *handler.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(s.deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(s.deps.Logger))
	r.Use(middleware.LatencyMiddleware(s.deps.HTTPMetrics))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.deps.Registry, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Use(middleware.Session(s.deps.Config.SessionTTL))
		h.Register(r)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	if err := s.deps.Healthy(ctx); err != nil {
		s.deps.Logger.WarnContext(ctx, "health check failed", "error", err)
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts the listener down gracefully and
// waits for the background workers to drain.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.deps.RunBackground(gctx)
	})
	g.Go(func() error {
		return s.sessions.StartCleanup(gctx, cleanupInterval)
	})
	g.Go(func() error {
		s.deps.Logger.InfoContext(gctx, "starting nutridash", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.deps.Logger.InfoContext(shutdownCtx, "server stopped")
		return nil
	})
	return g.Wait()
}
