// Package dashboard serves the monitoring API and the websocket feed the
// web UI consumes.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"gametunnel/internal/config"
	"gametunnel/internal/sessions"
	"gametunnel/internal/stats"
	"gametunnel/internal/storage"
)

// Server is the dashboard HTTP server. All data it serves comes from the
// stats broadcaster, the session registry and the sample store; it holds no
// state of its own.
type Server struct {
	cfg      config.DashboardConfig
	appCfg   *config.Config
	stats    *stats.Broadcaster
	sessions *sessions.Registry
	store    storage.Storage
	logger   *zap.Logger

	httpSrv *http.Server
}

// New creates the dashboard server. store may be nil; /api/history then
// falls back to the in-memory windows carried by snapshots.
func New(appCfg *config.Config, broadcaster *stats.Broadcaster, reg *sessions.Registry, store storage.Storage, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:      appCfg.Dashboard,
		appCfg:   appCfg,
		stats:    broadcaster,
		sessions: reg,
		store:    store,
		logger:   logger.Named("dashboard"),
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
}

// Router builds the chi router with all dashboard routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/servers", s.handleServers)
		r.Get("/connections", s.handleConnections)
		r.Get("/history", s.handleHistory)
		r.Get("/config", s.handleConfig)
	})
	r.Get("/ws", s.handleWebsocket)

	return r
}

// Start begins serving in the background. It returns once the listener is
// bound so callers can fail fast on an occupied port.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("dashboard listen: %w", err)
	}

	s.httpSrv = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("dashboard server failed", zap.Error(err))
		}
	}()

	s.logger.Info("dashboard listening", zap.String("addr", listener.Addr().String()))
	return nil
}

// Stop shuts the server down, waiting for in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
