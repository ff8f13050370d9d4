package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/limits/ratelimit"
	"mercator-hq/tollgate/pkg/proxy/handlers"
	"mercator-hq/tollgate/pkg/proxy/middleware"
	"mercator-hq/tollgate/pkg/security/auth"
	"mercator-hq/tollgate/pkg/telemetry/health"
	"mercator-hq/tollgate/pkg/telemetry/metrics"
	"mercator-hq/tollgate/pkg/telemetry/tracing"
)

// Gateway is what the server exposes over HTTP. *gateway.Gateway
// satisfies it.
type Gateway interface {
	handlers.Executor
	handlers.Admin
}

// Server is the HTTP front of a gateway.
type Server struct {
	config     config.ServerConfig
	gateway    Gateway
	logger     *slog.Logger
	metrics    *metrics.Collector
	metricsURL string
	health     *health.Checker
	version    [3]string
	adminKeys  *auth.KeySet
	limiter    *ratelimit.Limiter

	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	addr         net.Addr
	isRunning    bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for the server and its handlers.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics mounts the collector's Prometheus handler at path.
func WithMetrics(c *metrics.Collector, path string) Option {
	return func(s *Server) {
		s.metrics = c
		s.metricsURL = path
	}
}

// WithHealth serves /health and /ready from checker.
func WithHealth(checker *health.Checker) Option {
	return func(s *Server) { s.health = checker }
}

// WithVersion serves /version with the given build information.
func WithVersion(version, commit, buildTime string) Option {
	return func(s *Server) { s.version = [3]string{version, commit, buildTime} }
}

// New creates a server for gw. Without WithHealth a checker with no
// readiness checks is used.
func New(cfg config.ServerConfig, gw Gateway, opts ...Option) *Server {
	s := &Server{
		config:    cfg,
		gateway:   gw,
		logger:    slog.Default(),
		adminKeys: auth.NewKeySet(cfg.Auth.AdminKeys),
		limiter:   ratelimit.New(cfg.RateLimit),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.health == nil {
		s.health = health.New(0)
	}
	if s.metricsURL == "" {
		s.metricsURL = "/metrics"
	}
	s.logger = s.logger.With("component", "server")
	return s
}

// Start listens on the configured address and serves until ctx is
// cancelled or the listener fails. On cancellation it shuts down
// gracefully within ShutdownTimeout.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	s.httpServer = &http.Server{
		Handler:      s.setupRoutes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.addr = ln.Addr()
	s.isRunning = true
	s.mu.Unlock()

	go s.limiter.Run(ctx)

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting gateway server", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	}
}

// Shutdown stops accepting connections and waits for in-flight requests,
// bounded by ShutdownTimeout. Only the first call has an effect.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running, srv := s.isRunning, s.httpServer
		s.mu.RUnlock()
		if !running || srv == nil {
			return
		}

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx := ctx
		if s.config.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
			defer cancel()
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		s.logger.Info("gateway server stopped")
	})

	return shutdownErr
}

// setupRoutes builds the mux and wraps it in the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	var chat http.Handler = handlers.NewChatHandler(s.gateway, s.logger)
	chat = middleware.RateLimitMiddleware(s.limiter, s.logger)(chat)
	mux.Handle("/v1/chat/completions", chat)
	mux.Handle("/admin/", auth.Middleware(s.adminKeys, s.logger)(handlers.NewAdminHandler(s.gateway, s.logger)))
	mux.Handle("/health", s.health.LivenessHandler())
	mux.Handle("/ready", s.health.ReadinessHandler())
	if s.version[0] != "" {
		mux.Handle("/version", health.VersionHandler(s.version[0], s.version[1], s.version[2]))
	}
	if s.metrics.Enabled() {
		mux.Handle(s.metricsURL, s.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = tracing.HTTPMiddleware(handler)
	handler = middleware.LoggingMiddleware(s.logger)(handler)
	handler = middleware.RecoveryMiddleware(s.logger)(handler)
	handler = middleware.RequestIDMiddleware(handler)
	return handler
}

// Addr returns the bound listen address while running, or nil.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the routed handler with the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}
