// Package server is the HTTP front of the gateway.
//
// It serves:
//
//	POST /v1/chat/completions  OpenAI-compatible governed calls
//	/admin/...                 inspection and runtime adjustment
//	GET  /metrics              Prometheus exposition (configurable path)
//	GET  /health, /ready       liveness and readiness
//	GET  /version              build information
//
// The chat route is rate limited per remote host when
// server.rate_limit.requests_per_second is set. The admin routes require one
// of server.auth.admin_keys when that list is non-empty.
//
// Usage:
//
//	srv := server.New(cfg.Server, gw,
//	    server.WithLogger(logger),
//	    server.WithMetrics(collector, cfg.Telemetry.Metrics.Path),
//	    server.WithHealth(checker),
//	)
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//
// Start returns after a graceful shutdown; the caller closes the gateway
// afterwards so its final snapshot covers every served request.
package server
