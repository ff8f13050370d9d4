// Package health provides liveness, readiness and version endpoints.
//
// Liveness (/health) answers 200 while the process runs. Readiness (/ready)
// runs every registered check concurrently, each under a timeout, and answers
// 503 when any fails. The gateway registers checks for its persistence store
// and cache backend.
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("storage", func(ctx context.Context) error {
//	    _, err := store.LoadMetrics(ctx)
//	    return err
//	})
//	mux.Handle("GET /ready", checker.ReadinessHandler())
package health
