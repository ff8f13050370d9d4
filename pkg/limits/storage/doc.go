// Package storage persists gateway state.
//
// # Overview
//
// A Backend stores three things:
//
//   - the budget tracker's usage metrics, including the per-model breakdown
//   - the circuit breaker state
//   - the append-only audit log of usage records
//
// Two implementations are provided:
//
//   - Memory: fast in-memory storage (default, no persistence)
//   - SQLite: file-based persistence via modernc.org/sqlite, with WAL mode,
//     a busy timeout, a single connection and prepared statements
//
// Every failure is returned as a *PersistenceError naming the operation.
// Callers treat persistence as best effort.
//
// # Usage
//
//	backend, err := storage.New(cfg.Storage)
//	if err != nil {
//	    return err
//	}
//	defer backend.Close()
//
//	if err := backend.SaveMetrics(ctx, tracker.Snapshot()); err != nil {
//	    logger.Warn("failed to persist metrics", "error", err)
//	}
//
// # Thread Safety
//
// All storage backends are thread-safe and support concurrent access
// from multiple goroutines.
package storage
