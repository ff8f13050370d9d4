package gateway

import (
	"context"
	"errors"
	"time"
)

// loadState restores metrics and circuit state from the store.
func (g *Gateway) loadState() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	m, err := g.store.LoadMetrics(ctx)
	switch {
	case err != nil:
		g.persistFailed(err)
		g.logger.Warn("starting with zeroed usage metrics")
	case m != nil:
		g.tracker.Restore(*m)
		g.logger.Info("usage metrics restored",
			"daily_units", m.DailyUnits,
			"daily_cost", m.DailyCost,
			"last_updated", m.LastUpdated,
		)
	}

	s, err := g.store.LoadCircuitState(ctx)
	switch {
	case err != nil:
		g.persistFailed(err)
		g.logger.Warn("starting with a closed circuit breaker")
	case s != nil:
		g.breaker.Restore(*s)
		g.logger.Info("circuit state restored", "state", s.State, "open_reason", s.OpenReason)
	}
}

// persistAsync saves the current state in the background. Saves are
// serialized and each one reads the state when it runs, so a later save never
// writes an older snapshot.
func (g *Gateway) persistAsync() {
	g.lifecycleMu.Lock()
	defer g.lifecycleMu.Unlock()
	if g.closed.Load() {
		return
	}
	g.persistWG.Add(1)
	go func() {
		defer g.persistWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		_ = g.persist(ctx)
	}()
}

// persist saves metrics and circuit state. Failures are logged and counted.
func (g *Gateway) persist(ctx context.Context) error {
	g.persistMu.Lock()
	defer g.persistMu.Unlock()

	var errs []error
	if err := g.store.SaveMetrics(ctx, g.tracker.Snapshot()); err != nil {
		g.persistFailed(err)
		errs = append(errs, err)
	}
	if err := g.store.SaveCircuitState(ctx, g.breaker.Snapshot()); err != nil {
		g.persistFailed(err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (g *Gateway) runSnapshot(ctx context.Context) {
	sctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	_ = g.persist(sctx)

	if n, err := g.cache.Len(sctx); err == nil {
		g.metrics.UpdateCacheSize(n)
	}
	g.publishBudget()
}

func (g *Gateway) runPrune(ctx context.Context) {
	n, err := g.PruneUsageRecords(ctx)
	if err != nil {
		return
	}
	if n > 0 {
		g.logger.Info("usage records pruned", "deleted_count", n)
	}
}

// PruneUsageRecords deletes audit records older than the configured
// retention. A retention of 0 keeps everything.
func (g *Gateway) PruneUsageRecords(ctx context.Context) (int, error) {
	g.cfgMu.RLock()
	days := g.cfg.Storage.RetentionDays
	g.cfgMu.RUnlock()
	if days <= 0 {
		return 0, nil
	}

	cutoff := g.now().Add(-time.Duration(days) * 24 * time.Hour)
	n, err := g.store.PruneUsageRecords(ctx, cutoff)
	if err != nil {
		g.persistFailed(err)
		return 0, err
	}
	return n, nil
}
