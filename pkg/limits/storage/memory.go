package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"mercator-hq/tollgate/pkg/limits/breaker"
	"mercator-hq/tollgate/pkg/limits/budget"
)

// MemoryBackend implements Backend using in-memory storage.
// This is the default backend and provides fast access with no persistence.
// All data is lost when the process exits.
//
// MemoryBackend is thread-safe and supports concurrent access using sync.RWMutex.
type MemoryBackend struct {
	mu sync.RWMutex

	metrics *budget.UsageMetrics
	circuit *breaker.Snapshot
	records []UsageRecord
	closed  bool
}

// NewMemoryBackend creates a new in-memory storage backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// LoadMetrics returns a copy of the saved metrics.
func (m *MemoryBackend) LoadMetrics(ctx context.Context) (*budget.UsageMetrics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.checkLocked(ctx); err != nil {
		return nil, persistErr("load_metrics", err)
	}
	if m.metrics == nil {
		return nil, nil
	}
	out := m.metrics.Clone()
	return &out, nil
}

// SaveMetrics stores a copy of metrics.
func (m *MemoryBackend) SaveMetrics(ctx context.Context, metrics budget.UsageMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkLocked(ctx); err != nil {
		return persistErr("save_metrics", err)
	}
	c := metrics.Clone()
	m.metrics = &c
	return nil
}

// LoadCircuitState returns the saved breaker state.
func (m *MemoryBackend) LoadCircuitState(ctx context.Context) (*breaker.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.checkLocked(ctx); err != nil {
		return nil, persistErr("load_circuit_state", err)
	}
	if m.circuit == nil {
		return nil, nil
	}
	s := *m.circuit
	return &s, nil
}

// SaveCircuitState stores the breaker state.
func (m *MemoryBackend) SaveCircuitState(ctx context.Context, s breaker.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkLocked(ctx); err != nil {
		return persistErr("save_circuit_state", err)
	}
	m.circuit = &s
	return nil
}

// AppendUsageRecord appends r to the audit log.
func (m *MemoryBackend) AppendUsageRecord(ctx context.Context, r UsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkLocked(ctx); err != nil {
		return persistErr("append_usage_record", err)
	}
	m.records = append(m.records, r)
	return nil
}

// ListUsageRecords returns matching records, oldest first.
func (m *MemoryBackend) ListUsageRecords(ctx context.Context, since time.Time, limit int) ([]UsageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.checkLocked(ctx); err != nil {
		return nil, persistErr("list_usage_records", err)
	}

	var out []UsageRecord
	for _, r := range m.records {
		if !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PruneUsageRecords removes records older than before.
func (m *MemoryBackend) PruneUsageRecords(ctx context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkLocked(ctx); err != nil {
		return 0, persistErr("prune_usage_records", err)
	}

	kept := m.records[:0]
	for _, r := range m.records {
		if !r.Timestamp.Before(before) {
			kept = append(kept, r)
		}
	}
	pruned := len(m.records) - len(kept)
	m.records = kept
	return pruned, nil
}

// Close marks the backend closed. It is idempotent.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryBackend) checkLocked(ctx context.Context) error {
	if m.closed {
		return ErrClosed
	}
	return ctx.Err()
}
