package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"mercator-hq/tollgate/pkg/limits/breaker"
	"mercator-hq/tollgate/pkg/limits/budget"
)

// SQLiteBackend implements Backend using SQLite for persistence.
// It provides durable storage for single-instance deployments where usage
// must survive restarts.
//
// The database runs on a single connection, since SQLite allows one writer.
// In WAL mode a background loop checkpoints the log periodically.
type SQLiteBackend struct {
	db                 *sql.DB
	dbPath             string
	checkpointInterval time.Duration
	walMode            bool
	done               chan struct{}
	closeOnce          sync.Once

	// preparedStatements contains pre-compiled SQL statements for performance
	loadMetricsStmt  *sql.Stmt
	saveMetricsStmt  *sql.Stmt
	loadCircuitStmt  *sql.Stmt
	saveCircuitStmt  *sql.Stmt
	appendRecordStmt *sql.Stmt
	listRecordsStmt  *sql.Stmt
	pruneRecordsStmt *sql.Stmt
}

// SQLiteBackendConfig configures the SQLite backend.
type SQLiteBackendConfig struct {
	// DBPath is the path to the SQLite database file. Parent directories
	// are created if missing.
	DBPath string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// WALMode enables write-ahead logging.
	WALMode bool

	// CheckpointInterval is how often to checkpoint the WAL.
	// Default: 5 minutes
	CheckpointInterval time.Duration
}

// NewSQLiteBackend creates a new SQLite storage backend with default settings.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	return NewSQLiteBackendWithConfig(SQLiteBackendConfig{
		DBPath:             dbPath,
		BusyTimeout:        5 * time.Second,
		WALMode:            true,
		CheckpointInterval: 5 * time.Minute,
	})
}

// NewSQLiteBackendWithConfig creates a new SQLite backend with custom configuration.
func NewSQLiteBackendWithConfig(cfg SQLiteBackendConfig) (*SQLiteBackend, error) {
	if cfg.DBPath == "" {
		return nil, persistErr("open", fmt.Errorf("db path cannot be empty"))
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = 5 * time.Minute
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, persistErr("open", fmt.Errorf("failed to create database directory: %w", err))
		}
	}

	journal := "DELETE"
	if cfg.WALMode {
		journal = "WAL"
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(%s)&_pragma=synchronous(NORMAL)",
		cfg.DBPath, cfg.BusyTimeout.Milliseconds(), journal)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, persistErr("open", fmt.Errorf("failed to open database: %w", err))
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite only supports single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	backend := &SQLiteBackend{
		db:                 db,
		dbPath:             cfg.DBPath,
		checkpointInterval: cfg.CheckpointInterval,
		walMode:            cfg.WALMode,
		done:               make(chan struct{}),
	}

	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, persistErr("open", fmt.Errorf("failed to initialize schema: %w", err))
	}

	if err := backend.prepareStatements(); err != nil {
		db.Close()
		return nil, persistErr("open", fmt.Errorf("failed to prepare statements: %w", err))
	}

	if backend.walMode {
		go backend.checkpointLoop()
	}

	return backend, nil
}

// initSchema creates the database schema if it doesn't exist.
func (s *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_metrics (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		daily_units INTEGER NOT NULL,
		weekly_units INTEGER NOT NULL,
		monthly_units INTEGER NOT NULL,
		daily_cost REAL NOT NULL,
		weekly_cost REAL NOT NULL,
		monthly_cost REAL NOT NULL,
		last_updated INTEGER NOT NULL,
		per_model TEXT
	);

	CREATE TABLE IF NOT EXISTS circuit_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		state TEXT NOT NULL,
		last_transition_at INTEGER NOT NULL,
		open_reason TEXT,
		cooldown_until INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS usage_records (
		id TEXT PRIMARY KEY,
		timestamp INTEGER NOT NULL,
		requested_model TEXT NOT NULL,
		model TEXT NOT NULL,
		prompt_units INTEGER NOT NULL,
		completion_units INTEGER NOT NULL,
		cost REAL NOT NULL,
		estimated INTEGER NOT NULL,
		fallback INTEGER NOT NULL,
		request_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_usage_records_timestamp ON usage_records(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// prepareStatements prepares SQL statements for reuse.
func (s *SQLiteBackend) prepareStatements() error {
	var err error

	s.loadMetricsStmt, err = s.db.Prepare(`
		SELECT daily_units, weekly_units, monthly_units, daily_cost, weekly_cost, monthly_cost, last_updated, per_model
		FROM usage_metrics WHERE id = 1
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare load metrics statement: %w", err)
	}

	s.saveMetricsStmt, err = s.db.Prepare(`
		INSERT INTO usage_metrics (id, daily_units, weekly_units, monthly_units, daily_cost, weekly_cost, monthly_cost, last_updated, per_model)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			daily_units = excluded.daily_units,
			weekly_units = excluded.weekly_units,
			monthly_units = excluded.monthly_units,
			daily_cost = excluded.daily_cost,
			weekly_cost = excluded.weekly_cost,
			monthly_cost = excluded.monthly_cost,
			last_updated = excluded.last_updated,
			per_model = excluded.per_model
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare save metrics statement: %w", err)
	}

	s.loadCircuitStmt, err = s.db.Prepare(`
		SELECT state, last_transition_at, open_reason, cooldown_until
		FROM circuit_state WHERE id = 1
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare load circuit statement: %w", err)
	}

	s.saveCircuitStmt, err = s.db.Prepare(`
		INSERT INTO circuit_state (id, state, last_transition_at, open_reason, cooldown_until)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			state = excluded.state,
			last_transition_at = excluded.last_transition_at,
			open_reason = excluded.open_reason,
			cooldown_until = excluded.cooldown_until
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare save circuit statement: %w", err)
	}

	s.appendRecordStmt, err = s.db.Prepare(`
		INSERT INTO usage_records (id, timestamp, requested_model, model, prompt_units, completion_units, cost, estimated, fallback, request_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare append record statement: %w", err)
	}

	s.listRecordsStmt, err = s.db.Prepare(`
		SELECT id, timestamp, requested_model, model, prompt_units, completion_units, cost, estimated, fallback, request_id
		FROM usage_records
		WHERE timestamp >= ?
		ORDER BY timestamp ASC, rowid ASC
		LIMIT ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare list records statement: %w", err)
	}

	s.pruneRecordsStmt, err = s.db.Prepare(`
		DELETE FROM usage_records WHERE timestamp < ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare prune records statement: %w", err)
	}

	return nil
}

// LoadMetrics returns the persisted usage metrics, or nil when none exist.
func (s *SQLiteBackend) LoadMetrics(ctx context.Context) (*budget.UsageMetrics, error) {
	var (
		m           budget.UsageMetrics
		lastUpdated int64
		perModel    sql.NullString
	)

	err := s.loadMetricsStmt.QueryRowContext(ctx).Scan(
		&m.DailyUnits,
		&m.WeeklyUnits,
		&m.MonthlyUnits,
		&m.DailyCost,
		&m.WeeklyCost,
		&m.MonthlyCost,
		&lastUpdated,
		&perModel,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr("load_metrics", err)
	}

	m.LastUpdated = fromUnixNano(lastUpdated)
	m.PerModel = make(map[string]budget.ModelUsage)
	if perModel.Valid && perModel.String != "" {
		if err := json.Unmarshal([]byte(perModel.String), &m.PerModel); err != nil {
			return nil, persistErr("load_metrics", fmt.Errorf("failed to unmarshal per-model usage: %w", err))
		}
	}

	return &m, nil
}

// SaveMetrics replaces the persisted usage metrics.
func (s *SQLiteBackend) SaveMetrics(ctx context.Context, m budget.UsageMetrics) error {
	perModel, err := json.Marshal(m.PerModel)
	if err != nil {
		return persistErr("save_metrics", fmt.Errorf("failed to marshal per-model usage: %w", err))
	}

	_, err = s.saveMetricsStmt.ExecContext(ctx,
		m.DailyUnits,
		m.WeeklyUnits,
		m.MonthlyUnits,
		m.DailyCost,
		m.WeeklyCost,
		m.MonthlyCost,
		toUnixNano(m.LastUpdated),
		string(perModel),
	)
	return persistErr("save_metrics", err)
}

// LoadCircuitState returns the persisted breaker state, or nil when none exists.
func (s *SQLiteBackend) LoadCircuitState(ctx context.Context) (*breaker.Snapshot, error) {
	var (
		state          string
		lastTransition int64
		openReason     sql.NullString
		cooldownUntil  int64
	)

	err := s.loadCircuitStmt.QueryRowContext(ctx).Scan(&state, &lastTransition, &openReason, &cooldownUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr("load_circuit_state", err)
	}

	return &breaker.Snapshot{
		State:            breaker.State(state),
		LastTransitionAt: fromUnixNano(lastTransition),
		OpenReason:       breaker.Reason(openReason.String),
		CooldownUntil:    fromUnixNano(cooldownUntil),
	}, nil
}

// SaveCircuitState replaces the persisted breaker state.
func (s *SQLiteBackend) SaveCircuitState(ctx context.Context, snap breaker.Snapshot) error {
	_, err := s.saveCircuitStmt.ExecContext(ctx,
		string(snap.State),
		toUnixNano(snap.LastTransitionAt),
		string(snap.OpenReason),
		toUnixNano(snap.CooldownUntil),
	)
	return persistErr("save_circuit_state", err)
}

// AppendUsageRecord adds one entry to the audit log.
func (s *SQLiteBackend) AppendUsageRecord(ctx context.Context, r UsageRecord) error {
	if r.ID == "" {
		return persistErr("append_usage_record", fmt.Errorf("record id cannot be empty"))
	}

	_, err := s.appendRecordStmt.ExecContext(ctx,
		r.ID,
		toUnixNano(r.Timestamp),
		r.RequestedModel,
		r.Model,
		r.PromptUnits,
		r.CompletionUnits,
		r.Cost,
		r.Estimated,
		r.Fallback,
		r.RequestID,
	)
	return persistErr("append_usage_record", err)
}

// ListUsageRecords returns records at or after since, oldest first.
func (s *SQLiteBackend) ListUsageRecords(ctx context.Context, since time.Time, limit int) ([]UsageRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.listRecordsStmt.QueryContext(ctx, toUnixNano(since), limit)
	if err != nil {
		return nil, persistErr("list_usage_records", err)
	}
	defer rows.Close()

	var records []UsageRecord
	for rows.Next() {
		var (
			r         UsageRecord
			ts        int64
			requestID sql.NullString
		)
		if err := rows.Scan(
			&r.ID,
			&ts,
			&r.RequestedModel,
			&r.Model,
			&r.PromptUnits,
			&r.CompletionUnits,
			&r.Cost,
			&r.Estimated,
			&r.Fallback,
			&requestID,
		); err != nil {
			return nil, persistErr("list_usage_records", fmt.Errorf("failed to scan row: %w", err))
		}
		r.Timestamp = fromUnixNano(ts)
		r.RequestID = requestID.String
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, persistErr("list_usage_records", fmt.Errorf("error iterating rows: %w", err))
	}

	return records, nil
}

// PruneUsageRecords deletes records older than before.
func (s *SQLiteBackend) PruneUsageRecords(ctx context.Context, before time.Time) (int, error) {
	result, err := s.pruneRecordsStmt.ExecContext(ctx, toUnixNano(before))
	if err != nil {
		return 0, persistErr("prune_usage_records", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, persistErr("prune_usage_records", fmt.Errorf("failed to get rows affected: %w", err))
	}

	return int(deleted), nil
}

// Close releases any resources held by the backend.
// Close is idempotent and safe to call multiple times.
func (s *SQLiteBackend) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		// Signal checkpoint goroutine to stop
		close(s.done)

		for _, stmt := range []*sql.Stmt{
			s.loadMetricsStmt,
			s.saveMetricsStmt,
			s.loadCircuitStmt,
			s.saveCircuitStmt,
			s.appendRecordStmt,
			s.listRecordsStmt,
			s.pruneRecordsStmt,
		} {
			if stmt != nil {
				stmt.Close()
			}
		}

		if s.db != nil {
			if s.walMode {
				_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			}
			closeErr = persistErr("close", s.db.Close())
		}
	})

	return closeErr
}

// checkpointLoop runs periodic WAL checkpoints.
func (s *SQLiteBackend) checkpointLoop() {
	ticker := time.NewTicker(s.checkpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
		case <-s.done:
			return
		}
	}
}

// toUnixNano stores the zero time as 0 so it round-trips.
func toUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
