package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/jobboard-scraper/internal/jobs"
)

// Run statuses written to the ledger.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// RunStore records one ledger row per scrape run.
type RunStore struct {
	pool  Pool
	table string
}

// NewRunStore wraps pool. An empty table name selects scrape_runs.
func NewRunStore(pool Pool, table string) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table, defaultRunsTable)
	if err != nil {
		return nil, err
	}
	return &RunStore{pool: pool, table: name}, nil
}

// EnsureSchema creates the ledger table when it is missing.
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id         UUID PRIMARY KEY,
	started_at     TIMESTAMPTZ NOT NULL,
	finished_at    TIMESTAMPTZ,
	status         TEXT NOT NULL,
	seen           INTEGER NOT NULL DEFAULT 0,
	existing       INTEGER NOT NULL DEFAULT 0,
	duplicate      INTEGER NOT NULL DEFAULT 0,
	dropped        INTEGER NOT NULL DEFAULT 0,
	new_records    INTEGER NOT NULL DEFAULT 0,
	persisted      INTEGER NOT NULL DEFAULT 0,
	error_message  TEXT
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// StartRun inserts the running row.
func (s *RunStore) StartRun(ctx context.Context, runID string, startedAt time.Time) error {
	query := fmt.Sprintf(`
INSERT INTO %s (run_id, started_at, status)
VALUES ($1, $2, $3)
ON CONFLICT (run_id) DO NOTHING`, s.table)
	if _, err := s.pool.Exec(ctx, query, runID, startedAt, RunRunning); err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// FinishRun closes the row with the final counts. A non-nil runErr marks the
// run failed.
func (s *RunStore) FinishRun(
	ctx context.Context,
	runID string,
	finishedAt time.Time,
	stats jobs.RunStats,
	runErr error,
) error {
	status := RunSucceeded
	var errMsg *string
	if runErr != nil {
		status = RunFailed
		msg := runErr.Error()
		errMsg = &msg
	}
	query := fmt.Sprintf(`
UPDATE %s
SET finished_at = $1, status = $2, seen = $3, existing = $4, duplicate = $5,
	dropped = $6, new_records = $7, persisted = $8, error_message = $9
WHERE run_id = $10`, s.table)
	tag, err := s.pool.Exec(ctx, query,
		finishedAt,
		status,
		stats.Seen,
		stats.Existing,
		stats.Duplicate,
		stats.Dropped,
		stats.New,
		stats.Persisted,
		errMsg,
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finish run: run %s was never started", runID)
	}
	return nil
}
