package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const jobColumns = 10

// JobStore reads existing posting URLs and inserts new posting rows.
type JobStore struct {
	pool   Pool
	table  string
	logger *zap.Logger
}

// NewJobStore wraps pool. An empty table name selects job_postings.
func NewJobStore(pool Pool, table string, logger *zap.Logger) (*JobStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table, defaultJobsTable)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobStore{pool: pool, table: name, logger: logger}, nil
}

// EnsureSchema creates the postings table when it is missing.
func (s *JobStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id            INTEGER PRIMARY KEY,
	url           TEXT NOT NULL,
	captured_at   TIMESTAMP NOT NULL,
	date_posted   TEXT NOT NULL,
	title         TEXT NOT NULL,
	organization  TEXT NOT NULL,
	location      TEXT NOT NULL,
	is_remote     BOOLEAN NOT NULL,
	is_flexible   BOOLEAN NOT NULL,
	is_hybrid     BOOLEAN NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// ReadKeys returns every stored URL in id order.
func (s *JobStore) ReadKeys(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT url FROM %s ORDER BY id", s.table))
	if err != nil {
		return nil, fmt.Errorf("query urls: %w", err)
	}
	urls, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan urls: %w", err)
	}
	return urls, nil
}

// AppendRows inserts rows in one transaction. Ids travel inside each row;
// startRow is only checked against the first row's id.
func (s *JobStore) AppendRows(ctx context.Context, startRow int, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	for i, row := range rows {
		if len(row) != jobColumns {
			return fmt.Errorf("row %d has %d columns, want %d", i, len(row), jobColumns)
		}
	}
	if id, ok := rows[0][0].(int); ok && id != startRow {
		return fmt.Errorf("first row id %d does not match start row %d", id, startRow)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	url,
	captured_at,
	date_posted,
	title,
	organization,
	location,
	is_remote,
	is_flexible,
	is_hybrid
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)`, s.table)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	for _, row := range rows {
		if _, err := tx.Exec(ctx, query, row...); err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				return fmt.Errorf("insert posting: %w (rollback: %v)", err, rbErr)
			}
			return fmt.Errorf("insert posting: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	s.logger.Info("rows written", zap.String("table", s.table), zap.Int("start_row", startRow), zap.Int("rows", len(rows)))
	return nil
}
