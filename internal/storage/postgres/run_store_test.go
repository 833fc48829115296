package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobboard-scraper/internal/jobs"
)

func TestRunStoreLifecycle(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRunStore(mock, "")
	require.NoError(t, err)

	runID := "0b5f5a2e-3c39-4a53-9f1c-6a7d1e0c9b11"
	started := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	finished := started.Add(2 * time.Minute)
	stats := jobs.RunStats{Seen: 10, Existing: 7, Duplicate: 1, Dropped: 1, New: 1, Persisted: 1}

	mock.ExpectExec("INSERT INTO scrape_runs").
		WithArgs(runID, started, RunRunning).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE scrape_runs").
		WithArgs(finished, RunSucceeded, 10, 7, 1, 1, 1, 1, (*string)(nil), runID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.StartRun(context.Background(), runID, started))
	require.NoError(t, store.FinishRun(context.Background(), runID, finished, stats, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStoreFinishFailedRun(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRunStore(mock, "runs")
	require.NoError(t, err)

	msg := "fetch: board unreachable"
	finished := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE runs").
		WithArgs(finished, RunFailed, 0, 0, 0, 0, 0, 0, &msg, "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = store.FinishRun(context.Background(), "run-1", finished, jobs.RunStats{}, errors.New(msg))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStoreFinishUnknownRun(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRunStore(mock, "")
	require.NoError(t, err)

	mock.ExpectExec("UPDATE scrape_runs").WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	err = store.FinishRun(context.Background(), "missing", time.Now(), jobs.RunStats{}, nil)
	require.ErrorContains(t, err, "never started")
}
