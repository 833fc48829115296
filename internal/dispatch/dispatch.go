// Package dispatch writes a finished batch to the tabular store and the blob
// store.
package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-scraper/internal/jobs"
)

// Result reports how far a dispatch got. It is meaningful on error too.
type Result struct {
	Rows  int
	Blobs int
}

// Dispatcher persists batches. It never retries and never rolls back.
type Dispatcher struct {
	tabular jobs.TabularWriter
	blobs   jobs.BlobWriter
	logger  *zap.Logger
}

// New creates a Dispatcher.
func New(tabular jobs.TabularWriter, blobs jobs.BlobWriter, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{tabular: tabular, blobs: blobs, logger: logger}
}

// Dispatch writes every row in one call starting at the batch's first id,
// then the two blobs of each record in batch order. The first failure is
// returned wrapped in jobs.ErrPersistence.
func (d *Dispatcher) Dispatch(ctx context.Context, batch *jobs.Batch) (Result, error) {
	var res Result
	if batch == nil || batch.Len() == 0 {
		d.logger.Info("no new jobs to persist")
		return res, nil
	}
	if d.tabular == nil || d.blobs == nil {
		return res, fmt.Errorf("%w: dispatcher is not configured", jobs.ErrPersistence)
	}

	rows := batch.Rows()
	if err := d.tabular.AppendRows(ctx, batch.StartID(), rows); err != nil {
		return res, fmt.Errorf("%w: write rows at %d: %w", jobs.ErrPersistence, batch.StartID(), err)
	}
	res.Rows = len(rows)
	d.logger.Info("rows persisted", zap.Int("start_row", batch.StartID()), zap.Int("rows", res.Rows))

	for _, rec := range batch.Records() {
		payloads := []struct {
			kind string
			body string
		}{
			{jobs.BlobKindSourceCode, rec.RawMarkup},
			{jobs.BlobKindText, rec.PlainText},
		}
		for _, p := range payloads {
			name := rec.BlobName(p.kind)
			if err := d.blobs.WriteBlob(ctx, name, []byte(p.body)); err != nil {
				return res, fmt.Errorf("%w: write blob %s: %w", jobs.ErrPersistence, name, err)
			}
			res.Blobs++
		}
		d.logger.Debug("blobs persisted", zap.Int("id", rec.ID), zap.String("url", rec.URL))
	}
	d.logger.Info("blobs persisted", zap.Int("blobs", res.Blobs))
	return res, nil
}
