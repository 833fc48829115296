package jobs

import (
	"context"
	"time"
)

// MarkupFetcher retrieves the raw markup of the job board page.
type MarkupFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// ListingExtractor splits board markup into ordered listing fragments.
type ListingExtractor interface {
	Extract(markup string) ([]RawListing, error)
}

// FieldExtractor derives structured fields from one listing fragment. Alternate
// boards plug in their own strategy.
type FieldExtractor interface {
	Extract(listing RawListing) (Fields, error)
}

// KeyResolver is implemented by field extractors that can read a listing's
// URL without parsing its other fields.
type KeyResolver interface {
	ResolveKey(listing RawListing) (string, error)
}

// PageRenderer loads a listing's own page, optionally in a headless browser.
type PageRenderer interface {
	Render(ctx context.Context, url string, headless bool) (string, error)
}

// TextExtractor derives plain text from page markup.
type TextExtractor interface {
	Extract(markup string) (string, error)
}

// Enricher fetches and derives the enrichment payloads for a listing URL.
type Enricher interface {
	Enrich(ctx context.Context, url string) (Enrichment, error)
}

// KeyReader returns the URLs already recorded, one per stored row.
type KeyReader interface {
	ReadKeys(ctx context.Context) ([]string, error)
}

// TabularWriter writes rows starting at the given 1-based row.
type TabularWriter interface {
	AppendRows(ctx context.Context, startRow int, rows [][]any) error
}

// BlobWriter stores one named payload.
type BlobWriter interface {
	WriteBlob(ctx context.Context, name string, content []byte) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// RunRecorder keeps a ledger of runs. Ledger failures never fail a run.
type RunRecorder interface {
	StartRun(ctx context.Context, runID string, startedAt time.Time) error
	FinishRun(ctx context.Context, runID string, finishedAt time.Time, stats RunStats, runErr error) error
}
