// Package pipeline runs one scrape: fetch the board, skip known listings,
// enrich the new ones under the retry controller, then persist the batch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-scraper/internal/dispatch"
	"github.com/JakeFAU/jobboard-scraper/internal/jobs"
	"github.com/JakeFAU/jobboard-scraper/internal/logging"
	"github.com/JakeFAU/jobboard-scraper/internal/metrics"
	"github.com/JakeFAU/jobboard-scraper/internal/notify"
	"github.com/JakeFAU/jobboard-scraper/internal/retry"
)

// Config holds the per-run settings.
type Config struct {
	BoardURL string
	RunID    string
	Retry    retry.Policy
}

// Deps are the collaborators of a run. Notifier and Runs are optional.
type Deps struct {
	Fetcher  jobs.MarkupFetcher
	Listings jobs.ListingExtractor
	Fields   jobs.FieldExtractor
	Keys     jobs.KeyReader
	Enricher jobs.Enricher
	Tabular  jobs.TabularWriter
	Blobs    jobs.BlobWriter
	Clock    jobs.Clock
	Notifier *notify.Notifier
	Runs     jobs.RunRecorder
	// Sleeper replaces the wall-clock retry wait.
	Sleeper retry.Sleeper
}

// Summary describes a finished (or aborted) run.
type Summary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	jobs.RunStats
	Blobs     int
	Announced int
	Records   []jobs.Record
}

// Pipeline executes runs. It is not safe for concurrent Run calls.
type Pipeline struct {
	cfg        Config
	deps       Deps
	retry      *retry.Controller
	dispatcher *dispatch.Dispatcher
	logger     *zap.Logger
}

// New validates deps and builds a Pipeline.
func New(cfg Config, deps Deps, logger *zap.Logger) (*Pipeline, error) {
	switch {
	case cfg.BoardURL == "":
		return nil, fmt.Errorf("board url is required")
	case deps.Fetcher == nil:
		return nil, fmt.Errorf("markup fetcher is required")
	case deps.Listings == nil:
		return nil, fmt.Errorf("listing extractor is required")
	case deps.Fields == nil:
		return nil, fmt.Errorf("field extractor is required")
	case deps.Keys == nil:
		return nil, fmt.Errorf("key reader is required")
	case deps.Enricher == nil:
		return nil, fmt.Errorf("enricher is required")
	case deps.Tabular == nil || deps.Blobs == nil:
		return nil, fmt.Errorf("tabular and blob writers are required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logging.ForRun(logger, cfg.RunID)

	p := &Pipeline{
		cfg:        cfg,
		deps:       deps,
		dispatcher: dispatch.New(deps.Tabular, deps.Blobs, logger.Named("dispatch")),
		logger:     logger,
	}
	opts := []retry.Option{retry.WithObserver(observeAttempt)}
	if deps.Sleeper != nil {
		opts = append(opts, retry.WithSleeper(deps.Sleeper))
	}
	p.retry = retry.New(cfg.Retry, logger.Named("retry"), opts...)
	return p, nil
}

// Run performs one scrape. Fetch, extraction and key-read failures abort
// before anything is persisted. The returned Summary is filled in either way.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	sum := Summary{RunID: p.cfg.RunID, StartedAt: p.deps.Clock.Now()}
	p.startLedger(ctx, sum.StartedAt)
	p.logger.Info("run started", zap.String("board", p.cfg.BoardURL))

	err := p.run(ctx, &sum)

	sum.FinishedAt = p.deps.Clock.Now()
	metrics.ObserveRun(err == nil, sum.FinishedAt.Sub(sum.StartedAt), sum.FinishedAt)
	p.finishLedger(ctx, sum, err)

	fields := []zap.Field{
		zap.Int("seen", sum.Seen),
		zap.Int("existing", sum.Existing),
		zap.Int("duplicate", sum.Duplicate),
		zap.Int("dropped", sum.Dropped),
		zap.Int("new", sum.New),
		zap.Int("persisted", sum.Persisted),
		zap.Int("blobs", sum.Blobs),
	}
	if err != nil {
		p.logger.Error("run failed", append(fields, zap.String("kind", string(jobs.KindOf(err))), zap.Error(err))...)
		return sum, err
	}
	p.logger.Info("run finished", fields...)
	return sum, nil
}

func (p *Pipeline) run(ctx context.Context, sum *Summary) error {
	markup, err := p.deps.Fetcher.Fetch(ctx, p.cfg.BoardURL)
	if err != nil {
		return classify(jobs.ErrFetch, err)
	}
	listings, err := p.deps.Listings.Extract(markup)
	if err != nil {
		return classify(jobs.ErrFetch, err)
	}
	sum.Seen = len(listings)
	p.logger.Info("listings extracted", zap.Int("listings", len(listings)))

	urls, err := p.deps.Keys.ReadKeys(ctx)
	if err != nil {
		return classify(jobs.ErrReadExistingKeys, err)
	}
	existing := jobs.NewKeySet(urls)
	p.logger.Info("existing keys loaded", zap.Int("rows", existing.Len()))

	batch := jobs.NewBatch(existing.Len())
	for i, listing := range listings {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run interrupted after %d of %d listings: %w", i, len(listings), err)
		}
		p.process(ctx, listing, existing, batch, &sum.RunStats)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted before persistence: %w", err)
	}

	res, err := p.dispatcher.Dispatch(ctx, batch)
	sum.Persisted = res.Rows
	sum.Blobs = res.Blobs
	metrics.ObservePersisted(res.Rows, res.Blobs)
	if err != nil {
		return err
	}

	sum.Records = batch.Records()
	sum.Announced = p.deps.Notifier.Announce(ctx, p.cfg.RunID, sum.Records)
	return nil
}

type skipReason int

const (
	notSkipped skipReason = iota
	skipExisting
	skipDuplicate
)

func (p *Pipeline) process(
	ctx context.Context,
	listing jobs.RawListing,
	existing jobs.KeySet,
	batch *jobs.Batch,
	stats *jobs.RunStats,
) {
	var reason skipReason
	known := func(url string) bool {
		switch {
		case existing.Contains(url):
			reason = skipExisting
		case batch.Contains(url):
			reason = skipDuplicate
		default:
			return false
		}
		return true
	}
	resolver, _ := p.deps.Fields.(jobs.KeyResolver)

	op := func(ctx context.Context, _ int) retry.Result[jobs.Record] {
		capturedAt := p.deps.Clock.Now()
		// Known listings are skipped before their remaining fields are validated.
		if resolver != nil {
			key, err := resolver.ResolveKey(listing)
			if err != nil {
				return retry.Failure[jobs.Record](err)
			}
			if known(key) {
				return retry.Skip[jobs.Record]()
			}
		}
		f, err := p.deps.Fields.Extract(listing)
		if err != nil {
			return retry.Failure[jobs.Record](err)
		}
		if known(f.URL) {
			return retry.Skip[jobs.Record]()
		}
		enrichment, err := p.deps.Enricher.Enrich(ctx, f.URL)
		if err != nil {
			return retry.Failure[jobs.Record](err)
		}
		return retry.Success(jobs.Record{CapturedAt: capturedAt, Fields: f, Enrichment: enrichment})
	}

	out := retry.Run(ctx, p.retry, op,
		zap.Int("group", listing.Group),
		zap.Int("index", listing.Index),
	)
	switch out.State {
	case retry.Succeeded:
		rec := batch.Append(out.Value)
		stats.New++
		metrics.ObserveListing(metrics.OutcomeNew)
		p.logger.Info("new job", zap.Int("id", rec.ID), zap.String("url", rec.URL), zap.String("title", rec.Title))
	case retry.Skipped:
		if reason == skipDuplicate {
			stats.Duplicate++
			metrics.ObserveListing(metrics.OutcomeDuplicate)
			return
		}
		stats.Existing++
		metrics.ObserveListing(metrics.OutcomeExisting)
	case retry.Exhausted:
		stats.Dropped++
		metrics.ObserveListing(metrics.OutcomeDropped)
	}
}

func observeAttempt(state retry.State, attempt int, err error) {
	switch state {
	case retry.Attempting:
		if attempt > 1 {
			metrics.ObserveAttempt(string(jobs.KindOf(err)))
		}
	case retry.Exhausted:
		metrics.ObserveAttempt(string(jobs.KindOf(err)))
	case retry.Succeeded, retry.Skipped:
		metrics.ObserveAttempt("")
	}
}

func (p *Pipeline) startLedger(ctx context.Context, at time.Time) {
	if p.deps.Runs == nil {
		return
	}
	if err := p.deps.Runs.StartRun(ctx, p.cfg.RunID, at); err != nil {
		p.logger.Warn("run ledger start failed", zap.Error(err))
	}
}

func (p *Pipeline) finishLedger(ctx context.Context, sum Summary, runErr error) {
	if p.deps.Runs == nil {
		return
	}
	if err := p.deps.Runs.FinishRun(context.WithoutCancel(ctx), p.cfg.RunID, sum.FinishedAt, sum.RunStats, runErr); err != nil {
		p.logger.Warn("run ledger finish failed", zap.Error(err))
	}
}

// classify wraps err in kind unless it already carries it.
func classify(kind, err error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
