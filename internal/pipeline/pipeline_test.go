package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/jobboard-scraper/internal/clock/fake"
	"github.com/JakeFAU/jobboard-scraper/internal/fields"
	"github.com/JakeFAU/jobboard-scraper/internal/jobs"
	"github.com/JakeFAU/jobboard-scraper/internal/listing"
	"github.com/JakeFAU/jobboard-scraper/internal/notify"
	pubmemory "github.com/JakeFAU/jobboard-scraper/internal/publisher/memory"
	"github.com/JakeFAU/jobboard-scraper/internal/retry"
	"github.com/JakeFAU/jobboard-scraper/internal/storage/memory"
)

const boardURL = "https://board.example.org/jobs/"

var start = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type staticFetcher struct {
	markup string
	err    error
}

func (f staticFetcher) Fetch(context.Context, string) (string, error) {
	return f.markup, f.err
}

type failingKeys struct{}

func (failingKeys) ReadKeys(context.Context) ([]string, error) {
	return nil, errors.New("spreadsheet not found")
}

// scriptedEnricher fails the first failures[url] calls for url; -1 fails forever.
type scriptedEnricher struct {
	mu       sync.Mutex
	calls    map[string]int
	failures map[string]int
}

func newScriptedEnricher(failures map[string]int) *scriptedEnricher {
	if failures == nil {
		failures = map[string]int{}
	}
	return &scriptedEnricher{calls: map[string]int{}, failures: failures}
}

func (e *scriptedEnricher) Enrich(_ context.Context, url string) (jobs.Enrichment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls[url]++
	if n := e.failures[url]; n < 0 || e.calls[url] <= n {
		return jobs.Enrichment{}, fmt.Errorf("%w: %w: navigation timeout", jobs.ErrEnrichment, jobs.ErrRender)
	}
	return jobs.Enrichment{RawMarkup: "<html>" + url + "</html>", PlainText: "text of " + url}, nil
}

func (e *scriptedEnricher) Calls(url string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[url]
}

type failingBlobs struct{}

func (failingBlobs) WriteBlob(context.Context, string, []byte) error {
	return errors.New("storage quota exceeded")
}

type ledger struct {
	started  []string
	finished []jobs.RunStats
	errs     []error
}

func (l *ledger) StartRun(_ context.Context, runID string, _ time.Time) error {
	l.started = append(l.started, runID)
	return nil
}

func (l *ledger) FinishRun(_ context.Context, _ string, _ time.Time, stats jobs.RunStats, runErr error) error {
	l.finished = append(l.finished, stats)
	l.errs = append(l.errs, runErr)
	return nil
}

func item(url, date, composite string) string {
	return fmt.Sprintf(`<li><a href="%s">Job at %s</a> Posted: %s: %s</li>`, url, url, date, composite)
}

func board(groups ...[]string) string {
	var sb strings.Builder
	sb.WriteString("<html><body><h1>Jobs</h1>")
	for _, g := range groups {
		sb.WriteString("<ol>")
		for _, it := range g {
			sb.WriteString(it)
		}
		sb.WriteString("</ol>")
	}
	sb.WriteString("</body></html>")
	return sb.String()
}

func url(n int) string {
	return fmt.Sprintf("https://jobs.example.org/%d", n)
}

type harness struct {
	table    *memory.Table
	blobs    *memory.BlobStore
	enricher *scriptedEnricher
	sleeps   int
	deps     Deps
	cfg      Config
	logger   *zap.Logger
}

func newHarness(markup string, existing ...string) *harness {
	seed := make([][]any, 0, len(existing))
	for i, u := range existing {
		seed = append(seed, []any{i + 1, u})
	}
	h := &harness{
		table:    memory.NewTable(1, seed...),
		blobs:    memory.NewBlobStore(),
		enricher: newScriptedEnricher(nil),
		logger:   zap.NewNop(),
		cfg: Config{
			BoardURL: boardURL,
			RunID:    "run-1",
			Retry:    retry.Policy{MaxAttempts: 5, Delay: 10 * time.Second},
		},
	}
	h.deps = Deps{
		Fetcher:  staticFetcher{markup: markup},
		Listings: listing.New(listing.Config{MaxGroups: 2}, nil),
		Fields:   fields.Segments{},
		Keys:     h.table,
		Enricher: h.enricher,
		Tabular:  h.table,
		Blobs:    h.blobs,
		Clock:    fake.New(start, time.Minute),
		Sleeper: func(context.Context, time.Duration) error {
			h.sleeps++
			return nil
		},
	}
	return h
}

func (h *harness) run(t *testing.T) (Summary, error) {
	t.Helper()
	p, err := New(h.cfg, h.deps, h.logger)
	require.NoError(t, err)
	return p.Run(context.Background())
}

func (h *harness) newRows() [][]any {
	var out [][]any
	for _, row := range h.table.Rows() {
		if len(row) == 10 {
			out = append(out, row)
		}
	}
	return out
}

func TestRunSkipsExistingListingsWithoutEnriching(t *testing.T) {
	t.Parallel()

	markup := board([]string{
		item(url(1), "2024-01-01", "Acme Corp, Remote"),
		item(url(2), "2024-01-02", "Beta Labs, Denver, CO"),
	})
	h := newHarness(markup, url(1), url(2))

	sum, err := h.run(t)
	require.NoError(t, err)
	require.Empty(t, sum.Records)
	require.Equal(t, 2, sum.Existing)
	require.Zero(t, h.enricher.Calls(url(1)))
	require.Zero(t, h.enricher.Calls(url(2)))
	require.Empty(t, h.newRows())
	require.Empty(t, h.blobs.Writes())
}

func TestRunSkipsKnownListingWithMalformedTail(t *testing.T) {
	t.Parallel()

	markup := board([]string{
		`<li><a href="` + url(1) + `">RSE</a>: Acme, Remote</li>`,
		`<li><a href="` + url(2) + `">Developer</a>: Beta Labs, Denver <em>Posted: 2024-01-02</em></li>`,
	})
	h := newHarness(markup, url(1))
	h.deps.Fields = fields.USRSE{}

	sum, err := h.run(t)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Existing)
	require.Zero(t, sum.Dropped)
	require.Equal(t, 1, sum.New)
	require.Zero(t, h.sleeps)
	require.Zero(t, h.enricher.Calls(url(1)))
	require.Equal(t, []string{"2_source_code.txt", "2_text.txt"}, h.blobs.Writes())
}

func TestRunDropsUnknownListingWithMalformedTail(t *testing.T) {
	t.Parallel()

	markup := board([]string{`<li><a href="` + url(1) + `">RSE</a>: Acme, Remote</li>`})
	h := newHarness(markup)
	h.deps.Fields = fields.USRSE{}

	sum, err := h.run(t)
	require.NoError(t, err)
	require.Zero(t, sum.Existing)
	require.Equal(t, 1, sum.Dropped)
	require.Equal(t, 4, h.sleeps)
	require.Zero(t, h.enricher.Calls(url(1)))
}

func TestRunRerunIsIdempotent(t *testing.T) {
	t.Parallel()

	markup := board([]string{item(url(1), "2024-01-01", "Acme Corp, Remote")})
	h := newHarness(markup)

	first, err := h.run(t)
	require.NoError(t, err)
	require.Equal(t, 1, first.New)

	second, err := h.run(t)
	require.NoError(t, err)
	require.Zero(t, second.New)
	require.Equal(t, 1, second.Existing)
	require.Equal(t, 1, h.enricher.Calls(url(1)))
	require.Len(t, h.table.Rows(), 1)
}

func TestRunAssignsContiguousIDsAfterExisting(t *testing.T) {
	t.Parallel()

	markup := board(
		[]string{item(url(10), "d", "A, Remote"), item(url(1), "d", "A, Remote"), item(url(11), "d", "B, Hybrid")},
		[]string{item(url(12), "d", "C, Flexible"), item(url(13), "d", "D")},
	)
	h := newHarness(markup, url(1), url(2), url(3))

	sum, err := h.run(t)
	require.NoError(t, err)
	require.Len(t, sum.Records, 4)
	for i, rec := range sum.Records {
		require.Equal(t, 4+i, rec.ID)
	}

	rows := h.newRows()
	require.Len(t, rows, 4)
	for i, row := range rows {
		require.Equal(t, 4+i, row[0])
	}
	require.Equal(t, []string{
		"4_source_code.txt", "4_text.txt",
		"5_source_code.txt", "5_text.txt",
		"6_source_code.txt", "6_text.txt",
		"7_source_code.txt", "7_text.txt",
	}, h.blobs.Writes())
}

func TestRunPreservesGroupOrder(t *testing.T) {
	t.Parallel()

	markup := board(
		[]string{item(url(1), "d", "A"), item(url(2), "d", "A"), item(url(3), "d", "A")},
		[]string{item(url(4), "d", "B"), item(url(5), "d", "B")},
	)
	h := newHarness(markup)

	sum, err := h.run(t)
	require.NoError(t, err)

	got := make([]string, 0, len(sum.Records))
	for _, rec := range sum.Records {
		got = append(got, rec.URL)
	}
	require.Equal(t, []string{url(1), url(2), url(3), url(4), url(5)}, got)

	rows := h.newRows()
	require.Equal(t, url(1), rows[0][1])
	require.Equal(t, url(5), rows[4][1])
}

func TestRunSplitsCompositeField(t *testing.T) {
	t.Parallel()

	markup := board([]string{`<li><a href="https://jobs.example.org/acme">RSE</a>Posted: 2024-01-01: Acme Corp, Remote</li>`})
	h := newHarness(markup)

	sum, err := h.run(t)
	require.NoError(t, err)
	require.Len(t, sum.Records, 1)
	rec := sum.Records[0]
	require.Equal(t, "2024-01-01", rec.DatePosted)
	require.Equal(t, "Acme Corp", rec.Organization)
	require.Equal(t, "Remote", rec.Location)
	require.True(t, rec.IsRemote)
	require.False(t, rec.IsFlexible)
	require.False(t, rec.IsHybrid)
}

func TestRunDropsListingWithoutLinkAfterEveryAttempt(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	markup := board([]string{
		`<li>Untitled posting Posted: 2024-01-01: Acme Corp, Remote</li>`,
		item(url(1), "2024-01-02", "Beta Labs, Remote"),
	})
	h := newHarness(markup)
	h.logger = zap.New(core)

	sum, err := h.run(t)
	require.NoError(t, err)

	failures := logs.FilterMessage("listing attempt failed").All()
	require.Len(t, failures, 5)
	for _, entry := range failures {
		require.Equal(t, string(jobs.KindMalformed), entry.ContextMap()["kind"])
		require.Equal(t, int64(0), entry.ContextMap()["index"])
	}
	require.Equal(t, 4, h.sleeps, "no wait after the last attempt")
	require.Equal(t, 1, sum.Dropped)
	require.Len(t, sum.Records, 1)
	require.Equal(t, url(1), sum.Records[0].URL)
	require.Equal(t, 1, sum.Records[0].ID)
}

func TestRunEnrichmentFailureOnFinalAttemptWritesNothingForListing(t *testing.T) {
	t.Parallel()

	markup := board([]string{
		item(url(1), "d", "A, Remote"),
		item(url(2), "d", "B, Remote"),
		item(url(3), "d", "C, Remote"),
	})
	h := newHarness(markup)
	h.enricher.failures[url(2)] = -1

	sum, err := h.run(t)
	require.NoError(t, err)
	require.Equal(t, 5, h.enricher.Calls(url(2)))
	require.Equal(t, 1, sum.Dropped)

	rows := h.newRows()
	require.Len(t, rows, 2)
	require.Equal(t, url(1), rows[0][1])
	require.Equal(t, url(3), rows[1][1])
	require.Equal(t, 2, rows[1][0], "ids stay contiguous across a dropped listing")
	require.Equal(t, []string{"1_source_code.txt", "1_text.txt", "2_source_code.txt", "2_text.txt"}, h.blobs.Names())
	for _, name := range h.blobs.Writes() {
		content, _ := h.blobs.Get(name)
		require.NotContains(t, string(content), url(2))
	}
}

func TestRunRecoversFromTransientEnrichmentFailure(t *testing.T) {
	t.Parallel()

	markup := board([]string{item(url(1), "d", "A, Remote")})
	h := newHarness(markup)
	h.enricher.failures[url(1)] = 2

	sum, err := h.run(t)
	require.NoError(t, err)
	require.Len(t, sum.Records, 1)
	require.Equal(t, 3, h.enricher.Calls(url(1)))
	require.Equal(t, 2, h.sleeps)
	// Run start takes the first tick; attempts take the next three.
	require.Equal(t, start.Add(3*time.Minute), sum.Records[0].CapturedAt)
	require.Equal(t, "2024-03-01 09:03:00", h.newRows()[0][2])
}

func TestRunEnrichesIntraRunDuplicateOnce(t *testing.T) {
	t.Parallel()

	markup := board(
		[]string{item(url(1), "d", "A, Remote")},
		[]string{item(url(1), "d", "A, Remote"), item(url(2), "d", "B")},
	)
	h := newHarness(markup)

	sum, err := h.run(t)
	require.NoError(t, err)
	require.Equal(t, 1, h.enricher.Calls(url(1)))
	require.Equal(t, 1, sum.Duplicate)
	require.Len(t, sum.Records, 2)
	require.Equal(t, url(2), sum.Records[1].URL)
	require.Equal(t, 2, sum.Records[1].ID)
}

func TestRunFetchFailureAbortsBeforePersistence(t *testing.T) {
	t.Parallel()

	h := newHarness("")
	h.deps.Fetcher = staticFetcher{err: errors.New("connection refused")}

	sum, err := h.run(t)
	require.Error(t, err)
	require.True(t, errors.Is(err, jobs.ErrFetch))
	require.Zero(t, sum.Seen)
	require.Empty(t, h.table.Rows())
	require.Empty(t, h.blobs.Writes())
}

func TestRunKeyReadFailureAbortsBeforePersistence(t *testing.T) {
	t.Parallel()

	h := newHarness(board([]string{item(url(1), "d", "A")}))
	h.deps.Keys = failingKeys{}

	_, err := h.run(t)
	require.True(t, errors.Is(err, jobs.ErrReadExistingKeys))
	require.Zero(t, h.enricher.Calls(url(1)))
	require.Empty(t, h.table.Rows())
	require.Empty(t, h.blobs.Writes())
}

func TestRunSurfacesPersistenceFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(board([]string{item(url(1), "d", "A")}))
	h.deps.Blobs = failingBlobs{}

	sum, err := h.run(t)
	require.True(t, errors.Is(err, jobs.ErrPersistence))
	require.Equal(t, 1, sum.Persisted, "rows were written before the blob failure")
	require.Zero(t, sum.Blobs)
	require.Empty(t, sum.Records)
}

func TestRunAnnouncesAndRecordsLedger(t *testing.T) {
	t.Parallel()

	h := newHarness(board([]string{item(url(1), "d", "A"), item(url(2), "d", "B")}), url(1))
	pub := pubmemory.New()
	runs := &ledger{}
	h.deps.Notifier = notify.New(pub, nil)
	h.deps.Runs = runs

	sum, err := h.run(t)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Announced)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	msg := msgs[0].Payload.(notify.Message)
	require.Equal(t, "run-1", msg.RunID)
	require.Equal(t, 2, msg.ID)

	require.Equal(t, []string{"run-1"}, runs.started)
	require.Equal(t, []jobs.RunStats{{Seen: 2, Existing: 1, New: 1, Persisted: 1}}, runs.finished)
	require.Equal(t, []error{nil}, runs.errs)
}

func TestRunStopsWhenContextCanceled(t *testing.T) {
	t.Parallel()

	h := newHarness(board([]string{item(url(1), "d", "A"), item(url(2), "d", "B")}))
	ctx, cancel := context.WithCancel(context.Background())
	h.deps.Fetcher = cancelingFetcher{markup: board([]string{item(url(1), "d", "A")}), cancel: cancel}

	p, err := New(h.cfg, h.deps, nil)
	require.NoError(t, err)
	_, err = p.Run(ctx)
	require.True(t, errors.Is(err, context.Canceled))
	require.Empty(t, h.table.Rows())
	require.Zero(t, h.enricher.Calls(url(1)))
}

type cancelingFetcher struct {
	markup string
	cancel context.CancelFunc
}

func (f cancelingFetcher) Fetch(context.Context, string) (string, error) {
	f.cancel()
	return f.markup, nil
}

func TestNewValidatesDeps(t *testing.T) {
	t.Parallel()

	h := newHarness("")
	_, err := New(Config{}, h.deps, nil)
	require.Error(t, err)

	deps := h.deps
	deps.Enricher = nil
	_, err = New(h.cfg, deps, nil)
	require.Error(t, err)

	deps = h.deps
	deps.Clock = nil
	_, err = New(h.cfg, deps, nil)
	require.Error(t, err)
}
