// Package metrics exposes Prometheus collectors for scrape runs.
package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Listing outcomes.
const (
	OutcomeNew       = "new"
	OutcomeExisting  = "existing"
	OutcomeDuplicate = "duplicate"
	OutcomeDropped   = "dropped"
)

var (
	listingsTotal         *prometheus.CounterVec
	attemptsTotal         prometheus.Counter
	attemptFailuresTotal  *prometheus.CounterVec
	recordsPersistedTotal prometheus.Counter
	blobsPersistedTotal   prometheus.Counter
	runsTotal             *prometheus.CounterVec
	runDurationSeconds    prometheus.Gauge
	lastSuccessTimestamp  prometheus.Gauge

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		listingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscraper_listings_total",
				Help: "Listings seen on the board, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		attemptsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobscraper_listing_attempts_total",
				Help: "Total listing processing attempts, including retries.",
			},
		)

		attemptFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscraper_listing_attempt_failures_total",
				Help: "Failed listing attempts, labeled by error kind.",
			},
			[]string{"kind"},
		)

		recordsPersistedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobscraper_records_persisted_total",
				Help: "Rows written to the tabular store.",
			},
		)

		blobsPersistedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobscraper_blobs_persisted_total",
				Help: "Blobs written to the blob store.",
			},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscraper_runs_total",
				Help: "Completed runs, labeled by status.",
			},
			[]string{"status"},
		)

		runDurationSeconds = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "jobscraper_run_duration_seconds",
				Help: "Wall time of the last run.",
			},
		)

		lastSuccessTimestamp = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "jobscraper_last_success_timestamp_seconds",
				Help: "Unix time of the last successful run.",
			},
		)
	})
}

// ObserveListing counts one listing's final outcome.
func ObserveListing(outcome string) {
	Init()
	listingsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAttempt counts one attempt; a non-empty kind marks it failed.
func ObserveAttempt(kind string) {
	Init()
	attemptsTotal.Inc()
	if kind != "" {
		attemptFailuresTotal.WithLabelValues(kind).Inc()
	}
}

// ObservePersisted counts written rows and blobs.
func ObservePersisted(rows, blobs int) {
	Init()
	recordsPersistedTotal.Add(float64(rows))
	blobsPersistedTotal.Add(float64(blobs))
}

// ObserveRun records a finished run.
func ObserveRun(succeeded bool, duration time.Duration, finishedAt time.Time) {
	Init()
	status := "failed"
	if succeeded {
		status = "succeeded"
		lastSuccessTimestamp.Set(float64(finishedAt.Unix()))
	}
	runsTotal.WithLabelValues(status).Inc()
	runDurationSeconds.Set(duration.Seconds())
}

// Pusher sends the default registry to a Prometheus push gateway.
type Pusher struct {
	pusher *push.Pusher
}

// NewPusher targets gatewayURL under job, grouped by instance.
func NewPusher(gatewayURL, job, instance string) (*Pusher, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("push gateway url is required")
	}
	if job == "" {
		return nil, fmt.Errorf("push job name is required")
	}
	p := push.New(gatewayURL, job).Gatherer(prometheus.DefaultGatherer)
	if instance != "" {
		p = p.Grouping("instance", instance)
	}
	return &Pusher{pusher: p}, nil
}

// Push replaces the metrics previously pushed under the same grouping.
func (p *Pusher) Push(ctx context.Context) error {
	if err := p.pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
