package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-scraper/internal/clock/system"
	"github.com/JakeFAU/jobboard-scraper/internal/config"
	"github.com/JakeFAU/jobboard-scraper/internal/enrich"
	collyfetcher "github.com/JakeFAU/jobboard-scraper/internal/fetcher/colly"
	"github.com/JakeFAU/jobboard-scraper/internal/fields"
	"github.com/JakeFAU/jobboard-scraper/internal/id/uuid"
	"github.com/JakeFAU/jobboard-scraper/internal/listing"
	"github.com/JakeFAU/jobboard-scraper/internal/logging"
	"github.com/JakeFAU/jobboard-scraper/internal/metrics"
	"github.com/JakeFAU/jobboard-scraper/internal/pipeline"
	"github.com/JakeFAU/jobboard-scraper/internal/retry"
	"github.com/JakeFAU/jobboard-scraper/internal/textextract"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	runErr := run(ctx, cfg, logger)
	stop()

	if syncErr := logger.Sync(); syncErr != nil {
		fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
	}
	if runErr != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	runID, err := uuid.NewRunID()
	if err != nil {
		return err
	}
	runLogger := logging.ForRun(logger, runID)
	metrics.Init()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	fieldStrategy, err := fields.New(cfg.Source.Strategy)
	if err != nil {
		return err
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Fetcher.UserAgent,
		RespectRobots: cfg.Fetcher.RespectRobots,
		Timeout:       cfg.FetchTimeout(),
	}, logger.Named("fetcher"))

	renderer, closeRenderer, err := newRenderer(cfg, fetcher, logger.Named("renderer"))
	if err != nil {
		runLogger.Error("renderer init failed", zap.Error(err))
		return err
	}
	defer closeRenderer()

	stores, err := newStores(ctx, cfg, logger)
	if err != nil {
		runLogger.Error("storage init failed", zap.Error(err))
		return err
	}
	defer stores.Close()

	notifier, closeNotifier, err := newNotifier(ctx, cfg, logger.Named("notify"))
	if err != nil {
		runLogger.Error("notifier init failed", zap.Error(err))
		return err
	}
	defer closeNotifier()

	p, err := pipeline.New(
		pipeline.Config{
			BoardURL: cfg.Source.URL,
			RunID:    runID,
			Retry: retry.Policy{
				MaxAttempts: cfg.Retry.MaxAttempts,
				Delay:       cfg.RetryDelay(),
			},
		},
		pipeline.Deps{
			Fetcher: fetcher,
			Listings: listing.New(listing.Config{
				GroupSelectors: cfg.Source.GroupSelectors,
				MaxGroups:      cfg.Source.MaxGroups,
				ItemSelector:   cfg.Source.ItemSelector,
			}, logger.Named("listing")),
			Fields:   fieldStrategy,
			Keys:     stores.Tabular,
			Enricher: enrich.New(renderer, textextract.New(), cfg.Renderer.Headless, logger.Named("enrich")),
			Tabular:  stores.Tabular,
			Blobs:    stores.Blobs,
			Clock:    system.New(loc),
			Notifier: notifier,
			Runs:     stores.Runs,
		},
		logger.Named("pipeline"),
	)
	if err != nil {
		return err
	}

	_, runErr := p.Run(ctx)
	pushMetrics(ctx, cfg, runLogger)
	return runErr
}

func pushMetrics(ctx context.Context, cfg config.Config, logger *zap.Logger) {
	if cfg.Metrics.PushgatewayURL == "" {
		return
	}
	pusher, err := metrics.NewPusher(cfg.Metrics.PushgatewayURL, cfg.Metrics.JobName, "")
	if err != nil {
		logger.Warn("metrics pusher init failed", zap.Error(err))
		return
	}
	if err := pusher.Push(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("metrics push failed", zap.Error(err))
	}
}
