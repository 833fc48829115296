package main

import (
	"context"
	"fmt"
	"strings"

	gpubsub "cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/JakeFAU/jobboard-scraper/internal/config"
	headlessfetcher "github.com/JakeFAU/jobboard-scraper/internal/fetcher/headless"
	"github.com/JakeFAU/jobboard-scraper/internal/jobs"
	"github.com/JakeFAU/jobboard-scraper/internal/notify"
	pubsubpublisher "github.com/JakeFAU/jobboard-scraper/internal/publisher/pubsub"
	"github.com/JakeFAU/jobboard-scraper/internal/storage/drive"
	"github.com/JakeFAU/jobboard-scraper/internal/storage/gcs"
	"github.com/JakeFAU/jobboard-scraper/internal/storage/local"
	"github.com/JakeFAU/jobboard-scraper/internal/storage/memory"
	"github.com/JakeFAU/jobboard-scraper/internal/storage/postgres"
	"github.com/JakeFAU/jobboard-scraper/internal/storage/sheets"
)

// sheetKeyColumn is column B as a 0-based index, matching sheets.key_column.
const sheetKeyColumn = 1

type tabularStore interface {
	jobs.KeyReader
	jobs.TabularWriter
}

type stores struct {
	Tabular tabularStore
	Blobs   jobs.BlobWriter
	Runs    jobs.RunRecorder
	closers []func()
}

// Close releases clients in reverse order of creation.
func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// googleOptions turns the configured credentials into client options. Inline
// JSON and file paths are both accepted; empty falls back to ADC.
func googleOptions(cfg config.GoogleConfig, scopes ...string) []option.ClientOption {
	opts := []option.ClientOption{option.WithScopes(scopes...)}
	creds := strings.TrimSpace(cfg.Credentials)
	switch {
	case creds == "":
	case strings.HasPrefix(creds, "{"):
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	default:
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	return opts
}

func newRenderer(cfg config.Config, fetcher jobs.MarkupFetcher, logger *zap.Logger) (jobs.PageRenderer, func(), error) {
	if !cfg.Renderer.Enabled {
		logger.Info("renderer disabled; listing pages are fetched without a browser")
		return headlessfetcher.NewStatic(fetcher), func() {}, nil
	}
	userAgent := cfg.Renderer.UserAgent
	if userAgent == "" {
		userAgent = cfg.Fetcher.UserAgent
	}
	r, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		UserAgent:         userAgent,
		NavigationTimeout: cfg.NavTimeout(),
		Settle:            cfg.SettleDelay(),
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create chromedp renderer: %w", err)
	}
	if cfg.Renderer.Auto {
		return headlessfetcher.NewAuto(fetcher, r, cfg.Renderer.AutoMinBody, logger), r.Close, nil
	}
	return r, r.Close, nil
}

func newStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (*stores, error) {
	s := &stores{}
	if err := s.openTabular(ctx, cfg, logger); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.openBlobs(ctx, cfg, logger); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *stores) openTabular(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	switch cfg.Tabular.Provider {
	case config.ProviderSheets:
		store, err := sheets.New(ctx, sheets.Config{
			SpreadsheetID: cfg.Sheets.SpreadsheetID,
			Sheet:         cfg.Sheets.Sheet,
			KeyColumn:     cfg.Sheets.KeyColumn,
			MaxRow:        cfg.Sheets.MaxRow,
		}, logger.Named("sheets"), googleOptions(cfg.Google, gsheets.SpreadsheetsScope)...)
		if err != nil {
			return err
		}
		s.Tabular = store
	case config.ProviderPostgres:
		pool, err := postgres.NewPool(ctx, postgres.PoolConfig{DSN: cfg.Postgres.DSN, MaxConns: cfg.Postgres.MaxConns})
		if err != nil {
			return err
		}
		s.closers = append(s.closers, pool.Close)
		jobStore, err := postgres.NewJobStore(pool, cfg.Postgres.Table, logger.Named("postgres"))
		if err != nil {
			return err
		}
		runStore, err := postgres.NewRunStore(pool, cfg.Postgres.RunsTable)
		if err != nil {
			return err
		}
		if cfg.Postgres.Migrate {
			if err := jobStore.EnsureSchema(ctx); err != nil {
				return err
			}
			if err := runStore.EnsureSchema(ctx); err != nil {
				return err
			}
		}
		s.Tabular = jobStore
		s.Runs = runStore
	case config.ProviderMemory:
		s.Tabular = memory.NewTable(sheetKeyColumn)
	default:
		return fmt.Errorf("unknown tabular provider %q", cfg.Tabular.Provider)
	}
	return nil
}

func (s *stores) openBlobs(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	switch cfg.Blob.Provider {
	case config.ProviderDrive:
		store, err := drive.New(ctx, drive.Config{FolderID: cfg.Drive.FolderID}, logger.Named("drive"),
			googleOptions(cfg.Google, gdrive.DriveScope)...)
		if err != nil {
			return err
		}
		s.Blobs = store
	case config.ProviderGCS:
		client, err := gstorage.NewClient(ctx, googleOptions(cfg.Google, gstorage.ScopeReadWrite)...)
		if err != nil {
			return fmt.Errorf("create gcs client: %w", err)
		}
		s.closers = append(s.closers, func() { _ = client.Close() })
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.GCS.Bucket, Prefix: cfg.GCS.Prefix}, logger.Named("gcs"))
		if err != nil {
			return err
		}
		s.Blobs = store
	case config.ProviderLocal:
		store, err := local.New(local.Config{BaseDir: cfg.Local.BaseDir})
		if err != nil {
			return err
		}
		s.Blobs = store
	case config.ProviderMemory:
		s.Blobs = memory.NewBlobStore()
	default:
		return fmt.Errorf("unknown blob provider %q", cfg.Blob.Provider)
	}
	return nil
}

func newNotifier(ctx context.Context, cfg config.Config, logger *zap.Logger) (*notify.Notifier, func(), error) {
	if cfg.PubSub.Topic == "" {
		return nil, func() {}, nil
	}
	client, err := gpubsub.NewClient(ctx, cfg.PubSub.ProjectID, googleOptions(cfg.Google, gpubsub.ScopePubSub)...)
	if err != nil {
		return nil, nil, fmt.Errorf("create pubsub client: %w", err)
	}
	pub := pubsubpublisher.New(client.Topic(cfg.PubSub.Topic))
	closeFn := func() {
		pub.Stop()
		if err := client.Close(); err != nil {
			logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	return notify.New(pub, logger), closeFn, nil
}
