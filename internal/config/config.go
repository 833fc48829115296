// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // clock.timezone must resolve in minimal images

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"`
	Renderer RendererConfig `mapstructure:"renderer"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Clock    ClockConfig    `mapstructure:"clock"`
	Tabular  ProviderConfig `mapstructure:"tabular"`
	Blob     ProviderConfig `mapstructure:"blob"`
	Sheets   SheetsConfig   `mapstructure:"sheets"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Drive    DriveConfig    `mapstructure:"drive"`
	GCS      GCSConfig      `mapstructure:"gcs"`
	Local    LocalConfig    `mapstructure:"local"`
	Google   GoogleConfig   `mapstructure:"google"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SourceConfig describes the job board and how its listings are laid out.
type SourceConfig struct {
	URL            string   `mapstructure:"url"`
	GroupSelectors []string `mapstructure:"group_selectors"`
	MaxGroups      int      `mapstructure:"max_groups"`
	ItemSelector   string   `mapstructure:"item_selector"`
	Strategy       string   `mapstructure:"strategy"`
}

// FetcherConfig controls the board page fetch.
type FetcherConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	RespectRobots  bool   `mapstructure:"respect_robots"`
}

// RendererConfig controls how listing pages are loaded for enrichment.
type RendererConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	Headless          bool   `mapstructure:"headless"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
	SettleMillis      int    `mapstructure:"settle_ms"`
	UserAgent         string `mapstructure:"user_agent"`
	// Auto fetches pages statically and only starts the browser for
	// client-rendered markup.
	Auto        bool `mapstructure:"auto"`
	AutoMinBody int  `mapstructure:"auto_min_body"`
}

// RetryConfig holds the per-listing retry constants.
type RetryConfig struct {
	MaxAttempts  int `mapstructure:"max_attempts"`
	DelaySeconds int `mapstructure:"delay_seconds"`
}

// ClockConfig selects the zone captured_at is written in.
type ClockConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// ProviderConfig selects a storage backend.
type ProviderConfig struct {
	Provider string `mapstructure:"provider"`
}

// SheetsConfig identifies the spreadsheet used as the tabular store.
type SheetsConfig struct {
	SpreadsheetID string `mapstructure:"spreadsheet_id"`
	Sheet         string `mapstructure:"sheet"`
	KeyColumn     string `mapstructure:"key_column"`
	MaxRow        int    `mapstructure:"max_row"`
}

// PostgresConfig controls the Postgres tabular store and run ledger.
type PostgresConfig struct {
	DSN       string `mapstructure:"dsn"`
	Table     string `mapstructure:"table"`
	RunsTable string `mapstructure:"runs_table"`
	MaxConns  int32  `mapstructure:"max_conns"`
	Migrate   bool   `mapstructure:"migrate"`
}

// DriveConfig names the destination folder for blobs.
type DriveConfig struct {
	FolderID string `mapstructure:"folder_id"`
}

// GCSConfig names the destination bucket for blobs.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// LocalConfig names the destination directory for blobs.
type LocalConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// GoogleConfig carries service account credentials, either inline JSON or a
// file path.
type GoogleConfig struct {
	Credentials string `mapstructure:"credentials"`
}

// PubSubConfig holds the announcement topic. An empty topic disables it.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MetricsConfig holds the push gateway target. An empty URL disables pushing.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	JobName        string `mapstructure:"job_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Tabular and blob providers.
const (
	ProviderSheets   = "sheets"
	ProviderPostgres = "postgres"
	ProviderMemory   = "memory"
	ProviderDrive    = "drive"
	ProviderGCS      = "gcs"
	ProviderLocal    = "local"
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JOBSCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("google.credentials", "JOBSCRAPER_GOOGLE_CREDENTIALS", "GOOGLE_APPLICATION_CREDENTIALS"); err != nil {
		return Config{}, fmt.Errorf("bind credentials env: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.url", "https://us-rse.org/jobs/")
	v.SetDefault("source.group_selectors", []string{"ol"})
	v.SetDefault("source.max_groups", 2)
	v.SetDefault("source.item_selector", "li")
	v.SetDefault("source.strategy", "usrse")
	v.SetDefault("fetcher.user_agent", "jobboard-scraper/0.1")
	v.SetDefault("fetcher.timeout_seconds", 30)
	v.SetDefault("fetcher.respect_robots", false)
	v.SetDefault("renderer.enabled", true)
	v.SetDefault("renderer.headless", true)
	v.SetDefault("renderer.nav_timeout_seconds", 45)
	v.SetDefault("renderer.settle_ms", 0)
	v.SetDefault("renderer.user_agent", "")
	v.SetDefault("renderer.auto", false)
	v.SetDefault("renderer.auto_min_body", 2048)
	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.delay_seconds", 10)
	v.SetDefault("clock.timezone", "UTC")
	v.SetDefault("tabular.provider", ProviderSheets)
	v.SetDefault("blob.provider", ProviderDrive)
	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.sheet", "")
	v.SetDefault("sheets.key_column", "B")
	v.SetDefault("sheets.max_row", 1000000)
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.table", "job_postings")
	v.SetDefault("postgres.runs_table", "scrape_runs")
	v.SetDefault("postgres.max_conns", 4)
	v.SetDefault("postgres.migrate", false)
	v.SetDefault("drive.folder_id", "")
	v.SetDefault("gcs.bucket", "")
	v.SetDefault("gcs.prefix", "")
	v.SetDefault("local.base_dir", "")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job_name", "jobscraper")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Source.URL) == "" {
		return fmt.Errorf("source.url is required")
	}
	if c.Source.MaxGroups < 0 {
		return fmt.Errorf("source.max_groups must be >= 0")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1")
	}
	if c.Retry.DelaySeconds < 0 {
		return fmt.Errorf("retry.delay_seconds must be >= 0")
	}
	if c.Fetcher.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetcher.timeout_seconds must be > 0")
	}
	if c.Renderer.Enabled && c.Renderer.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("renderer.nav_timeout_seconds must be > 0 when the renderer is enabled")
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	switch c.Tabular.Provider {
	case ProviderSheets:
		if c.Sheets.SpreadsheetID == "" {
			return fmt.Errorf("sheets.spreadsheet_id is required for the sheets provider")
		}
	case ProviderPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required for the postgres provider")
		}
	case ProviderMemory:
	default:
		return fmt.Errorf("tabular.provider %q is not one of sheets, postgres, memory", c.Tabular.Provider)
	}

	switch c.Blob.Provider {
	case ProviderDrive:
		if c.Drive.FolderID == "" {
			return fmt.Errorf("drive.folder_id is required for the drive provider")
		}
	case ProviderGCS:
		if c.GCS.Bucket == "" {
			return fmt.Errorf("gcs.bucket is required for the gcs provider")
		}
	case ProviderLocal:
		if c.Local.BaseDir == "" {
			return fmt.Errorf("local.base_dir is required for the local provider")
		}
	case ProviderMemory:
	default:
		return fmt.Errorf("blob.provider %q is not one of drive, gcs, local, memory", c.Blob.Provider)
	}

	if c.PubSub.Topic != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic is set")
	}
	return nil
}

// RetryDelay returns the wait between attempts.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.Retry.DelaySeconds) * time.Second
}

// FetchTimeout returns the board fetch timeout.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetcher.TimeoutSeconds) * time.Second
}

// NavTimeout returns the renderer navigation timeout.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Renderer.NavTimeoutSeconds) * time.Second
}

// SettleDelay returns the wait after a rendered page's body is ready.
func (c Config) SettleDelay() time.Duration {
	return time.Duration(c.Renderer.SettleMillis) * time.Millisecond
}

// Location resolves clock.timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Clock.Timezone)
	if err != nil {
		return nil, fmt.Errorf("clock.timezone: %w", err)
	}
	return loc, nil
}
