// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Session   SessionConfig   `mapstructure:"session"`
	DB        DBConfig        `mapstructure:"db"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Publish   PublishConfig   `mapstructure:"publish"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Sources   []scrape.Source `mapstructure:"sources"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// ScraperConfig governs the run orchestrator.
type ScraperConfig struct {
	BatchSize           int  `mapstructure:"batch_size"`
	MaxRetries          int  `mapstructure:"max_retries"`
	FetchTimeoutSec     int  `mapstructure:"fetch_timeout_seconds"`
	FirstLoadTimeoutSec int  `mapstructure:"first_load_timeout_seconds"`
	MaxItems            int  `mapstructure:"max_items"`
	ScrapeDetailPages   bool `mapstructure:"scrape_detail_pages"`
}

// BrowserConfig configures the controlled browser provider.
type BrowserConfig struct {
	Enabled            bool     `mapstructure:"enabled"`
	MaxPagesPerBrowser int      `mapstructure:"max_pages_per_browser"`
	NavTimeoutSec      int      `mapstructure:"nav_timeout_seconds"`
	ChallengeWaitSec   int      `mapstructure:"challenge_wait_seconds"`
	DomainQPS          float64  `mapstructure:"domain_qps"`
	Proxies            []string `mapstructure:"proxies"`
}

// ProvidersConfig carries credentials for the external fetch APIs.
// An empty key disables that provider; it is skipped by the chain,
// never an error at startup.
type ProvidersConfig struct {
	ScrapingBeeKey  string `mapstructure:"scrapingbee_key"`
	ScraperAPIKey   string `mapstructure:"scraperapi_key"`
	DirectEnabled   bool   `mapstructure:"direct_enabled"`
	DirectUserAgent string `mapstructure:"direct_user_agent"`
}

// SessionConfig controls challenge-pass session persistence.
type SessionConfig struct {
	TTLHours        int    `mapstructure:"ttl_hours"`
	AuthorityCookie string `mapstructure:"authority_cookie"`
	// ExtraChallengeMarkers extends the built-in interstitial marker list
	// for site-specific hold pages.
	ExtraChallengeMarkers []string `mapstructure:"extra_challenge_markers"`
}

// DBConfig controls access to the relational database. An empty DSN
// selects the in-memory stores.
type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

// ArchiveConfig sets raw-page archive behavior.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"` // none | local | gcs
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PublishConfig holds metadata for inventory event notifications.
type PublishConfig struct {
	Provider  string `mapstructure:"provider"` // none | pubsub
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig controls the zap root logger.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
	// Level is a zap level name; empty means info.
	Level string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LOTVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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
	v.SetDefault("server.port", 8080)
	v.SetDefault("scraper.batch_size", 3)
	v.SetDefault("scraper.max_retries", 3)
	v.SetDefault("scraper.fetch_timeout_seconds", 30)
	v.SetDefault("scraper.first_load_timeout_seconds", 120)
	v.SetDefault("scraper.max_items", 0)
	v.SetDefault("scraper.scrape_detail_pages", true)
	v.SetDefault("browser.enabled", true)
	v.SetDefault("browser.max_pages_per_browser", 8)
	v.SetDefault("browser.nav_timeout_seconds", 25)
	v.SetDefault("browser.challenge_wait_seconds", 60)
	v.SetDefault("browser.domain_qps", 0.5)
	v.SetDefault("providers.direct_enabled", true)
	v.SetDefault("providers.direct_user_agent", "")
	v.SetDefault("session.ttl_hours", 24)
	v.SetDefault("session.authority_cookie", "cf_clearance")
	v.SetDefault("archive.provider", "none")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("publish.provider", "none")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scraper.BatchSize <= 0 {
		return fmt.Errorf("scraper.batch_size must be > 0")
	}
	if c.Scraper.MaxRetries <= 0 {
		return fmt.Errorf("scraper.max_retries must be > 0")
	}
	if c.Scraper.FetchTimeoutSec <= 0 {
		return fmt.Errorf("scraper.fetch_timeout_seconds must be > 0")
	}
	if c.Browser.Enabled && c.Browser.MaxPagesPerBrowser <= 0 {
		return fmt.Errorf("browser.max_pages_per_browser must be > 0 when browser is enabled")
	}
	if c.Session.TTLHours <= 0 {
		return fmt.Errorf("session.ttl_hours must be > 0")
	}
	if c.Archive.Provider == "gcs" && c.Archive.GCSBucket == "" {
		return fmt.Errorf("archive.gcs_bucket must be set when archive.provider is gcs")
	}
	if c.Publish.Provider == "pubsub" && (c.Publish.ProjectID == "" || c.Publish.TopicName == "") {
		return fmt.Errorf("publish.project_id and publish.topic_name must be set when publish.provider is pubsub")
	}
	for i, src := range c.Sources {
		if src.ID == "" || src.ListingURL == "" {
			return fmt.Errorf("sources[%d]: id and listing_url are required", i)
		}
	}
	return nil
}

// FetchTimeout returns the per-fetch deadline as a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Scraper.FetchTimeoutSec) * time.Second
}

// FirstLoadTimeout returns the challenge-heavy first-load deadline.
func (c Config) FirstLoadTimeout() time.Duration {
	return time.Duration(c.Scraper.FirstLoadTimeoutSec) * time.Second
}

// SessionTTL returns the session validity window.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLHours) * time.Hour
}

// ActiveSources implements scrape.SourceConfig over the loaded config.
// An empty tenantID returns every source.
func (c Config) ActiveSources(tenantID string) []scrape.Source {
	if tenantID == "" {
		return c.Sources
	}
	var out []scrape.Source
	for _, src := range c.Sources {
		if src.TenantID == tenantID {
			out = append(out, src)
		}
	}
	return out
}
