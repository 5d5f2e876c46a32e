package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Scraper.BatchSize)
	assert.Equal(t, 3, cfg.Scraper.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout())
	assert.Equal(t, 120*time.Second, cfg.FirstLoadTimeout())
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL())
	assert.Equal(t, "cf_clearance", cfg.Session.AuthorityCookie)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Browser.Enabled)
	assert.Equal(t, "none", cfg.Archive.Provider)
	assert.Equal(t, "none", cfg.Publish.Provider)
	assert.Empty(t, cfg.Sources)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
scraper:
  batch_size: 4
browser:
  challenge_wait_seconds: 45
sources:
  - id: lakeside
    tenant_id: lakeside-honda
    name: Lakeside Honda
    location: Halifax, NS
    listing_url: https://www.lakesidehonda.ca/used-vehicles/
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Scraper.BatchSize)
	assert.Equal(t, 45, cfg.Browser.ChallengeWaitSec)
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "lakeside", cfg.Sources[0].ID)
	assert.Equal(t, "https://www.lakesidehonda.ca/used-vehicles/", cfg.Sources[0].ListingURL)
}

func TestLoadRejectsSourceWithoutURL(t *testing.T) {
	path := writeConfigFile(t, `
sources:
  - id: lakeside
    name: Lakeside Honda
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "listing_url")
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"bad batch size", func(c *Config) { c.Scraper.BatchSize = -1 }, "batch_size"},
		{"bad ttl", func(c *Config) { c.Session.TTLHours = 0 }, "ttl_hours"},
		{"gcs without bucket", func(c *Config) { c.Archive.Provider = "gcs" }, "gcs_bucket"},
		{"pubsub without topic", func(c *Config) {
			c.Publish.Provider = "pubsub"
			c.Publish.ProjectID = "proj"
		}, "topic_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestActiveSourcesTenantFilter(t *testing.T) {
	cfg := Config{Sources: []scrape.Source{
		{ID: "a", TenantID: "t1", ListingURL: "https://a.example.com/used-vehicles/"},
		{ID: "b", TenantID: "t2", ListingURL: "https://b.example.com/used-vehicles/"},
		{ID: "c", TenantID: "t1", ListingURL: "https://c.example.com/used-vehicles/"},
	}}

	assert.Len(t, cfg.ActiveSources(""), 3)

	t1 := cfg.ActiveSources("t1")
	require.Len(t, t1, 2)
	assert.Equal(t, "a", t1[0].ID)
	assert.Equal(t, "c", t1[1].ID)
	assert.Empty(t, cfg.ActiveSources("t3"))
}
