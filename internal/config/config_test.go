package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.Fetcher.DirectTimeout)
	assert.Equal(t, 20*time.Second, cfg.Fetcher.ProxyTimeout)
	assert.Equal(t, 3, cfg.Fetcher.MaxRetries)
	assert.Len(t, cfg.Fetcher.Proxies, 3)
	assert.False(t, cfg.Fetcher.BrowserFallback)
	assert.Equal(t, 100, cfg.Feed.BatchSize)
	assert.Equal(t, 10, cfg.Feed.ProgressInterval)
	assert.Equal(t, 200*time.Millisecond, cfg.Downloader.Delay)
	assert.Equal(t, int64(50<<20), cfg.Downloader.MaxImageBytes)
	assert.Equal(t, "stream:feed_events", cfg.Redis.Stream)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("FETCHER_PROXIES", "https://proxy-a.example.com/?u=, https://proxy-b.example.com/raw?url=")
	t.Setenv("FETCHER_BROWSER_FALLBACK", "true")
	t.Setenv("DOWNLOAD_DELAY", "50ms")
	t.Setenv("FEED_BATCH_SIZE", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://proxy-a.example.com/?u=", "https://proxy-b.example.com/raw?url="}, cfg.Fetcher.Proxies)
	assert.True(t, cfg.Fetcher.BrowserFallback)
	assert.Equal(t, 50*time.Millisecond, cfg.Downloader.Delay)
	assert.Equal(t, 100, cfg.Feed.BatchSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "invalid server port"},
		{name: "no retries", mutate: func(c *Config) { c.Fetcher.MaxRetries = 0 }, wantErr: "FETCHER_MAX_RETRIES"},
		{name: "bad proxy", mutate: func(c *Config) { c.Fetcher.Proxies = []string{"corsproxy"} }, wantErr: "invalid proxy base URL"},
		{name: "zero batch", mutate: func(c *Config) { c.Feed.BatchSize = 0 }, wantErr: "FEED_BATCH_SIZE"},
		{name: "no workers", mutate: func(c *Config) { c.Jobs.Workers = 0 }, wantErr: "job worker"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "feed", Password: "p@ss", Name: "feeds", SSLMode: "disable"}

	assert.Equal(t, "postgres://feed:p%40ss@db:5432/feeds?sslmode=disable", d.DSN())
}
