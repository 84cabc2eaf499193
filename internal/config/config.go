package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Fetcher    FetcherConfig
	Feed       FeedConfig
	Downloader DownloaderConfig
	Jobs       JobsConfig
	Archive    ArchiveConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

type FetcherConfig struct {
	DirectTimeout   time.Duration
	ProxyTimeout    time.Duration
	MaxRetries      int
	Proxies         []string
	BrowserFallback bool
	BrowserHeadless bool
	BrowserTimeout  time.Duration
}

type FeedConfig struct {
	BatchSize        int
	ProgressInterval int
}

type DownloaderConfig struct {
	Delay         time.Duration
	MaxImageBytes int64
	Timeout       time.Duration
}

type JobsConfig struct {
	Workers           int
	PollInterval      time.Duration
	RelayPollInterval time.Duration
	RelayBatchSize    int
	ProgressSaveEvery int
}

type ArchiveConfig struct {
	S3Bucket string
	S3Region string
	S3Prefix string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getIntOrDefault("SERVER_PORT", 8084),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 10*time.Minute),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getStringSliceOrDefault("SERVER_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			Name:     getEnvOrDefault("DB_NAME", "feed_extractor"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 20)),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:feed_events"),
		},
		Fetcher: FetcherConfig{
			DirectTimeout:   getDurationOrDefault("FETCHER_DIRECT_TIMEOUT", 15*time.Second),
			ProxyTimeout:    getDurationOrDefault("FETCHER_PROXY_TIMEOUT", 20*time.Second),
			MaxRetries:      getIntOrDefault("FETCHER_MAX_RETRIES", 3),
			Proxies:         getStringSliceOrDefault("FETCHER_PROXIES", defaultProxies()),
			BrowserFallback: getBoolOrDefault("FETCHER_BROWSER_FALLBACK", false),
			BrowserHeadless: getBoolOrDefault("BROWSER_HEADLESS", true),
			BrowserTimeout:  getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
		},
		Feed: FeedConfig{
			BatchSize:        getIntOrDefault("FEED_BATCH_SIZE", 100),
			ProgressInterval: getIntOrDefault("FEED_PROGRESS_INTERVAL", 10),
		},
		Downloader: DownloaderConfig{
			Delay:         getDurationOrDefault("DOWNLOAD_DELAY", 200*time.Millisecond),
			MaxImageBytes: int64(getIntOrDefault("DOWNLOAD_MAX_IMAGE_BYTES", 50<<20)),
			Timeout:       getDurationOrDefault("DOWNLOAD_TIMEOUT", 30*time.Second),
		},
		Jobs: JobsConfig{
			Workers:           getIntOrDefault("JOBS_WORKERS", 2),
			PollInterval:      getDurationOrDefault("JOBS_POLL_INTERVAL", 5*time.Second),
			RelayPollInterval: getDurationOrDefault("RELAY_POLL_INTERVAL", 5*time.Second),
			RelayBatchSize:    getIntOrDefault("RELAY_BATCH_SIZE", 100),
			ProgressSaveEvery: getIntOrDefault("JOBS_PROGRESS_SAVE_EVERY", 100),
		},
		Archive: ArchiveConfig{
			S3Bucket: getEnvOrDefault("ARCHIVE_S3_BUCKET", ""),
			S3Region: getEnvOrDefault("AWS_REGION", "eu-central-1"),
			S3Prefix: getEnvOrDefault("ARCHIVE_S3_PREFIX", "bundles"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Fetcher.MaxRetries < 1 {
		return fmt.Errorf("FETCHER_MAX_RETRIES must be at least 1")
	}

	if c.Fetcher.DirectTimeout <= 0 || c.Fetcher.ProxyTimeout <= 0 {
		return fmt.Errorf("fetcher timeouts must be positive")
	}

	for _, proxy := range c.Fetcher.Proxies {
		u, err := url.Parse(proxy)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid proxy base URL: %q", proxy)
		}
	}

	if c.Feed.BatchSize < 1 {
		return fmt.Errorf("FEED_BATCH_SIZE must be at least 1")
	}

	if c.Feed.ProgressInterval < 1 {
		return fmt.Errorf("FEED_PROGRESS_INTERVAL must be at least 1")
	}

	if c.Downloader.MaxImageBytes < 1 {
		return fmt.Errorf("DOWNLOAD_MAX_IMAGE_BYTES must be positive")
	}

	if c.Jobs.Workers < 1 {
		return fmt.Errorf("at least 1 job worker is required")
	}

	return nil
}

// DSN returns a pgx connection string.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

func defaultProxies() []string {
	return []string{
		"https://api.allorigins.win/raw?url=",
		"https://corsproxy.io/?",
		"https://api.codetabs.com/v1/proxy?quest=",
	}
}
