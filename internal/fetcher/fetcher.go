package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultDirectTimeout = 15 * time.Second
	DefaultProxyTimeout  = 20 * time.Second
	DefaultMaxRetries    = 3
	DefaultMaxBodyBytes  = 512 << 20

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// DefaultProxies are public CORS relays tried in order. The encoded feed URL
// is appended to each base.
var DefaultProxies = []string{
	"https://api.allorigins.win/raw?url=",
	"https://corsproxy.io/?",
	"https://api.codetabs.com/v1/proxy?quest=",
}

type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Strategy is an extra last-resort way to retrieve a feed, such as a
// headless browser.
type Strategy interface {
	Name() string
	FetchFeed(ctx context.Context, url string) (string, error)
}

type Config struct {
	DirectTimeout time.Duration
	ProxyTimeout  time.Duration
	MaxRetries    int
	Proxies       []string
	MaxBodyBytes  int64
}

func DefaultConfig() Config {
	return Config{
		DirectTimeout: DefaultDirectTimeout,
		ProxyTimeout:  DefaultProxyTimeout,
		MaxRetries:    DefaultMaxRetries,
		Proxies:       append([]string(nil), DefaultProxies...),
		MaxBodyBytes:  DefaultMaxBodyBytes,
	}
}

type Option func(*Fetcher)

// WithSleep replaces the backoff sleeper.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(f *Fetcher) {
		f.sleep = sleep
	}
}

// WithFallback adds a strategy tried after direct and proxy attempts fail.
func WithFallback(s Strategy) Option {
	return func(f *Fetcher) {
		f.fallback = s
	}
}

// Fetcher retrieves feed text with a direct request first and then each
// configured proxy, retrying every target with exponential backoff.
type Fetcher struct {
	client   Doer
	cfg      Config
	sleep    func(ctx context.Context, d time.Duration) error
	fallback Strategy
	logger   *slog.Logger
}

func New(cfg Config, client Doer, logger *slog.Logger, opts ...Option) *Fetcher {
	defaults := DefaultConfig()
	if cfg.DirectTimeout <= 0 {
		cfg.DirectTimeout = defaults.DirectTimeout
	}
	if cfg.ProxyTimeout <= 0 {
		cfg.ProxyTimeout = defaults.ProxyTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if client == nil {
		client = &http.Client{}
	}

	f := &Fetcher{
		client: client,
		cfg:    cfg,
		sleep:  sleepContext,
		logger: logger.With("component", "fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the feed body from the first strategy that yields a
// non-HTML 2xx response. When everything fails it returns a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) (string, error) {
	parsed, err := url.Parse(feedURL)
	if err != nil || !parsed.IsAbs() || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, feedURL)
	}

	attempts := 0

	body, n, lastErr := f.withRetry(ctx, "direct", feedURL, f.cfg.DirectTimeout)
	attempts += n
	if lastErr == nil {
		return body, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}

	f.logger.Warn("direct fetch failed, trying proxies", "url", feedURL, "error", lastErr)

	for _, proxy := range f.cfg.Proxies {
		target := proxy + url.QueryEscape(feedURL)

		var err error
		body, n, err = f.withRetry(ctx, "proxy", target, f.cfg.ProxyTimeout)
		attempts += n
		if err == nil {
			f.logger.Info("fetched feed via proxy", "proxy", proxy, "attempts", attempts)
			return body, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		lastErr = err
	}

	if f.fallback != nil {
		attempts++
		body, err := f.fallback.FetchFeed(ctx, feedURL)
		if err == nil {
			err = checkBody(body)
		}
		if err == nil {
			f.logger.Info("fetched feed via fallback", "strategy", f.fallback.Name(), "attempts", attempts)
			return body, nil
		}
		f.logger.Warn("fetch attempt failed", "strategy", f.fallback.Name(), "url", feedURL, "error", err)
		lastErr = err
	}

	f.logger.Error("all fetch strategies failed", "url", feedURL, "attempts", attempts, "error", lastErr)

	return "", &FetchError{URL: feedURL, Attempts: attempts, Last: lastErr}
}

// withRetry tries target up to MaxRetries times, sleeping 2^attempt seconds
// between attempts. It returns the number of attempts made.
func (f *Fetcher) withRetry(ctx context.Context, strategy, target string, timeout time.Duration) (string, int, error) {
	var lastErr error

	for attempt := 0; attempt < f.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", attempt, err
		}

		body, err := f.get(ctx, target, timeout)
		if err == nil {
			return body, attempt + 1, nil
		}
		lastErr = err

		f.logger.Warn("fetch attempt failed",
			"strategy", strategy,
			"url", target,
			"attempt", attempt+1,
			"error", err)

		if attempt < f.cfg.MaxRetries-1 {
			if err := f.sleep(ctx, time.Duration(1<<attempt)*time.Second); err != nil {
				return "", attempt + 1, err
			}
		}
	}

	return "", f.cfg.MaxRetries, lastErr
}

func (f *Fetcher) get(ctx context.Context, target string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/xml, text/xml, application/rss+xml, application/atom+xml, */*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,de;q=0.8")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	if resp.ContentLength > f.cfg.MaxBodyBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > f.cfg.MaxBodyBytes {
		return "", fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, f.cfg.MaxBodyBytes)
	}

	body := string(data)
	if err := checkBody(body); err != nil {
		return "", err
	}

	return body, nil
}

// checkBody rejects HTML error or redirect pages served with a 2xx status.
func checkBody(body string) error {
	if LooksLikeHTML(body) {
		return ErrHTMLResponse
	}
	return nil
}

// LooksLikeHTML reports whether the start of the document carries an HTML
// doctype or an <html> root.
func LooksLikeHTML(body string) bool {
	head := []byte(body)
	if len(head) > 1024 {
		head = head[:1024]
	}
	head = bytes.ToLower(bytes.TrimSpace(head))

	return bytes.Contains(head, []byte("<!doctype html")) || bytes.Contains(head, []byte("<html"))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
