package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	opts    *Options
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	AcceptLanguage string
	Locale         string
	ProxyServer    string
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		AcceptLanguage: "en-US,en;q=0.9,de;q=0.8",
		Locale:         "en-US",
		ExtraHeaders: map[string]string{
			"Accept":          "application/xml,text/xml,application/rss+xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9,de;q=0.8",
			"DNT":             "1",
		},
	}
}

func New(opts *Options, logger *slog.Logger) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
		},
	}

	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:        &opts.UserAgent,
		AcceptDownloads:  playwright.Bool(false),
		Locale:           &opts.Locale,
		ExtraHttpHeaders: opts.ExtraHeaders,
	}

	bctx, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		context: bctx,
		opts:    opts,
		logger:  logger.With("component", "browser"),
	}, nil
}

func (b *Browser) NewPage() (playwright.Page, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	page.SetDefaultTimeout(float64(b.opts.Timeout.Milliseconds()))

	return page, nil
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}

// FetchFeed navigates to url and returns the raw body of the main response,
// so XML is returned as served rather than as the rendered viewer page.
func (b *Browser) FetchFeed(ctx context.Context, url string) (string, error) {
	page, err := b.NewPage()
	if err != nil {
		return "", err
	}
	defer page.Close()

	timeout := navigationTimeout(ctx, b.opts.Timeout)
	if timeout <= 0 {
		return "", context.DeadlineExceeded
	}

	b.logger.Info("fetching feed with browser", "url", url)

	resp, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return "", fmt.Errorf("failed to navigate: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("no response for %s", url)
	}
	if status := resp.Status(); status < 200 || status > 299 {
		return "", fmt.Errorf("unexpected status %d", status)
	}

	body, err := resp.Text()
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}

// navigationTimeout caps the page timeout at the context deadline.
func navigationTimeout(ctx context.Context, timeout time.Duration) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return timeout
	}
	if remaining := time.Until(deadline); remaining < timeout {
		return remaining
	}
	return timeout
}

// LazyFetcher starts Chromium on first use and shares it across fetches.
type LazyFetcher struct {
	opts    *Options
	logger  *slog.Logger
	mu      sync.Mutex
	browser *Browser
}

func NewLazyFetcher(opts *Options, logger *slog.Logger) *LazyFetcher {
	return &LazyFetcher{opts: opts, logger: logger}
}

func (l *LazyFetcher) Name() string {
	return "browser"
}

func (l *LazyFetcher) FetchFeed(ctx context.Context, url string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.browser == nil {
		b, err := New(l.opts, l.logger)
		if err != nil {
			return "", err
		}
		l.browser = b
	}

	return l.browser.FetchFeed(ctx, url)
}

func (l *LazyFetcher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.browser == nil {
		return nil
	}
	err := l.browser.Close()
	l.browser = nil
	return err
}
