package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/maltedev/feed-image-extractor/internal/models"
	"github.com/maltedev/feed-image-extractor/internal/ratelimit"
)

const (
	DefaultDelay         = 200 * time.Millisecond
	DefaultMaxImageBytes = 50 << 20
	DefaultTimeout       = 30 * time.Second

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var (
	ErrNoImagesDownloaded = errors.New("No images were successfully downloaded")
	ErrNotImage           = errors.New("response is not an image")
	ErrTooLarge           = errors.New("image exceeds size limit")
	ErrBadStatus          = errors.New("unexpected response status")
)

type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Archiver serializes bundle entries into an archive container.
type Archiver interface {
	Write(w io.Writer, entries []models.BundleEntry) error
}

type Config struct {
	Delay         time.Duration
	MaxImageBytes int64
	Timeout       time.Duration
}

type Options struct {
	// UseFolders groups entries by sanitized product title.
	UseFolders bool
	// CustomFolder puts every entry in one folder and wins over UseFolders.
	CustomFolder string
}

// Downloader fetches images one at a time with a fixed pause between
// requests. Per-image failures are collected in the Result.
type Downloader struct {
	client Doer
	pacer  ratelimit.Limiter
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, client Doer, pacer ratelimit.Limiter, logger *slog.Logger) *Downloader {
	switch {
	case cfg.Delay == 0:
		cfg.Delay = DefaultDelay
	case cfg.Delay < 0:
		cfg.Delay = 0
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = DefaultMaxImageBytes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if client == nil {
		client = &http.Client{}
	}
	if pacer == nil {
		pacer = ratelimit.NewFixedPacer(cfg.Delay)
	}

	return &Downloader{
		client: client,
		pacer:  pacer,
		cfg:    cfg,
		logger: logger.With("component", "downloader"),
	}
}

// Download retrieves every item in order. It fails with
// ErrNoImagesDownloaded when no image succeeds, and with the context error
// when cancelled.
func (d *Downloader) Download(ctx context.Context, items []models.DownloadItem, opts Options) (*Result, error) {
	result := &Result{Entries: make([]models.BundleEntry, 0, len(items))}
	used := make(map[string]map[string]struct{})

	customFolder := ""
	if strings.TrimSpace(opts.CustomFolder) != "" {
		customFolder = SanitizeFilename(opts.CustomFolder, MaxFolderNameLength)
	}

	for _, item := range items {
		if err := d.pacer.Wait(ctx); err != nil {
			return nil, err
		}

		data, contentType, err := d.fetch(ctx, item.URL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", item.Filename, err))
			d.logger.Warn("image download failed", "url", item.URL, "error", err)
			continue
		}

		folder := customFolder
		if folder == "" && opts.UseFolders && strings.TrimSpace(item.ProductTitle) != "" {
			folder = SanitizeFilename(item.ProductTitle, MaxFolderNameLength)
		}

		name := item.Filename
		if strings.TrimSpace(name) == "" {
			name = "image" + ExtensionFromURL(item.URL)
		}
		if used[folder] == nil {
			used[folder] = make(map[string]struct{})
		}
		name = uniqueName(sanitizeEntryName(name), used[folder])

		result.Entries = append(result.Entries, models.BundleEntry{
			Name:        name,
			Folder:      folder,
			ContentType: contentType,
			Data:        data,
		})
		result.Succeeded++
	}

	d.logger.Info("image downloads finished",
		"requested", len(items),
		"succeeded", result.Succeeded,
		"failed", result.Failed)

	if result.Succeeded == 0 {
		result.Entries = nil
		return result, fmt.Errorf("%w: %s", ErrNoImagesDownloaded, result.Summary())
	}

	return result, nil
}

func (d *Downloader) fetch(ctx context.Context, url string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/svg+xml,image/*,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("%w: HTTP %d", ErrBadStatus, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/") {
		return nil, "", fmt.Errorf("%w: %s", ErrNotImage, contentType)
	}

	if resp.ContentLength > d.cfg.MaxImageBytes {
		return nil, "", fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.cfg.MaxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > d.cfg.MaxImageBytes {
		return nil, "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, d.cfg.MaxImageBytes)
	}

	return data, contentType, nil
}

// WriteBundle hands the entries to the archiver.
func WriteBundle(w io.Writer, archiver Archiver, entries []models.BundleEntry) error {
	if err := archiver.Write(w, entries); err != nil {
		return fmt.Errorf("failed to create ZIP file: %w", err)
	}
	return nil
}
