// Package app builds the feed pipeline from configuration for the binaries.
package app

import (
	"log/slog"
	"net/http"

	"github.com/maltedev/feed-image-extractor/internal/browser"
	"github.com/maltedev/feed-image-extractor/internal/config"
	"github.com/maltedev/feed-image-extractor/internal/downloader"
	"github.com/maltedev/feed-image-extractor/internal/feed"
	"github.com/maltedev/feed-image-extractor/internal/fetcher"
	"github.com/maltedev/feed-image-extractor/internal/parser"
	"github.com/maltedev/feed-image-extractor/internal/ratelimit"
)

// Pipeline holds the feed service and anything that must be closed with it.
type Pipeline struct {
	Feeds   *feed.Service
	browser *browser.LazyFetcher
}

func NewPipeline(cfg *config.Config, logger *slog.Logger) *Pipeline {
	var opts []fetcher.Option
	var lazy *browser.LazyFetcher

	if cfg.Fetcher.BrowserFallback {
		bopts := browser.DefaultOptions()
		bopts.Headless = cfg.Fetcher.BrowserHeadless
		bopts.Timeout = cfg.Fetcher.BrowserTimeout
		lazy = browser.NewLazyFetcher(bopts, logger)
		opts = append(opts, fetcher.WithFallback(lazy))
	}

	f := fetcher.New(fetcher.Config{
		DirectTimeout: cfg.Fetcher.DirectTimeout,
		ProxyTimeout:  cfg.Fetcher.ProxyTimeout,
		MaxRetries:    cfg.Fetcher.MaxRetries,
		Proxies:       cfg.Fetcher.Proxies,
	}, &http.Client{}, logger, opts...)

	svc := feed.NewService(parser.NewFeedParser(), f, feed.Options{
		BatchSize:        cfg.Feed.BatchSize,
		ProgressInterval: cfg.Feed.ProgressInterval,
	}, logger)

	return &Pipeline{Feeds: svc, browser: lazy}
}

// Close stops the browser fallback if it was started.
func (p *Pipeline) Close() error {
	if p.browser == nil {
		return nil
	}
	return p.browser.Close()
}

func NewDownloader(cfg *config.Config, logger *slog.Logger) *downloader.Downloader {
	dcfg := downloader.Config{
		Delay:         cfg.Downloader.Delay,
		MaxImageBytes: cfg.Downloader.MaxImageBytes,
		Timeout:       cfg.Downloader.Timeout,
	}
	return downloader.New(dcfg, &http.Client{}, ratelimit.NewFixedPacer(cfg.Downloader.Delay), logger)
}
