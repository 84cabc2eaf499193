package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maltedev/feed-image-extractor/internal/models"
	"github.com/maltedev/feed-image-extractor/internal/parser"
	"github.com/maltedev/feed-image-extractor/internal/queue"
)

const (
	DefaultBatchSize        = 100
	DefaultProgressInterval = 10
)

// ErrNoProducts is returned by calling layers that treat an empty parse
// result as a user-facing failure. The service itself returns empty feeds.
var ErrNoProducts = errors.New("no products found in feed; check the URL or paste the feed content directly")

// ProgressFunc receives the number of processed item segments, the number of
// located segments and the running count of distinct images.
type ProgressFunc func(current, total, imagesFound int)

// ScopeFunc receives the upfront estimate before full processing starts.
type ScopeFunc func(scope models.Scope)

type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

type Options struct {
	BatchSize        int
	ProgressInterval int
}

type Service struct {
	parser           parser.Parser
	fetcher          Fetcher
	batchSize        int
	progressInterval int
	logger           *slog.Logger
}

func NewService(p parser.Parser, fetcher Fetcher, opts Options, logger *slog.Logger) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}

	return &Service{
		parser:           p,
		fetcher:          fetcher,
		batchSize:        opts.BatchSize,
		progressInterval: opts.ProgressInterval,
		logger:           logger.With("component", "feed"),
	}
}

// ParseURL fetches the feed, reports the scope estimate and then parses it
// in batches with progress reporting. Both callbacks are optional.
func (s *Service) ParseURL(ctx context.Context, url string, onScope ScopeFunc, onProgress ProgressFunc) (*models.ParsedFeed, error) {
	if s.fetcher == nil {
		return nil, errors.New("no fetcher configured")
	}

	s.logger.Info("fetching feed", "url", url)

	text, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	if onScope != nil {
		onScope(InitialScope(text))
	}

	return s.ParseText(ctx, text, onProgress)
}

// ParseText runs the batched pipeline over feed text. Items are processed in
// feed order, batchSize at a time. Progress is reported every
// progressInterval items, at the end of each batch and once at completion
// with current equal to total. Cancellation is checked between batches.
func (s *Service) ParseText(ctx context.Context, text string, onProgress ProgressFunc) (*models.ParsedFeed, error) {
	preamble, segments := Segment(text)
	total := len(segments)

	report := func(current, images int) {
		if onProgress != nil {
			onProgress(current, total, images)
		}
	}

	bq := queue.NewBatchQueue[string](queue.NewInMemoryQueue[string](), s.batchSize)
	if err := bq.PushBatch(segments); err != nil {
		return nil, fmt.Errorf("failed to queue feed items: %w", err)
	}
	if err := bq.Close(); err != nil {
		return nil, fmt.Errorf("failed to close feed queue: %w", err)
	}

	m := newMerger()
	processed := 0
	batches := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch, err := bq.PopBatch(ctx)
		if errors.Is(err, queue.ErrQueueEmpty) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read feed batch: %w", err)
		}
		batches++

		for i, segment := range batch {
			s.process(m, segment, processed)
			processed++

			if (i+1)%s.progressInterval == 0 {
				report(processed, m.images)
			}
		}

		report(processed, m.images)
	}

	report(total, m.images)

	result := s.result(m, preamble)
	s.logger.Info("feed parsed",
		"items", total,
		"batches", batches,
		"products", result.TotalCount,
		"images", m.images)

	return result, nil
}

// ParseContent parses feed text supplied directly by the caller. It runs the
// same extraction and merge rules as ParseText without batching or progress.
func (s *Service) ParseContent(text string) *models.ParsedFeed {
	preamble, segments := Segment(text)

	m := newMerger()
	for i, segment := range segments {
		s.process(m, segment, i)
	}

	return s.result(m, preamble)
}

func (s *Service) process(m *merger, segment string, index int) {
	product := s.extract(segment, index)
	if product == nil {
		return
	}
	m.add(product)
}

// extract isolates one item: a panic while extracting it skips the item.
func (s *Service) extract(segment string, index int) (product *models.Product) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("skipping malformed item", "index", index, "error", r)
			product = nil
		}
	}()

	return s.parser.ExtractProduct(segment)
}

func (s *Service) result(m *merger, preamble string) *models.ParsedFeed {
	title, description := s.parser.ParseFeedMeta(preamble)
	products := m.products()

	return &models.ParsedFeed{
		Products:        products,
		TotalCount:      len(products),
		FeedTitle:       title,
		FeedDescription: description,
	}
}
