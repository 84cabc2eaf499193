package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maltedev/feed-image-extractor/internal/database"
	"github.com/maltedev/feed-image-extractor/internal/events"
	"github.com/maltedev/feed-image-extractor/internal/feed"
	"github.com/maltedev/feed-image-extractor/internal/models"
)

const (
	DefaultPollInterval      = 5 * time.Second
	DefaultProgressSaveEvery = 100

	listLimit = 100
)

var ErrInvalidURL = errors.New("feed URL must be an absolute http(s) URL")

type Store interface {
	Create(ctx context.Context, job *database.FeedJob) error
	Get(ctx context.Context, id string) (*database.FeedJob, error)
	List(ctx context.Context, limit int) ([]*database.FeedJob, error)
	ClaimNext(ctx context.Context) (*database.FeedJob, error)
	UpdateProgress(ctx context.Context, id string, processed, total, images int) error
	CompleteWithTx(ctx context.Context, tx pgx.Tx, id string, feed *models.ParsedFeed) error
	Fail(ctx context.Context, id string, message string) error
}

type Transactor interface {
	Transaction(ctx context.Context, fn func(pgx.Tx) error) error
}

type FeedParser interface {
	ParseURL(ctx context.Context, url string, onScope feed.ScopeFunc, onProgress feed.ProgressFunc) (*models.ParsedFeed, error)
}

type EventPublisher interface {
	PublishFeedParsedWithTx(ctx context.Context, tx pgx.Tx, payload *events.FeedParsedPayload) error
}

type Config struct {
	PollInterval time.Duration
	// ProgressSaveEvery persists progress at most once per this many items.
	ProgressSaveEvery int
}

type Manager struct {
	store     Store
	tx        Transactor
	parser    FeedParser
	publisher EventPublisher
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

func NewManager(store Store, tx Transactor, parser FeedParser, publisher EventPublisher, cfg Config, logger *slog.Logger) *Manager {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ProgressSaveEvery <= 0 {
		cfg.ProgressSaveEvery = DefaultProgressSaveEvery
	}
	return &Manager{
		store:     store,
		tx:        tx,
		parser:    parser,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.With("component", "job_manager"),
		now:       time.Now,
	}
}

// CreateJob queues a background parse of feedURL.
func (m *Manager) CreateJob(ctx context.Context, feedURL string) (*database.FeedJob, error) {
	feedURL = strings.TrimSpace(feedURL)
	u, err := url.Parse(feedURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidURL
	}

	job := &database.FeedJob{
		ID:        uuid.New().String(),
		SourceURL: feedURL,
		Status:    database.JobStatusPending,
		CreatedAt: m.now(),
	}

	if err := m.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	m.logger.Info("job created", "id", job.ID, "url", feedURL)
	return job, nil
}

// GetJob returns the job with the given id. Ids that are not UUIDs cannot
// exist and report database.ErrJobNotFound without a lookup.
func (m *Manager) GetJob(ctx context.Context, id string) (*database.FeedJob, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", database.ErrJobNotFound, id)
	}
	return m.store.Get(ctx, id)
}

func (m *Manager) ListJobs(ctx context.Context) ([]*database.FeedJob, error) {
	return m.store.List(ctx, listLimit)
}
