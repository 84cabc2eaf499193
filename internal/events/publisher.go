package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maltedev/feed-image-extractor/internal/database"
	"github.com/maltedev/feed-image-extractor/internal/models"
)

type EventType string

const (
	// EventTypeFeedParsed is published when a background job finishes parsing a feed.
	EventTypeFeedParsed EventType = "FEED_PARSED"

	aggregateFeed = "feed"
)

// FeedParsedPayload summarizes a parsed feed. Products are not included;
// consumers load them from the job.
type FeedParsedPayload struct {
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	Timestamp    time.Time `json:"timestamp"`
	JobID        string    `json:"job_id"`
	SourceURL    string    `json:"source_url"`
	FeedTitle    string    `json:"feed_title,omitempty"`
	TotalCount   int       `json:"total_count"`
	ProductCount int       `json:"product_count"`
	ImageCount   int       `json:"image_count"`
}

// NewFeedParsedPayload builds the payload for a finished job.
func NewFeedParsedPayload(jobID, sourceURL string, feed *models.ParsedFeed) *FeedParsedPayload {
	return &FeedParsedPayload{
		JobID:        jobID,
		SourceURL:    sourceURL,
		FeedTitle:    feed.FeedTitle,
		TotalCount:   feed.TotalCount,
		ProductCount: len(feed.Products),
		ImageCount:   feed.ImageCount(),
	}
}

type OutboxWriter interface {
	InsertWithTx(ctx context.Context, tx pgx.Tx, event *database.OutboxEvent) error
}

// Publisher writes domain events to the transactional outbox.
type Publisher struct {
	outbox OutboxWriter
	stream string
	logger *slog.Logger
}

func NewPublisher(outbox OutboxWriter, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = database.DefaultStream
	}
	return &Publisher{
		outbox: outbox,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

// PublishFeedParsedWithTx adds a FEED_PARSED event to tx. The event only
// becomes visible to the relay when tx commits.
func (p *Publisher) PublishFeedParsedWithTx(ctx context.Context, tx pgx.Tx, payload *FeedParsedPayload) error {
	if payload.EventID == "" {
		payload.EventID = uuid.New().String()
	}
	if payload.EventType == "" {
		payload.EventType = string(EventTypeFeedParsed)
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	event := &database.OutboxEvent{
		AggregateType: aggregateFeed,
		AggregateID:   payload.JobID,
		EventType:     string(EventTypeFeedParsed),
		Payload:       data,
		TargetStream:  p.stream,
	}

	if err := p.outbox.InsertWithTx(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Info("event published to outbox",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"job_id", payload.JobID,
		"outbox_id", event.ID)

	return nil
}
