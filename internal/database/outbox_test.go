package database

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/feed-image-extractor/internal/models"
)

func TestPrepareEventDefaults(t *testing.T) {
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	event := &OutboxEvent{AggregateType: "feed", EventType: "FEED_PARSED"}

	prepareEvent(event, now)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, OutboxStatusPending, event.Status)
	assert.Equal(t, DefaultStream, event.TargetStream)
	assert.Equal(t, now, event.CreatedAt)
	require.NotNil(t, event.NextRetryAt)
	assert.Equal(t, now, *event.NextRetryAt)
}

func TestPrepareEventKeepsExplicitValues(t *testing.T) {
	id := uuid.New()
	later := time.Now().Add(time.Minute)
	event := &OutboxEvent{ID: id, TargetStream: "stream:custom", NextRetryAt: &later}

	prepareEvent(event, time.Now())

	assert.Equal(t, id, event.ID)
	assert.Equal(t, "stream:custom", event.TargetStream)
	assert.Equal(t, later, *event.NextRetryAt)
}

// setupTestDB connects to TEST_DATABASE_URL and applies migrations.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("Test database not configured")
	}

	db, err := New(context.Background(), Config{DSN: dsn, MaxConns: 4})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(db.Close)
	return db
}

func TestOutboxLifecycle(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewOutboxRepository(db)

	event := &OutboxEvent{
		AggregateType: "feed",
		AggregateID:   "https://shop.example.com/" + uuid.NewString(),
		EventType:     "FEED_PARSED",
		Payload:       json.RawMessage(`{"total_count":1}`),
	}
	require.NoError(t, db.Transaction(ctx, func(tx pgx.Tx) error {
		return repo.InsertWithTx(ctx, tx, event)
	}))

	require.NoError(t, repo.MarkFailed(ctx, event.ID, errors.New("redis down")))
	require.NoError(t, repo.MarkProcessed(ctx, event.ID))

	err := repo.MarkProcessed(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestOutboxRollbackDiscardsEvent(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewOutboxRepository(db)

	event := &OutboxEvent{
		AggregateType: "feed",
		AggregateID:   "rolled-back-" + uuid.NewString(),
		EventType:     "FEED_PARSED",
		Payload:       json.RawMessage(`{}`),
	}
	err := db.Transaction(ctx, func(tx pgx.Tx) error {
		if err := repo.InsertWithTx(ctx, tx, event); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	pending, err := repo.GetPending(ctx, 1000)
	require.NoError(t, err)
	for _, e := range pending {
		assert.NotEqual(t, event.AggregateID, e.AggregateID)
	}
}

func TestJobRepositoryClaimAndComplete(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewJobRepository(db)

	job := &FeedJob{
		ID:        uuid.NewString(),
		SourceURL: "https://shop.example.com/feed.xml",
		Status:    JobStatusPending,
		CreatedAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, repo.Create(ctx, job))

	claimed, err := repo.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, JobStatusRunning, claimed.Status)

	require.NoError(t, repo.UpdateProgress(ctx, claimed.ID, 1, 2, 3))

	feed := &models.ParsedFeed{
		Products:   []models.Product{{ID: "product-1", Title: "Red Shoe"}},
		TotalCount: 2,
		FeedTitle:  "Shop",
	}
	require.NoError(t, db.Transaction(ctx, func(tx pgx.Tx) error {
		return repo.CompleteWithTx(ctx, tx, claimed.ID, feed)
	}))

	stored, err := repo.Get(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, stored.Status)
	assert.Equal(t, "Shop", stored.FeedTitle)
	require.Len(t, stored.Products, 1)
	assert.Equal(t, "Red Shoe", stored.Products[0].Title)

	_, err = repo.Get(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrJobNotFound)
}
