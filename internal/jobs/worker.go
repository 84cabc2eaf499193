package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/maltedev/feed-image-extractor/internal/database"
	"github.com/maltedev/feed-image-extractor/internal/events"
	"github.com/maltedev/feed-image-extractor/internal/feed"
	"github.com/maltedev/feed-image-extractor/internal/models"
)

// StartWorker claims and runs pending jobs until ctx is cancelled.
func (m *Manager) StartWorker(ctx context.Context, id int) {
	logger := m.logger.With("worker", id)
	logger.Info("job worker started")

	for {
		// Drain the backlog before sleeping.
		for m.processNextJob(ctx) {
			if ctx.Err() != nil {
				break
			}
		}

		select {
		case <-ctx.Done():
			logger.Info("job worker stopping")
			return
		case <-time.After(m.cfg.PollInterval):
		}
	}
}

// processNextJob reports whether a job was claimed.
func (m *Manager) processNextJob(ctx context.Context) bool {
	job, err := m.store.ClaimNext(ctx)
	if errors.Is(err, database.ErrNoPendingJobs) {
		return false
	}
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Error("failed to claim job", "error", err)
		}
		return false
	}

	m.logger.Info("processing job", "id", job.ID, "url", job.SourceURL)

	if err := m.runJob(ctx, job); err != nil {
		m.logger.Error("job failed", "id", job.ID, "error", err)
		// Record the failure even when the worker is shutting down.
		if failErr := m.store.Fail(context.WithoutCancel(ctx), job.ID, err.Error()); failErr != nil {
			m.logger.Error("failed to mark job as failed", "id", job.ID, "error", failErr)
		}
		return true
	}

	m.logger.Info("job completed", "id", job.ID)
	return true
}

func (m *Manager) runJob(ctx context.Context, job *database.FeedJob) error {
	progress := m.progressRecorder(ctx, job.ID)

	parsed, err := m.parser.ParseURL(ctx, job.SourceURL, nil, progress)
	if err != nil {
		return err
	}
	if len(parsed.Products) == 0 {
		return feed.ErrNoProducts
	}

	return m.complete(ctx, job, parsed)
}

// complete stores the result and the FEED_PARSED event atomically.
func (m *Manager) complete(ctx context.Context, job *database.FeedJob, parsed *models.ParsedFeed) error {
	err := m.tx.Transaction(ctx, func(tx pgx.Tx) error {
		if err := m.store.CompleteWithTx(ctx, tx, job.ID, parsed); err != nil {
			return err
		}
		payload := events.NewFeedParsedPayload(job.ID, job.SourceURL, parsed)
		return m.publisher.PublishFeedParsedWithTx(ctx, tx, payload)
	})
	if err != nil {
		return fmt.Errorf("failed to store job result: %w", err)
	}
	return nil
}

// progressRecorder persists progress callbacks, throttled to one write per
// ProgressSaveEvery items plus the final callback.
func (m *Manager) progressRecorder(ctx context.Context, jobID string) feed.ProgressFunc {
	lastSaved := -1
	return func(current, total, imagesFound int) {
		if lastSaved >= 0 && current < total && current-lastSaved < m.cfg.ProgressSaveEvery {
			return
		}
		lastSaved = current
		if err := m.store.UpdateProgress(ctx, jobID, current, total, imagesFound); err != nil {
			m.logger.Warn("failed to save job progress", "id", jobID, "error", err)
		}
	}
}
