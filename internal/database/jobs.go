package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/maltedev/feed-image-extractor/internal/models"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrNoPendingJobs = errors.New("no pending jobs")
)

// FeedJob is a background parse of a remote feed.
type FeedJob struct {
	ID             string           `json:"id"`
	SourceURL      string           `json:"source_url"`
	Status         string           `json:"status"`
	ItemsTotal     int              `json:"items_total"`
	ItemsProcessed int              `json:"items_processed"`
	ImagesFound    int              `json:"images_found"`
	Products       []models.Product `json:"products,omitempty"`
	FeedTitle      string           `json:"feed_title,omitempty"`
	Error          string           `json:"error,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	StartedAt      *time.Time       `json:"started_at,omitempty"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
}

type JobRepository struct {
	db *DB
}

func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `
	id, source_url, status, items_total, items_processed, images_found,
	products, feed_title, error, created_at, started_at, completed_at`

func (r *JobRepository) Create(ctx context.Context, job *FeedJob) error {
	query := `
		INSERT INTO feed_jobs (id, source_url, status, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.pool.Exec(ctx, query, job.ID, job.SourceURL, job.Status, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (r *JobRepository) Get(ctx context.Context, id string) (*FeedJob, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM feed_jobs WHERE id = $1`, id)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// List returns the newest jobs without their product payloads.
func (r *JobRepository) List(ctx context.Context, limit int) ([]*FeedJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM feed_jobs
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*FeedJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		job.Products = nil
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return jobs, nil
}

// ClaimNext marks the oldest pending job as running and returns it.
// Concurrent workers never claim the same job.
func (r *JobRepository) ClaimNext(ctx context.Context) (*FeedJob, error) {
	query := `
		UPDATE feed_jobs
		SET status = $1, started_at = NOW()
		WHERE id = (
			SELECT id FROM feed_jobs
			WHERE status = $2
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns

	job, err := scanJob(r.db.pool.QueryRow(ctx, query, JobStatusRunning, JobStatusPending))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoPendingJobs
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	return job, nil
}

func (r *JobRepository) UpdateProgress(ctx context.Context, id string, processed, total, images int) error {
	query := `
		UPDATE feed_jobs
		SET items_processed = $1, items_total = $2, images_found = $3
		WHERE id = $4`

	_, err := r.db.pool.Exec(ctx, query, processed, total, images, id)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	return nil
}

// CompleteWithTx stores the parsed feed on the job inside tx.
func (r *JobRepository) CompleteWithTx(ctx context.Context, tx pgx.Tx, id string, feed *models.ParsedFeed) error {
	products, err := json.Marshal(feed.Products)
	if err != nil {
		return fmt.Errorf("failed to marshal products: %w", err)
	}

	query := `
		UPDATE feed_jobs
		SET status = $1, products = $2, feed_title = $3,
			items_total = $4, items_processed = $4, images_found = $5,
			completed_at = NOW()
		WHERE id = $6`

	result, err := tx.Exec(ctx, query,
		JobStatusCompleted, products, feed.FeedTitle,
		feed.TotalCount, feed.ImageCount(), id)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (r *JobRepository) Fail(ctx context.Context, id string, message string) error {
	query := `
		UPDATE feed_jobs
		SET status = $1, error = $2, completed_at = NOW()
		WHERE id = $3`

	_, err := r.db.pool.Exec(ctx, query, JobStatusFailed, message, id)
	if err != nil {
		return fmt.Errorf("failed to mark job as failed: %w", err)
	}
	return nil
}

func scanJob(row pgx.Row) (*FeedJob, error) {
	job := &FeedJob{}
	var products []byte

	err := row.Scan(
		&job.ID, &job.SourceURL, &job.Status,
		&job.ItemsTotal, &job.ItemsProcessed, &job.ImagesFound,
		&products, &job.FeedTitle, &job.Error,
		&job.CreatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(products) > 0 {
		if err := json.Unmarshal(products, &job.Products); err != nil {
			return nil, fmt.Errorf("failed to decode products: %w", err)
		}
	}

	return job, nil
}
