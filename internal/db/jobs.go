package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dailydream/studio/internal/models"
)

func (db *DB) CreateJob(ctx context.Context, job *models.JobRecord) error {
	if db == nil {
		return nil
	}

	query := `
		INSERT INTO jobs (
			id, status, videos_requested
		) VALUES ($1, $2, $3)
		RETURNING created_at
	`

	return db.QueryRowContext(
		ctx, query,
		job.ID, job.Status, job.VideosRequested,
	).Scan(&job.CreatedAt)
}

func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*models.JobRecord, error) {
	if db == nil {
		return nil, fmt.Errorf("job history is not enabled")
	}

	query := `
		SELECT
			id, status, output_filename, videos_requested, videos_processed,
			error_message, started_at, finished_at, created_at
		FROM jobs
		WHERE id = $1
	`

	job := &models.JobRecord{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&job.ID, &job.Status, &job.OutputFilename, &job.VideosRequested,
		&job.VideosProcessed, &job.ErrorMessage, &job.StartedAt,
		&job.FinishedAt, &job.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

func (db *DB) ListRecentJobs(ctx context.Context, limit int) ([]models.JobRecord, error) {
	if db == nil {
		return nil, fmt.Errorf("job history is not enabled")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT
			id, status, output_filename, videos_requested, videos_processed,
			error_message, started_at, finished_at, created_at
		FROM jobs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.JobRecord
	for rows.Next() {
		var job models.JobRecord
		err := rows.Scan(
			&job.ID, &job.Status, &job.OutputFilename, &job.VideosRequested,
			&job.VideosProcessed, &job.ErrorMessage, &job.StartedAt,
			&job.FinishedAt, &job.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

func (db *DB) UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) error {
	if db == nil {
		return nil
	}

	now := time.Now()
	query := `UPDATE jobs SET status = $1, started_at = COALESCE(started_at, $2) WHERE id = $3`

	if status == models.JobStatusDone || status == models.JobStatusFailed {
		query = `UPDATE jobs SET status = $1, finished_at = $2 WHERE id = $3`
	}

	_, err := db.ExecContext(ctx, query, status, now, id)
	return err
}

func (db *DB) CompleteJob(ctx context.Context, id uuid.UUID, outputFilename string, videosProcessed int) error {
	if db == nil {
		return nil
	}

	query := `
		UPDATE jobs
		SET status = $1, output_filename = $2, videos_processed = $3, finished_at = $4
		WHERE id = $5
	`
	_, err := db.ExecContext(ctx, query, models.JobStatusDone, outputFilename, videosProcessed, time.Now(), id)
	return err
}

func (db *DB) UpdateJobError(ctx context.Context, id uuid.UUID, errorMessage string) error {
	if db == nil {
		return nil
	}

	query := `
		UPDATE jobs
		SET status = $1, error_message = $2, finished_at = $3
		WHERE id = $4
	`
	_, err := db.ExecContext(ctx, query, models.JobStatusFailed, errorMessage, time.Now(), id)
	return err
}
