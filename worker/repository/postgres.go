package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hdrEnhancer/pkg/task"
)

var ErrTaskNotFound = errors.New("task not found")

// TaskRecord is the slice of an enhancement task the worker needs to run it.
type TaskRecord struct {
	ID            string
	TraceID       string
	Owner         string
	InputLocation string
	Status        task.Status
	Progress      int
	JobHandle     *string
	OutputFormat  task.Format
	OutputQuality int
}

// Completion carries the fields written when a job finishes successfully.
type Completion struct {
	TaskID          string
	ResultLocation  string
	ProcessingTime  time.Duration
	InputSizeBytes  int64
	OutputSizeBytes int64
}

type PostgresRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRepo(db *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func Connect(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

func (r *PostgresRepo) GetTask(ctx context.Context, taskID string) (*TaskRecord, error) {
	query := `
		SELECT id::text, trace_id, owner, input_location, status, progress,
		       job_handle, output_format, output_quality
		FROM enhancement_tasks
		WHERE id = $1
	`

	var t TaskRecord
	err := r.db.QueryRow(ctx, query, taskID).Scan(
		&t.ID,
		&t.TraceID,
		&t.Owner,
		&t.InputLocation,
		&t.Status,
		&t.Progress,
		&t.JobHandle,
		&t.OutputFormat,
		&t.OutputQuality,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *PostgresRepo) Status(ctx context.Context, taskID string) (task.Status, error) {
	var status task.Status
	err := r.db.QueryRow(ctx, `SELECT status FROM enhancement_tasks WHERE id = $1`, taskID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrTaskNotFound
		}
		return "", err
	}
	return status, nil
}

// StartProcessing moves an active task to processing at the acquire
// checkpoint. It reports false when the task is no longer active.
func (r *PostgresRepo) StartProcessing(ctx context.Context, taskID string) (bool, error) {
	query := `
		UPDATE enhancement_tasks
		SET status = 'processing', progress = GREATEST(progress, $2), updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'processing')
	`

	tag, err := r.db.Exec(ctx, query, taskID, task.ProgressAcquired)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateProgress never lowers progress and only touches processing tasks.
func (r *PostgresRepo) UpdateProgress(ctx context.Context, taskID string, progress int) (bool, error) {
	query := `
		UPDATE enhancement_tasks
		SET progress = GREATEST(progress, $2), updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`

	tag, err := r.db.Exec(ctx, query, taskID, progress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Complete finalizes a processing task and bumps the owner's counters in the
// same transaction. It reports false when the task left processing first.
func (r *PostgresRepo) Complete(ctx context.Context, c Completion) (bool, error) {
	var updated bool
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var owner string
		err := tx.QueryRow(ctx, `
			UPDATE enhancement_tasks
			SET status = 'completed',
			    progress = $2,
			    result_location = $3,
			    processing_time_seconds = $4,
			    input_size_bytes = $5,
			    output_size_bytes = $6,
			    updated_at = NOW()
			WHERE id = $1 AND status = 'processing'
			RETURNING owner
		`, c.TaskID, task.ProgressDone, c.ResultLocation, c.ProcessingTime.Seconds(), c.InputSizeBytes, c.OutputSizeBytes).Scan(&owner)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		updated = true

		_, err = tx.Exec(ctx, `
			UPDATE user_profiles
			SET total_processed = total_processed + 1,
			    total_successful = total_successful + 1,
			    updated_at = NOW()
			WHERE username = $1
		`, owner)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("complete task: %w", err)
	}
	return updated, nil
}

// Fail marks an active task failed with message and bumps the owner's
// failure counters. It reports false when the task was already terminal.
func (r *PostgresRepo) Fail(ctx context.Context, taskID, message string) (bool, error) {
	var updated bool
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var owner string
		err := tx.QueryRow(ctx, `
			UPDATE enhancement_tasks
			SET status = 'failed', error_message = $2, updated_at = NOW()
			WHERE id = $1 AND status IN ('pending', 'processing')
			RETURNING owner
		`, taskID, message).Scan(&owner)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		updated = true

		_, err = tx.Exec(ctx, `
			UPDATE user_profiles
			SET total_processed = total_processed + 1,
			    total_failed = total_failed + 1,
			    updated_at = NOW()
			WHERE username = $1
		`, owner)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("fail task: %w", err)
	}
	return updated, nil
}
