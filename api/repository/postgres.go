package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"hdrEnhancer/api/database"
	"hdrEnhancer/api/models"
	"hdrEnhancer/pkg/task"
)

const taskColumns = `
	id::text, trace_id, owner, original_filename, input_location, result_location,
	status, progress, job_handle, error_message, output_format, output_quality,
	created_at, updated_at, processing_time_seconds, input_size_bytes, output_size_bytes
`

type PostgresRepo struct {
	db *database.DB
}

func NewPostgresRepo(db *database.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	err := row.Scan(
		&t.ID,
		&t.TraceID,
		&t.Owner,
		&t.OriginalFilename,
		&t.InputLocation,
		&t.ResultLocation,
		&t.Status,
		&t.Progress,
		&t.JobHandle,
		&t.ErrorMessage,
		&t.OutputFormat,
		&t.OutputQuality,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.ProcessingTimeSeconds,
		&t.InputSizeBytes,
		&t.OutputSizeBytes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *PostgresRepo) CreateTask(ctx context.Context, t *models.Task) error {
	query := `
		INSERT INTO enhancement_tasks
			(trace_id, owner, original_filename, input_location, status, progress,
			 output_format, output_quality, input_size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id::text, created_at, updated_at
	`

	return r.db.Pool.QueryRow(ctx, query,
		t.TraceID,
		t.Owner,
		t.OriginalFilename,
		t.InputLocation,
		t.Status,
		t.Progress,
		t.OutputFormat,
		t.OutputQuality,
		t.InputSizeBytes,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

func (r *PostgresRepo) GetTask(ctx context.Context, id, owner string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM enhancement_tasks WHERE id = $1 AND owner = $2`
	return scanTask(r.db.Pool.QueryRow(ctx, query, id, owner))
}

func (r *PostgresRepo) ListTasks(ctx context.Context, owner string, limit, offset int) ([]models.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM enhancement_tasks
		WHERE owner = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, owner, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]models.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}

	return tasks, rows.Err()
}

func (r *PostgresRepo) CountTasks(ctx context.Context, owner string) (int, error) {
	var total int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM enhancement_tasks WHERE owner = $1`, owner).Scan(&total)
	return total, err
}

func (r *PostgresRepo) SetJobHandle(ctx context.Context, id, handle string) error {
	result, err := r.db.Pool.Exec(ctx,
		`UPDATE enhancement_tasks SET job_handle = $1, updated_at = NOW() WHERE id = $2`,
		handle, id,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrTaskNotFound
	}

	return nil
}

func (r *PostgresRepo) MarkFailed(ctx context.Context, id, errorMessage string) error {
	query := `
		UPDATE enhancement_tasks
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3 AND status IN ($4, $5)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		task.StatusFailed, errorMessage, id, task.StatusPending, task.StatusProcessing,
	)
	return err
}

func (r *PostgresRepo) CancelTask(ctx context.Context, id, owner, message string) (*models.Task, error) {
	query := `
		UPDATE enhancement_tasks
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3 AND owner = $4 AND status IN ($5, $6)
		RETURNING ` + taskColumns

	t, err := scanTask(r.db.Pool.QueryRow(ctx, query,
		task.StatusCancelled, message, id, owner, task.StatusPending, task.StatusProcessing,
	))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, ErrTaskNotFound) {
		return nil, err
	}

	// No active row matched: either the task does not exist for this owner
	// or it already reached a terminal state.
	if _, err := r.GetTask(ctx, id, owner); err != nil {
		return nil, err
	}
	return nil, ErrInvalidTransition
}
