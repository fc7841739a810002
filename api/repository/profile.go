package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"hdrEnhancer/api/database"
	"hdrEnhancer/api/models"
)

const profileColumns = `
	username, email, employee_id, department, daily_limit, monthly_limit,
	total_processed, total_successful, total_failed,
	preferred_output_format, preferred_quality, created_at, updated_at
`

var ErrProfileNotFound = errors.New("profile not found")

type PostgresProfileRepo struct {
	db *database.DB
}

func NewPostgresProfileRepo(db *database.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(
		&p.Username,
		&p.Email,
		&p.EmployeeID,
		&p.Department,
		&p.DailyLimit,
		&p.MonthlyLimit,
		&p.TotalProcessed,
		&p.TotalSuccessful,
		&p.TotalFailed,
		&p.PreferredOutputFormat,
		&p.PreferredQuality,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PostgresProfileRepo) GetOrCreateProfile(ctx context.Context, seed *models.Profile) (*models.Profile, error) {
	query := `
		INSERT INTO user_profiles (username, email, employee_id, department, daily_limit, monthly_limit)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (username) DO UPDATE
		SET email = COALESCE(NULLIF(EXCLUDED.email, ''), user_profiles.email),
		    employee_id = COALESCE(NULLIF(EXCLUDED.employee_id, ''), user_profiles.employee_id),
		    department = COALESCE(NULLIF(EXCLUDED.department, ''), user_profiles.department)
		RETURNING ` + profileColumns

	return scanProfile(r.db.Pool.QueryRow(ctx, query,
		seed.Username,
		seed.Email,
		seed.EmployeeID,
		seed.Department,
		models.DefaultDailyLimit,
		models.DefaultMonthlyLimit,
	))
}

func (r *PostgresProfileRepo) UpdatePreferences(ctx context.Context, username string, format *string, quality *int) (*models.Profile, error) {
	query := `
		UPDATE user_profiles
		SET preferred_output_format = COALESCE($2, preferred_output_format),
		    preferred_quality = COALESCE($3, preferred_quality),
		    updated_at = NOW()
		WHERE username = $1
		RETURNING ` + profileColumns

	return scanProfile(r.db.Pool.QueryRow(ctx, query, username, format, quality))
}

func (r *PostgresProfileRepo) CountUsage(ctx context.Context, owner string, now time.Time) (models.Usage, error) {
	dayStart, monthStart := UsageWindow(now)

	query := `
		SELECT
			COUNT(*) FILTER (WHERE created_at >= $2),
			COUNT(*)
		FROM enhancement_tasks
		WHERE owner = $1 AND created_at >= $3
	`

	var usage models.Usage
	err := r.db.Pool.QueryRow(ctx, query, owner, dayStart, monthStart).Scan(&usage.Daily, &usage.Monthly)
	return usage, err
}
