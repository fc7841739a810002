package repository

import (
	"context"
	"errors"
	"time"

	"hdrEnhancer/api/models"
)

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrInvalidTransition = errors.New("task is already in a terminal state")
)

type Repository interface {
	CreateTask(ctx context.Context, task *models.Task) error
	// GetTask returns ErrTaskNotFound when the task is absent or owned by someone else.
	GetTask(ctx context.Context, id, owner string) (*models.Task, error)
	ListTasks(ctx context.Context, owner string, limit, offset int) ([]models.Task, error)
	CountTasks(ctx context.Context, owner string) (int, error)
	SetJobHandle(ctx context.Context, id, handle string) error
	// MarkFailed moves an active task to failed. Terminal tasks are left untouched.
	MarkFailed(ctx context.Context, id, errorMessage string) error
	// CancelTask moves an active task to cancelled and returns the updated row.
	CancelTask(ctx context.Context, id, owner, message string) (*models.Task, error)
}

type ProfileRepository interface {
	// GetOrCreateProfile returns the stored profile, creating it from seed on first use.
	// Identity attributes on seed (email, employee id, department) refresh the stored row.
	GetOrCreateProfile(ctx context.Context, seed *models.Profile) (*models.Profile, error)
	UpdatePreferences(ctx context.Context, username string, format *string, quality *int) (*models.Profile, error)
	// CountUsage counts tasks created by owner in the UTC day and calendar month of now.
	CountUsage(ctx context.Context, owner string, now time.Time) (models.Usage, error)
}

// UsageWindow returns the UTC start of the day and month containing now.
func UsageWindow(now time.Time) (dayStart, monthStart time.Time) {
	now = now.UTC()
	dayStart = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return dayStart, monthStart
}
