package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"hdrEnhancer/api/database"
	"hdrEnhancer/api/models"
	"hdrEnhancer/pkg/task"
)

// openTestDB connects to TEST_DATABASE_URL and applies the migrations.
func openTestDB(t *testing.T) *database.DB {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.ConnectPostgres(ctx, url)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, database.Migrate(ctx, db, zaptest.NewLogger(t), "up"))
	return db
}

func newTask(owner string) *models.Task {
	size := int64(1024)
	return &models.Task{
		TraceID:          uuid.NewString(),
		Owner:            owner,
		OriginalFilename: "sunset.jpg",
		InputLocation:    "uploads/" + uuid.NewString() + ".jpg",
		Status:           task.StatusPending,
		OutputFormat:     task.FormatJPEG,
		OutputQuality:    95,
		InputSizeBytes:   &size,
	}
}

func TestPostgresRepo_TaskLifecycle(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresRepo(db)
	ctx := context.Background()
	owner := "it-" + uuid.NewString()

	created := newTask(owner)
	require.NoError(t, repo.CreateTask(ctx, created))
	require.NotEmpty(t, created.ID)

	require.NoError(t, repo.SetJobHandle(ctx, created.ID, "handle-1"))

	got, err := repo.GetTask(ctx, created.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, task.StatusPending, got.Status)
	assert.Equal(t, 0, got.Progress)
	require.NotNil(t, got.JobHandle)
	assert.Equal(t, "handle-1", *got.JobHandle)

	_, err = repo.GetTask(ctx, created.ID, "someone-else")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	cancelled, err := repo.CancelTask(ctx, created.ID, owner, task.CancelledMessage)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.ErrorMessage)
	assert.Equal(t, task.CancelledMessage, *cancelled.ErrorMessage)

	_, err = repo.CancelTask(ctx, created.ID, owner, task.CancelledMessage)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Terminal rows ignore later failure writes.
	require.NoError(t, repo.MarkFailed(ctx, created.ID, "failed to enqueue job: broker down"))
	got, err = repo.GetTask(ctx, created.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCancelled, got.Status)
}

func TestPostgresRepo_ListAndCount(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresRepo(db)
	ctx := context.Background()
	owner := "it-" + uuid.NewString()

	var ids []string
	for i := 0; i < 3; i++ {
		tk := newTask(owner)
		require.NoError(t, repo.CreateTask(ctx, tk))
		ids = append(ids, tk.ID)
	}

	tasks, err := repo.ListTasks(ctx, owner, 2, 0)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.False(t, tasks[0].CreatedAt.Before(tasks[1].CreatedAt))

	total, err := repo.CountTasks(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestPostgresProfileRepo(t *testing.T) {
	db := openTestDB(t)
	profiles := NewPostgresProfileRepo(db)
	tasks := NewPostgresRepo(db)
	ctx := context.Background()
	owner := "it-" + uuid.NewString()

	p, err := profiles.GetOrCreateProfile(ctx, &models.Profile{Username: owner, Email: "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultDailyLimit, p.DailyLimit)
	assert.Equal(t, task.FormatJPEG, p.PreferredOutputFormat)

	// A later login without an email keeps the stored one.
	p, err = profiles.GetOrCreateProfile(ctx, &models.Profile{Username: owner})
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", p.Email)

	quality := 80
	p, err = profiles.UpdatePreferences(ctx, owner, nil, &quality)
	require.NoError(t, err)
	assert.Equal(t, 80, p.PreferredQuality)
	assert.Equal(t, task.FormatJPEG, p.PreferredOutputFormat)

	require.NoError(t, tasks.CreateTask(ctx, newTask(owner)))
	usage, err := profiles.CountUsage(ctx, owner, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, usage.Daily)
	assert.Equal(t, 1, usage.Monthly)
}
