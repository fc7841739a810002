package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hdrEnhancer/api/auth"
	"hdrEnhancer/api/cache"
	"hdrEnhancer/api/dto"
	"hdrEnhancer/api/kafka"
	"hdrEnhancer/api/models"
	"hdrEnhancer/api/repository"
	"hdrEnhancer/pkg/storage"
	"hdrEnhancer/pkg/task"
)

const (
	timeFormat         = "2006-01-02T15:04:05Z07:00"
	uploadAcceptedText = "Image uploaded successfully. Processing started."
	cancelledText      = "Task cancelled successfully"
)

type SnapshotCache interface {
	Get(ctx context.Context, taskID string) (*models.Task, error)
	Set(ctx context.Context, t *models.Task) error
}

type Revoker interface {
	Revoke(ctx context.Context, jobHandle string) error
}

type Options struct {
	Topic           string
	EnforceQuota    bool
	HistoryMaxLimit int
}

type TaskService struct {
	repo     repository.Repository
	profiles repository.ProfileRepository
	cache    SnapshotCache
	revoker  Revoker
	producer kafka.Producer
	store    storage.Store
	logger   *zap.Logger
	opts     Options
	now      func() time.Time
}

func NewTaskService(
	repo repository.Repository,
	profiles repository.ProfileRepository,
	snapshots SnapshotCache,
	revoker Revoker,
	producer kafka.Producer,
	store storage.Store,
	logger *zap.Logger,
	opts Options,
) *TaskService {
	if opts.Topic == "" {
		opts.Topic = "hdr_tasks"
	}
	if opts.HistoryMaxLimit <= 0 {
		opts.HistoryMaxLimit = 500
	}

	return &TaskService{
		repo:     repo,
		profiles: profiles,
		cache:    snapshots,
		revoker:  revoker,
		producer: producer,
		store:    store,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// CreateTask stores the upload, creates the task row and enqueues exactly one
// job for it. A failure after the row exists marks the row failed.
func (s *TaskService) CreateTask(ctx context.Context, traceID string, id auth.Identity, req *dto.CreateTaskRequest) (*dto.UploadResponse, error) {
	profile, err := s.profiles.GetOrCreateProfile(ctx, profileSeed(id))
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	if s.opts.EnforceQuota {
		usage, err := s.profiles.CountUsage(ctx, id.Username, s.now())
		if err != nil {
			return nil, fmt.Errorf("count usage: %w", err)
		}
		if !profile.CanProcessMore(usage) {
			uploadsTotal.WithLabelValues("quota_exceeded").Inc()
			return nil, dto.ErrQuotaExceeded
		}
	}

	inputLocation := "uploads/" + uuid.New().String() + req.InputFormat.Extension()
	size, err := s.store.Save(ctx, inputLocation, req.Body, req.Size, req.InputFormat.ContentType())
	if err != nil {
		uploadsTotal.WithLabelValues("storage_failed").Inc()
		return nil, fmt.Errorf("save upload: %w", err)
	}

	t := &models.Task{
		TraceID:          traceID,
		Owner:            id.Username,
		OriginalFilename: req.OriginalFilename,
		InputLocation:    inputLocation,
		Status:           task.StatusPending,
		Progress:         task.ProgressQueued,
		OutputFormat:     profile.PreferredOutputFormat,
		OutputQuality:    profile.PreferredQuality,
		InputSizeBytes:   &size,
	}

	if err := s.repo.CreateTask(ctx, t); err != nil {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), inputLocation); delErr != nil {
			s.logger.Warn("Failed to remove orphaned upload",
				zap.String("trace_id", traceID),
				zap.String("location", inputLocation),
				zap.Error(delErr),
			)
		}
		uploadsTotal.WithLabelValues("db_failed").Inc()
		return nil, fmt.Errorf("create task: %w", err)
	}

	msg := &task.Message{
		TaskID:        t.ID,
		TraceID:       traceID,
		Owner:         t.Owner,
		InputLocation: inputLocation,
		OutputFormat:  t.OutputFormat,
		OutputQuality: t.OutputQuality,
	}

	handle, err := s.producer.SubmitTask(ctx, s.opts.Topic, msg)
	if err != nil {
		reason := "failed to enqueue job: " + err.Error()
		if markErr := s.repo.MarkFailed(context.WithoutCancel(ctx), t.ID, reason); markErr != nil {
			s.logger.Error("Failed to mark unqueued task as failed",
				zap.String("trace_id", traceID),
				zap.String("task_id", t.ID),
				zap.Error(markErr),
			)
		}
		uploadsTotal.WithLabelValues("enqueue_failed").Inc()
		return nil, fmt.Errorf("enqueue task: %w", err)
	}

	if err := s.repo.SetJobHandle(ctx, t.ID, handle); err != nil {
		// The job is already queued and runs without the handle; only
		// revocation on cancel is lost.
		s.logger.Warn("Failed to store job handle",
			zap.String("trace_id", traceID),
			zap.String("task_id", t.ID),
			zap.String("job_handle", handle),
			zap.Error(err),
		)
	}

	uploadsTotal.WithLabelValues("accepted").Inc()

	return &dto.UploadResponse{
		TaskID:    t.ID,
		JobHandle: handle,
		Status:    string(task.StatusPending),
		Message:   uploadAcceptedText,
	}, nil
}

func (s *TaskService) GetTaskStatus(ctx context.Context, owner, taskID string) (*dto.TaskResponse, error) {
	t, err := s.getTask(ctx, owner, taskID)
	if err != nil {
		return nil, err
	}
	return toResponse(t), nil
}

func (s *TaskService) History(ctx context.Context, owner string, limit, offset int) (*dto.HistoryResponse, error) {
	if limit <= 0 || limit > s.opts.HistoryMaxLimit {
		limit = s.opts.HistoryMaxLimit
	}
	if offset < 0 {
		offset = 0
	}

	tasks, err := s.repo.ListTasks(ctx, owner, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	total, err := s.repo.CountTasks(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}

	return &dto.HistoryResponse{
		Tasks: toResponses(tasks),
		Total: total,
	}, nil
}

func (s *TaskService) CancelTask(ctx context.Context, owner, taskID string) (*dto.CancelResponse, error) {
	if !isTaskID(taskID) {
		return nil, dto.ErrTaskNotFound
	}

	t, err := s.repo.CancelTask(ctx, taskID, owner, task.CancelledMessage)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTaskNotFound):
			return nil, dto.ErrTaskNotFound
		case errors.Is(err, repository.ErrInvalidTransition):
			return nil, dto.ErrInvalidState
		default:
			return nil, fmt.Errorf("cancel task: %w", err)
		}
	}

	cancellationsTotal.Inc()

	if t.JobHandle != nil && *t.JobHandle != "" {
		if err := s.revoker.Revoke(ctx, *t.JobHandle); err != nil {
			s.logger.Warn("Failed to revoke job",
				zap.String("task_id", t.ID),
				zap.String("job_handle", *t.JobHandle),
				zap.Error(err),
			)
		}
	}

	s.cacheSnapshot(ctx, t)

	return &dto.CancelResponse{Success: true, Message: cancelledText}, nil
}

// GetResult opens the result object of a completed task. The caller closes
// the returned body.
func (s *TaskService) GetResult(ctx context.Context, owner, taskID string) (*dto.ResultFile, error) {
	t, err := s.getTask(ctx, owner, taskID)
	if err != nil {
		return nil, err
	}

	if !t.HasResult() {
		return nil, dto.ErrResultUnavailable
	}

	body, size, err := s.store.Open(ctx, *t.ResultLocation)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, dto.ErrResultUnavailable
		}
		return nil, fmt.Errorf("open result: %w", err)
	}

	return &dto.ResultFile{
		Filename:    ResultFilename(t.OriginalFilename, t.OutputFormat),
		ContentType: t.OutputFormat.ContentType(),
		Size:        size,
		Body:        body,
	}, nil
}

// getTask reads a terminal snapshot from the cache when possible and falls
// back to the database.
func (s *TaskService) getTask(ctx context.Context, owner, taskID string) (*models.Task, error) {
	if !isTaskID(taskID) {
		return nil, dto.ErrTaskNotFound
	}

	if cached, err := s.cache.Get(ctx, taskID); err == nil {
		if cached.Owner != owner {
			return nil, dto.ErrTaskNotFound
		}
		return cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Snapshot cache read failed", zap.String("task_id", taskID), zap.Error(err))
	}

	t, err := s.repo.GetTask(ctx, taskID, owner)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, dto.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}

	s.cacheSnapshot(ctx, t)

	return t, nil
}

func (s *TaskService) cacheSnapshot(ctx context.Context, t *models.Task) {
	if err := s.cache.Set(ctx, t); err != nil {
		s.logger.Warn("Snapshot cache write failed", zap.String("task_id", t.ID), zap.Error(err))
	}
}

// ResultFilename derives the download name from the uploaded filename.
func ResultFilename(original string, format task.Format) string {
	base := filepath.Base(strings.ReplaceAll(original, `\`, "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == "/" {
		base = "image"
	}
	return "hdr_enhanced_" + base + format.Extension()
}

func isTaskID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func profileSeed(id auth.Identity) *models.Profile {
	return &models.Profile{
		Username:   id.Username,
		Email:      id.Email,
		EmployeeID: id.EmployeeID,
		Department: id.Department,
	}
}

func toResponse(t *models.Task) *dto.TaskResponse {
	return &dto.TaskResponse{
		ID:                    t.ID,
		TraceID:               t.TraceID,
		OriginalFilename:      t.OriginalFilename,
		Status:                string(t.Status),
		Progress:              t.Progress,
		ResultLocation:        t.ResultLocation,
		ErrorMessage:          t.ErrorMessage,
		OutputFormat:          string(t.OutputFormat),
		CreatedAt:             t.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt:             t.UpdatedAt.UTC().Format(timeFormat),
		ProcessingTimeSeconds: t.ProcessingTimeSeconds,
		InputSizeBytes:        t.InputSizeBytes,
		OutputSizeBytes:       t.OutputSizeBytes,
	}
}

func toResponses(tasks []models.Task) []dto.TaskResponse {
	out := make([]dto.TaskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, *toResponse(&tasks[i]))
	}
	return out
}
