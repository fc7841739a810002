package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"hdrEnhancer/pkg/storage"
	"hdrEnhancer/pkg/task"
	"hdrEnhancer/worker/converter"
	"hdrEnhancer/worker/enhancer"
	"hdrEnhancer/worker/repository"
)

const (
	timeoutMessage = "processing timed out"
	lockGrace      = time.Minute
)

// errInactive aborts a job whose task left pending/processing under it,
// normally because the owner cancelled it.
var errInactive = errors.New("task is no longer active")

type TaskStore interface {
	GetTask(ctx context.Context, taskID string) (*repository.TaskRecord, error)
	Status(ctx context.Context, taskID string) (task.Status, error)
	StartProcessing(ctx context.Context, taskID string) (bool, error)
	UpdateProgress(ctx context.Context, taskID string, progress int) (bool, error)
	Complete(ctx context.Context, c repository.Completion) (bool, error)
	Fail(ctx context.Context, taskID, message string) (bool, error)
}

type Coordinator interface {
	IsRevoked(ctx context.Context, jobHandle string) (bool, error)
	AcquireLock(ctx context.Context, taskID string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, taskID, token string) error
}

type Processor struct {
	repo       TaskStore
	coord      Coordinator
	store      storage.Store
	codec      *converter.Converter
	engine     enhancer.Engine
	logger     *zap.Logger
	jobTimeout time.Duration
	now        func() time.Time
}

func NewProcessor(
	repo TaskStore,
	coord Coordinator,
	store storage.Store,
	codec *converter.Converter,
	engine enhancer.Engine,
	logger *zap.Logger,
	jobTimeout time.Duration,
) *Processor {
	return &Processor{
		repo:       repo,
		coord:      coord,
		store:      store,
		codec:      codec,
		engine:     engine,
		logger:     logger,
		jobTimeout: jobTimeout,
		now:        time.Now,
	}
}

// job is the state carried between checkpoints of one execution.
type job struct {
	task       *repository.TaskRecord
	handle     string
	format     task.Format
	quality    int
	logger     *zap.Logger
	img        image.Image
	inputSize  int64
	resultKey  string
	outputSize int64
}

// Process runs one delivery of msg. It returns an error only when the job
// should be redelivered: the worker is shutting down or the task could not
// be loaded.
func (p *Processor) Process(ctx context.Context, msg *task.Message) error {
	logger := p.logger.With(
		zap.String("task_id", msg.TaskID),
		zap.String("trace_id", msg.TraceID),
		zap.String("job_handle", msg.JobHandle),
	)

	token, err := p.coord.AcquireLock(ctx, msg.TaskID, p.jobTimeout+lockGrace)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("Task lock unavailable, continuing without it", zap.Error(err))
	case token == "":
		logger.Info("Task is already being processed, skipping delivery")
		jobsTotal.WithLabelValues(outcomeSkipped).Inc()
		return nil
	default:
		defer func() {
			if err := p.coord.ReleaseLock(context.WithoutCancel(ctx), msg.TaskID, token); err != nil {
				logger.Warn("Failed to release task lock", zap.Error(err))
			}
		}()
	}

	t, err := p.repo.GetTask(ctx, msg.TaskID)
	if errors.Is(err, repository.ErrTaskNotFound) {
		logger.Warn("Task not found, dropping job")
		jobsTotal.WithLabelValues(outcomeSkipped).Inc()
		return nil
	}
	if err != nil {
		logger.Error("Failed to load task", zap.Error(err))
		return fmt.Errorf("load task %s: %w", msg.TaskID, err)
	}

	if t.Status.IsTerminal() {
		logger.Info("Task already finished, nothing to do", zap.String("status", string(t.Status)))
		jobsTotal.WithLabelValues(outcomeSkipped).Inc()
		return nil
	}

	j := &job{
		task:    t,
		handle:  msg.JobHandle,
		format:  t.OutputFormat,
		quality: t.OutputQuality,
		logger:  logger.With(zap.String("owner", t.Owner)),
	}
	if j.handle == "" && t.JobHandle != nil {
		j.handle = *t.JobHandle
	}

	if p.revoked(ctx, j) {
		logger.Info("Job revoked before start, skipping")
		jobsTotal.WithLabelValues(outcomeSkipped).Inc()
		return nil
	}

	start := p.now()
	jobCtx, cancel := context.WithTimeout(ctx, p.jobTimeout)
	defer cancel()

	runErr := p.run(jobCtx, j)
	return p.finish(ctx, jobCtx, j, runErr, start)
}

func (p *Processor) run(ctx context.Context, j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			j.logger.Error("Panic during processing", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("panic during processing: %v", r)
		}
	}()

	format, ok := task.ParseFormat(string(j.format))
	if !ok {
		return fmt.Errorf("unsupported output format: %q", j.format)
	}
	j.format = format

	if err := p.step(ctx, j, task.ProgressAcquired, func(context.Context) error {
		j.logger.Info("Processing started", zap.String("device", p.engine.Device()))
		return nil
	}); err != nil {
		return err
	}

	if err := p.step(ctx, j, task.ProgressDecoded, func(ctx context.Context) error {
		body, size, err := p.store.Open(ctx, j.task.InputLocation)
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		defer body.Close()

		img, err := p.codec.Decode(body)
		if err != nil {
			return err
		}
		j.img = img
		j.inputSize = size
		return nil
	}); err != nil {
		return err
	}

	if err := p.step(ctx, j, task.ProgressModelLoaded, p.engine.Load); err != nil {
		return err
	}

	if err := p.step(ctx, j, task.ProgressEnhanced, func(ctx context.Context) error {
		out, err := p.engine.Enhance(ctx, j.img)
		if err != nil {
			return fmt.Errorf("enhancement failed: %w", err)
		}
		j.img = out
		return nil
	}); err != nil {
		return err
	}

	if err := p.step(ctx, j, task.ProgressWritten, func(ctx context.Context) error {
		var buf bytes.Buffer
		if err := p.codec.Encode(&buf, j.img, j.format, j.quality); err != nil {
			return err
		}
		j.img = nil

		key := "results/" + j.task.ID + j.format.Extension()
		n, err := p.store.Save(ctx, key, &buf, int64(buf.Len()), j.format.ContentType())
		if err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
		j.resultKey = key
		j.outputSize = n
		return nil
	}); err != nil {
		return err
	}

	if err := p.ensureActive(ctx, j); err != nil {
		return err
	}
	return nil
}

// step runs one checkpoint: cancellation check, the work itself, then the
// persisted progress value.
func (p *Processor) step(ctx context.Context, j *job, progress int, work func(context.Context) error) error {
	if err := p.ensureActive(ctx, j); err != nil {
		return err
	}

	if err := work(ctx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var ok bool
	var err error
	if progress == task.ProgressAcquired {
		ok, err = p.repo.StartProcessing(ctx, j.task.ID)
	} else {
		ok, err = p.repo.UpdateProgress(ctx, j.task.ID, progress)
	}
	if err != nil {
		return fmt.Errorf("failed to record progress %d: %w", progress, err)
	}
	if !ok {
		return errInactive
	}

	j.logger.Debug("Checkpoint reached", zap.Int("progress", progress))
	return nil
}

func (p *Processor) ensureActive(ctx context.Context, j *job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.revoked(ctx, j) {
		return errInactive
	}

	status, err := p.repo.Status(ctx, j.task.ID)
	if err != nil {
		return fmt.Errorf("failed to check task status: %w", err)
	}
	if !status.IsActive() {
		return errInactive
	}
	return nil
}

func (p *Processor) revoked(ctx context.Context, j *job) bool {
	revoked, err := p.coord.IsRevoked(ctx, j.handle)
	if err != nil {
		j.logger.Warn("Revocation check failed, relying on task status", zap.Error(err))
		return false
	}
	return revoked
}

// finish writes the terminal state for runErr. ctx is the delivery context and
// jobCtx the one bounded by the job timeout.
func (p *Processor) finish(ctx, jobCtx context.Context, j *job, runErr error, start time.Time) error {
	elapsed := p.now().Sub(start)

	switch {
	case runErr == nil:
		ok, err := p.repo.Complete(ctx, repository.Completion{
			TaskID:          j.task.ID,
			ResultLocation:  j.resultKey,
			ProcessingTime:  elapsed,
			InputSizeBytes:  j.inputSize,
			OutputSizeBytes: j.outputSize,
		})
		if err != nil {
			if ctx.Err() != nil {
				return p.interrupted(ctx, j)
			}
			j.logger.Error("Failed to finalize task", zap.Error(err))
			p.discardResult(ctx, j)
			p.fail(ctx, j, fmt.Sprintf("failed to finalize task: %v", err), elapsed)
			return nil
		}
		if !ok {
			p.cancelled(ctx, j, elapsed)
			return nil
		}

		j.logger.Info("Task completed",
			zap.String("result_location", j.resultKey),
			zap.Int64("output_size", j.outputSize),
			zap.Duration("elapsed", elapsed),
		)
		jobsTotal.WithLabelValues(outcomeCompleted).Inc()
		jobDuration.WithLabelValues(outcomeCompleted).Observe(elapsed.Seconds())
		return nil

	case errors.Is(runErr, errInactive):
		p.cancelled(ctx, j, elapsed)
		return nil

	case ctx.Err() != nil:
		return p.interrupted(ctx, j)

	case errors.Is(jobCtx.Err(), context.DeadlineExceeded):
		j.logger.Warn("Task timed out", zap.Duration("timeout", p.jobTimeout))
		p.discardResult(ctx, j)
		p.fail(ctx, j, timeoutMessage, elapsed)
		return nil

	default:
		j.logger.Error("Task failed", zap.Error(runErr))
		p.discardResult(ctx, j)
		p.fail(ctx, j, runErr.Error(), elapsed)
		return nil
	}
}

func (p *Processor) fail(ctx context.Context, j *job, message string, elapsed time.Duration) {
	ok, err := p.repo.Fail(ctx, j.task.ID, message)
	if err != nil {
		j.logger.Error("Failed to record task failure", zap.String("error_message", message), zap.Error(err))
	} else if !ok {
		j.logger.Info("Task reached a terminal state before the failure was recorded")
	}
	jobsTotal.WithLabelValues(outcomeFailed).Inc()
	jobDuration.WithLabelValues(outcomeFailed).Observe(elapsed.Seconds())
}

func (p *Processor) cancelled(ctx context.Context, j *job, elapsed time.Duration) {
	j.logger.Info("Task cancelled, aborting job")
	p.discardResult(ctx, j)
	jobsTotal.WithLabelValues(outcomeCancelled).Inc()
	jobDuration.WithLabelValues(outcomeCancelled).Observe(elapsed.Seconds())
}

// interrupted leaves the task processing so the redelivered message resumes
// it. A result already written is overwritten by the next run.
func (p *Processor) interrupted(ctx context.Context, j *job) error {
	j.logger.Info("Worker shutting down, leaving task for redelivery")
	jobsTotal.WithLabelValues(outcomeInterrupted).Inc()
	return ctx.Err()
}

func (p *Processor) discardResult(ctx context.Context, j *job) {
	if j.resultKey == "" {
		return
	}
	if err := p.store.Delete(context.WithoutCancel(ctx), j.resultKey); err != nil {
		j.logger.Warn("Failed to delete orphaned result", zap.String("result_location", j.resultKey), zap.Error(err))
		return
	}
	j.resultKey = ""
}
