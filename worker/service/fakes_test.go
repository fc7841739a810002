package service

import (
	"context"
	"image"
	"sync"
	"time"

	"hdrEnhancer/pkg/task"
	"hdrEnhancer/worker/repository"
)

type storedTask struct {
	record         repository.TaskRecord
	errorMessage   string
	resultLocation string
	history        []int
	completions    int
	failures       int
}

// fakeTaskStore applies the same conditional transitions as the SQL
// repository.
type fakeTaskStore struct {
	mu    sync.Mutex
	tasks map[string]*storedTask

	// onProgress runs after a progress value is persisted.
	onProgress func(id string, progress int)
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[string]*storedTask)}
}

func (s *fakeTaskStore) add(rec repository.TaskRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[rec.ID] = &storedTask{record: rec}
}

func (s *fakeTaskStore) get(id string) storedTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := *s.tasks[id]
	t.history = append([]int(nil), t.history...)
	return t
}

// cancel mimics the API cancel endpoint.
func (s *fakeTaskStore) cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tasks[id]
	if !t.record.Status.IsActive() {
		return false
	}
	t.record.Status = task.StatusCancelled
	t.errorMessage = task.CancelledMessage
	return true
}

func (s *fakeTaskStore) GetTask(_ context.Context, id string) (*repository.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, repository.ErrTaskNotFound
	}
	rec := t.record
	return &rec, nil
}

func (s *fakeTaskStore) Status(_ context.Context, id string) (task.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return "", repository.ErrTaskNotFound
	}
	return t.record.Status, nil
}

func (s *fakeTaskStore) StartProcessing(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	t := s.tasks[id]
	if !t.record.Status.IsActive() {
		s.mu.Unlock()
		return false, nil
	}
	t.record.Status = task.StatusProcessing
	t.record.Progress = max(t.record.Progress, task.ProgressAcquired)
	t.history = append(t.history, t.record.Progress)
	s.mu.Unlock()

	s.progressed(id, task.ProgressAcquired)
	return true, nil
}

func (s *fakeTaskStore) UpdateProgress(_ context.Context, id string, progress int) (bool, error) {
	s.mu.Lock()
	t := s.tasks[id]
	if t.record.Status != task.StatusProcessing {
		s.mu.Unlock()
		return false, nil
	}
	t.record.Progress = max(t.record.Progress, progress)
	t.history = append(t.history, t.record.Progress)
	s.mu.Unlock()

	s.progressed(id, progress)
	return true, nil
}

func (s *fakeTaskStore) progressed(id string, progress int) {
	if s.onProgress != nil {
		s.onProgress(id, progress)
	}
}

func (s *fakeTaskStore) Complete(_ context.Context, c repository.Completion) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tasks[c.TaskID]
	if t.record.Status != task.StatusProcessing {
		return false, nil
	}
	t.record.Status = task.StatusCompleted
	t.record.Progress = task.ProgressDone
	t.resultLocation = c.ResultLocation
	t.history = append(t.history, task.ProgressDone)
	t.completions++
	return true, nil
}

func (s *fakeTaskStore) Fail(_ context.Context, id, message string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tasks[id]
	if !t.record.Status.IsActive() {
		return false, nil
	}
	t.record.Status = task.StatusFailed
	t.errorMessage = message
	t.failures++
	return true, nil
}

type fakeCoordinator struct {
	mu      sync.Mutex
	revoked map[string]bool
	locks   map[string]string
	next    int
}

func newFakeCoordinator() *fakeCoordinator {
	return &fakeCoordinator{revoked: make(map[string]bool), locks: make(map[string]string)}
}

func (c *fakeCoordinator) revoke(handle string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[handle] = true
}

func (c *fakeCoordinator) held(taskID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.locks[taskID]
	return ok
}

func (c *fakeCoordinator) IsRevoked(_ context.Context, handle string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revoked[handle], nil
}

func (c *fakeCoordinator) AcquireLock(_ context.Context, taskID string, _ time.Duration) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.locks[taskID]; ok {
		return "", nil
	}
	c.next++
	token := string(rune('a' + c.next))
	c.locks[taskID] = token
	return token, nil
}

func (c *fakeCoordinator) ReleaseLock(_ context.Context, taskID, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locks[taskID] == token {
		delete(c.locks, taskID)
	}
	return nil
}

type fakeEngine struct {
	mu        sync.Mutex
	loadErr   error
	loads     int
	onEnhance func(ctx context.Context) error
}

func (e *fakeEngine) Load(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loads++
	return e.loadErr
}

func (e *fakeEngine) Enhance(ctx context.Context, img image.Image) (image.Image, error) {
	if e.onEnhance != nil {
		if err := e.onEnhance(ctx); err != nil {
			return nil, err
		}
	}
	return img, nil
}

func (e *fakeEngine) Device() string { return "cpu" }
func (e *fakeEngine) Close() error   { return nil }
