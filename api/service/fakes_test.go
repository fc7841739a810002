package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"hdrEnhancer/api/cache"
	"hdrEnhancer/api/models"
	"hdrEnhancer/api/repository"
	"hdrEnhancer/pkg/task"
)

type fakeRepo struct {
	mu        sync.Mutex
	tasks     map[string]*models.Task
	clock     time.Time
	createErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		tasks: make(map[string]*models.Task),
		clock: time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC),
	}
}

func (r *fakeRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *fakeRepo) CreateTask(_ context.Context, t *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	t.ID = uuid.New().String()
	t.CreatedAt = r.tick()
	t.UpdatedAt = t.CreatedAt
	stored := *t
	r.tasks[t.ID] = &stored
	return nil
}

func (r *fakeRepo) GetTask(_ context.Context, id, owner string) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.Owner != owner {
		return nil, repository.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeRepo) ListTasks(_ context.Context, owner string, limit, offset int) ([]models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Task
	for _, t := range r.tasks {
		if t.Owner == owner {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []models.Task{}, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) CountTasks(_ context.Context, owner string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.tasks {
		if t.Owner == owner {
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) SetJobHandle(_ context.Context, id, handle string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return repository.ErrTaskNotFound
	}
	t.JobHandle = &handle
	t.UpdatedAt = r.tick()
	return nil
}

func (r *fakeRepo) MarkFailed(_ context.Context, id, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || !t.Status.IsActive() {
		return nil
	}
	t.Status = task.StatusFailed
	t.ErrorMessage = &msg
	t.UpdatedAt = r.tick()
	return nil
}

func (r *fakeRepo) CancelTask(_ context.Context, id, owner, msg string) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.Owner != owner {
		return nil, repository.ErrTaskNotFound
	}
	if !t.Status.IsActive() {
		return nil, repository.ErrInvalidTransition
	}
	t.Status = task.StatusCancelled
	t.ErrorMessage = &msg
	t.UpdatedAt = r.tick()
	cp := *t
	return &cp, nil
}

// complete simulates the worker finishing a task.
func (r *fakeRepo) complete(id, location string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.tasks[id]
	t.Status = task.StatusCompleted
	t.Progress = task.ProgressDone
	t.ResultLocation = &location
	t.UpdatedAt = r.tick()
}

func (r *fakeRepo) get(id string) models.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.tasks[id]
}

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*models.Profile
	usage    models.Usage
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{profiles: make(map[string]*models.Profile)}
}

func (p *fakeProfiles) GetOrCreateProfile(_ context.Context, seed *models.Profile) (*models.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	existing, ok := p.profiles[seed.Username]
	if !ok {
		existing = &models.Profile{
			Username:              seed.Username,
			Email:                 seed.Email,
			DailyLimit:            models.DefaultDailyLimit,
			MonthlyLimit:          models.DefaultMonthlyLimit,
			PreferredOutputFormat: task.FormatJPEG,
			PreferredQuality:      task.DefaultQuality,
		}
		p.profiles[seed.Username] = existing
	}
	cp := *existing
	return &cp, nil
}

func (p *fakeProfiles) UpdatePreferences(_ context.Context, username string, format *string, quality *int) (*models.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	existing, ok := p.profiles[username]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	if format != nil {
		existing.PreferredOutputFormat = task.Format(*format)
	}
	if quality != nil {
		existing.PreferredQuality = *quality
	}
	cp := *existing
	return &cp, nil
}

func (p *fakeProfiles) CountUsage(context.Context, string, time.Time) (models.Usage, error) {
	return p.usage, nil
}

type fakeCache struct {
	mu        sync.Mutex
	snapshots map[string]models.Task
}

func newFakeCache() *fakeCache {
	return &fakeCache{snapshots: make(map[string]models.Task)}
}

func (c *fakeCache) Get(_ context.Context, id string) (*models.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.snapshots[id]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return &t, nil
}

func (c *fakeCache) Set(_ context.Context, t *models.Task) error {
	if !t.Status.IsTerminal() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[t.ID] = *t
	return nil
}

type fakeRevoker struct {
	revoked []string
}

func (r *fakeRevoker) Revoke(_ context.Context, handle string) error {
	r.revoked = append(r.revoked, handle)
	return nil
}

type fakeProducer struct {
	messages []task.Message
	err      error
}

func (p *fakeProducer) SubmitTask(_ context.Context, _ string, msg *task.Message) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	msg.JobHandle = uuid.New().String()
	p.messages = append(p.messages, *msg)
	return msg.JobHandle, nil
}

func (p *fakeProducer) Close() error { return nil }

var errBrokerDown = errors.New("kafka: client has run out of available brokers")
