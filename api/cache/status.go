package cache

import (
	"context"
	"errors"
	"time"

	"hdrEnhancer/api/database"
	"hdrEnhancer/api/models"
	"hdrEnhancer/pkg/task"
)

const snapshotTTL = 24 * time.Hour

var ErrCacheMiss = errors.New("cache miss")

// StatusCache keeps snapshots of tasks that reached a terminal status.
// Terminal rows never change, so a cached snapshot cannot go stale.
type StatusCache struct {
	cache *database.Cache
}

func NewStatusCache(cache *database.Cache) *StatusCache {
	return &StatusCache{cache: cache}
}

func (sc *StatusCache) Get(ctx context.Context, taskID string) (*models.Task, error) {
	var snapshot models.Task
	if err := sc.cache.GetJSON(ctx, task.SnapshotKey(taskID), &snapshot); err != nil {
		if errors.Is(err, database.ErrKeyNotFound) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	return &snapshot, nil
}

// Set stores t if it is terminal and is a no-op otherwise.
func (sc *StatusCache) Set(ctx context.Context, t *models.Task) error {
	if !t.Status.IsTerminal() {
		return nil
	}
	return sc.cache.SetJSON(ctx, task.SnapshotKey(t.ID), t, snapshotTTL)
}
