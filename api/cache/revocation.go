package cache

import (
	"context"

	"hdrEnhancer/api/database"
	"hdrEnhancer/pkg/task"
)

// Revoker asks workers to drop a job. Workers check the marker before every
// checkpoint; a job already past its last checkpoint is not interrupted.
type Revoker struct {
	cache *database.Cache
}

func NewRevoker(cache *database.Cache) *Revoker {
	return &Revoker{cache: cache}
}

func (r *Revoker) Revoke(ctx context.Context, jobHandle string) error {
	return r.cache.Mark(ctx, task.RevokedKey(jobHandle), task.RevocationTTL)
}
