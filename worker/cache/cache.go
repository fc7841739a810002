package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"hdrEnhancer/pkg/task"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Coordinator reads revocation markers written by the API and holds per-task
// locks so that two deliveries of one job never run at the same time.
type Coordinator struct {
	client redis.UniversalClient
}

func NewCoordinator(client redis.UniversalClient) *Coordinator {
	return &Coordinator{client: client}
}

func Connect(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		PoolTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (c *Coordinator) IsRevoked(ctx context.Context, jobHandle string) (bool, error) {
	if jobHandle == "" {
		return false, nil
	}
	n, err := c.client.Exists(ctx, task.RevokedKey(jobHandle)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AcquireLock returns a token when the lock was taken and "" when another
// delivery holds it.
func (c *Coordinator) AcquireLock(ctx context.Context, taskID string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, task.LockKey(taskID), token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

func (c *Coordinator) ReleaseLock(ctx context.Context, taskID, token string) error {
	err := releaseScript.Run(ctx, c.client, []string{task.LockKey(taskID)}, token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
