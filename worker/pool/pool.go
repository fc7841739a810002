package pool

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// WorkerPool caps how many jobs run at once across all partition claims.
type WorkerPool struct {
	sem      *semaphore.Weighted
	inFlight atomic.Int64
	wg       sync.WaitGroup
}

func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		sem: semaphore.NewWeighted(int64(maxWorkers)),
	}
}

// Do blocks until a slot is free and runs fn in the calling goroutine. It
// returns ctx.Err() without running fn if ctx ends first.
func (p *WorkerPool) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	p.wg.Add(1)
	p.inFlight.Add(1)
	defer func() {
		p.inFlight.Add(-1)
		p.sem.Release(1)
		p.wg.Done()
	}()

	return fn(ctx)
}

func (p *WorkerPool) InFlight() int {
	return int(p.inFlight.Load())
}

func (p *WorkerPool) Wait() {
	p.wg.Wait()
}
