// Package workerpool provides the bounded goroutine pool shared by the
// scheduler loop, trigger evaluation and action chains.
package workerpool

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultSize is the worker count used when none is configured.
const DefaultSize = 4

// Pool runs tasks on at most Size goroutines at a time.
//
// Tasks submitted while every worker is busy wait for a free slot in their
// own goroutine, so Go never blocks the caller.
type Pool struct {
	size int64
	sem  *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New creates a pool with size workers. Sizes below one use DefaultSize.
func New(size int) *Pool {
	if size < 1 {
		size = DefaultSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		size:   int64(size),
		sem:    semaphore.NewWeighted(int64(size)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return int(p.size)
}

// Go schedules task. The task's context is cancelled on Shutdown.
// It returns false if the pool is already shut down.
//
// A task still queued for a worker when Shutdown is called runs anyway
// with a cancelled context so it can release whatever it holds.
func (p *Pool) Go(task func(ctx context.Context)) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			task(p.ctx)
			return
		}
		defer p.sem.Release(1)
		task(p.ctx)
	}()
	return true
}

// Shutdown cancels running tasks and waits for all of them to return.
// Further calls to Go are rejected.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}

// Closed reports whether Shutdown has been called.
func (p *Pool) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
