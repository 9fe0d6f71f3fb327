package requester

import (
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
)

// WorkerPool runs dispatch jobs on pooled goroutines so the operator's
// goroutine never blocks on the network. Pool depth is bounded only by
// operator action; the sequencer serializes batch traffic itself.
type WorkerPool struct {
	pool       *ants.Pool
	wg         sync.WaitGroup
	isShutdown atomic.Bool

	submitted atomic.Int64
	completed atomic.Int64
}

// WorkerPoolOptions configures the worker pool.
type WorkerPoolOptions struct {
	Size int
}

// DefaultWorkerPoolOptions returns sensible defaults.
func DefaultWorkerPoolOptions() *WorkerPoolOptions {
	return &WorkerPoolOptions{Size: 16}
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(opts *WorkerPoolOptions) (*WorkerPool, error) {
	if opts == nil {
		opts = DefaultWorkerPoolOptions()
	}

	pool, err := ants.NewPool(opts.Size)
	if err != nil {
		return nil, err
	}
	return &WorkerPool{pool: pool}, nil
}

// Submit adds a task to the worker pool.
func (wp *WorkerPool) Submit(task func()) error {
	if wp.isShutdown.Load() {
		return ants.ErrPoolClosed
	}

	wp.submitted.Add(1)
	wp.wg.Add(1)

	err := wp.pool.Submit(func() {
		defer wp.wg.Done()
		defer wp.completed.Add(1)
		task()
	})
	if err != nil {
		wp.wg.Done()
		wp.submitted.Add(-1)
	}
	return err
}

// Wait blocks until all submitted tasks complete.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Shutdown stops accepting tasks, waits for in-flight work to drain,
// then releases the pool. In-flight HTTP calls cannot be interrupted
// mid-flight; the drain is bounded by the request timeout.
func (wp *WorkerPool) Shutdown() {
	wp.isShutdown.Store(true)
	wp.Wait()
	wp.pool.Release()
}

// InFlight returns the number of submitted but not yet completed tasks.
func (wp *WorkerPool) InFlight() int64 {
	return wp.submitted.Load() - wp.completed.Load()
}
