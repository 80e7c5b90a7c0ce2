package compute

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

const (
	defaultQueueSize        = 64
	defaultQueueIdleTimeout = 1 * time.Second
)

// Queue serializes commands from many goroutines onto one ComputeEngine.
// Commands run one at a time in submission order on a single pooled worker.
type Queue struct {
	engine ComputeEngine

	// pool has exactly one worker so tasks run in the order they were submitted.
	pool worker.DynamicWorkerPool

	// mu serializes submission so task IDs and pool order agree.
	mu     *sync.Mutex
	nextID int
	closed atomic.Bool

	// pending counts submitted tasks that have not finished running.
	pending sync.WaitGroup
}

// NewQueue creates a queue in front of engine.
//
// Parameters:
//   - engine: the engine every submitted command runs on
//   - queueSize: the number of commands that may wait before Submit blocks; <= 0 uses a default
//
// Returns:
//   - *Queue: the new queue
func NewQueue(engine ComputeEngine, queueSize int) *Queue {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Queue{
		engine: engine,
		pool:   worker.NewDynamicWorkerPool(1, queueSize, defaultQueueIdleTimeout),
		mu:     &sync.Mutex{},
	}
}

// Submit queues cmd and blocks until it has executed or ctx is done. A command whose ctx is done
// before its turn is skipped.
//
// Parameters:
//   - ctx: bounds the wait
//   - cmd: the command to execute
//
// Returns:
//   - error: the engine's error, ctx.Err(), or ErrQueueClosed
func (q *Queue) Submit(ctx context.Context, cmd *Command) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)

	q.mu.Lock()
	if q.closed.Load() {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	id := q.nextID
	q.nextID++
	q.pending.Add(1)
	q.pool.SubmitTask(worker.Task{
		ID: id,
		Do: func() (any, error) {
			defer q.pending.Done()
			if err := ctx.Err(); err != nil {
				done <- err
				return nil, err
			}
			err := q.engine.Execute(cmd)
			done <- err
			return nil, err
		},
	})
	q.mu.Unlock()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the queue from accepting commands, waits for the commands already queued to run,
// then stops the pool's worker. Calling Close again is a no-op. Close must not be called from a
// command's hooks.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed.CompareAndSwap(false, true) {
		q.mu.Unlock()
		return
	}
	q.mu.Unlock()

	q.pending.Wait()
	q.pool.Stop()
}
