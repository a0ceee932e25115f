package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Executor errors.
var (
	// ErrExecutorNotStarted indicates Start has not been called.
	ErrExecutorNotStarted = errors.New("executor not started")

	// ErrExecutorStopped indicates the executor no longer accepts jobs.
	ErrExecutorStopped = errors.New("executor stopped")

	// ErrExecutorAlreadyStarted indicates Start was called twice.
	ErrExecutorAlreadyStarted = errors.New("executor already started")

	// ErrStopTimeout indicates workers did not finish within the timeout.
	ErrStopTimeout = errors.New("timeout waiting for workers to stop")
)

// job is one stage execution waiting for a worker.
type job struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// Executor runs stage jobs on a fixed set of workers fed by a bounded queue.
// Jobs from many submissions interleave freely; ordering within a
// submission is the caller's responsibility.
type Executor struct {
	workers   int
	queueSize int

	jobs chan job
	wg   sync.WaitGroup

	lifecycleMu sync.RWMutex
	started     bool
	stopped     bool

	submitted int64
	processed int64
	failed    int64
	skipped   int64
}

// NewExecutor creates an executor. Non-positive sizes fall back to defaults.
func NewExecutor(workers, queueSize int) *Executor {
	if workers <= 0 {
		workers = 8
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Executor{
		workers:   workers,
		queueSize: queueSize,
		jobs:      make(chan job, queueSize),
	}
}

// Start launches the workers.
func (e *Executor) Start() error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if e.started {
		return ErrExecutorAlreadyStarted
	}

	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}

	e.started = true
	return nil
}

// Stop closes the queue and waits for queued jobs to drain.
func (e *Executor) Stop(timeout time.Duration) error {
	e.lifecycleMu.Lock()
	if !e.started || e.stopped {
		e.lifecycleMu.Unlock()
		return nil
	}
	e.stopped = true
	close(e.jobs)
	e.lifecycleMu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// Run queues fn and waits for it to finish. It blocks while the queue is
// full. If ctx is done before a worker picks the job up, fn never runs
// and the context error is returned.
func (e *Executor) Run(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	j := job{ctx: ctx, fn: fn, done: make(chan error, 1)}

	// The read lock keeps Stop from closing the queue mid-send.
	e.lifecycleMu.RLock()
	if !e.started {
		e.lifecycleMu.RUnlock()
		return ErrExecutorNotStarted
	}
	if e.stopped {
		e.lifecycleMu.RUnlock()
		return ErrExecutorStopped
	}
	select {
	case e.jobs <- j:
		atomic.AddInt64(&e.submitted, 1)
		e.lifecycleMu.RUnlock()
	case <-ctx.Done():
		e.lifecycleMu.RUnlock()
		return ctx.Err()
	}

	// done is buffered; the worker never blocks on it.
	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current executor statistics.
func (e *Executor) Stats() ExecutorStats {
	return ExecutorStats{
		Workers:    e.workers,
		QueueSize:  e.queueSize,
		QueueDepth: len(e.jobs),
		Submitted:  atomic.LoadInt64(&e.submitted),
		Processed:  atomic.LoadInt64(&e.processed),
		Failed:     atomic.LoadInt64(&e.failed),
		Skipped:    atomic.LoadInt64(&e.skipped),
	}
}

// ExecutorStats is a snapshot of executor counters.
type ExecutorStats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Skipped    int64 `json:"skipped"`
}

func (e *Executor) worker() {
	defer e.wg.Done()

	for j := range e.jobs {
		// Cancelled while queued: the stage must not begin.
		if err := j.ctx.Err(); err != nil {
			atomic.AddInt64(&e.skipped, 1)
			j.done <- err
			continue
		}

		err := j.fn(j.ctx)
		atomic.AddInt64(&e.processed, 1)
		if err != nil {
			atomic.AddInt64(&e.failed, 1)
		}
		j.done <- err
	}
}
