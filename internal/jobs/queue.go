// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package jobs is a small in-process task queue with a fixed number of
// workers. Jobs are independent: an error or panic in one job is logged and
// never affects another.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/toeirei/ufo/internal/logging"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers and DefaultCapacity are used when New gets non-positive values.
const (
	DefaultWorkers  = 4
	DefaultCapacity = 256
)

var (
	// ErrQueueStopped is returned by Enqueue after Stop was called.
	ErrQueueStopped = errors.New("job queue stopped")
	// ErrQueueFull is returned when the backlog is at capacity.
	ErrQueueFull = errors.New("job queue full")
)

// Func is the body of a job. The context is cancelled when the queue is
// stopped forcibly.
type Func func(ctx context.Context) error

type job struct {
	id   string
	name string
	fn   Func
}

// Queue runs enqueued jobs on a bounded worker pool.
type Queue struct {
	workers int
	logger  *clog.Logger

	mu      sync.Mutex
	pending chan job
	started bool
	stopped bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// New returns a queue with the given worker count and backlog capacity.
func New(workers, capacity int, logger *clog.Logger) *Queue {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		workers: workers,
		logger:  logging.Or(logger),
		pending: make(chan job, capacity),
	}
}

// Start launches the workers. Jobs enqueued before Start wait in the backlog.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopped {
		return
	}
	q.started = true

	ctx, q.cancel = context.WithCancel(ctx)
	q.group = new(errgroup.Group)
	for i := 0; i < q.workers; i++ {
		q.group.Go(func() error {
			for j := range q.pending {
				q.run(ctx, j)
			}
			return nil
		})
	}
}

// Enqueue schedules fn and returns the job id. It never blocks.
func (q *Queue) Enqueue(name string, fn Func) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return "", ErrQueueStopped
	}
	j := job{id: uuid.NewString(), name: name, fn: fn}
	select {
	case q.pending <- j:
		q.logger.Debug("job enqueued", "job", j.id, "name", name)
		return j.id, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrQueueFull, name)
	}
}

// Stop refuses new jobs and waits for the backlog to drain. If ctx expires
// first, running jobs see their context cancelled and Stop returns ctx.Err()
// once they have returned. A queue that was never started drops its backlog.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil
	}
	q.stopped = true
	close(q.pending)
	started, group, cancel := q.started, q.group, q.cancel
	q.mu.Unlock()

	if !started {
		return nil
	}
	done := make(chan struct{})
	go func() {
		_ = group.Wait()
		close(done)
	}()
	select {
	case <-done:
		cancel()
		return nil
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

func (q *Queue) run(ctx context.Context, j job) {
	start := time.Now()
	l := q.logger.With("job", j.id, "name", j.name)
	defer func() {
		if r := recover(); r != nil {
			l.Error("job panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	if err := j.fn(ctx); err != nil {
		l.Error("job failed", "err", err, "elapsed", time.Since(start))
		return
	}
	l.Debug("job finished", "elapsed", time.Since(start))
}
