// Package worker runs background refresh tasks on a bounded goroutine
// pool. Refresh ticks are droppable work: when the queue is full the task
// is rejected rather than queued without bound.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Task is one unit of background work.
type Task struct {
	Name string
	Fn   func(context.Context) error
}

type job struct {
	ctx  context.Context
	task Task
}

// Pool is a bounded worker pool. Workers start at construction and stop on
// Stop.
type Pool struct {
	name     string
	queue    chan job
	logger   *zap.Logger
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}

	active    atomic.Int32
	completed atomic.Uint64
	failed    atomic.Uint64
	rejected  atomic.Uint64
}

// NewPool starts a pool with the given worker count and queue depth.
func NewPool(name string, workers, queueSize int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}

	p := &Pool{
		name:    name,
		queue:   make(chan job, queueSize),
		logger:  logger,
		stopped: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	logger.Info("worker pool started",
		zap.String("pool", name),
		zap.Int("workers", workers),
		zap.Int("queue_size", queueSize))
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopped:
			return
		case j := <-p.queue:
			p.run(id, j)
		}
	}
}

func (p *Pool) run(workerID int, j job) {
	p.active.Add(1)
	defer p.active.Add(-1)

	start := time.Now()
	err := p.safeRun(j)
	if err != nil {
		p.failed.Add(1)
		p.logger.Warn("background task failed",
			zap.String("pool", p.name),
			zap.Int("worker_id", workerID),
			zap.String("task", j.task.Name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return
	}
	p.completed.Add(1)
	p.logger.Debug("background task completed",
		zap.String("pool", p.name),
		zap.String("task", j.task.Name),
		zap.Duration("duration", time.Since(start)))
}

func (p *Pool) safeRun(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	if j.ctx.Err() != nil {
		return j.ctx.Err()
	}
	return j.task.Fn(j.ctx)
}

// Submit queues a task without blocking. It returns false when the pool is
// stopped or the queue is full; the caller's next tick will try again.
func (p *Pool) Submit(ctx context.Context, task Task) bool {
	select {
	case <-p.stopped:
		p.rejected.Add(1)
		return false
	default:
	}

	select {
	case p.queue <- job{ctx: ctx, task: task}:
		return true
	default:
		p.rejected.Add(1)
		p.logger.Debug("task rejected, queue full",
			zap.String("pool", p.name),
			zap.String("task", task.Name))
		return false
	}
}

// Stop stops the workers, waiting up to timeout for in-flight tasks.
func (p *Pool) Stop(timeout time.Duration) error {
	var err error
	p.stopOnce.Do(func() {
		close(p.stopped)

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			p.logger.Info("worker pool stopped", zap.String("pool", p.name))
		case <-time.After(timeout):
			err = fmt.Errorf("pool %s: stop timed out after %v", p.name, timeout)
		}
	})
	return err
}

// Stats is a point-in-time view of pool activity.
type Stats struct {
	Active    int
	Queued    int
	Completed uint64
	Failed    uint64
	Rejected  uint64
}

// Stats returns current counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Active:    int(p.active.Load()),
		Queued:    len(p.queue),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
	}
}
