package queue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"expensebot/internal/log"
)

type LocalConfig struct {
	Size       int
	Workers    int
	JobTimeout time.Duration
}

// Local is a bounded in-memory queue drained by a fixed pool of workers.
type Local struct {
	jobs    chan Job
	handler Handler
	workers int
	timeout time.Duration
	logger  *log.Logger

	mu     sync.RWMutex
	closed bool
	group  *errgroup.Group
}

func NewLocal(cfg LocalConfig, handler Handler, logger *log.Logger) *Local {
	if cfg.Size <= 0 {
		cfg.Size = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Local{
		jobs:    make(chan Job, cfg.Size),
		handler: handler,
		workers: cfg.Workers,
		timeout: cfg.JobTimeout,
		logger:  logger.WithComponent(log.ComponentQueue),
	}
}

// Start launches the workers. Jobs run detached from ctx cancellation so that a
// shutdown signal drains the queue instead of aborting it.
func (q *Local) Start(ctx context.Context) {
	base := context.WithoutCancel(ctx)
	q.group = &errgroup.Group{}
	for i := 0; i < q.workers; i++ {
		q.group.Go(func() error {
			for job := range q.jobs {
				q.run(base, job)
			}
			return nil
		})
	}
	q.logger.Info("Local queue started", "workers", q.workers, "capacity", cap(q.jobs))
}

func (q *Local) Enqueue(_ context.Context, payload []byte) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	job := NewJob(payload)
	select {
	case q.jobs <- job:
		return nil
	default:
		queueFullTotal.Inc()
		return fmt.Errorf("enqueue %s: %w", job.ID, ErrQueueFull)
	}
}

// Len reports jobs waiting for a worker.
func (q *Local) Len() int { return len(q.jobs) }

func (q *Local) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	if q.group == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- q.group.Wait() }()
	select {
	case err := <-done:
		q.logger.Info("Local queue drained")
		return err
	case <-ctx.Done():
		return fmt.Errorf("drain queue: %w", ctx.Err())
	}
}

func (q *Local) run(ctx context.Context, job Job) {
	start := time.Now()
	defer func() {
		jobDuration.Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			jobsTotal.WithLabelValues(outcomePanic).Inc()
			q.logger.Error("Job panicked",
				log.FieldJobID, job.ID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	if err := q.handler(ctx, job); err != nil {
		jobsTotal.WithLabelValues(outcomeError).Inc()
		q.logger.Error("Job failed", log.FieldJobID, job.ID, log.FieldError, err)
		return
	}
	jobsTotal.WithLabelValues(outcomeOK).Inc()
	q.logger.Debug("Job done", log.FieldJobID, job.ID, log.FieldDuration, time.Since(start).Milliseconds())
}
