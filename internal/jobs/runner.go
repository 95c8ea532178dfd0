package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/acidbase/abgassist/constants"
	"github.com/acidbase/abgassist/internal/common"
)

// Executor performs the background work for one job and returns the result
// payload to store. Errors become the job's failure reason; nothing an
// executor returns propagates past the worker.
type Executor interface {
	Execute(ctx context.Context, job Job) (json.RawMessage, error)
}

// ShutdownReason is written to jobs that were still queued when the
// service stopped, so pollers see a terminal state instead of a permanent
// pending.
const ShutdownReason = "service shutting down before job could run"

// Runner owns submission and background execution. Submit writes the
// pending record and returns without waiting; a worker later performs the
// single terminal write. For one job the pending write strictly precedes
// the terminal write, and there is exactly one of each.
type Runner struct {
	store   Store
	exec    Executor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*Runner)

func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.ch = make(chan Job, n)
		}
	}
}

func WithJobTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func NewRunner(store Store, exec Executor, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		store:   store,
		exec:    exec,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(r)
	}
	r.start()
	return r
}

func (r *Runner) start() {
	r.once.Do(func() {
		for i := 0; i < r.workers; i++ {
			r.wg.Add(1)
			go func(workerID int) {
				defer r.wg.Done()
				r.logger.Info("job.worker.started", "worker_id", workerID)
				for job := range r.ch {
					r.run(workerID, job)
				}
				r.logger.Info("job.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Submit creates a job: pending record first, then the enqueue. If the
// initial write fails the caller gets the error and no work is scheduled.
func (r *Runner) Submit(ctx context.Context, kind constants.JobKind, payload json.RawMessage) (uuid.UUID, error) {
	job := newPending(kind, payload)
	if err := r.store.Put(ctx, job); err != nil {
		r.logger.Error("job.submit.store_write_failed", "job_id", job.ID, "error", err)
		return uuid.Nil, common.NewAppError("STORE_WRITE", "recording job failed", common.ErrDatabase)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		// Terminal-write the record so the id we already stored cannot
		// linger pending forever.
		_ = r.store.Put(ctx, job.failed(ShutdownReason))
		return uuid.Nil, common.InternalError("service is shutting down")
	}
	select {
	case r.ch <- job:
		r.logger.Info("job.submit.queued", "job_id", job.ID, "kind", kind)
	default:
		r.logger.Warn("job.submit.queue_full", "job_id", job.ID, "kind", kind)
		r.ch <- job
	}
	return job.ID, nil
}

// Status returns the stored record for id.
func (r *Runner) Status(ctx context.Context, id uuid.UUID) (Job, error) {
	return r.store.Get(ctx, id)
}

func (r *Runner) run(workerID int, job Job) {
	if r.isClosed() {
		// Drained during shutdown: don't start an upstream call that the
		// process won't wait for.
		r.finish(job, nil, fmt.Errorf("%s", ShutdownReason))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	result, err := r.exec.Execute(ctx, job)
	cancel()
	if err != nil {
		r.logger.Error("job.run.failed", "worker_id", workerID, "job_id", job.ID, "kind", job.Kind, "error", err)
	} else {
		r.logger.Info("job.run.ok", "worker_id", workerID, "job_id", job.ID, "kind", job.Kind)
	}
	r.finish(job, result, err)
}

// finish performs the one terminal write. Every execution path funnels
// through here; a job never stays pending past its run.
func (r *Runner) finish(job Job, result json.RawMessage, runErr error) {
	terminal := job.complete(result)
	if runErr != nil {
		terminal = job.failed(runErr.Error())
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.store.Put(ctx, terminal); err != nil {
		r.logger.Error("job.finish.store_write_failed", "job_id", job.ID, "status", terminal.Status, "error", err)
	}
}

func (r *Runner) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Shutdown stops intake, fails still-queued jobs, and waits for in-flight
// executions up to ctx.
func (r *Runner) Shutdown(ctx context.Context) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.ch)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); r.wg.Wait() }()

	select {
	case <-ctx.Done():
		r.logger.Warn("job.shutdown.interrupted")
	case <-done:
		r.logger.Info("job.shutdown.drained")
	}
}
