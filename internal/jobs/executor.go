package jobs

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"mediaforge/internal/domain"
)

// Executor is a fixed-size worker pool for detached job executions. Each
// queued item carries the full job row, so execution never depends on
// request-scoped state that disappears once the HTTP response is sent.
type Executor struct {
	queue   chan domain.Job
	run     func(ctx context.Context, job domain.Job)
	workers int
	logger  zerolog.Logger
	wg      sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
}

func NewExecutor(workers, queueSize int, run func(ctx context.Context, job domain.Job), logger zerolog.Logger) *Executor {
	return &Executor{
		queue:   make(chan domain.Job, queueSize),
		run:     run,
		workers: workers,
		logger:  logger.With().Str("component", "executor").Logger(),
	}
}

// Start launches the workers. ctx bounds every execution's lifetime.
func (e *Executor) Start(ctx context.Context) {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()

	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go e.worker(ctx, i)
	}
}

// Enqueue hands a job to the pool. When the queue is saturated the job runs
// on a dedicated goroutine instead of blocking the submitting request. The
// closed check and the channel send happen under one lock so Enqueue never
// races Shutdown's close of the queue.
func (e *Executor) Enqueue(job domain.Job) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.logger.Warn().Str("job_id", job.ID).Msg("executor closed, dropping job")
		return
	}
	select {
	case e.queue <- job:
		e.mu.Unlock()
		return
	default:
	}
	e.wg.Add(1)
	e.mu.Unlock()

	e.logger.Warn().Str("job_id", job.ID).Msg("queue saturated, running on dedicated goroutine")
	go func() {
		defer e.wg.Done()
		e.run(context.Background(), job)
	}()
}

func (e *Executor) worker(ctx context.Context, id int) {
	defer e.wg.Done()
	e.logger.Debug().Int("worker", id).Msg("worker started")
	for job := range e.queue {
		e.run(ctx, job)
	}
}

// Shutdown stops intake and waits for in-flight executions to finish.
func (e *Executor) Shutdown() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	e.wg.Wait()
}
