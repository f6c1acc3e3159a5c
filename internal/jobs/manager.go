// Package jobs orchestrates the job lifecycle: credit reservation, detached
// execution, progress reporting and terminal reconciliation with the ledger.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mediaforge/internal/domain"
	"mediaforge/internal/infra/metrics"
	"mediaforge/internal/ledger"
	"mediaforge/internal/plancfg"
)

// ProgressFunc is handed to the engine so it can report incremental status.
type ProgressFunc func(pct int, step, message string)

// Engine performs the provider work for one job and returns the result
// reference.
type Engine interface {
	Execute(ctx context.Context, job domain.Job, report ProgressFunc) (string, error)
}

// SubmitRequest carries everything needed to accept a job.
type SubmitRequest struct {
	OwnerID         string
	TeamID          string
	PlanName        string
	Kind            domain.JobKind
	Provider        string
	Payload         json.RawMessage
	DurationSeconds float64
	ShotPlan        json.RawMessage
	TotalShots      int
	Country         string
}

// SubmitResult is returned to the caller without waiting for execution.
type SubmitResult struct {
	JobID           string
	Status          domain.JobStatus
	CreditsConsumed int
}

// Outcome is the terminal result delivered by the detached execution.
type Outcome struct {
	ResultRef string
	Err       error
}

// sweepBatch bounds how many rows one reconcile pass touches per status, and
// repairStepTimeout bounds each repair so a store fault cannot wedge the
// sweep while it holds refundMu.
const (
	sweepBatch        = 100
	repairStepTimeout = 30 * time.Second
)

type Manager struct {
	jobs          domain.JobStore
	ledger        *ledger.Ledger
	plans         *plancfg.Config
	engine        Engine
	exec          *Executor
	reporter      *Reporter
	jobTimeout    time.Duration
	sweepInterval time.Duration
	requeueAfter  time.Duration
	refundMu      sync.Mutex
	logger        zerolog.Logger
}

type ManagerOptions struct {
	Jobs          domain.JobStore
	Ledger        *ledger.Ledger
	Plans         *plancfg.Config
	Engine        Engine
	Workers       int
	QueueSize     int
	JobTimeout    time.Duration
	SweepInterval time.Duration
	RequeueAfter  time.Duration
	Logger        zerolog.Logger
}

func NewManager(opts ManagerOptions) *Manager {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 10 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	if opts.RequeueAfter <= 0 {
		opts.RequeueAfter = 2 * time.Minute
	}
	m := &Manager{
		jobs:          opts.Jobs,
		ledger:        opts.Ledger,
		plans:         opts.Plans,
		engine:        opts.Engine,
		reporter:      NewReporter(opts.Jobs, opts.Logger),
		jobTimeout:    opts.JobTimeout,
		sweepInterval: opts.SweepInterval,
		requeueAfter:  opts.RequeueAfter,
		logger:        opts.Logger.With().Str("component", "jobs").Logger(),
	}
	m.exec = NewExecutor(opts.Workers, opts.QueueSize, m.run, opts.Logger)
	return m
}

// Reporter exposes the progress sink, for wiring into HTTP or engines that
// report out of band.
func (m *Manager) Reporter() *Reporter {
	return m.reporter
}

// Start launches the executor workers and the reconciliation sweep. ctx
// bounds the lifetime of all detached executions.
func (m *Manager) Start(ctx context.Context) {
	m.exec.Start(ctx)
	go m.reconcileLoop(ctx)
}

// Shutdown stops accepting work and waits for in-flight executions.
func (m *Manager) Shutdown() {
	m.exec.Shutdown()
}

// Submit validates the request, reserves credits, persists the queued row and
// hands the job to the executor. It returns as soon as the reservation is
// durable; execution happens on a detached worker.
func (m *Manager) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("kind %q: %w", req.Kind, domain.ErrInvalidTaskConfig)
	}
	plan := m.plans.PlanFor(req.PlanName)
	if !plan.Allows(req.Kind) {
		return nil, fmt.Errorf("plan %s does not allow %s jobs: %w", plan.Name, req.Kind, domain.ErrPlanRestricted)
	}
	cost, err := plan.Cost(req.Kind, req.DurationSeconds)
	if err != nil {
		return nil, err
	}

	// Advisory read for a friendly rejection; the authoritative sufficiency
	// check lives inside Consume's conditional update.
	available := 0
	if bal, err := m.ledger.Balance(ctx, req.TeamID); err == nil {
		available = bal.Credits
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("read balance: %w", err)
	}
	if available < cost {
		return nil, &domain.InsufficientCreditsError{Required: cost, Available: available}
	}

	job := domain.Job{
		ID:              uuid.NewString(),
		OwnerID:         req.OwnerID,
		TeamID:          req.TeamID,
		Kind:            req.Kind,
		Status:          domain.JobStatusQueued,
		Provider:        req.Provider,
		InputJSON:       req.Payload,
		RequiredCredits: cost,
		Meta: domain.JobMeta{
			ShotPlan:   req.ShotPlan,
			TotalShots: req.TotalShots,
			Country:    req.Country,
		},
	}
	if err := m.jobs.Create(ctx, &job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	ok, err := m.ledger.Consume(ctx, req.TeamID, job.ID, cost)
	if err != nil || !ok {
		// The job must never exist with the ledger disagreeing about its
		// charge; roll the row back before reporting the failure.
		if delErr := m.jobs.Delete(ctx, job.ID); delErr != nil {
			m.logger.Error().Err(delErr).Str("job_id", job.ID).Msg("rollback of unreserved job failed")
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrCreditDeduction, err)
		}
		return nil, &domain.InsufficientCreditsError{Required: cost, Available: available}
	}

	m.exec.Enqueue(job)
	metrics.JobsSubmitted.WithLabelValues(string(req.Kind)).Inc()
	m.logger.Info().
		Str("job_id", job.ID).
		Str("team_id", req.TeamID).
		Str("kind", string(req.Kind)).
		Int("credits", cost).
		Msg("job accepted")

	return &SubmitResult{JobID: job.ID, Status: domain.JobStatusProcessing, CreditsConsumed: cost}, nil
}

// GetStatus returns the job row for its owner.
func (m *Manager) GetStatus(ctx context.Context, jobID, requesterID string) (*domain.Job, error) {
	job, err := m.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != requesterID {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

// List returns the requester's most recent jobs.
func (m *Manager) List(ctx context.Context, ownerID string, limit int) ([]domain.Job, error) {
	return m.jobs.ListByOwner(ctx, ownerID, limit)
}

// Finalize resolves a job to its terminal state. Safe to invoke more than
// once: a job already terminal only has its refund repaired if a previous
// attempt recorded the failure but lost the refund write.
func (m *Manager) Finalize(ctx context.Context, jobID string, outcome Outcome) error {
	job, err := m.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	switch job.Status {
	case domain.JobStatusDone:
		return nil
	case domain.JobStatusFailed:
		return m.ensureRefund(ctx, job)
	}

	if outcome.Err == nil {
		if err := m.jobs.SetStatus(ctx, jobID, domain.JobStatusDone, outcome.ResultRef); err != nil {
			return fmt.Errorf("finalize: mark done: %w", err)
		}
		metrics.JobsFinalized.WithLabelValues(string(job.Kind), string(domain.JobStatusDone)).Inc()
		m.logger.Info().Str("job_id", jobID).Msg("job done")
		return nil
	}

	summary := SanitizeError(outcome.Err)
	if err := m.jobs.SetStatus(ctx, jobID, domain.JobStatusFailed, summary); err != nil {
		return fmt.Errorf("finalize: mark failed: %w", err)
	}
	metrics.JobsFinalized.WithLabelValues(string(job.Kind), string(domain.JobStatusFailed)).Inc()
	m.logger.Warn().Err(outcome.Err).Str("job_id", jobID).Msg("job failed")
	return m.ensureRefund(ctx, job)
}

// ensureRefund issues the compensating refund for a failed job exactly once.
// The transaction trail is the idempotency record: a job that already has a
// refund entry is left alone. A failed-but-unrefunded job is the worst
// user-visible bug this system can have, so the write is retried.
func (m *Manager) ensureRefund(ctx context.Context, job *domain.Job) error {
	// The scan and the refund write are not one atomic step, so serialize
	// them against the reconciliation sweep to keep the refund single.
	m.refundMu.Lock()
	defer m.refundMu.Unlock()

	txs, err := m.ledger.TransactionsForJob(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("finalize: read transactions: %w", err)
	}
	for _, tx := range txs {
		if tx.Type == domain.TxRefund {
			return nil
		}
	}
	op := func() error {
		return m.ledger.Refund(ctx, job.TeamID, job.ID, job.RequiredCredits, "compensating refund: job failed")
	}
	// Retry for as long as ctx allows. A missed refund here is not lost for
	// good: the reconciliation sweep re-attempts it on every pass.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		m.logger.Error().Err(err).Str("job_id", job.ID).Msg("compensating refund not recorded")
		return fmt.Errorf("finalize: refund: %w", err)
	}
	return nil
}

// reconcileLoop repairs state a crash or interrupted finalize can leave
// behind. It sweeps once at startup, then on every tick until ctx ends.
func (m *Manager) reconcileLoop(ctx context.Context) {
	m.reconcile(ctx)
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reconcile(ctx)
		}
	}
}

// reconcile makes one repair pass: queued rows nobody picked up are handed
// back to the executor, processing rows that outlived the job timeout are
// failed with their refund, and failed rows whose refund write was lost get
// it reissued. Every step is idempotent, so re-enqueueing a job that a
// worker is still holding only costs duplicate provider work.
func (m *Manager) reconcile(ctx context.Context) {
	now := time.Now()

	queued, err := m.jobs.ListStale(ctx, domain.JobStatusQueued, now.Add(-m.requeueAfter), sweepBatch)
	if err != nil {
		m.logger.Error().Err(err).Msg("reconcile: list queued")
	}
	for _, job := range queued {
		m.logger.Info().Str("job_id", job.ID).Time("updated_at", job.UpdatedAt).Msg("requeueing abandoned job")
		m.exec.Enqueue(job)
	}

	stuck, err := m.jobs.ListStale(ctx, domain.JobStatusProcessing, now.Add(-(m.jobTimeout+m.requeueAfter)), sweepBatch)
	if err != nil {
		m.logger.Error().Err(err).Msg("reconcile: list processing")
	}
	for _, job := range stuck {
		m.logger.Warn().Str("job_id", job.ID).Time("updated_at", job.UpdatedAt).Msg("failing stale job")
		abandoned := fmt.Errorf("no progress since %s: %w", job.UpdatedAt.Format(time.RFC3339), context.DeadlineExceeded)
		opCtx, cancel := context.WithTimeout(ctx, repairStepTimeout)
		if err := m.Finalize(opCtx, job.ID, Outcome{Err: abandoned}); err != nil {
			m.logger.Error().Err(err).Str("job_id", job.ID).Msg("reconcile: finalize stale job")
		}
		cancel()
	}

	failed, err := m.jobs.ListStale(ctx, domain.JobStatusFailed, now, sweepBatch)
	if err != nil {
		m.logger.Error().Err(err).Msg("reconcile: list failed")
	}
	for _, job := range failed {
		job := job
		opCtx, cancel := context.WithTimeout(ctx, repairStepTimeout)
		if err := m.ensureRefund(opCtx, &job); err != nil {
			m.logger.Error().Err(err).Str("job_id", job.ID).Msg("reconcile: refund repair")
		}
		cancel()
	}
}

// run is the detached execution for one job. It suspends only on provider
// I/O and datastore writes; a provider hang is bounded by jobTimeout, after
// which the job is finalized as failed with its refund.
func (m *Manager) run(ctx context.Context, job domain.Job) {
	execCtx, cancel := context.WithTimeout(ctx, m.jobTimeout)
	defer cancel()

	if err := m.jobs.SetStatus(execCtx, job.ID, domain.JobStatusProcessing, ""); err != nil {
		m.logger.Error().Err(err).Str("job_id", job.ID).Msg("mark processing failed")
	}

	report := func(pct int, step, message string) {
		if err := m.reporter.Report(execCtx, job.ID, pct, step, message); err != nil {
			m.logger.Debug().Err(err).Str("job_id", job.ID).Msg("progress report dropped")
		}
	}

	ref, err := m.engine.Execute(execCtx, job, report)

	// Finalization must not be cut short by an expired execution deadline.
	finCtx, finCancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer finCancel()
	if finErr := m.Finalize(finCtx, job.ID, Outcome{ResultRef: ref, Err: err}); finErr != nil {
		m.logger.Error().Err(finErr).Str("job_id", job.ID).Msg("finalize failed")
	}
}
