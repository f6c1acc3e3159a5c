package jobs

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"mediaforge/internal/domain"
)

// Reporter writes incremental progress into the job's metadata document with
// read-modify-write merge semantics: progress, plan details and other
// concerns share the container, so only the progress fields are patched.
type Reporter struct {
	jobs   domain.JobStore
	logger zerolog.Logger
}

func NewReporter(jobs domain.JobStore, logger zerolog.Logger) *Reporter {
	return &Reporter{jobs: jobs, logger: logger.With().Str("component", "progress").Logger()}
}

// Report records a progress update. Updates for terminal jobs are silently
// dropped (the outcome is already fixed), and an update carrying a lower
// percentage than the recorded one never regresses it.
func (r *Reporter) Report(ctx context.Context, jobID string, pct int, step, message string) error {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	job, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("progress: %w", err)
	}
	if job.Status.Terminal() {
		r.logger.Debug().Str("job_id", jobID).Msg("progress after terminal state dropped")
		return nil
	}
	merged := job.Meta.Merge(domain.JobMeta{
		Progress:    &pct,
		CurrentStep: step,
		Message:     message,
	})
	if err := r.jobs.SetMeta(ctx, jobID, merged); err != nil {
		return fmt.Errorf("progress: %w", err)
	}
	return nil
}
