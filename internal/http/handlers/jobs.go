package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mediaforge/internal/domain"
	"mediaforge/internal/jobs"
	"mediaforge/internal/middleware"
)

type submitJobRequest struct {
	Kind     string          `json:"kind"`
	Provider string          `json:"provider"`
	Payload  json.RawMessage `json:"payload"`
	Duration float64         `json:"duration,omitempty"`
}

type submitJobResponse struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	CreditsConsumed int    `json:"credits_consumed"`
}

// JobsSubmit accepts a generation job, reserves credits and returns
// immediately with the job identifier.
func (a *App) JobsSubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid_task_config", "invalid payload")
		return
	}
	result, err := a.Manager.Submit(r.Context(), jobs.SubmitRequest{
		OwnerID:         id.UserID,
		TeamID:          id.TeamID,
		PlanName:        id.Plan,
		Kind:            domain.JobKind(req.Kind),
		Provider:        req.Provider,
		Payload:         req.Payload,
		DurationSeconds: req.Duration,
		Country:         middleware.CountryFromContext(r.Context()),
	})
	if err != nil {
		a.submitError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, submitJobResponse{
		ID:              result.JobID,
		Status:          string(result.Status),
		CreditsConsumed: result.CreditsConsumed,
	})
}

// submitError maps submission failures to their wire codes.
func (a *App) submitError(w http.ResponseWriter, err error) {
	var insufficient *domain.InsufficientCreditsError
	switch {
	case errors.As(err, &insufficient):
		a.json(w, http.StatusPaymentRequired, map[string]any{
			"error":     "insufficient_credits",
			"message":   insufficient.Error(),
			"required":  insufficient.Required,
			"available": insufficient.Available,
		})
	case errors.Is(err, domain.ErrPlanRestricted):
		a.error(w, http.StatusForbidden, "plan_restriction", "current plan does not allow this job kind")
	case errors.Is(err, domain.ErrCreditDeduction):
		a.error(w, http.StatusConflict, "credit_deduction_failed", "credit reservation failed, no job was created")
	case errors.Is(err, domain.ErrInvalidTaskConfig):
		a.error(w, http.StatusBadRequest, "invalid_task_config", err.Error())
	default:
		a.Logger.Error().Err(err).Msg("job submission failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to submit job")
	}
}

// JobStatus returns the job row, including progress metadata, to its owner.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "invalid_task_config", "job_id required")
		return
	}
	job, err := a.Manager.GetStatus(r.Context(), jobID, id.UserID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	a.json(w, http.StatusOK, jobPayload(job))
}

// JobsList returns the caller's most recent jobs.
func (a *App) JobsList(w http.ResponseWriter, r *http.Request) {
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	items, err := a.Manager.List(r.Context(), id.UserID, 50)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to list jobs")
		return
	}
	out := make([]map[string]any, 0, len(items))
	for i := range items {
		out = append(out, jobPayload(&items[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": out})
}

func jobPayload(job *domain.Job) map[string]any {
	meta, _ := json.Marshal(job.Meta)
	payload := map[string]any{
		"id":               job.ID,
		"kind":             job.Kind,
		"status":           job.Status,
		"provider":         job.Provider,
		"required_credits": job.RequiredCredits,
		"meta":             json.RawMessage(meta),
		"created_at":       job.CreatedAt,
		"updated_at":       job.UpdatedAt,
	}
	if job.Status.Terminal() {
		payload["result_ref"] = job.ResultRef
	}
	return payload
}
