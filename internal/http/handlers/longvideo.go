package handlers

import (
	"encoding/json"
	"net/http"

	"mediaforge/internal/domain"
	"mediaforge/internal/jobs"
	"mediaforge/internal/middleware"
	"mediaforge/internal/providers/shotplan"
)

type longVideoRequest struct {
	Action       string         `json:"action"`
	Prompt       string         `json:"prompt"`
	Style        string         `json:"style,omitempty"`
	TotalSeconds int            `json:"total_seconds,omitempty"`
	ShotPlan     *shotplan.Plan `json:"shot_plan,omitempty"`
}

// LongVideos is the two-phase long-video endpoint. action=plan returns a
// shot plan for client review without charging credits; action=generate
// accepts a possibly edited plan, validates it, and runs the normal
// reservation-and-execute flow.
func (a *App) LongVideos(w http.ResponseWriter, r *http.Request) {
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	var req longVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid_task_config", "invalid payload")
		return
	}
	switch req.Action {
	case "plan":
		a.longVideoPlan(w, r, req)
	case "generate":
		a.longVideoGenerate(w, r, id, req)
	default:
		a.error(w, http.StatusBadRequest, "invalid_task_config", "action must be plan or generate")
	}
}

func (a *App) longVideoPlan(w http.ResponseWriter, r *http.Request, req longVideoRequest) {
	if req.Prompt == "" || req.TotalSeconds <= 0 {
		a.error(w, http.StatusBadRequest, "invalid_task_config", "prompt and total_seconds are required")
		return
	}
	plan, err := a.Planner.Do(r.Context(), shotplan.Request{
		Prompt:       req.Prompt,
		TotalSeconds: req.TotalSeconds,
		Style:        req.Style,
	})
	if err != nil {
		// The local planner is the chain's terminal strategy, so this only
		// happens on context cancellation.
		a.error(w, http.StatusInternalServerError, "internal", "planning failed")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"shot_plan": plan})
}

func (a *App) longVideoGenerate(w http.ResponseWriter, r *http.Request, id middleware.Identity, req longVideoRequest) {
	if req.ShotPlan == nil {
		a.error(w, http.StatusBadRequest, "invalid_task_config", "shot_plan is required")
		return
	}
	if err := req.ShotPlan.Validate(); err != nil {
		a.error(w, http.StatusBadRequest, "invalid_task_config", err.Error())
		return
	}
	// The submitted shots are authoritative; the client's total is ignored.
	req.ShotPlan.TotalSeconds = req.ShotPlan.Sum()

	planJSON, err := json.Marshal(req.ShotPlan)
	if err != nil {
		a.error(w, http.StatusBadRequest, "invalid_task_config", "invalid shot plan")
		return
	}
	payload, _ := json.Marshal(map[string]any{"prompt": req.Prompt})
	result, err := a.Manager.Submit(r.Context(), jobs.SubmitRequest{
		OwnerID:         id.UserID,
		TeamID:          id.TeamID,
		PlanName:        id.Plan,
		Kind:            domain.JobKindLongVideo,
		Payload:         payload,
		DurationSeconds: float64(req.ShotPlan.TotalSeconds),
		ShotPlan:        planJSON,
		TotalShots:      len(req.ShotPlan.Shots),
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
