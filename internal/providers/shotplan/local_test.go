package shotplan

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"mediaforge/internal/providers/chain"
)

func TestLocalPlannerSplitsEvenly(t *testing.T) {
	planner := NewLocalPlanner()

	plan, err := planner.Attempt(context.Background(), Request{Prompt: "a day at the beach", TotalSeconds: 30})
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if len(plan.Shots) != 3 {
		t.Fatalf("got %d shots for 30s, want 3", len(plan.Shots))
	}
	for _, shot := range plan.Shots {
		if shot.DurationS != 10 {
			t.Errorf("shot %d duration = %d, want 10", shot.ID, shot.DurationS)
		}
	}
	if plan.TotalSeconds != 30 {
		t.Errorf("TotalSeconds = %d, want 30", plan.TotalSeconds)
	}
}

func TestLocalPlannerFoldsRemainderIntoLastShot(t *testing.T) {
	planner := NewLocalPlanner()

	plan, err := planner.Attempt(context.Background(), Request{Prompt: "city timelapse", TotalSeconds: 35})
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if len(plan.Shots) != 3 {
		t.Fatalf("got %d shots for 35s, want 3", len(plan.Shots))
	}
	last := plan.Shots[len(plan.Shots)-1]
	if last.DurationS != 15 {
		t.Errorf("last shot duration = %d, want 15", last.DurationS)
	}
	if plan.Sum() != 35 {
		t.Errorf("Sum = %d, want 35", plan.Sum())
	}
}

func TestLocalPlannerShortRequests(t *testing.T) {
	planner := NewLocalPlanner()

	plan, err := planner.Attempt(context.Background(), Request{Prompt: "logo sting", TotalSeconds: 7})
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if len(plan.Shots) != 1 {
		t.Fatalf("got %d shots for 7s, want 1", len(plan.Shots))
	}
	if plan.Shots[0].DurationS != 7 {
		t.Errorf("duration = %d, want 7", plan.Shots[0].DurationS)
	}

	// Durations below the provider minimum are clamped up.
	plan, err = planner.Attempt(context.Background(), Request{Prompt: "blink", TotalSeconds: 2})
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if plan.Shots[0].DurationS != MinShotSeconds {
		t.Errorf("duration = %d, want clamped to %d", plan.Shots[0].DurationS, MinShotSeconds)
	}
}

func TestLocalPlannerAlwaysValid(t *testing.T) {
	planner := NewLocalPlanner()

	for _, total := range []int{0, 1, 5, 10, 13, 42, 95, 300} {
		plan, err := planner.Attempt(context.Background(), Request{Prompt: "stress", TotalSeconds: total})
		if err != nil {
			t.Fatalf("Attempt(%d): %v", total, err)
		}
		if err := plan.Validate(); err != nil {
			t.Errorf("plan for %ds is invalid: %v", total, err)
		}
		if plan.Sum() != plan.TotalSeconds {
			t.Errorf("plan for %ds: Sum %d != TotalSeconds %d", total, plan.Sum(), plan.TotalSeconds)
		}
		for i, shot := range plan.Shots {
			if shot.ID != i+1 {
				t.Errorf("plan for %ds: shot %d has id %d, ids must be contiguous from 1", total, i, shot.ID)
			}
		}
	}
}

func TestLocalPlannerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewLocalPlanner().Attempt(ctx, Request{Prompt: "x", TotalSeconds: 30}); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

type downPlanner struct{ name string }

func (d *downPlanner) Name() string { return d.name }

func (d *downPlanner) Attempt(ctx context.Context, req Request) (Plan, error) {
	return Plan{}, &chain.StatusError{Code: 401, Message: "credentials rejected"}
}

func TestPlanningSurvivesProviderOutage(t *testing.T) {
	c := chain.New[Request, Plan]("shotplan", zerolog.Nop(), 0,
		&downPlanner{name: "gemini"},
		&downPlanner{name: "openai"},
		NewLocalPlanner(),
	)

	plan, err := c.Do(context.Background(), Request{Prompt: "harbor at dawn", TotalSeconds: 40})
	if err != nil {
		t.Fatalf("planning failed with the local fallback in place: %v", err)
	}
	if err := plan.Validate(); err != nil {
		t.Errorf("fallback plan invalid: %v", err)
	}
	if plan.TotalSeconds != 40 {
		t.Errorf("TotalSeconds = %d, want 40", plan.TotalSeconds)
	}
}

func TestNormalize(t *testing.T) {
	plan := Plan{
		TotalSeconds: 999,
		Shots: []Shot{
			{ID: 7, Prompt: "a", DurationS: 1, Camera: "wide"},
			{ID: 9, Prompt: "b", DurationS: 45, Camera: "close"},
		},
	}
	plan.Normalize()

	if plan.Shots[0].DurationS != MinShotSeconds {
		t.Errorf("short shot = %d, want %d", plan.Shots[0].DurationS, MinShotSeconds)
	}
	if plan.Shots[1].DurationS != MaxShotSeconds {
		t.Errorf("long shot = %d, want %d", plan.Shots[1].DurationS, MaxShotSeconds)
	}
	if plan.Shots[0].ID != 1 || plan.Shots[1].ID != 2 {
		t.Errorf("ids = %d,%d, want renumbered 1,2", plan.Shots[0].ID, plan.Shots[1].ID)
	}
	if plan.TotalSeconds != MinShotSeconds+MaxShotSeconds {
		t.Errorf("TotalSeconds = %d, want recomputed %d", plan.TotalSeconds, MinShotSeconds+MaxShotSeconds)
	}
}

func TestValidate(t *testing.T) {
	valid := Plan{Shots: []Shot{{ID: 1, Prompt: "a", DurationS: 10, Camera: "wide"}}}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid plan rejected: %v", err)
	}

	cases := []struct {
		name string
		plan Plan
	}{
		{"empty", Plan{}},
		{"missing id", Plan{Shots: []Shot{{Prompt: "a", DurationS: 10, Camera: "wide"}}}},
		{"missing prompt", Plan{Shots: []Shot{{ID: 1, DurationS: 10, Camera: "wide"}}}},
		{"missing camera", Plan{Shots: []Shot{{ID: 1, Prompt: "a", DurationS: 10}}}},
		{"too short", Plan{Shots: []Shot{{ID: 1, Prompt: "a", DurationS: 2, Camera: "wide"}}}},
		{"too long", Plan{Shots: []Shot{{ID: 1, Prompt: "a", DurationS: 31, Camera: "wide"}}}},
	}
	for _, tc := range cases {
		if err := tc.plan.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}
