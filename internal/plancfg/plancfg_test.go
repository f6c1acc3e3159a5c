package plancfg

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mediaforge/internal/domain"
)

func TestPlanForFallsBackToDefault(t *testing.T) {
	cfg := Defaults()

	if got := cfg.PlanFor("studio").Name; got != "studio" {
		t.Errorf("PlanFor(studio) = %s", got)
	}
	if got := cfg.PlanFor("PRO ").Name; got != "pro" {
		t.Errorf("PlanFor with case and whitespace = %s, want pro", got)
	}
	if got := cfg.PlanFor("enterprise").Name; got != "free" {
		t.Errorf("unknown plan resolved to %s, want default free", got)
	}
}

func TestPlanAllows(t *testing.T) {
	cfg := Defaults()

	free := cfg.PlanFor("free")
	if !free.Allows(domain.JobKindImage) {
		t.Error("free should allow image")
	}
	if free.Allows(domain.JobKindVideo) {
		t.Error("free should not allow video")
	}
	if free.Allows(domain.JobKindLongVideo) {
		t.Error("free should not allow long-video")
	}
	if !cfg.PlanFor("studio").Allows(domain.JobKindLongVideo) {
		t.Error("studio should allow long-video")
	}
}

func TestCostRoundsUp(t *testing.T) {
	pro := Defaults().PlanFor("pro")

	got, err := pro.Cost(domain.JobKindVideo, 4.5)
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	if got != 54 {
		t.Errorf("Cost(video, 4.5s) = %d, want 54 (12/s, rounded up)", got)
	}

	got, err = pro.Cost(domain.JobKindVideo, 5)
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	if got != 60 {
		t.Errorf("Cost(video, 5s) = %d, want 60", got)
	}
}

func TestCostImageIsFlat(t *testing.T) {
	cfg := Defaults()

	got, err := cfg.PlanFor("free").Cost(domain.JobKindImage, 0)
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	if got != 10 {
		t.Errorf("image cost = %d, want 10", got)
	}
	got, err = cfg.PlanFor("studio").Cost(domain.JobKindImage, 0)
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	if got != 8 {
		t.Errorf("studio image cost = %d, want 8", got)
	}
}

func TestCostRejectsInvalidInput(t *testing.T) {
	pro := Defaults().PlanFor("pro")

	if _, err := pro.Cost(domain.JobKindVideo, 0); !errors.Is(err, domain.ErrInvalidTaskConfig) {
		t.Errorf("zero duration: err = %v, want ErrInvalidTaskConfig", err)
	}
	if _, err := pro.Cost(domain.JobKind("audio"), 5); !errors.Is(err, domain.ErrInvalidTaskConfig) {
		t.Errorf("unknown kind: err = %v, want ErrInvalidTaskConfig", err)
	}

	free := Defaults().PlanFor("free")
	if _, err := free.Cost(domain.JobKindVideo, 5); !errors.Is(err, domain.ErrInvalidTaskConfig) {
		t.Errorf("unconfigured per-second cost: err = %v, want ErrInvalidTaskConfig", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.toml")
	doc := `
default_plan = "basic"

[plans.basic]
kinds = ["image"]
image_cost = 3

[plans.max]
name = "max"
kinds = ["image", "video", "long-video"]
image_cost = 1
video_cost_per_second = 2
long_video_cost_per_second = 2
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PlanFor("unknown").Name != "basic" {
		t.Errorf("default plan = %s, want basic", cfg.PlanFor("unknown").Name)
	}
	// Name backfilled from the table key when omitted.
	if cfg.PlanFor("basic").Name != "basic" {
		t.Errorf("plan name not backfilled: %q", cfg.PlanFor("basic").Name)
	}
	cost, err := cfg.PlanFor("max").Cost(domain.JobKindLongVideo, 30)
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	if cost != 60 {
		t.Errorf("Cost(long-video, 30s) = %d, want 60", cost)
	}
}

func TestLoadEmptyPathYieldsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultPlan != "free" {
		t.Errorf("DefaultPlan = %s", cfg.DefaultPlan)
	}
}
