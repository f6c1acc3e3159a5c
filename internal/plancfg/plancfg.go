// Package plancfg holds the static plan table: which job kinds each
// subscription plan may run and what each unit of work costs in credits. The
// table is configuration data supplied by the billing side; this package only
// reads it.
package plancfg

import (
	"fmt"
	"math"
	"strings"

	"github.com/BurntSushi/toml"

	"mediaforge/internal/domain"
)

// Plan describes one subscription tier.
type Plan struct {
	Name                   string   `toml:"name"`
	Kinds                  []string `toml:"kinds"`
	ImageCost              int      `toml:"image_cost"`
	VideoCostPerSecond     int      `toml:"video_cost_per_second"`
	LongVideoCostPerSecond int      `toml:"long_video_cost_per_second"`
}

// Config maps plan names to their tiers.
type Config struct {
	DefaultPlan string          `toml:"default_plan"`
	Plans       map[string]Plan `toml:"plans"`
}

// Defaults returns the compiled-in plan table used when no file is supplied.
func Defaults() *Config {
	return &Config{
		DefaultPlan: "free",
		Plans: map[string]Plan{
			"free": {
				Name:      "free",
				Kinds:     []string{"image"},
				ImageCost: 10,
			},
			"pro": {
				Name:                   "pro",
				Kinds:                  []string{"image", "video"},
				ImageCost:              10,
				VideoCostPerSecond:     12,
				LongVideoCostPerSecond: 12,
			},
			"studio": {
				Name:                   "studio",
				Kinds:                  []string{"image", "video", "long-video"},
				ImageCost:              8,
				VideoCostPerSecond:     10,
				LongVideoCostPerSecond: 10,
			},
		},
	}
}

// Load reads a plan table from a TOML file. An empty path yields Defaults.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return Defaults(), nil
	}
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("plancfg: decode %s: %w", path, err)
	}
	if len(cfg.Plans) == 0 {
		return nil, fmt.Errorf("plancfg: %s defines no plans", path)
	}
	if cfg.DefaultPlan == "" {
		cfg.DefaultPlan = "free"
	}
	for name, plan := range cfg.Plans {
		if plan.Name == "" {
			plan.Name = name
			cfg.Plans[name] = plan
		}
	}
	return &cfg, nil
}

// PlanFor resolves a plan by name, falling back to the default plan for
// unknown names.
func (c *Config) PlanFor(name string) Plan {
	if plan, ok := c.Plans[strings.ToLower(strings.TrimSpace(name))]; ok {
		return plan
	}
	return c.Plans[c.DefaultPlan]
}

// Allows reports whether the plan permits the given job kind.
func (p Plan) Allows(kind domain.JobKind) bool {
	for _, k := range p.Kinds {
		if domain.JobKind(k) == kind {
			return true
		}
	}
	return false
}

// Cost computes the credit price of one job. Duration-based prices round up
// to the next whole credit, never down.
func (p Plan) Cost(kind domain.JobKind, durationSeconds float64) (int, error) {
	switch kind {
	case domain.JobKindImage:
		if p.ImageCost <= 0 {
			return 0, fmt.Errorf("plan %s: %w: image cost not configured", p.Name, domain.ErrInvalidTaskConfig)
		}
		return p.ImageCost, nil
	case domain.JobKindVideo:
		return durationCost(p.Name, p.VideoCostPerSecond, durationSeconds)
	case domain.JobKindLongVideo:
		return durationCost(p.Name, p.LongVideoCostPerSecond, durationSeconds)
	}
	return 0, fmt.Errorf("plan %s: %w: unknown kind %q", p.Name, domain.ErrInvalidTaskConfig, kind)
}

func durationCost(planName string, perSecond int, seconds float64) (int, error) {
	if perSecond <= 0 {
		return 0, fmt.Errorf("plan %s: %w: per-second cost not configured", planName, domain.ErrInvalidTaskConfig)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("plan %s: %w: duration must be positive", planName, domain.ErrInvalidTaskConfig)
	}
	return int(math.Ceil(seconds * float64(perSecond))), nil
}
