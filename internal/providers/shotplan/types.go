// Package shotplan decomposes a long-form video request into ordered,
// bounded-duration sub-clips with per-clip directives.
package shotplan

import (
	"fmt"
	"strings"
)

// Shot duration bounds supported by the video providers. Values outside the
// range are clamped, not rejected.
const (
	MinShotSeconds = 3
	MaxShotSeconds = 30
)

// Shot is one sub-clip of a plan.
type Shot struct {
	ID        int    `json:"id"`
	Prompt    string `json:"prompt"`
	DurationS int    `json:"duration_s"`
	Camera    string `json:"camera"`
}

// Plan is the full decomposition. TotalSeconds always equals the sum of the
// shots' durations.
type Plan struct {
	TotalSeconds int    `json:"total_seconds"`
	Shots        []Shot `json:"shots"`
}

// Request describes the video to decompose.
type Request struct {
	Prompt       string
	TotalSeconds int
	Style        string
	RequestID    string
}

// Normalize clamps every shot duration into the supported bounds, renumbers
// ids contiguously from 1 and recomputes the total as the authoritative sum
// of the shots.
func (p *Plan) Normalize() {
	total := 0
	for i := range p.Shots {
		if p.Shots[i].DurationS < MinShotSeconds {
			p.Shots[i].DurationS = MinShotSeconds
		}
		if p.Shots[i].DurationS > MaxShotSeconds {
			p.Shots[i].DurationS = MaxShotSeconds
		}
		p.Shots[i].ID = i + 1
		total += p.Shots[i].DurationS
	}
	p.TotalSeconds = total
}

// Validate checks a client-submitted plan: every shot needs an id, a prompt,
// a camera directive and a duration within bounds.
func (p *Plan) Validate() error {
	if len(p.Shots) == 0 {
		return fmt.Errorf("shot plan has no shots")
	}
	for i, shot := range p.Shots {
		if shot.ID <= 0 {
			return fmt.Errorf("shot %d: id is required", i+1)
		}
		if strings.TrimSpace(shot.Prompt) == "" {
			return fmt.Errorf("shot %d: prompt is required", shot.ID)
		}
		if strings.TrimSpace(shot.Camera) == "" {
			return fmt.Errorf("shot %d: camera directive is required", shot.ID)
		}
		if shot.DurationS < MinShotSeconds || shot.DurationS > MaxShotSeconds {
			return fmt.Errorf("shot %d: duration_s must be between %d and %d, got %d",
				shot.ID, MinShotSeconds, MaxShotSeconds, shot.DurationS)
		}
	}
	return nil
}

// Sum returns the total of the shots' durations.
func (p *Plan) Sum() int {
	total := 0
	for _, shot := range p.Shots {
		total += shot.DurationS
	}
	return total
}
