package shotplan

import (
	"context"
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mediaforge/internal/providers/chain"
)

// LocalPlanner is the terminal planning strategy: deterministic, provider
// free, and always structurally valid. It splits the requested duration into
// fixed-length segments and assigns a rotating pattern of shot types, so the
// chain can only degrade in narrative quality, never fail outright.
type LocalPlanner struct{}

func NewLocalPlanner() *LocalPlanner {
	return &LocalPlanner{}
}

func (l *LocalPlanner) Name() string { return "local" }

const segmentSeconds = 10

type shotType struct {
	label  string
	camera string
}

// Rotation by segment index: establishing, medium, close-up, closing.
var rotation = []shotType{
	{label: "establishing", camera: "wide establishing shot, slow pan"},
	{label: "medium", camera: "medium cutaway, steady tracking"},
	{label: "close-up", camera: "close-up, shallow depth of field"},
	{label: "closing", camera: "pull-back closing shot, slow zoom out"},
}

func (l *LocalPlanner) Attempt(ctx context.Context, req Request) (Plan, error) {
	if err := ctx.Err(); err != nil {
		return Plan{}, err
	}
	total := req.TotalSeconds
	if total <= 0 {
		total = segmentSeconds
	}

	// Fixed-length segments, remainder folded into the last one.
	count := total / segmentSeconds
	remainder := total % segmentSeconds
	if count == 0 {
		count = 1
		remainder = 0
	}

	titler := cases.Title(language.Und)
	shots := make([]Shot, count)
	for i := 0; i < count; i++ {
		st := rotation[i%len(rotation)]
		duration := segmentSeconds
		if i == count-1 {
			if total < segmentSeconds {
				duration = total
			} else {
				duration += remainder
			}
		}
		shots[i] = Shot{
			ID:        i + 1,
			Prompt:    fmt.Sprintf("%s (%s segment %d of %d)", req.Prompt, titler.String(st.label), i+1, count),
			DurationS: duration,
			Camera:    st.camera,
		}
	}

	plan := Plan{Shots: shots}
	plan.Normalize()
	return plan, nil
}

var _ chain.Strategy[Request, Plan] = (*LocalPlanner)(nil)
