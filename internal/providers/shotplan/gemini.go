package shotplan

import (
	"context"
	"fmt"

	"mediaforge/internal/providers/chain"
	"mediaforge/internal/providers/genai"
)

// GeminiPlanner asks Gemini to decompose the request into shots.
type GeminiPlanner struct {
	client *genai.Client
}

func NewGeminiPlanner(client *genai.Client) *GeminiPlanner {
	return &GeminiPlanner{client: client}
}

func (g *GeminiPlanner) Name() string { return "gemini" }

func (g *GeminiPlanner) Attempt(ctx context.Context, req Request) (Plan, error) {
	var plan Plan
	if err := g.client.GenerateJSON(ctx, planningPrompt(req), &plan); err != nil {
		return Plan{}, err
	}
	if len(plan.Shots) == 0 {
		return Plan{}, fmt.Errorf("gemini planner returned no shots")
	}
	plan.Normalize()
	return plan, nil
}

func planningPrompt(req Request) string {
	style := req.Style
	if style == "" {
		style = "cinematic"
	}
	return fmt.Sprintf(`Decompose the following video concept into an ordered shot plan.
Respond with JSON only, shaped as {"total_seconds": int, "shots": [{"id": int, "prompt": string, "duration_s": int, "camera": string}]}.
Rules: shot ids are contiguous starting at 1; each duration_s is between %d and %d seconds; durations sum to %d; style is %s.
Concept: %s`, MinShotSeconds, MaxShotSeconds, req.TotalSeconds, style, req.Prompt)
}

var _ chain.Strategy[Request, Plan] = (*GeminiPlanner)(nil)
