package video

import (
	"context"
	"fmt"
	"math"
	"strings"

	"mediaforge/internal/providers/chain"
	"mediaforge/internal/providers/genai"
)

// VeoGenerator produces video clips through the Gemini media endpoint with a
// Veo model.
type VeoGenerator struct {
	client *genai.Client
}

func NewVeoGenerator(client *genai.Client) *VeoGenerator {
	return &VeoGenerator{client: client}
}

func (v *VeoGenerator) Name() string { return "veo" }

func (v *VeoGenerator) Attempt(ctx context.Context, req Request) (Artifact, error) {
	prompt := req.Prompt
	if req.Camera != "" {
		prompt = fmt.Sprintf("%s\nCamera: %s", prompt, req.Camera)
	}
	artifact, err := v.client.GenerateMedia(ctx, "video/mp4", genai.MediaRequest{
		Prompt:          prompt,
		DurationSeconds: req.DurationSeconds,
		RequestID:       req.RequestID,
	})
	if err != nil {
		return Artifact{}, err
	}
	format := artifact.Format
	if !strings.HasPrefix(format, "video/") {
		format = "video/mp4"
	}
	return Artifact{
		URL:           artifact.URL,
		Format:        format,
		LengthSeconds: int(math.Round(req.DurationSeconds)),
	}, nil
}

var _ chain.Strategy[Request, Artifact] = (*VeoGenerator)(nil)
