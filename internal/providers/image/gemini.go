package image

import (
	"context"

	"mediaforge/internal/providers/chain"
	"mediaforge/internal/providers/genai"
)

type GeminiGenerator struct {
	client *genai.Client
}

func NewGeminiGenerator(client *genai.Client) *GeminiGenerator {
	return &GeminiGenerator{client: client}
}

func (g *GeminiGenerator) Name() string { return "gemini" }

func (g *GeminiGenerator) Attempt(ctx context.Context, req Request) (Artifact, error) {
	artifact, err := g.client.GenerateMedia(ctx, "image/png", genai.MediaRequest{
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
		RequestID:   req.RequestID,
	})
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{URL: artifact.URL, Format: artifact.Format}, nil
}

var _ chain.Strategy[Request, Artifact] = (*GeminiGenerator)(nil)
