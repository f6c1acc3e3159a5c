package video

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"

	"mediaforge/internal/providers/chain"
)

// SyntheticGenerator returns deterministic placeholder clips without a
// network call; the development-mode tail of the video chain.
type SyntheticGenerator struct {
	baseURL string
}

func NewSyntheticGenerator(baseURL string) *SyntheticGenerator {
	if baseURL == "" {
		baseURL = "https://cdn.invalid/synthetic"
	}
	return &SyntheticGenerator{baseURL: baseURL}
}

func (s *SyntheticGenerator) Name() string { return "synthetic" }

func (s *SyntheticGenerator) Attempt(ctx context.Context, req Request) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}
	sum := sha256.Sum256([]byte(req.RequestID + "|" + req.Prompt))
	key := hex.EncodeToString(sum[:8])
	return Artifact{
		URL:           fmt.Sprintf("%s/video/%s.mp4", s.baseURL, key),
		Format:        "video/mp4",
		LengthSeconds: int(math.Round(req.DurationSeconds)),
	}, nil
}

var _ chain.Strategy[Request, Artifact] = (*SyntheticGenerator)(nil)
