package image

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"mediaforge/internal/providers/chain"
)

// SyntheticGenerator produces deterministic placeholder artifacts without any
// network call. Wired into the chain in development environments where no
// provider credentials are configured, so the rest of the pipeline stays
// exercised end-to-end.
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
		URL:    fmt.Sprintf("%s/image/%s.png", s.baseURL, key),
		Format: "image/png",
	}, nil
}

var _ chain.Strategy[Request, Artifact] = (*SyntheticGenerator)(nil)
