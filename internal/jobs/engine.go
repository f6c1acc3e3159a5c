package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"mediaforge/internal/domain"
	"mediaforge/internal/providers/chain"
	"mediaforge/internal/providers/image"
	"mediaforge/internal/providers/video"
)

// ChainEngine executes jobs through the provider fallback chains.
type ChainEngine struct {
	images *chain.Chain[image.Request, image.Artifact]
	videos *chain.Chain[video.Request, video.Artifact]
	logger zerolog.Logger
}

func NewChainEngine(images *chain.Chain[image.Request, image.Artifact], videos *chain.Chain[video.Request, video.Artifact], logger zerolog.Logger) *ChainEngine {
	return &ChainEngine{images: images, videos: videos, logger: logger.With().Str("component", "engine").Logger()}
}

type mediaInput struct {
	Prompt          string  `json:"prompt"`
	AspectRatio     string  `json:"aspect_ratio"`
	DurationSeconds float64 `json:"duration"`
}

func (e *ChainEngine) Execute(ctx context.Context, job domain.Job, report ProgressFunc) (string, error) {
	switch job.Kind {
	case domain.JobKindImage:
		return e.executeImage(ctx, job, report)
	case domain.JobKindVideo:
		return e.executeVideo(ctx, job, report)
	case domain.JobKindLongVideo:
		return e.executeLongVideo(ctx, job, report)
	}
	return "", fmt.Errorf("engine: unsupported kind %q", job.Kind)
}

func (e *ChainEngine) executeImage(ctx context.Context, job domain.Job, report ProgressFunc) (string, error) {
	var in mediaInput
	if err := json.Unmarshal(job.InputJSON, &in); err != nil {
		return "", fmt.Errorf("engine: decode input: %w", err)
	}
	report(10, "generate", "contacting image providers")
	artifact, err := e.images.Do(ctx, image.Request{
		Prompt:      in.Prompt,
		AspectRatio: in.AspectRatio,
		RequestID:   job.ID,
	})
	if err != nil {
		return "", err
	}
	report(100, "complete", "image ready")
	return artifact.URL, nil
}

func (e *ChainEngine) executeVideo(ctx context.Context, job domain.Job, report ProgressFunc) (string, error) {
	var in mediaInput
	if err := json.Unmarshal(job.InputJSON, &in); err != nil {
		return "", fmt.Errorf("engine: decode input: %w", err)
	}
	report(10, "generate", "contacting video providers")
	artifact, err := e.videos.Do(ctx, video.Request{
		Prompt:          in.Prompt,
		DurationSeconds: in.DurationSeconds,
		RequestID:       job.ID,
	})
	if err != nil {
		return "", err
	}
	report(100, "complete", "video ready")
	return artifact.URL, nil
}

// longVideoResult is the result payload for a long-video job: the ordered
// segment URLs produced from its shot plan.
type longVideoResult struct {
	Segments []string `json:"segments"`
}

func (e *ChainEngine) executeLongVideo(ctx context.Context, job domain.Job, report ProgressFunc) (string, error) {
	var plan struct {
		TotalSeconds int `json:"total_seconds"`
		Shots        []struct {
			ID        int    `json:"id"`
			Prompt    string `json:"prompt"`
			DurationS int    `json:"duration_s"`
			Camera    string `json:"camera"`
		} `json:"shots"`
	}
	if err := json.Unmarshal(job.Meta.ShotPlan, &plan); err != nil {
		return "", fmt.Errorf("engine: decode shot plan: %w", err)
	}
	if len(plan.Shots) == 0 {
		return "", fmt.Errorf("engine: shot plan has no shots")
	}

	result := longVideoResult{Segments: make([]string, 0, len(plan.Shots))}
	for i, shot := range plan.Shots {
		report(i*100/len(plan.Shots), fmt.Sprintf("shot %d/%d", i+1, len(plan.Shots)), shot.Prompt)
		artifact, err := e.videos.Do(ctx, video.Request{
			Prompt:          shot.Prompt,
			DurationSeconds: float64(shot.DurationS),
			Camera:          shot.Camera,
			RequestID:       fmt.Sprintf("%s-%d", job.ID, shot.ID),
		})
		if err != nil {
			return "", fmt.Errorf("shot %d: %w", shot.ID, err)
		}
		result.Segments = append(result.Segments, artifact.URL)
	}
	report(100, "complete", "all shots generated")

	ref, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("engine: encode result: %w", err)
	}
	return string(ref), nil
}

var _ Engine = (*ChainEngine)(nil)
