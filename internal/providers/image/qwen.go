package image

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"mediaforge/internal/providers/chain"
)

// QwenGenerator calls DashScope's Qwen image synthesis endpoint. It sits
// behind the Gemini generator in the image chain.
type QwenGenerator struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

type QwenOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

const qwenDefaultTimeout = 60 * time.Second

func NewQwenGenerator(opts QwenOptions) (*QwenGenerator, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("qwen: api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://dashscope.aliyuncs.com/api/v1"
	}
	model := opts.Model
	if model == "" {
		model = "wanx2.1-t2i-turbo"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: qwenDefaultTimeout}
	}
	return &QwenGenerator{
		apiKey:  strings.TrimSpace(opts.APIKey),
		baseURL: baseURL,
		model:   model,
		client:  client,
	}, nil
}

func (g *QwenGenerator) Name() string { return "qwen" }

type qwenRequest struct {
	Model string `json:"model"`
	Input struct {
		Prompt string `json:"prompt"`
	} `json:"input"`
	Parameters struct {
		Size string `json:"size,omitempty"`
		N    int    `json:"n"`
	} `json:"parameters"`
}

type qwenResponse struct {
	Output struct {
		Results []struct {
			URL string `json:"url"`
		} `json:"results"`
	} `json:"output"`
	Message string `json:"message"`
}

func (g *QwenGenerator) Attempt(ctx context.Context, req Request) (Artifact, error) {
	payload := qwenRequest{Model: g.model}
	payload.Input.Prompt = req.Prompt
	payload.Parameters.Size = aspectRatioSize(req.AspectRatio)
	payload.Parameters.N = 1

	body, err := json.Marshal(payload)
	if err != nil {
		return Artifact{}, fmt.Errorf("qwen: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/services/aigc/text2image/image-synthesis", bytes.NewReader(body))
	if err != nil {
		return Artifact{}, fmt.Errorf("qwen: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return Artifact{}, fmt.Errorf("qwen: invoke: %w", err)
	}
	defer resp.Body.Close()

	var out qwenResponse
	if resp.StatusCode >= http.StatusBadRequest {
		_ = json.NewDecoder(resp.Body).Decode(&out)
		return Artifact{}, &chain.StatusError{Code: resp.StatusCode, Message: out.Message}
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Artifact{}, fmt.Errorf("qwen: decode response: %w", err)
	}
	if len(out.Output.Results) == 0 || out.Output.Results[0].URL == "" {
		return Artifact{}, fmt.Errorf("qwen: response for request %s contained no image", req.RequestID)
	}
	return Artifact{URL: out.Output.Results[0].URL, Format: "image/png"}, nil
}

// aspectRatioSize maps the request aspect ratio onto DashScope's supported
// pixel sizes.
func aspectRatioSize(ratio string) string {
	switch ratio {
	case "16:9":
		return "1280*720"
	case "9:16":
		return "720*1280"
	case "4:3":
		return "1152*864"
	default:
		return "1024*1024"
	}
}

var _ chain.Strategy[Request, Artifact] = (*QwenGenerator)(nil)
