// Package genai is a lightweight facade over the Gemini generateContent API.
// Providers translate domain requests into calls on this client; errors are
// returned to the caller untouched so the fallback chain can classify them.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mediaforge/internal/providers/chain"
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     zerolog.Logger
}

const defaultTimeout = 60 * time.Second

// NewClient validates options and builds a client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("genai: api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     logger,
	}, nil
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts,omitempty"`
}

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"fileData,omitempty"`
}

type fileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri,omitempty"`
}

type generationConfig struct {
	CandidateCount   int    `json:"candidateCount,omitempty"`
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type generateContentRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// MediaRequest asks the model to produce one media artifact.
type MediaRequest struct {
	Prompt          string
	AspectRatio     string
	DurationSeconds float64
	RequestID       string
}

// Artifact is the normalized reference to a produced media asset.
type Artifact struct {
	URL    string
	Format string
}

// GenerateMedia produces one image or video artifact reference.
func (c *Client) GenerateMedia(ctx context.Context, mime string, req MediaRequest) (*Artifact, error) {
	prompt := req.Prompt
	if req.AspectRatio != "" {
		prompt = fmt.Sprintf("%s\nAspect ratio: %s", prompt, req.AspectRatio)
	}
	if req.DurationSeconds > 0 {
		prompt = fmt.Sprintf("%s\nDuration: %.0f seconds", prompt, req.DurationSeconds)
	}
	payload := generateContentRequest{
		Contents:         []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{CandidateCount: 1},
	}
	var out generateContentResponse
	if err := c.invoke(ctx, fmt.Sprintf("/models/%s:generateContent", c.model), payload, &out); err != nil {
		return nil, err
	}
	for _, cand := range out.Candidates {
		for _, p := range cand.Content.Parts {
			if p.FileData != nil && p.FileData.FileURI != "" {
				format := p.FileData.MimeType
				if format == "" {
					format = mime
				}
				return &Artifact{URL: p.FileData.FileURI, Format: format}, nil
			}
		}
	}
	return nil, fmt.Errorf("genai: response for request %s contained no media", req.RequestID)
}

// GenerateJSON asks the model for a JSON document and decodes it into out.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, out any) error {
	payload := generateContentRequest{
		Contents:         []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{CandidateCount: 1, ResponseMimeType: "application/json"},
	}
	var resp generateContentResponse
	if err := c.invoke(ctx, fmt.Sprintf("/models/%s:generateContent", c.model), payload, &resp); err != nil {
		return err
	}
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			text := strings.TrimSpace(p.Text)
			if text == "" {
				continue
			}
			if err := json.Unmarshal([]byte(text), out); err != nil {
				return fmt.Errorf("genai: decode model payload: %w", err)
			}
			return nil
		}
	}
	return errors.New("genai: response contained no text part")
}

func (c *Client) invoke(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("genai: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("genai: create request: %w", err)
	}
	q := req.URL.Query()
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("genai: invoke: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr errorResponse
		message := ""
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil {
			message = apiErr.Error.Message
		}
		return &chain.StatusError{Code: resp.StatusCode, Message: message}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("genai: decode response: %w", err)
	}
	return nil
}
