// Package gemini adapts the Google Gen AI SDK (Gemini Developer API) to
// compute.Adapter.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/compute"
)

const (
	// DefaultBaseURL is the API root; the version is appended by the SDK.
	DefaultBaseURL    = "https://generativelanguage.googleapis.com/"
	DefaultAPIVersion = "v1beta"
	DefaultModel      = "gemini-1.5-pro"
)

// ErrEmptyResponse is returned when no candidate carries text.
var ErrEmptyResponse = errors.New("gemini: response has no candidates")

// Config holds the connection settings.
type Config struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	Model      string
	HTTPClient *http.Client
}

// Adapter calls generateContent through the SDK.
type Adapter struct {
	client *genai.Client
	model  string
}

// New creates an Adapter. The SDK rejects an empty API key.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	version := cfg.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    baseURL,
			APIVersion: version,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	return &Adapter{client: client, model: model}, nil
}

// Complete sends the request content as a single user turn. Context, when
// present, becomes the system instruction.
func (a *Adapter) Complete(ctx context.Context, req *compute.Request) (string, error) {
	model := req.Model
	if model == "" {
		model = a.model
	}

	var cfg *genai.GenerateContentConfig
	if req.Context != "" || req.MaxTokens > 0 {
		cfg = &genai.GenerateContentConfig{MaxOutputTokens: int32(req.MaxTokens)}
		if req.Context != "" {
			cfg.SystemInstruction = genai.NewContentFromText(req.Context, genai.RoleUser)
		}
	}

	resp, err := a.client.Models.GenerateContent(ctx, model, genai.Text(req.Content), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Probe fetches the configured model's metadata.
func (a *Adapter) Probe(ctx context.Context) error {
	if _, err := a.client.Models.Get(ctx, a.model, nil); err != nil {
		return fmt.Errorf("gemini probe: %w", err)
	}
	return nil
}
