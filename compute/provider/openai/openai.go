// Package openai adapts OpenAI-compatible chat completion endpoints (OpenAI,
// DeepSeek, Groq, Together) to compute.Adapter through the official SDK.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/compute"
)

// Well-known endpoints.
const (
	OpenAIBaseURL   = "https://api.openai.com/v1"
	DeepSeekBaseURL = "https://api.deepseek.com/v1"
	GroqBaseURL     = "https://api.groq.com/openai/v1"
	TogetherBaseURL = "https://api.together.xyz/v1"
)

const (
	DefaultModel       = "gpt-4o"
	DefaultMaxTokens   = 2000
	DefaultTemperature = 0.7
)

// ErrEmptyResponse is returned when the endpoint answers without choices.
var ErrEmptyResponse = errors.New("response has no choices")

// Config holds the connection settings for one endpoint.
type Config struct {
	// Name labels errors, e.g. "deepseek".
	Name    string
	APIKey  string
	BaseURL string
	Model   string

	HTTPClient *http.Client
}

// Adapter talks to a /chat/completions endpoint.
type Adapter struct {
	client openai.Client
	name   string
	model  string
}

// New creates an Adapter. SDK-level retries are disabled because the
// federation owns the retry budget. The key and endpoint are always set
// explicitly so OPENAI_* environment defaults never leak into DeepSeek, Groq
// or Together clients.
func New(cfg Config) *Adapter {
	name := cfg.Name
	if name == "" {
		name = "openai"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = OpenAIBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Adapter{
		client: openai.NewClient(opts...),
		name:   name,
		model:  model,
	}
}

// Complete sends req as a user message, prefixed by a system message when
// req carries context.
func (a *Adapter) Complete(ctx context.Context, req *compute.Request) (string, error) {
	model := req.Model
	if model == "" {
		model = a.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.Context != "" {
		msgs = append(msgs, openai.SystemMessage(req.Context))
	}
	msgs = append(msgs, openai.UserMessage(req.Content))

	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    msgs,
		Temperature: openai.Float(DefaultTemperature),
		MaxTokens:   openai.Int(maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", a.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: %w", a.name, ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

// Probe lists models.
func (a *Adapter) Probe(ctx context.Context) error {
	if _, err := a.client.Models.List(ctx); err != nil {
		return fmt.Errorf("%s probe: %w", a.name, err)
	}
	return nil
}
