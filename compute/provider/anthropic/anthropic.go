// Package anthropic adapts the Anthropic Messages API to compute.Adapter.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/compute"
)

const (
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultMaxTokens = 4096

	defaultSystemPrompt = "You are a precise assistant. Answer the request directly."
)

// Config holds the connection settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Adapter calls Claude through the official SDK.
type Adapter struct {
	client anthropic.Client
	model  string
}

// New creates an Adapter. SDK-level retries are disabled because the
// federation owns the retry budget.
func New(cfg Config) *Adapter {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Adapter{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

// Complete sends req as a single user message.
func (a *Adapter) Complete(ctx context.Context, req *compute.Request) (string, error) {
	model := req.Model
	if model == "" {
		model = a.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	systemPrompt := defaultSystemPrompt
	if req.Context != "" {
		systemPrompt += "\n\n" + req.Context
	}

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Content)),
		},
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

// Probe issues a one-token completion.
func (a *Adapter) Probe(ctx context.Context) error {
	_, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("health check")),
		},
	})
	if err != nil {
		return fmt.Errorf("anthropic probe: %w", err)
	}
	return nil
}
