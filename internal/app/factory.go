package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/compute"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/compute/provider/anthropic"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/compute/provider/anythingllm"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/compute/provider/gemini"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/compute/provider/openai"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/config"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/core"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/memory"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/memory/embedder/hashing"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/memory/store/chromem"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/memory/store/ristretto"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/memory/store/sqlite"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/tools"
)

// NewAdapter builds the compute adapter for p. The first listed model is the
// adapter's default.
func NewAdapter(p config.ProviderConfig) (compute.Adapter, error) {
	var model string
	if len(p.Models) > 0 {
		model = p.Models[0]
	}

	switch p.Kind {
	case config.KindAnthropic:
		return anthropic.New(anthropic.Config{
			APIKey:  p.ResolveAPIKey(),
			BaseURL: p.ResolveBaseURL(),
			Model:   model,
		}), nil
	case config.KindOpenAI:
		return openai.New(openai.Config{
			Name:    p.ID,
			APIKey:  p.ResolveAPIKey(),
			BaseURL: p.ResolveBaseURL(),
			Model:   model,
		}), nil
	case config.KindGemini:
		// With an API key the SDK client does no I/O while being built.
		a, err := gemini.New(context.Background(), gemini.Config{
			APIKey:  p.ResolveAPIKey(),
			BaseURL: p.ResolveBaseURL(),
			Model:   model,
		})
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", p.ID, err)
		}
		return a, nil
	case config.KindAnythingLLM:
		return anythingllm.New(anythingllm.Config{
			Endpoint:  p.ResolveBaseURL(),
			APIKey:    p.ResolveAPIKey(),
			Workspace: p.Workspace,
		}), nil
	default:
		return nil, fmt.Errorf("provider %s: unknown kind %q", p.ID, p.Kind)
	}
}

// NewBackend opens the memory backend for b.
func NewBackend(b config.BackendConfig, logger zerolog.Logger) (memory.Backend, error) {
	switch b.Kind {
	case config.KindChromem:
		store, err := chromem.New(chromem.Config{
			PersistDir: b.Path,
			Collection: b.Collection,
			Logger:     &logger,
		}, hashing.New(b.Dimensions))
		if err != nil {
			return nil, fmt.Errorf("memory backend %s: %w", b.ID, err)
		}
		return store, nil
	case config.KindSQLite:
		path := b.Path
		if path == "" {
			path = sqlite.InMemory
		}
		store, err := sqlite.Open(path, &logger)
		if err != nil {
			return nil, fmt.Errorf("memory backend %s: %w", b.ID, err)
		}
		return store, nil
	case config.KindRistretto:
		store, err := ristretto.New(ristretto.Config{
			MaxItems: b.MaxItems,
			TTL:      b.TTL,
			Logger:   &logger,
		})
		if err != nil {
			return nil, fmt.Errorf("memory backend %s: %w", b.ID, err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("memory backend %s: unknown kind %q", b.ID, b.Kind)
	}
}

// NewToolExecutor returns the gateway executor when a gateway is configured,
// otherwise one that acknowledges calls locally.
func NewToolExecutor(cfg config.MCPConfig) core.ToolExecutor {
	if cfg.GatewayURL == "" {
		return tools.AcknowledgeExecutor{}
	}
	return tools.NewHTTPExecutor(cfg.GatewayURL, cfg.ResolveToken(), nil)
}
