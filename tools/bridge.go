// Package tools connects the engine to MCP servers. A Bridge keeps a flat
// catalogue of tools keyed "server:tool" and routes request content to the
// servers whose keywords it mentions.
package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/core"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/telemetry"
)

// ToolNotFoundError is returned by Execute for an unknown key.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool %q not found", e.Name)
}

// DuplicateServerError is returned when a server is registered twice.
type DuplicateServerError struct {
	Server string
}

func (e *DuplicateServerError) Error() string {
	return fmt.Sprintf("server %q already registered", e.Server)
}

// Route maps content keywords to a server.
type Route struct {
	Server   string
	Keywords []string
}

// DefaultRoutes returns the keyword routes for the built-in servers.
func DefaultRoutes() []Route {
	return []Route{
		{Server: ServerNotion, Keywords: []string{"notion", "page", "database"}},
		{Server: ServerGitHub, Keywords: []string{"github", "repository", "code"}},
		{Server: ServerEvidence, Keywords: []string{"pdf", "audio", "evidence"}},
	}
}

// Bridge is the tool catalogue.
type Bridge struct {
	mu      sync.RWMutex
	tools   map[string]core.Tool
	order   []string
	servers map[string][]string
	names   []string

	routes  []Route
	logger  zerolog.Logger
	metrics *telemetry.Metrics
}

// Option configures the Bridge.
type Option func(*Bridge)

// WithRoutes replaces the keyword routes.
func WithRoutes(routes []Route) Option {
	return func(b *Bridge) {
		b.routes = routes
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Bridge) {
		b.logger = l
	}
}

// WithMetrics sets the Prometheus recorder.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(b *Bridge) {
		b.metrics = m
	}
}

// NewBridge creates an empty bridge.
func NewBridge(opts ...Option) *Bridge {
	b := &Bridge{
		tools:   make(map[string]core.Tool),
		servers: make(map[string][]string),
		routes:  DefaultRoutes(),
		logger:  telemetry.DefaultComponent("tools"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RegisterServer adds a server and its tools. Each tool is keyed
// "server:tool" regardless of the server named in its definition.
func (b *Bridge) RegisterServer(server string, tools ...core.Tool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.servers[server]; ok {
		return &DuplicateServerError{Server: server}
	}

	keys := make([]string, 0, len(tools))
	for _, t := range tools {
		key := server + ":" + t.Definition().ToolName
		if _, ok := b.tools[key]; ok {
			continue
		}
		b.tools[key] = t
		b.order = append(b.order, key)
		keys = append(keys, key)
	}
	b.servers[server] = keys
	b.names = append(b.names, server)

	b.logger.Info().
		Str("server", server).
		Int("tools", len(keys)).
		Msg("MCP server registered")
	return nil
}

// Execute runs the tool registered under name ("server:tool").
func (b *Bridge) Execute(ctx context.Context, name string, params *core.ToolParams) (*core.ToolResult, error) {
	b.mu.RLock()
	tool, ok := b.tools[name]
	b.mu.RUnlock()
	if !ok {
		b.metrics.RecordToolExecution(name, "not_found")
		return nil, &ToolNotFoundError{Name: name}
	}

	if params == nil {
		params = &core.ToolParams{}
	}

	start := time.Now()
	b.logger.Info().Str("tool", name).Str("request_id", params.RequestID).Msg("Executing tool")

	res, err := tool.Execute(ctx, params)
	if err != nil {
		b.metrics.RecordToolExecution(name, "error")
		b.logger.Error().Err(err).Str("tool", name).Msg("Tool failed")
		return nil, fmt.Errorf("execute %s: %w", name, err)
	}

	status := "success"
	if res != nil && !res.Success {
		status = "failure"
	}
	b.metrics.RecordToolExecution(name, status)
	b.logger.Debug().
		Str("tool", name).
		Str("status", status).
		Dur("duration", time.Since(start)).
		Msg("Tool completed")
	return res, nil
}

// RelevantTools returns the definitions of every server whose keywords occur
// in content, case-insensitively. Servers are reported in route order and
// each at most once.
func (b *Bridge) RelevantTools(content string) []core.ToolDefinition {
	text := strings.ToLower(content)

	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []core.ToolDefinition
	seen := make(map[string]bool)
	for _, r := range b.routes {
		if seen[r.Server] || !mentions(text, r.Keywords) {
			continue
		}
		seen[r.Server] = true
		for _, key := range b.servers[r.Server] {
			def := b.tools[key].Definition()
			def.Server = r.Server
			out = append(out, def)
		}
	}
	return out
}

func mentions(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Available returns every tool key in registration order.
func (b *Bridge) Available() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// Definitions returns every tool definition in registration order.
func (b *Bridge) Definitions() []core.ToolDefinition {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]core.ToolDefinition, 0, len(b.order))
	for _, key := range b.order {
		def := b.tools[key].Definition()
		def.Server, _, _ = strings.Cut(key, ":")
		out = append(out, def)
	}
	return out
}

// Servers returns the registered server names in registration order.
func (b *Bridge) Servers() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.names))
	copy(out, b.names)
	return out
}

// Count returns the number of registered tools.
func (b *Bridge) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.tools)
}
