// Package engine combines the compute federation, the memory federation and
// the tool bridge into a single request pipeline.
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/compute"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/core"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/memory"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/telemetry"
)

// Processor answers compute requests. *compute.Federation implements it.
type Processor interface {
	ProcessRequest(ctx context.Context, req *compute.Request) (*compute.Result, error)
}

// Memory provides request context and stores results. *memory.Federation
// implements it.
type Memory interface {
	EnhanceWithContext(ctx context.Context, content string) *memory.Enhancement
	Store(ctx context.Context, key string, value any, metadata map[string]any) error
}

// ToolCatalogue lists tools relevant to request content. *tools.Bridge
// implements it.
type ToolCatalogue interface {
	RelevantTools(content string) []core.ToolDefinition
	Available() []string
}

// Engine runs requests through memory enhancement, tool routing and compute.
type Engine struct {
	compute Processor
	memory  Memory
	tools   ToolCatalogue
	logger  zerolog.Logger

	recordResults bool
}

// Option configures the engine.
type Option func(*Engine)

// WithMemory enables context enhancement from m.
func WithMemory(m Memory) Option {
	return func(e *Engine) {
		e.memory = m
	}
}

// WithTools enables tool routing through t.
func WithTools(t ToolCatalogue) Option {
	return func(e *Engine) {
		e.tools = t
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithRecordResults stores every successful exchange in memory under
// "result:<request id>".
func WithRecordResults(enabled bool) Option {
	return func(e *Engine) {
		e.recordResults = enabled
	}
}

// New creates an engine over p.
func New(p Processor, opts ...Option) *Engine {
	e := &Engine{
		compute: p,
		logger:  telemetry.DefaultComponent("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process answers req.
//
// Memory results relevant to the content are appended to the request context,
// and the names of relevant tools are attached to the result metadata under
// "tools". Memory and tool failures never fail the request.
func (e *Engine) Process(ctx context.Context, req *compute.Request) (*compute.Result, error) {
	if req == nil || strings.TrimSpace(req.Content) == "" {
		return nil, ErrEmptyContent
	}

	r := *req
	if r.ID == "" {
		r.ID = compute.NewRequestID()
	}

	// === MEMORY ===
	var enh *memory.Enhancement
	if e.memory != nil {
		enh = e.memory.EnhanceWithContext(ctx, r.Content)
		if enh.Enhanced() {
			r.Context = joinContext(r.Context, enh.Format())
			e.logger.Debug().
				Str("request_id", r.ID).
				Int("results", len(enh.Results)).
				Strs("sources", enh.Sources).
				Msg("Request enhanced with memory")
		}
	}

	// === TOOLS ===
	toolNames := e.selectTools(&r)
	if len(toolNames) > 0 {
		r.Tools = toolNames
	}

	// === COMPUTE ===
	res, err := e.compute.ProcessRequest(ctx, &r)
	if err != nil {
		return nil, err
	}

	if res.Metadata == nil {
		res.Metadata = make(map[string]any)
	}
	res.Metadata["memoryEnhanced"] = enh.Enhanced()
	if enh.Enhanced() {
		res.Metadata["contextSources"] = enh.Sources
	}
	if len(toolNames) > 0 {
		res.Metadata["tools"] = toolNames
	}

	if e.recordResults && e.memory != nil {
		e.record(ctx, &r, res)
	}
	return res, nil
}

// selectTools returns the caller's tool names that the catalogue knows,
// followed by the tools routed from the content.
func (e *Engine) selectTools(r *compute.Request) []string {
	if e.tools == nil {
		return nil
	}

	known := make(map[string]bool)
	for _, name := range e.tools.Available() {
		known[name] = true
	}

	var out []string
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	for _, name := range r.Tools {
		if known[name] {
			add(name)
			continue
		}
		e.logger.Warn().Str("request_id", r.ID).Str("tool", name).Msg("Requested tool is not registered")
	}
	for _, def := range e.tools.RelevantTools(r.Content) {
		add(def.QualifiedName())
	}
	return out
}

func (e *Engine) record(ctx context.Context, r *compute.Request, res *compute.Result) {
	key := "result:" + res.ID
	value := map[string]any{
		"request": r.Content,
		"result":  res.Result,
	}
	metadata := map[string]any{
		"type":     r.Type,
		"provider": res.Provider,
	}
	if err := e.memory.Store(ctx, key, value, metadata); err != nil {
		e.logger.Warn().Err(err).Str("request_id", r.ID).Msg("Failed to record result in memory")
	}
}

func joinContext(existing, addition string) string {
	if existing == "" {
		return addition
	}
	return fmt.Sprintf("%s\n\n%s", existing, addition)
}
