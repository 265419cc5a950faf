package engine_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/compute"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/engine"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/federation"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/memory"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/tools"
)

// capture records the last request the compute federation saw.
type capture struct {
	mu  sync.Mutex
	req *compute.Request
}

func (c *capture) last() *compute.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.req
}

func newCompute(t *testing.T, c *capture, err error) *compute.Federation {
	t.Helper()
	f := compute.New(
		compute.WithLogger(zerolog.Nop()),
		compute.WithRetrier(federation.NewRetrier(
			federation.WithUnit(time.Millisecond),
			federation.WithRetryLogger(zerolog.Nop()),
		)),
	)
	require.NoError(t, f.Register(federation.DescriptorConfig{ID: "openai", Priority: 95}, compute.AdapterFunc{
		CompleteFunc: func(ctx context.Context, req *compute.Request) (string, error) {
			c.mu.Lock()
			cp := *req
			c.req = &cp
			c.mu.Unlock()
			if err != nil {
				return "", err
			}
			return "answer", nil
		},
	}))
	return f
}

type fakeMemory struct {
	results []memory.SearchResult
	stored  map[string]any
	meta    map[string]map[string]any
	failing bool
}

func (m *fakeMemory) EnhanceWithContext(ctx context.Context, content string) *memory.Enhancement {
	sources := make([]string, len(m.results))
	for i, r := range m.results {
		sources[i] = r.Source
	}
	return &memory.Enhancement{Results: m.results, Sources: sources}
}

func (m *fakeMemory) Store(ctx context.Context, key string, value any, metadata map[string]any) error {
	if m.failing {
		return errors.New("primary down")
	}
	if m.stored == nil {
		m.stored = make(map[string]any)
		m.meta = make(map[string]map[string]any)
	}
	m.stored[key] = value
	m.meta[key] = metadata
	return nil
}

func newBridge(t *testing.T) *tools.Bridge {
	t.Helper()
	b := tools.NewBridge(tools.WithLogger(zerolog.Nop()))
	for _, server := range tools.BuiltinServers {
		defs, err := tools.Definitions(server)
		require.NoError(t, err)
		require.NoError(t, b.RegisterServer(server, tools.Tools(tools.AcknowledgeExecutor{}, defs...)...))
	}
	return b
}

func TestProcess_ComputeOnly(t *testing.T) {
	c := &capture{}
	e := engine.New(newCompute(t, c, nil), engine.WithLogger(zerolog.Nop()))

	res, err := e.Process(context.Background(), &compute.Request{Type: compute.TypeText, Content: "hello"})
	require.NoError(t, err)

	assert.Equal(t, "openai", res.Provider)
	assert.Equal(t, "answer", res.Result)
	assert.Equal(t, false, res.Metadata["memoryEnhanced"])
	assert.NotContains(t, res.Metadata, "tools")
	assert.Equal(t, res.ID, c.last().ID)
}

func TestProcess_EmptyContent(t *testing.T) {
	e := engine.New(newCompute(t, &capture{}, nil), engine.WithLogger(zerolog.Nop()))

	_, err := e.Process(context.Background(), &compute.Request{Content: "   "})
	assert.ErrorIs(t, err, engine.ErrEmptyContent)

	_, err = e.Process(context.Background(), nil)
	assert.ErrorIs(t, err, engine.ErrEmptyContent)
}

func TestProcess_MemoryEnhancement(t *testing.T) {
	c := &capture{}
	mem := &fakeMemory{results: []memory.SearchResult{
		{Key: "k1", Content: "the custody hearing is on monday", Score: 0.9, Source: "chromem"},
	}}
	e := engine.New(newCompute(t, c, nil), engine.WithMemory(mem), engine.WithLogger(zerolog.Nop()))

	res, err := e.Process(context.Background(), &compute.Request{
		Content: "when is the hearing",
		Context: "be brief",
	})
	require.NoError(t, err)

	got := c.last().Context
	assert.True(t, strings.HasPrefix(got, "be brief\n\n=== RELEVANT MEMORY ==="))
	assert.Contains(t, got, "[chromem] the custody hearing is on monday")
	assert.Equal(t, true, res.Metadata["memoryEnhanced"])
	assert.Equal(t, []string{"chromem"}, res.Metadata["contextSources"])
	assert.Empty(t, mem.stored)
}

func TestProcess_NoMemoryHits(t *testing.T) {
	c := &capture{}
	e := engine.New(newCompute(t, c, nil), engine.WithMemory(&fakeMemory{}), engine.WithLogger(zerolog.Nop()))

	res, err := e.Process(context.Background(), &compute.Request{Content: "hi", Context: "ctx"})
	require.NoError(t, err)
	assert.Equal(t, "ctx", c.last().Context)
	assert.Equal(t, false, res.Metadata["memoryEnhanced"])
}

func TestProcess_ToolRouting(t *testing.T) {
	c := &capture{}
	e := engine.New(newCompute(t, c, nil), engine.WithTools(newBridge(t)), engine.WithLogger(zerolog.Nop()))

	res, err := e.Process(context.Background(), &compute.Request{
		Content: "open an issue on the github repository",
		Tools:   []string{"evidence:process-pdf", "slack:post"},
	})
	require.NoError(t, err)

	want := []string{
		"evidence:process-pdf",
		"github:github-create-repo",
		"github:github-create-issue",
	}
	assert.Equal(t, want, res.Metadata["tools"])
	assert.Equal(t, want, c.last().Tools)
}

func TestProcess_RecordResults(t *testing.T) {
	mem := &fakeMemory{}
	e := engine.New(newCompute(t, &capture{}, nil),
		engine.WithMemory(mem),
		engine.WithRecordResults(true),
		engine.WithLogger(zerolog.Nop()),
	)

	res, err := e.Process(context.Background(), &compute.Request{ID: "req-9", Type: compute.TypeLegal, Content: "draft a motion"})
	require.NoError(t, err)
	assert.Equal(t, "req-9", res.ID)

	require.Contains(t, mem.stored, "result:req-9")
	assert.Equal(t, map[string]any{"request": "draft a motion", "result": "answer"}, mem.stored["result:req-9"])
	assert.Equal(t, "openai", mem.meta["result:req-9"]["provider"])
	assert.Equal(t, compute.TypeLegal, mem.meta["result:req-9"]["type"])
}

func TestProcess_RecordFailureIgnored(t *testing.T) {
	e := engine.New(newCompute(t, &capture{}, nil),
		engine.WithMemory(&fakeMemory{failing: true}),
		engine.WithRecordResults(true),
		engine.WithLogger(zerolog.Nop()),
	)

	_, err := e.Process(context.Background(), &compute.Request{Content: "hello"})
	assert.NoError(t, err)
}

func TestProcess_ComputeFailure(t *testing.T) {
	mem := &fakeMemory{}
	e := engine.New(newCompute(t, &capture{}, errors.New("down")),
		engine.WithMemory(mem),
		engine.WithRecordResults(true),
		engine.WithLogger(zerolog.Nop()),
	)

	_, err := e.Process(context.Background(), &compute.Request{Content: "hello"})
	var failed *federation.AllProvidersFailedError
	require.ErrorAs(t, err, &failed)
	assert.Empty(t, mem.stored)
}
