package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/compute"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/engine"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/federation"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/memory"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/memory/store/ristretto"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/server"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/telemetry"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/tools"
)

// processorFunc adapts a function to server.Processor.
type processorFunc func(ctx context.Context, req *compute.Request) (*compute.Result, error)

func (f processorFunc) Process(ctx context.Context, req *compute.Request) (*compute.Result, error) {
	return f(ctx, req)
}

func echoProcessor() server.Processor {
	return processorFunc(func(ctx context.Context, req *compute.Request) (*compute.Result, error) {
		return &compute.Result{ID: "req_1", Provider: "openai", Result: "echo: " + req.Content, Quality: 0.95}, nil
	})
}

func newMemory(t *testing.T) *memory.Federation {
	t.Helper()
	nop := zerolog.Nop()
	store, err := ristretto.New(ristretto.Config{Logger: &nop})
	require.NoError(t, err)

	m := memory.New("cache", memory.WithLogger(nop))
	require.NoError(t, m.Register(federation.DescriptorConfig{ID: "cache", Priority: 100}, store))
	t.Cleanup(func() { _ = m.Shutdown() })
	return m
}

func newTools(t *testing.T) *tools.Bridge {
	t.Helper()
	b := tools.NewBridge(tools.WithLogger(zerolog.Nop()))
	for _, s := range tools.BuiltinServers {
		defs, err := tools.Definitions(s)
		require.NoError(t, err)
		require.NoError(t, b.RegisterServer(s, tools.Tools(tools.AcknowledgeExecutor{}, defs...)...))
	}
	return b
}

func newTestServer(t *testing.T, p server.Processor, opts ...server.Option) *httptest.Server {
	t.Helper()
	opts = append([]server.Option{server.WithLogger(zerolog.Nop())}, opts...)
	srv := httptest.NewServer(server.New(server.Config{}, p, opts...).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, echoProcessor())

	status, body := do(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestProcess(t *testing.T) {
	srv := newTestServer(t, echoProcessor())

	status, body := do(t, http.MethodPost, srv.URL+"/ai/process", map[string]any{"type": "text", "content": "hi"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "echo: hi", body["result"])
	assert.Equal(t, "openai", body["provider"])
}

func TestProcess_ErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"empty content", engine.ErrEmptyContent, http.StatusBadRequest},
		{"no healthy backend", federation.ErrNoHealthyBackend, http.StatusServiceUnavailable},
		{"all failed", federation.NewAllProvidersFailedError([]string{"a"}, errors.New("boom")), http.StatusBadGateway},
		{"other", errors.New("unexpected"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, processorFunc(func(context.Context, *compute.Request) (*compute.Result, error) {
				return nil, tt.err
			}))

			status, body := do(t, http.MethodPost, srv.URL+"/ai/process", map[string]any{"content": "x"})
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.err.Error(), body["error"])
		})
	}
}

func TestProcess_BadBody(t *testing.T) {
	srv := newTestServer(t, echoProcessor())

	status, body := do(t, http.MethodPost, srv.URL+"/ai/process", "{not json")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "invalid request body")
}

func TestMemoryRoutes(t *testing.T) {
	srv := newTestServer(t, echoProcessor(), server.WithMemory(newMemory(t)))

	status, body := do(t, http.MethodPost, srv.URL+"/memory/store", map[string]any{
		"key":      "case-1",
		"data":     "hearing scheduled for monday",
		"metadata": map[string]any{"kind": "calendar"},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])

	status, body = do(t, http.MethodGet, srv.URL+"/memory/case-1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "case-1", body["key"])
	assert.Equal(t, "hearing scheduled for monday", body["value"])

	status, body = do(t, http.MethodPost, srv.URL+"/memory/search", map[string]any{"query": "monday hearing"})
	require.Equal(t, http.StatusOK, status)
	results, ok := body["results"].([]any)
	require.True(t, ok)
	require.Len(t, results, 1)
	assert.Equal(t, "cache", results[0].(map[string]any)["source"])

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/memory/backends", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	var backends []federation.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&backends))
	resp.Body.Close()
	require.Len(t, backends, 1)
	assert.Equal(t, "cache", backends[0].ID)

	status, _ = do(t, http.MethodDelete, srv.URL+"/memory/case-1", nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = do(t, http.MethodGet, srv.URL+"/memory/case-1", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body["error"], "case-1")
}

func TestMemoryRoutes_KeysWithSlashesAndReservedNames(t *testing.T) {
	srv := newTestServer(t, echoProcessor(), server.WithMemory(newMemory(t)))

	for _, key := range []string{"case/2024/exhibit-a", "backends"} {
		status, _ := do(t, http.MethodPost, srv.URL+"/memory/store", map[string]any{"key": key, "data": "exhibit " + key})
		require.Equal(t, http.StatusOK, status, key)
	}

	status, body := do(t, http.MethodGet, srv.URL+"/memory/case/2024/exhibit-a", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "case/2024/exhibit-a", body["key"])

	status, body = do(t, http.MethodGet, srv.URL+"/memory/case%2F2024%2Fexhibit-a", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "case/2024/exhibit-a", body["key"])

	status, body = do(t, http.MethodGet, srv.URL+"/memory/keys/backends", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "backends", body["key"])

	status, _ = do(t, http.MethodDelete, srv.URL+"/memory/keys/case/2024/exhibit-a", nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = do(t, http.MethodGet, srv.URL+"/memory/case/2024/exhibit-a", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestMemoryStore_MissingKey(t *testing.T) {
	srv := newTestServer(t, echoProcessor(), server.WithMemory(newMemory(t)))

	status, body := do(t, http.MethodPost, srv.URL+"/memory/store", map[string]any{"data": "x"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "key is required", body["error"])
}

func TestMemorySearch_Empty(t *testing.T) {
	srv := newTestServer(t, echoProcessor(), server.WithMemory(newMemory(t)))

	status, body := do(t, http.MethodPost, srv.URL+"/memory/search", map[string]any{"query": "nothing"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{}, body["results"])
}

func TestToolRoutes(t *testing.T) {
	srv := newTestServer(t, echoProcessor(), server.WithTools(newTools(t)))

	status, body := do(t, http.MethodGet, srv.URL+"/mcp/tools", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(6), body["count"])
	assert.Len(t, body["tools"], 6)

	status, body = do(t, http.MethodPost, srv.URL+"/mcp/execute", map[string]any{
		"tool":   "notion:notion-search",
		"params": map[string]any{"query": "roadmap"},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])

	status, _ = do(t, http.MethodPost, srv.URL+"/mcp/execute", map[string]any{"tool": "notion:missing"})
	assert.Equal(t, http.StatusNotFound, status)

	status, body = do(t, http.MethodPost, srv.URL+"/mcp/execute", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "tool is required", body["error"])
}

func TestProviderStatus(t *testing.T) {
	f := compute.New(compute.WithLogger(zerolog.Nop()))
	require.NoError(t, f.Register(federation.DescriptorConfig{ID: "openai", Priority: 95, Models: []string{"gpt-4o"}}, compute.AdapterFunc{}))

	srv := newTestServer(t, echoProcessor(), server.WithProviders(f))

	resp, err := http.Get(srv.URL + "/providers/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var statuses []federation.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&statuses))
	require.Len(t, statuses, 1)
	assert.Equal(t, "openai", statuses[0].ID)
	assert.True(t, statuses[0].Healthy)
	assert.Equal(t, 95, statuses[0].Priority)
}

func TestOptionalRoutesDisabled(t *testing.T) {
	srv := newTestServer(t, echoProcessor())

	for _, path := range []string{"/memory/backends", "/mcp/tools", "/providers/status", "/metrics"} {
		status, _ := do(t, http.MethodGet, srv.URL+path, nil)
		assert.Equal(t, http.StatusNotFound, status, path)
	}
}

func TestMetricsRoute(t *testing.T) {
	m, err := telemetry.NewMetrics(telemetry.DefaultMetricsConfig())
	require.NoError(t, err)
	m.RecordToolExecution("notion:notion-search", "success")

	srv := newTestServer(t, echoProcessor(), server.WithMetrics(m))

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "hyperdoc_tool_executions_total")
}
