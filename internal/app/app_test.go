package app_test

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/compute/provider/anthropic"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/compute/provider/anythingllm"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/compute/provider/gemini"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/compute/provider/openai"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/config"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/internal/app"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/memory/store/chromem"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/memory/store/ristretto"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/memory/store/sqlite"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/tools"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, p := range config.DefaultProviders() {
		if p.APIKeyEnv != "" {
			t.Setenv(p.APIKeyEnv, "")
		}
		if p.BaseURLEnv != "" {
			t.Setenv(p.BaseURLEnv, "")
		}
	}
}

func TestNewAdapter(t *testing.T) {
	tests := []struct {
		kind string
		want any
	}{
		{config.KindAnthropic, &anthropic.Adapter{}},
		{config.KindOpenAI, &openai.Adapter{}},
		{config.KindGemini, &gemini.Adapter{}},
		{config.KindAnythingLLM, &anythingllm.Adapter{}},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			a, err := app.NewAdapter(config.ProviderConfig{ID: tt.kind, Kind: tt.kind, APIKey: "k", Models: []string{"m"}})
			require.NoError(t, err)
			assert.IsType(t, tt.want, a)
		})
	}

	_, err := app.NewAdapter(config.ProviderConfig{ID: "x", Kind: "cohere"})
	assert.Error(t, err)
}

func TestNewBackend(t *testing.T) {
	nop := zerolog.Nop()

	b, err := app.NewBackend(config.BackendConfig{ID: "v", Kind: config.KindChromem}, nop)
	require.NoError(t, err)
	assert.IsType(t, &chromem.Store{}, b)
	require.NoError(t, b.Close())

	b, err = app.NewBackend(config.BackendConfig{ID: "d", Kind: config.KindSQLite, Path: filepath.Join(t.TempDir(), "mem.db")}, nop)
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, b)
	require.NoError(t, b.Close())

	b, err = app.NewBackend(config.BackendConfig{ID: "c", Kind: config.KindRistretto}, nop)
	require.NoError(t, err)
	assert.IsType(t, &ristretto.Store{}, b)
	require.NoError(t, b.Close())

	_, err = app.NewBackend(config.BackendConfig{ID: "p", Kind: "pinecone"}, nop)
	assert.Error(t, err)
}

func TestNewToolExecutor(t *testing.T) {
	assert.IsType(t, tools.AcknowledgeExecutor{}, app.NewToolExecutor(config.MCPConfig{}))
	assert.IsType(t, &tools.HTTPExecutor{}, app.NewToolExecutor(config.MCPConfig{GatewayURL: "http://gw"}))
}

func TestNew_DefaultConfig(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("DEEPSEEK_API_KEY", "sk-ds")

	a, err := app.New(config.DefaultConfig(), zerolog.Nop(), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	var ids []string
	for _, st := range a.Compute.ListBackends() {
		ids = append(ids, st.ID)
	}
	assert.ElementsMatch(t, []string{"deepseek", "local"}, ids)
	assert.Equal(t, []string{"supermemory", "mem0", "memoryos"}, a.Memory.Providers())
	assert.Equal(t, 6, a.Tools.Count())
	assert.Nil(t, a.Health)
}

func freePort(t *testing.T) int {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := lis.Addr().(*net.TCPAddr).Port
	require.NoError(t, lis.Close())
	return port
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	clearProviderEnv(t)

	cfg := config.DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)
	cfg.Server.GRPCPort = freePort(t)
	cfg.Server.ShutdownTimeout = 2 * time.Second

	a, err := app.New(cfg, zerolog.Nop(), "test")
	require.NoError(t, err)
	require.NotNil(t, a.Health)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	url := "http://127.0.0.1:" + strconv.Itoa(cfg.Server.Port) + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
