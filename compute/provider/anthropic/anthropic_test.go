package anthropic_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/compute"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/compute/provider/anthropic"
)

const messageJSON = `{
  "id": "msg_01",
  "type": "message",
  "role": "assistant",
  "model": "claude-sonnet-4-20250514",
  "content": [
    {"type": "text", "text": "Hello"},
    {"type": "text", "text": " world"}
  ],
  "stop_reason": "end_turn",
  "usage": {"input_tokens": 5, "output_tokens": 2}
}`

func TestComplete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(messageJSON))
	}))
	defer srv.Close()

	a := anthropic.New(anthropic.Config{APIKey: "test-key", BaseURL: srv.URL})
	out, err := a.Complete(context.Background(), &compute.Request{
		Type:    compute.TypeLegal,
		Content: "summarize",
		Context: "case 42",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello world", out)

	assert.Equal(t, anthropic.DefaultModel, body["model"])
	assert.EqualValues(t, anthropic.DefaultMaxTokens, body["max_tokens"])
	system, ok := body["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 1)
	assert.Contains(t, system[0].(map[string]any)["text"], "case 42")
}

func TestComplete_ServerError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"overloaded"}}`))
	}))
	defer srv.Close()

	a := anthropic.New(anthropic.Config{APIKey: "k", BaseURL: srv.URL})
	_, err := a.Complete(context.Background(), &compute.Request{Content: "x"})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "the adapter must not retry on its own")
}

func TestProbe(t *testing.T) {
	var maxTokens float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		maxTokens, _ = body["max_tokens"].(float64)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(messageJSON))
	}))
	defer srv.Close()

	a := anthropic.New(anthropic.Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, a.Probe(context.Background()))
	assert.Equal(t, 1.0, maxTokens)
}
