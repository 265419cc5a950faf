// Package anythingllm adapts a self-hosted AnythingLLM workspace to
// compute.Adapter. It backs the "local" provider.
package anythingllm

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/compute"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/internal/httpjson"
)

const (
	DefaultEndpoint  = "http://localhost:3001/api"
	DefaultWorkspace = "default"
)

// Config holds the connection settings.
type Config struct {
	Endpoint   string
	APIKey     string
	Workspace  string
	HTTPClient *http.Client
}

// Adapter chats with one workspace.
type Adapter struct {
	client    *httpjson.Client
	endpoint  string
	workspace string
}

// New creates an Adapter.
func New(cfg Config) *Adapter {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	workspace := cfg.Workspace
	if workspace == "" {
		workspace = DefaultWorkspace
	}

	client := httpjson.New("anythingllm", cfg.HTTPClient)
	if cfg.APIKey != "" {
		client.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	return &Adapter{
		client:    client,
		endpoint:  strings.TrimRight(endpoint, "/"),
		workspace: workspace,
	}
}

type chatRequest struct {
	Message string `json:"message"`
	Mode    string `json:"mode"`
}

type chatResponse struct {
	TextResponse string `json:"textResponse"`
	Error        string `json:"error,omitempty"`
}

// Complete posts the request content to the workspace chat endpoint.
func (a *Adapter) Complete(ctx context.Context, req *compute.Request) (string, error) {
	msg := req.Content
	if req.Context != "" {
		msg = req.Context + "\n\n" + msg
	}

	var resp chatResponse
	path := "/v1/workspace/" + url.PathEscape(a.workspace) + "/chat"
	if err := a.client.Do(ctx, http.MethodPost, a.endpoint+path, chatRequest{Message: msg, Mode: "chat"}, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", &httpjson.StatusError{Provider: "anythingllm", Code: http.StatusOK, Body: resp.Error}
	}
	return resp.TextResponse, nil
}

// Probe checks that the API key is accepted.
func (a *Adapter) Probe(ctx context.Context) error {
	return a.client.Do(ctx, http.MethodGet, a.endpoint+"/v1/auth", nil, nil)
}
