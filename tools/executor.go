package tools

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/core"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/internal/httpjson"
)

// HTTPExecutor forwards tool calls to an MCP gateway at
// POST {endpoint}/servers/{server}/tools/{tool}.
type HTTPExecutor struct {
	client   *httpjson.Client
	endpoint string
}

// NewHTTPExecutor creates an executor for the gateway at endpoint. A
// non-empty token is sent as a bearer credential.
func NewHTTPExecutor(endpoint, token string, httpClient *http.Client) *HTTPExecutor {
	client := httpjson.New("mcp", httpClient)
	if token != "" {
		client.Header.Set("Authorization", "Bearer "+token)
	}
	return &HTTPExecutor{
		client:   client,
		endpoint: strings.TrimRight(endpoint, "/"),
	}
}

type gatewayRequest struct {
	RequestID string `json:"requestId,omitempty"`
	Input     any    `json:"input"`
}

// Execute posts the call and decodes the gateway's ToolResult.
func (e *HTTPExecutor) Execute(ctx context.Context, def core.ToolDefinition, params *core.ToolParams) (*core.ToolResult, error) {
	u := e.endpoint + "/servers/" + url.PathEscape(def.Server) + "/tools/" + url.PathEscape(def.ToolName)

	body := gatewayRequest{Input: map[string]any{}}
	if params != nil {
		body.RequestID = params.RequestID
		if len(params.Input) > 0 {
			body.Input = params.Input
		}
	}

	var res core.ToolResult
	if err := e.client.Do(ctx, http.MethodPost, u, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// AcknowledgeExecutor accepts every call without running anything. It
// backs the catalogue when no gateway is configured.
type AcknowledgeExecutor struct{}

// Execute reports the call as accepted.
func (AcknowledgeExecutor) Execute(_ context.Context, def core.ToolDefinition, params *core.ToolParams) (*core.ToolResult, error) {
	data := map[string]any{
		"server":   def.Server,
		"tool":     def.ToolName,
		"accepted": true,
	}
	if params != nil && params.RequestID != "" {
		data["requestId"] = params.RequestID
	}
	return &core.ToolResult{Success: true, Data: data}, nil
}
