package compute

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Request types with a default backend affinity.
const (
	TypeText     = "text"
	TypeCode     = "code"
	TypeMath     = "math"
	TypeDocument = "document"
	TypeLegal    = "legal"
	TypeEvidence = "evidence"
)

// Requirements carries optional caller preference weights.
type Requirements struct {
	Quality float64 `json:"quality"`
	Speed   float64 `json:"speed"`
	Cost    float64 `json:"cost"`
}

// Request is a normalized completion request.
type Request struct {
	// ID is assigned by ProcessRequest when empty.
	ID string `json:"id,omitempty"`

	// Type selects the affinity backend (math, code, legal, document ...).
	Type string `json:"type"`

	Content string `json:"content"`

	// Context is injected as system context by adapters that support it.
	Context string `json:"context,omitempty"`

	Requirements *Requirements `json:"requirements,omitempty"`

	// Tools names the MCP tools the caller wants considered.
	Tools []string `json:"tools,omitempty"`

	// Model overrides the backend's default model.
	Model string `json:"model,omitempty"`

	// MaxTokens caps the completion length. Zero means the adapter default.
	MaxTokens int64 `json:"maxTokens,omitempty"`
}

// Result is the outcome of ProcessRequest.
type Result struct {
	ID string `json:"id"`

	// Provider names the backend that produced Result, suffixed with
	// "-fallback" when it was not the primary candidate.
	Provider string `json:"provider"`

	Result any `json:"result"`

	// ProcessingTimeMs covers selection, retries and fallback.
	ProcessingTimeMs float64        `json:"processingTime"`
	Quality          float64        `json:"quality"`
	Cost             float64        `json:"cost"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// NewRequestID returns an id of the form req_<unixms>_<random>.
func NewRequestID() string {
	return fmt.Sprintf("req_%d_%s", time.Now().UnixMilli(), uuid.New().String()[:8])
}
