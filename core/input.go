package core

import (
	"encoding/json"
	"fmt"
)

// BaseInput provides common fields for all tool inputs.
// Tool inputs embed it so callers can attach their reasoning to a call.
type BaseInput struct {
	// Thought explains why the tool is being invoked. Optional.
	Thought string `json:"thought,omitempty"`
}

// ToolParams carries the arguments of one tool invocation.
type ToolParams struct {
	// RequestID correlates the call with the compute request that caused it.
	RequestID string `json:"requestId,omitempty"`

	// Input is the raw JSON argument object.
	Input json.RawMessage `json:"input,omitempty"`
}

// NewToolParams encodes input into ToolParams.
func NewToolParams(requestID string, input any) (*ToolParams, error) {
	if input == nil {
		return &ToolParams{RequestID: requestID}, nil
	}
	if raw, ok := input.(json.RawMessage); ok {
		return &ToolParams{RequestID: requestID, Input: raw}, nil
	}
	data, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode tool input: %w", err)
	}
	return &ToolParams{RequestID: requestID, Input: data}, nil
}

// Decode unmarshals the input into v. Empty input leaves v untouched.
func (p *ToolParams) Decode(v any) error {
	if p == nil || len(p.Input) == 0 {
		return nil
	}
	if err := json.Unmarshal(p.Input, v); err != nil {
		return fmt.Errorf("decode tool input: %w", err)
	}
	return nil
}
