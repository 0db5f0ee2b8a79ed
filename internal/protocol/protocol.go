package protocol

import (
	"github.com/google/uuid"
)

// ToolRequest is the envelope accepted by the execute_tool endpoint.
// Input carries the raw, tool-specific parameters; they are parsed
// against the tool's schema by the dispatch engine.
type ToolRequest struct {
	ToolName  string         `json:"tool_name"`
	Input     map[string]any `json:"input"`
	SessionID string         `json:"session_id"`
	UserID    string         `json:"user_id,omitempty"`
}

// ToolResponse is the envelope returned for every tool call. Exactly
// one of Output/ErrorMessage is populated, and IsError reflects which.
// Tool-level failures are carried inside the envelope; the HTTP status
// of the call is always 200 so the calling assistant can always parse
// a structured result.
type ToolResponse struct {
	ToolResultID string `json:"tool_result_id"`
	IsError      bool   `json:"is_error"`
	Output       any    `json:"output"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// NewToolResponse builds a success envelope with a fresh result ID.
func NewToolResponse(output any) *ToolResponse {
	return &ToolResponse{
		ToolResultID: uuid.NewString(),
		IsError:      false,
		Output:       output,
	}
}

// NewToolErrorResponse builds an error envelope with a fresh result ID.
func NewToolErrorResponse(message string) *ToolResponse {
	return &ToolResponse{
		ToolResultID: uuid.NewString(),
		IsError:      true,
		ErrorMessage: message,
	}
}
