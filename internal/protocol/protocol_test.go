package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToolResponse(t *testing.T) {
	resp := NewToolResponse(map[string]any{"count": 2})

	assert.NotEmpty(t, resp.ToolResultID)
	assert.False(t, resp.IsError)
	assert.NotNil(t, resp.Output)
	assert.Empty(t, resp.ErrorMessage)
}

func TestNewToolErrorResponse(t *testing.T) {
	resp := NewToolErrorResponse("something failed")

	assert.NotEmpty(t, resp.ToolResultID)
	assert.True(t, resp.IsError)
	assert.Nil(t, resp.Output)
	assert.Equal(t, "something failed", resp.ErrorMessage)
}

func TestToolResultIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		resp := NewToolResponse(nil)
		assert.False(t, seen[resp.ToolResultID], "duplicate tool_result_id %s", resp.ToolResultID)
		seen[resp.ToolResultID] = true
	}
}

func TestToolRequestDecodeIgnoresUnknownFields(t *testing.T) {
	raw := `{"tool_name":"warden_list_emails","input":{"query":"is:unread"},"session_id":"s1","future_field":true}`

	var req ToolRequest
	require.NoError(t, json.Unmarshal([]byte(raw), &req))

	assert.Equal(t, "warden_list_emails", req.ToolName)
	assert.Equal(t, "s1", req.SessionID)
	assert.Equal(t, "is:unread", req.Input["query"])
}

func TestToolResponseWireShape(t *testing.T) {
	resp := NewToolErrorResponse("unknown tool_name: bogus")

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Contains(t, decoded, "tool_result_id")
	assert.Equal(t, true, decoded["is_error"])
	assert.Equal(t, "unknown tool_name: bogus", decoded["error_message"])
}
