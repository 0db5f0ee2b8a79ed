package session

import "time"

// Interaction is one recorded tool call within a session: the
// identifier of its result envelope, what was asked, and a summary of
// what came back.
type Interaction struct {
	ToolResultID  string         `json:"tool_result_id"`
	ToolName      string         `json:"tool_name"`
	Input         map[string]any `json:"input"`
	OutputSummary any            `json:"output_summary"`
	Timestamp     time.Time      `json:"timestamp"`
}

// Context is the per-session interaction history. It is append-only:
// each successful tool call adds one interaction.
type Context struct {
	Interactions []Interaction `json:"interactions"`
}

// Append returns the context with one more interaction recorded.
func (c *Context) Append(interaction Interaction) {
	c.Interactions = append(c.Interactions, interaction)
}
