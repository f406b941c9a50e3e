package provider

// Anthropic Messages API wire shapes. Only the fields this bridge uses are
// modeled; unknown response fields are ignored on decode.

// MessagesRequest is the request body for the messages endpoint.
type MessagesRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	System      []SystemBlock `json:"system"`
	Messages    []WireMessage `json:"messages"`
	Tools       []WireTool    `json:"tools,omitempty"`
}

// SystemBlock is one entry of the system block list. OAuth-authenticated
// calls require the Claude Code identification string to be its own first
// block, so system text is never concatenated.
type SystemBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// WireMessage is one conversation turn. Content is either a plain string
// (pass-through user/assistant text) or a []ContentBlock.
type WireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentBlock is a typed request content block: text, tool_use or
// tool_result.
type ContentBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// tool_use
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

// WireTool is a tool definition in wire vocabulary.
type WireTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// MessagesResponse is the response body of the messages endpoint.
type MessagesResponse struct {
	Content    []ResponseBlock `json:"content"`
	StopReason string          `json:"stop_reason"`
	Usage      *WireUsage      `json:"usage,omitempty"`
}

// ResponseBlock is a typed response content block.
type ResponseBlock struct {
	Type  string         `json:"type"`
	Text  string         `json:"text,omitempty"`
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`
}

// WireUsage is the vendor's token accounting.
type WireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
