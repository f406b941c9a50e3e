package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequest_SystemBlocks(t *testing.T) {
	tr := NewTranslator()

	req := tr.BuildRequest([]Message{
		{Role: RoleSystem, Content: "Be concise."},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleSystem, Content: "Use metric units."},
	}, nil, "claude-sonnet-4-5-20250929", 1024, 0.7)

	require.Len(t, req.System, 3)
	assert.Equal(t, SystemPrefix, req.System[0].Text)
	assert.Equal(t, "Be concise.", req.System[1].Text)
	assert.Equal(t, "Use metric units.", req.System[2].Text)
	for _, block := range req.System {
		assert.Equal(t, "text", block.Type)
	}

	// System turns are lifted out of the message list.
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Equal(t, "hi", req.Messages[0].Content)
}

func TestBuildRequest_NoSystemMessages(t *testing.T) {
	tr := NewTranslator()

	req := tr.BuildRequest([]Message{
		{Role: RoleUser, Content: "hello"},
	}, nil, "claude-sonnet-4-5-20250929", 1024, 0.7)

	require.Len(t, req.System, 1)
	assert.Equal(t, SystemPrefix, req.System[0].Text)
}

func TestBuildRequest_ToolResult(t *testing.T) {
	tr := NewTranslator()

	req := tr.BuildRequest([]Message{
		{Role: RoleTool, ToolCallID: "call_1", Content: "file contents here"},
	}, nil, "claude-sonnet-4-5-20250929", 1024, 0.7)

	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)

	blocks, ok := req.Messages[0].Content.([]ContentBlock)
	require.True(t, ok)
	require.Len(t, blocks, 1)
	assert.Equal(t, "tool_result", blocks[0].Type)
	assert.Equal(t, "call_1", blocks[0].ToolUseID)
	assert.Equal(t, "file contents here", blocks[0].Content)
}

func TestBuildRequest_AssistantWithToolCalls(t *testing.T) {
	tr := NewTranslator()

	req := tr.BuildRequest([]Message{
		{
			Role:    RoleAssistant,
			Content: "Let me check that file.",
			ToolCalls: []ToolCall{
				{ID: "call_1", Name: "read_file", Arguments: `{"path":"main.go"}`},
			},
		},
	}, nil, "claude-sonnet-4-5-20250929", 1024, 0.7)

	require.Len(t, req.Messages, 1)
	blocks, ok := req.Messages[0].Content.([]ContentBlock)
	require.True(t, ok)
	require.Len(t, blocks, 2)

	assert.Equal(t, "text", blocks[0].Type)
	assert.Equal(t, "Let me check that file.", blocks[0].Text)

	assert.Equal(t, "tool_use", blocks[1].Type)
	assert.Equal(t, "call_1", blocks[1].ID)
	assert.Equal(t, "ReadFile", blocks[1].Name, "allow-listed name must be rewritten")
	assert.Equal(t, map[string]any{"path": "main.go"}, blocks[1].Input)
}

func TestBuildRequest_EmptyAssistantPassthrough(t *testing.T) {
	tr := NewTranslator()

	req := tr.BuildRequest([]Message{
		{Role: RoleAssistant, Content: ""},
	}, nil, "claude-sonnet-4-5-20250929", 1024, 0.7)

	require.Len(t, req.Messages, 1)
	assert.Equal(t, "assistant", req.Messages[0].Role)
	assert.Equal(t, "", req.Messages[0].Content)
}

func TestBuildRequest_Tools(t *testing.T) {
	tr := NewTranslator()

	req := tr.BuildRequest(nil, []ToolDefinition{
		{
			Name:        "read_file",
			Description: "Read a file",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{"type": "string"},
				},
			},
		},
		{Name: "search_web", Description: "Search"},
	}, "claude-sonnet-4-5-20250929", 1024, 0.7)

	require.Len(t, req.Tools, 2)
	assert.Equal(t, "ReadFile", req.Tools[0].Name)
	assert.Equal(t, "search_web", req.Tools[1].Name)
	assert.Equal(t, map[string]any{}, req.Tools[1].InputSchema, "missing schema becomes empty object")
}

func TestToolInput(t *testing.T) {
	tests := []struct {
		name string
		args any
		want map[string]any
	}{
		{
			name: "nil",
			args: nil,
			want: map[string]any{},
		},
		{
			name: "structured map",
			args: map[string]any{"x": float64(1)},
			want: map[string]any{"x": float64(1)},
		},
		{
			name: "json string",
			args: `{"x": 1}`,
			want: map[string]any{"x": float64(1)},
		},
		{
			name: "unparseable string",
			args: "not json",
			want: map[string]any{"raw": "not json"},
		},
		{
			name: "empty string",
			args: "",
			want: map[string]any{"raw": ""},
		},
		{
			name: "struct value",
			args: struct {
				Path string `json:"path"`
			}{Path: "a.go"},
			want: map[string]any{"path": "a.go"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toolInput(tt.args))
		})
	}
}

func TestParseResponse_TextAndToolUse(t *testing.T) {
	tr := NewTranslator()

	resp := tr.ParseResponse(MessagesResponse{
		Content: []ResponseBlock{
			{Type: "text", Text: "First part."},
			{Type: "text", Text: "Second part."},
			{Type: "tool_use", ID: "toolu_1", Name: "ReadFile", Input: map[string]any{"path": "go.mod"}},
		},
		StopReason: "tool_use",
		Usage:      &WireUsage{InputTokens: 120, OutputTokens: 30},
	})

	assert.Equal(t, "First part.\nSecond part.", resp.Content)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "toolu_1", resp.ToolCalls[0].ID)
	assert.Equal(t, "read_file", resp.ToolCalls[0].Name, "wire name must map back to generic")
	assert.Equal(t, map[string]any{"path": "go.mod"}, resp.ToolCalls[0].Arguments)

	assert.Equal(t, FinishToolCalls, resp.FinishReason)
	assert.Equal(t, 120, resp.Usage.PromptTokens)
	assert.Equal(t, 30, resp.Usage.CompletionTokens)
	assert.Equal(t, 150, resp.Usage.TotalTokens)
}

func TestParseResponse_NilToolInput(t *testing.T) {
	tr := NewTranslator()

	resp := tr.ParseResponse(MessagesResponse{
		Content: []ResponseBlock{
			{Type: "tool_use", ID: "toolu_1", Name: "search_web"},
		},
		StopReason: "tool_use",
	})

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, map[string]any{}, resp.ToolCalls[0].Arguments)
}

func TestParseResponse_EmptyContent(t *testing.T) {
	tr := NewTranslator()

	resp := tr.ParseResponse(MessagesResponse{StopReason: "end_turn"})

	assert.Empty(t, resp.Content)
	assert.Empty(t, resp.ToolCalls)
	assert.Equal(t, FinishStop, resp.FinishReason)
	assert.Zero(t, resp.Usage.TotalTokens)
}

func TestMapStopReason(t *testing.T) {
	tests := []struct {
		stopReason string
		want       FinishReason
	}{
		{"end_turn", FinishStop},
		{"tool_use", FinishToolCalls},
		{"max_tokens", FinishLength},
		{"stop_sequence", FinishStop},
		{"", FinishStop},
		{"something_new", FinishStop},
	}

	for _, tt := range tests {
		t.Run(tt.stopReason, func(t *testing.T) {
			assert.Equal(t, tt.want, mapStopReason(tt.stopReason))
		})
	}
}
