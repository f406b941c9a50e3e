package provider

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SystemPrefix is the identification string the OAuth-authenticated
// endpoint requires as the first system block of every request.
const SystemPrefix = "You are Claude Code, Anthropic's official CLI for Claude."

// Translator maps between the generic chat/tool model and the Anthropic
// Messages wire format. All methods are pure; a Translator performs no I/O
// and holds no mutable state.
type Translator struct {
	Names        NameMap
	SystemPrefix string
}

// NewTranslator returns the translator for OAuth-authenticated calls: the
// fixed Claude Code system prefix and the default tool-name allow-list.
func NewTranslator() Translator {
	return Translator{
		Names:        DefaultNameMap(),
		SystemPrefix: SystemPrefix,
	}
}

// BuildRequest converts a generic message list into a messages-endpoint
// request body.
//
// System-role messages become additional system blocks after the fixed
// prefix block, preserving their relative order. Tool-role results become
// user messages carrying a single tool_result block. Assistant and user
// turns convert per role; nothing is dropped.
func (tr Translator) BuildRequest(messages []Message, tools []ToolDefinition, model string, maxTokens int, temperature float64) MessagesRequest {
	system := []SystemBlock{{Type: "text", Text: tr.SystemPrefix}}
	wireMessages := make([]WireMessage, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, SystemBlock{Type: "text", Text: msg.Content})

		case RoleTool:
			wireMessages = append(wireMessages, WireMessage{
				Role: "user",
				Content: []ContentBlock{{
					Type:      "tool_result",
					ToolUseID: msg.ToolCallID,
					Content:   msg.Content,
				}},
			})

		case RoleAssistant:
			wireMessages = append(wireMessages, tr.convertAssistant(msg))

		default:
			// User messages pass through; string content works directly.
			wireMessages = append(wireMessages, WireMessage{Role: "user", Content: msg.Content})
		}
	}

	req := MessagesRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		System:      system,
		Messages:    wireMessages,
	}

	if len(tools) > 0 {
		req.Tools = tr.convertTools(tools)
	}

	return req
}

// convertAssistant converts an assistant turn into wire content blocks:
// a text block first if there is text, then one tool_use block per tool
// call. A turn with neither keeps its content field as-is so empty
// assistant turns are not silently dropped.
func (tr Translator) convertAssistant(msg Message) WireMessage {
	var blocks []ContentBlock

	if msg.Content != "" {
		blocks = append(blocks, ContentBlock{Type: "text", Text: msg.Content})
	}

	for _, call := range msg.ToolCalls {
		blocks = append(blocks, ContentBlock{
			Type:  "tool_use",
			ID:    call.ID,
			Name:  tr.Names.ToWire(call.Name),
			Input: toolInput(call.Arguments),
		})
	}

	if len(blocks) == 0 {
		return WireMessage{Role: "assistant", Content: msg.Content}
	}
	return WireMessage{Role: "assistant", Content: blocks}
}

// toolInput normalizes tool-call arguments into a structured object.
// String arguments are parsed as JSON; anything unparseable is wrapped as
// {"raw": ...} rather than failing the whole request.
func toolInput(args any) map[string]any {
	switch v := args.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return v
	case string:
		var parsed map[string]any
		if err := json.Unmarshal([]byte(v), &parsed); err != nil {
			return map[string]any{"raw": v}
		}
		return parsed
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return map[string]any{"raw": fmt.Sprintf("%v", v)}
		}
		var parsed map[string]any
		if err := json.Unmarshal(data, &parsed); err != nil {
			return map[string]any{"raw": string(data)}
		}
		return parsed
	}
}

// convertTools maps generic tool definitions to wire tool schemas, applying
// the allow-list name rewrite.
func (tr Translator) convertTools(tools []ToolDefinition) []WireTool {
	wire := make([]WireTool, 0, len(tools))
	for _, tool := range tools {
		schema := tool.Parameters
		if schema == nil {
			schema = map[string]any{}
		}
		wire = append(wire, WireTool{
			Name:        tr.Names.ToWire(tool.Name),
			Description: tool.Description,
			InputSchema: schema,
		})
	}
	return wire
}

// ParseResponse converts a messages-endpoint response into the generic
// response model. Text blocks are joined by newlines; tool_use blocks map
// back through the inverse allow-list.
func (tr Translator) ParseResponse(wire MessagesResponse) *Response {
	var textParts []string
	var toolCalls []ToolCall

	for _, block := range wire.Content {
		switch block.Type {
		case "text":
			textParts = append(textParts, block.Text)
		case "tool_use":
			input := block.Input
			if input == nil {
				input = map[string]any{}
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:        block.ID,
				Name:      tr.Names.FromWire(block.Name),
				Arguments: input,
			})
		}
	}

	resp := &Response{
		Content:      strings.Join(textParts, "\n"),
		ToolCalls:    toolCalls,
		FinishReason: mapStopReason(wire.StopReason),
	}

	if wire.Usage != nil {
		resp.Usage = Usage{
			PromptTokens:     wire.Usage.InputTokens,
			CompletionTokens: wire.Usage.OutputTokens,
			TotalTokens:      wire.Usage.InputTokens + wire.Usage.OutputTokens,
		}
	}

	return resp
}

// mapStopReason maps the vendor stop reason onto the generic finish
// vocabulary. Unrecognized values map to stop.
func mapStopReason(stopReason string) FinishReason {
	switch stopReason {
	case "end_turn":
		return FinishStop
	case "tool_use":
		return FinishToolCalls
	case "max_tokens":
		return FinishLength
	default:
		return FinishStop
	}
}
