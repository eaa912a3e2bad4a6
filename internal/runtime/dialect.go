package runtime

import (
	"context"
	"encoding/json"

	"github.com/nextlevelbuilder/goclaw-lite/internal/conversation"
	"github.com/nextlevelbuilder/goclaw-lite/internal/providers"
)

// ToolDef is the dialect-agnostic tool definition the agent layer builds
// from ToolRegistry.ListDefinitions(); ChatWithTools renders it into
// whichever wire schema the active provider speaks.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

func toOpenAIToolDefs(defs []ToolDef) []providers.OpenAIToolDef {
	out := make([]providers.OpenAIToolDef, 0, len(defs))
	for _, d := range defs {
		out = append(out, providers.OpenAIToolDef{
			Type:     "function",
			Function: providers.OpenAIFunctionSchema{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}
	return out
}

func toAnthropicToolDefs(defs []ToolDef) []providers.AnthropicToolDef {
	out := make([]providers.AnthropicToolDef, 0, len(defs))
	for _, d := range defs {
		out = append(out, providers.AnthropicToolDef{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.Parameters,
		})
	}
	return out
}

// turnsToOpenAIMessages renders the whole conversation (system prompt
// included) into the OpenAI wire shape.
func turnsToOpenAIMessages(systemPrompt string, turns []conversation.Turn) []providers.OpenAIMessage {
	out := make([]providers.OpenAIMessage, 0, len(turns)+1)
	if systemPrompt != "" {
		out = append(out, providers.OpenAIMessage{Role: "system", Text: systemPrompt})
	}
	for _, t := range turns {
		switch t.Role {
		case conversation.RoleUser:
			if len(t.Parts) > 0 {
				out = append(out, providers.OpenAIMessage{Role: "user", Parts: partsToOpenAI(t.Parts)})
			} else {
				out = append(out, providers.OpenAIMessage{Role: "user", Text: t.Text})
			}
		case conversation.RoleAssistant:
			msg := providers.OpenAIMessage{Role: "assistant", Text: t.Text}
			for _, c := range t.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, providers.OpenAIToolCall{
					ID:       c.ID,
					Type:     "function",
					Function: providers.OpenAIFunctionCall{
						Name:      c.Name,
						Arguments: c.Arguments,
					},
				})
			}
			out = append(out, msg)
		case conversation.RoleTool:
			out = append(out, providers.OpenAIMessage{Role: "tool", Text: t.Text, ToolCallID: t.ToolCallID})
		}
	}
	return out
}

func partsToOpenAI(parts []conversation.ContentPart) []providers.OpenAIContentPart {
	out := make([]providers.OpenAIContentPart, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case conversation.PartText:
			out = append(out, providers.NewOpenAITextPart(p.Text))
		case conversation.PartImageURL:
			out = append(out, providers.NewOpenAIImagePart(p.MediaType, p.Data))
		case conversation.PartDocument:
			out = append(out, providers.NewOpenAITextPart("[document]"))
		default:
			if p.Text != "" {
				out = append(out, providers.NewOpenAITextPart(p.Text))
			}
		}
	}
	return out
}

// turnsToAnthropicMessages renders turns into Anthropic's role+content-block
// shape. The system prompt is passed separately to AnthropicClient.Chat.
func turnsToAnthropicMessages(turns []conversation.Turn) []providers.AnthropicMessage {
	out := make([]providers.AnthropicMessage, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case conversation.RoleUser:
			if len(t.Parts) > 0 {
				out = append(out, providers.AnthropicMessage{Role: "user", Content: partsToAnthropic(t.Parts)})
			} else {
				out = append(out, providers.AnthropicMessage{Role: "user", Content: []providers.AnthropicBlock{providers.NewAnthropicTextBlock(t.Text)}})
			}
		case conversation.RoleAssistant:
			if len(t.Parts) > 0 {
				out = append(out, providers.AnthropicMessage{Role: "assistant", Content: partsToAnthropic(t.Parts)})
			} else {
				out = append(out, providers.AnthropicMessage{Role: "assistant", Content: []providers.AnthropicBlock{providers.NewAnthropicTextBlock(t.Text)}})
			}
		}
		// RoleTool turns do not occur on the Anthropic dialect: tool results
		// are carried as user turns with tool_result parts, already covered
		// by the RoleUser branch above.
	}
	return out
}

func partsToAnthropic(parts []conversation.ContentPart) []providers.AnthropicBlock {
	out := make([]providers.AnthropicBlock, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case conversation.PartText:
			out = append(out, providers.NewAnthropicTextBlock(p.Text))
		case conversation.PartImage:
			out = append(out, providers.NewAnthropicImageBlock(p.MediaType, p.Data))
		case conversation.PartDocument:
			out = append(out, providers.NewAnthropicDocumentBlock(p.MediaType, p.Data))
		case conversation.PartToolUse:
			out = append(out, providers.AnthropicBlock{Type: "tool_use", ID: p.ToolUseID, Name: p.ToolName, Input: p.ToolInput})
		case conversation.PartToolResult:
			out = append(out, providers.NewAnthropicToolResultBlock(p.ToolResultID, p.ToolResultText))
		}
	}
	return out
}

func (r *Runtime) chatOpenAI(ctx context.Context, systemPrompt string, conv *conversation.Conversation, toolDefs []ToolDef, model string, maxTokens int, temperature float64) (*ToolResult, error) {
	messages := turnsToOpenAIMessages(systemPrompt, conv.Turns)
	resp, err := r.openAIClient().Chat(ctx, model, messages, toOpenAIToolDefs(toolDefs), maxTokens, temperature)
	if err != nil {
		return nil, err
	}
	result := &ToolResult{Text: resp.Content, Usage: resp.Usage}
	for _, tc := range resp.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, conversation.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return result, nil
}

func (r *Runtime) chatAnthropic(ctx context.Context, systemPrompt string, conv *conversation.Conversation, toolDefs []ToolDef, model string, maxTokens int, temperature float64) (*ToolResult, error) {
	messages := turnsToAnthropicMessages(conv.Turns)
	resp, err := r.anthropicClient().Chat(ctx, model, systemPrompt, messages, toAnthropicToolDefs(toolDefs), maxTokens, temperature)
	if err != nil {
		return nil, err
	}
	return &ToolResult{Text: resp.Text(), ToolUses: resp.ToolUses(), Usage: resp.Usage}, nil
}

// DecodeOpenAIArguments JSON-decodes a tool call's raw argument string,
// falling back to an empty object on decode failure.
func DecodeOpenAIArguments(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{}
	}
	return args
}
