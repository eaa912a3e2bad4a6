package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultClaudeModel  = "claude-sonnet-4-5-20250929"
	anthropicAPIBase    = "https://api.anthropic.com/v1"
	anthropicAPIVersion = "2023-06-01"
)

// AnthropicBlock is one element of an Anthropic content-block list, used
// both for request content (user/assistant turns) and decoded responses.
type AnthropicBlock struct {
	Type string `json:"type"` // "text" | "image" | "document" | "tool_use" | "tool_result"

	Text string `json:"text,omitempty"`

	// "image" / "document"
	Source *anthropicSource `json:"source,omitempty"`

	// "tool_use"
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// "tool_result"
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"` // "base64"
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// NewAnthropicTextBlock builds a plain text block.
func NewAnthropicTextBlock(text string) AnthropicBlock {
	return AnthropicBlock{Type: "text", Text: text}
}

// NewAnthropicImageBlock builds a base64 image block.
func NewAnthropicImageBlock(mediaType, data string) AnthropicBlock {
	return AnthropicBlock{Type: "image", Source: &anthropicSource{Type: "base64", MediaType: mediaType, Data: data}}
}

// NewAnthropicDocumentBlock builds a base64 document block.
func NewAnthropicDocumentBlock(mediaType, data string) AnthropicBlock {
	return AnthropicBlock{Type: "document", Source: &anthropicSource{Type: "base64", MediaType: mediaType, Data: data}}
}

// NewAnthropicToolResultBlock builds a tool_result block referencing the
// tool_use_id it answers.
func NewAnthropicToolResultBlock(toolUseID, content string) AnthropicBlock {
	return AnthropicBlock{Type: "tool_result", ToolUseID: toolUseID, Content: content}
}

// AnthropicMessage is one request message: role plus an ordered content-block list.
type AnthropicMessage struct {
	Role    string           `json:"role"` // "user" | "assistant"
	Content []AnthropicBlock `json:"content"`
}

// AnthropicToolDef describes one tool in Anthropic's schema shape.
type AnthropicToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// AnthropicResponse is the decoded /v1/messages result.
type AnthropicResponse struct {
	Blocks       []AnthropicBlock // ordered text + tool_use content blocks
	StopReason   string
	Usage        Usage
}

// Text concatenates all text blocks in the response.
func (r *AnthropicResponse) Text() string {
	var out string
	for _, b := range r.Blocks {
		if b.Type == "text" {
			out += b.Text
		}
	}
	return out
}

// ToolUses returns only the tool_use blocks, in order.
func (r *AnthropicResponse) ToolUses() []AnthropicBlock {
	var out []AnthropicBlock
	for _, b := range r.Blocks {
		if b.Type == "tool_use" {
			out = append(out, b)
		}
	}
	return out
}

// AnthropicClient speaks the Anthropic /v1/messages dialect.
type AnthropicClient struct {
	apiKey     string
	apiBase    string
	model      string
	httpClient *http.Client
}

// AnthropicOption configures NewAnthropicClient.
type AnthropicOption func(*AnthropicClient)

// WithAnthropicModel overrides the default model.
func WithAnthropicModel(model string) AnthropicOption {
	return func(c *AnthropicClient) { c.model = model }
}

// WithAnthropicBaseURL overrides the API base (rarely needed; Anthropic
// does not require the OpenAI-style /v1 normalization dance).
func WithAnthropicBaseURL(base string) AnthropicOption {
	return func(c *AnthropicClient) {
		if base != "" {
			c.apiBase = base
		}
	}
}

// NewAnthropicClient constructs a client with sensible defaults.
func NewAnthropicClient(apiKey string, opts ...AnthropicOption) *AnthropicClient {
	c := &AnthropicClient{
		apiKey:     apiKey,
		apiBase:    anthropicAPIBase,
		model:      defaultClaudeModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type anthropicRequestBody struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	System      string             `json:"system,omitempty"`
	Messages    []AnthropicMessage `json:"messages"`
	Tools       []AnthropicToolDef `json:"tools,omitempty"`
}

// Chat issues a /v1/messages call, with or without tool definitions.
func (c *AnthropicClient) Chat(ctx context.Context, model, systemPrompt string, messages []AnthropicMessage, tools []AnthropicToolDef, maxTokens int, temperature float64) (*AnthropicResponse, error) {
	if model == "" {
		model = c.model
	}
	body := anthropicRequestBody{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		System:      systemPrompt,
		Messages:    messages,
		Tools:       tools,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(raw)}
	}
	return parseAnthropicResponse(raw)
}

func parseAnthropicResponse(raw []byte) (*AnthropicResponse, error) {
	var decoded struct {
		Content    []AnthropicBlock `json:"content"`
		StopReason string           `json:"stop_reason"`
		Usage      struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &ParseError{Cause: err}
	}
	return &AnthropicResponse{
		Blocks:     decoded.Content,
		StopReason: decoded.StopReason,
		Usage: Usage{
			PromptTokens:     decoded.Usage.InputTokens,
			CompletionTokens: decoded.Usage.OutputTokens,
			TotalTokens:      decoded.Usage.InputTokens + decoded.Usage.OutputTokens,
		},
	}, nil
}

// HasToolCalls reports whether stop_reason indicates pending tool calls.
func (r *AnthropicResponse) HasToolCalls() bool {
	return r.StopReason == "tool_use" && len(r.ToolUses()) > 0
}
