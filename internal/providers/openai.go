package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const defaultOpenAIBase = "https://api.openai.com/v1"

// NormalizeOpenAIBaseURL strips any trailing slash, appends "/v1" unless
// already present, and defaults to the canonical base when empty. The
// function is a fixed point: normalizing its own output returns the same
// string.
func NormalizeOpenAIBaseURL(raw string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return defaultOpenAIBase
	}
	if strings.HasSuffix(trimmed, "/v1") {
		return trimmed
	}
	return trimmed + "/v1"
}

// OpenAIMessage is one entry in an OpenAI-compatible chat-completions
// request. Content is either a plain string or a []OpenAIContentPart for
// multi-part (text+image) turns; callers set exactly one of the two.
type OpenAIMessage struct {
	Role       string
	Text       string
	Parts      []OpenAIContentPart
	ToolCalls  []OpenAIToolCall // assistant turn only
	ToolCallID string // tool turn only
}

// MarshalJSON encodes the dual string/parts content shape OpenAI expects.
func (m OpenAIMessage) MarshalJSON() ([]byte, error) {
	type wire struct {
		Role       string `json:"role"`
		Content    any `json:"content,omitempty"`
		ToolCalls  []OpenAIToolCall `json:"tool_calls,omitempty"`
		ToolCallID string `json:"tool_call_id,omitempty"`
	}
	w := wire{Role: m.Role, ToolCalls: m.ToolCalls, ToolCallID: m.ToolCallID}
	if len(m.Parts) > 0 {
		w.Content = m.Parts
	} else {
		w.Content = m.Text
	}
	return json.Marshal(w)
}

// OpenAIContentPart is one element of a multi-part message body.
type OpenAIContentPart struct {
	Type     string `json:"type"` // "text" | "image_url"
	Text     string `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

// NewOpenAITextPart builds a plain text content part.
func NewOpenAITextPart(text string) OpenAIContentPart {
	return OpenAIContentPart{Type: "text", Text: text}
}

// NewOpenAIImagePart builds a data-URL image content part:
// "data:<mediaType>;base64,<data>".
func NewOpenAIImagePart(mediaType, data string) OpenAIContentPart {
	return OpenAIContentPart{
		Type:     "image_url",
		ImageURL: &openAIImageURL{URL: fmt.Sprintf("data:%s;base64,%s", mediaType, data)},
	}
}

// OpenAIToolCall is a tool invocation requested by the assistant.
type OpenAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"` // "function"
	Function OpenAIFunctionCall `json:"function"`
}

// OpenAIFunctionCall carries the function name and raw JSON argument string.
type OpenAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// OpenAIToolDef is one entry in the request's "tools" array.
type OpenAIToolDef struct {
	Type     string `json:"type"`
	Function OpenAIFunctionSchema `json:"function"`
}

// OpenAIFunctionSchema is a function tool's JSON schema.
type OpenAIFunctionSchema struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// OpenAIResponse is the decoded chat-completions result.
type OpenAIResponse struct {
	Content      string
	ToolCalls    []OpenAIToolCall
	FinishReason string
	Usage        Usage
}

// OpenAIClient speaks the OpenAI-compatible chat-completions dialect. A
// single instance is shared across calls; construction normalizes apiBase
// once so every request reuses the canonical base.
type OpenAIClient struct {
	apiKey       string
	apiBase      string
	defaultModel string
	httpClient   *http.Client
}

// NewOpenAIClient constructs a client with a normalized base URL.
func NewOpenAIClient(apiKey, apiBase, defaultModel string) *OpenAIClient {
	return &OpenAIClient{
		apiKey:       apiKey,
		apiBase:      NormalizeOpenAIBaseURL(apiBase),
		defaultModel: defaultModel,
		httpClient:   &http.Client{Timeout: 120 * time.Second},
	}
}

type openAIRequestBody struct {
	Model       string `json:"model"`
	Messages    []OpenAIMessage `json:"messages"`
	MaxTokens   int `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	Tools       []OpenAIToolDef `json:"tools,omitempty"`
	ToolChoice  string `json:"tool_choice,omitempty"`
}

// Chat issues a chat-completions call, with or without tool definitions.
func (c *OpenAIClient) Chat(ctx context.Context, model string, messages []OpenAIMessage, tools []OpenAIToolDef, maxTokens int, temperature float64) (*OpenAIResponse, error) {
	if model == "" {
		model = c.defaultModel
	}
	body := openAIRequestBody{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Tools:       tools,
	}
	if len(tools) > 0 {
		body.ToolChoice = "auto"
	}
	raw, err := c.doRequest(ctx, "/chat/completions", body)
	if err != nil {
		return nil, err
	}
	return parseOpenAIResponse(raw)
}

func (c *OpenAIClient) doRequest(ctx context.Context, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

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
	return raw, nil
}

func parseOpenAIResponse(raw []byte) (*OpenAIResponse, error) {
	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
				ToolCalls []OpenAIToolCall `json:"tool_calls"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &ParseError{Cause: err}
	}
	if len(decoded.Choices) == 0 {
		return nil, &ParseError{Cause: fmt.Errorf("no choices in response")}
	}
	choice := decoded.Choices[0]
	return &OpenAIResponse{
		Content:      choice.Message.Content,
		ToolCalls:    choice.Message.ToolCalls,
		FinishReason: choice.FinishReason,
		Usage:        Usage{
			PromptTokens:     decoded.Usage.PromptTokens,
			CompletionTokens: decoded.Usage.CompletionTokens,
			TotalTokens:      decoded.Usage.TotalTokens,
		},
	}, nil
}

// UploadFile implements the first half of the document side-channel
// : multipart upload to POST {base}/files, returning the
// resulting file id.
func (c *OpenAIClient) UploadFile(ctx context.Context, filename, mediaType string, data []byte) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("purpose", "user_data"); err != nil {
		return "", err
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/files", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &HTTPError{Status: resp.StatusCode, Body: string(raw)}
	}
	var decoded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &ParseError{Cause: err}
	}
	return decoded.ID, nil
}

// RespondWithFiles implements the second half of the document side-channel:
// POST {base}/responses with input_file references, returning the textual
// output.
func (c *OpenAIClient) RespondWithFiles(ctx context.Context, model, systemPrompt, prompt string, fileIDs []string, maxTokens int, temperature float64) (string, error) {
	type inputFile struct {
		Type   string `json:"type"`
		FileID string `json:"file_id"`
	}
	type inputText struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	var content []any
	content = append(content, inputText{Type: "input_text", Text: prompt})
	for _, id := range fileIDs {
		content = append(content, inputFile{Type: "input_file", FileID: id})
	}

	body := map[string]any{
		"model": model,
		"input": []map[string]any{
			{"role": "system", "content": []inputText{{Type: "input_text", Text: systemPrompt}}},
			{"role": "user", "content": content},
		},
		"max_output_tokens": maxTokens,
		"temperature": temperature,
	}
	raw, err := c.doRequest(ctx, "/responses", body)
	if err != nil {
		return "", err
	}
	var decoded struct {
		OutputText string `json:"output_text"`
		Output []struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &ParseError{Cause: err}
	}
	if decoded.OutputText != "" {
		return decoded.OutputText, nil
	}
	var b strings.Builder
	for _, item := range decoded.Output {
		for _, c := range item.Content {
			b.WriteString(c.Text)
		}
	}
	return b.String(), nil
}
