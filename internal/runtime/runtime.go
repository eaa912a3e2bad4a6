// Package runtime is the provider-agnostic chat and tool-call client. It selects a provider by type tag, lazily constructs the
// corresponding wire client under a single double-checked lock, and bridges
// the two tool-calling dialects to a common request/response shape the
// agent orchestration layer can drive without knowing which dialect is live.
package runtime

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/nextlevelbuilder/goclaw-lite/internal/conversation"
	"github.com/nextlevelbuilder/goclaw-lite/internal/providers"
)

// ProviderType tags which wire dialect and client a Config selects.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderDeepSeek ProviderType = "deepseek"
	ProviderMiniMax ProviderType = "minimax"
	ProviderCustom ProviderType = "custom"
)

// Config selects and parameterizes the live provider.
type Config struct {
	Type    ProviderType
	APIKey  string
	BaseURL string
	Model   string
}

// IsAnthropic reports whether this config's dialect is Anthropic's.
func (c Config) IsAnthropic() bool {
	return strings.EqualFold(strings.TrimSpace(string(c.Type)), string(ProviderAnthropic))
}

// Validate enforces deepseek/minimax require an explicit
// base URL.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("fatal config: provider API key is required")
	}
	switch ProviderType(strings.ToLower(strings.TrimSpace(string(c.Type)))) {
	case ProviderDeepSeek, ProviderMiniMax:
		if c.BaseURL == "" {
			return fmt.Errorf("fatal config: provider %q requires an explicit base URL", c.Type)
		}
	}
	return nil
}

// Request is a plain (no-tools) chat call, used for summarization and
// document-context extraction as well as ordinary replies.
type Request struct {
	Prompt       string
	SystemPrompt string
	Model        string
	MaxTokens    int
	Temperature  float64
}

// Runtime lazily constructs and holds the one live provider client.
type Runtime struct {
	cfg       Config

	mu        sync.Mutex
	openai    *providers.OpenAIClient
	anthropic *providers.AnthropicClient
}

// New constructs a Runtime. Clients are not built until first use.
func New(cfg Config) *Runtime {
	return &Runtime{cfg: cfg}
}

// openAIClient returns the shared OpenAI-compatible client, constructing it
// on first use under a double-checked lock.
func (r *Runtime) openAIClient() *providers.OpenAIClient {
	if r.openai != nil {
		return r.openai
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.openai != nil {
		return r.openai
	}
	r.openai = providers.NewOpenAIClient(r.cfg.APIKey, r.cfg.BaseURL, r.cfg.Model)
	return r.openai
}

// anthropicClient returns the shared Anthropic client, built the same way.
func (r *Runtime) anthropicClient() *providers.AnthropicClient {
	if r.anthropic != nil {
		return r.anthropic
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.anthropic != nil {
		return r.anthropic
	}
	var opts []providers.AnthropicOption
	if r.cfg.Model != "" {
		opts = append(opts, providers.WithAnthropicModel(r.cfg.Model))
	}
	if r.cfg.BaseURL != "" {
		opts = append(opts, providers.WithAnthropicBaseURL(r.cfg.BaseURL))
	}
	r.anthropic = providers.NewAnthropicClient(r.cfg.APIKey, opts...)
	return r.anthropic
}

// Run issues a plain chat call without tools and returns the assistant text
// plus normalized usage.
func (r *Runtime) Run(ctx context.Context, req Request) (string, providers.Usage, error) {
	model := req.Model
	if model == "" {
		model = r.cfg.Model
	}
	if r.cfg.IsAnthropic() {
		resp, err := r.anthropicClient().Chat(ctx, model, req.SystemPrompt,
			[]providers.AnthropicMessage{{Role: "user", Content: []providers.AnthropicBlock{providers.NewAnthropicTextBlock(req.Prompt)}}},
			nil, req.MaxTokens, req.Temperature)
		if err != nil {
			return "", providers.Usage{}, err
		}
		return resp.Text(), resp.Usage, nil
	}
	messages := []providers.OpenAIMessage{
		{Role: "system", Text: req.SystemPrompt},
		{Role: "user", Text: req.Prompt},
	}
	resp, err := r.openAIClient().Chat(ctx, model, messages, nil, req.MaxTokens, req.Temperature)
	if err != nil {
		return "", providers.Usage{}, err
	}
	return resp.Content, resp.Usage, nil
}

// ToolResult is the fully-decoded outcome of one dialect's tool-aware call.
type ToolResult struct {
	Text      string
	ToolCalls []conversation.ToolCall // OpenAI dialect
	ToolUses  []providers.AnthropicBlock
	Usage     providers.Usage
}

// ChatWithTools issues the dialect-appropriate tool-aware call, translating
// conversation turns to and from each dialect's wire shape.
func (r *Runtime) ChatWithTools(ctx context.Context, systemPrompt string, conv *conversation.Conversation, toolDefs []ToolDef, model string, maxTokens int, temperature float64) (*ToolResult, error) {
	if model == "" {
		model = r.cfg.Model
	}
	if r.cfg.IsAnthropic() {
		return r.chatAnthropic(ctx, systemPrompt, conv, toolDefs, model, maxTokens, temperature)
	}
	return r.chatOpenAI(ctx, systemPrompt, conv, toolDefs, model, maxTokens, temperature)
}

// TokenUsage re-exports providers.Usage under the runtime-facing name used
// by the agent/token-tracking layer.
type TokenUsage = providers.Usage
