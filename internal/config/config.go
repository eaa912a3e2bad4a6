// Package config loads and holds the gateway's single JSON configuration
// document: an RWMutex-guarded struct, a FlexibleStringSlice accepting both
// ["str"] and [123] shapes, and json5-based loading, trimmed down to the
// flat set of top-level keys this single-tenant gateway actually needs —
// no managed-mode, sandbox, subagent, or multi-provider-credential surface.
package config

import (
	"encoding/json"
	"fmt"
	"sync"
)

// FlexibleStringSlice accepts both ["str"] and [123] in JSON, tolerating
// loosely-typed hand-edited config files.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Config is the root configuration document.
type Config struct {
	Provider      ProviderConfig `json:"provider"`
	Agent         AgentConfig `json:"agent"`
	Tools         ToolsConfig `json:"tools"`
	Hooks         HooksConfig `json:"hooks,omitempty"`
	Skills        SkillsConfig `json:"skills,omitempty"`
	Channels      ChannelsConfig `json:"channels,omitempty"`
	Gateway       GatewayConfig `json:"gateway,omitempty"`
	MCP           MCPConfig `json:"mcp,omitempty"`
	AutoCompact   AutoCompactConfig `json:"autoCompact,omitempty"`
	TokenTracking TokenTrackingConfig `json:"tokenTracking,omitempty"`
	Tracing       TracingConfig `json:"tracing,omitempty"`

	mu            sync.RWMutex
}

// ProviderConfig selects and configures the model provider.
type ProviderConfig struct {
	Type    string `json:"type"` // openai, anthropic, deepseek, minimax, custom
	APIKey  string `json:"-"` // never persisted; env only
	BaseURL string `json:"base_url,omitempty"`
}

// AgentConfig is the core agent loop's tunables.
type AgentConfig struct {
	Workspace           string `json:"workspace"`
	RestrictToWorkspace bool `json:"restrict_to_workspace"`
	Model               string `json:"model"`
	MaxTokens           int `json:"max_tokens"`
	Temperature         float64 `json:"temperature"`
	MaxToolIterations   int `json:"max_tool_iterations"`
}

// ToolsConfig configures LocalTools.
type ToolsConfig struct {
	ExecTimeoutSeconds int `json:"exec_timeout_seconds,omitempty"`
}

// HookEntry is one configured hook command (shared by all three hook
// lists).
type HookEntry struct {
	Command string `json:"command"`
	Pattern string `json:"pattern,omitempty"`
	Timeout int `json:"timeout,omitempty"` // seconds
}

// HooksConfig groups the three hook lists.
type HooksConfig struct {
	PreToolUse  []HookEntry `json:"preToolUse,omitempty"`
	PostToolUse []HookEntry `json:"postToolUse,omitempty"`
	Stop        []HookEntry `json:"stop,omitempty"`
}

// SkillsConfig configures the skills loader.
type SkillsConfig struct {
	Enabled bool `json:"enabled,omitempty"`
	Dir     string `json:"dir,omitempty"`
}

// ChannelsConfig groups every channel adapter's settings.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram,omitempty"`
	Feishu   FeishuConfig `json:"feishu,omitempty"`
	Slack    SlackConfig `json:"slack,omitempty"`
	WebUI    WebUIConfig `json:"webui,omitempty"`
}

type TelegramConfig struct {
	Enabled   bool `json:"enabled,omitempty"`
	Token     string `json:"-"`
	AllowList FlexibleStringSlice `json:"allow_list,omitempty"`
}

type FeishuConfig struct {
	Enabled           bool `json:"enabled,omitempty"`
	AppID             string `json:"app_id,omitempty"`
	AppSecret         string `json:"-"`
	VerificationToken string `json:"-"`
	AllowList         FlexibleStringSlice `json:"allow_list,omitempty"`
}

type SlackConfig struct {
	Enabled       bool `json:"enabled,omitempty"`
	SigningSecret string `json:"-"`
	BotToken      string `json:"-"`
	AllowList     FlexibleStringSlice `json:"allow_list,omitempty"`
}

type WebUIConfig struct {
	Enabled   bool `json:"enabled,omitempty"`
	Token     string `json:"-"`
	AllowList FlexibleStringSlice `json:"allow_list,omitempty"`
}

// GatewayConfig configures the assembled server.
type GatewayConfig struct {
	Host            string `json:"host,omitempty"`
	Port            int `json:"port,omitempty"`
	MaxConcurrency  int `json:"max_concurrency,omitempty"`
	MaxMessageChars int `json:"max_message_chars,omitempty"`
}

// MCPServerConfig is one configured child tool server.
type MCPServerConfig struct {
	Name    string `json:"name"`
	Command string `json:"command"`
	Args    []string `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// MCPConfig lists the configured MCP servers.
type MCPConfig struct {
	Servers []MCPServerConfig `json:"servers,omitempty"`
}

// AutoCompactConfig configures ConversationStore compaction.
type AutoCompactConfig struct {
	Threshold     float64 `json:"threshold,omitempty"`
	PreserveCount int `json:"preserve_count,omitempty"`
}

// TokenTrackingConfig configures the usage journal.
type TokenTrackingConfig struct {
	Enabled bool `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// TracingConfig configures the ambient OTel span exporter for the agent
// orchestration loop. Never required for correctness — spans are a stdout
// no-op exporter unless an OTLP endpoint is configured.
type TracingConfig struct {
	Enabled  bool `json:"enabled,omitempty"`
	Endpoint string `json:"endpoint,omitempty"` // OTLP endpoint, e.g. "localhost:4317"
	Insecure bool `json:"insecure,omitempty"` // skip TLS for the OTLP exporter
	Protocol string `json:"protocol,omitempty"` // "grpc" (default) or "http"
}

// IsAnthropic reports whether the configured provider is the Anthropic
// dialect.
func (c *Config) IsAnthropic() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Provider.Type == "anthropic"
}

// Snapshot returns a copy of the config safe to read without holding the
// lock further (used by Save and by status reporting).
func (c *Config) Snapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := *c
	cp.mu = sync.RWMutex{}
	return cp
}

// ReplaceFrom overwrites c's data fields from src, preserving c's mutex —
// used to apply a freshly reloaded config in place without invalidating
// pointers callers already hold to c.
func (c *Config) ReplaceFrom(src *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Provider = src.Provider
	c.Agent = src.Agent
	c.Tools = src.Tools
	c.Hooks = src.Hooks
	c.Skills = src.Skills
	c.Channels = src.Channels
	c.Gateway = src.Gateway
	c.MCP = src.MCP
	c.AutoCompact = src.AutoCompact
	c.TokenTracking = src.TokenTracking
	c.Tracing = src.Tracing
}
