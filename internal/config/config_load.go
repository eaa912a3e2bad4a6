package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/titanous/json5"
)

// legacyKeyAliases maps a legacy top-level key name to its canonical
// replacement.
var legacyKeyAliases = map[string]string{
	"runtime": "provider",
	"core": "agent",
	"actions": "tools",
	"callbacks": "hooks",
	"adapters": "channels",
	"server": "gateway",
	"trim": "autoCompact",
	"usage": "tokenTracking",
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{Type: "anthropic"},
		Agent:    AgentConfig{
			Workspace:           "~/.ember/workspace",
			RestrictToWorkspace: true,
			Model:               "claude-sonnet-4-5-20250929",
			MaxTokens:           8192,
			Temperature:         0.7,
			MaxToolIterations:   8,
		},
		Tools:   ToolsConfig{ExecTimeoutSeconds: 60},
		Gateway: GatewayConfig{
			Host:            "0.0.0.0",
			Port:            18790,
			MaxConcurrency:  4,
			MaxMessageChars: 32000,
		},
		AutoCompact: AutoCompactConfig{
			Threshold:     0.8,
			PreserveCount: 5,
		},
	}
}

// Load reads config from a JSON(5) file — rewriting any legacy top-level
// key names to their canonical form before unmarshaling — then overlays
// environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	canonical, err := rewriteLegacyKeys(data)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := json5.Unmarshal(canonical, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// rewriteLegacyKeys decodes the document generically, renames any
// recognized legacy top-level key to its canonical name, and re-encodes —
// so json5.Unmarshal only ever sees canonical keys.
func rewriteLegacyKeys(data []byte) ([]byte, error) {
	var raw map[string]json.RawMessage
	if err := json5.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for legacy, canonical := range legacyKeyAliases {
		if v, ok := raw[legacy]; ok {
			if _, clash := raw[canonical]; !clash {
				raw[canonical] = v
			}
			delete(raw, legacy)
		}
	}
	return json.Marshal(raw)
}

// applyEnvOverrides overlays environment variables onto the config: the
// API key from any of several provider-specific env vars (first match
// wins, PYCLAW_API_KEY takes precedence), plus provider type, base URL,
// model, and workspace overrides.
func (c *Config) applyEnvOverrides() {
	for _, key := range []string{"PYCLAW_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "DEEPSEEK_API_KEY", "MINIMAX_API_KEY"} {
		if v := os.Getenv(key); v != "" {
			c.Provider.APIKey = v
			break
		}
	}
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("PYCLAW_PROVIDER_TYPE", &c.Provider.Type)
	envStr("PYCLAW_BASE_URL", &c.Provider.BaseURL)
	envStr("PYCLAW_MODEL", &c.Agent.Model)
	envStr("PYCLAW_WORKSPACE", &c.Agent.Workspace)

	envStr("PYCLAW_TELEGRAM_TOKEN", &c.Channels.Telegram.Token)
	if c.Channels.Telegram.Token != "" {
		c.Channels.Telegram.Enabled = true
	}
	envStr("PYCLAW_FEISHU_APP_ID", &c.Channels.Feishu.AppID)
	envStr("PYCLAW_FEISHU_APP_SECRET", &c.Channels.Feishu.AppSecret)
	envStr("PYCLAW_FEISHU_VERIFICATION_TOKEN", &c.Channels.Feishu.VerificationToken)
	if c.Channels.Feishu.AppID != "" && c.Channels.Feishu.AppSecret != "" {
		c.Channels.Feishu.Enabled = true
	}
	envStr("PYCLAW_SLACK_SIGNING_SECRET", &c.Channels.Slack.SigningSecret)
	envStr("PYCLAW_SLACK_BOT_TOKEN", &c.Channels.Slack.BotToken)
	if c.Channels.Slack.SigningSecret != "" && c.Channels.Slack.BotToken != "" {
		c.Channels.Slack.Enabled = true
	}
	envStr("PYCLAW_WEBUI_TOKEN", &c.Channels.WebUI.Token)

	if v := os.Getenv("PYCLAW_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Gateway.Port = port
		}
	}
}

// Save writes the config to a JSON file.
func Save(path string, cfg *Config) error {
	snap := cfg.Snapshot()
	data, err := json.MarshalIndent(snap, "", " ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// DefaultConfigPath returns the config file's default on-disk location
//.
func DefaultConfigPath() string {
	return ExpandHome("~/.ember/config.json")
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}

// WorkspacePath returns the expanded workspace path.
func (c *Config) WorkspacePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ExpandHome(c.Agent.Workspace)
}

// Masked returns a copy of the config with every secret field masked (only
// the first and last two characters kept), for the `status` CLI command.
func (c *Config) Masked() *Config {
	snap := c.Snapshot()
	snap.Provider.APIKey = maskSecret(snap.Provider.APIKey)
	snap.Channels.Telegram.Token = maskSecret(snap.Channels.Telegram.Token)
	snap.Channels.Feishu.AppSecret = maskSecret(snap.Channels.Feishu.AppSecret)
	snap.Channels.Feishu.VerificationToken = maskSecret(snap.Channels.Feishu.VerificationToken)
	snap.Channels.Slack.SigningSecret = maskSecret(snap.Channels.Slack.SigningSecret)
	snap.Channels.Slack.BotToken = maskSecret(snap.Channels.Slack.BotToken)
	snap.Channels.WebUI.Token = maskSecret(snap.Channels.WebUI.Token)
	return &snap
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}

// Validate checks fatal configuration errors: a missing API key, or a
// missing base URL for a provider that requires one explicitly.
func (c *Config) Validate() error {
	if c.Provider.APIKey == "" {
		return fmt.Errorf("fatal config: no API key configured for provider %q", c.Provider.Type)
	}
	switch c.Provider.Type {
	case "deepseek", "minimax":
		if c.Provider.BaseURL == "" {
			return fmt.Errorf("fatal config: provider %q requires an explicit base_url", c.Provider.Type)
		}
	}
	return nil
}
