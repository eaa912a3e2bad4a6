package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestFlexibleStringSliceAcceptsStringsAndNumbers(t *testing.T) {
	var f FlexibleStringSlice
	if err := json.Unmarshal([]byte(`["alice", 123]`), &f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f) != 2 || f[0] != "alice" || f[1] != "123" {
		t.Fatalf("unexpected result: %v", f)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.Type != "anthropic" {
		t.Fatalf("expected default provider type, got %q", cfg.Provider.Type)
	}
	if cfg.Gateway.Port != 18790 {
		t.Fatalf("expected default port, got %d", cfg.Gateway.Port)
	}
}

func TestLoadRewritesLegacyKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	doc := `{"runtime": {"type": "openai"}, "core": {"model": "gpt-5"}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.Type != "openai" {
		t.Fatalf("expected legacy 'runtime' key to map to provider.type, got %q", cfg.Provider.Type)
	}
	if cfg.Agent.Model != "gpt-5" {
		t.Fatalf("expected legacy 'core' key to map to agent.model, got %q", cfg.Agent.Model)
	}
}

func TestLoadCanonicalKeyWinsOverLegacyClash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	doc := `{"runtime": {"type": "openai"}, "provider": {"type": "anthropic"}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.Type != "anthropic" {
		t.Fatalf("expected canonical key to win, got %q", cfg.Provider.Type)
	}
}

func TestApplyEnvOverridesSetsAPIKeyAndEnablesTelegram(t *testing.T) {
	cfg := Default()
	t.Setenv("PYCLAW_API_KEY", "sk-test-key")
	t.Setenv("PYCLAW_TELEGRAM_TOKEN", "tg-token")

	cfg.applyEnvOverrides()

	if cfg.Provider.APIKey != "sk-test-key" {
		t.Fatalf("expected API key from env, got %q", cfg.Provider.APIKey)
	}
	if !cfg.Channels.Telegram.Enabled {
		t.Fatal("expected telegram to auto-enable once a token is present")
	}
}

func TestSaveAndLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	cfg := Default()
	cfg.Provider.Type = "openai"
	cfg.Agent.Model = "gpt-5"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reloaded.Provider.Type != "openai" || reloaded.Agent.Model != "gpt-5" {
		t.Fatalf("round trip lost data: %+v", reloaded)
	}
}

func TestSaveNeverPersistsSecrets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.Provider.APIKey = "sk-should-not-be-written"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got == "" {
		t.Fatal("expected non-empty config file")
	} else if containsString(got, "sk-should-not-be-written") {
		t.Fatal("expected APIKey to be excluded from the persisted file")
	}
}

func containsString(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}

func TestMaskedMasksSecretFields(t *testing.T) {
	cfg := Default()
	cfg.Provider.APIKey = "sk-abcdefgh"
	cfg.Channels.Telegram.Token = "tg-abcdefgh"
	cfg.Channels.Feishu.AppSecret = "fe-abcdefgh"
	cfg.Channels.Slack.BotToken = "sl-abcdefgh"

	masked := cfg.Masked()

	if masked.Provider.APIKey == cfg.Provider.APIKey {
		t.Fatal("expected API key to be masked")
	}
	if masked.Channels.Telegram.Token == cfg.Channels.Telegram.Token {
		t.Fatal("expected telegram token to be masked")
	}
	// Masked() must not mutate the receiver's own copy.
	if cfg.Provider.APIKey != "sk-abcdefgh" {
		t.Fatal("Masked() must operate on a copy, not the original config")
	}
}

func TestValidateRequiresAPIKey(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing API key")
	}
	cfg.Provider.APIKey = "sk-x"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRequiresBaseURLForDeepseek(t *testing.T) {
	cfg := Default()
	cfg.Provider.APIKey = "sk-x"
	cfg.Provider.Type = "deepseek"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing base_url on deepseek")
	}
	cfg.Provider.BaseURL = "https://api.deepseek.com"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExpandHome(t *testing.T) {
	home, _ := os.UserHomeDir()
	if got := ExpandHome("~/workspace"); got != home+"/workspace" {
		t.Fatalf("expected %q, got %q", home+"/workspace", got)
	}
	if got := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Fatalf("expected unchanged absolute path, got %q", got)
	}
}

func TestReplaceFromOverwritesDataPreservingMutex(t *testing.T) {
	dst := Default()
	src := Default()
	src.Provider.Type = "openai"
	src.Tracing.Enabled = true
	src.Tracing.Endpoint = "localhost:4317"

	dst.ReplaceFrom(src)

	if dst.Provider.Type != "openai" {
		t.Fatalf("expected replaced provider type, got %q", dst.Provider.Type)
	}
	if !dst.Tracing.Enabled || dst.Tracing.Endpoint != "localhost:4317" {
		t.Fatalf("expected replaced tracing config, got %+v", dst.Tracing)
	}
}
