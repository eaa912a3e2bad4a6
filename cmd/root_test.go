package cmd

import (
	"os"
	"testing"

	"github.com/nextlevelbuilder/goclaw-lite/internal/config"
)

func TestResolveConfigPathPrefersFlagOverEnv(t *testing.T) {
	t.Setenv("PYCLAW_CONFIG", "/env/config.json")
	cfgFile = "/flag/config.json"
	defer func() { cfgFile = "" }()

	if got := resolveConfigPath(); got != "/flag/config.json" {
		t.Fatalf("expected flag to win, got %q", got)
	}
}

func TestResolveConfigPathFallsBackToEnvThenDefault(t *testing.T) {
	cfgFile = ""
	t.Setenv("PYCLAW_CONFIG", "/env/config.json")
	if got := resolveConfigPath(); got != "/env/config.json" {
		t.Fatalf("expected env var, got %q", got)
	}

	os.Unsetenv("PYCLAW_CONFIG")
	if got := resolveConfigPath(); got != config.DefaultConfigPath() {
		t.Fatalf("expected default path, got %q", got)
	}
}

func TestNonEmptyStringAndNonZeroInt(t *testing.T) {
	if got := nonEmptyString("", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	if got := nonEmptyString("set", "fallback"); got != "set" {
		t.Fatalf("expected set, got %q", got)
	}
	if got := nonZeroInt(0, 42); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	if got := nonZeroInt(7, 42); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}
