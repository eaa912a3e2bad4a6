package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/goclaw-lite/internal/memory"
	"github.com/nextlevelbuilder/goclaw-lite/internal/skills"
)

func TestReadPromptFilesPrefersNewNames(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "PROMPT.md"), []byte(" you are helpful "), 0o644)
	os.WriteFile(filepath.Join(dir, "PERSONA.md"), []byte("be terse"), 0o644)
	os.WriteFile(filepath.Join(dir, "AGENTS.md"), []byte("legacy, should be ignored"), 0o644)

	got := readPromptFiles(dir)
	if !strings.Contains(got, "you are helpful") || !strings.Contains(got, "be terse") {
		t.Fatalf("expected new prompt files joined, got %q", got)
	}
	if strings.Contains(got, "legacy") {
		t.Fatalf("legacy AGENTS.md must only be used when PROMPT.md/PERSONA.md are both absent, got %q", got)
	}
}

func TestReadPromptFilesFallsBackToLegacyNames(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "AGENTS.md"), []byte("legacy agents"), 0o644)
	os.WriteFile(filepath.Join(dir, "SOUL.md"), []byte("legacy soul"), 0o644)

	got := readPromptFiles(dir)
	if !strings.Contains(got, "legacy agents") || !strings.Contains(got, "legacy soul") {
		t.Fatalf("expected legacy prompt files to be used when new ones are absent, got %q", got)
	}
}

func TestReadPromptFilesEmptyWorkspace(t *testing.T) {
	if got := readPromptFiles(t.TempDir()); got != "" {
		t.Fatalf("expected empty prompt for a workspace with no prompt files, got %q", got)
	}
}

func TestConfigIsAnthropic(t *testing.T) {
	cases := []struct {
		providerType string
		want         bool
	}{
		{"anthropic", true},
		{" Anthropic ", true},
		{"openai", false},
		{"deepseek", false},
		{"", false},
	}
	for _, c := range cases {
		cfg := Config{ProviderType: c.providerType}
		if got := cfg.isAnthropic(); got != c.want {
			t.Errorf("Config{ProviderType:%q}.isAnthropic() = %v, want %v", c.providerType, got, c.want)
		}
	}
}

func TestBuildSystemPromptAssemblesSections(t *testing.T) {
	workspace := t.TempDir()
	os.MkdirAll(filepath.Join(workspace, "journal"), 0o755)
	os.WriteFile(filepath.Join(workspace, "journal", "LONGTERM.md"), []byte("remembers the user's name is Alex"), 0o644)

	r := &Runner{
		cfg: Config{
			MCPServerNames: []string{"filesystem", "search"},
		},
		memory: memory.NewStore(workspace),
		prompt: "base persona",
		skills: []skills.Skill{
			{Name: "deploy", Keywords: []string{"deploy"}, Body: "run the deploy playbook"},
			{Name: "unrelated", Keywords: []string{"weather"}, Body: "should not appear"},
		},
	}

	got := r.buildSystemPrompt("please deploy the app", "earlier we discussed the release date")

	for _, want := range []string{
		"base persona",
		"Alex",
		"# MCP Servers\nfilesystem\nsearch",
		"# Skill: deploy\nrun the deploy playbook",
		"# Summary\nearlier we discussed the release date",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("buildSystemPrompt() missing %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, "should not appear") {
		t.Errorf("buildSystemPrompt() included a non-matching skill's body:\n%s", got)
	}
}

func TestBuildSystemPromptOmitsEmptySections(t *testing.T) {
	r := &Runner{
		cfg:    Config{},
		memory: memory.NewStore(t.TempDir()),
	}
	got := r.buildSystemPrompt("hello", "")
	if got != "" {
		t.Fatalf("expected empty system prompt with nothing configured, got %q", got)
	}
}
