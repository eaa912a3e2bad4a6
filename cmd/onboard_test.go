package cmd

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func reader(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestPromptTextReturnsDefaultOnBlankLine(t *testing.T) {
	if got := promptText(reader("\n"), "label", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	if got := promptText(reader("value\n"), "label", "fallback"); got != "value" {
		t.Fatalf("expected value, got %q", got)
	}
}

func TestPromptYesNoDefaultsOnBlank(t *testing.T) {
	if !promptYesNo(reader("\n"), "?", true) {
		t.Fatal("expected default true to hold on blank input")
	}
	if promptYesNo(reader("\n"), "?", false) {
		t.Fatal("expected default false to hold on blank input")
	}
	if !promptYesNo(reader("yes\n"), "?", false) {
		t.Fatal("expected 'yes' to override a false default")
	}
	if promptYesNo(reader("n\n"), "?", true) {
		t.Fatal("expected 'n' to override a true default")
	}
}

func TestPromptListSplitsAndTrims(t *testing.T) {
	got := promptList(reader(" alice, bob ,, carol\n"))
	want := []string{"alice", "bob", "carol"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestPromptListEmptyLineReturnsNil(t *testing.T) {
	if got := promptList(reader("\n")); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestPromptIntFallsBackOnGarbage(t *testing.T) {
	if got := promptInt(reader("not-a-number\n"), "port", 18790); got != 18790 {
		t.Fatalf("expected fallback 18790, got %d", got)
	}
	if got := promptInt(reader("9000\n"), "port", 18790); got != 9000 {
		t.Fatalf("expected 9000, got %d", got)
	}
}

func TestPromptChoiceRejectsUnknownOption(t *testing.T) {
	opts := []string{"openai", "anthropic"}
	if got := promptChoice(reader("nonsense\n"), "provider", "openai", opts); got != "openai" {
		t.Fatalf("expected fallback to default, got %q", got)
	}
	if got := promptChoice(reader("anthropic\n"), "provider", "openai", opts); got != "anthropic" {
		t.Fatalf("expected anthropic, got %q", got)
	}
}

func TestSeedWorkspaceCreatesLayoutAndDefaults(t *testing.T) {
	dir := t.TempDir()
	ws := filepath.Join(dir, "workspace")

	seedWorkspace(ws)

	for _, p := range []string{"PROMPT.md", "PERSONA.md", "journal/LONGTERM.md", "PULSE.md"} {
		if _, err := os.Stat(filepath.Join(ws, p)); err != nil {
			t.Fatalf("expected %s to exist: %v", p, err)
		}
	}
	if _, err := os.Stat(filepath.Join(ws, "recipes")); err != nil {
		t.Fatalf("expected recipes dir to exist: %v", err)
	}
}

func TestSeedWorkspaceDoesNotOverwriteExistingFiles(t *testing.T) {
	dir := t.TempDir()
	ws := filepath.Join(dir, "workspace")
	if err := os.MkdirAll(ws, 0o755); err != nil {
		t.Fatal(err)
	}
	custom := "custom prompt"
	if err := os.WriteFile(filepath.Join(ws, "PROMPT.md"), []byte(custom), 0o644); err != nil {
		t.Fatal(err)
	}

	seedWorkspace(ws)

	data, err := os.ReadFile(filepath.Join(ws, "PROMPT.md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != custom {
		t.Fatalf("expected existing PROMPT.md to survive untouched, got %q", string(data))
	}
}
