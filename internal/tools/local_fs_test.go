package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePathAllowsPathsInsideWorkspace(t *testing.T) {
	ws := t.TempDir()
	if err := os.WriteFile(filepath.Join(ws, "note.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	resolved, err := resolvePath("note.txt", ws, true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want, _ := filepath.EvalSymlinks(ws)
	if filepath.Dir(resolved) != want {
		t.Fatalf("resolved path %q escaped workspace %q", resolved, want)
	}
}

func TestResolvePathRejectsDotDotEscape(t *testing.T) {
	ws := t.TempDir()
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	rel, err := filepath.Rel(ws, filepath.Join(outside, "secret.txt"))
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if _, err := resolvePath(rel, ws, true); err == nil {
		t.Fatal("expected an error escaping the workspace via ..")
	}
}

func TestResolvePathRejectsSymlinkEscape(t *testing.T) {
	ws := t.TempDir()
	outside := t.TempDir()
	target := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(target, []byte("hi"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	link := filepath.Join(ws, "escape")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	if _, err := resolvePath("escape", ws, true); err == nil {
		t.Fatal("expected an error resolving a symlink that escapes the workspace")
	}
}

func TestResolvePathRejectsHardlinkedFile(t *testing.T) {
	ws := t.TempDir()
	real := filepath.Join(ws, "real.txt")
	if err := os.WriteFile(real, []byte("hi"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	link := filepath.Join(ws, "linked.txt")
	if err := os.Link(real, link); err != nil {
		t.Skipf("hardlinks unsupported: %v", err)
	}

	if _, err := resolvePath("linked.txt", ws, true); err == nil {
		t.Fatal("expected an error for a hardlinked file")
	}
}

func TestResolvePathSkipsBoundaryCheckWhenUnrestricted(t *testing.T) {
	ws := t.TempDir()
	outside := t.TempDir()
	target := filepath.Join(outside, "anything.txt")

	resolved, err := resolvePath(target, ws, false)
	if err != nil {
		t.Fatalf("expected no error when restrict is false, got %v", err)
	}
	if resolved != filepath.Clean(target) {
		t.Fatalf("expected resolved path %q, got %q", target, resolved)
	}
}

func TestReadFileToolRejectsEmptyPath(t *testing.T) {
	tool := NewReadFileTool(t.TempDir(), true)
	if _, err := tool.Execute(context.Background(), map[string]any{}); err == nil {
		t.Fatal("expected an error for a missing path argument")
	}
}
