package tools

import (
	"context"
	"testing"
)

type stubTool struct {
	name string
}

func (s stubTool) Definition() Definition {
	return Definition{Name: s.name, Description: "stub"}
}

func (s stubTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	return "local:" + s.name, nil
}

type stubMCPDelegate struct {
	defs    []Definition
	handled map[string]string
}

func (s stubMCPDelegate) ListTools() []Definition {
	return s.defs
}

func (s stubMCPDelegate) CallTool(ctx context.Context, name string, args map[string]any) (string, bool, error) {
	out, ok := s.handled[name]
	if !ok {
		return "", false, nil
	}
	return out, true, nil
}

func TestListDefinitionsMergesMCPToolsAfterLocal(t *testing.T) {
	mcp := stubMCPDelegate{defs: []Definition{{Name: "remote_search", Description: "search via mcp"}}}
	r := NewRegistry([]Tool{stubTool{name: "read_file"}}, mcp, nil)

	defs := r.ListDefinitions()
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions (1 local + 1 mcp), got %d", len(defs))
	}
	if defs[0].Name != "read_file" || defs[1].Name != "remote_search" {
		t.Fatalf("expected local tool first and mcp tool second, got %v", defs)
	}
}

func TestListDefinitionsLocalToolWinsNameCollision(t *testing.T) {
	mcp := stubMCPDelegate{defs: []Definition{{Name: "read_file", Description: "a remote tool with the same name"}}}
	r := NewRegistry([]Tool{stubTool{name: "read_file"}}, mcp, nil)

	defs := r.ListDefinitions()
	if len(defs) != 1 {
		t.Fatalf("expected the colliding mcp tool to be dropped, got %d definitions: %v", len(defs), defs)
	}
	if defs[0].Description != "stub" {
		t.Fatalf("expected the local tool's definition to win the collision, got %v", defs[0])
	}
}

func TestListDefinitionsWithNilMCPDelegateReturnsLocalOnly(t *testing.T) {
	r := NewRegistry([]Tool{stubTool{name: "read_file"}}, nil, nil)
	defs := r.ListDefinitions()
	if len(defs) != 1 || defs[0].Name != "read_file" {
		t.Fatalf("expected only the local tool, got %v", defs)
	}
}

func TestExecuteDelegatesUnknownLocalNameToMCP(t *testing.T) {
	mcp := stubMCPDelegate{handled: map[string]string{"remote_search": "mcp result"}}
	r := NewRegistry(nil, mcp, nil)

	if got := r.Execute(context.Background(), "remote_search", nil); got != "mcp result" {
		t.Fatalf("expected mcp result, got %q", got)
	}
	if got := r.Execute(context.Background(), "nonexistent", nil); got != `error: unknown tool "nonexistent"` {
		t.Fatalf("expected unknown-tool error, got %q", got)
	}
}
