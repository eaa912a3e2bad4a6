package mcp

import (
	"context"
	"testing"
	"time"
)

func TestManagerStartSkipsServersThatFailToLaunch(t *testing.T) {
	m := NewManager()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	configs := []ServerConfig{
		{Name: "bad-one", Command: "goclaw-lite-nonexistent-binary-a"},
		{Name: "bad-two", Command: "goclaw-lite-nonexistent-binary-b"},
	}
	m.Start(ctx, configs)

	if names := m.ServerNames(); len(names) != 0 {
		t.Fatalf("expected no servers registered, got %v", names)
	}
	if status := m.Status(); len(status) != 0 {
		t.Fatalf("expected no server status entries, got %v", status)
	}
}

func TestManagerCallToolReportsUnhandledForUnknownName(t *testing.T) {
	m := NewManager()
	_, handled, err := m.CallTool(context.Background(), "nonexistent_tool", nil)
	if handled {
		t.Fatal("expected handled=false for a tool no server owns")
	}
	if err != nil {
		t.Fatalf("expected no error for an unhandled tool, got %v", err)
	}
}

func TestManagerStopIsSafeWithNoServers(t *testing.T) {
	m := NewManager()
	m.Stop() // must not panic
}

func TestManagerListToolsReturnsEmptyWithNoServers(t *testing.T) {
	m := NewManager()
	if defs := m.ListTools(); len(defs) != 0 {
		t.Fatalf("expected no tool definitions, got %v", defs)
	}
}

func TestManagerListToolsSurfacesConnectedServerCatalog(t *testing.T) {
	m := NewManager()
	m.toolOrder = []string{"search"}
	m.toolInfo["search"] = ToolInfo{Name: "search", Description: "search the web", InputSchema: map[string]any{"type": "object"}}

	defs := m.ListTools()
	if len(defs) != 1 || defs[0].Name != "search" || defs[0].Description != "search the web" {
		t.Fatalf("expected one surfaced tool definition, got %v", defs)
	}
}

func TestManagerServerNamesReturnsACopy(t *testing.T) {
	m := NewManager()
	m.names = []string{"fs", "search"}

	got := m.ServerNames()
	got[0] = "mutated"

	if m.names[0] != "fs" {
		t.Fatalf("ServerNames should return a defensive copy, caller mutation leaked into %v", m.names)
	}
}
