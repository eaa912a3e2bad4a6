package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Registry wraps LocalTools and an optional MCP delegate. Resolution order:
// a local name match wins; otherwise the call is delegated to MCP. Pre- and
// post-hooks fire around every execution; hook failures never abort the
// call. Exceptions from the underlying tool are caught and returned as the
// text "error: <message>" so the model can see and potentially retry.
type Registry struct {
	locals map[string]Tool
	order  []string
	mcp    MCPDelegate
	hooks  HookRunner
}

// NewRegistry constructs a registry over the given local tools. hooks and
// mcp may be nil.
func NewRegistry(locals []Tool, mcp MCPDelegate, hooks HookRunner) *Registry {
	r := &Registry{
		locals: make(map[string]Tool, len(locals)),
		mcp:    mcp,
		hooks:  hooks,
	}
	for _, t := range locals {
		name := t.Definition().Name
		r.locals[name] = t
		r.order = append(r.order, name)
	}
	return r
}

// ListDefinitions returns every local tool definition followed by every
// MCP-delegated tool definition, in that order. A local name always wins a
// collision: an MCP tool sharing a local tool's name is dropped from the
// list rather than shadowing it.
func (r *Registry) ListDefinitions() []Definition {
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.locals[name].Definition())
	}
	if r.mcp == nil {
		return defs
	}
	for _, d := range r.mcp.ListTools() {
		if _, exists := r.locals[d.Name]; exists {
			continue
		}
		defs = append(defs, d)
	}
	return defs
}

// Execute resolves name to a local tool or an MCP delegate and runs it,
// firing pre/post hooks around the call and converting any error into the
// "error: <message>" text convention.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) string {
	argsJSON, _ := json.Marshal(args)
	if r.hooks != nil {
		r.hooks.RunPreTool(ctx, name, string(argsJSON))
	}

	result := r.executeInner(ctx, name, args)

	if r.hooks != nil {
		r.hooks.RunPostTool(ctx, name, result)
	}
	return result
}

func (r *Registry) executeInner(ctx context.Context, name string, args map[string]any) string {
	if tool, ok := r.locals[name]; ok {
		out, err := tool.Execute(ctx, args)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return out
	}
	if r.mcp != nil {
		out, handled, err := r.mcp.CallTool(ctx, name, args)
		if handled {
			if err != nil {
				return fmt.Sprintf("error: %v", err)
			}
			return out
		}
	}
	return fmt.Sprintf("error: unknown tool %q", name)
}
