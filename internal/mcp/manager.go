package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nextlevelbuilder/goclaw-lite/internal/tools"
	"golang.org/x/sync/errgroup"
)

// ServerConfig describes one configured child-process tool server.
type ServerConfig struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
}

// ServerStatus reports one server's observable state.
type ServerStatus struct {
	Name      string
	Connected bool
	ToolCount int
	Error     string
}

// Manager owns all configured MCP servers, builds a flat tool-name →
// server map at startup (last writer wins on a name collision across
// servers — local tools always win at the Registry level above this), and
// delegates CallTool accordingly.
type Manager struct {
	mu        sync.RWMutex
	servers   map[string]*Server
	toolOwner map[string]*Server
	toolInfo  map[string]ToolInfo
	toolOrder []string // tool names in connection order, for a stable catalog
	names     []string // server names the agent's system prompt lists
}

// NewManager constructs an empty manager; call Start to connect the
// configured servers.
func NewManager() *Manager {
	return &Manager{
		servers:   make(map[string]*Server),
		toolOwner: make(map[string]*Server),
		toolInfo:  make(map[string]ToolInfo),
	}
}

// connectedServer is one successfully connected server. Start places these
// into a config-order-indexed slice so it can register servers
// deterministically even though they connect concurrently.
type connectedServer struct {
	cfg   ServerConfig
	srv   *Server
	tools []ToolInfo
}

// Start connects every configured server concurrently — each server is an
// independent subprocess handshake, so one slow server's startup doesn't
// serialize behind the others. A server that fails to connect is logged
// and skipped — non-fatal, so one misconfigured server never blocks the
// rest of the gateway from starting.
func (m *Manager) Start(ctx context.Context, configs []ServerConfig) {
	results := make([]*connectedServer, len(configs))

	g, gctx := errgroup.WithContext(ctx)
	for i, cfg := range configs {
		i, cfg := i, cfg
		g.Go(func() error {
			srv := NewServer(cfg.Name, cfg.Command, cfg.Args, cfg.Env)
			if err := srv.Start(gctx); err != nil {
				slog.Warn("mcp.server.start_failed", "server", cfg.Name, "error", err)
				return nil
			}
			catalog, err := srv.ListTools(gctx)
			if err != nil {
				slog.Warn("mcp.server.list_tools_failed", "server", cfg.Name, "error", err)
				srv.Stop()
				return nil
			}
			results[i] = &connectedServer{cfg: cfg, srv: srv, tools: catalog}
			return nil
		})
	}
	_ = g.Wait() // each goroutine only logs and returns nil; Wait never surfaces an error

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range results {
		if r == nil {
			continue
		}
		m.servers[r.cfg.Name] = r.srv
		m.names = append(m.names, r.cfg.Name)
		for _, t := range r.tools {
			if _, exists := m.toolOwner[t.Name]; exists {
				slog.Warn("mcp.tool.name_collision", "server", r.cfg.Name, "tool", t.Name, "action", "last_writer_wins")
			} else {
				m.toolOrder = append(m.toolOrder, t.Name)
			}
			m.toolOwner[t.Name] = r.srv
			m.toolInfo[t.Name] = t
		}
		slog.Info("mcp.server.connected", "server", r.cfg.Name, "tools", len(r.tools))
	}
}

// ServerNames returns the connected server names, for the agent's system
// prompt.
func (m *Manager) ServerNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.names...)
}

// ListTools implements tools.MCPDelegate: it surfaces every connected
// server's tools/list catalog as tool definitions, in connection order, so
// Registry.ListDefinitions can merge them into the catalog sent to the
// model.
func (m *Manager) ListTools() []tools.Definition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	defs := make([]tools.Definition, 0, len(m.toolOrder))
	for _, name := range m.toolOrder {
		info := m.toolInfo[name]
		defs = append(defs, tools.Definition{Name: info.Name, Description: info.Description, Parameters: info.InputSchema})
	}
	return defs
}

// CallTool implements tools.MCPDelegate: it reports handled=false when no
// server owns this tool name so the registry can return "unknown tool".
func (m *Manager) CallTool(ctx context.Context, name string, args map[string]any) (string, bool, error) {
	m.mu.RLock()
	srv, ok := m.toolOwner[name]
	m.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	result, err := srv.CallTool(ctx, name, args)
	if err != nil {
		return "", true, fmt.Errorf("mcp tool %q: %w", name, err)
	}
	return result, true, nil
}

// Status reports every connected server's observable state.
func (m *Manager) Status() []ServerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ServerStatus, 0, len(m.servers))
	for name, srv := range m.servers {
		count := 0
		for _, owner := range m.toolOwner {
			if owner == srv {
				count++
			}
		}
		out = append(out, ServerStatus{Name: name, Connected: srv.Connected(), ToolCount: count})
	}
	return out
}

// Stop terminates all child processes.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, srv := range m.servers {
		srv.Stop()
	}
}
