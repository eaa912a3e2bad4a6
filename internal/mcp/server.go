// Package mcp implements the child-process JSON-RPC 2.0 tool subsystem.
// The wire protocol is line-delimited — one JSON document per line on both
// stdin and stdout — not Content-Length-prefixed: a single background
// reader goroutine owns the pending-request map, and a per-server mutex
// serializes only id allocation plus the write, not the wait for a
// response.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64 `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     int64 `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError `json:"error"`
}

type rpcError struct {
	Code    int `json:"code"`
	Message string `json:"message"`
}

// ToolInfo is one entry in a server's tools/list catalog.
type ToolInfo struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Server manages one child process speaking the line-delimited JSON-RPC
// dialect over its stdin/stdout pipes.
type Server struct {
	Name      string

	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader

	sendMu    sync.Mutex
	nextID    int64
	pendMu    sync.Mutex
	pending   map[int64]chan rpcResponse

	connected atomic.Bool
	stopCh    chan struct{}
}

// NewServer constructs a server for the given command/args/env; the
// process is not started until Start is called.
func NewServer(name, command string, args []string, env map[string]string) *Server {
	cmd := exec.Command(command, args...)
	if len(env) > 0 {
		cmd.Env = cmd.Environ()
		for k, v := range env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}
	return &Server{
		Name:    name,
		cmd:     cmd,
		pending: make(map[int64]chan rpcResponse),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the child process and begins the background reader.
func (s *Server) Start(ctx context.Context) error {
	stdin, err := s.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("mcp %s: stdin pipe: %w", s.Name, err)
	}
	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("mcp %s: stdout pipe: %w", s.Name, err)
	}
	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("mcp %s: start: %w", s.Name, err)
	}
	s.stdin = stdin
	s.stdout = bufio.NewReader(stdout)

	go s.readLoop()
	go func() {
		_ = s.cmd.Wait()
		close(s.stopCh)
		s.connected.Store(false)
	}()

	if err := s.handshake(ctx); err != nil {
		return err
	}
	s.connected.Store(true)
	return nil
}

// Stop sends SIGKILL to the child process and waits for it to exit.
func (s *Server) Stop() {
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		<-s.stopCh
	}
}

func (s *Server) handshake(ctx context.Context) error {
	initParams := map[string]any{
		"clientInfo": map[string]any{"name": "goclaw-lite", "version": uuid.NewString()[:8]},
		"capabilities": map[string]any{},
	}
	if _, err := s.request(ctx, "initialize", initParams); err != nil {
		return fmt.Errorf("mcp %s: initialize: %w", s.Name, err)
	}
	if err := s.notify("initialized", map[string]any{}); err != nil {
		return fmt.Errorf("mcp %s: initialized notification: %w", s.Name, err)
	}
	return nil
}

// readLoop is the single background reader: it consumes stdout line by
// line, pausing 100ms and retrying on an empty read (the child may not yet
// have output), and routes each decoded response by id to its pending
// waiter.
func (s *Server) readLoop() {
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		line, err := s.stdout.ReadString('\n')
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if err != nil {
				return // stdout closed with nothing left to read
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}

		var resp rpcResponse
		if jsonErr := json.Unmarshal([]byte(trimmed), &resp); jsonErr != nil {
			slog.Warn("mcp.server.bad_json", "server", s.Name, "error", jsonErr)
			if err != nil {
				return
			}
			continue
		}

		s.pendMu.Lock()
		ch, ok := s.pending[resp.ID]
		if ok {
			delete(s.pending, resp.ID)
		}
		s.pendMu.Unlock()
		if ok {
			ch <- resp
		}

		if err != nil {
			return
		}
	}
}

// request sends a JSON-RPC request and blocks until its response arrives or
// ctx is cancelled. Only id allocation and the write are serialized by
// sendMu; the wait happens outside the lock.
func (s *Server) request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	s.sendMu.Lock()
	s.nextID++
	id := s.nextID
	ch := make(chan rpcResponse, 1)
	s.pendMu.Lock()
	s.pending[id] = ch
	s.pendMu.Unlock()
	err := s.writeLine(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	s.sendMu.Unlock()
	if err != nil {
		s.pendMu.Lock()
		delete(s.pending, id)
		s.pendMu.Unlock()
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, fmt.Errorf("mcp %s: %s (code %d)", s.Name, resp.Error.Message, resp.Error.Code)
		}
		return resp.Result, nil
	case <-ctx.Done():
		s.pendMu.Lock()
		delete(s.pending, id)
		s.pendMu.Unlock()
		return nil, ctx.Err()
	}
}

// notify sends a JSON-RPC notification (no id, no response expected).
func (s *Server) notify(method string, params any) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.writeLine(rpcRequest{JSONRPC: "2.0", Method: method, Params: params})
}

func (s *Server) writeLine(req rpcRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = s.stdin.Write(append(payload, '\n'))
	return err
}

// ListTools issues tools/list and decodes the catalog, defaulting a missing
// input schema to {"type": "object"}.
func (s *Server) ListTools(ctx context.Context) ([]ToolInfo, error) {
	raw, err := s.request(ctx, "tools/list", map[string]any{})
	if err != nil {
		return nil, err
	}
	var decoded struct {
		Tools []struct {
			Name string `json:"name"`
			Description string `json:"description"`
			InputSchema map[string]any `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("mcp %s: decode tools/list: %w", s.Name, err)
	}
	out := make([]ToolInfo, 0, len(decoded.Tools))
	for _, t := range decoded.Tools {
		schema := t.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object"}
		}
		out = append(out, ToolInfo{Name: t.Name, Description: t.Description, InputSchema: schema})
	}
	return out, nil
}

// CallTool issues tools/call and joins text-type content items with "\n".
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	raw, err := s.request(ctx, "tools/call", map[string]any{"name": name, "arguments": args})
	if err != nil {
		return "", err
	}
	var decoded struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("mcp %s: decode tools/call result: %w", s.Name, err)
	}
	var parts []string
	for _, c := range decoded.Content {
		if c.Type == "text" {
			parts = append(parts, c.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n")), nil
}

// Connected reports whether the handshake succeeded and the process is
// still alive.
func (s *Server) Connected() bool { return s.connected.Load() }
