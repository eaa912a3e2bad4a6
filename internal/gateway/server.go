// Package gateway assembles every subsystem into the running process: it
// owns the bus, the agent runner, the channel manager, the MCP manager,
// cron, and heartbeat, and sequences their startup/shutdown. Grounded
// line-for-line on pyclaw gateway.py's Gateway/ChannelManager for this
// lifecycle sequencing — this gateway is a single-process message pump, not
// an admin API with its own RPC surface.
package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/nextlevelbuilder/goclaw-lite/internal/agent"
	"github.com/nextlevelbuilder/goclaw-lite/internal/bus"
	"github.com/nextlevelbuilder/goclaw-lite/internal/channels"
	"github.com/nextlevelbuilder/goclaw-lite/internal/channels/feishu"
	"github.com/nextlevelbuilder/goclaw-lite/internal/channels/slack"
	"github.com/nextlevelbuilder/goclaw-lite/internal/channels/telegram"
	"github.com/nextlevelbuilder/goclaw-lite/internal/channels/webui"
	"github.com/nextlevelbuilder/goclaw-lite/internal/config"
	"github.com/nextlevelbuilder/goclaw-lite/internal/cron"
	"github.com/nextlevelbuilder/goclaw-lite/internal/heartbeat"
	"github.com/nextlevelbuilder/goclaw-lite/internal/mcp"
	"github.com/nextlevelbuilder/goclaw-lite/internal/runtime"
)

const defaultMaxConcurrency = 4

// Gateway is the assembled, runnable process.
type Gateway struct {
	cfg          *config.Config
	bus          *bus.MessageBus

	runtime      *runtime.Runtime
	agent        *agent.Runner

	channels     *channels.Manager
	mcp          *mcp.Manager
	cron         *cron.Service
	heart        *heartbeat.Service

	sem          *concurrencyLimiter
	httpServer   *http.Server

	sessionLocks sync.Map // sessionID string -> *sync.Mutex

	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// New assembles every subsystem from cfg but starts nothing yet.
func New(cfg *config.Config) *Gateway {
	msgBus := bus.NewMessageBus()

	rt := runtime.New(runtime.Config{
		Type:    runtime.ProviderType(cfg.Provider.Type),
		APIKey:  cfg.Provider.APIKey,
		BaseURL: cfg.Provider.BaseURL,
		Model:   cfg.Agent.Model,
	})

	mcpMgr := mcp.NewManager()

	runner := agent.New(agentConfigFrom(cfg), rt, mcpMgr)

	chMgr := channels.NewManager()
	registerChannels(chMgr, cfg, msgBus)

	cronPath := filepath.Join(config.ExpandHome("~/.ember"), "data", "cron", "jobs.json")
	g := &Gateway{
		cfg:      cfg,
		bus:      msgBus,
		runtime:  rt,
		agent:    runner,
		channels: chMgr,
		mcp:      mcpMgr,
		sem:      newConcurrencyLimiter(maxConcurrency(cfg)),
	}

	g.cron = cron.NewService(cronPath, g.runCronJob)
	g.heart = heartbeat.New(config.ExpandHome(cfg.Agent.Workspace), 0, g.runHeartbeat)

	return g
}

func agentConfigFrom(cfg *config.Config) agent.Config {
	return agent.Config{
		Workspace:                cfg.Agent.Workspace,
		RestrictToWorkspace:      cfg.Agent.RestrictToWorkspace,
		Model:                    cfg.Agent.Model,
		MaxTokens:                cfg.Agent.MaxTokens,
		Temperature:              cfg.Agent.Temperature,
		MaxToolIterations:        cfg.Agent.MaxToolIterations,
		ProviderType:             cfg.Provider.Type,
		ExecTimeoutSeconds:       cfg.Tools.ExecTimeoutSeconds,
		SkillsEnabled:            cfg.Skills.Enabled,
		SkillsDir:                cfg.Skills.Dir,
		MCPServerNames:           mcpServerNames(cfg),
		Hooks:                    cfg.Hooks,
		AutoCompactThreshold:     cfg.AutoCompact.Threshold,
		AutoCompactPreserveCount: cfg.AutoCompact.PreserveCount,
		TokenTrackingEnabled:     cfg.TokenTracking.Enabled,
		TokenTrackingPath:        cfg.TokenTracking.Path,
	}
}

// webUIAllowList merges the single legacy WebUI.Token field (a convenience
// for the common single-client-token setup) into the general AllowList, so
// a caller who only set one still gets its enforcement.
func webUIAllowList(cfg *config.Config) []string {
	allow := []string(cfg.Channels.WebUI.AllowList)
	if cfg.Channels.WebUI.Token == "" {
		return allow
	}
	for _, a := range allow {
		if a == cfg.Channels.WebUI.Token {
			return allow
		}
	}
	return append(append([]string{}, allow...), cfg.Channels.WebUI.Token)
}

func mcpServerNames(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.MCP.Servers))
	for _, s := range cfg.MCP.Servers {
		names = append(names, s.Name)
	}
	return names
}

func maxConcurrency(cfg *config.Config) int {
	if cfg.Gateway.MaxConcurrency > 0 {
		return cfg.Gateway.MaxConcurrency
	}
	return defaultMaxConcurrency
}

func registerChannels(mgr *channels.Manager, cfg *config.Config, msgBus *bus.MessageBus) {
	if cfg.Channels.Telegram.Enabled {
		mgr.Register(telegram.New(cfg.Channels.Telegram.Token, cfg.Channels.Telegram.AllowList, msgBus))
	}
	if cfg.Channels.Feishu.Enabled {
		mgr.Register(feishu.New(cfg.Channels.Feishu.AppID, cfg.Channels.Feishu.AppSecret,
			cfg.Channels.Feishu.VerificationToken, cfg.Channels.Feishu.AllowList, msgBus))
	}
	if cfg.Channels.Slack.Enabled {
		mgr.Register(slack.New(cfg.Channels.Slack.SigningSecret, cfg.Channels.Slack.BotToken, cfg.Channels.Slack.AllowList, msgBus))
	}
	if cfg.Channels.WebUI.Enabled {
		mgr.Register(webui.New(webUIAllowList(cfg), msgBus))
	}

	for _, name := range mgr.Names() {
		ch, _ := mgr.Get(name)
		msgBus.Subscribe(name, func(m bus.OutboundMessage) error {
			return ch.Send(context.Background(), m)
		}, 0)
	}
}

// Run starts every subsystem and blocks until ctx is cancelled, then runs
// the shutdown sequence before returning.
func (g *Gateway) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel

	if len(g.cfg.MCP.Servers) > 0 {
		g.mcp.Start(runCtx, mcpServerConfigs(g.cfg))
	}
	if err := g.channels.StartAll(runCtx); err != nil {
		slog.Error("gateway.channels_start_failed", "error", err)
	}
	g.startHTTPServer(g.cfg)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.bus.Dispatch(runCtx)
	}()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.pumpLoop(runCtx)
	}()

	if err := g.cron.Start(runCtx); err != nil {
		slog.Error("gateway.cron_start_failed", "error", err)
	}
	g.heart.Start(runCtx)

	<-runCtx.Done()
	g.Shutdown()
	return nil
}

// Stop requests a graceful shutdown.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
}

// Shutdown cancels every background task, then stops cron, heartbeat, the
// HTTP server, channels, and MCP in that order, matching pyclaw's shutdown
// sequence.
func (g *Gateway) Shutdown() {
	if g.cancel != nil {
		g.cancel()
	}
	g.wg.Wait()

	g.cron.Stop()
	g.heart.Stop()
	g.stopHTTPServer()
	if err := g.channels.StopAll(context.Background()); err != nil {
		slog.Error("gateway.channels_stop_failed", "error", err)
	}
	g.mcp.Stop()
}

func mcpServerConfigs(cfg *config.Config) []mcp.ServerConfig {
	out := make([]mcp.ServerConfig, 0, len(cfg.MCP.Servers))
	for _, s := range cfg.MCP.Servers {
		out = append(out, mcp.ServerConfig{Name: s.Name, Command: s.Command, Args: s.Args, Env: s.Env})
	}
	return out
}

// pumpLoop consumes inbound messages and dispatches each to a bounded pool
// of concurrent handlers.
func (g *Gateway) pumpLoop(ctx context.Context) {
	for {
		msg, ok := g.bus.ConsumeInbound(ctx)
		if !ok {
			return
		}
		g.sem.Acquire(ctx)
		g.wg.Add(1)
		go func(m bus.InboundMessage) {
			defer g.wg.Done()
			defer g.sem.Release()
			g.handleMessage(ctx, m)
		}(msg)
	}
}

// handleMessage runs one inbound message through the agent, serialized per
// session key, and publishes the reply. Any panic or error from the agent
// is mapped to a fixed apology string, matching pyclaw's outer
// try/except Exception around _handle_message.
func (g *Gateway) handleMessage(ctx context.Context, msg bus.InboundMessage) {
	lock := g.sessionLock(msg.SessionKey())
	lock.Lock()
	defer lock.Unlock()

	result := g.runAgentSafely(ctx, msg.SessionKey(), msg.Content, msg.Blocks)
	if result == "" {
		return
	}
	result = truncateMessage(result, g.cfg.Gateway.MaxMessageChars)
	_ = g.bus.PublishOutbound(ctx, bus.OutboundMessage{Channel: msg.Channel, ChatID: msg.ChatID, Content: result})
}

func (g *Gateway) runAgentSafely(ctx context.Context, sessionKey, content string, blocks []bus.ContentBlock) (result string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("gateway.agent_panicked", "panic", r)
			result = "Sorry, I encountered an error processing your message."
		}
	}()

	text, err := g.agent.Run(ctx, sessionKey, content, blocks)
	if err != nil {
		slog.Error("gateway.agent_run_failed", "error", err)
		return "Sorry, I encountered an error processing your message."
	}
	return text
}

func (g *Gateway) sessionLock(sessionKey string) *sync.Mutex {
	v, _ := g.sessionLocks.LoadOrStore(sessionKey, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (g *Gateway) runCronJob(ctx context.Context, job *cron.Job) (cron.RunResult, error) {
	text, err := g.agent.Run(ctx, "system", job.Payload.Message, nil)
	if err != nil {
		return cron.RunResult{}, err
	}
	if job.Payload.Deliver && job.Payload.Channel != "" {
		delivered := truncateMessage(text, g.cfg.Gateway.MaxMessageChars)
		_ = g.bus.PublishOutbound(ctx, bus.OutboundMessage{Channel: job.Payload.Channel, ChatID: job.Payload.To, Content: delivered})
	}
	return cron.RunResult{Content: text}, nil
}

// truncateMessage caps an outbound reply at limit runes, leaving the underlying channel's
// own transport-level splitting — if any — to operate on an already-bounded
// string. limit <= 0 disables truncation.
func truncateMessage(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "…"
}

func (g *Gateway) runHeartbeat(ctx context.Context, prompt string) (string, error) {
	return g.agent.Run(ctx, "system", prompt, nil)
}
