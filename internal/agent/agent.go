// Package agent implements AgentRunner: the per-message orchestration loop
// that builds the system prompt, drives the dialect-appropriate
// tool-calling exchange with Runtime, and persists the resulting turns to a
// Conversation. Grounded directly on pyclaw agent.py's AgentRunner.run() —
// this is a single-tenant loop, not the multi-tenant delegation/sandboxing/
// bootstrap-seeding control plane a managed deployment would need.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nextlevelbuilder/goclaw-lite/internal/bus"
	"github.com/nextlevelbuilder/goclaw-lite/internal/conversation"
	"github.com/nextlevelbuilder/goclaw-lite/internal/hooks"
	"github.com/nextlevelbuilder/goclaw-lite/internal/memory"
	"github.com/nextlevelbuilder/goclaw-lite/internal/providers"
	"github.com/nextlevelbuilder/goclaw-lite/internal/runtime"
	"github.com/nextlevelbuilder/goclaw-lite/internal/skills"
	"github.com/nextlevelbuilder/goclaw-lite/internal/tokentracking"
	"github.com/nextlevelbuilder/goclaw-lite/internal/tools"
	"github.com/nextlevelbuilder/goclaw-lite/internal/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxIterationsMsg is the user-visible fallback reply returned when the tool
// loop runs out of iterations.
const maxIterationsMsg = "Sorry, I reached the maximum tool iterations."

// Config parameterizes one Runner. It is a flattened projection of
// config.Config's agent-relevant fields — agent deliberately doesn't import
// the config package, mirroring how internal/runtime and internal/tracing each
// define their own narrow Config rather than depending on the whole
// document.
type Config struct {
	Workspace                string
	RestrictToWorkspace      bool
	Model                    string
	MaxTokens                int
	Temperature              float64
	MaxToolIterations        int
	ProviderType             string // "anthropic" selects that dialect; anything else is OpenAI-shaped

	ExecTimeoutSeconds       int

	SkillsEnabled            bool
	SkillsDir                string

	MCPServerNames           []string

	Hooks                    hooks.Config

	AutoCompactThreshold     float64
	AutoCompactPreserveCount int

	TokenTrackingEnabled     bool
	TokenTrackingPath        string
}

func (c Config) isAnthropic() bool {
	return strings.EqualFold(strings.TrimSpace(c.ProviderType), "anthropic")
}

// Runner is one configured AgentRunner instance.
type Runner struct {
	cfg     Config
	rt      *runtime.Runtime
	memory  *memory.Store
	skills  []skills.Skill
	prompt  string
	store   *conversation.Store
	hooks   *hooks.Manager
	tools   *tools.Registry
	tracker *tokentracking.Tracker
}

// New constructs a Runner, loading prompt files and skills from the
// workspace and wiring a ToolRegistry over the local filesystem/shell tools
// plus the given MCP delegate (may be nil; the gateway and the agent CLI
// always pass an mcp.Manager, which holds no servers when none are
// configured).
func New(cfg Config, rt *runtime.Runtime, mcp tools.MCPDelegate) *Runner {
	hookMgr := hooks.NewManager(cfg.Hooks)

	locals := []tools.Tool{
		tools.NewReadFileTool(cfg.Workspace, cfg.RestrictToWorkspace),
		tools.NewWriteFileTool(cfg.Workspace, cfg.RestrictToWorkspace),
		tools.NewListDirTool(cfg.Workspace, cfg.RestrictToWorkspace),
		tools.NewExecTool(cfg.Workspace, time.Duration(cfg.ExecTimeoutSeconds)*time.Second),
	}

	r := &Runner{
		cfg:    cfg,
		rt:     rt,
		memory: memory.NewStore(cfg.Workspace),
		hooks:  hookMgr,
		tools:  tools.NewRegistry(locals, mcp, hookMgr),
		store:  conversation.NewStore(cfg.MaxTokens, cfg.AutoCompactThreshold, cfg.AutoCompactPreserveCount),
	}

	if cfg.SkillsEnabled {
		dir := cfg.SkillsDir
		if dir == "" {
			dir = skills.PickDir(cfg.Workspace)
		}
		r.skills = skills.Load(dir)
	}

	if cfg.TokenTrackingEnabled && cfg.TokenTrackingPath != "" {
		tracker, err := tokentracking.NewTracker(cfg.TokenTrackingPath)
		if err != nil {
			slog.Warn("agent.token_tracker_init_failed", "error", err)
		} else {
			r.tracker = tracker
		}
	}

	r.prompt = readPromptFiles(cfg.Workspace)
	return r
}

// readPromptFiles assembles the base persona prompt from PROMPT.md +
// PERSONA.md, falling back to the legacy AGENTS.md + SOUL.md names when
// neither of the new files exists (pyclaw agent.py _read_prompt_files).
func readPromptFiles(workspace string) string {
	read := func(name string) string {
		data, err := os.ReadFile(filepath.Join(workspace, name))
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(data))
	}

	var parts []string
	if p := read("PROMPT.md"); p != "" {
		parts = append(parts, p)
	}
	if p := read("PERSONA.md"); p != "" {
		parts = append(parts, p)
	}
	if len(parts) == 0 {
		if p := read("AGENTS.md"); p != "" {
			parts = append(parts, p)
		}
		if p := read("SOUL.md"); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n")
}

// buildSystemPrompt assembles the base prompt, memory context, MCP server
// roster, matched-skill bodies, and running summary into one system prompt
// (pyclaw agent.py _build_system_prompt).
func (r *Runner) buildSystemPrompt(message, summary string) string {
	var parts []string
	if r.prompt != "" {
		parts = append(parts, r.prompt)
	}
	if mem := r.memory.Context(); mem != "" {
		parts = append(parts, mem)
	}
	if len(r.cfg.MCPServerNames) > 0 {
		parts = append(parts, "# MCP Servers\n"+strings.Join(r.cfg.MCPServerNames, "\n"))
	}
	if matched := skills.Match(r.skills, message); len(matched) > 0 {
		var blocks []string
		for _, s := range matched {
			if s.Body != "" {
				blocks = append(blocks, fmt.Sprintf("# Skill: %s\n%s", s.Name, s.Body))
			}
		}
		if len(blocks) > 0 {
			parts = append(parts, strings.Join(blocks, "\n\n"))
		}
	}
	if summary != "" {
		parts = append(parts, "# Summary\n"+summary)
	}
	return strings.Join(parts, "\n\n")
}

// recordUsage converts a provider usage into a tracked record and appends
// it, swallowing a zero-usage result or a write failure.
func (r *Runner) recordUsage(usage runtime.TokenUsage) {
	if r.tracker == nil {
		return
	}
	rec, ok := tokentracking.BuildUsage(r.cfg.ProviderType, r.cfg.Model, usage)
	if !ok {
		return
	}
	if err := r.tracker.Record(rec); err != nil {
		slog.Warn("agent.token_record_failed", "error", err)
	}
}

// Run executes one full message turn for sessionID: appends the user turn
// (with any attached image/document content blocks), runs the document
// side-channel when applicable, compacts the conversation if it has grown
// past the configured threshold, then drives the tool-calling loop up to
// MaxToolIterations before falling back to the maximum-iterations message.
func (r *Runner) Run(ctx context.Context, sessionID, prompt string, blocks []bus.ContentBlock) (string, error) {
	ctx, span := tracing.Tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("goclaw.session_id", sessionID),
		attribute.String("goclaw.model", r.cfg.Model),
	))
	defer span.End()

	text, err := r.run(ctx, sessionID, prompt, blocks)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return text, err
}

func (r *Runner) run(ctx context.Context, sessionID, prompt string, blocks []bus.ContentBlock) (string, error) {
	conv := r.store.Get(sessionID)

	r.addUserTurn(conv, prompt, blocks)
	r.maybeAttachDocumentContext(ctx, conv, prompt, blocks)
	r.maybeCompact(ctx, conv)

	iterations := r.cfg.MaxToolIterations
	if iterations < 1 {
		iterations = 1
	}

	for i := 0; i < iterations; i++ {
		systemPrompt := r.buildSystemPrompt(prompt, conv.Summary)
		defs := r.tools.ListDefinitions()

		toolDefs := make([]runtime.ToolDef, 0, len(defs))
		for _, d := range defs {
			toolDefs = append(toolDefs, runtime.ToolDef{Name: d.Name, Description: d.Description, Parameters: d.Parameters})
		}

		result, err := r.chatWithTools(ctx, systemPrompt, conv, toolDefs)
		if err != nil {
			return "", err
		}
		r.recordUsage(result.Usage)

		if r.cfg.isAnthropic() {
			if len(result.ToolUses) > 0 {
				r.runAnthropicToolTurn(ctx, conv, result)
				continue
			}
		} else if len(result.ToolCalls) > 0 {
			r.runOpenAIToolTurn(ctx, conv, result)
			continue
		}

		if result.Text != "" {
			text := SanitizeAssistantContent(result.Text)
			conv.AddAssistantText(text)
			r.hooks.RunStop(ctx, text)
			return text, nil
		}
	}

	r.hooks.RunStop(ctx, maxIterationsMsg)
	return maxIterationsMsg, nil
}

// addUserTurn appends the user's turn, rendering attached image/document
// blocks into the dialect-appropriate shape (pyclaw agent.py run(), the
// content_blocks branch).
func (r *Runner) addUserTurn(conv *conversation.Conversation, prompt string, blocks []bus.ContentBlock) {
	if len(blocks) == 0 {
		conv.AddUserText(prompt)
		return
	}

	if r.cfg.isAnthropic() {
		parts := []conversation.ContentPart{{Type: conversation.PartText, Text: prompt}}
		for _, b := range blocks {
			switch b.Type {
			case "image":
				if b.Data != "" && b.MediaType != "" {
					parts = append(parts, conversation.ContentPart{Type: conversation.PartImage, MediaType: b.MediaType, Data: b.Data})
				}
			case "document":
				if b.Data != "" && b.MediaType != "" {
					parts = append(parts, conversation.ContentPart{Type: conversation.PartDocument, MediaType: b.MediaType, Data: b.Data})
				}
			}
		}
		conv.AddUserParts(parts)
		return
	}

	parts := []conversation.ContentPart{{Type: conversation.PartText, Text: prompt}}
	for _, b := range blocks {
		switch b.Type {
		case "image":
			if b.Data != "" && b.MediaType != "" {
				parts = append(parts, conversation.ContentPart{Type: conversation.PartImageURL, MediaType: b.MediaType, Data: b.Data})
			}
		case "document":
			parts = append(parts, conversation.ContentPart{Type: conversation.PartText, Text: "[document]"})
		}
	}
	conv.AddUserParts(parts)
}

// maybeAttachDocumentContext runs the OpenAI-only document side-channel
// 's doc_context block): on any
// failure it silently leaves the conversation unchanged, a second layer of
// the same swallow-and-continue behavior already present inside
// Runtime.DocumentContext itself.
func (r *Runner) maybeAttachDocumentContext(ctx context.Context, conv *conversation.Conversation, prompt string, blocks []bus.ContentBlock) {
	if r.cfg.isAnthropic() {
		return
	}
	var docs []bus.ContentBlock
	for _, b := range blocks {
		if b.Type == "document" {
			docs = append(docs, b)
		}
	}
	if len(docs) == 0 {
		return
	}

	func() {
		defer func() { recover() }()

		docPrompt := "Read the attached documents and extract the key factual details needed to answer the user's request. " +
			"Return concise notes without analysis.\n\nUser request:\n" + prompt
		maxTokens := r.cfg.MaxTokens
		if maxTokens > 1024 {
			maxTokens = 1024
		}
		text, usage, err := r.rt.DocumentContext(ctx, "You are a precise document reader.", docPrompt, docs, r.cfg.Model, maxTokens, 0.2)
		if err != nil {
			return
		}
		r.recordUsage(usage)
		text = strings.TrimSpace(text)
		if text != "" {
			conv.AppendToLastUserText("[Document context]\n" + text)
		}
	}()
}

// maybeCompact summarizes and trims conv when it has grown past the
// configured threshold (pyclaw agent.py _maybe_compact).
func (r *Runner) maybeCompact(ctx context.Context, conv *conversation.Conversation) {
	if !r.store.ShouldCompact(conv) {
		return
	}
	dropped := r.store.CompactMessages(conv)
	if len(dropped) == 0 {
		return
	}

	maxTokens := r.cfg.MaxTokens
	if maxTokens > 512 {
		maxTokens = 512
	}
	summary, _, err := r.rt.Run(ctx, runtime.Request{
		Prompt:       "Summarize the following conversation succinctly, keep important facts and decisions:\n" + conversation.TurnsToText(dropped),
		SystemPrompt: "You are a concise summarizer.",
		Model:        r.cfg.Model,
		MaxTokens:    maxTokens,
		Temperature:  0.2,
	})
	if err != nil {
		slog.Warn("agent.compact_summarize_failed", "error", err)
		return
	}
	conv.Summary = strings.TrimSpace(summary)
}

// chatWithTools wraps runtime.ChatWithTools in a "runtime.chat" span,
// matching SPEC_FULL.md's ambient tracing of the dialect-specific model
// call that drives each tool-loop iteration.
func (r *Runner) chatWithTools(ctx context.Context, systemPrompt string, conv *conversation.Conversation, toolDefs []runtime.ToolDef) (*runtime.ToolResult, error) {
	ctx, span := tracing.Tracer.Start(ctx, "runtime.chat", trace.WithAttributes(
		attribute.String("goclaw.model", r.cfg.Model),
		attribute.Int("goclaw.tool_count", len(toolDefs)),
	))
	defer span.End()

	result, err := r.rt.ChatWithTools(ctx, systemPrompt, conv, toolDefs, r.cfg.Model, r.cfg.MaxTokens, r.cfg.Temperature)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

// execTool wraps ToolRegistry.Execute in a "tools.execute" span.
func (r *Runner) execTool(ctx context.Context, name string, input map[string]any) string {
	ctx, span := tracing.Tracer.Start(ctx, "tools.execute", trace.WithAttributes(
		attribute.String("goclaw.tool_name", name),
	))
	defer span.End()
	return r.tools.Execute(ctx, name, input)
}

func (r *Runner) runAnthropicToolTurn(ctx context.Context, conv *conversation.Conversation, result *runtime.ToolResult) {
	parts := make([]conversation.ContentPart, 0, len(result.ToolUses)+1)
	if result.Text != "" {
		parts = append(parts, conversation.ContentPart{Type: conversation.PartText, Text: result.Text})
	}
	for _, use := range result.ToolUses {
		parts = append(parts, anthropicBlockToToolUsePart(use))
	}
	conv.AddAnthropicAssistantBlocks(parts)

	var results []conversation.ContentPart
	for _, use := range result.ToolUses {
		if use.ID == "" || use.Name == "" {
			continue
		}
		out := r.execTool(ctx, use.Name, use.Input)
		results = append(results, conversation.ContentPart{Type: conversation.PartToolResult, ToolResultID: use.ID, ToolResultText: out})
	}
	if len(results) > 0 {
		conv.AddAnthropicToolResults(results)
	}
}

func anthropicBlockToToolUsePart(b providers.AnthropicBlock) conversation.ContentPart {
	return conversation.ContentPart{
		Type:      conversation.PartToolUse,
		ToolUseID: b.ID,
		ToolName:  b.Name,
		ToolInput: b.Input,
	}
}

func (r *Runner) runOpenAIToolTurn(ctx context.Context, conv *conversation.Conversation, result *runtime.ToolResult) {
	conv.AddOpenAIToolCalls(result.Text, result.ToolCalls)
	for _, call := range result.ToolCalls {
		if call.Name == "" {
			continue
		}
		args := runtime.DecodeOpenAIArguments(call.Arguments)
		out := r.execTool(ctx, call.Name, args)
		conv.AddOpenAIToolResult(call.ID, call.Name, out)
	}
}
