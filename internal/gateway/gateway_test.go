package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/goclaw-lite/internal/config"
)

func TestConcurrencyLimiterBoundsConcurrentAcquires(t *testing.T) {
	lim := newConcurrencyLimiter(2)
	ctx := context.Background()

	lim.Acquire(ctx)
	lim.Acquire(ctx)

	acquired := make(chan struct{})
	go func() {
		lim.Acquire(ctx)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("third Acquire should have blocked while two slots are held")
	case <-time.After(50 * time.Millisecond):
	}

	lim.Release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("third Acquire should have unblocked after a Release")
	}
}

func TestConcurrencyLimiterAcquireRespectsContextCancellation(t *testing.T) {
	lim := newConcurrencyLimiter(1)
	lim.Acquire(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		lim.Acquire(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Acquire did not return after context cancellation")
	}
}

func TestConcurrencyLimiterNonPositiveDefaultsToOne(t *testing.T) {
	lim := newConcurrencyLimiter(0)
	if cap(lim.slots) != 1 {
		t.Fatalf("expected capacity 1, got %d", cap(lim.slots))
	}
}

func TestMaxConcurrencyFallsBackToDefault(t *testing.T) {
	cfg := &config.Config{}
	if got := maxConcurrency(cfg); got != defaultMaxConcurrency {
		t.Fatalf("expected default %d, got %d", defaultMaxConcurrency, got)
	}
	cfg.Gateway.MaxConcurrency = 9
	if got := maxConcurrency(cfg); got != 9 {
		t.Fatalf("expected configured 9, got %d", got)
	}
}

func TestAgentConfigFromMapsFields(t *testing.T) {
	cfg := &config.Config{}
	cfg.Agent.Workspace = "/tmp/workspace"
	cfg.Agent.RestrictToWorkspace = true
	cfg.Agent.Model = "claude-sonnet-4-5-20250929"
	cfg.Agent.MaxTokens = 4096
	cfg.Agent.Temperature = 0.5
	cfg.Agent.MaxToolIterations = 6
	cfg.Provider.Type = "anthropic"
	cfg.Tools.ExecTimeoutSeconds = 30
	cfg.Skills.Enabled = true
	cfg.Skills.Dir = "/tmp/skills"
	cfg.MCP.Servers = []config.MCPServerConfig{{Name: "fs"}, {Name: "search"}}
	cfg.AutoCompact.Threshold = 0.8
	cfg.AutoCompact.PreserveCount = 5
	cfg.TokenTracking.Enabled = true
	cfg.TokenTracking.Path = "/tmp/usage.jsonl"

	got := agentConfigFrom(cfg)

	if got.Workspace != cfg.Agent.Workspace || !got.RestrictToWorkspace {
		t.Fatalf("workspace fields not mapped: %+v", got)
	}
	if got.Model != cfg.Agent.Model || got.MaxTokens != cfg.Agent.MaxTokens || got.Temperature != cfg.Agent.Temperature {
		t.Fatalf("model tunables not mapped: %+v", got)
	}
	if got.ProviderType != "anthropic" {
		t.Fatalf("expected provider type mapped, got %q", got.ProviderType)
	}
	if got.ExecTimeoutSeconds != 30 {
		t.Fatalf("expected exec timeout mapped, got %d", got.ExecTimeoutSeconds)
	}
	if !got.SkillsEnabled || got.SkillsDir != "/tmp/skills" {
		t.Fatalf("skills fields not mapped: %+v", got)
	}
	if len(got.MCPServerNames) != 2 || got.MCPServerNames[0] != "fs" || got.MCPServerNames[1] != "search" {
		t.Fatalf("expected mcp server names mapped, got %v", got.MCPServerNames)
	}
	if got.AutoCompactThreshold != 0.8 || got.AutoCompactPreserveCount != 5 {
		t.Fatalf("autocompact fields not mapped: %+v", got)
	}
	if !got.TokenTrackingEnabled || got.TokenTrackingPath != "/tmp/usage.jsonl" {
		t.Fatalf("token tracking fields not mapped: %+v", got)
	}
}

func TestMcpServerConfigsConvertsEveryEntry(t *testing.T) {
	cfg := &config.Config{}
	cfg.MCP.Servers = []config.MCPServerConfig{
		{Name: "fs", Command: "mcp-fs", Args: []string{"--root", "."}, Env: map[string]string{"X": "1"}},
	}
	out := mcpServerConfigs(cfg)
	if len(out) != 1 || out[0].Name != "fs" || out[0].Command != "mcp-fs" || len(out[0].Args) != 2 {
		t.Fatalf("unexpected conversion: %+v", out)
	}
}

func TestSessionLockIsPerKeyAndReused(t *testing.T) {
	g := &Gateway{}

	a1 := g.sessionLock("telegram:1")
	a2 := g.sessionLock("telegram:1")
	if a1 != a2 {
		t.Fatal("expected the same mutex for the same session key")
	}

	b := g.sessionLock("telegram:2")
	if a1 == b {
		t.Fatal("expected distinct mutexes for distinct session keys")
	}
}

func TestWebUIAllowListMergesLegacyToken(t *testing.T) {
	cfg := &config.Config{}
	cfg.Channels.WebUI.Token = "shared-token"
	cfg.Channels.WebUI.AllowList = config.FlexibleStringSlice{"alice"}

	got := webUIAllowList(cfg)
	if len(got) != 2 || got[0] != "alice" || got[1] != "shared-token" {
		t.Fatalf("expected allow-list + token merged, got %v", got)
	}
}

func TestWebUIAllowListSkipsDuplicateToken(t *testing.T) {
	cfg := &config.Config{}
	cfg.Channels.WebUI.Token = "alice"
	cfg.Channels.WebUI.AllowList = config.FlexibleStringSlice{"alice"}

	got := webUIAllowList(cfg)
	if len(got) != 1 {
		t.Fatalf("expected no duplicate entry, got %v", got)
	}
}

func TestWebUIAllowListEmptyTokenLeavesListUnchanged(t *testing.T) {
	cfg := &config.Config{}
	cfg.Channels.WebUI.AllowList = config.FlexibleStringSlice{"alice"}

	got := webUIAllowList(cfg)
	if len(got) != 1 || got[0] != "alice" {
		t.Fatalf("expected unchanged list, got %v", got)
	}
}

func TestSessionLockSerializesConcurrentHandlers(t *testing.T) {
	g := &Gateway{}
	var mu sync.Mutex
	inside := 0
	maxInside := 0
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock := g.sessionLock("same-key")
			lock.Lock()
			defer lock.Unlock()

			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("expected at most one goroutine inside the critical section at a time, saw %d", maxInside)
	}
}

func TestTruncateMessageNoLimitReturnsUnchanged(t *testing.T) {
	if got := truncateMessage("hello", 0); got != "hello" {
		t.Fatalf("expected unchanged string, got %q", got)
	}
}

func TestTruncateMessageUnderLimitReturnsUnchanged(t *testing.T) {
	if got := truncateMessage("hello", 10); got != "hello" {
		t.Fatalf("expected unchanged string, got %q", got)
	}
}

func TestTruncateMessageOverLimitCutsAndMarksIt(t *testing.T) {
	got := truncateMessage("hello world", 5)
	if got != "hello…" {
		t.Fatalf("expected truncated string with ellipsis marker, got %q", got)
	}
}
