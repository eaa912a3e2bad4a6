// Package heartbeat implements the periodic self-check the gateway runs
// against PULSE.md: every interval, if the workspace carries a
// PULSE.md (or the legacy HEARTBEAT.md) with non-empty content, it's fed
// to the agent as a prompt. Service discards the reply either way, whether
// or not it contains the literal marker "HEARTBEAT_OK"; it has no delivery
// path of its own, so only the Handler itself can forward anything.
package heartbeat

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultInterval = 30 * time.Minute

// Handler runs one heartbeat tick's prompt through the agent and returns
// its reply.
type Handler func(ctx context.Context, prompt string) (string, error)

// Service ticks on an interval and invokes Handler with PULSE.md's content.
type Service struct {
	workspace string
	interval  time.Duration
	onTick    Handler

	cancel    context.CancelFunc
	done      chan struct{}
}

// New constructs a Service. interval <= 0 uses the default 30 minutes,
// matching pyclaw's default.
func New(workspace string, interval time.Duration, onTick Handler) *Service {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{workspace: workspace, interval: interval, onTick: onTick}
}

// Start launches the tick loop in a background goroutine.
func (s *Service) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(loopCtx)
}

// Stop cancels the tick loop and waits for it to exit.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Service) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	content := s.readPulse()
	if content == "" || s.onTick == nil {
		return
	}
	result, err := s.onTick(ctx, content)
	if err != nil {
		return
	}
	_ = strings.Contains(result, "HEARTBEAT_OK")
}

func (s *Service) readPulse() string {
	for _, name := range []string{"PULSE.md", "HEARTBEAT.md"} {
		data, err := os.ReadFile(filepath.Join(s.workspace, name))
		if err != nil {
			continue
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			return text
		}
	}
	return ""
}
