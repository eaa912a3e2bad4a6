package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Manager owns every registered Channel. The gateway subscribes each
// registered adapter's Send method to the bus's outbound dispatch when it
// registers the channels, so Manager only needs to sequence Start/Stop
// calls — bus.Dispatch already
// does the outbound fan-out, so there's no separate dispatch loop or
// per-run streaming/reaction state to track here.
type Manager struct {
	mu       sync.RWMutex
	channels map[string]Channel
}

// NewManager constructs an empty Manager. Channels are registered with
// Register before StartAll.
func NewManager() *Manager {
	return &Manager{channels: make(map[string]Channel)}
}

// Register adds a channel under its own name.
func (m *Manager) Register(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.Name()] = ch
}

// StartAll starts every registered channel. One adapter failing to start is
// logged and does not prevent the others from starting.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, ch := range m.channels {
		if err := ch.Start(ctx); err != nil {
			slog.Error("channels.start_failed", "channel", name, "error", err)
		}
	}
	return nil
}

// StopAll stops every registered channel.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, ch := range m.channels {
		if err := ch.Stop(ctx); err != nil {
			slog.Error("channels.stop_failed", "channel", name, "error", err)
		}
	}
	return nil
}

// Get returns a registered channel by name.
func (m *Manager) Get(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

// Names returns every registered channel's name.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	return names
}

// Status reports each channel's name and registration (used by a future
// "status" surface; every registered channel is considered enabled).
func (m *Manager) Status() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status := make(map[string]bool, len(m.channels))
	for name := range m.channels {
		status[name] = true
	}
	return status
}

// errUnknownChannel builds the error SendTo returns when no channel is
// registered under the requested name.
func errUnknownChannel(name string) error {
	return fmt.Errorf("channels: unknown channel %q", name)
}

// SendTo delivers an outbound message directly to a named channel,
// bypassing the bus.
func (m *Manager) SendTo(ctx context.Context, name string, send func(Channel) error) error {
	ch, ok := m.Get(name)
	if !ok {
		return errUnknownChannel(name)
	}
	return send(ch)
}
