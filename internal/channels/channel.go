// Package channels implements the Channel Adapter contract: each adapter
// translates one external transport (long-poll bot API, verified webhook,
// signed webhook, embedded websocket) into bus.InboundMessage values and
// delivers bus.OutboundMessage replies back out, gated by an optional
// per-channel allow-list. Grounded on pyclaw channels/base.py's BaseChannel,
// trimmed to the single shared contract this system needs — no DM/Group
// policy enums, mention gating, or streaming/reaction extension interfaces,
// since none of the four adapters here use them.
package channels

import (
	"context"
	"strings"
	"sync"

	"github.com/nextlevelbuilder/goclaw-lite/internal/bus"
)

// Channel is the contract every transport adapter satisfies.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	IsAllowed(senderID string) bool
}

// BaseChannel provides the shared allow-list logic every adapter embeds
// (pyclaw BaseChannel.is_allowed: an empty allow-list permits everyone,
// otherwise the sender must be a literal member).
type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	allowList []string

	mu        sync.Mutex
	running   bool
}

// NewBaseChannel constructs a BaseChannel. allowList may be empty/nil.
func NewBaseChannel(name string, msgBus *bus.MessageBus, allowList []string) *BaseChannel {
	return &BaseChannel{name: name, bus: msgBus, allowList: allowList}
}

func (c *BaseChannel) Name() string { return c.name }

func (c *BaseChannel) Bus() *bus.MessageBus { return c.bus }

// IsAllowed reports whether senderID may use this channel.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		return true
	}
	for _, allowed := range c.allowList {
		if strings.TrimSpace(allowed) == senderID {
			return true
		}
	}
	return false
}

// SetRunning / IsRunning track whether the adapter's receive loop is active.
func (c *BaseChannel) SetRunning(running bool) {
	c.mu.Lock()
	c.running = running
	c.mu.Unlock()
}

func (c *BaseChannel) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Publish forwards an inbound message to the bus, dropping it silently if
// the sender is not on the allow-list — mirroring pyclaw channels, which
// check is_allowed before ever constructing an InboundMessage.
func (c *BaseChannel) Publish(ctx context.Context, msg bus.InboundMessage) {
	if !c.IsAllowed(msg.SenderID) {
		return
	}
	msg.Channel = c.name
	_ = c.bus.PublishInbound(ctx, msg)
}
