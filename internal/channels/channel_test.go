package channels

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/goclaw-lite/internal/bus"
)

func TestBaseChannelIsAllowedEmptyListAllowsEveryone(t *testing.T) {
	c := NewBaseChannel("test", bus.NewMessageBus(), nil)
	if !c.IsAllowed("anyone") {
		t.Fatal("expected empty allow-list to permit all senders")
	}
}

func TestBaseChannelIsAllowedRequiresMembership(t *testing.T) {
	c := NewBaseChannel("test", bus.NewMessageBus(), []string{"alice", " bob "})
	if !c.IsAllowed("alice") {
		t.Error("expected alice to be allowed")
	}
	if !c.IsAllowed("bob") {
		t.Error("expected whitespace-padded allow-list entries to be trimmed")
	}
	if c.IsAllowed("carol") {
		t.Error("expected carol to be rejected")
	}
}

func TestManagerRegisterAndGet(t *testing.T) {
	m := NewManager()
	ch := NewBaseChannel("webui", bus.NewMessageBus(), nil)
	m.Register(&namedChannel{BaseChannel: ch})

	if _, ok := m.Get("webui"); !ok {
		t.Fatal("expected registered channel to be retrievable")
	}
	if _, ok := m.Get("missing"); ok {
		t.Fatal("expected unregistered channel to be absent")
	}
}

// namedChannel is a minimal Channel for Manager tests.
type namedChannel struct {
	*BaseChannel
}

func (n *namedChannel) Start(ctx context.Context) error { return nil }
func (n *namedChannel) Stop(ctx context.Context) error  { return nil }
func (n *namedChannel) Send(ctx context.Context, msg bus.OutboundMessage) error { return nil }
