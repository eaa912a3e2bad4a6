package webui

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/goclaw-lite/internal/bus"
)

func TestSendToUnknownClientFallsBackToNoOp(t *testing.T) {
	c := New(nil, bus.NewMessageBus())
	// No clients connected: broadcasting to zero clients should not error.
	if err := c.Send(context.Background(), bus.OutboundMessage{ChatID: "webui-1", Content: "hi"}); err != nil {
		t.Fatalf("expected no error broadcasting with no connected clients, got %v", err)
	}
}

func TestIsAllowedHonorsAllowList(t *testing.T) {
	c := New([]string{"tok-1"}, bus.NewMessageBus())
	if !c.IsAllowed("tok-1") {
		t.Error("expected configured token to be allowed")
	}
	if c.IsAllowed("tok-2") {
		t.Error("expected unconfigured token to be rejected")
	}
}
