package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/nextlevelbuilder/goclaw-lite/internal/bus"
)

func sign(secret string, ts int64, body []byte) string {
	base := fmt.Sprintf("v0:%d:%s", ts, body)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(base))
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignatureAccepted(t *testing.T) {
	c := New("shh", "bot-token", nil, bus.NewMessageBus())
	body := []byte(`{"type":"event_callback"}`)
	ts := time.Now().Unix()

	if !c.verifySignature(fmt.Sprintf("%d", ts), sign("shh", ts, body), body) {
		t.Fatal("expected a freshly signed request to verify")
	}
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	c := New("shh", "bot-token", nil, bus.NewMessageBus())
	body := []byte(`{"type":"event_callback"}`)
	ts := time.Now().Unix()

	if c.verifySignature(fmt.Sprintf("%d", ts), sign("other-secret", ts, body), body) {
		t.Fatal("expected a wrongly signed request to be rejected")
	}
}

func TestVerifySignatureRejectsStaleTimestamp(t *testing.T) {
	c := New("shh", "bot-token", nil, bus.NewMessageBus())
	body := []byte(`{"type":"event_callback"}`)
	ts := time.Now().Add(-10 * time.Minute).Unix()

	if c.verifySignature(fmt.Sprintf("%d", ts), sign("shh", ts, body), body) {
		t.Fatal("expected a stale timestamp to be rejected even with a valid signature")
	}
}

func TestVerifySignatureRejectsMissingHeaders(t *testing.T) {
	c := New("shh", "bot-token", nil, bus.NewMessageBus())
	if c.verifySignature("", "v0=abc", []byte("{}")) {
		t.Fatal("expected missing timestamp to be rejected")
	}
	if c.verifySignature("123", "", []byte("{}")) {
		t.Fatal("expected missing signature to be rejected")
	}
}
