package feishu

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nextlevelbuilder/goclaw-lite/internal/bus"
)

func TestHandlerEchoesChallenge(t *testing.T) {
	c := New("app-id", "app-secret", "", nil, bus.NewMessageBus())
	req := httptest.NewRequest(http.MethodPost, "/webhooks/feishu", bytes.NewReader([]byte(`{"challenge":"abc123"}`)))
	w := httptest.NewRecorder()

	c.Handler()(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Body.String(); got != "{\"challenge\":\"abc123\"}\n" {
		t.Fatalf("expected challenge echoed verbatim, got %q", got)
	}
}

func TestHandlerRejectsWrongVerificationToken(t *testing.T) {
	c := New("app-id", "app-secret", "expected-token", nil, bus.NewMessageBus())
	body := []byte(`{"header":{"event_type":"im.message.receive_v1","token":"wrong-token"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/feishu", bytes.NewReader(body))
	w := httptest.NewRecorder()

	c.Handler()(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for mismatched verification token, got %d", w.Code)
	}
}

func TestHandlerIgnoresUnrecognizedEventType(t *testing.T) {
	c := New("app-id", "app-secret", "", nil, bus.NewMessageBus())
	body := []byte(`{"header":{"event_type":"some.other.event"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/feishu", bytes.NewReader(body))
	w := httptest.NewRecorder()

	c.Handler()(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 no-op for unrecognized event type, got %d", w.Code)
	}
}

func TestExtractContentText(t *testing.T) {
	c := New("app-id", "app-secret", "", nil, bus.NewMessageBus())
	content, blocks := c.extractContent(nil, "text", `{"text":"hello there"}`)
	if content != "hello there" {
		t.Fatalf("expected extracted text, got %q", content)
	}
	if blocks != nil {
		t.Fatalf("expected no blocks for a text message, got %v", blocks)
	}
}
