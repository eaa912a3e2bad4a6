// Package webui implements the embedded-websocket Channel Adapter (spec
// §4.2): a browser chat client connects to /ws, optionally presenting a
// token that is checked against the allow-list, and exchanges
// {"type":"message","content":"..."} frames. Grounded on pyclaw
// channels/webui.py's client-ID assignment (token if present, else a
// synthetic "webui-N" counter), per-message allow-list re-check, and
// targeted-vs-broadcast outbound delivery.
package webui

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"

	"github.com/nextlevelbuilder/goclaw-lite/internal/bus"
	"github.com/nextlevelbuilder/goclaw-lite/internal/channels"
)

const indexHTML = `<!DOCTYPE html>
<html><head><title>chat</title></head>
<body>
<pre id="log"></pre>
<input id="box" autofocus>
<script>
const log = document.getElementById('log');
const box = document.getElementById('box');
const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
ws.onmessage = (e) => {
  const msg = JSON.parse(e.data);
  log.textContent += 'bot: ' + msg.content + '\n';
};
box.addEventListener('keydown', (e) => {
  if (e.key !== 'Enter' || !box.value.trim()) return;
  log.textContent += 'you: ' + box.value + '\n';
  ws.send(JSON.stringify({type: 'message', content: box.value}));
  box.value = '';
});
</script>
</body></html>`

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) send(ctx context.Context, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, _ := json.Marshal(map[string]string{"type": "message", "content": content})
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// Channel is the embedded websocket adapter.
type Channel struct {
	*channels.BaseChannel

	nextID  int64
	mu      sync.Mutex
	clients map[string]*wsClient
}

// New constructs the WebUI channel.
func New(allowList []string, msgBus *bus.MessageBus) *Channel {
	return &Channel{
		BaseChannel: channels.NewBaseChannel("webui", msgBus, allowList),
		clients:     make(map[string]*wsClient),
	}
}

func (c *Channel) Start(ctx context.Context) error {
	c.SetRunning(true)
	return nil
}

func (c *Channel) Stop(ctx context.Context) error {
	c.mu.Lock()
	clients := make([]*wsClient, 0, len(c.clients))
	for _, cl := range c.clients {
		clients = append(clients, cl)
	}
	c.clients = make(map[string]*wsClient)
	c.mu.Unlock()

	for _, cl := range clients {
		_ = cl.conn.Close(websocket.StatusNormalClosure, "shutting down")
	}
	c.SetRunning(false)
	return nil
}

// Send delivers to the specific connected client matching msg.ChatID, or
// broadcasts to every connected client if no match is found.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	c.mu.Lock()
	target, ok := c.clients[msg.ChatID]
	all := make([]*wsClient, 0, len(c.clients))
	for _, cl := range c.clients {
		all = append(all, cl)
	}
	c.mu.Unlock()

	if ok {
		return target.send(ctx, msg.Content)
	}
	var firstErr error
	for _, cl := range all {
		if err := cl.send(ctx, msg.Content); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Handler returns the HTTP mux serving the index page and the websocket
// endpoint.
func (c *Channel) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(indexHTML))
	})
	mux.HandleFunc("/ws", c.handleWS)
	return mux
}

func (c *Channel) handleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	clientID := token
	if clientID == "" {
		id := atomic.AddInt64(&c.nextID, 1)
		clientID = "webui-" + strconv.FormatInt(id, 10)
	}

	if !c.IsAllowed(clientID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("webui.accept_failed", "error", err)
		return
	}

	cl := &wsClient{conn: conn}
	c.mu.Lock()
	c.clients[clientID] = cl
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.clients, clientID)
		c.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var frame struct {
			Type    string `json:"type"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal(data, &frame); err != nil || frame.Type != "message" {
			continue
		}
		content := strings.TrimSpace(frame.Content)
		if content == "" {
			continue
		}
		if !c.IsAllowed(clientID) {
			continue
		}

		c.Publish(ctx, bus.InboundMessage{
			SenderID: clientID,
			ChatID:   clientID,
			Content:  content,
		})
	}
}
