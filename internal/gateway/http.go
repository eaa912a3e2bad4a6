package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nextlevelbuilder/goclaw-lite/internal/channels/feishu"
	"github.com/nextlevelbuilder/goclaw-lite/internal/channels/slack"
	"github.com/nextlevelbuilder/goclaw-lite/internal/channels/webui"
	"github.com/nextlevelbuilder/goclaw-lite/internal/config"
)

// startHTTPServer mounts every webhook/websocket-backed channel's handler
// onto one mux and starts listening if any
// were mounted — Telegram needs no inbound HTTP route since it long-polls
// outward, so its absence here is expected, not a gap.
func (g *Gateway) startHTTPServer(cfg *config.Config) {
	mux := http.NewServeMux()
	mounted := false

	if ch, ok := g.channels.Get("feishu"); ok {
		if fc, ok := ch.(*feishu.Channel); ok {
			mux.HandleFunc("/webhooks/feishu", fc.Handler())
			mounted = true
		}
	}
	if ch, ok := g.channels.Get("slack"); ok {
		if sc, ok := ch.(*slack.Channel); ok {
			mux.HandleFunc("/webhooks/slack", sc.Handler())
			mounted = true
		}
	}
	if ch, ok := g.channels.Get("webui"); ok {
		if wc, ok := ch.(*webui.Channel); ok {
			mux.Handle("/", wc.Handler())
			mounted = true
		}
	}

	if !mounted {
		return
	}

	addr := fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)
	g.httpServer = &http.Server{Addr: addr, Handler: mux}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := g.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("gateway.http_server_failed", "error", err)
		}
	}()
}

func (g *Gateway) stopHTTPServer() {
	if g.httpServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.httpServer.Shutdown(ctx); err != nil {
		slog.Warn("gateway.http_server_shutdown_failed", "error", err)
	}
}
