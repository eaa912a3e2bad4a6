// Package slack implements the Slack Channel Adapter: an
// HMAC-verified Events API webhook that forwards text/file messages to the
// bus and replies via chat.postMessage. Grounded on pyclaw
// channels/slack.py's _verify_signature (v0 signing scheme, 5-minute
// timestamp skew rejection) and event-callback filtering (only
// subtype-less "message" events are forwarded — edits and bot echoes,
// which always carry a subtype, are skipped).
package slack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/nextlevelbuilder/goclaw-lite/internal/bus"
	"github.com/nextlevelbuilder/goclaw-lite/internal/channels"
)

const (
	postMessageURL = "https://slack.com/api/chat.postMessage"
	maxClockSkew = 5 * 60 // seconds
	maxDownloadSize = 20 << 20
)

// Channel is the Slack webhook adapter.
type Channel struct {
	*channels.BaseChannel

	signingSecret string
	botToken      string
	limiter       *channels.WebhookRateLimiter
}

// New constructs the Slack channel.
func New(signingSecret, botToken string, allowList []string, msgBus *bus.MessageBus) *Channel {
	return &Channel{
		BaseChannel:   channels.NewBaseChannel("slack", msgBus, allowList),
		signingSecret: signingSecret,
		botToken:      botToken,
		limiter:       channels.NewWebhookRateLimiter(),
	}
}

func (c *Channel) Start(ctx context.Context) error {
	c.SetRunning(true)
	return nil
}

func (c *Channel) Stop(ctx context.Context) error {
	c.SetRunning(false)
	return nil
}

func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	body, _ := json.Marshal(map[string]string{"channel": msg.ChatID, "text": msg.Content})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postMessageURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.botToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out struct {
		OK bool `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err == nil && !out.OK {
		return fmt.Errorf("slack: chat.postMessage failed: %s", out.Error)
	}
	return nil
}

// verifySignature reproduces pyclaw's HMAC check: base = "v0:<ts>:<body>",
// expected = "v0=" + hex(hmac_sha256(signingSecret, base)), compared in
// constant time, with the timestamp required to be within 5 minutes of now.
func (c *Channel) verifySignature(timestampHeader, signatureHeader string, rawBody []byte) bool {
	if timestampHeader == "" || signatureHeader == "" {
		return false
	}
	ts, err := strconv.ParseInt(timestampHeader, 10, 64)
	if err != nil {
		return false
	}
	if math.Abs(float64(time.Now().Unix()-ts)) > maxClockSkew {
		return false
	}

	base := fmt.Sprintf("v0:%d:%s", ts, rawBody)
	mac := hmac.New(sha256.New, []byte(c.signingSecret))
	mac.Write([]byte(base))
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signatureHeader))
}

type slackFile struct {
	URLPrivateDownload string `json:"url_private_download"`
	URLPrivate         string `json:"url_private"`
	Mimetype           string `json:"mimetype"`
}

type slackEvent struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Event     struct {
		Type      string `json:"type"`
		Subtype   string `json:"subtype"`
		User      string `json:"user"`
		Channel   string `json:"channel"`
		Text      string `json:"text"`
		Files     []slackFile `json:"files"`
	} `json:"event"`
}

// Handler returns the HTTP handler mounted by the gateway for Slack's
// Events API endpoint.
func (c *Channel) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !c.limiter.Allow(r.RemoteAddr) {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}

		rawBody, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		if !c.verifySignature(r.Header.Get("X-Slack-Request-Timestamp"), r.Header.Get("X-Slack-Signature"), rawBody) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var evt slackEvent
		if err := json.Unmarshal(rawBody, &evt); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		if evt.Type == "url_verification" {
			writeJSON(w, map[string]string{"challenge": evt.Challenge})
			return
		}

		if evt.Type != "event_callback" || evt.Event.Type != "message" || evt.Event.Subtype != "" {
			w.WriteHeader(http.StatusOK)
			return
		}

		if evt.Event.User != "" && !c.IsAllowed(evt.Event.User) {
			w.WriteHeader(http.StatusOK)
			return
		}

		var blocks []bus.ContentBlock
		for _, f := range evt.Event.Files {
			url := f.URLPrivateDownload
			if url == "" {
				url = f.URLPrivate
			}
			if url == "" {
				continue
			}
			data, err := c.downloadFile(r.Context(), url)
			if err != nil {
				continue
			}
			blockType := "document"
			if hasImagePrefix(f.Mimetype) {
				blockType = "image"
			}
			blocks = append(blocks, bus.ContentBlock{Type: blockType, Data: data, MediaType: f.Mimetype})
		}

		c.Publish(r.Context(), bus.InboundMessage{
			SenderID: evt.Event.User,
			ChatID:   evt.Event.Channel,
			Content:  evt.Event.Text,
			Blocks:   blocks,
		})

		w.WriteHeader(http.StatusOK)
	}
}

func (c *Channel) downloadFile(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.botToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("slack: download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func hasImagePrefix(mimetype string) bool {
	return len(mimetype) >= 6 && mimetype[:6] == "image/"
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
