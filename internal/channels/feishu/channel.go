// Package feishu implements the Feishu (Lark) Channel Adapter: a webhook
// receiver that answers the platform's challenge handshake,
// verifies the shared verification token, and forwards text/image events
// to the bus; replies are posted back through the tenant-access-token
// authenticated messages API. Grounded on pyclaw channels/feishu.py's
// FeishuClient (token fetch/cache/refresh) and webhook handler.
package feishu

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/nextlevelbuilder/goclaw-lite/internal/bus"
	"github.com/nextlevelbuilder/goclaw-lite/internal/channels"
)

const (
	tokenURL = "https://open.feishu.cn/open-apis/auth/v3/tenant_access_token/internal"
	messageURL = "https://open.feishu.cn/open-apis/im/v1/messages?receive_id_type=chat_id"
	imageURLf = "https://open.feishu.cn/open-apis/im/v1/images/%s"

	tokenMinValidity = 60 * time.Second
)

// client fetches and caches the tenant_access_token used to authenticate
// every Feishu API call, refreshing it shortly before expiry.
type client struct {
	appID     string
	appSecret string

	mu        sync.Mutex
	token     string
	expires   time.Time
}

func (c *client) tenantAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Until(c.expires) > tokenMinValidity {
		return c.token, nil
	}

	body, _ := json.Marshal(map[string]string{"app_id": c.appID, "app_secret": c.appSecret})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		TenantAccessToken string `json:"tenant_access_token"`
		Expire int `json:"expire"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.TenantAccessToken == "" {
		return "", fmt.Errorf("feishu: empty tenant_access_token in response")
	}

	c.token = out.TenantAccessToken
	c.expires = time.Now().Add(time.Duration(out.Expire) * time.Second)
	return c.token, nil
}

func (c *client) sendMessage(ctx context.Context, chatID, content string) error {
	token, err := c.tenantAccessToken(ctx)
	if err != nil {
		return err
	}

	textJSON, _ := json.Marshal(map[string]string{"text": content})
	body, _ := json.Marshal(map[string]string{
		"receive_id": chatID,
		"msg_type": "text",
		"content": string(textJSON),
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, messageURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("feishu: send message: status %d", resp.StatusCode)
	}
	return nil
}

func (c *client) downloadImage(ctx context.Context, imageKey string) (string, error) {
	token, err := c.tenantAccessToken(ctx)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(imageURLf, imageKey), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("feishu: download image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Channel is the Feishu webhook adapter.
type Channel struct {
	*channels.BaseChannel

	client            *client
	verificationToken string
	limiter           *channels.WebhookRateLimiter
}

// New constructs the Feishu channel.
func New(appID, appSecret, verificationToken string, allowList []string, msgBus *bus.MessageBus) *Channel {
	return &Channel{
		BaseChannel:       channels.NewBaseChannel("feishu", msgBus, allowList),
		client:            &client{appID: appID, appSecret: appSecret},
		verificationToken: verificationToken,
		limiter:           channels.NewWebhookRateLimiter(),
	}
}

// Start marks the adapter running; Feishu delivers events via webhook so
// there is no background loop to launch.
func (c *Channel) Start(ctx context.Context) error {
	c.SetRunning(true)
	return nil
}

func (c *Channel) Stop(ctx context.Context) error {
	c.SetRunning(false)
	return nil
}

func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	return c.client.sendMessage(ctx, msg.ChatID, msg.Content)
}

type webhookEvent struct {
	Challenge string `json:"challenge"`
	Header    struct {
		EventType string `json:"event_type"`
		Token     string `json:"token"`
	} `json:"header"`
	Event struct {
		Sender struct {
			SenderID struct {
				OpenID string `json:"open_id"`
			} `json:"sender_id"`
		} `json:"sender"`
		Message struct {
			ChatID string `json:"chat_id"`
			MessageType string `json:"message_type"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"event"`
}

// Handler returns the HTTP handler mounted by the gateway for Feishu's
// webhook endpoint — challenge echo, token verification, event filtering,
// and text/image extraction, all mirroring pyclaw's webhook handler.
func (c *Channel) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !c.limiter.Allow(r.RemoteAddr) {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}

		var evt webhookEvent
		if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		if evt.Challenge != "" {
			writeJSON(w, map[string]string{"challenge": evt.Challenge})
			return
		}

		if c.verificationToken != "" && evt.Header.Token != c.verificationToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if evt.Header.EventType != "im.message.receive_v1" {
			w.WriteHeader(http.StatusOK)
			return
		}

		senderID := evt.Event.Sender.SenderID.OpenID
		if !c.IsAllowed(senderID) {
			w.WriteHeader(http.StatusOK)
			return
		}

		content, blocks := c.extractContent(r.Context(), evt.Event.Message.MessageType, evt.Event.Message.Content)
		c.Publish(r.Context(), bus.InboundMessage{
			SenderID: senderID,
			ChatID:   evt.Event.Message.ChatID,
			Content:  content,
			Blocks:   blocks,
		})

		w.WriteHeader(http.StatusOK)
	}
}

func (c *Channel) extractContent(ctx context.Context, messageType, rawContent string) (string, []bus.ContentBlock) {
	switch messageType {
	case "text":
		var body struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(rawContent), &body); err == nil {
			return body.Text, nil
		}
		return "", nil
	case "image":
		var body struct {
			ImageKey string `json:"image_key"`
		}
		if err := json.Unmarshal([]byte(rawContent), &body); err != nil {
			return "", nil
		}
		data, err := c.client.downloadImage(ctx, body.ImageKey)
		if err != nil {
			return "[image]", nil
		}
		return "[image]", []bus.ContentBlock{{Type: "image", Data: data, MediaType: "image/jpeg"}}
	default:
		return "", nil
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
