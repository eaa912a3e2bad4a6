// Package telegram implements the Telegram Channel Adapter: a long-polling
// bot that forwards text, photo, and document messages to the bus and
// relays replies back via sendMessage. Grounded line-for-line on pyclaw
// channels/telegram.py's poll loop (manual offset tracking, 2-second
// backoff on a fatal getUpdates failure, last-photo/document extraction,
// two-step getFile→download for media) — expressed with the telego client
// library for the Bot API surface itself (SendMessage, GetFile), since
// telego already speaks idiomatic Go for that part and pyclaw's raw httpx
// calls don't need reinventing.
package telegram

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/goclaw-lite/internal/bus"
	"github.com/nextlevelbuilder/goclaw-lite/internal/channels"
)

const (
	pollTimeoutSeconds = 30
	backoffOnError = 2 * time.Second
	maxDownloadBytes = 20 << 20
)

// Channel is the Telegram long-polling adapter.
type Channel struct {
	*channels.BaseChannel

	token  string
	bot    *telego.Bot

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	offset int64
}

// New constructs the Telegram channel. Dialing the Bot API happens lazily
// in Start so a misconfigured token surfaces as a Start error, not a
// construction-time panic.
func New(token string, allowList []string, msgBus *bus.MessageBus) *Channel {
	return &Channel{
		BaseChannel: channels.NewBaseChannel("telegram", msgBus, allowList),
		token:       token,
	}
}

// Start dials the bot and launches the poll loop goroutine.
func (c *Channel) Start(ctx context.Context) error {
	bot, err := telego.NewBot(c.token)
	if err != nil {
		return fmt.Errorf("telegram: new bot: %w", err)
	}
	c.bot = bot

	pollCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	c.SetRunning(true)
	go c.pollLoop(pollCtx)
	return nil
}

// Stop cancels the poll loop and waits for it to exit.
func (c *Channel) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
	case <-ctx.Done():
	}
	c.SetRunning(false)
	return nil
}

// pollLoop mirrors pyclaw's _poll_loop: call getUpdates, advance the
// offset past every update seen, and on ANY failure of the whole call
// (not per-message) sleep 2 seconds and retry — never crash the adapter.
func (c *Channel) pollLoop(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		updates, err := c.bot.GetUpdates(ctx, &telego.GetUpdatesParams{
			Offset:  int(c.offset),
			Timeout: pollTimeoutSeconds,
		})
		if err != nil {
			slog.Warn("telegram.get_updates_failed", "error", err)
			select {
			case <-time.After(backoffOnError):
			case <-ctx.Done():
				return
			}
			continue
		}

		for _, u := range updates {
			if int64(u.UpdateID)+1 > c.offset {
				c.offset = int64(u.UpdateID) + 1
			}
			c.handleUpdate(ctx, u)
		}
	}
}

func (c *Channel) handleUpdate(ctx context.Context, u telego.Update) {
	if u.Message == nil {
		return
	}
	msg := u.Message

	senderID := ""
	if msg.From != nil {
		senderID = strconv.FormatInt(msg.From.ID, 10)
	}
	if !c.IsAllowed(senderID) {
		return
	}

	content := msg.Text
	if content == "" {
		content = msg.Caption
	}

	var blocks []bus.ContentBlock
	if len(msg.Photo) > 0 {
		largest := msg.Photo[len(msg.Photo)-1]
		if data, mediaType, err := c.downloadFile(ctx, largest.FileID); err == nil {
			blocks = append(blocks, bus.ContentBlock{Type: "image", Data: data, MediaType: mediaType})
		} else {
			slog.Warn("telegram.photo_download_failed", "error", err)
		}
	}
	if msg.Document != nil {
		if data, mediaType, err := c.downloadFile(ctx, msg.Document.FileID); err == nil {
			blocks = append(blocks, bus.ContentBlock{Type: "document", Data: data, MediaType: mediaType})
		} else {
			slog.Warn("telegram.document_download_failed", "error", err)
		}
	}

	if content == "" && len(blocks) == 0 {
		return
	}

	username := ""
	firstName := ""
	if msg.From != nil {
		username = msg.From.Username
		firstName = msg.From.FirstName
	}

	c.Publish(ctx, bus.InboundMessage{
		SenderID: senderID,
		ChatID:   strconv.FormatInt(msg.Chat.ID, 10),
		Content:  content,
		Blocks:   blocks,
		Metadata: map[string]string{
			"username": username,
			"first_name": firstName,
			"message_id": strconv.Itoa(msg.MessageID),
		},
	})
}

// downloadFile performs the two-step Telegram media fetch: getFile for the
// storage path, then a plain HTTP GET against the file endpoint.
func (c *Channel) downloadFile(ctx context.Context, fileID string) (string, string, error) {
	file, err := c.bot.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
	if err != nil {
		return "", "", fmt.Errorf("get_file: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", c.token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return "", "", err
	}
	return base64.StdEncoding.EncodeToString(data), mediaTypeForPath(file.FilePath), nil
}

func mediaTypeForPath(path string) string {
	switch {
	case hasSuffixFold(path, ".png"):
		return "image/png"
	case hasSuffixFold(path, ".jpg"), hasSuffixFold(path, ".jpeg"):
		return "image/jpeg"
	case hasSuffixFold(path, ".webp"):
		return "image/webp"
	case hasSuffixFold(path, ".pdf"):
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

func hasSuffixFold(s, suffix string) bool {
	if len(s) < len(suffix) {
		return false
	}
	tail := s[len(s)-len(suffix):]
	for i := range tail {
		a, b := tail[i], suffix[i]
		if a >= 'A' && a <= 'Z' {
			a += 'a' - 'A'
		}
		if b >= 'A' && b <= 'Z' {
			b += 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}

// Send delivers an outbound reply via sendMessage.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat id %q: %w", msg.ChatID, err)
	}
	_, err = c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), msg.Content))
	return err
}
