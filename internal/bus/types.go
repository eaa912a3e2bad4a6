// Package bus implements the bounded inbound/outbound message queues that
// decouple channel adapters from the agent core.
package bus

// ContentBlock is a tagged variant over {text, image, document}. Immutable
// once constructed.
type ContentBlock struct {
	Type      string `json:"type"` // "text" | "image" | "document"
	Text      string `json:"text,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"` // base64 payload
	URL       string `json:"url,omitempty"`
}

// InboundMessage is a message received from a channel adapter.
type InboundMessage struct {
	Channel   string            `json:"channel"`
	SenderID  string            `json:"sender_id"`
	ChatID    string            `json:"chat_id"`
	Content   string            `json:"content"`
	Blocks    []ContentBlock    `json:"blocks,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	TimestampMs int64           `json:"timestamp_ms,omitempty"`
}

// SessionKey derives the conversation partition key for this message:
// "<channel>:<chat_id>".
func (m InboundMessage) SessionKey() string {
	return m.Channel + ":" + m.ChatID
}

// MediaAttachment is a media file accompanying an OutboundMessage.
type MediaAttachment struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	Caption     string `json:"caption,omitempty"`
}

// OutboundMessage is a reply constructed by the orchestrator and consumed
// exactly once by the dispatcher.
type OutboundMessage struct {
	Channel  string            `json:"channel"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	Media    []MediaAttachment `json:"media,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// DeliveryFunc is a per-channel outbound delivery callback.
type DeliveryFunc func(OutboundMessage) error
