package bus

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"
)

const defaultQueueCapacity = 100

// MessageBus owns the two bounded queues connecting channel adapters to the
// agent core, plus the per-channel outbound delivery registry. A single
// dispatcher goroutine (started by Dispatch) drains the outbound queue and
// fans each message out to every callback registered for its channel;
// callback failures are logged and swallowed so one misbehaving channel
// cannot starve another.
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage

	mu        sync.RWMutex
	callbacks map[string][]DeliveryFunc
	limiters  map[string]*rate.Limiter
}

// NewMessageBus constructs a bus with the default queue capacity.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:   make(chan InboundMessage, defaultQueueCapacity),
		outbound:  make(chan OutboundMessage, defaultQueueCapacity),
		callbacks: make(map[string][]DeliveryFunc),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// PublishInbound enqueues a message from a channel adapter. Blocks if the
// inbound queue is full, applying backpressure to the producing adapter.
func (b *MessageBus) PublishInbound(ctx context.Context, msg InboundMessage) error {
	select {
	case b.inbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConsumeInbound is used by the gateway's pump loop; it blocks until a
// message is available or ctx is cancelled.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case msg := <-b.inbound:
		return msg, true
	case <-ctx.Done():
		return InboundMessage{}, false
	}
}

// PublishOutbound enqueues a reply for delivery. Blocks if the outbound
// queue is full.
func (b *MessageBus) PublishOutbound(ctx context.Context, msg OutboundMessage) error {
	select {
	case b.outbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a delivery callback for a channel name. An optional
// rate limiter (events/sec) throttles how fast this channel's callbacks are
// invoked from the dispatcher, protecting the upstream transport from burst
// sends; pass ratePerSec <= 0 to disable throttling.
func (b *MessageBus) Subscribe(channel string, fn DeliveryFunc, ratePerSec float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callbacks[channel] = append(b.callbacks[channel], fn)
	if ratePerSec > 0 {
		b.limiters[channel] = rate.NewLimiter(rate.Limit(ratePerSec), 1)
	}
}

// Unsubscribe removes all callbacks registered for a channel.
func (b *MessageBus) Unsubscribe(channel string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.callbacks, channel)
	delete(b.limiters, channel)
}

// Dispatch runs the outbound dispatcher until ctx is cancelled. Unlike the
// cooperative-scheduler source this was distilled from, Go's select
// natively cancels on ctx.Done() without a short-poll workaround, so the
// dispatcher blocks directly on the outbound channel.
func (b *MessageBus) Dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.outbound:
			b.deliver(ctx, msg)
		}
	}
}

func (b *MessageBus) deliver(ctx context.Context, msg OutboundMessage) {
	b.mu.RLock()
	handlers := append([]DeliveryFunc(nil), b.callbacks[msg.Channel]...)
	limiter := b.limiters[msg.Channel]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		slog.Warn("bus.outbound.no_subscriber", "channel", msg.Channel, "chat_id", msg.ChatID)
		return
	}
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
	}
	for _, fn := range handlers {
		if err := fn(msg); err != nil {
			slog.Warn("bus.outbound.delivery_failed", "channel", msg.Channel, "error", err)
		}
	}
}
