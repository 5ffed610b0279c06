package bus

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MessageBus decouples channels from the conversation loop. Channels
// push onto Inbound; the dispatcher fans Outbound messages back to the
// subscribed channel.
type MessageBus struct {
	Inbound  chan InboundMessage
	Outbound chan OutboundMessage

	mu          sync.RWMutex
	subscribers map[string]func(OutboundMessage)
	logger      zerolog.Logger
}

func NewMessageBus(bufSize int) *MessageBus {
	if bufSize <= 0 {
		bufSize = 1
	}
	return &MessageBus{
		Inbound:     make(chan InboundMessage, bufSize),
		Outbound:    make(chan OutboundMessage, bufSize),
		subscribers: make(map[string]func(OutboundMessage)),
		logger:      log.With().Str("component", "bus").Logger(),
	}
}

// SubscribeOutbound registers the handler for one channel's replies.
// A later subscription for the same channel replaces the earlier one.
func (b *MessageBus) SubscribeOutbound(channel string, handler func(OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[channel] = handler
}

// DispatchOutbound routes outbound messages to their channel handler
// until the context ends. Run it in its own goroutine.
func (b *MessageBus) DispatchOutbound(ctx context.Context) {
	for {
		select {
		case msg := <-b.Outbound:
			b.mu.RLock()
			handler := b.subscribers[msg.Channel]
			b.mu.RUnlock()
			if handler == nil {
				b.logger.Warn().Str("channel", msg.Channel).Msg("no subscriber for outbound message")
				continue
			}
			handler(msg)
		case <-ctx.Done():
			return
		}
	}
}
