// Package bus carries chat traffic between the transport layer and the
// accumulator runner. Inbound messages fan in on one channel; outbound
// events are routed back to the connection that originated the cycle.
package bus

import (
	"log"
	"sync"
	"time"
)

type InboundMessage struct {
	ConnID    string // originating websocket connection
	UserID    string
	ChatID    string
	Ticker    string
	Year      int
	Quarter   int
	Content   string
	Timestamp time.Time
}

func (m *InboundMessage) ThreadKey() string {
	return m.UserID + ":" + m.ChatID
}

// OutboundMessage is one turn headed back to a caller: the echoed user turn
// first, then the assistant turn.
type OutboundMessage struct {
	ConnID  string
	Role    string
	Message string
}

type MessageBus struct {
	Inbound chan InboundMessage

	mu   sync.RWMutex
	subs map[string]func(OutboundMessage)
}

func NewMessageBus(bufSize int) *MessageBus {
	return &MessageBus{
		Inbound: make(chan InboundMessage, bufSize),
		subs:    make(map[string]func(OutboundMessage)),
	}
}

// SubscribeOutbound registers the handler for one connection. The handler is
// replaced on duplicate subscribe.
func (b *MessageBus) SubscribeOutbound(connID string, fn func(OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[connID] = fn
}

func (b *MessageBus) UnsubscribeOutbound(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, connID)
}

// PublishOutbound delivers to the subscriber for msg.ConnID. Messages for
// connections that have gone away are dropped.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	b.mu.RLock()
	fn, ok := b.subs[msg.ConnID]
	b.mu.RUnlock()
	if !ok {
		log.Printf("[bus] no subscriber for connection %s, dropping %s turn", msg.ConnID, msg.Role)
		return
	}
	fn(msg)
}
