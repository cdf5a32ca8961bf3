// Package events fans pipeline activity out to in-process listeners such as
// the monitoring websocket.
package events

import (
	"sync"
	"time"
)

const (
	KindSignalPublished = "signal.published"
	KindSignalApproved  = "signal.approved"
	KindSignalRejected  = "signal.rejected"
	KindTradeExecuted   = "trade.executed"
	KindPositionClosed  = "position.closed"
	KindSnapshot        = "risk.snapshot"
)

type Event struct {
	Kind      string      `json:"kind"`
	Agent     string      `json:"agent"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Sink receives events. Emit must not block.
type Sink interface {
	Emit(kind string, payload interface{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) Emit(string, interface{}) {}

// Hub broadcasts events to subscribers. A subscriber whose buffer is full
// misses the event instead of stalling the agent.
type Hub struct {
	agent string

	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewHub(agent string) *Hub {
	return &Hub{
		agent: agent,
		subs:  make(map[chan Event]struct{}),
	}
}

func (h *Hub) Emit(kind string, payload interface{}) {
	ev := Event{Kind: kind, Agent: h.agent, Payload: payload, Timestamp: time.Now().UTC()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe returns a buffered stream and a cancel func that releases it.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers is the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
