package stream

import (
	"context"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// DefaultIdleTimeout is how long a conversation's broadcaster lingers after
// its last subscriber leaves before it is reaped.
const DefaultIdleTimeout = 5 * time.Minute

// Hub hands out per-conversation broadcasters. It lazily creates a
// broadcaster on the first join and reaps it once the pool has been empty
// for the idle timeout.
type Hub struct {
	ctx         context.Context
	sub         message.Subscriber
	idleTimeout time.Duration

	mu    sync.Mutex
	convs map[string]*Broadcaster
}

type HubOption func(*Hub)

func WithIdleTimeout(d time.Duration) HubOption {
	return func(h *Hub) { h.idleTimeout = d }
}

// NewHub builds a hub whose broadcasters subscribe through sub and live
// within ctx.
func NewHub(ctx context.Context, sub message.Subscriber, opts ...HubOption) *Hub {
	h := &Hub{
		ctx:         ctx,
		sub:         sub,
		idleTimeout: DefaultIdleTimeout,
		convs:       map[string]*Broadcaster{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Join attaches a connection to a conversation's stream under the given
// role, creating the broadcaster if this is the first subscriber. A
// non-nil greeting is evaluated and delivered atomically with the
// subscription, so it precedes every broadcast frame on this connection.
func (h *Hub) Join(convID string, role Role, conn *websocket.Conn, greeting func() []byte) (*Broadcaster, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.convs[convID]
	if !ok {
		pool := NewPool(convID, h.idleTimeout, func() { h.reap(convID) })
		var err error
		b, err = newBroadcaster(h.ctx, convID, h.sub, pool)
		if err != nil {
			return nil, err
		}
		h.convs[convID] = b
		log.Debug().Str("conv_id", convID).Msg("broadcaster started")
	}
	b.pool.AddWithGreeting(conn, role, greeting)
	return b, nil
}

// Leave removes a disconnected client and closes its socket.
func (h *Hub) Leave(convID string, conn *websocket.Conn) {
	h.mu.Lock()
	b, ok := h.convs[convID]
	h.mu.Unlock()
	if ok {
		b.pool.Remove(conn)
	}
}

// Detach removes a connection from a conversation's stream without closing
// the socket, for clients switching conversations.
func (h *Hub) Detach(convID string, conn *websocket.Conn) {
	h.mu.Lock()
	b, ok := h.convs[convID]
	h.mu.Unlock()
	if ok {
		b.pool.Detach(conn)
	}
}

// CloseConversation tears down a conversation's broadcaster and every
// attached connection.
func (h *Hub) CloseConversation(convID string) {
	h.mu.Lock()
	b, ok := h.convs[convID]
	if ok {
		delete(h.convs, convID)
	}
	h.mu.Unlock()
	if ok {
		b.Close()
		log.Debug().Str("conv_id", convID).Msg("broadcaster closed")
	}
}

func (h *Hub) reap(convID string) {
	h.mu.Lock()
	b, ok := h.convs[convID]
	if ok && b.pool.IsEmpty() {
		delete(h.convs, convID)
	} else {
		ok = false
	}
	h.mu.Unlock()
	if ok {
		b.Close()
		log.Debug().Str("conv_id", convID).Msg("idle broadcaster reaped")
	}
}

// Count returns the number of live broadcasters.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.convs)
}

// Connections returns the number of attached connections across every
// conversation.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, b := range h.convs {
		n += b.pool.Count()
	}
	return n
}
