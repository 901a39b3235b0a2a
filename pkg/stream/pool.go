package stream

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	defaultWriteTimeout = 10 * time.Second

	// outboundQueueSize is how many frames may pile up for one connection
	// before it is considered too slow and dropped.
	outboundQueueSize = 256
)

// member is one subscribed connection: its role plus the outbound queue
// drained by its writer goroutine.
type member struct {
	role  Role
	queue chan []byte
	quit  chan struct{}
}

// Pool manages the websocket connections subscribed to one conversation,
// each tagged with a role. Socket writes never happen under the pool lock:
// every connection has a buffered outbound queue and a dedicated writer
// goroutine, so a slow or dead connection cannot stall delivery to the
// others or block whoever is publishing. A connection whose queue
// overflows is dropped.
type Pool struct {
	convID       string
	writeTimeout time.Duration
	queueSize    int

	mu          sync.Mutex
	conns       map[*websocket.Conn]*member
	idleTimer   *time.Timer
	idleTimeout time.Duration
	onIdle      func()
}

func NewPool(convID string, idleTimeout time.Duration, onIdle func()) *Pool {
	return &Pool{
		convID:       convID,
		writeTimeout: defaultWriteTimeout,
		queueSize:    outboundQueueSize,
		conns:        map[*websocket.Conn]*member{},
		idleTimeout:  idleTimeout,
		onIdle:       onIdle,
	}
}

func (p *Pool) Add(conn *websocket.Conn, role Role) {
	p.AddWithGreeting(conn, role, nil)
}

// AddWithGreeting registers a connection and enqueues a greeting frame
// before any broadcast can reach it. The greeting is computed under the
// pool lock, so its content is consistent with every frame that follows
// it on this connection.
func (p *Pool) AddWithGreeting(conn *websocket.Conn, role Role, greeting func() []byte) {
	if p == nil || conn == nil {
		return
	}
	p.mu.Lock()
	if m, ok := p.conns[conn]; ok {
		// Rejoining the same conversation: refresh the role and deliver
		// the greeting through the existing queue.
		m.role = role
		if greeting != nil {
			if data := greeting(); len(data) > 0 {
				select {
				case m.queue <- data:
				default:
					p.detachLocked(conn)
					p.scheduleIdleTimerLocked()
					p.mu.Unlock()
					_ = closeConn(conn)
					return
				}
			}
		}
		p.mu.Unlock()
		return
	}
	m := &member{role: role, queue: make(chan []byte, p.queueSize), quit: make(chan struct{})}
	if greeting != nil {
		if data := greeting(); len(data) > 0 {
			m.queue <- data
		}
	}
	p.conns[conn] = m
	p.stopIdleTimerLocked()
	p.mu.Unlock()
	go p.writeLoop(conn, m)
}

// detachLocked removes the connection and stops its writer. Callers hold
// p.mu.
func (p *Pool) detachLocked(conn *websocket.Conn) bool {
	m, ok := p.conns[conn]
	if !ok {
		return false
	}
	delete(p.conns, conn)
	close(m.quit)
	return true
}

func (p *Pool) Remove(conn *websocket.Conn) {
	if p == nil || conn == nil {
		_ = closeConn(conn)
		return
	}
	p.mu.Lock()
	p.detachLocked(conn)
	p.scheduleIdleTimerLocked()
	p.mu.Unlock()
	_ = closeConn(conn)
}

// Detach removes a connection without closing it, for clients switching to
// another conversation on the same socket.
func (p *Pool) Detach(conn *websocket.Conn) {
	if p == nil || conn == nil {
		return
	}
	p.mu.Lock()
	p.detachLocked(conn)
	p.scheduleIdleTimerLocked()
	p.mu.Unlock()
}

// DetachAll empties the pool without closing the sockets. Used on
// conversation teardown, where clients keep their command channel.
func (p *Pool) DetachAll() {
	if p == nil {
		return
	}
	p.mu.Lock()
	for conn := range p.conns {
		p.detachLocked(conn)
	}
	p.scheduleIdleTimerLocked()
	p.mu.Unlock()
}

// Broadcast fans one logical event out to every connection, letting the
// caller shape the payload per role. A nil frame for a role means that role
// receives nothing for this event. Broadcast only enqueues; it never waits
// on socket I/O.
func (p *Pool) Broadcast(frameFor func(Role) []byte) {
	if p == nil || frameFor == nil {
		return
	}
	frames := map[Role][]byte{}
	var slow []*websocket.Conn
	p.mu.Lock()
	for conn, m := range p.conns {
		data, ok := frames[m.role]
		if !ok {
			data = frameFor(m.role)
			frames[m.role] = data
		}
		if len(data) == 0 {
			continue
		}
		select {
		case m.queue <- data:
		default:
			// A full queue means the consumer stopped keeping up. Drop it
			// so the rest of the fan-out stays live.
			log.Warn().Str("component", "stream").Str("conv_id", p.convID).Msg("outbound queue overflow, dropping connection")
			p.detachLocked(conn)
			slow = append(slow, conn)
		}
	}
	p.scheduleIdleTimerLocked()
	p.mu.Unlock()
	for _, conn := range slow {
		_ = closeConn(conn)
	}
}

// SendToOne delivers a point-to-point frame, such as a snapshot, to a
// single member of the pool. It reports whether the connection was still a
// member when the send was attempted.
func (p *Pool) SendToOne(conn *websocket.Conn, data []byte) bool {
	if p == nil || conn == nil || len(data) == 0 {
		return false
	}
	p.mu.Lock()
	m, ok := p.conns[conn]
	if !ok {
		p.mu.Unlock()
		return false
	}
	select {
	case m.queue <- data:
		p.mu.Unlock()
	default:
		log.Warn().Str("component", "stream").Str("conv_id", p.convID).Msg("outbound queue overflow, dropping connection")
		p.detachLocked(conn)
		p.scheduleIdleTimerLocked()
		p.mu.Unlock()
		_ = closeConn(conn)
	}
	return true
}

// writeLoop drains one connection's queue. It owns every write to the
// socket; a failed or timed-out write drops the connection.
func (p *Pool) writeLoop(conn *websocket.Conn, m *member) {
	for {
		select {
		case <-m.quit:
			return
		case data := <-m.queue:
			if p.writeTimeout > 0 {
				_ = conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("component", "stream").Str("conv_id", p.convID).Msg("ws write failed, dropping connection")
				p.mu.Lock()
				dropped := p.detachLocked(conn)
				p.scheduleIdleTimerLocked()
				p.mu.Unlock()
				if dropped {
					_ = closeConn(conn)
				}
				return
			}
		}
	}
}

func (p *Pool) Count() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

func (p *Pool) IsEmpty() bool {
	return p.Count() == 0
}

func (p *Pool) CloseAll() {
	if p == nil {
		return
	}
	p.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(p.conns))
	for conn := range p.conns {
		p.detachLocked(conn)
		conns = append(conns, conn)
	}
	p.stopIdleTimerLocked()
	p.mu.Unlock()
	for _, conn := range conns {
		_ = closeConn(conn)
	}
}

func (p *Pool) stopIdleTimerLocked() {
	if p.idleTimer != nil {
		p.idleTimer.Stop()
		p.idleTimer = nil
	}
}

func (p *Pool) scheduleIdleTimerLocked() {
	if len(p.conns) != 0 || p.idleTimeout <= 0 || p.onIdle == nil {
		p.stopIdleTimerLocked()
		return
	}
	p.stopIdleTimerLocked()
	p.idleTimer = time.AfterFunc(p.idleTimeout, p.triggerIdle)
}

func (p *Pool) triggerIdle() {
	if p == nil {
		return
	}
	var callback func()
	p.mu.Lock()
	if len(p.conns) == 0 {
		callback = p.onIdle
	}
	p.idleTimer = nil
	p.mu.Unlock()
	if callback != nil {
		callback()
	}
}

func closeConn(conn *websocket.Conn) error {
	if conn == nil {
		return nil
	}
	return conn.Close()
}
