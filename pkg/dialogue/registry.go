package dialogue

import (
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/colloquy/pkg/engine"
	"github.com/go-go-golems/colloquy/pkg/events"
)

// DefaultMaxSessions bounds concurrent conversations per process.
const DefaultMaxSessions = 256

// Registry owns the live sessions of a process and hands each one a sink
// publishing on its conversation topic.
type Registry struct {
	engines     *engine.Registry
	catalog     *Catalog
	pub         message.Publisher
	max         int
	turnTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

type RegistryOption func(*Registry)

func WithMaxSessions(n int) RegistryOption {
	return func(r *Registry) { r.max = n }
}

// WithDefaultTurnTimeout bounds every generation call in every created
// session.
func WithDefaultTurnTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.turnTimeout = d }
}

func NewRegistry(engines *engine.Registry, catalog *Catalog, pub message.Publisher, opts ...RegistryOption) *Registry {
	r := &Registry{
		engines:  engines,
		catalog:  catalog,
		pub:      pub,
		max:      DefaultMaxSessions,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Catalog() *Catalog         { return r.catalog }
func (r *Registry) Engines() *engine.Registry { return r.engines }

// Create validates the configuration, mints a conversation id, and
// registers a fresh idle session.
func (r *Registry) Create(cfg Config) (*Session, error) {
	if err := cfg.Validate(r.engines, r.catalog); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	sink := events.NewSink(r.pub, events.TopicForConversation(id))
	var sessOpts []SessionOption
	if r.turnTimeout > 0 {
		sessOpts = append(sessOpts, WithTurnTimeout(r.turnTimeout))
	}
	sess, err := NewSession(id, cfg, r.engines, r.catalog, sink, sessOpts...)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sessions) >= r.max {
		return nil, ErrCapacity
	}
	r.sessions[id] = sess

	log.Info().Str("conversation_id", id).
		Str("philosopher1", cfg.Actor1.Philosopher).Str("author1", cfg.Actor1.Author).
		Str("philosopher2", cfg.Actor2.Philosopher).Str("author2", cfg.Actor2.Author).
		Msg("conversation created")
	return sess, nil
}

// Get looks up a live session by conversation id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}

// Destroy tears a conversation down: the closed event goes out on its topic
// first so observers can settle, then the session is cancelled and dropped.
func (r *Registry) Destroy(id string) error {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	sink := events.NewSink(r.pub, events.TopicForConversation(id))
	if err := sink.Publish(events.NewClosed(id)); err != nil {
		log.Error().Err(err).Str("conversation_id", id).Msg("could not publish closed event")
	}
	sess.Close()
	log.Info().Str("conversation_id", id).Msg("conversation destroyed")
	return nil
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
