package dialogue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/colloquy/pkg/engine"
	"github.com/go-go-golems/colloquy/pkg/events"
)

// Status is the lifecycle state of a session.
type Status string

const (
	// StatusIdle means no turn is in flight and generation may proceed.
	StatusIdle Status = "idle"
	// StatusGenerating means exactly one turn is in flight. All generation
	// commands are rejected until it settles.
	StatusGenerating Status = "generating"
	// StatusExhausted means the exchange limit was reached. Terminal for
	// generation; history stays readable.
	StatusExhausted Status = "exhausted"
	// StatusErrored means the last turn failed. The turn holder is
	// unchanged and the same turn may be retried.
	StatusErrored Status = "errored"
)

// actor binds one speaker slot's resolved profiles and engine.
type actor struct {
	philosopher PhilosopherProfile
	author      AuthorProfile
	engine      engine.Engine
	selector    engine.Selector
}

// Session is one conversation: an append-only message log, a turn holder,
// and a lifecycle status, mutated by a single writer goroutine at a time.
// All external commands either win the writer slot or are rejected with
// ErrBusy; nothing is queued.
type Session struct {
	ID        string
	Config    Config
	CreatedAt time.Time

	actor1      actor
	actor2      actor
	sink        *events.Sink
	turnTimeout time.Duration

	mu      sync.Mutex
	log     Log
	status  Status
	turn    Speaker
	running bool
	closed  bool
	cancel  context.CancelFunc
}

type SessionOption func(*Session)

// WithTurnTimeout bounds each generation call. An expired turn behaves
// exactly like an engine failure.
func WithTurnTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.turnTimeout = d }
}

// NewSession resolves both actors against the catalog and engine registry
// and returns a session ready for its opening turn. The config must already
// be validated.
func NewSession(id string, cfg Config, engines *engine.Registry, catalog *Catalog, sink *events.Sink, opts ...SessionOption) (*Session, error) {
	a1, err := resolveActor(cfg.Actor1, engines, catalog)
	if err != nil {
		return nil, errors.Wrap(err, "actor1")
	}
	a2, err := resolveActor(cfg.Actor2, engines, catalog)
	if err != nil {
		return nil, errors.Wrap(err, "actor2")
	}
	s := &Session{
		ID:        id,
		Config:    cfg,
		CreatedAt: time.Now(),
		actor1:    a1,
		actor2:    a2,
		sink:      sink,
		status:    StatusIdle,
		turn:      Speaker1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func resolveActor(cfg ActorConfig, engines *engine.Registry, catalog *Catalog) (actor, error) {
	p, ok := catalog.Philosopher(cfg.Philosopher)
	if !ok {
		return actor{}, errors.Errorf("unknown philosopher %q", cfg.Philosopher)
	}
	a, ok := catalog.Author(cfg.Author)
	if !ok {
		return actor{}, errors.Errorf("unknown author %q", cfg.Author)
	}
	eng, sel, err := engines.Resolve(cfg.Engine)
	if err != nil {
		return actor{}, err
	}
	return actor{philosopher: p, author: a, engine: eng, selector: sel}, nil
}

func (s *Session) actorFor(sp Speaker) actor {
	if sp == Speaker1 {
		return s.actor1
	}
	return s.actor2
}

// Snapshot is a settled-state view of a session: finalized messages only,
// never in-flight partial text.
type Snapshot struct {
	ConversationID string    `json:"conversationId"`
	Config         Config    `json:"config"`
	Status         Status    `json:"status"`
	Turn           Speaker   `json:"turn"`
	ExchangeCount  int       `json:"exchangeCount"`
	Messages       []Message `json:"messages"`
}

// Snapshot returns the current settled state. Safe to call at any time,
// including mid-generation.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ConversationID: s.ID,
		Config:         s.Config,
		Status:         s.status,
		Turn:           s.turn,
		ExchangeCount:  s.log.Len() / 2,
		Messages:       s.log.Messages(),
	}
}

// CurrentStatus returns the lifecycle status at this instant.
func (s *Session) CurrentStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// StartOpening begins the conversation with speaker 1's opening statement.
// Exactly one turn is generated. Rejected if a turn is in flight or the
// conversation already has messages.
func (s *Session) StartOpening(ctx context.Context) error {
	return s.begin(ctx, 1, func() error {
		if s.log.Len() > 0 {
			return newValidationError("", "dialogue already started")
		}
		return nil
	})
}

// ContinueExchange drives one full exchange: the current turn holder speaks,
// then the other speaker responds. Status is re-checked between the two
// turns, so hitting the exchange limit mid-pair stops cleanly. A
// conversation whose opening turn failed has an empty log and errored
// status; continue retries the opening rather than rejecting it.
func (s *Session) ContinueExchange(ctx context.Context) error {
	return s.begin(ctx, 2, func() error {
		if s.log.Len() == 0 && s.status != StatusErrored {
			return newValidationError("", "dialogue not started")
		}
		return nil
	})
}

// begin claims the single writer slot and spawns the turn goroutine. The
// extra check runs under the lock, after the busy and exhaustion gates.
func (s *Session) begin(ctx context.Context, turns int, check func() error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrNotFound
	}
	if s.running {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.status == StatusExhausted {
		s.mu.Unlock()
		return ErrExhausted
	}
	if err := check(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.running = true
	s.status = StatusGenerating
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	go s.runTurns(runCtx, turns)
	return nil
}

// runTurns is the single writer for the duration of a command. It generates
// up to n turns, settling the session after each one.
func (s *Session) runTurns(ctx context.Context, n int) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.mu.Unlock()
	}()

	for i := 0; i < n; i++ {
		s.mu.Lock()
		if s.closed || s.status == StatusExhausted {
			s.mu.Unlock()
			return
		}
		s.status = StatusGenerating
		speaker := s.turn
		peer := ""
		if last, ok := s.log.Last(); ok {
			peer = TrailingWindow(last.Content, ContextWindowChars)
		}
		s.mu.Unlock()
		// Each turn of the pair announces Generating before its first
		// event. Publishing happens off the command goroutine, so blocking
		// publishers cannot stall the websocket read loop.
		s.publishStatus()

		if err := s.runTurn(ctx, speaker, peer); err != nil {
			s.mu.Lock()
			s.status = StatusErrored
			s.mu.Unlock()
			log.Warn().Err(err).Str("conversation_id", s.ID).Int("speaker", int(speaker)).
				Msg("turn generation failed")
			s.publishStatus()
			return
		}

		s.mu.Lock()
		if s.log.Len()/2 >= MaxExchanges {
			// The turn holder does not flip on the exchange that
			// exhausts the conversation.
			s.status = StatusExhausted
		} else {
			s.turn = speaker.Other()
			s.status = StatusIdle
		}
		s.mu.Unlock()
		s.publishStatus()
	}
}

// runTurn drives one generation call. The in-flight completion lives only
// in this goroutine's locals; it reaches the log solely through Append on
// success, and is discarded wholesale on failure.
func (s *Session) runTurn(ctx context.Context, speaker Speaker, peer string) error {
	if s.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.turnTimeout)
		defer cancel()
	}
	act := s.actorFor(speaker)
	turnID := uuid.NewString()

	s.publish(events.NewGenerationStart(s.ID, turnID, int(speaker)))

	prompt := BuildPrompt(PromptInput{
		Philosopher: act.philosopher,
		Author:      act.author,
		Topic:       s.Config.Topic,
		PeerContext: peer,
	})

	var completion string
	content, err := act.engine.Generate(ctx, engine.Request{
		Model:   act.selector.Model,
		Prompt:  prompt,
		Options: DefaultOptions,
	}, func(delta string) error {
		completion += delta
		s.publish(events.NewChunk(s.ID, turnID, int(speaker), delta, completion))
		return ctx.Err()
	})
	if err != nil {
		engErr := &EngineError{Speaker: speaker, Err: err}
		s.publish(events.NewGenerationError(s.ID, turnID, int(speaker), engErr.Error()))
		return engErr
	}

	s.mu.Lock()
	msg := s.log.Append(speaker, content)
	s.mu.Unlock()

	s.publish(events.NewGenerationComplete(s.ID, turnID, int(speaker), events.CompletedMessage{
		Speaker:   int(msg.Speaker),
		Content:   msg.Content,
		Sequence:  msg.Sequence,
		CreatedAt: msg.CreatedAt,
	}))
	return nil
}

// Stop cancels the in-flight generation call, if any. The turn settles as
// errored through the normal failure path.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Close cancels any in-flight generation and marks the session dead. All
// subsequent commands return ErrNotFound.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Session) publishStatus() {
	s.mu.Lock()
	e := events.NewStatus(s.ID, string(s.status), int(s.turn), s.log.Len()/2)
	s.mu.Unlock()
	s.publish(e)
}

func (s *Session) publish(e events.Event) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Publish(e); err != nil {
		log.Error().Err(err).Str("conversation_id", s.ID).Str("event", string(e.Type())).
			Msg("could not publish dialogue event")
	}
}
