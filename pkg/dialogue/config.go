package dialogue

import (
	"strings"
	"unicode/utf8"

	"github.com/go-go-golems/colloquy/pkg/engine"
)

const (
	// TopicMinLen and TopicMaxLen bound the discussion topic, in runes.
	TopicMinLen = 5
	TopicMaxLen = 200

	// MaxExchanges caps a conversation at this many speaker-1/speaker-2
	// pairs. Reaching it is terminal for generation.
	MaxExchanges = 20

	// ContextWindowChars is the trailing window of the opposing speaker's
	// last message passed as context to a responding turn.
	ContextWindowChars = 500
)

// DefaultOptions are the sampling parameters used for every turn.
var DefaultOptions = engine.Options{Temperature: 0.8, TopP: 0.9, TopK: 40}

// ActorConfig assigns a philosopher, an author voice, and a generation
// engine to one speaker slot.
type ActorConfig struct {
	Philosopher string `json:"philosopher"`
	Author      string `json:"author"`
	Engine      string `json:"engine"`
}

// Config is the validated configuration of one conversation.
type Config struct {
	Actor1 ActorConfig `json:"actor1"`
	Actor2 ActorConfig `json:"actor2"`
	Topic  string      `json:"topic"`
}

func (c Config) Actor(s Speaker) ActorConfig {
	if s == Speaker1 {
		return c.Actor1
	}
	return c.Actor2
}

// Validate rejects non-conforming configurations at the boundary: both
// actor slots must be fully specified and distinct, the topic length must
// be within bounds, and both engine selectors must resolve against the
// registry and the actor names against the catalog.
func (c Config) Validate(engines *engine.Registry, catalog *Catalog) error {
	if err := c.Actor1.validate("actor1", engines, catalog); err != nil {
		return err
	}
	if err := c.Actor2.validate("actor2", engines, catalog); err != nil {
		return err
	}
	if c.Actor1 == c.Actor2 {
		return newValidationError("actor2", "must differ from actor1")
	}
	topic := strings.TrimSpace(c.Topic)
	if n := utf8.RuneCountInString(topic); n < TopicMinLen || n > TopicMaxLen {
		return newValidationError("topic", "length must be between %d and %d characters", TopicMinLen, TopicMaxLen)
	}
	return nil
}

func (a ActorConfig) validate(slot string, engines *engine.Registry, catalog *Catalog) error {
	if strings.TrimSpace(a.Philosopher) == "" {
		return newValidationError(slot+".philosopher", "must not be empty")
	}
	if strings.TrimSpace(a.Author) == "" {
		return newValidationError(slot+".author", "must not be empty")
	}
	if catalog != nil {
		if _, ok := catalog.Philosopher(a.Philosopher); !ok {
			return newValidationError(slot+".philosopher", "unknown philosopher %q", a.Philosopher)
		}
		if _, ok := catalog.Author(a.Author); !ok {
			return newValidationError(slot+".author", "unknown author %q", a.Author)
		}
	}
	if engines != nil {
		if _, _, err := engines.Resolve(a.Engine); err != nil {
			return newValidationError(slot+".engine", "%s", err.Error())
		}
	} else if strings.TrimSpace(a.Engine) == "" {
		return newValidationError(slot+".engine", "must not be empty")
	}
	return nil
}
