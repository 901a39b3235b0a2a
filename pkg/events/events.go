package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// EventType identifies the kind of a dialogue event on the wire.
type EventType string

const (
	EventTypeGenerationStart    EventType = "generation-start"
	EventTypeChunk              EventType = "chunk"
	EventTypeGenerationComplete EventType = "generation-complete"
	EventTypeGenerationError    EventType = "generation-error"
	EventTypeStatus             EventType = "status"
	EventTypeClosed             EventType = "closed"
)

// Metadata is carried by every event. TurnID groups all events belonging to
// one generation call so that stale chunks from a cancelled call can be told
// apart from the current one.
type Metadata struct {
	ID             uuid.UUID `json:"id"`
	ConversationID string    `json:"conversation_id"`
	TurnID         string    `json:"turn_id,omitempty"`
}

// Event is a typed dialogue event published on a conversation topic.
type Event interface {
	Type() EventType
	Metadata() Metadata
}

type commonEvent struct {
	EventType EventType `json:"type"`
	Meta      Metadata  `json:"meta"`
}

func (e *commonEvent) Type() EventType    { return e.EventType }
func (e *commonEvent) Metadata() Metadata { return e.Meta }

func newCommon(t EventType, convID, turnID string) commonEvent {
	return commonEvent{
		EventType: t,
		Meta: Metadata{
			ID:             uuid.New(),
			ConversationID: convID,
			TurnID:         turnID,
		},
	}
}

// CompletedMessage is the finalized-turn payload attached to a
// generation-complete event.
type CompletedMessage struct {
	Speaker   int       `json:"speaker"`
	Content   string    `json:"content"`
	Sequence  int       `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`
}

// EventGenerationStart marks the beginning of one speaker's turn.
type EventGenerationStart struct {
	commonEvent
	Speaker int `json:"speaker"`
}

// EventChunk carries one streamed fragment of the in-flight turn. Completion
// accumulates everything streamed so far for that turn.
type EventChunk struct {
	commonEvent
	Speaker    int    `json:"speaker"`
	Delta      string `json:"delta"`
	Completion string `json:"completion"`
}

// EventGenerationComplete marks a finalized turn and carries the appended
// message.
type EventGenerationComplete struct {
	commonEvent
	Speaker int              `json:"speaker"`
	Message CompletedMessage `json:"message"`
}

// EventGenerationError reports a failed or cancelled generation call. The
// turn it belonged to produced no message.
type EventGenerationError struct {
	commonEvent
	Speaker     int    `json:"speaker"`
	ErrorString string `json:"error"`
}

// EventStatus reports a conversation state transition.
type EventStatus struct {
	commonEvent
	Status        string `json:"status"`
	Turn          int    `json:"turn"`
	ExchangeCount int    `json:"exchange_count"`
}

// EventClosed is the terminal event emitted when a conversation is torn down.
type EventClosed struct {
	commonEvent
}

func NewGenerationStart(convID, turnID string, speaker int) *EventGenerationStart {
	return &EventGenerationStart{commonEvent: newCommon(EventTypeGenerationStart, convID, turnID), Speaker: speaker}
}

func NewChunk(convID, turnID string, speaker int, delta, completion string) *EventChunk {
	return &EventChunk{commonEvent: newCommon(EventTypeChunk, convID, turnID), Speaker: speaker, Delta: delta, Completion: completion}
}

func NewGenerationComplete(convID, turnID string, speaker int, msg CompletedMessage) *EventGenerationComplete {
	return &EventGenerationComplete{commonEvent: newCommon(EventTypeGenerationComplete, convID, turnID), Speaker: speaker, Message: msg}
}

func NewGenerationError(convID, turnID string, speaker int, errStr string) *EventGenerationError {
	return &EventGenerationError{commonEvent: newCommon(EventTypeGenerationError, convID, turnID), Speaker: speaker, ErrorString: errStr}
}

func NewStatus(convID string, status string, turn int, exchangeCount int) *EventStatus {
	return &EventStatus{commonEvent: newCommon(EventTypeStatus, convID, ""), Status: status, Turn: turn, ExchangeCount: exchangeCount}
}

func NewClosed(convID string) *EventClosed {
	return &EventClosed{commonEvent: newCommon(EventTypeClosed, convID, "")}
}

// NewEventFromJson decodes a payload published on a conversation topic back
// into its typed event.
func NewEventFromJson(b []byte) (Event, error) {
	var peek struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(b, &peek); err != nil {
		return nil, errors.Wrap(err, "peek event type")
	}

	var e Event
	switch peek.Type {
	case EventTypeGenerationStart:
		e = &EventGenerationStart{}
	case EventTypeChunk:
		e = &EventChunk{}
	case EventTypeGenerationComplete:
		e = &EventGenerationComplete{}
	case EventTypeGenerationError:
		e = &EventGenerationError{}
	case EventTypeStatus:
		e = &EventStatus{}
	case EventTypeClosed:
		e = &EventClosed{}
	default:
		return nil, errors.Errorf("unknown event type %q", peek.Type)
	}
	if err := json.Unmarshal(b, e); err != nil {
		return nil, errors.Wrapf(err, "decode %s event", peek.Type)
	}
	return e, nil
}

// TopicForConversation computes the event topic for a conversation.
func TopicForConversation(convID string) string { return "dialogue:" + convID }

// TopicFirehose carries a copy of every event from every conversation, for
// process-wide observers such as the pretty printer.
const TopicFirehose = "dialogue"
