package dialogue

import (
	"time"
)

// Speaker identifies one of the two actor slots.
type Speaker int

const (
	Speaker1 Speaker = 1
	Speaker2 Speaker = 2
)

func (s Speaker) Other() Speaker {
	if s == Speaker1 {
		return Speaker2
	}
	return Speaker1
}

func (s Speaker) Valid() bool { return s == Speaker1 || s == Speaker2 }

// Message is one finalized turn. Immutable once appended.
type Message struct {
	Speaker   Speaker   `json:"speaker"`
	Content   string    `json:"content"`
	Sequence  int       `json:"sequence"`
	CreatedAt time.Time `json:"createdAt"`
}

// Log is the append-only ordered record of turns for one conversation.
// Sequence numbers are assigned on append and are gapless by construction.
// The log itself is not goroutine-safe; the owning session serializes
// access.
type Log struct {
	messages []Message
}

// Append finalizes a turn. The new message gets the next sequence number.
func (l *Log) Append(speaker Speaker, content string) Message {
	msg := Message{
		Speaker:   speaker,
		Content:   content,
		Sequence:  len(l.messages),
		CreatedAt: time.Now(),
	}
	l.messages = append(l.messages, msg)
	return msg
}

func (l *Log) Len() int { return len(l.messages) }

// Last returns the most recent message, if any.
func (l *Log) Last() (Message, bool) {
	if len(l.messages) == 0 {
		return Message{}, false
	}
	return l.messages[len(l.messages)-1], true
}

// Messages returns a copy of the log.
func (l *Log) Messages() []Message {
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}
