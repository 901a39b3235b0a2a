package dialogue

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrBusy rejects a command that is illegal while a turn is in flight.
	// Commands are rejected, not queued.
	ErrBusy = errors.New("a turn is already being generated")

	// ErrExhausted rejects further generation once the exchange limit is
	// reached. History stays readable.
	ErrExhausted = errors.New("exchange limit reached")

	// ErrNotFound is returned for unknown conversation ids.
	ErrNotFound = errors.New("conversation not found")

	// ErrCapacity rejects conversation creation once the per-process
	// session limit is reached.
	ErrCapacity = errors.New("too many live conversations")
)

// ValidationError reports a rejected configuration or command shape. It is
// raised synchronously, before any state is created or mutated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func newValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// EngineError wraps a failed or timed-out generation call. It isolates to
// the turn it occurred in; the conversation stays retryable.
type EngineError struct {
	Speaker Speaker
	Err     error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("generation failed for speaker %d: %v", e.Speaker, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }
