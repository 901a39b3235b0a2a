package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkEventRoundtrip(t *testing.T) {
	e := NewChunk("conv-1", "turn-1", 1, "hello", "hello")
	b, err := json.Marshal(e)
	require.NoError(t, err)

	decoded, err := NewEventFromJson(b)
	require.NoError(t, err)

	chunk, ok := decoded.(*EventChunk)
	require.True(t, ok)
	require.Equal(t, e.Metadata().ID, chunk.Metadata().ID)
	require.Equal(t, "conv-1", chunk.Metadata().ConversationID)
	require.Equal(t, "turn-1", chunk.Metadata().TurnID)
	require.Equal(t, 1, chunk.Speaker)
	require.Equal(t, "hello", chunk.Delta)
}

func TestGenerationCompleteRoundtrip(t *testing.T) {
	msg := CompletedMessage{Speaker: 2, Content: "final words", Sequence: 3}
	e := NewGenerationComplete("conv-1", "turn-9", 2, msg)
	b, err := json.Marshal(e)
	require.NoError(t, err)

	decoded, err := NewEventFromJson(b)
	require.NoError(t, err)
	complete, ok := decoded.(*EventGenerationComplete)
	require.True(t, ok)
	require.Equal(t, msg.Content, complete.Message.Content)
	require.Equal(t, msg.Sequence, complete.Message.Sequence)
}

func TestStatusEventHasNoTurnID(t *testing.T) {
	e := NewStatus("conv-1", "idle", 2, 4)
	b, err := json.Marshal(e)
	require.NoError(t, err)

	decoded, err := NewEventFromJson(b)
	require.NoError(t, err)
	status, ok := decoded.(*EventStatus)
	require.True(t, ok)
	require.Empty(t, status.Metadata().TurnID)
	require.Equal(t, "idle", status.Status)
	require.Equal(t, 2, status.Turn)
	require.Equal(t, 4, status.ExchangeCount)
}

func TestNewEventFromJsonRejectsGarbage(t *testing.T) {
	_, err := NewEventFromJson([]byte(`not json`))
	require.Error(t, err)

	_, err = NewEventFromJson([]byte(`{"type":"no-such-event"}`))
	require.ErrorContains(t, err, "unknown event type")
}

func TestTopicNaming(t *testing.T) {
	require.Equal(t, "dialogue:abc", TopicForConversation("abc"))
	require.NotEqual(t, TopicFirehose, TopicForConversation("abc"))
}
