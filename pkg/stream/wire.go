package stream

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/colloquy/pkg/dialogue"
	"github.com/go-go-golems/colloquy/pkg/events"
)

// Wire frame types sent to websocket clients. Every frame is a JSON object
// with a "type" discriminator.
const (
	FrameHello              = "hello"
	FrameDialogueStarted    = "dialogue_started"
	FrameSnapshot           = "conversation_snapshot"
	FrameMessageChunk       = "message_chunk"
	FramePeerGenerating     = "peer_generating"
	FrameGenerationStart    = "generation_start"
	FrameGenerationComplete = "generation_complete"
	FrameGenerationError    = "generation_error"
	FrameStatus             = "status"
	FrameConversationClosed = "conversation_closed"
	FrameMetadata           = "metadata"
	FrameCommandError       = "command_error"
)

type snapshotFrame struct {
	Type     string            `json:"type"`
	Snapshot dialogue.Snapshot `json:"snapshot"`
}

type chunkFrame struct {
	Type       string `json:"type"`
	TurnID     string `json:"turnId"`
	Speaker    int    `json:"speaker"`
	Delta      string `json:"delta"`
	Completion string `json:"completion"`
}

type peerGeneratingFrame struct {
	Type    string `json:"type"`
	TurnID  string `json:"turnId"`
	Speaker int    `json:"speaker"`
}

type generationStartFrame struct {
	Type    string `json:"type"`
	TurnID  string `json:"turnId"`
	Speaker int    `json:"speaker"`
}

type generationCompleteFrame struct {
	Type    string                  `json:"type"`
	TurnID  string                  `json:"turnId"`
	Speaker int                     `json:"speaker"`
	Message events.CompletedMessage `json:"message"`
}

type generationErrorFrame struct {
	Type    string `json:"type"`
	TurnID  string `json:"turnId"`
	Speaker int    `json:"speaker"`
	Error   string `json:"error"`
}

type statusFrame struct {
	Type          string `json:"type"`
	Status        string `json:"status"`
	Turn          int    `json:"turn"`
	ExchangeCount int    `json:"exchangeCount"`
}

type closedFrame struct {
	Type string `json:"type"`
}

// mustFrame marshals a frame struct. The frame types contain nothing that
// can fail to marshal; a nil return is logged and skipped by the pool.
func mustFrame(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("could not marshal wire frame")
		return nil
	}
	return b
}

func SnapshotFrame(snap dialogue.Snapshot) []byte {
	return mustFrame(snapshotFrame{Type: FrameSnapshot, Snapshot: snap})
}
