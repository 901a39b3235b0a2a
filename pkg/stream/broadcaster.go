package stream

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/colloquy/pkg/events"
)

// Broadcaster is the per-conversation reader: it subscribes to the
// conversation's event topic and fans role-shaped frames out through the
// pool. One broadcaster exists per conversation with at least one
// subscriber.
type Broadcaster struct {
	convID string
	pool   *Pool
	cancel context.CancelFunc

	// notifiedTurn is the turn id for which the filtered-out viewer side
	// already received its peer-generating notice. Only the reader
	// goroutine touches it.
	notifiedTurn string
}

func newBroadcaster(ctx context.Context, convID string, sub message.Subscriber, pool *Pool) (*Broadcaster, error) {
	readerCtx, cancel := context.WithCancel(ctx)
	ch, err := sub.Subscribe(readerCtx, events.TopicForConversation(convID))
	if err != nil {
		cancel()
		return nil, err
	}
	b := &Broadcaster{convID: convID, pool: pool, cancel: cancel}
	go b.loop(ch)
	return b, nil
}

func (b *Broadcaster) loop(ch <-chan *message.Message) {
	for msg := range ch {
		e, err := events.NewEventFromJson(msg.Payload)
		msg.Ack()
		if err != nil {
			log.Warn().Err(err).Str("conv_id", b.convID).Msg("dropping undecodable dialogue event")
			continue
		}
		b.handle(e)
	}
}

func (b *Broadcaster) handle(e events.Event) {
	switch ev := e.(type) {
	case *events.EventGenerationStart:
		b.notifiedTurn = ""
		frame := mustFrame(generationStartFrame{
			Type:    FrameGenerationStart,
			TurnID:  ev.Metadata().TurnID,
			Speaker: ev.Speaker,
		})
		b.pool.Broadcast(func(Role) []byte { return frame })

	case *events.EventChunk:
		turnID := ev.Metadata().TurnID
		chunk := mustFrame(chunkFrame{
			Type:       FrameMessageChunk,
			TurnID:     turnID,
			Speaker:    ev.Speaker,
			Delta:      ev.Delta,
			Completion: ev.Completion,
		})
		var notice []byte
		if b.notifiedTurn != turnID {
			notice = mustFrame(peerGeneratingFrame{
				Type:    FramePeerGenerating,
				TurnID:  turnID,
				Speaker: ev.Speaker,
			})
		}
		sentNotice := false
		b.pool.Broadcast(func(r Role) []byte {
			if r.Sees(ev.Speaker) {
				return chunk
			}
			if notice != nil {
				sentNotice = true
				return notice
			}
			return nil
		})
		if sentNotice {
			b.notifiedTurn = turnID
		}

	case *events.EventGenerationComplete:
		frame := mustFrame(generationCompleteFrame{
			Type:    FrameGenerationComplete,
			TurnID:  ev.Metadata().TurnID,
			Speaker: ev.Speaker,
			Message: ev.Message,
		})
		b.pool.Broadcast(func(Role) []byte { return frame })

	case *events.EventGenerationError:
		frame := mustFrame(generationErrorFrame{
			Type:    FrameGenerationError,
			TurnID:  ev.Metadata().TurnID,
			Speaker: ev.Speaker,
			Error:   ev.ErrorString,
		})
		b.pool.Broadcast(func(Role) []byte { return frame })

	case *events.EventStatus:
		frame := mustFrame(statusFrame{
			Type:          FrameStatus,
			Status:        ev.Status,
			Turn:          ev.Turn,
			ExchangeCount: ev.ExchangeCount,
		})
		b.pool.Broadcast(func(Role) []byte { return frame })

	case *events.EventClosed:
		frame := mustFrame(closedFrame{Type: FrameConversationClosed})
		b.pool.Broadcast(func(Role) []byte { return frame })
		b.pool.DetachAll()

	default:
		log.Debug().Str("conv_id", b.convID).Str("type", string(e.Type())).Msg("ignoring dialogue event")
	}
}

func (b *Broadcaster) Pool() *Pool { return b.pool }

// Close stops the reader and detaches every connection. Sockets stay open;
// they belong to the command channel, not the conversation.
func (b *Broadcaster) Close() {
	b.cancel()
	b.pool.DetachAll()
}
