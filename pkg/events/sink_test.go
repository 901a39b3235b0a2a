package events

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/require"
)

func receiveOne(t *testing.T, ch <-chan *message.Message) Event {
	t.Helper()
	select {
	case msg := <-ch:
		e, err := NewEventFromJson(msg.Payload)
		require.NoError(t, err)
		msg.Ack()
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestSinkPublishesToConversationAndFirehose(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	convCh, err := pubSub.Subscribe(ctx, TopicForConversation("conv-1"))
	require.NoError(t, err)
	fireCh, err := pubSub.Subscribe(ctx, TopicFirehose)
	require.NoError(t, err)

	sink := NewSink(pubSub, TopicForConversation("conv-1"))
	require.NoError(t, sink.Publish(NewGenerationStart("conv-1", "turn-1", 1)))

	onConv := receiveOne(t, convCh)
	require.Equal(t, EventTypeGenerationStart, onConv.Type())

	onFire := receiveOne(t, fireCh)
	require.Equal(t, EventTypeGenerationStart, onFire.Type())
	require.Equal(t, onConv.Metadata().ID, onFire.Metadata().ID)
}

func TestEventsArriveInPublishOrder(t *testing.T) {
	router, err := NewEventRouter()
	require.NoError(t, err)
	t.Cleanup(func() { _ = router.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := router.Subscriber.Subscribe(ctx, TopicForConversation("conv-order"))
	require.NoError(t, err)

	got := make(chan string, 256)
	go func() {
		for msg := range ch {
			e, err := NewEventFromJson(msg.Payload)
			msg.Ack()
			if err != nil {
				continue
			}
			if chunk, ok := e.(*EventChunk); ok {
				got <- chunk.Delta
			}
		}
	}()

	sink := NewSink(router.Publisher, TopicForConversation("conv-order"))
	const n = 200
	for i := 0; i < n; i++ {
		require.NoError(t, sink.Publish(NewChunk("conv-order", "turn-1", 1, strconv.Itoa(i), "")))
	}
	for i := 0; i < n; i++ {
		select {
		case delta := <-got:
			require.Equal(t, strconv.Itoa(i), delta)
		case <-time.After(2 * time.Second):
			t.Fatalf("chunk %d never arrived", i)
		}
	}
}

func TestEventRouterRunsHandlers(t *testing.T) {
	router, err := NewEventRouter()
	require.NoError(t, err)
	t.Cleanup(func() { _ = router.Close() })

	received := make(chan Event, 1)
	router.AddHandler("capture", TopicFirehose, func(msg *message.Message) error {
		defer msg.Ack()
		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			return err
		}
		select {
		case received <- e:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = router.Run(ctx) }()
	<-router.Running()

	sink := NewSink(router.Publisher, TopicForConversation("conv-r"))
	require.NoError(t, sink.Publish(NewStatus("conv-r", "idle", 1, 0)))

	select {
	case e := <-received:
		require.Equal(t, EventTypeStatus, e.Type())
		require.Equal(t, "conv-r", e.Metadata().ConversationID)
	case <-time.After(2 * time.Second):
		t.Fatal("handler never received the event")
	}
}
