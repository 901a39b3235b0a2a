package dialogue

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/colloquy/pkg/engine"
	"github.com/go-go-golems/colloquy/pkg/events"
)

func newTestRegistry(t *testing.T, opts ...RegistryOption) (*Registry, *gochannel.GoChannel) {
	t.Helper()
	engines, catalog := testRegistryAndCatalog(t)
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })
	return NewRegistry(engines, catalog, pubSub, opts...), pubSub
}

func TestRegistryCreateAndGet(t *testing.T) {
	reg, _ := newTestRegistry(t)

	sess, err := reg.Create(testConfig())
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)
	require.Equal(t, 1, reg.Count())

	got, err := reg.Get(sess.ID)
	require.NoError(t, err)
	require.Same(t, sess, got)

	_, err = reg.Get("no-such-conversation")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryCreateRejectsInvalidConfig(t *testing.T) {
	reg, _ := newTestRegistry(t)

	cfg := testConfig()
	cfg.Topic = "nah"
	_, err := reg.Create(cfg)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, 0, reg.Count())
}

func TestRegistryDestroyPublishesClosedEvent(t *testing.T) {
	reg, pubSub := newTestRegistry(t)

	sess, err := reg.Create(testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := pubSub.Subscribe(ctx, events.TopicForConversation(sess.ID))
	require.NoError(t, err)

	require.NoError(t, reg.Destroy(sess.ID))
	require.Equal(t, 0, reg.Count())

	select {
	case msg := <-ch:
		e, err := events.NewEventFromJson(msg.Payload)
		require.NoError(t, err)
		msg.Ack()
		require.Equal(t, events.EventTypeClosed, e.Type())
		require.Equal(t, sess.ID, e.Metadata().ConversationID)
	case <-time.After(2 * time.Second):
		t.Fatal("no closed event received")
	}

	_, err = reg.Get(sess.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, reg.Destroy(sess.ID), ErrNotFound)

	// Commands against the destroyed session fail.
	require.ErrorIs(t, sess.StartOpening(context.Background()), ErrNotFound)
}

func TestRegistryAppliesDefaultTurnTimeout(t *testing.T) {
	fake := &fakeEngine{}
	fake.setGen(func(ctx context.Context, call int, req engine.Request, onChunk engine.ChunkHandler) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	engines := engine.NewRegistry()
	engines.Register("fake", fake)
	catalog, err := DefaultCatalog()
	require.NoError(t, err)
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	reg := NewRegistry(engines, catalog, pubSub, WithDefaultTurnTimeout(20*time.Millisecond))
	sess, err := reg.Create(testConfig())
	require.NoError(t, err)

	require.NoError(t, sess.StartOpening(context.Background()))
	waitForStatus(t, sess, StatusErrored)
	require.Empty(t, sess.Snapshot().Messages)
}

func TestRegistryCapacity(t *testing.T) {
	reg, _ := newTestRegistry(t, WithMaxSessions(1))

	_, err := reg.Create(testConfig())
	require.NoError(t, err)

	_, err = reg.Create(testConfig())
	require.ErrorIs(t, err, ErrCapacity)
}
