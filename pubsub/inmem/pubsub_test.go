package inmem

import (
	"testing"

	"github.com/purposeinplay/notifier/pubsub"
	"github.com/stretchr/testify/require"
)

func TestPubSub_SubscribeSuccess(t *testing.T) {
	const (
		eventBufferSize = 1

		channelA = "a"
		channelB = "b"
		channelC = "c"
	)

	ps := NewPubSub[string](eventBufferSize)

	subA, err := ps.Subscribe(channelA)
	require.NoError(t, err)

	subB, err := ps.Subscribe(channelA, channelB)
	require.NoError(t, err)

	subC, err := ps.Subscribe(channelC)
	require.NoError(t, err)

	// Publish event for first 2 subscriptions.
	err = ps.Publish(pubsub.Event[string]{Type: "test", Payload: "hello"}, channelA)
	require.NoError(t, err)

	select {
	case e := <-subA.C():
		require.Equal(t, "hello", e.Payload)
	default:
		t.Error("expected event on subA")
	}

	select {
	case <-subB.C():
	default:
		t.Error("expected event on subB")
	}

	// Ensure third subscription did not receive event.
	select {
	case <-subC.C():
		t.Error("expected no event on subC")
	default:
	}
}

func TestPubSub_UnsubscribeSuccess(t *testing.T) {
	const (
		eventBufferSize = 1
		channelA        = "a"
	)

	ps := NewPubSub[string](eventBufferSize)

	s, err := ps.Subscribe(channelA)
	require.NoError(t, err)

	err = ps.Publish(pubsub.Event[string]{Type: "test"}, channelA)
	require.NoError(t, err)

	err = s.Close()
	require.NoError(t, err)

	// Verify event is still received.
	select {
	case <-s.C():
	default:
		t.Error("expected event")
	}

	// Ensure channel is closed.
	_, open := <-s.C()
	require.False(t, open)

	// Ensure unsubscribing twice is ok.
	err = s.Close()
	require.NoError(t, err)
}

func TestPubSub_FullSubscriptionMissesEventButStaysSubscribed(t *testing.T) {
	const channelA = "a"

	ps := NewPubSub[int](1)

	s, err := ps.Subscribe(channelA)
	require.NoError(t, err)

	require.NoError(t, ps.Publish(pubsub.Event[int]{Payload: 1}, channelA))
	require.NoError(t, ps.Publish(pubsub.Event[int]{Payload: 2}, channelA))

	require.Equal(t, uint64(1), ps.Dropped())
	require.Equal(t, 1, (<-s.C()).Payload)

	require.NoError(t, ps.Publish(pubsub.Event[int]{Payload: 3}, channelA))
	require.Equal(t, 3, (<-s.C()).Payload)
}

func TestPubSub_NoChannel(t *testing.T) {
	ps := NewPubSub[int](1)

	err := ps.Publish(pubsub.Event[int]{})
	require.ErrorIs(t, err, pubsub.ErrNoChannel)

	_, err = ps.Subscribe()
	require.ErrorIs(t, err, pubsub.ErrNoChannel)
}

func TestPubSub_Close(t *testing.T) {
	ps := NewPubSub[int](1)

	s, err := ps.Subscribe("a")
	require.NoError(t, err)

	require.NoError(t, ps.Close())

	_, open := <-s.C()
	require.False(t, open)

	require.ErrorIs(t, ps.Publish(pubsub.Event[int]{}, "a"), pubsub.ErrClosed)

	_, err = ps.Subscribe("a")
	require.ErrorIs(t, err, pubsub.ErrClosed)
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	ps := NewPubSub[string](1)

	sub, err := ps.Subscribe("a")
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	_, open := <-sub.C()
	require.False(t, open)

	// Publishing to a channel without subscribers drops nothing.
	require.NoError(t, ps.Publish(pubsub.Event[string]{Payload: "x"}, "a"))
	require.Zero(t, ps.Dropped())

	// Closing the PubSub after the subscription is a no-op for it.
	require.NoError(t, ps.Close())
	require.NoError(t, sub.Close())
}
