package election_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/purposeinplay/notifier/election"
	"github.com/purposeinplay/notifier/pubsub"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeSubscription struct {
	c    chan pubsub.Event[election.Message]
	once sync.Once
}

func newFakeSubscription(msgs ...election.Message) *fakeSubscription {
	s := &fakeSubscription{c: make(chan pubsub.Event[election.Message], len(msgs)+1)}

	for _, m := range msgs {
		s.c <- pubsub.Event[election.Message]{Type: string(m.Type), Payload: m}
	}

	return s
}

func (s *fakeSubscription) C() <-chan pubsub.Event[election.Message] {
	return s.c
}

func (s *fakeSubscription) Close() error {
	s.once.Do(func() { close(s.c) })
	return nil
}

// scriptedSubscriber hands out subs in order. Subscribe calls listed in
// failOn, and every call once subs are exhausted, fail.
type scriptedSubscriber struct {
	mu     sync.Mutex
	subs   []*fakeSubscription
	failOn map[int]bool
	calls  int
}

func (s *scriptedSubscriber) Subscribe(...string) (pubsub.Subscription[election.Message], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++

	if s.failOn[s.calls] || len(s.subs) == 0 {
		return nil, errTransport
	}

	sub := s.subs[0]
	s.subs = s.subs[1:]

	return sub, nil
}

func (s *scriptedSubscriber) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

func fastBackOff() election.ListenerOption {
	return election.WithListenerBackOff(func() backoff.BackOff {
		return backoff.NewConstantBackOff(time.Millisecond)
	})
}

func TestListener_ResubscribesAfterClose(t *testing.T) {
	first := newFakeSubscription(election.Heartbeat("b"))
	// The transport drops the first subscription after one event.
	require.NoError(t, first.Close())

	second := newFakeSubscription(election.Heartbeat("c"))

	sub := &scriptedSubscriber{
		subs:   []*fakeSubscription{first, second},
		failOn: map[int]bool{2: true},
	}

	e := election.NewEngine(
		staticID("a"),
		&recordingPublisher{},
		election.WithScheduler(newManualScheduler()),
	)

	l := election.NewListener(sub, e, zaptest.NewLogger(t), fastBackOff())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errs := make(chan error, 1)

	go func() { errs <- l.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, seen := e.State().LastSeen("c")
		return seen
	}, 5*time.Second, time.Millisecond)

	_, seen := e.State().LastSeen("b")
	require.True(t, seen)

	// Subscribed, failed once, subscribed again.
	require.Equal(t, 3, sub.callCount())

	cancel()

	select {
	case err := <-errs:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestListener_StopsWhileSubscribeFails(t *testing.T) {
	sub := &scriptedSubscriber{}

	e := election.NewEngine(staticID("a"), &recordingPublisher{})
	l := election.NewListener(sub, e, zaptest.NewLogger(t), fastBackOff())

	ctx, cancel := context.WithCancel(context.Background())

	errs := make(chan error, 1)

	go func() { errs <- l.Run(ctx) }()

	require.Eventually(t, func() bool {
		return sub.callCount() >= 3
	}, 5*time.Second, time.Millisecond)

	cancel()

	select {
	case err := <-errs:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestListener_GivesUpWhenBackOffStops(t *testing.T) {
	sub := &scriptedSubscriber{}

	e := election.NewEngine(staticID("a"), &recordingPublisher{})
	l := election.NewListener(sub, e, zaptest.NewLogger(t),
		election.WithListenerBackOff(func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 2)
		}),
	)

	err := l.Run(context.Background())
	require.ErrorIs(t, err, errTransport)
	require.Equal(t, 3, sub.callCount())
}
