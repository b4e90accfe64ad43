package inmem

import (
	"sync"

	"github.com/purposeinplay/notifier/pubsub"
)

var _ pubsub.Subscription[any] = (*Subscription[any])(nil)

// Subscription is a buffered stream of the events published on its
// channels. Publishers never block on it: when the buffer is full the
// event is dropped for this subscription only.
type Subscription[T any] struct {
	ps       *PubSub[T]
	channels []string

	events    chan pubsub.Event[T]
	closeOnce sync.Once
}

func newSubscription[T any](ps *PubSub[T], channels []string) *Subscription[T] {
	return &Subscription[T]{
		ps:       ps,
		channels: channels,
		events:   make(chan pubsub.Event[T], ps.eventBufferSize),
	}
}

// C returns the event stream. It is closed once the subscription is
// removed, either by Close or by closing the PubSub.
func (s *Subscription[T]) C() <-chan pubsub.Event[T] {
	return s.events
}

// Close unsubscribes from every channel. Calling it again is a no-op.
func (s *Subscription[T]) Close() error {
	s.ps.Unsubscribe(s)
	return nil
}

// offer buffers e without blocking and reports whether it fit.
func (s *Subscription[T]) offer(e pubsub.Event[T]) bool {
	select {
	case s.events <- e:
		return true
	default:
		return false
	}
}

func (s *Subscription[T]) closeStream() {
	s.closeOnce.Do(func() {
		close(s.events)
	})
}
