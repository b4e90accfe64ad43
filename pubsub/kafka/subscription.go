package kafka

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/purposeinplay/notifier/pubsub"
	"github.com/segmentio/kafka-go"
)

// Ensure type kafka.Subscription implements interface pubsub.Subscription.
var _ pubsub.Subscription[any] = (*Subscription[any])(nil)

// Subscription represents a stream of events published to a kafka topic.
type Subscription[T any] struct {
	reader  *kafka.Reader
	eventCh chan pubsub.Event[T]

	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

// newSubscription starts reading r until the subscription is closed or the
// reader fails.
func newSubscription[T any](r *kafka.Reader) *Subscription[T] {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Subscription[T]{
		reader:  r,
		eventCh: make(chan pubsub.Event[T]),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		defer close(s.eventCh)

		for {
			msg, err := r.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, io.EOF) {
					return
				}

				select {
				case s.eventCh <- pubsub.ErrorEvent[T](err):
				case <-ctx.Done():
				}

				return
			}

			event, err := decodeMessage[T](msg)
			if err != nil {
				event = pubsub.ErrorEvent[T](err)
			}

			select {
			case s.eventCh <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return s
}

// C returns a receive-only go channel of events published.
func (s *Subscription[T]) C() <-chan pubsub.Event[T] {
	return s.eventCh
}

// Close leaves the consumer group and closes the subscription.
func (s *Subscription[T]) Close() error {
	var err error

	s.once.Do(func() {
		s.cancel()
		<-s.done
		err = s.reader.Close()
	})

	return err
}
