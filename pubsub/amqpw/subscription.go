package amqpw

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/purposeinplay/notifier/pubsub"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// Ensure type amqpw.Subscription implements interface pubsub.Subscription.
var _ pubsub.Subscription[any] = (*Subscription[any])(nil)

// Subscription streams the deliveries of one exclusive queue.
type Subscription[T any] struct {
	ch *amqp.Channel
	c  chan pubsub.Event[T]

	once sync.Once
	done chan struct{}
}

func newSubscription[T any](
	ch *amqp.Channel,
	deliveries <-chan amqp.Delivery,
	bufferSize int,
	logger *zap.Logger,
) *Subscription[T] {
	s := &Subscription[T]{
		ch:   ch,
		c:    make(chan pubsub.Event[T], bufferSize),
		done: make(chan struct{}),
	}

	go func() {
		defer close(s.c)

		for d := range deliveries {
			event, err := decodeDelivery[T](d)
			if err != nil {
				logger.Debug("undecodable delivery", zap.Error(err))
				event = pubsub.ErrorEvent[T](err)
			}

			select {
			case s.c <- event:
			case <-s.done:
				return
			}
		}
	}()

	return s
}

func decodeDelivery[T any](d amqp.Delivery) (pubsub.Event[T], error) {
	var payload T

	if err := json.Unmarshal(d.Body, &payload); err != nil {
		return pubsub.Event[T]{}, fmt.Errorf("unmarshal delivery: %w", err)
	}

	return pubsub.Event[T]{
		Type:    d.Type,
		Payload: payload,
	}, nil
}

// C returns a receive-only go channel of events. It is closed once the
// subscription or the underlying channel is closed.
func (s *Subscription[T]) C() <-chan pubsub.Event[T] {
	return s.c
}

// Close cancels the consumer; the exclusive queue is removed by the broker.
func (s *Subscription[T]) Close() error {
	var err error

	s.once.Do(func() {
		close(s.done)

		if cerr := s.ch.Close(); cerr != nil && !errors.Is(cerr, amqp.ErrClosed) {
			err = cerr
		}
	})

	return err
}
