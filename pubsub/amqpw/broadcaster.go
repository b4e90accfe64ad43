// Package amqpw implements the pubsub interfaces on top of RabbitMQ
// fanout exchanges.
//
// Every channel maps to a durable fanout exchange. Each subscription owns a
// server-named, exclusive, auto-delete queue bound to that exchange, so every
// subscriber (the publisher's own replica included) receives every event.
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

// Ensure type amqpw.Broadcaster implements interface pubsub.PublishSubscriber.
var _ pubsub.PublishSubscriber[any] = (*Broadcaster[any])(nil)

// ErrInvalidConnection is returned when the Connection opt is not defined.
var ErrInvalidConnection = errors.New("invalid connection")

// Options are used to configure the broadcaster.
type Options struct {
	// Connection is the AMQP connection to use.
	Connection *amqp.Connection

	// Logger is a logger interface to write the broadcaster logs.
	Logger *zap.Logger

	// EventBufferSize is the buffer of each subscription go channel.
	// Defaults to 64.
	EventBufferSize int
}

// Broadcaster publishes and subscribes to events over fanout exchanges.
type Broadcaster[T any] struct {
	conn   *amqp.Connection
	logger *zap.Logger

	bufferSize int

	mu       sync.Mutex
	pubCh    *amqp.Channel
	declared map[string]struct{}
}

// New creates a broadcaster over the given connection.
func New[T any](opts Options) (*Broadcaster[T], error) {
	if opts.Connection == nil {
		return nil, ErrInvalidConnection
	}

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	if opts.EventBufferSize <= 0 {
		opts.EventBufferSize = 64
	}

	return &Broadcaster[T]{
		conn:       opts.Connection,
		logger:     opts.Logger,
		bufferSize: opts.EventBufferSize,
		declared:   make(map[string]struct{}),
	}, nil
}

func declareExchange(ch *amqp.Channel, name string) error {
	err := ch.ExchangeDeclare(
		name,     // name
		"fanout", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return errors.WithMessage(err, "unable to declare exchange")
	}

	return nil
}

// publishChannel returns the shared publishing channel, reopening it
// when the broker closed it. Callers must hold b.mu.
func (b *Broadcaster[T]) publishChannel() (*amqp.Channel, error) {
	if b.pubCh != nil {
		return b.pubCh, nil
	}

	ch, err := b.conn.Channel()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))

	go func() {
		if err, ok := <-closed; ok && err != nil {
			b.logger.Warn("publish channel closed", zap.Error(err))
		}

		b.mu.Lock()
		if b.pubCh == ch {
			b.pubCh = nil
			b.declared = make(map[string]struct{})
		}
		b.mu.Unlock()
	}()

	b.pubCh = ch

	return ch, nil
}

// Publish sends event to the fanout exchange named by the single channel.
func (b *Broadcaster[T]) Publish(event pubsub.Event[T], channels ...string) error {
	if len(channels) != 1 {
		return pubsub.ErrExactlyOneChannelAllowed
	}

	exchange := channels[0]

	body, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ch, err := b.publishChannel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}

	if _, ok := b.declared[exchange]; !ok {
		if err := declareExchange(ch, exchange); err != nil {
			return err
		}

		b.declared[exchange] = struct{}{}
	}

	err = ch.Publish(
		exchange, // exchange
		"",       // routing key
		false,    // mandatory
		false,    // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Type:        event.Type,
			Body:        body,
		},
	)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// Subscribe binds a fresh exclusive queue to the exchange named by the
// single channel and streams its deliveries.
func (b *Broadcaster[T]) Subscribe(channels ...string) (pubsub.Subscription[T], error) {
	if len(channels) != 1 {
		return nil, pubsub.ErrExactlyOneChannelAllowed
	}

	exchange := channels[0]

	ch, err := b.conn.Channel()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	deliveries, err := bindAnonymousQueue(ch, exchange)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}

	return newSubscription[T](ch, deliveries, b.bufferSize, b.logger), nil
}

func bindAnonymousQueue(ch *amqp.Channel, exchange string) (<-chan amqp.Delivery, error) {
	if err := declareExchange(ch, exchange); err != nil {
		return nil, err
	}

	q, err := ch.QueueDeclare(
		"",    // name, assigned by the server
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, errors.WithMessage(err, "unable to declare queue")
	}

	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		return nil, errors.WithMessage(err, "unable to bind queue")
	}

	deliveries, err := ch.Consume(
		q.Name, // queue
		"",     // consumer
		true,   // auto-ack
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return nil, errors.WithMessage(err, "unable to consume queue")
	}

	return deliveries, nil
}

// Close closes the publishing channel. Subscriptions are closed on their own.
func (b *Broadcaster[T]) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pubCh == nil {
		return nil
	}

	ch := b.pubCh
	b.pubCh = nil

	if err := ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}

	return nil
}
