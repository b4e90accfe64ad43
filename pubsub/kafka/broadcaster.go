// Package kafka implements the pubsub interfaces on top of Kafka topics.
//
// Every subscription joins its own consumer group and starts at the latest
// offset, so each subscriber sees every event published after it joined.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/purposeinplay/notifier/pubsub"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Ensure type kafka.Broadcaster implements interface pubsub.PublishSubscriber.
var _ pubsub.PublishSubscriber[any] = (*Broadcaster[any])(nil)

const typeHeader = "type"

// Options configure the broadcaster.
type Options struct {
	Brokers []string

	// GroupPrefix prefixes the per-subscription consumer group.
	// Defaults to "notifier".
	GroupPrefix string

	// WriteTimeout bounds a single publish. Defaults to 5s.
	WriteTimeout time.Duration

	// SASL, when set, authenticates with SCRAM-SHA-512 over TLS.
	SASL *SASLConfig

	Logger *zap.Logger
}

// Broadcaster publishes and subscribes to events over Kafka.
type Broadcaster[T any] struct {
	writer *kafka.Writer
	opts   Options
}

// New creates a broadcaster for the given brokers.
func New[T any](opts Options) (*Broadcaster[T], error) {
	if len(opts.Brokers) == 0 {
		return nil, ErrNoBrokers
	}

	if opts.GroupPrefix == "" {
		opts.GroupPrefix = "notifier"
	}

	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	transport, err := newTransport(opts.SASL)
	if err != nil {
		return nil, fmt.Errorf("new transport: %w", err)
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(opts.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           opts.WriteTimeout,
		Transport:              transport,
		Logger:                 debugLogger(opts.Logger),
		ErrorLogger:            errorLogger(opts.Logger),
	}

	return &Broadcaster[T]{
		writer: w,
		opts:   opts,
	}, nil
}

// Publish writes the event to the topic named by the single channel.
func (b *Broadcaster[T]) Publish(event pubsub.Event[T], channels ...string) error {
	if len(channels) != 1 {
		return pubsub.ErrExactlyOneChannelAllowed
	}

	msg, err := encodeMessage(channels[0], event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.opts.WriteTimeout)
	defer cancel()

	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write messages: %w", err)
	}

	return nil
}

// Subscribe joins a fresh consumer group on the topic named by the
// single channel.
func (b *Broadcaster[T]) Subscribe(channels ...string) (pubsub.Subscription[T], error) {
	if len(channels) != 1 {
		return nil, pubsub.ErrExactlyOneChannelAllowed
	}

	dialer, err := newDialer(b.opts.SASL)
	if err != nil {
		return nil, fmt.Errorf("new dialer: %w", err)
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.opts.Brokers,
		GroupID:     b.opts.GroupPrefix + "-" + uuid.NewString(),
		Topic:       channels[0],
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    1 << 20,
		MaxWait:     500 * time.Millisecond,
		Dialer:      dialer,
		Logger:      debugLogger(b.opts.Logger),
		ErrorLogger: errorLogger(b.opts.Logger),
	})

	return newSubscription[T](r), nil
}

// Close flushes and closes the writer.
func (b *Broadcaster[T]) Close() error {
	return b.writer.Close()
}

func encodeMessage[T any](topic string, event pubsub.Event[T]) (kafka.Message, error) {
	body, err := json.Marshal(event.Payload)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal payload: %w", err)
	}

	return kafka.Message{
		Topic: topic,
		Value: body,
		Headers: []kafka.Header{
			{Key: typeHeader, Value: []byte(event.Type)},
		},
	}, nil
}

func decodeMessage[T any](msg kafka.Message) (pubsub.Event[T], error) {
	var payload T

	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return pubsub.Event[T]{}, fmt.Errorf("unmarshal message: %w", err)
	}

	event := pubsub.Event[T]{Payload: payload}

	for _, h := range msg.Headers {
		if h.Key == typeHeader {
			event.Type = string(h.Value)
		}
	}

	return event, nil
}
