package election

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/purposeinplay/notifier/metrics"
	"github.com/purposeinplay/notifier/pubsub"
	"go.uber.org/zap"
)

// Listener feeds the events of the election topic into an Engine.
type Listener struct {
	subscriber pubsub.Subscriber[Message]
	engine     *Engine
	logger     *zap.Logger
	newBackOff func() backoff.BackOff
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithListenerBackOff sets the policy spacing resubscriptions. The listener
// gives up, returning an error, only when the policy stops.
func WithListenerBackOff(b func() backoff.BackOff) ListenerOption {
	return func(l *Listener) {
		l.newBackOff = b
	}
}

// NewListener creates a listener for engine.
func NewListener(
	subscriber pubsub.Subscriber[Message],
	engine *Engine,
	logger *zap.Logger,
	opts ...ListenerOption,
) *Listener {
	l := &Listener{
		subscriber: subscriber,
		engine:     engine,
		logger:     logger,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxInterval = 30 * time.Second
			b.MaxElapsedTime = 0

			return b
		},
	}

	for _, o := range opts {
		o(l)
	}

	return l
}

// Run subscribes to the engine topic and dispatches events until ctx is
// done. A failed subscribe or a subscription closed by the transport is
// logged and retried with backoff.
func (l *Listener) Run(ctx context.Context) error {
	bo := backoff.WithContext(l.newBackOff(), ctx)

	for {
		delivered, err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}

		if delivered {
			bo.Reset()
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("resubscribe: %w", err)
		}

		metrics.ElectionResubscriptions.Inc()

		l.logger.Warn("election subscription lost, resubscribing",
			zap.Duration("backoff", wait),
			zap.Error(err),
		)

		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case <-timer.C:
		}
	}
}

// listen consumes one subscription and reports whether it delivered any
// event. It returns a nil error only when ctx is done.
func (l *Listener) listen(ctx context.Context) (bool, error) {
	sub, err := l.subscriber.Subscribe(l.engine.topic)
	if err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}

	defer func() {
		if err := sub.Close(); err != nil {
			l.logger.Warn("close election subscription", zap.Error(err))
		}
	}()

	var delivered bool

	for {
		select {
		case <-ctx.Done():
			return delivered, nil

		case event, ok := <-sub.C():
			if !ok {
				return delivered, ErrSubscriptionClosed
			}

			delivered = true

			if event.Error != nil {
				l.logger.Warn("election subscription error", zap.Error(event.Error))
				continue
			}

			msg := event.Payload
			if msg.Type == "" {
				msg.Type = MessageType(event.Type)
			}

			l.engine.Handle(msg)
		}
	}
}
