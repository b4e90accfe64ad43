package config

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidInterval is returned for non-positive intervals.
	ErrInvalidInterval = errors.New("interval must be positive")

	// ErrLeaderTimeout is returned when the leader timeout does not exceed
	// the heartbeat interval.
	ErrLeaderTimeout = errors.New("leader timeout must exceed heartbeat interval")

	// ErrUnknownTransport is returned for unsupported transports.
	ErrUnknownTransport = errors.New("unknown transport")

	// ErrMissingSetting is returned when a required setting is empty.
	ErrMissingSetting = errors.New("missing setting")
)

// Validate reports the first inconsistency of c.
func (c Config) Validate() error {
	intervals := []struct {
		name string
		d    time.Duration
	}{
		{"election.heartbeat", c.Election.Heartbeat},
		{"election.liveness", c.Election.Liveness},
		{"election.election_timeout", c.Election.ElectionTimeout},
		{"election.leader_timeout", c.Election.LeaderTimeout},
		{"reconcile_interval", c.ReconcileInterval},
	}

	for _, i := range intervals {
		if i.d <= 0 {
			return fmt.Errorf("%w: %s", ErrInvalidInterval, i.name)
		}
	}

	if c.Election.LeaderTimeout <= c.Election.Heartbeat {
		return ErrLeaderTimeout
	}

	if c.Topic == "" {
		return fmt.Errorf("%w: topic", ErrMissingSetting)
	}

	// The notification queue is always consumed from RabbitMQ.
	if c.AMQP.URL == "" {
		return fmt.Errorf("%w: amqp.url", ErrMissingSetting)
	}

	switch c.Transport {
	case TransportAMQP, TransportInMem:

	case TransportKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("%w: kafka.brokers", ErrMissingSetting)
		}

	default:
		return fmt.Errorf("%w: %q", ErrUnknownTransport, c.Transport)
	}

	if c.Queue.Name == "" {
		return fmt.Errorf("%w: queue.name", ErrMissingSetting)
	}

	if c.Queue.ConsumerName == "" {
		return fmt.Errorf("%w: queue.consumer_name", ErrMissingSetting)
	}

	return nil
}
