package amqpw

import (
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/streadway/amqp"
)

// Config holds the broker connection settings.
type Config struct {
	URL string

	// MaxRetries bounds the dial attempts. Defaults to 5.
	MaxRetries uint64
}

// Dial opens a connection to the broker, retrying with exponential backoff.
func Dial(cfg *Config) (*amqp.Connection, error) {
	var rabbit *amqp.Connection

	operation := func() error {
		conn, err := amqp.Dial(cfg.URL)
		if err != nil {
			return errors.Wrap(err, "opening rabbitmq connection")
		}

		rabbit = conn

		return nil
	}

	retries := cfg.MaxRetries
	if retries == 0 {
		retries = 5
	}

	err := backoff.Retry(operation, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retries))
	if err != nil {
		return nil, err
	}

	return rabbit, nil
}
