package kafka

import "errors"

// ErrNoBrokers is returned when no broker address is configured.
var ErrNoBrokers = errors.New("no brokers")
