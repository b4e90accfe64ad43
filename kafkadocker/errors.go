package kafkadocker

import "errors"

var (
	// ErrBrokerAlreadyStarted is returned when a cluster is started twice.
	ErrBrokerAlreadyStarted = errors.New("broker already started")
	// ErrBrokerWasNotStarted is returned when a cluster is stopped before
	// it is started.
	ErrBrokerWasNotStarted = errors.New("broker was not started")
)
