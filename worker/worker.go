// Package worker defines the job handlers and the controllable consumers
// that run them.
package worker

import "context"

// Handler function that will be run by the worker and given
// a slice of arguments
type Handler func(Args) error

// Consumer is a consumer that can be switched on and off at runtime.
type Consumer interface {
	// Start begins consuming. It stops on its own when ctx is done.
	Start(context.Context) error
	// Stop stops consuming. A stopped consumer may be started again.
	Stop() error
	// IsRunning reports whether the consumer is consuming.
	IsRunning() bool
}

// Worker is a Consumer that also enqueues jobs.
type Worker interface {
	Consumer
	// Perform a job as soon as possibly
	Perform(job Job) error
	// Register a Handler
	Register(string, Handler) error
}
