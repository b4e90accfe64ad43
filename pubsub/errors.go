package pubsub

import (
	"errors"
)

var (
	// ErrExactlyOneChannelAllowed is returned a pubsub implementation supports only one channel.
	ErrExactlyOneChannelAllowed = errors.New("exactly one channel allowed")

	// ErrNoChannel is returned when no channels are passed
	// to the Publish or Subscribe methods.
	ErrNoChannel = errors.New("no channel given")

	// ErrClosed is returned when publishing or subscribing through a
	// closed PubSub.
	ErrClosed = errors.New("pubsub closed")
)
