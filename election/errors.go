package election

import "errors"

var (
	// ErrUnknownMessageType is returned for messages without a known
	// discriminant.
	ErrUnknownMessageType = errors.New("unknown message type")

	// ErrMissingSender is returned for messages without a sender id.
	ErrMissingSender = errors.New("missing sender id")

	// ErrMissingLeader is returned for coordinator messages without a
	// leader id.
	ErrMissingLeader = errors.New("missing leader id")

	// ErrSubscriptionClosed reports a subscription closed by the transport.
	// The listener logs it and resubscribes.
	ErrSubscriptionClosed = errors.New("subscription closed")
)
