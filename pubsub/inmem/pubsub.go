// Package inmem defines implementations for the PublishSubscriber
// interface defined in package pubsub using an in memory storage.
//
// Every subscription of a channel receives every event published on it,
// including subscriptions owned by the publisher itself, which makes it a
// drop-in broadcast channel for replicas living in the same process.
package inmem

import (
	"sync"

	"github.com/purposeinplay/notifier/pubsub"
)

// Ensure type inmem.PubSub implements interface pubsub.PublishSubscriber.
var _ pubsub.PublishSubscriber[any] = (*PubSub[any])(nil)

// PubSub represents a PubSub backed my an in memory storage.
type PubSub[T any] struct {
	mu sync.Mutex

	// map having channels as keys and subscriptions as value
	channelsSubs map[string]map[*Subscription[T]]struct{}

	// eventBufferSize is the buffer size of the channel for each subscription.
	eventBufferSize int

	// dropped counts events discarded because a subscription buffer was full.
	dropped uint64

	closed bool
}

// NewPubSub returns a new instance of PubSub backed
// by an in memory storage.
func NewPubSub[T any](eventBufferSize int) *PubSub[T] {
	return &PubSub[T]{
		channelsSubs:    make(map[string]map[*Subscription[T]]struct{}),
		eventBufferSize: eventBufferSize,
	}
}

// Publish publishes event to all the subscriptions of the channels provided.
//
// Delivery is best-effort: a subscription whose buffer is full misses
// the event but stays subscribed.
func (ps *PubSub[T]) Publish(event pubsub.Event[T], channels ...string) error {
	// Ensure at least one channel is provided.
	if len(channels) == 0 {
		return pubsub.ErrNoChannel
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.closed {
		return pubsub.ErrClosed
	}

	// Iterate over the provided channels.
	for _, channel := range channels {
		// Iterate over the subscriptions for the current channel.
		for sub := range ps.channelsSubs[channel] {
			if !sub.offer(event) {
				ps.dropped++
			}
		}
	}

	return nil
}

// Subscribe creates a new subscription for the provided channels.
func (ps *PubSub[T]) Subscribe(
	channels ...string,
) (
	pubsub.Subscription[T],
	error,
) {
	// Ensure at least one channel is provided.
	if len(channels) == 0 {
		return nil, pubsub.ErrNoChannel
	}

	// Create a new subscription.
	sub := newSubscription(ps, channels)

	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.closed {
		return nil, pubsub.ErrClosed
	}

	for _, c := range channels {
		// Retrieve the subs map of the channel.
		subs, ok := ps.channelsSubs[c]
		if !ok {
			// Create the subs map if it does not exist.
			subs = make(map[*Subscription[T]]struct{})
			ps.channelsSubs[c] = subs
		}

		subs[sub] = struct{}{}
	}

	return sub, nil
}

// Dropped returns how many events were discarded because a subscription
// was not keeping up.
func (ps *PubSub[T]) Dropped() uint64 {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	return ps.dropped
}

// Close removes every subscription and rejects further use.
func (ps *PubSub[T]) Close() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	for _, subs := range ps.channelsSubs {
		for sub := range subs {
			ps.removeSubscription(sub)
		}
	}

	ps.closed = true

	return nil
}

// Unsubscribe removes a sub from the service
// The purpose of this method is to provide a way
// for a Subscription to remove itself from the system.
//
// This method wraps the removeSubscription method
// with the mutexes. So it's safe to be from external
// entities.
func (ps *PubSub[T]) Unsubscribe(sub *Subscription[T]) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.removeSubscription(sub)
}

// removeSubscription closes the subscriptions go channel and
// removes it from the pubsubs storage.
func (ps *PubSub[T]) removeSubscription(sub *Subscription[T]) {
	sub.closeStream()

	// iterate over the subscriptions channels
	for _, channel := range sub.channels {
		subs, ok := ps.channelsSubs[channel]
		if !ok {
			continue
		}

		delete(subs, sub)

		// Remove the channel if there are no
		// subscriptions left.
		if len(subs) == 0 {
			delete(ps.channelsSubs, channel)
		}
	}
}
