package election_test

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/purposeinplay/notifier/election"
	"github.com/purposeinplay/notifier/pubsub"
)

type staticID string

func (s staticID) ID() (string, bool) {
	return string(s), s != ""
}

// manualScheduler keeps scheduled actions until the test fires them.
type manualScheduler struct {
	mu      sync.Mutex
	pending map[uint64]func()
	delays  map[uint64]time.Duration
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{
		pending: make(map[uint64]func()),
		delays:  make(map[uint64]time.Duration),
	}
}

func (s *manualScheduler) Schedule(key uint64, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[key] = fn
	s.delays[key] = d
}

func (s *manualScheduler) Cancel(key uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, key)
}

func (s *manualScheduler) keys() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]uint64, 0, len(s.pending))
	for k := range s.pending {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	return keys
}

// take removes and returns the action of key without running it.
func (s *manualScheduler) take(key uint64) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn := s.pending[key]
	delete(s.pending, key)

	return fn
}

// fireAll runs every pending action.
func (s *manualScheduler) fireAll() {
	for _, k := range s.keys() {
		if fn := s.take(k); fn != nil {
			fn()
		}
	}
}

var errTransport = errors.New("transport down")

// recordingPublisher records every message and optionally fails.
type recordingPublisher struct {
	mu       sync.Mutex
	messages []election.Message
	fail     map[election.MessageType]bool
}

func (p *recordingPublisher) Publish(event pubsub.Event[election.Message], _ ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fail[event.Payload.Type] {
		return errTransport
	}

	p.messages = append(p.messages, event.Payload)

	return nil
}

func (p *recordingPublisher) sent() []election.Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]election.Message(nil), p.messages...)
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.messages = nil
}

// bus is a synchronous broadcast channel: every message is delivered to
// every engine, the sender included, when drain is called.
type bus struct {
	mu      sync.Mutex
	queue   []election.Message
	engines []*election.Engine
}

func (b *bus) Publish(event pubsub.Event[election.Message], _ ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.queue = append(b.queue, event.Payload)

	return nil
}

func (b *bus) pop() (election.Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.queue) == 0 {
		return election.Message{}, false
	}

	msg := b.queue[0]
	b.queue = b.queue[1:]

	return msg, true
}

func (b *bus) drain() {
	for {
		msg, ok := b.pop()
		if !ok {
			return
		}

		for _, e := range b.engines {
			e.Handle(msg)
		}
	}
}
