package election

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// DefaultTopic is the broadcast channel of the election.
const DefaultTopic = "zerify.election"

// Intervals are the timing parameters of the election.
type Intervals struct {
	// Heartbeat is the period of the heartbeat broadcast.
	Heartbeat time.Duration `yaml:"heartbeat"`

	// Liveness is the period of the leader liveness check.
	Liveness time.Duration `yaml:"liveness"`

	// ElectionTimeout is how long a candidate waits for objections
	// before announcing itself.
	ElectionTimeout time.Duration `yaml:"election_timeout"`

	// LeaderTimeout is how long a leader may stay silent before it is
	// considered dead.
	LeaderTimeout time.Duration `yaml:"leader_timeout"`
}

// DefaultIntervals returns the stock timing parameters.
func DefaultIntervals() Intervals {
	return Intervals{
		Heartbeat:       2000 * time.Millisecond,
		Liveness:        2000 * time.Millisecond,
		ElectionTimeout: 1500 * time.Millisecond,
		LeaderTimeout:   6000 * time.Millisecond,
	}
}

type options struct {
	clock     clock.Clock
	scheduler Scheduler
	state     *State
	logger    *zap.Logger
	topic     string
	intervals Intervals

	ignoreOwnOk bool
}

func defaultOptions() options {
	return options{
		clock:     clock.New(),
		logger:    zap.NewNop(),
		topic:     DefaultTopic,
		intervals: DefaultIntervals(),
	}
}

// Option configures an Engine.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) {
	f(o)
}

// WithClock sets the clock used for timestamps, tickers and, unless
// WithScheduler is given, election timers.
func WithClock(c clock.Clock) Option {
	return optionFunc(func(o *options) {
		o.clock = c
	})
}

// WithScheduler sets the scheduler of election timeouts.
func WithScheduler(s Scheduler) Option {
	return optionFunc(func(o *options) {
		o.scheduler = s
	})
}

// WithState shares an existing state with the engine.
func WithState(s *State) Option {
	return optionFunc(func(o *options) {
		o.state = s
	})
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = l
	})
}

// WithTopic sets the broadcast channel name.
func WithTopic(topic string) Option {
	return optionFunc(func(o *options) {
		o.topic = topic
	})
}

// WithIntervals sets the timing parameters. Zero fields keep their default.
func WithIntervals(i Intervals) Option {
	return optionFunc(func(o *options) {
		if i.Heartbeat > 0 {
			o.intervals.Heartbeat = i.Heartbeat
		}

		if i.Liveness > 0 {
			o.intervals.Liveness = i.Liveness
		}

		if i.ElectionTimeout > 0 {
			o.intervals.ElectionTimeout = i.ElectionTimeout
		}

		if i.LeaderTimeout > 0 {
			o.intervals.LeaderTimeout = i.LeaderTimeout
		}
	})
}

// WithIgnoreOwnOk makes the engine skip Ok messages sent by the local
// replica. By default the Ok a replica returns to a lower candidate is
// delivered back to it and ends its own round too; with several replicas
// and a dead highest id still among the known peers, failover then never
// completes.
func WithIgnoreOwnOk() Option {
	return optionFunc(func(o *options) {
		o.ignoreOwnOk = true
	})
}
