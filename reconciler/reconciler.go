// Package reconciler keeps a named consumer running exactly when the local
// replica is the leader.
package reconciler

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/purposeinplay/notifier/metrics"
	"github.com/purposeinplay/notifier/worker"
	"go.uber.org/zap"
)

// DefaultInterval is the period of the reconciliation tick.
const DefaultInterval = time.Second

// LeadershipChecker reports the local leadership verdict.
type LeadershipChecker interface {
	IsLeader() bool
}

// ConsumerLookup finds consumers by name.
type ConsumerLookup interface {
	Consumer(name string) (worker.Consumer, bool)
}

// Reconciler toggles one consumer according to the leadership verdict.
type Reconciler struct {
	leadership LeadershipChecker
	consumers  ConsumerLookup
	name       string
	interval   time.Duration
	clock      clock.Clock
	logger     *zap.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithInterval sets the tick period.
func WithInterval(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithClock sets the clock driving the ticks.
func WithClock(c clock.Clock) Option {
	return func(r *Reconciler) {
		r.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reconciler) {
		r.logger = l
	}
}

// New creates a reconciler for the consumer registered as name.
func New(
	leadership LeadershipChecker,
	consumers ConsumerLookup,
	name string,
	opts ...Option,
) *Reconciler {
	r := &Reconciler{
		leadership: leadership,
		consumers:  consumers,
		name:       name,
		interval:   DefaultInterval,
		clock:      clock.New(),
		logger:     zap.NewNop(),
	}

	for _, o := range opts {
		o(r)
	}

	return r
}

// Reconcile runs one tick: start the consumer on a leader, stop it on a
// follower. A missing consumer is ignored.
func (r *Reconciler) Reconcile(ctx context.Context) {
	c, ok := r.consumers.Consumer(r.name)
	if !ok {
		r.logger.Debug("consumer not registered", zap.String("consumer", r.name))
		return
	}

	leader := r.leadership.IsLeader()
	running := c.IsRunning()

	switch {
	case leader && !running:
		r.logger.Info("leader, starting consumer", zap.String("consumer", r.name))

		if err := c.Start(ctx); err != nil {
			r.logger.Error("start consumer", zap.String("consumer", r.name), zap.Error(err))
			return
		}

		metrics.ConsumerTransitions.WithLabelValues(r.name, "start").Inc()

	case !leader && running:
		r.logger.Info("follower, stopping consumer", zap.String("consumer", r.name))

		if err := c.Stop(); err != nil {
			r.logger.Error("stop consumer", zap.String("consumer", r.name), zap.Error(err))
			return
		}

		metrics.ConsumerTransitions.WithLabelValues(r.name, "stop").Inc()
	}

	if c.IsRunning() {
		metrics.ConsumerRunning.WithLabelValues(r.name).Set(1)
	} else {
		metrics.ConsumerRunning.WithLabelValues(r.name).Set(0)
	}
}

// Run reconciles on every tick until ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := r.clock.Ticker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			r.Reconcile(ctx)
		}
	}
}
