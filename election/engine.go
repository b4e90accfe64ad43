package election

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/purposeinplay/notifier/instanceid"
	"github.com/purposeinplay/notifier/metrics"
	"github.com/purposeinplay/notifier/pubsub"
	"go.uber.org/zap"
)

// Identity provides the id of the local replica. The id is unavailable
// until the provider is initialized.
type Identity interface {
	ID() (string, bool)
}

// Engine runs the election for one replica.
type Engine struct {
	identity  Identity
	publisher pubsub.Publisher[Message]
	state     *State
	scheduler Scheduler
	clock     clock.Clock
	logger    *zap.Logger
	topic     string
	intervals Intervals

	ignoreOwnOk bool
}

// NewEngine creates an engine broadcasting through publisher.
func NewEngine(
	identity Identity,
	publisher pubsub.Publisher[Message],
	opts ...Option,
) *Engine {
	o := defaultOptions()

	for _, opt := range opts {
		opt.apply(&o)
	}

	if o.state == nil {
		o.state = NewState()
	}

	if o.scheduler == nil {
		o.scheduler = NewClockScheduler(o.clock)
	}

	return &Engine{
		identity:  identity,
		publisher: publisher,
		state:     o.state,
		scheduler: o.scheduler,
		clock:     o.clock,
		logger:    o.logger,
		topic:     o.topic,
		intervals: o.intervals,

		ignoreOwnOk: o.ignoreOwnOk,
	}
}

// ID returns the local id, if initialized.
func (e *Engine) ID() (string, bool) {
	return e.identity.ID()
}

// State returns the state owned by the engine.
func (e *Engine) State() *State {
	return e.state
}

// IsLeader reports whether the local replica is the known leader.
func (e *Engine) IsLeader() bool {
	self, ok := e.identity.ID()
	if !ok {
		return false
	}

	leader, ok := e.state.Leader()

	return ok && leader == self
}

// Leader returns the known leader, if any.
func (e *Engine) Leader() (string, bool) {
	return e.state.Leader()
}

// Handle validates msg and dispatches it. Malformed messages are dropped.
func (e *Engine) Handle(msg Message) {
	if err := msg.Validate(); err != nil {
		metrics.ElectionMessagesDropped.Inc()
		e.logger.Debug("dropping election message",
			zap.Any("message", msg),
			zap.Error(err),
		)

		return
	}

	metrics.ElectionMessagesReceived.WithLabelValues(string(msg.Type)).Inc()

	e.state.Observe(msg.From, e.clock.Now())

	switch msg.Type {
	case MessageHeartbeat:
		e.OnHeartbeat(msg.From)
	case MessageElection:
		e.OnElectionRequest(msg.From)
	case MessageOk:
		e.OnOk(msg.From)
	case MessageCoordinator:
		e.OnCoordinator(msg.LeaderID)
	}
}

// OnHeartbeat records from as alive and starts an election when no leader
// is known and the local id is the highest observed.
func (e *Engine) OnHeartbeat(from string) {
	if from == "" {
		return
	}

	e.state.Observe(from, e.clock.Now())

	self, ok := e.identity.ID()
	if !ok {
		return
	}

	if _, ok := e.state.Leader(); ok {
		return
	}

	if e.state.HighestKnown(self) {
		e.logger.Info("no leader known and highest id observed, starting election",
			zap.String("instance_id", self),
		)

		e.StartElection()
	}
}

// OnElectionRequest answers a request from a lower id with Ok and takes
// over the election.
func (e *Engine) OnElectionRequest(from string) {
	if from == "" {
		return
	}

	self, ok := e.identity.ID()
	if !ok {
		return
	}

	if instanceid.Compare(self, from) <= 0 {
		e.logger.Debug("election request from higher id, not answering",
			zap.String("instance_id", self),
			zap.String("from", from),
		)

		return
	}

	e.publish(Ok(self))
	e.StartElection()
}

// OnOk abandons the local round: any Ok is taken as proof that a higher
// replica is alive. With WithIgnoreOwnOk an Ok looped back from the local
// replica is skipped.
func (e *Engine) OnOk(from string) {
	if e.ignoreOwnOk {
		if self, ok := e.identity.ID(); ok && from == self {
			return
		}
	}

	e.logger.Debug("ok received", zap.String("from", from))

	e.endElection()
}

// OnCoordinator accepts leaderID as the leader. The last announcement wins.
func (e *Engine) OnCoordinator(leaderID string) {
	if leaderID == "" {
		return
	}

	e.setLeader(leaderID)
	e.state.Observe(leaderID, e.clock.Now())
	e.endElection()
}

// StartElection broadcasts an election request and schedules the
// self-promotion. It is a no-op while a round is in progress.
func (e *Engine) StartElection() {
	self, ok := e.identity.ID()
	if !ok {
		return
	}

	round, ok := e.state.BeginElection()
	if !ok {
		return
	}

	metrics.ElectionsStarted.Inc()

	e.logger.Info("starting election",
		zap.String("instance_id", self),
		zap.Uint64("round", round),
	)

	e.publish(ElectionRequest(self))

	e.scheduler.Schedule(round, e.intervals.ElectionTimeout, func() {
		e.electionTimeout(self, round)
	})
}

// electionTimeout promotes the local replica if round is still the
// unchallenged current round.
func (e *Engine) electionTimeout(self string, round uint64) {
	if !e.state.Electing() || e.state.Round() != round {
		return
	}

	e.logger.Info("no objection received, announcing coordinator",
		zap.String("instance_id", self),
		zap.Uint64("round", round),
	)

	e.publish(Coordinator(self, self))
	e.setLeader(self)
	e.state.Observe(self, e.clock.Now())
	e.state.EndElection()
}

// endElection cancels the timer of the round it ends, never the one of a
// round started concurrently.
func (e *Engine) endElection() {
	e.scheduler.Cancel(e.state.EndElection())
}

// PublishHeartbeat broadcasts a heartbeat of the local replica.
func (e *Engine) PublishHeartbeat() {
	self, ok := e.identity.ID()
	if !ok {
		return
	}

	e.publish(Heartbeat(self))
}

// CheckLeaderLiveness drops a leader that has been silent for longer than
// the leader timeout, then takes over directly when the local id is the
// highest known or starts an election otherwise.
func (e *Engine) CheckLeaderLiveness() {
	current, ok := e.state.Leader()
	if !ok {
		return
	}

	now := e.clock.Now()

	last, seen := e.state.LastSeen(current)
	if seen && now.Sub(last) <= e.intervals.LeaderTimeout {
		e.logger.Debug("leader alive",
			zap.String("leader", current),
			zap.Duration("age", now.Sub(last)),
		)

		return
	}

	if !e.state.ClearLeader(current) {
		// A newer announcement arrived meanwhile.
		return
	}

	metrics.LeaderChanges.Inc()
	e.refreshLeaderGauge()

	e.logger.Warn("leader silent, taking over or starting election",
		zap.String("leader", current),
		zap.Bool("seen", seen),
		zap.Duration("leader_timeout", e.intervals.LeaderTimeout),
	)

	if self, ok := e.identity.ID(); ok && e.state.HighestKnown(self) {
		if e.publish(Coordinator(self, self)) {
			e.setLeader(self)
			e.state.Observe(self, e.clock.Now())

			return
		}
	}

	e.StartElection()
}

// Run drives the heartbeat and liveness ticks until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	heartbeat := e.clock.Ticker(e.intervals.Heartbeat)
	defer heartbeat.Stop()

	liveness := e.clock.Ticker(e.intervals.Liveness)
	defer liveness.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-heartbeat.C:
			e.PublishHeartbeat()

		case <-liveness.C:
			e.CheckLeaderLiveness()
		}
	}
}

// Snapshot is a point-in-time view of the election.
type Snapshot struct {
	InstanceID string               `json:"instanceId"`
	Leader     string               `json:"leader,omitempty"`
	IsLeader   bool                 `json:"isLeader"`
	Electing   bool                 `json:"electing"`
	Peers      map[string]time.Time `json:"peers"`
}

// Snapshot returns the current view of the election.
func (e *Engine) Snapshot() Snapshot {
	self, _ := e.identity.ID()
	leader, _ := e.state.Leader()

	return Snapshot{
		InstanceID: self,
		Leader:     leader,
		IsLeader:   self != "" && leader == self,
		Electing:   e.state.Electing(),
		Peers:      e.state.Peers(),
	}
}

func (e *Engine) setLeader(id string) {
	if prev := e.state.SetLeader(id); prev != id {
		metrics.LeaderChanges.Inc()

		e.logger.Info("leader changed",
			zap.String("previous", prev),
			zap.String("leader", id),
		)
	}

	e.refreshLeaderGauge()
}

func (e *Engine) refreshLeaderGauge() {
	self, ok := e.identity.ID()
	if !ok {
		return
	}

	leader, _ := e.state.Leader()

	if leader == self {
		metrics.IsLeader.WithLabelValues(self).Set(1)
		return
	}

	metrics.IsLeader.WithLabelValues(self).Set(0)
}

// publish broadcasts msg. Transport failures are logged and reported
// through the return value only.
func (e *Engine) publish(msg Message) bool {
	err := e.publisher.Publish(
		pubsub.Event[Message]{Type: string(msg.Type), Payload: msg},
		e.topic,
	)
	if err != nil {
		metrics.ElectionPublishFailures.WithLabelValues(string(msg.Type)).Inc()

		e.logger.Warn("election broadcast failed",
			zap.String("type", string(msg.Type)),
			zap.String("from", msg.From),
			zap.Error(err),
		)

		return false
	}

	metrics.ElectionMessagesPublished.WithLabelValues(string(msg.Type)).Inc()

	return true
}
