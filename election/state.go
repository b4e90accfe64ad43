package election

import (
	"sync"
	"time"

	"github.com/purposeinplay/notifier/instanceid"
	"go.uber.org/atomic"
)

// State is the election state of one replica. It is safe for concurrent use
// and holds no global lock: peers are upserted per key, the leader slot and
// the election guard are atomics.
type State struct {
	// id -> *atomic.Int64 holding the last observation in unix nanos.
	peers sync.Map

	leader   *atomic.String
	electing *atomic.Bool
	round    *atomic.Uint64
}

// NewState returns an empty state: no peers, no leader, no election.
func NewState() *State {
	return &State{
		leader:   atomic.NewString(""),
		electing: atomic.NewBool(false),
		round:    atomic.NewUint64(0),
	}
}

// Observe records that id was heard from at. Observations never move
// backwards in time.
func (s *State) Observe(id string, at time.Time) {
	nanos := at.UnixNano()

	v, loaded := s.peers.LoadOrStore(id, atomic.NewInt64(nanos))
	if !loaded {
		return
	}

	last := v.(*atomic.Int64)

	for {
		old := last.Load()
		if old >= nanos || last.CompareAndSwap(old, nanos) {
			return
		}
	}
}

// LastSeen returns the last observation of id.
func (s *State) LastSeen(id string) (time.Time, bool) {
	v, ok := s.peers.Load(id)
	if !ok {
		return time.Time{}, false
	}

	return time.Unix(0, v.(*atomic.Int64).Load()), true
}

// Peers returns a snapshot of every id ever observed.
func (s *State) Peers() map[string]time.Time {
	peers := make(map[string]time.Time)

	s.peers.Range(func(k, v any) bool {
		peers[k.(string)] = time.Unix(0, v.(*atomic.Int64).Load())
		return true
	})

	return peers
}

// HighestKnown reports whether no observed id is greater than self.
func (s *State) HighestKnown(self string) bool {
	highest := true

	s.peers.Range(func(k, _ any) bool {
		if instanceid.Compare(k.(string), self) > 0 {
			highest = false
			return false
		}

		return true
	})

	return highest
}

// Leader returns the current leader, if any.
func (s *State) Leader() (string, bool) {
	l := s.leader.Load()

	return l, l != ""
}

// SetLeader replaces the leader and returns the previous one.
func (s *State) SetLeader(id string) string {
	return s.leader.Swap(id)
}

// ClearLeader removes the leader only if it is still expected.
func (s *State) ClearLeader(expected string) bool {
	return s.leader.CompareAndSwap(expected, "")
}

// BeginElection sets the election guard. It returns the new round and true,
// or false when a round is already in progress.
func (s *State) BeginElection() (uint64, bool) {
	if !s.electing.CompareAndSwap(false, true) {
		return 0, false
	}

	return s.round.Inc(), true
}

// EndElection clears the election guard and returns the round it ended.
// The round is read before the guard is released, so a round begun right
// after is never reported.
func (s *State) EndElection() uint64 {
	round := s.round.Load()
	s.electing.Store(false)

	return round
}

// Electing reports whether the guard is set.
func (s *State) Electing() bool {
	return s.electing.Load()
}

// Round returns the last election round started.
func (s *State) Round() uint64 {
	return s.round.Load()
}
