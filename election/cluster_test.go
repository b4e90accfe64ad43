package election_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/purposeinplay/notifier/election"
	"github.com/purposeinplay/notifier/metrics"
	"github.com/purposeinplay/notifier/pubsub/inmem"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type replica struct {
	engine *election.Engine
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (r *replica) stop() {
	r.cancel()
	r.wg.Wait()
}

func startReplica(
	t *testing.T,
	ps *inmem.PubSub[election.Message],
	c clock.Clock,
	id string,
	opts ...election.Option,
) *replica {
	t.Helper()

	logger := zaptest.NewLogger(t)

	e := election.NewEngine(
		staticID(id),
		ps,
		append([]election.Option{
			election.WithClock(c),
			election.WithLogger(logger),
		}, opts...)...,
	)

	ctx, cancel := context.WithCancel(context.Background())

	r := &replica{engine: e, cancel: cancel}

	l := election.NewListener(ps, e, logger)

	r.wg.Add(2)

	go func() {
		defer r.wg.Done()
		_ = l.Run(ctx)
	}()

	go func() {
		defer r.wg.Done()
		_ = e.Run(ctx)
	}()

	t.Cleanup(r.stop)

	return r
}

func leaderOf(replicas ...*replica) (string, bool) {
	var leader string

	for i, r := range replicas {
		l, ok := r.engine.Leader()
		if !ok {
			return "", false
		}

		if i > 0 && l != leader {
			return "", false
		}

		leader = l
	}

	return leader, true
}

func isLeaderGauge(id string) float64 {
	return testutil.ToFloat64(metrics.IsLeader.WithLabelValues(id))
}

func TestCluster_Converges(t *testing.T) {
	ps := inmem.NewPubSub[election.Message](256)
	t.Cleanup(func() { _ = ps.Close() })

	mock := clock.NewMock()

	r1 := startReplica(t, ps, mock, "1-aaa")
	r2 := startReplica(t, ps, mock, "2-bbb")
	r3 := startReplica(t, ps, mock, "3-ccc")

	require.Eventually(t, func() bool {
		mock.Add(250 * time.Millisecond)

		leader, ok := leaderOf(r1, r2, r3)

		return ok && leader == "3-ccc"
	}, 10*time.Second, 5*time.Millisecond)

	require.True(t, r3.engine.IsLeader())
	require.False(t, r2.engine.IsLeader())
	require.False(t, r1.engine.IsLeader())
}

func TestCluster_ConvergesAndFailsOver(t *testing.T) {
	ps := inmem.NewPubSub[election.Message](256)
	t.Cleanup(func() { _ = ps.Close() })

	mock := clock.NewMock()

	// The dead highest id stays among the known peers, so the survivors
	// only converge when their own Ok does not end their round.
	r1 := startReplica(t, ps, mock, "1-aaa", election.WithIgnoreOwnOk())
	r2 := startReplica(t, ps, mock, "2-bbb", election.WithIgnoreOwnOk())
	r3 := startReplica(t, ps, mock, "3-ccc", election.WithIgnoreOwnOk())

	require.Eventually(t, func() bool {
		mock.Add(250 * time.Millisecond)

		leader, ok := leaderOf(r1, r2, r3)

		return ok && leader == "3-ccc"
	}, 10*time.Second, 5*time.Millisecond)

	require.True(t, r3.engine.IsLeader())
	require.False(t, r2.engine.IsLeader())
	require.False(t, r1.engine.IsLeader())

	// Each replica reports its own leadership.
	require.Eventually(t, func() bool {
		return isLeaderGauge("3-ccc") == 1 &&
			isLeaderGauge("2-bbb") == 0 &&
			isLeaderGauge("1-aaa") == 0
	}, 5*time.Second, 5*time.Millisecond)

	// Every replica has heard from itself.
	for _, r := range []*replica{r1, r2, r3} {
		self, _ := r.engine.ID()

		_, seen := r.engine.State().LastSeen(self)
		require.True(t, seen)
	}

	r3.stop()

	require.Eventually(t, func() bool {
		mock.Add(250 * time.Millisecond)

		leader, ok := leaderOf(r1, r2)

		return ok && leader == "2-bbb"
	}, 10*time.Second, 5*time.Millisecond)

	require.True(t, r2.engine.IsLeader())
	require.False(t, r1.engine.IsLeader())

	require.Eventually(t, func() bool {
		return isLeaderGauge("2-bbb") == 1 && isLeaderGauge("1-aaa") == 0
	}, 5*time.Second, 5*time.Millisecond)
}
