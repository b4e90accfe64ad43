//go:build integration

package kafka_test

import (
	"context"
	"testing"
	"time"

	"github.com/purposeinplay/notifier/kafkadocker"
	"github.com/purposeinplay/notifier/pubsub"
	"github.com/purposeinplay/notifier/pubsub/kafka"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type heartbeat struct {
	From string `json:"from"`
}

func TestBroadcaster_FanOut(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	const topic = "notifier.test.election"

	cluster := &kafkadocker.Cluster{
		Topics:        []string{topic},
		Port:          "9096",
		ContainerName: "notifier-pubsub-kafka",
	}

	req.NoError(cluster.Start(ctx))

	t.Cleanup(func() { _ = cluster.Stop(ctx) })

	b, err := kafka.New[heartbeat](kafka.Options{
		Brokers: cluster.BrokerAddresses(),
		Logger:  zaptest.NewLogger(t),
	})
	req.NoError(err)

	t.Cleanup(func() { req.NoError(b.Close()) })

	subA, err := b.Subscribe(topic)
	req.NoError(err)

	subB, err := b.Subscribe(topic)
	req.NoError(err)

	// Readers start at the latest offset once they joined their group, so
	// keep publishing until both subscriptions observed a heartbeat.
	pubCtx, stop := context.WithCancel(ctx)
	defer stop()

	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()

		for {
			_ = b.Publish(pubsub.Event[heartbeat]{
				Type:    "HEARTBEAT",
				Payload: heartbeat{From: "a"},
			}, topic)

			select {
			case <-pubCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	for _, sub := range []pubsub.Subscription[heartbeat]{subA, subB} {
		select {
		case e := <-sub.C():
			req.Equal("HEARTBEAT", e.Type)
			req.Equal("a", e.Payload.From)
		case <-time.After(60 * time.Second):
			t.Fatal("timed out waiting for event")
		}
	}

	stop()

	req.NoError(subA.Close())
	req.NoError(subB.Close())
}
