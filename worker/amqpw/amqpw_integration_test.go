//go:build integration

package amqpw_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/purposeinplay/notifier/pubsub/amqpw"
	"github.com/purposeinplay/notifier/rabbitmqdocker"
	"github.com/purposeinplay/notifier/worker"
	workeramqpw "github.com/purposeinplay/notifier/worker/amqpw"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func Test_PerformStartStop(t *testing.T) {
	r := require.New(t)

	container, err := rabbitmqdocker.NewContainer(
		"guest",
		"guest",
		rabbitmqdocker.WithContainerName("notifier-worker-rabbitmq"),
		rabbitmqdocker.WithPort("5674"),
		rabbitmqdocker.WithManagementPort("15674"),
	)
	r.NoError(err)

	t.Cleanup(func() { _ = container.Close() })

	conn, err := amqpw.Dial(&amqpw.Config{URL: container.URL()})
	r.NoError(err)

	t.Cleanup(func() { _ = conn.Close() })

	q, err := workeramqpw.New(workeramqpw.Options{
		Connection: conn,
		Logger:     zaptest.NewLogger(t),
	})
	r.NoError(err)

	t.Cleanup(func() { _ = q.Close() })

	var (
		mu       sync.Mutex
		subjects []string
	)

	r.NoError(q.Register("notifications", func(args worker.Args) error {
		mu.Lock()
		defer mu.Unlock()

		subjects = append(subjects, args["subject"].(string))

		return nil
	}))

	received := func() []string {
		mu.Lock()
		defer mu.Unlock()

		return append([]string(nil), subjects...)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r.NoError(q.Start(ctx))
	r.True(q.IsRunning())

	r.NoError(q.Perform(worker.Job{Handler: "notifications", Args: worker.Args{"subject": "first"}}))

	r.Eventually(func() bool {
		return len(received()) == 1
	}, 10*time.Second, 50*time.Millisecond)

	r.NoError(q.Stop())
	r.False(q.IsRunning())

	// Jobs enqueued while stopped wait in the queue.
	r.NoError(q.Perform(worker.Job{Handler: "notifications", Args: worker.Args{"subject": "second"}}))

	time.Sleep(500 * time.Millisecond)
	r.Len(received(), 1)

	r.NoError(q.Start(ctx))

	r.Eventually(func() bool {
		return len(received()) == 2
	}, 10*time.Second, 50*time.Millisecond)

	r.Equal([]string{"first", "second"}, received())

	// Cancelling the context stops the consumer.
	cancel()

	r.Eventually(func() bool {
		return !q.IsRunning()
	}, 5*time.Second, 10*time.Millisecond)
}
