// Package kafkadocker starts a disposable single-broker Kafka cluster in
// KRaft mode for integration tests.
package kafkadocker

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/segmentio/kafka-go"
	"go.uber.org/atomic"
)

// Cluster is a single Kafka broker acting as its own controller.
type Cluster struct {
	// Topics are created once the broker is reachable.
	Topics []string

	// Port is the host port the broker listens and advertises on.
	// Defaults to 9094.
	Port string

	// ContainerName defaults to "notifier-kafka".
	ContainerName string

	// Expiration is how long docker keeps the container. Defaults to
	// 3 minutes.
	Expiration time.Duration

	resource *dockertest.Resource
	started  atomic.Bool
}

// BrokerAddresses returns the addresses of the brokers in the cluster.
func (c *Cluster) BrokerAddresses() []string {
	return []string{net.JoinHostPort("localhost", c.port())}
}

// Start runs the broker container and waits until it accepts metadata
// requests.
func (c *Cluster) Start(ctx context.Context) error {
	if c.started.Swap(true) {
		return ErrBrokerAlreadyStarted
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		c.started.Store(false)
		return fmt.Errorf("new pool: %w", err)
	}

	pool.MaxWait = 90 * time.Second

	name := c.ContainerName
	if name == "" {
		name = "notifier-kafka"
	}

	res, err := pool.RunWithOptions(
		&dockertest.RunOptions{
			Name:       name,
			Hostname:   name,
			Repository: "apache/kafka",
			Tag:        "3.7.0",
			Env:        c.envVars(),
			PortBindings: map[docker.Port][]docker.PortBinding{
				docker.Port("9092/tcp"): {
					{HostIP: "0.0.0.0", HostPort: c.port()},
				},
			},
		},
		func(config *docker.HostConfig) {
			config.AutoRemove = true
		},
	)
	if err != nil {
		c.started.Store(false)
		return fmt.Errorf("docker run: %w", err)
	}

	c.resource = res

	expiration := c.Expiration
	if expiration <= 0 {
		expiration = 3 * time.Minute
	}

	if err := res.Expire(uint(expiration / time.Second)); err != nil {
		_ = c.Stop(ctx)
		return fmt.Errorf("expire: %w", err)
	}

	if err := pool.Retry(func() error {
		return c.ping(ctx)
	}); err != nil {
		_ = c.Stop(ctx)
		return fmt.Errorf("ping broker: %w", err)
	}

	if err := c.createTopics(ctx); err != nil {
		_ = c.Stop(ctx)
		return fmt.Errorf("create topics: %w", err)
	}

	return nil
}

// Stop removes the broker container.
func (c *Cluster) Stop(context.Context) error {
	if !c.started.Load() {
		return ErrBrokerWasNotStarted
	}

	defer c.started.Store(false)

	if c.resource == nil {
		return nil
	}

	if err := c.resource.Close(); err != nil {
		return fmt.Errorf("close container: %w", err)
	}

	return nil
}

func (c *Cluster) port() string {
	if c.Port == "" {
		return "9094"
	}

	return c.Port
}

func (c *Cluster) envVars() []string {
	return []string{
		"KAFKA_NODE_ID=1",
		"KAFKA_PROCESS_ROLES=broker,controller",
		"KAFKA_LISTENERS=PLAINTEXT://:9092,CONTROLLER://:9093",
		"KAFKA_ADVERTISED_LISTENERS=PLAINTEXT://localhost:" + c.port(),
		"KAFKA_CONTROLLER_LISTENER_NAMES=CONTROLLER",
		"KAFKA_LISTENER_SECURITY_PROTOCOL_MAP=CONTROLLER:PLAINTEXT,PLAINTEXT:PLAINTEXT",
		"KAFKA_CONTROLLER_QUORUM_VOTERS=1@localhost:9093",
		"KAFKA_OFFSETS_TOPIC_REPLICATION_FACTOR=1",
		"KAFKA_TRANSACTION_STATE_LOG_REPLICATION_FACTOR=1",
		"KAFKA_TRANSACTION_STATE_LOG_MIN_ISR=1",
		"KAFKA_GROUP_INITIAL_REBALANCE_DELAY_MS=0",
		"KAFKA_NUM_PARTITIONS=1",
	}
}

func (c *Cluster) ping(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", c.BrokerAddresses()[0])
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	defer func() { _ = conn.Close() }()

	if _, err := conn.Brokers(); err != nil {
		return fmt.Errorf("brokers: %w", err)
	}

	return nil
}

func (c *Cluster) createTopics(ctx context.Context) error {
	if len(c.Topics) == 0 {
		return nil
	}

	conn, err := kafka.DialContext(ctx, "tcp", c.BrokerAddresses()[0])
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	defer func() { _ = conn.Close() }()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("controller: %w", err)
	}

	cconn, err := kafka.DialContext(
		ctx,
		"tcp",
		net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)),
	)
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}

	defer func() { _ = cconn.Close() }()

	configs := make([]kafka.TopicConfig, 0, len(c.Topics))

	for _, t := range c.Topics {
		configs = append(configs, kafka.TopicConfig{
			Topic:             t,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
	}

	return cconn.CreateTopics(configs...)
}
