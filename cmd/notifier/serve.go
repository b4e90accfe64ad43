package main

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/purposeinplay/notifier/config"
	"github.com/purposeinplay/notifier/election"
	"github.com/purposeinplay/notifier/httpserver"
	"github.com/purposeinplay/notifier/instanceid"
	"github.com/purposeinplay/notifier/logs"
	"github.com/purposeinplay/notifier/metrics"
	"github.com/purposeinplay/notifier/notification"
	"github.com/purposeinplay/notifier/pubsub"
	"github.com/purposeinplay/notifier/pubsub/amqpw"
	"github.com/purposeinplay/notifier/pubsub/inmem"
	"github.com/purposeinplay/notifier/pubsub/kafka"
	"github.com/purposeinplay/notifier/reconciler"
	"github.com/purposeinplay/notifier/worker"
	workeramqpw "github.com/purposeinplay/notifier/worker/amqpw"
	"github.com/spf13/cobra"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run a notifier replica",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			return serve(cmd.Context(), cfg)
		},
	}
}

// broadcaster is the election transport.
type broadcaster interface {
	pubsub.PublishSubscriber[election.Message]
	Close() error
}

func newBroadcaster(
	cfg config.Config,
	conn *amqp.Connection,
	logger *zap.Logger,
) (broadcaster, error) {
	switch cfg.Transport {
	case config.TransportAMQP:
		b, err := amqpw.New[election.Message](amqpw.Options{
			Connection: conn,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}

		return b, nil

	case config.TransportKafka:
		var sasl *kafka.SASLConfig
		if cfg.Kafka.Username != "" {
			sasl = &kafka.SASLConfig{
				Username: cfg.Kafka.Username,
				Password: cfg.Kafka.Password,
			}
		}

		b, err := kafka.New[election.Message](kafka.Options{
			Brokers:     cfg.Kafka.Brokers,
			GroupPrefix: cfg.Kafka.GroupPrefix,
			SASL:        sasl,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}

		return b, nil

	case config.TransportInMem:
		return inmem.NewPubSub[election.Message](64), nil
	}

	return nil, fmt.Errorf("%w: %q", config.ErrUnknownTransport, cfg.Transport)
}

func serve(ctx context.Context, cfg config.Config) error {
	logger, err := logs.New(cfg.Log, cfg.Service)
	if err != nil {
		return fmt.Errorf("new logger: %w", err)
	}

	defer func() { _ = logger.Sync() }()

	ids := instanceid.New(cfg.InstanceID)
	ids.Initialize()

	self, _ := ids.ID()
	logger = logger.With(zap.String("instance_id", self))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	conn, err := amqpw.Dial(&amqpw.Config{
		URL:        cfg.AMQP.URL,
		MaxRetries: cfg.AMQP.MaxRetries,
	})
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}

	defer func() { _ = conn.Close() }()

	bc, err := newBroadcaster(cfg, conn, logger)
	if err != nil {
		return fmt.Errorf("new broadcaster: %w", err)
	}

	defer func() { _ = bc.Close() }()

	opts := []election.Option{
		election.WithLogger(logger.Named("election")),
		election.WithTopic(cfg.Topic),
		election.WithIntervals(cfg.Election),
	}

	if cfg.IgnoreOwnOk {
		opts = append(opts, election.WithIgnoreOwnOk())
	}

	engine := election.NewEngine(ids, bc, opts...)

	listener := election.NewListener(bc, engine, logger.Named("election"))

	consumer, err := workeramqpw.New(workeramqpw.Options{
		Connection:     conn,
		Logger:         logger.Named("worker"),
		Name:           cfg.Service,
		MaxConcurrency: cfg.Queue.MaxConcurrency,
		Prefetch:       cfg.Queue.Prefetch,
	})
	if err != nil {
		return fmt.Errorf("new worker: %w", err)
	}

	defer func() { _ = consumer.Close() }()

	sender := notification.NewMailSender(cfg.Mail, logger.Named("mail"))

	if err := consumer.Register(
		cfg.Queue.Name,
		notification.Handler(sender, logger.Named("notification")),
	); err != nil {
		return fmt.Errorf("register handler: %w", err)
	}

	registry := worker.NewRegistry()

	if err := registry.Register(cfg.Queue.ConsumerName, consumer); err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	rec := reconciler.New(
		engine,
		registry,
		cfg.Queue.ConsumerName,
		reconciler.WithInterval(cfg.ReconcileInterval),
		reconciler.WithLogger(logger.Named("reconciler")),
	)

	server := httpserver.New(
		logger.Named("http"),
		httpserver.NewRouter(logger.Named("http"), engine, metrics.Handler(prometheus.DefaultGatherer)),
		httpserver.WithAddress(cfg.HTTP.Address),
		httpserver.WithShutdownTimeout(cfg.HTTP.ShutdownTimeout),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g run.Group

	g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	for _, actor := range []interface {
		Run(context.Context) error
	}{listener, engine, rec, server} {
		g.Add(func() error {
			return actor.Run(ctx)
		}, func(error) {
			cancel()
		})
	}

	logger.Info("notifier started",
		zap.String("transport", cfg.Transport),
		zap.String("topic", cfg.Topic),
		zap.String("queue", cfg.Queue.Name),
	)

	err = g.Run()

	var sig run.SignalError
	if errors.As(err, &sig) {
		logger.Info("shutting down", zap.String("signal", sig.Signal.String()))
		return nil
	}

	return err
}
