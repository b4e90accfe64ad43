// Package amqpw implements a worker.Worker consuming durable RabbitMQ
// queues. The consumer can be stopped and started again on the same
// connection, which lets a leadership verdict toggle it at runtime.
package amqpw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/purposeinplay/notifier/worker"
	"github.com/streadway/amqp"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Options are used to configure the AMQP worker adapter.
type Options struct {
	// Connection is the AMQP connection to use.
	Connection *amqp.Connection

	// Logger is a logger interface to write the worker logs.
	Logger *zap.Logger

	// Name is used to identify the app as a consumer. Defaults to "notifier".
	Name string

	// MaxConcurrency restricts the amount of workers in parallel.
	MaxConcurrency int

	// Prefetch is the broker side prefetch count. Defaults to MaxConcurrency.
	Prefetch int
}

var (
	// ErrInvalidConnection is returned when the Connection opt is not defined.
	ErrInvalidConnection = errors.New("invalid connection")

	// ErrNoHandlers is returned when starting without any registered handler.
	ErrNoHandlers = errors.New("no handlers registered")

	// ErrUnknownHandler is returned when performing a job nobody handles.
	ErrUnknownHandler = errors.New("unknown handler")
)

// Ensures Adapter implements the Worker interface.
var _ worker.Worker = &Adapter{}

// New creates a new AMQP adapter.
func New(opts Options) (*Adapter, error) {
	if opts.Connection == nil {
		return nil, ErrInvalidConnection
	}

	if opts.Name == "" {
		opts.Name = "notifier"
	}

	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 25
	}

	if opts.Prefetch <= 0 {
		opts.Prefetch = opts.MaxConcurrency
	}

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Adapter{
		conn:           opts.Connection,
		logger:         opts.Logger,
		consumerName:   opts.Name,
		maxConcurrency: opts.MaxConcurrency,
		prefetch:       opts.Prefetch,
		handlers:       make(map[string]worker.Handler),
		declared:       make(map[string]struct{}),
		running:        atomic.NewBool(false),
	}, nil
}

// Adapter consumes one durable queue per registered handler.
type Adapter struct {
	conn           *amqp.Connection
	logger         *zap.Logger
	consumerName   string
	maxConcurrency int
	prefetch       int

	mu       sync.Mutex
	handlers map[string]worker.Handler
	session  *session
	running  *atomic.Bool

	pubMu    sync.Mutex
	pubCh    *amqp.Channel
	declared map[string]struct{}
}

// session is one Start..Stop cycle.
type session struct {
	ch   *amqp.Channel
	tags []string
	stop chan struct{}
	wg   sync.WaitGroup
}

func declareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{},
	)
	if err != nil {
		return fmt.Errorf("unable to create queue: %w", err)
	}

	return nil
}

// Register binds h to the queue called name. Handlers registered while
// running are picked up on the next Start.
func (q *Adapter) Register(name string, h worker.Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.logger.Info("register job", zap.String("job", name))

	q.handlers[name] = h

	return nil
}

// Start consumes every registered queue until Stop is called or ctx is done.
// Starting a running adapter is a no-op.
func (q *Adapter) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.session != nil {
		return nil
	}

	if len(q.handlers) == 0 {
		return ErrNoHandlers
	}

	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("could not start a new broker channel: %w", err)
	}

	if err := ch.Qos(q.prefetch, 0, false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("set qos: %w", err)
	}

	s := &session{
		ch:   ch,
		stop: make(chan struct{}),
	}

	names := make([]string, 0, len(q.handlers))
	for name := range q.handlers {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		if err := declareQueue(ch, name); err != nil {
			_ = ch.Close()
			return err
		}

		tag := fmt.Sprintf("%s_%s_%s", q.consumerName, name, uuid.NewString())

		msgs, err := ch.Consume(
			name,
			tag,
			false, // auto-ack
			false, // exclusive
			false, // no-local
			false, // no-wait
			nil,   // args
		)
		if err != nil {
			_ = ch.Close()
			return fmt.Errorf("could not consume queue: %w", err)
		}

		s.tags = append(s.tags, tag)

		s.wg.Add(1)

		go q.consume(s, name, q.handlers[name], msgs)
	}

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))

	go func() {
		select {
		case <-ctx.Done():
			_ = q.Stop()

		case err, ok := <-closed:
			if ok && err != nil {
				q.logger.Warn("consumer channel closed by broker", zap.Error(err))
			}

			q.forget(s)

		case <-s.stop:
		}
	}()

	q.session = s
	q.running.Store(true)

	q.logger.Info("AMQP worker started", zap.Strings("queues", names))

	return nil
}

// forget drops s if it is still the current session.
func (q *Adapter) forget(s *session) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.session == s {
		q.session = nil
		q.running.Store(false)
	}
}

// consume processes deliveries with at most maxConcurrency handlers in
// flight. Undecodable bodies are dropped, failed jobs are requeued.
func (q *Adapter) consume(
	s *session,
	name string,
	h worker.Handler,
	msgs <-chan amqp.Delivery,
) {
	defer s.wg.Done()

	sem := make(chan struct{}, q.maxConcurrency)

	var inflight sync.WaitGroup

	for d := range msgs {
		sem <- struct{}{}

		inflight.Add(1)

		go func(d amqp.Delivery) {
			defer func() {
				<-sem
				inflight.Done()
			}()

			q.process(name, h, d)
		}(d)
	}

	inflight.Wait()
}

func (q *Adapter) process(name string, h worker.Handler, d amqp.Delivery) {
	q.logger.Debug("received job", zap.String("job", name), zap.ByteString("body", d.Body))

	args := worker.Args{}

	if err := json.Unmarshal(d.Body, &args); err != nil {
		q.logger.Warn("unable to decode job, dropping",
			zap.String("job", name),
			zap.Error(err),
		)

		if err := d.Reject(false); err != nil {
			q.logger.Warn("unable to reject job", zap.String("job", name), zap.Error(err))
		}

		return
	}

	if err := h(args); err != nil {
		q.logger.Warn("unable to process job, requeueing",
			zap.String("job", name),
			zap.Error(err),
		)

		if err := d.Nack(false, true); err != nil {
			q.logger.Warn("unable to nack job", zap.String("job", name), zap.Error(err))
		}

		return
	}

	if err := d.Ack(false); err != nil {
		q.logger.Warn("unable to ack job", zap.String("job", name), zap.Error(err))
	}
}

// Stop cancels the consumers and closes their channel. Unacknowledged
// deliveries go back to the queue. The connection stays open.
func (q *Adapter) Stop() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := q.session
	if s == nil {
		return nil
	}

	q.logger.Info("stopping AMQP worker")

	q.session = nil
	q.running.Store(false)

	close(s.stop)

	var errs []error

	for _, tag := range s.tags {
		if err := s.ch.Cancel(tag, false); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("cancel %s: %w", tag, err))
		}
	}

	if err := s.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		errs = append(errs, fmt.Errorf("close channel: %w", err))
	}

	s.wg.Wait()

	return errors.Join(errs...)
}

// IsRunning reports whether the adapter is consuming.
func (q *Adapter) IsRunning() bool {
	return q.running.Load()
}

// Perform enqueues a new job on the queue of its handler.
func (q *Adapter) Perform(job worker.Job) error {
	if job.Handler == "" {
		return ErrUnknownHandler
	}

	q.logger.Info("enqueuing job", zap.String("job", job.Handler))

	q.pubMu.Lock()
	defer q.pubMu.Unlock()

	if q.pubCh == nil {
		ch, err := q.conn.Channel()
		if err != nil {
			return fmt.Errorf("could not start a new broker channel: %w", err)
		}

		q.pubCh = ch
		q.declared = make(map[string]struct{})
	}

	if _, ok := q.declared[job.Handler]; !ok {
		if err := declareQueue(q.pubCh, job.Handler); err != nil {
			q.resetPublisher()
			return err
		}

		q.declared[job.Handler] = struct{}{}
	}

	err := q.pubCh.Publish(
		"",          // default exchange
		job.Handler, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         []byte(job.Args.String()),
		},
	)
	if err != nil {
		q.logger.Error("error enqueuing job", zap.String("job", job.Handler), zap.Error(err))
		q.resetPublisher()

		return fmt.Errorf("error enqueuing job: %w", err)
	}

	return nil
}

// resetPublisher drops the publishing channel. Callers must hold pubMu.
func (q *Adapter) resetPublisher() {
	if q.pubCh != nil {
		_ = q.pubCh.Close()
	}

	q.pubCh = nil
}

// Close stops consuming and releases the publishing channel.
func (q *Adapter) Close() error {
	stopErr := q.Stop()

	q.pubMu.Lock()
	q.resetPublisher()
	q.pubMu.Unlock()

	return stopErr
}
