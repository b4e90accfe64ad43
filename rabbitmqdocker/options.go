package rabbitmqdocker

import (
	"time"

	"github.com/ory/dockertest/v3"
)

type options struct {
	containerName,
	port,
	managementPort string
	pool       *dockertest.Pool
	expiration time.Duration
}

func defaultOptions() options {
	return options{
		containerName:  "notifier-rabbitmq",
		port:           "5672",
		managementPort: "15672",
		pool:           nil,
		expiration:     2 * time.Minute,
	}
}

// Option configures the RabbitMQ container.
type Option interface {
	apply(*options)
}

type containerNameOption string

func (c containerNameOption) apply(opts *options) {
	opts.containerName = string(c)
}

// WithContainerName configures the container and host name.
func WithContainerName(name string) Option {
	return containerNameOption(name)
}

type portOption string

func (c portOption) apply(opts *options) {
	opts.port = string(c)
}

// WithPort sets the host port bound to AMQP, default 5672.
func WithPort(port string) Option {
	return portOption(port)
}

type managementPortOption string

func (c managementPortOption) apply(opts *options) {
	opts.managementPort = string(c)
}

// WithManagementPort sets the host port bound to the management API,
// default 15672.
func WithManagementPort(port string) Option {
	return managementPortOption(port)
}

type poolOption struct {
	p *dockertest.Pool
}

func (p poolOption) apply(opts *options) {
	opts.pool = p.p
}

// WithPool sets the docker container pool.
func WithPool(pool *dockertest.Pool) Option {
	return poolOption{pool}
}

type expirationOption time.Duration

func (e expirationOption) apply(opts *options) {
	opts.expiration = time.Duration(e)
}

// WithExpiration sets after how long docker kills the container.
func WithExpiration(d time.Duration) Option {
	return expirationOption(d)
}
