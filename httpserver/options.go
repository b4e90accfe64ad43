package httpserver

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/davecgh/go-spew/spew"
)

// An Option configures a Server using the functional options paradigm.
type Option interface {
	fmt.Stringer

	apply(*Server)
}

type addressOption string

func (o addressOption) apply(s *Server) {
	s.httpServer.Addr = string(o)
	s.info.Addr = string(o)
}

func (o addressOption) String() string {
	return fmt.Sprintf("server.Address: %s", string(o))
}

// WithAddress will set the address field of the server
func WithAddress(address string) Option {
	return addressOption(address)
}

type serverTimeoutsOption struct {
	// writeTimeout: the maximum duration before timing out writes of the response
	writeTimeout,
	// readTimeout: the maximum duration for reading the entire request, including the body
	readTimeout,
	// idleTimeout: the maximum amount of time to wait for the next request when keep-alive is enabled
	idleTimeout,
	// readHeaderTimeout: the amount of time allowed to read request headers
	readHeaderTimeout time.Duration
}

func (o serverTimeoutsOption) String() string {
	return fmt.Sprintf("server.WriteTimeout: %s\n"+
		"server.ReadTimeout: %s\n"+
		"server.IdleTimeout: %s\n"+
		"server.ReadHeaderTimeout: %s",
		o.writeTimeout,
		o.readTimeout,
		o.idleTimeout,
		o.readHeaderTimeout)
}

func (o serverTimeoutsOption) apply(s *Server) {
	s.httpServer.WriteTimeout = o.writeTimeout
	s.httpServer.ReadTimeout = o.readTimeout
	s.httpServer.IdleTimeout = o.idleTimeout
	s.httpServer.ReadHeaderTimeout = o.readHeaderTimeout
}

// WithServerTimeouts will set the timeouts for the underlying HTTP server.
func WithServerTimeouts(
	writeTimeout,
	readTimeout,
	idleTimeout,
	readHeaderTimeout time.Duration,
) Option {
	return serverTimeoutsOption{
		writeTimeout:      writeTimeout,
		readTimeout:       readTimeout,
		idleTimeout:       idleTimeout,
		readHeaderTimeout: readHeaderTimeout,
	}
}

type shutdownTimeoutOption time.Duration

func (o shutdownTimeoutOption) apply(s *Server) {
	if o > 0 {
		s.shutdownTimeout = time.Duration(o)
	}
}

func (o shutdownTimeoutOption) String() string {
	return fmt.Sprintf("server.ShutdownTimeout: %s", time.Duration(o))
}

// WithShutdownTimeout bounds the drain performed when Run's context is done.
func WithShutdownTimeout(d time.Duration) Option {
	return shutdownTimeoutOption(d)
}

type baseContextOption struct {
	ctx                     context.Context
	cancelContextOnShutdown bool
}

func (o baseContextOption) apply(s *Server) {
	if o.ctx == nil {
		if !o.cancelContextOnShutdown {
			return
		}

		o.ctx = context.Background()
	}

	if o.cancelContextOnShutdown {
		var cancel func()
		o.ctx, cancel = context.WithCancel(o.ctx)

		s.httpServer.RegisterOnShutdown(cancel)
	}

	s.httpServer.BaseContext = func(_ net.Listener) context.Context {
		return o.ctx
	}
}

func (o baseContextOption) String() string {
	cfg := spew.ConfigState{
		Indent:                  " ",
		DisablePointerAddresses: true,
		DisableCapacities:       true,
	}

	return fmt.Sprintf("server.BaseContext: %s"+
		"server.CancelContextOnShutdown: %t", cfg.Sdump(o.ctx), o.cancelContextOnShutdown)
}

// WithBaseContext sets a predefined base context for all incoming http requests.
//
// If cancelContextOnShutdown is set the base context is cancelled as soon as
// Shutdown is called, which lets long running handlers return early.
func WithBaseContext(ctx context.Context, cancelContextOnShutdown bool) Option {
	return baseContextOption{
		ctx,
		cancelContextOnShutdown,
	}
}
