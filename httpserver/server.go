// Package httpserver serves the status surface of the notifier and takes
// care of its graceful shutdown.
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultAddr            = ":8080"
	defaultShutdownTimeout = 10 * time.Second
)

// Info holds relevant information about the Server.
type Info struct {
	Addr string
}

// Server handles the setup and shutdown of the http server
// for an http.Handler
type Server struct {
	// underlying http server
	httpServer *http.Server

	log *zap.Logger

	// chan to signal that the server was shutdown which means that either the
	// Server() or ListenAndServe() methods returned.
	done chan struct{}

	// holds extra information about the service
	info Info

	// shutdownTimeout bounds the drain performed by Run.
	shutdownTimeout time.Duration

	// once function to only close the done channel once.
	closeDoneOnce sync.Once
}

// New will build a server with the defaults in place.
// You can use Options to override the defaults.
// Default list:
// - Address: ":8080"
// - Shutdown timeout: 10s
func New(log *zap.Logger, handler http.Handler, options ...Option) *Server {
	server := &Server{
		httpServer: &http.Server{
			Handler:           handler,
			Addr:              defaultAddr,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log:             log,
		done:            make(chan struct{}),
		info:            Info{Addr: defaultAddr},
		shutdownTimeout: defaultShutdownTimeout,
	}

	for _, o := range options {
		o.apply(server)
	}

	return server
}

// Shutdown is a wrapper over http.Server.Shutdown() that also closes the
// Server done channel and sets a timeout for the shutdown operation.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	defer s.closeDoneOnce.Do(func() {
		close(s.done)
	})

	err := s.httpServer.Shutdown(ctx)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Serve is a wrapper over http.Server.Serve(), and accepts incoming connections
// on the provided listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.handleShutdown(s.httpServer.Serve(ln))
}

// ListenAndServe is a wrapper over http.Server.ListenAndServe() that logs basic information
// and blocks execution until the Server.Shutdown() method is called.
func (s *Server) ListenAndServe() error {
	s.log.Info("starting server", zap.String("address", s.httpServer.Addr))

	return s.handleShutdown(s.httpServer.ListenAndServe())
}

// Run listens until ctx is done, then shuts the server down within the
// configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errC := make(chan error, 1)

	go func() {
		errC <- s.ListenAndServe()
	}()

	select {
	case err := <-errC:
		return err

	case <-ctx.Done():
		if err := s.Shutdown(s.shutdownTimeout); err != nil {
			s.log.Error("failed to shutdown server in time", zap.Error(err))
			return err
		}

		return <-errC
	}
}

func (s *Server) handleShutdown(err error) error {
	if !errors.Is(err, http.ErrServerClosed) {
		// the listener failed, nothing will call Shutdown.
		s.closeDoneOnce.Do(func() {
			close(s.done)
		})

		return err
	}

	s.log.Debug("listener shutdown, waiting for connections to drain")

	// wait until Shutdown() method returns
	<-s.done

	s.log.Debug("server connections are drained")

	return nil
}

// Info returns the server.Info object
func (s *Server) Info() Info {
	return s.info
}
