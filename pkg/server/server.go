package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/tcprelay/internal/logger"
	"github.com/marmos91/tcprelay/pkg/adapter"
)

// DefaultShutdownTimeout is the default timeout for graceful shutdown.
const DefaultShutdownTimeout = 30 * time.Second

// ErrShutdownTimeout is returned by Serve when components are still running
// after the shutdown timeout.
var ErrShutdownTimeout = errors.New("graceful shutdown timed out")

// AuxiliaryServer is an interface for auxiliary HTTP servers (API, Metrics).
type AuxiliaryServer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Port() int
}

type auxiliary struct {
	name   string
	server AuxiliaryServer
}

// Server runs the relay adapter and its auxiliary servers.
type Server struct {
	adapter         adapter.Adapter
	shutdownTimeout time.Duration

	mu     sync.Mutex
	aux    []auxiliary
	served bool
}

// New creates a server for a. A zero shutdownTimeout selects
// DefaultShutdownTimeout.
func New(a adapter.Adapter, shutdownTimeout time.Duration) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	return &Server{
		adapter:         a,
		shutdownTimeout: shutdownTimeout,
	}
}

// AddAuxiliary registers an auxiliary server started alongside the relay.
// Must be called before Serve; nil servers are ignored.
func (s *Server) AddAuxiliary(name string, srv AuxiliaryServer) {
	if srv == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.served {
		panic("cannot add auxiliary server after Serve() has been called")
	}
	s.aux = append(s.aux, auxiliary{name: name, server: srv})
	logger.Info("Auxiliary server registered", "name", name, "port", srv.Port())
}

// Serve starts every component and blocks until shutdown.
//
// Cancelling ctx is a graceful shutdown and yields nil. A component failure
// stops the others and is returned, joined with any error raised while
// stopping. Serve may only be called once.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return errors.New("server already served")
	}
	s.served = true
	aux := s.aux
	s.mu.Unlock()

	logger.Info("Starting relayd",
		"protocol", s.adapter.Protocol(),
		"port", s.adapter.Port(),
		"auxiliary", len(aux),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	var (
		errMu sync.Mutex
		errs  error
	)
	record := func(name string, err error) {
		if err == nil {
			return
		}
		errMu.Lock()
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
		errMu.Unlock()
	}

	// Any component returning ends the run, even with a nil error, so a
	// relay stopped out of band does not leave the API serving alone.
	g.Go(func() error {
		defer cancel()
		err := s.adapter.Serve(gctx)
		record(s.adapter.Protocol(), err)
		return err
	})
	for _, a := range aux {
		a := a
		g.Go(func() error {
			defer cancel()
			err := a.server.Start(gctx)
			record(a.name, err)
			return err
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-gctx.Done():
		if ctx.Err() != nil {
			logger.Info("Shutdown signal received", "reason", ctx.Err())
		} else {
			logger.Warn("Component exited, shutting down")
		}
		if err := s.awaitShutdown(done, aux); err != nil {
			record("shutdown", err)
		}
	}

	errMu.Lock()
	defer errMu.Unlock()
	if errs != nil {
		logger.Error("relayd stopped with errors", logger.KeyError, errs)
	} else {
		logger.Info("relayd stopped")
	}
	return errs
}

// awaitShutdown waits for every component to return. Past the timeout it
// asks each one to stop explicitly and reports ErrShutdownTimeout.
func (s *Server) awaitShutdown(done <-chan struct{}, aux []auxiliary) error {
	timer := time.NewTimer(s.shutdownTimeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
	}

	logger.Warn("Shutdown timeout exceeded, forcing stop", "timeout", s.shutdownTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.adapter.Stop(ctx)
	for _, a := range aux {
		err = multierr.Append(err, a.server.Stop(ctx))
	}
	return multierr.Append(ErrShutdownTimeout, err)
}
