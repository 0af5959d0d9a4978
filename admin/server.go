// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server serves an http.Handler on a TCP listener until its context
// is cancelled, then drains active requests.
type Server struct {
	address         string
	handler         http.Handler
	logger          *slog.Logger
	shutdownTimeout time.Duration

	// ready is closed once the listener is bound.
	ready chan struct{}

	// addr is the resolved listen address, valid after ready is closed.
	addr net.Addr
}

// ServerConfig configures a Server.
type ServerConfig struct {
	// Address is the TCP listen address, for example "127.0.0.1:8000".
	// Port 0 picks a free port. Required.
	Address string

	// Handler is usually the result of NewHandler. Required.
	Handler http.Handler

	// ShutdownTimeout bounds graceful shutdown. Defaults to 5 seconds.
	ShutdownTimeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewServer creates a server. Call Serve to start it.
func NewServer(config ServerConfig) *Server {
	if config.Address == "" {
		panic("admin.Server: Address is required")
	}
	if config.Handler == nil {
		panic("admin.Server: Handler is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := config.ShutdownTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Server{
		address:         config.Address,
		handler:         config.Handler,
		logger:          logger.With("component", "admin"),
		shutdownTimeout: timeout,
		ready:           make(chan struct{}),
	}
}

// Ready is closed once the server is bound and accepting connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the resolved listen address. Only valid after Ready is
// closed.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Serve blocks until ctx is cancelled or the server fails.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("admin: listening on %s: %w", s.address, err)
	}
	s.addr = listener.Addr()
	close(s.ready)

	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.logger.Info("admin interface listening", "address", s.addr.String())

	serveDone := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveDone:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("admin: shutdown: %w", err)
	}
	s.logger.Info("admin interface stopped")
	return nil
}
