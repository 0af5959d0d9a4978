// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"log/slog"

	"github.com/bureau-foundation/mavlink-bridge/lib/clock"
	"github.com/bureau-foundation/mavlink-bridge/relay"
	"github.com/bureau-foundation/mavlink-bridge/transport"
)

// Supervisor runs one ConnectionHandler per endpoint descriptor.
// Handlers that end are not restarted.
type Supervisor struct {
	handlers []*ConnectionHandler
	logger   *slog.Logger
}

// NewSupervisor creates a handler, with its own relay cursor, for each
// descriptor in order.
func NewSupervisor(descriptors []EndpointDescriptor, opener transport.Opener, fanout *relay.Relay, supervisorClock clock.Clock, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	handlers := make([]*ConnectionHandler, 0, len(descriptors))
	for _, descriptor := range descriptors {
		handlers = append(handlers, NewConnectionHandler(descriptor, opener, fanout, supervisorClock, logger))
	}
	return &Supervisor{handlers: handlers, logger: logger}
}

// Handlers returns the supervised handlers, in descriptor order.
func (s *Supervisor) Handlers() []*ConnectionHandler {
	return s.handlers
}

// Run starts every handler and blocks until all of them have ended.
// Each completion is logged as it happens. When the last handler ends
// while ctx is still live, endpoint forwarding is over for this bridge
// and that is logged as an error; nothing else is stopped.
func (s *Supervisor) Run(ctx context.Context) {
	if len(s.handlers) == 0 {
		s.logger.Warn("no endpoints configured, nothing to supervise")
		return
	}

	type completion struct {
		handler *ConnectionHandler
		err     error
	}
	completions := make(chan completion, len(s.handlers))
	for _, handler := range s.handlers {
		go func() {
			completions <- completion{handler: handler, err: handler.Run(ctx)}
		}()
	}
	s.logger.Info("connection handlers started", "count", len(s.handlers))

	for remaining := len(s.handlers); remaining > 0; remaining-- {
		done := <-completions
		if done.err != nil {
			done.handler.logger.Error("connection handler ended", "error", done.err, "remaining", remaining-1)
		} else {
			done.handler.logger.Info("connection handler stopped", "remaining", remaining-1)
		}
	}

	if ctx.Err() == nil {
		s.logger.Error("all connection handlers have ended, endpoint forwarding has stopped")
	}
}

// Status returns a snapshot of every handler, in descriptor order.
func (s *Supervisor) Status() []EndpointStatus {
	statuses := make([]EndpointStatus, 0, len(s.handlers))
	for _, handler := range s.handlers {
		statuses = append(statuses, handler.Status())
	}
	return statuses
}
