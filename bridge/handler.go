// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bureau-foundation/mavlink-bridge/lib/clock"
	"github.com/bureau-foundation/mavlink-bridge/lib/mavframe"
	"github.com/bureau-foundation/mavlink-bridge/relay"
	"github.com/bureau-foundation/mavlink-bridge/transport"
)

// relayBatchSize bounds how many relayed envelopes a handler writes
// before it checks its transport for input again.
const relayBatchSize = 64

// ConnectionHandler forwards frames between one endpoint and the
// relay. Construct with NewConnectionHandler and call Run once.
type ConnectionHandler struct {
	descriptor EndpointDescriptor
	opener     transport.Opener
	relay      *relay.Relay
	cursor     *relay.Cursor
	clock      clock.Clock
	logger     *slog.Logger
	tracker    *endpointTracker
}

// NewConnectionHandler subscribes a cursor for the handler
// immediately, so the handler sees every envelope published after this
// call even if Run starts later.
func NewConnectionHandler(descriptor EndpointDescriptor, opener transport.Opener, fanout *relay.Relay, handlerClock clock.Clock, logger *slog.Logger) *ConnectionHandler {
	if handlerClock == nil {
		handlerClock = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectionHandler{
		descriptor: descriptor,
		opener:     opener,
		relay:      fanout,
		cursor:     fanout.Subscribe(),
		clock:      handlerClock,
		logger:     logger.With("endpoint", descriptor.Address),
		tracker:    newEndpointTracker(descriptor),
	}
}

// Status returns a snapshot of the handler's counters and state.
func (h *ConnectionHandler) Status() EndpointStatus {
	return h.tracker.snapshot()
}

type readResult struct {
	frame mavframe.Frame
	err   error
}

// Run opens the transport and forwards frames until the transport
// fails on read, the relay is closed, or ctx is cancelled. It returns
// a *ConnectError or *ReadError for transport failures and nil
// otherwise.
func (h *ConnectionHandler) Run(ctx context.Context) (err error) {
	defer func() {
		h.tracker.update(func(status *EndpointStatus) {
			status.State = StateEnded
			if err != nil {
				status.Error = err.Error()
			}
		})
	}()

	connection, openErr := h.opener.Open(ctx, h.descriptor.Address)
	if openErr != nil {
		return &ConnectError{Endpoint: h.descriptor.Address, Err: openErr}
	}
	h.tracker.update(func(status *EndpointStatus) { status.State = StateRunning })
	h.logger.Info("endpoint connected", "version", h.descriptor.Version.String())

	reads := make(chan readResult)
	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			frame, readErr := connection.ReadFrame()
			select {
			case reads <- readResult{frame: frame, err: readErr}:
			case <-stop:
				return
			}
			if readErr != nil {
				return
			}
		}
	}()
	defer func() {
		close(stop)
		connection.Close()
		<-readerDone
	}()

	for {
		select {
		case result := <-reads:
			if result.err != nil {
				return &ReadError{Endpoint: h.descriptor.Address, Err: result.err}
			}
			h.publish(result.frame)

		case <-h.cursor.Wait():
			if closed := h.forwardRelayed(connection); closed {
				h.logger.Debug("relay closed, handler stopping")
				return nil
			}

		case <-ctx.Done():
			return nil
		}
	}
}

// publish puts one frame read from the transport on the relay.
func (h *ConnectionHandler) publish(frame mavframe.Frame) {
	if !h.descriptor.Version.Accepts(frame.Version) {
		h.tracker.update(func(status *EndpointStatus) { status.FramesSkipped++ })
		h.logger.Debug("dropping frame above endpoint protocol version",
			"frame_version", frame.Version.String(), "message_id", frame.MessageID)
		return
	}
	envelope := relay.NewEnvelope(h.descriptor.Address, frame.Raw, h.clock.Now())
	if err := h.relay.Publish(envelope); err != nil {
		h.logger.Debug("relay rejected frame", "error", err)
		return
	}
	h.tracker.update(func(status *EndpointStatus) { status.FramesIn++ })
}

// forwardRelayed writes up to relayBatchSize ready envelopes to the
// transport. It reports whether the relay has been closed.
func (h *ConnectionHandler) forwardRelayed(connection transport.Conn) (closed bool) {
	for range relayBatchSize {
		envelope, err := h.cursor.TryNext()
		var lag *relay.LagError
		switch {
		case errors.Is(err, relay.ErrEmpty):
			return false
		case errors.Is(err, relay.ErrClosed):
			return true
		case errors.As(err, &lag):
			h.tracker.update(func(status *EndpointStatus) { status.Lagged += lag.Skipped })
			h.logger.Warn("endpoint fell behind relay", "skipped", lag.Skipped)
			continue
		case err != nil:
			h.logger.Error("unexpected relay error", "error", err)
			return false
		}

		// Echo suppression: never send a frame back to the endpoint it
		// came from.
		if envelope.Origin == h.descriptor.Address {
			continue
		}
		if !h.descriptor.Version.Accepts(frameVersion(envelope.Raw)) {
			h.tracker.update(func(status *EndpointStatus) { status.FramesSkipped++ })
			h.logger.Debug("not writing frame above endpoint protocol version", "origin", envelope.Origin)
			continue
		}

		err = connection.WriteFrame(envelope.Raw)
		if errors.Is(err, transport.ErrNoPeers) {
			h.tracker.update(func(status *EndpointStatus) { status.FramesUnsent++ })
			continue
		}
		if err != nil {
			h.tracker.update(func(status *EndpointStatus) { status.WriteFailures++ })
			h.logger.Warn("endpoint write failed",
				"origin", envelope.Origin,
				"error", &WriteError{Endpoint: h.descriptor.Address, Err: err})
			continue
		}
		h.tracker.update(func(status *EndpointStatus) { status.FramesOut++ })
	}
	return false
}

func frameVersion(raw []byte) mavframe.Version {
	if len(raw) > 0 && raw[0] == mavframe.MagicV1 {
		return mavframe.V1
	}
	return mavframe.V2
}
