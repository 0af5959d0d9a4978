// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bureau-foundation/mavlink-bridge/lib/clock"
	"github.com/bureau-foundation/mavlink-bridge/lib/mavframe"
	"github.com/bureau-foundation/mavlink-bridge/overlay"
	"github.com/bureau-foundation/mavlink-bridge/relay"
)

// EgressTask publishes every relayed frame on the overlay.
type EgressTask struct {
	session overlay.Session
	key     string
	cursor  *relay.Cursor
	logger  *slog.Logger
	tracker *taskTracker
}

// NewEgressTask subscribes the task's relay cursor immediately.
func NewEgressTask(session overlay.Session, key string, fanout *relay.Relay, logger *slog.Logger) *EgressTask {
	if logger == nil {
		logger = slog.Default()
	}
	return &EgressTask{
		session: session,
		key:     key,
		cursor:  fanout.Subscribe(),
		logger:  logger.With("task", "egress", "key", key),
		tracker: newTaskTracker("egress", key, StateConnecting),
	}
}

// Status returns a snapshot of the task.
func (t *EgressTask) Status() TaskStatus { return t.tracker.snapshot() }

// Run declares the publisher and publishes until the relay closes or
// ctx is cancelled (nil), or the overlay fails (*OverlayError). Frames
// of every origin are published, including frames that arrived from
// the overlay.
func (t *EgressTask) Run(ctx context.Context) (err error) {
	defer func() { endTask(t.tracker, t.logger, err) }()

	publisher, err := t.session.DeclarePublisher(ctx, t.key)
	if err != nil {
		return &OverlayError{Task: "egress", Operation: "declare publisher", Err: err}
	}
	defer publisher.Close()
	t.tracker.update(func(status *TaskStatus) { status.State = StateRunning })
	t.logger.Info("overlay egress started")

	for {
		envelope, err := t.cursor.Next(ctx)
		var lag *relay.LagError
		switch {
		case errors.As(err, &lag):
			t.tracker.update(func(status *TaskStatus) { status.Dropped += lag.Skipped })
			t.logger.Warn("overlay egress fell behind relay", "skipped", lag.Skipped)
			continue
		case errors.Is(err, relay.ErrClosed), ctx.Err() != nil:
			return nil
		case err != nil:
			return &OverlayError{Task: "egress", Operation: "relay receive", Err: err}
		}

		if err := publisher.Put(ctx, envelope.Raw); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return &OverlayError{Task: "egress", Operation: "put", Err: err}
		}
		t.tracker.update(func(status *TaskStatus) { status.Frames++ })
	}
}

// IngressTask injects frames received from the overlay into the relay.
type IngressTask struct {
	session overlay.Session
	key     string
	relay   *relay.Relay
	clock   clock.Clock
	logger  *slog.Logger
	tracker *taskTracker
}

// NewIngressTask returns a task subscribing to key.
func NewIngressTask(session overlay.Session, key string, fanout *relay.Relay, taskClock clock.Clock, logger *slog.Logger) *IngressTask {
	if taskClock == nil {
		taskClock = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngressTask{
		session: session,
		key:     key,
		relay:   fanout,
		clock:   taskClock,
		logger:  logger.With("task", "ingress", "key", key),
		tracker: newTaskTracker("ingress", key, StateConnecting),
	}
}

// Status returns a snapshot of the task.
func (t *IngressTask) Status() TaskStatus { return t.tracker.snapshot() }

// Run declares the subscriber and injects each received payload that
// is exactly one MAVLink frame. It returns nil when the subscription
// or the relay is closed or ctx is cancelled, and *OverlayError on any
// other overlay failure.
func (t *IngressTask) Run(ctx context.Context) (err error) {
	defer func() { endTask(t.tracker, t.logger, err) }()

	subscriber, err := t.session.DeclareSubscriber(ctx, t.key)
	if err != nil {
		return &OverlayError{Task: "ingress", Operation: "declare subscriber", Err: err}
	}
	defer subscriber.Close()
	t.tracker.update(func(status *TaskStatus) { status.State = StateRunning })
	t.logger.Info("overlay ingress started")

	for {
		sample, err := subscriber.Receive(ctx)
		if err != nil {
			if errors.Is(err, overlay.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return &OverlayError{Task: "ingress", Operation: "receive", Err: err}
		}

		frame, err := mavframe.ParseExact(sample.Payload)
		if err != nil {
			t.tracker.update(func(status *TaskStatus) { status.Dropped++ })
			t.logger.Warn("dropping overlay payload that is not one valid MAVLink frame",
				"sample_key", sample.Key, "length", len(sample.Payload), "error", err)
			continue
		}

		if err := t.relay.Publish(relay.NewEnvelope(OverlayOrigin, frame.Raw, t.clock.Now())); err != nil {
			if errors.Is(err, relay.ErrClosed) {
				return nil
			}
			t.logger.Warn("relay rejected overlay frame", "error", err)
			continue
		}
		t.tracker.update(func(status *TaskStatus) { status.Frames++ })
	}
}

func endTask(tracker *taskTracker, logger *slog.Logger, err error) {
	tracker.update(func(status *TaskStatus) {
		status.State = StateEnded
		if err != nil {
			status.Error = err.Error()
		}
	})
	if err != nil {
		logger.Error("overlay task ended", "error", err)
	} else {
		logger.Info("overlay task stopped")
	}
}
