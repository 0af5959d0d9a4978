// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package relay is the bounded fan-out channel that connects every
// frame producer in a bridge to every frame consumer.
//
// Producers (connection handlers and the overlay ingress task) call
// [Relay.Publish], which never blocks. Each consumer (each connection
// handler and the overlay egress task) owns a [Cursor] obtained from
// [Relay.Subscribe] and reads envelopes in publish order.
//
// The relay holds at most its capacity of envelopes. Publishing into a
// full relay evicts the oldest envelope for every cursor at once:
// recency matters more than completeness for live telemetry, and an
// old heartbeat is worthless once a newer one exists. A cursor that
// had not yet read an evicted envelope gets a [*LagError] carrying the
// number of envelopes it missed, and its next read resumes at the
// oldest envelope still held. Lag is never fatal.
//
// After [Relay.Close], cursors drain whatever is still held and then
// return [ErrClosed].
package relay
