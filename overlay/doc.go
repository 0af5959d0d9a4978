// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package overlay is the publish/subscribe network the bridge exposes
// MAVLink traffic on.
//
// Data on the overlay is addressed by hierarchical keys (lib/keyexpr).
// A [Session] is one participant's handle on the network. Through it a
// participant declares:
//
//   - publishers, which put payloads under one concrete key;
//   - subscribers, which receive every payload put under any key
//     matched by a key expression;
//   - liveliness tokens, concrete keys that stay visible to every other
//     participant for as long as the token (or its session) is alive.
//
// Any participant can list the live tokens matching an expression with
// [Session.Liveliness]; this is how bridges are discovered.
//
// Two implementations are provided. [MemoryNetwork] connects sessions
// inside one process and is used by tests. [PeerSession] connects
// processes over TCP: each session listens on and connects to
// locators ("tcp/host:port"), exchanges its declarations with every
// linked peer, and forwards puts to the peers that subscribed to them.
// Routing is one hop: a put reaches the publisher's own subscribers and
// the subscribers of directly linked peers. A session in client mode
// connects but never listens.
//
// Peer links carry CBOR messages (lib/codec). Put payloads may be
// compressed per message with LZ4 or zstd; a payload that does not
// shrink is sent uncompressed. When a link drops, the remote peer's
// tokens and subscriptions disappear with it, and connect locators
// are redialed with exponential backoff.
//
// With a shared key configured, every link is encrypted: the two ends
// exchange random salts and derive one ChaCha20-Poly1305 key per
// direction with HKDF-SHA256. A peer holding a different key fails
// the hello exchange and is never linked.
//
// Subscriber queues are bounded. When a subscriber falls behind, the
// oldest queued sample is dropped; the overlay is best-effort.
package overlay
