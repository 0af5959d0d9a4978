// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Mavlink-bridge connects MAVLink endpoints (serial ports, UDP and TCP
// sockets) to each other and to the overlay network. Every frame read
// from one endpoint is written to every other endpoint and published
// under @/<id>/@mavlink/v2/out; frames put under @/<id>/@mavlink/v2/in
// are written to every endpoint.
//
// Configuration comes from a YAML or JSONC file (--config or
// MAVLINK_BRIDGE_CONFIG), with command-line flags overriding individual
// values. With neither, the flags alone configure the bridge.
//
// The process is the bridge's host: it sizes the Go scheduler, opens
// the overlay peer session, starts the bridge through its plugin
// capability, and optionally serves the HTTP admin interface.
package main
