// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package overlay

import (
	"fmt"
	"strings"
)

// Message kinds exchanged on peer links.
const (
	kindHello               = "hello"
	kindDeclareSubscriber   = "declare_subscriber"
	kindUndeclareSubscriber = "undeclare_subscriber"
	kindDeclareToken        = "declare_token"
	kindUndeclareToken      = "undeclare_token"
	kindPut                 = "put"
)

// wireMessage is the single CBOR map shape used for every message on a
// peer link. Fields not relevant to a kind are omitted. Declaration
// numbers are scoped to the sending session and start at 1.
type wireMessage struct {
	Kind        string      `cbor:"kind"`
	ID          string      `cbor:"id,omitempty"`
	Mode        Mode        `cbor:"mode,omitempty"`
	Declaration uint64      `cbor:"declaration,omitempty"`
	Key         string      `cbor:"key,omitempty"`
	Compression Compression `cbor:"compression,omitempty"`
	Size        int         `cbor:"size,omitempty"`
	Payload     []byte      `cbor:"payload,omitempty"`
}

// Mode is a peer session's role on the network.
type Mode string

const (
	// ModePeer listens on its listen locators and connects to its
	// connect locators.
	ModePeer Mode = "peer"

	// ModeClient only connects.
	ModeClient Mode = "client"
)

// ParseMode accepts "peer" or "client". Empty means peer.
func ParseMode(value string) (Mode, error) {
	switch Mode(value) {
	case "", ModePeer:
		return ModePeer, nil
	case ModeClient:
		return ModeClient, nil
	default:
		return "", fmt.Errorf("unknown overlay mode %q (want peer or client)", value)
	}
}

// ParseLocator converts "tcp/host:port" or "host:port" to a TCP
// address.
func ParseLocator(locator string) (string, error) {
	address := locator
	if protocol, rest, found := strings.Cut(locator, "/"); found {
		if protocol != "tcp" {
			return "", fmt.Errorf("locator %q: unsupported protocol %q (only tcp)", locator, protocol)
		}
		address = rest
	}
	if _, _, err := splitHostPort(address); err != nil {
		return "", fmt.Errorf("locator %q: %w", locator, err)
	}
	return address, nil
}
