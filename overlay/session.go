// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package overlay

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrClosed is returned by operations on a closed session or handle.
var ErrClosed = errors.New("overlay: closed")

// Sample is one payload received by a subscriber.
type Sample struct {
	// Key is the concrete key the payload was put under.
	Key string

	Payload []byte
}

// Session is a participant's handle on the overlay. Safe for concurrent
// use by any number of goroutines, each declaring its own handles.
type Session interface {
	// ID returns the session identity: lowercase hex, unique per
	// running participant.
	ID() string

	// DeclarePublisher returns a publisher for the concrete key.
	DeclarePublisher(ctx context.Context, key string) (Publisher, error)

	// DeclareSubscriber returns a subscriber receiving every put under
	// a key matched by keyExpr.
	DeclareSubscriber(ctx context.Context, keyExpr string) (Subscriber, error)

	// DeclareToken makes key visible to Liveliness queries on every
	// participant until the token or the session is closed.
	DeclareToken(ctx context.Context, key string) (Token, error)

	// Liveliness returns the sorted, de-duplicated keys of all live
	// tokens matching keyExpr, local and remote.
	Liveliness(ctx context.Context, keyExpr string) ([]string, error)

	// Close undeclares everything declared through this session and
	// disconnects it from the network.
	Close() error
}

// Publisher puts payloads under one key.
type Publisher interface {
	Key() string
	Put(ctx context.Context, payload []byte) error
	Close() error
}

// Subscriber receives samples matching its key expression.
type Subscriber interface {
	KeyExpr() string

	// Receive blocks until a sample arrives, the subscriber or its
	// session is closed (ErrClosed), or ctx is done.
	Receive(ctx context.Context) (Sample, error)

	Close() error
}

// Token is a declared liveliness token.
type Token interface {
	Key() string
	Close() error
}

// maxSessionIDLength matches the 16-byte identity space.
const maxSessionIDLength = 32

// NewSessionID returns a random session identity: the hex encoding of
// a version 4 UUID.
func NewSessionID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// ValidateSessionID checks that id is non-empty lowercase hex of at
// most 32 digits.
func ValidateSessionID(id string) error {
	if id == "" || len(id) > maxSessionIDLength {
		return fmt.Errorf("session id %q: want 1 to %d hex digits", id, maxSessionIDLength)
	}
	for _, digit := range id {
		if !(digit >= '0' && digit <= '9' || digit >= 'a' && digit <= 'f') {
			return fmt.Errorf("session id %q: want lowercase hex digits", id)
		}
	}
	return nil
}
