// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package overlay

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bureau-foundation/mavlink-bridge/lib/keyexpr"
)

// MemoryNetwork connects sessions within one process. Every put is
// delivered synchronously to all matching subscribers of every open
// session, and every session sees every other session's tokens.
type MemoryNetwork struct {
	mutex    sync.Mutex
	nextID   uint64
	sessions map[string]*memorySession
}

// NewMemoryNetwork returns an empty network.
func NewMemoryNetwork() *MemoryNetwork {
	return &MemoryNetwork{sessions: make(map[string]*memorySession)}
}

// Open joins the network with the given identity. An empty id gets a
// random one.
func (n *MemoryNetwork) Open(id string) (Session, error) {
	if id == "" {
		id = NewSessionID()
	}
	if err := ValidateSessionID(id); err != nil {
		return nil, err
	}

	n.mutex.Lock()
	defer n.mutex.Unlock()
	if _, exists := n.sessions[id]; exists {
		return nil, fmt.Errorf("session %s already joined the network", id)
	}
	session := &memorySession{
		network:     n,
		id:          id,
		subscribers: make(map[uint64]*subscriber),
		tokens:      make(map[uint64]string),
	}
	n.sessions[id] = session
	return session, nil
}

// Tokens returns every live token on the network, sorted.
func (n *MemoryNetwork) Tokens() []string {
	keys, _ := n.liveliness(keyexpr.MultiWildcard)
	return keys
}

func (n *MemoryNetwork) liveliness(expr string) ([]string, error) {
	if err := keyexpr.ValidateExpr(expr); err != nil {
		return nil, err
	}
	n.mutex.Lock()
	defer n.mutex.Unlock()

	seen := make(map[string]bool)
	for _, session := range n.sessions {
		for _, key := range session.tokens {
			if keyexpr.Matches(expr, key) {
				seen[key] = true
			}
		}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (n *MemoryNetwork) put(key string, payload []byte) {
	n.mutex.Lock()
	var targets []*subscriber
	for _, session := range n.sessions {
		for _, candidate := range session.subscribers {
			if keyexpr.Matches(candidate.keyExpr, key) {
				targets = append(targets, candidate)
			}
		}
	}
	n.mutex.Unlock()

	for _, target := range targets {
		target.queue.push(Sample{Key: key, Payload: payload})
	}
}

// memorySession state is guarded by the network mutex.
type memorySession struct {
	network     *MemoryNetwork
	id          string
	closed      bool
	subscribers map[uint64]*subscriber
	tokens      map[uint64]string
}

var _ Session = (*memorySession)(nil)

func (s *memorySession) ID() string { return s.id }

func (s *memorySession) declarationID() (uint64, error) {
	if s.closed {
		return 0, ErrClosed
	}
	s.network.nextID++
	return s.network.nextID, nil
}

func (s *memorySession) DeclarePublisher(ctx context.Context, key string) (Publisher, error) {
	if err := keyexpr.ValidateKey(key); err != nil {
		return nil, err
	}
	s.network.mutex.Lock()
	closed := s.closed
	s.network.mutex.Unlock()
	if closed {
		return nil, ErrClosed
	}
	return &publisher{key: key, put: s.put}, nil
}

func (s *memorySession) put(key string, payload []byte) error {
	s.network.mutex.Lock()
	closed := s.closed
	s.network.mutex.Unlock()
	if closed {
		return ErrClosed
	}
	s.network.put(key, payload)
	return nil
}

func (s *memorySession) DeclareSubscriber(ctx context.Context, expr string) (Subscriber, error) {
	if err := keyexpr.ValidateExpr(expr); err != nil {
		return nil, err
	}
	s.network.mutex.Lock()
	defer s.network.mutex.Unlock()
	id, err := s.declarationID()
	if err != nil {
		return nil, err
	}
	declared := newSubscriber(id, expr, func() {
		s.network.mutex.Lock()
		defer s.network.mutex.Unlock()
		delete(s.subscribers, id)
	})
	s.subscribers[id] = declared
	return declared, nil
}

func (s *memorySession) DeclareToken(ctx context.Context, key string) (Token, error) {
	if err := keyexpr.ValidateKey(key); err != nil {
		return nil, err
	}
	s.network.mutex.Lock()
	defer s.network.mutex.Unlock()
	id, err := s.declarationID()
	if err != nil {
		return nil, err
	}
	s.tokens[id] = key
	return &token{key: key, undeclare: func() {
		s.network.mutex.Lock()
		defer s.network.mutex.Unlock()
		delete(s.tokens, id)
	}}, nil
}

func (s *memorySession) Liveliness(ctx context.Context, expr string) ([]string, error) {
	s.network.mutex.Lock()
	closed := s.closed
	s.network.mutex.Unlock()
	if closed {
		return nil, ErrClosed
	}
	return s.network.liveliness(expr)
}

func (s *memorySession) Close() error {
	s.network.mutex.Lock()
	if s.closed {
		s.network.mutex.Unlock()
		return nil
	}
	s.closed = true
	subscribers := s.subscribers
	s.subscribers = make(map[uint64]*subscriber)
	s.tokens = make(map[uint64]string)
	delete(s.network.sessions, s.id)
	s.network.mutex.Unlock()

	for _, declared := range subscribers {
		declared.queue.close()
	}
	return nil
}
