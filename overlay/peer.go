// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package overlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/bureau-foundation/mavlink-bridge/lib/clock"
	"github.com/bureau-foundation/mavlink-bridge/lib/codec"
	"github.com/bureau-foundation/mavlink-bridge/lib/keyexpr"
	"github.com/bureau-foundation/mavlink-bridge/lib/netutil"
)

const (
	initialRedialBackoff = 1 * time.Second
	maxRedialBackoff     = 30 * time.Second
	handshakeTimeout     = 10 * time.Second
)

// PeerConfig configures a PeerSession.
type PeerConfig struct {
	// ID is the session identity (lowercase hex). Empty generates a
	// random one.
	ID string

	// Mode is ModePeer (default) or ModeClient. Client sessions must
	// not have Listen locators.
	Mode Mode

	// Listen lists locators to accept peer links on.
	Listen []string

	// Connect lists locators to dial and keep redialing.
	Connect []string

	// Compression is applied to outgoing put payloads.
	Compression Compression

	// SharedKey, when set, encrypts every link. All peers must hold the
	// same key. At least 16 bytes.
	SharedKey []byte

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Clock paces redial backoff. Defaults to clock.Real().
	Clock clock.Clock
}

// PeerSession is a Session linked to other processes over TCP.
type PeerSession struct {
	id          string
	mode        Mode
	compression Compression
	sharedKey   []byte
	logger      *slog.Logger
	clock       clock.Clock

	cancel    context.CancelFunc
	listeners []net.Listener
	waitGroup sync.WaitGroup

	mutex       sync.Mutex
	closed      bool
	nextID      uint64
	subscribers map[uint64]*subscriber
	tokens      map[uint64]string
	links       map[string]*link
}

var _ Session = (*PeerSession)(nil)

// OpenPeer binds the listen locators and starts dialing the connect
// locators. It returns once listening; links are established in the
// background.
func OpenPeer(ctx context.Context, config PeerConfig) (*PeerSession, error) {
	id := config.ID
	if id == "" {
		id = NewSessionID()
	}
	if err := ValidateSessionID(id); err != nil {
		return nil, err
	}
	mode := config.Mode
	if mode == "" {
		mode = ModePeer
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	if err := ValidateSharedKey(config.SharedKey); err != nil {
		return nil, err
	}
	if mode == ModeClient && len(config.Listen) > 0 {
		return nil, fmt.Errorf("overlay client mode cannot listen (got %d listen locators)", len(config.Listen))
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sessionClock := config.Clock
	if sessionClock == nil {
		sessionClock = clock.Real()
	}

	connectAddresses := make([]string, 0, len(config.Connect))
	for _, locator := range config.Connect {
		address, err := ParseLocator(locator)
		if err != nil {
			return nil, err
		}
		connectAddresses = append(connectAddresses, address)
	}

	session := &PeerSession{
		id:          id,
		mode:        mode,
		compression: config.Compression,
		sharedKey:   config.SharedKey,
		logger:      logger.With("session", id),
		clock:       sessionClock,
		subscribers: make(map[uint64]*subscriber),
		tokens:      make(map[uint64]string),
		links:       make(map[string]*link),
	}

	var listenConfig net.ListenConfig
	for _, locator := range config.Listen {
		address, err := ParseLocator(locator)
		if err != nil {
			session.closeListeners()
			return nil, err
		}
		listener, err := listenConfig.Listen(ctx, "tcp", address)
		if err != nil {
			session.closeListeners()
			return nil, fmt.Errorf("listening on %s: %w", locator, err)
		}
		session.listeners = append(session.listeners, listener)
	}

	runContext, cancel := context.WithCancel(context.Background())
	session.cancel = cancel

	for _, listener := range session.listeners {
		session.logger.Info("overlay listening", "locator", "tcp/"+listener.Addr().String())
		session.waitGroup.Add(1)
		go session.acceptLoop(runContext, listener)
	}
	for _, address := range connectAddresses {
		session.waitGroup.Add(1)
		go session.connectLoop(runContext, address)
	}
	return session, nil
}

// ID returns the session identity.
func (s *PeerSession) ID() string { return s.id }

// ListenAddrs returns the bound listen addresses.
func (s *PeerSession) ListenAddrs() []net.Addr {
	addresses := make([]net.Addr, 0, len(s.listeners))
	for _, listener := range s.listeners {
		addresses = append(addresses, listener.Addr())
	}
	return addresses
}

// Peers returns the identities of currently linked peers, sorted.
func (s *PeerSession) Peers() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	peers := make([]string, 0, len(s.links))
	for peerID := range s.links {
		peers = append(peers, peerID)
	}
	sort.Strings(peers)
	return peers
}

func (s *PeerSession) acceptLoop(ctx context.Context, listener net.Listener) {
	defer s.waitGroup.Done()
	for {
		connection, err := listener.Accept()
		if err != nil {
			if ctx.Err() == nil && !netutil.IsExpectedCloseError(err) {
				s.logger.Error("overlay accept failed", "error", err)
			}
			return
		}
		s.waitGroup.Add(1)
		go func() {
			defer s.waitGroup.Done()
			if _, err := s.serveLink(ctx, connection, false); err != nil {
				s.logger.Debug("inbound overlay link ended", "remote", connection.RemoteAddr().String(), "error", err)
			}
		}()
	}
}

// connectLoop keeps one outbound link to address alive, redialing with
// exponential backoff. The backoff resets once a link is established.
func (s *PeerSession) connectLoop(ctx context.Context, address string) {
	defer s.waitGroup.Done()
	logger := s.logger.With("locator", "tcp/"+address)
	backoff := initialRedialBackoff

	for {
		var dialer net.Dialer
		connection, err := dialer.DialContext(ctx, "tcp", address)
		if err == nil {
			established, linkErr := s.serveLink(ctx, connection, true)
			if established {
				backoff = initialRedialBackoff
			}
			if linkErr != nil && ctx.Err() == nil {
				logger.Info("overlay link ended", "error", linkErr)
			}
		} else if ctx.Err() == nil {
			logger.Debug("overlay dial failed", "error", err, "retry_in", backoff)
		}

		select {
		case <-s.clock.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff = min(backoff*2, maxRedialBackoff)
	}
}

// serveLink runs the handshake and then the read loop of one link
// until it ends. established reports whether the link got past the
// handshake and was registered.
func (s *PeerSession) serveLink(ctx context.Context, connection net.Conn, dialed bool) (established bool, err error) {
	defer connection.Close()

	stop := context.AfterFunc(ctx, func() { connection.Close() })
	defer stop()

	if len(s.sharedKey) > 0 {
		sealed, err := sealLink(connection, s.sharedKey, dialed)
		if err != nil {
			return false, err
		}
		connection = sealed
	}

	encoder := codec.NewEncoder(connection)
	decoder := codec.NewDecoder(connection)

	hello, err := s.handshake(connection, encoder, decoder)
	if err != nil {
		return false, err
	}

	dialerID := hello.ID
	if dialed {
		dialerID = s.id
	}
	peer := newLink(hello.ID, dialerID, connection)
	if !s.register(peer) {
		return false, fmt.Errorf("redundant link to peer %s", hello.ID)
	}
	defer s.unregister(peer)

	s.logger.Info("overlay peer linked", "peer", peer.peerID, "remote", connection.RemoteAddr().String(), "peer_mode", hello.Mode)
	go peer.writeLoop(encoder)

	err = s.readLoop(peer, decoder)
	if netutil.IsExpectedCloseError(err) {
		err = nil
	}
	s.logger.Info("overlay peer unlinked", "peer", peer.peerID)
	return true, err
}

func (s *PeerSession) handshake(connection net.Conn, encoder *codec.Encoder, decoder *codec.Decoder) (wireMessage, error) {
	connection.SetDeadline(time.Now().Add(handshakeTimeout))
	defer connection.SetDeadline(time.Time{})

	if err := encoder.Encode(wireMessage{Kind: kindHello, ID: s.id, Mode: s.mode}); err != nil {
		return wireMessage{}, fmt.Errorf("sending hello: %w", err)
	}
	var hello wireMessage
	if err := decoder.Decode(&hello); err != nil {
		return wireMessage{}, fmt.Errorf("reading hello: %w", err)
	}
	if hello.Kind != kindHello {
		return wireMessage{}, fmt.Errorf("expected hello, got %q", hello.Kind)
	}
	if err := ValidateSessionID(hello.ID); err != nil {
		return wireMessage{}, fmt.Errorf("peer hello: %w", err)
	}
	if hello.ID == s.id {
		return wireMessage{}, errors.New("connected to own session")
	}
	return hello, nil
}

// register installs peer and queues this session's declarations to
// it. Queueing happens under the session mutex so that no declaration
// or undeclaration made concurrently can be reordered around the
// snapshot.
func (s *PeerSession) register(peer *link) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return false
	}
	if existing, ok := s.links[peer.peerID]; ok {
		if !peer.preferredBy(s.id) || existing.preferredBy(s.id) {
			return false
		}
		existing.close()
	}
	s.links[peer.peerID] = peer

	for id, declared := range s.subscribers {
		peer.sendControl(wireMessage{Kind: kindDeclareSubscriber, Declaration: id, Key: declared.keyExpr})
	}
	for id, key := range s.tokens {
		peer.sendControl(wireMessage{Kind: kindDeclareToken, Declaration: id, Key: key})
	}
	return true
}

func (s *PeerSession) unregister(peer *link) {
	peer.close()
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.links[peer.peerID] == peer {
		delete(s.links, peer.peerID)
	}
}

func (s *PeerSession) readLoop(peer *link, decoder *codec.Decoder) error {
	logger := s.logger.With("peer", peer.peerID)
	for {
		var message wireMessage
		if err := decoder.Decode(&message); err != nil {
			return err
		}

		switch message.Kind {
		case kindDeclareSubscriber:
			if err := keyexpr.ValidateExpr(message.Key); err != nil {
				logger.Warn("ignoring invalid subscription from peer", "error", err)
				continue
			}
			s.mutex.Lock()
			peer.subscriptions[message.Declaration] = message.Key
			s.mutex.Unlock()

		case kindUndeclareSubscriber:
			s.mutex.Lock()
			delete(peer.subscriptions, message.Declaration)
			s.mutex.Unlock()

		case kindDeclareToken:
			if err := keyexpr.ValidateKey(message.Key); err != nil {
				logger.Warn("ignoring invalid token from peer", "error", err)
				continue
			}
			s.mutex.Lock()
			peer.tokens[message.Declaration] = message.Key
			s.mutex.Unlock()

		case kindUndeclareToken:
			s.mutex.Lock()
			delete(peer.tokens, message.Declaration)
			s.mutex.Unlock()

		case kindPut:
			payload, err := decompress(message.Payload, message.Compression, message.Size)
			if err != nil {
				logger.Warn("dropping undecodable put", "key", message.Key, "error", err)
				continue
			}
			s.deliverLocal(Sample{Key: message.Key, Payload: payload})

		default:
			logger.Debug("ignoring unknown overlay message", "kind", message.Kind)
		}
	}
}

func (s *PeerSession) deliverLocal(sample Sample) {
	s.mutex.Lock()
	var targets []*subscriber
	for _, declared := range s.subscribers {
		if keyexpr.Matches(declared.keyExpr, sample.Key) {
			targets = append(targets, declared)
		}
	}
	s.mutex.Unlock()

	for _, target := range targets {
		target.queue.push(sample)
	}
}

// put delivers payload to local subscribers and to every linked peer
// with a matching subscription.
func (s *PeerSession) put(key string, payload []byte) error {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return ErrClosed
	}
	var peers []*link
	for _, peer := range s.links {
		for _, expr := range peer.subscriptions {
			if keyexpr.Matches(expr, key) {
				peers = append(peers, peer)
				break
			}
		}
	}
	s.mutex.Unlock()

	s.deliverLocal(Sample{Key: key, Payload: payload})

	if len(peers) == 0 {
		return nil
	}
	data, used := compress(payload, s.compression)
	message := wireMessage{Kind: kindPut, Key: key, Compression: used, Size: len(payload), Payload: data}
	for _, peer := range peers {
		peer.sendData(message)
	}
	return nil
}

// DeclarePublisher returns a publisher for key.
func (s *PeerSession) DeclarePublisher(ctx context.Context, key string) (Publisher, error) {
	if err := keyexpr.ValidateKey(key); err != nil {
		return nil, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return &publisher{key: key, put: s.put}, nil
}

// DeclareSubscriber registers a subscriber locally and with every
// linked peer.
func (s *PeerSession) DeclareSubscriber(ctx context.Context, expr string) (Subscriber, error) {
	if err := keyexpr.ValidateExpr(expr); err != nil {
		return nil, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	s.nextID++
	id := s.nextID

	declared := newSubscriber(id, expr, func() {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		if _, ok := s.subscribers[id]; !ok {
			return
		}
		delete(s.subscribers, id)
		s.broadcastLocked(wireMessage{Kind: kindUndeclareSubscriber, Declaration: id})
	})
	s.subscribers[id] = declared
	s.broadcastLocked(wireMessage{Kind: kindDeclareSubscriber, Declaration: id, Key: expr})
	return declared, nil
}

// DeclareToken registers a liveliness token locally and with every
// linked peer.
func (s *PeerSession) DeclareToken(ctx context.Context, key string) (Token, error) {
	if err := keyexpr.ValidateKey(key); err != nil {
		return nil, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	s.nextID++
	id := s.nextID

	s.tokens[id] = key
	s.broadcastLocked(wireMessage{Kind: kindDeclareToken, Declaration: id, Key: key})
	return &token{key: key, undeclare: func() {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		if _, ok := s.tokens[id]; !ok {
			return
		}
		delete(s.tokens, id)
		s.broadcastLocked(wireMessage{Kind: kindUndeclareToken, Declaration: id})
	}}, nil
}

func (s *PeerSession) broadcastLocked(message wireMessage) {
	for _, peer := range s.links {
		peer.sendControl(message)
	}
}

// Liveliness lists local and remote tokens matching expr.
func (s *PeerSession) Liveliness(ctx context.Context, expr string) ([]string, error) {
	if err := keyexpr.ValidateExpr(expr); err != nil {
		return nil, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	seen := make(map[string]bool)
	collect := func(tokens map[uint64]string) {
		for _, key := range tokens {
			if keyexpr.Matches(expr, key) {
				seen[key] = true
			}
		}
	}
	collect(s.tokens)
	for _, peer := range s.links {
		collect(peer.tokens)
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close drops every link, stops listening and redialing, and closes
// all subscribers. Peers see this session's tokens disappear.
func (s *PeerSession) Close() error {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return nil
	}
	s.closed = true
	links := make([]*link, 0, len(s.links))
	for _, peer := range s.links {
		links = append(links, peer)
	}
	subscribers := s.subscribers
	s.subscribers = make(map[uint64]*subscriber)
	s.tokens = make(map[uint64]string)
	s.mutex.Unlock()

	s.cancel()
	s.closeListeners()
	for _, peer := range links {
		peer.close()
	}
	for _, declared := range subscribers {
		declared.queue.close()
	}
	s.waitGroup.Wait()
	return nil
}

func (s *PeerSession) closeListeners() {
	for _, listener := range s.listeners {
		listener.Close()
	}
}
