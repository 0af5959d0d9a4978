// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package overlay

import (
	"bytes"
	"context"
	"slices"
	"testing"
	"time"
)

// eventually polls condition until it holds or five seconds pass.
// Link establishment happens on background goroutines with no event to
// wait on from outside the session.
func eventually(t *testing.T, description string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", description)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func hasToken(t *testing.T, session Session, expr, key string) bool {
	t.Helper()
	keys, err := session.Liveliness(context.Background(), expr)
	if err != nil {
		t.Fatalf("Liveliness: %v", err)
	}
	return slices.Contains(keys, key)
}

func openLinkedPair(t *testing.T, compression Compression) (*PeerSession, *PeerSession) {
	t.Helper()
	ctx := context.Background()
	listener, err := OpenPeer(ctx, PeerConfig{
		ID:          "a1",
		Listen:      []string{"tcp/127.0.0.1:0"},
		Compression: compression,
	})
	if err != nil {
		t.Fatalf("OpenPeer listener: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	client, err := OpenPeer(ctx, PeerConfig{
		ID:          "b2",
		Mode:        ModeClient,
		Connect:     []string{"tcp/" + listener.ListenAddrs()[0].String()},
		Compression: compression,
	})
	if err != nil {
		t.Fatalf("OpenPeer client: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	eventually(t, "peers to link", func() bool {
		return len(listener.Peers()) == 1 && len(client.Peers()) == 1
	})
	return listener, client
}

func TestPeerPutReachesRemoteSubscriber(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		bridge, tap := openLinkedPair(t, compression)

		subscriber, err := tap.DeclareSubscriber(ctx, "@/*/@mavlink/v2/out")
		if err != nil {
			t.Fatalf("DeclareSubscriber: %v", err)
		}
		marker, err := tap.DeclareToken(ctx, "@/b2/@tap")
		if err != nil {
			t.Fatalf("DeclareToken: %v", err)
		}
		// Declarations travel in order, so once the token is visible the
		// subscription is too.
		eventually(t, "tap declarations to reach the bridge", func() bool {
			return hasToken(t, bridge, "@/*/@tap", "@/b2/@tap")
		})

		publisher, err := bridge.DeclarePublisher(ctx, "@/a1/@mavlink/v2/out")
		if err != nil {
			t.Fatalf("DeclarePublisher: %v", err)
		}
		payload := bytes.Repeat([]byte{0xFD, 0x09, 0x00}, 40)
		if err := publisher.Put(ctx, payload); err != nil {
			t.Fatalf("Put: %v", err)
		}

		sample := receiveWithin(t, subscriber, 5*time.Second)
		if sample.Key != "@/a1/@mavlink/v2/out" || !bytes.Equal(sample.Payload, payload) {
			t.Errorf("%s: received key %q payload %d bytes", compression, sample.Key, len(sample.Payload))
		}
		marker.Close()
	}
}

func TestPeerTokensDisappearWhenSessionCloses(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	bridge, tap := openLinkedPair(t, CompressionNone)

	if _, err := bridge.DeclareToken(ctx, "@/a1/@mavlink"); err != nil {
		t.Fatalf("DeclareToken: %v", err)
	}
	eventually(t, "bridge token on tap", func() bool {
		return hasToken(t, tap, "@/*/@mavlink", "@/a1/@mavlink")
	})

	token, err := tap.DeclareToken(ctx, "@/b2/@mavlink")
	if err != nil {
		t.Fatalf("DeclareToken: %v", err)
	}
	eventually(t, "tap token on bridge", func() bool {
		return hasToken(t, bridge, "@/*/@mavlink", "@/b2/@mavlink")
	})
	token.Close()
	eventually(t, "undeclared token to vanish", func() bool {
		return !hasToken(t, bridge, "@/*/@mavlink", "@/b2/@mavlink")
	})

	if _, err := tap.DeclareToken(ctx, "@/b2/@mavlink"); err != nil {
		t.Fatalf("DeclareToken: %v", err)
	}
	eventually(t, "redeclared token on bridge", func() bool {
		return hasToken(t, bridge, "@/*/@mavlink", "@/b2/@mavlink")
	})
	tap.Close()
	eventually(t, "closed session's token to vanish", func() bool {
		return !hasToken(t, bridge, "@/*/@mavlink", "@/b2/@mavlink")
	})
}

func TestOpenPeerValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	if _, err := OpenPeer(ctx, PeerConfig{Mode: ModeClient, Listen: []string{"tcp/127.0.0.1:0"}}); err == nil {
		t.Error("client mode accepted a listen locator")
	}
	if _, err := OpenPeer(ctx, PeerConfig{Connect: []string{"udp/127.0.0.1:7447"}}); err == nil {
		t.Error("OpenPeer accepted a udp locator")
	}
	if _, err := OpenPeer(ctx, PeerConfig{ID: "Not-Hex"}); err == nil {
		t.Error("OpenPeer accepted a non-hex id")
	}
}

func TestParseLocator(t *testing.T) {
	t.Parallel()
	for locator, want := range map[string]string{
		"tcp/127.0.0.1:7447": "127.0.0.1:7447",
		"localhost:7447":     "localhost:7447",
		"tcp/[::1]:7447":     "[::1]:7447",
	} {
		got, err := ParseLocator(locator)
		if err != nil || got != want {
			t.Errorf("ParseLocator(%q) = %q, %v; want %q", locator, got, err, want)
		}
	}
	for _, bad := range []string{"quic/127.0.0.1:7447", "tcp/nohost", "tcp/host:port"} {
		if _, err := ParseLocator(bad); err == nil {
			t.Errorf("ParseLocator(%q) succeeded", bad)
		}
	}
}

func TestRedundantLinksKeepSmallerDialer(t *testing.T) {
	t.Parallel()
	aDialed := newLink("b2", "a1", nil)
	bDialed := newLink("b2", "b2", nil)
	if !aDialed.preferredBy("a1") || bDialed.preferredBy("a1") {
		t.Error("session a1 must prefer the link it dialed")
	}
	fromB := newLink("a1", "a1", nil)
	if !fromB.preferredBy("b2") {
		t.Error("session b2 must prefer the link dialed by a1")
	}
}
