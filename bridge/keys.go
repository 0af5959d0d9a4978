// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"encoding/hex"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/mavlink-bridge/lib/keyexpr"
)

const (
	// OverlayOrigin is the origin of frames injected from the overlay.
	// Endpoint addresses always carry a scheme prefix, so it cannot
	// collide with one.
	OverlayOrigin = "overlay"

	// DiscoveryExpr matches every token of every bridge.
	DiscoveryExpr = "@/*/@mavlink/**"

	// EgressExpr matches the outbound publication key of every bridge.
	EgressExpr = "@/*/@mavlink/v2/out"
)

// LivelinessKeys are the keys one bridge is reachable under.
type LivelinessKeys struct {
	// Root is "@/<identity>/@mavlink", the presence token.
	Root string `json:"root"`

	// Out is where relayed frames are published.
	Out string `json:"out"`

	// In is where frames to inject are subscribed.
	In string `json:"in"`
}

// KeysFor returns the keys of the bridge with the given identity.
func KeysFor(identity string) LivelinessKeys {
	root := keyexpr.Join("@", identity, "@mavlink")
	return LivelinessKeys{
		Root: root,
		Out:  keyexpr.Join(root, "v2", "out"),
		In:   keyexpr.Join(root, "v2", "in"),
	}
}

// NodeIdentity picks the identity used in liveliness keys. Without a
// group member identity it is the session identity. A group identity
// made only of letters, digits, '-', '_' and '.' is used as written;
// any other group identity is replaced by a hex BLAKE3 digest so that
// it is always a single valid key chunk.
func NodeIdentity(sessionID, groupMemberIdentity string) string {
	if groupMemberIdentity == "" {
		return sessionID
	}
	if isPlainChunk(groupMemberIdentity) {
		return groupMemberIdentity
	}
	digest := blake3.Sum256([]byte(groupMemberIdentity))
	return hex.EncodeToString(digest[:16])
}

func isPlainChunk(value string) bool {
	if !keyexpr.IsChunk(value) {
		return false
	}
	for _, character := range value {
		switch {
		case character >= 'a' && character <= 'z',
			character >= 'A' && character <= 'Z',
			character >= '0' && character <= '9',
			character == '-', character == '_', character == '.':
		default:
			return false
		}
	}
	return true
}
