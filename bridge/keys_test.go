// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"testing"

	"github.com/bureau-foundation/mavlink-bridge/lib/keyexpr"
)

func TestKeysFor(t *testing.T) {
	t.Parallel()
	keys := KeysFor("6f1c")
	want := LivelinessKeys{
		Root: "@/6f1c/@mavlink",
		Out:  "@/6f1c/@mavlink/v2/out",
		In:   "@/6f1c/@mavlink/v2/in",
	}
	if keys != want {
		t.Errorf("KeysFor = %+v, want %+v", keys, want)
	}
	for _, key := range []string{keys.Root, keys.Out, keys.In} {
		if !keyexpr.Matches(DiscoveryExpr, key) {
			t.Errorf("%s does not match %s", key, DiscoveryExpr)
		}
	}
	if !keyexpr.Matches(EgressExpr, keys.Out) || keyexpr.Matches(EgressExpr, keys.In) {
		t.Errorf("%s should match only the out key", EgressExpr)
	}
}

func TestNodeIdentity(t *testing.T) {
	t.Parallel()
	if got := NodeIdentity("a1b2", ""); got != "a1b2" {
		t.Errorf("no group: got %q, want a1b2", got)
	}
	if got := NodeIdentity("a1b2", "fleet-7.alpha_1"); got != "fleet-7.alpha_1" {
		t.Errorf("plain group: got %q, want it unchanged", got)
	}

	hashed := NodeIdentity("a1b2", "fleet 7/alpha")
	if len(hashed) != 32 || !keyexpr.IsChunk(hashed) {
		t.Errorf("hashed group identity %q is not a 32-digit chunk", hashed)
	}
	if again := NodeIdentity("ffff", "fleet 7/alpha"); again != hashed {
		t.Errorf("hashed identity depends on the session: %q vs %q", again, hashed)
	}
	if other := NodeIdentity("a1b2", "fleet 8/alpha"); other == hashed {
		t.Error("different group identities hashed to the same identity")
	}
}
