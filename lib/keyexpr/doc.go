// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package keyexpr implements the hierarchical key expressions used to
// address data on the overlay.
//
// A key is a '/'-separated list of non-empty chunks, for example
// "@/4f1c.../@mavlink/v2/out". A key expression may additionally
// contain two wildcard chunks:
//
//   - "*" matches exactly one chunk.
//   - "**" matches zero or more chunks.
//
// Wildcards are whole chunks; "v*" is an ordinary chunk with no special
// meaning. Concrete keys (no wildcards) are used for publications and
// liveliness tokens; expressions are used for subscriptions and
// liveliness queries.
package keyexpr
