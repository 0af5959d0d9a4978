// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec configures the CBOR stream used on overlay peer links.
//
// Every message on a link is one CBOR map. Encoding uses Core
// Deterministic Encoding (RFC 8949 §4.2). Decoding ignores unknown
// keys, so a newer peer may add fields, and bounds map and array sizes.
package codec
