// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mavframe locates and validates MAVLink v1 and v2 frames in a
// byte stream.
//
// The bridge carries frames as opaque bytes: a frame read from one
// endpoint is written to other endpoints and to the overlay exactly as
// it arrived. Frame boundaries come from the header:
//
//	v1: 0xFE len seq sys comp msgid payload[len] crc[2]
//	v2: 0xFD len incompat compat seq sys comp msgid[3] payload[len] crc[2] [signature[13]]
//
// Each delimited candidate is decoded by the gomavlib frame reader
// without a dialect, so the payload stays raw. When the message ID is
// in the common dialect, the X.25 checksum is recomputed with the
// message's CRC_EXTRA and a mismatch rejects the candidate. A rejected
// candidate consumes only its start marker, so a frame that follows
// line noise is still found. Messages outside the common dialect
// cannot be checked and pass through with Verified unset.
//
// Bytes that do not start a frame are skipped and counted. A v2 frame
// whose incompatibility flags carry bits other than the signing flag
// cannot be delimited safely and is treated as garbage. Signatures are
// carried but not verified.
//
// [MessageName] resolves message IDs of the common dialect to their
// MAVLink names for logging and for the overlay tap tool.
package mavframe
