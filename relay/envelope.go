// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import "time"

// Envelope is one frame crossing the relay. Envelopes are shared by
// every cursor and must not be mutated after publication; Raw in
// particular is written to transports and the overlay exactly as
// captured.
type Envelope struct {
	// Origin names the producer: the endpoint address for frames read
	// from a transport, or the overlay sentinel for frames received
	// from the overlay. Never empty.
	Origin string

	// Raw is the complete encoded frame.
	Raw []byte

	// Timestamp is the capture time in microseconds since the Unix
	// epoch.
	Timestamp int64
}

// NewEnvelope stamps raw with the capture time now.
func NewEnvelope(origin string, raw []byte, now time.Time) Envelope {
	return Envelope{Origin: origin, Raw: raw, Timestamp: now.UnixMicro()}
}

// Time returns Timestamp as a time.Time.
func (e Envelope) Time() time.Time {
	return time.UnixMicro(e.Timestamp)
}
