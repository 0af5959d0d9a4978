// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mavframe

import (
	"bufio"
	"errors"
	"io"
)

// Reader delimits frames from a byte stream. Not safe for concurrent
// use.
type Reader struct {
	buffered *bufio.Reader
	skipped  uint64
	rejected uint64
}

// NewReader returns a Reader consuming source.
func NewReader(source io.Reader) *Reader {
	return &Reader{buffered: bufio.NewReaderSize(source, 4*MaxFrameLength)}
}

// ReadFrame blocks until one complete, valid frame is available.
// Garbage and frames with a bad checksum are discarded and counted.
// Only errors from the underlying reader are returned, unchanged,
// including io.EOF when the stream ends in the middle of a frame.
func (r *Reader) ReadFrame() (Frame, error) {
	for {
		if r.buffered.Buffered() == 0 {
			if _, err := r.buffered.Peek(1); err != nil {
				return Frame{}, err
			}
		}
		available, _ := r.buffered.Peek(r.buffered.Buffered())

		frame, skipped, rejected, err := Parse(available)
		r.rejected += uint64(rejected)
		if skipped > 0 {
			r.buffered.Discard(skipped)
			r.skipped += uint64(skipped)
		}
		if err == nil {
			r.buffered.Discard(len(frame.Raw))
			return frame, nil
		}
		if !errors.Is(err, ErrFrameTooShort) {
			return Frame{}, err
		}

		// Wait for at least one more byte than is buffered.
		if _, err := r.buffered.Peek(r.buffered.Buffered() + 1); err != nil {
			return Frame{}, err
		}
	}
}

// Skipped returns the number of bytes discarded so far, including the
// start markers of rejected frames.
func (r *Reader) Skipped() uint64 {
	return r.skipped
}

// Rejected returns the number of delimited frames dropped for a bad
// checksum.
func (r *Reader) Rejected() uint64 {
	return r.rejected
}
