// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Encoder writes a stream of CBOR items.
type Encoder = cbor.Encoder

// Decoder reads a stream of CBOR items.
type Decoder = cbor.Decoder

var (
	linkEncoding cbor.EncMode
	linkDecoding cbor.DecMode
)

func init() {
	var err error
	linkEncoding, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: building link encoder: " + err.Error())
	}
	// Link messages are flat maps of at most a handful of fields.
	linkDecoding, err = cbor.DecOptions{
		MaxNestedLevels:  4,
		MaxArrayElements: 16,
		MaxMapPairs:      32,
	}.DecMode()
	if err != nil {
		panic("codec: building link decoder: " + err.Error())
	}
}

// NewEncoder returns a deterministic stream encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return linkEncoding.NewEncoder(w)
}

// NewDecoder returns a stream decoder reading from r. Unknown map keys
// are ignored.
func NewDecoder(r io.Reader) *Decoder {
	return linkDecoding.NewDecoder(r)
}
