// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

type linkMessage struct {
	Kind    string `cbor:"kind"`
	Key     string `cbor:"key,omitempty"`
	Payload []byte `cbor:"payload,omitempty"`
}

func TestEncodingIsDeterministic(t *testing.T) {
	t.Parallel()
	message := map[string]any{"kind": "put", "key": "@/a1/@mavlink/v2/out", "payload": []byte{0xfd, 0x09}}

	var first, second bytes.Buffer
	if err := NewEncoder(&first).Encode(message); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := NewEncoder(&second).Encode(message); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Errorf("map encoding differs between runs: %x vs %x", first.Bytes(), second.Bytes())
	}
}

func TestDecoderReadsMessageSequence(t *testing.T) {
	t.Parallel()
	kinds := []string{"hello", "declare_subscriber", "put"}

	var stream bytes.Buffer
	encoder := NewEncoder(&stream)
	for _, kind := range kinds {
		if err := encoder.Encode(linkMessage{Kind: kind}); err != nil {
			t.Fatalf("Encode(%s): %v", kind, err)
		}
	}

	decoder := NewDecoder(&stream)
	for _, want := range kinds {
		var got linkMessage
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got.Kind != want {
			t.Errorf("Kind = %q, want %q", got.Kind, want)
		}
	}
}

func TestDecoderIgnoresUnknownKeys(t *testing.T) {
	t.Parallel()
	var stream bytes.Buffer
	if err := NewEncoder(&stream).Encode(map[string]any{"kind": "put", "priority": 7}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var message linkMessage
	if err := NewDecoder(&stream).Decode(&message); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if message.Kind != "put" {
		t.Errorf("Kind = %q, want %q", message.Kind, "put")
	}
}
