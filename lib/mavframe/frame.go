// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mavframe

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	mavlinkframe "github.com/bluenviron/gomavlib/v3/pkg/frame"
)

// Start-of-frame markers.
const (
	MagicV1 byte = mavlinkframe.V1MagicByte
	MagicV2 byte = mavlinkframe.V2MagicByte
)

const (
	headerLengthV1    = 6
	headerLengthV2    = 10
	checksumLength    = 2
	signatureLength   = 13
	supportedIncompat = mavlinkframe.V2FlagSigned

	// MaxFrameLength is the largest possible frame: a signed v2 frame
	// with a 255-byte payload.
	MaxFrameLength = headerLengthV2 + 255 + checksumLength + signatureLength
)

var (
	// ErrFrameTooShort is returned by [Parse] when the input ends before
	// a complete frame. The caller should supply more bytes.
	ErrFrameTooShort = errors.New("mavframe: frame too short")

	// ErrChecksum marks a delimited frame whose CRC does not match its
	// message. Such a frame is line noise or corruption.
	ErrChecksum = errors.New("mavframe: checksum mismatch")
)

// Version is a MAVLink wire protocol version.
type Version uint8

const (
	V1 Version = 1
	V2 Version = 2
)

// ParseVersion accepts "v1", "v2", "1", or "2" (case-insensitive). An
// empty string yields V2.
func ParseVersion(value string) (Version, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "v2", "2":
		return V2, nil
	case "v1", "1":
		return V1, nil
	default:
		return 0, fmt.Errorf("unknown MAVLink protocol version %q (want v1 or v2)", value)
	}
}

func (v Version) String() string {
	switch v {
	case V1:
		return "v1"
	case V2:
		return "v2"
	default:
		return fmt.Sprintf("Version(%d)", uint8(v))
	}
}

// Accepts reports whether an endpoint speaking v may carry a frame of
// version frame. A v2 link also carries v1 frames; a v1 link carries
// only v1.
func (v Version) Accepts(frame Version) bool {
	return frame <= v
}

// Frame is one delimited MAVLink frame. Raw holds the exact bytes from
// the start marker through the checksum and optional signature; the
// other fields are read from the header for logging and filtering.
type Frame struct {
	Version     Version
	Sequence    uint8
	SystemID    uint8
	ComponentID uint8
	MessageID   uint32
	Signed      bool

	// Verified is true when the message ID belongs to the common
	// dialect and the checksum was checked against it.
	Verified bool

	Raw []byte
}

// Parse finds the first valid frame in data.
//
// skipped is the number of leading bytes that cannot belong to a valid
// frame and may be discarded; rejected counts the candidate frames
// among them that were dropped for a bad checksum. A rejected
// candidate only consumes its start marker, so a real frame hidden
// behind noise is still found. On success the frame starts at
// data[skipped] and Raw is a copy of its bytes. When data holds only
// garbage or an incomplete frame, err is [ErrFrameTooShort].
func Parse(data []byte) (frame Frame, skipped int, rejected int, err error) {
	for index := 0; index < len(data); index++ {
		length, ok := frameLength(data[index:])
		if !ok {
			continue
		}
		if length < 0 || index+length > len(data) {
			return Frame{}, index, rejected, ErrFrameTooShort
		}
		frame, err := decode(data[index : index+length])
		if err != nil {
			rejected++
			continue
		}
		return frame, index, rejected, nil
	}
	return Frame{}, len(data), rejected, ErrFrameTooShort
}

// ParseExact parses data as exactly one valid frame with no leading or
// trailing bytes.
func ParseExact(data []byte) (Frame, error) {
	if len(data) == 0 {
		return Frame{}, ErrFrameTooShort
	}
	length, ok := frameLength(data)
	switch {
	case !ok:
		return Frame{}, fmt.Errorf("mavframe: byte 0x%02x does not start a frame", data[0])
	case length < 0 || length > len(data):
		return Frame{}, ErrFrameTooShort
	case length < len(data):
		return Frame{}, fmt.Errorf("mavframe: %d bytes after end of frame", len(data)-length)
	}
	return decode(data)
}

// frameLength reports the total length of the frame starting at
// data[0]. ok is false when data[0] cannot start a frame. A length of
// -1 with ok true means the header itself is not yet complete.
func frameLength(data []byte) (length int, ok bool) {
	switch data[0] {
	case MagicV1:
		if len(data) < 2 {
			return -1, true
		}
		return headerLengthV1 + int(data[1]) + checksumLength, true
	case MagicV2:
		if len(data) < 3 {
			return -1, true
		}
		incompat := data[2]
		if incompat&^supportedIncompat != 0 {
			return 0, false
		}
		length = headerLengthV2 + int(data[1]) + checksumLength
		if incompat&mavlinkframe.V2FlagSigned != 0 {
			length += signatureLength
		}
		return length, true
	default:
		return 0, false
	}
}

// decode runs one delimited candidate through the gomavlib frame
// decoder and checks its checksum when the message is in the common
// dialect. Messages outside the dialect are passed through unverified.
func decode(candidate []byte) (Frame, error) {
	reader, err := mavlinkframe.NewReader(mavlinkframe.ReaderConf{Reader: bytes.NewReader(candidate)})
	if err != nil {
		return Frame{}, err
	}
	decoded, err := reader.Read()
	if err != nil {
		return Frame{}, fmt.Errorf("mavframe: decoding frame: %w", err)
	}

	messageID := decoded.GetMessage().GetID()
	frame := Frame{
		Version:     V1,
		Sequence:    decoded.GetSequenceNumber(),
		SystemID:    decoded.GetSystemID(),
		ComponentID: decoded.GetComponentID(),
		MessageID:   messageID,
	}
	if v2, isV2 := decoded.(*mavlinkframe.V2Frame); isV2 {
		frame.Version = V2
		frame.Signed = v2.IsSigned()
	}

	if crcExtra, known := checksumSeed(messageID); known {
		if sum := decoded.GenerateChecksum(crcExtra); sum != decoded.GetChecksum() {
			return Frame{}, fmt.Errorf("%w: message %d carries %04x, want %04x",
				ErrChecksum, messageID, decoded.GetChecksum(), sum)
		}
		frame.Verified = true
	}

	frame.Raw = bytes.Clone(candidate)
	return frame, nil
}
