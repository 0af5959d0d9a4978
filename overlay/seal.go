// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package overlay

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Sealed links encrypt every byte after a salt exchange. Each side
// sends saltSize random bytes; both derive one ChaCha20-Poly1305 key per
// direction from the shared key and the two salts. Records are a
// big-endian uint32 ciphertext length followed by the ciphertext, with
// the nonce being the record counter for that direction.
const (
	saltSize       = 32
	maxRecordPlain = 16 << 10
	minSharedKey   = 16
)

// HKDF info strings, one per direction.
var (
	hkdfInfoFromDialer   = []byte("mavlink-bridge.overlay.link.dialer.v1")
	hkdfInfoFromListener = []byte("mavlink-bridge.overlay.link.listener.v1")
)

// ValidateSharedKey checks that a link key is long enough to be worth
// using. An empty key disables sealing and is valid.
func ValidateSharedKey(key []byte) error {
	if len(key) != 0 && len(key) < minSharedKey {
		return fmt.Errorf("overlay shared key is %d bytes, want at least %d", len(key), minSharedKey)
	}
	return nil
}

// sealedConn encrypts a net.Conn. Read and Write may be used from
// different goroutines; each is serialized on its own.
type sealedConn struct {
	net.Conn

	writeMutex   sync.Mutex
	writeAEAD    cipher.AEAD
	writeCounter uint64

	readMutex   sync.Mutex
	readAEAD    cipher.AEAD
	readCounter uint64
	pending     []byte
}

// sealLink exchanges salts over connection and returns it wrapped in
// per-direction encryption. dialed reports whether this side opened the
// connection. A peer holding a different key is detected on its first
// record, which fails authentication.
func sealLink(connection net.Conn, sharedKey []byte, dialed bool) (net.Conn, error) {
	connection.SetDeadline(time.Now().Add(handshakeTimeout))
	defer connection.SetDeadline(time.Time{})

	var local, remote [saltSize]byte
	if _, err := rand.Read(local[:]); err != nil {
		return nil, fmt.Errorf("generating link salt: %w", err)
	}
	writeDone := make(chan error, 1)
	go func() {
		_, err := connection.Write(local[:])
		writeDone <- err
	}()
	if _, err := io.ReadFull(connection, remote[:]); err != nil {
		return nil, fmt.Errorf("reading link salt: %w", err)
	}
	if err := <-writeDone; err != nil {
		return nil, fmt.Errorf("sending link salt: %w", err)
	}

	salt := make([]byte, 0, 2*saltSize)
	if dialed {
		salt = append(append(salt, local[:]...), remote[:]...)
	} else {
		salt = append(append(salt, remote[:]...), local[:]...)
	}
	fromDialer, err := deriveLinkAEAD(sharedKey, salt, hkdfInfoFromDialer)
	if err != nil {
		return nil, err
	}
	fromListener, err := deriveLinkAEAD(sharedKey, salt, hkdfInfoFromListener)
	if err != nil {
		return nil, err
	}

	sealed := &sealedConn{Conn: connection, writeAEAD: fromListener, readAEAD: fromDialer}
	if dialed {
		sealed.writeAEAD, sealed.readAEAD = fromDialer, fromListener
	}
	return sealed, nil
}

func deriveLinkAEAD(sharedKey, salt, info []byte) (cipher.AEAD, error) {
	reader := hkdf.New(sha256.New, sharedKey, salt, info)
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("deriving link key: %w", err)
	}
	return chacha20poly1305.New(key)
}

func recordNonce(counter uint64) []byte {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint64(nonce[chacha20poly1305.NonceSize-8:], counter)
	return nonce
}

func (c *sealedConn) Write(data []byte) (int, error) {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	written := 0
	for written < len(data) {
		chunk := data[written:min(len(data), written+maxRecordPlain)]
		record := make([]byte, 4, 4+len(chunk)+chacha20poly1305.Overhead)
		record = c.writeAEAD.Seal(record, recordNonce(c.writeCounter), chunk, nil)
		binary.BigEndian.PutUint32(record[:4], uint32(len(record)-4))
		c.writeCounter++
		if _, err := c.Conn.Write(record); err != nil {
			return written, err
		}
		written += len(chunk)
	}
	return written, nil
}

func (c *sealedConn) Read(buffer []byte) (int, error) {
	c.readMutex.Lock()
	defer c.readMutex.Unlock()

	if len(c.pending) == 0 {
		var header [4]byte
		if _, err := io.ReadFull(c.Conn, header[:]); err != nil {
			return 0, err
		}
		length := binary.BigEndian.Uint32(header[:])
		if length < chacha20poly1305.Overhead || length > maxRecordPlain+chacha20poly1305.Overhead {
			return 0, fmt.Errorf("sealed link: record length %d out of range", length)
		}
		ciphertext := make([]byte, length)
		if _, err := io.ReadFull(c.Conn, ciphertext); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		plaintext, err := c.readAEAD.Open(ciphertext[:0], recordNonce(c.readCounter), ciphertext, nil)
		if err != nil {
			return 0, fmt.Errorf("sealed link: %w (is the shared key the same on both peers?)", err)
		}
		c.readCounter++
		c.pending = plaintext
	}

	copied := copy(buffer, c.pending)
	c.pending = c.pending[copied:]
	return copied, nil
}
