// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package keyexpr

import (
	"fmt"
	"strings"
)

const (
	// SingleWildcard matches exactly one chunk.
	SingleWildcard = "*"

	// MultiWildcard matches zero or more chunks.
	MultiWildcard = "**"
)

// ValidateExpr checks that expr is a well-formed key expression: no
// leading or trailing '/', and no empty chunks.
func ValidateExpr(expr string) error {
	if expr == "" {
		return fmt.Errorf("key expression is empty")
	}
	for index, chunk := range strings.Split(expr, "/") {
		if chunk == "" {
			return fmt.Errorf("key expression %q has an empty chunk at position %d", expr, index)
		}
	}
	return nil
}

// ValidateKey checks that key is a well-formed concrete key: a valid
// expression with no wildcard chunks.
func ValidateKey(key string) error {
	if err := ValidateExpr(key); err != nil {
		return err
	}
	for _, chunk := range strings.Split(key, "/") {
		if chunk == SingleWildcard || chunk == MultiWildcard {
			return fmt.Errorf("key %q contains wildcard chunk %q", key, chunk)
		}
	}
	return nil
}

// IsChunk reports whether s can be used as a single chunk of a
// concrete key.
func IsChunk(s string) bool {
	return s != "" && !strings.Contains(s, "/") && s != SingleWildcard && s != MultiWildcard
}

// Join builds a key from chunks.
func Join(chunks ...string) string {
	return strings.Join(chunks, "/")
}

// Matches reports whether the concrete key is matched by expr.
func Matches(expr, key string) bool {
	return matchChunks(strings.Split(expr, "/"), strings.Split(key, "/"))
}

func matchChunks(pattern, chunks []string) bool {
	for len(pattern) > 0 {
		head := pattern[0]
		if head == MultiWildcard {
			rest := pattern[1:]
			// Collapse consecutive "**" chunks.
			for len(rest) > 0 && rest[0] == MultiWildcard {
				rest = rest[1:]
			}
			if len(rest) == 0 {
				return true
			}
			for skip := 0; skip <= len(chunks); skip++ {
				if matchChunks(rest, chunks[skip:]) {
					return true
				}
			}
			return false
		}
		if len(chunks) == 0 {
			return false
		}
		if head != SingleWildcard && head != chunks[0] {
			return false
		}
		pattern = pattern[1:]
		chunks = chunks[1:]
	}
	return len(chunks) == 0
}
