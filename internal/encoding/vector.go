// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

package encoding

import (
	"encoding/hex"
	"fmt"
)

const wordBits = 64

// Vector is a fixed-width boolean characteristic vector. Width and bit
// layout are fixed by the schema that produced it; the schema version
// travels with the vector so mismatched comparisons can be rejected.
type Vector struct {
	version int
	length  int
	words   []uint64
}

func newVector(version, length int) *Vector {
	return &Vector{
		version: version,
		length:  length,
		words:   make([]uint64, (length+wordBits-1)/wordBits),
	}
}

// SchemaVersion returns the schema version the vector was encoded under.
func (v *Vector) SchemaVersion() int { return v.version }

// Len returns the fixed vector width in bits.
func (v *Vector) Len() int { return v.length }

// Set marks the predicate at position i as true.
func (v *Vector) Set(i int) {
	if i < 0 || i >= v.length {
		return
	}
	v.words[i/wordBits] |= 1 << (i % wordBits)
}

// Bit reports whether the predicate at position i is true. Positions
// outside the vector are false.
func (v *Vector) Bit(i int) bool {
	if i < 0 || i >= v.length {
		return false
	}
	return v.words[i/wordBits]&(1<<(i%wordBits)) != 0
}

// PopCount returns the number of true predicates.
func (v *Vector) PopCount() int {
	count := 0
	for i := 0; i < v.length; i++ {
		if v.Bit(i) {
			count++
		}
	}
	return count
}

// Equal reports whether two vectors have identical version, width, and
// bits.
func (v *Vector) Equal(other *Vector) bool {
	if other == nil || v.version != other.version || v.length != other.length {
		return false
	}
	for i := range v.words {
		if v.words[i] != other.words[i] {
			return false
		}
	}
	return true
}

// Encode serializes the bit payload as lowercase hex for storage. The
// version and width are stored alongside the payload, not inside it.
func (v *Vector) Encode() string {
	buf := make([]byte, len(v.words)*8)
	for i, w := range v.words {
		for b := 0; b < 8; b++ {
			buf[i*8+b] = byte(w >> (8 * b))
		}
	}
	return hex.EncodeToString(buf)
}

// DecodeVector rebuilds a vector from its stored version, width, and
// hex payload.
func DecodeVector(version, length int, payload string) (*Vector, error) {
	if length <= 0 {
		return nil, fmt.Errorf("invalid vector length %d", length)
	}
	raw, err := hex.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode vector payload: %w", err)
	}
	v := newVector(version, length)
	if len(raw) != len(v.words)*8 {
		return nil, fmt.Errorf("vector payload is %d bytes, expected %d for width %d", len(raw), len(v.words)*8, length)
	}
	for i := range v.words {
		var w uint64
		for b := 0; b < 8; b++ {
			w |= uint64(raw[i*8+b]) << (8 * b)
		}
		v.words[i] = w
	}
	return v, nil
}
