// Package types defines the primitive machine types shared by the zforth packages.
//
// The word width is a build-time choice: int32 by default, int16 with the
// forth16 build tag and int64 with the forth64 build tag. Every address,
// instruction and data value in a memory image is one Word.
package types

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/zeebo/blake3"
)

// Size constants for core types.
const (
	FingerprintSize = 32
)

var (
	// ErrInvalidFingerprint is returned when a fingerprint has invalid length.
	ErrInvalidFingerprint = errors.New("invalid fingerprint: must be 32 bytes")
)

// Instruction layout. The opcode tag occupies the low OpcodeBits bits and
// the payload the remaining high bits, whatever the word width.
const (
	OpcodeBits = 4
	OpcodeMask = Word(1<<OpcodeBits - 1)

	// PayloadBits is the width of the payload field.
	PayloadBits = WordBits - OpcodeBits

	// MaxPayload and MinPayload bound the signed payload range.
	MaxPayload = Word(1)<<(PayloadBits-1) - 1
	MinPayload = -MaxPayload - 1
)

// Fingerprint is a blake3 digest of a memory image.
type Fingerprint [FingerprintSize]byte

// FingerprintOf hashes the words of an image in little-endian order.
func FingerprintOf(words []Word) Fingerprint {
	h := blake3.New()
	buf := make([]byte, WordBytes)
	for _, w := range words {
		PutWord(buf, w)
		h.Write(buf)
	}
	var f Fingerprint
	copy(f[:], h.Sum(nil))
	return f
}

// FingerprintFromBase58 parses a base58-encoded fingerprint.
func FingerprintFromBase58(s string) (Fingerprint, error) {
	var f Fingerprint
	data, err := base58.Decode(s)
	if err != nil {
		return f, fmt.Errorf("base58 decode: %w", err)
	}
	if len(data) != FingerprintSize {
		return f, ErrInvalidFingerprint
	}
	copy(f[:], data)
	return f, nil
}

// String returns the base58-encoded representation.
func (f Fingerprint) String() string {
	return base58.Encode(f[:])
}

// IsZero returns true if the fingerprint is all zeros.
func (f Fingerprint) IsZero() bool {
	for _, b := range f {
		if b != 0 {
			return false
		}
	}
	return true
}

// Equals returns true if two fingerprints are equal.
func (f Fingerprint) Equals(other Fingerprint) bool {
	return f == other
}
