//go:build forth16

package types

import "encoding/binary"

// Word is the signed machine word.
type Word int16

const (
	WordBits  = 16
	WordBytes = 2

	// Magic marks an initialized image. The 32-bit sentinel truncated to 16 bits.
	Magic = Word(0x5E1F)
)

// PutWord encodes w into b in little-endian order.
func PutWord(b []byte, w Word) {
	binary.LittleEndian.PutUint16(b, uint16(w))
}

// GetWord decodes a little-endian word from b.
func GetWord(b []byte) Word {
	return Word(int16(binary.LittleEndian.Uint16(b)))
}
