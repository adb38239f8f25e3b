//go:build forth64

package types

import "encoding/binary"

// Word is the signed machine word.
type Word int64

const (
	WordBits  = 64
	WordBytes = 8

	// Magic marks an initialized image.
	Magic = Word(0x54175E1F)
)

// PutWord encodes w into b in little-endian order.
func PutWord(b []byte, w Word) {
	binary.LittleEndian.PutUint64(b, uint64(w))
}

// GetWord decodes a little-endian word from b.
func GetWord(b []byte) Word {
	return Word(int64(binary.LittleEndian.Uint64(b)))
}
