//go:build !forth16 && !forth64

package types

import "encoding/binary"

// Word is the signed machine word.
type Word int32

const (
	WordBits  = 32
	WordBytes = 4

	// Magic marks an initialized image.
	Magic = Word(0x54175E1F)
)

// PutWord encodes w into b in little-endian order.
func PutWord(b []byte, w Word) {
	binary.LittleEndian.PutUint32(b, uint32(w))
}

// GetWord decodes a little-endian word from b.
func GetWord(b []byte) Word {
	return Word(int32(binary.LittleEndian.Uint32(b)))
}
