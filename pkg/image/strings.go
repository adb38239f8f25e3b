package image

import (
	"fmt"

	"github.com/fortiblox/zforth/internal/types"
)

// StringTag is the opcode tag of a string header word. A string occupies
// length+1 words: the header (length<<4 | StringTag) and one word per byte.
const StringTag = Word(4)

// StringHeader returns the header word for a string of n bytes.
func StringHeader(n Word) Word {
	return n<<types.OpcodeBits | StringTag
}

// StringLen decodes the length from a header word.
func StringLen(h Word) (Word, bool) {
	if h&types.OpcodeMask != StringTag || h < 0 {
		return 0, false
	}
	return h >> types.OpcodeBits, true
}

// ReadString decodes the string at addr into buf and returns the filled
// prefix of buf.
func (m *Image) ReadString(addr Word, buf []byte) ([]byte, error) {
	h, err := m.Peek(addr)
	if err != nil {
		return nil, err
	}
	n, ok := StringLen(h)
	if !ok {
		return nil, fmt.Errorf("%w: word 0x%x at %d", ErrBadStringHeader, h, addr)
	}
	if int64(n) > int64(len(buf)) {
		return nil, fmt.Errorf("%w: length %d exceeds buffer of %d", ErrBadStringHeader, n, len(buf))
	}
	for i := Word(0); i < n; i++ {
		c, err := m.Peek(addr + 1 + i)
		if err != nil {
			return nil, err
		}
		buf[i] = byte(c)
	}
	return buf[:n], nil
}

// String decodes the string at addr into a fresh slice.
func (m *Image) String(addr Word) ([]byte, error) {
	h, err := m.Peek(addr)
	if err != nil {
		return nil, err
	}
	n, ok := StringLen(h)
	if !ok {
		return nil, fmt.Errorf("%w: word 0x%x at %d", ErrBadStringHeader, h, addr)
	}
	return m.ReadString(addr, make([]byte, n))
}

// WriteString writes s at addr and returns the address just past it.
func (m *Image) WriteString(addr Word, s []byte) (Word, error) {
	if int64(len(s)) > int64(types.MaxPayload) {
		return 0, fmt.Errorf("%w: length %d does not fit the header", ErrBadStringHeader, len(s))
	}
	n := Word(len(s))
	if err := m.Poke(addr, StringHeader(n)); err != nil {
		return 0, err
	}
	for i, c := range s {
		if err := m.Poke(addr+1+Word(i), Word(c)); err != nil {
			return 0, err
		}
	}
	return addr + n + 1, nil
}

// AllocString bump-allocates s on the heap and returns its address.
func (m *Image) AllocString(s []byte) (Word, error) {
	heap := m.Region(RegionHeap)
	if int64(heap.Next)+int64(len(s))+1 > int64(heap.End) {
		return 0, fmt.Errorf("%w: heap has %d words free, need %d", ErrRegionExhausted, heap.Free(), len(s)+1)
	}
	next, err := m.WriteString(heap.Next, s)
	if err != nil {
		return 0, err
	}
	if err := m.SetNext(RegionHeap, next); err != nil {
		return 0, err
	}
	return heap.Next, nil
}
