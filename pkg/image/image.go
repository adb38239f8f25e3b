// Package image implements the zforth memory image.
//
// An image is one flat array of words. Its first HeaderSize words describe
// the layout of everything else:
//
//	0   magic        6  rsp        9  index.start  12 code.start  15 heap.start
//	1   version      7  dsp       10  index.next   13 code.next   16 heap.next
//	2   size         8  asp       11  index.end    14 code.end    17 heap.end
//	3   hsize
//	4   reserved    18  return.start  19 return.end
//	5   pc          20  data.start    21 data.end
//	                22  asm.start     23 asm.end
//
// The index region holds two-word symbol entries, the code region holds
// instructions and the heap hosts the three stacks followed by strings.
// All other packages operate on the image exclusively through Peek, Poke
// and the stack primitives.
package image

import (
	"fmt"

	"github.com/fortiblox/zforth/internal/types"
)

// Word is the machine word of the image.
type Word = types.Word

// Layout constants.
const (
	// Version is the header format version written by Initialize.
	Version = Word(1)

	// HeaderSize is the number of header words.
	HeaderSize = 24

	// ReservedWords is the slack required on top of the index and code
	// capacities. It covers the header and the seeded stacks.
	ReservedWords = 1024

	// StackWords is the capacity of each of the three stacks.
	StackWords = 100
)

// Header word offsets.
const (
	hdrMagic = iota
	hdrVersion
	hdrSize
	hdrHSize
	hdrReserved
	hdrPC
	hdrRSP
	hdrDSP
	hdrASP
	hdrIndexStart
	hdrIndexNext
	hdrIndexEnd
	hdrCodeStart
	hdrCodeNext
	hdrCodeEnd
	hdrHeapStart
	hdrHeapNext
	hdrHeapEnd
	hdrRSStart
	hdrRSEnd
	hdrDSStart
	hdrDSEnd
	hdrASStart
	hdrASEnd
)

// RegionID selects one of the growing regions.
type RegionID int

// Regions.
const (
	RegionIndex RegionID = iota
	RegionCode
	RegionHeap
)

var regionNames = [...]string{"index", "code", "heap"}

func (r RegionID) String() string {
	if r < 0 || int(r) >= len(regionNames) {
		return fmt.Sprintf("region(%d)", int(r))
	}
	return regionNames[r]
}

func (r RegionID) base() int {
	return hdrIndexStart + 3*int(r)
}

// Region is a {start, next, end} triple.
type Region struct {
	Start Word
	Next  Word
	End   Word
}

// Contains reports whether addr lies in [Start, End).
func (r Region) Contains(addr Word) bool {
	return addr >= r.Start && addr < r.End
}

// Free returns the number of words between Next and End.
func (r Region) Free() Word {
	return r.End - r.Next
}

// Header is a decoded copy of the header words.
type Header struct {
	Magic   Word
	Version Word
	Size    Word
	HSize   Word
	PC      Word
	Index   Region
	Code    Region
	Heap    Region
	Return  Stack
	Data    Stack
	Asm     Stack
}

// Image is a memory image backed by caller-owned storage.
type Image struct {
	words []Word
}

// New wraps words as an image. The slice is used in place and never grown.
// Call Initialize before using a fresh slice.
func New(words []Word) *Image {
	return &Image{words: words}
}

// Alloc allocates storage for size words and initializes it.
func Alloc(cfg Config) (*Image, error) {
	if cfg.Size < ReservedWords {
		return nil, fmt.Errorf("%w: size %d", ErrImageTooSmall, cfg.Size)
	}
	m := New(make([]Word, cfg.Size))
	if err := m.Initialize(cfg.Size, cfg.IndexCapacity, cfg.CodeCapacity); err != nil {
		return nil, err
	}
	return m, nil
}

// Initialize zeroes the first size words and lays out the header for an
// index table of indexCap entries and a code segment of codeCap words.
func (m *Image) Initialize(size, indexCap, codeCap Word) error {
	if indexCap < 0 || codeCap < 0 {
		return fmt.Errorf("%w: negative capacity (index %d, code %d)", ErrImageTooSmall, indexCap, codeCap)
	}
	need := int64(ReservedWords) + 2*int64(indexCap) + int64(codeCap)
	if int64(size) < need {
		return fmt.Errorf("%w: size %d, need at least %d", ErrImageTooSmall, size, need)
	}
	if int(size) > len(m.words) {
		return fmt.Errorf("%w: size %d exceeds storage of %d words", ErrImageTooSmall, size, len(m.words))
	}

	w := m.words[:size]
	for i := range w {
		w[i] = 0
	}

	w[hdrMagic] = types.Magic
	w[hdrVersion] = Version
	w[hdrSize] = size
	w[hdrHSize] = HeaderSize
	w[hdrPC] = -1

	w[hdrIndexStart] = HeaderSize
	w[hdrIndexNext] = HeaderSize
	w[hdrIndexEnd] = HeaderSize + 2*indexCap

	w[hdrCodeStart] = w[hdrIndexEnd]
	w[hdrCodeNext] = w[hdrCodeStart]
	w[hdrCodeEnd] = w[hdrCodeStart] + codeCap

	w[hdrHeapStart] = w[hdrCodeEnd]
	w[hdrHeapNext] = w[hdrHeapStart]
	w[hdrHeapEnd] = size

	// Each stack gets a private StackWords slice carved off the heap.
	for _, id := range []StackID{StackReturn, StackData, StackAsm} {
		start := w[hdrHeapNext]
		w[id.bounds()] = start
		w[id.bounds()+1] = start + StackWords
		w[id.top()] = start
		w[hdrHeapNext] += StackWords
	}
	return nil
}

// Validate checks the magic constant and the layout invariants.
func (m *Image) Validate() error {
	if len(m.words) < HeaderSize {
		return fmt.Errorf("%w: %d words cannot hold a header", ErrInvalidImage, len(m.words))
	}
	h := m.Header()
	switch {
	case h.Magic != types.Magic:
		return fmt.Errorf("%w: bad magic 0x%x", ErrInvalidImage, h.Magic)
	case h.Version != Version:
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidImage, h.Version)
	case h.HSize != HeaderSize:
		return fmt.Errorf("%w: header size %d", ErrInvalidImage, h.HSize)
	case h.Size < HeaderSize || int(h.Size) > len(m.words):
		return fmt.Errorf("%w: size %d with storage of %d words", ErrInvalidImage, h.Size, len(m.words))
	case h.Index.Start != h.HSize:
		return fmt.Errorf("%w: index starts at %d", ErrInvalidImage, h.Index.Start)
	case h.Index.End != h.Code.Start:
		return fmt.Errorf("%w: index.end %d != code.start %d", ErrInvalidImage, h.Index.End, h.Code.Start)
	case h.Code.End != h.Heap.Start:
		return fmt.Errorf("%w: code.end %d != heap.start %d", ErrInvalidImage, h.Code.End, h.Heap.Start)
	case h.Heap.End != h.Size:
		return fmt.Errorf("%w: heap.end %d != size %d", ErrInvalidImage, h.Heap.End, h.Size)
	}
	for id, r := range []Region{h.Index, h.Code, h.Heap} {
		if r.Start > r.Next || r.Next > r.End {
			return fmt.Errorf("%w: %s region {%d %d %d}", ErrInvalidImage, RegionID(id), r.Start, r.Next, r.End)
		}
	}
	for _, id := range []StackID{StackReturn, StackData, StackAsm} {
		s := m.Stack(id)
		if s.Start > s.End || s.Start < h.Heap.Start || s.End > h.Heap.End {
			return fmt.Errorf("%w: %s stack bounds [%d %d)", ErrInvalidImage, id, s.Start, s.End)
		}
	}
	return nil
}

// field reads a header word, yielding 0 when the storage is too short.
func (m *Image) field(off int) Word {
	if off >= len(m.words) {
		return 0
	}
	return m.words[off]
}

// Header returns a decoded copy of the header.
func (m *Image) Header() Header {
	return Header{
		Magic:   m.field(hdrMagic),
		Version: m.field(hdrVersion),
		Size:    m.field(hdrSize),
		HSize:   m.field(hdrHSize),
		PC:      m.field(hdrPC),
		Index:   m.Region(RegionIndex),
		Code:    m.Region(RegionCode),
		Heap:    m.Region(RegionHeap),
		Return:  m.Stack(StackReturn),
		Data:    m.Stack(StackData),
		Asm:     m.Stack(StackAsm),
	}
}

// Size returns the image size recorded in the header.
func (m *Image) Size() Word {
	return m.field(hdrSize)
}

// Words returns the backing storage.
func (m *Image) Words() []Word {
	return m.words
}

// PC returns the program counter.
func (m *Image) PC() Word {
	return m.field(hdrPC)
}

// SetPC sets the program counter.
func (m *Image) SetPC(pc Word) {
	m.words[hdrPC] = pc
}

// Region returns the current bounds of a region.
func (m *Image) Region(id RegionID) Region {
	b := id.base()
	return Region{Start: m.field(b), Next: m.field(b + 1), End: m.field(b + 2)}
}

// SetNext moves the next pointer of a region. It refuses values outside
// [start, end] so the region invariant holds after every mutation.
func (m *Image) SetNext(id RegionID, next Word) error {
	r := m.Region(id)
	if next < r.Start || next > r.End {
		return fmt.Errorf("%w: %s next %d outside [%d, %d]", ErrRegionExhausted, id, next, r.Start, r.End)
	}
	m.words[id.base()+1] = next
	return nil
}

// Peek returns the word at addr.
func (m *Image) Peek(addr Word) (Word, error) {
	if addr < 0 || addr >= m.Size() || int(addr) >= len(m.words) {
		return 0, fmt.Errorf("%w: peek %d", ErrOutOfBounds, addr)
	}
	return m.words[addr], nil
}

// Poke stores val at addr.
func (m *Image) Poke(addr, val Word) error {
	if addr < 0 || addr >= m.Size() || int(addr) >= len(m.words) {
		return fmt.Errorf("%w: poke %d", ErrOutOfBounds, addr)
	}
	m.words[addr] = val
	return nil
}

// Fingerprint returns the blake3 digest of the live words.
func (m *Image) Fingerprint() types.Fingerprint {
	n := int(m.Size())
	if n < 0 || n > len(m.words) {
		n = len(m.words)
	}
	return types.FingerprintOf(m.words[:n])
}
