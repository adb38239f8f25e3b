package image

import (
	"bytes"
	"fmt"
)

// MaxNameLen bounds symbol names; names of this many bytes or more are rejected.
const MaxNameLen = 100

// Symbol is one index table entry. An entry is two words: the address of
// its name string and its instruction. A zero instruction means the name
// has been referenced but not resolved yet.
type Symbol struct {
	Name        string
	Entry       Word
	Instruction Word
}

// Resolved reports whether the entry holds an instruction.
func (s Symbol) Resolved() bool {
	return s.Instruction != 0
}

// LookupOrCreate returns the entry address for name, appending an
// unresolved entry when the name is not in the table yet.
func (m *Image) LookupOrCreate(name []byte) (Word, error) {
	if len(name) >= MaxNameLen {
		return 0, fmt.Errorf("%w: %d bytes", ErrNameTooLong, len(name))
	}
	var buf [MaxNameLen]byte
	idx := m.Region(RegionIndex)
	for a := idx.Start; a < idx.Next; a += 2 {
		sa, err := m.Peek(a)
		if err != nil {
			return 0, err
		}
		s, err := m.ReadString(sa, buf[:])
		if err != nil {
			continue
		}
		if bytes.Equal(s, name) {
			return a, nil
		}
	}

	if int64(idx.Next)+2 > int64(idx.End) {
		return 0, fmt.Errorf("%w: %q", ErrTableExhausted, name)
	}
	sa, err := m.AllocString(name)
	if err != nil {
		return 0, err
	}
	if err := m.Poke(idx.Next, sa); err != nil {
		return 0, err
	}
	if err := m.Poke(idx.Next+1, 0); err != nil {
		return 0, err
	}
	if err := m.SetNext(RegionIndex, idx.Next+2); err != nil {
		return 0, err
	}
	return idx.Next, nil
}

// Instruction returns the instruction bound to name, creating the entry if needed.
func (m *Image) Instruction(name []byte) (Word, error) {
	a, err := m.LookupOrCreate(name)
	if err != nil {
		return 0, err
	}
	return m.Peek(a + 1)
}

// SetInstruction binds instr to name, creating the entry if needed.
// Compiled references go through the entry, so rebinding takes effect
// for code assembled before and after the call.
func (m *Image) SetInstruction(name []byte, instr Word) error {
	a, err := m.LookupOrCreate(name)
	if err != nil {
		return err
	}
	return m.Poke(a+1, instr)
}

// Symbols lists the index table in creation order.
func (m *Image) Symbols() ([]Symbol, error) {
	idx := m.Region(RegionIndex)
	var (
		out []Symbol
		buf [MaxNameLen]byte
	)
	for a := idx.Start; a < idx.Next; a += 2 {
		sa, err := m.Peek(a)
		if err != nil {
			return nil, err
		}
		name, err := m.ReadString(sa, buf[:])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", a, err)
		}
		instr, err := m.Peek(a + 1)
		if err != nil {
			return nil, err
		}
		out = append(out, Symbol{Name: string(name), Entry: a, Instruction: instr})
	}
	return out, nil
}
