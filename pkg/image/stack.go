package image

import "fmt"

// StackID selects one of the three stacks.
type StackID int

// Stacks.
const (
	StackReturn StackID = iota
	StackData
	StackAsm
)

var stackNames = [...]string{"return", "data", "asm"}

func (s StackID) String() string {
	if s < 0 || int(s) >= len(stackNames) {
		return fmt.Sprintf("stack(%d)", int(s))
	}
	return stackNames[s]
}

func (s StackID) top() int {
	return hdrRSP + int(s)
}

func (s StackID) bounds() int {
	return hdrRSStart + 2*int(s)
}

// Stack is a (top, start, end) triple. The live cells are [Start, Top).
type Stack struct {
	Top   Word
	Start Word
	End   Word
}

// Depth returns the number of cells on the stack.
func (s Stack) Depth() Word {
	return s.Top - s.Start
}

// Stack returns the current state of a stack.
func (m *Image) Stack(id StackID) Stack {
	b := id.bounds()
	return Stack{Top: m.field(id.top()), Start: m.field(b), End: m.field(b + 1)}
}

// Push stores v at the top of the stack and bumps the top pointer.
func (m *Image) Push(id StackID, v Word) error {
	s := m.Stack(id)
	if s.Top < s.Start || s.Top >= s.End {
		return fmt.Errorf("%w: %s stack top %d outside [%d, %d)", ErrStackOverflow, id, s.Top, s.Start, s.End)
	}
	if err := m.Poke(s.Top, v); err != nil {
		return err
	}
	m.words[id.top()] = s.Top + 1
	return nil
}

// Pop decrements the top pointer and returns the cell it now points at.
// Popping an empty stack leaves the top at Start, so repeated underflows
// cannot walk the pointer below the stack.
func (m *Image) Pop(id StackID) (Word, error) {
	if len(m.words) < HeaderSize {
		return 0, fmt.Errorf("%w: %s stack", ErrStackUnderflow, id)
	}
	s := m.Stack(id)
	top := s.Top - 1
	if top < s.Start {
		m.words[id.top()] = s.Start
		return 0, fmt.Errorf("%w: %s stack", ErrStackUnderflow, id)
	}
	if top >= s.End {
		m.words[id.top()] = top
		return 0, fmt.Errorf("%w: %s stack top %d beyond end %d", ErrStackUnderflow, id, top, s.End)
	}
	v, err := m.Peek(top)
	if err != nil {
		return 0, err
	}
	m.words[id.top()] = top
	return v, nil
}

// Contents returns a copy of the live cells, bottom first.
func (m *Image) Contents(id StackID) []Word {
	s := m.Stack(id)
	if s.Top <= s.Start || s.Start < 0 || int(s.Top) > len(m.words) {
		return nil
	}
	out := make([]Word, s.Top-s.Start)
	copy(out, m.words[s.Start:s.Top])
	return out
}

// Reset empties a stack.
func (m *Image) Reset(id StackID) {
	m.words[id.top()] = m.field(id.bounds())
}

// SetTop moves the top pointer of a stack, clamped to its bounds.
func (m *Image) SetTop(id StackID, top Word) {
	s := m.Stack(id)
	if top < s.Start {
		top = s.Start
	}
	if top > s.End {
		top = s.End
	}
	m.words[id.top()] = top
}

// PushData pushes onto the data stack.
func (m *Image) PushData(v Word) error { return m.Push(StackData, v) }

// PopData pops from the data stack.
func (m *Image) PopData() (Word, error) { return m.Pop(StackData) }

// PushReturn pushes onto the return stack.
func (m *Image) PushReturn(v Word) error { return m.Push(StackReturn, v) }

// PopReturn pops from the return stack.
func (m *Image) PopReturn() (Word, error) { return m.Pop(StackReturn) }

// PushAsm pushes onto the assembler stack.
func (m *Image) PushAsm(v Word) error { return m.Push(StackAsm, v) }

// PopAsm pops from the assembler stack.
func (m *Image) PopAsm() (Word, error) { return m.Pop(StackAsm) }
