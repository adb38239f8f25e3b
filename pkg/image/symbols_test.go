package image

import (
	"bytes"
	"errors"
	"testing"
)

// TestLookupOrCreateIdempotent tests that a name maps to one entry.
func TestLookupOrCreateIdempotent(t *testing.T) {
	m := newTestImage(t)
	idx := m.Region(RegionIndex)

	a, err := m.LookupOrCreate([]byte("square"))
	if err != nil {
		t.Fatalf("LookupOrCreate() failed: %v", err)
	}
	if a != idx.Start {
		t.Errorf("first entry = %d, want %d", a, idx.Start)
	}
	b, err := m.LookupOrCreate([]byte("square"))
	if err != nil {
		t.Fatalf("LookupOrCreate() failed: %v", err)
	}
	if a != b {
		t.Errorf("LookupOrCreate() = %d then %d, want equal", a, b)
	}
	if next := m.Region(RegionIndex).Next; next != idx.Start+2 {
		t.Errorf("index.next = %d, want %d", next, idx.Start+2)
	}

	c, err := m.LookupOrCreate([]byte("squares"))
	if err != nil {
		t.Fatalf("LookupOrCreate() failed: %v", err)
	}
	if c != a+2 {
		t.Errorf("second entry = %d, want %d", c, a+2)
	}

	sa, _ := m.Peek(a)
	name, err := m.String(sa)
	if err != nil || !bytes.Equal(name, []byte("square")) {
		t.Errorf("entry name = %q, %v, want square", name, err)
	}
}

// TestSetInstruction tests binding and reading instructions.
func TestSetInstruction(t *testing.T) {
	m := newTestImage(t)

	instr, err := m.Instruction([]byte("fresh"))
	if err != nil {
		t.Fatalf("Instruction() failed: %v", err)
	}
	if instr != 0 {
		t.Errorf("Instruction() of new name = %d, want 0", instr)
	}

	if err := m.SetInstruction([]byte("fresh"), 0x1232); err != nil {
		t.Fatalf("SetInstruction() failed: %v", err)
	}
	if instr, _ := m.Instruction([]byte("fresh")); instr != 0x1232 {
		t.Errorf("Instruction() = 0x%x, want 0x1232", instr)
	}

	syms, err := m.Symbols()
	if err != nil {
		t.Fatalf("Symbols() failed: %v", err)
	}
	if len(syms) != 1 || syms[0].Name != "fresh" || !syms[0].Resolved() {
		t.Errorf("Symbols() = %+v, want one resolved entry named fresh", syms)
	}
}

// TestLookupOrCreateErrors tests name length and capacity checks.
func TestLookupOrCreateErrors(t *testing.T) {
	m, err := Alloc(Config{Size: 1100, IndexCapacity: 2, CodeCapacity: 16})
	if err != nil {
		t.Fatalf("Alloc() failed: %v", err)
	}

	long := bytes.Repeat([]byte("x"), MaxNameLen)
	if _, err := m.LookupOrCreate(long); !errors.Is(err, ErrNameTooLong) {
		t.Errorf("LookupOrCreate(100 bytes) = %v, want ErrNameTooLong", err)
	}
	if _, err := m.LookupOrCreate(long[:MaxNameLen-1]); err != nil {
		t.Errorf("LookupOrCreate(99 bytes) = %v, want nil", err)
	}
	if _, err := m.LookupOrCreate([]byte("b")); err != nil {
		t.Errorf("LookupOrCreate(b) = %v, want nil", err)
	}

	heap := m.Region(RegionHeap).Next
	if _, err := m.LookupOrCreate([]byte("c")); !errors.Is(err, ErrTableExhausted) {
		t.Errorf("LookupOrCreate() on full table = %v, want ErrTableExhausted", err)
	}
	if next := m.Region(RegionHeap).Next; next != heap {
		t.Errorf("heap.next moved to %d on failure, want %d", next, heap)
	}

	// Existing names still resolve.
	if _, err := m.LookupOrCreate([]byte("b")); err != nil {
		t.Errorf("LookupOrCreate(b) on full table = %v, want nil", err)
	}
}
