// Package asm compiles zforth source text into the code segment of an image.
//
// Each token emits at most one instruction, except string literals which
// are inlined. Names compile to call-by-index instructions through the
// symbol table, so a name may be used before it is defined. Brackets
// compile a block: "[" emits a placeholder that pushes the body address
// and jumps past it, "]" emits the body's return and patches the jump.
//
// A failed call leaves every instruction emitted before the failing token
// in place. Each token is checked against the remaining code capacity
// before anything is written, so the code segment never holds a partial
// instruction.
package asm

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/fortiblox/zforth/internal/types"
	"github.com/fortiblox/zforth/pkg/image"
	"github.com/fortiblox/zforth/pkg/vm"
)

// Word is the machine word of the image.
type Word = types.Word

// Errors.
var (
	ErrMalformedToken = errors.New("malformed token")
	ErrUnbalanced     = errors.New("unbalanced bracket")
)

// Assemble compiles src token by token. It returns len(src) when the whole
// input was consumed, or the offset of the token that failed together with
// the error. A NUL byte ends the input early without error.
func Assemble(img *image.Image, src []byte) (int, error) {
	i := 0
	for i < len(src) {
		n, err := AssembleToken(img, src, i)
		if err != nil {
			return i, err
		}
		if n == 0 {
			return i, nil
		}
		i += n
	}
	return i, nil
}

// AssembleToken compiles the token at src[i] and returns the number of
// source bytes it consumed. It returns 0 and no error at end of input.
func AssembleToken(img *image.Image, src []byte, i int) (int, error) {
	typ := Classify(src, i)
	switch typ {
	case TokenEnd:
		return 0, nil
	case TokenSpace:
		return 1, nil
	case TokenInvalid:
		return 0, fmt.Errorf("%w: unexpected byte %q at offset %d", ErrMalformedToken, src[i], i)
	}

	n := Length(src, i)
	if n == 0 {
		return 0, fmt.Errorf("%w: unterminated %s at offset %d", ErrMalformedToken, typ, i)
	}
	code := img.Region(image.RegionCode)
	if size := MemorySize(src, i); int64(code.Next)+int64(size) > int64(code.End) {
		return 0, fmt.Errorf("%w: %s at offset %d needs %d words, code has %d free",
			image.ErrRegionExhausted, typ, i, size, code.Free())
	}
	tok := src[i : i+n]

	var err error
	switch typ {
	case TokenNumber:
		err = assembleNumber(img, tok)
	case TokenString:
		err = assembleString(img, tok[1:n-1])
	case TokenName:
		err = assembleName(img, tok)
	case TokenOperator:
		err = assembleOperator(img, tok[0])
	case TokenBracket:
		if tok[0] == '[' {
			err = openBlock(img)
		} else {
			err = closeBlock(img)
		}
	}
	if err != nil {
		return 0, fmt.Errorf("offset %d: %w", i, err)
	}
	return n, nil
}

func encode(op vm.Opcode, payload Word) (Word, error) {
	if payload < types.MinPayload || payload > types.MaxPayload {
		return 0, fmt.Errorf("%w: payload %d does not fit an instruction", ErrMalformedToken, payload)
	}
	return vm.Encode(op, payload), nil
}

// emit appends one instruction at code.next.
func emit(img *image.Image, op vm.Opcode, payload Word) error {
	instr, err := encode(op, payload)
	if err != nil {
		return err
	}
	next := img.Region(image.RegionCode).Next
	if err := img.Poke(next, instr); err != nil {
		return err
	}
	return img.SetNext(image.RegionCode, next+1)
}

func assembleNumber(img *image.Image, tok []byte) error {
	v, err := strconv.ParseInt(string(tok), 10, 64)
	if err != nil || v > int64(types.MaxPayload) {
		return fmt.Errorf("%w: number %s out of range", ErrMalformedToken, tok)
	}
	return emit(img, vm.OpPushInt, Word(v))
}

func assembleString(img *image.Image, s []byte) error {
	next, err := img.WriteString(img.Region(image.RegionCode).Next, s)
	if err != nil {
		return err
	}
	return img.SetNext(image.RegionCode, next)
}

// assembleName compiles a reference to the instruction cell of the name's
// index entry. The entry is created unresolved if the name is new.
func assembleName(img *image.Image, name []byte) error {
	entry, err := img.LookupOrCreate(name)
	if err != nil {
		return err
	}
	return emit(img, vm.OpCallIndex, entry+1)
}

func assembleOperator(img *image.Image, c byte) error {
	switch c {
	case '!':
		return emit(img, vm.OpLoop, 0)
	case ';':
		return emit(img, vm.OpReturn, 0)
	}
	return emit(img, vm.OpSimple, Word(c))
}

func openBlock(img *image.Image) error {
	if err := img.PushAsm(img.Region(image.RegionCode).Next); err != nil {
		return err
	}
	return emit(img, vm.OpBlock, 0)
}

func closeBlock(img *image.Image) error {
	start, err := img.PopAsm()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnbalanced, err)
	}
	code := img.Region(image.RegionCode)
	if !code.Contains(start) || start >= code.Next {
		return fmt.Errorf("%w: block start %d outside code", ErrUnbalanced, start)
	}
	if placeholder, _ := img.Peek(start); placeholder != vm.Encode(vm.OpBlock, 0) {
		return fmt.Errorf("%w: no open block at %d", ErrUnbalanced, start)
	}
	if err := emit(img, vm.OpReturn, 0); err != nil {
		return err
	}
	end, err := encode(vm.OpBlock, img.Region(image.RegionCode).Next)
	if err != nil {
		return err
	}
	return img.Poke(start, end)
}
