// Package vm implements the zforth execution engine.
//
// The machine has no state of its own: the program counter and the three
// stacks live in the image header, so any number of images can be driven
// independently. Step executes exactly one instruction and reports what
// the host should do next.
package vm

import (
	"errors"
	"fmt"

	"github.com/fortiblox/zforth/internal/types"
	"github.com/fortiblox/zforth/pkg/image"
)

// Word is the machine word of the image.
type Word = types.Word

// Errors.
var (
	ErrNotRunnable     = errors.New("pc outside code")
	ErrInvalidOpcode   = errors.New("invalid opcode")
	ErrInvalidOperator = errors.New("invalid operator")
	ErrUnresolvedCall  = errors.New("unresolved call")
	ErrDivisionByZero  = errors.New("division by zero")
	ErrNoCallback      = errors.New("syscall without callback")
)

// Callback services call-syscall instructions. It pops its arguments from
// the data stack and pushes its results. Returning 0 completes the call; any
// other value leaves pc on the instruction so the next Step retries it.
type Callback func(img *image.Image, udata interface{}, sysnum Word) Word

// State is the outcome of one Step.
type State int

// States.
const (
	// Continue means one instruction ran and pc moved on.
	Continue State = iota
	// Suspend means a syscall asked to be retried; pc is unchanged.
	Suspend
	// Halted means pc is outside the assembled code.
	Halted
	// Fault means the instruction could not run. The image should be
	// reset or restored before stepping again.
	Fault
)

func (s State) String() string {
	switch s {
	case Continue:
		return "continue"
	case Suspend:
		return "suspend"
	case Halted:
		return "halted"
	case Fault:
		return "fault"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Step executes the instruction at pc. Halted comes with ErrNotRunnable,
// Fault with the cause; Continue and Suspend return a nil error.
func Step(img *image.Image, cb Callback, udata interface{}) (State, error) {
	pc := img.PC()
	code := img.Region(image.RegionCode)
	if pc < code.Start || pc >= code.Next {
		return Halted, fmt.Errorf("%w: pc %d, code [%d, %d)", ErrNotRunnable, pc, code.Start, code.Next)
	}
	instr, err := img.Peek(pc)
	if err != nil {
		return Fault, err
	}

	st, err := execute(img, cb, udata, pc, instr)
	if err != nil {
		return Fault, fmt.Errorf("pc %d (%s): %w", pc, Disassemble(instr), err)
	}
	return st, nil
}

func execute(img *image.Image, cb Callback, udata interface{}, pc, instr Word) (State, error) {
	op, arg := Decode(instr)
	switch op {
	case OpPushInt:
		if err := img.PushData(arg); err != nil {
			return Fault, err
		}
		img.SetPC(pc + 1)

	case OpCall:
		if err := img.PushReturn(pc); err != nil {
			return Fault, err
		}
		img.SetPC(arg)

	case OpSyscall:
		if cb == nil {
			return Fault, ErrNoCallback
		}
		if cb(img, udata, arg) != 0 {
			return Suspend, nil
		}
		img.SetPC(pc + 1)

	case OpPushString:
		if err := img.PushData(pc); err != nil {
			return Fault, err
		}
		img.SetPC(pc + 1 + arg)

	case OpSimple:
		return simple(img, pc, arg)

	case OpReturn:
		return ret(img)

	case OpCallIndex:
		target, err := img.Peek(arg)
		if err != nil {
			return Fault, err
		}
		top, targ := Decode(target)
		switch top {
		case OpCall:
			if err := img.PushReturn(pc); err != nil {
				return Fault, err
			}
			img.SetPC(targ)
		case OpSyscall:
			if cb == nil {
				return Fault, ErrNoCallback
			}
			// Calls through the index cannot suspend.
			cb(img, udata, targ)
			img.SetPC(pc + 1)
		default:
			return Fault, fmt.Errorf("%w: index cell %d holds 0x%x", ErrUnresolvedCall, arg, target)
		}

	case OpBlock:
		if err := img.PushData(pc + 1); err != nil {
			return Fault, err
		}
		img.SetPC(arg)

	case OpLoop:
		body, err := img.PopData()
		if err != nil {
			return Fault, err
		}
		if err := img.PushReturn(pc); err != nil {
			return Fault, err
		}
		if err := img.PushData(body); err != nil {
			return Fault, err
		}
		img.SetPC(body)

	default:
		return Fault, fmt.Errorf("%w: %d", ErrInvalidOpcode, op)
	}
	return Continue, nil
}

// ret returns to the instruction after the caller. Returning into a loop
// instruction pops the loop flag and re-enters the loop while it is non-zero.
func ret(img *image.Image) (State, error) {
	from, err := img.PopReturn()
	if err != nil {
		return Fault, err
	}
	caller, err := img.Peek(from)
	if err != nil {
		return Fault, err
	}
	pc := from + 1
	if op, _ := Decode(caller); op == OpLoop {
		flag, err := img.PopData()
		if err != nil {
			return Fault, err
		}
		if flag != 0 {
			pc = from
		}
	}
	img.SetPC(pc)
	return Continue, nil
}

func boolWord(b bool) Word {
	if b {
		return -1
	}
	return 0
}

// simple runs a binary operator. Operands wrap at the word width.
func simple(img *image.Image, pc, c Word) (State, error) {
	rhs, err := img.PopData()
	if err != nil {
		return Fault, err
	}
	lhs, err := img.PopData()
	if err != nil {
		return Fault, err
	}

	var res Word
	switch c {
	case '+':
		res = lhs + rhs
	case '-':
		res = lhs - rhs
	case '*':
		res = lhs * rhs
	case '/':
		if rhs == 0 {
			return Fault, ErrDivisionByZero
		}
		res = lhs / rhs
	case '%':
		if rhs == 0 {
			return Fault, ErrDivisionByZero
		}
		res = lhs % rhs
	case 'R':
		res = lhs >> uint(rhs)
	case 'L':
		res = lhs << uint(rhs)
	case '=':
		res = boolWord(lhs == rhs)
	case 'A':
		res = boolWord(lhs != 0 && rhs != 0)
	case 'O':
		res = boolWord(lhs != 0 || rhs != 0)
	case '&':
		res = lhs & rhs
	case '|':
		res = lhs | rhs
	case '?':
		if lhs != 0 {
			img.SetPC(rhs)
		} else {
			img.SetPC(pc + 1)
		}
		return Continue, nil
	default:
		return Fault, fmt.Errorf("%w: 0x%x", ErrInvalidOperator, c)
	}

	if err := img.PushData(res); err != nil {
		return Fault, err
	}
	img.SetPC(pc + 1)
	return Continue, nil
}
