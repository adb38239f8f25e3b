package vm

import (
	"fmt"

	"github.com/fortiblox/zforth/internal/types"
)

// Opcode is the low-order tag of an instruction word.
type Opcode uint8

// Opcodes. Tag 3 is unassigned.
const (
	OpPushInt    Opcode = 0 // push payload
	OpCall       Opcode = 1 // call address payload
	OpSyscall    Opcode = 2 // host call, may suspend
	OpPushString Opcode = 4 // inline string of payload bytes
	OpSimple     Opcode = 5 // binary op, payload is the operator byte
	OpReturn     Opcode = 6
	OpCallIndex  Opcode = 7 // call through the index cell at payload
	OpBlock      Opcode = 8 // push body address, jump to payload
	OpLoop       Opcode = 9
)

var opcodeNames = map[Opcode]string{
	OpPushInt:    "push",
	OpCall:       "call",
	OpSyscall:    "sys",
	OpPushString: "str",
	OpSimple:     "op",
	OpReturn:     "ret",
	OpCallIndex:  "calli",
	OpBlock:      "block",
	OpLoop:       "loop",
}

func (op Opcode) String() string {
	if s, ok := opcodeNames[op]; ok {
		return s
	}
	return fmt.Sprintf("op%d", uint8(op))
}

// Encode packs an opcode and payload into an instruction word.
func Encode(op Opcode, payload Word) Word {
	return payload<<types.OpcodeBits | Word(op)&types.OpcodeMask
}

// Decode splits an instruction word. The payload keeps its sign.
func Decode(w Word) (Opcode, Word) {
	return Opcode(w & types.OpcodeMask), w >> types.OpcodeBits
}

// Disassemble renders one instruction word.
func Disassemble(w Word) string {
	op, arg := Decode(w)
	switch op {
	case OpPushInt, OpCall, OpSyscall, OpCallIndex, OpBlock:
		return fmt.Sprintf("%s %d", op, arg)
	case OpPushString:
		return fmt.Sprintf("str len=%d", arg)
	case OpSimple:
		if arg >= 0x20 && arg < 0x7f {
			return fmt.Sprintf("op %c", rune(arg))
		}
		return fmt.Sprintf("op 0x%x", arg)
	case OpReturn, OpLoop:
		return op.String()
	}
	return fmt.Sprintf("invalid 0x%x", w)
}
