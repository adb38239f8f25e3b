package host

import (
	"fmt"
	"io"

	"github.com/fortiblox/zforth/pkg/image"
	"github.com/fortiblox/zforth/pkg/vm"
)

// Standard syscall numbers.
const (
	SysDup      = Word(1)
	SysDrop     = Word(2)
	SysSwap     = Word(3)
	SysOver     = Word(4)
	SysLogNum   = Word(10)
	SysLogStr   = Word(11)
	SysLogStack = Word(12)
	SysRegister = Word(20)
	SysPeek     = Word(21)
	SysPoke     = Word(22)
)

// Standard returns a registry with the stack shuffles, the log calls,
// memory access, sys.reg and the string hashes. Log output goes to out.
func Standard(out io.Writer) *Registry {
	r := NewRegistry()
	r.registerStack()
	r.registerLogging(out)
	r.registerMemory()
	r.registerCrypto()
	return r
}

func pop2(img *image.Image) (a, b Word, err error) {
	if b, err = img.PopData(); err != nil {
		return 0, 0, err
	}
	if a, err = img.PopData(); err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func push(img *image.Image, vals ...Word) error {
	for _, v := range vals {
		if err := img.PushData(v); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) registerStack() {
	r.Register(SysDup, "dup", SyscallFunc(func(img *image.Image, _ interface{}) (Word, error) {
		v, err := img.PopData()
		if err != nil {
			return 0, err
		}
		return 0, push(img, v, v)
	}))

	r.Register(SysDrop, "drop", SyscallFunc(func(img *image.Image, _ interface{}) (Word, error) {
		_, err := img.PopData()
		return 0, err
	}))

	r.Register(SysSwap, "swap", SyscallFunc(func(img *image.Image, _ interface{}) (Word, error) {
		a, b, err := pop2(img)
		if err != nil {
			return 0, err
		}
		return 0, push(img, b, a)
	}))

	r.Register(SysOver, "over", SyscallFunc(func(img *image.Image, _ interface{}) (Word, error) {
		a, b, err := pop2(img)
		if err != nil {
			return 0, err
		}
		return 0, push(img, a, b, a)
	}))
}

// popName pops a string address and decodes a symbol-sized string.
func popName(img *image.Image, buf []byte) ([]byte, error) {
	addr, err := img.PopData()
	if err != nil {
		return nil, err
	}
	return img.ReadString(addr, buf)
}

func (r *Registry) registerLogging(out io.Writer) {
	r.Register(SysLogNum, "sys.lognum", SyscallFunc(func(img *image.Image, _ interface{}) (Word, error) {
		v, err := img.PopData()
		if err != nil {
			return 0, err
		}
		_, err = fmt.Fprintf(out, "LOGNUM %d\n", v)
		return 0, err
	}))

	r.Register(SysLogStr, "sys.logstr", SyscallFunc(func(img *image.Image, _ interface{}) (Word, error) {
		addr, err := img.PopData()
		if err != nil {
			return 0, err
		}
		s, err := img.String(addr)
		if err != nil {
			return 0, err
		}
		_, err = fmt.Fprintf(out, "LOGSTR \"%s\"\n", s)
		return 0, err
	}))

	r.Register(SysLogStack, "sys.logstack", SyscallFunc(func(img *image.Image, _ interface{}) (Word, error) {
		_, err := fmt.Fprintf(out, "LOGSTACK %v\n", img.Contents(image.StackData))
		return 0, err
	}))
}

func (r *Registry) registerMemory() {
	// sys.reg ( addr name -- ) binds name to a call of addr.
	r.Register(SysRegister, "sys.reg", SyscallFunc(func(img *image.Image, _ interface{}) (Word, error) {
		var buf [image.MaxNameLen]byte
		name, err := popName(img, buf[:])
		if err != nil {
			return 0, err
		}
		if len(name) == 0 {
			return 0, fmt.Errorf("%w: empty name", ErrInvalidArgument)
		}
		addr, err := img.PopData()
		if err != nil {
			return 0, err
		}
		code := img.Region(image.RegionCode)
		if addr < code.Start || addr >= code.Next {
			return 0, fmt.Errorf("%w: %s bound to %d outside code", ErrInvalidArgument, name, addr)
		}
		return 0, img.SetInstruction(name, vm.Encode(vm.OpCall, addr))
	}))

	// sys.peek ( addr -- value )
	r.Register(SysPeek, "sys.peek", SyscallFunc(func(img *image.Image, _ interface{}) (Word, error) {
		addr, err := img.PopData()
		if err != nil {
			return 0, err
		}
		v, err := img.Peek(addr)
		if err != nil {
			return 0, err
		}
		return 0, img.PushData(v)
	}))

	// sys.poke ( value addr -- )
	r.Register(SysPoke, "sys.poke", SyscallFunc(func(img *image.Image, _ interface{}) (Word, error) {
		v, addr, err := pop2(img)
		if err != nil {
			return 0, err
		}
		return 0, img.Poke(addr, v)
	}))
}
