// Package host implements the reference syscall collaborator for zforth.
//
// Programs reach the host through call-syscall instructions carrying a
// syscall number. A Registry maps those numbers to Go functions and adapts
// itself to vm.Callback. Syscalls take their arguments from the data stack
// and push their results there.
package host

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fortiblox/zforth/internal/types"
	"github.com/fortiblox/zforth/pkg/image"
	"github.com/fortiblox/zforth/pkg/vm"
)

// Word is the machine word of the image.
type Word = types.Word

// Syscall errors.
var (
	ErrUnknownSyscall  = errors.New("unknown syscall")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Syscall is a host function callable from programs.
type Syscall interface {
	// Invoke runs the syscall. A non-zero status without an error asks
	// the machine to retry the instruction later.
	Invoke(img *image.Image, udata interface{}) (Word, error)
}

// SyscallFunc is a function that implements Syscall.
type SyscallFunc func(img *image.Image, udata interface{}) (Word, error)

// Invoke implements Syscall.
func (f SyscallFunc) Invoke(img *image.Image, udata interface{}) (Word, error) {
	return f(img, udata)
}

type entry struct {
	name string
	sc   Syscall
}

// Registry holds registered syscalls and the first error raised by one.
type Registry struct {
	syscalls map[Word]entry
	err      error
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		syscalls: make(map[Word]entry),
	}
}

// Register adds sc under sysnum. A non-empty name is bound into images
// by Bind so programs can call the syscall by name.
func (r *Registry) Register(sysnum Word, name string, sc Syscall) {
	r.syscalls[sysnum] = entry{name: name, sc: sc}
}

// Get returns a syscall by its number.
func (r *Registry) Get(sysnum Word) (Syscall, bool) {
	e, ok := r.syscalls[sysnum]
	return e.sc, ok
}

// Names maps each named syscall to its number.
func (r *Registry) Names() map[string]Word {
	out := make(map[string]Word)
	for n, e := range r.syscalls {
		if e.name != "" {
			out[e.name] = n
		}
	}
	return out
}

// Bind writes a call-syscall instruction for every named syscall into the
// image's symbol table.
func (r *Registry) Bind(img *image.Image) error {
	nums := make([]Word, 0, len(r.syscalls))
	for n := range r.syscalls {
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })

	for _, n := range nums {
		e := r.syscalls[n]
		if e.name == "" {
			continue
		}
		if err := img.SetInstruction([]byte(e.name), vm.Encode(vm.OpSyscall, n)); err != nil {
			return fmt.Errorf("bind %s: %w", e.name, err)
		}
	}
	return nil
}

// Callback adapts the registry to the machine. Unknown numbers and
// failing syscalls return -1 and record the error for Err.
func (r *Registry) Callback() vm.Callback {
	return func(img *image.Image, udata interface{}, sysnum Word) Word {
		e, ok := r.syscalls[sysnum]
		if !ok {
			r.fail(fmt.Errorf("%w: %d", ErrUnknownSyscall, sysnum))
			return -1
		}
		status, err := e.sc.Invoke(img, udata)
		if err != nil {
			r.fail(fmt.Errorf("syscall %d (%s): %w", sysnum, e.name, err))
			return -1
		}
		return status
	}
}

func (r *Registry) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// Err returns the first syscall error since the last ClearErr.
func (r *Registry) Err() error {
	return r.err
}

// ClearErr forgets the recorded error.
func (r *Registry) ClearErr() {
	r.err = nil
}
