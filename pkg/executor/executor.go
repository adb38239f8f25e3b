// Package executor drives zforth images on behalf of a host.
//
// The machine only ever runs one instruction per call. An Executor adds
// what a host needs around that: binding the syscall registry into the
// image, assembling source and pointing pc at it, stepping until the
// machine stops, a step budget and context cancellation. A run that stops
// early leaves pc where it was, so calling Run again resumes it.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/fortiblox/zforth/pkg/asm"
	"github.com/fortiblox/zforth/pkg/host"
	"github.com/fortiblox/zforth/pkg/image"
	"github.com/fortiblox/zforth/pkg/vm"
)

// Executor errors.
var (
	ErrAssemblyFailed = errors.New("assembly failed")
	ErrSyscallFailed  = errors.New("syscall failed")
)

// Config holds executor settings.
type Config struct {
	// StepLimit is the budget for one Eval, in cost units. Zero disables it.
	StepLimit uint64

	// RollbackOnError discards everything a failed assembly emitted.
	RollbackOnError bool

	// Trace logs every instruction before it runs.
	Trace bool

	// Logger receives faults and traces. Nil discards them.
	Logger *log.Logger

	// UserData is passed to every syscall.
	UserData interface{}
}

// DefaultConfig returns the default executor configuration.
func DefaultConfig() Config {
	return Config{
		StepLimit:       StepLimitDefault,
		RollbackOnError: false,
	}
}

// Result describes why a run stopped.
type Result struct {
	// State is Halted when the program finished, Suspend when it can be
	// resumed with Run and Fault when the image needs a reset. After
	// ErrStepLimit the meter stays exhausted, so call Meter().Reset()
	// before resuming.
	State vm.State

	// Steps is the number of instructions executed by this call.
	Steps uint64

	// Err is the fault cause, or ErrStepLimit or a context error for a
	// run stopped by the executor. A syscall pause has no error.
	Err error
}

// Executor runs programs in one image.
type Executor struct {
	img    *image.Image
	reg    *host.Registry
	cb     vm.Callback
	meter  *StepMeter
	config Config
	logger *log.Logger
}

// New creates an executor for img and binds the registry's named syscalls
// into it. A nil registry leaves syscalls unserviced.
func New(img *image.Image, reg *host.Registry, config Config) (*Executor, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	e := &Executor{
		img:    img,
		reg:    reg,
		meter:  NewStepMeter(config.StepLimit),
		config: config,
		logger: logger,
	}
	if reg != nil {
		if err := reg.Bind(img); err != nil {
			return nil, err
		}
		e.cb = reg.Callback()
	}
	return e, nil
}

// Image returns the image the executor drives.
func (e *Executor) Image() *image.Image {
	return e.img
}

// Meter returns the step meter.
func (e *Executor) Meter() *StepMeter {
	return e.meter
}

// mark records the growing pointers and the open blocks so a failed
// assembly can be undone.
type mark struct {
	code, index, heap image.Word
	blocks            []image.Word
}

func (e *Executor) mark() mark {
	return mark{
		code:   e.img.Region(image.RegionCode).Next,
		index:  e.img.Region(image.RegionIndex).Next,
		heap:   e.img.Region(image.RegionHeap).Next,
		blocks: e.img.Contents(image.StackAsm),
	}
}

// rollback restores the image to m. Blocks opened before the mark get their
// placeholder back, since a later ] patches it in place.
func (e *Executor) rollback(m mark) error {
	for a := m.code; a < e.img.Region(image.RegionCode).Next; a++ {
		if err := e.img.Poke(a, 0); err != nil {
			return err
		}
	}
	e.img.Reset(image.StackAsm)
	for _, start := range m.blocks {
		if start < m.code {
			if err := e.img.Poke(start, vm.Encode(vm.OpBlock, 0)); err != nil {
				return err
			}
		}
		if err := e.img.PushAsm(start); err != nil {
			return err
		}
	}
	for _, r := range []struct {
		id   image.RegionID
		next image.Word
	}{
		{image.RegionCode, m.code},
		{image.RegionIndex, m.index},
		{image.RegionHeap, m.heap},
	} {
		if err := e.img.SetNext(r.id, r.next); err != nil {
			return err
		}
	}
	return nil
}

// Assemble compiles src into the image and returns the address of its
// first instruction.
func (e *Executor) Assemble(src []byte) (image.Word, error) {
	m := e.mark()
	n, err := asm.Assemble(e.img, src)
	if err != nil {
		if e.config.RollbackOnError {
			if rerr := e.rollback(m); rerr != nil {
				return 0, fmt.Errorf("%w at byte %d: %w (rollback: %w)", ErrAssemblyFailed, n, err, rerr)
			}
		}
		return 0, fmt.Errorf("%w at byte %d: %w", ErrAssemblyFailed, n, err)
	}
	return m.code, nil
}

// Eval assembles src, points pc at it and runs it with a fresh step
// budget. The error is only set when assembly fails; execution problems
// are reported in the Result.
func (e *Executor) Eval(ctx context.Context, src []byte) (*Result, error) {
	start, err := e.Assemble(src)
	if err != nil {
		return nil, err
	}
	e.img.SetPC(start)
	e.meter.Reset()
	return e.Run(ctx), nil
}

// Run steps the image until it halts, suspends, faults, runs out of
// budget or ctx is done.
func (e *Executor) Run(ctx context.Context) *Result {
	res := &Result{}
	for {
		select {
		case <-ctx.Done():
			res.State = vm.Suspend
			res.Err = ctx.Err()
			return res
		default:
		}

		pc := e.img.PC()
		if code := e.img.Region(image.RegionCode); pc < code.Start || pc >= code.Next {
			res.State = vm.Halted
			return res
		}
		instr, _ := e.img.Peek(pc)
		if e.config.Trace {
			e.logger.Printf("[EXEC] %6d  %-12s  ds=%v", pc, vm.Disassemble(instr), e.img.Contents(image.StackData))
		}
		if err := e.meter.Consume(instructionCost(instr)); err != nil {
			res.State = vm.Suspend
			res.Err = err
			return res
		}

		st, err := vm.Step(e.img, e.cb, e.config.UserData)
		if e.reg != nil {
			if serr := e.reg.Err(); serr != nil {
				e.reg.ClearErr()
				st = vm.Fault
				err = fmt.Errorf("%w at pc %d: %w", ErrSyscallFailed, pc, serr)
			}
		}

		switch st {
		case vm.Continue:
			res.Steps++
			continue
		case vm.Halted:
			res.State = vm.Halted
			return res
		case vm.Suspend:
			res.State = vm.Suspend
			return res
		default:
			e.logger.Printf("[EXEC] fault: %v", err)
			res.State = vm.Fault
			res.Err = err
			return res
		}
	}
}
