package executor

import (
	"errors"
	"sync/atomic"

	"github.com/fortiblox/zforth/pkg/vm"
)

// Step cost constants.
const (
	CostDefault = uint64(1) // pushes, operators, returns
	CostCall    = uint64(2) // calls, blocks and loops touch the return stack
	CostSyscall = uint64(5) // host round trip

	StepLimitDefault = uint64(1_000_000)
)

// ErrStepLimit is returned when the step budget is exhausted.
var ErrStepLimit = errors.New("step limit exceeded")

// instructionCost returns the budget cost of an instruction word.
func instructionCost(instr vm.Word) uint64 {
	op, _ := vm.Decode(instr)
	switch op {
	case vm.OpSyscall:
		return CostSyscall
	case vm.OpCall, vm.OpCallIndex, vm.OpBlock, vm.OpLoop:
		return CostCall
	default:
		return CostDefault
	}
}

// StepMeter tracks step budget consumption. It is safe to read from
// another goroutine while a run is in progress.
type StepMeter struct {
	remaining uint64
	consumed  uint64
	limit     uint64
	disabled  bool
}

// NewStepMeter creates a meter with the given limit. A zero limit
// disables metering.
func NewStepMeter(limit uint64) *StepMeter {
	return &StepMeter{
		remaining: limit,
		limit:     limit,
		disabled:  limit == 0,
	}
}

// Consume attempts to consume the specified cost.
// Returns ErrStepLimit if insufficient budget remains.
func (m *StepMeter) Consume(cost uint64) error {
	if m.disabled {
		atomic.AddUint64(&m.consumed, cost)
		return nil
	}

	for {
		remaining := atomic.LoadUint64(&m.remaining)
		if remaining < cost {
			atomic.StoreUint64(&m.remaining, 0)
			return ErrStepLimit
		}
		if atomic.CompareAndSwapUint64(&m.remaining, remaining, remaining-cost) {
			atomic.AddUint64(&m.consumed, cost)
			return nil
		}
	}
}

// Remaining returns the remaining budget.
func (m *StepMeter) Remaining() uint64 {
	return atomic.LoadUint64(&m.remaining)
}

// Consumed returns the total consumed budget.
func (m *StepMeter) Consumed() uint64 {
	return atomic.LoadUint64(&m.consumed)
}

// Limit returns the budget limit.
func (m *StepMeter) Limit() uint64 {
	return m.limit
}

// IsExhausted returns true if the budget is exhausted.
func (m *StepMeter) IsExhausted() bool {
	return !m.disabled && atomic.LoadUint64(&m.remaining) == 0
}

// Reset resets the meter to its initial state.
func (m *StepMeter) Reset() {
	atomic.StoreUint64(&m.remaining, m.limit)
	atomic.StoreUint64(&m.consumed, 0)
}
