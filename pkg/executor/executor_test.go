package executor

import (
	"bytes"
	"context"
	"errors"
	"log"
	"reflect"
	"strings"
	"testing"

	"github.com/fortiblox/zforth/pkg/asm"
	"github.com/fortiblox/zforth/pkg/host"
	"github.com/fortiblox/zforth/pkg/image"
	"github.com/fortiblox/zforth/pkg/vm"
)

func newExecutor(t *testing.T, out *bytes.Buffer, cfg Config) *Executor {
	t.Helper()
	img, err := image.Alloc(image.DefaultConfig())
	if err != nil {
		t.Fatalf("Alloc() failed: %v", err)
	}
	e, err := New(img, host.Standard(out), cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return e
}

func eval(t *testing.T, e *Executor, src string) *Result {
	t.Helper()
	res, err := e.Eval(context.Background(), []byte(src))
	if err != nil {
		t.Fatalf("Eval(%q) failed: %v", src, err)
	}
	return res
}

// TestEvalArithmetic tests the basic assemble-and-run path.
func TestEvalArithmetic(t *testing.T) {
	var out bytes.Buffer
	e := newExecutor(t, &out, DefaultConfig())

	res := eval(t, e, "3 4 + sys.lognum")
	if res.State != vm.Halted || res.Err != nil {
		t.Fatalf("Eval() = %s, %v, want halted", res.State, res.Err)
	}
	if res.Steps != 4 {
		t.Errorf("Steps = %d, want 4", res.Steps)
	}
	if got := out.String(); got != "LOGNUM 7\n" {
		t.Errorf("output = %q, want %q", got, "LOGNUM 7\n")
	}
	if d := e.Image().Stack(image.StackData).Depth(); d != 0 {
		t.Errorf("data depth = %d, want 0", d)
	}
}

// TestEvalLoop tests a countdown driven by the quick loop.
func TestEvalLoop(t *testing.T) {
	var out bytes.Buffer
	e := newExecutor(t, &out, DefaultConfig())
	start := e.Image().Region(image.RegionCode).Next

	res := eval(t, e, "3 [ swap 1 - dup sys.lognum swap over ] !")
	if res.State != vm.Halted {
		t.Fatalf("Eval() = %s, %v, want halted", res.State, res.Err)
	}
	if got, want := out.String(), "LOGNUM 2\nLOGNUM 1\nLOGNUM 0\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if got, want := e.Image().Contents(image.StackData), []vm.Word{0, start + 2}; !reflect.DeepEqual(got, want) {
		t.Errorf("data stack = %v, want %v", got, want)
	}
	if pc, next := e.Image().PC(), e.Image().Region(image.RegionCode).Next; pc != next {
		t.Errorf("pc = %d, want %d", pc, next)
	}
}

// TestEvalDefinitions tests defining words with sys.reg, including a
// word used before its definition.
func TestEvalDefinitions(t *testing.T) {
	var out bytes.Buffer
	e := newExecutor(t, &out, DefaultConfig())

	if res := eval(t, e, `[ dup * ] "square" sys.reg`); res.State != vm.Halted {
		t.Fatalf("define square = %s, %v", res.State, res.Err)
	}
	if res := eval(t, e, "5 square sys.lognum"); res.State != vm.Halted {
		t.Fatalf("call square = %s, %v", res.State, res.Err)
	}

	early := e.Image().Region(image.RegionCode).Next
	res := eval(t, e, "2 twice sys.lognum")
	if res.State != vm.Fault || !errors.Is(res.Err, vm.ErrUnresolvedCall) {
		t.Fatalf("call twice = %s, %v, want fault, ErrUnresolvedCall", res.State, res.Err)
	}
	e.Image().Reset(image.StackData)

	if res := eval(t, e, `[ dup + ] "twice" sys.reg`); res.State != vm.Halted {
		t.Fatalf("define twice = %s, %v", res.State, res.Err)
	}
	e.Image().SetPC(early)
	if res := e.Run(context.Background()); res.State != vm.Halted {
		t.Fatalf("rerun = %s, %v", res.State, res.Err)
	}

	if got, want := out.String(), "LOGNUM 25\nLOGNUM 4\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

// TestEvalStrings tests string literals reaching the host.
func TestEvalStrings(t *testing.T) {
	var out bytes.Buffer
	e := newExecutor(t, &out, DefaultConfig())

	if res := eval(t, e, `"hello world" sys.logstr 1 2 sys.logstack`); res.State != vm.Halted {
		t.Fatalf("Eval() = %s, %v", res.State, res.Err)
	}
	if got, want := out.String(), "LOGSTR \"hello world\"\nLOGSTACK [1 2]\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

// TestEvalAssemblyError tests both assembly failure policies.
func TestEvalAssemblyError(t *testing.T) {
	for _, rollback := range []bool{false, true} {
		cfg := DefaultConfig()
		cfg.RollbackOnError = rollback
		e := newExecutor(t, &bytes.Buffer{}, cfg)
		img := e.Image()
		before := img.Header()

		_, err := e.Eval(context.Background(), []byte(`1 [ newname "str" #`))
		if !errors.Is(err, ErrAssemblyFailed) || !errors.Is(err, asm.ErrMalformedToken) {
			t.Fatalf("rollback=%v: Eval() error = %v, want ErrAssemblyFailed and ErrMalformedToken", rollback, err)
		}

		after := img.Header()
		if rollback {
			if after.Code != before.Code || after.Index != before.Index || after.Heap != before.Heap {
				t.Errorf("rollback=%v: regions moved from %+v to %+v", rollback, before, after)
			}
			if after.Asm.Top != before.Asm.Top {
				t.Errorf("rollback=%v: asm top = %d, want %d", rollback, after.Asm.Top, before.Asm.Top)
			}
			if w := img.Words()[before.Code.Next]; w != 0 {
				t.Errorf("rollback=%v: discarded code word = 0x%x, want 0", rollback, w)
			}
		} else {
			if got := after.Code.Next - before.Code.Next; got != 7 {
				t.Errorf("rollback=%v: code grew by %d, want 7", rollback, got)
			}
			if after.Asm.Top != before.Asm.Top+1 {
				t.Errorf("rollback=%v: asm top = %d, want %d", rollback, after.Asm.Top, before.Asm.Top+1)
			}
		}
		if after.PC != before.PC {
			t.Errorf("rollback=%v: pc = %d, want %d", rollback, after.PC, before.PC)
		}
	}
}

// TestRollbackReopensBlock tests that undoing a line which closed an
// earlier block leaves that block open and closable.
func TestRollbackReopensBlock(t *testing.T) {
	tests := []struct {
		name string
		bad  string
	}{
		{"close", "2 ] #"},
		{"close and reopen", "2 ] [ 3 #"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.RollbackOnError = true
			e := newExecutor(t, &bytes.Buffer{}, cfg)
			img := e.Image()

			start, err := e.Assemble([]byte("[ 1"))
			if err != nil {
				t.Fatalf("Assemble() failed: %v", err)
			}
			if _, err := e.Assemble([]byte(tt.bad)); !errors.Is(err, ErrAssemblyFailed) {
				t.Fatalf("Assemble(%q) error = %v, want ErrAssemblyFailed", tt.bad, err)
			}
			if w := img.Words()[start]; w != vm.Encode(vm.OpBlock, 0) {
				t.Errorf("placeholder = 0x%x, want open block", w)
			}
			if got, want := img.Contents(image.StackAsm), []image.Word{start}; !reflect.DeepEqual(got, want) {
				t.Errorf("asm stack = %v, want %v", got, want)
			}

			if _, err := e.Assemble([]byte("2 ]")); err != nil {
				t.Fatalf("Assemble() after rollback failed: %v", err)
			}
			end := img.Region(image.RegionCode).Next
			if w := img.Words()[start]; w != vm.Encode(vm.OpBlock, end) {
				t.Errorf("block = 0x%x, want block to %d", w, end)
			}
			if d := img.Stack(image.StackAsm).Depth(); d != 0 {
				t.Errorf("asm depth = %d, want 0", d)
			}
		})
	}
}

// TestStepLimit tests that a runaway loop stops and can be resumed.
func TestStepLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StepLimit = 50
	e := newExecutor(t, &bytes.Buffer{}, cfg)

	res := eval(t, e, "1 [ 1 ] !")
	if res.State != vm.Suspend || !errors.Is(res.Err, ErrStepLimit) {
		t.Fatalf("Eval() = %s, %v, want suspend, ErrStepLimit", res.State, res.Err)
	}
	if res.Steps == 0 {
		t.Error("Steps = 0, want progress before the limit")
	}
	if !e.Meter().IsExhausted() {
		t.Error("meter should be exhausted")
	}

	pc := e.Image().PC()
	res = e.Run(context.Background())
	if !errors.Is(res.Err, ErrStepLimit) || res.Steps != 0 {
		t.Fatalf("Run() without reset = %d steps, %v, want 0, ErrStepLimit", res.Steps, res.Err)
	}
	e.Meter().Reset()
	res = e.Run(context.Background())
	if res.State != vm.Suspend || !errors.Is(res.Err, ErrStepLimit) {
		t.Fatalf("Run() = %s, %v, want suspend, ErrStepLimit", res.State, res.Err)
	}
	if e.Image().PC() == pc && res.Steps == 0 {
		t.Error("Run() made no progress")
	}
}

// TestContextCancel tests that a done context stops the run before any step.
func TestContextCancel(t *testing.T) {
	e := newExecutor(t, &bytes.Buffer{}, DefaultConfig())
	start, err := e.Assemble([]byte("1 2 +"))
	if err != nil {
		t.Fatalf("Assemble() failed: %v", err)
	}
	e.Image().SetPC(start)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := e.Run(ctx)
	if res.State != vm.Suspend || !errors.Is(res.Err, context.Canceled) {
		t.Errorf("Run() = %s, %v, want suspend, context.Canceled", res.State, res.Err)
	}
	if res.Steps != 0 || e.Image().PC() != start {
		t.Errorf("Run() took %d steps to pc %d, want 0 at %d", res.Steps, e.Image().PC(), start)
	}

	if res := e.Run(context.Background()); res.State != vm.Halted {
		t.Errorf("resumed Run() = %s, %v, want halted", res.State, res.Err)
	}
}

// TestSyscallSuspendResume tests a syscall that asks to be retried.
func TestSyscallSuspendResume(t *testing.T) {
	img, err := image.Alloc(image.DefaultConfig())
	if err != nil {
		t.Fatalf("Alloc() failed: %v", err)
	}
	ready := false
	reg := host.NewRegistry()
	reg.Register(30, "", host.SyscallFunc(func(img *image.Image, _ interface{}) (vm.Word, error) {
		if !ready {
			return 1, nil
		}
		return 0, img.PushData(42)
	}))
	e, err := New(img, reg, DefaultConfig())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	start, err := e.Assemble([]byte("7"))
	if err != nil {
		t.Fatalf("Assemble() failed: %v", err)
	}
	next := img.Region(image.RegionCode).Next
	img.Poke(next, vm.Encode(vm.OpSyscall, 30))
	img.SetNext(image.RegionCode, next+1)
	img.SetPC(start)

	res := e.Run(context.Background())
	if res.State != vm.Suspend || res.Err != nil {
		t.Fatalf("Run() = %s, %v, want suspend", res.State, res.Err)
	}
	if pc := img.PC(); pc != next {
		t.Errorf("pc = %d, want %d", pc, next)
	}

	ready = true
	if res := e.Run(context.Background()); res.State != vm.Halted {
		t.Fatalf("resumed Run() = %s, %v, want halted", res.State, res.Err)
	}
	if got := img.Contents(image.StackData); !reflect.DeepEqual(got, []vm.Word{7, 42}) {
		t.Errorf("data stack = %v, want [7 42]", got)
	}
}

// TestSyscallFault tests that a failing syscall faults the run.
func TestSyscallFault(t *testing.T) {
	e := newExecutor(t, &bytes.Buffer{}, DefaultConfig())
	res := eval(t, e, "sys.lognum")
	if res.State != vm.Fault {
		t.Fatalf("Eval() = %s, want fault", res.State)
	}
	if !errors.Is(res.Err, ErrSyscallFailed) || !errors.Is(res.Err, image.ErrStackUnderflow) {
		t.Errorf("Err = %v, want ErrSyscallFailed and ErrStackUnderflow", res.Err)
	}
}

// TestNoRegistry tests that syscalls fault without a registry.
func TestNoRegistry(t *testing.T) {
	img, err := image.Alloc(image.DefaultConfig())
	if err != nil {
		t.Fatalf("Alloc() failed: %v", err)
	}
	img.SetInstruction([]byte("out"), vm.Encode(vm.OpSyscall, 10))
	e, err := New(img, nil, DefaultConfig())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	res := eval(t, e, "1 out")
	if res.State != vm.Fault || !errors.Is(res.Err, vm.ErrNoCallback) {
		t.Errorf("Eval() = %s, %v, want fault, ErrNoCallback", res.State, res.Err)
	}
}

// TestNewInvalidImage tests that New validates the image.
func TestNewInvalidImage(t *testing.T) {
	if _, err := New(image.New(make([]vm.Word, 2048)), nil, DefaultConfig()); !errors.Is(err, image.ErrInvalidImage) {
		t.Errorf("New() = %v, want ErrInvalidImage", err)
	}
}

// TestTrace tests that tracing logs each instruction.
func TestTrace(t *testing.T) {
	var logs bytes.Buffer
	cfg := DefaultConfig()
	cfg.Trace = true
	cfg.Logger = log.New(&logs, "", 0)
	e := newExecutor(t, &bytes.Buffer{}, cfg)

	eval(t, e, "3 4 + 0 /")
	got := logs.String()
	for _, want := range []string{"push 3", "push 4", "op +", "op /", "fault", "division by zero"} {
		if !strings.Contains(got, want) {
			t.Errorf("log missing %q:\n%s", want, got)
		}
	}
}

// TestSnapshotResume tests that a snapshot taken mid-run resumes in a
// fresh image.
func TestSnapshotResume(t *testing.T) {
	var out bytes.Buffer
	cfg := DefaultConfig()
	cfg.StepLimit = 6
	e := newExecutor(t, &out, cfg)

	res := eval(t, e, "1 2 3 4 5 6 7 8 + + + + + + + sys.lognum")
	if res.State != vm.Suspend || !errors.Is(res.Err, ErrStepLimit) {
		t.Fatalf("Eval() = %s, %v, want suspend, ErrStepLimit", res.State, res.Err)
	}
	data, err := e.Image().MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() failed: %v", err)
	}

	img := image.New(make([]vm.Word, e.Image().Size()))
	if err := img.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary() failed: %v", err)
	}
	if img.Fingerprint() != e.Image().Fingerprint() {
		t.Fatal("restored image fingerprint differs")
	}
	var out2 bytes.Buffer
	e2, err := New(img, host.Standard(&out2), DefaultConfig())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if res := e2.Run(context.Background()); res.State != vm.Halted {
		t.Fatalf("Run() = %s, %v, want halted", res.State, res.Err)
	}
	if got := out2.String(); got != "LOGNUM 36\n" {
		t.Errorf("output = %q, want %q", got, "LOGNUM 36\n")
	}
	if out.Len() != 0 {
		t.Errorf("first executor logged %q before the limit", out.String())
	}
}

// TestStepMeter tests the step meter.
func TestStepMeter(t *testing.T) {
	m := NewStepMeter(10)
	if m.Remaining() != 10 {
		t.Errorf("Remaining() = %d, want 10", m.Remaining())
	}
	if err := m.Consume(4); err != nil {
		t.Errorf("Consume(4) failed: %v", err)
	}
	if m.Consumed() != 4 || m.Remaining() != 6 {
		t.Errorf("Consumed() = %d, Remaining() = %d, want 4, 6", m.Consumed(), m.Remaining())
	}
	if err := m.Consume(7); err != ErrStepLimit {
		t.Errorf("Consume(7) = %v, want ErrStepLimit", err)
	}
	if !m.IsExhausted() {
		t.Error("IsExhausted() = false after overrun")
	}
	m.Reset()
	if m.Remaining() != 10 || m.Consumed() != 0 {
		t.Errorf("after Reset: Remaining() = %d, Consumed() = %d", m.Remaining(), m.Consumed())
	}

	unlimited := NewStepMeter(0)
	if err := unlimited.Consume(1 << 40); err != nil {
		t.Errorf("disabled Consume() = %v, want nil", err)
	}
	if unlimited.IsExhausted() {
		t.Error("disabled meter should never be exhausted")
	}
}

// TestInstructionCost tests per-opcode costs.
func TestInstructionCost(t *testing.T) {
	tests := []struct {
		instr vm.Word
		want  uint64
	}{
		{vm.Encode(vm.OpPushInt, 1), CostDefault},
		{vm.Encode(vm.OpSimple, '+'), CostDefault},
		{vm.Encode(vm.OpSyscall, 10), CostSyscall},
		{vm.Encode(vm.OpCallIndex, 30), CostCall},
		{vm.Encode(vm.OpLoop, 0), CostCall},
	}
	for _, tt := range tests {
		if got := instructionCost(tt.instr); got != tt.want {
			t.Errorf("instructionCost(%s) = %d, want %d", vm.Disassemble(tt.instr), got, tt.want)
		}
	}
}
