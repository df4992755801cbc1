package vm

import (
	"fmt"

	"github.com/m8rscript/m8r/internal/atom"
	"github.com/m8rscript/m8r/internal/bytecode"
	"github.com/m8rscript/m8r/internal/diag"
	"github.com/m8rscript/m8r/internal/object"
	"github.com/m8rscript/m8r/internal/value"
)

// MaxRunTimeErrors is the default error-count threshold past which a
// VM requests termination rather than continuing best-effort (spec
// §4.5); Runtime.MaxRunTimeErrors carries the effective, possibly
// configured value.
const MaxRunTimeErrors = 30

// Printer receives the VM's formatted runtime-error and console-print
// output. Tests substitute a recording Printer; cmd/m8r wires stdout.
type Printer interface {
	Print(line string)
}

// NativeFunc is a host- or library-provided callable (spec §4.6's
// "NativeFunction call is synchronous and returns its CallReturnValue
// directly"). args is a fresh slice snapshot of the arguments already
// popped off the operand stack; implementations may not retain it
// across calls.
type NativeFunc func(vm *VM, this value.Value, args []value.Value) object.CallReturnValue

// VM is one cooperative execution context over a shared Runtime (spec
// §4.5). One Task (internal/scheduler) owns exactly one VM.
type VM struct {
	rt *Runtime

	Stack    []value.Value
	frames   []*frame
	literals []string

	openUpvalues []*object.UpValue // sorted by StackIndex descending is not required; closeUpvaluesFrom scans linearly

	evq          eventQueue
	events       []eventRecord
	runningEvent bool

	yieldRequested      bool
	terminateRequested  bool
	errorCount          int
	lastError           *diag.Error

	printer Printer
}

// NewVM creates a VM over rt and registers it as a GC root source.
func NewVM(rt *Runtime, printer Printer) *VM {
	v := &VM{rt: rt, printer: printer}
	rt.registerVM(v)
	return v
}

// Runtime returns the owning Runtime.
func (vm *VM) Runtime() *Runtime { return vm.rt }

// current returns the active frame, or nil if the VM is idle.
func (vm *VM) current() *frame {
	if len(vm.frames) == 0 {
		return nil
	}
	return vm.frames[len(vm.frames)-1]
}

// push appends v to the operand stack (PUSH's target, and internal call
// setup).
func (vm *VM) push(v value.Value) { vm.Stack = append(vm.Stack, v) }

// pop removes and returns the top of the operand stack.
func (vm *VM) pop() value.Value {
	n := len(vm.Stack) - 1
	v := vm.Stack[n]
	vm.Stack = vm.Stack[:n]
	return v
}

func (vm *VM) readReg(r int) value.Value {
	f := vm.current()
	return vm.Stack[f.regIndex(r)]
}

func (vm *VM) writeReg(r int, v value.Value) {
	f := vm.current()
	vm.Stack[f.regIndex(r)] = v
}

// readRK decodes one RK operand (register or constant, possibly with an
// inline atom payload) starting at code[pos], returning its value and
// the position just past it (spec §4.4).
func (vm *VM) readRK(f *frame, code []byte, pos int) (value.Value, int) {
	rk := code[pos]
	pos++
	if bytecode.IsRegister(rk) {
		return vm.Stack[f.regIndex(int(rk))], pos
	}
	switch rk {
	case bytecode.ConstUndefined:
		return value.Undef, pos
	case bytecode.ConstNull:
		return value.Nul, pos
	case bytecode.ConstInt0:
		return value.NewInt(0), pos
	case bytecode.ConstInt1:
		return value.NewInt(1), pos
	case bytecode.ConstAtomShort:
		a := atom.Atom(code[pos])
		return value.NewID(a), pos + 1
	case bytecode.ConstAtomLong:
		a := atom.Atom(bytecode.ReadUN(code, pos))
		return value.NewID(a), pos + 2
	default:
		idx := bytecode.ConstantIndex(rk) - bytecode.NumBuiltinConstants
		return f.fn.Constants[idx], pos
	}
}

// skipRK advances pos past one RK operand without decoding it. Nothing
// in the package calls it at present.
func skipRK(code []byte, pos int) int {
	return pos + bytecode.RKSize(code, pos)
}

// runtimeError records a spec §4.5 "error handling in execution" event:
// print, count, and request termination past MaxRunTimeErrors. Returns
// Undefined so call sites can use it as an instruction's result and keep
// dispatching (errors never unwind the script stack).
func (vm *VM) runtimeError(code diag.Code, format string, args ...interface{}) value.Value {
	line := 0
	if f := vm.current(); f != nil {
		line = f.line
	}
	e := diag.New(code, line, format, args...)
	vm.lastError = e
	vm.errorCount++
	if vm.printer != nil {
		vm.printer.Print(e.Error())
	} else {
		fmt.Println(e.Error())
	}
	if vm.errorCount >= vm.rt.MaxRunTimeErrors {
		vm.terminateRequested = true
	}
	return value.Undef
}

// RequestYield is called by the scheduler's time-slice timer on expiry
// (spec §4.8's "calls request_yield()"). The dispatcher observes the
// flag at the next instruction boundary.
func (vm *VM) RequestYield() { vm.yieldRequested = true }

// RequestTerminate asks the VM to stop at the next instruction boundary
// without completing the current call stack.
func (vm *VM) RequestTerminate() { vm.terminateRequested = true }

// gcRoots is this VM's gc.RootSource: the active call stack's functions
// (via their constant pools), `this` of every frame, the live portion of
// the operand stack, and the queued events (spec §4.7 step 2).
func (vm *VM) gcRoots(visit func(value.Value)) {
	for _, v := range vm.Stack {
		visit(v)
	}
	for _, f := range vm.frames {
		visit(f.this)
		for _, c := range f.fn.Constants {
			visit(c)
		}
	}
	for _, ev := range vm.events {
		visit(ev.fn)
		visit(ev.this)
		for _, a := range ev.args {
			visit(a)
		}
	}
	for _, u := range vm.openUpvalues {
		if u.State == object.UpValueClosed {
			visit(u.Value)
		}
	}
}
