package vm

import (
	"github.com/m8rscript/m8r/internal/atom"
	"github.com/m8rscript/m8r/internal/diag"
	"github.com/m8rscript/m8r/internal/gc"
	"github.com/m8rscript/m8r/internal/object"
	"github.com/m8rscript/m8r/internal/value"
)

// ctorCall carries the spec §4.6 NEW bookkeeping a frame needs: the
// freshly allocated `this` to substitute for an explicit-return-less
// constructor ("If the target's constructor returns no value, the
// fresh object is pushed; otherwise the returned value is pushed").
type ctorCall struct {
	fresh value.Value
}

// enterClosure pushes a new frame for clo, laying out argc already-
// pushed arguments per spec §4.5's register addressing rules. ctor is
// non-nil when this call originated from NEW.
func (vm *VM) enterClosure(clo *object.Closure, this value.Value, argc int, ctor *ctorCall) {
	fn := clo.Fn
	base := len(vm.Stack) - argc
	f := &frame{fn: fn, closure: clo, pc: 0, frameBase: base, this: this, argCount: argc}
	if argc > fn.FormalParamCount {
		f.localOffset = argc - fn.FormalParamCount
	}
	if ctor != nil {
		f.isCtor = true
		f.ctorThis = ctor.fresh
	}
	n := f.localsAdded()
	for i := 0; i < n; i++ {
		vm.Stack = append(vm.Stack, value.Undef)
	}
	vm.frames = append(vm.frames, f)
}

// callNative invokes a host/library function synchronously (spec §4.6:
// "NativeFunction call is synchronous and returns its CallReturnValue
// directly"), pops its arguments, and pushes exactly one result value
// so the call site's unconditional POP always has something to read.
func (vm *VM) callNative(nf NativeFunc, this value.Value, argc int, ctor *ctorCall) {
	args := make([]value.Value, argc)
	copy(args, vm.Stack[len(vm.Stack)-argc:])
	vm.Stack = vm.Stack[:len(vm.Stack)-argc]

	ret := nf(vm, this, args)
	result := value.Undef
	switch ret.Kind {
	case object.CallReturnCount:
		if ret.Count > 0 {
			result = ret.Value
		}
	case object.CallError:
		vm.runtimeError(diag.Code(ret.Code), "native call failed")
	}
	if ctor != nil && result.IsUndefined() {
		result = ctor.fresh
	}
	vm.push(result)
}

// dispatchCall is the shared target of CALL, CALLPROP, and NEW: resolve
// callee to a closure or native function and enter it. ctor is non-nil
// only for NEW.
func (vm *VM) dispatchCall(callee, this value.Value, argc int, ctor *ctorCall) {
	switch callee.Type() {
	case value.NativeFunction:
		nf, ok := callee.AsRef().(NativeFunc)
		if !ok {
			vm.callError(argc, "value is not callable")
			return
		}
		vm.callNative(nf, this, argc, ctor)
	case value.Object:
		o, ok := vm.rt.Heap.GetObject(callee.AsObjectHandle())
		if !ok {
			vm.callError(argc, "value is not callable")
			return
		}
		clo, ok := o.(*object.Closure)
		if !ok {
			vm.callError(argc, "value is not callable")
			return
		}
		effectiveThis := this
		if effectiveThis.IsUndefined() && !clo.BoundThis.IsUndefined() {
			effectiveThis = clo.BoundThis
		}
		vm.enterClosure(clo, effectiveThis, argc, ctor)
	default:
		vm.callError(argc, "value is not callable")
	}
}

// callError drops argc already-pushed arguments, reports
// diag.CannotCall, and pushes Undefined so the call site's POP still
// has a slot to read (spec §4.5: runtime errors never unwind the
// script stack).
func (vm *VM) callError(argc int, format string, args ...interface{}) {
	if argc <= len(vm.Stack) {
		vm.Stack = vm.Stack[:len(vm.Stack)-argc]
	}
	vm.runtimeError(diag.CannotCall, format, args...)
	vm.push(value.Undef)
}

// construct implements NEW: allocate a fresh MaterObject whose proto is
// the constructor, then call the constructor bound to it.
func (vm *VM) construct(ctorVal value.Value, typeName atom.Atom, argc int) {
	fresh := vm.allocObject(typeName)
	if o, ok := vm.rt.Heap.GetObject(fresh.AsObjectHandle()); ok {
		if mo, ok := o.(*object.MaterObject); ok {
			mo.Proto = ctorVal
		}
	}
	vm.dispatchCall(ctorVal, fresh, argc, &ctorCall{fresh: fresh})
}

// ctorTypeName picks the type-name atom for NEW's fresh object: a
// closure's own name if known, else a generic "Object" atom.
func (vm *VM) ctorTypeName(ctorVal value.Value) atom.Atom {
	if ctorVal.Type() == value.Object {
		if o, ok := vm.rt.Heap.GetObject(ctorVal.AsObjectHandle()); ok {
			if n := o.TypeName(); n != atom.NoAtom {
				return n
			}
		}
	}
	return vm.rt.Atoms.Atomize("Object")
}

// doReturn implements RET/RETI: close any open up-values captured from
// this frame, pop it, and push exactly one surfaced result (spec
// §4.5's "locals_added plus the call's argc are popped together";
// §4.6's constructor-result substitution for NEW).
func (vm *VM) doReturn(n int) {
	f := vm.current()
	var vals []value.Value
	if n > 0 {
		start := len(vm.Stack) - n
		if start < f.frameBase {
			start = f.frameBase
		}
		vals = append(vals, vm.Stack[start:]...)
	}

	vm.closeUpvaluesFrom(f.frameBase)
	vm.Stack = vm.Stack[:f.frameBase]
	vm.frames = vm.frames[:len(vm.frames)-1]

	result := value.Undef
	if len(vals) > 0 {
		result = vals[0]
	}
	if f.isCtor && result.IsUndefined() {
		result = f.ctorThis
	}
	vm.push(result)
}

// execClosure implements CLOSURE: materialize a heap Closure from a
// compile-time FunctionTemplate, capturing up-values per spec §4.3/
// §4.5's discipline (FrameDistance 1 reaches into the currently
// executing frame's own registers; anything deeper reuses that frame's
// own closure's already-resolved UpValue box).
func (vm *VM) execClosure(f *frame, tmpl value.Value) value.Value {
	tmplFn, ok := tmpl.AsRef().(*object.Function)
	if !ok {
		return vm.runtimeError(diag.RuntimeInvalidOperand, "CLOSURE operand is not a function template")
	}
	captured := make([]*object.UpValue, len(tmplFn.UpValues))
	for i, d := range tmplFn.UpValues {
		if d.FrameDistance == 1 {
			captured[i] = vm.findOrCreateOpenUpValue(f.regIndex(d.Index))
		} else if f.closure != nil && d.Index < len(f.closure.Captured) {
			captured[i] = f.closure.Captured[d.Index]
		} else {
			captured[i] = object.NewOpenUpValue(0)
		}
	}
	clo := &object.Closure{Fn: tmplFn, Captured: captured, BoundThis: value.Undef}
	h := vm.rt.Heap.AllocObject(clo, gc.MemClosure)
	return value.NewObject(h)
}

// findOrCreateOpenUpValue returns the existing open UpValue for
// stackIndex if the VM already has one (so two closures capturing the
// same local share one box), or creates and registers a new one.
func (vm *VM) findOrCreateOpenUpValue(stackIndex int) *object.UpValue {
	for _, u := range vm.openUpvalues {
		if u.State == object.UpValueOpen && u.StackIndex == stackIndex {
			return u
		}
	}
	u := object.NewOpenUpValue(stackIndex)
	vm.openUpvalues = append(vm.openUpvalues, u)
	return u
}

// closeUpvaluesFrom closes every open UpValue whose captured stack
// index lies at or above base (a frame about to be popped), copying
// its live value out of the stack before the slot disappears (spec
// §4.5's up-value discipline).
func (vm *VM) closeUpvaluesFrom(base int) {
	kept := vm.openUpvalues[:0]
	for _, u := range vm.openUpvalues {
		if u.State == object.UpValueOpen && u.StackIndex >= base {
			u.Close(vm.Stack[u.StackIndex])
			continue
		}
		kept = append(kept, u)
	}
	vm.openUpvalues = kept
}
