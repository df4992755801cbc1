// Package library builds the static-object host API roots scripts see
// (spec §6): Global, GPIO, JSON, Base64, Crypto, Net (TCP/UDP proto),
// IPAddr, FS, Task, Timer, and Iterator. Each root is an
// object.StaticObject of native functions, grounded on the matching
// teacher builtin for its domain where one exists (JSON, Base64,
// Crypto) and on the host interfaces (internal/host) for everything
// that needs a real platform collaborator (FS, Net, GPIO).
package library

import (
	"github.com/m8rscript/m8r/internal/atom"
	"github.com/m8rscript/m8r/internal/diag"
	"github.com/m8rscript/m8r/internal/gc"
	"github.com/m8rscript/m8r/internal/object"
	"github.com/m8rscript/m8r/internal/value"
	"github.com/m8rscript/m8r/internal/vm"
)

// define adds a native function entry to a static root under name.
func define(tbl *atom.Table, root *object.StaticObject, name string, fn vm.NativeFunc) {
	root.Define(tbl.Atomize(name), value.NewNativeFunction(fn))
}

// defineValue adds a plain (non-function) entry, used for enum-like
// constants such as Timer.Once/Timer.Repeating.
func defineValue(tbl *atom.Table, root *object.StaticObject, name string, v value.Value) {
	root.Define(tbl.Atomize(name), v)
}

// defineChild nests one static root inside another (e.g. Global.JSON).
func defineChild(tbl *atom.Table, parent *object.StaticObject, name string, child *object.StaticObject) {
	parent.Define(tbl.Atomize(name), value.NewStaticObject(child))
}

// argString coerces args[i] to its script-visible string form, using
// the calling VM's own Stringify so StringLiteral, heap String, and
// scalar operands are all handled identically to how the language
// itself stringifies a value.
func argString(v *vm.VM, args []value.Value, i int) (string, bool) {
	if i < 0 || i >= len(args) {
		return "", false
	}
	return v.Stringify(args[i]), true
}

func argInt(args []value.Value, i int, def int32) int32 {
	if i < 0 || i >= len(args) || args[i].Type() != value.Integer {
		return def
	}
	return args[i].AsInt()
}

func argBool(args []value.Value, i int, def bool) bool {
	if i < 0 || i >= len(args) || args[i].Type() != value.Bool {
		return def
	}
	return args[i].AsBool()
}

// heapString allocates a Go string as a heap String value, the result
// shape every string-returning native function here uses.
func heapString(v *vm.VM, s string) value.Value {
	h := v.Runtime().Heap.AllocString(value.NewHeapString(s))
	return value.NewString(h)
}

// newMethodObject allocates a fresh, proto-less MaterObject under
// typeName and binds each (name, fn) pair as an own NativeFunction
// property, the pattern every host-handle wrapper below uses to expose
// a Go value (a host.File, a timer.Timer, a host.TCPSocket...) to
// scripts as a plain object with methods.
func newMethodObject(v *vm.VM, typeName atom.Atom, methods map[string]vm.NativeFunc) value.Value {
	obj := object.NewMaterObject(typeName)
	for name, fn := range methods {
		obj.SetProperty(v.Runtime().Atoms.Atomize(name), value.NewNativeFunction(fn), object.AlwaysAdd)
	}
	h := v.Runtime().Heap.AllocObject(obj, gc.MemMaterObject)
	return value.NewObject(h)
}

func ok(result value.Value) object.CallReturnValue   { return object.NativeResult(result) }
func okInt(n int32) object.CallReturnValue            { return object.NativeResult(value.NewInt(n)) }
func okBool(b bool) object.CallReturnValue            { return object.NativeResult(value.NewBool(b)) }
func okUndef() object.CallReturnValue                 { return object.NativeResult(value.Undef) }
func fail(code diag.Code) object.CallReturnValue      { return object.CallErrorResult(int(code)) }
