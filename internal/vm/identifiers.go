package vm

import (
	"github.com/m8rscript/m8r/internal/atom"
	"github.com/m8rscript/m8r/internal/diag"
	"github.com/m8rscript/m8r/internal/object"
	"github.com/m8rscript/m8r/internal/value"
)

// loadRef implements LOADREFK's identifier resolution (spec §4.5): look
// in `this`'s own properties, then the top-level Program, then Global.
// First match wins.
func (vm *VM) loadRef(f *frame, name atom.Atom) value.Value {
	if f.this.Type() == value.Object {
		if o, ok := vm.rt.Heap.GetObject(f.this.AsObjectHandle()); ok {
			if v, ok := o.GetProperty(name); ok {
				return v
			}
		}
	} else if v, ok := vm.getProperty(f.this, name); ok {
		return v
	}
	if v, ok := vm.getProperty(vm.rt.ProgramValue(), name); ok {
		return v
	}
	if v, ok := vm.rt.Global.GetProperty(name); ok {
		return v
	}
	return vm.runtimeError(diag.RuntimePropertyDoesNotExist, "Property '%s' does not exist", vm.rt.Atoms.StringFrom(name))
}

// storeRef implements STOREFK: write to the first of `this` and the
// Program that already defines the property (NeverAdd semantics at
// each step); the Global static root is not written. Reports a runtime
// error if neither does.
func (vm *VM) storeRef(f *frame, name atom.Atom, v value.Value) {
	if vm.setProperty(f.this, name, v, object.NeverAdd) {
		return
	}
	if vm.setProperty(vm.rt.ProgramValue(), name, v, object.NeverAdd) {
		return
	}
	vm.runtimeError(diag.RuntimePropertyDoesNotExist, "Property '%s' does not exist", vm.rt.Atoms.StringFrom(name))
}
