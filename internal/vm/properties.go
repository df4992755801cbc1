package vm

import (
	"github.com/m8rscript/m8r/internal/atom"
	"github.com/m8rscript/m8r/internal/gc"
	"github.com/m8rscript/m8r/internal/object"
	"github.com/m8rscript/m8r/internal/value"
)

// resolveMaterProto turns a MaterObject's Proto Value into the next
// MaterObject to search, satisfying object.MaterObject.GetPropertyChain's
// resolve callback (the object package has no heap to do this lookup
// itself; see its GetPropertyChain doc comment).
func (vm *VM) resolveMaterProto(v value.Value) (*object.MaterObject, bool) {
	if v.Type() != value.Object {
		return nil, false
	}
	o, ok := vm.rt.Heap.GetObject(v.AsObjectHandle())
	if !ok {
		return nil, false
	}
	m, ok := o.(*object.MaterObject)
	return m, ok
}

// getProperty implements spec §4.6's property read: own map, then proto
// chain, grounded on vm/properties.go's get dispatch.
func (vm *VM) getProperty(base value.Value, name atom.Atom) (value.Value, bool) {
	switch base.Type() {
	case value.Object:
		o, ok := vm.rt.Heap.GetObject(base.AsObjectHandle())
		if !ok {
			return value.Undef, false
		}
		switch mo := o.(type) {
		case *object.MaterObject:
			return mo.GetPropertyChain(name, vm.resolveMaterProto)
		default:
			return o.GetProperty(name)
		}
	case value.StaticObject:
		if s, ok := base.AsRef().(*object.StaticObject); ok {
			return s.GetProperty(name)
		}
	}
	return value.Undef, false
}

// setProperty implements spec §4.6's three write modes, returning false
// on failure (NeverAdd-miss, or a read-only/non-object base).
func (vm *VM) setProperty(base value.Value, name atom.Atom, v value.Value, mode object.PropertyMode) bool {
	if base.Type() != value.Object {
		return false
	}
	o, ok := vm.rt.Heap.GetObject(base.AsObjectHandle())
	if !ok {
		return false
	}
	return o.SetProperty(name, v, mode)
}

// getElement implements array/string indexed reads (spec §4.6), plus
// string-keyed reads of a plain object's properties (o["a b"]).
func (vm *VM) getElement(base, key value.Value) (value.Value, bool) {
	idx := int(toInt(key))
	switch base.Type() {
	case value.Object:
		o, ok := vm.rt.Heap.GetObject(base.AsObjectHandle())
		if !ok {
			return value.Undef, false
		}
		if a, ok := o.(*object.MaterArray); ok {
			return a.GetElement(idx)
		}
		if mo, ok := o.(*object.MaterObject); ok && (key.Type() == value.String || key.Type() == value.StringLiteral) {
			return mo.GetPropertyChain(vm.rt.Atoms.Atomize(vm.Stringify(key)), vm.resolveMaterProto)
		}
	case value.String:
		if s, ok := vm.rt.Heap.GetString(base.AsStringHandle()); ok {
			if b, ok := s.ByteAt(idx); ok {
				return value.NewInt(int32(b)), true
			}
		}
	case value.StringLiteral:
		lit := vm.Stringify(base)
		if idx >= 0 && idx < len(lit) {
			return value.NewInt(int32(lit[idx])), true
		}
	}
	return value.Undef, false
}

// setElement implements array indexed writes, including the
// set_element(length, v, AlwaysAdd) append idiom.
func (vm *VM) setElement(base, key, v value.Value, mode object.PropertyMode) bool {
	if base.Type() != value.Object {
		return false
	}
	o, ok := vm.rt.Heap.GetObject(base.AsObjectHandle())
	if !ok {
		return false
	}
	a, ok := o.(*object.MaterArray)
	if !ok {
		return false
	}
	return a.SetElement(int(toInt(key)), v, mode)
}

// appendElement implements APPENDELT: push v as the array's new last
// element (spec §4.4's APPENDELT opcode, the array-literal-building
// idiom: set_element(length, v, AlwaysAdd)).
func (vm *VM) appendElement(base, v value.Value) bool {
	if base.Type() != value.Object {
		return false
	}
	o, ok := vm.rt.Heap.GetObject(base.AsObjectHandle())
	if !ok {
		return false
	}
	a, ok := o.(*object.MaterArray)
	if !ok {
		return false
	}
	a.Append(v)
	return true
}

// allocArray allocates a fresh, empty MaterArray on the heap (used by
// LOADLITA) and returns it as an Object Value.
func (vm *VM) allocArray() value.Value {
	lengthAtom := vm.rt.Atoms.Atomize("length")
	h := vm.rt.Heap.AllocObject(object.NewMaterArray(lengthAtom), gc.MemMaterArray)
	return value.NewObject(h)
}

// allocObject allocates a fresh, empty MaterObject on the heap (used by
// LOADLITO and NEW) and returns it as an Object Value.
func (vm *VM) allocObject(typeName atom.Atom) value.Value {
	h := vm.rt.Heap.AllocObject(object.NewMaterObject(typeName), gc.MemMaterObject)
	return value.NewObject(h)
}
