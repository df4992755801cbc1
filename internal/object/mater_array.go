package object

import (
	"github.com/m8rscript/m8r/internal/atom"
	"github.com/m8rscript/m8r/internal/value"
)

// MaterArray is an integer-indexed Value vector. Insertion order is
// preserved and the array only grows (spec §3.4); it has no resize or
// shrink operation.
type MaterArray struct {
	elems      []value.Value
	lengthAtom atom.Atom
}

// NewMaterArray creates an array, optionally pre-populated.
func NewMaterArray(lengthAtom atom.Atom, elems ...value.Value) *MaterArray {
	a := &MaterArray{lengthAtom: lengthAtom}
	a.elems = append(a.elems, elems...)
	return a
}

func (a *MaterArray) TypeName() atom.Atom { return 0 }

// GetProperty only answers the synthetic "length" property; all other
// property reads on an array miss (the VM falls through to Array's
// static prototype for everything else, grounded on spec §3.4's "length
// property reflects size").
func (a *MaterArray) GetProperty(name atom.Atom) (value.Value, bool) {
	if name == a.lengthAtom {
		return value.NewInt(int32(len(a.elems))), true
	}
	return value.Undef, false
}

// SetProperty always fails: "length" is read-only and arrays have no
// other writable properties.
func (a *MaterArray) SetProperty(atom.Atom, value.Value, PropertyMode) bool { return false }

// GetElement reads a non-negative integer index (spec §4.6).
func (a *MaterArray) GetElement(idx int) (value.Value, bool) {
	if idx < 0 || idx >= len(a.elems) {
		return value.Undef, false
	}
	return a.elems[idx], true
}

// SetElement writes idx under the given mode. AlwaysAdd at idx ==
// len(elems) is the array-append idiom (spec §4.6); AlwaysAdd beyond
// that pads with Undefined. NeverAdd fails past the current length.
func (a *MaterArray) SetElement(idx int, v value.Value, mode PropertyMode) bool {
	if idx < 0 {
		return false
	}
	if idx < len(a.elems) {
		a.elems[idx] = v
		return true
	}
	if mode == NeverAdd {
		return false
	}
	for len(a.elems) < idx {
		a.elems = append(a.elems, value.Undef)
	}
	a.elems = append(a.elems, v)
	return true
}

// Append is the AppendELT opcode's idiom: set_element(length, v, AlwaysAdd).
func (a *MaterArray) Append(v value.Value) { a.elems = append(a.elems, v) }

// Len returns the element count.
func (a *MaterArray) Len() int { return len(a.elems) }

// Elements returns the backing slice for iteration (for-in, builtins).
// Callers must not retain it across mutation.
func (a *MaterArray) Elements() []value.Value { return a.elems }

func (a *MaterArray) GCMark(visit func(value.Value)) {
	for _, v := range a.elems {
		visit(v)
	}
}
