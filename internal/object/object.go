// Package object implements the property-bearing heap entities of the
// object model (spec §3.4-3.7): plain objects, arrays, functions,
// closures, and read-only static object tables, plus the UpValue
// capture cell closures use.
package object

import (
	"github.com/m8rscript/m8r/internal/atom"
	"github.com/m8rscript/m8r/internal/value"
)

// PropertyMode controls how SetProperty treats a missing binding
// (spec §4.6).
type PropertyMode int

const (
	// AlwaysAdd appends a new binding regardless of whether one exists.
	AlwaysAdd PropertyMode = iota
	// NeverAdd fails if the property is absent.
	NeverAdd
	// AddIfNeeded creates the binding on first write, otherwise updates.
	AddIfNeeded
)

// Object is the minimal capability surface every heap entity in the
// object model exposes. Element access lives on MaterArray
// (GetElement/SetElement) rather than on this interface, and
// Call/CallProperty/Construct dispatch is done by the vm package, which
// type-switches on the concrete type (Function, Closure, ...), since it
// needs VM-level context the object package does not depend on.
type Object interface {
	TypeName() atom.Atom
	GetProperty(name atom.Atom) (value.Value, bool)
	SetProperty(name atom.Atom, v value.Value, mode PropertyMode) bool
	// GCMark calls visit once per Value directly reachable from this
	// object (its own properties/elements/captures), letting the GC walk
	// the object graph without knowing each concrete type.
	GCMark(visit func(value.Value))
}
