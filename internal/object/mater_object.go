package object

import (
	"github.com/m8rscript/m8r/internal/atom"
	"github.com/m8rscript/m8r/internal/value"
)

// MaterObject is a plain ordered Atom->Value map with an optional
// prototype chain and an optional bound native object handle (spec §3.4).
type MaterObject struct {
	typeName atom.Atom

	order []atom.Atom          // insertion order, for enumeration
	props map[atom.Atom]value.Value

	Proto        value.Value // Object/Undefined; consulted on miss
	NativeHandle value.Value // NativeObject/Undefined
}

// NewMaterObject creates an empty object with the given type-name atom.
func NewMaterObject(typeName atom.Atom) *MaterObject {
	return &MaterObject{
		typeName: typeName,
		props:    make(map[atom.Atom]value.Value),
		Proto:    value.Undef,
		NativeHandle: value.Undef,
	}
}

func (o *MaterObject) TypeName() atom.Atom { return o.typeName }

// OwnProperty looks up name in this object's own table only (no proto
// walk); used by STOREFK's "first container that already defines it"
// search and by the prototype-chain walk in GetPropertyChain.
func (o *MaterObject) OwnProperty(name atom.Atom) (value.Value, bool) {
	v, ok := o.props[name]
	return v, ok
}

// GetProperty searches the own table only; the prototype chain is not
// consulted (the object package itself has no heap to resolve Object
// handles against). GetPropertyChain does the chain walk.
func (o *MaterObject) GetProperty(name atom.Atom) (value.Value, bool) {
	return o.OwnProperty(name)
}

// GetPropertyChain walks own -> proto -> proto's proto ..., using
// resolve to turn a Value (expected to be an Object handle) into the
// next *MaterObject, stopping when resolve returns (nil, false).
func (o *MaterObject) GetPropertyChain(name atom.Atom, resolve func(value.Value) (*MaterObject, bool)) (value.Value, bool) {
	cur := o
	seen := map[*MaterObject]bool{}
	for cur != nil && !seen[cur] {
		seen[cur] = true
		if v, ok := cur.props[name]; ok {
			return v, true
		}
		if cur.Proto.IsUndefined() || cur.Proto.IsNull() {
			return value.Undef, false
		}
		next, ok := resolve(cur.Proto)
		if !ok {
			return value.Undef, false
		}
		cur = next
	}
	return value.Undef, false
}

// SetProperty implements the three write modes of spec §4.6. Deletion is
// not supported (no RemoveProperty method exists).
func (o *MaterObject) SetProperty(name atom.Atom, v value.Value, mode PropertyMode) bool {
	_, exists := o.props[name]
	switch mode {
	case NeverAdd:
		if !exists {
			return false
		}
	case AlwaysAdd, AddIfNeeded:
		// both create on demand; AlwaysAdd additionally permits
		// re-declaring an existing binding, which is a no-op here since
		// the map already supports overwrite.
	}
	if !exists {
		o.order = append(o.order, name)
	}
	o.props[name] = v
	return true
}

// Keys returns property names in insertion order.
func (o *MaterObject) Keys() []atom.Atom {
	out := make([]atom.Atom, len(o.order))
	copy(out, o.order)
	return out
}

func (o *MaterObject) GCMark(visit func(value.Value)) {
	visit(o.Proto)
	visit(o.NativeHandle)
	for _, k := range o.order {
		visit(o.props[k])
	}
}
