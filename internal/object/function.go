package object

import (
	"github.com/m8rscript/m8r/internal/atom"
	"github.com/m8rscript/m8r/internal/bytecode"
	"github.com/m8rscript/m8r/internal/value"
)

// UpValueDesc describes one up-value a Function captures from an
// enclosing function's locals (spec §4.3's closures & up-values).
type UpValueDesc struct {
	Index        int       // slot index in the enclosing function
	FrameDistance int      // how many enclosing frames out (1 = immediate parent)
	Name         atom.Atom
}

// Function owns a compiled function body: its bytecode, its local
// constant pool, its up-value descriptors, and scalar metadata
// (spec §3.7).
type Function struct {
	Code       []byte
	Constants  []value.Value
	UpValues   []UpValueDesc
	Lines      bytecode.LineTable

	FormalParamCount int
	LocalCount       int
	NameAtom         atom.Atom
}

func (f *Function) TypeName() atom.Atom { return f.NameAtom }

func (f *Function) GetProperty(name atom.Atom) (value.Value, bool) { return value.Undef, false }

func (f *Function) SetProperty(atom.Atom, value.Value, PropertyMode) bool { return false }

func (f *Function) GCMark(visit func(value.Value)) {
	for _, c := range f.Constants {
		visit(c)
	}
}

// UpValueState is the open/closed state of an UpValue (spec §3.5).
type UpValueState int

const (
	UpValueOpen UpValueState = iota
	UpValueClosed
)

// UpValue is a boxed capture for closures. It transitions from open
// (pointing at a live stack slot) to closed (owning a copied Value)
// exactly once, when the referenced frame returns.
type UpValue struct {
	State     UpValueState
	StackIndex int        // valid while State == UpValueOpen
	Value     value.Value // valid once State == UpValueClosed
}

// NewOpenUpValue creates an UpValue pointing at a live stack slot.
func NewOpenUpValue(stackIndex int) *UpValue {
	return &UpValue{State: UpValueOpen, StackIndex: stackIndex}
}

// Close transitions an open UpValue to closed, capturing v as its final
// value. Closing an already-closed UpValue is a no-op: Close itself
// checks State, so the "exactly once" invariant of spec §3.5 holds
// even if a caller closes the same UpValue twice.
func (u *UpValue) Close(v value.Value) {
	if u.State == UpValueOpen {
		u.State = UpValueClosed
		u.Value = v
	}
}

// Closure pairs a Function with its captured UpValues and an optional
// bound `this`.
type Closure struct {
	Fn       *Function
	Captured []*UpValue
	BoundThis value.Value // Undefined if unbound
}

func (c *Closure) TypeName() atom.Atom { return c.Fn.NameAtom }

func (c *Closure) GetProperty(name atom.Atom) (value.Value, bool) { return value.Undef, false }

func (c *Closure) SetProperty(atom.Atom, value.Value, PropertyMode) bool { return false }

func (c *Closure) GCMark(visit func(value.Value)) {
	visit(c.BoundThis)
	for _, u := range c.Captured {
		if u.State == UpValueClosed {
			visit(u.Value)
		}
	}
	c.Fn.GCMark(visit)
}
