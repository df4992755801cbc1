package object

import (
	"github.com/m8rscript/m8r/internal/atom"
	"github.com/m8rscript/m8r/internal/value"
)

// StaticObject is a read-only table of {name atom -> Value} triples used
// for library roots (Global, GPIO, JSON, ...). It is never allocated on
// the GC heap and never collected (spec §3.4); entries may themselves be
// plain Values, NativeFunction Values, or NewStaticObject Values
// pointing at a nested *StaticObject.
type StaticObject struct {
	Name    atom.Atom
	entries map[atom.Atom]value.Value
	order   []atom.Atom
}

// NewStaticObject creates a named, empty static table.
func NewStaticObject(name atom.Atom) *StaticObject {
	return &StaticObject{Name: name, entries: make(map[atom.Atom]value.Value)}
}

// Define adds or replaces an entry. Static objects are built once at
// startup and treated as read-only afterward by convention; Define
// exists for that build-up phase, not for runtime mutation by scripts.
func (s *StaticObject) Define(name atom.Atom, v value.Value) {
	if _, exists := s.entries[name]; !exists {
		s.order = append(s.order, name)
	}
	s.entries[name] = v
}

func (s *StaticObject) TypeName() atom.Atom { return s.Name }

func (s *StaticObject) GetProperty(name atom.Atom) (value.Value, bool) {
	v, ok := s.entries[name]
	return v, ok
}

// SetProperty always fails: static objects are read-only to scripts.
func (s *StaticObject) SetProperty(atom.Atom, value.Value, PropertyMode) bool { return false }

// Keys returns entry names in definition order.
func (s *StaticObject) Keys() []atom.Atom {
	out := make([]atom.Atom, len(s.order))
	copy(out, s.order)
	return out
}

// GCMark visits every entry's Value in definition order. Static objects
// are permanent roots, not GC candidates; this is how the GC reaches
// the heap Values they hold.
func (s *StaticObject) GCMark(visit func(value.Value)) {
	for _, k := range s.order {
		visit(s.entries[k])
	}
}
