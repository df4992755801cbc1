// Package gc implements the allocator and staged mark-sweep garbage
// collector of spec §4.7: typed allocations with per-type accounting,
// over two object stores (heap objects and heap strings), driven from
// explicit VM roots and registered static roots.
//
// The reachability walk is grounded on the teacher's
// AutoRecycleOrphanAnonymousSince (vm/anonymous_gc.go): a BFS over a
// value graph starting from a root set, generalized here from "orphaned
// anonymous MOO objects" to the full heap.
package gc

import (
	"github.com/m8rscript/m8r/internal/object"
	"github.com/m8rscript/m8r/internal/value"
)

// Accounting holds the live allocation count per MemoryType.
type Accounting struct {
	counts [numMemoryTypes]int64
}

func (a *Accounting) add(mt MemoryType, delta int64) { a.counts[mt] += delta }

// Count returns the current live count for mt.
func (a *Accounting) Count(mt MemoryType) int64 { return a.counts[mt] }

// RootSource is called during Collect to report every Value directly
// reachable from a root (a VM's current function/this/stack/event queue,
// the top-level Program, ...).
type RootSource func(visit func(value.Value))

// Stats summarizes one Collect pass.
type Stats struct {
	ObjectsSwept int
	StringsSwept int
}

// Heap is the GC-tracked store of heap Objects and heap Strings.
type Heap struct {
	objects    map[value.ObjectHandle]object.Object
	objMarked  map[value.ObjectHandle]bool
	nextObject value.ObjectHandle

	strings    map[value.StringHandle]*value.HeapString
	strMarked  map[value.StringHandle]bool
	nextString value.StringHandle

	staticRoots []*object.StaticObject

	accounting Accounting

	// Unforced-GC gating (spec §4.7 step interleaving): a counter gates
	// collection by allocation deltas since the last pass.
	allocsSinceGC int
	gcThreshold   int
}

// NewHeap creates an empty Heap. threshold is the number of allocations
// (objects + strings combined) between automatic, unforced collections;
// 0 disables automatic collection (ShouldCollect never reports true; an
// explicit Collect call still runs a full pass).
func NewHeap(threshold int) *Heap {
	return &Heap{
		objects:     make(map[value.ObjectHandle]object.Object),
		objMarked:   make(map[value.ObjectHandle]bool),
		strings:     make(map[value.StringHandle]*value.HeapString),
		strMarked:   make(map[value.StringHandle]bool),
		gcThreshold: threshold,
	}
}

// AllocObject tracks a new heap Object and returns its handle.
func (h *Heap) AllocObject(o object.Object, mt MemoryType) value.ObjectHandle {
	h.nextObject++
	id := h.nextObject
	h.objects[id] = o
	h.accounting.add(mt, 1)
	h.allocsSinceGC++
	return id
}

// AllocString tracks a new heap String and returns its handle.
func (h *Heap) AllocString(s *value.HeapString) value.StringHandle {
	h.nextString++
	id := h.nextString
	h.strings[id] = s
	h.accounting.add(MemString, 1)
	h.allocsSinceGC++
	return id
}

// GetObject resolves a handle to its Object, or false if it has been
// collected or never existed.
func (h *Heap) GetObject(handle value.ObjectHandle) (object.Object, bool) {
	o, ok := h.objects[handle]
	return o, ok
}

// GetString resolves a handle to its String.
func (h *Heap) GetString(handle value.StringHandle) (*value.HeapString, bool) {
	s, ok := h.strings[handle]
	return s, ok
}

// RegisterStaticRoot adds a permanent static-object root (never swept).
func (h *Heap) RegisterStaticRoot(s *object.StaticObject) {
	h.staticRoots = append(h.staticRoots, s)
}

// Accounting exposes the live per-type allocation counts.
func (h *Heap) Accounting() *Accounting { return &h.accounting }

// ShouldCollect reports whether enough allocation churn has accumulated
// to justify an unforced pass (spec §4.7: "amortized ... between
// top-level calls").
func (h *Heap) ShouldCollect() bool {
	return h.gcThreshold > 0 && h.allocsSinceGC >= h.gcThreshold
}

// Collect runs the staged mark-sweep: clear marks, mark from every root
// source and every static root, then sweep both stores. Every call runs
// a full pass; there is no forced/unforced flag, and callers use
// ShouldCollect to decide whether an unforced pass is due.
func (h *Heap) Collect(sources ...RootSource) Stats {
	for id := range h.objMarked {
		delete(h.objMarked, id)
	}
	for id := range h.strMarked {
		delete(h.strMarked, id)
	}

	for _, src := range sources {
		src(h.mark)
	}
	for _, s := range h.staticRoots {
		s.GCMark(h.mark)
	}

	stats := Stats{}
	for id, o := range h.objects {
		if !h.objMarked[id] {
			mt := memTypeOf(o)
			h.accounting.add(mt, -1)
			delete(h.objects, id)
			stats.ObjectsSwept++
		}
	}
	for id := range h.strings {
		if !h.strMarked[id] {
			h.accounting.add(MemString, -1)
			delete(h.strings, id)
			stats.StringsSwept++
		}
	}

	h.allocsSinceGC = 0
	return stats
}

// mark recursively marks v and everything reachable from it. Object and
// String handles are marked idempotently (a cyclic object/proto graph is
// tolerated directly, per spec §4.7/§9 — no visited check beyond the
// mark bit itself is needed since re-marking an already-marked handle is
// a cheap no-op map lookup).
func (h *Heap) mark(v value.Value) {
	switch v.Type() {
	case value.Object:
		id := v.AsObjectHandle()
		if h.objMarked[id] {
			return
		}
		h.objMarked[id] = true
		if o, ok := h.objects[id]; ok {
			o.GCMark(h.mark)
		}
	case value.String:
		h.strMarked[v.AsStringHandle()] = true
	}
}

func memTypeOf(o object.Object) MemoryType {
	switch o.(type) {
	case *object.MaterObject:
		return MemMaterObject
	case *object.MaterArray:
		return MemMaterArray
	case *object.Function:
		return MemFunction
	case *object.Closure:
		return MemClosure
	default:
		return MemMaterObject
	}
}
