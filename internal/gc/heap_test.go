package gc

import (
	"testing"

	"github.com/m8rscript/m8r/internal/atom"
	"github.com/m8rscript/m8r/internal/object"
	"github.com/m8rscript/m8r/internal/value"
)

func TestCollectSweepsUnreachableObjects(t *testing.T) {
	h := NewHeap(0)
	tbl := atom.NewTable(nil)

	reachable := object.NewMaterObject(tbl.Atomize("Object"))
	reachableHandle := h.AllocObject(reachable, MemMaterObject)

	garbage := object.NewMaterObject(tbl.Atomize("Object"))
	h.AllocObject(garbage, MemMaterObject)

	stats := h.Collect(func(visit func(value.Value)) {
		visit(value.NewObject(reachableHandle))
	})

	if stats.ObjectsSwept != 1 {
		t.Fatalf("ObjectsSwept = %d, want 1", stats.ObjectsSwept)
	}
	if _, ok := h.GetObject(reachableHandle); !ok {
		t.Fatal("reachable object should survive collection")
	}
}

func TestCollectSoundnessKeepsTransitivelyReachable(t *testing.T) {
	h := NewHeap(0)
	tbl := atom.NewTable(nil)
	childAtom := tbl.Atomize("child")

	child := object.NewMaterObject(tbl.Atomize("Object"))
	childHandle := h.AllocObject(child, MemMaterObject)

	parent := object.NewMaterObject(tbl.Atomize("Object"))
	parent.SetProperty(childAtom, value.NewObject(childHandle), object.AlwaysAdd)
	parentHandle := h.AllocObject(parent, MemMaterObject)

	h.Collect(func(visit func(value.Value)) {
		visit(value.NewObject(parentHandle))
	})

	if _, ok := h.GetObject(childHandle); !ok {
		t.Fatal("child reachable via parent's property should survive collection")
	}
}

func TestCollectHandlesCycles(t *testing.T) {
	h := NewHeap(0)
	tbl := atom.NewTable(nil)
	selfAtom := tbl.Atomize("self")

	a := object.NewMaterObject(tbl.Atomize("Object"))
	aHandle := h.AllocObject(a, MemMaterObject)
	b := object.NewMaterObject(tbl.Atomize("Object"))
	bHandle := h.AllocObject(b, MemMaterObject)

	a.SetProperty(selfAtom, value.NewObject(bHandle), object.AlwaysAdd)
	b.SetProperty(selfAtom, value.NewObject(aHandle), object.AlwaysAdd)

	done := make(chan Stats, 1)
	go func() {
		done <- h.Collect(func(visit func(value.Value)) {
			visit(value.NewObject(aHandle))
		})
	}()
	select {
	case stats := <-done:
		if stats.ObjectsSwept != 0 {
			t.Fatalf("ObjectsSwept = %d, want 0 (cycle reachable from root)", stats.ObjectsSwept)
		}
	}
}

func TestAccountingTracksAllocAndSweep(t *testing.T) {
	h := NewHeap(0)
	tbl := atom.NewTable(nil)
	o := object.NewMaterObject(tbl.Atomize("Object"))
	h.AllocObject(o, MemMaterObject)

	if got := h.Accounting().Count(MemMaterObject); got != 1 {
		t.Fatalf("Count(MemMaterObject) = %d, want 1", got)
	}
	h.Collect() // no roots -> everything swept
	if got := h.Accounting().Count(MemMaterObject); got != 0 {
		t.Fatalf("Count(MemMaterObject) after sweep = %d, want 0", got)
	}
}

func TestShouldCollectGatesOnThreshold(t *testing.T) {
	h := NewHeap(2)
	tbl := atom.NewTable(nil)
	if h.ShouldCollect() {
		t.Fatal("fresh heap should not request collection")
	}
	h.AllocObject(object.NewMaterObject(tbl.Atomize("Object")), MemMaterObject)
	if h.ShouldCollect() {
		t.Fatal("one allocation under threshold 2 should not request collection")
	}
	h.AllocObject(object.NewMaterObject(tbl.Atomize("Object")), MemMaterObject)
	if !h.ShouldCollect() {
		t.Fatal("two allocations at threshold 2 should request collection")
	}
}
