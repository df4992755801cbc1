// Package vm implements the register-machine execution unit of spec
// §4.5: frame layout and register addressing over a flat operand
// stack, the LOADREFK/STOREFK identifier-resolution chain, up-value
// close-on-return, polymorphic arithmetic/comparison, and the
// cooperative suspension protocol threaded through
// object.CallReturnValue.
//
// Grounded on the teacher's vm/vm.go (VM/StackFrame/Run/executeLoop
// shape), vm/operators.go (ADD polymorphism, comparison protocol), and
// vm/indexing.go/vm/properties.go (element/property dispatch), adapted
// from barn's named-local stack machine to the spec's register-indexed
// frames.
package vm

import (
	"github.com/m8rscript/m8r/internal/atom"
	"github.com/m8rscript/m8r/internal/gc"
	"github.com/m8rscript/m8r/internal/object"
	"github.com/m8rscript/m8r/internal/value"
)

// Runtime owns the resources shared by every VM in a process: the
// interned-atom table, the GC heap, the top-level Program object, and
// the well-known Global static root (spec §6's library roots hang off
// Global). One Runtime normally backs one scheduler; tests may create
// several in isolation.
type Runtime struct {
	Atoms  *atom.Table
	Heap   *gc.Heap
	Global *object.StaticObject

	// MaxRunTimeErrors is the error-count threshold past which a VM
	// over this Runtime requests termination rather than continuing
	// best-effort (spec §4.5). NewRuntime defaults it to the package's
	// MaxRunTimeErrors constant; cmd/m8r overrides it from
	// config.Config.MaxRunTimeErrors.
	MaxRunTimeErrors int

	programHandle value.ObjectHandle
	vms           []*VM
}

// NewRuntime builds a Runtime with its Program object and Global root
// already allocated. heapThreshold is the allocation-delta gate for
// unforced collection (gc.Heap.ShouldCollect); 0 disables it.
func NewRuntime(heapThreshold int) *Runtime {
	atoms := atom.NewTable(atom.SharedNames)
	heap := gc.NewHeap(heapThreshold)

	global := object.NewStaticObject(atoms.Atomize("Global"))
	heap.RegisterStaticRoot(global)

	rt := &Runtime{Atoms: atoms, Heap: heap, Global: global, MaxRunTimeErrors: MaxRunTimeErrors}

	program := object.NewMaterObject(atoms.Atomize("Global"))
	rt.programHandle = heap.AllocObject(program, gc.MemMaterObject)
	return rt
}

// Program returns the top-level object LOADREFK/STOREFK fall through to
// after a miss on `this` (spec §4.5).
func (rt *Runtime) Program() *object.MaterObject {
	o, _ := rt.Heap.GetObject(rt.programHandle)
	return o.(*object.MaterObject)
}

// ProgramValue returns the Program object as a Value, for binding as a
// VM's initial `this`.
func (rt *Runtime) ProgramValue() value.Value { return value.NewObject(rt.programHandle) }

// registerVM adds v to the set of GC root sources consulted by
// CollectGarbage. Called from NewVM.
func (rt *Runtime) registerVM(v *VM) { rt.vms = append(rt.vms, v) }

// CollectGarbage runs one mark-sweep pass over every registered VM's
// roots plus the Program object (step 2 of spec §4.7; the Global static
// root was already registered with the heap in NewRuntime, so step 3
// happens inside gc.Heap.Collect itself). force bypasses the allocation
// threshold gate.
func (rt *Runtime) CollectGarbage(force bool) gc.Stats {
	if !force && !rt.Heap.ShouldCollect() {
		return gc.Stats{}
	}
	sources := make([]gc.RootSource, 0, len(rt.vms)+1)
	sources = append(sources, func(visit func(value.Value)) { visit(rt.ProgramValue()) })
	for _, v := range rt.vms {
		sources = append(sources, v.gcRoots)
	}
	return rt.Heap.Collect(sources...)
}

// Close releases runtime-owned resources. No-op today: nothing in
// Runtime holds an OS handle yet, but callers (cmd/m8r, tests) should
// still defer it so the cleanup point exists once host resources
// (listening sockets, open files) are wired through it.
func (rt *Runtime) Close() error { return nil }
