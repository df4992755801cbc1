package vm

import (
	"sync"

	"github.com/m8rscript/m8r/internal/value"
)

// eventRecord is one queued event (spec §4.5's "[func, this, argc,
// arg0..arg_{argc-1}]").
type eventRecord struct {
	fn   value.Value
	this value.Value
	args []value.Value
}

// eventQueue guards cross-goroutine delivery; VM embeds one so
// FireEvent is safe to call from any goroutine while the dispatcher
// itself only touches vm.events from the single scheduler goroutine
// between instructions.
type eventQueue struct {
	mu      sync.Mutex
	pending []eventRecord
	wake    chan struct{}
}

// FireEvent appends an event record and notifies the scheduler that
// this VM's owning task is ready to run again (spec §5's "thread-safe
// event enqueue", the only supported way a host collaborator's own
// goroutine may affect the core). Safe to call concurrently and from
// any goroutine.
func (vm *VM) FireEvent(fn, this value.Value, args []value.Value) {
	vm.evq.mu.Lock()
	vm.evq.pending = append(vm.evq.pending, eventRecord{fn: fn, this: this, args: append([]value.Value(nil), args...)})
	vm.evq.mu.Unlock()
	if vm.evq.wake != nil {
		select {
		case vm.evq.wake <- struct{}{}:
		default:
		}
	}
}

// drainEvents moves any pending cross-goroutine events into vm.events,
// where the dispatcher consumes them one at a time between
// instructions. Must only be called from the scheduler goroutine.
func (vm *VM) drainEvents() {
	vm.evq.mu.Lock()
	if len(vm.evq.pending) > 0 {
		vm.events = append(vm.events, vm.evq.pending...)
		vm.evq.pending = nil
	}
	vm.evq.mu.Unlock()
}

// HasPendingEvents reports whether any event queued by FireEvent has
// not yet run (still queued, or drained but not dispatched), letting a
// scheduler decide whether this task's
// WaitingForEvent state should become Ready without waking on a timer.
func (vm *VM) HasPendingEvents() bool {
	vm.evq.mu.Lock()
	defer vm.evq.mu.Unlock()
	return len(vm.evq.pending) > 0 || len(vm.events) > 0
}

// WakeChannel returns the channel FireEvent signals, for a scheduler
// that blocks in a select between its timer and incoming events.
func (vm *VM) WakeChannel() <-chan struct{} {
	if vm.evq.wake == nil {
		vm.evq.wake = make(chan struct{}, 1)
	}
	return vm.evq.wake
}
