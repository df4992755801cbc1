// Package scheduler implements the cooperative task scheduler (spec
// §4.8): one ordered list of Task handles and a time-sorted Timer list,
// driven one round-robin iteration at a time.
package scheduler

import (
	"time"

	"github.com/m8rscript/m8r/internal/object"
	"github.com/m8rscript/m8r/internal/timer"
)

// State is a Task's position in the spec §3.8 state machine: Ready,
// WaitingForEvent, Delaying, Terminated.
type State int

const (
	Ready State = iota
	WaitingForEvent
	Delaying
	Terminated
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case WaitingForEvent:
		return "waiting-for-event"
	case Delaying:
		return "delaying"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// DefaultQuantum is the time-slice a running task gets before the
// scheduler requests a cooperative yield (spec §4.8/§5, "default
// quantum is 50 ms").
const DefaultQuantum = 50 * time.Millisecond

// Executable is whatever a Task drives: the bytecode VM, or any other
// embedded interpreter satisfying the same cooperative contract (spec
// §3.8's "wraps an Executable"). *vm.VM satisfies this directly.
type Executable interface {
	// Run executes until the next suspension point and reports how
	// (spec §4.5's per-call state machine).
	Run() object.CallReturnValue
	// HasPendingEvents reports whether an external event has arrived
	// that should pull this Executable out of WaitingForEvent (spec
	// §4.8 step 2's "or whose underlying Executable::ready_to_run()
	// reports true").
	HasPendingEvents() bool
	// RequestYield asks the Executable to suspend at its next
	// instruction boundary, returning Yield (the time-slice timer's
	// expiry action).
	RequestYield()
	// RequestTerminate asks the Executable to stop at its next
	// instruction boundary without completing its call stack.
	RequestTerminate()
}

// FinishFunc is invoked once, when a Task reaches Finished, Terminated,
// or Error, with the terminal CallReturnValue.
type FinishFunc func(result object.CallReturnValue)

// Task wraps an Executable under scheduler control (spec §3.8).
type Task struct {
	id     int64
	exec   Executable
	state  State
	finish FinishFunc

	delayTimer *timer.Timer
}

// ID returns the task's scheduler-assigned identity.
func (t *Task) ID() int64 { return t.id }

// State returns the task's current position in the state machine.
func (t *Task) State() State { return t.state }

// Scheduler is one process-wide scheduler (spec §4.8): an ordered task
// list plus a time-sorted timer Wheel. Every method is intended to run
// on a single logical execution context (spec §5); it is not safe to
// call concurrently from multiple goroutines, matching Timer/Task's own
// single-threaded contract. The one exception is any Executable's own
// FireEvent-style method, which is documented as thread-safe by that
// Executable (e.g. vm.VM.FireEvent).
type Scheduler struct {
	tasks   []*Task
	timers  *timer.Wheel
	nextID  int64
	Quantum time.Duration
}

// New returns an empty Scheduler with the default time-slice quantum.
func New() *Scheduler {
	return &Scheduler{timers: timer.NewWheel(), Quantum: DefaultQuantum}
}

// Run appends exec as a new Ready task (spec §4.8's "run(task,
// finish_cb) — appends the task, marks it Ready, signals ready to
// execute").
func (s *Scheduler) Run(exec Executable, finish FinishFunc) *Task {
	s.nextID++
	t := &Task{id: s.nextID, exec: exec, state: Ready, finish: finish}
	s.tasks = append(s.tasks, t)
	return t
}

// Terminate removes t from the list and marks it Terminated (spec
// §4.8's "terminate(task) — removes from list, marks Terminated").
// Unlike a task reaching CallTerminated on its own, this does not
// invoke the finish callback: the caller already knows it asked for
// termination.
func (s *Scheduler) Terminate(t *Task) {
	s.remove(t)
	if t.state != Terminated {
		t.state = Terminated
		t.exec.RequestTerminate()
	}
	if t.delayTimer != nil {
		s.timers.Stop(t.delayTimer)
	}
}

func (s *Scheduler) remove(t *Task) {
	for i, x := range s.tasks {
		if x == t {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return
		}
	}
}

// Timers returns the Wheel this scheduler drives from RunOneIteration,
// so a library build can enroll script-created timers (internal/library's
// Timer root) on the same clock tasks' delays and time slices use.
func (s *Scheduler) Timers() *timer.Wheel { return s.timers }

// AddTimer enrolls tm to fire relative to now (spec §4.8's
// "add_timer ... maintain the sorted list").
func (s *Scheduler) AddTimer(tm *timer.Timer, now time.Time) {
	s.timers.Start(tm, now)
}

// RemoveTimer deregisters tm (spec §4.8's "remove_timer").
func (s *Scheduler) RemoveTimer(tm *timer.Timer) {
	s.timers.Stop(tm)
}

// Tasks returns a snapshot of the currently-scheduled tasks, in their
// present round-robin order.
func (s *Scheduler) Tasks() []*Task {
	out := make([]*Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// NextTimerDue reports the earliest enrolled timer's fire time, letting
// a driver loop sleep until there is real work instead of polling.
func (s *Scheduler) NextTimerDue() (time.Time, bool) {
	return s.timers.NextFireTime()
}

// RunOneIteration performs one pass of the scheduler (spec §4.8),
// returning true iff any work was done:
//
//  1. Fire every timer due at or before now.
//  2. Find the first Ready task, or the first non-Terminated task whose
//     Executable reports it is ready to run (an event arrived while it
//     was WaitingForEvent).
//  3. Rotate it to the tail for round-robin fairness, run it for one
//     time slice, and interpret the result.
func (s *Scheduler) RunOneIteration(now time.Time) bool {
	didWork := s.timers.FireDue(now) > 0

	idx := -1
	for i, t := range s.tasks {
		if t.state == Ready {
			idx = i
			break
		}
		if t.state != Terminated && t.exec.HasPendingEvents() {
			t.state = Ready
			idx = i
			break
		}
	}
	if idx < 0 {
		return didWork
	}

	t := s.tasks[idx]
	s.tasks = append(s.tasks[:idx], s.tasks[idx+1:]...)
	s.tasks = append(s.tasks, t)

	slice := timer.New(s.Quantum, timer.Once, t.exec.RequestYield)
	s.timers.Start(slice, now)
	result := t.exec.Run()
	s.timers.Stop(slice)

	s.applyResult(t, result, now)
	return true
}

func (s *Scheduler) applyResult(t *Task, result object.CallReturnValue, now time.Time) {
	switch result.Kind {
	case object.CallYield:
		t.state = Ready

	case object.CallFinished, object.CallTerminated, object.CallError:
		t.state = Terminated
		s.remove(t)
		if t.finish != nil {
			t.finish(result)
		}

	case object.CallWaitForEvent:
		t.state = WaitingForEvent

	case object.CallDelay:
		t.state = Delaying
		t.delayTimer = timer.New(result.Delay, timer.Once, func() {
			t.state = Ready
		})
		s.timers.Start(t.delayTimer, now)

	default:
		// CallReturnCount/CallFunctionStart are VM-internal transitions
		// that should never escape Run(); fall back to Ready so a
		// misbehaving Executable still gets another time slice rather
		// than wedging the task list.
		t.state = Ready
	}
}

// Loop drives RunOneIteration at a fixed resolution until stop is
// closed, grounded on the teacher's ticker-based scheduler.run(). Tasks
// whose Executable signals readiness between ticks (e.g. via FireEvent)
// are picked up within one tick interval.
func (s *Scheduler) Loop(stop <-chan struct{}, resolution time.Duration) {
	ticker := time.NewTicker(resolution)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			for s.RunOneIteration(time.Now()) {
			}
		}
	}
}
