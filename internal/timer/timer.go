// Package timer implements the fire-time-ordered timer list used by the
// scheduler (spec §3.9/§4.9): a cooperative, single-threaded timer bound
// to a Wheel rather than an OS alarm.
package timer

import (
	"container/heap"
	"time"
)

// Behavior selects whether a Timer fires once or re-enrolls itself after
// firing (spec §3.9).
type Behavior int

const (
	Once Behavior = iota
	Repeating
)

// Timer is a single scheduled callback (spec §3.9): a duration, the
// absolute time it is next due, a behavior, and the callback to invoke.
// A Timer that is not Running is not enrolled in any Wheel.
type Timer struct {
	Duration   time.Duration
	TimeToFire time.Time
	Behavior   Behavior
	Callback   func()
	Running    bool

	index int // heap slot, -1 when not enrolled
}

// New creates a Timer with the given duration, behavior, and callback.
// It is not armed until passed to a Wheel's Start.
func New(d time.Duration, b Behavior, cb func()) *Timer {
	return &Timer{Duration: d, Behavior: b, Callback: cb, index: -1}
}

// Wheel is the scheduler's time-sorted list of active timers (spec
// §4.8's "time-sorted list of active Timer pointers"), a
// container/heap priority queue ordered by TimeToFire.
type Wheel struct {
	items timerHeap
}

// NewWheel returns an empty Wheel.
func NewWheel() *Wheel {
	w := &Wheel{}
	heap.Init(&w.items)
	return w
}

// Start computes t.TimeToFire = now + t.Duration and enrolls t in the
// wheel (spec §4.9's "start(duration) computes time_to_fire ... and
// enrolls in the scheduler"). Starting an already-running timer
// re-arms it from now.
func (w *Wheel) Start(t *Timer, now time.Time) {
	if t.Running && t.index >= 0 {
		heap.Remove(&w.items, t.index)
	}
	t.TimeToFire = now.Add(t.Duration)
	t.Running = true
	heap.Push(&w.items, t)
}

// Stop deregisters t (spec §4.9's "stop() deregisters"). Safe to call
// from within the timer's own callback (mid-fire, t.index is already
// -1; Stop simply prevents a Repeating timer from re-enrolling).
func (w *Wheel) Stop(t *Timer) {
	if t.index >= 0 {
		heap.Remove(&w.items, t.index)
		t.index = -1
	}
	t.Running = false
}

// Len reports how many timers are currently enrolled.
func (w *Wheel) Len() int { return w.items.Len() }

// NextFireTime returns the earliest enrolled TimeToFire, for a caller
// that wants to sleep until the next timer is due rather than poll.
func (w *Wheel) NextFireTime() (time.Time, bool) {
	if w.items.Len() == 0 {
		return time.Time{}, false
	}
	return w.items[0].TimeToFire, true
}

// FireDue invokes the callback of every timer whose TimeToFire is at or
// before now, in time order (spec §4.8 step 1). Timers with equal
// TimeToFire are popped in container/heap order, which does not follow
// insertion order; their relative firing order is not defined. Repeating
// timers re-enroll with TimeToFire advanced by Duration relative to
// their nominal fire time, unless the callback stopped them. Returns
// the count of timers fired.
func (w *Wheel) FireDue(now time.Time) int {
	fired := 0
	for w.items.Len() > 0 && !w.items[0].TimeToFire.After(now) {
		t := heap.Pop(&w.items).(*Timer)
		nominal := t.TimeToFire
		if t.Callback != nil {
			t.Callback()
		}
		fired++
		if t.Behavior == Repeating && t.Running {
			t.TimeToFire = nominal.Add(t.Duration)
			heap.Push(&w.items, t)
		} else {
			t.Running = false
		}
	}
	return fired
}

// timerHeap implements container/heap.Interface over *Timer, ordered by
// TimeToFire ascending.
type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool { return h[i].TimeToFire.Before(h[j].TimeToFire) }

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x interface{}) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
