package library

import (
	"time"

	"github.com/m8rscript/m8r/internal/atom"
	"github.com/m8rscript/m8r/internal/diag"
	"github.com/m8rscript/m8r/internal/object"
	"github.com/m8rscript/m8r/internal/timer"
	"github.com/m8rscript/m8r/internal/value"
	"github.com/m8rscript/m8r/internal/vm"
)

// buildTimer constructs the Timer static root (spec §3.9/§4.9): a
// create(durationMs, repeating, callback) factory returning a
// script-facing handle with start/stop methods, backed by the shared
// wheel a scheduler.Scheduler also drives. Grounded on
// internal/timer.Wheel/Timer and server/scheduler.go's TaskQueue timer
// enrollment.
func buildTimer(tbl *atom.Table, wheel *timer.Wheel) *object.StaticObject {
	root := object.NewStaticObject(tbl.Atomize("Timer"))

	defineValue(tbl, root, "Once", value.NewInt(int32(timer.Once)))
	defineValue(tbl, root, "Repeating", value.NewInt(int32(timer.Repeating)))

	define(tbl, root, "create", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		if wheel == nil {
			return fail(diag.Unimplemented)
		}
		durationMs := argInt(args, 0, 0)
		if durationMs <= 0 {
			return fail(diag.InvalidArgumentValue)
		}
		behavior := timer.Behavior(argInt(args, 1, int32(timer.Once)))
		if len(args) < 3 || (args[2].Type() != value.NativeFunction && args[2].Type() != value.Object) {
			return fail(diag.WrongNumberOfParams)
		}
		callback := args[2]
		t := timer.New(time.Duration(durationMs)*time.Millisecond, behavior, func() {
			v.FireEvent(callback, value.Undef, nil)
		})
		return ok(newTimerObject(v, wheel, t))
	})

	return root
}

func newTimerObject(v *vm.VM, wheel *timer.Wheel, t *timer.Timer) value.Value {
	methods := map[string]vm.NativeFunc{
		"start": func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
			wheel.Start(t, time.Now())
			return okUndef()
		},
		"stop": func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
			wheel.Stop(t)
			return okUndef()
		},
		"running": func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
			return okBool(t.Running)
		},
	}
	return newMethodObject(v, v.Runtime().Atoms.Atomize("Timer"), methods)
}
