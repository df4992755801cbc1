package library

import (
	"github.com/m8rscript/m8r/internal/atom"
	"github.com/m8rscript/m8r/internal/diag"
	"github.com/m8rscript/m8r/internal/object"
	"github.com/m8rscript/m8r/internal/scheduler"
	"github.com/m8rscript/m8r/internal/value"
	"github.com/m8rscript/m8r/internal/vm"
)

// buildTask constructs the Task static root (spec §3.8/§4.8): a
// create(fn, ...args) factory that spins up a fresh VM over the shared
// runtime, fires fn as its first event, and hands it to sched, plus a
// State enum mirroring scheduler.State. Grounded on server/scheduler.go
// and task/task.go's script-visible task-control surface, generalized
// to the simpler four-state machine internal/scheduler implements.
func buildTask(tbl *atom.Table, rt *vm.Runtime, sched *scheduler.Scheduler, printer vm.Printer) *object.StaticObject {
	root := object.NewStaticObject(tbl.Atomize("Task"))

	defineValue(tbl, root, "Ready", value.NewInt(int32(scheduler.Ready)))
	defineValue(tbl, root, "WaitingForEvent", value.NewInt(int32(scheduler.WaitingForEvent)))
	defineValue(tbl, root, "Delaying", value.NewInt(int32(scheduler.Delaying)))
	defineValue(tbl, root, "Terminated", value.NewInt(int32(scheduler.Terminated)))

	define(tbl, root, "create", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		if sched == nil {
			return fail(diag.Unimplemented)
		}
		if len(args) < 1 || (args[0].Type() != value.NativeFunction && args[0].Type() != value.Object) {
			return fail(diag.WrongNumberOfParams)
		}
		fn := args[0]
		callArgs := append([]value.Value(nil), args[1:]...)

		child := vm.NewVM(rt, printer)
		child.FireEvent(fn, value.Undef, callArgs)

		var taskHandle value.Value
		task := sched.Run(child, func(result object.CallReturnValue) {
			if o, okObj := v.Runtime().Heap.GetObject(taskHandle.AsObjectHandle()); okObj {
				mo := o.(*object.MaterObject)
				mo.SetProperty(v.Runtime().Atoms.Atomize("_finished"), value.NewBool(true), object.AlwaysAdd)
			}
		})
		taskHandle = newTaskObject(v, sched, task)
		return ok(taskHandle)
	})

	return root
}

func newTaskObject(v *vm.VM, sched *scheduler.Scheduler, task *scheduler.Task) value.Value {
	typeName := v.Runtime().Atoms.Atomize("Task")
	methods := map[string]vm.NativeFunc{
		"id": func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
			return okInt(int32(task.ID()))
		},
		"state": func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
			return okInt(int32(task.State()))
		},
		"terminate": func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
			sched.Terminate(task)
			return okUndef()
		},
	}
	handle := newMethodObject(v, typeName, methods)
	if o, okObj := v.Runtime().Heap.GetObject(handle.AsObjectHandle()); okObj {
		mo := o.(*object.MaterObject)
		mo.SetProperty(v.Runtime().Atoms.Atomize("_finished"), value.NewBool(false), object.AlwaysAdd)
	}
	return handle
}
