package library

import (
	"github.com/m8rscript/m8r/internal/atom"
	"github.com/m8rscript/m8r/internal/diag"
	"github.com/m8rscript/m8r/internal/host"
	"github.com/m8rscript/m8r/internal/object"
	"github.com/m8rscript/m8r/internal/value"
	"github.com/m8rscript/m8r/internal/vm"
)

// buildGPIO constructs the GPIO static root as a thin shim over
// host.GPIO (spec §6's "GPIO (pin modes, read/write, interrupt)"): the
// core has no pin driver of its own, this only adapts script calls into
// the injected collaborator. Every pin function fails with
// diag.Unimplemented when gpio is nil (host has no GPIO support).
func buildGPIO(tbl *atom.Table, gpio host.GPIO) *object.StaticObject {
	root := object.NewStaticObject(tbl.Atomize("GPIO"))

	defineValue(tbl, root, "Input", value.NewInt(int32(host.Input)))
	defineValue(tbl, root, "Output", value.NewInt(int32(host.Output)))
	defineValue(tbl, root, "InputPullup", value.NewInt(int32(host.InputPullup)))

	define(tbl, root, "setPinMode", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		if gpio == nil {
			return fail(diag.Unimplemented)
		}
		pin := argInt(args, 0, -1)
		mode := host.PinMode(argInt(args, 1, int32(host.Input)))
		gpio.SetPinMode(int(pin), mode)
		return okUndef()
	})

	define(tbl, root, "digitalRead", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		if gpio == nil {
			return fail(diag.Unimplemented)
		}
		return okBool(gpio.DigitalRead(int(argInt(args, 0, -1))))
	})

	define(tbl, root, "digitalWrite", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		if gpio == nil {
			return fail(diag.Unimplemented)
		}
		gpio.DigitalWrite(int(argInt(args, 0, -1)), argBool(args, 1, false))
		return okUndef()
	})

	define(tbl, root, "onInterrupt", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		if gpio == nil {
			return fail(diag.Unimplemented)
		}
		if len(args) < 2 || args[1].Type() != value.NativeFunction && args[1].Type() != value.Object {
			return fail(diag.WrongNumberOfParams)
		}
		pin := int(argInt(args, 0, -1))
		callback := args[1]
		gpio.OnInterrupt(pin, func(rising bool) {
			v.FireEvent(callback, value.Undef, []value.Value{value.NewBool(rising)})
		})
		return okUndef()
	})

	return root
}
