package library

import (
	"fmt"
	"net"

	"github.com/m8rscript/m8r/internal/atom"
	"github.com/m8rscript/m8r/internal/diag"
	"github.com/m8rscript/m8r/internal/object"
	"github.com/m8rscript/m8r/internal/value"
	"github.com/m8rscript/m8r/internal/vm"
)

// buildIPAddr constructs the IPAddr static root (spec §6): dotted-quad
// parsing/formatting for the TCP/UDP socket factories' ip parameter.
// No real networking happens here (non-goal, spec.md §1); this is pure
// string<->octet conversion.
func buildIPAddr(tbl *atom.Table) *object.StaticObject {
	root := object.NewStaticObject(tbl.Atomize("IPAddr"))

	define(tbl, root, "parse", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		s, hasArg := argString(v, args, 0)
		if !hasArg {
			return fail(diag.WrongNumberOfParams)
		}
		ip := net.ParseIP(s)
		if ip == nil {
			return fail(diag.InvalidArgumentValue)
		}
		ip4 := ip.To4()
		if ip4 == nil {
			return fail(diag.InvalidArgumentValue)
		}
		return ok(newIPAddrObject(v, ip4[0], ip4[1], ip4[2], ip4[3]))
	})

	define(tbl, root, "fromOctets", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		if len(args) < 4 {
			return fail(diag.WrongNumberOfParams)
		}
		return ok(newIPAddrObject(v,
			byte(argInt(args, 0, 0)), byte(argInt(args, 1, 0)),
			byte(argInt(args, 2, 0)), byte(argInt(args, 3, 0))))
	})

	return root
}

func newIPAddrObject(v *vm.VM, a, b, c, d byte) value.Value {
	typeName := v.Runtime().Atoms.Atomize("IPAddr")
	str := fmt.Sprintf("%d.%d.%d.%d", a, b, c, d)
	methods := map[string]vm.NativeFunc{
		"toString": func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
			return ok(heapString(v, str))
		},
	}
	handle := newMethodObject(v, typeName, methods)
	if o, okObj := v.Runtime().Heap.GetObject(handle.AsObjectHandle()); okObj {
		mo := o.(*object.MaterObject)
		mo.SetProperty(v.Runtime().Atoms.Atomize("a"), value.NewInt(int32(a)), object.AlwaysAdd)
		mo.SetProperty(v.Runtime().Atoms.Atomize("b"), value.NewInt(int32(b)), object.AlwaysAdd)
		mo.SetProperty(v.Runtime().Atoms.Atomize("c"), value.NewInt(int32(c)), object.AlwaysAdd)
		mo.SetProperty(v.Runtime().Atoms.Atomize("d"), value.NewInt(int32(d)), object.AlwaysAdd)
	}
	return handle
}
