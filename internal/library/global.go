package library

import (
	"github.com/m8rscript/m8r/internal/atom"
	"github.com/m8rscript/m8r/internal/host"
	"github.com/m8rscript/m8r/internal/object"
	"github.com/m8rscript/m8r/internal/value"
	"github.com/m8rscript/m8r/internal/vm"
)

// installGlobals defines print, typeof, and heapFreeSize directly on
// root (the Runtime's own Global static object), the handful of
// builtins every script sees without qualifying through a named root.
// Grounded on builtins/global.go's print/typeof pair, translated onto
// host.SystemInterface for output and the VM's GC heap for the size
// query.
func installGlobals(tbl *atom.Table, root *object.StaticObject, sys host.SystemInterface) {
	define(tbl, root, "print", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		for i, a := range args {
			if i > 0 {
				if sys != nil {
					sys.Print(" ")
				}
			}
			if sys != nil {
				sys.Print(v.Stringify(a))
			}
		}
		if sys != nil {
			sys.Print("\n")
		}
		return okUndef()
	})

	define(tbl, root, "typeof", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		if len(args) < 1 {
			return ok(heapString(v, "undefined"))
		}
		return ok(heapString(v, typeName(args[0])))
	})

	define(tbl, root, "heapFreeSize", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		if sys == nil {
			return okInt(0)
		}
		return okInt(sys.HeapFreeSize())
	})
}

func typeName(v value.Value) string {
	switch v.Type() {
	case value.Undefined:
		return "undefined"
	case value.Null:
		return "null"
	case value.Bool:
		return "boolean"
	case value.Integer, value.Float:
		return "number"
	case value.String, value.StringLiteral:
		return "string"
	case value.NativeFunction, value.FunctionTemplate:
		return "function"
	default:
		return "object"
	}
}
