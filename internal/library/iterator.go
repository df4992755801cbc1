package library

import (
	"github.com/m8rscript/m8r/internal/atom"
	"github.com/m8rscript/m8r/internal/diag"
	"github.com/m8rscript/m8r/internal/object"
	"github.com/m8rscript/m8r/internal/value"
	"github.com/m8rscript/m8r/internal/vm"
)

// buildIterator constructs the Iterator static root: create(collection)
// returns a handle with hasNext/next/key methods walking a MaterArray
// by index or a MaterObject by insertion-ordered key, grounded on
// object.MaterObject.Keys/MaterArray.Elements and eval/interp.go's
// for-in enumeration order.
func buildIterator(tbl *atom.Table) *object.StaticObject {
	root := object.NewStaticObject(tbl.Atomize("Iterator"))

	define(tbl, root, "create", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		if len(args) < 1 || args[0].Type() != value.Object {
			return fail(diag.WrongNumberOfParams)
		}
		obj, found := v.Runtime().Heap.GetObject(args[0].AsObjectHandle())
		if !found {
			return fail(diag.InvalidArgumentValue)
		}
		switch o := obj.(type) {
		case *object.MaterArray:
			return ok(newArrayIterator(v, o))
		case *object.MaterObject:
			return ok(newObjectIterator(v, o))
		default:
			return fail(diag.InvalidArgumentValue)
		}
	})

	return root
}

func newArrayIterator(v *vm.VM, arr *object.MaterArray) value.Value {
	idx := 0
	methods := map[string]vm.NativeFunc{
		"hasNext": func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
			return okBool(idx < arr.Len())
		},
		"next": func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
			elems := arr.Elements()
			if idx >= len(elems) {
				return ok(value.Nul)
			}
			val := elems[idx]
			idx++
			return ok(val)
		},
		"key": func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
			return okInt(int32(idx))
		},
	}
	return newMethodObject(v, v.Runtime().Atoms.Atomize("ArrayIterator"), methods)
}

func newObjectIterator(v *vm.VM, mo *object.MaterObject) value.Value {
	keys := mo.Keys()
	idx := 0
	methods := map[string]vm.NativeFunc{
		"hasNext": func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
			return okBool(idx < len(keys))
		},
		"next": func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
			if idx >= len(keys) {
				return ok(value.Nul)
			}
			val, _ := mo.OwnProperty(keys[idx])
			idx++
			return ok(val)
		},
		"key": func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
			if idx == 0 || idx > len(keys) {
				return ok(value.Nul)
			}
			return ok(heapString(v, v.Runtime().Atoms.StringFrom(keys[idx-1])))
		},
	}
	return newMethodObject(v, v.Runtime().Atoms.Atomize("ObjectIterator"), methods)
}
