package vm

import (
	"math"

	"github.com/m8rscript/m8r/internal/diag"
	"github.com/m8rscript/m8r/internal/value"
)

// Stringify renders v as m8rscript's implicit string conversion (spec
// §4.4's ADD polymorphism and general coercion). Scalars use Value's own
// Literal(); StringLiteral/String need store access the value package
// cannot reach, so that indirection lives here, grounded on the
// teacher's Stringify-at-the-VM-boundary style (vm/operators.go's own
// toNumeric/toFloat64 helpers live beside the operators that need them,
// not inside types.Value).
func (vm *VM) Stringify(v value.Value) string {
	switch v.Type() {
	case value.StringLiteral:
		id := int(v.AsStringLiteral())
		if id >= 0 && id < len(vm.literals) {
			return vm.literals[id]
		}
		return ""
	case value.String:
		if s, ok := vm.rt.Heap.GetString(v.AsStringHandle()); ok {
			return s.String()
		}
		return ""
	case value.Object:
		if o, ok := vm.rt.Heap.GetObject(v.AsObjectHandle()); ok {
			return "[object " + vm.rt.Atoms.StringFrom(o.TypeName()) + "]"
		}
		return "[object]"
	default:
		return v.Literal()
	}
}

// newHeapString allocates v as a GC-tracked heap String and returns a
// String Value wrapping its handle.
func (vm *VM) newHeapString(s string) value.Value {
	h := vm.rt.Heap.AllocString(value.NewHeapString(s))
	return value.NewString(h)
}

// isNumeric reports whether v is Integer or Float.
func isNumeric(v value.Value) bool {
	return v.Type() == value.Integer || v.Type() == value.Float
}

// toFloat coerces a numeric value to float64 (to_float rule, §4.5).
func toFloat(v value.Value) float64 {
	if v.Type() == value.Integer {
		return float64(v.AsInt())
	}
	return v.AsFloat()
}

// toInt coerces a numeric value to int32 (to_int rule, §4.5): floats
// truncate toward zero.
func toInt(v value.Value) int32 {
	if v.Type() == value.Integer {
		return v.AsInt()
	}
	return int32(v.AsFloat())
}

// isStringy reports whether v is one of the two string-shaped kinds.
func isStringy(v value.Value) bool {
	return v.Type() == value.StringLiteral || v.Type() == value.String
}

// add implements ADD's polymorphism (spec §4.4): two integers add as
// integers, two floats add as floats, and anything else concatenates as
// strings (grounded on the teacher's add() in vm/operators.go, adapted
// from barn's strict int/int-float/float typing to the spec's looser
// "any non-numeric operand -> string concatenation" rule).
func (vm *VM) add(l, r value.Value) value.Value {
	if l.Type() == value.Integer && r.Type() == value.Integer {
		return value.NewInt(l.AsInt() + r.AsInt())
	}
	if isNumeric(l) && isNumeric(r) {
		return value.NewFloat(toFloat(l) + toFloat(r))
	}
	return vm.newHeapString(vm.Stringify(l) + vm.Stringify(r))
}

// arith applies a strictly-numeric binary operator, coercing to float if
// either operand is a float and reporting RuntimeInvalidOperand
// otherwise.
func (vm *VM) arith(l, r value.Value, intOp func(int32, int32) (int32, bool), floatOp func(float64, float64) float64) value.Value {
	if !isNumeric(l) || !isNumeric(r) {
		return vm.runtimeError(diag.RuntimeInvalidOperand, "operand is not a number")
	}
	if l.Type() == value.Integer && r.Type() == value.Integer {
		if res, ok := intOp(l.AsInt(), r.AsInt()); ok {
			return value.NewInt(res)
		}
		return vm.runtimeError(diag.RuntimeDivideByZero, "division by zero")
	}
	return value.NewFloat(floatOp(toFloat(l), toFloat(r)))
}

func (vm *VM) sub(l, r value.Value) value.Value {
	return vm.arith(l, r, func(a, b int32) (int32, bool) { return a - b, true }, func(a, b float64) float64 { return a - b })
}
func (vm *VM) mul(l, r value.Value) value.Value {
	return vm.arith(l, r, func(a, b int32) (int32, bool) { return a * b, true }, func(a, b float64) float64 { return a * b })
}
func (vm *VM) div(l, r value.Value) value.Value {
	return vm.arith(l, r,
		func(a, b int32) (int32, bool) {
			if b == 0 {
				return 0, false
			}
			return a / b, true
		},
		func(a, b float64) float64 { return a / b })
}
func (vm *VM) mod(l, r value.Value) value.Value {
	return vm.arith(l, r,
		func(a, b int32) (int32, bool) {
			if b == 0 {
				return 0, false
			}
			return a % b, true
		},
		func(a, b float64) float64 { return math.Mod(a, b) })
}

// bitwise applies an integer-only bitwise/shift operator.
func (vm *VM) bitwise(l, r value.Value, op func(int32, int32) int32) value.Value {
	if l.Type() != value.Integer || r.Type() != value.Integer {
		return vm.runtimeError(diag.RuntimeInvalidOperand, "bitwise operand is not an integer")
	}
	return value.NewInt(op(l.AsInt(), r.AsInt()))
}

// equals implements the comparison protocol of spec §4.4: "nulls equal,
// string-literal fast path, number-number float compare, string-string
// byte compare, otherwise reference-equal".
func (vm *VM) equals(l, r value.Value) bool {
	if (l.IsNull() || l.IsUndefined()) && (r.IsNull() || r.IsUndefined()) {
		return true
	}
	if l.Type() == value.StringLiteral && r.Type() == value.StringLiteral {
		return l.AsStringLiteral() == r.AsStringLiteral()
	}
	if isNumeric(l) && isNumeric(r) {
		return toFloat(l) == toFloat(r)
	}
	if isStringy(l) && isStringy(r) {
		return vm.Stringify(l) == vm.Stringify(r)
	}
	if l.Type() != r.Type() {
		return false
	}
	switch l.Type() {
	case value.Bool:
		return l.AsBool() == r.AsBool()
	case value.Id:
		return l.AsAtom() == r.AsAtom()
	case value.Object:
		return l.AsObjectHandle() == r.AsObjectHandle()
	default:
		return false
	}
}

// compare orders two numeric or stringy values for LT/LE/GT/GE,
// reporting RuntimeInvalidOperand for anything else (spec §4.4's
// comparison protocol extends to ordering only for those two families).
func (vm *VM) compare(l, r value.Value) (int, bool) {
	if isNumeric(l) && isNumeric(r) {
		a, b := toFloat(l), toFloat(r)
		switch {
		case a < b:
			return -1, true
		case a > b:
			return 1, true
		default:
			return 0, true
		}
	}
	if isStringy(l) && isStringy(r) {
		a, b := vm.Stringify(l), vm.Stringify(r)
		switch {
		case a < b:
			return -1, true
		case a > b:
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}
