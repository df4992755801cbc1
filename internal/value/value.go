// Package value implements the two-word tagged polymorphic Value cell
// (spec data model §3.2) and the heap String type (§3.3).
//
// Design Notes §9 calls for an explicit struct rather than stealing tag
// bits from floats the way the original engine does. Go has no portable
// way to pack an arbitrary tagged union into eight bytes without unsafe,
// so the scalar variants (Bool, Integer, Float, StringLiteral, Id,
// Object, String) live entirely in the num field, and only the four
// host/table escape-hatch variants (NativeObject, NativeFunction,
// StaticObject, FunctionTemplate) spend the second word on an
// interface — those are
// exactly the variants that reference host- or compiler-owned data the
// value package cannot itself name without an import cycle.
package value

import (
	"math"
	"strconv"
	"strings"

	"github.com/m8rscript/m8r/internal/atom"
)

// ObjectHandle indexes a heap Object tracked by the GC (gc.Heap).
type ObjectHandle uint32

// StringHandle indexes a heap String tracked by the GC (gc.Heap).
type StringHandle uint32

// StringLiteralID indexes a program's constant literal pool.
type StringLiteralID uint32

// Value is the VM's tagged polymorphic cell.
type Value struct {
	tag Kind
	num uint64      // scalar payload for Bool/Integer/Float/StringLiteral/Id/Object/String
	ref interface{} // NativeObject / NativeFunction / StaticObject / FunctionTemplate payload only
}

// Undef is the Undefined singleton.
var Undef = Value{tag: Undefined}

// Nul is the Null singleton.
var Nul = Value{tag: Null}

// NewBool returns a Bool value.
func NewBool(b bool) Value {
	var n uint64
	if b {
		n = 1
	}
	return Value{tag: Bool, num: n}
}

// NewInt returns an Integer value (32-bit signed per spec §3.2).
func NewInt(i int32) Value {
	return Value{tag: Integer, num: uint64(uint32(i))}
}

// NewFloat returns a Float value (stored as IEEE-754 double internally;
// the spec's single-precision budget is a microcontroller concession we
// do not need to replicate on a general-purpose host).
func NewFloat(f float64) Value {
	return Value{tag: Float, num: math.Float64bits(f)}
}

// NewStringLiteral returns a reference into a program's literal pool.
func NewStringLiteral(id StringLiteralID) Value {
	return Value{tag: StringLiteral, num: uint64(id)}
}

// NewString returns a handle to a GC-tracked heap String.
func NewString(h StringHandle) Value {
	return Value{tag: String, num: uint64(h)}
}

// NewID returns an Id value wrapping an Atom.
func NewID(a atom.Atom) Value {
	return Value{tag: Id, num: uint64(a)}
}

// NewObject returns a handle to a GC-tracked heap Object.
func NewObject(h ObjectHandle) Value {
	return Value{tag: Object, num: uint64(h)}
}

// NewNativeObject wraps a host-provided, refcounted object.
func NewNativeObject(ref interface{}) Value {
	return Value{tag: NativeObject, ref: ref}
}

// NewNativeFunction wraps a host callable. The concrete function type is
// defined by the vm package to avoid an import cycle; callers there must
// type-assert AsRef() back to their own function type.
func NewNativeFunction(ref interface{}) Value {
	return Value{tag: NativeFunction, ref: ref}
}

// NewStaticObject wraps a compile-time-static object table pointer
// (*object.StaticObject, asserted by callers in the object package).
func NewStaticObject(ref interface{}) Value {
	return Value{tag: StaticObject, ref: ref}
}

// NewFunctionTemplate wraps a compiled, not-yet-closed-over function
// body (*object.Function, asserted by the vm package). A function
// literal's CLOSURE instruction addresses one of these in its
// enclosing function's constant pool to build a heap Closure at
// runtime; the template itself is immutable compile-time data, never a
// GC root.
func NewFunctionTemplate(ref interface{}) Value {
	return Value{tag: FunctionTemplate, ref: ref}
}

// Type returns the value's type discriminant.
func (v Value) Type() Kind { return v.tag }

// AsBool returns the Bool payload; the caller must check Type() first.
func (v Value) AsBool() bool { return v.num != 0 }

// AsInt returns the Integer payload.
func (v Value) AsInt() int32 { return int32(uint32(v.num)) }

// AsFloat returns the Float payload.
func (v Value) AsFloat() float64 { return math.Float64frombits(v.num) }

// AsStringLiteral returns the StringLiteral payload.
func (v Value) AsStringLiteral() StringLiteralID { return StringLiteralID(v.num) }

// AsStringHandle returns the String payload.
func (v Value) AsStringHandle() StringHandle { return StringHandle(v.num) }

// AsAtom returns the Id payload.
func (v Value) AsAtom() atom.Atom { return atom.Atom(v.num) }

// AsObjectHandle returns the Object payload.
func (v Value) AsObjectHandle() ObjectHandle { return ObjectHandle(v.num) }

// AsRef returns the escape-hatch payload for NativeObject, NativeFunction,
// StaticObject, and FunctionTemplate values.
func (v Value) AsRef() interface{} { return v.ref }

// IsUndefined reports whether v is the Undefined singleton.
func (v Value) IsUndefined() bool { return v.tag == Undefined }

// IsNull reports whether v is the Null singleton.
func (v Value) IsNull() bool { return v.tag == Null }

// Truthy implements m8rscript truthiness: non-zero numbers, non-empty
// strings, Bool's own value, and any valid object/function handle are
// truthy; Undefined, Null, and an Id wrapping NoAtom are the only
// always-falsy non-scalar cases.
func (v Value) Truthy(strLen func(Value) int) bool {
	switch v.tag {
	case Bool:
		return v.AsBool()
	case Integer:
		return v.AsInt() != 0
	case Float:
		return v.AsFloat() != 0
	case StringLiteral, String:
		if strLen == nil {
			return false
		}
		return strLen(v) != 0
	case Id:
		return v.AsAtom() != atom.NoAtom
	case Object:
		return v.AsObjectHandle() != 0
	case NativeObject, NativeFunction, StaticObject, FunctionTemplate:
		return v.ref != nil
	default:
		return false
	}
}

// Literal renders a m8rscript source literal for scalar kinds. Heap
// strings/objects need store access to render and are formatted by
// the vm package (vm.Stringify).
func (v Value) Literal() string {
	switch v.tag {
	case Undefined:
		return "undefined"
	case Null:
		return "null"
	case Bool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case Integer:
		return strconv.FormatInt(int64(v.AsInt()), 10)
	case Float:
		f := v.AsFloat()
		if math.IsNaN(f) {
			return "NaN"
		}
		if math.IsInf(f, 1) {
			return "Infinity"
		}
		if math.IsInf(f, -1) {
			return "-Infinity"
		}
		s := strconv.FormatFloat(f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	default:
		return "<" + v.tag.String() + ">"
	}
}
