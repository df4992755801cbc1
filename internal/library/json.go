package library

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/m8rscript/m8r/internal/atom"
	"github.com/m8rscript/m8r/internal/diag"
	"github.com/m8rscript/m8r/internal/gc"
	"github.com/m8rscript/m8r/internal/object"
	"github.com/m8rscript/m8r/internal/value"
	"github.com/m8rscript/m8r/internal/vm"
)

// buildJSON constructs the JSON static root: parse/stringify over m8r's
// own Value set. Grounded on builtins/json.go's mooToJSON/jsonToMoo
// shape, but hand-written rather than routed through encoding/json:
// m8r's Value has no lossless encoding/json round trip (atoms,
// StringLiteral vs heap String, NativeFunction, NativeObject), the same
// reason the teacher's own JSON builtin hand-rolls its conversion
// instead of marshaling a MOO value directly.
func buildJSON(tbl *atom.Table) *object.StaticObject {
	root := object.NewStaticObject(tbl.Atomize("JSON"))

	define(tbl, root, "stringify", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		if len(args) < 1 {
			return fail(diag.WrongNumberOfParams)
		}
		var b strings.Builder
		if !jsonEncode(v, &b, args[0]) {
			return fail(diag.InvalidArgumentValue)
		}
		return ok(heapString(v, b.String()))
	})

	define(tbl, root, "parse", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		s, hasArg := argString(v, args, 0)
		if !hasArg {
			return fail(diag.WrongNumberOfParams)
		}
		p := &jsonParser{src: s}
		p.skipSpace()
		val, ok2 := p.parseValue(v)
		if !ok2 {
			return fail(diag.InvalidArgumentValue)
		}
		p.skipSpace()
		if p.pos != len(p.src) {
			return fail(diag.InvalidArgumentValue)
		}
		return ok(val)
	})

	return root
}

// jsonEncode writes v's JSON representation to b, returning false for
// values JSON cannot represent (NativeObject, NativeFunction,
// FunctionTemplate, a non-finite Float).
func jsonEncode(v *vm.VM, b *strings.Builder, val value.Value) bool {
	switch val.Type() {
	case value.Undefined, value.NativeObject, value.NativeFunction, value.FunctionTemplate, value.StaticObject:
		return false
	case value.Null:
		b.WriteString("null")
	case value.Bool:
		if val.AsBool() {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case value.Integer:
		b.WriteString(strconv.FormatInt(int64(val.AsInt()), 10))
	case value.Float:
		f := val.AsFloat()
		if math.IsNaN(f) || math.IsInf(f, 0) { // NaN/Inf guard
			return false
		}
		b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	case value.String, value.StringLiteral:
		jsonEncodeString(b, v.Stringify(val))
	case value.Object:
		o, okObj := v.Runtime().Heap.GetObject(val.AsObjectHandle())
		if !okObj {
			return false
		}
		switch elem := o.(type) {
		case *object.MaterArray:
			b.WriteByte('[')
			for i, e := range elem.Elements() {
				if i > 0 {
					b.WriteByte(',')
				}
				if !jsonEncode(v, b, e) {
					return false
				}
			}
			b.WriteByte(']')
		case *object.MaterObject:
			b.WriteByte('{')
			for i, k := range elem.Keys() {
				if i > 0 {
					b.WriteByte(',')
				}
				prop, _ := elem.GetProperty(k)
				jsonEncodeString(b, v.Runtime().Atoms.StringFrom(k))
				b.WriteByte(':')
				if !jsonEncode(v, b, prop) {
					return false
				}
			}
			b.WriteByte('}')
		default:
			return false
		}
	default:
		return false
	}
	return true
}

func jsonEncodeString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}

// jsonParser is a small hand-written recursive-descent JSON reader,
// grounded on the same shape as the scanner package's own one-token
// lookahead byte scanning rather than a table-driven lexer.
type jsonParser struct {
	src string
	pos int
}

func (p *jsonParser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *jsonParser) parseValue(v *vm.VM) (value.Value, bool) {
	if p.pos >= len(p.src) {
		return value.Undef, false
	}
	switch c := p.src[p.pos]; {
	case c == '{':
		return p.parseObject(v)
	case c == '[':
		return p.parseArray(v)
	case c == '"':
		s, ok2 := p.parseString()
		if !ok2 {
			return value.Undef, false
		}
		return heapString(v, s), true
	case c == 't':
		return p.literal("true", value.NewBool(true))
	case c == 'f':
		return p.literal("false", value.NewBool(false))
	case c == 'n':
		return p.literal("null", value.Nul)
	case c == '-' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	default:
		return value.Undef, false
	}
}

func (p *jsonParser) literal(lit string, v value.Value) (value.Value, bool) {
	if strings.HasPrefix(p.src[p.pos:], lit) {
		p.pos += len(lit)
		return v, true
	}
	return value.Undef, false
}

func (p *jsonParser) parseNumber() (value.Value, bool) {
	start := p.pos
	isFloat := false
	if p.pos < len(p.src) && p.src[p.pos] == '-' {
		p.pos++
	}
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	if p.pos < len(p.src) && p.src[p.pos] == '.' {
		isFloat = true
		p.pos++
		for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
	}
	if p.pos < len(p.src) && (p.src[p.pos] == 'e' || p.src[p.pos] == 'E') {
		isFloat = true
		p.pos++
		if p.pos < len(p.src) && (p.src[p.pos] == '+' || p.src[p.pos] == '-') {
			p.pos++
		}
		for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
	}
	text := p.src[start:p.pos]
	if text == "" || text == "-" {
		return value.Undef, false
	}
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return value.Undef, false
		}
		return value.NewFloat(f), true
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(text, 64)
		if ferr != nil {
			return value.Undef, false
		}
		return value.NewFloat(f), true
	}
	return value.NewInt(int32(n)), true
}

func (p *jsonParser) parseString() (string, bool) {
	if p.pos >= len(p.src) || p.src[p.pos] != '"' {
		return "", false
	}
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '"' {
			p.pos++
			return b.String(), true
		}
		if c == '\\' {
			p.pos++
			if p.pos >= len(p.src) {
				return "", false
			}
			switch p.src[p.pos] {
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			case '/':
				b.WriteByte('/')
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b':
				b.WriteByte('\b')
			case 'f':
				b.WriteByte('\f')
			case 'u':
				if p.pos+4 >= len(p.src) {
					return "", false
				}
				hex := p.src[p.pos+1 : p.pos+5]
				n, err := strconv.ParseUint(hex, 16, 32)
				if err != nil {
					return "", false
				}
				r := rune(n)
				p.pos += 4
				if utf16.IsSurrogate(r) && p.pos+6 < len(p.src) && p.src[p.pos+1] == '\\' && p.src[p.pos+2] == 'u' {
					hex2 := p.src[p.pos+3 : p.pos+7]
					n2, err2 := strconv.ParseUint(hex2, 16, 32)
					if err2 == nil {
						r2 := utf16.DecodeRune(r, rune(n2))
						if r2 != utf8.RuneError {
							b.WriteRune(r2)
							p.pos += 6
							p.pos++
							continue
						}
					}
				}
				b.WriteRune(r)
			default:
				return "", false
			}
			p.pos++
			continue
		}
		b.WriteByte(c)
		p.pos++
	}
	return "", false
}

func (p *jsonParser) parseArray(v *vm.VM) (value.Value, bool) {
	p.pos++ // consume '['
	h := v.Runtime().Heap.AllocObject(object.NewMaterArray(v.Runtime().Atoms.Atomize("length")), gc.MemMaterArray)
	arrVal := value.NewObject(h)
	arr, _ := v.Runtime().Heap.GetObject(h)
	a := arr.(*object.MaterArray)

	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == ']' {
		p.pos++
		return arrVal, true
	}
	for {
		p.skipSpace()
		elem, ok2 := p.parseValue(v)
		if !ok2 {
			return value.Undef, false
		}
		a.Append(elem)
		p.skipSpace()
		if p.pos >= len(p.src) {
			return value.Undef, false
		}
		if p.src[p.pos] == ',' {
			p.pos++
			continue
		}
		if p.src[p.pos] == ']' {
			p.pos++
			return arrVal, true
		}
		return value.Undef, false
	}
}

func (p *jsonParser) parseObject(v *vm.VM) (value.Value, bool) {
	p.pos++ // consume '{'
	objVal := value.NewObject(v.Runtime().Heap.AllocObject(object.NewMaterObject(v.Runtime().Atoms.Atomize("Object")), gc.MemMaterObject))
	heapObj, _ := v.Runtime().Heap.GetObject(objVal.AsObjectHandle())
	mo := heapObj.(*object.MaterObject)

	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '}' {
		p.pos++
		return objVal, true
	}
	for {
		p.skipSpace()
		key, ok2 := p.parseString()
		if !ok2 {
			return value.Undef, false
		}
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != ':' {
			return value.Undef, false
		}
		p.pos++
		p.skipSpace()
		val, ok3 := p.parseValue(v)
		if !ok3 {
			return value.Undef, false
		}
		mo.SetProperty(v.Runtime().Atoms.Atomize(key), val, object.AlwaysAdd)
		p.skipSpace()
		if p.pos >= len(p.src) {
			return value.Undef, false
		}
		if p.src[p.pos] == ',' {
			p.pos++
			continue
		}
		if p.src[p.pos] == '}' {
			p.pos++
			return objVal, true
		}
		return value.Undef, false
	}
}
