// Package compiler implements the single-pass parser/code generator of
// spec §4.3: it recognizes the grammar directly off the scanner's token
// stream and emits register-machine bytecode with no intervening AST.
//
// Grounded on the teacher's parser/parser.go (token lookahead shape) and
// vm/compiler.go (emit/addConstant/emitJump/patchJump primitives, Scope
// and LoopContext stacks), adapted from barn's two-pass parse-then-walk
// design into the spec's single-pass parse-and-emit design, including a
// parse-stack of operand descriptors the teacher has no analogue for
// (it resolves everything through named variables rather than a
// register high-water allocator).
package compiler

import (
	"github.com/m8rscript/m8r/internal/atom"
	"github.com/m8rscript/m8r/internal/bytecode"
	"github.com/m8rscript/m8r/internal/diag"
	"github.com/m8rscript/m8r/internal/object"
	"github.com/m8rscript/m8r/internal/scanner"
	"github.com/m8rscript/m8r/internal/value"
)

// descKind classifies one entry on the parse stack (spec §4.3).
type descKind int

const (
	descUnknown descKind = iota
	descLocal
	descConstant
	descRegister
	descRefK
	descPropRef
	descEltRef
	descThis
	descUpValue
)

// desc is one parse-stack operand descriptor.
type desc struct {
	kind   descKind
	reg    int         // descRegister/descLocal: register index
	reg2   int         // descPropRef/descEltRef: base register
	key    value.Value // descPropRef/descEltRef: property/element key descriptor (baked already, or literal)
	keyReg int         // baked key register, once materialized
	cval   value.Value // descConstant: the literal value
	name   atom.Atom   // descRefK/descUpValue: identifier atom
	upIdx  int         // descUpValue: up-value index in current function
}

type localVar struct {
	name atom.Atom
	reg  int
}

type loopCtx struct {
	breakJumps    []jumpSite
	continueJumps []jumpSite
	continueIP    int
	hasContinueIP bool
}

// funcState holds per-function compilation state; functions nest via a
// stack so closures can resolve identifiers in enclosing scopes.
type funcState struct {
	parent *funcState

	code      []byte
	constants []value.Value
	constIdx  map[string]int

	locals     []localVar
	scopeMarks []int // index into locals at each beginScope
	maxLocals  int   // high-water len(locals); endScope truncates locals but not this

	upvalues []object.UpValueDesc
	upIdx    map[atom.Atom]int

	nextTemp int // next temp register, counting down from bytecode.MaxRegister
	maxTemp  int // high-water mark (lowest nextTemp reached), used for final renumber

	loops []loopCtx

	lines      bytecode.LineTable
	lastLine   int
	emitLines  bool

	formalParamCount int
	uniqueCounter    int
}

func newFuncState(parent *funcState, emitLines bool) *funcState {
	return &funcState{
		parent:    parent,
		constIdx:  make(map[string]int),
		upIdx:     make(map[atom.Atom]int),
		nextTemp:  bytecode.MaxRegister,
		maxTemp:   bytecode.MaxRegister,
		emitLines: emitLines,
	}
}

// Compiler drives single-pass compilation of one top-level program or
// nested function literal.
type Compiler struct {
	sc    *scanner.Scanner
	atoms *atom.Table
	errs  diag.ParseErrorList

	fn *funcState

	literalPool []string // program-wide string literal pool (spec §3.2's StringLiteral)
}

// Options configures a compile.
type Options struct {
	EmitLines bool // debug mode: emit LINENO whenever the source line changes
}

// New creates a Compiler reading src through an atom table shared with
// the rest of the runtime (so atoms compiled here match the VM's).
func New(src string, atoms *atom.Table, opts Options) *Compiler {
	c := &Compiler{
		sc:    scanner.New(src),
		atoms: atoms,
	}
	c.fn = newFuncState(nil, opts.EmitLines)
	return c
}

// Errors returns the accumulated parse/codegen diagnostics.
func (c *Compiler) Errors() diag.ParseErrorList { return c.errs }

func (c *Compiler) addError(format string, args ...interface{}) {
	tok := c.sc.GetToken()
	c.errs.Add(sprintf(format, args...), tok.Pos.Line, tok.Pos.Column, len(tok.Text))
}

// --- emission primitives (spec §4.3 label/jump machinery) ---

func (c *Compiler) emit(op bytecode.OpCode) int {
	pos := len(c.fn.code)
	c.fn.code = append(c.fn.code, bytecode.Encode(op, 0))
	return pos
}

func (c *Compiler) emitImm(op bytecode.OpCode, imm byte) int {
	pos := len(c.fn.code)
	c.fn.code = append(c.fn.code, bytecode.Encode(op, imm))
	return pos
}

func (c *Compiler) emitByte(b byte) { c.fn.code = append(c.fn.code, b) }

func (c *Compiler) emitSN(v int16) { c.fn.code = bytecode.PutSN(c.fn.code, v) }
func (c *Compiler) emitUN(v uint16) { c.fn.code = bytecode.PutUN(c.fn.code, v) }

// emitRK emits one RK operand byte, plus AtomShort/AtomLong's inline
// atom bytes when rk addresses an atom constant too rare to pool.
func (c *Compiler) emitRK(rk byte, inlineAtom atom.Atom, isAtom bool) {
	c.emitByte(rk)
	if !isAtom {
		return
	}
	switch rk {
	case bytecode.ConstAtomShort:
		c.emitByte(byte(inlineAtom))
	case bytecode.ConstAtomLong:
		c.fn.code = bytecode.PutUN(c.fn.code, uint16(inlineAtom))
	}
}

// label captures the current offset as a jump-patch anchor.
func (c *Compiler) label() int { return len(c.fn.code) }

// jumpSite records where a jump instruction starts (its opcode byte)
// so matchJump can both locate the SN placeholder and reproduce the
// VM's pc += JumpDelta(op, sn) arithmetic (bytecode.JumpDelta) exactly.
type jumpSite struct {
	opPos    int
	snOffset int
}

// emitJump emits op (JMP) followed by a placeholder SN operand.
func (c *Compiler) emitJump(op bytecode.OpCode) jumpSite {
	p := c.emit(op)
	off := len(c.fn.code)
	c.emitSN(0)
	return jumpSite{opPos: p, snOffset: off}
}

// emitCondJump emits a conditional jump (JT/JF) testing rk.
func (c *Compiler) emitCondJump(op bytecode.OpCode, rk byte) jumpSite {
	p := c.emit(op)
	c.emitByte(rk)
	off := len(c.fn.code)
	c.emitSN(0)
	return jumpSite{opPos: p, snOffset: off}
}

// matchJump back-patches a jump's SN placeholder to target dest
// (defaulting to the current offset). The VM reconstructs the target
// as (instruction start + 3 or 4) + JumpDelta(op, sn), which reduces to
// opPos + sn; matchJump inverts that so sn = dest - opPos. Jump range
// is +/-32767 bytes.
func (c *Compiler) matchJump(site jumpSite, dest int) {
	if dest == -1 {
		dest = len(c.fn.code)
	}
	delta := dest - site.opPos
	if delta > 32767 || delta < -32767 {
		c.addError("jump offset too large (max +/-32767, got %d)", delta)
		return
	}
	c.fn.code[site.snOffset] = byte(int16(delta) >> 8)
	c.fn.code[site.snOffset+1] = byte(int16(delta))
}

// addConstant de-duplicates v into the function's constant pool and
// returns an RK byte addressing it (spec §4.3's add_constant).
func (c *Compiler) addConstant(v value.Value) byte {
	if rk, ok := builtinConstant(v); ok {
		return rk
	}
	// Constant-pool RK bytes start right after the last builtin sentinel
	// (ConstAtomLong); bytecode.ConstantIndex/NumBuiltinConstants invert
	// this on the read side in vm.readRK.
	base := int(bytecode.ConstAtomLong) + 1
	key := c.constKeyOf(v)
	if idx, ok := c.fn.constIdx[key]; ok {
		return byte(base + idx)
	}
	idx := len(c.fn.constants)
	if base+idx > 255 {
		c.addError("too many constants in function (max %d)", 256-base)
		return bytecode.ConstUndefined
	}
	c.fn.constants = append(c.fn.constants, v)
	c.fn.constIdx[key] = idx
	return byte(base + idx)
}

func builtinConstant(v value.Value) (byte, bool) {
	switch {
	case v.IsUndefined():
		return bytecode.ConstUndefined, true
	case v.IsNull():
		return bytecode.ConstNull, true
	case v.Type() == value.Integer && v.AsInt() == 0:
		return bytecode.ConstInt0, true
	case v.Type() == value.Integer && v.AsInt() == 1:
		return bytecode.ConstInt1, true
	}
	return 0, false
}

// constKeyOf derives a dedup key for the constant pool. FunctionTemplate
// constants are never deduplicated (each call mints a distinct "fn:N"
// key from the function's uniqueCounter): two function literals with
// identical bodies are still distinct closures-in-waiting.
func (c *Compiler) constKeyOf(v value.Value) string {
	switch v.Type() {
	case value.Integer:
		return "i:" + itoa(v.AsInt())
	case value.Float:
		return "f:" + ftoa(v.AsFloat())
	case value.StringLiteral:
		return "s:" + itoa(int32(v.AsStringLiteral()))
	case value.Bool:
		if v.AsBool() {
			return "b:true"
		}
		return "b:false"
	case value.FunctionTemplate:
		c.fn.uniqueCounter++
		return "fn:" + itoa(int32(c.fn.uniqueCounter))
	default:
		c.fn.uniqueCounter++
		return "?:" + itoa(int32(c.fn.uniqueCounter))
	}
}

// --- register allocation ---

// allocTemp allocates one temporary register, decrementing the
// high-water pointer from MaxRegister downward.
func (c *Compiler) allocTemp() int {
	r := c.fn.nextTemp
	c.fn.nextTemp--
	if c.fn.nextTemp < c.fn.maxTemp {
		c.fn.maxTemp = c.fn.nextTemp
	}
	if c.fn.nextTemp <= len(c.fn.locals) {
		c.addError("out of registers (too many live temporaries)")
	}
	return r
}

// freeTemp releases the most recently allocated temp if it is in fact
// the top of the temp region; codegen call sites free in LIFO order.
func (c *Compiler) freeTemp(reg int) {
	if reg == c.fn.nextTemp+1 {
		c.fn.nextTemp++
	}
}

func (c *Compiler) declareLocal(name atom.Atom) int {
	reg := len(c.fn.locals)
	c.fn.locals = append(c.fn.locals, localVar{name: name, reg: reg})
	if len(c.fn.locals) > c.fn.maxLocals {
		c.fn.maxLocals = len(c.fn.locals)
	}
	return reg
}

func (c *Compiler) beginScope() {
	c.fn.scopeMarks = append(c.fn.scopeMarks, len(c.fn.locals))
}

func (c *Compiler) endScope() {
	n := len(c.fn.scopeMarks)
	mark := c.fn.scopeMarks[n-1]
	c.fn.scopeMarks = c.fn.scopeMarks[:n-1]
	c.fn.locals = c.fn.locals[:mark]
}

// resolveLocal searches fs's own locals for name.
func resolveLocal(fs *funcState, name atom.Atom) (int, bool) {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			return fs.locals[i].reg, true
		}
	}
	return 0, false
}

// resolveUpValue searches enclosing functions for name, allocating an
// up-value descriptor chain on the way back in if found (spec §4.3's
// closures & up-values).
func resolveUpValue(fs *funcState, name atom.Atom) (int, bool) {
	if fs.parent == nil {
		return 0, false
	}
	if idx, ok := fs.upIdx[name]; ok {
		return idx, true
	}
	if reg, ok := resolveLocal(fs.parent, name); ok {
		return addUpValue(fs, object.UpValueDesc{Index: reg, FrameDistance: 1, Name: name})
	}
	if idx, ok := resolveUpValue(fs.parent, name); ok {
		return addUpValue(fs, object.UpValueDesc{Index: idx, FrameDistance: fs.parent.upvalues[idx].FrameDistance + 1, Name: name})
	}
	return 0, false
}

func addUpValue(fs *funcState, d object.UpValueDesc) (int, bool) {
	idx := len(fs.upvalues)
	fs.upvalues = append(fs.upvalues, d)
	fs.upIdx[d.Name] = idx
	return idx, true
}

// --- deferred code buffers (spec §4.3, for-loop step) ---

// startDeferred redirects emission into a side buffer, returning the
// interrupted main stream so the caller can restore it once the
// deferred content (e.g. a for-loop's step expression) is fully
// emitted, via stopDeferred.
func (c *Compiler) startDeferred() []byte {
	main := c.fn.code
	c.fn.code = nil
	return main
}

// stopDeferred restores the main stream saved by startDeferred and
// returns the bytes emitted while deferred was active.
func (c *Compiler) stopDeferred(main []byte) []byte {
	deferred := c.fn.code
	c.fn.code = main
	return deferred
}

// spliceDeferred appends previously deferred bytes onto the current
// main stream and returns the offset at which they now begin.
func (c *Compiler) spliceDeferred(deferred []byte) int {
	start := len(c.fn.code)
	c.fn.code = append(c.fn.code, deferred...)
	return start
}

// --- line tracking ---

func (c *Compiler) trackLine(line int) {
	if !c.fn.emitLines {
		return
	}
	if line == c.fn.lastLine {
		return
	}
	c.fn.lastLine = line
	c.fn.lines = append(c.fn.lines, bytecode.LineEntry{StartIP: len(c.fn.code), Line: line})
	c.emit(bytecode.LINENO)
	c.emitUN(uint16(line))
}

// finishFunction applies the final register-renumbering pass (spec
// §4.3's "final pass"): temporaries counted down from MaxRegister are
// remapped into the contiguous range immediately above the locals.
func (c *Compiler) finishFunction() *object.Function {
	localCount := c.fn.maxLocals
	lowestTemp := c.fn.maxTemp + 1 // nextTemp decremented past the last used one
	renumber := func(r int) int {
		if r <= localCount-1 {
			return r
		}
		if r < lowestTemp {
			return r // not a temp register we allocated (shouldn't happen)
		}
		return localCount + (bytecode.MaxRegister - r)
	}
	code := remapRegisters(c.fn.code, renumber)

	fn := &object.Function{
		Code:             code,
		Constants:        c.fn.constants,
		UpValues:         c.fn.upvalues,
		Lines:            c.fn.lines,
		FormalParamCount: c.fn.formalParamCount,
		LocalCount:       localCount,
	}
	return fn
}
