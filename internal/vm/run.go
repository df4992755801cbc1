package vm

import (
	"github.com/m8rscript/m8r/internal/bytecode"
	"github.com/m8rscript/m8r/internal/diag"
	"github.com/m8rscript/m8r/internal/object"
	"github.com/m8rscript/m8r/internal/value"
)

// Start begins executing prog's Main function as the program's entry
// call (spec §4.5: `this` is the top-level Program, no arguments).
func (vm *VM) Start(prog *Program) {
	vm.literals = prog.Literals
	clo := &object.Closure{Fn: prog.Main, BoundThis: value.Undef}
	vm.enterClosure(clo, vm.rt.ProgramValue(), 0, nil)
}

// isTruthy implements JF/JT/LOR/LAND's condition test (spec §4.4),
// routing string length lookups through the VM's store.
func (vm *VM) isTruthy(v value.Value) bool {
	return v.Truthy(func(s value.Value) int { return len(vm.Stringify(s)) })
}

// Run drives the dispatch loop until the call stack empties, a runtime
// error threshold forces termination, or the program must suspend
// (YIELD, a delay, or a wait for an event). Spec §4.5's cooperative
// per-Task execution contract: one Run call never blocks.
func (vm *VM) Run() object.CallReturnValue {
	for {
		if vm.terminateRequested {
			return object.Terminated()
		}
		if vm.yieldRequested {
			vm.yieldRequested = false
			return object.Yield()
		}
		if len(vm.frames) == 0 {
			if ev, ok := vm.nextEvent(); ok {
				vm.runningEvent = true
				vm.startEventCall(ev)
				continue
			}
			vm.runningEvent = false
			return object.Finished()
		}
		if ret, suspend := vm.step(); suspend {
			return ret
		}
	}
}

// nextEvent drains any cross-goroutine events into vm.events and pops
// the oldest one, if any (spec §4.5: "between instructions, if the
// queue is non-empty and no event is executing, synthesize a call").
func (vm *VM) nextEvent() (eventRecord, bool) {
	vm.drainEvents()
	if len(vm.events) == 0 {
		return eventRecord{}, false
	}
	ev := vm.events[0]
	vm.events = vm.events[1:]
	return ev, true
}

// startEventCall pushes an event's arguments and dispatches its
// callback as an ordinary call (spec §4.5's "[func, this, argc,
// arg0..arg_{argc-1}]" event record).
func (vm *VM) startEventCall(ev eventRecord) {
	for _, a := range ev.args {
		vm.push(a)
	}
	vm.dispatchCall(ev.fn, ev.this, len(ev.args), nil)
}

// step executes exactly one bytecode instruction in the active frame.
// suspend is true when the dispatcher must return control to the
// scheduler (YIELD) rather than continue the loop.
func (vm *VM) step() (object.CallReturnValue, bool) {
	f := vm.current()
	code := f.fn.Code

	if f.pc >= len(code) {
		vm.doReturn(0)
		return object.CallReturnValue{}, false
	}

	op, imm := bytecode.Decode(code[f.pc])
	pos := f.pc + 1

	switch op {
	case bytecode.MOVE:
		r := int(code[pos])
		pos++
		v, next := vm.readRK(f, code, pos)
		vm.writeReg(r, v)
		pos = next

	case bytecode.LOADREFK:
		r := int(code[pos])
		pos++
		name, next := vm.readRK(f, code, pos)
		vm.writeReg(r, vm.loadRef(f, name.AsAtom()))
		pos = next

	case bytecode.STOREFK:
		name, next := vm.readRK(f, code, pos)
		pos = next
		v, next2 := vm.readRK(f, code, pos)
		pos = next2
		vm.storeRef(f, name.AsAtom(), v)

	case bytecode.LOADLITA:
		r := int(code[pos])
		pos++
		vm.writeReg(r, vm.allocArray())

	case bytecode.LOADLITO:
		r := int(code[pos])
		pos++
		vm.writeReg(r, vm.allocObject(vm.rt.Atoms.Atomize("Object")))

	case bytecode.LOADTRUE:
		r := int(code[pos])
		pos++
		vm.writeReg(r, value.NewBool(true))

	case bytecode.LOADFALSE:
		r := int(code[pos])
		pos++
		vm.writeReg(r, value.NewBool(false))

	case bytecode.LOADNULL:
		r := int(code[pos])
		pos++
		vm.writeReg(r, value.Nul)

	case bytecode.LOADTHIS:
		r := int(code[pos])
		pos++
		vm.writeReg(r, f.this)

	case bytecode.LOADUP:
		r := int(code[pos])
		pos++
		u := int(code[pos])
		pos++
		vm.writeReg(r, vm.readUpValue(f, u))

	case bytecode.STOREUP:
		u := int(code[pos])
		pos++
		valReg := int(code[pos])
		pos++
		vm.writeUpValue(f, u, vm.readReg(valReg))

	case bytecode.LOADPROP:
		r := int(code[pos])
		pos++
		base, next := vm.readRK(f, code, pos)
		pos = next
		name, next2 := vm.readRK(f, code, pos)
		pos = next2
		v, ok := vm.getProperty(base, name.AsAtom())
		if !ok {
			v = vm.runtimeError(diag.RuntimePropertyDoesNotExist, "Property '%s' does not exist", vm.rt.Atoms.StringFrom(name.AsAtom()))
		}
		vm.writeReg(r, v)

	case bytecode.LOADELT:
		r := int(code[pos])
		pos++
		base, next := vm.readRK(f, code, pos)
		pos = next
		key, next2 := vm.readRK(f, code, pos)
		pos = next2
		v, ok := vm.getElement(base, key)
		if !ok {
			v = vm.runtimeError(diag.RuntimeInvalidOperand, "index out of range")
		}
		vm.writeReg(r, v)

	case bytecode.STOPROP:
		baseReg := int(code[pos])
		pos++
		name, next := vm.readRK(f, code, pos)
		pos = next
		v, next2 := vm.readRK(f, code, pos)
		pos = next2
		if !vm.setProperty(vm.readReg(baseReg), name.AsAtom(), v, object.AlwaysAdd) {
			vm.runtimeError(diag.RuntimePropertyDoesNotExist, "Property '%s' does not exist", vm.rt.Atoms.StringFrom(name.AsAtom()))
		}

	case bytecode.STOELT:
		baseReg := int(code[pos])
		pos++
		key, next := vm.readRK(f, code, pos)
		pos = next
		v, next2 := vm.readRK(f, code, pos)
		pos = next2
		if !vm.setElement(vm.readReg(baseReg), key, v, object.AlwaysAdd) {
			vm.runtimeError(diag.RuntimeInvalidOperand, "index out of range")
		}

	case bytecode.APPENDELT:
		baseReg := int(code[pos])
		pos++
		v, next := vm.readRK(f, code, pos)
		pos = next
		if !vm.appendElement(vm.readReg(baseReg), v) {
			vm.runtimeError(diag.RuntimeInvalidOperand, "cannot append to non-array")
		}

	case bytecode.APPENDPROP:
		baseReg := int(code[pos])
		pos++
		name, next := vm.readRK(f, code, pos)
		pos = next
		v, next2 := vm.readRK(f, code, pos)
		pos = next2
		vm.setProperty(vm.readReg(baseReg), name.AsAtom(), v, object.AlwaysAdd)

	case bytecode.PUSH:
		v, next := vm.readRK(f, code, pos)
		pos = next
		vm.push(v)

	case bytecode.POP:
		r := int(code[pos])
		pos++
		vm.writeReg(r, vm.pop())

	case bytecode.POPX:
		vm.pop()

	case bytecode.LOR:
		r, l, rv, next := vm.decodeRRR(f, code, pos)
		pos = next
		if vm.isTruthy(l) {
			vm.writeReg(r, l)
		} else {
			vm.writeReg(r, rv)
		}

	case bytecode.LAND:
		r, l, rv, next := vm.decodeRRR(f, code, pos)
		pos = next
		if vm.isTruthy(l) {
			vm.writeReg(r, rv)
		} else {
			vm.writeReg(r, l)
		}

	case bytecode.OR:
		r, l, rv, next := vm.decodeRRR(f, code, pos)
		pos = next
		vm.writeReg(r, vm.bitwise(l, rv, func(a, b int32) int32 { return a | b }))

	case bytecode.AND:
		r, l, rv, next := vm.decodeRRR(f, code, pos)
		pos = next
		vm.writeReg(r, vm.bitwise(l, rv, func(a, b int32) int32 { return a & b }))

	case bytecode.XOR:
		r, l, rv, next := vm.decodeRRR(f, code, pos)
		pos = next
		vm.writeReg(r, vm.bitwise(l, rv, func(a, b int32) int32 { return a ^ b }))

	case bytecode.EQ:
		r, l, rv, next := vm.decodeRRR(f, code, pos)
		pos = next
		vm.writeReg(r, value.NewBool(vm.equals(l, rv)))

	case bytecode.NE:
		r, l, rv, next := vm.decodeRRR(f, code, pos)
		pos = next
		vm.writeReg(r, value.NewBool(!vm.equals(l, rv)))

	case bytecode.LT, bytecode.LE, bytecode.GT, bytecode.GE:
		r, l, rv, next := vm.decodeRRR(f, code, pos)
		pos = next
		c, ok := vm.compare(l, rv)
		if !ok {
			vm.runtimeError(diag.RuntimeInvalidOperand, "operands are not comparable")
			vm.writeReg(r, value.NewBool(false))
			break
		}
		var result bool
		switch op {
		case bytecode.LT:
			result = c < 0
		case bytecode.LE:
			result = c <= 0
		case bytecode.GT:
			result = c > 0
		case bytecode.GE:
			result = c >= 0
		}
		vm.writeReg(r, value.NewBool(result))

	case bytecode.SHL:
		r, l, rv, next := vm.decodeRRR(f, code, pos)
		pos = next
		vm.writeReg(r, vm.bitwise(l, rv, func(a, b int32) int32 { return a << uint32(b&31) }))

	case bytecode.SHR:
		r, l, rv, next := vm.decodeRRR(f, code, pos)
		pos = next
		vm.writeReg(r, vm.bitwise(l, rv, func(a, b int32) int32 { return int32(uint32(a) >> uint32(b&31)) }))

	case bytecode.SAR:
		r, l, rv, next := vm.decodeRRR(f, code, pos)
		pos = next
		vm.writeReg(r, vm.bitwise(l, rv, func(a, b int32) int32 { return a >> uint32(b&31) }))

	case bytecode.ADD:
		r, l, rv, next := vm.decodeRRR(f, code, pos)
		pos = next
		vm.writeReg(r, vm.add(l, rv))

	case bytecode.SUB:
		r, l, rv, next := vm.decodeRRR(f, code, pos)
		pos = next
		vm.writeReg(r, vm.sub(l, rv))

	case bytecode.MUL:
		r, l, rv, next := vm.decodeRRR(f, code, pos)
		pos = next
		vm.writeReg(r, vm.mul(l, rv))

	case bytecode.DIV:
		r, l, rv, next := vm.decodeRRR(f, code, pos)
		pos = next
		vm.writeReg(r, vm.div(l, rv))

	case bytecode.MOD:
		r, l, rv, next := vm.decodeRRR(f, code, pos)
		pos = next
		vm.writeReg(r, vm.mod(l, rv))

	case bytecode.UMINUS:
		r := int(code[pos])
		pos++
		v, next := vm.readRK(f, code, pos)
		pos = next
		if v.Type() == value.Integer {
			vm.writeReg(r, value.NewInt(-v.AsInt()))
		} else if isNumeric(v) {
			vm.writeReg(r, value.NewFloat(-v.AsFloat()))
		} else {
			vm.writeReg(r, vm.runtimeError(diag.RuntimeInvalidOperand, "operand is not a number"))
		}

	case bytecode.UNOT:
		r := int(code[pos])
		pos++
		v, next := vm.readRK(f, code, pos)
		pos = next
		vm.writeReg(r, value.NewBool(!vm.isTruthy(v)))

	case bytecode.UNEG:
		r := int(code[pos])
		pos++
		v, next := vm.readRK(f, code, pos)
		pos = next
		if v.Type() != value.Integer {
			vm.writeReg(r, vm.runtimeError(diag.RuntimeInvalidOperand, "operand is not an integer"))
		} else {
			vm.writeReg(r, value.NewInt(^v.AsInt()))
		}

	case bytecode.PREINC, bytecode.PREDEC, bytecode.POSTINC, bytecode.POSTDEC:
		dst := int(code[pos])
		pos++
		src := int(code[pos])
		pos++
		pos = vm.execIncDec(op, dst, src, pos)

	case bytecode.CALL:
		callee, next := vm.readRK(f, code, pos)
		pos = next
		this, next2 := vm.readRK(f, code, pos)
		pos = next2
		n := int(code[pos])
		pos++
		f.pc = pos
		vm.dispatchCall(callee, this, n, nil)
		return object.CallReturnValue{}, false

	case bytecode.NEW:
		callee, next := vm.readRK(f, code, pos)
		pos = next
		n := int(code[pos])
		pos++
		f.pc = pos
		vm.construct(callee, vm.ctorTypeName(callee), n)
		return object.CallReturnValue{}, false

	case bytecode.CALLPROP:
		base, next := vm.readRK(f, code, pos)
		pos = next
		name, next2 := vm.readRK(f, code, pos)
		pos = next2
		n := int(code[pos])
		pos++
		f.pc = pos
		callee, ok := vm.getProperty(base, name.AsAtom())
		if !ok {
			vm.callError(n, "Property '%s' does not exist", vm.rt.Atoms.StringFrom(name.AsAtom()))
			return object.CallReturnValue{}, false
		}
		vm.dispatchCall(callee, base, n, nil)
		return object.CallReturnValue{}, false

	case bytecode.CLOSURE:
		r := int(code[pos])
		pos++
		tmpl, next := vm.readRK(f, code, pos)
		pos = next
		vm.writeReg(r, vm.execClosure(f, tmpl))

	case bytecode.JMP:
		sn := bytecode.ReadSN(code, pos)
		pos += 2
		pos += bytecode.JumpDelta(bytecode.JMP, sn)

	case bytecode.JT:
		cond, next := vm.readRK(f, code, pos)
		pos = next
		sn := bytecode.ReadSN(code, pos)
		pos += 2
		if vm.isTruthy(cond) {
			pos += bytecode.JumpDelta(bytecode.JT, sn)
		}

	case bytecode.JF:
		cond, next := vm.readRK(f, code, pos)
		pos = next
		sn := bytecode.ReadSN(code, pos)
		pos += 2
		if !vm.isTruthy(cond) {
			pos += bytecode.JumpDelta(bytecode.JF, sn)
		}

	case bytecode.LINENO:
		f.line = int(bytecode.ReadUN(code, pos))
		pos += 2

	case bytecode.RET:
		n := int(code[pos])
		pos++
		f.pc = pos
		vm.doReturn(n)
		return object.CallReturnValue{}, false

	case bytecode.RETI:
		f.pc = pos
		vm.doReturn(int(imm))
		return object.CallReturnValue{}, false

	case bytecode.YIELD:
		f.pc = pos
		return object.Yield(), true

	case bytecode.END:
		f.pc = pos
		vm.doReturn(0)
		return object.CallReturnValue{}, false

	default:
		vm.runtimeError(diag.RuntimeInvalidOperand, "unknown opcode %d", byte(op))
		f.pc = len(code)
		return object.CallReturnValue{}, false
	}

	f.pc = pos
	return object.CallReturnValue{}, false
}

// decodeRRR decodes the common {dst register, RK, RK} shape shared by
// every binary arithmetic/bitwise/comparison opcode.
func (vm *VM) decodeRRR(f *frame, code []byte, pos int) (r int, l, rv value.Value, next int) {
	r = int(code[pos])
	pos++
	l, pos = vm.readRK(f, code, pos)
	rv, pos = vm.readRK(f, code, pos)
	return r, l, rv, pos
}

// execIncDec implements PREINC/PREDEC/POSTINC/POSTDEC: src is updated
// in place by +/-1, dst receives the new value (PRE*) or the value
// before the update (POST*).
func (vm *VM) execIncDec(op bytecode.OpCode, dst, src int, pos int) int {
	old := vm.readReg(src)
	var delta int32 = 1
	if op == bytecode.PREDEC || op == bytecode.POSTDEC {
		delta = -1
	}
	var updated value.Value
	if old.Type() == value.Integer {
		updated = value.NewInt(old.AsInt() + delta)
	} else if isNumeric(old) {
		updated = value.NewFloat(old.AsFloat() + float64(delta))
	} else {
		updated = vm.runtimeError(diag.RuntimeInvalidOperand, "operand is not a number")
		vm.writeReg(dst, updated)
		return pos
	}
	vm.writeReg(src, updated)
	if op == bytecode.PREINC || op == bytecode.PREDEC {
		vm.writeReg(dst, updated)
	} else {
		vm.writeReg(dst, old)
	}
	return pos
}

// readUpValue resolves LOADUP's operand against the executing frame's
// closure (spec §4.3): open up-values read through to the live stack
// slot, closed ones read their boxed value.
func (vm *VM) readUpValue(f *frame, idx int) value.Value {
	if f.closure == nil || idx >= len(f.closure.Captured) {
		return vm.runtimeError(diag.RuntimeInvalidOperand, "invalid up-value index")
	}
	u := f.closure.Captured[idx]
	if u.State == object.UpValueOpen {
		return vm.Stack[u.StackIndex]
	}
	return u.Value
}

// writeUpValue resolves STOREUP's operand the same way readUpValue
// does and writes through it: an open up-value still aliases a live
// enclosing-frame stack slot, so the write lands there directly; a
// closed one has outlived that frame and only has its boxed Value left
// to update.
func (vm *VM) writeUpValue(f *frame, idx int, v value.Value) {
	if f.closure == nil || idx >= len(f.closure.Captured) {
		vm.runtimeError(diag.RuntimeInvalidOperand, "invalid up-value index")
		return
	}
	u := f.closure.Captured[idx]
	if u.State == object.UpValueOpen {
		vm.Stack[u.StackIndex] = v
	} else {
		u.Value = v
	}
}
