package compiler

import (
	"testing"

	"github.com/m8rscript/m8r/internal/atom"
	"github.com/m8rscript/m8r/internal/bytecode"
	"github.com/m8rscript/m8r/internal/object"
	"github.com/m8rscript/m8r/internal/value"
)

func compile(t *testing.T, src string) *object.Function {
	t.Helper()
	at := atom.NewTable(nil)
	c := New(src, at, Options{})
	fn, _, errs := c.Compile()
	if errs.HasErrors() {
		t.Fatalf("unexpected errors compiling %q: %v", src, errs.Errors())
	}
	return fn
}

// decoded is one disassembled instruction: its opcode and raw operand
// bytes, stopping short of interpreting RK/jump semantics so tests can
// assert shape without duplicating remapRegisters.
type decoded struct {
	op   bytecode.OpCode
	args []byte
}

func disassemble(t *testing.T, code []byte) []decoded {
	t.Helper()
	var out []decoded
	pos := 0
	for pos < len(code) {
		op, _ := bytecode.Decode(code[pos])
		pos++
		var args []byte
		for _, kind := range bytecode.Operands[op] {
			switch kind {
			case bytecode.OperandR, bytecode.OperandU, bytecode.OperandNParams:
				args = append(args, code[pos])
				pos++
			case bytecode.OperandRK:
				sz := bytecode.RKSize(code, pos)
				args = append(args, code[pos:pos+sz]...)
				pos += sz
			case bytecode.OperandSN, bytecode.OperandUN:
				args = append(args, code[pos], code[pos+1])
				pos += 2
			}
		}
		out = append(out, decoded{op: op, args: args})
		if op == bytecode.END {
			break
		}
	}
	return out
}

func opSequence(decs []decoded) []bytecode.OpCode {
	ops := make([]bytecode.OpCode, len(decs))
	for i, d := range decs {
		ops[i] = d.op
	}
	return ops
}

func TestVarDeclAssignsLocalRegister(t *testing.T) {
	fn := compile(t, "var x = 1;")
	if fn.LocalCount != 1 {
		t.Fatalf("LocalCount = %d, want 1", fn.LocalCount)
	}
	decs := disassemble(t, fn.Code)
	ops := opSequence(decs)
	// bake(1) first MOVEs the builtin ConstInt1 sentinel into a temp,
	// then the var-decl's own MOVE copies that temp into local 0.
	want := []bytecode.OpCode{bytecode.MOVE, bytecode.MOVE, bytecode.END}
	if !opsEqual(ops, want) {
		t.Fatalf("ops = %v, want %v", ops, want)
	}
	if decs[0].args[1] != bytecode.ConstInt1 {
		t.Fatalf("first MOVE src = %d, want ConstInt1 (%d)", decs[0].args[1], bytecode.ConstInt1)
	}
	if decs[1].args[0] != 0 {
		t.Fatalf("second MOVE dest = %d, want local register 0", decs[1].args[0])
	}
	if decs[1].args[1] != decs[0].args[0] {
		t.Fatalf("second MOVE src = %d, want %d (the temp bake(1) wrote)", decs[1].args[1], decs[0].args[0])
	}
}

func TestBinaryExpressionEmitsArithmeticOp(t *testing.T) {
	fn := compile(t, "var x = 1 + 2 * 3;")
	ops := opSequence(disassemble(t, fn.Code))
	// "1 + 2 * 3": precedence climbing must group 2*3 (MUL) strictly
	// before the top-level ADD combines it with 1.
	mulIdx := indexOf(ops, bytecode.MUL)
	addIdx := indexOf(ops, bytecode.ADD)
	if mulIdx < 0 || addIdx < 0 {
		t.Fatalf("expected both MUL and ADD in ops %v", ops)
	}
	if mulIdx > addIdx {
		t.Fatalf("MUL (2*3) must be emitted before ADD, got ops %v", ops)
	}
}

func TestCompoundAssignReadsModifiesWrites(t *testing.T) {
	fn := compile(t, "var x = 1; x += 2;")
	ops := opSequence(disassemble(t, fn.Code))
	addIdx := indexOf(ops, bytecode.ADD)
	if addIdx < 0 {
		t.Fatalf("expected an ADD for the '+=' read-modify-write, ops=%v", ops)
	}
	// the store back into x must follow the ADD.
	foundStoreAfter := false
	for _, op := range ops[addIdx+1:] {
		if op == bytecode.MOVE {
			foundStoreAfter = true
		}
	}
	if !foundStoreAfter {
		t.Fatalf("expected a MOVE storing the '+=' result after the ADD, ops=%v", ops)
	}
}

func TestTernaryEmitsCondJumpAndTwoMoves(t *testing.T) {
	fn := compile(t, "var x = 1 ? 2 : 3;")
	ops := opSequence(disassemble(t, fn.Code))
	jfIdx := indexOf(ops, bytecode.JF)
	jmpIdx := indexOf(ops, bytecode.JMP)
	if jfIdx < 0 || jmpIdx < 0 {
		t.Fatalf("expected JF and JMP for ternary branches, ops=%v", ops)
	}
	if jfIdx > jmpIdx {
		t.Fatalf("JF must precede the then-branch's JMP, ops=%v", ops)
	}
	moveCount := 0
	for _, op := range ops {
		if op == bytecode.MOVE {
			moveCount++
		}
	}
	// then-branch MOVE, else-branch MOVE, plus the var-decl's own MOVE
	// into local 0.
	if moveCount < 3 {
		t.Fatalf("expected at least 3 MOVEs (then, else, store-to-local), got %d in ops %v", moveCount, ops)
	}
}

func TestIfElseJumpsSkipCorrectBranch(t *testing.T) {
	src := `
	var x = 0;
	if (x) { x = 1; } else { x = 2; }
	`
	fn := compile(t, src)
	decs := disassemble(t, fn.Code)
	// Find the JF and the JMP that follows the then-branch; JF's jump
	// target (opPos + sn) must land exactly on the else-branch MOVE, and
	// the JMP's target must land on END.
	var jfPos, jfSN, jmpPos, jmpSN, endPos int
	found, foundJMP := false, false
	pos := 0
	for _, d := range decs {
		switch d.op {
		case bytecode.JF:
			jfPos = pos
			jfSN = int(bytecode.ReadSN(d.args, 1))
			found = true
		case bytecode.JMP:
			jmpPos = pos
			jmpSN = int(bytecode.ReadSN(d.args, 0))
			foundJMP = true
		case bytecode.END:
			endPos = pos
		}
		pos += 1 + opLen(d)
	}
	if !found {
		t.Fatal("JF not found")
	}
	if !foundJMP {
		t.Fatal("then-branch JMP not found")
	}
	if got := jmpPos + jmpSN; got != endPos {
		t.Fatalf("then-branch JMP target = %d, want END at %d", got, endPos)
	}
	target := jfPos + jfSN
	// target must point at some instruction boundary (a MOVE, the else branch).
	foundBoundary := false
	pos = 0
	for _, d := range decs {
		if pos == target {
			foundBoundary = true
			if d.op != bytecode.MOVE {
				t.Fatalf("JF target op = %v, want MOVE (else branch)", d.op)
			}
			break
		}
		pos += 1 + opLen(d)
	}
	if !foundBoundary {
		t.Fatalf("JF target %d is not on an instruction boundary", target)
	}
}

func opLen(d decoded) int { return len(d.args) }

func TestWhileLoopBacksEdgeToConditionStart(t *testing.T) {
	fn := compile(t, "var i = 0; while (i) { i = i - 1; }")
	decs := disassemble(t, fn.Code)
	// The last JMP is the loop's back-edge and must land on the start of
	// the condition test. The condition "i" is already a local register,
	// so no load is emitted for it and the condition starts at its JF.
	var lastJMP *decoded
	var lastJMPPos, jfPos int
	foundJF := false
	pos := 0
	for i := range decs {
		if decs[i].op == bytecode.JMP {
			lastJMP = &decs[i]
			lastJMPPos = pos
		}
		if decs[i].op == bytecode.JF && !foundJF {
			jfPos = pos
			foundJF = true
		}
		pos += 1 + opLen(decs[i])
	}
	if lastJMP == nil {
		t.Fatal("no JMP emitted for while loop back-edge")
	}
	if !foundJF {
		t.Fatal("no JF emitted for the while condition")
	}
	sn := int(bytecode.ReadSN(lastJMP.args, 0))
	target := lastJMPPos + sn
	if target != jfPos {
		t.Fatalf("while back-edge target = %d, want the condition's JF at %d", target, jfPos)
	}
}

func TestBreakAndContinueResolveInsideLoop(t *testing.T) {
	src := `
	var i = 0;
	while (i) {
		if (i) { break; }
		continue;
	}
	`
	fn := compile(t, src)
	ops := opSequence(disassemble(t, fn.Code))
	jmpCount := 0
	for _, op := range ops {
		if op == bytecode.JMP {
			jmpCount++
		}
	}
	// break, continue, and the loop's own back-edge JMP: at least 3.
	if jmpCount < 3 {
		t.Fatalf("expected at least 3 JMPs (break, continue, back-edge), got %d", jmpCount)
	}
}

func TestBreakOutsideLoopIsError(t *testing.T) {
	at := atom.NewTable(nil)
	c := New("break;", at, Options{})
	_, _, errs := c.Compile()
	if !errs.HasErrors() {
		t.Fatal("expected error for break outside a loop")
	}
}

func TestContinueOutsideLoopIsError(t *testing.T) {
	at := atom.NewTable(nil)
	c := New("continue;", at, Options{})
	_, _, errs := c.Compile()
	if !errs.HasErrors() {
		t.Fatal("expected error for continue outside a loop")
	}
}

func TestForLoopStepRunsAfterBodyBeforeBackEdge(t *testing.T) {
	fn := compile(t, "for (var i = 0; i; i = i - 1) { i = i; }")
	decs := disassemble(t, fn.Code)
	ops := opSequence(decs)
	// Expect: MOVE(init) ... JF(cond) body MOVE(i = i) step: MOVE, SUB,
	// MOVE JMP(back) END. The step is a bare assignment, which bakes into
	// a register directly and never touches the value stack.
	jfIdx := indexOf(ops, bytecode.JF)
	subIdx := indexOf(ops, bytecode.SUB)
	if jfIdx < 0 || subIdx < 0 {
		t.Fatalf("expected a JF for the condition and a SUB from the for-loop's step expression, ops=%v", ops)
	}
	if body := decs[jfIdx+1]; body.op != bytecode.MOVE || body.args[0] != body.args[1] {
		t.Fatalf("instruction after JF = %v %v, want the body's MOVE i, i", body.op, body.args)
	}
	if subIdx+2 >= len(ops) || ops[subIdx+2] != bytecode.JMP {
		t.Fatalf("expected the step's SUB and its store right before the back-edge JMP, ops=%v", ops)
	}
}

func TestSwitchDefaultMustRunWhenNoCaseMatches(t *testing.T) {
	src := `
	var x = 5;
	switch (x) {
	case 1:
		x = 10;
		break;
	default:
		x = 20;
	}
	`
	fn := compile(t, src)
	decs := disassemble(t, fn.Code)
	ops := opSequence(decs)
	hasEQ := false
	for _, op := range ops {
		if op == bytecode.EQ {
			hasEQ = true
		}
	}
	if !hasEQ {
		t.Fatalf("expected an EQ guard for the 'case 1' arm, ops=%v", ops)
	}
	// On mismatch the 'case 1' guard's JF must skip straight to the
	// default arm, whose first instruction loads the constant 20.
	var jfPos, jfSN int
	foundJF := false
	pos := 0
	for _, d := range decs {
		if d.op == bytecode.JF && !foundJF {
			jfPos, jfSN, foundJF = pos, int(bytecode.ReadSN(d.args, 1)), true
		}
		pos += 1 + opLen(d)
	}
	if !foundJF {
		t.Fatalf("expected a JF for the 'case 1' guard, ops=%v", ops)
	}
	target := jfPos + jfSN
	pos = 0
	for _, d := range decs {
		if pos == target {
			if d.op != bytecode.MOVE || bytecode.IsRegister(d.args[1]) || bytecode.IsBuiltinConstant(d.args[1]) {
				t.Fatalf("JF target = %v %v, want the default arm's MOVE of a pooled constant", d.op, d.args)
			}
			k := fn.Constants[bytecode.ConstantIndex(d.args[1])-bytecode.NumBuiltinConstants]
			if k.Type() != value.Integer || k.AsInt() != 20 {
				t.Fatalf("JF target loads %v, want the default arm's 20", k)
			}
			return
		}
		pos += 1 + opLen(d)
	}
	t.Fatalf("JF target %d is not on an instruction boundary", target)
}

func TestFunctionLiteralProducesClosureAndTemplate(t *testing.T) {
	fn := compile(t, "function f(a, b) { return a + b; }")
	ops := opSequence(disassemble(t, fn.Code))
	want := []bytecode.OpCode{bytecode.CLOSURE, bytecode.MOVE, bytecode.END}
	if !opsEqual(ops, want) {
		t.Fatalf("ops = %v, want %v", ops, want)
	}
	if len(fn.Constants) != 1 {
		t.Fatalf("Constants = %d entries, want 1 (the function template)", len(fn.Constants))
	}
	if fn.Constants[0].Type() != value.FunctionTemplate {
		t.Fatalf("Constants[0].Type() = %v, want FunctionTemplate", fn.Constants[0].Type())
	}
	inner, ok := fn.Constants[0].AsRef().(*object.Function)
	if !ok {
		t.Fatalf("Constants[0].AsRef() is not *object.Function")
	}
	if inner.FormalParamCount != 2 {
		t.Fatalf("inner.FormalParamCount = %d, want 2", inner.FormalParamCount)
	}
	if inner.LocalCount != 2 {
		t.Fatalf("inner.LocalCount = %d, want 2 (params a, b)", inner.LocalCount)
	}
	innerOps := opSequence(disassemble(t, inner.Code))
	// compileFunctionLiteral always appends an implicit "return;" after
	// the parsed body, so an explicit return leaves it as trailing
	// (unreachable) code.
	wantInner := []bytecode.OpCode{bytecode.ADD, bytecode.PUSH, bytecode.RETI, bytecode.RETI}
	if !opsEqual(innerOps, wantInner) {
		t.Fatalf("inner ops = %v, want %v", innerOps, wantInner)
	}
}

func TestClosureCapturesEnclosingLocalAsUpValue(t *testing.T) {
	src := `
	var x = 1;
	function f() { return x; }
	`
	fn := compile(t, src)
	if len(fn.Constants) != 1 {
		t.Fatalf("Constants = %d entries, want 1", len(fn.Constants))
	}
	inner, ok := fn.Constants[0].AsRef().(*object.Function)
	if !ok {
		t.Fatal("Constants[0].AsRef() is not *object.Function")
	}
	if len(inner.UpValues) != 1 {
		t.Fatalf("inner.UpValues = %d entries, want 1", len(inner.UpValues))
	}
	uv := inner.UpValues[0]
	if uv.Index != 0 {
		t.Fatalf("UpValue.Index = %d, want 0 (enclosing local x)", uv.Index)
	}
	if uv.FrameDistance != 1 {
		t.Fatalf("UpValue.FrameDistance = %d, want 1", uv.FrameDistance)
	}
	innerOps := opSequence(disassemble(t, inner.Code))
	if len(innerOps) < 1 || innerOps[0] != bytecode.LOADUP {
		t.Fatalf("inner ops = %v, want first op LOADUP", innerOps)
	}
}

func TestAssignToCapturedUpValueEmitsStoreUp(t *testing.T) {
	src := `
	var x = 1;
	function f() { x = 2; }
	`
	fn := compile(t, src)
	if len(fn.Constants) != 1 {
		t.Fatalf("Constants = %d entries, want 1", len(fn.Constants))
	}
	inner, ok := fn.Constants[0].AsRef().(*object.Function)
	if !ok {
		t.Fatal("Constants[0].AsRef() is not *object.Function")
	}
	innerOps := opSequence(disassemble(t, inner.Code))
	if indexOf(innerOps, bytecode.STOREUP) < 0 {
		t.Fatalf("inner ops = %v, want a STOREUP writing the captured x", innerOps)
	}
}

func TestRegisterRenumberingPacksTempsAboveLocals(t *testing.T) {
	// Two locals plus a deeply nested expression forces several
	// temporaries; after finishFunction every register referenced in the
	// final code must be < 127 and >= 0, and none may collide with a
	// declared local's register.
	fn := compile(t, "var a = 1; var b = 2; var c = a + b * (a - b) + (b + a) * a;")
	if fn.LocalCount != 3 {
		t.Fatalf("LocalCount = %d, want 3", fn.LocalCount)
	}
	// Every register byte that appears in an R/RK(register) operand
	// position must be within [0, MaxRegister].
	checkRegistersInRange(t, fn.Code)
}

func checkRegistersInRange(t *testing.T, code []byte) {
	t.Helper()
	pos := 0
	for pos < len(code) {
		op, _ := bytecode.Decode(code[pos])
		pos++
		for _, kind := range bytecode.Operands[op] {
			switch kind {
			case bytecode.OperandR:
				if code[pos] > bytecode.MaxRegister {
					t.Fatalf("register operand %d exceeds MaxRegister at pos %d", code[pos], pos)
				}
				pos++
			case bytecode.OperandRK:
				sz := bytecode.RKSize(code, pos)
				if bytecode.IsRegister(code[pos]) && code[pos] > bytecode.MaxRegister {
					t.Fatalf("RK register operand %d exceeds MaxRegister at pos %d", code[pos], pos)
				}
				pos += sz
			case bytecode.OperandU, bytecode.OperandNParams:
				pos++
			case bytecode.OperandSN, bytecode.OperandUN:
				pos += 2
			}
		}
	}
}

func TestConstantPoolDeduplicatesEqualLiterals(t *testing.T) {
	fn := compile(t, `var a = "hi"; var b = "hi"; var c = 42; var d = 42;`)
	// "hi" and 42 must each occupy exactly one constant-pool slot despite
	// being referenced twice.
	seenStrings := 0
	seenInts := 0
	for _, c := range fn.Constants {
		switch c.Type() {
		case value.StringLiteral:
			seenStrings++
		case value.Integer:
			seenInts++
		}
	}
	if seenStrings != 1 {
		t.Fatalf("distinct StringLiteral constants = %d, want 1", seenStrings)
	}
	if seenInts != 1 {
		t.Fatalf("distinct Integer constants = %d, want 1", seenInts)
	}
}

func TestDistinctFunctionLiteralsAreNeverDeduplicated(t *testing.T) {
	src := `
	function f() { return 1; }
	function g() { return 1; }
	`
	fn := compile(t, src)
	count := 0
	for _, c := range fn.Constants {
		if c.Type() == value.FunctionTemplate {
			count++
		}
	}
	if count != 2 {
		t.Fatalf("FunctionTemplate constants = %d, want 2 (never deduplicated)", count)
	}
}

func TestBuiltinConstantsBypassThePool(t *testing.T) {
	fn := compile(t, "var x = 0; var y = 1; var z = undefined; var w = null;")
	if len(fn.Constants) != 0 {
		t.Fatalf("Constants = %d entries, want 0 (all four values are builtin RK sentinels)", len(fn.Constants))
	}
}

func TestParseErrorsAccumulateWithPosition(t *testing.T) {
	at := atom.NewTable(nil)
	c := New("var = 1;", at, Options{})
	_, _, errs := c.Compile()
	if !errs.HasErrors() {
		t.Fatal("expected a parse error for a missing variable name")
	}
	if errs.Errors()[0].Line != 1 {
		t.Fatalf("error line = %d, want 1", errs.Errors()[0].Line)
	}
}

func TestPropertyAndElementAccessRoundTrip(t *testing.T) {
	fn := compile(t, "var x = a.b; var y = a[1]; a.b = 2; a[1] = 3;")
	ops := opSequence(disassemble(t, fn.Code))
	wantContains := []bytecode.OpCode{bytecode.LOADPROP, bytecode.LOADELT, bytecode.STOPROP, bytecode.STOELT}
	for _, want := range wantContains {
		found := false
		for _, op := range ops {
			if op == want {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected %v among ops %v", want, ops)
		}
	}
}

func TestCallAndMethodCallPopResultIntoRegister(t *testing.T) {
	fn := compile(t, "var x = f(1, 2); var y = o.m(3);")
	ops := opSequence(disassemble(t, fn.Code))
	wantContains := []bytecode.OpCode{bytecode.CALL, bytecode.CALLPROP, bytecode.POP}
	for _, want := range wantContains {
		found := false
		for _, op := range ops {
			if op == want {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected %v among ops %v", want, ops)
		}
	}
}

func TestNewExpressionResolvesConstructorIdentifier(t *testing.T) {
	fn := compile(t, "var x = new Point(1, 2);")
	ops := opSequence(disassemble(t, fn.Code))
	wantContains := []bytecode.OpCode{bytecode.LOADREFK, bytecode.NEW, bytecode.POP}
	for _, want := range wantContains {
		found := false
		for _, op := range ops {
			if op == want {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected %v among ops %v", want, ops)
		}
	}
}

func TestPrePostIncDecEmitCorrectOpcodes(t *testing.T) {
	fn := compile(t, "var x = 1; ++x; x++; --x; x--;")
	ops := opSequence(disassemble(t, fn.Code))
	wantContains := []bytecode.OpCode{bytecode.PREINC, bytecode.POSTINC, bytecode.PREDEC, bytecode.POSTDEC}
	for _, want := range wantContains {
		found := false
		for _, op := range ops {
			if op == want {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected %v among ops %v", want, ops)
		}
	}
}

func indexOf(ops []bytecode.OpCode, want bytecode.OpCode) int {
	for i, op := range ops {
		if op == want {
			return i
		}
	}
	return -1
}

func opsEqual(a, b []bytecode.OpCode) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
