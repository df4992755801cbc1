package vm

import (
	"testing"

	"github.com/m8rscript/m8r/internal/compiler"
	"github.com/m8rscript/m8r/internal/gc"
	"github.com/m8rscript/m8r/internal/object"
	"github.com/m8rscript/m8r/internal/value"
)

// recordingPrinter captures runtime-error/print lines for assertions
// instead of writing to stdout.
type recordingPrinter struct {
	lines []string
}

func (p *recordingPrinter) Print(line string) { p.lines = append(p.lines, line) }

// runScript compiles src against a fresh Runtime and drives it to
// completion, returning the value surfaced by the program's implicit or
// explicit top-level return.
func runScript(t *testing.T, rt *Runtime, src string) (value.Value, *VM, *recordingPrinter) {
	t.Helper()
	c := compiler.New(src, rt.Atoms, compiler.Options{})
	fn, literals, errs := c.Compile()
	if errs.HasErrors() {
		t.Fatalf("compile error: %v", errs)
	}
	printer := &recordingPrinter{}
	m := NewVM(rt, printer)
	m.Start(&Program{Main: fn, Literals: literals})
	ret := m.Run()
	if ret.Kind != object.CallFinished && ret.Kind != object.CallTerminated {
		t.Fatalf("script did not finish: %+v", ret)
	}
	if ret.Kind == object.CallTerminated {
		return value.Undef, m, printer
	}
	if len(m.Stack) != 1 {
		t.Fatalf("expected exactly one surfaced result, got stack %v", m.Stack)
	}
	return m.Stack[0], m, printer
}

func runOK(t *testing.T, src string) (value.Value, *VM) {
	t.Helper()
	rt := NewRuntime(0)
	v, m, p := runScript(t, rt, src)
	if len(p.lines) != 0 {
		t.Fatalf("unexpected runtime errors for %q: %v", src, p.lines)
	}
	return v, m
}

func TestArithmeticPolymorphism(t *testing.T) {
	cases := []struct {
		src      string
		wantType value.Kind
		want     string
	}{
		{"return 1+2;", value.Integer, "3"},
		{"return 1+2.5;", value.Float, "3.5"},
		{"return 7-2;", value.Integer, "5"},
		{"return 2*3;", value.Integer, "6"},
		{"return 7/2;", value.Integer, "3"},
		{"return 7%2;", value.Integer, "1"},
		{"return 7.0/2;", value.Float, "3.5"},
	}
	for _, c := range cases {
		v, _ := runOK(t, c.src)
		if v.Type() != c.wantType {
			t.Errorf("%q: type = %v, want %v", c.src, v.Type(), c.wantType)
		}
		if got := v.Literal(); got != c.want {
			t.Errorf("%q: literal = %q, want %q", c.src, got, c.want)
		}
	}
}

func TestStringConcatenation(t *testing.T) {
	v, m := runOK(t, `return "a" + 1;`)
	if v.Type() != value.String {
		t.Fatalf("type = %v, want String", v.Type())
	}
	if got := m.Stringify(v); got != "a1" {
		t.Errorf("Stringify = %q, want %q", got, "a1")
	}
}

func TestComparisonAndEquality(t *testing.T) {
	cases := []struct {
		src  string
		want bool
	}{
		{"return 1 < 2;", true},
		{"return 2 < 1;", false},
		{"return 1 == 1;", true},
		{"return 1 == 2;", false},
		{`return "ab" < "ac";`, true},
		{"return null == undefined;", true},
	}
	for _, c := range cases {
		v, _ := runOK(t, c.src)
		if v.Type() != value.Bool {
			t.Fatalf("%q: type = %v, want Bool", c.src, v.Type())
		}
		if got := v.AsBool(); got != c.want {
			t.Errorf("%q: got %v, want %v", c.src, got, c.want)
		}
	}
}

func TestLocalVariablesAndControlFlow(t *testing.T) {
	src := `
		var sum = 0;
		var i = 0;
		while (i < 5) {
			sum = sum + i;
			i = i + 1;
		}
		return sum;
	`
	v, _ := runOK(t, src)
	if v.Type() != value.Integer || v.AsInt() != 10 {
		t.Fatalf("got %v, want Integer 10", v.Literal())
	}
}

func TestIfElse(t *testing.T) {
	src := `
		var x = 3;
		if (x < 5) {
			return 1;
		} else {
			return 2;
		}
	`
	v, _ := runOK(t, src)
	if v.AsInt() != 1 {
		t.Fatalf("got %v, want 1", v.Literal())
	}
}

func TestFunctionCallAndReturn(t *testing.T) {
	src := `
		function add(a, b) {
			return a + b;
		}
		return add(2, 3);
	`
	v, _ := runOK(t, src)
	if v.Type() != value.Integer || v.AsInt() != 5 {
		t.Fatalf("got %v, want Integer 5", v.Literal())
	}
}

func TestFunctionMissingReturnYieldsUndefined(t *testing.T) {
	src := `
		function noop() {
		}
		return noop();
	`
	v, _ := runOK(t, src)
	if !v.IsUndefined() {
		t.Fatalf("got %v, want Undefined", v.Literal())
	}
}

func TestClosureCapturesEnclosingLocal(t *testing.T) {
	src := `
		function makeAdder(x) {
			function adder(y) {
				return x + y;
			}
			return adder;
		}
		var add5 = makeAdder(5);
		return add5(10);
	`
	v, _ := runOK(t, src)
	if v.Type() != value.Integer || v.AsInt() != 15 {
		t.Fatalf("got %v, want Integer 15", v.Literal())
	}
}

func TestClosureCapturesTwoLevelsUp(t *testing.T) {
	// Exercises the FrameDistance > 1 chaining path: innermost() never
	// touches outer's own registers directly, only its own closure's
	// already-resolved up-value.
	src := `
		function outer() {
			var base = 100;
			function middle() {
				function innermost() {
					return base + 1;
				}
				return innermost();
			}
			return middle();
		}
		return outer();
	`
	v, _ := runOK(t, src)
	if v.Type() != value.Integer || v.AsInt() != 101 {
		t.Fatalf("got %v, want Integer 101", v.Literal())
	}
}

func TestEachClosureInstanceGetsItsOwnUpValue(t *testing.T) {
	src := `
		function counter() {
			var n = 0;
			function next() {
				n = n + 1;
				return n;
			}
			return next;
		}
		var c1 = counter();
		var c2 = counter();
		c1();
		c1();
		var a = c1();
		var b = c2();
		return a * 10 + b;
	`
	v, _ := runOK(t, src)
	if v.Type() != value.Integer || v.AsInt() != 31 {
		t.Fatalf("got %v, want Integer 31 (c1 at 3, c2 at 1)", v.Literal())
	}
}

func TestPreIncrementWritesThroughCapturedUpValue(t *testing.T) {
	src := `
		function make() {
			var i = 0;
			return function() { return ++i; };
		}
		var f = make();
		var a = f();
		var b = f();
		return a * 10 + b;
	`
	v, _ := runOK(t, src)
	if v.Type() != value.Integer || v.AsInt() != 12 {
		t.Fatalf("got %v, want Integer 12 (f() at 1, then 2)", v.Literal())
	}
}

func TestConfiguredMaxRunTimeErrorsOverridesDefault(t *testing.T) {
	rt := NewRuntime(0)
	rt.MaxRunTimeErrors = 3

	src := "var x = 1;\n"
	for i := 0; i < 10; i++ {
		src += "x();\n"
	}
	src += "return 0;"

	_, _, p := runScript(t, rt, src)
	if len(p.lines) != 3 {
		t.Fatalf("expected exactly 3 errors before the configured threshold terminated the script, got %d", len(p.lines))
	}
}

func TestIdentifierResolutionChain(t *testing.T) {
	rt := NewRuntime(0)
	globalAtom := rt.Atoms.Atomize("answer")
	rt.Global.Define(globalAtom, value.NewInt(42))

	v, _, p := runScript(t, rt, "return answer;")
	if len(p.lines) != 0 {
		t.Fatalf("unexpected errors: %v", p.lines)
	}
	if v.Type() != value.Integer || v.AsInt() != 42 {
		t.Fatalf("got %v, want Integer 42 (resolved via Global)", v.Literal())
	}
}

func TestIdentifierResolutionPrefersThisOverGlobal(t *testing.T) {
	rt := NewRuntime(0)
	nameAtom := rt.Atoms.Atomize("answer")
	rt.Global.Define(nameAtom, value.NewInt(42))
	rt.Program().SetProperty(nameAtom, value.NewInt(7), object.AlwaysAdd)

	v, _, _ := runScript(t, rt, "return answer;")
	if v.AsInt() != 7 {
		t.Fatalf("got %v, want Integer 7 (Program shadows Global)", v.Literal())
	}
}

func TestStoreToUndeclaredIdentifierReportsError(t *testing.T) {
	rt := NewRuntime(0)
	_, _, p := runScript(t, rt, "undeclaredThing = 1; return 0;")
	if len(p.lines) == 0 {
		t.Fatal("expected a runtime error assigning to an undeclared identifier")
	}
}

func TestLoadOfUndeclaredIdentifierReportsError(t *testing.T) {
	rt := NewRuntime(0)
	v, _, p := runScript(t, rt, "return neverDeclared;")
	if len(p.lines) == 0 {
		t.Fatal("expected a runtime error loading an undeclared identifier")
	}
	if !v.IsUndefined() {
		t.Fatalf("got %v, want Undefined after error", v.Literal())
	}
}

func TestNativeFunctionCall(t *testing.T) {
	rt := NewRuntime(0)
	doubleAtom := rt.Atoms.Atomize("double")
	var double NativeFunc = func(vm *VM, this value.Value, args []value.Value) object.CallReturnValue {
		if len(args) != 1 {
			return object.CallErrorResult(int(0))
		}
		return object.NativeResult(value.NewInt(args[0].AsInt() * 2))
	}
	rt.Global.Define(doubleAtom, value.NewNativeFunction(double))

	v, _, p := runScript(t, rt, "return double(21);")
	if len(p.lines) != 0 {
		t.Fatalf("unexpected errors: %v", p.lines)
	}
	if v.Type() != value.Integer || v.AsInt() != 42 {
		t.Fatalf("got %v, want Integer 42", v.Literal())
	}
}

func TestCallingNonCallableReportsErrorAndContinues(t *testing.T) {
	rt := NewRuntime(0)
	v, _, p := runScript(t, rt, "var x = 5; x(); return 1;")
	if len(p.lines) == 0 {
		t.Fatal("expected a CannotCall runtime error")
	}
	if v.AsInt() != 1 {
		t.Fatalf("got %v, want 1 (execution continues past a call error)", v.Literal())
	}
}

func TestGlobalArrayIndexingAndLength(t *testing.T) {
	rt := NewRuntime(0)
	arr := rt.Heap.AllocObject(object.NewMaterArray(rt.Atoms.Atomize("length"), value.NewInt(10), value.NewInt(20), value.NewInt(30)), gc.MemMaterArray)
	rt.Global.Define(rt.Atoms.Atomize("arr"), value.NewObject(arr))

	v, _, p := runScript(t, rt, "return arr[1] + arr.length;")
	if len(p.lines) != 0 {
		t.Fatalf("unexpected errors: %v", p.lines)
	}
	if v.AsInt() != 23 {
		t.Fatalf("got %v, want Integer 23 (20 + length 3)", v.Literal())
	}
}

func TestArrayLiteralSyntax(t *testing.T) {
	v, _ := runOK(t, "var a = [10, 20, 30]; return a[1] + a.length;")
	if v.Type() != value.Integer || v.AsInt() != 23 {
		t.Fatalf("got %v, want Integer 23 (20 + length 3)", v.Literal())
	}
}

func TestObjectLiteralSyntax(t *testing.T) {
	v, _ := runOK(t, `var o = { x: 3, y: 4 }; return o.x + o.y;`)
	if v.Type() != value.Integer || v.AsInt() != 7 {
		t.Fatalf("got %v, want Integer 7", v.Literal())
	}
}

func TestObjectLiteralWithStringKey(t *testing.T) {
	v, _ := runOK(t, `var o = { "a b": 5 }; return o["a b"];`)
	if v.Type() != value.Integer || v.AsInt() != 5 {
		t.Fatalf("got %v, want Integer 5", v.Literal())
	}
}

func TestNestedArrayAndObjectLiterals(t *testing.T) {
	v, _ := runOK(t, `
		var data = { items: [1, 2, 3], label: "x" };
		return data.items[2] + data.items.length;
	`)
	if v.Type() != value.Integer || v.AsInt() != 6 {
		t.Fatalf("got %v, want Integer 6 (3 + length 3)", v.Literal())
	}
}

func TestNewConstructsObjectWithProto(t *testing.T) {
	src := `
		function Point(x, y) {
			this.x = x;
			this.y = y;
		}
		var p = new Point(3, 4);
		return p.x + p.y;
	`
	v, _ := runOK(t, src)
	if v.Type() != value.Integer || v.AsInt() != 7 {
		t.Fatalf("got %v, want Integer 7", v.Literal())
	}
}

func TestNewUsesExplicitReturnValueWhenProvided(t *testing.T) {
	src := `
		function Weird() {
			this.x = 1;
			return 99;
		}
		var w = new Weird();
		return w;
	`
	v, _ := runOK(t, src)
	if v.Type() != value.Integer || v.AsInt() != 99 {
		t.Fatalf("got %v, want Integer 99 (explicit return wins over fresh this)", v.Literal())
	}
}

func TestEventQueueSynthesizesCallWhenIdle(t *testing.T) {
	rt := NewRuntime(0)
	c := compiler.New("function handler(n) { return n; }", rt.Atoms, compiler.Options{})
	fn, literals, errs := c.Compile()
	if errs.HasErrors() {
		t.Fatalf("compile error: %v", errs)
	}
	printer := &recordingPrinter{}
	m := NewVM(rt, printer)
	m.Start(&Program{Main: fn, Literals: literals})
	if ret := m.Run(); ret.Kind != object.CallFinished {
		t.Fatalf("initial run did not finish: %+v", ret)
	}

	// Find the declared "handler" local by resolving it is awkward
	// without re-parsing; instead, fire an event at a fresh native
	// target registered on Global and confirm the idle dispatcher picks
	// it up without a direct Run()-call site.
	fired := false
	var onEvent NativeFunc = func(vm *VM, this value.Value, args []value.Value) object.CallReturnValue {
		fired = true
		return object.NativeResult(value.Undef)
	}
	handlerAtom := rt.Atoms.Atomize("onEvent")
	rt.Global.Define(handlerAtom, value.NewNativeFunction(onEvent))
	handlerVal, ok := rt.Global.GetProperty(handlerAtom)
	if !ok {
		t.Fatal("expected onEvent to be defined on Global")
	}

	m.FireEvent(handlerVal, value.Undef, []value.Value{value.NewInt(1)})
	if ret := m.Run(); ret.Kind != object.CallFinished {
		t.Fatalf("event-driven run did not finish: %+v", ret)
	}
	if !fired {
		t.Fatal("expected the queued event's native handler to run")
	}
}

func TestRuntimeErrorThresholdTerminates(t *testing.T) {
	rt := NewRuntime(0)
	lines := make([]string, 0, MaxRunTimeErrors)
	for i := 0; i < MaxRunTimeErrors+5; i++ {
		lines = append(lines, "x();")
	}
	src := "var x = 1;\n"
	for _, l := range lines {
		src += l + "\n"
	}
	src += "return 0;"

	_, _, p := runScript(t, rt, src)
	if len(p.lines) != MaxRunTimeErrors {
		t.Fatalf("expected exactly %d errors before termination, got %d", MaxRunTimeErrors, len(p.lines))
	}
}
