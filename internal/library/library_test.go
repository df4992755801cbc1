package library

import (
	"errors"
	"testing"
	"time"

	"github.com/m8rscript/m8r/internal/compiler"
	"github.com/m8rscript/m8r/internal/host"
	"github.com/m8rscript/m8r/internal/host/memfs"
	"github.com/m8rscript/m8r/internal/object"
	"github.com/m8rscript/m8r/internal/scheduler"
	"github.com/m8rscript/m8r/internal/timer"
	"github.com/m8rscript/m8r/internal/value"
	"github.com/m8rscript/m8r/internal/vm"
)

// recordingPrinter captures print() output for assertions, the same
// shape vm's own tests use.
type recordingPrinter struct {
	lines []string
}

func (p *recordingPrinter) Print(line string) { p.lines = append(p.lines, line) }

// stubSystem is a minimal host.SystemInterface wired to a memfs FS so
// FS-root tests can exercise real file I/O without touching disk.
type stubSystem struct {
	printer *recordingPrinter
	fs      *memfs.FS
}

func newStubSystem() *stubSystem {
	return &stubSystem{printer: &recordingPrinter{}, fs: memfs.New()}
}

func (s *stubSystem) Print(line string)           { s.printer.Print(line) }
func (s *stubSystem) FileSystem() (host.FS, bool) { return s.fs, true }
func (s *stubSystem) GPIO() (host.GPIO, bool)     { return nil, false }
func (s *stubSystem) CreateTCP(port int, ip string, onEvent host.SocketEventFunc) (host.TCPSocket, error) {
	return nil, errUnsupported
}
func (s *stubSystem) CreateUDP(port int, onEvent host.SocketEventFunc) (host.UDPSocket, error) {
	return nil, errUnsupported
}
func (s *stubSystem) StartTimer(d time.Duration, cb func()) int { return -1 }
func (s *stubSystem) StopTimer(id int)                          {}
func (s *stubSystem) HeapFreeSize() int32                       { return 1024 }

var errUnsupported = errors.New("unsupported in tests")

// runWithLibrary compiles src against a fresh Runtime with every
// library root installed, runs it to completion, and returns the
// surfaced top-of-stack result.
func runWithLibrary(t *testing.T, src string) (value.Value, *vm.VM, *stubSystem) {
	t.Helper()
	rt := vm.NewRuntime(0)
	sys := newStubSystem()
	sched := scheduler.New()
	wheel := timer.NewWheel()
	Build(rt, sys, sched, wheel, sys.printer, AllEnabled())

	c := compiler.New(src, rt.Atoms, compiler.Options{})
	fn, literals, errs := c.Compile()
	if errs.HasErrors() {
		t.Fatalf("compile error for %q: %v", src, errs)
	}
	m := vm.NewVM(rt, sys.printer)
	m.Start(&vm.Program{Main: fn, Literals: literals})
	ret := m.Run()
	if ret.Kind != object.CallFinished {
		t.Fatalf("script did not finish cleanly: %+v", ret)
	}
	if len(m.Stack) != 1 {
		t.Fatalf("expected one surfaced result, got stack %v", m.Stack)
	}
	return m.Stack[0], m, sys
}

func TestJSONStringifyAndParseRoundTrip(t *testing.T) {
	src := `
		var obj = {a: 1, b: "two"};
		var text = JSON.stringify(obj);
		var back = JSON.parse(text);
		return back.a + back.b;
	`
	v, m, _ := runWithLibrary(t, src)
	if got := m.Stringify(v); got != "1two" {
		t.Errorf("got %q, want %q", got, "1two")
	}
}

func TestBase64EncodeDecodeRoundTrip(t *testing.T) {
	src := `
		var encoded = Base64.encode("hello");
		return Base64.decode(encoded);
	`
	v, m, _ := runWithLibrary(t, src)
	if got := m.Stringify(v); got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestFSWriteThenReadRoundTrips(t *testing.T) {
	src := `
		var f = FS.open("greeting.txt", FS.Create);
		f.write("hi there");
		f.close();
		var r = FS.open("greeting.txt", FS.Read);
		var text = r.read(64);
		r.close();
		return text;
	`
	v, m, _ := runWithLibrary(t, src)
	if got := m.Stringify(v); got != "hi there" {
		t.Errorf("got %q, want %q", got, "hi there")
	}
}

func TestIteratorWalksArrayInOrder(t *testing.T) {
	src := `
		var arr = [10, 20, 30];
		var it = Iterator.create(arr);
		var sum = 0;
		while (it.hasNext()) {
			sum = sum * 100 + it.next();
		}
		return sum;
	`
	v, _ := runOK(t, src)
	if v.Type() != value.Integer || v.AsInt() != 102030 {
		t.Fatalf("got %v, want Integer 102030 (10, 20, 30 in order)", v.Literal())
	}
}

func TestIPAddrParseAndToString(t *testing.T) {
	src := `
		var addr = IPAddr.parse("192.168.1.1");
		return addr.toString();
	`
	v, m, _ := runWithLibrary(t, src)
	if got := m.Stringify(v); got != "192.168.1.1" {
		t.Errorf("got %q, want %q", got, "192.168.1.1")
	}
}

func TestDisabledRootIsNotInstalled(t *testing.T) {
	rt := vm.NewRuntime(0)
	sys := newStubSystem()
	sched := scheduler.New()
	wheel := timer.NewWheel()
	opts := AllEnabled()
	opts.Crypto = false
	Build(rt, sys, sched, wheel, sys.printer, opts)

	c := compiler.New(`return typeof(Crypto);`, rt.Atoms, compiler.Options{})
	fn, literals, errs := c.Compile()
	if errs.HasErrors() {
		t.Fatalf("compile error: %v", errs)
	}
	m := vm.NewVM(rt, sys.printer)
	m.Start(&vm.Program{Main: fn, Literals: literals})
	ret := m.Run()
	if ret.Kind != object.CallFinished {
		t.Fatalf("script did not finish cleanly: %+v", ret)
	}
	if got := m.Stringify(m.Stack[0]); got != "undefined" {
		t.Errorf("Crypto root should not be installed when disabled, got typeof %q", got)
	}
}

func TestGlobalTypeof(t *testing.T) {
	v, _ := runOK(t, `return typeof(1);`)
	if v.Literal() == "" {
		t.Fatal("typeof returned empty literal")
	}
}

// runOK is a convenience wrapper matching vm's own test helper shape,
// used by tests that only need the library roots (not sys/printer
// inspection).
func runOK(t *testing.T, src string) (value.Value, *vm.VM) {
	t.Helper()
	v, m, _ := runWithLibrary(t, src)
	return v, m
}
