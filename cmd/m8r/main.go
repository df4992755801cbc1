// Command m8r compiles and runs a single m8r script to completion,
// driving the scheduler's cooperative loop until every task finishes.
// Grounded on cmd/barn/main.go's flag-driven startup (a handful of
// `flag` options, `log.Printf`/`log.Fatalf` for startup/fatal
// reporting, no CLI framework).
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/m8rscript/m8r/internal/compiler"
	"github.com/m8rscript/m8r/internal/config"
	"github.com/m8rscript/m8r/internal/gc"
	"github.com/m8rscript/m8r/internal/host"
	"github.com/m8rscript/m8r/internal/host/memfs"
	"github.com/m8rscript/m8r/internal/library"
	"github.com/m8rscript/m8r/internal/object"
	"github.com/m8rscript/m8r/internal/scheduler"
	"github.com/m8rscript/m8r/internal/timer"
	"github.com/m8rscript/m8r/internal/vm"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML startup configuration file")
	emitLines := flag.Bool("debug", false, "emit LINENO opcodes for runtime error line numbers")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: m8r [-config file] [-debug] <script.m8r>\n")
		os.Exit(2)
	}
	scriptPath := flag.Arg(0)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	src, err := os.ReadFile(scriptPath)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", scriptPath, err)
	}

	log.Printf("m8r")
	log.Printf("Script: %s", scriptPath)

	// rt.Atoms must be the same table the compiler interns identifiers
	// into: library roots (library.Build) and compiled bytecode both
	// reference atoms by numeric id, and atom.Table only guarantees
	// matching ids for names outside the shared table when they are
	// interned into the same Table instance.
	rt := vm.NewRuntime(cfg.HeapThreshold)
	rt.MaxRunTimeErrors = cfg.MaxRunTimeErrors
	c := compiler.New(string(src), rt.Atoms, compiler.Options{EmitLines: *emitLines})
	mainFn, literals, errs := c.Compile()
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e.Error())
		}
		os.Exit(1)
	}

	sched := scheduler.New()
	sched.Quantum = time.Duration(cfg.Quantum)
	wheel := sched.Timers()

	sys := newCLISystem(rt)
	installLibraries(rt, cfg, sys, sched, wheel, sys)

	prog := &vm.Program{Main: mainFn, Literals: literals}
	topLevel := vm.NewVM(rt, sys)
	topLevel.Start(prog)

	sched.Run(topLevel, func(result object.CallReturnValue) {
		if result.Kind == object.CallError {
			log.Printf("script terminated with error code %d", result.Code)
		}
	})

	runToCompletion(sched)
}

// runToCompletion drives the scheduler until every task has finished,
// unlike Scheduler.Loop (grounded on the teacher's long-running
// ticker-driven server loop) which runs until explicitly stopped. A
// one-shot script interpreter exits once nothing is left to run rather
// than waiting indefinitely for a stop signal that never comes.
func runToCompletion(sched *scheduler.Scheduler) {
	const idleSleep = 2 * time.Millisecond
	for len(sched.Tasks()) > 0 {
		for sched.RunOneIteration(time.Now()) {
		}
		if len(sched.Tasks()) > 0 {
			time.Sleep(idleSleep)
		}
	}
}

// installLibraries wires internal/library's static roots into rt
// according to cfg.Libraries: each root is gated by its own toggle,
// and sched/wheel are additionally nulled out when the Task/Timer root
// that uses them is disabled, so a disabled root fails against nil
// rather than quietly using a live one. sys is always passed, since the
// always-present Global root (print, heapFreeSize) uses it.
func installLibraries(rt *vm.Runtime, cfg config.Config, sys host.SystemInterface, sched *scheduler.Scheduler, wheel *timer.Wheel, printer vm.Printer) {
	effectiveSched := sched
	if !cfg.Libraries.Task {
		effectiveSched = nil
	}
	effectiveWheel := wheel
	if !cfg.Libraries.Timer {
		effectiveWheel = nil
	}
	opts := library.Options{
		GPIO:     cfg.Libraries.GPIO,
		JSON:     cfg.Libraries.JSON,
		Base64:   cfg.Libraries.Base64,
		Crypto:   cfg.Libraries.Crypto,
		IPAddr:   cfg.Libraries.IPAddr,
		FS:       cfg.Libraries.FS,
		Net:      cfg.Libraries.Net,
		Task:     cfg.Libraries.Task,
		Timer:    cfg.Libraries.Timer,
		Iterator: cfg.Libraries.Iterator,
	}
	library.Build(rt, sys, effectiveSched, effectiveWheel, printer, opts)
}

// cliSystem is cmd/m8r's concrete host.SystemInterface: stdout printing
// and an in-memory filesystem, no GPIO or sockets (no real hardware or
// network I/O is wired up here, spec.md §1's "host OS glue" non-goal).
type cliSystem struct {
	fs *memfs.FS
	rt *vm.Runtime
}

func newCLISystem(rt *vm.Runtime) *cliSystem {
	return &cliSystem{fs: memfs.New(), rt: rt}
}

func (s *cliSystem) Print(str string) { fmt.Print(str) }

func (s *cliSystem) FileSystem() (host.FS, bool) { return s.fs, true }

func (s *cliSystem) GPIO() (host.GPIO, bool) { return nil, false }

func (s *cliSystem) CreateTCP(port int, ip string, onEvent host.SocketEventFunc) (host.TCPSocket, error) {
	return nil, fmt.Errorf("m8r: no TCP backend wired into this host")
}

func (s *cliSystem) CreateUDP(port int, onEvent host.SocketEventFunc) (host.UDPSocket, error) {
	return nil, fmt.Errorf("m8r: no UDP backend wired into this host")
}

func (s *cliSystem) StartTimer(d time.Duration, cb func()) int { return -1 }

func (s *cliSystem) StopTimer(id int) {}

func (s *cliSystem) HeapFreeSize() int32 {
	const budget = 1 << 16
	a := s.rt.Heap.Accounting()
	used := a.Count(gc.MemString) + a.Count(gc.MemMaterObject) + a.Count(gc.MemMaterArray) +
		a.Count(gc.MemFunction) + a.Count(gc.MemClosure) + a.Count(gc.MemUpValue)
	free := int64(budget) - used
	if free < 0 {
		free = 0
	}
	return int32(free)
}
