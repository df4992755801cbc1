package library

import (
	"github.com/m8rscript/m8r/internal/host"
	"github.com/m8rscript/m8r/internal/scheduler"
	"github.com/m8rscript/m8r/internal/timer"
	"github.com/m8rscript/m8r/internal/vm"
)

// Options toggles which of Build's nested static roots get installed,
// mirroring config.Libraries one field at a time so cmd/m8r's config
// file can disable any of them individually. The bare-global
// print/typeof/heapFreeSize trio is not optional: every script can
// observe it regardless of which nested roots are enabled.
type Options struct {
	GPIO, JSON, Base64, Crypto, IPAddr bool
	FS, Net, Task, Timer, Iterator     bool
}

// AllEnabled returns an Options with every root turned on, the
// embedding cmd/m8r falls back to with no config file.
func AllEnabled() Options {
	return Options{
		GPIO: true, JSON: true, Base64: true, Crypto: true, IPAddr: true,
		FS: true, Net: true, Task: true, Timer: true, Iterator: true,
	}
}

// Build installs every enabled library root (spec §6) onto rt.Global:
// the bare-global print/typeof/heapFreeSize trio directly, and
// whichever of GPIO, JSON, Base64, Crypto, IPAddr, FS, Net, Task,
// Timer, and Iterator opts enables, as nested static roots. sys,
// sched, and wheel may be nil (a headless embedder with no
// filesystem/GPIO/socket/scheduler support); the affected roots then
// fail their operations with diag.Unimplemented/diag.NoFS rather than
// panicking. printer is forwarded to any VM a Task.create call spins
// up.
//
// Call once per Runtime, before starting any VM against it.
func Build(rt *vm.Runtime, sys host.SystemInterface, sched *scheduler.Scheduler, wheel *timer.Wheel, printer vm.Printer, opts Options) {
	tbl := rt.Atoms
	root := rt.Global

	installGlobals(tbl, root, sys)

	var fs host.FS
	var gpio host.GPIO
	if sys != nil {
		fs, _ = sys.FileSystem()
		gpio, _ = sys.GPIO()
	}

	if opts.GPIO {
		defineChild(tbl, root, "GPIO", buildGPIO(tbl, gpio))
	}
	if opts.JSON {
		defineChild(tbl, root, "JSON", buildJSON(tbl))
	}
	if opts.Base64 {
		defineChild(tbl, root, "Base64", buildBase64(tbl))
	}
	if opts.Crypto {
		defineChild(tbl, root, "Crypto", buildCrypto(tbl))
	}
	if opts.IPAddr {
		defineChild(tbl, root, "IPAddr", buildIPAddr(tbl))
	}
	if opts.FS {
		defineChild(tbl, root, "FS", buildFS(tbl, fs))
	}
	if opts.Net {
		defineChild(tbl, root, "Net", buildNet(tbl, sys))
	}
	if opts.Task {
		defineChild(tbl, root, "Task", buildTask(tbl, rt, sched, printer))
	}
	if opts.Timer {
		defineChild(tbl, root, "Timer", buildTimer(tbl, wheel))
	}
	if opts.Iterator {
		defineChild(tbl, root, "Iterator", buildIterator(tbl))
	}
}
