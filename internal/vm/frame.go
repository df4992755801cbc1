package vm

import (
	"github.com/m8rscript/m8r/internal/object"
	"github.com/m8rscript/m8r/internal/value"
)

// frame is one call record (spec §4.5's "{ return_pc, previous_frame_base,
// previous_function, previous_this, previous_arg_count, previous_lineno,
// locals_added }"). The Go struct carries the data needed to both resume
// the caller and to address the callee's own registers, rather than
// splitting those across two records.
type frame struct {
	fn      *object.Function // code being executed (fn == closure.Fn when closure != nil)
	closure *object.Closure  // nil for the top-level program frame

	pc        int
	frameBase int // stack index of this frame's register 0
	this      value.Value
	argCount  int
	localOffset int // max(0, argCount-formalParamCount); locals sit past the extra actual args

	isCtor   bool        // true when this call originated from NEW
	ctorThis value.Value // the fresh object NEW allocated, substituted if the constructor returns no value

	line int // current source line, for error attribution (LINENO)
}

// regIndex maps a register operand to its absolute stack slot (spec
// §4.5's "Register access"): registers below the formal parameter count
// alias the pushed arguments directly; registers at or above it sit past
// whatever extra actual arguments were pushed beyond the formals.
func (f *frame) regIndex(r int) int {
	if r < f.fn.FormalParamCount {
		return f.frameBase + r
	}
	return f.frameBase + r + f.localOffset
}

// localsAdded is the number of stack slots this frame owns beyond its
// own incoming arguments: declared locals/temporaries above
// FormalParamCount, plus the undefined-padding slots inserted when
// fewer actual arguments were passed than formals declare.
func (f *frame) localsAdded() int {
	declared := f.fn.LocalCount - f.fn.FormalParamCount
	if declared < 0 {
		declared = 0
	}
	padding := f.fn.FormalParamCount - f.argCount
	if padding < 0 {
		padding = 0
	}
	return declared + padding
}
