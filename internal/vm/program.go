package vm

import "github.com/m8rscript/m8r/internal/object"

// Program is the unit compiler.Compiler.Compile hands the VM: the
// top-level Function plus the program-wide string literal pool
// StringLiteral values index into (spec §3.2). Literal pool strings are
// immutable source text, not GC-managed heap Strings, so they travel
// alongside the compiled code rather than through the GC heap.
type Program struct {
	Main     *object.Function
	Literals []string
}
