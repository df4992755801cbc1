package diag

import "fmt"

// ParseError is one entry in a ParseErrorList (spec §4.3): a description,
// the source line/column it was found at, and the length of the
// offending token span.
type ParseError struct {
	Description string
	Line        int
	Column      int
	Length      int
}

func (e ParseError) String() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Description)
}

// ParseErrorList accumulates parse errors so the parser can continue
// scanning past most errors and surface multiple diagnostics at once.
// Once non-empty, code generation primitives must short-circuit (no
// bytecode is emitted after the first recorded error).
type ParseErrorList struct {
	errors []ParseError
}

// Add records a new parse error.
func (l *ParseErrorList) Add(description string, line, column, length int) {
	l.errors = append(l.errors, ParseError{
		Description: description,
		Line:        line,
		Column:      column,
		Length:      length,
	})
}

// Errors returns every recorded error in the order they were added.
func (l *ParseErrorList) Errors() []ParseError { return l.errors }

// HasErrors reports whether any error has been recorded.
func (l *ParseErrorList) HasErrors() bool { return len(l.errors) > 0 }

// Count returns the number of recorded errors.
func (l *ParseErrorList) Count() int { return len(l.errors) }
