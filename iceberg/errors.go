package iceberg

import "fmt"

type ErrorType int

const (
	ErrorSyntax ErrorType = iota
	ErrorRuntime
)

func (t ErrorType) String() string {
	return []string{
		"SyntaxError",
		"RuntimeError",
	}[t]
}

// Error is the engine's failure value. Syntax errors carry the 1-based source
// line being compiled; runtime errors carry the 0-based index of the
// instruction that failed.
type Error struct {
	Type ErrorType
	Msg  string
	Line int
	Inst int
}

func (e *Error) Error() string {
	if e.Type == ErrorSyntax {
		return fmt.Sprintf("%s: %s (line %d)", e.Type, e.Msg, e.Line)
	}
	return fmt.Sprintf("%s: %s (instruction %d)", e.Type, e.Msg, e.Inst)
}

func NewSyntaxError(msg string, line int) *Error {
	return &Error{Type: ErrorSyntax, Msg: msg, Line: line}
}

func NewRuntimeError(msg string, inst int) *Error {
	return &Error{Type: ErrorRuntime, Msg: msg, Inst: inst}
}
