// Package errors defines the error taxonomy used across the row
// expression engine: parse-time errors carried out of Parse, and
// evaluation-time errors that become sticky on a bound expression.
package errors

import (
	"fmt"
	"strings"
)

// Kind classifies a row expression error per the taxonomy of the engine
// design (parse vs. evaluation, and the evaluation sub-kinds that share
// the DomainError flavor).
type Kind string

const (
	ParseSyntax     Kind = "ParseSyntax"
	TypeMismatch    Kind = "TypeMismatch"
	ShapeMismatch   Kind = "ShapeMismatch"
	UnknownFunction Kind = "UnknownFunction"
	WrongArity      Kind = "WrongArity"
	DomainError     Kind = "DomainError"
	NullIndex       Kind = "NullIndex"
	IndexOutOfRange Kind = "IndexOutOfRange"
	Allocation      Kind = "Allocation"
)

// SourceLocation pinpoints an error within the original expression text.
type SourceLocation struct {
	Offset int // byte offset into the source text
	Line   int
	Column int
}

// RowExprError is the single error type returned by Parse, Bind, and
// Evaluate. ParseError and EvalError below are thin aliases that pin the
// set of Kinds each call site may legitimately return.
type RowExprError struct {
	Kind     Kind
	Message  string
	Location SourceLocation
	Source   string // the offending source line, for caret rendering
}

func (e *RowExprError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %s", e.Kind, e.Message))
	if e.Location.Line > 0 {
		sb.WriteString(fmt.Sprintf(" (line %d, col %d)", e.Location.Line, e.Location.Column))
	}
	if e.Source != "" {
		sb.WriteString(fmt.Sprintf("\n  %d | %s\n", e.Location.Line, e.Source))
		sb.WriteString(strings.Repeat(" ", len(fmt.Sprintf("  %d | ", e.Location.Line))))
		if e.Location.Column > 0 {
			sb.WriteString(strings.Repeat(" ", e.Location.Column-1))
		}
		sb.WriteString("^")
	}
	return sb.String()
}

// WithSource attaches the offending source line for caret rendering.
func (e *RowExprError) WithSource(line string) *RowExprError {
	e.Source = line
	return e
}

// New builds a RowExprError at the given offset/line/column.
func New(kind Kind, message string, offset, line, column int) *RowExprError {
	return &RowExprError{
		Kind:    kind,
		Message: message,
		Location: SourceLocation{
			Offset: offset,
			Line:   line,
			Column: column,
		},
	}
}

// Newf is New with Printf-style message formatting.
func Newf(kind Kind, offset, line, column int, format string, args ...interface{}) *RowExprError {
	return New(kind, fmt.Sprintf(format, args...), offset, line, column)
}

// ParseError is returned from Parse. All nine Kinds may appear here
// except that Allocation is engine-fatal rather than a recoverable parse
// failure.
type ParseError = RowExprError

// EvalError is returned from Evaluate; once set on a CompiledExpr it is
// sticky (subsequent Evaluate calls return it immediately without doing
// further work).
type EvalError = RowExprError
