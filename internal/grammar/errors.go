package grammar

import "fmt"

// FormatError reports malformed grammar or overt-form text. Line is
// 1-based and zero when the error is not tied to a grammar line.
type FormatError struct {
	Line int
	Msg  string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("format error at line %d: %s", e.Line, e.Msg)
	}
	return "format error: " + e.Msg
}

func formatErrorf(line int, format string, args ...interface{}) *FormatError {
	return &FormatError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

// LookupError reports a form that has no tableau in the grammar.
type LookupError struct {
	Form string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("no such form in grammar: %q", e.Form)
}
