package parser

import (
	"fmt"
	"strings"

	"github.com/duns-scotus/mlpy/internal/ast"
)

// SyntaxError is raised on the first failing token during parsing. It
// carries the expected-token set and a line of source context, per the
// parser's error contract.
type SyntaxError struct {
	Span     ast.Span
	Found    string
	Expected []string
	Context  string // the offending source line, unindented
}

func (e *SyntaxError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: syntax error: ", e.Span)
	if len(e.Expected) > 0 {
		fmt.Fprintf(&b, "expected %s, found %s", strings.Join(e.Expected, " or "), e.Found)
	} else {
		fmt.Fprintf(&b, "unexpected %s", e.Found)
	}
	if e.Context != "" {
		fmt.Fprintf(&b, "\n  %s", e.Context)
	}
	return b.String()
}
