// Package ast defines the typed abstract syntax tree produced by the ML
// parser: expressions, statements, and the source spans that tie every node
// back to the text it was parsed from.
package ast

import "fmt"

// Span is a source location range. Lines and columns are 1-based, matching
// how editors and terminal error output address source text.
type Span struct {
	File      string
	Line      int
	Column    int
	EndLine   int
	EndColumn int
}

// String renders a span as "file:line:col" or "line:col" when File is empty.
func (s Span) String() string {
	if s.File == "" {
		return fmt.Sprintf("%d:%d", s.Line, s.Column)
	}
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
}

// IsZero reports whether the span was never assigned (e.g. a synthetic node
// introduced by a rewrite rather than the parser).
func (s Span) IsZero() bool {
	return s.Line == 0 && s.Column == 0 && s.EndLine == 0 && s.EndColumn == 0
}

// Covers reports whether this span's range fully contains other. Used by
// the parser's own invariant checks in tests: every node's span must lie
// within its parent's span.
func (s Span) Covers(other Span) bool {
	if other.Line < s.Line || (other.Line == s.Line && other.Column < s.Column) {
		return false
	}
	if other.EndLine > s.EndLine || (other.EndLine == s.EndLine && other.EndColumn > s.EndColumn) {
		return false
	}
	return true
}

// Union returns the smallest span covering both a and b. Used by the parser
// when it builds a compound node's span from its children's spans.
func Union(a, b Span) Span {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	u := a
	if b.Line < u.Line || (b.Line == u.Line && b.Column < u.Column) {
		u.Line, u.Column = b.Line, b.Column
	}
	if b.EndLine > u.EndLine || (b.EndLine == u.EndLine && b.EndColumn > u.EndColumn) {
		u.EndLine, u.EndColumn = b.EndLine, b.EndColumn
	}
	if u.File == "" {
		u.File = b.File
	}
	return u
}

// Node is implemented by every AST node, expression or statement.
type Node interface {
	Span() Span
}
