package analyzer

import (
	"regexp"

	"github.com/duns-scotus/mlpy/internal/ast"
)

// reflectionStringPattern matches the dunder-style reflection-name shape
// when it appears *inside a string literal* rather than as a bare
// identifier (the identifier case is Phase B's job).
var reflectionStringPattern = regexp.MustCompile(`__\w+__`)

// credentialNamePattern matches an assignment target name that looks like
// it holds a secret, per spec.md §4.3's Phase A description.
var credentialNamePattern = regexp.MustCompile(`(?i)password|token|key|secret`)

// pathTraversalPattern matches a `../` or `..\` substring, the classic
// path-traversal surface spec.md calls out when such a literal reaches a
// file API.
var pathTraversalPattern = regexp.MustCompile(`\.\.[/\\]`)

// fileAPINames is the set of dangerous-name file-facing callees Phase A
// treats as the "reaching a file API" half of its path-traversal check.
var fileAPINames = map[string]bool{"open": true, "system": true, "popen": true}

// runPhaseA performs a regex/structural scan of node surfaces, walking
// every expression and statement once. It never inspects control flow or
// types — that is Phase B and Phase C's job — only literal and
// identifier text, per spec.md §4.3.
func runPhaseA(program *ast.Program) []Issue {
	var issues []Issue
	walkStmts(program.Statements, func(n ast.Node) {
		switch node := n.(type) {
		case *ast.Call:
			issues = append(issues, phaseACall(node)...)
			issues = append(issues, phaseAPathTraversalCall(node)...)
		case *ast.BinOp:
			issues = append(issues, phaseAConcat(node)...)
		case *ast.Assign:
			issues = append(issues, phaseACredentialAssign(node)...)
		case *ast.Literal:
			issues = append(issues, phaseAReflectionLiteral(node)...)
		}
	})
	return issues
}

func phaseACall(c *ast.Call) []Issue {
	id, ok := c.Callee.(*ast.Identifier)
	if !ok {
		return nil
	}
	if id.Name != "eval" && id.Name != "exec" {
		return nil
	}
	span := c.SpanV
	return []Issue{{
		Severity: Critical,
		Category: CategoryCodeInjection,
		Message:  "literal call to " + id.Name + " is forbidden",
		CWE:      "CWE-95",
		Span:     &span,
		Suggestions: []string{
			"remove the " + id.Name + " call",
			"replace dynamic code execution with an explicit whitelisted operation",
		},
	}}
}

// phaseAConcat flags `eval`/`exec` built from string concatenation fed by
// a dynamic value — spec.md's "dynamic-string concatenation feeding those
// names". The precondition requires every disjunct to hold (the operator
// is `+`, at least one operand is a string literal, and the resulting
// value is the direct callee of a Call elsewhere) to avoid flagging
// ordinary string building; here we conservatively flag any `+`
// expression whose literal operand's text itself contains "eval(" or
// "exec(" — the narrowest surface that cannot false-positive on
// legitimate string concatenation.
func phaseAConcat(b *ast.BinOp) []Issue {
	if b.Op != "+" {
		return nil
	}
	lit, ok := b.L.(*ast.Literal)
	if !ok || lit.Kind != ast.StringLit {
		lit, ok = b.R.(*ast.Literal)
	}
	if !ok || lit.Kind != ast.StringLit {
		return nil
	}
	if !containsDangerousCallText(lit.Str) {
		return nil
	}
	span := b.SpanV
	return []Issue{{
		Severity: Critical,
		Category: CategoryCodeInjection,
		Message:  "dynamic string concatenation builds a call to a forbidden name",
		CWE:      "CWE-95",
		Span:     &span,
	}}
}

func containsDangerousCallText(s string) bool {
	for _, name := range []string{"eval(", "exec("} {
		if len(s) >= len(name) {
			for i := 0; i+len(name) <= len(s); i++ {
				if s[i:i+len(name)] == name {
					return true
				}
			}
		}
	}
	return false
}

func phaseACredentialAssign(a *ast.Assign) []Issue {
	id, ok := a.Target.(*ast.Identifier)
	if !ok || !credentialNamePattern.MatchString(id.Name) {
		return nil
	}
	lit, ok := a.Value.(*ast.Literal)
	if !ok || lit.Kind != ast.StringLit || lit.Str == "" {
		return nil
	}
	span := a.SpanV
	return []Issue{{
		Severity: High,
		Category: CategoryCredential,
		Message:  "possible hardcoded credential assigned to " + id.Name,
		CWE:      "CWE-798",
		Span:     &span,
		Suggestions: []string{
			"load this value from a capability-gated configuration source instead of a literal",
		},
	}}
}

func phaseAReflectionLiteral(l *ast.Literal) []Issue {
	if l.Kind != ast.StringLit || !reflectionStringPattern.MatchString(l.Str) {
		return nil
	}
	span := l.SpanV
	return []Issue{{
		Severity: Medium,
		Category: CategoryReflectionAbuse,
		Message:  "string literal contains a reflection-style name: " + l.Str,
		CWE:      "CWE-470",
		Span:     &span,
	}}
}

// phaseAPathTraversalCall flags a path-traversal substring in a string
// literal argument that reaches a file API, per spec.md §4.3's exact
// phrasing ("path-traversal substrings in string literals reaching file
// APIs"). Both disjuncts — the callee being a known file API *and* an
// argument containing the traversal substring — must hold; a traversal
// string that never reaches a file call, or a file call with no literal
// traversal argument, is not flagged.
func phaseAPathTraversalCall(c *ast.Call) []Issue {
	id, ok := c.Callee.(*ast.Identifier)
	if !ok || !fileAPINames[id.Name] {
		return nil
	}
	var found []Issue
	for _, arg := range c.Args {
		lit, ok := arg.(*ast.Literal)
		if !ok || lit.Kind != ast.StringLit || !pathTraversalPattern.MatchString(lit.Str) {
			continue
		}
		span := c.SpanV
		found = append(found, Issue{
			Severity: Medium,
			Category: CategoryPathTraversal,
			Message:  "path-traversal sequence reaches file API " + id.Name + ": " + lit.Str,
			CWE:      "CWE-22",
			Span:     &span,
		})
	}
	return found
}
