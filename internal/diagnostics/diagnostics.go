// Package diagnostics defines the error taxonomy shared across every
// pipeline stage (C9): a structured error kind, a primary span, a short
// message, a longer explanation, suggestions, and an optional CWE tag, plus
// the text and JSON renderers the CLI uses to present them.
package diagnostics

import (
	"fmt"
	"strings"

	"github.com/duns-scotus/mlpy/internal/ast"
)

// Kind is the top-level error taxonomy from spec.md §7.
type Kind string

const (
	KindSyntax  Kind = "syntax"
	KindSecurity Kind = "security"
	KindCodegen Kind = "codegen"
	KindRuntime Kind = "runtime"
	KindSandbox Kind = "sandbox"
	KindConfig  Kind = "config"
)

// Subkind refines Kind for the two taxonomy branches spec.md splits further.
type Subkind string

const (
	// Security subkinds.
	SubCodeInjection   Subkind = "code_injection"
	SubUnsafeAttribute Subkind = "unsafe_attribute"
	SubReflectionAbuse Subkind = "reflection_abuse"
	SubTaintedFlow     Subkind = "tainted_flow"
	SubCapabilityDenied Subkind = "capability_denied"

	// Sandbox subkinds.
	SubTimeout        Subkind = "timeout"
	SubMemoryExceeded Subkind = "memory_exceeded"
	SubProcessFailed  Subkind = "process_failed"
)

// Diagnostic is the structured error every component returns instead of a
// bare error string, carrying enough context for both a human-readable
// rendering and a machine-readable one.
type Diagnostic struct {
	Kind        Kind    `json:"kind"`
	Subkind     Subkind `json:"subkind,omitempty"`
	Span        *ast.Span `json:"span,omitempty"`
	Message     string  `json:"message"`
	Explanation string  `json:"explanation,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	CWE         string  `json:"cwe,omitempty"`
	// Wrapped is the underlying Go error this diagnostic was built from, if
	// any, preserved so errors.Is/errors.As keep working through %w chains.
	Wrapped error `json:"-"`
}

func (d *Diagnostic) Error() string {
	var b strings.Builder
	if d.Span != nil {
		fmt.Fprintf(&b, "%s: ", d.Span)
	}
	fmt.Fprintf(&b, "%s", d.Message)
	if d.Subkind != "" {
		fmt.Fprintf(&b, " [%s/%s]", d.Kind, d.Subkind)
	} else {
		fmt.Fprintf(&b, " [%s]", d.Kind)
	}
	return b.String()
}

func (d *Diagnostic) Unwrap() error { return d.Wrapped }

// New constructs a Diagnostic, the common path every component uses rather
// than building the struct literal inline at each call site.
func New(kind Kind, sub Subkind, span *ast.Span, message string) *Diagnostic {
	return &Diagnostic{Kind: kind, Subkind: sub, Span: span, Message: message}
}

// Wrap attaches an existing error as the cause of a new Diagnostic, in the
// fmt.Errorf("...: %w", err) style the rest of this tree uses, but keeping
// the structured fields a %w string alone would lose.
func Wrap(kind Kind, sub Subkind, span *ast.Span, message string, cause error) *Diagnostic {
	d := New(kind, sub, span, message)
	d.Wrapped = cause
	return d
}

// WithSuggestions returns d with suggestions attached (up to three, per
// spec.md §7's "every user-visible error includes at least one actionable
// suggestion where practicable"). Extra suggestions beyond three are
// dropped rather than silently kept, since the contract is a UI promise.
func (d *Diagnostic) WithSuggestions(s ...string) *Diagnostic {
	if len(s) > 3 {
		s = s[:3]
	}
	d.Suggestions = s
	return d
}

// WithCWE attaches a CWE identifier, e.g. "CWE-94" for code injection.
func (d *Diagnostic) WithCWE(cwe string) *Diagnostic {
	d.CWE = cwe
	return d
}

// WithExplanation attaches the longer, second-sentence explanation shown
// in the text renderer beneath the one-line message.
func (d *Diagnostic) WithExplanation(e string) *Diagnostic {
	d.Explanation = e
	return d
}

// sensitiveAssignment lists the credential-like names whose assigned values
// Sanitize redacts before error text reaches a user (the same alternatives
// assignmentPattern in sanitize.go is built from), per spec.md §7
// "sanitized to redact credential-like substrings".
var sensitiveAssignment = "password|token|key|secret|credential"

// Sanitize redacts anything in msg that looks like name=value or
// name: value where name matches the sensitive-assignment vocabulary,
// replacing the value with "[REDACTED]". It is conservative: it only
// touches substrings that look like an assignment to a sensitive name, so
// ordinary prose mentioning "token" is left alone.
func Sanitize(msg string) string {
	return sanitizeAssignments(msg, sensitiveAssignment)
}
