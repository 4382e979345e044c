// Package analyzer implements the three-phase static security analyzer
// (C4): a pattern scan over literal/string surfaces, an AST-structural
// pass over attribute access and calls, and a coarse intraprocedural
// taint tracker built on the adapted Mangle Datalog engine. All three
// phases write into one shared Issue accumulator and never mutate the
// AST they walk, matching spec.md §3's stated Issue lifecycle.
package analyzer

import "github.com/duns-scotus/mlpy/internal/ast"

// Severity ranks an Issue's urgency, ordered low to high for comparisons.
type Severity int

const (
	Info Severity = iota
	Low
	Medium
	High
	Critical
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Category names the detector family an Issue came from; spec.md §3 keeps
// this a free-form string rather than a closed enum since new detectors
// are meant to be data-driven additions, not new Go types.
type Category string

const (
	CategoryCodeInjection   Category = "code_injection"
	CategoryReflectionAbuse Category = "reflection_abuse"
	CategoryCredential      Category = "hardcoded_credential"
	CategoryPathTraversal   Category = "path_traversal"
	CategoryUnsafeImport    Category = "unsafe_import"
	CategoryTaintedFlow     Category = "tainted_flow"
)

// Issue is one finding from any of the three phases. Context carries
// detector-specific structured data (e.g. Phase C's propagation path
// under the "path" key); it is never required to be present.
type Issue struct {
	Severity    Severity
	Category    Category
	Message     string
	CWE         string
	Span        *ast.Span
	Context     map[string]interface{}
	Suggestions []string
}

// IsBlocking reports whether this issue's severity is one strict mode
// treats as a hard failure (spec.md §4.3's "critical or high ... hard
// failure" rule).
func (i Issue) IsBlocking() bool {
	return i.Severity == Critical || i.Severity == High
}
