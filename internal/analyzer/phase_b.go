package analyzer

import (
	"fmt"

	"github.com/duns-scotus/mlpy/internal/ast"
	"github.com/duns-scotus/mlpy/internal/registry"
)

// Options configures behavior Phase B needs that is not part of the AST
// itself: which stdlib mode is active and which import paths the current
// policy permits.
type Options struct {
	// StdlibMode is "native" or "host", mirroring the --stdlib-mode CLI
	// flag (spec.md §5). Phase B does not read it: its import check
	// applies only AllowedImportPrefixes, the same in either mode.
	StdlibMode string
	// AllowedImportPrefixes lists the import path prefixes permitted
	// under the current import-path policy; a nil/empty slice means no
	// restriction beyond the recognized stdlib set.
	AllowedImportPrefixes []string
	// Reg is the safe-attribute registry Phase B (and the identifier-
	// class-resolution step within it) consults for every Attr/Call node.
	Reg *registry.Registry
	// KnownClasses maps a variable identifier name to the registered
	// class it was most recently constructed or imported as, letting
	// Phase B defer to the registry for `target.attr` when target is a
	// known-class identifier (spec.md §4.3: "if target is an identifier
	// with known registered class, defer to registry").
	KnownClasses map[string]string
}

// runPhaseB visits every node once, checking Attr/Call/Import against the
// registry and the dangerous-name list.
func runPhaseB(program *ast.Program, opts Options) []Issue {
	var issues []Issue
	walkStmts(program.Statements, func(n ast.Node) {
		switch node := n.(type) {
		case *ast.Attr:
			issues = append(issues, phaseBAttr(node, opts)...)
		case *ast.Call:
			issues = append(issues, phaseBCall(node)...)
		case *ast.Import:
			issues = append(issues, phaseBImport(node, opts)...)
		}
	})
	return issues
}

// phaseBAttr implements spec.md's Attr rule: if target is an identifier
// with a known registered class, defer to the registry's verdict (which
// itself applies the class-whitelist-before-dangerous-names precedence);
// otherwise, only the dangerous-name list applies.
func phaseBAttr(a *ast.Attr, opts Options) []Issue {
	if id, ok := a.Target.(*ast.Identifier); ok && opts.KnownClasses != nil {
		if class, known := opts.KnownClasses[id.Name]; known && opts.Reg != nil {
			if opts.Reg.IsSafe(class, a.Name) {
				return nil
			}
			span := a.SpanV
			return []Issue{{
				Severity: Critical,
				Category: CategoryReflectionAbuse,
				Message:  fmt.Sprintf("attribute %q is not permitted on registered class %q", a.Name, class),
				CWE:      "CWE-470",
				Span:     &span,
			}}
		}
	}
	if registry.IsDangerousName(a.Name) {
		span := a.SpanV
		return []Issue{{
			Severity: Critical,
			Category: CategoryReflectionAbuse,
			Message:  "attribute access to dangerous name: " + a.Name,
			CWE:      "CWE-470",
			Span:     &span,
			Suggestions: []string{
				"access this value through a registered bridge class instead of raw reflection",
			},
		}}
	}
	return nil
}

// phaseBCall implements spec.md's Call rule: a bare-identifier callee in
// the dangerous set is always critical code_injection, independent of
// Phase A's narrower literal/concat surface checks.
func phaseBCall(c *ast.Call) []Issue {
	id, ok := c.Callee.(*ast.Identifier)
	if !ok || !registry.IsDangerousName(id.Name) {
		return nil
	}
	span := c.SpanV
	return []Issue{{
		Severity: Critical,
		Category: CategoryCodeInjection,
		Message:  "call to dangerous name: " + id.Name,
		CWE:      "CWE-95",
		Span:     &span,
	}}
}

// phaseBImport enforces the import-path policy; it does not consult the
// stdlib mode. With no configured prefixes, every import is permitted (the default,
// permissive policy); a configured prefix list requires a match.
func phaseBImport(i *ast.Import, opts Options) []Issue {
	if len(opts.AllowedImportPrefixes) == 0 {
		return nil
	}
	for _, prefix := range opts.AllowedImportPrefixes {
		if hasPrefix(i.Path, prefix) {
			return nil
		}
	}
	span := i.SpanV
	return []Issue{{
		Severity: High,
		Category: CategoryUnsafeImport,
		Message:  "import path not permitted under the current import policy: " + i.Path,
		CWE:      "CWE-829",
		Span:     &span,
	}}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
