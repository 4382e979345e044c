package analyzer

import (
	"fmt"

	"github.com/duns-scotus/mlpy/internal/ast"
	"github.com/duns-scotus/mlpy/internal/logging"
)

// Result is the outcome of a full Run: every issue found, across all
// three phases, plus a Blocking flag precomputed for strict-mode callers.
type Result struct {
	Issues   []Issue
	Blocking bool
}

// Run executes Phase A, Phase B, and Phase C in that fixed order —
// spec.md §4.3 requires strict phase ordering since each is a cheaper,
// coarser approximation than the next and later phases assume earlier
// ones already ran over the same tree. All issues accumulate into one
// Result regardless of which phase found them; the AST itself is never
// mutated by any phase.
func Run(program *ast.Program, opts Options) (Result, error) {
	var all []Issue

	a := runPhaseA(program)
	logging.AnalyzerInfo("phase A: %d issue(s)", len(a))
	all = append(all, a...)

	b := runPhaseB(program, opts)
	logging.AnalyzerInfo("phase B: %d issue(s)", len(b))
	all = append(all, b...)

	c, err := runPhaseC(program, opts)
	if err != nil {
		return Result{}, fmt.Errorf("analyzer: phase C: %w", err)
	}
	logging.AnalyzerInfo("phase C: %d issue(s)", len(c))
	all = append(all, c...)

	blocking := false
	for _, issue := range all {
		if issue.IsBlocking() {
			blocking = true
			break
		}
	}
	return Result{Issues: all, Blocking: blocking}, nil
}
