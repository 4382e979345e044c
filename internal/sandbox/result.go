package sandbox

import "github.com/duns-scotus/mlpy/internal/analyzer"

// Status is one of spec.md §4.7's five ExecutionResult outcomes.
type Status string

const (
	StatusOK                Status = "ok"
	StatusError              Status = "error"
	StatusTimeout            Status = "timeout"
	StatusMemoryExceeded     Status = "memory_exceeded"
	StatusSecurityViolation  Status = "security_violation"
)

// ExecutionResult is run's output, per spec.md §4.7's contract:
// {status, stdout, stderr, return_value?, duration_ms, peak_memory_bytes,
// issues}.
type ExecutionResult struct {
	Status          Status
	Stdout          string
	Stderr          string
	ReturnValue     interface{}
	DurationMs      int64
	PeakMemoryBytes uint64
	Issues          []analyzer.Issue
}
