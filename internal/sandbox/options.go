// Package sandbox implements C8: isolated execution of codegen's
// generated Go source, with resource limits, capability forwarding, and
// a structured ExecutionResult envelope. The isolation mechanism is
// yaegi, adapted from the teacher's own tool-execution sandboxing
// (internal/autopoiesis/yaegi_executor.go, now deleted from this tree —
// its import whitelist becomes the registry's stdlib-mode bootstrap, its
// goroutine+channel timeout becomes the CPU budget below, and memory
// accounting is added via runtime.ReadMemStats deltas).
package sandbox

import (
	"time"

	"github.com/duns-scotus/mlpy/internal/capability"
)

// Options configures one Run call, per spec.md §4.7's resource-limit and
// capability-forwarding requirements.
type Options struct {
	// CPUTimeout is the wall-clock budget after which Run stops waiting
	// and reports StatusTimeout; the interpreter goroutine itself is not
	// stopped (see Executor.Run). Zero selects DefaultCPUTimeout.
	CPUTimeout time.Duration
	// MemoryLimitBytes is the heap-growth cap sampled via periodic
	// runtime.ReadMemStats deltas; once a sample exceeds it, Run reports
	// StatusMemoryExceeded without stopping the interpreter goroutine.
	// Zero selects DefaultMemoryLimitBytes.
	MemoryLimitBytes uint64
	// NetworkAllowed and FileAccessGlobs describe the ambient resource
	// policy a program runs under; today they are recorded and surfaced
	// to bridge modules via the capability tokens built from them; no
	// stdlib bridge currently consults NetworkAllowed directly since
	// network access has no shipped bridge module yet (spec.md §4.2's
	// worked examples are regex and fs only).
	NetworkAllowed  bool
	FileAccessGlobs []string
	// ExternalTokens are capability tokens the parent process injects
	// into the child's initial context before the generated program's
	// own self-granted capability declarations run, mirroring spec.md
	// §4.7's "mirrors the future external-policy model" forwarding path
	// and the Design Notes' "sandbox executor already accepts
	// externally-supplied tokens" requirement.
	ExternalTokens []*capability.Token
	// StrictArith records Open-Question-2's typed-error arithmetic mode
	// for callers that build Options before codegen.Generate runs; the
	// sandbox itself does not read it, since codegen already baked the
	// choice into the generated source.
	StrictArith bool
}

const (
	DefaultCPUTimeout      = 30 * time.Second
	DefaultMemoryLimitBytes = 100 * 1024 * 1024
)

// WithDefaults returns a copy of o with zero-valued limits replaced by
// spec.md §4.7's stated defaults.
func (o Options) WithDefaults() Options {
	if o.CPUTimeout <= 0 {
		o.CPUTimeout = DefaultCPUTimeout
	}
	if o.MemoryLimitBytes <= 0 {
		o.MemoryLimitBytes = DefaultMemoryLimitBytes
	}
	return o
}
