package sandbox

import (
	"fmt"
	goruntime "runtime"
	"sync/atomic"
	"time"

	"github.com/traefik/yaegi/interp"

	"github.com/duns-scotus/mlpy/internal/bridge"
	"github.com/duns-scotus/mlpy/internal/capability"
	"github.com/duns-scotus/mlpy/internal/logging"
	"github.com/duns-scotus/mlpy/internal/registry"
)

// runFunc is the signature codegen.Generate's emitted `func Run(reg *
// registry.Registry, mgr *capability.Manager, thread *capability.Thread)
// (result interface{}, err error)` has, once yaegi evaluates it and the
// executor retrieves it by name.
type runFunc = func(reg *registry.Registry, mgr *capability.Manager, thread *capability.Thread) (interface{}, error)

// Executor runs generated Go source inside a yaegi isolate. One Executor
// owns one Safe-Attribute Registry, built once at construction with every
// stdlib bridge's whitelist installed, and is reused across many Run
// calls — the registry is read-only after startup, so sharing it across
// concurrent runs is safe.
type Executor struct {
	reg *registry.Registry
}

// NewExecutor builds an Executor with ML's builtin type whitelists
// (string/array/object) and every stdlib bridge module's class whitelist
// installed, per spec.md §4.7's "the child receives ... a serialized
// options record" startup contract — the registry bootstrap is the
// sandbox's half of that contract; codegen's half runs earlier, at
// generation time.
func NewExecutor() *Executor {
	reg := registry.New()
	registry.RegisterDefaults(reg)
	bridge.RegisterAll(reg)
	return &Executor{reg: reg}
}

// Run executes generatedCode — a complete `package mlprogram` source
// string produced by codegen.Generate — in a fresh yaegi interpreter,
// enforcing opts' CPU and memory budgets and forwarding opts'
// ExternalTokens into the run's capability thread before the program's
// own statements (including any self-granted capability declarations)
// execute.
//
// True OS-level isolation (spec.md's "a child process or equivalent
// isolate") is not implemented here: the interpreter runs in a goroutine
// of the caller's own process, not a separate address space. A CPU
// timeout stops the *caller* from waiting any longer, but a runaway
// non-cooperative loop inside the interpreted code keeps its goroutine
// alive until the process exits — the same limitation the teacher's own
// yaegi-based executor accepted (context timeout on the channel wait,
// not preemption of the interpreter). A future process-per-run isolate
// would close this gap; it is out of scope for this effort and is
// recorded in DESIGN.md rather than silently assumed solved.
func (e *Executor) Run(generatedCode string, opts Options) ExecutionResult {
	opts = opts.WithDefaults()
	start := time.Now()

	var memStart goruntime.MemStats
	goruntime.ReadMemStats(&memStart)

	type outcome struct {
		result interface{}
		err    error
	}
	done := make(chan outcome, 1)
	memExceeded := make(chan uint64, 1)

	// The peak counter is an atomic rather than a channel send at
	// shutdown: the timeout and memory branches must be able to read it
	// while the interpreter goroutine (and therefore the sampler) is
	// still running.
	var peak atomic.Uint64
	stopSampling := make(chan struct{})
	samplerDone := make(chan struct{})
	go e.sampleMemory(memStart.Alloc, opts.MemoryLimitBytes, stopSampling, samplerDone, &peak, memExceeded)

	go func() {
		defer close(stopSampling)
		result, err := e.evalAndRun(generatedCode, opts)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		duration := time.Since(start)
		<-samplerDone
		return e.toResult(out.result, out.err, duration, peak.Load())
	case <-time.After(opts.CPUTimeout):
		logging.SandboxWarn("run exceeded cpu timeout of %v", opts.CPUTimeout)
		return ExecutionResult{
			Status:          StatusTimeout,
			DurationMs:      time.Since(start).Milliseconds(),
			PeakMemoryBytes: peak.Load(),
		}
	case peakBytes := <-memExceeded:
		logging.SandboxWarn("run exceeded memory limit of %d bytes (observed %d)", opts.MemoryLimitBytes, peakBytes)
		return ExecutionResult{
			Status:          StatusMemoryExceeded,
			DurationMs:      time.Since(start).Milliseconds(),
			PeakMemoryBytes: peakBytes,
		}
	}
}

// sampleMemory polls process-wide heap allocation on a short interval,
// publishing the highest delta observed over baseline into peak, and
// reports on memExceeded the first time that delta crosses limit (if
// limit > 0). Process-wide sampling is an approximation — this run is
// not the only thing allocating in the process — the same caveat the
// package doc accepts for an in-process isolate rather than a true
// child process with its own address space to measure exactly.
// Detecting the over-budget condition does not itself free the memory
// or stop the still-running goroutine (see Run's doc comment on the
// same limitation for CPU time); it only lets Run return the correct
// status promptly rather than waiting out the full CPU timeout.
func (e *Executor) sampleMemory(baseline, limit uint64, stop <-chan struct{}, samplerDone chan<- struct{}, peak *atomic.Uint64, memExceeded chan<- uint64) {
	defer close(samplerDone)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	reported := false
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			var m goruntime.MemStats
			goruntime.ReadMemStats(&m)
			if m.Alloc > baseline {
				if delta := m.Alloc - baseline; delta > peak.Load() {
					peak.Store(delta)
				}
			}
			if !reported && limit > 0 && peak.Load() > limit {
				reported = true
				memExceeded <- peak.Load()
			}
		}
	}
}

func (e *Executor) evalAndRun(generatedCode string, opts Options) (interface{}, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(generatedSymbols); err != nil {
		return nil, fmt.Errorf("sandbox: failed to load runtime symbols: %w", err)
	}
	if _, err := i.Eval(generatedCode); err != nil {
		return nil, fmt.Errorf("sandbox: failed to evaluate generated code: %w", err)
	}
	v, err := i.Eval("mlprogram.Run")
	if err != nil {
		return nil, fmt.Errorf("sandbox: Run function not found: %w", err)
	}
	run, ok := v.Interface().(runFunc)
	if !ok {
		return nil, fmt.Errorf("sandbox: Run has an unexpected signature")
	}

	thread := capability.NewThread()
	mgr := capability.NewManager()
	if len(opts.ExternalTokens) > 0 {
		guard, err := mgr.EnterContext(thread, "_external_grant", opts.ExternalTokens)
		if err != nil {
			return nil, fmt.Errorf("sandbox: failed to install externally granted tokens: %w", err)
		}
		defer guard.Release()
	}

	return run(e.reg, mgr, thread)
}

func (e *Executor) toResult(result interface{}, err error, duration time.Duration, peakBytes uint64) ExecutionResult {
	base := ExecutionResult{
		DurationMs:      duration.Milliseconds(),
		PeakMemoryBytes: peakBytes,
	}
	if err == nil {
		base.Status = StatusOK
		base.ReturnValue = result
		return base
	}
	if _, ok := err.(*capability.Error); ok {
		base.Status = StatusSecurityViolation
		base.Stderr = err.Error()
		return base
	}
	base.Status = StatusError
	base.Stderr = err.Error()
	return base
}
