// Package main implements the mlpy CLI commands.
// This file contains the run command: the full pipeline (parse → analyze
// → generate → sandbox execute) with both caches in front of the
// expensive halves.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/duns-scotus/mlpy/internal/capability"
	"github.com/duns-scotus/mlpy/internal/sandbox"
)

var (
	runMemoryLimitMB int
	runCPUTimeoutSec int
	runFilePatterns  []string
	runDisableNet    bool
	runCapsFile      string
	runAsJSON        bool
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Transpile and execute an ML file in the sandbox",
	Long: `Runs the whole pipeline: parse, security analysis (strict per config),
code generation, and sandboxed execution under the configured CPU and
memory budgets. Pre-built capability tokens can be injected with
--capabilities; --file-patterns grants ambient read/write file access
under the given globs.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVar(&runMemoryLimitMB, "memory-limit", 0, "memory limit in MiB (config default)")
	runCmd.Flags().IntVar(&runCPUTimeoutSec, "cpu-timeout", 0, "CPU budget in seconds (config default)")
	runCmd.Flags().StringArrayVar(&runFilePatterns, "file-patterns", nil, "file path globs the program may access (repeatable)")
	runCmd.Flags().BoolVar(&runDisableNet, "disable-network", false, "force network access off regardless of config")
	runCmd.Flags().StringVar(&runCapsFile, "capabilities", "", "JSON file of capability token specs to grant the program")
	runCmd.Flags().BoolVar(&runAsJSON, "json", false, "print the execution result as JSON")
}

func runRun(cmd *cobra.Command, args []string) error {
	input := args[0]

	src, prog, err := parseFile(input)
	if err != nil {
		return report(err, src)
	}

	cache, err := openCache()
	if err != nil {
		// A broken cache never blocks a run; it only costs repeat work.
		logger.Warn("cache unavailable", zap.Error(err))
		cache = nil
	}
	if cache != nil {
		defer cache.Close()
	}

	// The compile key covers the options that change generated code, not
	// just the source text.
	stdlibMode := cfg.Transpile.StdlibMode
	strictArith := cfg.Transpile.StrictArith
	srcHash := sandbox.HashSource(fmt.Sprintf("%s|%s|%v", src, stdlibMode, strictArith))

	var code string
	if cache != nil {
		if entry, ok := cache.GetCompiled(srcHash); ok {
			// The strict gate re-applies to cached issues: an entry
			// compiled under --no-strict must not slip past a strict run.
			blocking := false
			for _, i := range entry.Issues {
				if i.IsBlocking() {
					blocking = true
					break
				}
			}
			if blocking && cfg.Transpile.Strict {
				printIssuesText(os.Stderr, entry.Issues)
				return fmt.Errorf("refusing to run: security analysis found blocking issues in %s", input)
			}
			logger.Debug("compilation cache hit", zap.String("file", input))
			code = entry.Code
		}
	}
	if code == "" {
		res, err := analyzeProgram(prog, stdlibMode)
		if err != nil {
			return report(err, src)
		}
		if res.Blocking && cfg.Transpile.Strict {
			printIssuesText(os.Stderr, res.Issues)
			return fmt.Errorf("refusing to run: security analysis found blocking issues in %s", input)
		}
		if len(res.Issues) > 0 {
			printIssuesText(os.Stderr, res.Issues)
		}

		gen, err := generateProgram(prog, input, strictArith, stdlibMode)
		if err != nil {
			if len(gen.Issues) > 0 {
				printIssuesText(os.Stderr, gen.Issues)
			}
			return report(err, src)
		}
		code = gen.Code
		if cache != nil {
			abs, _ := filepath.Abs(input)
			cache.PutCompiled(srcHash, &sandbox.CompiledEntry{
				SourcePath: abs,
				Code:       gen.Code,
				Issues:     append(res.Issues, gen.Issues...),
			})
		}
	}

	opts, tokensWire, err := buildRunOptions()
	if err != nil {
		return err
	}

	codeHash := sandbox.HashSource(code)
	inputHash := sandbox.HashSource(fmt.Sprintf("%v|%d|%v|%v|%s",
		opts.CPUTimeout, opts.MemoryLimitBytes, opts.NetworkAllowed, opts.FileAccessGlobs, tokensWire))

	var result sandbox.ExecutionResult
	cached := false
	if cache != nil {
		if res, ok := cache.GetExecution(codeHash, inputHash); ok {
			logger.Debug("execution cache hit", zap.String("file", input))
			result, cached = res, true
		}
	}
	if !cached {
		executor := sandbox.NewExecutor()
		result = executor.Run(code, opts)
		if cache != nil && result.Status == sandbox.StatusOK {
			cache.PutExecution(codeHash, inputHash, result)
		}
	}

	if err := printExecutionResult(result); err != nil {
		return err
	}
	if result.Status != sandbox.StatusOK {
		return fmt.Errorf("run: %s", result.Status)
	}
	return nil
}

// buildRunOptions merges config defaults with the run flags and loads any
// --capabilities token file. The returned wire string feeds the execution
// cache key, so two runs with different grants never share a result.
func buildRunOptions() (sandbox.Options, string, error) {
	cpuTimeout, err := cfg.Sandbox.CPUTimeoutDuration()
	if err != nil {
		return sandbox.Options{}, "", err
	}
	if runCPUTimeoutSec > 0 {
		cpuTimeout = time.Duration(runCPUTimeoutSec) * time.Second
	}
	memoryLimit := cfg.Sandbox.MemoryLimitBytes()
	if runMemoryLimitMB > 0 {
		memoryLimit = uint64(runMemoryLimitMB) * 1024 * 1024
	}
	network := cfg.Sandbox.NetworkAllowed
	if runDisableNet {
		network = false
	}
	patterns := cfg.Sandbox.FileAccessGlobs
	if len(runFilePatterns) > 0 {
		patterns = runFilePatterns
	}

	var tokens []*capability.Token
	wire := ""
	if runCapsFile != "" {
		data, err := os.ReadFile(runCapsFile)
		if err != nil {
			return sandbox.Options{}, "", fmt.Errorf("read capabilities file: %w", err)
		}
		tokens, err = sandbox.DecodeTokenSpecs(data)
		if err != nil {
			return sandbox.Options{}, "", err
		}
		wire = string(data)
	}
	// The file-access allowlist is itself a capability grant: ambient
	// read/write over exactly the listed globs.
	if len(patterns) > 0 {
		tokens = append(tokens, capability.NewToken("file", patterns, []string{"read", "write"}, "file access allowlist"))
	}

	return sandbox.Options{
		CPUTimeout:       cpuTimeout,
		MemoryLimitBytes: memoryLimit,
		NetworkAllowed:   network,
		FileAccessGlobs:  patterns,
		ExternalTokens:   tokens,
		StrictArith:      cfg.Transpile.StrictArith,
	}, wire, nil
}

func printExecutionResult(res sandbox.ExecutionResult) error {
	if runAsJSON {
		out := map[string]interface{}{
			"status":            string(res.Status),
			"stdout":            res.Stdout,
			"stderr":            res.Stderr,
			"duration_ms":       res.DurationMs,
			"peak_memory_bytes": res.PeakMemoryBytes,
			"issues":            issuesJSON(res.Issues),
		}
		if res.ReturnValue != nil {
			out["return_value"] = res.ReturnValue
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if res.Stdout != "" {
		fmt.Print(res.Stdout)
	}
	if res.Stderr != "" {
		fmt.Fprint(os.Stderr, res.Stderr)
		if res.Stderr[len(res.Stderr)-1] != '\n' {
			fmt.Fprintln(os.Stderr)
		}
	}
	if res.Status == sandbox.StatusOK {
		if res.ReturnValue != nil {
			fmt.Printf("=> %v\n", res.ReturnValue)
		}
		fmt.Printf("ok in %dms (peak %d bytes)\n", res.DurationMs, res.PeakMemoryBytes)
	} else {
		fmt.Fprintf(os.Stderr, "%s after %dms (peak %d bytes)\n", res.Status, res.DurationMs, res.PeakMemoryBytes)
	}
	return nil
}
