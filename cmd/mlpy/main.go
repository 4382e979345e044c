// Package main implements the mlpy CLI - the transpiler, auditor, and
// sandbox runner for ML source files.
//
// This file serves as the entry point and command registration hub. The
// command implementations are split across cmd_*.go files:
//
//   - main.go          - entry point, rootCmd, global flags
//   - pipeline.go      - shared parse/analyze/generate plumbing and issue rendering
//   - cmd_parse.go     - parseCmd: AST printing (tree or JSON)
//   - cmd_audit.go     - auditCmd: security analysis report
//   - cmd_transpile.go - transpileCmd: code + source-map output
//   - cmd_run.go       - runCmd: transpile + sandboxed execution with caches
//   - cmd_cache.go     - cacheCmd: cache stats and clearing
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/duns-scotus/mlpy/internal/config"
	"github.com/duns-scotus/mlpy/internal/diagnostics"
	"github.com/duns-scotus/mlpy/internal/logging"
)

var (
	// Global flags
	verbose   bool
	workspace string

	// Logger
	logger *zap.Logger

	// Loaded configuration, available to every subcommand after
	// PersistentPreRunE.
	cfg *config.Config
)

// errReported marks an error that a subcommand already rendered with full
// source context, so main doesn't print it a second time.
var errReported = errors.New("error already reported")

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mlpy",
	Short: "mlpy - secure ML transpiler and capability-scoped runtime",
	Long: `mlpy transpiles ML source into sandboxed host code.

Every program passes a three-phase static security analysis before any
code is generated, every attribute access is checked against a whitelist
registry, and execution happens in an isolated interpreter under CPU and
memory budgets with capability-scoped access to privileged operations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize zap logger for CLI output
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws := workspaceRoot()
		cfg, err = config.Load(config.DefaultPath(ws))
		if err != nil {
			return diagnostics.Wrap(diagnostics.KindConfig, "", nil, "could not load configuration", err)
		}
		if err := cfg.Validate(); err != nil {
			return diagnostics.Wrap(diagnostics.KindConfig, "", nil, "invalid configuration", err).
				WithSuggestions(fmt.Sprintf("fix %s or unset the offending MLPY_* variable", config.DefaultPath(ws)))
		}

		// Initialize the internal file-based logging system for
		// telemetry/debugging under .mlpy/logs/
		if err := logging.Initialize(ws, cfg.Logging.DebugMode, cfg.Logging.Level, cfg.Logging.JSONFormat, cfg.Logging.Categories); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to initialize file logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

// workspaceRoot resolves --workspace, defaulting to the current directory.
func workspaceRoot() string {
	ws := workspace
	if ws == "" {
		ws, _ = os.Getwd()
		return ws
	}
	if abs, err := filepath.Abs(ws); err == nil {
		return abs
	}
	return ws
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&workspace, "workspace", "", "workspace root (defaults to the current directory)")

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(transpileCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cacheCmd)
}

func main() {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupt
		logging.CloseAll()
		os.Exit(diagnostics.ExitUserInterrupt)
	}()

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, diagnostics.Sanitize(err.Error()))
		}
		os.Exit(diagnostics.ExitCode(err))
	}
}
