// Package main implements the mlpy CLI commands.
// This file contains the transpile command: parse, analyze, generate, and
// write the generated code plus an optional source map.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	transpileOutput     string
	transpileSourceMap  bool
	transpileStrict     bool
	transpileNoStrict   bool
	transpileStdlibMode string
	transpileStrictArith bool
)

var transpileCmd = &cobra.Command{
	Use:   "transpile <file>",
	Short: "Transpile an ML file to host code",
	Long: `Parses and analyzes the file, then generates host code. In strict mode
(the default) any critical or high analyzer issue refuses generation; with
--no-strict those issues are printed as warnings and generation proceeds.`,
	Args: cobra.ExactArgs(1),
	RunE: runTranspile,
}

func init() {
	transpileCmd.Flags().StringVarP(&transpileOutput, "output", "o", "", "output path (defaults to the input with a .go extension)")
	transpileCmd.Flags().BoolVar(&transpileSourceMap, "sourcemap", false, "also write <output>.map.json")
	transpileCmd.Flags().BoolVar(&transpileStrict, "strict", false, "treat critical/high issues as hard failures (config default)")
	transpileCmd.Flags().BoolVar(&transpileNoStrict, "no-strict", false, "downgrade critical/high issues to warnings")
	transpileCmd.Flags().StringVar(&transpileStdlibMode, "stdlib-mode", "", "stdlib import mode: native or host (config default)")
	transpileCmd.Flags().BoolVar(&transpileStrictArith, "strict-arith", false, "make number+string a runtime type error instead of coercing")
}

// resolveStrict merges the config default with the --strict/--no-strict
// flag pair; an explicit flag wins.
func resolveStrict(cmd *cobra.Command) bool {
	if cmd.Flags().Changed("no-strict") && transpileNoStrict {
		return false
	}
	if cmd.Flags().Changed("strict") {
		return transpileStrict
	}
	return cfg.Transpile.Strict
}

func resolveStdlibMode(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return cfg.Transpile.StdlibMode
}

// defaultOutputPath maps prog.ml to prog.go (and anything without a .ml
// suffix to <name>.go).
func defaultOutputPath(input string) string {
	base := strings.TrimSuffix(input, ".ml")
	return base + ".go"
}

func runTranspile(cmd *cobra.Command, args []string) error {
	input := args[0]
	strict := resolveStrict(cmd)
	stdlibMode := resolveStdlibMode(transpileStdlibMode)
	strictArith := transpileStrictArith || cfg.Transpile.StrictArith

	src, prog, err := parseFile(input)
	if err != nil {
		return report(err, src)
	}

	res, err := analyzeProgram(prog, stdlibMode)
	if err != nil {
		return report(err, src)
	}
	if res.Blocking {
		printIssuesText(os.Stderr, res.Issues)
		if strict {
			return fmt.Errorf("refusing to generate code: security analysis found blocking issues in %s", input)
		}
		fmt.Fprintln(os.Stderr, "proceeding despite blocking issues (--no-strict)")
	} else if len(res.Issues) > 0 {
		printIssuesText(os.Stderr, res.Issues)
	}

	gen, err := generateProgram(prog, input, strictArith, stdlibMode)
	if err != nil {
		// Codegen refusals (an unsafe attribute, a disallowed import)
		// arrive as issues with no partial code.
		if len(gen.Issues) > 0 {
			printIssuesText(os.Stderr, gen.Issues)
		}
		return report(err, src)
	}

	out := transpileOutput
	if out == "" {
		out = defaultOutputPath(input)
	}
	if err := os.WriteFile(out, []byte(gen.Code), 0644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	logger.Debug("transpiled", zap.String("input", input), zap.String("output", out))

	if transpileSourceMap {
		mapPath := out + ".map.json"
		record := sourceMapRecord(gen.Map, out, input, append(res.Issues, gen.Issues...))
		if err := writeSourceMap(mapPath, record); err != nil {
			return err
		}
		fmt.Printf("wrote %s and %s\n", out, mapPath)
		return nil
	}
	fmt.Printf("wrote %s\n", out)
	return nil
}
