// Package main implements the mlpy CLI commands.
// This file contains the audit command: the security analyzer as a
// standalone report, exiting non-zero when any critical issue is found.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/duns-scotus/mlpy/internal/analyzer"
)

var (
	auditFormat      string
	auditThreatLevel string
)

var auditCmd = &cobra.Command{
	Use:   "audit <file>",
	Short: "Run the security analyzer over an ML file",
	Long: `Parses the file and runs the three-phase security analysis (pattern
detection, AST-structural checks, data-flow taint tracking), printing every
issue found. The exit code is non-zero if any critical issue was emitted.`,
	Args: cobra.ExactArgs(1),
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().StringVar(&auditFormat, "format", "text", "output format: text or json")
	auditCmd.Flags().StringVar(&auditThreatLevel, "threat-level", "info", "minimum severity to report: info, low, medium, high, or critical")
}

func runAudit(cmd *cobra.Command, args []string) error {
	minSeverity, err := severityRank(auditThreatLevel)
	if err != nil {
		return err
	}

	src, prog, err := parseFile(args[0])
	if err != nil {
		return report(err, src)
	}

	res, err := analyzeProgram(prog, cfg.Transpile.StdlibMode)
	if err != nil {
		return report(err, src)
	}
	shown := filterBySeverity(res.Issues, minSeverity)

	criticalCount := 0
	for _, i := range res.Issues {
		if i.Severity == analyzer.Critical {
			criticalCount++
		}
	}

	switch auditFormat {
	case "json":
		data, err := json.MarshalIndent(issuesJSON(shown), "", "  ")
		if err != nil {
			return fmt.Errorf("marshal issues: %w", err)
		}
		fmt.Println(string(data))
	case "text":
		if len(shown) == 0 {
			fmt.Printf("%s: no issues at or above %s\n", args[0], auditThreatLevel)
		} else {
			printIssuesText(os.Stdout, shown)
			fmt.Printf("%d issue(s) reported, %d critical\n", len(shown), criticalCount)
		}
	default:
		return fmt.Errorf("unknown format %q (text|json)", auditFormat)
	}

	if criticalCount > 0 {
		return fmt.Errorf("audit: %d critical issue(s) in %s", criticalCount, args[0])
	}
	return nil
}
