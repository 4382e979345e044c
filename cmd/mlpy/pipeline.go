// Package main implements the mlpy CLI commands.
// This file holds the plumbing every subcommand shares: reading and
// parsing ML source, running the analyzer with the registry wired in,
// generating code, rendering issues in the text and JSON shapes, and
// opening the configured cache.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/duns-scotus/mlpy/internal/analyzer"
	"github.com/duns-scotus/mlpy/internal/ast"
	"github.com/duns-scotus/mlpy/internal/bridge"
	"github.com/duns-scotus/mlpy/internal/codegen"
	"github.com/duns-scotus/mlpy/internal/diagnostics"
	"github.com/duns-scotus/mlpy/internal/parser"
	"github.com/duns-scotus/mlpy/internal/registry"
	"github.com/duns-scotus/mlpy/internal/sandbox"
)

// report renders err to stderr — with source context when it is a
// Diagnostic — and returns errReported so main exits non-zero without
// printing it again.
func report(err error, src string) error {
	var d *diagnostics.Diagnostic
	if errors.As(err, &d) {
		fmt.Fprint(os.Stderr, diagnostics.Sanitize(diagnostics.FormatText(d, src)))
	} else {
		fmt.Fprintln(os.Stderr, diagnostics.Sanitize(err.Error()))
	}
	return errReported
}

// parseFile reads and parses an ML file, converting a parser.SyntaxError
// into the structured Diagnostic the formatters consume. The source text
// is returned even on failure so the caller can render context.
func parseFile(path string) (string, *ast.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, diagnostics.Wrap(diagnostics.KindConfig, "", nil,
			fmt.Sprintf("cannot read %s", path), err)
	}
	src := string(data)

	prog, err := parser.Parse(src, path)
	if err != nil {
		var se *parser.SyntaxError
		if errors.As(err, &se) {
			msg := fmt.Sprintf("unexpected %q", se.Found)
			if len(se.Expected) > 0 {
				msg = fmt.Sprintf("expected %s, found %q", strings.Join(se.Expected, " or "), se.Found)
			}
			d := diagnostics.New(diagnostics.KindSyntax, "", &se.Span, msg).
				WithSuggestions("statements end with ';' except body-bearing forms (if/while/for/function/capability)")
			return src, nil, d
		}
		return src, nil, err
	}
	return src, prog, nil
}

// newRegistry builds the Safe-Attribute Registry with the builtin type
// whitelists and every stdlib bridge's class whitelist installed, the
// same bootstrap the sandbox executor performs on its side.
func newRegistry() *registry.Registry {
	reg := registry.New()
	registry.RegisterDefaults(reg)
	bridge.RegisterAll(reg)
	return reg
}

// knownClassesFor maps each stdlib-import binding in prog to its
// registered class name, so the analyzer can defer `alias.attr` checks to
// the class whitelist exactly as codegen will.
func knownClassesFor(prog *ast.Program) map[string]string {
	known := map[string]string{}
	for _, s := range prog.Statements {
		imp, ok := s.(*ast.Import)
		if !ok {
			continue
		}
		mod, recognized := bridge.StdlibPaths[imp.Path]
		if !recognized {
			continue
		}
		alias := imp.Alias
		if alias == "" {
			alias = defaultAlias(imp.Path)
		}
		known[alias] = mod.ClassName()
	}
	return known
}

// defaultAlias mirrors the generator's binding rule for an un-aliased
// import: the last path segment, stripped to identifier characters.
func defaultAlias(path string) string {
	seg := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		seg = path[i+1:]
	}
	var b strings.Builder
	for _, r := range seg {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "_ml_module"
	}
	return b.String()
}

// analyzeProgram runs the three-phase analyzer with the configured stdlib
// mode and import policy.
func analyzeProgram(prog *ast.Program, stdlibMode string) (analyzer.Result, error) {
	reg := newRegistry()
	return analyzer.Run(prog, analyzer.Options{
		StdlibMode:            stdlibMode,
		AllowedImportPrefixes: cfg.Transpile.AllowedImportPrefixes,
		Reg:                   reg,
		KnownClasses:          knownClassesFor(prog),
	})
}

// generateProgram runs codegen with the same registry and policy the
// analyzer used. In "native" stdlib mode recognized imports bind to the
// built-in bridge modules; in "host" mode they fall through to the
// user-module import path and the host environment's loader resolves
// them.
func generateProgram(prog *ast.Program, mlFile string, strictArith bool, stdlibMode string) (codegen.Result, error) {
	var bridges map[string]codegen.StdlibBridge
	if stdlibMode == "native" {
		bridges = codegen.DefaultStdlibBridges()
	}
	return codegen.Generate(prog, codegen.Options{
		MLFile:                mlFile,
		Reg:                   newRegistry(),
		StrictArith:           strictArith,
		StdlibBridges:         bridges,
		AllowedImportPrefixes: cfg.Transpile.AllowedImportPrefixes,
	})
}

// --- issue rendering ---

// severityRank parses a --threat-level value into the minimum severity an
// issue must reach to be shown.
func severityRank(name string) (analyzer.Severity, error) {
	switch name {
	case "info":
		return analyzer.Info, nil
	case "low":
		return analyzer.Low, nil
	case "medium":
		return analyzer.Medium, nil
	case "high":
		return analyzer.High, nil
	case "critical":
		return analyzer.Critical, nil
	default:
		return 0, fmt.Errorf("unknown threat level %q (info|low|medium|high|critical)", name)
	}
}

func filterBySeverity(issues []analyzer.Issue, min analyzer.Severity) []analyzer.Issue {
	out := make([]analyzer.Issue, 0, len(issues))
	for _, i := range issues {
		if i.Severity >= min {
			out = append(out, i)
		}
	}
	return out
}

// issueJSON renders one issue in the spec's wire schema: {severity,
// category, message, cwe?, span?, context, suggestions}.
func issueJSON(i analyzer.Issue) map[string]interface{} {
	m := map[string]interface{}{
		"severity":    i.Severity.String(),
		"category":    string(i.Category),
		"message":     diagnostics.Sanitize(i.Message),
		"context":     i.Context,
		"suggestions": i.Suggestions,
	}
	if i.CWE != "" {
		m["cwe"] = i.CWE
	}
	if i.Span != nil {
		span := map[string]interface{}{
			"line":     i.Span.Line,
			"col":      i.Span.Column,
			"end_line": i.Span.EndLine,
			"end_col":  i.Span.EndColumn,
		}
		if i.Span.File != "" {
			span["file"] = i.Span.File
		}
		m["span"] = span
	}
	return m
}

func issuesJSON(issues []analyzer.Issue) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(issues))
	for _, i := range issues {
		out = append(out, issueJSON(i))
	}
	return out
}

func printIssuesText(w io.Writer, issues []analyzer.Issue) {
	for _, i := range issues {
		loc := ""
		if i.Span != nil {
			loc = fmt.Sprintf(" at %s", i.Span)
		}
		cwe := ""
		if i.CWE != "" {
			cwe = fmt.Sprintf(" (%s)", i.CWE)
		}
		fmt.Fprintf(w, "[%s] %s%s%s: %s\n", i.Severity, i.Category, cwe, loc, diagnostics.Sanitize(i.Message))
		for _, s := range i.Suggestions {
			fmt.Fprintf(w, "    suggestion: %s\n", s)
		}
	}
}

// --- source map ---

// sourceMapMapping is one record of the wire format's mappings array.
type sourceMapMapping struct {
	GenLine int `json:"gen_line"`
	SrcLine int `json:"src_line"`
	SrcCol  int `json:"src_col"`
}

// sourceMapFile is the on-disk source-map record: {version: 1, file,
// source, mappings, issues}.
type sourceMapFile struct {
	Version  int                      `json:"version"`
	File     string                   `json:"file"`
	Source   string                   `json:"source"`
	Mappings []sourceMapMapping       `json:"mappings"`
	Issues   []map[string]interface{} `json:"issues"`
}

func sourceMapRecord(sm *codegen.SourceMap, genFile, mlFile string, issues []analyzer.Issue) sourceMapFile {
	record := sourceMapFile{
		Version:  1,
		File:     genFile,
		Source:   mlFile,
		Mappings: make([]sourceMapMapping, 0, len(sm.Entries)),
		Issues:   issuesJSON(issues),
	}
	for _, e := range sm.Entries {
		record.Mappings = append(record.Mappings, sourceMapMapping{
			GenLine: e.TargetLine,
			SrcLine: e.MLLine,
			SrcCol:  e.MLColumn,
		})
	}
	return record
}

func writeSourceMap(path string, record sourceMapFile) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal source map: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// --- cache ---

// openCache opens the configured cache, or returns nil when caching is
// disabled. The caller owns Close.
func openCache() (*sandbox.Cache, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	path := cfg.Cache.Path
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(workspaceRoot(), path)
	}
	compileTTL, err := cfg.Cache.CompileTTLDuration()
	if err != nil {
		return nil, err
	}
	execTTL, err := cfg.Cache.ExecuteTTLDuration()
	if err != nil {
		return nil, err
	}
	return sandbox.NewCache(path, sandbox.CacheOptions{
		MaxEntries: cfg.Cache.MaxEntries,
		CompileTTL: compileTTL,
		ExecuteTTL: execTTL,
	})
}
