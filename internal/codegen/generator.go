// Package codegen implements C6: generate(program, options) -> {code,
// source_map, issues_from_codegen}. It lowers the typed AST to Go source
// that imports internal/runtime (aliased "mlrt" in the emitted text, per
// that package's own doc comment) for every dynamically-typed operation a
// statically typed host language cannot express directly, and is meant to
// run inside the sandbox's yaegi isolate (C8), not `go build`.
//
// Exceptions (`throw`) and function `return` are both lowered to Go
// panics carrying a typed payload (*mlrt.ReturnSignal for return, an
// `error` for throw/runtime failures) recovered at the right boundary:
// a generated function/lambda's own entry recovers ReturnSignal; a
// generated try/except recovers only `error` payloads and re-panics
// anything else unchanged. This is what lets `return` inside a nested
// try/except or capability block correctly exit the owning ML function
// rather than just the Go block wrapping it.
package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/duns-scotus/mlpy/internal/analyzer"
	"github.com/duns-scotus/mlpy/internal/ast"
	"github.com/duns-scotus/mlpy/internal/registry"
)

// Result is generate's output.
type Result struct {
	Code   string
	Map    *SourceMap
	Issues []analyzer.Issue
}

// abortError signals the "no partial output is committed" rule: codegen
// stops immediately and Generate returns no code.
type abortError struct {
	issue analyzer.Issue
}

func (e *abortError) Error() string { return e.issue.Message }

type generator struct {
	opts Options
	buf  strings.Builder
	sm   *SourceMap
	line int
	indent int

	tmp int

	// knownClasses maps an identifier bound by a stdlib Import to the
	// registry class it was registered under, so an Attr on it can be
	// checked against that class's whitelist at generation time exactly
	// as internal/analyzer's Phase B does (Options.KnownClasses there).
	knownClasses map[string]string
	imports      map[string]bool
	capabilities map[string]*ast.CapabilityDecl
	issues       []analyzer.Issue
}

// Generate implements C6's contract.
func Generate(program *ast.Program, opts Options) (Result, error) {
	g := &generator{
		opts:         opts,
		sm:           &SourceMap{File: opts.MLFile},
		knownClasses: map[string]string{},
		imports:      map[string]bool{},
		capabilities: map[string]*ast.CapabilityDecl{},
	}
	g.collectCapabilities(program.Statements)

	g.writePreamble()
	for _, name := range sortedKeys(g.capabilities) {
		g.emitCapabilityHelpers(g.capabilities[name])
	}

	hoisted := collectAssignedNames(program.Statements)
	g.openBlock("func Run(reg *registry.Registry, mgr *capability.Manager, thread *capability.Thread) (result interface{}, err error) {", ast.Span{})
	g.emitRecoverPrologue()
	g.emitHoistDecls(hoisted)
	if err := g.emitStmts(program.Statements); err != nil {
		if ab, ok := err.(*abortError); ok {
			return Result{Issues: []analyzer.Issue{ab.issue}}, err
		}
		return Result{}, err
	}
	g.emitUnusedGuards(hoisted)
	g.closeBlock("}")

	return Result{Code: g.buf.String(), Map: g.sm, Issues: g.issues}, nil
}

func sortedKeys(m map[string]*ast.CapabilityDecl) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

func (g *generator) writePreamble() {
	g.emitRaw("package mlprogram")
	g.emitRaw("")
	g.emitRaw("import (")
	g.emitRaw("\t\"github.com/duns-scotus/mlpy/internal/bridge\"")
	g.emitRaw("\t\"github.com/duns-scotus/mlpy/internal/capability\"")
	g.emitRaw("\t\"github.com/duns-scotus/mlpy/internal/registry\"")
	g.emitRaw("\tmlrt \"github.com/duns-scotus/mlpy/internal/runtime\"")
	for _, pkg := range g.sortedImports() {
		g.emitRaw(fmt.Sprintf("\t%q", pkg))
	}
	g.emitRaw(")")
	g.emitRaw("")
}

func (g *generator) sortedImports() []string {
	keys := make([]string, 0, len(g.imports))
	for k := range g.imports {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// --- low-level emission ---

func (g *generator) emitRaw(line string) {
	if line != "" {
		g.buf.WriteString(strings.Repeat("\t", g.indent))
	}
	g.buf.WriteString(line)
	g.buf.WriteByte('\n')
	g.line++
}

func (g *generator) emit(line string, span ast.Span) {
	g.emitRaw(line)
	if !span.IsZero() {
		g.sm.record(g.line, g.opts.MLFile, span.Line, span.Column)
	}
}

func (g *generator) openBlock(line string, span ast.Span) {
	g.emit(line, span)
	g.indent++
}

func (g *generator) closeBlock(line string) {
	g.indent--
	g.emitRaw(line)
}

func (g *generator) newTemp() string {
	g.tmp++
	return auxName(fmt.Sprintf("t%d", g.tmp))
}

func (g *generator) checkErr(errVar string) {
	g.emitRaw(fmt.Sprintf("if %s != nil { panic(%s) }", errVar, errVar))
}

// --- function-boundary scaffolding shared by Run, FunctionDecl, Lambda ---

func (g *generator) emitRecoverPrologue() {
	g.openBlock("defer func() {", ast.Span{})
	g.openBlock("if r := recover(); r != nil {", ast.Span{})
	g.openBlock("if rs, ok := r.(*mlrt.ReturnSignal); ok {", ast.Span{})
	g.emitRaw("result = rs.Value")
	g.emitRaw("err = nil")
	g.closeBlock("} else if e, ok := r.(error); ok {")
	g.indent++
	g.emitRaw("err = e")
	g.closeBlock("} else {")
	g.indent++
	g.emitRaw("err = mlrt.NewRuntimeError(\"panic: %v\", r)")
	g.closeBlock("}")
	g.closeBlock("}")
	g.closeBlock("}()")
}

func (g *generator) emitHoistDecls(names []string) {
	if len(names) == 0 {
		return
	}
	g.emitRaw(fmt.Sprintf("var %s interface{}", strings.Join(names, ", ")))
}

// emitUnusedGuards blanks every hoisted local so ML code that assigns but
// never reads a variable does not fail Go's unused-variable check.
func (g *generator) emitUnusedGuards(names []string) {
	for _, n := range names {
		g.emitRaw(fmt.Sprintf("_ = %s", n))
	}
}

// emitFunctionLiteralBody emits the body of a func(args []interface{})
// (result interface{}, err error) { ... } literal, used by both
// FunctionDecl and Lambda.
func (g *generator) emitFunctionLiteralBody(params []string, body []ast.Stmt) error {
	hoisted := append(append([]string{}, params...), collectAssignedNames(body)...)
	hoisted = dedup(hoisted)
	g.emitRecoverPrologue()
	g.emitHoistDecls(hoisted)
	for i, p := range params {
		g.emitRaw(fmt.Sprintf("if len(args) > %d { %s = args[%d] }", i, p, i))
	}
	if err := g.emitStmts(body); err != nil {
		return err
	}
	g.emitUnusedGuards(hoisted)
	return nil
}

func dedup(names []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// --- hoisting pre-scan ---

// collectAssignedNames walks a function/lambda body's statements (never
// descending into a nested FunctionDecl's own body or a Lambda expression,
// each of which is its own scope) and returns every identifier that needs
// a `var name interface{}` declared once at the top, per spec.md §4.5's
// "first assignment in a scope introduces a local" rule — Go requires all
// branches of an if/while/for to share one declaration, which only a
// single up-front hoist can guarantee.
func collectAssignedNames(stmts []ast.Stmt) []string {
	var order []string
	seen := map[string]bool{}
	add := func(n string) {
		if n != "" && !seen[n] {
			seen[n] = true
			order = append(order, n)
		}
	}
	var walk func([]ast.Stmt)
	walk = func(stmts []ast.Stmt) {
		for _, s := range stmts {
			switch n := s.(type) {
			case *ast.Assign:
				if id, ok := n.Target.(*ast.Identifier); ok {
					add(id.Name)
				}
			case *ast.If:
				walk(n.Then)
				for _, e := range n.Elifs {
					walk(e.Body)
				}
				walk(n.Else)
			case *ast.While:
				walk(n.Body)
			case *ast.ForIn:
				add(n.Var)
				walk(n.Body)
			case *ast.ForC:
				if n.Init != nil {
					walk([]ast.Stmt{n.Init})
				}
				if n.Step != nil {
					walk([]ast.Stmt{n.Step})
				}
				walk(n.Body)
			case *ast.TryExcept:
				walk(n.Body)
				for _, h := range n.Handlers {
					add(h.Name)
					walk(h.Body)
				}
				walk(n.Finally)
			case *ast.FunctionDecl:
				add(n.Name)
			case *ast.CapabilityDecl:
				walk(n.Body)
			case *ast.Import:
				add(importBinding(n))
			}
		}
	}
	walk(stmts)
	return order
}

func importBinding(n *ast.Import) string {
	if n.Alias != "" {
		return n.Alias
	}
	return defaultAliasFromPath(n.Path)
}

func defaultAliasFromPath(path string) string {
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
	out := b.String()
	if out == "" {
		out = "_ml_module"
	}
	return out
}

// --- capability declarations ---

func (g *generator) collectCapabilities(stmts []ast.Stmt) {
	var walk func([]ast.Stmt)
	walk = func(stmts []ast.Stmt) {
		for _, s := range stmts {
			switch n := s.(type) {
			case *ast.If:
				walk(n.Then)
				for _, e := range n.Elifs {
					walk(e.Body)
				}
				walk(n.Else)
			case *ast.While:
				walk(n.Body)
			case *ast.ForIn:
				walk(n.Body)
			case *ast.ForC:
				walk(n.Body)
			case *ast.TryExcept:
				walk(n.Body)
				for _, h := range n.Handlers {
					walk(h.Body)
				}
				walk(n.Finally)
			case *ast.FunctionDecl:
				walk(n.Body)
			case *ast.CapabilityDecl:
				if _, ok := g.capabilities[n.Name]; !ok {
					g.capabilities[n.Name] = n
				}
				walk(n.Body)
			}
		}
	}
	walk(stmts)
}

func goStringSlice(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = strconv.Quote(s)
	}
	return "[]string{" + strings.Join(quoted, ", ") + "}"
}

// emitCapabilityHelpers emits the token-factory and scoped-context helper
// pair spec.md §4.5 names, as `_ml_create_<name>_capability(mgr)` (the
// factory carries the auxiliary-name `_ml_` prefix) and
// `<name>_context(mgr, thread)`. Both take the manager/thread explicitly
// rather than reading a hidden global.
func (g *generator) emitCapabilityHelpers(decl *ast.CapabilityDecl) {
	factory := auxName("create_" + decl.Name + "_capability")
	g.openBlock(fmt.Sprintf("func %s(mgr *capability.Manager) *capability.Token {", factory), decl.Span())
	g.emitRaw(fmt.Sprintf("return mgr.CreateToken(%q, %s, %s, %q)",
		decl.Name, goStringSlice(decl.Resources), goStringSlice(decl.Ops), "capability block "+decl.Name))
	g.closeBlock("}")
	g.emitRaw("")

	g.openBlock(fmt.Sprintf("func %s_context(mgr *capability.Manager, thread *capability.Thread) (*capability.Guard, error) {", decl.Name), ast.Span{})
	g.emitRaw(fmt.Sprintf("return mgr.EnterContext(thread, %q, []*capability.Token{%s(mgr)})", decl.Name, factory))
	g.closeBlock("}")
	g.emitRaw("")
}

// --- statements ---

func (g *generator) emitStmts(stmts []ast.Stmt) error {
	for _, s := range stmts {
		if err := g.emitStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) emitStmt(s ast.Stmt) error {
	switch n := s.(type) {
	case *ast.Assign:
		return g.emitAssign(n)
	case *ast.If:
		return g.emitIf(n)
	case *ast.While:
		return g.emitWhile(n)
	case *ast.ForIn:
		return g.emitForIn(n)
	case *ast.ForC:
		return g.emitForC(n)
	case *ast.Return:
		return g.emitReturn(n)
	case *ast.Break:
		g.emitRaw("break")
		return nil
	case *ast.Continue:
		g.emitRaw("continue")
		return nil
	case *ast.Throw:
		return g.emitThrow(n)
	case *ast.TryExcept:
		return g.emitTryExcept(n)
	case *ast.FunctionDecl:
		return g.emitFunctionDecl(n)
	case *ast.Import:
		return g.emitImport(n)
	case *ast.CapabilityDecl:
		return g.emitCapabilityUse(n)
	case *ast.ExprStmt:
		_, err := g.emitExpr(n.E)
		return err
	default:
		return fmt.Errorf("codegen: unhandled statement type %T", s)
	}
}

func (g *generator) emitAssign(n *ast.Assign) error {
	value, err := g.emitExpr(n.Value)
	if err != nil {
		return err
	}
	switch target := n.Target.(type) {
	case *ast.Identifier:
		g.emit(fmt.Sprintf("%s = %s", target.Name, value), n.Span())
	case *ast.Index:
		targetVar, err := g.emitExpr(target.Target)
		if err != nil {
			return err
		}
		keyVar, err := g.emitExpr(target.Key)
		if err != nil {
			return err
		}
		errv := g.newTemp()
		g.emit(fmt.Sprintf("%s := mlrt.SetIndex(%s, %s, %s)", errv, targetVar, keyVar, value), n.Span())
		g.checkErr(errv)
	case *ast.Attr:
		if err := g.checkAttrAllowed(target); err != nil {
			return err
		}
		targetVar, err := g.emitExpr(target.Target)
		if err != nil {
			return err
		}
		errv := g.newTemp()
		g.emit(fmt.Sprintf("%s := mlrt.SetAttr(%s, %q, %s, reg)", errv, targetVar, target.Name, value), n.Span())
		g.checkErr(errv)
	default:
		return fmt.Errorf("codegen: invalid assignment target %T", n.Target)
	}
	return nil
}

func (g *generator) emitIf(n *ast.If) error {
	cond, err := g.emitExpr(n.Cond)
	if err != nil {
		return err
	}
	g.openBlock(fmt.Sprintf("if mlrt.Truthy(%s) {", cond), n.Span())
	if err := g.emitStmts(n.Then); err != nil {
		return err
	}
	for _, elif := range n.Elifs {
		g.closeBlock("} else {")
		g.indent++
		econd, err := g.emitExpr(elif.Cond)
		if err != nil {
			return err
		}
		g.openBlock(fmt.Sprintf("if mlrt.Truthy(%s) {", econd), ast.Span{})
		if err := g.emitStmts(elif.Body); err != nil {
			return err
		}
	}
	if n.Else != nil {
		g.closeBlock("} else {")
		g.indent++
		if err := g.emitStmts(n.Else); err != nil {
			return err
		}
	}
	closers := 1 + len(n.Elifs)
	for i := 0; i < closers; i++ {
		g.closeBlock("}")
	}
	return nil
}

func (g *generator) emitWhile(n *ast.While) error {
	g.openBlock("for {", n.Span())
	cond, err := g.emitExpr(n.Cond)
	if err != nil {
		return err
	}
	g.emitRaw(fmt.Sprintf("if !mlrt.Truthy(%s) { break }", cond))
	if err := g.emitStmts(n.Body); err != nil {
		return err
	}
	g.closeBlock("}")
	return nil
}

func (g *generator) emitForIn(n *ast.ForIn) error {
	iter, err := g.emitExpr(n.Iter)
	if err != nil {
		return err
	}
	items := g.newTemp()
	g.emit(fmt.Sprintf("%s, err := mlrt.Iterable(%s)", items, iter), n.Span())
	g.checkErr("err")
	idx := g.newTemp()
	g.openBlock(fmt.Sprintf("for %s := range %s {", idx, items), ast.Span{})
	g.emitRaw(fmt.Sprintf("%s = %s[%s]", n.Var, items, idx))
	if err := g.emitStmts(n.Body); err != nil {
		return err
	}
	g.closeBlock("}")
	return nil
}

func (g *generator) emitForC(n *ast.ForC) error {
	g.openBlock("for {", n.Span())
	if n.Init != nil {
		if err := g.emitStmt(n.Init); err != nil {
			return err
		}
	}
	if n.Cond != nil {
		cond, err := g.emitExpr(n.Cond)
		if err != nil {
			return err
		}
		g.emitRaw(fmt.Sprintf("if !mlrt.Truthy(%s) { break }", cond))
	}
	if err := g.emitStmts(n.Body); err != nil {
		return err
	}
	if n.Step != nil {
		if err := g.emitStmt(n.Step); err != nil {
			return err
		}
	}
	g.closeBlock("}")
	return nil
}

func (g *generator) emitReturn(n *ast.Return) error {
	if n.E == nil {
		g.emit("panic(&mlrt.ReturnSignal{Value: nil})", n.Span())
		return nil
	}
	v, err := g.emitExpr(n.E)
	if err != nil {
		return err
	}
	g.emit(fmt.Sprintf("panic(&mlrt.ReturnSignal{Value: %s})", v), n.Span())
	return nil
}

func (g *generator) emitThrow(n *ast.Throw) error {
	v, err := g.emitExpr(n.E)
	if err != nil {
		return err
	}
	g.emit(fmt.Sprintf("panic(mlrt.Throw(%s))", v), n.Span())
	return nil
}

func (g *generator) emitTryExcept(n *ast.TryExcept) error {
	g.openBlock("func() {", n.Span())
	if n.Finally != nil {
		g.openBlock("defer func() {", ast.Span{})
		if err := g.emitStmts(n.Finally); err != nil {
			return err
		}
		g.closeBlock("}()")
	}
	if len(n.Handlers) > 0 {
		// Only the first handler is reachable: the grammar permits several
		// `except name { ... }` clauses but carries no type discriminator
		// to choose among them, so a second handler can never run.
		h := n.Handlers[0]
		g.openBlock("defer func() {", ast.Span{})
		g.openBlock("if r := recover(); r != nil {", ast.Span{})
		g.emitRaw("if _, ok := r.(*mlrt.ReturnSignal); ok { panic(r) }")
		g.emitRaw("e, ok := r.(error)")
		g.emitRaw("if !ok { panic(r) }")
		if h.Name != "" {
			g.emitRaw(fmt.Sprintf("%s = mlrt.ExceptionValue(e)", h.Name))
		}
		if err := g.emitStmts(h.Body); err != nil {
			return err
		}
		g.closeBlock("}")
		g.closeBlock("}()")
	}
	if err := g.emitStmts(n.Body); err != nil {
		return err
	}
	g.closeBlock("}()")
	return nil
}

func (g *generator) emitFunctionDecl(n *ast.FunctionDecl) error {
	g.openBlock(fmt.Sprintf("%s = &mlrt.Function{Name: %q, Call: func(args []interface{}) (result interface{}, err error) {", n.Name, n.Name), n.Span())
	if err := g.emitFunctionLiteralBody(n.Params, n.Body); err != nil {
		return err
	}
	g.closeBlock("}}")
	return nil
}

func (g *generator) emitImport(n *ast.Import) error {
	alias := importBinding(n)
	if !validIdentifier(alias) {
		return fmt.Errorf("codegen: invalid import binding %q", alias)
	}
	if sb, ok := g.opts.StdlibBridges[n.Path]; ok {
		g.knownClasses[alias] = sb.ClassName
		g.imports[sb.GoPackage] = true
		g.emit(fmt.Sprintf("%s = %s.Instance(bridge.Deps{Manager: mgr, Thread: thread})", alias, sb.ModuleRef), n.Span())
		return nil
	}
	if !g.opts.hasImportPrefix(n.Path) {
		issue := analyzer.Issue{
			Severity: analyzer.High,
			Category: analyzer.CategoryUnsafeImport,
			Message:  fmt.Sprintf("import path %q is not permitted by the configured import policy", n.Path),
			Span:     spanPtr(n.Span()),
		}
		return &abortError{issue: issue}
	}
	g.emit(fmt.Sprintf("%s = nil // user import %q resolved by the sandbox's module loader at execution time", alias, n.Path), n.Span())
	return nil
}

func (g *generator) emitCapabilityUse(n *ast.CapabilityDecl) error {
	guard := g.newTemp()
	errv := g.newTemp()
	g.emit(fmt.Sprintf("%s, %s := %s_context(mgr, thread)", guard, errv, n.Name), n.Span())
	g.checkErr(errv)
	g.openBlock("func() {", ast.Span{})
	g.emitRaw(fmt.Sprintf("defer %s.Release()", guard))
	if err := g.emitStmts(n.Body); err != nil {
		return err
	}
	g.closeBlock("}()")
	return nil
}

func spanPtr(s ast.Span) *ast.Span { return &s }

// checkAttrAllowed mirrors internal/analyzer's Phase B precedence check:
// for a known registered class the registry's verdict decides; otherwise a
// bare dangerous name aborts generation, per spec.md §4.5's "the generator
// asks the safe-attribute registry. If rejected, codegen aborts."
func (g *generator) checkAttrAllowed(a *ast.Attr) error {
	rejected := registry.IsDangerousName(a.Name)
	if id, ok := a.Target.(*ast.Identifier); ok {
		if class, known := g.knownClasses[id.Name]; known {
			rejected = !g.opts.Reg.IsSafe(class, a.Name)
		}
	}
	if rejected {
		issue := analyzer.Issue{
			Severity: analyzer.Critical,
			Category: analyzer.CategoryReflectionAbuse,
			Message:  fmt.Sprintf("attribute access %q is not permitted by the safe-attribute registry", a.Name),
			CWE:      "CWE-470",
			Span:     spanPtr(a.Span()),
		}
		return &abortError{issue: issue}
	}
	return nil
}
