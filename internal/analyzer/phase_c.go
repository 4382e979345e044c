package analyzer

import (
	"fmt"
	"strings"

	"github.com/duns-scotus/mlpy/internal/ast"
	mangleengine "github.com/duns-scotus/mlpy/internal/mangle"
	"github.com/duns-scotus/mlpy/internal/registry"
)

// taintSchema declares the base facts Phase C feeds in and the two rule
// families the Mangle engine evaluates over them: `tainted/1`, the
// transitive source-to-variable closure, and `tainted_flow/2`, the
// variables that reach a registered security-sensitive sink while
// tainted. Writing this as a Mangle program rather than a hand-rolled
// Go fixed-point loop is what makes the "coarse intraprocedural flow"
// spec.md §4.3 asks for actually a fixed point over control flow
// (reassignment inside a loop body closes correctly) instead of a
// single linear pass that would miss loop-carried taint.
const taintSchema = `
Decl param(Var).
Decl bridge_tainted(Var).
Decl assign(To, From).
Decl call_arg(Call, Var).
Decl sink_call(Call).
Decl tainted(Var).
Decl tainted_flow(Var, Call).

tainted(X) :- param(X).
tainted(X) :- bridge_tainted(X).
tainted(X) :- assign(X, Y), tainted(Y).

tainted_flow(Var, Call) :- sink_call(Call), call_arg(Call, Var), tainted(Var).
`

// runPhaseC builds the taint facts for program, evaluates them through a
// fresh Mangle engine instance, and turns every derived tainted_flow fact
// into a high-severity Issue.
func runPhaseC(program *ast.Program, opts Options) ([]Issue, error) {
	eng, err := mangleengine.NewEngine(mangleengine.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("analyzer: taint engine init: %w", err)
	}
	defer eng.Close()
	if err := eng.LoadSchemaString(taintSchema); err != nil {
		return nil, fmt.Errorf("analyzer: taint schema: %w", err)
	}

	c := &taintCollector{opts: opts, sinkSpans: make(map[string]ast.Span)}
	c.collectProgram(program)

	if len(c.facts) > 0 {
		if err := eng.AddFacts(c.facts); err != nil {
			return nil, fmt.Errorf("analyzer: taint facts: %w", err)
		}
	}

	flows, err := eng.GetFacts("tainted_flow")
	if err != nil {
		// No facts derived is not an error condition for an otherwise
		// clean program; GetFacts only fails on an undeclared predicate,
		// which cannot happen since taintSchema always declares it.
		return nil, fmt.Errorf("analyzer: tainted_flow query: %w", err)
	}

	var issues []Issue
	for _, f := range flows {
		if len(f.Args) != 2 {
			continue
		}
		varName, _ := f.Args[0].(string)
		varName = strings.TrimPrefix(varName, "/")
		callID, _ := f.Args[1].(string)
		callID = strings.TrimPrefix(callID, "/")
		span := c.sinkSpans[callID]
		path := c.propagationPath(varName)
		issues = append(issues, Issue{
			Severity: High,
			Category: CategoryTaintedFlow,
			Message:  fmt.Sprintf("tainted value %q reaches a security-sensitive sink", varName),
			CWE:      "CWE-20",
			Span:     &span,
			Context:  map[string]interface{}{"path": path, "variable": varName},
		})
	}
	return issues, nil
}

// taintCollector walks the AST once, accumulating Mangle facts plus enough
// side information (sink call spans, an assign-edge adjacency list) to
// render a human-readable propagation path once Mangle tells us which
// variable reached which sink.
type taintCollector struct {
	opts      Options
	facts     []mangleengine.Fact
	sinkSpans map[string]ast.Span
	// edges records every assign(To, From)-style fact in Go for path
	// reconstruction; Mangle itself only returns the final tainted_flow
	// pairs, not the chain that derived them.
	edges map[string]string
}

func (c *taintCollector) addEdge(to, from string) {
	if c.edges == nil {
		c.edges = make(map[string]string)
	}
	if _, exists := c.edges[to]; !exists {
		c.edges[to] = from
	}
	c.facts = append(c.facts, mangleengine.Fact{Predicate: "assign", Args: []interface{}{to, from}})
}

// propagationPath walks the recorded assign edges backward from varName to
// its ultimate source, for the context.path spec.md §4.3 requires.
func (c *taintCollector) propagationPath(varName string) []string {
	path := []string{varName}
	seen := map[string]bool{varName: true}
	cur := varName
	for {
		from, ok := c.edges[cur]
		if !ok || seen[from] {
			break
		}
		path = append(path, from)
		seen[from] = true
		cur = from
	}
	return path
}

func (c *taintCollector) collectProgram(p *ast.Program) {
	// Top-level statements form one implicit scope; every FunctionDecl
	// found anywhere also contributes its own parameter taint facts.
	c.collectBlock(p.Statements)
}

func (c *taintCollector) collectBlock(stmts []ast.Stmt) {
	for _, s := range stmts {
		c.collectStmt(s)
	}
}

func (c *taintCollector) collectStmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.FunctionDecl:
		for _, p := range n.Params {
			c.facts = append(c.facts, mangleengine.Fact{Predicate: "param", Args: []interface{}{p}})
		}
		c.collectBlock(n.Body)
	case *ast.Assign:
		c.collectAssign(n)
	case *ast.If:
		c.collectBlock(n.Then)
		for _, ei := range n.Elifs {
			c.collectBlock(ei.Body)
		}
		c.collectBlock(n.Else)
	case *ast.While:
		c.collectBlock(n.Body)
	case *ast.ForIn:
		for _, src := range c.sources(n.Iter) {
			c.addEdge(n.Var, src)
		}
		c.collectBlock(n.Body)
	case *ast.ForC:
		if n.Init != nil {
			c.collectStmt(n.Init)
		}
		if n.Step != nil {
			c.collectStmt(n.Step)
		}
		c.collectBlock(n.Body)
	case *ast.TryExcept:
		c.collectBlock(n.Body)
		for _, h := range n.Handlers {
			c.collectBlock(h.Body)
		}
		c.collectBlock(n.Finally)
	case *ast.ExprStmt:
		c.collectExprForSinks(n.E)
	case *ast.CapabilityDecl:
		c.collectBlock(n.Body)
	}
}

func (c *taintCollector) collectAssign(a *ast.Assign) {
	id, ok := a.Target.(*ast.Identifier)
	if !ok {
		// Index/Attr targets don't introduce a new tracked variable name;
		// the coarse model only tracks plain identifier bindings.
		c.collectExprForSinks(a.Value)
		return
	}
	if call, isCall := a.Value.(*ast.Call); isCall && c.isBridgeSource(call) {
		c.facts = append(c.facts, mangleengine.Fact{Predicate: "bridge_tainted", Args: []interface{}{id.Name}})
	}
	for _, src := range c.sources(a.Value) {
		c.addEdge(id.Name, src)
	}
	c.collectExprForSinks(a.Value)
}

// sources returns the variable names whose taint would propagate into e's
// value, recursing only through the channels spec.md §4.3 lists:
// assignment (the identifier itself), BinOp(+), array/object construction,
// and a call's arguments (its return is conservatively as tainted as any
// one of its arguments).
func (c *taintCollector) sources(e ast.Expr) []string {
	switch n := e.(type) {
	case *ast.Identifier:
		return []string{n.Name}
	case *ast.BinOp:
		if n.Op != "+" {
			return nil
		}
		return append(c.sources(n.L), c.sources(n.R)...)
	case *ast.Array:
		var out []string
		for _, item := range n.Items {
			out = append(out, c.sources(item)...)
		}
		return out
	case *ast.Object:
		var out []string
		for _, p := range n.Pairs {
			out = append(out, c.sources(p.Value)...)
		}
		return out
	case *ast.Call:
		var out []string
		for _, arg := range n.Args {
			out = append(out, c.sources(arg)...)
		}
		return out
	default:
		return nil
	}
}

// isBridgeSource reports whether call is a direct `input(...)` builtin
// call or a call through a known registered bridge class whose registry
// entry is not marked Sanitizing — the Open-Question-1 resolution that
// taint propagates through every bridge call by default.
func (c *taintCollector) isBridgeSource(call *ast.Call) bool {
	if id, ok := call.Callee.(*ast.Identifier); ok {
		return id.Name == "input"
	}
	attr, ok := call.Callee.(*ast.Attr)
	if !ok || c.opts.Reg == nil || c.opts.KnownClasses == nil {
		return false
	}
	recv, ok := attr.Target.(*ast.Identifier)
	if !ok {
		return false
	}
	class, known := c.opts.KnownClasses[recv.Name]
	if !known {
		return false
	}
	return !c.opts.Reg.IsSanitizing(class, attr.Name)
}

// collectExprForSinks walks e looking for Call nodes whose callee is a
// registered security-sensitive sink, recording a sink_call fact plus one
// call_arg fact per identifier argument.
func (c *taintCollector) collectExprForSinks(e ast.Expr) {
	call, ok := e.(*ast.Call)
	if !ok {
		return
	}
	for _, arg := range call.Args {
		c.collectExprForSinks(arg)
	}
	if !c.isSink(call) {
		return
	}
	callID := call.SpanV.String()
	c.sinkSpans[callID] = call.SpanV
	c.facts = append(c.facts, mangleengine.Fact{Predicate: "sink_call", Args: []interface{}{callID}})
	for _, arg := range call.Args {
		if id, ok := arg.(*ast.Identifier); ok {
			c.facts = append(c.facts, mangleengine.Fact{Predicate: "call_arg", Args: []interface{}{callID, id.Name}})
		}
	}
}

// isSink reports whether call's static callee is registered as security-
// sensitive: a bare dangerous name (covers file write, shell, code eval
// per the default dangerous-name set), or a bridge method whose registry
// entry requires a write/execute/network/delete capability.
func (c *taintCollector) isSink(call *ast.Call) bool {
	if id, ok := call.Callee.(*ast.Identifier); ok {
		return registry.IsDangerousName(id.Name)
	}
	attr, ok := call.Callee.(*ast.Attr)
	if !ok || c.opts.Reg == nil || c.opts.KnownClasses == nil {
		return false
	}
	recv, ok := attr.Target.(*ast.Identifier)
	if !ok {
		return false
	}
	class, known := c.opts.KnownClasses[recv.Name]
	if !known {
		return false
	}
	for _, cap := range c.opts.Reg.RequiredCapabilities(class, attr.Name) {
		switch cap {
		case "write", "execute", "network", "delete":
			return true
		}
	}
	return false
}
