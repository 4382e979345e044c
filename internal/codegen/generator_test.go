package codegen

import (
	"strings"
	"testing"

	"github.com/duns-scotus/mlpy/internal/analyzer"
	"github.com/duns-scotus/mlpy/internal/ast"
	"github.com/duns-scotus/mlpy/internal/registry"
)

func span(line int) ast.Span {
	return ast.Span{Line: line, Column: 1, EndLine: line, EndColumn: 10}
}

func ident(name string, line int) *ast.Identifier {
	return &ast.Identifier{SpanV: span(line), Name: name}
}

func numLit(n float64, line int) *ast.Literal {
	return &ast.Literal{SpanV: span(line), Kind: ast.NumberLit, Number: n}
}

func strLit(s string, line int) *ast.Literal {
	return &ast.Literal{SpanV: span(line), Kind: ast.StringLit, Str: s}
}

func baseOpts() Options {
	return Options{MLFile: "program.ml", Reg: registry.New()}
}

func TestGenerateSimpleArithmeticAssignment(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.Assign{SpanV: span(1), Target: ident("x", 1), Value: &ast.BinOp{SpanV: span(1), Op: "+", L: numLit(1, 1), R: numLit(2, 1)}},
		&ast.Return{SpanV: span(2), E: ident("x", 2)},
	}}
	res, err := Generate(prog, baseOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Issues) != 0 {
		t.Fatalf("expected no issues, got %+v", res.Issues)
	}
	if !strings.Contains(res.Code, "var x interface{}") {
		t.Errorf("expected hoisted declaration for x, got:\n%s", res.Code)
	}
	if !strings.Contains(res.Code, "mlrt.Add(") {
		t.Errorf("expected mlrt.Add call, got:\n%s", res.Code)
	}
	if !strings.Contains(res.Code, "panic(&mlrt.ReturnSignal{Value: x})") {
		t.Errorf("expected a return lowered to a ReturnSignal panic, got:\n%s", res.Code)
	}
	if res.Map == nil || len(res.Map.Entries) == 0 {
		t.Errorf("expected a populated source map")
	}
}

func TestGenerateIfElifElse(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.If{
			SpanV: span(1),
			Cond:  ident("a", 1),
			Then:  []ast.Stmt{&ast.ExprStmt{SpanV: span(1), E: numLit(1, 1)}},
			Elifs: []ast.ElseIf{
				{Cond: ident("b", 2), Body: []ast.Stmt{&ast.ExprStmt{SpanV: span(2), E: numLit(2, 2)}}},
			},
			Else: []ast.Stmt{&ast.ExprStmt{SpanV: span(3), E: numLit(3, 3)}},
		},
	}}
	res, err := Generate(prog, baseOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Every opened brace must be closed: count unmatched "{" vs "}" lines
	// that this statement contributes (a cheap but meaningful proxy for
	// the manual brace-closing arithmetic emitIf performs, since the
	// toolchain can't compile-check it here).
	opens := strings.Count(res.Code, "{")
	closes := strings.Count(res.Code, "}")
	if opens != closes {
		t.Fatalf("unbalanced braces: %d opens vs %d closes in:\n%s", opens, closes, res.Code)
	}
	if strings.Count(res.Code, "mlrt.Truthy(") < 2 {
		t.Errorf("expected at least two Truthy checks (if + elif), got:\n%s", res.Code)
	}
}

func TestGenerateCapabilityBlockReleasesGuard(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.CapabilityDecl{
			SpanV:     span(1),
			Name:      "netAccess",
			Resources: []string{"https://*"},
			Ops:       []string{"read"},
			Body:      []ast.Stmt{&ast.Return{SpanV: span(2), E: strLit("ok", 2)}},
		},
	}}
	res, err := Generate(prog, baseOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Code, "func netAccess_context(mgr *capability.Manager, thread *capability.Thread)") {
		t.Errorf("expected a netAccess_context helper, got:\n%s", res.Code)
	}
	if !strings.Contains(res.Code, "mgr.CreateToken(\"netAccess\"") {
		t.Errorf("expected a CreateToken call naming the capability, got:\n%s", res.Code)
	}
	if !strings.Contains(res.Code, ".Release()") {
		t.Errorf("expected a deferred guard release, got:\n%s", res.Code)
	}
	// A return inside the capability block must still panic a
	// ReturnSignal (not a bare Go return), so it tunnels past the guard's
	// IIFE to the real function boundary.
	if !strings.Contains(res.Code, "panic(&mlrt.ReturnSignal{Value:") {
		t.Errorf("expected the block-local return to lower to a ReturnSignal panic, got:\n%s", res.Code)
	}
}

func TestGenerateTryExceptFinallyOrdering(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.TryExcept{
			SpanV: span(1),
			Body:  []ast.Stmt{&ast.Throw{SpanV: span(2), E: strLit("boom", 2)}},
			Handlers: []ast.ExceptHandler{
				{Name: "e", Body: []ast.Stmt{&ast.ExprStmt{SpanV: span(3), E: ident("e", 3)}}},
			},
			Finally: []ast.Stmt{&ast.Assign{SpanV: span(4), Target: ident("cleanupMarker", 4), Value: numLit(0, 4)}},
		},
	}}
	res, err := Generate(prog, baseOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The finally defer must be *registered* before the handler's
	// recover defer (source order), so Go's LIFO defer execution runs
	// the handler first and the finally block after, regardless of
	// whether an exception fired — this is the ordering emitTryExcept
	// deliberately produces.
	finallyIdx := strings.Index(res.Code, "cleanupMarker = float64(0)")
	handlerIdx := strings.Index(res.Code, "mlrt.ExceptionValue(e)")
	throwIdx := strings.Index(res.Code, "panic(mlrt.Throw(")
	if finallyIdx < 0 || handlerIdx < 0 || throwIdx < 0 {
		t.Fatalf("expected all three markers present, got:\n%s", res.Code)
	}
	if !(finallyIdx < handlerIdx && handlerIdx < throwIdx) {
		t.Fatalf("expected finally-defer, then handler-defer, then body in source order, got:\n%s", res.Code)
	}
	if !strings.Contains(res.Code, "if _, ok := r.(*mlrt.ReturnSignal); ok { panic(r) }") {
		t.Errorf("expected the handler to re-panic a ReturnSignal unchanged, got:\n%s", res.Code)
	}
}

func TestGenerateAbortsOnUnsafeAttribute(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.ExprStmt{SpanV: span(1), E: &ast.Attr{SpanV: span(1), Target: ident("obj", 1), Name: "__class__"}},
	}}
	res, err := Generate(prog, baseOpts())
	if err == nil {
		t.Fatalf("expected Generate to abort on an unsafe attribute access")
	}
	if res.Code != "" {
		t.Errorf("expected no partial code on abort, got:\n%s", res.Code)
	}
	if len(res.Issues) != 1 || res.Issues[0].Category != analyzer.CategoryReflectionAbuse {
		t.Fatalf("expected one reflection_abuse issue, got %+v", res.Issues)
	}
	if res.Issues[0].Severity != analyzer.Critical {
		t.Errorf("expected critical severity, got %v", res.Issues[0].Severity)
	}
}

func TestGenerateKnownClassWhitelistOverridesDangerousName(t *testing.T) {
	reg := registry.New()
	reg.MustRegisterClass("class:Regex", map[string]registry.Entry{
		"compile": {Kind: registry.Method},
	})
	opts := baseOpts()
	opts.Reg = reg
	opts.StdlibBridges = map[string]StdlibBridge{
		"stdlib/regex": {GoPackage: "github.com/duns-scotus/mlpy/internal/bridge", ModuleRef: "bridge.RegexInstance", ClassName: "class:Regex"},
	}
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.Import{SpanV: span(1), Path: "stdlib/regex", Alias: "re"},
		&ast.ExprStmt{SpanV: span(2), E: &ast.Call{SpanV: span(2), Callee: &ast.Attr{SpanV: span(2), Target: ident("re", 2), Name: "compile"}, Args: []ast.Expr{strLit("a+", 2)}}},
	}}
	res, err := Generate(prog, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Code, "mlrt.CallMethod(re, \"compile\"") {
		t.Errorf("expected a CallMethod dispatch for re.compile, got:\n%s", res.Code)
	}
}

func TestGenerateRejectsDisallowedImportPrefix(t *testing.T) {
	opts := baseOpts()
	opts.AllowedImportPrefixes = []string{"stdlib/"}
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.Import{SpanV: span(1), Path: "net/http", Alias: "http"},
	}}
	res, err := Generate(prog, opts)
	if err == nil {
		t.Fatalf("expected Generate to abort on a disallowed import path")
	}
	if len(res.Issues) != 1 || res.Issues[0].Category != analyzer.CategoryUnsafeImport {
		t.Fatalf("expected one unsafe_import issue, got %+v", res.Issues)
	}
}

func TestGenerateFunctionDeclAndLambdaShareEmission(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.FunctionDecl{
			SpanV:  span(1),
			Name:   "square",
			Params: []string{"n"},
			Body:   []ast.Stmt{&ast.Return{SpanV: span(2), E: &ast.BinOp{SpanV: span(2), Op: "*", L: ident("n", 2), R: ident("n", 2)}}},
		},
		&ast.Assign{
			SpanV:  span(3),
			Target: ident("double", 3),
			Value: &ast.Lambda{
				SpanV:  span(3),
				Params: []string{"n"},
				Body:   []ast.Stmt{&ast.Return{SpanV: span(3), E: &ast.BinOp{SpanV: span(3), Op: "*", L: ident("n", 3), R: numLit(2, 3)}}},
			},
		},
	}}
	res, err := Generate(prog, baseOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Code, "square = &mlrt.Function{Name: \"square\", Call: func(args []interface{}) (result interface{}, err error) {") {
		t.Errorf("expected square's declaration to bind an mlrt.Function value, got:\n%s", res.Code)
	}
	if !strings.Contains(res.Code, "&mlrt.Function{Call: func(args []interface{}) (result interface{}, err error) {") {
		t.Errorf("expected the lambda to share the same function-literal emission, got:\n%s", res.Code)
	}
	if !strings.Contains(res.Code, "if len(args) > 0 { n = args[0] }") {
		t.Errorf("expected positional parameter binding for n, got:\n%s", res.Code)
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.CapabilityDecl{SpanV: span(1), Name: "b", Resources: []string{"*"}, Ops: []string{"read"}, Body: []ast.Stmt{&ast.ExprStmt{SpanV: span(1), E: numLit(1, 1)}}},
		&ast.CapabilityDecl{SpanV: span(2), Name: "a", Resources: []string{"*"}, Ops: []string{"read"}, Body: []ast.Stmt{&ast.ExprStmt{SpanV: span(2), E: numLit(2, 2)}}},
	}}
	res1, err := Generate(prog, baseOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res2, err := Generate(prog, baseOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res1.Code != res2.Code {
		t.Fatalf("expected deterministic generation, got two different outputs")
	}
	if strings.Index(res1.Code, "func a_context") > strings.Index(res1.Code, "func b_context") {
		t.Errorf("expected capability helpers sorted by name (a before b), got:\n%s", res1.Code)
	}
}

func TestGenerateForInAndWhile(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.ForIn{SpanV: span(1), Var: "v", Iter: ident("items", 1), Body: []ast.Stmt{&ast.ExprStmt{SpanV: span(1), E: ident("v", 1)}}},
		&ast.While{SpanV: span(2), Cond: ident("cond", 2), Body: []ast.Stmt{&ast.Break{SpanV: span(2)}}},
	}}
	res, err := Generate(prog, baseOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Code, "mlrt.Iterable(items)") {
		t.Errorf("expected a ForIn to normalize via mlrt.Iterable, got:\n%s", res.Code)
	}
	if !strings.Contains(res.Code, "if !mlrt.Truthy(cond) { break }") {
		t.Errorf("expected a While loop's exit check, got:\n%s", res.Code)
	}
}
