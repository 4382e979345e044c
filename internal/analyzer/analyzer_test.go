package analyzer

import (
	"testing"

	"github.com/duns-scotus/mlpy/internal/ast"
	"github.com/duns-scotus/mlpy/internal/registry"
)

func span(line int) ast.Span {
	return ast.Span{Line: line, Column: 1, EndLine: line, EndColumn: 10}
}

func ident(name string, line int) *ast.Identifier {
	return &ast.Identifier{SpanV: span(line), Name: name}
}

func strLit(s string, line int) *ast.Literal {
	return &ast.Literal{SpanV: span(line), Kind: ast.StringLit, Str: s}
}

func TestPhaseADetectsLiteralEvalCall(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.ExprStmt{SpanV: span(1), E: &ast.Call{SpanV: span(1), Callee: ident("eval", 1), Args: []ast.Expr{strLit("1+1", 1)}}},
	}}
	issues := runPhaseA(prog)
	if len(issues) != 1 || issues[0].Category != CategoryCodeInjection {
		t.Fatalf("expected one code_injection issue, got %+v", issues)
	}
	if issues[0].Severity != Critical {
		t.Errorf("expected critical severity, got %v", issues[0].Severity)
	}
}

func TestPhaseAFlagsCredentialLikeAssignment(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.Assign{SpanV: span(1), Target: ident("apiToken", 1), Value: strLit("sk-abcdef", 1)},
	}}
	issues := runPhaseA(prog)
	if len(issues) != 1 || issues[0].Category != CategoryCredential {
		t.Fatalf("expected one hardcoded_credential issue, got %+v", issues)
	}
}

func TestPhaseARejectsPartialMatchOnLegitimateCode(t *testing.T) {
	// A plain string concatenation that never mentions eval/exec, and a
	// credential-shaped name assigned a non-literal value, must not fire
	// — spec.md's zero-false-positive discipline.
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.Assign{SpanV: span(1), Target: ident("greeting", 1), Value: &ast.BinOp{SpanV: span(1), Op: "+", L: strLit("hello ", 1), R: ident("name", 1)}},
		&ast.Assign{SpanV: span(2), Target: ident("token", 2), Value: ident("fetchedToken", 2)},
	}}
	issues := runPhaseA(prog)
	if len(issues) != 0 {
		t.Fatalf("expected zero issues on legitimate code, got %+v", issues)
	}
}

func TestPhaseBDefersToRegisteredClassWhitelist(t *testing.T) {
	reg := registry.New()
	reg.MustRegisterClass("class:Regex", map[string]registry.Entry{
		"compile": {Kind: registry.Method},
	})
	opts := Options{Reg: reg, KnownClasses: map[string]string{"re": "class:Regex"}}

	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.ExprStmt{SpanV: span(1), E: &ast.Attr{SpanV: span(1), Target: ident("re", 1), Name: "compile"}},
	}}
	issues := runPhaseB(prog, opts)
	if len(issues) != 0 {
		t.Fatalf("expected registered-class whitelist to permit compile, got %+v", issues)
	}
}

func TestPhaseBFallsThroughToDangerousNamesOnUnregisteredClassAttr(t *testing.T) {
	reg := registry.New()
	reg.MustRegisterClass("class:Regex", map[string]registry.Entry{
		"compile": {Kind: registry.Method},
	})
	opts := Options{Reg: reg, KnownClasses: map[string]string{"re": "class:Regex"}}

	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.ExprStmt{SpanV: span(1), E: &ast.Attr{SpanV: span(1), Target: ident("re", 1), Name: "__class__"}},
	}}
	issues := runPhaseB(prog, opts)
	if len(issues) != 1 {
		t.Fatalf("expected dangerous-name fallthrough to fire, got %+v", issues)
	}
}

func TestPhaseBFlagsBareDangerousCall(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.ExprStmt{SpanV: span(1), E: &ast.Call{SpanV: span(1), Callee: ident("exec", 1)}},
	}}
	issues := runPhaseB(prog, Options{})
	if len(issues) != 1 || issues[0].Category != CategoryCodeInjection {
		t.Fatalf("expected one code_injection issue, got %+v", issues)
	}
}

func TestPhaseCTracksParameterTaintToSink(t *testing.T) {
	// function handle(userInput) { system(userInput); }
	fn := &ast.FunctionDecl{
		SpanV:  span(1),
		Name:   "handle",
		Params: []string{"userInput"},
		Body: []ast.Stmt{
			&ast.ExprStmt{SpanV: span(2), E: &ast.Call{SpanV: span(2), Callee: ident("system", 2), Args: []ast.Expr{ident("userInput", 2)}}},
		},
	}
	prog := &ast.Program{Statements: []ast.Stmt{fn}}

	issues, err := runPhaseC(prog, Options{})
	if err != nil {
		t.Fatalf("runPhaseC: %v", err)
	}
	if len(issues) != 1 || issues[0].Category != CategoryTaintedFlow {
		t.Fatalf("expected one tainted_flow issue, got %+v", issues)
	}
	if issues[0].Context["variable"] != "userInput" {
		t.Errorf("expected flagged variable userInput, got %v", issues[0].Context["variable"])
	}
}

func TestPhaseCDoesNotFlagUntaintedSinkArgument(t *testing.T) {
	fn := &ast.FunctionDecl{
		SpanV:  span(1),
		Name:   "handle",
		Params: nil,
		Body: []ast.Stmt{
			&ast.Assign{SpanV: span(2), Target: ident("path", 2), Value: strLit("/etc/config", 2)},
			&ast.ExprStmt{SpanV: span(3), E: &ast.Call{SpanV: span(3), Callee: ident("open", 3), Args: []ast.Expr{ident("path", 3)}}},
		},
	}
	prog := &ast.Program{Statements: []ast.Stmt{fn}}

	issues, err := runPhaseC(prog, Options{})
	if err != nil {
		t.Fatalf("runPhaseC: %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("expected zero tainted_flow issues on a constant path, got %+v", issues)
	}
}

func TestRunOrdersPhasesAndAggregatesIssues(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.ExprStmt{SpanV: span(1), E: &ast.Call{SpanV: span(1), Callee: ident("eval", 1)}},
	}}
	result, err := Run(prog, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Issues) == 0 || !result.Blocking {
		t.Fatalf("expected at least one blocking issue, got %+v", result)
	}
}
