package analyzer

import "github.com/duns-scotus/mlpy/internal/ast"

// walkStmts visits every statement and expression in program order,
// calling visit once per node before descending into its children. Both
// Phase A and Phase B are single-pass visitors over the same shape, so
// they share this walker rather than each re-implementing tree descent
// (spec.md §4.3: "Analysis is single-pass per phase over the AST").
func walkStmts(stmts []ast.Stmt, visit func(ast.Node)) {
	for _, s := range stmts {
		walkStmt(s, visit)
	}
}

func walkStmt(s ast.Stmt, visit func(ast.Node)) {
	if s == nil {
		return
	}
	visit(s)
	switch n := s.(type) {
	case *ast.Assign:
		walkExpr(n.Target, visit)
		walkExpr(n.Value, visit)
	case *ast.If:
		walkExpr(n.Cond, visit)
		walkStmts(n.Then, visit)
		for _, ei := range n.Elifs {
			walkExpr(ei.Cond, visit)
			walkStmts(ei.Body, visit)
		}
		walkStmts(n.Else, visit)
	case *ast.While:
		walkExpr(n.Cond, visit)
		walkStmts(n.Body, visit)
	case *ast.ForIn:
		walkExpr(n.Iter, visit)
		walkStmts(n.Body, visit)
	case *ast.ForC:
		walkStmt(n.Init, visit)
		walkExpr(n.Cond, visit)
		walkStmt(n.Step, visit)
		walkStmts(n.Body, visit)
	case *ast.Return:
		walkExpr(n.E, visit)
	case *ast.Throw:
		walkExpr(n.E, visit)
	case *ast.TryExcept:
		walkStmts(n.Body, visit)
		for _, h := range n.Handlers {
			walkStmts(h.Body, visit)
		}
		walkStmts(n.Finally, visit)
	case *ast.FunctionDecl:
		walkStmts(n.Body, visit)
	case *ast.CapabilityDecl:
		walkStmts(n.Body, visit)
	case *ast.ExprStmt:
		walkExpr(n.E, visit)
	}
}

func walkExpr(e ast.Expr, visit func(ast.Node)) {
	if e == nil {
		return
	}
	visit(e)
	switch n := e.(type) {
	case *ast.Array:
		for _, item := range n.Items {
			walkExpr(item, visit)
		}
	case *ast.Object:
		for _, p := range n.Pairs {
			walkExpr(p.Value, visit)
		}
	case *ast.Index:
		walkExpr(n.Target, visit)
		walkExpr(n.Key, visit)
	case *ast.Attr:
		walkExpr(n.Target, visit)
	case *ast.Call:
		walkExpr(n.Callee, visit)
		for _, a := range n.Args {
			walkExpr(a, visit)
		}
	case *ast.Lambda:
		walkStmts(n.Body, visit)
	case *ast.BinOp:
		walkExpr(n.L, visit)
		walkExpr(n.R, visit)
	case *ast.UnOp:
		walkExpr(n.E, visit)
	case *ast.Ternary:
		walkExpr(n.Cond, visit)
		walkExpr(n.T, visit)
		walkExpr(n.E, visit)
	case *ast.Slice:
		walkExpr(n.Target, visit)
		walkExpr(n.Start, visit)
		walkExpr(n.Stop, visit)
		walkExpr(n.Step, visit)
	case *ast.Spread:
		walkExpr(n.E, visit)
	}
}
