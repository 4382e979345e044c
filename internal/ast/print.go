package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Render prints a Program back to ML source text. It is not meant to
// reproduce the original formatting byte-for-byte, only to satisfy the
// round-trip property: parse(Render(parse(P))) is equivalent to parse(P).
func Render(p *Program) string {
	var b strings.Builder
	for _, s := range p.Statements {
		renderStmt(&b, s, 0)
	}
	return b.String()
}

func indent(b *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteString("    ")
	}
}

func renderBlock(b *strings.Builder, stmts []Stmt, depth int) {
	b.WriteString("{\n")
	for _, s := range stmts {
		renderStmt(b, s, depth+1)
	}
	indent(b, depth)
	b.WriteString("}")
}

func renderStmt(b *strings.Builder, s Stmt, depth int) {
	indent(b, depth)
	switch n := s.(type) {
	case *Assign:
		fmt.Fprintf(b, "%s = %s;\n", renderExpr(n.Target), renderExpr(n.Value))
	case *If:
		fmt.Fprintf(b, "if (%s) ", renderExpr(n.Cond))
		renderBlock(b, n.Then, depth)
		for _, e := range n.Elifs {
			fmt.Fprintf(b, " elif (%s) ", renderExpr(e.Cond))
			renderBlock(b, e.Body, depth)
		}
		if n.Else != nil {
			b.WriteString(" else ")
			renderBlock(b, n.Else, depth)
		}
		b.WriteString("\n")
	case *While:
		fmt.Fprintf(b, "while (%s) ", renderExpr(n.Cond))
		renderBlock(b, n.Body, depth)
		b.WriteString("\n")
	case *ForIn:
		fmt.Fprintf(b, "for (%s in %s) ", n.Var, renderExpr(n.Iter))
		renderBlock(b, n.Body, depth)
		b.WriteString("\n")
	case *ForC:
		init, step := "", ""
		if n.Init != nil {
			init = strings.TrimRight(renderInline(n.Init), ";")
		}
		if n.Step != nil {
			step = strings.TrimRight(renderInline(n.Step), ";")
		}
		cond := ""
		if n.Cond != nil {
			cond = renderExpr(n.Cond)
		}
		fmt.Fprintf(b, "for (%s; %s; %s) ", init, cond, step)
		renderBlock(b, n.Body, depth)
		b.WriteString("\n")
	case *Return:
		if n.E != nil {
			fmt.Fprintf(b, "return %s;\n", renderExpr(n.E))
		} else {
			b.WriteString("return;\n")
		}
	case *Break:
		b.WriteString("break;\n")
	case *Continue:
		b.WriteString("continue;\n")
	case *Throw:
		fmt.Fprintf(b, "throw %s;\n", renderExpr(n.E))
	case *TryExcept:
		b.WriteString("try ")
		renderBlock(b, n.Body, depth)
		for _, h := range n.Handlers {
			if h.Name != "" {
				fmt.Fprintf(b, " except %s ", h.Name)
			} else {
				b.WriteString(" except ")
			}
			renderBlock(b, h.Body, depth)
		}
		if n.Finally != nil {
			b.WriteString(" finally ")
			renderBlock(b, n.Finally, depth)
		}
		b.WriteString("\n")
	case *FunctionDecl:
		fmt.Fprintf(b, "function %s(%s) ", n.Name, strings.Join(n.Params, ", "))
		renderBlock(b, n.Body, depth)
		b.WriteString("\n")
	case *Import:
		if n.Alias != "" {
			fmt.Fprintf(b, "import %q as %s;\n", n.Path, n.Alias)
		} else {
			fmt.Fprintf(b, "import %q;\n", n.Path)
		}
	case *CapabilityDecl:
		fmt.Fprintf(b, "capability %s {\n", n.Name)
		for _, r := range n.Resources {
			indent(b, depth+1)
			fmt.Fprintf(b, "resource %q;\n", r)
		}
		indent(b, depth+1)
		fmt.Fprintf(b, "allow %s;\n", strings.Join(n.Ops, ", "))
		for _, s2 := range n.Body {
			renderStmt(b, s2, depth+1)
		}
		indent(b, depth)
		b.WriteString("}\n")
	case *ExprStmt:
		fmt.Fprintf(b, "%s;\n", renderExpr(n.E))
	default:
		fmt.Fprintf(b, "/* unknown stmt %T */\n", n)
	}
}

// renderInline renders a single statement without its trailing newline, for
// embedding inside a ForC header.
func renderInline(s Stmt) string {
	var b strings.Builder
	switch n := s.(type) {
	case *Assign:
		fmt.Fprintf(&b, "%s = %s;", renderExpr(n.Target), renderExpr(n.Value))
	case *ExprStmt:
		fmt.Fprintf(&b, "%s;", renderExpr(n.E))
	default:
		renderStmt(&b, s, 0)
	}
	return b.String()
}

func renderExpr(e Expr) string {
	switch n := e.(type) {
	case *Literal:
		switch n.Kind {
		case NumberLit:
			return strconv.FormatFloat(n.Number, 'g', -1, 64)
		case StringLit:
			return strconv.Quote(n.Str)
		case BoolLit:
			if n.Bool {
				return "true"
			}
			return "false"
		case NullLit:
			return "null"
		}
		return "null"
	case *Identifier:
		return n.Name
	case *Array:
		parts := make([]string, len(n.Items))
		for i, it := range n.Items {
			parts[i] = renderExpr(it)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Object:
		parts := make([]string, len(n.Pairs))
		for i, p := range n.Pairs {
			parts[i] = fmt.Sprintf("%q: %s", p.Key, renderExpr(p.Value))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *Index:
		return fmt.Sprintf("%s[%s]", renderExpr(n.Target), renderExpr(n.Key))
	case *Attr:
		return fmt.Sprintf("%s.%s", renderExpr(n.Target), n.Name)
	case *Call:
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			args[i] = renderExpr(a)
		}
		return fmt.Sprintf("%s(%s)", renderExpr(n.Callee), strings.Join(args, ", "))
	case *Lambda:
		var b strings.Builder
		fmt.Fprintf(&b, "function(%s) ", strings.Join(n.Params, ", "))
		renderBlock(&b, n.Body, 0)
		return b.String()
	case *BinOp:
		return fmt.Sprintf("(%s %s %s)", renderExpr(n.L), n.Op, renderExpr(n.R))
	case *UnOp:
		return fmt.Sprintf("(%s%s)", n.Op, renderExpr(n.E))
	case *Ternary:
		return fmt.Sprintf("(%s ? %s : %s)", renderExpr(n.Cond), renderExpr(n.T), renderExpr(n.E))
	case *Slice:
		start, stop, step := "", "", ""
		if n.Start != nil {
			start = renderExpr(n.Start)
		}
		if n.Stop != nil {
			stop = renderExpr(n.Stop)
		}
		if n.Step != nil {
			step = ":" + renderExpr(n.Step)
		}
		return fmt.Sprintf("%s[%s:%s%s]", renderExpr(n.Target), start, stop, step)
	case *Spread:
		return "..." + renderExpr(n.E)
	default:
		return fmt.Sprintf("/* unknown expr %T */", n)
	}
}
