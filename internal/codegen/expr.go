package codegen

import (
	"fmt"
	"strconv"

	"github.com/duns-scotus/mlpy/internal/ast"
)

// emitExpr lowers e to a sequence of Go statements (for any fallible
// sub-operation) followed by a single Go expression fragment — almost
// always just a variable name — the caller can drop in place. Splitting
// every fallible step into its own checked statement, rather than nesting
// Go expressions, is what lets a single uniform `if err != nil { panic(err)
// }` (or, for Attr/Call, the registry precheck) cover every operator and
// call site without bespoke error plumbing per node kind.
func (g *generator) emitExpr(e ast.Expr) (string, error) {
	switch n := e.(type) {
	case *ast.Literal:
		return g.emitLiteral(n), nil
	case *ast.Identifier:
		return n.Name, nil
	case *ast.Array:
		return g.emitArray(n)
	case *ast.Object:
		return g.emitObject(n)
	case *ast.Index:
		return g.emitIndex(n)
	case *ast.Attr:
		return g.emitAttrRead(n)
	case *ast.Call:
		return g.emitCall(n)
	case *ast.Lambda:
		return g.emitLambda(n)
	case *ast.BinOp:
		return g.emitBinOp(n)
	case *ast.UnOp:
		return g.emitUnOp(n)
	case *ast.Ternary:
		return g.emitTernary(n)
	case *ast.Slice:
		return g.emitSlice(n)
	case *ast.Spread:
		// A bare Spread only makes sense inside an Array/Call argument
		// list, both of which unwrap it themselves before recursing.
		return "", fmt.Errorf("codegen: spread expression outside array/call context")
	default:
		return "", fmt.Errorf("codegen: unhandled expression type %T", e)
	}
}

func (g *generator) emitLiteral(n *ast.Literal) string {
	switch n.Kind {
	case ast.NumberLit:
		return fmt.Sprintf("float64(%s)", strconv.FormatFloat(n.Number, 'g', -1, 64))
	case ast.StringLit:
		return strconv.Quote(n.Str)
	case ast.BoolLit:
		if n.Bool {
			return "true"
		}
		return "false"
	default:
		return "nil"
	}
}

// emitValueList evaluates a (possibly Spread-containing) expression list
// into a fresh []interface{} temp, used for Array literals and Call
// argument lists alike.
func (g *generator) emitValueList(items []ast.Expr, span ast.Span) (string, error) {
	tmp := g.newTemp()
	g.emit(fmt.Sprintf("%s := []interface{}{}", tmp), span)
	for _, item := range items {
		if sp, ok := item.(*ast.Spread); ok {
			v, err := g.emitExpr(sp.E)
			if err != nil {
				return "", err
			}
			arr := g.newTemp()
			ok2 := g.newTemp()
			g.emitRaw(fmt.Sprintf("%s, %s := %s.([]interface{})", arr, ok2, v))
			g.emitRaw(fmt.Sprintf("if !%s { panic(mlrt.NewRuntimeError(\"cannot spread non-array value\")) }", ok2))
			g.emitRaw(fmt.Sprintf("%s = append(%s, %s...)", tmp, tmp, arr))
			continue
		}
		v, err := g.emitExpr(item)
		if err != nil {
			return "", err
		}
		g.emitRaw(fmt.Sprintf("%s = append(%s, %s)", tmp, tmp, v))
	}
	return tmp, nil
}

func (g *generator) emitArray(n *ast.Array) (string, error) {
	return g.emitValueList(n.Items, n.Span())
}

func (g *generator) emitObject(n *ast.Object) (string, error) {
	tmp := g.newTemp()
	g.emit(fmt.Sprintf("%s := map[string]interface{}{}", tmp), n.Span())
	for _, pair := range n.Pairs {
		v, err := g.emitExpr(pair.Value)
		if err != nil {
			return "", err
		}
		g.emitRaw(fmt.Sprintf("%s[%s] = %s", tmp, strconv.Quote(pair.Key), v))
	}
	return tmp, nil
}

func (g *generator) emitIndex(n *ast.Index) (string, error) {
	targetVar, err := g.emitExpr(n.Target)
	if err != nil {
		return "", err
	}
	keyVar, err := g.emitExpr(n.Key)
	if err != nil {
		return "", err
	}
	tmp, errv := g.newTemp(), g.newTemp()
	g.emit(fmt.Sprintf("%s, %s := mlrt.Index(%s, %s)", tmp, errv, targetVar, keyVar), n.Span())
	g.checkErr(errv)
	return tmp, nil
}

func (g *generator) emitAttrRead(n *ast.Attr) (string, error) {
	if err := g.checkAttrAllowed(n); err != nil {
		return "", err
	}
	targetVar, err := g.emitExpr(n.Target)
	if err != nil {
		return "", err
	}
	tmp, errv := g.newTemp(), g.newTemp()
	g.emit(fmt.Sprintf("%s, %s := mlrt.Attr(%s, %q, reg)", tmp, errv, targetVar, n.Name), n.Span())
	g.checkErr(errv)
	return tmp, nil
}

func (g *generator) emitCall(n *ast.Call) (string, error) {
	if attr, ok := n.Callee.(*ast.Attr); ok {
		if err := g.checkAttrAllowed(attr); err != nil {
			return "", err
		}
		targetVar, err := g.emitExpr(attr.Target)
		if err != nil {
			return "", err
		}
		argsVar, err := g.emitValueList(n.Args, n.Span())
		if err != nil {
			return "", err
		}
		tmp, errv := g.newTemp(), g.newTemp()
		g.emit(fmt.Sprintf("%s, %s := mlrt.CallMethod(%s, %q, %s, reg)", tmp, errv, targetVar, attr.Name, argsVar), n.Span())
		g.checkErr(errv)
		return tmp, nil
	}
	calleeVar, err := g.emitExpr(n.Callee)
	if err != nil {
		return "", err
	}
	argsVar, err := g.emitValueList(n.Args, n.Span())
	if err != nil {
		return "", err
	}
	tmp, errv := g.newTemp(), g.newTemp()
	g.emit(fmt.Sprintf("%s, %s := mlrt.CallValue(%s, %s)", tmp, errv, calleeVar, argsVar), n.Span())
	g.checkErr(errv)
	return tmp, nil
}

func (g *generator) emitLambda(n *ast.Lambda) (string, error) {
	tmp := g.newTemp()
	g.openBlock(fmt.Sprintf("%s := &mlrt.Function{Call: func(args []interface{}) (result interface{}, err error) {", tmp), n.Span())
	if err := g.emitFunctionLiteralBody(n.Params, n.Body); err != nil {
		return "", err
	}
	g.closeBlock("}}")
	return tmp, nil
}

var binOpRuntimeFunc = map[string]string{
	"-":  "Sub",
	"*":  "Mul",
	"/":  "Div",
	"%":  "Mod",
	"**": "Pow",
	"<":  "Lt",
	">":  "Gt",
	"<=": "Lte",
	">=": "Gte",
}

func (g *generator) emitBinOp(n *ast.BinOp) (string, error) {
	switch n.Op {
	case "&&":
		return g.emitShortCircuit(n, false)
	case "||":
		return g.emitShortCircuit(n, true)
	}
	l, err := g.emitExpr(n.L)
	if err != nil {
		return "", err
	}
	r, err := g.emitExpr(n.R)
	if err != nil {
		return "", err
	}
	switch n.Op {
	case "==":
		tmp := g.newTemp()
		g.emit(fmt.Sprintf("%s := mlrt.Equal(%s, %s)", tmp, l, r), n.Span())
		return tmp, nil
	case "!=":
		tmp := g.newTemp()
		g.emit(fmt.Sprintf("%s := !mlrt.Equal(%s, %s)", tmp, l, r), n.Span())
		return tmp, nil
	case "+":
		tmp, errv := g.newTemp(), g.newTemp()
		strict := "false"
		if g.opts.StrictArith {
			strict = "true"
		}
		g.emit(fmt.Sprintf("%s, %s := mlrt.Add(%s, %s, %s)", tmp, errv, l, r, strict), n.Span())
		g.checkErr(errv)
		return tmp, nil
	}
	fn, ok := binOpRuntimeFunc[n.Op]
	if !ok {
		return "", fmt.Errorf("codegen: unsupported binary operator %q", n.Op)
	}
	tmp, errv := g.newTemp(), g.newTemp()
	g.emit(fmt.Sprintf("%s, %s := mlrt.%s(%s, %s)", tmp, errv, fn, l, r), n.Span())
	g.checkErr(errv)
	return tmp, nil
}

// emitShortCircuit lowers `&&`/`||` preserving the right-hand operand
// value on the taken branch, the common scripting-language reading (not
// specified further by spec.md, decided here and recorded in DESIGN.md):
// `a && b` is `a` if `a` is falsy, else `b`; `a || b` is `a` if truthy,
// else `b`.
func (g *generator) emitShortCircuit(n *ast.BinOp, isOr bool) (string, error) {
	l, err := g.emitExpr(n.L)
	if err != nil {
		return "", err
	}
	tmp := g.newTemp()
	g.emit(fmt.Sprintf("%s := %s", tmp, l), n.Span())
	cond := fmt.Sprintf("mlrt.Truthy(%s)", tmp)
	if isOr {
		cond = "!" + cond
	}
	g.openBlock(fmt.Sprintf("if %s {", cond), ast.Span{})
	r, err := g.emitExpr(n.R)
	if err != nil {
		return "", err
	}
	g.emitRaw(fmt.Sprintf("%s = %s", tmp, r))
	g.closeBlock("}")
	return tmp, nil
}

func (g *generator) emitUnOp(n *ast.UnOp) (string, error) {
	v, err := g.emitExpr(n.E)
	if err != nil {
		return "", err
	}
	switch n.Op {
	case "-":
		tmp, errv := g.newTemp(), g.newTemp()
		g.emit(fmt.Sprintf("%s, %s := mlrt.Neg(%s)", tmp, errv, v), n.Span())
		g.checkErr(errv)
		return tmp, nil
	case "!":
		tmp := g.newTemp()
		g.emit(fmt.Sprintf("%s := mlrt.Not(%s)", tmp, v), n.Span())
		return tmp, nil
	default:
		return "", fmt.Errorf("codegen: unsupported unary operator %q", n.Op)
	}
}

func (g *generator) emitTernary(n *ast.Ternary) (string, error) {
	cond, err := g.emitExpr(n.Cond)
	if err != nil {
		return "", err
	}
	tmp := g.newTemp()
	g.emit(fmt.Sprintf("var %s interface{}", tmp), n.Span())
	g.openBlock(fmt.Sprintf("if mlrt.Truthy(%s) {", cond), ast.Span{})
	t, err := g.emitExpr(n.T)
	if err != nil {
		return "", err
	}
	g.emitRaw(fmt.Sprintf("%s = %s", tmp, t))
	g.closeBlock("} else {")
	g.indent++
	e, err := g.emitExpr(n.E)
	if err != nil {
		return "", err
	}
	g.emitRaw(fmt.Sprintf("%s = %s", tmp, e))
	g.indent--
	g.emitRaw("}")
	return tmp, nil
}

func (g *generator) emitSlice(n *ast.Slice) (string, error) {
	targetVar, err := g.emitExpr(n.Target)
	if err != nil {
		return "", err
	}
	startVar, err := g.emitSliceBound(n.Start)
	if err != nil {
		return "", err
	}
	stopVar, err := g.emitSliceBound(n.Stop)
	if err != nil {
		return "", err
	}
	stepVar, err := g.emitSliceBound(n.Step)
	if err != nil {
		return "", err
	}
	tmp, errv := g.newTemp(), g.newTemp()
	g.emit(fmt.Sprintf("%s, %s := mlrt.Slice(%s, %s, %s, %s)", tmp, errv, targetVar, startVar, stopVar, stepVar), n.Span())
	g.checkErr(errv)
	return tmp, nil
}

// emitSliceBound returns the Go expression for one *int slice bound:
// "nil" when the ML source omitted it (e literally nil at the AST level,
// a static fact, not a runtime one), otherwise a freshly taken address of
// the evaluated, int-truncated bound.
func (g *generator) emitSliceBound(e ast.Expr) (string, error) {
	if e == nil {
		return "nil", nil
	}
	v, err := g.emitExpr(e)
	if err != nil {
		return "", err
	}
	iv := g.newTemp()
	g.emitRaw(fmt.Sprintf("%s := int(interface{}(%s).(float64))", iv, v))
	return "&" + iv, nil
}
