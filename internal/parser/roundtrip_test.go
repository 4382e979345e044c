package parser

import (
	"testing"

	"github.com/duns-scotus/mlpy/internal/ast"
)

// Render-normalized equality: parse(Render(parse(P))) must render the
// same text Render(parse(P)) did. This is the round-trip property modulo
// formatting, without comparing span-laden trees node by node.
func TestParseRenderRoundTrip(t *testing.T) {
	programs := []string{
		`a = 1; b = a + 2;`,
		"function f(x, y) { return x * y; }\nz = f(2, 3);",
		`arr = [10, 20, 30, 40, 50]; s = arr[-1::-1]; h = arr[:3];`,
		`if (a > 1) { b = 1; } elif (a < 0) { b = 2; } else { b = 3; }`,
		"for (v in items) { total = total + v; }\nfor (i = 0; i < 10; i = i + 1) { continue; }",
		`try { risky(); } except e { last = e; } finally { done = true; }`,
		"import \"stdlib/regex\" as re;\nm = re.compile(\"a+\");",
		`capability C { resource "a/*"; allow read, write; x = 1; }`,
		`obj = {"k": 1, "n": null}; t = obj.k ? "yes" : "no";`,
		`f = function(n) { return -n; }; spread = [...rest, 1];`,
	}
	for _, src := range programs {
		first, err := Parse(src, "round.ml")
		if err != nil {
			t.Fatalf("parse %q: %v", src, err)
		}
		rendered := ast.Render(first)
		second, err := Parse(rendered, "round.ml")
		if err != nil {
			t.Fatalf("re-parse of rendered source failed:\n%s\nerror: %v", rendered, err)
		}
		if got := ast.Render(second); got != rendered {
			t.Errorf("round trip unstable for %q:\nfirst:\n%s\nsecond:\n%s", src, rendered, got)
		}
	}
}
