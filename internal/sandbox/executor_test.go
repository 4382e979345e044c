package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/goleak"

	"github.com/duns-scotus/mlpy/internal/analyzer"
	"github.com/duns-scotus/mlpy/internal/ast"
	"github.com/duns-scotus/mlpy/internal/bridge"
	"github.com/duns-scotus/mlpy/internal/codegen"
	"github.com/duns-scotus/mlpy/internal/parser"
	"github.com/duns-scotus/mlpy/internal/registry"
)

// transpile runs the real front half of the pipeline — parse, analyze
// (must not block), generate — so every executor test exercises the same
// code a CLI run would, not hand-written generated source.
func transpile(t *testing.T, src string) string {
	t.Helper()
	prog, err := parser.Parse(src, "test.ml")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	reg := registry.New()
	registry.RegisterDefaults(reg)
	bridge.RegisterAll(reg)

	known := map[string]string{}
	for _, s := range prog.Statements {
		if imp, ok := s.(*ast.Import); ok && imp.Alias != "" {
			if mod, recognized := bridge.StdlibPaths[imp.Path]; recognized {
				known[imp.Alias] = mod.ClassName()
			}
		}
	}

	res, err := analyzer.Run(prog, analyzer.Options{
		StdlibMode:            "native",
		AllowedImportPrefixes: []string{"stdlib/"},
		Reg:                   reg,
		KnownClasses:          known,
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.Blocking {
		t.Fatalf("analysis blocked a benign test program: %+v", res.Issues)
	}

	gen, err := codegen.Generate(prog, codegen.Options{
		MLFile:                "test.ml",
		Reg:                   reg,
		StdlibBridges:         codegen.DefaultStdlibBridges(),
		AllowedImportPrefixes: []string{"stdlib/"},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return gen.Code
}

// The six slicing conformance scenarios, end to end: parse → analyze →
// generate → sandbox execute → exact equality on the returned array.
func TestRunSliceConformance(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cases := []struct {
		expr string
		want []interface{}
	}{
		{"arr[1:4]", []interface{}{20.0, 30.0, 40.0}},
		{"arr[:3]", []interface{}{10.0, 20.0, 30.0}},
		{"arr[-1:]", []interface{}{50.0}},
		{"arr[::-1]", []interface{}{50.0, 40.0, 30.0, 20.0, 10.0}},
		{"arr[3:1]", []interface{}{}},
		{"arr[-1::-1]", []interface{}{50.0, 40.0, 30.0, 20.0, 10.0}},
	}

	ex := NewExecutor()
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			src := "arr = [10, 20, 30, 40, 50];\nreturn " + tc.expr + ";\n"
			res := ex.Run(transpile(t, src), Options{})
			if res.Status != StatusOK {
				t.Fatalf("status = %s, stderr: %s", res.Status, res.Stderr)
			}
			if diff := cmp.Diff(tc.want, res.ReturnValue, cmpopts.EquateEmpty()); diff != "" {
				t.Fatalf("wrong slice result (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunArithmeticAndControlFlow(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	src := `
function fib(n) {
	if (n < 2) {
		return n;
	}
	return fib(n - 1) + fib(n - 2);
}
total = 0;
for (v in [1, 2, 3]) {
	total = total + v;
}
return fib(10) + total;
`
	ex := NewExecutor()
	res := ex.Run(transpile(t, src), Options{})
	if res.Status != StatusOK {
		t.Fatalf("status = %s, stderr: %s", res.Status, res.Stderr)
	}
	if v, ok := res.ReturnValue.(float64); !ok || v != 61 {
		t.Fatalf("fib(10)+6 = %#v, want 61", res.ReturnValue)
	}
}

func TestRunNumberStringCoercion(t *testing.T) {
	ex := NewExecutor()
	res := ex.Run(transpile(t, `return 1 + "x";`), Options{})
	if res.Status != StatusOK {
		t.Fatalf("status = %s, stderr: %s", res.Status, res.Stderr)
	}
	if res.ReturnValue != "1x" {
		t.Fatalf("coercion result = %#v, want \"1x\"", res.ReturnValue)
	}
}

func TestRunUncaughtThrowIsError(t *testing.T) {
	ex := NewExecutor()
	res := ex.Run(transpile(t, `throw "boom";`), Options{})
	if res.Status != StatusError {
		t.Fatalf("status = %s, want error", res.Status)
	}
	if !strings.Contains(res.Stderr, "boom") {
		t.Errorf("stderr should carry the thrown value, got %q", res.Stderr)
	}
}

func TestRunCapabilityDeniedWithoutContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.txt")
	if err := os.WriteFile(path, []byte("secret"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	src := fmt.Sprintf(`
import "stdlib/fs" as fs;
f = fs.open(%q, "r");
return f.read();
`, path)
	ex := NewExecutor()
	res := ex.Run(transpile(t, src), Options{})
	if res.Status != StatusSecurityViolation {
		t.Fatalf("status = %s, want security_violation (stderr: %s)", res.Status, res.Stderr)
	}
}

func TestRunSelfGrantedCapabilityBlock(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	path := filepath.Join(dir, "data.txt")
	if err := os.WriteFile(path, []byte("hello capability"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	src := fmt.Sprintf(`
import "stdlib/fs" as fs;
content = "";
capability FileRead {
	resource %q;
	allow read;
	f = fs.open(%q, "r");
	content = f.read();
	f.close();
}
return content;
`, dir+"/**", path)
	ex := NewExecutor()
	res := ex.Run(transpile(t, src), Options{})
	if res.Status != StatusOK {
		t.Fatalf("status = %s, stderr: %s", res.Status, res.Stderr)
	}
	if res.ReturnValue != "hello capability" {
		t.Fatalf("read %#v, want the fixture contents", res.ReturnValue)
	}
}

func TestRunExternallyGrantedTokens(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	path := filepath.Join(dir, "granted.txt")
	if err := os.WriteFile(path, []byte("from parent"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	// Round-trip through the wire format, the way a parent process would
	// hand grants to a child.
	wire := fmt.Sprintf(`[{"type": "file", "patterns": [%q], "ops": ["read"], "description": "parent grant"}]`, dir+"/**")
	tokens, err := DecodeTokenSpecs([]byte(wire))
	if err != nil {
		t.Fatalf("decode token specs: %v", err)
	}

	src := fmt.Sprintf(`
import "stdlib/fs" as fs;
f = fs.open(%q, "r");
return f.read();
`, path)
	ex := NewExecutor()
	res := ex.Run(transpile(t, src), Options{ExternalTokens: tokens})
	if res.Status != StatusOK {
		t.Fatalf("status = %s, stderr: %s", res.Status, res.Stderr)
	}
	if res.ReturnValue != "from parent" {
		t.Fatalf("read %#v, want the fixture contents", res.ReturnValue)
	}
}

// A run that blows past its CPU budget must come back as a timeout, with
// the reported duration at least the budget. The interpreter goroutine
// itself cannot be preempted (documented in Run), so this test does not
// assert goroutine hygiene.
func TestRunTimeout(t *testing.T) {
	src := `
i = 0;
while (i < 2000000) {
	i = i + 1;
}
return i;
`
	ex := NewExecutor()
	res := ex.Run(transpile(t, src), Options{CPUTimeout: 50 * time.Millisecond})
	if res.Status != StatusTimeout {
		t.Fatalf("status = %s, want timeout", res.Status)
	}
	if res.DurationMs < 50 {
		t.Errorf("duration_ms = %d, want >= the 50ms budget", res.DurationMs)
	}
}

func TestRunMemoryExceeded(t *testing.T) {
	src := `
chunk = "0123456789abcdef";
j = 0;
while (j < 12) {
	chunk = chunk + chunk;
	j = j + 1;
}
s = "";
i = 0;
while (i < 200) {
	s = s + chunk;
	i = i + 1;
}
return 0;
`
	ex := NewExecutor()
	res := ex.Run(transpile(t, src), Options{MemoryLimitBytes: 1 << 20})
	if res.Status != StatusMemoryExceeded {
		t.Fatalf("status = %s, want memory_exceeded", res.Status)
	}
	if res.PeakMemoryBytes <= 1<<20 {
		t.Errorf("peak = %d, should exceed the 1 MiB limit", res.PeakMemoryBytes)
	}
}

func TestTokenSpecRoundTrip(t *testing.T) {
	wire := `[{"type": "file", "patterns": ["a/*", "b/**"], "ops": ["read", "write"], "description": "grant"}]`
	tokens, err := DecodeTokenSpecs([]byte(wire))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tokens) != 1 {
		t.Fatalf("expected one token, got %d", len(tokens))
	}
	if !tokens[0].Allows("read", "a/x") || !tokens[0].Allows("write", "b/c/d") {
		t.Error("decoded token should allow the granted ops")
	}
	if tokens[0].Allows("execute", "a/x") {
		t.Error("decoded token must not allow ungranted ops")
	}

	encoded, err := EncodeTokenSpecs(tokens)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	again, err := DecodeTokenSpecs(encoded)
	if err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	if diff := cmp.Diff(tokens[0].ResourcePatterns, again[0].ResourcePatterns); diff != "" {
		t.Errorf("patterns did not round-trip:\n%s", diff)
	}
}

func TestDecodeTokenSpecsRejectsEmptyGrants(t *testing.T) {
	if _, err := DecodeTokenSpecs([]byte(`[{"type": "", "ops": ["read"]}]`)); err == nil {
		t.Error("a typeless spec must be rejected")
	}
	if _, err := DecodeTokenSpecs([]byte(`[{"type": "file", "ops": []}]`)); err == nil {
		t.Error("an op-less spec must be rejected")
	}
}
