package diagnostics

import (
	"strings"
	"testing"

	"github.com/duns-scotus/mlpy/internal/ast"
)

func TestFormatTextIncludesSourceContext(t *testing.T) {
	src := "x = 1\neval(x)\ny = 2\n"
	span := &ast.Span{Line: 2, Column: 1, EndLine: 2, EndColumn: 8}
	d := New(KindSecurity, SubCodeInjection, span, "call to eval is forbidden").
		WithExplanation("eval executes arbitrary host code").
		WithSuggestions("remove the eval call").
		WithCWE("CWE-94")

	out := FormatText(d, src)
	for _, want := range []string{"eval(x)", "eval executes arbitrary", "suggestion 1", "CWE-94"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatText output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatJSONRoundTripsFields(t *testing.T) {
	span := &ast.Span{Line: 1, Column: 1, EndLine: 1, EndColumn: 5}
	d := New(KindSyntax, "", span, "unexpected token")
	data, err := FormatJSON(d)
	if err != nil {
		t.Fatalf("FormatJSON: %v", err)
	}
	if !strings.Contains(string(data), `"kind": "syntax"`) {
		t.Errorf("FormatJSON missing kind field: %s", data)
	}
}

func TestSanitizeRedactsCredentialLooking(t *testing.T) {
	in := `failed request with token=sk-abcdef123456 and password: "hunter2"`
	out := Sanitize(in)
	if strings.Contains(out, "sk-abcdef123456") || strings.Contains(out, "hunter2") {
		t.Errorf("Sanitize did not redact secrets: %s", out)
	}
	if !strings.Contains(out, "token=[REDACTED]") {
		t.Errorf("Sanitize did not preserve field name: %s", out)
	}
}

func TestExitCode(t *testing.T) {
	if ExitCode(nil) != ExitSuccess {
		t.Error("nil error should exit 0")
	}
	if ExitCode(New(KindSecurity, SubCodeInjection, nil, "x")) != ExitFailure {
		t.Error("diagnostic error should exit 1")
	}
}
