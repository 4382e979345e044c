package registry

import "testing"

func TestIsDangerousName(t *testing.T) {
	for _, name := range []string{"eval", "exec", "__class__", "__anything__", "open", "system"} {
		if !IsDangerousName(name) {
			t.Errorf("expected %q to be dangerous", name)
		}
	}
	for _, name := range []string{"compileRegex", "upper", "length"} {
		if IsDangerousName(name) {
			t.Errorf("expected %q to not be dangerous", name)
		}
	}
}

func TestBuiltinWhitelist(t *testing.T) {
	r := New()
	RegisterDefaults(r)

	if !r.IsSafe("string", "upper") {
		t.Error("string.upper should be safe")
	}
	if r.IsSafe("string", "eval") {
		t.Error("string.eval should not be safe: eval is dangerous and unregistered")
	}
	if !r.IsSafe("array", "push") {
		t.Error("array.push should be safe")
	}
}

func TestUnknownTypeFallsBackToDangerousList(t *testing.T) {
	r := New()
	if r.IsSafe("unknown_type", "eval") {
		t.Error("eval on an unknown type must be unsafe")
	}
	if !r.IsSafe("unknown_type", "whatever") {
		t.Error("a non-dangerous name on an unknown type should be considered safe by default")
	}
}

// TestClassPrecedenceOverridesDangerousList exercises the critical
// precedence rule: a registered class's own whitelist is consulted before
// the global dangerous-name list, so a method named like a dangerous
// global (e.g. "compile") is permitted when explicitly registered.
func TestClassPrecedenceOverridesDangerousList(t *testing.T) {
	r := New()
	r.RegisterClass("Regex", map[string]Entry{
		"compile": {Kind: Method, Description: "compile a pattern"},
	})
	if !r.IsSafe("Regex", "compile") {
		t.Error("Regex.compile should be safe despite 'compile' being globally dangerous")
	}
	// An unregistered attribute on the same class still falls through to
	// the dangerous-name list.
	if r.IsSafe("Regex", "eval") {
		t.Error("Regex.eval should remain unsafe: not registered and globally dangerous")
	}
	// A non-dangerous, unregistered attribute on a registered class is
	// still considered safe (the class isn't a forbidden-only namespace).
	if !r.IsSafe("Regex", "someHelper") {
		t.Error("Regex.someHelper should be safe: unregistered but not dangerous")
	}
}

func TestForbiddenEntryDenies(t *testing.T) {
	r := New()
	r.RegisterClass("File", map[string]Entry{
		"unsafeRaw": {Kind: Forbidden, Description: "internal handle, never exposed"},
	})
	if r.IsSafe("File", "unsafeRaw") {
		t.Error("explicitly forbidden entries must never be safe")
	}
}

func TestRequiredCapabilities(t *testing.T) {
	r := New()
	r.RegisterClass("FileSystem", map[string]Entry{
		"readFile": {Kind: Method, RequiredCapabilities: []string{"file"}},
	})
	caps := r.RequiredCapabilities("FileSystem", "readFile")
	if len(caps) != 1 || caps[0] != "file" {
		t.Fatalf("unexpected required capabilities: %v", caps)
	}
	if got := r.RequiredCapabilities("FileSystem", "missing"); got != nil {
		t.Fatalf("expected nil for unregistered attribute, got %v", got)
	}
}

func TestIsSanitizing(t *testing.T) {
	r := New()
	RegisterDefaults(r)
	if !r.IsSanitizing("string", "upper") {
		t.Error("string.upper is marked sanitizing")
	}
	if r.IsSanitizing("string", "split") {
		t.Error("string.split is not marked sanitizing")
	}
}

func TestIsRegisteredClass(t *testing.T) {
	r := New()
	if r.IsRegisteredClass("Foo") {
		t.Fatal("Foo should not be registered yet")
	}
	r.RegisterClass("Foo", map[string]Entry{})
	if !r.IsRegisteredClass("Foo") {
		t.Fatal("Foo should be registered")
	}
}
