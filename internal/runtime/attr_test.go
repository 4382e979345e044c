package runtime

import (
	"testing"

	"github.com/duns-scotus/mlpy/internal/capability"
	"github.com/duns-scotus/mlpy/internal/registry"
)

func newTestRegistry() *registry.Registry {
	r := registry.New()
	registry.RegisterDefaults(r)
	return r
}

func TestAttrLengthProperty(t *testing.T) {
	r := newTestRegistry()
	v, err := Attr("hello", "length", r)
	if err != nil {
		t.Fatalf("Attr: %v", err)
	}
	if v != float64(5) {
		t.Errorf("got %v, want 5", v)
	}
}

func TestAttrRejectsUnregistered(t *testing.T) {
	r := newTestRegistry()
	if _, err := Attr("hello", "__class__", r); err == nil {
		t.Error("expected unsafe attribute access to be rejected")
	}
}

func TestCallMethodStringUpper(t *testing.T) {
	r := newTestRegistry()
	v, err := CallMethod("hello", "upper", nil, r)
	if err != nil {
		t.Fatalf("CallMethod: %v", err)
	}
	if v != "HELLO" {
		t.Errorf("got %v, want HELLO", v)
	}
}

func TestCallMethodArraySortAndReverse(t *testing.T) {
	r := newTestRegistry()
	arr := []interface{}{float64(3), float64(1), float64(2)}
	sorted, err := CallMethod(arr, "sort", nil, r)
	if err != nil {
		t.Fatalf("sort: %v", err)
	}
	got := sorted.([]interface{})
	want := []float64{1, 2, 3}
	for i, w := range want {
		if got[i].(float64) != w {
			t.Errorf("sort[%d] = %v, want %v", i, got[i], w)
		}
	}
	reversed, err := CallMethod(arr, "reverse", nil, r)
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	rev := reversed.([]interface{})
	for i, w := range []float64{2, 1, 3} {
		if rev[i].(float64) != w {
			t.Errorf("reverse[%d] = %v, want %v", i, rev[i], w)
		}
	}
}

func TestCallMethodMapHasAndGet(t *testing.T) {
	r := newTestRegistry()
	m := map[string]interface{}{"a": float64(1)}
	has, err := CallMethod(m, "has", []interface{}{"a"}, r)
	if err != nil || has != true {
		t.Fatalf("has: %v %v", has, err)
	}
	missing, err := CallMethod(m, "get", []interface{}{"z", "fallback"}, r)
	if err != nil || missing != "fallback" {
		t.Fatalf("get fallback: %v %v", missing, err)
	}
}

func TestCallMethodBridgeDispatchesAndChecksCapability(t *testing.T) {
	mgr := capability.NewManager()
	thread := capability.NewThread()

	invoked := false
	bridge := &Bridge{
		Class: "class:FileHandle",
		Invoke: func(method string, args []interface{}) (interface{}, error) {
			if err := CheckCapability(mgr, thread, "read", "/tmp/data.txt"); err != nil {
				return nil, err
			}
			invoked = true
			return "contents", nil
		},
	}

	r := registry.New()
	r.MustRegisterClass("class:FileHandle", map[string]registry.Entry{
		"read": {Kind: registry.Method},
	})

	if _, err := CallMethod(bridge, "read", nil, r); err == nil {
		t.Fatal("expected capability denial without an active context")
	}
	if invoked {
		t.Fatal("bridge body ran despite missing capability")
	}

	token := mgr.CreateToken("file", []string{"/tmp/**"}, []string{"read"}, "test")
	guard, err := mgr.EnterContext(thread, "test-scope", []*capability.Token{token})
	if err != nil {
		t.Fatalf("EnterContext: %v", err)
	}
	defer guard.Release()

	v, err := CallMethod(bridge, "read", nil, r)
	if err != nil {
		t.Fatalf("CallMethod with capability granted: %v", err)
	}
	if v != "contents" || !invoked {
		t.Errorf("bridge invoke did not run as expected: v=%v invoked=%v", v, invoked)
	}
}
