package mangle

import (
	"fmt"
	"testing"
)

// taintSchema mirrors the program internal/analyzer's Phase C loads:
// the base facts its collector emits and the two derived predicates it
// reads back. Keeping the copy here exercises the exact declarations and
// rules the analyzer depends on without importing it (the analyzer
// imports this package).
const taintSchema = `
Decl param(Var).
Decl bridge_tainted(Var).
Decl assign(To, From).
Decl call_arg(Call, Var).
Decl sink_call(Call).
Decl tainted(Var).
Decl tainted_flow(Var, Call).

tainted(X) :- param(X).
tainted(X) :- bridge_tainted(X).
tainted(X) :- assign(X, Y), tainted(Y).

tainted_flow(Var, Call) :- sink_call(Call), call_arg(Call, Var), tainted(Var).
`

func newTaintEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	if err := eng.LoadSchemaString(taintSchema); err != nil {
		t.Fatalf("LoadSchemaString: %v", err)
	}
	return eng
}

// factArgs collects the Args of every fact for a predicate, for simple
// membership checks.
func factArgs(t *testing.T, eng *Engine, predicate string) [][]interface{} {
	t.Helper()
	facts, err := eng.GetFacts(predicate)
	if err != nil {
		t.Fatalf("GetFacts(%s): %v", predicate, err)
	}
	out := make([][]interface{}, len(facts))
	for i, f := range facts {
		out[i] = f.Args
	}
	return out
}

func containsUnary(args [][]interface{}, want string) bool {
	for _, a := range args {
		if len(a) == 1 && a[0] == want {
			return true
		}
	}
	return false
}

func TestTaintPropagatesThroughAssignChain(t *testing.T) {
	eng := newTaintEngine(t)

	sink := "prog.ml:9:1"
	err := eng.AddFacts([]Fact{
		{Predicate: "param", Args: []interface{}{"user_input"}},
		{Predicate: "assign", Args: []interface{}{"a", "user_input"}},
		{Predicate: "assign", Args: []interface{}{"b", "a"}},
		{Predicate: "sink_call", Args: []interface{}{sink}},
		{Predicate: "call_arg", Args: []interface{}{sink, "b"}},
	})
	if err != nil {
		t.Fatalf("AddFacts: %v", err)
	}

	tainted := factArgs(t, eng, "tainted")
	for _, v := range []string{"/user_input", "/a", "/b"} {
		if !containsUnary(tainted, v) {
			t.Errorf("expected %s to be derived tainted, got %v", v, tainted)
		}
	}

	flows, err := eng.GetFacts("tainted_flow")
	if err != nil {
		t.Fatalf("GetFacts(tainted_flow): %v", err)
	}
	if len(flows) != 1 {
		t.Fatalf("expected exactly one tainted_flow fact, got %v", flows)
	}
	if flows[0].Args[0] != "/b" || flows[0].Args[1] != sink {
		t.Errorf("wrong flow endpoints: %v", flows[0].Args)
	}
}

func TestLoopCarriedReassignmentReachesFixedPoint(t *testing.T) {
	eng := newTaintEngine(t)

	// x and y feed each other, as a while body reassigning both would;
	// evaluation must close the cycle, not diverge or stop early.
	err := eng.AddFacts([]Fact{
		{Predicate: "param", Args: []interface{}{"y"}},
		{Predicate: "assign", Args: []interface{}{"x", "y"}},
		{Predicate: "assign", Args: []interface{}{"y", "x"}},
	})
	if err != nil {
		t.Fatalf("AddFacts: %v", err)
	}

	tainted := factArgs(t, eng, "tainted")
	if !containsUnary(tainted, "/x") || !containsUnary(tainted, "/y") {
		t.Errorf("loop-carried taint not closed: %v", tainted)
	}
}

func TestBridgeTaintedSourceFlowsToSink(t *testing.T) {
	eng := newTaintEngine(t)

	sink := "prog.ml:4:1"
	err := eng.AddFacts([]Fact{
		{Predicate: "bridge_tainted", Args: []interface{}{"resp"}},
		{Predicate: "assign", Args: []interface{}{"out", "resp"}},
		{Predicate: "sink_call", Args: []interface{}{sink}},
		{Predicate: "call_arg", Args: []interface{}{sink, "out"}},
	})
	if err != nil {
		t.Fatalf("AddFacts: %v", err)
	}

	flows := factArgs(t, eng, "tainted_flow")
	if len(flows) != 1 || flows[0][0] != "/out" {
		t.Errorf("expected out to flow to the sink, got %v", flows)
	}
}

func TestUntaintedArgumentDoesNotFlow(t *testing.T) {
	eng := newTaintEngine(t)

	// c has no taint source; reaching the sink alone must not fire.
	sink := "prog.ml:2:1"
	err := eng.AddFacts([]Fact{
		{Predicate: "param", Args: []interface{}{"user_input"}},
		{Predicate: "assign", Args: []interface{}{"c", "constant_table"}},
		{Predicate: "sink_call", Args: []interface{}{sink}},
		{Predicate: "call_arg", Args: []interface{}{sink, "c"}},
	})
	if err != nil {
		t.Fatalf("AddFacts: %v", err)
	}

	flows := factArgs(t, eng, "tainted_flow")
	if len(flows) != 0 {
		t.Errorf("expected no flows for an untainted argument, got %v", flows)
	}
}

func TestIdentifierArgsBecomeNameConstants(t *testing.T) {
	eng := newTaintEngine(t)

	// Variable names atomize to /names; a span key like "prog.ml:9:1" is
	// not identifier-shaped and must stay a plain string, or the
	// analyzer's TrimPrefix bookkeeping would corrupt it.
	sink := "prog.ml:9:1"
	err := eng.AddFacts([]Fact{
		{Predicate: "param", Args: []interface{}{"x"}},
		{Predicate: "sink_call", Args: []interface{}{sink}},
	})
	if err != nil {
		t.Fatalf("AddFacts: %v", err)
	}

	params := factArgs(t, eng, "param")
	if !containsUnary(params, "/x") {
		t.Errorf("identifier arg did not round-trip as a name constant: %v", params)
	}
	sinks := factArgs(t, eng, "sink_call")
	if !containsUnary(sinks, sink) {
		t.Errorf("span key arg did not round-trip as a string: %v", sinks)
	}
}

func TestAddFactsRequiresSchema(t *testing.T) {
	eng, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer eng.Close()

	if err := eng.AddFact("param", "x"); err == nil {
		t.Error("expected an error before any schema is loaded")
	}
	// An empty batch is a no-op even without a schema.
	if err := eng.AddFacts(nil); err != nil {
		t.Errorf("empty batch should be a no-op, got %v", err)
	}
}

func TestUndeclaredPredicateRejected(t *testing.T) {
	eng := newTaintEngine(t)

	if err := eng.AddFact("no_such_predicate", "x"); err == nil {
		t.Error("inserting an undeclared predicate must fail")
	}
	if _, err := eng.GetFacts("no_such_predicate"); err == nil {
		t.Error("reading an undeclared predicate must fail")
	}
}

func TestArityMismatchRejected(t *testing.T) {
	eng := newTaintEngine(t)

	if err := eng.AddFact("assign", "only_one"); err == nil {
		t.Error("assign/2 with one argument must fail")
	}
}

func TestLoadSchemaRejectsBadProgram(t *testing.T) {
	eng, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer eng.Close()

	if err := eng.LoadSchemaString("Decl broken("); err == nil {
		t.Error("expected a parse error")
	}
	// A failed load must leave the engine usable: a valid schema still
	// loads afterward.
	if err := eng.LoadSchemaString(taintSchema); err != nil {
		t.Errorf("valid schema after a failed load: %v", err)
	}
	if err := eng.AddFact("param", "x"); err != nil {
		t.Errorf("AddFact after recovery: %v", err)
	}
}

func TestSchemaFragmentsAccumulate(t *testing.T) {
	eng, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer eng.Close()

	if err := eng.LoadSchemaString("Decl seed(X).\nDecl derived(X).\n"); err != nil {
		t.Fatalf("load declarations: %v", err)
	}
	if err := eng.LoadSchemaString("derived(X) :- seed(X).\n"); err != nil {
		t.Fatalf("load rules referencing the earlier fragment: %v", err)
	}
	if err := eng.AddFact("seed", "a"); err != nil {
		t.Fatalf("AddFact: %v", err)
	}
	derived := factArgs(t, eng, "derived")
	if !containsUnary(derived, "/a") {
		t.Errorf("rule from the second fragment did not fire: %v", derived)
	}
}

func TestFactLimitEnforced(t *testing.T) {
	eng, err := NewEngine(Config{FactLimit: 3})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer eng.Close()
	if err := eng.LoadSchemaString(taintSchema); err != nil {
		t.Fatalf("LoadSchemaString: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := eng.AddFact("param", fmt.Sprintf("v%d", i)); err != nil {
			t.Fatalf("fact %d within limit: %v", i, err)
		}
	}
	if err := eng.AddFact("param", "v3"); err == nil {
		t.Error("expected the fourth base fact to exceed the limit")
	}
	if got := eng.FactCount(); got != 3 {
		t.Errorf("FactCount = %d, want 3", got)
	}
}

func TestFactStringRendersDatalog(t *testing.T) {
	f := Fact{Predicate: "call_arg", Args: []interface{}{"prog.ml:9:1", "/b"}}
	if got := f.String(); got != `call_arg("prog.ml:9:1", /b).` {
		t.Errorf("Fact.String() = %q", got)
	}
}
