package sandbox

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestHashSourceIsStable(t *testing.T) {
	a := HashSource("arr = [1, 2, 3];")
	b := HashSource("arr = [1, 2, 3];")
	if a != b {
		t.Error("same source must hash identically")
	}
	if len(a) != 64 {
		t.Errorf("expected a hex sha256, got %q", a)
	}
	if a == HashSource("arr = [1, 2, 4];") {
		t.Error("different sources must not collide on trivial edits")
	}
}

func TestCompileCachePutGet(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	c, err := NewCache("", CacheOptions{})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	defer c.Close()

	hash := HashSource("a = 1;")
	if _, ok := c.GetCompiled(hash); ok {
		t.Fatal("expected a miss on an empty cache")
	}
	c.PutCompiled(hash, &CompiledEntry{Code: "package mlprogram"})
	got, ok := c.GetCompiled(hash)
	if !ok {
		t.Fatal("expected a hit after Put")
	}
	if got.Code != "package mlprogram" {
		t.Errorf("wrong entry: %+v", got)
	}

	stats := c.Stats()
	if stats.CompileEntries != 1 || stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 1 entry, 1 hit, 1 miss", stats)
	}
}

func TestCompileCacheTTLExpiry(t *testing.T) {
	c, err := NewCache("", CacheOptions{CompileTTL: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	defer c.Close()

	hash := HashSource("a = 1;")
	c.PutCompiled(hash, &CompiledEntry{Code: "x"})
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.GetCompiled(hash); ok {
		t.Error("entry should have expired")
	}
}

func TestCompileCacheLRUEviction(t *testing.T) {
	c, err := NewCache("", CacheOptions{MaxEntries: 2})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	defer c.Close()

	c.PutCompiled("a", &CompiledEntry{Code: "a"})
	c.PutCompiled("b", &CompiledEntry{Code: "b"})
	if _, ok := c.GetCompiled("a"); !ok {
		t.Fatal("a should be cached")
	}
	// b is now least recently used; a third entry must evict it.
	c.PutCompiled("c", &CompiledEntry{Code: "c"})
	if _, ok := c.GetCompiled("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.GetCompiled("a"); !ok {
		t.Error("a should have survived")
	}
	if _, ok := c.GetCompiled("c"); !ok {
		t.Error("c should be cached")
	}
}

func TestExecutionCachePersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")

	c1, err := NewCache(dbPath, CacheOptions{})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	res := ExecutionResult{Status: StatusOK, ReturnValue: 42.0, DurationMs: 5}
	c1.PutExecution("codehash", "inputhash", res)
	if err := c1.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	c2, err := NewCache(dbPath, CacheOptions{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c2.Close()

	got, ok := c2.GetExecution("codehash", "inputhash")
	if !ok {
		t.Fatal("expected the persisted entry to survive a reopen")
	}
	if got.Status != StatusOK || got.DurationMs != 5 {
		t.Errorf("wrong persisted result: %+v", got)
	}
	if v, ok := got.ReturnValue.(float64); !ok || v != 42.0 {
		t.Errorf("return value did not round-trip: %#v", got.ReturnValue)
	}
}

func TestExecutionCacheTTLExpiry(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	c, err := NewCache(dbPath, CacheOptions{ExecuteTTL: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	c.PutExecution("code", "input", ExecutionResult{Status: StatusOK})
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.GetExecution("code", "input"); ok {
		t.Error("entry should have expired")
	}
	c.Close()

	// The expired row must not resurrect on reopen either.
	c2, err := NewCache(dbPath, CacheOptions{ExecuteTTL: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c2.Close()
	if _, ok := c2.GetExecution("code", "input"); ok {
		t.Error("expired entry survived a reopen")
	}
}

func TestCacheClear(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	c, err := NewCache(dbPath, CacheOptions{})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	defer c.Close()

	c.PutCompiled("a", &CompiledEntry{Code: "a"})
	c.PutExecution("code", "input", ExecutionResult{Status: StatusOK})
	if err := c.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	stats := c.Stats()
	if stats.CompileEntries != 0 || stats.ExecutionEntries != 0 {
		t.Errorf("expected an empty cache after Clear, got %+v", stats)
	}
}

func TestWatcherInvalidatesEditedSource(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	src := filepath.Join(dir, "prog.ml")
	if err := os.WriteFile(src, []byte("a = 1;"), 0644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	c, err := NewCache("", CacheOptions{})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	defer c.Close()

	hash := HashSource("a = 1;")
	c.PutCompiled(hash, &CompiledEntry{SourcePath: src, Code: "x"})
	if _, ok := c.GetCompiled(hash); !ok {
		t.Fatal("entry should be cached before the edit")
	}

	if err := os.WriteFile(src, []byte("a = 2;"), 0644); err != nil {
		t.Fatalf("edit source: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := c.GetCompiled(hash); !ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("compile entry was not invalidated after the source edit")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
