package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitializeDisabled(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, false, "info", false, nil); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	if IsDebugMode() {
		t.Fatal("expected debug mode disabled")
	}
	logsDirPath := filepath.Join(dir, ".mlpy", "logs")
	if _, err := os.Stat(logsDirPath); !os.IsNotExist(err) {
		t.Fatalf("logs directory should not be created when debug mode is off")
	}
}

func TestInitializeEnabledWritesFile(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(CloseAll)
	if err := Initialize(dir, true, "debug", false, nil); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	if !IsDebugMode() {
		t.Fatal("expected debug mode enabled")
	}

	Get(CategoryLexer).Info("hello %s", "world")

	logsDirPath := filepath.Join(dir, ".mlpy", "logs")
	entries, err := os.ReadDir(logsDirPath)
	if err != nil {
		t.Fatalf("reading logs dir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least one log file")
	}
}

func TestCategoryDisabledIsNoop(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(CloseAll)
	if err := Initialize(dir, true, "debug", false, map[string]bool{"lexer": false}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if IsCategoryEnabled(CategoryLexer) {
		t.Fatal("lexer category should be disabled")
	}
	// Should not panic even though disabled.
	Get(CategoryLexer).Info("should be dropped")
}
