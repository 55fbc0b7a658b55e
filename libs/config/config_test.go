package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	t.Setenv("TEST_TIMEOUT", "250ms")
	if got := Duration("TEST_TIMEOUT", time.Second); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %s", got)
	}
	t.Setenv("TEST_TIMEOUT", "7")
	if got := Duration("TEST_TIMEOUT", time.Second); got != 7*time.Second {
		t.Fatalf("expected 7s for bare integer, got %s", got)
	}
	t.Setenv("TEST_TIMEOUT", "soon")
	if got := Duration("TEST_TIMEOUT", time.Second); got != time.Second {
		t.Fatalf("expected fallback, got %s", got)
	}
}

func TestFloat(t *testing.T) {
	t.Setenv("TEST_RATIO", "0")
	if got := Float("TEST_RATIO", 1); got != 0 {
		t.Fatalf("expected explicit zero, got %v", got)
	}
	t.Setenv("TEST_RATIO", "half")
	if got := Float("TEST_RATIO", 1); got != 1 {
		t.Fatalf("expected fallback, got %v", got)
	}
}

func TestPort(t *testing.T) {
	t.Setenv("TEST_PORT", "70000")
	if _, err := Port("TEST_PORT", "8080"); err == nil {
		t.Fatal("expected error for out of range port")
	}
	t.Setenv("TEST_PORT", "")
	p, err := Port("TEST_PORT", "8080")
	if err != nil || p != "8080" {
		t.Fatalf("expected fallback 8080, got %q (%v)", p, err)
	}
}

func TestBoolAndList(t *testing.T) {
	t.Setenv("TEST_FLAG", "Yes")
	if !Bool("TEST_FLAG", false) {
		t.Fatal("expected true")
	}
	t.Setenv("TEST_FLAG", "maybe")
	if Bool("TEST_FLAG", false) {
		t.Fatal("expected fallback false")
	}
	t.Setenv("TEST_LIST", " a, ,b ,")
	got := List("TEST_LIST", "")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected list %v", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("ROOMBOOK_DOTENV_PROBE=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ROOMBOOK_DOTENV_PROBE", "")
	os.Unsetenv("ROOMBOOK_DOTENV_PROBE")

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if got := os.Getenv("ROOMBOOK_DOTENV_PROBE"); got != "from-file" {
		t.Fatalf("expected value from file, got %q", got)
	}
}
