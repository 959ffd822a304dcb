// Package testutil provides fakes for the workflow collaborators and
// must-style helpers for tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// T panics if err is non-nil, returning v. Useful for test setup.
// Usage: data := testutil.T(os.ReadFile("file.txt")).
func T[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}

	return v
}

// EqFatal calls t.Fatal if got != want.
func EqFatal[T comparable](t *testing.T, got, want T, msgAndArgs ...any) {
	t.Helper()
	if got != want {
		t.Fatal(append([]any{fmt.Sprintf("got %v, want %v", got, want)}, msgAndArgs...)...)
	}
}

// NoError calls t.Fatal if err is non-nil.
func NoError(t *testing.T, err error, msgAndArgs ...any) {
	t.Helper()
	if err != nil {
		t.Fatal(append([]any{err}, msgAndArgs...)...)
	}
}

// WriteFile creates a file with the given content, creating parent
// directories as needed.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll(%s): %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}
