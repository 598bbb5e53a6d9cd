// Package testutil provides testing utilities for qnos tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/qnos-dev/qnos/pkg/appmem"
	"github.com/qnos-dev/qnos/pkg/operand"
)

// Reg parses a register name, failing the test on error.
func Reg(t *testing.T, s string) operand.Register {
	t.Helper()
	r, err := operand.ParseRegister(s)
	if err != nil {
		t.Fatalf("failed to parse register %q: %v", s, err)
	}
	return r
}

// Entry parses an array entry such as "@1[0]" or "@1[R0]".
func Entry(t *testing.T, s string) operand.ArrayEntry {
	t.Helper()
	op, err := operand.ParseAddress(s)
	if err != nil {
		t.Fatalf("failed to parse address %q: %v", s, err)
	}
	entry, ok := op.(operand.ArrayEntry)
	if !ok {
		t.Fatalf("%q is not an array entry", s)
	}
	return entry
}

// Slice parses an array slice such as "@1[0:4]".
func Slice(t *testing.T, s string) operand.ArraySlice {
	t.Helper()
	op, err := operand.ParseAddress(s)
	if err != nil {
		t.Fatalf("failed to parse address %q: %v", s, err)
	}
	slice, ok := op.(operand.ArraySlice)
	if !ok {
		t.Fatalf("%q is not an array slice", s)
	}
	return slice
}

// Cells builds defined cells from values.
func Cells(values ...int32) []appmem.Cell {
	cells := make([]appmem.Cell, len(values))
	for i, v := range values {
		cells[i] = appmem.Def(v)
	}
	return cells
}

// TempFile creates a temporary file with the given content and extension.
func TempFile(t *testing.T, content, ext string) string {
	t.Helper()
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test"+ext)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}
