package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCompileArithmeticProgram(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.nv")
	if err := os.WriteFile(path, []byte("x: int = (1 + 2) * 3;\n"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	result, err := Compile(path)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(result.LLVMModule.String(), "main.start") {
		t.Fatalf("expected main.start entry point in lowered module")
	}
}

func TestCompileReportsTypeErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.nv")
	if err := os.WriteFile(path, []byte(`x: int = "not an int";` + "\n"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	result, err := Compile(path)
	if err == nil {
		t.Fatalf("expected a type error")
	}
	if result == nil || result.Sink == nil || !result.Sink.HasErrors() {
		t.Fatalf("expected diagnostics recorded in the sink")
	}
}
