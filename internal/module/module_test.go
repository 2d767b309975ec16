package module

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/narval-lang/narval/internal/ast"
	"github.com/narval-lang/narval/internal/diagnostics"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestCompileModuleResolvesRelativeImport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "util.nv", `answer: int = 42;`)
	main := writeFile(t, dir, "main.nv", `from "util.nv" import answer;
x: int = answer;
`)

	sink := diagnostics.NewSink()
	mgr := New(sink, DepthCheck)
	mod, err := mgr.CompileModule("main", main, "")
	if err != nil {
		t.Fatalf("CompileModule: %v", err)
	}
	if len(mod.Dependencies) != 1 {
		t.Fatalf("expected 1 dependency, got %d", len(mod.Dependencies))
	}
	if sink.HasErrors() {
		for _, d := range sink.All() {
			t.Logf("diagnostic: %s", sink.Format(d))
		}
		t.Fatalf("unexpected diagnostics")
	}
}

func TestCompileModuleDetectsImportCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.nv", `from "b.nv" import y;
x: int = y;
`)
	b := writeFile(t, dir, "b.nv", `from "a.nv" import x;
y: int = x;
`)

	sink := diagnostics.NewSink()
	mgr := New(sink, DepthParse)
	if _, err := mgr.CompileModule("b", b, ""); err != nil {
		t.Fatalf("CompileModule(b): %v", err)
	}
	if !sink.HasErrors() {
		t.Fatalf("expected a cycle diagnostic, got none")
	}
}

func TestGetCombinedASTOrdersDependenciesFirst(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "util.nv", `answer: int = 42;`)
	main := writeFile(t, dir, "main.nv", `from "util.nv" import answer;
x: int = answer;
`)

	sink := diagnostics.NewSink()
	mgr := New(sink, DepthCheck)
	if _, err := mgr.CompileModule("main", main, ""); err != nil {
		t.Fatalf("CompileModule: %v", err)
	}
	combined, err := mgr.GetCombinedAST(main)
	if err != nil {
		t.Fatalf("GetCombinedAST: %v", err)
	}
	// util's declaration, then main's import statement and declaration.
	if len(combined.Body) != 3 {
		t.Fatalf("expected 3 combined statements, got %d", len(combined.Body))
	}
	if decl, ok := combined.Body[0].(*ast.Declaration); !ok || decl.Name != "answer" {
		t.Fatalf("expected util's declaration first, got %s", combined.Body[0])
	}
}
