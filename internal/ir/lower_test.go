package ir

import (
	"strings"
	"testing"

	"github.com/narval-lang/narval/internal/checker"
	"github.com/narval-lang/narval/internal/diagnostics"
	"github.com/narval-lang/narval/internal/parser"
)

func checkedProgram(t *testing.T, src string) *checker.Checker {
	t.Helper()
	prog, _, err := parser.Parse(src, "test.nv")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	sink := diagnostics.NewSink()
	c := checker.New(nil, sink, nil)
	c.SetFilename("test.nv")
	c.CheckProgram(prog)
	if sink.HasErrors() {
		for _, d := range sink.All() {
			t.Logf("diag: %s", sink.Format(d))
		}
		t.Fatalf("unexpected type errors")
	}
	return c
}

func TestLowerArithmeticGlobal(t *testing.T) {
	c := checkedProgram(t, `x: int = 1 + 2 * 3;`)
	prog, _, _ := parser.Parse(`x: int = 1 + 2 * 3;`, "test.nv")
	m, err := Lower(prog, c, "test")
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if !strings.Contains(m.String(), "main.start") {
		t.Fatalf("expected main.start in module, got:\n%s", m)
	}
}

func TestLowerFuncDef(t *testing.T) {
	src := `def add(a: int, b: int): int {
	return a + b;
}
`
	c := checkedProgram(t, src)
	prog, _, _ := parser.Parse(src, "test.nv")
	m, err := Lower(prog, c, "test")
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if !strings.Contains(m.String(), "define") {
		t.Fatalf("expected a function definition in module, got:\n%s", m)
	}
}

func TestLowerWhileLoop(t *testing.T) {
	src := `x: int = 0;
while x < 10 {
	x = x + 1;
}
`
	c := checkedProgram(t, src)
	prog, _, _ := parser.Parse(src, "test.nv")
	if _, err := Lower(prog, c, "test"); err != nil {
		t.Fatalf("Lower: %v", err)
	}
}
