package interactive

import (
	"testing"

	"github.com/narval-lang/narval/internal/types"
)

func TestAddAndRedefineSymbol(t *testing.T) {
	s := NewSessionManager()
	s.AddSymbol("x", types.Int, OriginReplLine, nil)
	if !s.IsSymbolValid("x") {
		t.Fatalf("expected x valid after add")
	}

	s.AddSymbol("y", types.Int, OriginReplLine, map[string]bool{"x": true})
	if !s.IsSymbolValid("y") {
		t.Fatalf("expected y valid after add")
	}

	s.RedefineSymbol("x", types.Float, OriginReplLine, nil)
	if s.IsSymbolValid("y") {
		t.Fatalf("expected y invalidated after redefining its dependency x")
	}
	if !s.IsSymbolValid("x") {
		t.Fatalf("expected x itself valid immediately after its own redefinition")
	}
	typ, _ := s.GetType("x")
	if typ != types.Float {
		t.Fatalf("expected x's type updated to float, got %v", typ)
	}
}

func TestInvalidateSymbolCascadesTransitively(t *testing.T) {
	s := NewSessionManager()
	s.AddSymbol("a", types.Int, OriginReplLine, nil)
	s.AddSymbol("b", types.Int, OriginReplLine, map[string]bool{"a": true})
	s.AddSymbol("c", types.Int, OriginReplLine, map[string]bool{"b": true})

	s.InvalidateSymbol("a")
	for _, name := range []string{"a", "b", "c"} {
		if s.IsSymbolValid(name) {
			t.Fatalf("expected %s invalid after invalidating a", name)
		}
	}
}

func TestCommitUnitComputesDepsFromKnownSymbols(t *testing.T) {
	s := NewSessionManager()
	s.AddSymbol("known", types.Int, OriginReplLine, nil)

	defined := map[string]bool{"derived": true}
	used := map[string]bool{"known": true, "unknown_free_var": true}
	s.CommitUnit(defined, used, map[string]types.Type{"derived": types.Int}, OriginReplLine)

	deps := s.GetDependencies("derived")
	if !deps["known"] {
		t.Fatalf("expected derived to depend on known")
	}
	if deps["unknown_free_var"] {
		t.Fatalf("did not expect a dependency on a name the session never defined")
	}

	s.RedefineSymbol("known", types.Int, OriginReplLine, nil)
	if s.IsSymbolValid("derived") {
		t.Fatalf("expected derived invalidated when known is redefined")
	}
}

func TestResetClearsSession(t *testing.T) {
	s := NewSessionManager()
	s.AddSymbol("x", types.Int, OriginReplLine, nil)
	s.Reset()
	if len(s.ListSymbolsAll()) != 0 {
		t.Fatalf("expected empty session after reset")
	}
}
