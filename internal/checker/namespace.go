package checker

import "github.com/narval-lang/narval/internal/types"

// Namespace maps an identifier to its inferred type scheme. Namespaces
// form a stack for lexical scoping (spec §3 "Symbol (semantic) and
// Namespace").
type Namespace struct {
	symbols map[string]types.Type
	parent  *Namespace
}

// NewNamespace creates a root namespace with no parent.
func NewNamespace() *Namespace {
	return &Namespace{symbols: make(map[string]types.Type)}
}

// Child creates a nested scope.
func (n *Namespace) Child() *Namespace {
	return &Namespace{symbols: make(map[string]types.Type), parent: n}
}

// Define binds name in this scope (shadowing any outer binding).
func (n *Namespace) Define(name string, t types.Type) {
	n.symbols[name] = t
}

// Lookup walks outward from this scope to find name.
func (n *Namespace) Lookup(name string) (types.Type, bool) {
	for ns := n; ns != nil; ns = ns.parent {
		if t, ok := ns.symbols[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// LookupLocal checks only this scope, not its parents.
func (n *Namespace) LookupLocal(name string) (types.Type, bool) {
	t, ok := n.symbols[name]
	return t, ok
}

// Names returns every name bound directly in this scope (not parents).
func (n *Namespace) Names() []string {
	out := make([]string, 0, len(n.symbols))
	for name := range n.symbols {
		out = append(out, name)
	}
	return out
}

// Names2TypeMap returns a copy of every name bound directly in this scope,
// used by the module manager to export a checked module's top-level symbol
// table (spec §4.4 "get_combined_ast" / exported interface).
func (n *Namespace) Names2TypeMap() map[string]types.Type {
	out := make(map[string]types.Type, len(n.symbols))
	for name, t := range n.symbols {
		out[name] = t
	}
	return out
}
