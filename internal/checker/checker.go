// Package checker implements the narval Hindley–Milner type checker
// (spec §4.3): a visitor over the AST that maintains nested namespaces and
// a unification context, records inferred types, and reports diagnostics
// at source positions.
package checker

import (
	"github.com/narval-lang/narval/internal/ast"
	"github.com/narval-lang/narval/internal/diagnostics"
	"github.com/narval-lang/narval/internal/token"
	"github.com/narval-lang/narval/internal/types"
)

// ImportResolver loads and checks another module on demand, returning its
// exported symbol interface. The checker calls this when it encounters an
// ImportStmt (spec §4.5); ModuleManager supplies the real implementation,
// keeping Checker decoupled from filesystem/module-graph concerns (design
// notes: "the opaque runtime pointer" problem is avoided by passing a
// narrow, typed interface instead of reaching for global state).
type ImportResolver interface {
	// ResolveImport returns the exported symbol table of modulePath, as
	// seen from the file that is importing it.
	ResolveImport(fromFile, modulePath string) (exports map[string]types.Type, err error)
}

// Checker type-checks a Program, inferring and recording a type for every
// symbol it binds.
type Checker struct {
	uc     *types.UnificationContext
	scopes []*Namespace // scopes[0] is the root/global scope
	sink   *diagnostics.Sink

	currentReturnType types.Type // non-nil while checking a function body
	currentFilename   string

	// Types records the inferred type of every symbol name the checker
	// has bound, keyed by name at time of declaration (last write wins,
	// matching the source's "record types back onto a per-symbol table").
	Types map[string]types.Type

	resolver ImportResolver
}

// New creates a Checker. globalScope, if non-nil, becomes the checker's
// root namespace by reference — this is how the interactive SessionManager
// shares its global symbol table with the checker's bottom frame (spec §9
// design notes: "never copy it").
func New(globalScope *Namespace, sink *diagnostics.Sink, resolver ImportResolver) *Checker {
	if globalScope == nil {
		globalScope = NewNamespace()
	}
	if sink == nil {
		sink = diagnostics.NewSink()
	}
	return &Checker{
		uc:       types.NewUnificationContext(),
		scopes:   []*Namespace{globalScope},
		sink:     sink,
		Types:    make(map[string]types.Type),
		resolver: resolver,
	}
}

// SetFilename sets the file used to tag diagnostics and resolve relative
// imports for the program currently being checked.
func (c *Checker) SetFilename(f string) { c.currentFilename = f }

// Sink exposes the diagnostic collector.
func (c *Checker) Sink() *diagnostics.Sink { return c.sink }

// UnificationContext exposes the checker's single unification context, used
// by IR lowering to resolve the final concrete type of every expression.
func (c *Checker) UnificationContext() *types.UnificationContext { return c.uc }

// GlobalScope returns the bottom (root) namespace frame.
func (c *Checker) GlobalScope() *Namespace { return c.scopes[0] }

func (c *Checker) currentScope() *Namespace { return c.scopes[len(c.scopes)-1] }

// PushScope opens a nested lexical scope (for blocks, function bodies).
func (c *Checker) PushScope() {
	c.scopes = append(c.scopes, c.currentScope().Child())
}

// PopScope closes the innermost scope.
func (c *Checker) PopScope() {
	if len(c.scopes) > 1 {
		c.scopes = c.scopes[:len(c.scopes)-1]
	}
}

// errorAt reports a checker diagnostic at node's position.
func (c *Checker) errorAt(pos ast.Node, format string, args ...any) {
	c.sink.Error(pos.Position(), format, args...)
}

// gettyptr resolves a builtin type name or a user-defined nominal type
// bound in scope (spec §4.3 "gettyptr"). pos tags the diagnostic if name
// is an unknown nominal type.
func (c *Checker) gettyptr(name string, pos token.Position) types.Type {
	switch name {
	case "int":
		return types.Int
	case "float":
		return types.Float
	case "bool":
		return types.Bool
	case "string":
		return types.String
	case "void", "":
		return types.Void
	case "array":
		return &types.Array{Elem: c.uc.Fresh()}
	case "vector":
		return &types.Vector{Elem: c.uc.Fresh()}
	case "map":
		return &types.Map{Key: c.uc.Fresh(), Value: c.uc.Fresh()}
	case ast.AutomaticType:
		return c.uc.Fresh()
	}
	if t, ok := c.currentScope().Lookup(name); ok {
		return types.Instantiate(c.uc, t)
	}
	// Unknown nominal type: report and recover with a fresh var so
	// downstream inference can proceed and surface further errors.
	c.sink.Error(pos, "unknown type %q", name)
	return c.uc.Fresh()
}

// envFreeVars computes the free type variables of the current environment
// (every scope currently on the stack), used by Generalize.
func (c *Checker) envFreeVars() map[int]bool {
	out := make(map[int]bool)
	for _, scope := range c.scopes {
		for _, name := range scope.Names() {
			t, _ := scope.LookupLocal(name)
			if t == nil {
				continue
			}
			for id := range types.FreeVars(c.uc, t) {
				out[id] = true
			}
		}
	}
	return out
}

// CheckProgram type-checks every top-level statement in order.
func (c *Checker) CheckProgram(prog *ast.Program) {
	for _, stmt := range prog.Body {
		c.checkStmt(stmt)
	}
}
