package interactive

import (
	"fmt"

	"github.com/narval-lang/narval/internal/ast"
	"github.com/narval-lang/narval/internal/checker"
	"github.com/narval-lang/narval/internal/diagnostics"
	"github.com/narval-lang/narval/internal/parser"
	"github.com/narval-lang/narval/internal/types"
)

// builtinNames are never treated as session symbols, matching the runtime's
// always-available free functions (spec §4.7.2 "eliding builtins").
var builtinNames = map[string]bool{"write": true, "read": true, "json": true}

// IncrementalUnit is one parsed fragment submitted to the session, whether
// typed at the REPL prompt or executed from a notebook cell (spec §4.7.2).
type IncrementalUnit struct {
	ID             string
	VirtualFile    string
	Source         string
	Program        *ast.Program
	Defined        map[string]bool
	Used           map[string]bool
	Origin         SymbolOrigin
}

// collectNames walks prog's top level, recording every name a top-level
// statement defines and every identifier any expression reads, minus
// builtins. Nested scopes (function bodies, block bodies) are walked too so
// that a helper defined inside a function does not leak into Defined, while
// any outer-session symbol the function body reads still lands in Used.
// Reads are not filtered by scope: parameters, loop bindings and locals read
// inside the fragment also land in Used. Match-case patterns are not walked.
func collectNames(prog *ast.Program) (defined, used map[string]bool) {
	defined = make(map[string]bool)
	used = make(map[string]bool)
	var walkStmt func(ast.Stmt, bool)
	var walkExpr func(ast.Expr)

	walkExpr = func(e ast.Expr) {
		if e == nil {
			return
		}
		switch n := e.(type) {
		case *ast.Identifier:
			if !builtinNames[n.Name] {
				used[n.Name] = true
			}
		case *ast.NumericLiteral, *ast.StringLiteral, *ast.BooleanLiteral:
		case *ast.BinaryExpr:
			walkExpr(n.Left)
			walkExpr(n.Right)
		case *ast.UnaryMinusExpr:
			walkExpr(n.Operand)
		case *ast.LogicalNotExpr:
			walkExpr(n.Operand)
		case *ast.IncDecExpr:
			walkExpr(n.Operand)
		case *ast.CallExpr:
			walkExpr(n.Callee)
			for _, a := range n.Args {
				walkExpr(a)
			}
		case *ast.MemberExpr:
			walkExpr(n.Object)
		case *ast.AccessExpr:
			walkExpr(n.Base)
			walkExpr(n.Index)
		case *ast.AssignmentExpr:
			walkExpr(n.Target)
			walkExpr(n.Value)
		case *ast.TupleExpr:
			for _, el := range n.Elements {
				walkExpr(el)
			}
		case *ast.VectorExpr:
			for _, el := range n.Elements {
				walkExpr(el)
			}
		case *ast.ArrayExpr:
			for _, el := range n.Elements {
				walkExpr(el)
			}
		case *ast.MapExpr:
			for _, p := range n.Pairs {
				walkExpr(p.Key)
				walkExpr(p.Value)
			}
		case *ast.RangeExpr:
			walkExpr(n.Start)
			walkExpr(n.End)
		case *ast.ListComprehensionExpr:
			walkExpr(n.Element)
			for _, g := range n.Generators {
				walkExpr(g.Source)
			}
			walkExpr(n.Cond)
			walkExpr(n.Else)
		case *ast.ConditionalExpr:
			walkExpr(n.Value)
			walkExpr(n.Cond)
			walkExpr(n.Other)
		}
	}

	walkBody := func(body []ast.Stmt) {
		for _, s := range body {
			walkStmt(s, false)
		}
	}

	walkStmt = func(s ast.Stmt, topLevel bool) {
		switch n := s.(type) {
		case *ast.Declaration:
			if topLevel {
				defined[n.Name] = true
			}
			walkExpr(n.Value)
		case *ast.FuncDef:
			if topLevel {
				defined[n.Name] = true
			}
			walkBody(n.Body)
		case *ast.ImportStmt:
			if topLevel {
				for _, item := range n.Items {
					name := item.Name
					if item.Alias != "" {
						name = item.Alias
					}
					defined[name] = true
				}
			}
		case *ast.IfStmt:
			walkExpr(n.If.Cond)
			walkBody(n.If.Body)
			for _, elif := range n.Elif {
				walkExpr(elif.Cond)
				walkBody(elif.Body)
			}
			walkBody(n.Else)
		case *ast.ForStmt:
			if n.Range != nil {
				walkExpr(n.Range.Start)
				walkExpr(n.Range.End)
			}
			walkExpr(n.Iterable)
			walkBody(n.Body)
			walkBody(n.Else)
		case *ast.WhileStmt:
			walkExpr(n.Cond)
			walkBody(n.Body)
		case *ast.LoopStmt:
			walkBody(n.Body)
		case *ast.MatchStmt:
			walkExpr(n.Target)
			for _, c := range n.Cases {
				walkBody(c.Body)
			}
		case *ast.ReturnStmt:
			walkExpr(n.Value)
		case *ast.ExprStmt:
			walkExpr(n.X)
		}
	}

	for _, s := range prog.Body {
		walkStmt(s, true)
	}
	return defined, used
}

// AnalysisResult is what IncrementalSemanticAnalyzer.Analyze hands back to
// the orchestrator: the checked unit plus its symbol sets, ready either to
// commit to the session or to discard on error.
type AnalysisResult struct {
	Unit          *IncrementalUnit
	Checker       *checker.Checker
	InferredTypes map[string]types.Type
	Diagnostics   *diagnostics.Sink
	InvalidUses   []string // names used that the session currently marks invalid
}

// IncrementalSemanticAnalyzer type-checks one fragment against the live
// session namespace, refusing to silently let code build on an invalidated
// definition (spec §4.7.2 "the invalidated-symbol-use guard").
type IncrementalSemanticAnalyzer struct {
	session *SessionManager
	global  *checker.Namespace
}

// NewIncrementalSemanticAnalyzer binds an analyzer to session and the
// checker namespace it shares by reference.
func NewIncrementalSemanticAnalyzer(session *SessionManager, global *checker.Namespace) *IncrementalSemanticAnalyzer {
	return &IncrementalSemanticAnalyzer{session: session, global: global}
}

// Analyze parses source as unit.VirtualFile, type-checks it against the
// shared global namespace, and reports (without failing) any reference to a
// symbol the session currently considers invalid — the caller decides
// whether an invalid-use warning should block commit.
func (a *IncrementalSemanticAnalyzer) Analyze(id, virtualFile, source string, origin SymbolOrigin) (*AnalysisResult, error) {
	prog, _, err := parser.Parse(source, virtualFile)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	defined, used := collectNames(prog)

	var invalid []string
	for name := range used {
		if a.session.IsSymbolValid(name) == false {
			if _, known := a.session.GetType(name); known {
				invalid = append(invalid, name)
			}
		}
	}

	sink := diagnostics.NewSink()
	c := checker.New(a.global, sink, nil)
	c.SetFilename(virtualFile)
	c.CheckProgram(prog)

	inferred := make(map[string]types.Type, len(defined))
	for name := range defined {
		if t, ok := c.Types[name]; ok {
			inferred[name] = t
		}
	}

	unit := &IncrementalUnit{
		ID:          id,
		VirtualFile: virtualFile,
		Source:      source,
		Program:     prog,
		Defined:     defined,
		Used:        used,
		Origin:      origin,
	}
	return &AnalysisResult{
		Unit:          unit,
		Checker:       c,
		InferredTypes: inferred,
		Diagnostics:   sink,
		InvalidUses:   invalid,
	}, nil
}
