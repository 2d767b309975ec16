package interactive

import (
	"context"
	"fmt"

	"github.com/narval-lang/narval/internal/checker"
)

// ExecutionResult is the outcome of running one fragment through the full
// incremental pipeline, shaped for direct display by a REPL or notebook
// surface (spec §6 "ExecutionResult{ok, output, error, defined_symbols,
// used_symbols}").
type ExecutionResult struct {
	OK             bool
	Output         string
	Error          error
	DefinedSymbols []string
	UsedSymbols    []string
}

// Hooks lets a host surface (REPL, notebook) observe the pipeline without
// the Engine depending on either concretely (spec §4.7.2 "on_before_analysis
// / on_after_jit"). OnBeforeAnalysis receives the unit after it has been
// parsed and type-checked, before the invalid-symbol check and lowering; it
// is not called when parsing or checking fails. OnAfterJIT is called once
// per ExecuteFragment with its result, successful or not.
type Hooks struct {
	OnBeforeAnalysis func(unit *IncrementalUnit)
	OnAfterJIT       func(fragmentID string, result ExecutionResult)
}

// Engine wires the four cooperating components of the interactive core —
// SessionManager, IncrementalSemanticAnalyzer, IrIncrementalBuilder and
// JitExecutionEngine — into one parse -> analyze -> lower -> JIT-add ->
// execute pipeline (spec §4.7 overview).
type Engine struct {
	Session  *SessionManager
	Builder  *IrIncrementalBuilder
	Jit      *JitExecutionEngine
	analyzer *IncrementalSemanticAnalyzer
	global   *checker.Namespace
	hooks    Hooks
}

// NewEngine wires a fresh interactive core sharing global as the checker's
// root namespace, the same instance the session's committed symbols are
// recorded against (spec §9 design notes: never copy the shared namespace).
func NewEngine(global *checker.Namespace, hooks Hooks) (*Engine, error) {
	session := NewSessionManager()
	jit, err := NewJitExecutionEngine()
	if err != nil {
		return nil, err
	}
	return &Engine{
		Session:  session,
		Builder:  NewIrIncrementalBuilder(),
		Jit:      jit,
		analyzer: NewIncrementalSemanticAnalyzer(session, global),
		global:   global,
		hooks:    hooks,
	}, nil
}

// ExecuteFragment runs id/virtualFile/source through the full pipeline: parse
// and type-check against the shared namespace, reject if it reads a symbol
// the session currently considers invalid, lower the checked fragment to its
// own module, hand it to the JIT, run it, and commit its defined symbols to
// the session only on success (spec §4.7 "fragment lifecycle orchestrator").
func (e *Engine) ExecuteFragment(ctx context.Context, id, virtualFile, source string, origin SymbolOrigin) ExecutionResult {
	result := e.executeFragment(ctx, id, virtualFile, source, origin)
	if e.hooks.OnAfterJIT != nil {
		e.hooks.OnAfterJIT(id, result)
	}
	return result
}

func (e *Engine) executeFragment(ctx context.Context, id, virtualFile, source string, origin SymbolOrigin) ExecutionResult {
	analysis, err := e.analyzer.Analyze(id, virtualFile, source, origin)
	if err != nil {
		return ExecutionResult{OK: false, Error: err}
	}
	if e.hooks.OnBeforeAnalysis != nil {
		e.hooks.OnBeforeAnalysis(analysis.Unit)
	}

	if len(analysis.InvalidUses) > 0 {
		return ExecutionResult{
			OK:    false,
			Error: fmt.Errorf("references symbol(s) invalidated by a later redefinition: %v", analysis.InvalidUses),
		}
	}
	if analysis.Diagnostics.HasErrors() {
		var msgs []string
		for _, d := range analysis.Diagnostics.All() {
			msgs = append(msgs, analysis.Diagnostics.Format(d))
		}
		return ExecutionResult{OK: false, Error: fmt.Errorf("type errors: %v", msgs)}
	}

	if err := e.Builder.CommitFragmentInterface(analysis.Unit, analysis.Checker); err != nil {
		return ExecutionResult{OK: false, Error: err}
	}
	m, _ := e.Builder.Module(id)
	e.Jit.RemoveModule(id)
	if err := e.Jit.AddModule(id, m); err != nil {
		return ExecutionResult{OK: false, Error: err}
	}

	stdout, stderr, runErr := e.Jit.ExecuteVoidFunction(ctx, id, "main.start")
	if runErr != nil {
		return ExecutionResult{OK: false, Output: stdout + stderr, Error: fmt.Errorf("execution failed: %w", runErr)}
	}

	e.Session.CommitUnit(analysis.Unit.Defined, analysis.Unit.Used, analysis.InferredTypes, origin)

	defined := make([]string, 0, len(analysis.Unit.Defined))
	for name := range analysis.Unit.Defined {
		defined = append(defined, name)
	}
	used := make([]string, 0, len(analysis.Unit.Used))
	for name := range analysis.Unit.Used {
		used = append(used, name)
	}
	return ExecutionResult{
		OK:             true,
		Output:         stdout + stderr,
		DefinedSymbols: defined,
		UsedSymbols:    used,
	}
}

// Reset tears the engine back down to a clean empty state: the session, the
// fragment dependency graph and every JIT-registered module.
func (e *Engine) Reset() error {
	e.Session.Reset()
	e.Builder = NewIrIncrementalBuilder()
	if err := e.Jit.Close(); err != nil {
		return err
	}
	jit, err := NewJitExecutionEngine()
	if err != nil {
		return err
	}
	e.Jit = jit
	return nil
}
