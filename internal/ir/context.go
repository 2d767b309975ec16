// Package ir lowers a checked narval Program into LLVM IR via
// github.com/llir/llvm (spec §4.6): a boxed 3-field runtime Value aggregate
// carries dynamic/polymorphic data across function and container boundaries,
// while concrete primitive types flow unboxed.
package ir

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/narval-lang/narval/internal/checker"
	narvaltypes "github.com/narval-lang/narval/internal/types"
)

// Value tags, matching the runtime's Value.tag field (spec §3 "IR Value").
const (
	TagInt = iota + 1
	TagFloat
	TagBool
	TagStr
	TagArray
	TagVector
	TagMap
	TagTuple
	TagCustom = narvaltypes.TagCustomBase
)

// ValueType is the runtime's boxed 3-field aggregate: { tag: i32, payload:
// i64, proto: i8* }. Containers, dynamically-typed locals, and anything
// crossing a polymorphic boundary are carried as this struct.
var ValueType = types.NewStruct(types.I32, types.I64, types.I8Ptr)

// ValuePtr is the pointer-to-Value type used for every runtime helper's
// out-parameter and receiver slots.
var ValuePtr = types.NewPointer(ValueType)

// narvalValue aliases llir/llvm's value.Value so the rest of this package
// doesn't need to import the value package directly at every call site.
type narvalValue = value.Value

// symbolEntry records one bound identifier's codegen storage (spec §4.6
// "SymbolTable" entry shape: storage, llvm_type, source_type, is_allocated,
// is_constant).
type symbolEntry struct {
	storage    value.Value // an *ir.InstAlloca, *ir.Global, or a bare SSA value
	llvmType   types.Type
	sourceType narvaltypes.Type
	allocated  bool
	constant   bool
}

// SymbolTable is a stack of lexical scopes mapping identifier to storage
// (spec §4.6 "SymbolTable").
type SymbolTable struct {
	scopes []map[string]*symbolEntry
}

func newSymbolTable() *SymbolTable {
	return &SymbolTable{scopes: []map[string]*symbolEntry{make(map[string]*symbolEntry)}}
}

func (st *SymbolTable) pushScope() { st.scopes = append(st.scopes, make(map[string]*symbolEntry)) }
func (st *SymbolTable) popScope()  { st.scopes = st.scopes[:len(st.scopes)-1] }

func (st *SymbolTable) define(name string, e *symbolEntry) {
	st.scopes[len(st.scopes)-1][name] = e
}

func (st *SymbolTable) updateInPlace(name string, e *symbolEntry) bool {
	for i := len(st.scopes) - 1; i >= 0; i-- {
		if _, ok := st.scopes[i][name]; ok {
			st.scopes[i][name] = e
			return true
		}
	}
	return false
}

func (st *SymbolTable) lookup(name string) (*symbolEntry, bool) {
	for i := len(st.scopes) - 1; i >= 0; i-- {
		if e, ok := st.scopes[i][name]; ok {
			return e, true
		}
	}
	return nil, false
}

// loopFrame is one entry of the control-flow stack (spec §4.6
// "ControlFlowContext"): the blocks a break/continue inside this loop
// targets.
type loopFrame struct {
	header   *ir.Block
	body     *ir.Block
	continueBlock *ir.Block
	exit     *ir.Block
}

// ControlFlowContext is a stack of loop frames.
type ControlFlowContext struct {
	frames []loopFrame
}

func (cf *ControlFlowContext) enterLoop(f loopFrame) { cf.frames = append(cf.frames, f) }
func (cf *ControlFlowContext) exitLoop()             { cf.frames = cf.frames[:len(cf.frames)-1] }

func (cf *ControlFlowContext) currentExit() (*ir.Block, bool) {
	if len(cf.frames) == 0 {
		return nil, false
	}
	return cf.frames[len(cf.frames)-1].exit, true
}

func (cf *ControlFlowContext) currentContinue() (*ir.Block, bool) {
	if len(cf.frames) == 0 {
		return nil, false
	}
	return cf.frames[len(cf.frames)-1].continueBlock, true
}

// GenContext owns everything the lowering walk needs (spec §4.6
// "IRGenerationContext"): the target module, the current insertion point,
// the symbol table, the control-flow stack, an evaluation stack (codegen
// walks the AST and each expression pushes its produced value), the current
// function, a type cache, and the checker whose unification context resolves
// each expression's final concrete type.
type GenContext struct {
	Module *ir.Module
	Block  *ir.Block
	Func   *ir.Func

	Symbols *SymbolTable
	Loops   *ControlFlowContext
	evalStack []value.Value

	Checker *checker.Checker

	runtime    *runtimeDecls
	globalInit []func(*ir.Block) *ir.Block // recorded non-constant global initializers
	strConsts  map[string]*ir.Global       // interned module-level string constants
	nextTemp   int
}

// NewGenContext creates a fresh context targeting a new module named
// moduleName, with c supplying resolved expression types.
func NewGenContext(moduleName string, c *checker.Checker) *GenContext {
	m := ir.NewModule()
	m.SourceFilename = moduleName
	gc := &GenContext{
		Module:    m,
		Symbols:   newSymbolTable(),
		Loops:     &ControlFlowContext{},
		Checker:   c,
		strConsts: make(map[string]*ir.Global),
	}
	gc.runtime = declareRuntime(m)
	return gc
}

func (gc *GenContext) push(v value.Value) { gc.evalStack = append(gc.evalStack, v) }
func (gc *GenContext) pop() value.Value {
	v := gc.evalStack[len(gc.evalStack)-1]
	gc.evalStack = gc.evalStack[:len(gc.evalStack)-1]
	return v
}

// internString returns the module-level constant for s, creating it once
// per distinct literal value (spec §4.6 "String literal").
func (gc *GenContext) internString(s string) *ir.Global {
	if g, ok := gc.strConsts[s]; ok {
		return g
	}
	data := append([]byte(s), 0)
	g := gc.Module.NewGlobalDef(".str", constant.NewCharArrayFromString(string(data)))
	g.Immutable = true
	g.Linkage = enum.LinkagePrivate
	gc.strConsts[s] = g
	return g
}
