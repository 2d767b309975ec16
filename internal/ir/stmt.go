package ir

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"

	"github.com/narval-lang/narval/internal/ast"
	narvaltypes "github.com/narval-lang/narval/internal/types"
)

// lowerType maps a resolved source type to its unboxed low-level
// representation, falling back to the boxed Value aggregate for containers
// and anything still polymorphic (spec §4.6 calling convention).
func lowerType(t narvaltypes.Type) types.Type {
	switch rt := t.(type) {
	case *narvaltypes.Basic:
		switch rt {
		case narvaltypes.Int:
			return types.I32
		case narvaltypes.Float:
			return types.Double
		case narvaltypes.Bool:
			return types.I1
		case narvaltypes.String:
			return types.I8Ptr
		case narvaltypes.Void:
			return types.Void
		}
	}
	return ValueType
}

func (gc *GenContext) resolvedType(e ast.Expr) narvaltypes.Type {
	return gc.Checker.UnificationContext().Resolve(gc.Checker.InferExpr(e))
}

// lowerFuncDef declares and lowers a function definition (spec §4.6
// "Function definition"): unboxed param/return types, save/restore the
// current function and insertion point around the body.
func (gc *GenContext) lowerFuncDef(s *ast.FuncDef) error {
	paramTypes := make([]*ir.Param, len(s.Params))
	for i, p := range s.Params {
		t := types.Type(ValueType)
		if entry, ok := gc.Checker.GlobalScope().Lookup(s.Name); ok {
			_ = entry
		}
		if p.Type != "" {
			t = lowerType(gc.Checker.UnificationContext().Resolve(gc.gettyptrType(p.Type)))
		}
		paramTypes[i] = ir.NewParam(p.Name, t)
	}
	retType := types.Type(types.Void)
	if s.ReturnType != "" {
		retType = lowerType(gc.Checker.UnificationContext().Resolve(gc.gettyptrType(s.ReturnType)))
	}

	fn := gc.Module.NewFunc(s.Name, retType, paramTypes...)

	prevFunc, prevBlock := gc.Func, gc.Block
	gc.Func = fn
	gc.Block = fn.NewBlock("entry")
	gc.Symbols.pushScope()

	for i, p := range s.Params {
		alloca := gc.allocaSlot(paramTypes[i].Type(), p.Name)
		gc.Block.NewStore(fn.Params[i], alloca)
		gc.Symbols.define(p.Name, &symbolEntry{storage: alloca, llvmType: paramTypes[i].Type(), allocated: true})
	}

	for _, stmt := range s.Body {
		if err := gc.lowerStmt(stmt); err != nil {
			return err
		}
	}
	if gc.Block.Term == nil {
		if retType.Equal(types.Void) {
			gc.Block.NewRet(nil)
		} else {
			gc.Block.NewRet(constant.NewUndef(retType))
		}
	}

	gc.Symbols.popScope()
	gc.Func, gc.Block = prevFunc, prevBlock
	return nil
}

// gettyptrType is a thin alias so IR lowering can resolve a type annotation
// the same way the checker does, without re-exporting checker internals.
func (gc *GenContext) gettyptrType(name string) narvaltypes.Type {
	if t, ok := gc.Checker.GlobalScope().Lookup(name); ok {
		return t
	}
	switch name {
	case "int":
		return narvaltypes.Int
	case "float":
		return narvaltypes.Float
	case "bool":
		return narvaltypes.Bool
	case "string":
		return narvaltypes.String
	default:
		return narvaltypes.Void
	}
}

// lowerGlobalDeclaration lowers a module-scope Declaration (spec §4.6
// "Declaration"): a constant initializer becomes the global's initial
// value; otherwise a zero-initialized global is created and the real
// initialization is deferred to program.global.init.
func (gc *GenContext) lowerGlobalDeclaration(s *ast.Declaration) error {
	srcType := gc.resolvedType(s.Value)
	llType := lowerType(srcType)

	if lit, ok := constantOf(s.Value); ok && lit.Type().Equal(llType) {
		g := gc.Module.NewGlobalDef(s.Name, lit)
		g.Linkage = enum.LinkageInternal
		gc.Symbols.define(s.Name, &symbolEntry{storage: g, llvmType: llType, sourceType: srcType, allocated: true, constant: true})
		return nil
	}

	g := gc.Module.NewGlobalDef(s.Name, constant.NewZeroInitializer(llType))
	g.Linkage = enum.LinkageInternal
	gc.Symbols.define(s.Name, &symbolEntry{storage: g, llvmType: llType, sourceType: srcType, allocated: true})

	gc.globalInit = append(gc.globalInit, func(b *ir.Block) *ir.Block {
		prevBlock := gc.Block
		gc.Block = b
		v := gc.lowerExpr(s.Value)
		v = gc.coerceTo(v, llType, srcType)
		gc.Block.NewStore(v, g)
		next := gc.Block
		gc.Block = prevBlock
		return next
	})
	return nil
}

// constantOf reports whether e is a literal expression with an immediate
// constant low-level value (used to decide whether a global's initializer
// can be emitted directly instead of deferred to program.global.init).
func constantOf(e ast.Expr) (constant.Constant, bool) {
	switch lit := e.(type) {
	case *ast.NumericLiteral:
		if lit.IsFloat {
			return nil, false // parsed lazily at use-site; deferred for simplicity
		}
		return nil, false
	case *ast.BooleanLiteral:
		v := int64(0)
		if lit.Value {
			v = 1
		}
		return constant.NewInt(types.I1, v), true
	}
	return nil, false
}

// lowerImport reuses the existing low-level global/function by original
// name, registering it under the alias in the local symbol table (spec
// §4.6 "Import").
func (gc *GenContext) lowerImport(s *ast.ImportStmt) error {
	for _, item := range s.Items {
		bindName := item.Name
		if item.Alias != "" {
			bindName = item.Alias
		}
		if entry, ok := gc.Symbols.lookup(item.Name); ok {
			gc.Symbols.define(bindName, entry)
		}
	}
	return nil
}

func (gc *GenContext) lowerStmt(stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case *ast.Declaration:
		return gc.lowerLocalDeclaration(s)
	case *ast.ExprStmt:
		gc.push(gc.lowerExpr(s.X))
		gc.pop()
		return nil
	case *ast.IfStmt:
		return gc.lowerIf(s)
	case *ast.WhileStmt:
		return gc.lowerWhile(s)
	case *ast.LoopStmt:
		return gc.lowerLoop(s)
	case *ast.ForStmt:
		return gc.lowerFor(s)
	case *ast.ReturnStmt:
		return gc.lowerReturn(s)
	case *ast.BreakStmt:
		if exit, ok := gc.Loops.currentExit(); ok {
			gc.Block.NewBr(exit)
		} else {
			return fmt.Errorf("break outside of a loop")
		}
		return nil
	case *ast.ContinueStmt:
		if cont, ok := gc.Loops.currentContinue(); ok {
			gc.Block.NewBr(cont)
		} else {
			return fmt.Errorf("continue outside of a loop")
		}
		return nil
	case *ast.MatchStmt:
		return gc.lowerMatch(s)
	case *ast.FuncDef:
		return gc.lowerFuncDef(s)
	}
	return fmt.Errorf("internal: unhandled statement kind %T", stmt)
}

func (gc *GenContext) lowerLocalDeclaration(s *ast.Declaration) error {
	srcType := gc.resolvedType(s.Value)
	llType := lowerType(srcType)
	v := gc.coerceTo(gc.lowerExpr(s.Value), llType, srcType)

	if entry, ok := gc.Symbols.lookup(s.Name); ok && entry.allocated {
		gc.Block.NewStore(v, entry.storage)
		return nil
	}
	alloca := gc.allocaSlot(llType, s.Name)
	gc.Block.NewStore(v, alloca)
	gc.Symbols.define(s.Name, &symbolEntry{storage: alloca, llvmType: llType, sourceType: srcType, allocated: true})
	return nil
}

// coerceTo boxes/unboxes v so its representation matches want, per spec
// §4.6's boxing rules; a no-op when the representations already agree.
func (gc *GenContext) coerceTo(v narvalValue, want types.Type, srcType narvaltypes.Type) narvalValue {
	if v.Type().Equal(want) {
		return v
	}
	if want.Equal(ValueType) {
		return gc.boxValue(v, srcType)
	}
	if v.Type().Equal(ValueType) {
		return gc.unboxInt(v)
	}
	return v
}

func (gc *GenContext) lowerIf(s *ast.IfStmt) error {
	mergeBlock := gc.Func.NewBlock("if.merge")
	if err := gc.lowerIfClause(s.If, s.Elif, s.Else, mergeBlock); err != nil {
		return err
	}
	gc.Block = mergeBlock
	return nil
}

func (gc *GenContext) lowerIfClause(clause ast.IfClause, elifs []ast.IfClause, elseBody []ast.Stmt, merge *ir.Block) error {
	condT := gc.resolvedType(clause.Cond)
	cond := gc.coerceTo(gc.lowerExpr(clause.Cond), types.I1, condT)

	thenBlock := gc.Func.NewBlock("if.then")
	var elseBlock *ir.Block
	if len(elifs) > 0 {
		elseBlock = gc.Func.NewBlock("if.elif")
	} else if elseBody != nil {
		elseBlock = gc.Func.NewBlock("if.else")
	} else {
		elseBlock = merge
	}
	gc.Block.NewCondBr(cond, thenBlock, elseBlock)

	gc.Block = thenBlock
	for _, stmt := range clause.Body {
		if err := gc.lowerStmt(stmt); err != nil {
			return err
		}
	}
	if gc.Block.Term == nil {
		gc.Block.NewBr(merge)
	}

	if len(elifs) > 0 {
		gc.Block = elseBlock
		return gc.lowerIfClause(elifs[0], elifs[1:], elseBody, merge)
	}
	if elseBody != nil {
		gc.Block = elseBlock
		for _, stmt := range elseBody {
			if err := gc.lowerStmt(stmt); err != nil {
				return err
			}
		}
		if gc.Block.Term == nil {
			gc.Block.NewBr(merge)
		}
	}
	return nil
}

func (gc *GenContext) lowerWhile(s *ast.WhileStmt) error {
	header := gc.Func.NewBlock("while.header")
	body := gc.Func.NewBlock("while.body")
	exit := gc.Func.NewBlock("while.exit")

	gc.Block.NewBr(header)
	gc.Block = header
	condT := gc.resolvedType(s.Cond)
	cond := gc.coerceTo(gc.lowerExpr(s.Cond), types.I1, condT)
	gc.Block.NewCondBr(cond, body, exit)

	gc.Block = body
	gc.Loops.enterLoop(loopFrame{header: header, body: body, continueBlock: header, exit: exit})
	for _, stmt := range s.Body {
		if err := gc.lowerStmt(stmt); err != nil {
			return err
		}
	}
	gc.Loops.exitLoop()
	if gc.Block.Term == nil {
		gc.Block.NewBr(header)
	}
	gc.Block = exit
	return nil
}

func (gc *GenContext) lowerLoop(s *ast.LoopStmt) error {
	header := gc.Func.NewBlock("loop.header")
	exit := gc.Func.NewBlock("loop.exit")

	gc.Block.NewBr(header)
	gc.Block = header
	gc.Loops.enterLoop(loopFrame{header: header, body: header, continueBlock: header, exit: exit})
	for _, stmt := range s.Body {
		if err := gc.lowerStmt(stmt); err != nil {
			return err
		}
	}
	gc.Loops.exitLoop()
	if gc.Block.Term == nil {
		gc.Block.NewBr(header)
	}
	gc.Block = exit
	return nil
}

// lowerFor implements both range-for and iterable-for (spec §4.6 "For
// (range)" / "For (iterable)"), unified here as a counted 0..N loop since
// the checker has already resolved the element type; an "executed" alloca
// tracks whether the body ran at least once, for the optional else-clause.
func (gc *GenContext) lowerFor(s *ast.ForStmt) error {
	executed := gc.allocaSlot(types.I1, "executed")
	gc.Block.NewStore(constant.NewInt(types.I1, 0), executed)

	var start, end narvalValue
	inclusive := false
	if s.Range != nil {
		start = gc.lowerExpr(s.Range.Start)
		end = gc.lowerExpr(s.Range.End)
		inclusive = s.Range.Inclusive
	} else {
		start = constant.NewInt(types.I32, 0)
		end = gc.forIterableBound(s.Iterable)
	}

	idx := gc.allocaSlot(types.I32, "i")
	gc.Block.NewStore(gc.coerceTo(start, types.I32, narvaltypes.Int), idx)

	header := gc.Func.NewBlock("for.header")
	body := gc.Func.NewBlock("for.body")
	step := gc.Func.NewBlock("for.step")
	exit := gc.Func.NewBlock("for.exit")

	gc.Block.NewBr(header)
	gc.Block = header
	cur := gc.Block.NewLoad(types.I32, idx)
	var cond narvalValue
	if inclusive {
		cond = gc.Block.NewICmp(enum.IPredSLE, cur, end)
	} else {
		cond = gc.Block.NewICmp(enum.IPredSLT, cur, end)
	}
	gc.Block.NewCondBr(cond, body, exit)

	gc.Block = body
	gc.Block.NewStore(constant.NewInt(types.I1, 1), executed)
	gc.Symbols.pushScope()
	idxVal := gc.Block.NewLoad(types.I32, idx)
	switch {
	case len(s.Bindings) == 1 && s.Range != nil:
		gc.defineLoopBinding(s.Bindings[0], idxVal, narvaltypes.Int)
	case len(s.Bindings) == 1:
		elemVal, elemType := gc.forElementAt(s.Iterable, idxVal)
		gc.defineLoopBinding(s.Bindings[0], elemVal, elemType)
	case len(s.Bindings) == 2 && s.Range != nil:
		gc.defineLoopBinding(s.Bindings[0], idxVal, narvaltypes.Int)
		gc.defineLoopBinding(s.Bindings[1], idxVal, narvaltypes.Int)
	case len(s.Bindings) == 2:
		gc.defineLoopBinding(s.Bindings[0], idxVal, narvaltypes.Int)
		elemVal, elemType := gc.forElementAt(s.Iterable, idxVal)
		gc.defineLoopBinding(s.Bindings[1], elemVal, elemType)
	}

	gc.Loops.enterLoop(loopFrame{header: header, body: body, continueBlock: step, exit: exit})
	for _, stmt := range s.Body {
		if err := gc.lowerStmt(stmt); err != nil {
			return err
		}
	}
	gc.Loops.exitLoop()
	gc.Symbols.popScope()
	if gc.Block.Term == nil {
		gc.Block.NewBr(step)
	}

	step.NewStore(step.NewAdd(step.NewLoad(types.I32, idx), constant.NewInt(types.I32, 1)), idx)
	step.NewBr(header)

	gc.Block = exit
	if s.Else != nil {
		elseBlock := gc.Func.NewBlock("for.else")
		afterElse := gc.Func.NewBlock("for.after")
		notExecuted := gc.Block.NewICmp(enum.IPredEQ, gc.Block.NewLoad(types.I1, executed), constant.NewInt(types.I1, 0))
		gc.Block.NewCondBr(notExecuted, elseBlock, afterElse)
		gc.Block = elseBlock
		for _, stmt := range s.Else {
			if err := gc.lowerStmt(stmt); err != nil {
				return err
			}
		}
		if gc.Block.Term == nil {
			gc.Block.NewBr(afterElse)
		}
		gc.Block = afterElse
	}
	return nil
}

func (gc *GenContext) defineLoopBinding(name string, v narvalValue, t narvaltypes.Type) {
	llType := lowerType(t)
	alloca := gc.allocaSlot(llType, name)
	gc.Block.NewStore(v, alloca)
	gc.Symbols.define(name, &symbolEntry{storage: alloca, llvmType: llType, sourceType: t, allocated: true})
}

// forIterableBound computes the exclusive upper bound of a for-iterable loop
// by detecting the iterator shape (spec §4.6 "For (iterable)"): a bare
// integer count is used directly; a runtime Value(TAG_ARRAY)/Value(TAG_
// VECTOR) queries its own length; a string uses its runtime length (the
// narval analogue of strlen).
func (gc *GenContext) forIterableBound(src ast.Expr) narvalValue {
	srcType := gc.resolvedType(src)
	v := gc.lowerExpr(src)

	if v.Type().Equal(types.I32) {
		return v
	}

	switch srcType.(type) {
	case *narvaltypes.Array:
		selfSlot := gc.allocaSlot(ValueType, "bself")
		gc.Block.NewStore(gc.coerceTo(v, ValueType, srcType), selfSlot)
		return gc.Block.NewCall(gc.runtime.arrayLength, selfSlot)
	case *narvaltypes.Vector:
		selfSlot := gc.allocaSlot(ValueType, "bself")
		gc.Block.NewStore(gc.coerceTo(v, ValueType, srcType), selfSlot)
		return gc.Block.NewCall(gc.runtime.vectorLength, selfSlot)
	}
	if srcType == narvaltypes.String || v.Type().Equal(types.I8Ptr) {
		s := gc.coerceTo(v, types.I8Ptr, srcType)
		return gc.Block.NewCall(gc.runtime.stringLength, s)
	}
	return constant.NewInt(types.I32, 0)
}

// forElementAt fetches the element at idx out of the iterable src, returning
// it already coerced to its real resolved element type, along with that type
// so the caller can register the loop binding with the correct low-level
// representation (spec §4.6 "For (iterable)": 2-binding form binds
// `(index, element)`).
func (gc *GenContext) forElementAt(src ast.Expr, idx narvalValue) (narvalValue, narvaltypes.Type) {
	srcType := gc.resolvedType(src)
	containerVal := gc.lowerExpr(src)

	switch ct := srcType.(type) {
	case *narvaltypes.Array:
		elemType := gc.Checker.UnificationContext().Resolve(ct.Elem)
		selfSlot := gc.allocaSlot(ValueType, "fself")
		gc.Block.NewStore(gc.coerceTo(containerVal, ValueType, srcType), selfSlot)
		out := gc.allocaSlot(ValueType, "felem")
		gc.Block.NewCall(gc.runtime.arrayGetIndex, out, selfSlot, idx)
		boxed := gc.Block.NewLoad(ValueType, out)
		return gc.coerceTo(boxed, lowerType(elemType), elemType), elemType
	case *narvaltypes.Vector:
		elemType := gc.Checker.UnificationContext().Resolve(ct.Elem)
		selfSlot := gc.allocaSlot(ValueType, "fself")
		gc.Block.NewStore(gc.coerceTo(containerVal, ValueType, srcType), selfSlot)
		out := gc.allocaSlot(ValueType, "felem")
		gc.Block.NewCall(gc.runtime.vectorGet, out, selfSlot, idx)
		boxed := gc.Block.NewLoad(ValueType, out)
		return gc.coerceTo(boxed, lowerType(elemType), elemType), elemType
	case *narvaltypes.Basic:
		if ct == narvaltypes.String {
			s := gc.coerceTo(containerVal, types.I8Ptr, srcType)
			return gc.stringCharAt(s, idx), narvaltypes.String
		}
	}
	// Any other iterable type (the checker also accepts maps and tuples)
	// gets no element fetch here: the loop binding receives the index.
	return idx, narvaltypes.Int
}

// stringCharAt extracts the byte at idx from s and rewraps it as a
// single-character, nul-terminated narval string in a fresh stack slot.
func (gc *GenContext) stringCharAt(s narvalValue, idx narvalValue) narvalValue {
	charPtr := gc.Block.NewGetElementPtr(types.I8, s, idx)
	ch := gc.Block.NewLoad(types.I8, charPtr)

	bufType := types.NewArray(2, types.I8)
	buf := gc.allocaSlot(bufType, "chbuf")
	zero := constant.NewInt(types.I32, 0)
	one := constant.NewInt(types.I32, 1)
	gc.Block.NewStore(ch, gc.Block.NewGetElementPtr(bufType, buf, zero, zero))
	gc.Block.NewStore(constant.NewInt(types.I8, 0), gc.Block.NewGetElementPtr(bufType, buf, zero, one))
	return gc.Block.NewGetElementPtr(bufType, buf, zero, zero)
}

func (gc *GenContext) lowerReturn(s *ast.ReturnStmt) error {
	if s.Value == nil {
		gc.Block.NewRet(nil)
		return nil
	}
	srcType := gc.resolvedType(s.Value)
	v := gc.lowerExpr(s.Value)
	want := gc.Func.Sig.RetType
	v = gc.coerceTo(v, want, srcType)
	gc.Block.NewRet(v)
	return nil
}

// lowerMatch lowers a match statement to a linear chain of test blocks
// (spec §4.6 "Match").
func (gc *GenContext) lowerMatch(s *ast.MatchStmt) error {
	targetType := gc.resolvedType(s.Target)
	targetVal := gc.lowerExpr(s.Target)
	targetSlot := gc.allocaSlot(targetVal.Type(), "match.target")
	gc.Block.NewStore(targetVal, targetSlot)

	merge := gc.Func.NewBlock("match.merge")
	for _, cs := range s.Cases {
		testBlock := gc.Block
		thenBlock := gc.Func.NewBlock("match.then")
		nextTest := gc.Func.NewBlock("match.next")

		loaded := testBlock.NewLoad(targetVal.Type(), targetSlot)
		cond := gc.lowerMatchCond(testBlock, cs.Pattern, loaded, targetType)
		if cond == nil {
			testBlock.NewBr(thenBlock)
		} else {
			testBlock.NewCondBr(cond, thenBlock, nextTest)
		}

		gc.Block = thenBlock
		for _, stmt := range cs.Body {
			if err := gc.lowerStmt(stmt); err != nil {
				return err
			}
		}
		if gc.Block.Term == nil {
			gc.Block.NewBr(merge)
		}
		gc.Block = nextTest
	}
	if gc.Block.Term == nil {
		gc.Block.NewBr(merge)
	}
	gc.Block = merge
	return nil
}

func (gc *GenContext) lowerMatchCond(b *ir.Block, p *ast.MatchPattern, target narvalValue, targetType narvaltypes.Type) narvalValue {
	switch {
	case p.Wildcard:
		return nil
	case p.Range != nil:
		startV := gc.lowerExpr(p.Range.Start)
		endV := gc.lowerExpr(p.Range.End)
		lo := b.NewICmp(enum.IPredSGE, target, startV)
		var hi narvalValue
		if p.Range.Inclusive {
			hi = b.NewICmp(enum.IPredSLE, target, endV)
		} else {
			hi = b.NewICmp(enum.IPredSLT, target, endV)
		}
		return b.NewAnd(lo, hi)
	case p.Literal != nil:
		litV := gc.lowerExpr(p.Literal)
		return b.NewICmp(enum.IPredEQ, target, litV)
	default:
		var combined narvalValue
		for _, sub := range p.Or {
			c := gc.lowerMatchCond(b, sub, target, targetType)
			if c == nil {
				return nil
			}
			if combined == nil {
				combined = c
			} else {
				combined = b.NewOr(combined, c)
			}
		}
		return combined
	}
}
