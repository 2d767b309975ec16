package ir

import (
	"strconv"
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"

	"github.com/narval-lang/narval/internal/ast"
	narvaltypes "github.com/narval-lang/narval/internal/types"
)

// lowerExpr lowers expr and returns its produced low-level value (spec §4.6
// "Per-expression lowering"). It never itself touches the evaluation stack;
// callers that need the stack discipline described in the spec (codegen
// walks the AST and each expression pushes its result) push/pop around it.
func (gc *GenContext) lowerExpr(expr ast.Expr) narvalValue {
	switch e := expr.(type) {
	case *ast.NumericLiteral:
		return lowerNumericLiteral(e)
	case *ast.StringLiteral:
		return gc.lowerStringLiteral(e.Value)
	case *ast.BooleanLiteral:
		v := int64(0)
		if e.Value {
			v = 1
		}
		return constant.NewInt(types.I1, v)
	case *ast.Identifier:
		return gc.lowerIdentifier(e)
	case *ast.BinaryExpr:
		return gc.lowerBinary(e)
	case *ast.UnaryMinusExpr:
		return gc.lowerUnaryMinus(e)
	case *ast.LogicalNotExpr:
		operand := gc.coerceTo(gc.lowerExpr(e.Operand), types.I1, narvaltypes.Bool)
		return gc.Block.NewXor(operand, constant.NewInt(types.I1, 1))
	case *ast.IncDecExpr:
		return gc.lowerIncDec(e)
	case *ast.CallExpr:
		return gc.lowerCall(e)
	case *ast.MemberExpr:
		return gc.lowerMemberAsValue(e)
	case *ast.AccessExpr:
		return gc.lowerAccess(e)
	case *ast.AssignmentExpr:
		return gc.lowerAssignment(e)
	case *ast.VectorExpr:
		return gc.lowerVectorLiteral(e)
	case *ast.ArrayExpr:
		return gc.lowerArrayLiteral(e)
	case *ast.TupleExpr:
		return gc.lowerTupleLiteral(e)
	case *ast.MapExpr:
		return gc.lowerMapLiteral(e)
	case *ast.RangeExpr:
		return gc.lowerRangeAsVector(e)
	case *ast.ConditionalExpr:
		return gc.lowerConditional(e)
	}
	return constant.NewUndef(ValueType)
}

func lowerNumericLiteral(e *ast.NumericLiteral) narvalValue {
	if e.IsFloat {
		f, _ := strconv.ParseFloat(e.Lexeme, 64)
		return constant.NewFloat(types.Double, f)
	}
	lex := e.Lexeme
	base := 10
	switch {
	case strings.HasPrefix(lex, "0b") || strings.HasPrefix(lex, "0B"):
		base, lex = 2, lex[2:]
	case strings.HasPrefix(lex, "0o") || strings.HasPrefix(lex, "0O"):
		base, lex = 8, lex[2:]
	case strings.HasPrefix(lex, "0x") || strings.HasPrefix(lex, "0X"):
		base, lex = 16, lex[2:]
	}
	n, _ := strconv.ParseInt(lex, base, 64)
	return constant.NewInt(types.I32, n)
}

func (gc *GenContext) lowerStringLiteral(s string) narvalValue {
	g := gc.internString(s)
	return gc.Block.NewGetElementPtr(g.ContentType, g,
		constant.NewInt(types.I32, 0), constant.NewInt(types.I32, 0))
}

func (gc *GenContext) lowerIdentifier(e *ast.Identifier) narvalValue {
	entry, ok := gc.Symbols.lookup(e.Name)
	if !ok {
		return constant.NewUndef(ValueType)
	}
	if entry.allocated {
		return gc.Block.NewLoad(entry.llvmType, entry.storage)
	}
	return entry.storage
}

func (gc *GenContext) lowerUnaryMinus(e *ast.UnaryMinusExpr) narvalValue {
	srcType := gc.resolvedType(e.Operand)
	v := gc.lowerExpr(e.Operand)
	if v.Type().Equal(types.Double) {
		return gc.Block.NewFNeg(v)
	}
	if v.Type().Equal(ValueType) {
		v = gc.coerceTo(v, lowerType(srcType), srcType)
		if v.Type().Equal(types.Double) {
			return gc.Block.NewFNeg(v)
		}
	}
	return gc.Block.NewSub(constant.NewInt(types.I32, 0), v)
}

func (gc *GenContext) lowerBinary(e *ast.BinaryExpr) narvalValue {
	lt := gc.resolvedType(e.Left)
	rt := gc.resolvedType(e.Right)

	switch e.Op {
	case "&&", "||":
		return gc.lowerShortCircuit(e)
	}

	l := gc.coerceTo(gc.lowerExpr(e.Left), lowerType(lt), lt)
	r := gc.coerceTo(gc.lowerExpr(e.Right), lowerType(rt), rt)

	isFloat := l.Type().Equal(types.Double) || r.Type().Equal(types.Double)
	if isFloat {
		l = gc.toFloat(l)
		r = gc.toFloat(r)
	}
	if l.Type().Equal(types.I8Ptr) || r.Type().Equal(types.I8Ptr) {
		switch e.Op {
		case "+":
			return gc.Block.NewCall(gc.runtime.stringConcat, l, r)
		case "==":
			return gc.Block.NewICmp(enum.IPredEQ, l, r)
		case "!=":
			return gc.Block.NewICmp(enum.IPredNE, l, r)
		}
	}

	switch e.Op {
	case "+":
		if isFloat {
			return gc.Block.NewFAdd(l, r)
		}
		return gc.Block.NewAdd(l, r)
	case "-":
		if isFloat {
			return gc.Block.NewFSub(l, r)
		}
		return gc.Block.NewSub(l, r)
	case "*":
		if isFloat {
			return gc.Block.NewFMul(l, r)
		}
		return gc.Block.NewMul(l, r)
	case "/":
		if isFloat {
			return gc.Block.NewFDiv(l, r)
		}
		return gc.Block.NewSDiv(l, r)
	case "//":
		return gc.Block.NewSDiv(l, r)
	case "%":
		if isFloat {
			return gc.Block.NewFRem(l, r)
		}
		return gc.Block.NewSRem(l, r)
	case "**":
		return gc.lowerPow(l, r, isFloat)
	case "==":
		if isFloat {
			return gc.Block.NewFCmp(enum.FPredOEQ, l, r)
		}
		return gc.Block.NewICmp(enum.IPredEQ, l, r)
	case "!=":
		if isFloat {
			return gc.Block.NewFCmp(enum.FPredONE, l, r)
		}
		return gc.Block.NewICmp(enum.IPredNE, l, r)
	case "<":
		if isFloat {
			return gc.Block.NewFCmp(enum.FPredOLT, l, r)
		}
		return gc.Block.NewICmp(enum.IPredSLT, l, r)
	case "<=":
		if isFloat {
			return gc.Block.NewFCmp(enum.FPredOLE, l, r)
		}
		return gc.Block.NewICmp(enum.IPredSLE, l, r)
	case ">":
		if isFloat {
			return gc.Block.NewFCmp(enum.FPredOGT, l, r)
		}
		return gc.Block.NewICmp(enum.IPredSGT, l, r)
	case ">=":
		if isFloat {
			return gc.Block.NewFCmp(enum.FPredOGE, l, r)
		}
		return gc.Block.NewICmp(enum.IPredSGE, l, r)
	}
	return constant.NewUndef(types.I32)
}

func (gc *GenContext) toFloat(v narvalValue) narvalValue {
	if v.Type().Equal(types.Double) {
		return v
	}
	return gc.Block.NewSIToFP(v, types.Double)
}

// lowerPow emits repeated multiplication for a compile-time-known
// non-negative integer exponent (zero yields the constant 1); every other
// shape (a negative or non-constant integer exponent, or any float exponent)
// calls the runtime's ipow/fpow helper (spec §4.3 "**").
func (gc *GenContext) lowerPow(base, exp narvalValue, isFloat bool) narvalValue {
	if isFloat {
		return gc.Block.NewCall(gc.runtime.fpow, gc.toFloat(base), gc.toFloat(exp))
	}
	if c, ok := exp.(*constant.Int); ok && c.X.Sign() >= 0 {
		n := c.X.Int64()
		if n == 0 {
			return constant.NewInt(types.I32, 1)
		}
		acc := base
		for i := int64(1); i < n; i++ {
			acc = gc.Block.NewMul(acc, base)
		}
		return acc
	}
	return gc.Block.NewCall(gc.runtime.ipow, base, exp)
}

// lowerShortCircuit implements && / || with basic blocks so the unevaluated
// side truly never executes (spec §4.6 "Logical && / ||").
func (gc *GenContext) lowerShortCircuit(e *ast.BinaryExpr) narvalValue {
	lt := gc.resolvedType(e.Left)
	l := gc.coerceTo(gc.lowerExpr(e.Left), types.I1, lt)
	lhsBlock := gc.Block

	rhsBlock := gc.Func.NewBlock("logic.rhs")
	mergeBlock := gc.Func.NewBlock("logic.merge")

	if e.Op == "&&" {
		gc.Block.NewCondBr(l, rhsBlock, mergeBlock)
	} else {
		gc.Block.NewCondBr(l, mergeBlock, rhsBlock)
	}

	gc.Block = rhsBlock
	rt := gc.resolvedType(e.Right)
	r := gc.coerceTo(gc.lowerExpr(e.Right), types.I1, rt)
	rhsEnd := gc.Block
	gc.Block.NewBr(mergeBlock)

	gc.Block = mergeBlock
	phi := gc.Block.NewPhi(ir.NewIncoming(l, lhsBlock), ir.NewIncoming(r, rhsEnd))
	return phi
}

func (gc *GenContext) lowerIncDec(e *ast.IncDecExpr) narvalValue {
	ident, ok := e.Operand.(*ast.Identifier)
	if !ok {
		// Indexed-access inc/dec is not lowered: the element's current value
		// is returned and nothing is incremented or stored (see DESIGN.md).
		return gc.lowerExpr(e.Operand)
	}
	entry, ok := gc.Symbols.lookup(ident.Name)
	if !ok {
		return constant.NewUndef(types.I32)
	}
	old := gc.Block.NewLoad(entry.llvmType, entry.storage)
	delta := int64(1)
	if e.Op == "--" {
		delta = -1
	}
	var next narvalValue
	if entry.llvmType.Equal(types.Double) {
		next = gc.Block.NewFAdd(old, constant.NewFloat(types.Double, float64(delta)))
	} else {
		next = gc.Block.NewAdd(old, constant.NewInt(types.I32, delta))
	}
	gc.Block.NewStore(next, entry.storage)
	if e.Prefix {
		return next
	}
	return old
}

func (gc *GenContext) lowerCall(e *ast.CallExpr) narvalValue {
	if ident, ok := e.Callee.(*ast.Identifier); ok {
		switch ident.Name {
		case "write":
			return gc.lowerWriteCall(e, true)
		case "read":
			return gc.lowerReadCall(e)
		}
		if entry, ok := gc.Symbols.lookup(ident.Name); ok {
			if fn, ok := entry.storage.(*ir.Func); ok {
				args := make([]narvalValue, len(e.Args))
				for i, a := range e.Args {
					at := gc.resolvedType(a)
					want := types.Type(ValueType)
					if i < len(fn.Params) {
						want = fn.Params[i].Type()
					}
					args[i] = gc.coerceTo(gc.lowerExpr(a), want, at)
				}
				return gc.Block.NewCall(fn, args...)
			}
		}
	}
	if member, ok := e.Callee.(*ast.MemberExpr); ok {
		return gc.lowerMethodCall(member, e.Args)
	}
	return constant.NewUndef(ValueType)
}

func (gc *GenContext) lowerWriteCall(e *ast.CallExpr, newline bool) narvalValue {
	for _, a := range e.Args {
		at := gc.resolvedType(a)
		v := gc.boxValue(gc.coerceTo(gc.lowerExpr(a), lowerType(at), at), at)
		slot := gc.allocaSlot(ValueType, "wbox")
		gc.Block.NewStore(v, slot)
		if newline {
			gc.Block.NewCall(gc.runtime.rphWrite, slot)
		} else {
			gc.Block.NewCall(gc.runtime.rphWriteNoNl, slot)
		}
	}
	return constant.NewInt(types.I32, 0)
}

func (gc *GenContext) lowerReadCall(e *ast.CallExpr) narvalValue {
	if len(e.Args) > 0 {
		gc.lowerWriteCall(&ast.CallExpr{Args: e.Args[:1]}, false)
	}
	return gc.Block.NewCall(gc.runtime.rphRead)
}

func (gc *GenContext) lowerMethodCall(member *ast.MemberExpr, args []ast.Expr) narvalValue {
	objType := gc.Checker.UnificationContext().Resolve(gc.Checker.InferExpr(member.Object))
	objVal := gc.lowerExpr(member.Object)
	selfSlot := gc.allocaSlot(ValueType, "self")
	gc.Block.NewStore(gc.coerceTo(objVal, ValueType, objType), selfSlot)
	out := gc.allocaSlot(ValueType, "mout")

	boxedArg := func(i int) narvalValue {
		at := gc.resolvedType(args[i])
		v := gc.boxValue(gc.coerceTo(gc.lowerExpr(args[i]), lowerType(at), at), at)
		slot := gc.allocaSlot(ValueType, "arg")
		gc.Block.NewStore(v, slot)
		return slot
	}

	switch ot := objType.(type) {
	case *narvaltypes.Basic:
		if ot == narvaltypes.String {
			switch member.Property {
			case "toUpperCase":
				gc.Block.NewCall(gc.runtime.stringToUpperCase, out, selfSlot)
			case "replace":
				gc.Block.NewCall(gc.runtime.stringReplace, out, selfSlot, boxedArg(0), boxedArg(1))
			case "includes":
				argAt := gc.resolvedType(args[0])
				boxedVal := gc.boxValue(gc.coerceTo(gc.lowerExpr(args[0]), lowerType(argAt), argAt), argAt)
				gc.Block.NewCall(gc.runtime.stringIncludes, out, selfSlot, boxedVal)
			}
		}
	case *narvaltypes.Vector:
		switch member.Property {
		case "push":
			gc.Block.NewCall(gc.runtime.vectorPush, out, selfSlot, boxedArg(0))
		case "pop":
			gc.Block.NewCall(gc.runtime.vectorPop, out, selfSlot)
		case "get":
			idx := gc.coerceTo(gc.lowerExpr(args[0]), types.I32, narvaltypes.Int)
			gc.Block.NewCall(gc.runtime.vectorGet, out, selfSlot, idx)
		case "set":
			idx := gc.coerceTo(gc.lowerExpr(args[0]), types.I32, narvaltypes.Int)
			gc.Block.NewCall(gc.runtime.vectorSet, selfSlot, idx, boxedArg(1))
			return constant.NewInt(types.I32, 0)
		}
	case *narvaltypes.Array:
		switch member.Property {
		case "push":
			gc.Block.NewCall(gc.runtime.arrayPush, out, selfSlot, boxedArg(0))
		case "pop":
			gc.Block.NewCall(gc.runtime.arrayPop, out, selfSlot)
		}
	}
	return gc.Block.NewLoad(ValueType, out)
}

// lowerMemberAsValue handles a MemberExpr used as a value (not the callee
// of a CallExpr): tuples use `.N` to read a positional field (spec §4.6
// "tuples use .<int> to read a positional field"); anything else (a custom
// type's field, reached via the same node kind) just passes the object
// value through since the checker has already validated field existence.
func (gc *GenContext) lowerMemberAsValue(e *ast.MemberExpr) narvalValue {
	objType := gc.Checker.UnificationContext().Resolve(gc.Checker.InferExpr(e.Object))
	if tup, ok := objType.(*narvaltypes.Tuple); ok {
		if n, err := strconv.Atoi(e.Property); err == nil {
			objVal := gc.lowerExpr(e.Object)
			selfSlot := gc.allocaSlot(ValueType, "tself")
			gc.Block.NewStore(gc.coerceTo(objVal, ValueType, objType), selfSlot)
			out := gc.allocaSlot(ValueType, "tfield")
			gc.Block.NewCall(gc.runtime.tupleGet, out, selfSlot, constant.NewInt(types.I32, int64(n)))
			boxed := gc.Block.NewLoad(ValueType, out)
			if n >= 0 && n < len(tup.Elems) {
				elemType := gc.Checker.UnificationContext().Resolve(tup.Elems[n])
				return gc.coerceTo(boxed, lowerType(elemType), elemType)
			}
			return boxed
		}
	}
	return gc.lowerExpr(e.Object)
}

// constantIndexOf reports the compile-time integer value of e, used to
// resolve a tuple access's static element type when the index is a literal.
func constantIndexOf(e ast.Expr) (int, bool) {
	lit, ok := e.(*ast.NumericLiteral)
	if !ok || lit.IsFloat {
		return 0, false
	}
	n, err := strconv.ParseInt(lit.Lexeme, 10, 64)
	if err != nil {
		return 0, false
	}
	return int(n), true
}

func (gc *GenContext) lowerAccess(e *ast.AccessExpr) narvalValue {
	baseType := gc.Checker.UnificationContext().Resolve(gc.Checker.InferExpr(e.Base))
	baseVal := gc.lowerExpr(e.Base)

	switch bt := baseType.(type) {
	case *narvaltypes.Array:
		idxVal := gc.coerceTo(gc.lowerExpr(e.Index), types.I32, narvaltypes.Int)
		selfSlot := gc.allocaSlot(ValueType, "idxself")
		gc.Block.NewStore(gc.coerceTo(baseVal, ValueType, baseType), selfSlot)
		out := gc.allocaSlot(ValueType, "idxout")
		gc.Block.NewCall(gc.runtime.arrayGetIndex, out, selfSlot, idxVal)
		return gc.Block.NewLoad(ValueType, out)
	case *narvaltypes.Vector:
		idxVal := gc.coerceTo(gc.lowerExpr(e.Index), types.I32, narvaltypes.Int)
		selfSlot := gc.allocaSlot(ValueType, "idxself")
		gc.Block.NewStore(gc.coerceTo(baseVal, ValueType, baseType), selfSlot)
		out := gc.allocaSlot(ValueType, "idxout")
		gc.Block.NewCall(gc.runtime.vectorGet, out, selfSlot, idxVal)
		return gc.Block.NewLoad(ValueType, out)
	case *narvaltypes.Map:
		keyVal := gc.coerceTo(gc.lowerExpr(e.Index), types.I8Ptr, narvaltypes.String)
		selfSlot := gc.allocaSlot(ValueType, "mself")
		gc.Block.NewStore(gc.coerceTo(baseVal, ValueType, baseType), selfSlot)
		out := gc.allocaSlot(ValueType, "mout")
		gc.Block.NewCall(gc.runtime.mapGet, out, selfSlot, keyVal)
		boxed := gc.Block.NewLoad(ValueType, out)
		return gc.coerceTo(boxed, lowerType(bt.Value), bt.Value)
	case *narvaltypes.Tuple:
		idxVal := gc.coerceTo(gc.lowerExpr(e.Index), types.I32, narvaltypes.Int)
		selfSlot := gc.allocaSlot(ValueType, "tself")
		gc.Block.NewStore(gc.coerceTo(baseVal, ValueType, baseType), selfSlot)
		out := gc.allocaSlot(ValueType, "tout")
		gc.Block.NewCall(gc.runtime.tupleGet, out, selfSlot, idxVal)
		boxed := gc.Block.NewLoad(ValueType, out)
		if n, ok := constantIndexOf(e.Index); ok && n >= 0 && n < len(bt.Elems) {
			elemType := gc.Checker.UnificationContext().Resolve(bt.Elems[n])
			return gc.coerceTo(boxed, lowerType(elemType), elemType)
		}
		return boxed
	}
	return constant.NewUndef(ValueType)
}

func (gc *GenContext) lowerAssignment(e *ast.AssignmentExpr) narvalValue {
	rhsType := gc.resolvedType(e.Value)
	rhs := gc.lowerExpr(e.Value)

	if ident, ok := e.Target.(*ast.Identifier); ok {
		llType := lowerType(rhsType)
		v := gc.coerceTo(rhs, llType, rhsType)
		if entry, ok := gc.Symbols.lookup(ident.Name); ok && entry.allocated {
			v = gc.coerceTo(rhs, entry.llvmType, rhsType)
			gc.Block.NewStore(v, entry.storage)
			return v
		}
		alloca := gc.allocaSlot(llType, ident.Name)
		gc.Block.NewStore(v, alloca)
		gc.Symbols.define(ident.Name, &symbolEntry{storage: alloca, llvmType: llType, sourceType: rhsType, allocated: true})
		return v
	}

	if access, ok := e.Target.(*ast.AccessExpr); ok {
		baseType := gc.Checker.UnificationContext().Resolve(gc.Checker.InferExpr(access.Base))
		baseVal := gc.lowerExpr(access.Base)
		boxed := gc.boxValue(gc.coerceTo(rhs, lowerType(rhsType), rhsType), rhsType)
		slot := gc.allocaSlot(ValueType, "vbox")
		gc.Block.NewStore(boxed, slot)
		switch baseType.(type) {
		case *narvaltypes.Array:
			idxVal := gc.coerceTo(gc.lowerExpr(access.Index), types.I32, narvaltypes.Int)
			selfSlot := gc.allocaSlot(ValueType, "aself")
			gc.Block.NewStore(gc.coerceTo(baseVal, ValueType, baseType), selfSlot)
			gc.Block.NewCall(gc.runtime.arraySetIndex, selfSlot, idxVal, slot)
		case *narvaltypes.Vector:
			idxVal := gc.coerceTo(gc.lowerExpr(access.Index), types.I32, narvaltypes.Int)
			selfSlot := gc.allocaSlot(ValueType, "vself")
			gc.Block.NewStore(gc.coerceTo(baseVal, ValueType, baseType), selfSlot)
			gc.Block.NewCall(gc.runtime.vectorSet, selfSlot, idxVal, slot)
		case *narvaltypes.Map:
			keyVal := gc.coerceTo(gc.lowerExpr(access.Index), types.I8Ptr, narvaltypes.String)
			selfSlot := gc.allocaSlot(ValueType, "mself")
			gc.Block.NewStore(gc.coerceTo(baseVal, ValueType, baseType), selfSlot)
			gc.Block.NewCall(gc.runtime.mapSet, selfSlot, keyVal, boxed)
		case *narvaltypes.Tuple:
			idxVal := gc.coerceTo(gc.lowerExpr(access.Index), types.I32, narvaltypes.Int)
			selfSlot := gc.allocaSlot(ValueType, "tself")
			gc.Block.NewStore(gc.coerceTo(baseVal, ValueType, baseType), selfSlot)
			gc.Block.NewCall(gc.runtime.tupleSet, selfSlot, idxVal, slot)
		}
		return boxed
	}
	return constant.NewUndef(ValueType)
}

func (gc *GenContext) lowerVectorLiteral(e *ast.VectorExpr) narvalValue {
	out := gc.allocaSlot(ValueType, "vec")
	gc.Block.NewCall(gc.runtime.createVector, out, constant.NewInt(types.I32, int64(len(e.Elements))))
	for _, el := range e.Elements {
		et := gc.resolvedType(el)
		boxed := gc.boxValue(gc.coerceTo(gc.lowerExpr(el), lowerType(et), et), et)
		elemSlot := gc.allocaSlot(ValueType, "elem")
		gc.Block.NewStore(boxed, elemSlot)
		tmp := gc.allocaSlot(ValueType, "tmp")
		gc.Block.NewCall(gc.runtime.vectorPush, tmp, out, elemSlot)
	}
	return gc.Block.NewLoad(ValueType, out)
}

func (gc *GenContext) lowerArrayLiteral(e *ast.ArrayExpr) narvalValue {
	out := gc.allocaSlot(ValueType, "arr")
	gc.Block.NewCall(gc.runtime.createArray, out, constant.NewInt(types.I32, int64(len(e.Elements))))
	for i, el := range e.Elements {
		et := gc.resolvedType(el)
		boxed := gc.boxValue(gc.coerceTo(gc.lowerExpr(el), lowerType(et), et), et)
		elemSlot := gc.allocaSlot(ValueType, "elem")
		gc.Block.NewStore(boxed, elemSlot)
		gc.Block.NewCall(gc.runtime.arraySetIndex, out, constant.NewInt(types.I32, int64(i)), elemSlot)
	}
	return gc.Block.NewLoad(ValueType, out)
}

func (gc *GenContext) lowerTupleLiteral(e *ast.TupleExpr) narvalValue {
	out := gc.allocaSlot(ValueType, "tup")
	gc.Block.NewCall(gc.runtime.createTuple, out, constant.NewInt(types.I32, int64(len(e.Elements))))
	for i, el := range e.Elements {
		et := gc.resolvedType(el)
		boxed := gc.boxValue(gc.coerceTo(gc.lowerExpr(el), lowerType(et), et), et)
		elemSlot := gc.allocaSlot(ValueType, "elem")
		gc.Block.NewStore(boxed, elemSlot)
		gc.Block.NewCall(gc.runtime.tupleSet, out, constant.NewInt(types.I32, int64(i)), elemSlot)
	}
	return gc.Block.NewLoad(ValueType, out)
}

func (gc *GenContext) lowerMapLiteral(e *ast.MapExpr) narvalValue {
	out := gc.allocaSlot(ValueType, "map")
	gc.Block.NewCall(gc.runtime.createMap, out)
	for _, pair := range e.Pairs {
		keyStr, ok := pair.Key.(*ast.StringLiteral)
		var keyPtr narvalValue
		if ok {
			keyPtr = gc.lowerStringLiteral(keyStr.Value)
		} else {
			keyPtr = gc.coerceTo(gc.lowerExpr(pair.Key), types.I8Ptr, narvaltypes.String)
		}
		vt := gc.resolvedType(pair.Value)
		boxed := gc.boxValue(gc.coerceTo(gc.lowerExpr(pair.Value), lowerType(vt), vt), vt)
		gc.Block.NewCall(gc.runtime.mapSet, out, keyPtr, boxed)
	}
	return gc.Block.NewLoad(ValueType, out)
}

// lowerRangeAsVector lowers a range expression used as a value (spec §4.6
// "Range expression"): materialize start..end as a vector of boxed ints.
func (gc *GenContext) lowerRangeAsVector(e *ast.RangeExpr) narvalValue {
	startV := gc.coerceTo(gc.lowerExpr(e.Start), types.I32, narvaltypes.Int)
	endV := gc.coerceTo(gc.lowerExpr(e.End), types.I32, narvaltypes.Int)

	out := gc.allocaSlot(ValueType, "range")
	gc.Block.NewCall(gc.runtime.createVector, out, constant.NewInt(types.I32, 0))

	idx := gc.allocaSlot(types.I32, "ri")
	gc.Block.NewStore(startV, idx)

	header := gc.Func.NewBlock("range.header")
	body := gc.Func.NewBlock("range.body")
	exit := gc.Func.NewBlock("range.exit")

	gc.Block.NewBr(header)
	gc.Block = header
	cur := gc.Block.NewLoad(types.I32, idx)
	var cond narvalValue
	if e.Inclusive {
		cond = gc.Block.NewICmp(enum.IPredSLE, cur, endV)
	} else {
		cond = gc.Block.NewICmp(enum.IPredSLT, cur, endV)
	}
	gc.Block.NewCondBr(cond, body, exit)

	gc.Block = body
	cur2 := gc.Block.NewLoad(types.I32, idx)
	boxed := gc.boxValue(cur2, narvaltypes.Int)
	boxSlot := gc.allocaSlot(ValueType, "rbox")
	gc.Block.NewStore(boxed, boxSlot)
	tmp := gc.allocaSlot(ValueType, "rtmp")
	gc.Block.NewCall(gc.runtime.vectorPush, tmp, out, boxSlot)
	gc.Block.NewStore(gc.Block.NewAdd(cur2, constant.NewInt(types.I32, 1)), idx)
	gc.Block.NewBr(header)

	gc.Block = exit
	return gc.Block.NewLoad(ValueType, out)
}

func (gc *GenContext) lowerConditional(e *ast.ConditionalExpr) narvalValue {
	condT := gc.resolvedType(e.Cond)
	cond := gc.coerceTo(gc.lowerExpr(e.Cond), types.I1, condT)

	thenBlock := gc.Func.NewBlock("cond.then")
	elseBlock := gc.Func.NewBlock("cond.else")
	merge := gc.Func.NewBlock("cond.merge")
	gc.Block.NewCondBr(cond, thenBlock, elseBlock)

	gc.Block = thenBlock
	vt := gc.resolvedType(e.Value)
	v := gc.coerceTo(gc.lowerExpr(e.Value), ValueType, vt)
	thenEnd := gc.Block
	gc.Block.NewBr(merge)

	gc.Block = elseBlock
	ot := gc.resolvedType(e.Other)
	o := gc.coerceTo(gc.lowerExpr(e.Other), ValueType, ot)
	elseEnd := gc.Block
	gc.Block.NewBr(merge)

	gc.Block = merge
	return gc.Block.NewPhi(ir.NewIncoming(v, thenEnd), ir.NewIncoming(o, elseEnd))
}
