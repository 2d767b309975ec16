package checker

import (
	"github.com/narval-lang/narval/internal/ast"
	"github.com/narval-lang/narval/internal/types"
)

// InferExpr type-checks expr and returns its inferred type (spec §4.3
// "infer_expr"). On failure it records a diagnostic and returns Void so
// callers can keep walking without panicking.
func (c *Checker) InferExpr(expr ast.Expr) types.Type {
	t := c.inferExpr(expr)
	if t == nil {
		return types.Void
	}
	return t
}

func (c *Checker) inferExpr(expr ast.Expr) types.Type {
	switch e := expr.(type) {
	case *ast.NumericLiteral:
		if e.IsFloat {
			return types.Float
		}
		return types.Int
	case *ast.StringLiteral:
		return types.String
	case *ast.BooleanLiteral:
		return types.Bool
	case *ast.Identifier:
		return c.inferIdentifier(e)
	case *ast.BinaryExpr:
		return c.inferBinary(e)
	case *ast.UnaryMinusExpr:
		t := c.InferExpr(e.Operand)
		if !types.IsNumeric(c.uc.Resolve(t)) {
			if _, ok := c.uc.Resolve(t).(*types.TypeVar); !ok {
				c.errorAt(e, "unary '-' requires a numeric operand, found %s", t)
			}
		}
		return t
	case *ast.LogicalNotExpr:
		t := c.InferExpr(e.Operand)
		if err := c.uc.Unify(t, types.Bool, false); err != nil {
			c.errorAt(e, "'!' requires a bool operand: %s", err)
		}
		return types.Bool
	case *ast.IncDecExpr:
		return c.inferIncDec(e)
	case *ast.CallExpr:
		return c.inferCall(e)
	case *ast.MemberExpr:
		return c.inferMember(e)
	case *ast.AccessExpr:
		return c.inferAccess(e)
	case *ast.AssignmentExpr:
		return c.inferAssignment(e)
	case *ast.TupleExpr:
		elems := make([]types.Type, len(e.Elements))
		for i, el := range e.Elements {
			elems[i] = c.InferExpr(el)
		}
		return &types.Tuple{Elems: elems}
	case *ast.VectorExpr:
		for _, el := range e.Elements {
			c.InferExpr(el)
		}
		return &types.Vector{Elem: c.uc.Fresh()}
	case *ast.ArrayExpr:
		var elem types.Type = c.uc.Fresh()
		for _, el := range e.Elements {
			et := c.InferExpr(el)
			if err := c.uc.Unify(elem, et, true); err != nil {
				c.errorAt(el, "inconsistent array element type: %s", err)
			}
		}
		return &types.Array{Elem: elem}
	case *ast.MapExpr:
		var keyT types.Type = c.uc.Fresh()
		var valT types.Type = c.uc.Fresh()
		for _, p := range e.Pairs {
			kt := c.InferExpr(p.Key)
			vt := c.InferExpr(p.Value)
			if err := c.uc.Unify(keyT, kt, true); err != nil {
				c.errorAt(p, "inconsistent map key type: %s", err)
			}
			if err := c.uc.Unify(valT, vt, true); err != nil {
				c.errorAt(p, "inconsistent map value type: %s", err)
			}
		}
		return &types.Map{Key: keyT, Value: valT}
	case *ast.RangeExpr:
		startT := c.InferExpr(e.Start)
		endT := c.InferExpr(e.End)
		if err := c.uc.Unify(startT, endT, false); err != nil {
			c.errorAt(e, "range bounds must have the same type: %s", err)
		}
		resolved := c.uc.Resolve(startT)
		if !types.IsNumeric(resolved) && !resolved.Equals(types.String) {
			if _, ok := resolved.(*types.TypeVar); !ok {
				c.errorAt(e, "range bounds must be int or string, found %s", resolved)
			}
		}
		return types.Void
	case *ast.ListComprehensionExpr:
		c.PushScope()
		for _, gen := range e.Generators {
			srcT := c.uc.Resolve(c.InferExpr(gen.Source))
			elemT := c.elementTypeOf(srcT, gen.Source)
			c.bindComprehensionTargets(gen.Targets, elemT, srcT)
		}
		if e.Cond != nil {
			c.InferExpr(e.Cond)
		}
		c.InferExpr(e.Element)
		if e.Else != nil {
			c.InferExpr(e.Else)
		}
		c.PopScope()
		return &types.Vector{Elem: c.uc.Fresh()}
	case *ast.ConditionalExpr:
		c.InferExpr(e.Cond)
		vt := c.InferExpr(e.Value)
		ot := c.InferExpr(e.Other)
		if err := c.uc.Unify(vt, ot, true); err != nil {
			c.errorAt(e, "conditional expression branches disagree: %s", err)
		}
		return vt
	case *ast.KeyValueExpr:
		// Only reachable if a key-value pair escapes a map literal context;
		// the parser never produces this outside MapExpr.Pairs.
		return c.InferExpr(e.Value)
	}
	c.errorAt(expr, "internal: unhandled expression kind %T", expr)
	return types.Void
}

func (c *Checker) inferIdentifier(e *ast.Identifier) types.Type {
	t, ok := c.currentScope().Lookup(e.Name)
	if !ok {
		c.errorAt(e, "undefined identifier %q", e.Name)
		return c.uc.Fresh()
	}
	return types.Instantiate(c.uc, t)
}

func (c *Checker) inferBinary(e *ast.BinaryExpr) types.Type {
	lt := c.InferExpr(e.Left)
	rt := c.InferExpr(e.Right)

	switch e.Op {
	case "+", "-", "*", "/", "%", "//", "**":
		if e.Op == "+" && (c.uc.Resolve(lt).Equals(types.String) || c.uc.Resolve(rt).Equals(types.String)) {
			if err := c.uc.Unify(lt, types.String, false); err != nil {
				c.errorAt(e, "string concatenation requires string operands: %s", err)
			}
			if err := c.uc.Unify(rt, types.String, false); err != nil {
				c.errorAt(e, "string concatenation requires string operands: %s", err)
			}
			return types.String
		}
		if err := c.uc.Unify(lt, rt, true); err != nil {
			c.errorAt(e, "operator %q operand mismatch: %s", e.Op, err)
		}
		widened := c.widenNumeric(lt, rt)
		if e.Op == "//" {
			return types.Int
		}
		if e.Op == "**" && widened.Equals(types.Int) {
			// A non-integer exponent promotes to float; at this syntactic
			// level the exponent's constant-ness isn't known, so the
			// static result stays Int unless either operand already is
			// Float (handled by widenNumeric above).
			return types.Int
		}
		return widened
	case "==", "!=", "<", "<=", ">", ">=":
		if err := c.uc.Unify(lt, rt, true); err != nil {
			c.errorAt(e, "comparison operand mismatch: %s", err)
		}
		return types.Bool
	case "&&", "||":
		if err := c.uc.Unify(lt, types.Bool, false); err != nil {
			c.errorAt(e, "logical operator requires bool operands: %s", err)
		}
		if err := c.uc.Unify(rt, types.Bool, false); err != nil {
			c.errorAt(e, "logical operator requires bool operands: %s", err)
		}
		return types.Bool
	}
	c.errorAt(e, "internal: unknown binary operator %q", e.Op)
	return types.Void
}

// widenNumeric applies the Int -> Float promotion rule: if either resolved
// operand is Float, the result is Float.
func (c *Checker) widenNumeric(a, b types.Type) types.Type {
	ra, rb := c.uc.Resolve(a), c.uc.Resolve(b)
	if ra.Equals(types.Float) || rb.Equals(types.Float) {
		return types.Float
	}
	return types.Int
}

func (c *Checker) inferIncDec(e *ast.IncDecExpr) types.Type {
	if !isLValue(e.Operand) {
		c.errorAt(e, "%s requires an assignable operand", e.Op)
		return types.Void
	}
	t := c.InferExpr(e.Operand)
	resolved := c.uc.Resolve(t)
	if _, isVar := resolved.(*types.TypeVar); isVar {
		if _, ok := e.Operand.(*ast.AccessExpr); ok {
			if err := c.uc.Unify(t, types.Int, false); err != nil {
				if err2 := c.uc.Unify(t, types.Float, false); err2 != nil {
					c.errorAt(e, "%s requires a numeric operand", e.Op)
				}
			}
			return c.uc.Resolve(t)
		}
	}
	if !types.IsNumeric(resolved) {
		if _, ok := resolved.(*types.TypeVar); !ok {
			c.errorAt(e, "%s requires a numeric operand, found %s", e.Op, resolved)
		}
	}
	return resolved
}

func isLValue(e ast.Expr) bool {
	switch e.(type) {
	case *ast.Identifier, *ast.AccessExpr:
		return true
	default:
		return false
	}
}

func (c *Checker) inferCall(e *ast.CallExpr) types.Type {
	calleeT := c.InferExpr(e.Callee)
	argTs := make([]types.Type, len(e.Args))
	for i, a := range e.Args {
		argTs[i] = c.InferExpr(a)
	}
	retVar := c.uc.Fresh()
	want := &types.Def{Params: argTs, Return: retVar}
	if err := c.uc.Unify(calleeT, want, true); err != nil {
		c.errorAt(e, "call arguments do not match callee type: %s", err)
		return types.Void
	}
	return c.uc.Resolve(retVar)
}

func (c *Checker) inferMember(e *ast.MemberExpr) types.Type {
	objT := c.uc.Resolve(c.InferExpr(e.Object))
	switch t := objT.(type) {
	case *types.Tuple:
		// `.N` positional field access is parsed as a member only when N
		// is a bare identifier; numeric positional access is modeled via
		// AccessExpr at lower layers once lowering resolves the literal.
		return c.uc.Fresh()
	case *types.Custom:
		for cur := t; cur != nil; cur = cur.Base {
			for _, f := range cur.Fields {
				if f.Name == e.Property {
					return f.Type
				}
			}
		}
		c.errorAt(e, "type %s has no field %q", t.Name, e.Property)
		return c.uc.Fresh()
	case *types.Basic:
		if t == types.String {
			switch e.Property {
			case "toUpperCase":
				return &types.Def{Params: nil, Return: types.String}
			case "replace":
				return &types.Def{Params: []types.Type{types.String, types.String}, Return: types.String}
			case "includes":
				return &types.Def{Params: []types.Type{types.String}, Return: types.Bool}
			}
		}
	case *types.Vector:
		switch e.Property {
		case "push":
			return &types.Def{Params: []types.Type{c.uc.Fresh()}, Return: types.Void}
		case "pop":
			return &types.Def{Params: nil, Return: c.uc.Fresh()}
		case "get":
			return &types.Def{Params: []types.Type{types.Int}, Return: c.uc.Fresh()}
		case "set":
			return &types.Def{Params: []types.Type{types.Int, c.uc.Fresh()}, Return: types.Void}
		}
	case *types.Array:
		switch e.Property {
		case "push":
			return &types.Def{Params: []types.Type{t.Elem}, Return: types.Void}
		case "pop":
			return &types.Def{Params: nil, Return: t.Elem}
		}
	}
	return c.uc.Fresh()
}

func (c *Checker) inferAccess(e *ast.AccessExpr) types.Type {
	baseT := c.uc.Resolve(c.InferExpr(e.Base))
	idxT := c.InferExpr(e.Index)
	switch t := baseT.(type) {
	case *types.Array:
		if err := c.uc.Unify(idxT, types.Int, false); err != nil {
			c.errorAt(e, "array index must be int: %s", err)
		}
		return t.Elem
	case *types.Vector:
		if err := c.uc.Unify(idxT, types.Int, false); err != nil {
			c.errorAt(e, "vector index must be int: %s", err)
		}
		return c.uc.Fresh()
	case *types.Map:
		if err := c.uc.Unify(idxT, t.Key, false); err != nil {
			c.errorAt(e, "map key type mismatch: %s", err)
		}
		return t.Value
	case *types.Tuple:
		return c.uc.Fresh()
	case *types.Basic:
		if t == types.String {
			if err := c.uc.Unify(idxT, types.Int, false); err != nil {
				c.errorAt(e, "string index must be int: %s", err)
			}
			return types.String
		}
	}
	if _, ok := baseT.(*types.TypeVar); !ok {
		c.errorAt(e, "type %s is not indexable", baseT)
	}
	return c.uc.Fresh()
}

func (c *Checker) inferAssignment(e *ast.AssignmentExpr) types.Type {
	rhsT := c.InferExpr(e.Value)
	if !isLValue(e.Target) {
		c.errorAt(e, "assignment target must be an identifier or indexed access")
		return rhsT
	}
	if ident, ok := e.Target.(*ast.Identifier); ok {
		if _, bound := c.currentScope().Lookup(ident.Name); !bound {
			// First assignment to a new identifier acts as an implicit
			// declaration (spec §4.5 step 3 treats this uniformly).
			c.currentScope().Define(ident.Name, rhsT)
			c.Types[ident.Name] = rhsT
			return rhsT
		}
	}
	lhsT := c.InferExpr(e.Target)
	if err := c.uc.Unify(lhsT, rhsT, true); err != nil {
		c.errorAt(e, "cannot assign %s to %s: %s", rhsT, lhsT, err)
	}
	return lhsT
}

// elementTypeOf derives the per-iteration element type for a for-loop or
// comprehension generator over srcT (spec §4.3 "For loop").
func (c *Checker) elementTypeOf(srcT types.Type, src ast.Expr) types.Type {
	switch t := srcT.(type) {
	case *types.Array:
		return t.Elem
	case *types.Vector:
		return c.uc.Fresh()
	case *types.Basic:
		if t == types.String {
			return types.String
		}
	case *types.Map:
		return &types.Tuple{Elems: []types.Type{t.Key, t.Value}}
	case *types.Tuple:
		return c.uc.Fresh()
	}
	return c.uc.Fresh()
}

func (c *Checker) bindComprehensionTargets(targets []string, elemT, srcT types.Type) {
	if len(targets) == 1 {
		c.currentScope().Define(targets[0], elemT)
		return
	}
	// two bindings: (index, element) for sequences, (key, value) for maps
	if m, ok := srcT.(*types.Map); ok {
		c.currentScope().Define(targets[0], m.Key)
		c.currentScope().Define(targets[1], m.Value)
		return
	}
	c.currentScope().Define(targets[0], types.Int)
	c.currentScope().Define(targets[1], elemT)
}
