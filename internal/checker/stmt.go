package checker

import (
	"github.com/narval-lang/narval/internal/ast"
	"github.com/narval-lang/narval/internal/types"
)

// checkStmt type-checks a single statement (spec §4.3 "check_node").
func (c *Checker) checkStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.Declaration:
		c.checkDeclaration(s)
	case *ast.FuncDef:
		c.checkFuncDef(s)
	case *ast.ImportStmt:
		c.checkImportStmt(s)
	case *ast.IfStmt:
		c.checkIfStmt(s)
	case *ast.ForStmt:
		c.checkForStmt(s)
	case *ast.WhileStmt:
		c.InferExpr(s.Cond)
		if err := c.uc.Unify(c.InferExpr(s.Cond), types.Bool, false); err != nil {
			c.errorAt(s, "while condition must be bool: %s", err)
		}
		c.checkBlock(s.Body)
	case *ast.LoopStmt:
		c.checkBlock(s.Body)
	case *ast.MatchStmt:
		c.checkMatchStmt(s)
	case *ast.ReturnStmt:
		c.checkReturnStmt(s)
	case *ast.BreakStmt, *ast.ContinueStmt:
		// no type obligations
	case *ast.ExprStmt:
		c.InferExpr(s.X)
	default:
		c.errorAt(stmt, "internal: unhandled statement kind %T", stmt)
	}
}

func (c *Checker) checkBlock(body []ast.Stmt) {
	c.PushScope()
	for _, s := range body {
		c.checkStmt(s)
	}
	c.PopScope()
}

func (c *Checker) checkDeclaration(s *ast.Declaration) {
	rhsT := c.InferExpr(s.Value)
	var declT types.Type
	if s.Type == ast.AutomaticType {
		declT = rhsT
	} else {
		declT = c.gettyptr(s.Type, s.Pos)
		if err := c.uc.Unify(declT, rhsT, true); err != nil {
			c.errorAt(s, "cannot initialize %s (%s) with %s: %s", s.Name, declT, rhsT, err)
		}
	}
	c.currentScope().Define(s.Name, declT)
	c.Types[s.Name] = declT
}

func (c *Checker) checkFuncDef(s *ast.FuncDef) {
	paramTypes := make([]types.Type, len(s.Params))
	c.PushScope()
	for i, p := range s.Params {
		var pt types.Type
		if p.Type != "" {
			pt = c.gettyptr(p.Type, s.Pos)
		} else {
			pt = c.uc.Fresh()
		}
		paramTypes[i] = pt
		c.currentScope().Define(p.Name, pt)
	}
	retT := c.gettyptr(s.ReturnType, s.Pos)
	prevReturn := c.currentReturnType
	c.currentReturnType = retT
	for _, stmt := range s.Body {
		c.checkStmt(stmt)
	}
	c.currentReturnType = prevReturn
	c.PopScope()

	fnType := &types.Def{Params: paramTypes, Return: retT}
	generalized := types.Generalize(c.uc, fnType, c.envFreeVars())
	c.currentScope().Define(s.Name, generalized)
	c.Types[s.Name] = generalized
}

func (c *Checker) checkIfStmt(s *ast.IfStmt) {
	c.checkCondAndBlock(s.If.Cond, s.If.Body)
	for _, clause := range s.Elif {
		c.checkCondAndBlock(clause.Cond, clause.Body)
	}
	if s.Else != nil {
		c.checkBlock(s.Else)
	}
}

func (c *Checker) checkCondAndBlock(cond ast.Expr, body []ast.Stmt) {
	t := c.InferExpr(cond)
	if err := c.uc.Unify(t, types.Bool, false); err != nil {
		c.errorAt(cond, "condition must be bool: %s", err)
	}
	c.checkBlock(body)
}

func (c *Checker) checkForStmt(s *ast.ForStmt) {
	c.PushScope()
	var elemT types.Type
	var srcT types.Type
	if s.Range != nil {
		c.InferExpr(s.Range)
		elemT = c.uc.Resolve(c.InferExpr(s.Range.Start))
		srcT = elemT
	} else {
		srcT = c.uc.Resolve(c.InferExpr(s.Iterable))
		elemT = c.elementTypeOf(srcT, s.Iterable)
	}
	c.bindComprehensionTargets(s.Bindings, elemT, srcT)
	for _, stmt := range s.Body {
		c.checkStmt(stmt)
	}
	c.PopScope()
	if s.Else != nil {
		c.checkBlock(s.Else)
	}
}

func (c *Checker) checkMatchStmt(s *ast.MatchStmt) {
	targetT := c.InferExpr(s.Target)
	for _, cs := range s.Cases {
		c.checkMatchPattern(cs.Pattern, targetT)
		c.checkBlock(cs.Body)
	}
}

func (c *Checker) checkMatchPattern(p *ast.MatchPattern, targetT types.Type) {
	switch {
	case p.Wildcard:
		return
	case p.Range != nil:
		startT := c.InferExpr(p.Range.Start)
		endT := c.InferExpr(p.Range.End)
		if err := c.uc.Unify(startT, endT, false); err != nil {
			c.errorAt(p.Range, "range pattern bounds mismatch: %s", err)
		}
		resolved := c.uc.Resolve(startT)
		if !resolved.Equals(types.Int) && !resolved.Equals(types.String) {
			c.errorAt(p.Range, "range pattern bounds must be int or string")
		}
		if resolved.Equals(types.String) {
			if lit, ok := p.Range.Start.(*ast.StringLiteral); ok && len(lit.Value) != 1 {
				c.errorAt(p.Range, "string range pattern bounds must be a single character")
			}
			if lit, ok := p.Range.End.(*ast.StringLiteral); ok && len(lit.Value) != 1 {
				c.errorAt(p.Range, "string range pattern bounds must be a single character")
			}
		}
		if startLit, ok1 := constIntOf(p.Range.Start); ok1 {
			if endLit, ok2 := constIntOf(p.Range.End); ok2 && startLit > endLit {
				c.errorAt(p.Range, "range pattern start must not exceed end")
			}
		}
		if err := c.uc.Unify(targetT, resolved, true); err != nil {
			c.errorAt(p.Range, "pattern does not match target type: %s", err)
		}
	case p.Literal != nil:
		litT := c.InferExpr(p.Literal)
		if err := c.uc.Unify(targetT, litT, true); err != nil {
			c.errorAt(p.Literal, "pattern does not match target type: %s", err)
		}
	default:
		for _, sub := range p.Or {
			c.checkMatchPattern(sub, targetT)
		}
	}
}

func constIntOf(e ast.Expr) (int64, bool) {
	lit, ok := e.(*ast.NumericLiteral)
	if !ok || lit.IsFloat {
		return 0, false
	}
	var v int64
	for _, ch := range lit.Lexeme {
		if ch < '0' || ch > '9' {
			return 0, false
		}
		v = v*10 + int64(ch-'0')
	}
	return v, true
}

func (c *Checker) checkReturnStmt(s *ast.ReturnStmt) {
	want := c.currentReturnType
	if want == nil {
		want = types.Void
	}
	var got types.Type = types.Void
	if s.Value != nil {
		got = c.InferExpr(s.Value)
	}
	if err := c.uc.Unify(want, got, true); err != nil {
		c.errorAt(s, "return type mismatch: %s", err)
	}
}
