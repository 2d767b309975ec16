// Package parser implements the narval hand-written recursive-descent
// parser with precedence climbing for binary operators (spec §4.2).
package parser

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/narval-lang/narval/internal/ast"
	"github.com/narval-lang/narval/internal/lexer"
	"github.com/narval-lang/narval/internal/token"
)

// Error is a fatal parse error with enough context to render the teacher's
// diagnostic format (file:line:col, ERROR, message, underlined source line).
type Error struct {
	Pos     token.Position
	Message string
	Source  string
}

func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s: %s\n", e.Pos, color.RedString("ERROR"), e.Message)
	lines := strings.Split(e.Source, "\n")
	if e.Pos.Line >= 1 && e.Pos.Line <= len(lines) {
		line := lines[e.Pos.Line-1]
		sb.WriteString("  " + line + "\n")
		col := e.Pos.ColStart
		if col < 1 {
			col = 1
		}
		width := e.Pos.ColEnd - e.Pos.ColStart
		if width < 1 {
			width = 1
		}
		sb.WriteString("  " + strings.Repeat(" ", col-1) + color.CyanString(strings.Repeat("^", width)))
	}
	return sb.String()
}

// precedence levels, lowest to highest, per spec §4.2 table.
const (
	precLowest = iota
	precAssign     // = += -= *= /= //= **= %=   (right-assoc)
	precOr         // ||
	precAnd        // &&
	precEquality   // == !=
	precRelational // < <= > >=
	precAdditive   // + -
	precMultiplicative // * / % //
	precPower      // ** (right-assoc)
	precUnary      // unary - !, prefix ++ --
	precPostfix    // postfix ++ --, call, index, member
)

var binaryPrecedence = map[token.Kind]int{
	token.OR:      precOr,
	token.AND:     precAnd,
	token.EQ:      precEquality,
	token.NEQ:     precEquality,
	token.LT:      precRelational,
	token.LTE:     precRelational,
	token.GT:      precRelational,
	token.GTE:     precRelational,
	token.PLUS:    precAdditive,
	token.MINUS:   precAdditive,
	token.STAR:    precMultiplicative,
	token.SLASH:   precMultiplicative,
	token.PERCENT: precMultiplicative,
	token.IDIV:    precMultiplicative,
	token.POW:     precPower,
}

var assignOps = map[token.Kind]string{
	token.ASSIGN: "=", token.PLUSEQ: "+=", token.MINUSEQ: "-=",
	token.STAREQ: "*=", token.SLASHEQ: "/=", token.IDIVEQ: "//=",
	token.POWEQ: "**=", token.PERCENTEQ: "%=",
}

// Parser consumes a token stream and produces a Program. There is no error
// recovery: the first fault aborts parsing (spec §4.2).
type Parser struct {
	toks   []token.Token
	pos    int
	file   string
	source string
}

// Parse lexes and parses a source file in one step.
func Parse(source, file string) (*ast.Program, []token.ImportInfo, error) {
	toks, imports, err := lexer.Tokenize(source, file)
	if err != nil {
		return nil, nil, err
	}
	p := &Parser{toks: toks, file: file, source: source}
	prog, perr := p.parseProgram()
	if perr != nil {
		return nil, imports, perr
	}
	return prog, imports, nil
}

func (p *Parser) cur() token.Token  { return p.toks[p.pos] }
func (p *Parser) peek() token.Token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}
func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) fail(pos token.Position, format string, args ...any) error {
	return &Error{Pos: pos, Message: fmt.Sprintf(format, args...), Source: p.source}
}

func (p *Parser) expect(k token.Kind) (token.Token, error) {
	if p.cur().Kind != k {
		return token.Token{}, p.fail(p.cur().Position, "expected %s, found %s %q", k, p.cur().Kind, p.cur().Lexeme)
	}
	return p.advance(), nil
}

func (p *Parser) at(k token.Kind) bool { return p.cur().Kind == k }

func (p *Parser) parseProgram() (*ast.Program, error) {
	startPos := p.cur().Position
	prog := &ast.Program{Pos: startPos}
	for !p.at(token.EOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		prog.Body = append(prog.Body, stmt)
	}
	return prog, nil
}

// parseBlock parses `{ stmt* }`.
func (p *Parser) parseBlock() ([]ast.Stmt, error) {
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	var body []ast.Stmt
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmt)
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return body, nil
}

func (p *Parser) parseStatement() (ast.Stmt, error) {
	switch p.cur().Kind {
	case token.IMPORT:
		return p.parseImportStmt()
	case token.IF:
		return p.parseIfStmt()
	case token.FOR:
		return p.parseForStmt()
	case token.WHILE:
		return p.parseWhileStmt()
	case token.LOOP:
		return p.parseLoopStmt()
	case token.MATCH:
		return p.parseMatchStmt()
	case token.DEF, token.LABEL:
		return p.parseFuncDef()
	case token.RETURN:
		return p.parseReturnStmt()
	case token.BREAK:
		pos := p.advance().Position
		if _, err := p.expect(token.SEMICOLON); err != nil {
			return nil, err
		}
		return &ast.BreakStmt{Pos: pos}, nil
	case token.CONTINUE:
		pos := p.advance().Position
		if _, err := p.expect(token.SEMICOLON); err != nil {
			return nil, err
		}
		return &ast.ContinueStmt{Pos: pos}, nil
	case token.LOCK:
		return p.parseDeclaration(true)
	case token.IDENT:
		if p.peek().Kind == token.COLON {
			return p.parseDeclaration(false)
		}
		return p.parseExprStmt()
	default:
		return p.parseExprStmt()
	}
}

func (p *Parser) parseImportStmt() (ast.Stmt, error) {
	// The lexer already folded the whole `from ... import ...;` clause into
	// one IMPORT token; re-derive the structured form from the accompanying
	// ImportInfo is the caller's job (module manager). Here we only need
	// the module path, which the lexeme summary embeds as %q.
	tok := p.advance()
	path := ""
	if i := strings.Index(tok.Lexeme, `"`); i >= 0 {
		if j := strings.LastIndex(tok.Lexeme, `"`); j > i {
			path = tok.Lexeme[i+1 : j]
		}
	}
	return &ast.ImportStmt{ModulePath: path, ImporterFile: p.file, Pos: tok.Position}, nil
}

func (p *Parser) parseDeclaration(lock bool) (ast.Stmt, error) {
	startPos := p.cur().Position
	if lock {
		p.advance() // consume "lock"
	}
	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COLON); err != nil {
		return nil, err
	}
	typeName, err := p.parseTypeName()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ASSIGN); err != nil {
		return nil, err
	}
	value, err := p.parseExpression(precAssign)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.Declaration{Name: nameTok.Lexeme, Type: typeName, Value: value, Lock: lock, Pos: startPos}, nil
}

// parseTypeName reads a (possibly dotted/bracketed in the future) type
// annotation. For now narval's surface type grammar is a bare identifier
// such as `int`, `float`, `bool`, `string`, `array`, `vector`, `map`,
// `automatic`, or a custom nominal type name.
func (p *Parser) parseTypeName() (string, error) {
	tok, err := p.expect(token.IDENT)
	if err != nil {
		return "", err
	}
	return tok.Lexeme, nil
}

func (p *Parser) parseFuncDef() (ast.Stmt, error) {
	startPos := p.cur().Position
	isLabel := p.cur().Kind == token.LABEL
	p.advance()
	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	var params []ast.Param
	for !p.at(token.RPAREN) {
		pn, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		param := ast.Param{Name: pn.Lexeme}
		if p.at(token.COLON) {
			p.advance()
			t, err := p.parseTypeName()
			if err != nil {
				return nil, err
			}
			param.Type = t
		}
		params = append(params, param)
		if p.at(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	retType := ""
	if p.at(token.COLON) {
		p.advance()
		t, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		retType = t
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.FuncDef{Name: nameTok.Lexeme, Params: params, ReturnType: retType, Body: body, Label: isLabel, Pos: startPos}, nil
}

func (p *Parser) parseIfStmt() (ast.Stmt, error) {
	startPos := p.cur().Position
	p.advance() // if
	cond, err := p.parseExpression(precAssign)
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt := &ast.IfStmt{If: ast.IfClause{Cond: cond, Body: body}, Pos: startPos}
	for p.at(token.ELIF) {
		p.advance()
		c, err := p.parseExpression(precAssign)
		if err != nil {
			return nil, err
		}
		b, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.Elif = append(stmt.Elif, ast.IfClause{Cond: c, Body: b})
	}
	if p.at(token.ELSE) {
		p.advance()
		b, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.Else = b
	}
	return stmt, nil
}

func (p *Parser) parseForStmt() (ast.Stmt, error) {
	startPos := p.cur().Position
	p.advance() // for
	var bindings []string
	first, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	bindings = append(bindings, first.Lexeme)
	if p.at(token.COMMA) {
		p.advance()
		second, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, second.Lexeme)
	}
	if _, err := p.expect(token.COLON); err != nil {
		return nil, err
	}
	source, err := p.parseExpression(precAssign)
	if err != nil {
		return nil, err
	}
	stmt := &ast.ForStmt{Bindings: bindings, Pos: startPos}
	if rng, ok := source.(*ast.RangeExpr); ok {
		stmt.Range = rng
	} else {
		stmt.Iterable = source
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt.Body = body
	if p.at(token.ELSE) {
		p.advance()
		elseBody, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.Else = elseBody
	}
	return stmt, nil
}

func (p *Parser) parseWhileStmt() (ast.Stmt, error) {
	startPos := p.cur().Position
	p.advance()
	cond, err := p.parseExpression(precAssign)
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.WhileStmt{Cond: cond, Body: body, Pos: startPos}, nil
}

func (p *Parser) parseLoopStmt() (ast.Stmt, error) {
	startPos := p.cur().Position
	p.advance()
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.LoopStmt{Body: body, Pos: startPos}, nil
}

func (p *Parser) parseMatchStmt() (ast.Stmt, error) {
	startPos := p.cur().Position
	p.advance() // match
	target, err := p.parseExpression(precAssign)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	stmt := &ast.MatchStmt{Target: target, Pos: startPos}
	for !p.at(token.RBRACE) {
		pat, err := p.parseMatchPattern()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.FARROW); err != nil {
			return nil, err
		}
		// case body can be a single statement or a brace block
		var body []ast.Stmt
		if p.at(token.LBRACE) {
			body, err = p.parseBlock()
			if err != nil {
				return nil, err
			}
		} else {
			s, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			body = []ast.Stmt{s}
		}
		stmt.Cases = append(stmt.Cases, ast.MatchCase{Pattern: pat, Body: body})
		if p.at(token.COMMA) {
			p.advance()
		}
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseMatchPattern() (*ast.MatchPattern, error) {
	pat, err := p.parseMatchPatternPrimary()
	if err != nil {
		return nil, err
	}
	if p.at(token.OR) {
		disjunction := []*ast.MatchPattern{pat}
		for p.at(token.OR) {
			p.advance()
			next, err := p.parseMatchPatternPrimary()
			if err != nil {
				return nil, err
			}
			disjunction = append(disjunction, next)
		}
		return &ast.MatchPattern{Or: disjunction}, nil
	}
	return pat, nil
}

func (p *Parser) parseMatchPatternPrimary() (*ast.MatchPattern, error) {
	if p.at(token.IDENT) && (p.cur().Lexeme == "_" || p.cur().Lexeme == "default") {
		p.advance()
		return &ast.MatchPattern{Wildcard: true}, nil
	}
	if p.at(token.DEFAULT) {
		p.advance()
		return &ast.MatchPattern{Wildcard: true}, nil
	}
	expr, err := p.parseExpression(precAdditive)
	if err != nil {
		return nil, err
	}
	if rng, ok := expr.(*ast.RangeExpr); ok {
		return &ast.MatchPattern{Range: rng}, nil
	}
	return &ast.MatchPattern{Literal: expr}, nil
}

func (p *Parser) parseReturnStmt() (ast.Stmt, error) {
	startPos := p.cur().Position
	p.advance()
	if p.at(token.SEMICOLON) {
		p.advance()
		return &ast.ReturnStmt{Pos: startPos}, nil
	}
	val, err := p.parseExpression(precAssign)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.ReturnStmt{Value: val, Pos: startPos}, nil
}

func (p *Parser) parseExprStmt() (ast.Stmt, error) {
	startPos := p.cur().Position
	expr, err := p.parseExpression(precAssign)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.ExprStmt{X: expr, Pos: startPos}, nil
}

// ---------------------------------------------------------------------
// Expressions: precedence climbing per spec §4.2 table.
// ---------------------------------------------------------------------

func (p *Parser) parseExpression(minPrec int) (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		if op, ok := assignOps[p.cur().Kind]; ok && minPrec <= precAssign {
			pos := p.cur().Position
			p.advance()
			right, err := p.parseExpression(precAssign) // right-assoc
			if err != nil {
				return nil, err
			}
			left = &ast.AssignmentExpr{Target: left, Op: op, Value: right, Pos: pos}
			continue
		}

		prec, ok := binaryPrecedence[p.cur().Kind]
		if !ok || prec < minPrec {
			break
		}
		opTok := p.advance()
		nextMin := prec + 1
		if opTok.Kind == token.POW {
			nextMin = prec // right-associative
		}
		right, err := p.parseExpression(nextMin)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: opTok.Lexeme, Left: left, Right: right, Pos: opTok.Position}
	}

	// Conditional expression `value if cond else other` in rvalue position.
	if p.at(token.IF) {
		pos := p.cur().Position
		p.advance()
		cond, err := p.parseExpression(precAssign)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.ELSE); err != nil {
			return nil, err
		}
		other, err := p.parseExpression(precAssign)
		if err != nil {
			return nil, err
		}
		left = &ast.ConditionalExpr{Value: left, Cond: cond, Other: other, Pos: pos}
	}

	// Range operator at expression level (for-header / match patterns call
	// parseExpression with a precedence above relational, so `..`/`..=`
	// never collides with `<`/`>` comparisons).
	if p.at(token.RANGE) || p.at(token.RANGEEQ) {
		inclusive := p.at(token.RANGEEQ)
		pos := p.cur().Position
		p.advance()
		end, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.RangeExpr{Start: left, End: end, Inclusive: inclusive, Pos: pos}
	}

	return left, nil
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	switch p.cur().Kind {
	case token.MINUS:
		pos := p.advance().Position
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryMinusExpr{Operand: operand, Pos: pos}, nil
	case token.NOT:
		pos := p.advance().Position
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.LogicalNotExpr{Operand: operand, Pos: pos}, nil
	case token.INC, token.DEC:
		opTok := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.IncDecExpr{Op: opTok.Lexeme, Operand: operand, Prefix: true, Pos: opTok.Position}, nil
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().Kind {
		case token.INC, token.DEC:
			opTok := p.advance()
			expr = &ast.IncDecExpr{Op: opTok.Lexeme, Operand: expr, Prefix: false, Pos: opTok.Position}
		case token.LPAREN:
			pos := p.advance().Position
			var args []ast.Expr
			for !p.at(token.RPAREN) {
				a, err := p.parseExpression(precAssign)
				if err != nil {
					return nil, err
				}
				args = append(args, a)
				if p.at(token.COMMA) {
					p.advance()
					continue
				}
				break
			}
			if _, err := p.expect(token.RPAREN); err != nil {
				return nil, err
			}
			expr = &ast.CallExpr{Callee: expr, Args: args, Pos: pos}
		case token.LBRACKET:
			pos := p.advance().Position
			idx, err := p.parseExpression(precAssign)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBRACKET); err != nil {
				return nil, err
			}
			expr = &ast.AccessExpr{Base: expr, Index: idx, Pos: pos}
		case token.DOT:
			pos := p.advance().Position
			prop, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			expr = &ast.MemberExpr{Object: expr, Property: prop.Lexeme, Pos: pos}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok := p.cur()
	switch tok.Kind {
	case token.IDENT:
		p.advance()
		return &ast.Identifier{Name: tok.Lexeme, Pos: tok.Position}, nil
	case token.INT:
		p.advance()
		return &ast.NumericLiteral{Lexeme: tok.Lexeme, IsFloat: false, Pos: tok.Position}, nil
	case token.FLOAT:
		p.advance()
		return &ast.NumericLiteral{Lexeme: tok.Lexeme, IsFloat: true, Pos: tok.Position}, nil
	case token.STRING:
		p.advance()
		return &ast.StringLiteral{Value: tok.Lexeme, Pos: tok.Position}, nil
	case token.TRUE:
		p.advance()
		return &ast.BooleanLiteral{Value: true, Pos: tok.Position}, nil
	case token.FALSE:
		p.advance()
		return &ast.BooleanLiteral{Value: false, Pos: tok.Position}, nil
	case token.LPAREN:
		return p.parseParenOrTuple()
	case token.LBRACKET:
		return p.parseVectorOrComprehension()
	case token.LBRACE:
		return p.parseArrayOrMap()
	default:
		return nil, p.fail(tok.Position, "unexpected token %s %q", tok.Kind, tok.Lexeme)
	}
}

func (p *Parser) parseParenOrTuple() (ast.Expr, error) {
	startPos := p.advance().Position // (
	if p.at(token.RPAREN) {
		p.advance()
		return &ast.TupleExpr{Pos: startPos}, nil
	}
	first, err := p.parseExpression(precAssign)
	if err != nil {
		return nil, err
	}
	if p.at(token.COMMA) {
		elems := []ast.Expr{first}
		for p.at(token.COMMA) {
			p.advance()
			if p.at(token.RPAREN) {
				break
			}
			e, err := p.parseExpression(precAssign)
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return &ast.TupleExpr{Elements: elems, Pos: startPos}, nil
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	return first, nil
}

func (p *Parser) parseVectorOrComprehension() (ast.Expr, error) {
	startPos := p.advance().Position // [
	if p.at(token.RBRACKET) {
		p.advance()
		return &ast.VectorExpr{Pos: startPos}, nil
	}
	first, err := p.parseExpression(precAssign)
	if err != nil {
		return nil, err
	}
	if p.at(token.FOR) {
		return p.parseListComprehensionTail(first, startPos)
	}
	elems := []ast.Expr{first}
	for p.at(token.COMMA) {
		p.advance()
		if p.at(token.RBRACKET) {
			break
		}
		e, err := p.parseExpression(precAssign)
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	if _, err := p.expect(token.RBRACKET); err != nil {
		return nil, err
	}
	return &ast.VectorExpr{Elements: elems, Pos: startPos}, nil
}

func (p *Parser) parseListComprehensionTail(element ast.Expr, startPos token.Position) (ast.Expr, error) {
	comp := &ast.ListComprehensionExpr{Element: element, Pos: startPos}
	for p.at(token.FOR) {
		p.advance()
		var targets []string
		if p.at(token.LPAREN) {
			p.advance()
			a, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			targets = append(targets, a.Lexeme)
			if _, err := p.expect(token.COMMA); err != nil {
				return nil, err
			}
			b, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			targets = append(targets, b.Lexeme)
			if _, err := p.expect(token.RPAREN); err != nil {
				return nil, err
			}
		} else {
			a, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			targets = append(targets, a.Lexeme)
			if p.at(token.COMMA) {
				p.advance()
				b, err := p.expect(token.IDENT)
				if err != nil {
					return nil, err
				}
				targets = append(targets, b.Lexeme)
			}
		}
		if _, err := p.expect(token.IN); err != nil {
			return nil, err
		}
		src, err := p.parseExpression(precOr)
		if err != nil {
			return nil, err
		}
		comp.Generators = append(comp.Generators, ast.ComprehensionGenerator{Targets: targets, Source: src})
	}
	if p.at(token.IF) {
		p.advance()
		cond, err := p.parseExpression(precOr)
		if err != nil {
			return nil, err
		}
		comp.Cond = cond
	}
	if p.at(token.ELSE) {
		p.advance()
		other, err := p.parseExpression(precOr)
		if err != nil {
			return nil, err
		}
		comp.Else = other
	}
	if _, err := p.expect(token.RBRACKET); err != nil {
		return nil, err
	}
	return comp, nil
}

// parseArrayOrMap resolves the `{...}` ambiguity: empty -> array; first
// element followed by `:` -> map; otherwise -> array (spec §4.2).
func (p *Parser) parseArrayOrMap() (ast.Expr, error) {
	startPos := p.advance().Position // {
	if p.at(token.RBRACE) {
		p.advance()
		return &ast.ArrayExpr{Pos: startPos}, nil
	}
	firstKey, err := p.parseExpression(precAssign)
	if err != nil {
		return nil, err
	}
	if p.at(token.COLON) {
		p.advance()
		firstVal, err := p.parseExpression(precAssign)
		if err != nil {
			return nil, err
		}
		m := &ast.MapExpr{Pos: startPos}
		m.Pairs = append(m.Pairs, &ast.KeyValueExpr{Key: firstKey, Value: firstVal, Pos: startPos})
		for p.at(token.COMMA) {
			p.advance()
			if p.at(token.RBRACE) {
				break
			}
			k, err := p.parseExpression(precAssign)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.COLON); err != nil {
				return nil, err
			}
			v, err := p.parseExpression(precAssign)
			if err != nil {
				return nil, err
			}
			m.Pairs = append(m.Pairs, &ast.KeyValueExpr{Key: k, Value: v, Pos: k.Position()})
		}
		if _, err := p.expect(token.RBRACE); err != nil {
			return nil, err
		}
		return m, nil
	}
	arr := &ast.ArrayExpr{Pos: startPos}
	arr.Elements = append(arr.Elements, firstKey)
	for p.at(token.COMMA) {
		p.advance()
		if p.at(token.RBRACE) {
			break
		}
		e, err := p.parseExpression(precAssign)
		if err != nil {
			return nil, err
		}
		arr.Elements = append(arr.Elements, e)
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return arr, nil
}
