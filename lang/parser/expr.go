package parser

import (
	"github.com/cortenjs/corten/lang/ast"
	"github.com/cortenjs/corten/lang/token"
)

// binPrec maps a binary operator token to its precedence level (higher
// binds tighter). Logical && / || / ?? are included so the whole operator
// grammar is handled by a single precedence-climbing function; this
// implementation does not enforce the real-language restriction that ??
// cannot be mixed with && or || without parentheses.
var binPrec = map[token.Token]int{
	token.PIPEPIPE: 1, token.QQ: 1,
	token.AMPAMP: 2,
	token.PIPE:   3,
	token.CARET:  4,
	token.AMP:    5,
	token.EQEQ:   6, token.NEQ: 6, token.EQEQEQ: 6, token.NEQEQ: 6,
	token.LT: 7, token.GT: 7, token.LE: 7, token.GE: 7,
	token.INSTANCEOF: 7, token.IN: 7,
	token.LTLT: 8, token.GTGT: 8, token.GTGTGT: 8,
	token.PLUS: 9, token.MINUS: 9,
	token.STAR: 10, token.SLASH: 10, token.PERCENT: 10,
	token.STARSTAR: 11,
}

// parseExpr parses a full expression, including the comma (sequence)
// operator. noIn disables the `in` relational operator, used while parsing
// the head of a classic for loop so `for (x in y)` can be told apart from
// `for (x; in...)`-shaped garbage.
func (p *parser) parseExpr(noIn bool) ast.Expr {
	first := p.parseAssign(noIn)
	if p.tok.Kind != token.COMMA {
		return first
	}
	exprs := []ast.Expr{first}
	for p.tok.Kind == token.COMMA {
		p.advance()
		exprs = append(exprs, p.parseAssign(noIn))
	}
	return &ast.SequenceExpr{Exprs: exprs}
}

func (p *parser) parseAssign(noIn bool) ast.Expr {
	left := p.parseConditional(noIn)
	if p.tok.Kind.IsAssignOp() {
		if !ast.IsAssignable(left) {
			start, _ := left.Span()
			p.errorExpected(start, "assignable expression")
		}
		op := p.tok.Kind
		opPos := p.tok.Pos.ToPos()
		p.advance()
		right := p.parseAssign(noIn)
		return &ast.AssignExpr{Left: left, Op: op, OpPos: opPos, Right: right}
	}
	return left
}

func (p *parser) parseConditional(noIn bool) ast.Expr {
	cond := p.parseBinary(1, noIn)
	if q, ok := p.accept(token.QUESTION); ok {
		then := p.parseAssign(false)
		colon := p.expect(token.COLON)
		els := p.parseAssign(noIn)
		return &ast.ConditionalExpr{Cond: cond, Question: q, Then: then, Colon: colon, Else: els}
	}
	return cond
}

func (p *parser) parseBinary(minPrec int, noIn bool) ast.Expr {
	left := p.parseUnary()
	for {
		prec, ok := binPrec[p.tok.Kind]
		if !ok || prec < minPrec {
			break
		}
		if p.tok.Kind == token.IN && noIn {
			break
		}
		op := p.tok.Kind
		opPos := p.tok.Pos.ToPos()
		p.advance()
		nextMin := prec + 1
		if op == token.STARSTAR {
			nextMin = prec // right-associative
		}
		right := p.parseBinary(nextMin, noIn)
		left = &ast.BinaryExpr{Left: left, Op: op, OpPos: opPos, Right: right}
	}
	return left
}

func (p *parser) parseUnary() ast.Expr {
	switch p.tok.Kind {
	case token.BANG, token.TILDE, token.PLUS, token.MINUS, token.TYPEOF, token.VOID, token.DELETE:
		op := p.tok.Kind
		start := p.tok.Pos.ToPos()
		p.advance()
		right := p.parseUnary()
		return &ast.UnaryExpr{Op: op, Start: start, Right: right}

	case token.PLUSPLUS, token.MINUSMINUS:
		op := p.tok.Kind
		start := p.tok.Pos.ToPos()
		p.advance()
		target := p.parseUnary()
		_, end := target.Span()
		return &ast.UpdateExpr{Op: op, Start: start, End: end, Target: target, Prefix: true}

	case token.AWAIT:
		start := p.expect(token.AWAIT)
		right := p.parseUnary()
		return &ast.AwaitExpr{Start: start, Right: right}

	default:
		return p.parsePostfix()
	}
}

func (p *parser) parsePostfix() ast.Expr {
	e := p.parseLeftHandSide()
	if p.tok.Kind == token.PLUSPLUS || p.tok.Kind == token.MINUSMINUS {
		op := p.tok.Kind
		start, _ := e.Span()
		end := p.tok.Pos.ToPos() + token.Pos(len(op.String()))
		p.advance()
		return &ast.UpdateExpr{Op: op, Start: start, End: end, Target: e, Prefix: false}
	}
	return e
}

func (p *parser) parseLeftHandSide() ast.Expr {
	if p.tok.Kind == token.NEW {
		return p.parseCallTail(p.parseNewExpr())
	}
	return p.parseCallTail(p.parsePrimary())
}

func (p *parser) parseNewExpr() ast.Expr {
	newPos := p.expect(token.NEW)

	var callee ast.Expr
	if p.tok.Kind == token.NEW {
		callee = p.parseNewExpr()
	} else {
		callee = p.parsePrimary()
	memberLoop:
		for {
			switch p.tok.Kind {
			case token.DOT:
				p.expect(token.DOT)
				name := p.parseIdent()
				_, end := name.Span()
				callee = &ast.MemberExpr{Obj: callee, Prop: name, End: end}
			case token.LBRACK:
				p.expect(token.LBRACK)
				idx := p.parseExpr(false)
				rbrack := p.expect(token.RBRACK)
				callee = &ast.MemberExpr{Obj: callee, Prop: idx, Computed: true, End: rbrack + token.Pos(len("]"))}
			default:
				break memberLoop
			}
		}
	}

	var args []ast.Expr
	var lparen, rparen token.Pos
	if p.tok.Kind == token.LPAREN {
		lparen = p.expect(token.LPAREN)
		args = p.parseArgList()
		rparen = p.expect(token.RPAREN)
	}
	return &ast.NewExpr{New: newPos, Callee: callee, Lparen: lparen, Args: args, Rparen: rparen}
}

func (p *parser) parseCallTail(e ast.Expr) ast.Expr {
	for {
		switch p.tok.Kind {
		case token.DOT:
			p.expect(token.DOT)
			name := p.parseIdent()
			_, end := name.Span()
			e = &ast.MemberExpr{Obj: e, Prop: name, End: end}

		case token.LBRACK:
			p.expect(token.LBRACK)
			idx := p.parseExpr(false)
			rbrack := p.expect(token.RBRACK)
			e = &ast.MemberExpr{Obj: e, Prop: idx, Computed: true, End: rbrack + token.Pos(len("]"))}

		case token.LPAREN:
			lparen := p.expect(token.LPAREN)
			args := p.parseArgList()
			rparen := p.expect(token.RPAREN)
			e = &ast.CallExpr{Callee: e, Lparen: lparen, Args: args, Rparen: rparen}

		case token.OPTDOT:
			p.expect(token.OPTDOT)
			switch p.tok.Kind {
			case token.LPAREN:
				lparen := p.expect(token.LPAREN)
				args := p.parseArgList()
				rparen := p.expect(token.RPAREN)
				e = &ast.CallExpr{Callee: e, Lparen: lparen, Args: args, Rparen: rparen, Optional: true}
			case token.LBRACK:
				p.expect(token.LBRACK)
				idx := p.parseExpr(false)
				rbrack := p.expect(token.RBRACK)
				e = &ast.MemberExpr{Obj: e, Prop: idx, Computed: true, Optional: true, End: rbrack + token.Pos(len("]"))}
			default:
				name := p.parseIdent()
				_, end := name.Span()
				e = &ast.MemberExpr{Obj: e, Prop: name, Optional: true, End: end}
			}

		default:
			return e
		}
	}
}

func (p *parser) parseArgList() []ast.Expr {
	var args []ast.Expr
	for p.tok.Kind != token.RPAREN && p.tok.Kind != token.EOF {
		if start, ok := p.accept(token.ELLIPSIS); ok {
			e := p.parseAssign(false)
			args = append(args, &ast.SpreadElem{Start: start, Expr: e})
		} else {
			args = append(args, p.parseAssign(false))
		}
		if _, ok := p.accept(token.COMMA); !ok {
			break
		}
	}
	return args
}

func (p *parser) parsePrimary() ast.Expr {
	switch p.tok.Kind {
	case token.NUMBER:
		t := p.tok
		p.advance()
		return &ast.NumberLit{Start: t.Pos.ToPos(), Raw: t.Lexeme, Value: t.Number}

	case token.STRING:
		t := p.tok
		p.advance()
		return &ast.StringLit{Start: t.Pos.ToPos(), Raw: t.Lexeme, Value: t.Units}

	case token.TRUE, token.FALSE:
		t := p.tok
		p.advance()
		return &ast.BoolLit{Start: t.Pos.ToPos(), Value: t.Kind == token.TRUE}

	case token.NULL:
		t := p.tok
		p.advance()
		return &ast.NullLit{Start: t.Pos.ToPos()}

	case token.UNDEFINED:
		// modeled as an ordinary identifier resolving to the seeded global
		// binding, not a distinct literal node.
		t := p.tok
		p.advance()
		return &ast.Ident{Start: t.Pos.ToPos(), Name: "undefined"}

	case token.THIS:
		t := p.tok
		p.advance()
		return &ast.ThisExpr{Start: t.Pos.ToPos()}

	case token.IDENT:
		id := p.parseIdent()
		if p.tok.Kind == token.ARROW {
			arrowPos := p.expect(token.ARROW)
			return p.parseArrowBody(id.Start, false, []*ast.Ident{id}, nil, arrowPos)
		}
		return id

	case token.LPAREN:
		return p.parseParenOrArrow()

	case token.LBRACK:
		return p.parseArrayLit()

	case token.LBRACE:
		return p.parseObjectLit()

	case token.FUNCTION:
		return p.parseFuncExprTail(false)

	case token.ASYNC:
		return p.parseAsyncPrimary()

	default:
		start := p.tok.Pos.ToPos()
		p.errorExpected(start, "expression")
		panic(errPanicMode)
	}
}

func (p *parser) parseIdent() *ast.Ident {
	t := p.tok
	p.expect(token.IDENT)
	return &ast.Ident{Start: t.Pos.ToPos(), Name: t.Lexeme}
}

func (p *parser) parseArrayLit() *ast.ArrayLit {
	lbrack := p.expect(token.LBRACK)
	var elems []ast.Expr
	for p.tok.Kind != token.RBRACK && p.tok.Kind != token.EOF {
		if p.tok.Kind == token.COMMA {
			elems = append(elems, nil) // elision / hole
			p.advance()
			continue
		}
		if start, ok := p.accept(token.ELLIPSIS); ok {
			e := p.parseAssign(false)
			elems = append(elems, &ast.SpreadElem{Start: start, Expr: e})
		} else {
			elems = append(elems, p.parseAssign(false))
		}
		if _, ok := p.accept(token.COMMA); !ok {
			break
		}
	}
	rbrack := p.expect(token.RBRACK)
	return &ast.ArrayLit{Lbrack: lbrack, Elems: elems, Rbrack: rbrack}
}

func (p *parser) parseObjectLit() *ast.ObjectLit {
	lbrace := p.expect(token.LBRACE)
	var props []*ast.Property
	for p.tok.Kind != token.RBRACE && p.tok.Kind != token.EOF {
		props = append(props, p.parseProperty())
		if _, ok := p.accept(token.COMMA); !ok {
			break
		}
	}
	rbrace := p.expect(token.RBRACE)
	return &ast.ObjectLit{Lbrace: lbrace, Props: props, Rbrace: rbrace}
}

func (p *parser) parseProperty() *ast.Property {
	if p.tok.Kind == token.LBRACK {
		p.advance()
		key := p.parseAssign(false)
		p.expect(token.RBRACK)
		p.expect(token.COLON)
		val := p.parseAssign(false)
		return &ast.Property{Key: key, Value: val, Computed: true}
	}

	switch p.tok.Kind {
	case token.STRING:
		t := p.tok
		p.advance()
		key := &ast.StringLit{Start: t.Pos.ToPos(), Raw: t.Lexeme, Value: t.Units}
		p.expect(token.COLON)
		val := p.parseAssign(false)
		return &ast.Property{Key: key, Value: val}

	case token.NUMBER:
		t := p.tok
		p.advance()
		key := &ast.NumberLit{Start: t.Pos.ToPos(), Raw: t.Lexeme, Value: t.Number}
		p.expect(token.COLON)
		val := p.parseAssign(false)
		return &ast.Property{Key: key, Value: val}

	case token.IDENT:
		id := p.parseIdent()
		if _, ok := p.accept(token.COLON); ok {
			val := p.parseAssign(false)
			return &ast.Property{Key: id, Value: val}
		}
		return &ast.Property{Key: id, Value: id, Shorthand: true}

	default:
		p.errorExpected(p.tok.Pos.ToPos(), "property key")
		panic(errPanicMode)
	}
}

func (p *parser) parseFuncExprTail(async bool) *ast.FuncExpr {
	fn := p.expect(token.FUNCTION)
	var name *ast.Ident
	if p.tok.Kind == token.IDENT {
		name = p.parseIdent()
	}
	params, rest, _ := p.parseParamList()
	body := p.parseBlockBody()
	return &ast.FuncExpr{Fn: fn, Async: async, Name: name, Params: params, Rest: rest, Body: body, End: body.End}
}

func (p *parser) parseAsyncPrimary() ast.Expr {
	p.expect(token.ASYNC)
	switch p.tok.Kind {
	case token.FUNCTION:
		return p.parseFuncExprTail(true)

	case token.IDENT:
		id := p.parseIdent()
		arrowPos := p.expect(token.ARROW)
		return p.parseArrowBody(id.Start, true, []*ast.Ident{id}, nil, arrowPos)

	case token.LPAREN:
		params, rest, lparen := p.parseParamList()
		arrowPos := p.expect(token.ARROW)
		return p.parseArrowBody(lparen, true, params, rest, arrowPos)

	default:
		start := p.tok.Pos.ToPos()
		p.errorExpected(start, "function, identifier or (")
		panic(errPanicMode)
	}
}

// parseParamList parses a non-speculative (params...) list, used when the
// grammar guarantees a parameter list must follow (function declarations
// and expressions, and async arrow functions).
func (p *parser) parseParamList() (params []*ast.Ident, rest *ast.Ident, lparen token.Pos) {
	lparen = p.expect(token.LPAREN)
	for p.tok.Kind != token.RPAREN {
		if p.tok.Kind == token.ELLIPSIS {
			p.advance()
			rest = p.parseIdent()
			break
		}
		params = append(params, p.parseIdent())
		if _, ok := p.accept(token.COMMA); !ok {
			break
		}
	}
	p.expect(token.RPAREN)
	return params, rest, lparen
}

func (p *parser) parseParenOrArrow() ast.Expr {
	lparen := p.tok.Pos.ToPos()

	mark := p.scanner.Mark()
	savedTok := p.tok
	savedErrLen := len(p.errors)
	quiet := p.scanner.SetQuiet(true)

	params, rest, ok := p.tryArrowParams()
	p.scanner.SetQuiet(quiet)

	if ok && p.tok.Kind == token.ARROW {
		arrowPos := p.expect(token.ARROW)
		return p.parseArrowBody(lparen, false, params, rest, arrowPos)
	}

	// Not an arrow function: restore and parse a grouped (possibly
	// sequence) expression instead.
	p.scanner.Reset(mark)
	p.tok = savedTok
	p.errors = p.errors[:savedErrLen]

	p.expect(token.LPAREN)
	if p.tok.Kind == token.RPAREN {
		start := p.tok.Pos.ToPos()
		p.errorExpected(start, "expression")
		p.advance()
		return &ast.BadExpr{Start: lparen, End: start}
	}
	e := p.parseExpr(false)
	p.expect(token.RPAREN)
	return e
}

// tryArrowParams speculatively parses a (possibly empty) parameter list. It
// never reports errors to p.errors directly (the scanner is set quiet by
// the caller) and converts any parse panic into ok == false instead of
// propagating, so the caller can fall back to parsing a grouped expression.
func (p *parser) tryArrowParams() (params []*ast.Ident, rest *ast.Ident, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if r == errPanicMode {
				ok = false
				return
			}
			panic(r)
		}
	}()

	p.expect(token.LPAREN)
	for p.tok.Kind != token.RPAREN {
		if p.tok.Kind == token.ELLIPSIS {
			p.advance()
			rest = p.parseIdent()
			break
		}
		params = append(params, p.parseIdent())
		if _, ok := p.accept(token.COMMA); !ok {
			break
		}
	}
	p.expect(token.RPAREN)
	ok = true
	return
}

func (p *parser) parseArrowBody(start token.Pos, async bool, params []*ast.Ident, rest *ast.Ident, arrowPos token.Pos) *ast.ArrowFuncExpr {
	_ = arrowPos
	var body ast.Node
	var end token.Pos
	if p.tok.Kind == token.LBRACE {
		blk := p.parseBlockBody()
		body = blk
		end = blk.End
	} else {
		e := p.parseAssign(false)
		body = e
		_, end = e.Span()
	}
	return &ast.ArrowFuncExpr{Start: start, Async: async, Params: params, Rest: rest, Body: body, End: end}
}

// parseBlockBody parses a brace-delimited block, used for function bodies.
func (p *parser) parseBlockBody() *ast.Block {
	lbrace := p.expect(token.LBRACE)
	block := p.parseBlockUntil(token.RBRACE)
	block.Start = lbrace
	rbrace := p.expect(token.RBRACE)
	block.End = rbrace + token.Pos(len("}"))
	return block
}
