package parser

import (
	"github.com/cortenjs/corten/lang/ast"
	"github.com/cortenjs/corten/lang/token"
)

// parseStmt parses a single statement, recovering from a malformed one by
// synchronizing to the next safe token and producing a BadStmt spanning the
// skipped range.
func (p *parser) parseStmt() (stmt ast.Stmt) {
	start := p.tok.Pos.ToPos()
	defer func() {
		if r := recover(); r != nil {
			if r == errPanicMode {
				end := p.syncAfterError()
				stmt = &ast.BadStmt{Start: start, End: end}
				return
			}
			panic(r)
		}
	}()

	switch p.tok.Kind {
	case token.SEMI:
		pos := p.tok.Pos.ToPos()
		p.advance()
		return &ast.BlockStmt{Block: &ast.Block{Start: pos, End: pos}}

	case token.VAR, token.LET, token.CONST:
		return p.parseVarDeclStmt()

	case token.FUNCTION:
		return p.parseFuncDeclStmt(false)

	case token.ASYNC:
		if p.nextIsFunction() {
			p.advance()
			return p.parseFuncDeclStmt(true)
		}
		return p.parseExprStmt()

	case token.IF:
		return p.parseIfStmt()

	case token.WHILE:
		return p.parseWhileStmt()

	case token.FOR:
		return p.parseForStmt()

	case token.RETURN:
		return p.parseReturnStmt()

	case token.BREAK:
		return p.parseBreakStmt()

	case token.CONTINUE:
		return p.parseContinueStmt()

	case token.THROW:
		return p.parseThrowStmt()

	case token.TRY:
		return p.parseTryStmt()

	case token.LBRACE:
		return p.parseBlockStmt()

	default:
		return p.parseExprStmt()
	}
}

// nextIsFunction reports whether the token following the current one (which
// must be ASYNC) is FUNCTION, without consuming anything. Used to tell an
// async function declaration apart from an async arrow/call used as an
// expression statement.
func (p *parser) nextIsFunction() bool {
	mark := p.scanner.Mark()
	savedTok := p.tok
	quiet := p.scanner.SetQuiet(true)
	p.advance()
	isFunc := p.tok.Kind == token.FUNCTION
	p.scanner.SetQuiet(quiet)
	p.scanner.Reset(mark)
	p.tok = savedTok
	return isFunc
}

func (p *parser) parseVarDeclStmt() *ast.VarDeclStmt {
	kind := p.tok.Kind
	start := p.expect(token.VAR, token.LET, token.CONST)

	var decls []*ast.Declarator
	for {
		name := p.parseIdent()
		var init ast.Expr
		if _, ok := p.accept(token.ASSIGN); ok {
			init = p.parseAssign(false)
		}
		decls = append(decls, &ast.Declarator{Name: name, Init: init})
		if _, ok := p.accept(token.COMMA); !ok {
			break
		}
	}

	end := declListEnd(decls)
	p.consumeSemi()
	return &ast.VarDeclStmt{Kind: kind, Start: start, Decls: decls, End: end}
}

func declListEnd(decls []*ast.Declarator) token.Pos {
	last := decls[len(decls)-1]
	if last.Init != nil {
		_, end := last.Init.Span()
		return end
	}
	_, end := last.Name.Span()
	return end
}

func (p *parser) parseFuncDeclStmt(async bool) *ast.FuncDeclStmt {
	fn := p.expect(token.FUNCTION)
	name := p.parseIdent()
	params, rest, _ := p.parseParamList()
	body := p.parseBlockBody()
	return &ast.FuncDeclStmt{Fn: &ast.FuncExpr{
		Fn: fn, Async: async, Name: name, Params: params, Rest: rest, Body: body, End: body.End,
	}}
}

func (p *parser) parseIfStmt() *ast.IfStmt {
	ifPos := p.expect(token.IF)
	p.expect(token.LPAREN)
	cond := p.parseExpr(false)
	p.expect(token.RPAREN)
	then := p.parseStmt()
	var els ast.Stmt
	if _, ok := p.accept(token.ELSE); ok {
		els = p.parseStmt()
	}
	return &ast.IfStmt{If: ifPos, Cond: cond, Then: then, Else: els}
}

func (p *parser) parseWhileStmt() *ast.WhileStmt {
	whilePos := p.expect(token.WHILE)
	p.expect(token.LPAREN)
	cond := p.parseExpr(false)
	p.expect(token.RPAREN)
	body := p.parseStmt()
	return &ast.WhileStmt{While: whilePos, Cond: cond, Body: body}
}

// parseForStmt parses a classic 3-clause for loop or a for-in/for-of
// (including for-await-of) loop. The head is parsed with the `in` operator
// disabled (noIn) until a declaration or target is fully formed, which is
// what lets `for (a in b)` (for-in) and `for (a; in-expression; ...)`-shaped
// code be told apart without backtracking.
func (p *parser) parseForStmt() ast.Stmt {
	forPos := p.expect(token.FOR)
	var await bool
	if _, ok := p.accept(token.AWAIT); ok {
		await = true
	}
	p.expect(token.LPAREN)

	if p.tok.Kind == token.VAR || p.tok.Kind == token.LET || p.tok.Kind == token.CONST {
		kind := p.tok.Kind
		declStart := p.tok.Pos.ToPos()
		p.advance()
		name := p.parseIdent()

		if p.tok.Kind == token.IN || p.tok.Kind == token.OF {
			of := p.tok.Kind == token.OF
			p.advance()
			right := p.parseAssign(false)
			p.expect(token.RPAREN)
			body := p.parseStmt()
			return &ast.ForInStmt{For: forPos, Decl: kind, Name: name, Of: of, Await: await, Right: right, Body: body}
		}

		var decls []*ast.Declarator
		var init ast.Expr
		if _, ok := p.accept(token.ASSIGN); ok {
			init = p.parseAssign(true)
		}
		decls = append(decls, &ast.Declarator{Name: name, Init: init})
		for {
			if _, ok := p.accept(token.COMMA); !ok {
				break
			}
			n2 := p.parseIdent()
			var i2 ast.Expr
			if _, ok := p.accept(token.ASSIGN); ok {
				i2 = p.parseAssign(true)
			}
			decls = append(decls, &ast.Declarator{Name: n2, Init: i2})
		}
		varDecl := &ast.VarDeclStmt{Kind: kind, Start: declStart, Decls: decls, End: declListEnd(decls)}

		p.expect(token.SEMI)
		cond := p.parseOptForCond()
		p.expect(token.SEMI)
		post := p.parseOptForPost()
		p.expect(token.RPAREN)
		body := p.parseStmt()
		return &ast.ForStmt{For: forPos, Init: varDecl, Cond: cond, Post: post, Body: body}
	}

	if p.tok.Kind == token.SEMI {
		p.advance()
		cond := p.parseOptForCond()
		p.expect(token.SEMI)
		post := p.parseOptForPost()
		p.expect(token.RPAREN)
		body := p.parseStmt()
		return &ast.ForStmt{For: forPos, Cond: cond, Post: post, Body: body}
	}

	target := p.parseExpr(true)
	if p.tok.Kind == token.IN || p.tok.Kind == token.OF {
		of := p.tok.Kind == token.OF
		p.advance()
		if !ast.IsAssignable(target) {
			start, _ := target.Span()
			p.errorExpected(start, "assignable expression")
		}
		right := p.parseAssign(false)
		p.expect(token.RPAREN)
		body := p.parseStmt()
		return &ast.ForInStmt{For: forPos, Target: target, Of: of, Await: await, Right: right, Body: body}
	}

	init := &ast.ExprStmt{Expr: target}
	p.expect(token.SEMI)
	cond := p.parseOptForCond()
	p.expect(token.SEMI)
	post := p.parseOptForPost()
	p.expect(token.RPAREN)
	body := p.parseStmt()
	return &ast.ForStmt{For: forPos, Init: init, Cond: cond, Post: post, Body: body}
}

func (p *parser) parseOptForCond() ast.Expr {
	if p.tok.Kind == token.SEMI {
		return nil
	}
	return p.parseExpr(false)
}

func (p *parser) parseOptForPost() ast.Stmt {
	if p.tok.Kind == token.RPAREN {
		return nil
	}
	return &ast.ExprStmt{Expr: p.parseExpr(false)}
}

func (p *parser) parseReturnStmt() *ast.ReturnStmt {
	start := p.expect(token.RETURN)
	var e ast.Expr
	if p.tok.Kind != token.SEMI && p.tok.Kind != token.RBRACE && p.tok.Kind != token.EOF {
		e = p.parseExpr(false)
	}
	p.consumeSemi()
	return &ast.ReturnStmt{Start: start, Expr: e}
}

func (p *parser) parseBreakStmt() *ast.BreakStmt {
	start := p.expect(token.BREAK)
	p.consumeSemi()
	return &ast.BreakStmt{Start: start}
}

func (p *parser) parseContinueStmt() *ast.ContinueStmt {
	start := p.expect(token.CONTINUE)
	p.consumeSemi()
	return &ast.ContinueStmt{Start: start}
}

func (p *parser) parseThrowStmt() *ast.ThrowStmt {
	start := p.expect(token.THROW)
	e := p.parseExpr(false)
	p.consumeSemi()
	return &ast.ThrowStmt{Start: start, Expr: e}
}

func (p *parser) parseTryStmt() *ast.TryStmt {
	tryPos := p.expect(token.TRY)
	block := p.parseBlockBody()

	var catchParam *ast.Ident
	var catchBlock, finallyBlock *ast.Block
	if _, ok := p.accept(token.CATCH); ok {
		if _, ok2 := p.accept(token.LPAREN); ok2 {
			catchParam = p.parseIdent()
			p.expect(token.RPAREN)
		}
		catchBlock = p.parseBlockBody()
	}

	var end token.Pos
	if _, ok := p.accept(token.FINALLY); ok {
		finallyBlock = p.parseBlockBody()
		end = finallyBlock.End
	} else if catchBlock != nil {
		end = catchBlock.End
	} else {
		p.errorExpected(tryPos, "'catch' or 'finally'")
		end = block.End
	}

	return &ast.TryStmt{
		Try: tryPos, Block: block, CatchParam: catchParam,
		CatchBlock: catchBlock, FinallyBlock: finallyBlock, End: end,
	}
}

func (p *parser) parseBlockStmt() *ast.BlockStmt {
	return &ast.BlockStmt{Block: p.parseBlockBody()}
}

func (p *parser) parseExprStmt() *ast.ExprStmt {
	e := p.parseExpr(false)
	p.consumeSemi()
	return &ast.ExprStmt{Expr: e}
}
