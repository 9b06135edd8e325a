// Package parser implements the recursive-descent parser that transforms
// source code into an abstract syntax tree.
package parser

import (
	"errors"
	"strings"

	"github.com/cortenjs/corten/lang/ast"
	"github.com/cortenjs/corten/lang/scanner"
	"github.com/cortenjs/corten/lang/token"
)

// ParseProgram parses a single source file and returns its AST. The error,
// if non-nil, is guaranteed to be a scanner.ErrorList.
func ParseProgram(filename string, src []byte) (*ast.Program, error) {
	var p parser
	p.init(filename, src)
	prog := p.parseProgram()
	return prog, p.errors.Err()
}

// parser parses a token stream produced by the scanner into an AST,
// recovering from malformed statements by synchronizing to the next safe
// token and emitting a BadStmt for the skipped span.
type parser struct {
	filename string
	scanner  *scanner.Scanner
	errors   scanner.ErrorList

	tok scanner.Token
}

func (p *parser) init(filename string, src []byte) {
	p.filename = filename
	p.scanner = scanner.New(filename, src, p.errors.Add)
	p.advance()
}

func (p *parser) advance() {
	p.tok = p.scanner.Scan()
}

func (p *parser) parseProgram() *ast.Program {
	block := p.parseBlockUntil(token.EOF)
	return &ast.Program{Name: p.filename, Block: block, EOF: p.tok.Pos.ToPos()}
}

// parseBlockUntil parses statements until the current token is one of end,
// or EOF.
func (p *parser) parseBlockUntil(end ...token.Token) *ast.Block {
	var block ast.Block
	block.Start = p.tok.Pos.ToPos()

	ends := append(append([]token.Token(nil), end...), token.EOF)
	var stmts []ast.Stmt
	var ending ast.Stmt
	var endingReported bool
	for !tokenIn(p.tok.Kind, ends...) {
		stmt := p.parseStmt()
		if stmt == nil {
			continue
		}
		if ending != nil {
			if !endingReported {
				pos, _ := stmt.Span()
				p.errorAt(pos, "unreachable statement after "+endingKind(ending))
				endingReported = true
			}
		} else if stmt.BlockEnding() {
			ending = stmt
		}
		stmts = append(stmts, stmt)
	}

	block.Stmts = stmts
	block.End = p.tok.Pos.ToPos()
	return &block
}

func endingKind(s ast.Stmt) string {
	switch s.(type) {
	case *ast.ReturnStmt:
		return "return"
	case *ast.BreakStmt:
		return "break"
	case *ast.ContinueStmt:
		return "continue"
	case *ast.ThrowStmt:
		return "throw"
	default:
		return "statement"
	}
}

var errPanicMode = errors.New("parser: panic mode")

func (p *parser) errorAt(pos token.Pos, msg string) {
	p.errors.Add(pos.Position(p.filename), msg)
}

func (p *parser) errorExpected(pos token.Pos, msg string) {
	msg = "expected " + msg + ", found " + p.describeTok()
	p.errorAt(pos, msg)
}

func (p *parser) describeTok() string {
	if p.tok.Lexeme != "" && p.tok.Kind != token.EOF {
		return p.tok.Kind.String() + " " + p.tok.Lexeme
	}
	return p.tok.Kind.String()
}

// expect consumes and returns the position of the current token if it
// matches one of toks, otherwise it records an error and panics with
// errPanicMode, recovered at the statement level as a BadStmt.
func (p *parser) expect(toks ...token.Token) token.Pos {
	pos := p.tok.Pos.ToPos()
	if !tokenIn(p.tok.Kind, toks...) {
		var names []string
		for _, t := range toks {
			names = append(names, t.GoString())
		}
		lbl := strings.Join(names, ", ")
		if len(toks) > 1 {
			lbl = "one of " + lbl
		}
		p.errorExpected(pos, lbl)
		panic(errPanicMode)
	}
	p.advance()
	return pos
}

// accept consumes the current token and returns its position if it matches
// tok, otherwise it leaves the parser state untouched.
func (p *parser) accept(tok token.Token) (token.Pos, bool) {
	if p.tok.Kind != tok {
		return 0, false
	}
	pos := p.tok.Pos.ToPos()
	p.advance()
	return pos, true
}

// consumeSemi implements a simplified automatic-semicolon-insertion: an
// explicit ';' is consumed if present, otherwise the statement terminator is
// considered implicit if the next token is '}' or EOF. This does not track
// newlines, so ASI cases that genuinely depend on line breaks (e.g. a
// restricted-token rule after `return`) are not enforced.
func (p *parser) consumeSemi() {
	if pos, ok := p.accept(token.SEMI); ok {
		_ = pos
		return
	}
	if p.tok.Kind == token.RBRACE || p.tok.Kind == token.EOF {
		return
	}
	p.errorExpected(p.tok.Pos.ToPos(), "';'")
}

func tokenIn(t token.Token, toks ...token.Token) bool {
	for _, tok := range toks {
		if t == tok {
			return true
		}
	}
	return false
}

// syncToks lists tokens that are safe resumption points after a parse
// error, mirroring the set of tokens that can start a new statement.
var syncToks = map[token.Token]bool{
	token.SEMI:     true,
	token.RBRACE:   true,
	token.VAR:      true,
	token.LET:      true,
	token.CONST:    true,
	token.FUNCTION: true,
	token.IF:       true,
	token.WHILE:    true,
	token.FOR:      true,
	token.RETURN:   true,
	token.BREAK:    true,
	token.CONTINUE: true,
	token.THROW:    true,
	token.TRY:      true,
}

// syncAfterError advances the token stream until a safe resumption point is
// found, consuming a trailing ';' if that is what stopped it.
func (p *parser) syncAfterError() token.Pos {
	for p.tok.Kind != token.EOF {
		if syncToks[p.tok.Kind] {
			if p.tok.Kind == token.SEMI {
				pos := p.tok.Pos.ToPos()
				p.advance()
				return pos
			}
			return p.tok.Pos.ToPos()
		}
		p.advance()
	}
	return p.tok.Pos.ToPos()
}
