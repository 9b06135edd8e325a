package ast

import (
	"fmt"

	"github.com/cortenjs/corten/lang/token"
)

type (
	// BadStmt represents a statement that failed to parse.
	BadStmt struct {
		Start, End token.Pos
	}

	// Declarator is a single name/initializer pair within a VarDeclStmt or a
	// for-in/for-of binding.
	Declarator struct {
		Name *Ident
		Init Expr // may be nil
	}

	// VarDeclStmt represents a var, let or const declaration statement.
	VarDeclStmt struct {
		Kind  token.Token // VAR, LET or CONST
		Start token.Pos
		Decls []*Declarator
		End   token.Pos
	}

	// FuncDeclStmt represents a named function declaration.
	FuncDeclStmt struct {
		Fn *FuncExpr
	}

	// BlockStmt represents a standalone { ... } block statement.
	BlockStmt struct {
		Block *Block
	}

	// ExprStmt represents an expression used as a statement.
	ExprStmt struct {
		Expr Expr
	}

	// IfStmt represents an if/else statement. Else is nil if there is no else
	// branch; it may itself be an *IfStmt to represent an else-if chain.
	IfStmt struct {
		If   token.Pos
		Cond Expr
		Then Stmt
		Else Stmt
	}

	// WhileStmt represents a while loop.
	WhileStmt struct {
		While token.Pos
		Cond  Expr
		Body  Stmt
	}

	// ForStmt represents a classic 3-clause for loop. Init, Cond and Post may
	// all be nil.
	ForStmt struct {
		For  token.Pos
		Init Stmt // *VarDeclStmt or *ExprStmt, or nil
		Cond Expr
		Post Stmt // *ExprStmt, or nil
		Body Stmt
	}

	// ForInStmt represents a for-in or for-of (including for-await-of) loop.
	ForInStmt struct {
		For    token.Pos
		Decl   token.Token // VAR, LET or CONST; 0 if binding to an existing target
		Target Expr        // *Ident or *MemberExpr when Decl == 0
		Name   *Ident      // binding name when Decl != 0
		Of     bool        // true: for-of, false: for-in
		Await  bool        // true: for-await-of
		Right  Expr
		Body   Stmt
	}

	// ReturnStmt represents a return statement. Expr may be nil.
	ReturnStmt struct {
		Start token.Pos
		Expr  Expr
	}

	// BreakStmt represents a break statement.
	BreakStmt struct {
		Start token.Pos
	}

	// ContinueStmt represents a continue statement.
	ContinueStmt struct {
		Start token.Pos
	}

	// ThrowStmt represents a throw statement.
	ThrowStmt struct {
		Start token.Pos
		Expr  Expr
	}

	// TryStmt represents a try/catch/finally statement. CatchBlock and
	// FinallyBlock may both be present, or either one alone (but not
	// neither). CatchParam is nil for a parameter-less catch.
	TryStmt struct {
		Try          token.Pos
		Block        *Block
		CatchParam   *Ident
		CatchBlock   *Block
		FinallyBlock *Block
		End          token.Pos
	}
)

func (n *BadStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "!bad stmt!", nil) }
func (n *BadStmt) Span() (start, end token.Pos)  { return n.Start, n.End }
func (n *BadStmt) Walk(v Visitor)                {}
func (n *BadStmt) BlockEnding() bool              { return false }

func (n *VarDeclStmt) Format(f fmt.State, verb rune) {
	format(f, verb, n, n.Kind.String()+" declaration", map[string]int{"decls": len(n.Decls)})
}
func (n *VarDeclStmt) Span() (start, end token.Pos) { return n.Start, n.End }
func (n *VarDeclStmt) Walk(v Visitor) {
	for _, d := range n.Decls {
		Walk(v, d.Name)
		if d.Init != nil {
			Walk(v, d.Init)
		}
	}
}
func (n *VarDeclStmt) BlockEnding() bool { return false }

func (n *FuncDeclStmt) Format(f fmt.State, verb rune) {
	lbl := "fn decl"
	if n.Fn.Async {
		lbl = "async fn decl"
	}
	format(f, verb, n, lbl+" "+n.Fn.Name.Name, map[string]int{"params": len(n.Fn.Params)})
}
func (n *FuncDeclStmt) Span() (start, end token.Pos) { return n.Fn.Span() }
func (n *FuncDeclStmt) Walk(v Visitor)               { Walk(v, n.Fn) }
func (n *FuncDeclStmt) BlockEnding() bool            { return false }

func (n *BlockStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "block stmt", nil) }
func (n *BlockStmt) Span() (start, end token.Pos)  { return n.Block.Span() }
func (n *BlockStmt) Walk(v Visitor)                { Walk(v, n.Block) }
func (n *BlockStmt) BlockEnding() bool             { return false }

func (n *ExprStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "expr stmt", nil) }
func (n *ExprStmt) Span() (start, end token.Pos)  { return n.Expr.Span() }
func (n *ExprStmt) Walk(v Visitor)                { Walk(v, n.Expr) }
func (n *ExprStmt) BlockEnding() bool             { return false }

func (n *IfStmt) Format(f fmt.State, verb rune) {
	lbl := "if"
	if n.Else != nil {
		lbl += " else"
	}
	format(f, verb, n, lbl, nil)
}
func (n *IfStmt) Span() (start, end token.Pos) {
	if n.Else != nil {
		_, end = n.Else.Span()
	} else {
		_, end = n.Then.Span()
	}
	return n.If, end
}
func (n *IfStmt) Walk(v Visitor) {
	Walk(v, n.Cond)
	Walk(v, n.Then)
	if n.Else != nil {
		Walk(v, n.Else)
	}
}
func (n *IfStmt) BlockEnding() bool { return false }

func (n *WhileStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "while", nil) }
func (n *WhileStmt) Span() (start, end token.Pos) {
	_, end = n.Body.Span()
	return n.While, end
}
func (n *WhileStmt) Walk(v Visitor) {
	Walk(v, n.Cond)
	Walk(v, n.Body)
}
func (n *WhileStmt) BlockEnding() bool { return false }

func (n *ForStmt) Format(f fmt.State, verb rune) {
	var clauses int
	if n.Init != nil {
		clauses++
	}
	if n.Cond != nil {
		clauses++
	}
	if n.Post != nil {
		clauses++
	}
	format(f, verb, n, "for", map[string]int{"clauses": clauses})
}
func (n *ForStmt) Span() (start, end token.Pos) {
	_, end = n.Body.Span()
	return n.For, end
}
func (n *ForStmt) Walk(v Visitor) {
	if n.Init != nil {
		Walk(v, n.Init)
	}
	if n.Cond != nil {
		Walk(v, n.Cond)
	}
	if n.Post != nil {
		Walk(v, n.Post)
	}
	Walk(v, n.Body)
}
func (n *ForStmt) BlockEnding() bool { return false }

func (n *ForInStmt) Format(f fmt.State, verb rune) {
	lbl := "for in"
	if n.Of {
		lbl = "for of"
		if n.Await {
			lbl = "for await of"
		}
	}
	format(f, verb, n, lbl, nil)
}
func (n *ForInStmt) Span() (start, end token.Pos) {
	_, end = n.Body.Span()
	return n.For, end
}
func (n *ForInStmt) Walk(v Visitor) {
	if n.Name != nil {
		Walk(v, n.Name)
	} else {
		Walk(v, n.Target)
	}
	Walk(v, n.Right)
	Walk(v, n.Body)
}
func (n *ForInStmt) BlockEnding() bool { return false }

func (n *ReturnStmt) Format(f fmt.State, verb rune) {
	var has int
	if n.Expr != nil {
		has = 1
	}
	format(f, verb, n, "return", map[string]int{"expr": has})
}
func (n *ReturnStmt) Span() (start, end token.Pos) {
	end = n.Start + token.Pos(len("return"))
	if n.Expr != nil {
		_, end = n.Expr.Span()
	}
	return n.Start, end
}
func (n *ReturnStmt) Walk(v Visitor) {
	if n.Expr != nil {
		Walk(v, n.Expr)
	}
}
func (n *ReturnStmt) BlockEnding() bool { return true }

func (n *BreakStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "break", nil) }
func (n *BreakStmt) Span() (start, end token.Pos) {
	return n.Start, n.Start + token.Pos(len("break"))
}
func (n *BreakStmt) Walk(v Visitor)     {}
func (n *BreakStmt) BlockEnding() bool  { return true }

func (n *ContinueStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "continue", nil) }
func (n *ContinueStmt) Span() (start, end token.Pos) {
	return n.Start, n.Start + token.Pos(len("continue"))
}
func (n *ContinueStmt) Walk(v Visitor)    {}
func (n *ContinueStmt) BlockEnding() bool { return true }

func (n *ThrowStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "throw", nil) }
func (n *ThrowStmt) Span() (start, end token.Pos) {
	_, end = n.Expr.Span()
	return n.Start, end
}
func (n *ThrowStmt) Walk(v Visitor)    { Walk(v, n.Expr) }
func (n *ThrowStmt) BlockEnding() bool { return true }

func (n *TryStmt) Format(f fmt.State, verb rune) {
	var hasCatch, hasFinally int
	if n.CatchBlock != nil {
		hasCatch = 1
	}
	if n.FinallyBlock != nil {
		hasFinally = 1
	}
	format(f, verb, n, "try", map[string]int{"catch": hasCatch, "finally": hasFinally})
}
func (n *TryStmt) Span() (start, end token.Pos) { return n.Try, n.End }
func (n *TryStmt) Walk(v Visitor) {
	Walk(v, n.Block)
	if n.CatchParam != nil {
		Walk(v, n.CatchParam)
	}
	if n.CatchBlock != nil {
		Walk(v, n.CatchBlock)
	}
	if n.FinallyBlock != nil {
		Walk(v, n.FinallyBlock)
	}
}
func (n *TryStmt) BlockEnding() bool { return false }
