package ast

import (
	"fmt"

	"github.com/cortenjs/corten/lang/token"
)

// Unwrap strips no wrapping node today (parenthesized expressions are not
// represented as a distinct node, the parser folds them away), but callers
// use Unwrap as the stable place to add that kind of unwrapping again if a
// future node needs it.
func Unwrap(e Expr) Expr { return e }

// IsAssignable reports whether e can appear on the left of an assignment or
// as a for-in/for-of binding target.
func IsAssignable(e Expr) bool {
	switch e.(type) {
	case *Ident, *MemberExpr:
		return true
	default:
		return false
	}
}

type (
	// BadExpr represents an expression that failed to parse.
	BadExpr struct {
		Start, End token.Pos
	}

	// Ident represents an identifier reference.
	Ident struct {
		Start token.Pos
		Name  string
	}

	// NumberLit represents a numeric literal.
	NumberLit struct {
		Start token.Pos
		Raw   string
		Value float64
	}

	// StringLit represents a string literal, decoded to UTF-16 code units.
	StringLit struct {
		Start token.Pos
		Raw   string
		Value []uint16
	}

	// BoolLit represents true or false.
	BoolLit struct {
		Start token.Pos
		Value bool
	}

	// NullLit represents the null literal.
	NullLit struct {
		Start token.Pos
	}

	// ThisExpr represents the this keyword.
	ThisExpr struct {
		Start token.Pos
	}

	// SpreadElem represents a ...expr spread, valid inside array literals and
	// call argument lists.
	SpreadElem struct {
		Start token.Pos
		Expr  Expr
	}

	// ArrayLit represents an array literal. Elems may contain a nil entry to
	// represent an elision (hole), e.g. [1, , 3].
	ArrayLit struct {
		Lbrack token.Pos
		Elems  []Expr
		Rbrack token.Pos
	}

	// Property represents a single key: value entry of an object literal.
	Property struct {
		Key       Expr // *Ident or *StringLit or *NumberLit, or any Expr if Computed
		Value     Expr
		Computed  bool
		Shorthand bool
	}

	// ObjectLit represents an object literal.
	ObjectLit struct {
		Lbrace token.Pos
		Props  []*Property
		Rbrace token.Pos
	}

	// FuncExpr represents a function expression or declaration's signature
	// and body. Name is nil for anonymous function expressions.
	FuncExpr struct {
		Fn     token.Pos
		Async  bool
		Name   *Ident
		Params []*Ident
		Rest   *Ident // non-nil if the last parameter is a ...rest parameter
		Body   *Block
		End    token.Pos
	}

	// ArrowFuncExpr represents an arrow function. Body is either a *Block
	// (braced body) or an Expr (concise body, implicitly returned).
	ArrowFuncExpr struct {
		Start  token.Pos
		Async  bool
		Params []*Ident
		Rest   *Ident
		Body   Node
		End    token.Pos
	}

	// UnaryExpr represents a prefix unary operator: - + ! ~ typeof void delete.
	UnaryExpr struct {
		Op    token.Token
		Start token.Pos
		Right Expr
	}

	// UpdateExpr represents ++ or --, prefix or postfix.
	UpdateExpr struct {
		Op     token.Token
		Start  token.Pos
		End    token.Pos
		Target Expr
		Prefix bool
	}

	// BinaryExpr represents a binary operator expression, including
	// arithmetic, comparison, bitwise, and logical (&&, ||, ??) operators.
	BinaryExpr struct {
		Left  Expr
		Op    token.Token
		OpPos token.Pos
		Right Expr
	}

	// AssignExpr represents an assignment expression, e.g. x = y or x += y.
	AssignExpr struct {
		Left  Expr
		Op    token.Token
		OpPos token.Pos
		Right Expr
	}

	// ConditionalExpr represents the ternary cond ? then : else expression.
	ConditionalExpr struct {
		Cond     Expr
		Question token.Pos
		Then     Expr
		Colon    token.Pos
		Else     Expr
	}

	// CallExpr represents a function call, e.g. f(x, y). Optional is true for
	// an optional call f?.(x).
	CallExpr struct {
		Callee   Expr
		Lparen   token.Pos
		Args     []Expr
		Rparen   token.Pos
		Optional bool
	}

	// NewExpr represents a new expression, e.g. new Foo(x). Lparen is invalid
	// (zero) if the call has no argument list, e.g. new Foo.
	NewExpr struct {
		New    token.Pos
		Callee Expr
		Lparen token.Pos
		Args   []Expr
		Rparen token.Pos
	}

	// MemberExpr represents a property access, e.g. x.y or x[y]. Prop is an
	// *Ident when !Computed, any Expr when Computed.
	MemberExpr struct {
		Obj      Expr
		Prop     Expr
		Computed bool
		Optional bool
		End      token.Pos
	}

	// AwaitExpr represents an await expression.
	AwaitExpr struct {
		Start token.Pos
		Right Expr
	}

	// SequenceExpr represents the comma operator, e.g. (a, b, c).
	SequenceExpr struct {
		Exprs []Expr
	}
)

func (n *BadExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "!bad expr!", nil) }
func (n *BadExpr) Span() (start, end token.Pos)  { return n.Start, n.End }
func (n *BadExpr) Walk(v Visitor)                {}
func (n *BadExpr) expr()                         {}

func (n *Ident) Format(f fmt.State, verb rune) { format(f, verb, n, n.Name, nil) }
func (n *Ident) Span() (start, end token.Pos) {
	return n.Start, n.Start + token.Pos(len(n.Name))
}
func (n *Ident) Walk(v Visitor) {}
func (n *Ident) expr()          {}

func (n *NumberLit) Format(f fmt.State, verb rune) { format(f, verb, n, "number "+n.Raw, nil) }
func (n *NumberLit) Span() (start, end token.Pos) {
	return n.Start, n.Start + token.Pos(len(n.Raw))
}
func (n *NumberLit) Walk(v Visitor) {}
func (n *NumberLit) expr()          {}

func (n *StringLit) Format(f fmt.State, verb rune) { format(f, verb, n, "string "+n.Raw, nil) }
func (n *StringLit) Span() (start, end token.Pos) {
	return n.Start, n.Start + token.Pos(len(n.Raw))
}
func (n *StringLit) Walk(v Visitor) {}
func (n *StringLit) expr()          {}

func (n *BoolLit) Format(f fmt.State, verb rune) {
	lbl := "false"
	if n.Value {
		lbl = "true"
	}
	format(f, verb, n, lbl, nil)
}
func (n *BoolLit) Span() (start, end token.Pos) {
	if n.Value {
		return n.Start, n.Start + token.Pos(len("true"))
	}
	return n.Start, n.Start + token.Pos(len("false"))
}
func (n *BoolLit) Walk(v Visitor) {}
func (n *BoolLit) expr()          {}

func (n *NullLit) Format(f fmt.State, verb rune) { format(f, verb, n, "null", nil) }
func (n *NullLit) Span() (start, end token.Pos) {
	return n.Start, n.Start + token.Pos(len("null"))
}
func (n *NullLit) Walk(v Visitor) {}
func (n *NullLit) expr()          {}

func (n *ThisExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "this", nil) }
func (n *ThisExpr) Span() (start, end token.Pos) {
	return n.Start, n.Start + token.Pos(len("this"))
}
func (n *ThisExpr) Walk(v Visitor) {}
func (n *ThisExpr) expr()          {}

func (n *SpreadElem) Format(f fmt.State, verb rune) { format(f, verb, n, "...spread", nil) }
func (n *SpreadElem) Span() (start, end token.Pos) {
	_, end = n.Expr.Span()
	return n.Start, end
}
func (n *SpreadElem) Walk(v Visitor) { Walk(v, n.Expr) }
func (n *SpreadElem) expr()          {}

func (n *ArrayLit) Format(f fmt.State, verb rune) {
	format(f, verb, n, "array", map[string]int{"elems": len(n.Elems)})
}
func (n *ArrayLit) Span() (start, end token.Pos) {
	return n.Lbrack, n.Rbrack + token.Pos(len("]"))
}
func (n *ArrayLit) Walk(v Visitor) {
	for _, e := range n.Elems {
		if e != nil {
			Walk(v, e)
		}
	}
}
func (n *ArrayLit) expr() {}

func (n *ObjectLit) Format(f fmt.State, verb rune) {
	format(f, verb, n, "object", map[string]int{"props": len(n.Props)})
}
func (n *ObjectLit) Span() (start, end token.Pos) {
	return n.Lbrace, n.Rbrace + token.Pos(len("}"))
}
func (n *ObjectLit) Walk(v Visitor) {
	for _, p := range n.Props {
		Walk(v, p.Key)
		Walk(v, p.Value)
	}
}
func (n *ObjectLit) expr() {}

func (n *FuncExpr) Format(f fmt.State, verb rune) {
	lbl := "fn"
	if n.Async {
		lbl = "async fn"
	}
	if n.Name != nil {
		lbl += " " + n.Name.Name
	}
	format(f, verb, n, lbl, map[string]int{"params": len(n.Params)})
}
func (n *FuncExpr) Span() (start, end token.Pos) { return n.Fn, n.End }
func (n *FuncExpr) Walk(v Visitor) {
	if n.Name != nil {
		Walk(v, n.Name)
	}
	for _, p := range n.Params {
		Walk(v, p)
	}
	if n.Rest != nil {
		Walk(v, n.Rest)
	}
	Walk(v, n.Body)
}
func (n *FuncExpr) expr() {}

func (n *ArrowFuncExpr) Format(f fmt.State, verb rune) {
	lbl := "arrow fn"
	if n.Async {
		lbl = "async arrow fn"
	}
	format(f, verb, n, lbl, map[string]int{"params": len(n.Params)})
}
func (n *ArrowFuncExpr) Span() (start, end token.Pos) { return n.Start, n.End }
func (n *ArrowFuncExpr) Walk(v Visitor) {
	for _, p := range n.Params {
		Walk(v, p)
	}
	if n.Rest != nil {
		Walk(v, n.Rest)
	}
	Walk(v, n.Body)
}
func (n *ArrowFuncExpr) expr() {}

func (n *UnaryExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "unary "+n.Op.GoString(), nil)
}
func (n *UnaryExpr) Span() (start, end token.Pos) {
	_, end = n.Right.Span()
	return n.Start, end
}
func (n *UnaryExpr) Walk(v Visitor) { Walk(v, n.Right) }
func (n *UnaryExpr) expr()          {}

func (n *UpdateExpr) Format(f fmt.State, verb rune) {
	lbl := "postfix " + n.Op.GoString()
	if n.Prefix {
		lbl = "prefix " + n.Op.GoString()
	}
	format(f, verb, n, lbl, nil)
}
func (n *UpdateExpr) Span() (start, end token.Pos) { return n.Start, n.End }
func (n *UpdateExpr) Walk(v Visitor)               { Walk(v, n.Target) }
func (n *UpdateExpr) expr()                        {}

func (n *BinaryExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "binary "+n.Op.GoString(), nil)
}
func (n *BinaryExpr) Span() (start, end token.Pos) {
	start, _ = n.Left.Span()
	_, end = n.Right.Span()
	return start, end
}
func (n *BinaryExpr) Walk(v Visitor) {
	Walk(v, n.Left)
	Walk(v, n.Right)
}
func (n *BinaryExpr) expr() {}

func (n *AssignExpr) Format(f fmt.State, verb rune) {
	lbl := "assign"
	if n.Op != token.ASSIGN {
		lbl = "assign " + n.Op.GoString()
	}
	format(f, verb, n, lbl, nil)
}
func (n *AssignExpr) Span() (start, end token.Pos) {
	start, _ = n.Left.Span()
	_, end = n.Right.Span()
	return start, end
}
func (n *AssignExpr) Walk(v Visitor) {
	Walk(v, n.Left)
	Walk(v, n.Right)
}
func (n *AssignExpr) expr() {}

func (n *ConditionalExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "conditional", nil) }
func (n *ConditionalExpr) Span() (start, end token.Pos) {
	start, _ = n.Cond.Span()
	_, end = n.Else.Span()
	return start, end
}
func (n *ConditionalExpr) Walk(v Visitor) {
	Walk(v, n.Cond)
	Walk(v, n.Then)
	Walk(v, n.Else)
}
func (n *ConditionalExpr) expr() {}

func (n *CallExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "call", map[string]int{"args": len(n.Args)})
}
func (n *CallExpr) Span() (start, end token.Pos) {
	start, _ = n.Callee.Span()
	return start, n.Rparen + token.Pos(len(")"))
}
func (n *CallExpr) Walk(v Visitor) {
	Walk(v, n.Callee)
	for _, a := range n.Args {
		Walk(v, a)
	}
}
func (n *CallExpr) expr() {}

func (n *NewExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "new", map[string]int{"args": len(n.Args)})
}
func (n *NewExpr) Span() (start, end token.Pos) {
	end = n.Rparen + token.Pos(len(")"))
	if n.Lparen.Unknown() {
		_, end = n.Callee.Span()
	}
	return n.New, end
}
func (n *NewExpr) Walk(v Visitor) {
	Walk(v, n.Callee)
	for _, a := range n.Args {
		Walk(v, a)
	}
}
func (n *NewExpr) expr() {}

func (n *MemberExpr) Format(f fmt.State, verb rune) {
	lbl := "member ."
	if n.Computed {
		lbl = "member []"
	}
	format(f, verb, n, lbl, nil)
}
func (n *MemberExpr) Span() (start, end token.Pos) {
	start, _ = n.Obj.Span()
	return start, n.End
}
func (n *MemberExpr) Walk(v Visitor) {
	Walk(v, n.Obj)
	Walk(v, n.Prop)
}
func (n *MemberExpr) expr() {}

func (n *AwaitExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "await", nil) }
func (n *AwaitExpr) Span() (start, end token.Pos) {
	_, end = n.Right.Span()
	return n.Start, end
}
func (n *AwaitExpr) Walk(v Visitor) { Walk(v, n.Right) }
func (n *AwaitExpr) expr()          {}

func (n *SequenceExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "sequence", map[string]int{"exprs": len(n.Exprs)})
}
func (n *SequenceExpr) Span() (start, end token.Pos) {
	start, _ = n.Exprs[0].Span()
	_, end = n.Exprs[len(n.Exprs)-1].Span()
	return start, end
}
func (n *SequenceExpr) Walk(v Visitor) {
	for _, e := range n.Exprs {
		Walk(v, e)
	}
}
func (n *SequenceExpr) expr() {}
