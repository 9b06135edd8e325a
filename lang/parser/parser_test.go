package parser_test

import (
	"testing"

	"github.com/cortenjs/corten/lang/ast"
	"github.com/cortenjs/corten/lang/parser"
	"github.com/cortenjs/corten/lang/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := parser.ParseProgram("test.js", []byte(src))
	require.NoError(t, err)
	require.NotNil(t, prog)
	return prog
}

func TestParseLiteralsAndVarDecl(t *testing.T) {
	prog := mustParse(t, `let x = 1, y = "hi", z = true;`)
	require.Len(t, prog.Block.Stmts, 1)
	decl, ok := prog.Block.Stmts[0].(*ast.VarDeclStmt)
	require.True(t, ok)
	assert.Equal(t, token.LET, decl.Kind)
	require.Len(t, decl.Decls, 3)
	assert.Equal(t, "x", decl.Decls[0].Name.Name)
	num, ok := decl.Decls[0].Init.(*ast.NumberLit)
	require.True(t, ok)
	assert.Equal(t, float64(1), num.Value)
	str, ok := decl.Decls[1].Init.(*ast.StringLit)
	require.True(t, ok)
	assert.Equal(t, []uint16{'h', 'i'}, str.Value)
	b, ok := decl.Decls[2].Init.(*ast.BoolLit)
	require.True(t, ok)
	assert.True(t, b.Value)
}

func TestParseBinaryPrecedence(t *testing.T) {
	prog := mustParse(t, `1 + 2 * 3;`)
	stmt := prog.Block.Stmts[0].(*ast.ExprStmt)
	bin, ok := stmt.Expr.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.PLUS, bin.Op)
	_, ok = bin.Left.(*ast.NumberLit)
	assert.True(t, ok)
	rhs, ok := bin.Right.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.STAR, rhs.Op)
}

func TestParseRightAssociativeExponent(t *testing.T) {
	prog := mustParse(t, `2 ** 3 ** 2;`)
	stmt := prog.Block.Stmts[0].(*ast.ExprStmt)
	top, ok := stmt.Expr.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.STARSTAR, top.Op)
	_, ok = top.Left.(*ast.NumberLit)
	assert.True(t, ok, "left operand of outer ** should be the literal 2, not a nested binary expr")
	_, ok = top.Right.(*ast.BinaryExpr)
	assert.True(t, ok, "right operand of outer ** should itself be 3 ** 2")
}

func TestParseTernaryAndLogical(t *testing.T) {
	prog := mustParse(t, `a ? b : c || d;`)
	stmt := prog.Block.Stmts[0].(*ast.ExprStmt)
	cond, ok := stmt.Expr.(*ast.ConditionalExpr)
	require.True(t, ok)
	_, ok = cond.Else.(*ast.BinaryExpr)
	assert.True(t, ok)
}

func TestParseArrowFunctionSingleIdent(t *testing.T) {
	prog := mustParse(t, `const f = x => x + 1;`)
	decl := prog.Block.Stmts[0].(*ast.VarDeclStmt)
	fn, ok := decl.Decls[0].Init.(*ast.ArrowFuncExpr)
	require.True(t, ok)
	require.Len(t, fn.Params, 1)
	assert.Equal(t, "x", fn.Params[0].Name)
	_, ok = fn.Body.(ast.Expr)
	assert.True(t, ok, "concise arrow body should parse as a bare expression")
}

func TestParseArrowFunctionParenParams(t *testing.T) {
	prog := mustParse(t, `const f = (a, b) => { return a + b; };`)
	decl := prog.Block.Stmts[0].(*ast.VarDeclStmt)
	fn, ok := decl.Decls[0].Init.(*ast.ArrowFuncExpr)
	require.True(t, ok)
	require.Len(t, fn.Params, 2)
	_, ok = fn.Body.(*ast.Block)
	assert.True(t, ok, "braced arrow body should parse as a block")
}

func TestParseParenGroupedExpressionIsNotArrow(t *testing.T) {
	prog := mustParse(t, `(a, b);`)
	stmt := prog.Block.Stmts[0].(*ast.ExprStmt)
	_, ok := stmt.Expr.(*ast.SequenceExpr)
	assert.True(t, ok, "(a, b) not followed by => should parse as a sequence expression")
}

func TestParseAsyncArrowAndAwait(t *testing.T) {
	prog := mustParse(t, `const f = async (x) => await x;`)
	decl := prog.Block.Stmts[0].(*ast.VarDeclStmt)
	fn, ok := decl.Decls[0].Init.(*ast.ArrowFuncExpr)
	require.True(t, ok)
	assert.True(t, fn.Async)
	_, ok = fn.Body.(*ast.AwaitExpr)
	assert.True(t, ok)
}

func TestParseAsyncFunctionDeclaration(t *testing.T) {
	prog := mustParse(t, `async function f() { return 1; }`)
	decl, ok := prog.Block.Stmts[0].(*ast.FuncDeclStmt)
	require.True(t, ok)
	assert.True(t, decl.Fn.Async)
	assert.Equal(t, "f", decl.Fn.Name.Name)
}

func TestParseNewExpressionBindsTighterThanCall(t *testing.T) {
	prog := mustParse(t, `new Foo.Bar(1).baz();`)
	stmt := prog.Block.Stmts[0].(*ast.ExprStmt)
	call, ok := stmt.Expr.(*ast.CallExpr)
	require.True(t, ok)
	member, ok := call.Callee.(*ast.MemberExpr)
	require.True(t, ok)
	assert.False(t, member.Computed)
	newExpr, ok := member.Obj.(*ast.NewExpr)
	require.True(t, ok)
	require.Len(t, newExpr.Args, 1)
	_, ok = newExpr.Callee.(*ast.MemberExpr)
	assert.True(t, ok, "new Foo.Bar should resolve Foo.Bar as the callee before the argument list")
}

func TestParseOptionalChaining(t *testing.T) {
	prog := mustParse(t, `a?.b?.[0]?.();`)
	stmt := prog.Block.Stmts[0].(*ast.ExprStmt)
	call, ok := stmt.Expr.(*ast.CallExpr)
	require.True(t, ok)
	assert.True(t, call.Optional)
	member, ok := call.Callee.(*ast.MemberExpr)
	require.True(t, ok)
	assert.True(t, member.Optional)
	assert.True(t, member.Computed)
}

func TestParseClassicForLoop(t *testing.T) {
	prog := mustParse(t, `for (let i = 0; i < 10; i++) { x = i; }`)
	forStmt, ok := prog.Block.Stmts[0].(*ast.ForStmt)
	require.True(t, ok)
	require.NotNil(t, forStmt.Init)
	require.NotNil(t, forStmt.Cond)
	require.NotNil(t, forStmt.Post)
}

func TestParseForInAndForOf(t *testing.T) {
	prog := mustParse(t, `for (const k in obj) {}
for (const v of list) {}`)
	require.Len(t, prog.Block.Stmts, 2)

	forIn, ok := prog.Block.Stmts[0].(*ast.ForInStmt)
	require.True(t, ok)
	assert.False(t, forIn.Of)
	assert.Equal(t, token.CONST, forIn.Decl)

	forOf, ok := prog.Block.Stmts[1].(*ast.ForInStmt)
	require.True(t, ok)
	assert.True(t, forOf.Of)
}

func TestParseForLoopInNotConfusedWithForIn(t *testing.T) {
	// Exercises the noIn-threading fix for the for-loop head ambiguity: the
	// `in` here is the relational operator inside the loop condition, not a
	// for-in binding.
	prog := mustParse(t, `for (let has = x; has in y; ) {}`)
	forStmt, ok := prog.Block.Stmts[0].(*ast.ForStmt)
	require.True(t, ok)
	_, ok = forStmt.Init.(*ast.VarDeclStmt)
	require.True(t, ok)
	bin, ok := forStmt.Cond.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.IN, bin.Op)
}

func TestParseTryCatchFinally(t *testing.T) {
	prog := mustParse(t, `try { risky(); } catch (e) { handle(e); } finally { cleanup(); }`)
	tryStmt, ok := prog.Block.Stmts[0].(*ast.TryStmt)
	require.True(t, ok)
	require.NotNil(t, tryStmt.CatchBlock)
	require.NotNil(t, tryStmt.FinallyBlock)
	require.NotNil(t, tryStmt.CatchParam)
	assert.Equal(t, "e", tryStmt.CatchParam.Name)
}

func TestParseObjectLiteralShorthandAndComputed(t *testing.T) {
	prog := mustParse(t, `const o = { x, [key]: 1, "s": 2 };`)
	decl := prog.Block.Stmts[0].(*ast.VarDeclStmt)
	obj, ok := decl.Decls[0].Init.(*ast.ObjectLit)
	require.True(t, ok)
	require.Len(t, obj.Props, 3)
	assert.True(t, obj.Props[0].Shorthand)
	assert.True(t, obj.Props[1].Computed)
}

func TestParseArrayLiteralHolesAndSpread(t *testing.T) {
	prog := mustParse(t, `const a = [1, , ...rest];`)
	decl := prog.Block.Stmts[0].(*ast.VarDeclStmt)
	arr, ok := decl.Decls[0].Init.(*ast.ArrayLit)
	require.True(t, ok)
	require.Len(t, arr.Elems, 3)
	assert.Nil(t, arr.Elems[1])
	_, ok = arr.Elems[2].(*ast.SpreadElem)
	assert.True(t, ok)
}

func TestParseErrorRecoveryProducesBadStmt(t *testing.T) {
	prog, err := parser.ParseProgram("test.js", []byte(`let ; x = 1;`))
	require.Error(t, err)
	require.NotNil(t, prog)

	var sawBad bool
	for _, s := range prog.Block.Stmts {
		if _, ok := s.(*ast.BadStmt); ok {
			sawBad = true
		}
	}
	assert.True(t, sawBad, "malformed declaration should recover into a BadStmt rather than aborting the whole parse")
}

func TestParseUnreachableStatementAfterReturn(t *testing.T) {
	prog := mustParse(t, `function f() { return 1; x(); }`)
	decl := prog.Block.Stmts[0].(*ast.FuncDeclStmt)
	require.Len(t, decl.Fn.Body.Stmts, 2)
	_, err := parser.ParseProgram("test.js", []byte(`function f() { return 1; x(); }`))
	assert.NoError(t, err, "a statement after return is unreachable but not a syntax error")
}
