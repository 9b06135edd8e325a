package resolver_test

import (
	"testing"

	"github.com/cortenjs/corten/lang/ast"
	"github.com/cortenjs/corten/lang/parser"
	"github.com/cortenjs/corten/lang/resolver"
	"github.com/cortenjs/corten/lang/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustResolve(t *testing.T, src string, isUniversal func(string) bool) (*ast.Program, *resolver.Result) {
	t.Helper()
	prog, err := parser.ParseProgram("test.js", []byte(src))
	require.NoError(t, err)
	res, err := resolver.Resolve("test.js", prog, isUniversal)
	require.NoError(t, err)
	return prog, res
}

func consoleIsUniversal(name string) bool { return name == "console" || name == "undefined" }

func TestResolveGlobalVarDeclaration(t *testing.T) {
	prog, res := mustResolve(t, `var x = 1; x;`, nil)
	decl := prog.Block.Stmts[0].(*ast.VarDeclStmt)
	bdg := res.Idents[decl.Decls[0].Name]
	require.NotNil(t, bdg)
	assert.Equal(t, resolver.Global, bdg.Scope)
	assert.Equal(t, token.VAR, bdg.Kind)
}

func TestResolveLetIsTDZUntilDeclared(t *testing.T) {
	prog, res := mustResolve(t, `let x = 1;`, nil)
	decl := prog.Block.Stmts[0].(*ast.VarDeclStmt)
	bdg := res.Idents[decl.Decls[0].Name]
	require.NotNil(t, bdg)
	assert.True(t, bdg.TDZ)
	assert.Equal(t, token.LET, bdg.Kind)
}

func TestResolveVarIsNotTDZ(t *testing.T) {
	prog, res := mustResolve(t, `var x = 1;`, nil)
	decl := prog.Block.Stmts[0].(*ast.VarDeclStmt)
	bdg := res.Idents[decl.Decls[0].Name]
	require.NotNil(t, bdg)
	assert.False(t, bdg.TDZ)
}

func TestResolveVarHoistedAboveUse(t *testing.T) {
	// x is referenced before its declaration runs; hoisting means it still
	// resolves to the same function-local binding rather than erroring.
	_, res := mustResolve(t, `function f() { x = 1; var x; }`, nil)
	var binds []*resolver.Binding
	for id, bdg := range res.Idents {
		if id.Name == "x" {
			binds = append(binds, bdg)
		}
	}
	require.Len(t, binds, 2)
	assert.Same(t, binds[0], binds[1])
	assert.Equal(t, resolver.Local, binds[0].Scope)
}

func TestResolveVarHoistedOutOfNestedBlocks(t *testing.T) {
	_, res := mustResolve(t, `function f() {
		if (true) {
			for (var i = 0; i < 1; i++) {
				var y = i;
			}
		}
		return y;
	}`, nil)
	var yBindings []*resolver.Binding
	for id, bdg := range res.Idents {
		if id.Name == "y" {
			yBindings = append(yBindings, bdg)
		}
	}
	require.Len(t, yBindings, 2)
	assert.Same(t, yBindings[0], yBindings[1])
}

func TestResolveVarHoistingStopsAtNestedFunction(t *testing.T) {
	_, err := resolverErr(t, `function outer() {
		function inner() { var z = 1; }
		return z;
	}`)
	require.Error(t, err, "var declared inside inner should not be visible in outer")
}

func resolverErr(t *testing.T, src string) (*resolver.Result, error) {
	t.Helper()
	prog, err := parser.ParseProgram("test.js", []byte(src))
	require.NoError(t, err)
	return resolver.Resolve("test.js", prog, nil)
}

func TestResolveClosureCapturePromotesToCellAndFree(t *testing.T) {
	src := `function outer() {
		var x = 1;
		function inner() {
			return x;
		}
		return inner;
	}`
	prog, res := mustResolve(t, src, nil)
	outerDecl := prog.Block.Stmts[0].(*ast.FuncDeclStmt)
	outerBody := outerDecl.Fn.Body
	outerVarDecl := outerBody.Stmts[0].(*ast.VarDeclStmt)
	outerBdg := res.Idents[outerVarDecl.Decls[0].Name]
	require.NotNil(t, outerBdg)
	assert.Equal(t, resolver.Cell, outerBdg.Scope, "x is captured by inner, so outer's own binding promotes to Cell")

	innerDecl := outerBody.Stmts[1].(*ast.FuncDeclStmt)
	innerReturn := innerDecl.Fn.Body.Stmts[0].(*ast.ReturnStmt)
	innerIdent := innerReturn.Expr.(*ast.Ident)
	innerBdg := res.Idents[innerIdent]
	require.NotNil(t, innerBdg)
	assert.Equal(t, resolver.Free, innerBdg.Scope, "inner sees x as a Free variable captured from outer")
}

func TestResolveBlockScopedLetDoesNotLeak(t *testing.T) {
	_, err := resolverErr(t, `{ let x = 1; } x;`)
	assert.Error(t, err, "x declared inside a block should not be visible after it")
}

func TestResolveDuplicateDeclarationInSameBlockErrors(t *testing.T) {
	_, err := resolverErr(t, `let x = 1; let x = 2;`)
	assert.Error(t, err)
}

func TestResolveShadowingInNestedBlockIsAllowed(t *testing.T) {
	_, err := resolverErr(t, `let x = 1; { let x = 2; }`)
	assert.NoError(t, err)
}

func TestResolveUndefinedIdentifierErrors(t *testing.T) {
	_, err := resolverErr(t, `y;`)
	assert.Error(t, err)
}

func TestResolveUniversalNameResolvesWithoutError(t *testing.T) {
	prog, res := mustResolve(t, `console.log(1);`, consoleIsUniversal)
	stmt := prog.Block.Stmts[0].(*ast.ExprStmt)
	call := stmt.Expr.(*ast.CallExpr)
	member := call.Callee.(*ast.MemberExpr)
	ident := member.Obj.(*ast.Ident)
	bdg := res.Idents[ident]
	require.NotNil(t, bdg)
	assert.Equal(t, resolver.Universal, bdg.Scope)
}

func TestResolveThisInPlainFunctionIsItsOwnBinding(t *testing.T) {
	src := `function f() { return this; }`
	prog, res := mustResolve(t, src, nil)
	decl := prog.Block.Stmts[0].(*ast.FuncDeclStmt)
	ret := decl.Fn.Body.Stmts[0].(*ast.ReturnStmt)
	this := ret.Expr.(*ast.ThisExpr)
	bdg := res.This[this]
	require.NotNil(t, bdg)
	assert.Equal(t, resolver.Local, bdg.Scope)

	fn := res.Functions[decl.Fn]
	require.NotNil(t, fn)
	assert.True(t, fn.HasThis)
}

func TestResolveThisInArrowCapturesEnclosingFunction(t *testing.T) {
	src := `function f() {
		const g = () => this;
		return g;
	}`
	prog, res := mustResolve(t, src, nil)
	decl := prog.Block.Stmts[0].(*ast.FuncDeclStmt)
	varDecl := decl.Fn.Body.Stmts[0].(*ast.VarDeclStmt)
	arrow := varDecl.Decls[0].Init.(*ast.ArrowFuncExpr)
	this := arrow.Body.(*ast.ThisExpr)
	bdg := res.This[this]
	require.NotNil(t, bdg)
	assert.Equal(t, resolver.Free, bdg.Scope, "this inside an arrow resolves through capture to the enclosing function")

	fn := res.Functions[decl.Fn]
	require.NotNil(t, fn)
	assert.True(t, fn.HasThis)

	arrowFn := res.Functions[arrow]
	require.NotNil(t, arrowFn)
	assert.True(t, arrowFn.IsArrow)
}

func TestResolveThisAtTopLevelIsUndefined(t *testing.T) {
	prog, res := mustResolve(t, `this;`, nil)
	stmt := prog.Block.Stmts[0].(*ast.ExprStmt)
	this := stmt.Expr.(*ast.ThisExpr)
	bdg := res.This[this]
	require.NotNil(t, bdg)
	assert.Equal(t, resolver.Undefined, bdg.Scope)
}

func TestResolveForOfLoopVariableScopedToLoop(t *testing.T) {
	_, err := resolverErr(t, `var list = []; for (const item of list) {} item;`)
	assert.Error(t, err, "item should not be visible after the loop")
}

func TestResolveForInLoopBindsExistingTarget(t *testing.T) {
	prog, res := mustResolve(t, `var obj = {}; var key; for (key in obj) {}`, nil)
	forIn := prog.Block.Stmts[2].(*ast.ForInStmt)
	target := forIn.Target.(*ast.Ident)
	bdg := res.Idents[target]
	require.NotNil(t, bdg)
	assert.Equal(t, resolver.Global, bdg.Scope)
}

func TestResolveCatchParamScopedToCatchBlock(t *testing.T) {
	_, err := resolverErr(t, `try {} catch (e) {} e;`)
	assert.Error(t, err, "e should not be visible outside the catch block")
}

func TestResolveFunctionParametersAreLocal(t *testing.T) {
	prog, res := mustResolve(t, `function f(a, b) { return a + b; }`, nil)
	decl := prog.Block.Stmts[0].(*ast.FuncDeclStmt)
	ret := decl.Fn.Body.Stmts[0].(*ast.ReturnStmt)
	bin := ret.Expr.(*ast.BinaryExpr)
	left := bin.Left.(*ast.Ident)
	bdg := res.Idents[left]
	require.NotNil(t, bdg)
	assert.Equal(t, resolver.Local, bdg.Scope)
}

func TestResolveFunctionDeclarationNameIsGlobal(t *testing.T) {
	prog, res := mustResolve(t, `function f() {} f();`, nil)
	decl := prog.Block.Stmts[0].(*ast.FuncDeclStmt)
	bdg := res.Idents[decl.Fn.Name]
	require.NotNil(t, bdg)
	assert.Equal(t, resolver.Global, bdg.Scope)
	assert.Equal(t, token.FUNCTION, bdg.Kind)
}
