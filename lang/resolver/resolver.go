// Much of the resolver package's scoping approach (the block/function
// linked-list scope chain, and promoting a captured Local to Cell then
// recording it as a Free variable in each enclosing function) follows the
// technique used by the Starlark-go resolver, adapted here for
// JavaScript's hoisting, TDZ and lexical-this rules rather than Starlark's
// flat, function-only scoping.
//
// Package resolver implements the resolver that takes a parsed abstract
// syntax tree and resolves every identifier reference to the Binding that
// declares it, following JavaScript's scoping rules:
//
//   - var declarations and function declarations are hoisted to the
//     nearest enclosing function (or to the top level, for Global scope);
//     var is initialized to undefined at function entry, a function
//     declaration's name is bound to the function value immediately.
//   - let and const declarations are scoped to the nearest enclosing block
//     and are in a temporal dead zone (TDZ) from the start of that block
//     until their declaration statement runs.
//   - a variable referenced from a nested function becomes a "cell" in its
//     declaring function and a "free" variable in every function that
//     captures it.
//   - this is not its own kind of binding: arrow functions do not bind it,
//     so a this reference inside one resolves through the ordinary
//     free-variable capture walk to the nearest enclosing non-arrow
//     function (or to the top level, where this is undefined).
//
// Unlike a source-to-source AST mutator, this resolver does not attach
// binding information to the AST nodes themselves (doing so would require
// the ast package to import this one); instead it returns a Result holding
// side-tables keyed by AST node pointer.
package resolver

import (
	"fmt"

	"github.com/cortenjs/corten/lang/ast"
	"github.com/cortenjs/corten/lang/scanner"
	"github.com/cortenjs/corten/lang/token"
)

// Result is the output of a successful (or partially successful) resolve:
// every identifier and this-expression in the program mapped to the
// Binding it denotes, and every function literal mapped to its Function
// layout.
type Result struct {
	Idents    map[*ast.Ident]*Binding
	This      map[*ast.ThisExpr]*Binding
	Functions map[ast.Node]*Function
}

// Resolve walks prog and resolves every identifier reference. isUniversal
// reports whether a name that is never declared in the source is a host or
// language built-in (e.g. "console", "Math", "undefined"); any other
// unresolved name is reported as an error.
//
// The returned error, if non-nil, is guaranteed to be a scanner.ErrorList.
func Resolve(filename string, prog *ast.Program, isUniversal func(name string) bool) (*Result, error) {
	var r resolver
	r.filename = filename
	r.isUniversal = isUniversal
	if r.isUniversal == nil {
		r.isUniversal = func(string) bool { return false }
	}
	r.result = &Result{
		Idents:    make(map[*ast.Ident]*Binding),
		This:      make(map[*ast.ThisExpr]*Binding),
		Functions: make(map[ast.Node]*Function),
	}

	fn := &Function{Definition: prog, Global: true}
	blk := &block{fn: fn, bindings: make(map[string]*Binding)}
	fn.top = blk
	r.env = blk

	r.hoistVarsAndFuncs(prog.Block.Stmts, fn)
	for _, s := range prog.Block.Stmts {
		r.stmt(s)
	}
	r.result.Functions[prog] = fn

	r.errors.Sort()
	return r.result, r.errors.Err()
}

// block is one lexical block: a function body, a nested { ... }, or a
// synthetic block introduced around a loop or if/else arm so that its
// let/const bindings don't leak into the enclosing scope.
type block struct {
	parent   *block
	fn       *Function // the function this block belongs to
	bindings map[string]*Binding
}

type resolver struct {
	filename string
	errors   scanner.ErrorList
	result   *Result

	env *block

	isUniversal func(name string) bool
	// globals caches a single Binding per builtin name so repeated references
	// to the same universal name (e.g. console used twice) share one Binding.
	globals map[string]*Binding
}

func (r *resolver) push(b *block) {
	if b.fn == nil {
		b.fn = r.env.fn
	}
	b.parent = r.env
	b.bindings = make(map[string]*Binding)
	r.env = b
}

func (r *resolver) pop() { r.env = r.env.parent }

func (r *resolver) errorf(pos token.Pos, format string, args ...any) {
	r.errors.Add(pos.Position(r.filename), fmt.Sprintf(format, args...))
}

// subBlock runs s in a freshly pushed block, so a bare (non-block)
// statement body still gets its own scope for any synthetic bindings
// introduced around it (e.g. a for-loop's init variable).
func (r *resolver) subBlock(s ast.Stmt) {
	r.push(&block{})
	if bs, ok := s.(*ast.BlockStmt); ok {
		for _, st := range bs.Block.Stmts {
			r.stmt(st)
		}
	} else {
		r.stmt(s)
	}
	r.pop()
}

// hoistVarsAndFuncs pre-binds every var and function declaration reachable
// from stmts without crossing into a nested function body, mirroring
// JavaScript's hoisting semantics.
func (r *resolver) hoistVarsAndFuncs(stmts []ast.Stmt, fn *Function) {
	for _, s := range stmts {
		switch s := s.(type) {
		case *ast.VarDeclStmt:
			if s.Kind == token.VAR {
				for _, d := range s.Decls {
					r.hoistBind(d.Name, fn, token.VAR)
				}
			}
		case *ast.FuncDeclStmt:
			r.hoistBind(s.Fn.Name, fn, token.FUNCTION)
		case *ast.BlockStmt:
			r.hoistVarsAndFuncs(s.Block.Stmts, fn)
		case *ast.IfStmt:
			r.hoistVarsAndFuncs([]ast.Stmt{s.Then}, fn)
			if s.Else != nil {
				r.hoistVarsAndFuncs([]ast.Stmt{s.Else}, fn)
			}
		case *ast.WhileStmt:
			r.hoistVarsAndFuncs([]ast.Stmt{s.Body}, fn)
		case *ast.ForStmt:
			if s.Init != nil {
				r.hoistVarsAndFuncs([]ast.Stmt{s.Init}, fn)
			}
			r.hoistVarsAndFuncs([]ast.Stmt{s.Body}, fn)
		case *ast.ForInStmt:
			if s.Decl == token.VAR && s.Name != nil {
				r.hoistBind(s.Name, fn, token.VAR)
			}
			r.hoistVarsAndFuncs([]ast.Stmt{s.Body}, fn)
		case *ast.TryStmt:
			r.hoistVarsAndFuncs(s.Block.Stmts, fn)
			if s.CatchBlock != nil {
				r.hoistVarsAndFuncs(s.CatchBlock.Stmts, fn)
			}
			if s.FinallyBlock != nil {
				r.hoistVarsAndFuncs(s.FinallyBlock.Stmts, fn)
			}
		}
	}
}

func (r *resolver) hoistBind(ident *ast.Ident, fn *Function, kind token.Token) {
	if bdg, ok := fn.top.bindings[ident.Name]; ok {
		r.result.Idents[ident] = bdg
		return
	}
	scope := Local
	if fn.Global {
		scope = Global
	}
	bdg := &Binding{Scope: scope, Index: len(fn.Locals), Decl: ident, Kind: kind}
	fn.Locals = append(fn.Locals, bdg)
	fn.top.bindings[ident.Name] = bdg
	r.result.Idents[ident] = bdg
}

// bind declares a new, non-hoisted binding (let/const, a parameter, a catch
// parameter, or a for-in/for-of loop variable) in the current block.
func (r *resolver) bind(ident *ast.Ident, kind token.Token) *Binding {
	if _, ok := r.env.bindings[ident.Name]; ok {
		r.errorf(ident.Start, "identifier %q has already been declared", ident.Name)
	}
	scope := Local
	if r.env.fn.Global {
		scope = Global
	}
	bdg := &Binding{
		Scope: scope,
		Index: len(r.env.fn.Locals),
		Decl:  ident,
		Kind:  kind,
		TDZ:   kind == token.LET || kind == token.CONST,
	}
	r.env.fn.Locals = append(r.env.fn.Locals, bdg)
	r.env.bindings[ident.Name] = bdg
	r.result.Idents[ident] = bdg
	return bdg
}

// use resolves a referenced identifier, walking outward through enclosing
// blocks and functions, promoting a captured Local to Cell in its owning
// function and recording a Free binding in every function in between.
func (r *resolver) use(ident *ast.Ident) {
	startFn := r.env.fn
	for env := r.env; env != nil; env = env.parent {
		bdg, ok := env.bindings[ident.Name]
		if !ok {
			continue
		}
		if env.fn != startFn && bdg.Scope != Global {
			if bdg.Scope == Local {
				bdg.Scope = Cell
			}
			ix := len(r.env.fn.FreeVars)
			r.env.fn.FreeVars = append(r.env.fn.FreeVars, bdg)
			free := &Binding{Scope: Free, Index: ix, Decl: bdg.Decl, Kind: bdg.Kind, TDZ: bdg.TDZ}
			r.env.bindings[ident.Name] = free
			bdg = free
		}
		r.result.Idents[ident] = bdg
		return
	}

	if r.isUniversal(ident.Name) {
		if r.globals == nil {
			r.globals = make(map[string]*Binding)
		}
		bdg, ok := r.globals[ident.Name]
		if !ok {
			bdg = &Binding{Scope: Universal, Decl: ident}
			r.globals[ident.Name] = bdg
		}
		r.result.Idents[ident] = bdg
		return
	}

	r.errorf(ident.Start, "%s is not defined", ident.Name)
	r.result.Idents[ident] = &Binding{Scope: Undefined, Decl: ident}
}

// useThis resolves a this-expression the same way use resolves an
// identifier, except the pseudo-binding it looks for ("this") is injected
// only by non-arrow functions; see the package doc comment.
func (r *resolver) useThis(te *ast.ThisExpr) {
	startFn := r.env.fn
	for env := r.env; env != nil; env = env.parent {
		bdg, ok := env.bindings["this"]
		if !ok {
			continue
		}
		owner := findThisOwner(env)
		owner.HasThis = true
		if env.fn != startFn {
			if bdg.Scope == Local {
				bdg.Scope = Cell
			}
			ix := len(r.env.fn.FreeVars)
			r.env.fn.FreeVars = append(r.env.fn.FreeVars, bdg)
			free := &Binding{Scope: Free, Index: ix}
			r.env.bindings["this"] = free
			bdg = free
		}
		r.result.This[te] = bdg
		return
	}
	// No enclosing non-arrow function: this is the top-level (module) this,
	// which is undefined.
	r.result.This[te] = &Binding{Scope: Undefined}
}

func findThisOwner(env *block) *Function {
	for b := env; b != nil; b = b.parent {
		if _, ok := b.bindings["this"]; ok && b.fn.top == b {
			return b.fn
		}
	}
	return env.fn
}

func (r *resolver) stmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.VarDeclStmt:
		for _, d := range s.Decls {
			if d.Init != nil {
				r.expr(d.Init)
			}
			switch s.Kind {
			case token.VAR:
				// already hoisted; nothing further to bind.
			default:
				r.bind(d.Name, s.Kind)
			}
		}

	case *ast.FuncDeclStmt:
		r.funcLiteral(s.Fn, s.Fn.Params, s.Fn.Rest, s.Fn.Body, false)

	case *ast.BlockStmt:
		r.subBlock(s)

	case *ast.ExprStmt:
		r.expr(s.Expr)

	case *ast.IfStmt:
		r.expr(s.Cond)
		r.subBlock(s.Then)
		if s.Else != nil {
			r.subBlock(s.Else)
		}

	case *ast.WhileStmt:
		r.expr(s.Cond)
		r.subBlock(s.Body)

	case *ast.ForStmt:
		r.push(&block{})
		if s.Init != nil {
			r.stmt(s.Init)
		}
		if s.Cond != nil {
			r.expr(s.Cond)
		}
		if s.Post != nil {
			r.stmt(s.Post)
		}
		r.subBlock(s.Body)
		r.pop()

	case *ast.ForInStmt:
		r.expr(s.Right)
		r.push(&block{})
		if s.Decl != 0 {
			r.bind(s.Name, s.Decl)
		} else {
			r.expr(s.Target)
		}
		r.subBlock(s.Body)
		r.pop()

	case *ast.ReturnStmt:
		if s.Expr != nil {
			r.expr(s.Expr)
		}

	case *ast.BreakStmt, *ast.ContinueStmt:
		// no identifiers to resolve; labeled break/continue are out of scope.

	case *ast.ThrowStmt:
		r.expr(s.Expr)

	case *ast.TryStmt:
		r.push(&block{})
		for _, st := range s.Block.Stmts {
			r.stmt(st)
		}
		r.pop()
		if s.CatchBlock != nil {
			r.push(&block{})
			if s.CatchParam != nil {
				r.bind(s.CatchParam, 0)
			}
			for _, st := range s.CatchBlock.Stmts {
				r.stmt(st)
			}
			r.pop()
		}
		if s.FinallyBlock != nil {
			r.push(&block{})
			for _, st := range s.FinallyBlock.Stmts {
				r.stmt(st)
			}
			r.pop()
		}

	case *ast.BadStmt:
		// already reported by the parser.

	default:
		panic(fmt.Sprintf("resolver: unexpected stmt %T", stmt))
	}
}

func (r *resolver) expr(expr ast.Expr) {
	switch e := expr.(type) {
	case *ast.Ident:
		r.use(e)

	case *ast.ThisExpr:
		r.useThis(e)

	case *ast.NumberLit, *ast.StringLit, *ast.BoolLit, *ast.NullLit, *ast.BadExpr:
		// nothing to resolve.

	case *ast.SpreadElem:
		r.expr(e.Expr)

	case *ast.ArrayLit:
		for _, el := range e.Elems {
			if el != nil {
				r.expr(el)
			}
		}

	case *ast.ObjectLit:
		for _, p := range e.Props {
			if p.Computed {
				r.expr(p.Key)
			}
			r.expr(p.Value)
		}

	case *ast.FuncExpr:
		r.funcLiteral(e, e.Params, e.Rest, e.Body, false)

	case *ast.ArrowFuncExpr:
		r.funcLiteral(e, e.Params, e.Rest, e.Body, true)

	case *ast.UnaryExpr:
		r.expr(e.Right)

	case *ast.UpdateExpr:
		r.expr(e.Target)

	case *ast.BinaryExpr:
		r.expr(e.Left)
		r.expr(e.Right)

	case *ast.AssignExpr:
		r.expr(e.Right)
		r.expr(e.Left)

	case *ast.ConditionalExpr:
		r.expr(e.Cond)
		r.expr(e.Then)
		r.expr(e.Else)

	case *ast.CallExpr:
		r.expr(e.Callee)
		for _, a := range e.Args {
			r.expr(a)
		}

	case *ast.NewExpr:
		r.expr(e.Callee)
		for _, a := range e.Args {
			r.expr(a)
		}

	case *ast.MemberExpr:
		r.expr(e.Obj)
		if e.Computed {
			r.expr(e.Prop)
		}

	case *ast.AwaitExpr:
		r.expr(e.Right)

	case *ast.SequenceExpr:
		for _, sub := range e.Exprs {
			r.expr(sub)
		}

	default:
		panic(fmt.Sprintf("resolver: unexpected expr %T", expr))
	}
}

// funcLiteral resolves a function/arrow-function body, in a fresh Function
// scope whose top block holds this (for non-arrow functions) and the
// parameters.
func (r *resolver) funcLiteral(def ast.Node, params []*ast.Ident, rest *ast.Ident, body ast.Node, isArrow bool) {
	fn := &Function{Definition: def, IsArrow: isArrow}
	blk := &block{fn: fn, bindings: make(map[string]*Binding)}
	fn.top = blk
	r.push(blk)

	if !isArrow {
		blk.bindings["this"] = &Binding{Scope: Local, Index: -1}
	}
	for _, p := range params {
		r.bind(p, 0)
	}
	if rest != nil {
		r.bind(rest, 0)
	}

	switch b := body.(type) {
	case *ast.Block:
		r.hoistVarsAndFuncs(b.Stmts, fn)
		for _, s := range b.Stmts {
			r.stmt(s)
		}
	case ast.Expr:
		r.expr(b)
	default:
		panic(fmt.Sprintf("resolver: unexpected function body %T", body))
	}

	r.pop()
	r.result.Functions[def] = fn
}
