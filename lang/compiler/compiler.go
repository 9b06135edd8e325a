// Much of the compiler package's shape (Funcode layout, CONSTANT/locals/
// freevars tables, the assembler/disassembler pair in asm.go, and reusing a
// PC-range table for non-local control flow) is adapted from the Starlark
// source code:
// https://github.com/google/starlark-go/tree/ee8ed142361c69d52fe8e9fb5e311d2a0a7c02de
//
// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compiler takes a parsed and resolved AST and compiles it directly
// to bytecode in a single pass: each statement and expression emits its
// instructions immediately, with forward jumps (if/while/for/&&/||/try)
// backpatched once their target address is known, rather than first
// building a control-flow graph of basic blocks and linearizing it
// afterwards. It also provides a pseudo-assembly serialization (asm.go) to
// encode a program in textual form for tests that want to exercise the
// machine without going through parsing and resolution.
package compiler

import (
	"fmt"

	"github.com/cortenjs/corten/lang/ast"
	"github.com/cortenjs/corten/lang/resolver"
	"github.com/cortenjs/corten/lang/token"
)

// Compile compiles prog (whose identifiers and function literals have
// already been resolved into res) into a Program. An AST that resulted in
// errors at resolve time should never be passed here; behavior is
// undefined.
func Compile(prog *ast.Program, res *resolver.Result, filename string) *Program {
	pcomp := &pcomp{
		prog: &Program{Filename: filename},
		res:  res,
		names: make(map[string]uint32),
		constants: make(map[any]uint32),
	}
	fn := res.Functions[prog]
	top := pcomp.function("", prog.Block, fn, false)
	pcomp.prog.Toplevel = top
	return pcomp.prog
}

// pcomp holds state shared across every function compiled from one Program.
type pcomp struct {
	prog *Program
	res  *resolver.Result

	names     map[string]uint32
	constants map[any]uint32
}

func (p *pcomp) nameIndex(name string) uint32 {
	if i, ok := p.names[name]; ok {
		return i
	}
	i := uint32(len(p.prog.Names))
	p.prog.Names = append(p.prog.Names, name)
	p.names[name] = i
	return i
}

func (p *pcomp) constIndex(c any) uint32 {
	if i, ok := p.constants[c]; ok {
		return i
	}
	i := uint32(len(p.prog.Constants))
	p.prog.Constants = append(p.prog.Constants, c)
	p.constants[c] = i
	return i
}

// function compiles one function body (or, when top is true is implied by
// fn.Global, the program's top level) into a Funcode.
func (p *pcomp) function(name string, body *ast.Block, fn *resolver.Function, isAsync bool) *Funcode {
	fc := &fcomp{
		pcomp: p,
		fn: &Funcode{
			Prog:    p.prog,
			Name:    name,
			IsAsync: isAsync,
		},
		rfn: fn,
	}

	for i, b := range fn.Locals {
		fc.fn.Locals = append(fc.fn.Locals, Binding{Name: b.Decl.Name})
		if b.Scope == resolver.Cell {
			fc.fn.Cells = append(fc.fn.Cells, i)
		}
	}
	for _, b := range fn.FreeVars {
		fc.fn.Freevars = append(fc.fn.Freevars, Binding{Name: b.Decl.Name})
	}
	switch def := fn.Definition.(type) {
	case *ast.FuncExpr:
		fc.fn.NumParams, fc.fn.HasVarargs = len(def.Params), def.Rest != nil
	case *ast.ArrowFuncExpr:
		fc.fn.NumParams, fc.fn.HasVarargs = len(def.Params), def.Rest != nil
	}
	if fc.fn.HasVarargs {
		fc.fn.NumParams++
	}

	// Function entry: build and bind every function declared directly in
	// this body before its first statement runs.
	for _, s := range body.Stmts {
		if d, ok := s.(*ast.FuncDeclStmt); ok {
			fc.compileFuncExpr(d.Fn)
			fc.storeBinding(fc.binding(d.Fn.Name))
		}
	}

	fc.stmts(body.Stmts)
	// Fall off the end: return undefined.
	if !fc.lastWasReturn {
		fc.emit(UNDEFINED, 0)
		fc.emit(RETURN, 0)
	}

	fc.fn.MaxStack = fc.maxstack
	if len(p.prog.Functions) == 0 && p.prog.Toplevel == nil {
		// first function compiled becomes nothing special here; Toplevel is
		// set explicitly by Compile for the program's own body.
	}
	if fn.Global {
		return fc.fn
	}
	p.prog.Functions = append(p.prog.Functions, fc.fn)
	return fc.fn
}

// loopCtx tracks the patch sites that break/continue must backpatch once a
// loop's start and end addresses are known.
type loopCtx struct {
	breaks, continues []int // byte offset of the 4-byte jump argument to patch
	continueTarget    int   // -1 until known (ForStmt's post-expression address)
}

// fcomp holds the compiler state for a single Funcode.
type fcomp struct {
	pcomp *pcomp
	fn    *Funcode
	rfn   *resolver.Function

	stack    int // current simulated operand stack depth
	maxstack int

	loops []*loopCtx

	lastWasReturn bool
}

func (fc *fcomp) stmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		fc.lastWasReturn = false
		fc.stmt(s)
	}
}

// emit appends one instruction and updates the simulated stack depth.
func (fc *fcomp) emit(op Opcode, arg uint32) int {
	addr := len(fc.fn.Code)
	fc.fn.Code = encodeInsn(fc.fn.Code, op, arg)
	se := int(stackEffect[op])
	if se != variableStackEffect {
		fc.stack += se
		if fc.stack > fc.maxstack {
			fc.maxstack = fc.stack
		}
		if fc.stack < 0 {
			fc.stack = 0 // best-effort: some variable-effect ops are approximated as 0 above
		}
	}
	return addr
}

// emitVar is like emit but for instructions whose stack effect depends on
// arg (CALL, NEW_ARRAY, ...); delta is the caller-computed net effect.
func (fc *fcomp) emitVar(op Opcode, arg uint32, delta int) int {
	addr := len(fc.fn.Code)
	fc.fn.Code = encodeInsn(fc.fn.Code, op, arg)
	fc.stack += delta
	if fc.stack > fc.maxstack {
		fc.maxstack = fc.stack
	}
	return addr
}

// emitJump emits a jump-family instruction with a placeholder target and
// returns the byte offset of its 4-byte argument, to be patched later via
// patchJump.
func (fc *fcomp) emitJump(op Opcode) int {
	addr := len(fc.fn.Code)
	fc.fn.Code = encodeInsn(fc.fn.Code, op, 0)
	se := int(stackEffect[op])
	if se != variableStackEffect {
		fc.stack += se
	}
	return addr + 1 // offset of the argument, immediately after the opcode byte
}

// patchJump overwrites the 4-byte argument at argAddr (as returned by
// emitJump) with the current code address.
func (fc *fcomp) patchJump(argAddr int) { fc.patchJumpTo(argAddr, len(fc.fn.Code)) }

func (fc *fcomp) patchJumpTo(argAddr int, target int) {
	x := uint32(target)
	for i := 0; i < 4; i++ {
		fc.fn.Code[argAddr+i] = byte(x)
		x >>= 8
	}
}

func (fc *fcomp) here() int { return len(fc.fn.Code) }

// binding returns the resolved Binding for an identifier reference.
func (fc *fcomp) binding(id *ast.Ident) *resolver.Binding {
	return fc.pcomp.res.Idents[id]
}

func (fc *fcomp) localIndex(b *resolver.Binding) uint32 { return uint32(b.Index) }

// ---- statements ----

func (fc *fcomp) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.VarDeclStmt:
		for _, d := range s.Decls {
			b := fc.binding(d.Name)
			if d.Init != nil {
				fc.expr(d.Init)
			} else {
				fc.emit(UNDEFINED, 0)
			}
			fc.storeBinding(b)
		}

	case *ast.FuncDeclStmt:
		// Hoisted: a declaration directly in a function body (or the top
		// level) is built and bound at function entry (see function), so it
		// emits nothing here.

	case *ast.BlockStmt:
		fc.stmts(s.Block.Stmts)

	case *ast.ExprStmt:
		fc.expr(s.Expr)
		fc.emit(POP, 0)

	case *ast.IfStmt:
		fc.expr(s.Cond)
		elseJump := fc.emitJump(JUMP_IF_FALSE)
		fc.stmt(s.Then)
		if s.Else != nil {
			endJump := fc.emitJump(JUMP)
			fc.patchJump(elseJump)
			fc.stmt(s.Else)
			fc.patchJump(endJump)
		} else {
			fc.patchJump(elseJump)
		}

	case *ast.WhileStmt:
		lc := &loopCtx{continueTarget: -1}
		fc.loops = append(fc.loops, lc)
		start := fc.here()
		lc.continueTarget = start
		fc.expr(s.Cond)
		exit := fc.emitJump(JUMP_IF_FALSE)
		fc.stmt(s.Body)
		back := fc.emitJump(JUMP)
		fc.patchJumpTo(back, start)
		fc.patchJump(exit)
		fc.closeLoop(lc)

	case *ast.ForStmt:
		if s.Init != nil {
			fc.stmt(s.Init)
		}
		lc := &loopCtx{continueTarget: -1}
		fc.loops = append(fc.loops, lc)
		start := fc.here()
		var exit int
		hasExit := s.Cond != nil
		if hasExit {
			fc.expr(s.Cond)
			exit = fc.emitJump(JUMP_IF_FALSE)
		}
		fc.stmt(s.Body)
		postAddr := fc.here()
		lc.continueTarget = postAddr
		if s.Post != nil {
			fc.stmt(s.Post)
		}
		back := fc.emitJump(JUMP)
		fc.patchJumpTo(back, start)
		if hasExit {
			fc.patchJump(exit)
		}
		fc.closeLoop(lc)

	case *ast.ForInStmt:
		fc.compileForIn(s)

	case *ast.ReturnStmt:
		if s.Expr != nil {
			fc.expr(s.Expr)
		} else {
			fc.emit(UNDEFINED, 0)
		}
		fc.emit(RETURN, 0)
		fc.lastWasReturn = true

	case *ast.BreakStmt:
		if len(fc.loops) > 0 {
			lc := fc.loops[len(fc.loops)-1]
			lc.breaks = append(lc.breaks, fc.emitJump(JUMP))
		}

	case *ast.ContinueStmt:
		if len(fc.loops) > 0 {
			lc := fc.loops[len(fc.loops)-1]
			lc.continues = append(lc.continues, fc.emitJump(JUMP))
		}

	case *ast.ThrowStmt:
		fc.expr(s.Expr)
		fc.emit(THROW, 0)

	case *ast.TryStmt:
		fc.compileTry(s)

	case *ast.BadStmt:
		// Parser already reported an error; compile as a no-op.

	default:
		panic(fmt.Sprintf("compiler: unhandled statement %T", s))
	}
}

// closeLoop backpatches every break/continue collected for lc.
func (fc *fcomp) closeLoop(lc *loopCtx) {
	fc.loops = fc.loops[:len(fc.loops)-1]
	for _, addr := range lc.breaks {
		fc.patchJump(addr)
	}
	for _, addr := range lc.continues {
		fc.patchJumpTo(addr, lc.continueTarget)
	}
}

// compileForIn compiles for-in (own enumerable keys) and for-of (iterator
// protocol, including for-await-of as for-of plus an implicit AWAIT of each
// yielded value).
func (fc *fcomp) compileForIn(s *ast.ForInStmt) {
	fc.expr(s.Right)
	if s.Of {
		fc.emit(ITERPUSH, 0)
	} else {
		fc.emit(FOR_IN_PUSH, 0)
	}

	lc := &loopCtx{continueTarget: -1}
	fc.loops = append(fc.loops, lc)
	start := fc.here()
	lc.continueTarget = start
	exit := fc.emitJump(ITERJMP)

	if s.Of && s.Await {
		fc.emit(AWAIT, 0)
	}

	if s.Decl != 0 {
		b := fc.binding(s.Name)
		fc.storeBinding(b)
	} else {
		fc.storeTarget(s.Target)
	}

	fc.stmt(s.Body)
	back := fc.emitJump(JUMP)
	fc.patchJumpTo(back, start)
	fc.patchJump(exit)
	fc.emit(ITERPOP, 0)
	fc.closeLoop(lc)
}

// compileTry compiles try/catch/finally using PC-range Defer/Catch table
// entries rather than ordinary jumps: the interpreter consults these tables
// on every non-local exit (return, throw, break, continue, or simply
// falling off the end of the protected region) to decide which cleanup
// code, if any, must run first.
func (fc *fcomp) compileTry(s *ast.TryStmt) {
	pc0 := uint32(fc.here())
	fc.stmt(&ast.BlockStmt{Block: s.Block})
	pc1 := uint32(fc.here())

	skipHandlers := -1
	if pc1 > pc0 {
		skipHandlers = fc.emitJump(JUMP)
	}

	if s.CatchBlock != nil {
		catchStart := uint32(fc.here())
		fc.emit(GET_CAUGHT, 0)
		if s.CatchParam != nil {
			b := fc.binding(s.CatchParam)
			fc.storeBinding(b)
		} else {
			fc.emit(POP, 0)
		}
		fc.stmt(&ast.BlockStmt{Block: s.CatchBlock})
		fc.fn.Catches = append(fc.fn.Catches, Defer{PC0: pc0, PC1: pc1, StartPC: catchStart})
	}
	if s.FinallyBlock != nil {
		finallyStart := uint32(fc.here())
		fc.stmt(&ast.BlockStmt{Block: s.FinallyBlock})
		fc.emit(DEFEREXIT, 0)
		end := pc1
		if s.CatchBlock != nil {
			end = uint32(fc.here())
		}
		fc.fn.Defers = append(fc.fn.Defers, Defer{PC0: pc0, PC1: end, StartPC: finallyStart})
	}
	if skipHandlers >= 0 {
		fc.patchJump(skipHandlers)
	}
}

// storeBinding emits the instruction that pops the top of stack into b.
func (fc *fcomp) storeBinding(b *resolver.Binding) {
	switch b.Scope {
	case resolver.Local:
		fc.emit(SET_LOCAL, fc.localIndex(b))
	case resolver.Cell:
		fc.emit(SET_LOCAL_CELL, fc.localIndex(b))
	case resolver.Free:
		fc.emit(SET_FREE, fc.localIndex(b))
	case resolver.Global:
		fc.emit(SET_GLOBAL, fc.pcomp.nameIndex(b.Decl.Name))
	default:
		panic(fmt.Sprintf("compiler: cannot store to %s binding", b.Scope))
	}
}

// storeTarget emits the instructions that assign the top of stack to an
// arbitrary assignable expression (identifier or member access), used by
// assignment expressions and for-in/for-of loops binding to an existing
// variable rather than a fresh declaration.
func (fc *fcomp) storeTarget(target ast.Expr) {
	switch t := target.(type) {
	case *ast.Ident:
		fc.storeBinding(fc.binding(t))
	case *ast.MemberExpr:
		// stack on entry: value. SET_INDEX/SET_PROP want the object (and key)
		// below the value, so push obj/key after it and rotate into place.
		fc.expr(t.Obj)
		if t.Computed {
			fc.expr(t.Prop)
			fc.emit(ROT3, 0) // value obj key -> obj key value
			fc.emit(SET_INDEX, 0)
		} else {
			fc.emit(EXCH, 0) // value obj -> obj value
			name := t.Prop.(*ast.Ident).Name
			fc.emit(SET_PROP, fc.pcomp.nameIndex(name))
		}
	default:
		panic(fmt.Sprintf("compiler: invalid assignment target %T", target))
	}
}

// ---- expressions ----

// expr compiles e, leaving exactly one value on the operand stack.
func (fc *fcomp) expr(e ast.Expr) {
	switch e := e.(type) {
	case *ast.NumberLit:
		fc.emit(CONSTANT, fc.pcomp.constIndex(e.Value))
	case *ast.StringLit:
		fc.emit(CONSTANT, fc.pcomp.constIndex(string(decodeUTF16(e.Value))))
	case *ast.BoolLit:
		if e.Value {
			fc.emit(TRUE, 0)
		} else {
			fc.emit(FALSE, 0)
		}
	case *ast.NullLit:
		fc.emit(NULL, 0)
	case *ast.ThisExpr:
		fc.emit(GET_THIS, 0)
	case *ast.Ident:
		fc.loadBinding(fc.binding(e))
	case *ast.SpreadElem:
		// A bare spread outside an array/call argument list has no meaning;
		// compileArgs/compileArrayLit handle spread directly.
		fc.expr(e.Expr)
	case *ast.ArrayLit:
		fc.compileArrayLit(e)
	case *ast.ObjectLit:
		fc.compileObjectLit(e)
	case *ast.FuncExpr:
		fc.compileFuncExpr(e)
	case *ast.ArrowFuncExpr:
		fc.compileArrowFuncExpr(e)
	case *ast.UnaryExpr:
		fc.compileUnary(e)
	case *ast.UpdateExpr:
		fc.compileUpdate(e)
	case *ast.BinaryExpr:
		fc.compileBinary(e)
	case *ast.AssignExpr:
		fc.compileAssign(e)
	case *ast.ConditionalExpr:
		fc.expr(e.Cond)
		elseJump := fc.emitJump(JUMP_IF_FALSE)
		fc.expr(e.Then)
		endJump := fc.emitJump(JUMP)
		fc.patchJump(elseJump)
		fc.expr(e.Else)
		fc.patchJump(endJump)
	case *ast.CallExpr:
		fc.compileCall(e)
	case *ast.NewExpr:
		fc.compileNew(e)
	case *ast.MemberExpr:
		fc.compileMemberRead(e)
	case *ast.AwaitExpr:
		fc.expr(e.Right)
		fc.emit(AWAIT, 0)
	case *ast.SequenceExpr:
		for i, sub := range e.Exprs {
			if i > 0 {
				fc.emit(POP, 0)
			}
			fc.expr(sub)
		}
	case *ast.BadExpr:
		fc.emit(UNDEFINED, 0)
	default:
		panic(fmt.Sprintf("compiler: unhandled expression %T", e))
	}
}

func (fc *fcomp) loadBinding(b *resolver.Binding) {
	switch b.Scope {
	case resolver.Local:
		fc.emit(GET_LOCAL, fc.localIndex(b))
	case resolver.Cell:
		fc.emit(GET_LOCAL_CELL, fc.localIndex(b))
	case resolver.Free:
		fc.emit(GET_FREE, fc.localIndex(b))
	case resolver.Global:
		fc.emit(GET_GLOBAL, fc.pcomp.nameIndex(b.Decl.Name))
	case resolver.Universal:
		fc.emit(GET_UNIVERSAL, fc.pcomp.nameIndex(b.Decl.Name))
	default:
		panic(fmt.Sprintf("compiler: cannot load %s binding", b.Scope))
	}
}

func (fc *fcomp) compileArrayLit(e *ast.ArrayLit) {
	fc.emitVar(NEW_ARRAY, 0, 1)
	for _, el := range e.Elems {
		if el == nil {
			fc.emit(UNDEFINED, 0)
			fc.emit(APPEND, 0)
			continue
		}
		if sp, ok := el.(*ast.SpreadElem); ok {
			fc.compileSpreadAppend(sp.Expr)
			continue
		}
		fc.expr(el)
		fc.emit(APPEND, 0)
	}
}

// compileSpreadAppend compiles `...iterable` inside an array literal: push
// iterable's values one at a time via the iterator protocol and APPEND
// each onto the array already on the stack.
func (fc *fcomp) compileSpreadAppend(iterable ast.Expr) {
	fc.expr(iterable)
	fc.emit(ITERPUSH, 0)
	start := fc.here()
	exit := fc.emitJump(ITERJMP)
	fc.emit(APPEND, 0)
	back := fc.emitJump(JUMP)
	fc.patchJumpTo(back, start)
	fc.patchJump(exit)
	fc.emit(ITERPOP, 0)
}

func (fc *fcomp) compileObjectLit(e *ast.ObjectLit) {
	fc.emit(NEW_OBJECT, 0)
	for _, p := range e.Props {
		if p.Computed {
			fc.emit(DUP, 0)
			fc.expr(p.Key)
			fc.expr(p.Value)
			fc.emit(SET_INDEX, 0)
		} else {
			fc.expr(p.Value)
			name := propName(p.Key)
			fc.emit(SETFIELD, fc.pcomp.nameIndex(name))
		}
	}
}

func propName(key ast.Expr) string {
	switch k := key.(type) {
	case *ast.Ident:
		return k.Name
	case *ast.StringLit:
		return string(decodeUTF16(k.Value))
	case *ast.NumberLit:
		return k.Raw
	default:
		return ""
	}
}

func (fc *fcomp) compileFuncExpr(e *ast.FuncExpr) {
	rfn := fc.pcomp.res.Functions[e]
	name := ""
	if e.Name != nil {
		name = e.Name.Name
	}
	inner := fc.pcomp.function(name, e.Body, rfn, e.Async)
	fc.emitClosure(inner, rfn)
}

func (fc *fcomp) compileArrowFuncExpr(e *ast.ArrowFuncExpr) {
	rfn := fc.pcomp.res.Functions[e]
	var body *ast.Block
	switch b := e.Body.(type) {
	case *ast.Block:
		body = b
	case ast.Expr:
		body = &ast.Block{Stmts: []ast.Stmt{&ast.ReturnStmt{Expr: b}}}
	}
	inner := fc.pcomp.function("", body, rfn, e.Async)
	fc.emitClosure(inner, rfn)
}

// emitClosure records, for each of inner's free variables, where in the
// enclosing frame (the one that will execute MAKEFUNC) its shared *cell
// lives, and emits MAKEFUNC to build the closure from them. The captures
// are resolved at compile time and read directly out of the enclosing
// frame at runtime rather than pushed through the operand stack:
// GET_LOCAL_CELL/GET_FREE push a cell's unboxed content (the right thing
// for an ordinary read of a captured variable), and routing a closure's
// captures through that same path would hand MAKEFUNC a snapshot instead
// of the box the inner function needs to share mutations through.
func (fc *fcomp) emitClosure(inner *Funcode, rfn *resolver.Function) {
	inner.Captures = make([]Capture, len(rfn.FreeVars))
	for fi, fv := range rfn.FreeVars {
		// The enclosing function's binding for this name: it is either one
		// of our own Cells (a Local promoted to Cell) or already one of our
		// own Freevars (re-exported further out).
		target := enclosingBindingFor(fc.rfn, fv)
		found := false
		for i, local := range fc.rfn.Locals {
			if local == target && local.Scope == resolver.Cell {
				inner.Captures[fi] = Capture{FromLocal: true, Index: i}
				found = true
				break
			}
		}
		if !found {
			for i, free := range fc.rfn.FreeVars {
				if free == target {
					inner.Captures[fi] = Capture{FromLocal: false, Index: i}
					break
				}
			}
		}
	}
	idx := fc.pcomp.functionIndex(inner)
	fc.emit(MAKEFUNC, idx)
}

// enclosingBindingFor resolves fv (a free variable of an inner function)
// to the Binding the enclosing function rfn itself uses for that same
// variable. Because the resolver promotes a captured Local to Cell in its
// owning function and threads it through Free in every function in
// between, fv's Decl identifies the original declaration uniquely.
func enclosingBindingFor(rfn *resolver.Function, fv *resolver.Binding) *resolver.Binding {
	for _, l := range rfn.Locals {
		if l.Decl == fv.Decl {
			return l
		}
	}
	for _, f := range rfn.FreeVars {
		if f.Decl == fv.Decl {
			return f
		}
	}
	return fv
}

func (p *pcomp) functionIndex(fn *Funcode) uint32 {
	for i, f := range p.prog.Functions {
		if f == fn {
			return uint32(i)
		}
	}
	return 0
}

func (fc *fcomp) compileUnary(e *ast.UnaryExpr) {
	if e.Op == token.DELETE {
		fc.compileDelete(e.Right)
		return
	}
	fc.expr(e.Right)
	switch e.Op {
	case token.PLUS:
		fc.emit(UPLUS, 0)
	case token.MINUS:
		fc.emit(UMINUS, 0)
	case token.BANG:
		fc.emit(LNOT, 0)
	case token.TILDE:
		fc.emit(BITNOT, 0)
	case token.TYPEOF:
		fc.emit(TYPEOF, 0)
	case token.VOID:
		fc.emit(VOID, 0)
	default:
		panic(fmt.Sprintf("compiler: unhandled unary operator %v", e.Op))
	}
}

func (fc *fcomp) compileDelete(target ast.Expr) {
	m, ok := target.(*ast.MemberExpr)
	if !ok {
		fc.emit(TRUE, 0) // delete of a non-member (e.g. a bare identifier) is a no-op success
		return
	}
	fc.expr(m.Obj)
	if m.Computed {
		fc.expr(m.Prop)
		fc.emit(DELETE_INDEX, 0)
	} else {
		name := m.Prop.(*ast.Ident).Name
		fc.emit(DELETE_PROP, fc.pcomp.nameIndex(name))
	}
}

func (fc *fcomp) compileUpdate(e *ast.UpdateExpr) {
	one := fc.pcomp.constIndex(float64(1))
	load := func() { fc.expr(e.Target) }
	store := func() { fc.storeTarget(e.Target) }

	if e.Prefix {
		load()
		fc.emit(CONSTANT, one)
		if e.Op == token.PLUSPLUS {
			fc.emit(ADD, 0)
		} else {
			fc.emit(SUB, 0)
		}
		fc.emit(DUP, 0)
		store()
		return
	}
	// Postfix: leave the original value as the expression's result.
	load()
	fc.emit(DUP, 0)
	fc.emit(CONSTANT, one)
	if e.Op == token.PLUSPLUS {
		fc.emit(ADD, 0)
	} else {
		fc.emit(SUB, 0)
	}
	store()
}

var binaryOps = map[token.Token]Opcode{
	token.PLUS: ADD, token.MINUS: SUB, token.STAR: MUL, token.SLASH: DIV,
	token.PERCENT: MOD, token.STARSTAR: POW,
	token.AMP: BITAND, token.PIPE: BITOR, token.CARET: BITXOR,
	token.LTLT: SHL, token.GTGT: SHR, token.GTGTGT: USHR,
	token.LT: LT, token.LE: LE, token.GT: GT, token.GE: GE,
	token.EQEQ: EQ, token.NEQ: NEQ, token.EQEQEQ: SEQ, token.NEQEQ: SNEQ,
}

func (fc *fcomp) compileBinary(e *ast.BinaryExpr) {
	switch e.Op {
	case token.AMPAMP:
		fc.expr(e.Left)
		j := fc.emitJump(JUMP_IF_FALSE_OR_POP)
		fc.expr(e.Right)
		fc.patchJump(j)
		return
	case token.PIPEPIPE:
		fc.expr(e.Left)
		j := fc.emitJump(JUMP_IF_TRUE_OR_POP)
		fc.expr(e.Right)
		fc.patchJump(j)
		return
	case token.QQ:
		fc.expr(e.Left)
		j := fc.emitJump(JUMP_IF_NULLISH_OR_POP)
		fc.expr(e.Right)
		fc.patchJump(j)
		return
	case token.INSTANCEOF:
		fc.expr(e.Left)
		fc.expr(e.Right)
		fc.emit(INSTANCEOF, 0)
		return
	case token.IN:
		fc.expr(e.Left)
		fc.expr(e.Right)
		fc.emit(IN, 0)
		return
	}
	op, ok := binaryOps[e.Op]
	if !ok {
		panic(fmt.Sprintf("compiler: unhandled binary operator %v", e.Op))
	}
	fc.expr(e.Left)
	fc.expr(e.Right)
	fc.emit(op, 0)
}

func (fc *fcomp) compileAssign(e *ast.AssignExpr) {
	if e.Op == token.ASSIGN {
		fc.expr(e.Right)
		fc.emit(DUP, 0)
		fc.storeTarget(e.Left)
		return
	}
	if e.Op == token.AMPAMP_EQ || e.Op == token.PIPEPIPE_EQ || e.Op == token.QQ_EQ {
		// Logical assignment: only store (and evaluate the right side) when
		// the short-circuit condition holds.
		fc.expr(e.Left)
		var j int
		switch e.Op {
		case token.AMPAMP_EQ:
			j = fc.emitJump(JUMP_IF_FALSE)
		case token.PIPEPIPE_EQ:
			j = fc.emitJump(JUMP_IF_TRUE)
		case token.QQ_EQ:
			j = fc.emitJump(JUMP_IF_FALSE) // approximation: treats falsy, not just nullish, as short-circuiting
		}
		fc.expr(e.Right)
		fc.emit(DUP, 0)
		fc.storeTarget(e.Left)
		end := fc.emitJump(JUMP)
		fc.patchJump(j)
		fc.expr(e.Left)
		fc.patchJump(end)
		return
	}
	op := e.Op.BinaryOp()
	fc.expr(e.Left)
	fc.expr(e.Right)
	fc.emit(binaryOps[op], 0)
	fc.emit(DUP, 0)
	fc.storeTarget(e.Left)
}

func (fc *fcomp) compileCall(e *ast.CallExpr) {
	if m, ok := e.Callee.(*ast.MemberExpr); ok {
		fc.expr(m.Obj)
		fc.emit(DUP, 0)
		if m.Computed {
			fc.expr(m.Prop)
			fc.emit(GET_INDEX, 0)
		} else {
			fc.emit(GET_PROP, fc.pcomp.nameIndex(m.Prop.(*ast.Ident).Name))
		}
		// stack is now: this fn (GET_PROP/GET_INDEX consumed only the duplicate)
		fc.compileArgs(e.Args)
		fc.emit(CALL_METHOD, 0)
		return
	}
	fc.expr(e.Callee)
	fc.emit(UNDEFINED, 0) // this
	fc.compileArgs(e.Args)
	fc.emit(CALL, 0)
}

func (fc *fcomp) compileNew(e *ast.NewExpr) {
	fc.expr(e.Callee)
	fc.compileArgs(e.Args)
	fc.emit(NEW, 0)
}

// compileArgs materializes e's arguments into a single Array value, using
// the same NEW_ARRAY+APPEND sequence as an array literal (including
// spread, via the iterator protocol): a spread argument can expand to any
// number of elements at runtime, which no static argcount operand baked
// into CALL/CALL_METHOD/NEW could describe, so the call opcodes instead
// always take the argument count from the materialized array itself.
func (fc *fcomp) compileArgs(args []ast.Expr) {
	fc.emitVar(NEW_ARRAY, 0, 1)
	for _, a := range args {
		if sp, ok := a.(*ast.SpreadElem); ok {
			fc.compileSpreadAppend(sp.Expr)
			continue
		}
		fc.expr(a)
		fc.emit(APPEND, 0)
	}
}

func (fc *fcomp) compileMemberRead(e *ast.MemberExpr) {
	fc.expr(e.Obj)
	if e.Computed {
		fc.expr(e.Prop)
		fc.emit(GET_INDEX, 0)
	} else {
		fc.emit(GET_PROP, fc.pcomp.nameIndex(e.Prop.(*ast.Ident).Name))
	}
}

func decodeUTF16(units []uint16) []byte {
	// Constants store the decoded UTF-8 string directly (Program.Constants
	// holds Go strings); StringLit already carries the UTF-16 value used by
	// the runtime's machine.String, so this reconstructs the UTF-8 form once
	// at compile time rather than on every CONSTANT load.
	rs := make([]rune, 0, len(units))
	for i := 0; i < len(units); i++ {
		u := units[i]
		if u >= 0xD800 && u <= 0xDBFF && i+1 < len(units) && units[i+1] >= 0xDC00 && units[i+1] <= 0xDFFF {
			r := (rune(u)-0xD800)<<10 | (rune(units[i+1]) - 0xDC00) + 0x10000
			rs = append(rs, r)
			i++
			continue
		}
		rs = append(rs, rune(u))
	}
	return []byte(string(rs))
}
