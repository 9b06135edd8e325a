// Much of the machine package is adapted from the Starlark source code:
// https://github.com/google/starlark-go/tree/ee8ed142361c69d52fe8e9fb5e311d2a0a7c02de
//
// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package machine implements the virtual machine that executes the
// bytecode-compiled form of the source code. It also provides the runtime
// representation of the various builtin values.
package machine

import (
	"fmt"

	"github.com/cortenjs/corten/lang/compiler"
)

// awaitSuspend is what dispatch returns when a frame parks at an AWAIT
// instruction: awaited is the value (usually a Promise) Thread.stepAsync
// must wait to settle before resuming the frame.
type awaitSuspend struct {
	awaited Value
}

// findFinally locates the innermost finally region covering pc `from` but
// not `to` (a negative `to` means the frame is exiting entirely, via return
// or an uncaught throw). Used for non-exceptional exits - plain jumps,
// break/continue, fallthrough, return - which must run an enclosing finally
// but never route into a catch block.
func findFinally(from, to int64, defers []compiler.Defer) (uint32, bool) {
	best := int64(-1)
	var startPC uint32
	found := false
	for _, d := range defers {
		if !d.Covers(from) || d.Covers(to) {
			continue
		}
		if int64(d.PC0) > best {
			best = int64(d.PC0)
			startPC = d.StartPC
			found = true
		}
	}
	return startPC, found
}

// findCatchOrFinally locates the handler a thrown value at pc `from` must
// route to: whichever of the covering catch/finally entries is innermost
// (largest PC0), with a catch preferred over a finally at the same PC0 (the
// catch and finally of one try statement share PC0, and the catch must run
// first).
func findCatchOrFinally(from, to int64, defers, catches []compiler.Defer) (uint32, bool) {
	best := int64(-1)
	var startPC uint32
	found := false
	consider := func(d compiler.Defer, isCatch bool) {
		if !d.Covers(from) || d.Covers(to) {
			return
		}
		p0 := int64(d.PC0)
		if p0 > best || (p0 == best && isCatch) {
			best = p0
			startPC = d.StartPC
			found = true
		}
	}
	for _, d := range catches {
		consider(d, true)
	}
	for _, d := range defers {
		consider(d, false)
	}
	return startPC, found
}

// isNullish reports whether v is undefined or null, the short-circuit
// condition for JUMP_IF_NULLISH_OR_POP (the ?? operator).
func isNullish(v Value) bool {
	switch v.(type) {
	case undefinedType, nullType:
		return true
	default:
		return false
	}
}

// callArgs extracts the positional arguments materialized into argsV by
// compileArgs: a real Array, per the CALL/CALL_METHOD/NEW calling
// convention.
func callArgs(argsV Value) []Value {
	r, ok := argsV.(HeapRef)
	if !ok {
		return nil
	}
	arr, ok := r.Object().(*Array)
	if !ok {
		return nil
	}
	return arr.Elements()
}

// describeReceiver renders a short diagnostic name for a value that failed a
// property/call operation it cannot support: undefined/null print their own
// name (they have no properties at all), anything else prints its type.
func describeReceiver(v Value) string {
	switch v.(type) {
	case undefinedType, nullType:
		return v.String()
	default:
		return v.Type()
	}
}

// construct implements the NEW opcode: build a fresh instance whose
// prototype is ctor's own "prototype" property (Object.prototype if it has
// none), call ctor bound to that instance, and keep the call's own result
// only if it is itself an object - a constructor returning a primitive is
// ignored in favor of the new instance.
func construct(th *Thread, ctorV Value, args []Value) (Value, error) {
	ctor, ok := ctorV.(Callable)
	if !ok {
		return nil, fmt.Errorf("TypeError: %s is not a constructor", describeReceiver(ctorV))
	}
	ctorObj, ok := objectOf(ctorV)
	if !ok {
		return nil, fmt.Errorf("TypeError: %s is not a constructor", describeReceiver(ctorV))
	}
	proto := th.ObjectProto
	if protoV, err := GetProperty(th, ctorObj, ctorV, "prototype"); err == nil {
		if r, ok := protoV.(HeapRef); ok {
			proto = r
		}
	}
	instance := th.Heap.Alloc(th, NewObject(proto, true))
	result, err := ctor.CallInternal(th, instance, args)
	if err != nil {
		return nil, err
	}
	if _, ok := result.(HeapRef); ok {
		return result, nil
	}
	return instance, nil
}

// throwFromResume recovers the thrown value carried across an AWAIT
// suspend/resume boundary (Frame.resumeErr, set by Thread.stepAsync),
// wrapping a plain Go error the same way a fresh THROW would.
func throwFromResume(err error) error {
	if _, ok := err.(*ThrownValue); ok {
		return err
	}
	return throwValue(NewString(err.Error()))
}

// dispatch runs fr's bytecode until it returns, throws past every
// surrounding handler, or suspends on AWAIT. It resumes an already-started
// frame when fr.mode is not `running` (set by Thread.stepAsync before
// calling back in).
func (th *Thread) dispatch(fr *Frame) (Value, error, *awaitSuspend) {
	fcode := fr.fn.fcode
	code := fcode.Code

	locals := fr.locals
	stack := fr.stack
	sp := fr.sp
	pc := fr.pc
	iterstack := fr.iterstack
	deferredStack := fr.deferredStack
	pendingReturns := fr.pendingReturns
	inFlightErr := fr.inFlightErr

	var opPC uint32

	resumedThrow := false
	switch fr.mode {
	case awaitingResume:
		fr.mode = running
		stack[sp] = fr.resumeValue
		sp++
	case awaitingThrow:
		fr.mode = running
		inFlightErr = throwFromResume(fr.resumeErr)
		resumedThrow = true
	}

	sync := func() {
		fr.locals, fr.stack, fr.sp, fr.pc = locals, stack, sp, pc
		fr.iterstack, fr.deferredStack = iterstack, deferredStack
		fr.pendingReturns, fr.inFlightErr = pendingReturns, inFlightErr
	}
	closeIterators := func() {
		for _, it := range iterstack {
			it.Done()
		}
	}

	detourThrow := func() bool {
		if startPC, ok := findCatchOrFinally(int64(opPC), -1, fcode.Defers, fcode.Catches); ok {
			deferredStack = append(deferredStack, -2)
			pc = startPC
			return true
		}
		return false
	}
	detourReturn := func(val Value) bool {
		if startPC, ok := findFinally(int64(opPC), -1, fcode.Defers); ok {
			deferredStack = append(deferredStack, -1)
			pendingReturns = append(pendingReturns, val)
			pc = startPC
			return true
		}
		return false
	}
	detourJump := func(target uint32) uint32 {
		if startPC, ok := findFinally(int64(opPC), int64(target), fcode.Defers); ok {
			deferredStack = append(deferredStack, int64(target))
			return startPC
		}
		return target
	}
	// fail records err as the in-flight exception. It either detours
	// execution into an enclosing handler (returning true: the caller
	// should `continue` the dispatch loop, pc is already set) or gives up
	// and reports the error to dispatch's own caller.
	fail := func(err error) (Value, error, bool) {
		inFlightErr = err
		if detourThrow() {
			return nil, nil, true
		}
		sync()
		closeIterators()
		return nil, inFlightErr, false
	}

	if resumedThrow {
		if v, e, ok := fail(inFlightErr); !ok {
			return v, e, nil
		}
	}

	for {
		th.steps++
		if th.steps >= th.maxSteps || th.cancelled.Load() {
			if v, e, ok := fail(fmt.Errorf("RangeError: execution cancelled")); !ok {
				return v, e, nil
			}
			continue
		}

		opPC = pc
		op := compiler.Opcode(code[pc])
		pc++
		var arg uint32
		if op >= compiler.OpcodeArgMin {
			if op >= compiler.JUMP && op <= compiler.CATCHJMP {
				arg = uint32(code[pc]) | uint32(code[pc+1])<<8 | uint32(code[pc+2])<<16 | uint32(code[pc+3])<<24
				pc += 4
			} else {
				for s := uint(0); ; s += 7 {
					b := code[pc]
					pc++
					arg |= uint32(b&0x7f) << s
					if b < 0x80 {
						break
					}
				}
			}
		}

		switch op {
		case compiler.NOP:

		case compiler.DUP:
			stack[sp] = stack[sp-1]
			sp++
		case compiler.DUP2:
			stack[sp] = stack[sp-2]
			stack[sp+1] = stack[sp-1]
			sp += 2
		case compiler.POP:
			sp--
		case compiler.EXCH:
			stack[sp-2], stack[sp-1] = stack[sp-1], stack[sp-2]
		case compiler.ROT3:
			a, b, c := stack[sp-3], stack[sp-2], stack[sp-1]
			stack[sp-3], stack[sp-2], stack[sp-1] = b, c, a

		case compiler.LT, compiler.LE, compiler.GT, compiler.GE:
			y, x := stack[sp-1], stack[sp-2]
			sp--
			stack[sp-1] = compareOrder(op.String(), x, y)
		case compiler.EQ:
			y, x := stack[sp-1], stack[sp-2]
			sp--
			stack[sp-1] = Boolean(looseEquals(x, y))
		case compiler.NEQ:
			y, x := stack[sp-1], stack[sp-2]
			sp--
			stack[sp-1] = Boolean(!looseEquals(x, y))
		case compiler.SEQ:
			y, x := stack[sp-1], stack[sp-2]
			sp--
			stack[sp-1] = Boolean(strictEquals(x, y))
		case compiler.SNEQ:
			y, x := stack[sp-1], stack[sp-2]
			sp--
			stack[sp-1] = Boolean(!strictEquals(x, y))

		case compiler.ADD:
			y, x := stack[sp-1], stack[sp-2]
			sp--
			res, err := add(th, x, y)
			if err != nil {
				if v, e, ok := fail(err); !ok {
					return v, e, nil
				}
				continue
			}
			stack[sp-1] = res
		case compiler.SUB, compiler.MUL, compiler.DIV, compiler.MOD, compiler.POW,
			compiler.BITAND, compiler.BITOR, compiler.BITXOR, compiler.SHL, compiler.SHR, compiler.USHR:
			y, x := stack[sp-1], stack[sp-2]
			sp--
			res, err := arithBinary(op.String(), x, y)
			if err != nil {
				if v, e, ok := fail(err); !ok {
					return v, e, nil
				}
				continue
			}
			stack[sp-1] = res

		case compiler.UPLUS, compiler.UMINUS, compiler.LNOT, compiler.BITNOT, compiler.TYPEOF, compiler.VOID:
			res, err := unaryOp(op.String(), stack[sp-1])
			if err != nil {
				if v, e, ok := fail(err); !ok {
					return v, e, nil
				}
				continue
			}
			stack[sp-1] = res

		case compiler.UNDEFINED:
			stack[sp] = Undefined
			sp++
		case compiler.NULL:
			stack[sp] = Null
			sp++
		case compiler.TRUE:
			stack[sp] = True
			sp++
		case compiler.FALSE:
			stack[sp] = False
			sp++

		case compiler.GET_THIS:
			stack[sp] = fr.this
			sp++

		case compiler.ITERPUSH:
			v := stack[sp-1]
			sp--
			it, err := Iterate(th, v)
			if err != nil {
				if v, e, ok := fail(err); !ok {
					return v, e, nil
				}
				continue
			}
			iterstack = append(iterstack, it)
		case compiler.ITERPOP:
			n := len(iterstack) - 1
			iterstack[n].Done()
			iterstack = iterstack[:n]

		case compiler.RETURN:
			val := stack[sp-1]
			sp--
			if detourReturn(val) {
				continue
			}
			sync()
			closeIterators()
			return val, nil, nil

		case compiler.THROW:
			v := stack[sp-1]
			sp--
			inFlightErr = throwValue(v)
			if detourThrow() {
				continue
			}
			sync()
			closeIterators()
			return nil, inFlightErr, nil

		case compiler.GET_INDEX:
			y, x := stack[sp-1], stack[sp-2]
			sp--
			res, err := getIndex(th, x, y)
			if err != nil {
				if v, e, ok := fail(err); !ok {
					return v, e, nil
				}
				continue
			}
			stack[sp-1] = res
		case compiler.SET_INDEX:
			z, y, x := stack[sp-1], stack[sp-2], stack[sp-3]
			sp -= 3
			if err := setIndex(th, x, y, z); err != nil {
				if v, e, ok := fail(err); !ok {
					return v, e, nil
				}
				continue
			}
		case compiler.DELETE_INDEX:
			y, x := stack[sp-1], stack[sp-2]
			sp--
			res, err := deleteIndex(x, y)
			if err != nil {
				if v, e, ok := fail(err); !ok {
					return v, e, nil
				}
				continue
			}
			stack[sp-1] = res
		case compiler.IN:
			o, k := stack[sp-1], stack[sp-2]
			sp--
			res, err := inOperator(k, o)
			if err != nil {
				if v, e, ok := fail(err); !ok {
					return v, e, nil
				}
				continue
			}
			stack[sp-1] = res
		case compiler.INSTANCEOF:
			c, v := stack[sp-1], stack[sp-2]
			sp--
			res, err := instanceOf(th, v, c)
			if err != nil {
				if v, e, ok := fail(err); !ok {
					return v, e, nil
				}
				continue
			}
			stack[sp-1] = res

		case compiler.APPEND:
			elem := stack[sp-1]
			sp--
			arr := stack[sp-1].(HeapRef).Object().(*Array)
			arr.Push(elem)

		case compiler.AWAIT:
			v := stack[sp-1]
			sp--
			sync()
			return nil, nil, &awaitSuspend{awaited: v}

		case compiler.YIELD:
			if v, e, ok := fail(fmt.Errorf("SyntaxError: generators are not supported")); !ok {
				return v, e, nil
			}
			continue

		case compiler.RUNDEFER:
			fr.runDefer = true

		case compiler.DEFEREXIT:
			n := len(deferredStack)
			marker := deferredStack[n-1]
			deferredStack = deferredStack[:n-1]
			fr.runDefer = false
			switch {
			case marker >= 0:
				target := uint32(marker)
				if startPC, ok := findFinally(int64(opPC), int64(target), fcode.Defers); ok {
					deferredStack = append(deferredStack, int64(target))
					pc = startPC
				} else {
					pc = target
				}
			case marker == -1:
				val := pendingReturns[len(pendingReturns)-1]
				pendingReturns = pendingReturns[:len(pendingReturns)-1]
				if detourReturn(val) {
					continue
				}
				sync()
				closeIterators()
				return val, nil, nil
			default: // -2: rethrow
				if detourThrow() {
					continue
				}
				sync()
				closeIterators()
				return nil, inFlightErr, nil
			}

		case compiler.GET_CAUGHT:
			stack[sp] = errorValueOf(inFlightErr)
			sp++
			inFlightErr = nil

		case compiler.JUMP, compiler.CATCHJMP:
			pc = detourJump(arg)

		case compiler.JUMP_IF_FALSE:
			cond := stack[sp-1]
			sp--
			if !cond.Truth() {
				pc = arg
			}
		case compiler.JUMP_IF_TRUE:
			cond := stack[sp-1]
			sp--
			if cond.Truth() {
				pc = arg
			}
		case compiler.JUMP_IF_FALSE_OR_POP:
			if !stack[sp-1].Truth() {
				pc = arg
			} else {
				sp--
			}
		case compiler.JUMP_IF_TRUE_OR_POP:
			if stack[sp-1].Truth() {
				pc = arg
			} else {
				sp--
			}
		case compiler.JUMP_IF_NULLISH_OR_POP:
			if isNullish(stack[sp-1]) {
				pc = arg
			} else {
				sp--
			}

		case compiler.ITERJMP:
			n := len(iterstack)
			var v Value
			if n > 0 && iterstack[n-1].Next(&v) {
				stack[sp] = v
				sp++
			} else if n > 0 && th.pendingIterErr != nil {
				err := th.pendingIterErr
				th.pendingIterErr = nil
				if v, e, ok := fail(err); !ok {
					return v, e, nil
				}
				continue
			} else {
				pc = detourJump(arg)
			}

		case compiler.CONSTANT:
			switch c := fcode.Prog.Constants[arg].(type) {
			case string:
				stack[sp] = NewString(c)
			case float64:
				stack[sp] = NewNumber(c)
			default:
				stack[sp] = Undefined
			}
			sp++

		case compiler.GET_LOCAL:
			stack[sp] = locals[arg]
			sp++
		case compiler.SET_LOCAL:
			locals[arg] = stack[sp-1]
			sp--
		case compiler.GET_LOCAL_CELL:
			stack[sp] = locals[arg].(*cell).v
			sp++
		case compiler.SET_LOCAL_CELL:
			locals[arg].(*cell).v = stack[sp-1]
			sp--
		case compiler.GET_FREE:
			stack[sp] = fr.fn.freevars[arg].v
			sp++
		case compiler.SET_FREE:
			fr.fn.freevars[arg].v = stack[sp-1]
			sp--

		case compiler.GET_GLOBAL:
			name := fcode.Prog.Names[arg]
			v, ok := th.Globals[name]
			if !ok {
				v = Undefined
			}
			stack[sp] = v
			sp++
		case compiler.SET_GLOBAL:
			th.Globals[fcode.Prog.Names[arg]] = stack[sp-1]
			sp--

		case compiler.GET_UNIVERSAL:
			name := fcode.Prog.Names[arg]
			v, ok := th.Universals[name]
			if !ok {
				v = Undefined
			}
			stack[sp] = v
			sp++

		case compiler.GET_PROP:
			x := stack[sp-1]
			res, err := namedGetProperty(th, x, fcode.Prog.Names[arg])
			if err != nil {
				if v, e, ok := fail(err); !ok {
					return v, e, nil
				}
				continue
			}
			stack[sp-1] = res
		case compiler.SET_PROP:
			y, x := stack[sp-1], stack[sp-2]
			sp -= 2
			if err := namedSetProperty(th, x, fcode.Prog.Names[arg], y); err != nil {
				if v, e, ok := fail(err); !ok {
					return v, e, nil
				}
				continue
			}
		case compiler.DELETE_PROP:
			x := stack[sp-1]
			res, err := deleteIndex(x, NewString(fcode.Prog.Names[arg]))
			if err != nil {
				if v, e, ok := fail(err); !ok {
					return v, e, nil
				}
				continue
			}
			stack[sp-1] = res
		case compiler.SETFIELD:
			y := stack[sp-1]
			sp--
			obj := stack[sp-1].(HeapRef).Object().(*Object)
			obj.DefineOwnProperty(fcode.Prog.Names[arg], dataProperty(y))

		case compiler.NEW_ARRAY:
			stack[sp] = th.Heap.Alloc(th, NewArray(th.ArrayProto, nil))
			sp++
		case compiler.NEW_OBJECT:
			stack[sp] = th.Heap.Alloc(th, NewObject(th.ObjectProto, true))
			sp++

		case compiler.MAKEFUNC:
			funcode := fcode.Prog.Functions[arg]
			freevars := make([]*cell, len(funcode.Captures))
			for i, c := range funcode.Captures {
				if c.FromLocal {
					freevars[i] = locals[c.Index].(*cell)
				} else {
					freevars[i] = fr.fn.freevars[c.Index]
				}
			}
			fnv := NewScriptFunction(th.FunctionProto, funcode, freevars, funcode.IsAsync)
			fnRef := th.Heap.Alloc(th, fnv)
			proto := th.Heap.Alloc(th, NewObject(th.ObjectProto, true))
			if protoObj, ok := objectOf(proto); ok {
				protoObj.DefineOwnProperty("constructor", &Property{Value: fnRef, Writable: true, Configurable: true})
			}
			fnv.DefineOwnProperty("prototype", &Property{Value: proto, Writable: true})
			stack[sp] = fnRef
			sp++

		case compiler.FOR_IN_PUSH:
			v := stack[sp-1]
			sp--
			obj, _ := objectOf(v)
			iterstack = append(iterstack, newKeyIterator(obj))

		case compiler.CALL:
			argsV, this, calleeV := stack[sp-1], stack[sp-2], stack[sp-3]
			sp -= 2
			callee, ok := calleeV.(Callable)
			if !ok {
				if v, e, ok := fail(fmt.Errorf("TypeError: %s is not a function", describeReceiver(calleeV))); !ok {
					return v, e, nil
				}
				continue
			}
			res, err := callee.CallInternal(th, this, callArgs(argsV))
			if err != nil {
				if v, e, ok := fail(err); !ok {
					return v, e, nil
				}
				continue
			}
			stack[sp-1] = res
		case compiler.CALL_METHOD:
			argsV, calleeV, this := stack[sp-1], stack[sp-2], stack[sp-3]
			sp -= 2
			callee, ok := calleeV.(Callable)
			if !ok {
				if v, e, ok := fail(fmt.Errorf("TypeError: %s is not a function", describeReceiver(calleeV))); !ok {
					return v, e, nil
				}
				continue
			}
			res, err := callee.CallInternal(th, this, callArgs(argsV))
			if err != nil {
				if v, e, ok := fail(err); !ok {
					return v, e, nil
				}
				continue
			}
			stack[sp-1] = res
		case compiler.NEW:
			argsV, ctorV := stack[sp-1], stack[sp-2]
			sp--
			res, err := construct(th, ctorV, callArgs(argsV))
			if err != nil {
				if v, e, ok := fail(err); !ok {
					return v, e, nil
				}
				continue
			}
			stack[sp-1] = res

		default:
			panic(fmt.Sprintf("unimplemented opcode: %s", op))
		}
	}
}
