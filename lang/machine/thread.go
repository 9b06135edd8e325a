package machine

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/cortenjs/corten/lang/compiler"
)

// Thread is one independent execution of a program: the heap it allocates
// into, the event loop driving its Promises and timers, its global
// bindings and builtin prototypes, and the call stack of the interpreter
// currently running on it.
type Thread struct {
	// Name is an optional name that describes the thread, mostly for
	// debugging.
	Name string

	// Stdout, Stderr and Stdin are the standard I/O abstractions for the
	// thread (console.log and friends write to Stdout). If nil, os.Stdout,
	// os.Stderr and os.Stdin are used, respectively.
	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader

	// MaxSteps is the maximum number of "steps", a deliberately unspecified
	// measure of machine execution time, before the thread is cancelled. A
	// value <= 0 means no limit.
	MaxSteps int

	// DisableRecursion prevents recursive execution of the same compiled
	// function when set to true, at a small per-call cost; useful as a
	// safety check when running untrusted code.
	DisableRecursion bool

	// MaxCallStackDepth limits the number of nested function calls. If the
	// limit is reached, the call is rejected with a RangeError. A value <= 0
	// means no limit.
	MaxCallStackDepth int

	// Heap is the thread's garbage-collected object arena.
	Heap *Heap

	// Loop is the thread's microtask/macrotask scheduler, driving Promise
	// settlement and timers.
	Loop *EventLoop

	// Globals holds top-level var/function/let/const bindings, addressed by
	// name via GET_GLOBAL/SET_GLOBAL; kept as a plain table rather than
	// reified as properties of a global object, since nothing in this
	// runtime's builtin surface needs `globalThis` itself to be inspectable.
	Globals map[string]Value

	// Universals holds the per-Thread values bound to machine.Universe names
	// (console, Math, the constructor family, undefined/NaN/Infinity/
	// globalThis), read by GET_UNIVERSAL. Populated once by populateUniverse
	// in builtins.go.
	Universals map[string]Value

	// ObjectProto, ArrayProto, FunctionProto, PromiseProto and ErrorProto are
	// the prototypes NEW_OBJECT, NEW_ARRAY, MAKEFUNC, NewPromise and the
	// Error family of constructors attach to values they create.
	ObjectProto   HeapRef
	ArrayProto    HeapRef
	FunctionProto HeapRef
	PromiseProto  HeapRef
	ErrorProto    HeapRef
	StringProto   HeapRef

	ctx       context.Context
	ctxCancel func()
	callStack []*Frame
	cancelled atomic.Bool

	steps, maxSteps uint64

	// pendingIterErr carries an error surfaced by a protocolIterator's Next
	// (which, unlike Go's range protocol, has no error return of its own)
	// back to the dispatch loop's ITERJMP handling.
	pendingIterErr error

	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader
}

var _ RootProvider = (*Thread)(nil)

// NewThread returns a thread with a fresh heap and event loop, its builtin
// prototypes and Universe-backed globals already populated.
func NewThread(name string) *Thread {
	th := &Thread{
		Name:       name,
		Heap:       NewHeap(),
		Loop:       NewEventLoop(),
		Globals:    map[string]Value{},
		Universals: map[string]Value{},
	}
	populateUniverse(th)
	return th
}

// Roots implements RootProvider for th.Heap's mark-sweep collector: every
// heap reference reachable from outside the heap itself, specifically the
// locals/operand stacks of every frame on the call stack, the global
// bindings, the builtin prototypes, and anything the event loop still
// needs to keep alive.
func (th *Thread) Roots() []HeapRef {
	var refs []HeapRef
	for _, fr := range th.callStack {
		refs = append(refs, fr.roots()...)
	}
	for _, v := range th.Globals {
		if r, ok := v.(HeapRef); ok {
			refs = append(refs, r)
		}
	}
	refs = append(refs, th.ObjectProto, th.ArrayProto, th.FunctionProto, th.PromiseProto, th.ErrorProto, th.StringProto)
	if th.Loop != nil {
		refs = append(refs, th.Loop.Roots()...)
	}
	return refs
}

// RunProgram compiles p's toplevel function and runs it to completion,
// then drains the event loop so that Promise reactions and timers
// scheduled by the program also get to run before returning.
func (th *Thread) RunProgram(ctx context.Context, p *compiler.Program) (Value, error) {
	if th.ctx != nil {
		return nil, fmt.Errorf("thread %s is already executing a program", th.Name)
	}
	th.init(ctx)
	defer th.ctxCancel()

	top := NewScriptFunction(th.FunctionProto, p.Toplevel, nil, false)
	result, err := th.run(top, Undefined, nil, nil)
	if err != nil {
		return nil, err
	}
	th.Loop.Run()
	return result, nil
}

// init performs one-time setup of a thread before it runs its first
// program: step-budget default, stdio defaults, and a context whose
// cancellation is observed by the dispatch loop's per-step check.
func (th *Thread) init(ctx context.Context) {
	if th.MaxSteps <= 0 {
		th.maxSteps-- // wraps to MaxUint64: effectively unlimited
	} else {
		th.maxSteps = uint64(th.MaxSteps)
	}
	if th.Stdout != nil {
		th.stdout = th.Stdout
	} else {
		th.stdout = os.Stdout
	}
	if th.Stderr != nil {
		th.stderr = th.Stderr
	} else {
		th.stderr = os.Stderr
	}
	if th.Stdin != nil {
		th.stdin = th.Stdin
	} else {
		th.stdin = os.Stdin
	}

	ctx, cancel := context.WithCancel(ctx)
	th.ctx = ctx
	th.ctxCancel = cancel
	go func() {
		<-th.ctx.Done()
		th.cancelled.Store(true)
	}()
}

// newFrame builds the activation record for one call to fn: its locals
// (parameters bound from args, remaining slots nil until assigned, cells
// spilled per fn.fcode.Cells) and its operand stack, sized from the
// compiled function's own static analysis.
func (th *Thread) newFrame(fn *Function, this Value, args []Value) *Frame {
	fcode := fn.fcode
	nlocals := len(fcode.Locals)
	fr := &Frame{
		fn:     fn,
		this:   this,
		locals: make([]Value, nlocals),
		stack:  make([]Value, fcode.MaxStack),
	}
	bindArgs(th, fr.locals, fcode, args)
	for _, idx := range fcode.Cells {
		fr.locals[idx] = &cell{fr.locals[idx]}
	}
	if n := len(fcode.Defers) + len(fcode.Catches); n > 0 {
		fr.deferredStack = make([]int64, 0, n)
	}
	return fr
}

// bindArgs binds fn's positional parameters from args, collecting any
// surplus into the final rest-parameter slot when fcode.HasVarargs.
func bindArgs(th *Thread, locals []Value, fcode *compiler.Funcode, args []Value) {
	nparams := fcode.NumParams
	if fcode.HasVarargs {
		nparams--
	}
	for i := 0; i < nparams; i++ {
		if i < len(args) {
			locals[i] = args[i]
		} else {
			locals[i] = Undefined
		}
	}
	if fcode.HasVarargs {
		var rest []Value
		if len(args) > nparams {
			rest = append(rest, args[nparams:]...)
		}
		locals[nparams] = th.Heap.Alloc(th, NewArray(th.ArrayProto, rest))
	}
}

// run executes fn synchronously to completion: either resuming an
// already-suspended frame (resumeFrame, used when a synchronous wrapper
// drives an async generator-free continuation — not currently exercised,
// kept for symmetry with callAsync) or starting a fresh call. It must
// never itself suspend on AWAIT; async functions instead go through
// callAsync, which owns the suspend/resume cycle.
func (th *Thread) run(fn *Function, this Value, args []Value, resumeFrame *Frame) (Value, error) {
	fr := resumeFrame
	if fr == nil {
		if th.MaxCallStackDepth > 0 && len(th.callStack) >= th.MaxCallStackDepth {
			return nil, fmt.Errorf("RangeError: Maximum call stack size exceeded")
		}
		fr = th.newFrame(fn, this, args)
	}
	result, err, suspend := th.execute(fr)
	if suspend != nil {
		return nil, fmt.Errorf("internal error: %s suspended on await outside of an async call", fn.Name())
	}
	return result, err
}

// callAsync implements the Async Function Adapter: fn's body runs until
// its first AWAIT (or to completion), immediately returning a pending
// Promise that settles from whatever fn eventually returns or throws,
// resuming through however many further awaits it takes.
func (th *Thread) callAsync(fn *Function, this Value, args []Value) Value {
	fr := th.newFrame(fn, this, args)
	p := NewPromise(th)
	th.stepAsync(fr, p)
	return p
}

// stepAsync runs (or resumes) fr until it returns, throws, or suspends on
// another AWAIT, in which case it arranges to be called again once the
// awaited value settles.
func (th *Thread) stepAsync(fr *Frame, p Value) {
	result, err, suspend := th.execute(fr)
	promise := p.(HeapRef).Object().(*Promise)
	switch {
	case suspend != nil:
		th.whenSettled(suspend.awaited, func(v Value, rejected bool) {
			if rejected {
				fr.mode = awaitingThrow
				fr.resumeErr = throwValue(v)
			} else {
				fr.mode = awaitingResume
				fr.resumeValue = v
			}
			th.stepAsync(fr, p)
		})
	case err != nil:
		promise.reject(th, errorValueOf(err))
	default:
		promise.resolve(th, result)
	}
}

// execute pushes fr onto the call stack (so GC roots and Position() see
// it) and runs the dispatch loop (in machine.go) until it returns, throws,
// or suspends on AWAIT.
func (th *Thread) execute(fr *Frame) (Value, error, *awaitSuspend) {
	if th.DisableRecursion {
		for _, o := range th.callStack {
			if o.fn.fcode != nil && fr.fn.fcode != nil && o.fn.fcode == fr.fn.fcode {
				return nil, fmt.Errorf("function %s called recursively", fr.fn.Name()), nil
			}
		}
	}
	th.callStack = append(th.callStack, fr)
	defer func() { th.callStack = th.callStack[:len(th.callStack)-1] }()
	return th.dispatch(fr)
}
