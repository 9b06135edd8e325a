package machine

import "github.com/cortenjs/corten/lang/compiler"

// asyncMode records how a suspended Frame should be resumed: running
// frames (every synchronous call, and an async function between awaits)
// are mode running; a frame paused at an AWAIT instruction is tagged with
// whether the awaited value settled by fulfillment or rejection, so
// stepAsync knows whether to push the resumed value or throw it.
//
// Suspension captures the whole frame rather than lowering async functions
// to a compile-time state machine (SPEC_FULL.md's async-adapter open
// question): the interpreter already keeps locals, operand stack, pc,
// iterstack and deferredStack together in one struct, so parking that
// struct and resuming it later costs nothing extra.
type asyncMode int

const (
	running asyncMode = iota
	awaitingResume
	awaitingThrow
)

// Frame is one activation record of the interpreter: the callee, its bound
// `this`, its local-variable slots and operand stack, and the bookkeeping
// (iterstack, deferredStack) a try/catch/finally or for-of/for-in loop
// needs across a suspend-and-resume boundary.
type Frame struct {
	fn   *Function
	this Value

	locals []Value
	stack  []Value
	sp     int
	pc     uint32

	iterstack     []Iterator
	deferredStack []int64

	// pendingReturns holds the return values parked while a finally block
	// runs before a `return` can actually complete (deferredStack carries a
	// -1 marker for each one, in the same stack order).
	pendingReturns []Value

	// runDefer and inFlightErr are dispatch-loop state for the active
	// try/catch/finally machinery (see the handler-lookup helpers in
	// machine.go). They live on Frame rather than as locals in the dispatch
	// function because an AWAIT inside a protected region must suspend the
	// whole frame, and this state has to survive that suspend/resume round
	// trip just as much as pc or sp do.
	runDefer    bool
	inFlightErr error

	mode        asyncMode
	resumeValue Value
	resumeErr   error
}

// Position returns the source position of the frame's current point of
// execution, for diagnostics and thrown-error stack traces.
func (fr *Frame) Position() compiler.Position {
	if fr.fn == nil || fr.fn.fcode == nil {
		return compiler.Position{}
	}
	return fr.fn.fcode.Position(fr.pc)
}

// roots returns every heap reference this frame's locals, operand stack,
// and bound `this` directly hold, feeding the collector's RootProvider
// walk (see Thread.Roots in thread.go).
func (fr *Frame) roots() []HeapRef {
	var refs []HeapRef
	for _, v := range fr.locals {
		switch v := v.(type) {
		case nil:
		case *cell:
			if r, ok := v.v.(HeapRef); ok {
				refs = append(refs, r)
			}
		case HeapRef:
			refs = append(refs, v)
		}
	}
	for _, v := range fr.stack[:fr.sp] {
		if r, ok := v.(HeapRef); ok {
			refs = append(refs, r)
		}
	}
	if r, ok := fr.this.(HeapRef); ok {
		refs = append(refs, r)
	}
	return refs
}
