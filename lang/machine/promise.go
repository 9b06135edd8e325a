package machine

import (
	"fmt"

	"github.com/dolthub/swiss"
)

// PromiseState is one of the three states of spec.md §4.I's Promise state
// machine. A Promise moves from Pending to exactly one of Fulfilled or
// Rejected, once, forever.
type PromiseState uint8

const (
	Pending PromiseState = iota
	Fulfilled
	Rejected
)

func (s PromiseState) String() string {
	switch s {
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	default:
		return "pending"
	}
}

// reaction is one .then()-registered fulfill/reject handler pair, along
// with the promise .then() returned for it: once p settles, exactly one of
// onFulfilled/onRejected runs (as its own microtask) and settles derived
// from its outcome.
type reaction struct {
	onFulfilled, onRejected Value
	derived                 HeapRef
}

// Promise is a three-state settlement box with an ordered reaction queue:
// every reaction registered while still Pending fires, in registration
// order, the moment the promise settles. nativeReactions backs AWAIT's
// continuation-resume hook, bypassing the Value-level reaction list since
// the interpreter's own resume callback is not a script-visible Callable.
type Promise struct {
	Object
	state           PromiseState
	value           Value
	reactions       []reaction
	nativeReactions []func(v Value, rejected bool)
}

var _ HeapObject = (*Promise)(nil)

// NewPromise allocates a fresh pending promise on th's heap.
func NewPromise(th *Thread) Value {
	p := &Promise{Object: Object{
		class:      "Promise",
		props:      swiss.NewMap[string, *Property](0),
		proto:      th.PromiseProto,
		hasProto:   true,
		extensible: true,
	}}
	return th.Heap.Alloc(th, p)
}

func (p *Promise) String() string {
	switch p.state {
	case Fulfilled:
		return fmt.Sprintf("Promise { %s }", p.value)
	case Rejected:
		return fmt.Sprintf("Promise { <rejected> %s }", p.value)
	default:
		return "Promise { <pending> }"
	}
}
func (p *Promise) Type() string { return "object" }

func (p *Promise) ReferencedCells() []HeapRef {
	refs := p.Object.ReferencedCells()
	if r, ok := p.value.(HeapRef); ok {
		refs = append(refs, r)
	}
	for _, rx := range p.reactions {
		if r, ok := rx.onFulfilled.(HeapRef); ok {
			refs = append(refs, r)
		}
		if r, ok := rx.onRejected.(HeapRef); ok {
			refs = append(refs, r)
		}
		refs = append(refs, rx.derived)
	}
	return refs
}

// resolve settles p as Fulfilled with v, unless v is itself a (thenable)
// promise, in which case p instead adopts v's eventual state, per the
// language's Promise Resolution Procedure. A no-op once p has settled.
func (p *Promise) resolve(th *Thread, v Value) {
	if p.state != Pending {
		return
	}
	if r, ok := v.(HeapRef); ok {
		if inner, ok := r.Object().(*Promise); ok {
			if inner == p {
				p.settle(th, Rejected, NewString("TypeError: chaining cycle detected for promise"))
				return
			}
			inner.onSettle(th, func(iv Value, rejected bool) {
				if rejected {
					p.reject(th, iv)
				} else {
					p.resolve(th, iv)
				}
			})
			return
		}
	}
	p.settle(th, Fulfilled, v)
}

// reject settles p as Rejected with reason. A no-op once p has settled.
func (p *Promise) reject(th *Thread, reason Value) {
	if p.state != Pending {
		return
	}
	p.settle(th, Rejected, reason)
}

func (p *Promise) settle(th *Thread, state PromiseState, v Value) {
	p.state = state
	p.value = v

	reactions := p.reactions
	p.reactions = nil
	for _, rx := range reactions {
		rx := rx
		th.Loop.enqueueMicrotask(func() { runReaction(th, p, rx) })
	}

	native := p.nativeReactions
	p.nativeReactions = nil
	for _, cb := range native {
		cb := cb
		th.Loop.enqueueMicrotask(func() { cb(v, state == Rejected) })
	}
}

// onSettle registers a raw Go callback to run, as a microtask, once p
// settles (immediately scheduling one if p has already settled). Used
// internally by AWAIT's resume hook (see Thread.whenSettled in
// eventloop.go) rather than the Value-level .then reaction queue.
func (p *Promise) onSettle(th *Thread, cb func(v Value, rejected bool)) {
	if p.state != Pending {
		v, rejected := p.value, p.state == Rejected
		th.Loop.enqueueMicrotask(func() { cb(v, rejected) })
		return
	}
	p.nativeReactions = append(p.nativeReactions, cb)
}

// then implements Promise.prototype.then: always returns a freshly
// allocated derived promise, settled from whichever handler (if any)
// fires once p settles.
func (p *Promise) then(th *Thread, onFulfilled, onRejected Value) Value {
	derivedV := NewPromise(th)
	derived := derivedV.(HeapRef)
	rx := reaction{onFulfilled: onFulfilled, onRejected: onRejected, derived: derived}
	if p.state == Pending {
		p.reactions = append(p.reactions, rx)
	} else {
		th.Loop.enqueueMicrotask(func() { runReaction(th, p, rx) })
	}
	return derivedV
}

func runReaction(th *Thread, p *Promise, rx reaction) {
	derived := rx.derived.Object().(*Promise)
	handler := rx.onFulfilled
	if p.state == Rejected {
		handler = rx.onRejected
	}
	fn, ok := handler.(Callable)
	if !ok {
		// No handler of the matching kind: p's outcome propagates to derived
		// unchanged, which is how .then(onlyOnFulfilled) lets a rejection
		// skip past it to the next .catch in the chain.
		if p.state == Rejected {
			derived.reject(th, p.value)
		} else {
			derived.resolve(th, p.value)
		}
		return
	}
	result, err := fn.CallInternal(th, Undefined, []Value{p.value})
	if err != nil {
		derived.reject(th, errorValueOf(err))
		return
	}
	derived.resolve(th, result)
}
