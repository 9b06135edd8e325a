package machine

import (
	"fmt"

	"github.com/dolthub/swiss"

	"github.com/cortenjs/corten/lang/compiler"
)

// NativeFunc is the signature of a builtin implemented in Go: given the
// receiver (`this`) and the positional arguments, return a result or an
// error (which the caller wraps into a thrown language Error, see
// errors.go).
type NativeFunc func(th *Thread, this Value, args []Value) (Value, error)

// Function is either a native builtin or a compiled script function
// closing over a set of captured cells. Both kinds go through the same
// Callable.CallInternal entry point so CALL bytecode does not need to
// distinguish them.
type Function struct {
	Object

	name     string
	native   NativeFunc
	fcode    *compiler.Funcode
	freevars []*cell
	isAsync  bool
}

var (
	_ HeapObject = (*Function)(nil)
	_ Callable   = (*Function)(nil)
)

// NewNativeFunction wraps a Go function as a callable language value.
func NewNativeFunction(proto HeapRef, name string, fn NativeFunc) *Function {
	return &Function{
		Object: Object{class: "Function", props: swiss.NewMap[string, *Property](0), proto: proto, hasProto: true, extensible: true},
		name:   name,
		native: fn,
	}
}

// NewScriptFunction builds a closure over fcode, binding freevars captured
// from the enclosing frame.
func NewScriptFunction(proto HeapRef, fcode *compiler.Funcode, freevars []*cell, isAsync bool) *Function {
	return &Function{
		Object:   Object{class: "Function", props: swiss.NewMap[string, *Property](0), proto: proto, hasProto: true, extensible: true},
		name:     fcode.Name,
		fcode:    fcode,
		freevars: freevars,
		isAsync:  isAsync,
	}
}

func (fn *Function) String() string {
	return fmt.Sprintf("function %s() { [native or compiled code] }", fn.name)
}
func (fn *Function) Type() string { return "function" }
func (fn *Function) Name() string {
	if fn.name == "" {
		return "anonymous"
	}
	return fn.name
}

func (fn *Function) ReferencedCells() []HeapRef {
	refs := fn.Object.ReferencedCells()
	for _, c := range fn.freevars {
		if r, ok := c.v.(HeapRef); ok {
			refs = append(refs, r)
		}
	}
	return refs
}

// CallInternal invokes the function. A native function runs synchronously
// to completion. A script function is run by the interpreter's dispatch
// loop (run, in thread.go); an async script function instead runs its body
// until the first AWAIT and returns a pending Promise that settles once the
// body finishes (see callAsync in thread.go), per the Async Function Adapter.
func (fn *Function) CallInternal(th *Thread, this Value, args []Value) (Value, error) {
	if fn.native != nil {
		return fn.native(th, this, args)
	}
	if fn.isAsync {
		return th.callAsync(fn, this, args), nil
	}
	return th.run(fn, this, args, nil)
}
