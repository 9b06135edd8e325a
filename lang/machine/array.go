package machine

import (
	"fmt"

	"github.com/dolthub/swiss"
)

// Array is a plain Object (so it carries arbitrary named properties and a
// prototype link) extended with a dense element vector for its integer
// indices and length, mirroring how the language layers Array on top of
// the ordinary object model rather than giving it a wholly separate
// representation. ES2024 non-mutating methods (toReversed, toSorted,
// toSpliced, with, findLast, findLastIndex) are registered as native
// Array.prototype builtins (see builtins.go) rather than Go methods
// here, so they go through the same Callable/CallInternal path as
// user-defined methods.
type Array struct {
	Object
	elems []Value
}

var _ HeapObject = (*Array)(nil)

// NewArray returns an array holding a copy of elems.
func NewArray(proto HeapRef, elems []Value) *Array {
	a := &Array{Object: Object{
		class:      "Array",
		props:      swiss.NewMap[string, *Property](0),
		proto:      proto,
		hasProto:   true,
		extensible: true,
	}}
	a.elems = append([]Value(nil), elems...)
	return a
}

func (a *Array) String() string {
	s := "["
	for i, e := range a.elems {
		if i > 0 {
			s += ", "
		}
		s += e.String()
	}
	return s + "]"
}
func (a *Array) Type() string { return "object" }

func (a *Array) ReferencedCells() []HeapRef {
	refs := a.Object.ReferencedCells()
	for _, e := range a.elems {
		if r, ok := e.(HeapRef); ok {
			refs = append(refs, r)
		}
	}
	return refs
}

func (a *Array) Len() int { return len(a.elems) }

// At returns the element at i, or Undefined if i is out of range (reading
// past an array's length yields undefined rather than an error).
func (a *Array) At(i int) Value {
	if i < 0 || i >= len(a.elems) {
		return Undefined
	}
	return a.elems[i]
}

// SetAt assigns index i, growing the array (padding new slots with
// Undefined, i.e. a sparse hole) if i is beyond the current length.
func (a *Array) SetAt(i int, v Value) error {
	if i < 0 {
		return fmt.Errorf("RangeError: invalid array index %d", i)
	}
	if i >= len(a.elems) {
		grown := make([]Value, i+1)
		copy(grown, a.elems)
		for j := len(a.elems); j < i; j++ {
			grown[j] = Undefined
		}
		a.elems = grown
	}
	a.elems[i] = v
	return nil
}

func (a *Array) Push(vs ...Value) int {
	a.elems = append(a.elems, vs...)
	return len(a.elems)
}

func (a *Array) Pop() Value {
	if len(a.elems) == 0 {
		return Undefined
	}
	v := a.elems[len(a.elems)-1]
	a.elems = a.elems[:len(a.elems)-1]
	return v
}

func (a *Array) SetLength(n int) {
	switch {
	case n < len(a.elems):
		a.elems = a.elems[:n]
	case n > len(a.elems):
		grown := make([]Value, n)
		copy(grown, a.elems)
		for i := len(a.elems); i < n; i++ {
			grown[i] = Undefined
		}
		a.elems = grown
	}
}

func (a *Array) Elements() []Value { return a.elems }
