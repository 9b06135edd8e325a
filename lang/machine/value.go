// Package machine implements the virtual machine that executes the
// bytecode-compiled form of the source code. It also provides the runtime
// representation of the various builtin values.
//
// The package's shape (interface-based Value dispatch, a closure-capture
// cell box, a Thread driving a bytecode dispatch loop) is adapted from the
// Starlark source code:
// https://github.com/google/starlark-go/tree/ee8ed142361c69d52fe8e9fb5e311d2a0a7c02de
//
// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
package machine

import (
	"fmt"
	"math"
	"unicode/utf16"
)

// Value is implemented by every value the interpreter can hold: the
// immediate kinds (Undefined, Null, Boolean, SmallInt, Float, String) and
// HeapRef, which stands in for every heap-allocated kind (Object, Array,
// Function, Promise).
type Value interface {
	fmt.Stringer

	// Type returns the typeof-style name of the value's kind.
	Type() string

	// Truth reports the value's ToBoolean coercion.
	Truth() bool
}

// Callable is implemented by values that can appear as the callee of a CALL
// instruction: script Functions and native builtins.
type Callable interface {
	Value
	CallInternal(th *Thread, this Value, args []Value) (Value, error)
	Name() string
}

// undefinedType is the type of the Undefined singleton.
type undefinedType struct{}

// Undefined is the value of a declared-but-unassigned binding and of a
// missing property; distinct from Null, per the language's
// Undefined-vs-Null split.
var Undefined = undefinedType{}

func (undefinedType) String() string { return "undefined" }
func (undefinedType) Type() string   { return "undefined" }
func (undefinedType) Truth() bool    { return false }

// nullType is the type of the Null singleton.
type nullType struct{}

// Null is the language's explicit "no object" value.
var Null = nullType{}

func (nullType) String() string { return "null" }
func (nullType) Type() string   { return "object" } // typeof null === "object", kept intentionally
func (nullType) Truth() bool    { return false }

// Boolean is a true/false value.
type Boolean bool

const (
	True  = Boolean(true)
	False = Boolean(false)
)

func (b Boolean) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (b Boolean) Type() string { return "boolean" }
func (b Boolean) Truth() bool  { return bool(b) }

// SmallInt is the fast path of the Number type: an exact, non-fractional
// value that fits in 32 bits. Arithmetic that would overflow it, or that
// produces a fractional result, widens to Float. Kept distinct from Float
// so small integer loop counters and array indices avoid float64 boxing.
type SmallInt int32

func (i SmallInt) String() string { return fmt.Sprintf("%d", int32(i)) }
func (i SmallInt) Type() string   { return "number" }
func (i SmallInt) Truth() bool    { return i != 0 }

// Float is the Number type's general (non-SMI) representation: any
// fractional value, any magnitude outside int32 range, and the special
// values NaN/+Infinity/-Infinity.
type Float float64

func (f Float) String() string {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	return formatNumber(v)
}
func (f Float) Type() string { return "number" }
func (f Float) Truth() bool  { return float64(f) != 0 && !math.IsNaN(float64(f)) }

func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e21 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%g", v)
}

// NewNumber builds the Number representation (SmallInt or Float) for a raw
// float64; used by the compiler's constant pool and by arithmetic results.
func NewNumber(v float64) Value {
	if v == math.Trunc(v) && !math.IsInf(v, 0) {
		if i := int32(v); float64(i) == v {
			return SmallInt(i)
		}
	}
	return Float(v)
}

// ToFloat64 widens any Number value (SmallInt or Float) to float64; it also
// implements the ToNumber coercion for non-Number values.
func ToFloat64(v Value) float64 {
	switch v := v.(type) {
	case SmallInt:
		return float64(v)
	case Float:
		return float64(v)
	case Boolean:
		if v {
			return 1
		}
		return 0
	case undefinedType:
		return math.NaN()
	case nullType:
		return 0
	case String:
		return v.toNumber()
	default:
		return math.NaN()
	}
}

// IsNumber reports whether v is SmallInt or Float.
func IsNumber(v Value) bool {
	switch v.(type) {
	case SmallInt, Float:
		return true
	default:
		return false
	}
}

// String is an immutable sequence of UTF-16 code units, matching the
// language's string semantics (length and indexing operate on code units,
// not runes, so lone surrogates survive round-tripping). The scanner
// already decodes string literals into this representation (see
// ast.StringLit.Value), so the runtime reuses it rather than converting
// through Go's UTF-8 strings internally.
type String []uint16

func NewString(s string) String { return String(utf16.Encode([]rune(s))) }

func (s String) String() string { return string(utf16.Decode([]uint16(s))) }
func (s String) Type() string   { return "string" }
func (s String) Truth() bool    { return len(s) > 0 }
func (s String) Len() int       { return len(s) }

func (s String) toNumber() float64 {
	text := s.String()
	if text == "" {
		return 0
	}
	var f float64
	if _, err := fmt.Sscanf(text, "%g", &f); err != nil {
		return math.NaN()
	}
	return f
}

// IsWellFormed reports whether s contains no lone (unpaired) surrogates.
func (s String) IsWellFormed() bool {
	for i := 0; i < len(s); i++ {
		u := s[i]
		switch {
		case u >= 0xD800 && u <= 0xDBFF: // high surrogate, must be followed by a low one
			if i+1 >= len(s) || s[i+1] < 0xDC00 || s[i+1] > 0xDFFF {
				return false
			}
			i++
		case u >= 0xDC00 && u <= 0xDFFF: // unpaired low surrogate
			return false
		}
	}
	return true
}

// ToWellFormed replaces every lone surrogate with U+FFFD, per the
// String.prototype.toWellFormed algorithm.
func (s String) ToWellFormed() String {
	if s.IsWellFormed() {
		return s
	}
	out := make(String, len(s))
	copy(out, s)
	for i := 0; i < len(out); i++ {
		u := out[i]
		switch {
		case u >= 0xD800 && u <= 0xDBFF:
			if i+1 >= len(out) || out[i+1] < 0xDC00 || out[i+1] > 0xDFFF {
				out[i] = 0xFFFD
			} else {
				i++
			}
		case u >= 0xDC00 && u <= 0xDFFF:
			out[i] = 0xFFFD
		}
	}
	return out
}

// NoSuchPropertyError is returned by callers that need to distinguish
// "property absent from the whole prototype chain" from "property present
// but holding Undefined"; ordinary property reads treat a miss as
// Undefined rather than surfacing this.
type NoSuchPropertyError struct {
	Type, Name string
}

func (e *NoSuchPropertyError) Error() string {
	return fmt.Sprintf("%s has no property %q", e.Type, e.Name)
}
