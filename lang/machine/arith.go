package machine

import (
	"fmt"
	"math"
)

// toInt32 implements the ToInt32 coercion the bitwise operators use: widen
// to float64, truncate toward zero, then wrap into int32's range (NaN,
// +-Infinity and out-of-range magnitudes all become 0 through this path,
// per the language's bitwise-operator semantics).
func toInt32(v Value) int32 {
	f := ToFloat64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(uint32(int64(math.Trunc(f))))
}

func toUint32(v Value) uint32 {
	f := ToFloat64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return uint32(int64(math.Trunc(f)))
}

// isString reports whether v is the String kind, used throughout to decide
// between ADD's string-concatenation and numeric-addition branches and
// between lexicographic and numeric ordering comparisons.
func isString(v Value) bool {
	_, ok := v.(String)
	return ok
}

func toStringValue(th *Thread, v Value) (String, error) {
	switch v := v.(type) {
	case String:
		return v, nil
	case HeapRef:
		s, err := stringify(th, v)
		if err != nil {
			return nil, err
		}
		return NewString(s), nil
	default:
		return NewString(v.String()), nil
	}
}

// stringify implements a minimal ToString for heap values: arrays/strings
// render their own String(); everything else falls back to its class tag
// unless it carries a callable "toString" property.
func stringify(th *Thread, v Value) (string, error) {
	obj, ok := objectOf(v)
	if ok {
		if fnv, err := GetProperty(th, obj, v, "toString"); err == nil {
			if fn, ok := fnv.(Callable); ok {
				res, err := fn.CallInternal(th, v, nil)
				if err != nil {
					return "", err
				}
				return res.String(), nil
			}
		}
	}
	return v.String(), nil
}

// add implements the ADD opcode: string concatenation if either operand is
// a string, else numeric addition (with ToNumber coercion of the other
// side), matching the language's + operator overload.
func add(th *Thread, x, y Value) (Value, error) {
	if isString(x) || isString(y) {
		xs, err := toStringValue(th, x)
		if err != nil {
			return nil, err
		}
		ys, err := toStringValue(th, y)
		if err != nil {
			return nil, err
		}
		return append(append(String(nil), xs...), ys...), nil
	}
	return NewNumber(ToFloat64(x) + ToFloat64(y)), nil
}

func arithBinary(op string, x, y Value) (Value, error) {
	a, b := ToFloat64(x), ToFloat64(y)
	switch op {
	case "sub":
		return NewNumber(a - b), nil
	case "mul":
		return NewNumber(a * b), nil
	case "div":
		return NewNumber(a / b), nil
	case "mod":
		return NewNumber(math.Mod(a, b)), nil
	case "pow":
		return NewNumber(math.Pow(a, b)), nil
	case "bitand":
		return NewNumber(float64(toInt32(x) & toInt32(y))), nil
	case "bitor":
		return NewNumber(float64(toInt32(x) | toInt32(y))), nil
	case "bitxor":
		return NewNumber(float64(toInt32(x) ^ toInt32(y))), nil
	case "shl":
		return NewNumber(float64(toInt32(x) << (toUint32(y) & 31))), nil
	case "shr":
		return NewNumber(float64(toInt32(x) >> (toUint32(y) & 31))), nil
	case "ushr":
		return NewNumber(float64(toUint32(x) >> (toUint32(y) & 31))), nil
	}
	return nil, fmt.Errorf("internal error: unknown arithmetic op %q", op)
}

// compareOrder implements LT/LE/GT/GE's relational comparison: if both
// operands are strings, lexicographic order over UTF-16 code units;
// otherwise numeric order with ToNumber coercion, matching the language's
// Abstract Relational Comparison.
func compareOrder(op string, x, y Value) Value {
	if isString(x) && isString(y) {
		xs, ys := x.(String), y.(String)
		cmp := 0
		for i := 0; i < len(xs) && i < len(ys); i++ {
			if xs[i] != ys[i] {
				if xs[i] < ys[i] {
					cmp = -1
				} else {
					cmp = 1
				}
				break
			}
		}
		if cmp == 0 {
			switch {
			case len(xs) < len(ys):
				cmp = -1
			case len(xs) > len(ys):
				cmp = 1
			}
		}
		return orderResult(op, cmp, cmp, false)
	}
	a, b := ToFloat64(x), ToFloat64(y)
	if math.IsNaN(a) || math.IsNaN(b) {
		return False
	}
	switch op {
	case "lt":
		return Boolean(a < b)
	case "le":
		return Boolean(a <= b)
	case "gt":
		return Boolean(a > b)
	case "ge":
		return Boolean(a >= b)
	}
	return False
}

func orderResult(op string, cmp, _ int, _ bool) Value {
	switch op {
	case "lt":
		return Boolean(cmp < 0)
	case "le":
		return Boolean(cmp <= 0)
	case "gt":
		return Boolean(cmp > 0)
	case "ge":
		return Boolean(cmp >= 0)
	}
	return False
}

// strictEquals implements SEQ/SNEQ (===): same kind and same value, with
// HeapRefs compared by identity (same heap cell), never structurally.
func strictEquals(x, y Value) bool {
	switch x := x.(type) {
	case undefinedType:
		_, ok := y.(undefinedType)
		return ok
	case nullType:
		_, ok := y.(nullType)
		return ok
	case Boolean:
		b, ok := y.(Boolean)
		return ok && x == b
	case SmallInt:
		switch y := y.(type) {
		case SmallInt:
			return x == y
		case Float:
			return float64(x) == float64(y)
		}
		return false
	case Float:
		switch y := y.(type) {
		case SmallInt:
			return float64(x) == float64(y)
		case Float:
			return float64(x) == float64(y)
		}
		return false
	case String:
		ys, ok := y.(String)
		if !ok || len(x) != len(ys) {
			return false
		}
		for i := range x {
			if x[i] != ys[i] {
				return false
			}
		}
		return true
	case HeapRef:
		yr, ok := y.(HeapRef)
		return ok && x.equal(yr)
	}
	return false
}

// looseEquals implements EQ/NEQ (==): identical to strictEquals except for
// the language's few cross-type coercions (null == undefined, and
// number/string mutual coercion); objects are never coerced to a
// primitive here (no valueOf/toString-driven ToPrimitive), which covers
// every case this runtime's own builtins are expected to hit.
func looseEquals(x, y Value) bool {
	if strictEquals(x, y) {
		return true
	}
	_, xNull := x.(nullType)
	_, xUndef := x.(undefinedType)
	_, yNull := y.(nullType)
	_, yUndef := y.(undefinedType)
	if (xNull || xUndef) && (yNull || yUndef) {
		return true
	}
	xNum, yNum := IsNumber(x), IsNumber(y)
	xStr, yStr := isString(x), isString(y)
	if xNum && yStr || xStr && yNum {
		return ToFloat64(x) == ToFloat64(y)
	}
	if xb, ok := x.(Boolean); ok {
		return looseEquals(boolToNumber(xb), y)
	}
	if yb, ok := y.(Boolean); ok {
		return looseEquals(x, boolToNumber(yb))
	}
	return false
}

func boolToNumber(b Boolean) Value {
	if b {
		return SmallInt(1)
	}
	return SmallInt(0)
}

// unaryOp implements UPLUS/UMINUS/LNOT/BITNOT/TYPEOF/VOID.
func unaryOp(op string, x Value) (Value, error) {
	switch op {
	case "uplus":
		return NewNumber(ToFloat64(x)), nil
	case "uminus":
		return NewNumber(-ToFloat64(x)), nil
	case "lnot":
		return Boolean(!x.Truth()), nil
	case "bitnot":
		return NewNumber(float64(^toInt32(x))), nil
	case "typeof":
		return NewString(x.Type()), nil
	case "void":
		return Undefined, nil
	}
	return nil, fmt.Errorf("internal error: unknown unary op %q", op)
}
