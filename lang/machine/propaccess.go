package machine

import (
	"fmt"
	"strconv"
)

// indexKey coerces a computed member-expression key (`x[y]`) to the string
// property key GetProperty/SetProperty operate on, matching the language's
// ToPropertyKey: a String value's own text is used directly; anything else
// uses its ToString rendering (which for Number values is the same
// algorithm array index lookups below special-case for speed).
func indexKey(y Value) string {
	if s, ok := y.(String); ok {
		return s.String()
	}
	return y.String()
}

// arrayIndex reports whether y denotes a non-negative integer array index,
// and its value, so GET_INDEX/SET_INDEX can take the dense-array fast path
// instead of going through the generic string-keyed property map.
func arrayIndex(y Value) (int, bool) {
	switch y := y.(type) {
	case SmallInt:
		if y < 0 {
			return 0, false
		}
		return int(y), true
	case Float:
		f := float64(y)
		if f < 0 || f != float64(int(f)) {
			return 0, false
		}
		return int(f), true
	case String:
		n, err := strconv.Atoi(y.String())
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// getIndex implements GET_INDEX (`x[y]`): a dense element read for arrays
// and numeric y, a code-unit read for strings, and a generic property read
// (through the prototype chain) otherwise.
func getIndex(th *Thread, x, y Value) (Value, error) {
	switch x := x.(type) {
	case String:
		i, ok := arrayIndex(y)
		if !ok || i >= len(x) {
			return Undefined, nil
		}
		return x[i : i+1], nil
	case HeapRef:
		if arr, ok := x.Object().(*Array); ok {
			if i, ok := arrayIndex(y); ok {
				return arr.At(i), nil
			}
			return GetProperty(th, &arr.Object, x, indexKey(y))
		}
		o, ok := objectOf(x)
		if !ok {
			return Undefined, fmt.Errorf("TypeError: cannot read properties of %s", x.Type())
		}
		return GetProperty(th, o, x, indexKey(y))
	case undefinedType, nullType:
		return nil, fmt.Errorf("TypeError: cannot read properties of %s (reading %s)", x.Type(), indexKey(y))
	default:
		return Undefined, nil
	}
}

// setIndex implements SET_INDEX (`x[y] = z`).
func setIndex(th *Thread, x, y, z Value) error {
	switch x := x.(type) {
	case HeapRef:
		if arr, ok := x.Object().(*Array); ok {
			if i, ok := arrayIndex(y); ok {
				return arr.SetAt(i, z)
			}
			return SetProperty(th, &arr.Object, x, indexKey(y), z)
		}
		o, ok := objectOf(x)
		if !ok {
			return fmt.Errorf("TypeError: cannot set properties of %s", x.Type())
		}
		return SetProperty(th, o, x, indexKey(y), z)
	case undefinedType, nullType:
		return fmt.Errorf("TypeError: cannot set properties of %s (setting %s)", x.Type(), indexKey(y))
	default:
		return fmt.Errorf("TypeError: cannot set properties of %s", x.Type())
	}
}

// deleteIndex implements DELETE_INDEX (`delete x[y]`).
func deleteIndex(x, y Value) (Value, error) {
	r, ok := x.(HeapRef)
	if !ok {
		return True, nil
	}
	if arr, ok := r.Object().(*Array); ok {
		if i, ok := arrayIndex(y); ok {
			if i >= 0 && i < arr.Len() {
				arr.elems[i] = Undefined
			}
			return True, nil
		}
		return Boolean(arr.DeleteOwn(indexKey(y))), nil
	}
	o, ok := objectOf(x)
	if !ok {
		return True, nil
	}
	return Boolean(o.DeleteOwn(indexKey(y))), nil
}

// inOperator implements IN (`k in o`).
func inOperator(k, o Value) (Value, error) {
	r, ok := o.(HeapRef)
	if !ok {
		return nil, fmt.Errorf("TypeError: cannot use 'in' operator to search in %s", o.Type())
	}
	if arr, ok := r.Object().(*Array); ok {
		if i, ok := arrayIndex(k); ok {
			return Boolean(i >= 0 && i < arr.Len()), nil
		}
	}
	obj, ok := objectOf(o)
	if !ok {
		return False, nil
	}
	return Boolean(HasProperty(obj, indexKey(k))), nil
}

// namedGetProperty implements GET_PROP (`x.name`), special-casing the
// host-level fields the generic property map cannot represent: an Array's
// `length`, and a String's `length` plus its prototype chain (a String is
// not itself a HeapRef, so it cannot carry an own property map the way an
// Object/Array/Function/Promise does).
func namedGetProperty(th *Thread, x Value, name string) (Value, error) {
	if s, ok := x.(String); ok {
		if name == "length" {
			return SmallInt(s.Len()), nil
		}
		protoObj, ok := objectOf(th.StringProto)
		if !ok {
			return Undefined, nil
		}
		return GetProperty(th, protoObj, x, name)
	}
	if r, ok := x.(HeapRef); ok {
		if arr, ok := r.Object().(*Array); ok && name == "length" {
			return SmallInt(arr.Len()), nil
		}
	}
	o, ok := objectOf(x)
	if !ok {
		return nil, fmt.Errorf("TypeError: cannot read properties of %s (reading '%s')", describeReceiver(x), name)
	}
	return GetProperty(th, o, x, name)
}

// namedSetProperty implements SET_PROP (`x.name = v`); a String's
// properties are not assignable (strings are immutable values).
func namedSetProperty(th *Thread, x Value, name string, v Value) error {
	if _, ok := x.(String); ok {
		return nil
	}
	r, ok := x.(HeapRef)
	if !ok {
		return fmt.Errorf("TypeError: cannot set properties of %s", describeReceiver(x))
	}
	if arr, ok := r.Object().(*Array); ok {
		if name == "length" {
			arr.SetLength(int(toInt32(v)))
			return nil
		}
		return SetProperty(th, &arr.Object, x, name, v)
	}
	o, ok := objectOf(x)
	if !ok {
		return fmt.Errorf("TypeError: cannot set properties of %s", describeReceiver(x))
	}
	return SetProperty(th, o, x, name, v)
}

// instanceOf implements INSTANCEOF (`v instanceof c`): c must be callable
// and expose a "prototype" property; v is an instance if that object
// appears anywhere on v's own prototype chain.
func instanceOf(th *Thread, v, c Value) (Value, error) {
	ctorObj, ok := objectOf(c)
	if !ok {
		return nil, fmt.Errorf("TypeError: right-hand side of 'instanceof' is not callable")
	}
	protoV, err := GetProperty(th, ctorObj, c, "prototype")
	if err != nil {
		return nil, err
	}
	protoRef, ok := protoV.(HeapRef)
	if !ok {
		return nil, fmt.Errorf("TypeError: function's prototype is not an object")
	}
	r, ok := v.(HeapRef)
	if !ok {
		return False, nil
	}
	obj, ok := objectOf(r)
	if !ok {
		return False, nil
	}
	for {
		if !obj.hasProto {
			return False, nil
		}
		if obj.proto.equal(protoRef) {
			return True, nil
		}
		next, ok := objectOf(obj.proto)
		if !ok {
			return False, nil
		}
		obj = next
	}
}
