package machine

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// populateUniverse builds th's builtin prototypes and binds every name in
// Universe to its per-Thread value: console, Math, the Object/Array/
// Function/Promise/Error constructor family, and the handful of bare
// globals (undefined, NaN, Infinity, globalThis). Called once by NewThread.
func populateUniverse(th *Thread) {
	th.ObjectProto = th.Heap.Alloc(th, NewObject(HeapRef{}, false))
	th.ArrayProto = th.Heap.Alloc(th, NewObject(th.ObjectProto, true))
	th.FunctionProto = th.Heap.Alloc(th, NewObject(th.ObjectProto, true))
	th.PromiseProto = th.Heap.Alloc(th, NewObject(th.ObjectProto, true))
	th.ErrorProto = th.Heap.Alloc(th, NewObject(th.ObjectProto, true))
	th.StringProto = th.Heap.Alloc(th, NewObject(th.ObjectProto, true))

	populateArrayProto(th)
	populateStringProto(th)
	populatePromiseProto(th)

	th.Universals["undefined"] = Undefined
	th.Universals["NaN"] = NewNumber(math.NaN())
	th.Universals["Infinity"] = NewNumber(math.Inf(1))
	th.Universals["console"] = newConsole(th)
	th.Universals["Math"] = newMathObject(th)
	th.Universals["JSON"] = newJSONObject(th)
	th.Universals["Object"] = newObjectCtor(th)
	th.Universals["Array"] = newArrayCtor(th)
	th.Universals["Function"] = newFunctionCtor(th)
	th.Universals["Promise"] = newPromiseCtor(th)
	th.Universals["Error"] = newErrorCtor(th, "Error", th.ErrorProto)
	th.Universals["TypeError"] = newErrorCtor(th, "TypeError", th.ErrorProto)
	th.Universals["RangeError"] = newErrorCtor(th, "RangeError", th.ErrorProto)

	global := th.Heap.Alloc(th, NewObject(th.ObjectProto, true))
	th.Universals["globalThis"] = global
}

func method(th *Thread, proto HeapRef, name string, fn NativeFunc) {
	obj, _ := objectOf(proto)
	obj.DefineOwnProperty(name, &Property{Value: th.Heap.Alloc(th, NewNativeFunction(th.FunctionProto, name, fn)), Writable: true, Configurable: true})
}

func newCallable(th *Thread, name string, fn NativeFunc) Value {
	return th.Heap.Alloc(th, NewNativeFunction(th.FunctionProto, name, fn))
}

func arg(args []Value, i int) Value {
	if i < len(args) {
		return args[i]
	}
	return Undefined
}

// newConsole builds the console object: log/info write to th.stdout,
// error/warn write to th.stderr, every argument rendered with .String()
// and space-joined, matching Node's console.log behavior closely enough
// for a scripting runtime.
func newConsole(th *Thread) Value {
	c := th.Heap.Alloc(th, NewObject(th.ObjectProto, true))
	obj, _ := objectOf(c)
	write := func(w func(string) (int, error)) NativeFunc {
		return func(th *Thread, this Value, args []Value) (Value, error) {
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = a.String()
			}
			fmt.Fprintln(consoleWriter{write: w}, strings.Join(parts, " "))
			return Undefined, nil
		}
	}
	obj.DefineOwnProperty("log", dataProperty(newCallable(th, "log", write(func(s string) (int, error) { return fmt.Fprint(th.stdout, s) }))))
	obj.DefineOwnProperty("info", dataProperty(newCallable(th, "info", write(func(s string) (int, error) { return fmt.Fprint(th.stdout, s) }))))
	obj.DefineOwnProperty("error", dataProperty(newCallable(th, "error", write(func(s string) (int, error) { return fmt.Fprint(th.stderr, s) }))))
	obj.DefineOwnProperty("warn", dataProperty(newCallable(th, "warn", write(func(s string) (int, error) { return fmt.Fprint(th.stderr, s) }))))
	return c
}

// consoleWriter adapts a single-string write func to io.Writer so fmt.Fprintln
// can append the trailing newline console.log's callers expect.
type consoleWriter struct{ write func(string) (int, error) }

func (w consoleWriter) Write(p []byte) (int, error) { return w.write(string(p)) }

func newMathObject(th *Thread) Value {
	m := th.Heap.Alloc(th, NewObject(th.ObjectProto, true))
	obj, _ := objectOf(m)
	obj.DefineOwnProperty("PI", dataProperty(NewNumber(math.Pi)))
	obj.DefineOwnProperty("E", dataProperty(NewNumber(math.E)))
	unary := func(name string, f func(float64) float64) {
		obj.DefineOwnProperty(name, dataProperty(newCallable(th, name, func(th *Thread, this Value, args []Value) (Value, error) {
			return NewNumber(f(ToFloat64(arg(args, 0)))), nil
		})))
	}
	unary("abs", math.Abs)
	unary("floor", math.Floor)
	unary("ceil", math.Ceil)
	unary("round", math.Round)
	unary("trunc", math.Trunc)
	unary("sqrt", math.Sqrt)
	unary("cbrt", math.Cbrt)
	unary("sign", func(x float64) float64 {
		switch {
		case x > 0:
			return 1
		case x < 0:
			return -1
		default:
			return x
		}
	})
	obj.DefineOwnProperty("pow", dataProperty(newCallable(th, "pow", func(th *Thread, this Value, args []Value) (Value, error) {
		return NewNumber(math.Pow(ToFloat64(arg(args, 0)), ToFloat64(arg(args, 1)))), nil
	})))
	obj.DefineOwnProperty("max", dataProperty(newCallable(th, "max", func(th *Thread, this Value, args []Value) (Value, error) {
		if len(args) == 0 {
			return NewNumber(math.Inf(-1)), nil
		}
		best := ToFloat64(args[0])
		for _, a := range args[1:] {
			if v := ToFloat64(a); v > best {
				best = v
			}
		}
		return NewNumber(best), nil
	})))
	obj.DefineOwnProperty("min", dataProperty(newCallable(th, "min", func(th *Thread, this Value, args []Value) (Value, error) {
		if len(args) == 0 {
			return NewNumber(math.Inf(1)), nil
		}
		best := ToFloat64(args[0])
		for _, a := range args[1:] {
			if v := ToFloat64(a); v < best {
				best = v
			}
		}
		return NewNumber(best), nil
	})))
	obj.DefineOwnProperty("random", dataProperty(newCallable(th, "random", func(th *Thread, this Value, args []Value) (Value, error) {
		return NewNumber(pseudoRandom()), nil
	})))
	return m
}

// pseudoRandom is a small xorshift generator, not cryptographically
// meaningful: the interpreter's step-budget determinism for everything
// else makes a package-level math/rand dependency unnecessary.
var randState uint64 = 0x9e3779b97f4a7c15

func pseudoRandom() float64 {
	randState ^= randState << 13
	randState ^= randState >> 7
	randState ^= randState << 17
	return float64(randState>>11) / float64(1<<53)
}

func newJSONObject(th *Thread) Value {
	j := th.Heap.Alloc(th, NewObject(th.ObjectProto, true))
	obj, _ := objectOf(j)
	obj.DefineOwnProperty("stringify", dataProperty(newCallable(th, "stringify", func(th *Thread, this Value, args []Value) (Value, error) {
		s, err := jsonStringify(th, arg(args, 0))
		if err != nil {
			return nil, err
		}
		return NewString(s), nil
	})))
	obj.DefineOwnProperty("parse", dataProperty(newCallable(th, "parse", func(th *Thread, this Value, args []Value) (Value, error) {
		return nil, fmt.Errorf("SyntaxError: JSON.parse is not supported")
	})))
	return j
}

func jsonStringify(th *Thread, v Value) (string, error) {
	switch v := v.(type) {
	case undefinedType:
		return "", nil
	case nullType:
		return "null", nil
	case Boolean:
		return v.String(), nil
	case SmallInt, Float:
		return v.String(), nil
	case String:
		return strconv.Quote(v.String()), nil
	case HeapRef:
		if arr, ok := v.Object().(*Array); ok {
			parts := make([]string, arr.Len())
			for i, e := range arr.Elements() {
				s, err := jsonStringify(th, e)
				if err != nil {
					return "", err
				}
				if s == "" {
					s = "null"
				}
				parts[i] = s
			}
			return "[" + strings.Join(parts, ",") + "]", nil
		}
		obj, ok := objectOf(v)
		if !ok {
			return "", nil
		}
		var parts []string
		for _, k := range obj.OwnEnumerableKeys() {
			pv, err := GetProperty(th, obj, v, k)
			if err != nil {
				return "", err
			}
			s, err := jsonStringify(th, pv)
			if err != nil {
				return "", err
			}
			if s == "" {
				continue
			}
			parts = append(parts, strconv.Quote(k)+":"+s)
		}
		return "{" + strings.Join(parts, ",") + "}", nil
	default:
		return "", nil
	}
}

func newObjectCtor(th *Thread) Value {
	ctor := NewNativeFunction(th.FunctionProto, "Object", func(th *Thread, this Value, args []Value) (Value, error) {
		if len(args) > 0 {
			if r, ok := args[0].(HeapRef); ok {
				return r, nil
			}
		}
		return th.Heap.Alloc(th, NewObject(th.ObjectProto, true)), nil
	})
	ctorRef := th.Heap.Alloc(th, ctor)
	ctor.DefineOwnProperty("prototype", &Property{Value: th.ObjectProto, Enumerable: false})
	ctor.DefineOwnProperty("keys", dataProperty(newCallable(th, "keys", func(th *Thread, this Value, args []Value) (Value, error) {
		obj, ok := objectOf(arg(args, 0))
		if !ok {
			return th.Heap.Alloc(th, NewArray(th.ArrayProto, nil)), nil
		}
		keys := obj.OwnEnumerableKeys()
		elems := make([]Value, len(keys))
		for i, k := range keys {
			elems[i] = NewString(k)
		}
		return th.Heap.Alloc(th, NewArray(th.ArrayProto, elems)), nil
	})))
	ctor.DefineOwnProperty("values", dataProperty(newCallable(th, "values", func(th *Thread, this Value, args []Value) (Value, error) {
		x := arg(args, 0)
		obj, ok := objectOf(x)
		if !ok {
			return th.Heap.Alloc(th, NewArray(th.ArrayProto, nil)), nil
		}
		keys := obj.OwnEnumerableKeys()
		elems := make([]Value, len(keys))
		for i, k := range keys {
			v, err := GetProperty(th, obj, x, k)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return th.Heap.Alloc(th, NewArray(th.ArrayProto, elems)), nil
	})))
	ctor.DefineOwnProperty("entries", dataProperty(newCallable(th, "entries", func(th *Thread, this Value, args []Value) (Value, error) {
		x := arg(args, 0)
		obj, ok := objectOf(x)
		if !ok {
			return th.Heap.Alloc(th, NewArray(th.ArrayProto, nil)), nil
		}
		keys := obj.OwnEnumerableKeys()
		elems := make([]Value, len(keys))
		for i, k := range keys {
			v, err := GetProperty(th, obj, x, k)
			if err != nil {
				return nil, err
			}
			elems[i] = th.Heap.Alloc(th, NewArray(th.ArrayProto, []Value{NewString(k), v}))
		}
		return th.Heap.Alloc(th, NewArray(th.ArrayProto, elems)), nil
	})))
	ctor.DefineOwnProperty("assign", dataProperty(newCallable(th, "assign", func(th *Thread, this Value, args []Value) (Value, error) {
		if len(args) == 0 {
			return Undefined, nil
		}
		target, ok := objectOf(args[0])
		if !ok {
			return args[0], nil
		}
		for _, src := range args[1:] {
			so, ok := objectOf(src)
			if !ok {
				continue
			}
			for _, k := range so.OwnEnumerableKeys() {
				v, err := GetProperty(th, so, src, k)
				if err != nil {
					return nil, err
				}
				if err := SetProperty(th, target, args[0], k, v); err != nil {
					return nil, err
				}
			}
		}
		return args[0], nil
	})))
	return ctorRef
}

func newArrayCtor(th *Thread) Value {
	ctor := NewNativeFunction(th.FunctionProto, "Array", func(th *Thread, this Value, args []Value) (Value, error) {
		if len(args) == 1 {
			if n, ok := args[0].(SmallInt); ok {
				elems := make([]Value, int(n))
				for i := range elems {
					elems[i] = Undefined
				}
				return th.Heap.Alloc(th, NewArray(th.ArrayProto, elems)), nil
			}
		}
		return th.Heap.Alloc(th, NewArray(th.ArrayProto, append([]Value(nil), args...))), nil
	})
	ctorRef := th.Heap.Alloc(th, ctor)
	ctor.DefineOwnProperty("prototype", &Property{Value: th.ArrayProto, Enumerable: false})
	ctor.DefineOwnProperty("isArray", dataProperty(newCallable(th, "isArray", func(th *Thread, this Value, args []Value) (Value, error) {
		r, ok := arg(args, 0).(HeapRef)
		if !ok {
			return False, nil
		}
		_, ok = r.Object().(*Array)
		return Boolean(ok), nil
	})))
	ctor.DefineOwnProperty("from", dataProperty(newCallable(th, "from", func(th *Thread, this Value, args []Value) (Value, error) {
		it, err := Iterate(th, arg(args, 0))
		if err != nil {
			return nil, err
		}
		defer it.Done()
		var elems []Value
		var v Value
		for it.Next(&v) {
			elems = append(elems, v)
		}
		return th.Heap.Alloc(th, NewArray(th.ArrayProto, elems)), nil
	})))
	return ctorRef
}

func newFunctionCtor(th *Thread) Value {
	ctor := NewNativeFunction(th.FunctionProto, "Function", func(th *Thread, this Value, args []Value) (Value, error) {
		return nil, fmt.Errorf("EvalError: the Function constructor is not supported")
	})
	ctorRef := th.Heap.Alloc(th, ctor)
	ctor.DefineOwnProperty("prototype", &Property{Value: th.FunctionProto, Enumerable: false})
	return ctorRef
}

func newPromiseCtor(th *Thread) Value {
	ctor := NewNativeFunction(th.FunctionProto, "Promise", func(th *Thread, this Value, args []Value) (Value, error) {
		pV := NewPromise(th)
		p := pV.(HeapRef).Object().(*Promise)
		executor, ok := arg(args, 0).(Callable)
		if !ok {
			return nil, fmt.Errorf("TypeError: Promise resolver is not a function")
		}
		resolveFn := newCallable(th, "resolve", func(th *Thread, this Value, args []Value) (Value, error) {
			p.resolve(th, arg(args, 0))
			return Undefined, nil
		})
		rejectFn := newCallable(th, "reject", func(th *Thread, this Value, args []Value) (Value, error) {
			p.reject(th, arg(args, 0))
			return Undefined, nil
		})
		if _, err := executor.CallInternal(th, Undefined, []Value{resolveFn, rejectFn}); err != nil {
			p.reject(th, errorValueOf(err))
		}
		return pV, nil
	})
	ctorRef := th.Heap.Alloc(th, ctor)
	ctor.DefineOwnProperty("prototype", &Property{Value: th.PromiseProto, Enumerable: false})
	ctor.DefineOwnProperty("resolve", dataProperty(newCallable(th, "resolve", func(th *Thread, this Value, args []Value) (Value, error) {
		pV := NewPromise(th)
		pV.(HeapRef).Object().(*Promise).resolve(th, arg(args, 0))
		return pV, nil
	})))
	ctor.DefineOwnProperty("reject", dataProperty(newCallable(th, "reject", func(th *Thread, this Value, args []Value) (Value, error) {
		pV := NewPromise(th)
		pV.(HeapRef).Object().(*Promise).reject(th, arg(args, 0))
		return pV, nil
	})))
	ctor.DefineOwnProperty("all", dataProperty(newCallable(th, "all", func(th *Thread, this Value, args []Value) (Value, error) {
		return promiseAll(th, arg(args, 0), false)
	})))
	ctor.DefineOwnProperty("allSettled", dataProperty(newCallable(th, "allSettled", func(th *Thread, this Value, args []Value) (Value, error) {
		return promiseAll(th, arg(args, 0), true)
	})))
	return ctorRef
}

// promiseAll implements Promise.all/Promise.allSettled against an iterable
// of promises/values: all rejects as soon as any input rejects (unless
// settled, which never rejects, recording {status,value|reason} per input
// per the allSettled shape).
func promiseAll(th *Thread, iterable Value, settled bool) (Value, error) {
	it, err := Iterate(th, iterable)
	if err != nil {
		return nil, err
	}
	defer it.Done()
	var inputs []Value
	var v Value
	for it.Next(&v) {
		inputs = append(inputs, v)
	}
	resultV := NewPromise(th)
	result := resultV.(HeapRef).Object().(*Promise)
	n := len(inputs)
	results := make([]Value, n)
	remaining := n
	if n == 0 {
		result.resolve(th, th.Heap.Alloc(th, NewArray(th.ArrayProto, nil)))
		return resultV, nil
	}
	for i, in := range inputs {
		i := i
		th.whenSettled(in, func(v Value, rejected bool) {
			if settled {
				status := "fulfilled"
				if rejected {
					status = "rejected"
				}
				entry := th.Heap.Alloc(th, NewObject(th.ObjectProto, true))
				eo, _ := objectOf(entry)
				eo.DefineOwnProperty("status", dataProperty(NewString(status)))
				if rejected {
					eo.DefineOwnProperty("reason", dataProperty(v))
				} else {
					eo.DefineOwnProperty("value", dataProperty(v))
				}
				results[i] = entry
			} else if rejected {
				result.reject(th, v)
				return
			} else {
				results[i] = v
			}
			remaining--
			if remaining == 0 && result.state == Pending {
				result.resolve(th, th.Heap.Alloc(th, NewArray(th.ArrayProto, results)))
			}
		})
	}
	return resultV, nil
}

func newErrorCtor(th *Thread, name string, proto HeapRef) Value {
	ctor := NewNativeFunction(th.FunctionProto, name, func(th *Thread, this Value, args []Value) (Value, error) {
		e := th.Heap.Alloc(th, NewObject(proto, true))
		eo, _ := objectOf(e)
		msg := ""
		if len(args) > 0 {
			msg = args[0].String()
		}
		eo.DefineOwnProperty("message", dataProperty(NewString(msg)))
		eo.DefineOwnProperty("name", dataProperty(NewString(name)))
		return e, nil
	})
	ctorRef := th.Heap.Alloc(th, ctor)
	ctor.DefineOwnProperty("prototype", &Property{Value: proto, Enumerable: false})
	protoObj, _ := objectOf(proto)
	protoObj.DefineOwnProperty("toString", dataProperty(newCallable(th, "toString", func(th *Thread, this Value, args []Value) (Value, error) {
		obj, ok := objectOf(this)
		if !ok {
			return NewString(name), nil
		}
		nameV, _ := GetProperty(th, obj, this, "name")
		msgV, _ := GetProperty(th, obj, this, "message")
		return NewString(fmt.Sprintf("%s: %s", nameV.String(), msgV.String())), nil
	})))
	return ctorRef
}

// populateArrayProto wires the subset of Array.prototype this runtime
// implements natively against *Array's own Elements()/Push()/At(), plus the
// ES2024 non-mutating siblings (toReversed/toSorted/with/findLast/
// findLastIndex) spec.md §9 calls for.
func populateArrayProto(th *Thread) {
	arrayOf := func(this Value) (*Array, bool) {
		r, ok := this.(HeapRef)
		if !ok {
			return nil, false
		}
		a, ok := r.Object().(*Array)
		return a, ok
	}
	method(th, th.ArrayProto, "push", func(th *Thread, this Value, args []Value) (Value, error) {
		a, ok := arrayOf(this)
		if !ok {
			return nil, fmt.Errorf("TypeError: Array.prototype.push called on non-array")
		}
		return SmallInt(a.Push(args...)), nil
	})
	method(th, th.ArrayProto, "pop", func(th *Thread, this Value, args []Value) (Value, error) {
		a, ok := arrayOf(this)
		if !ok {
			return nil, fmt.Errorf("TypeError: Array.prototype.pop called on non-array")
		}
		return a.Pop(), nil
	})
	method(th, th.ArrayProto, "join", func(th *Thread, this Value, args []Value) (Value, error) {
		a, ok := arrayOf(this)
		if !ok {
			return nil, fmt.Errorf("TypeError: Array.prototype.join called on non-array")
		}
		sep := ","
		if len(args) > 0 {
			sep = args[0].String()
		}
		parts := make([]string, a.Len())
		for i, e := range a.Elements() {
			if _, ok := e.(undefinedType); ok {
				continue
			}
			if _, ok := e.(nullType); ok {
				continue
			}
			parts[i] = e.String()
		}
		return NewString(strings.Join(parts, sep)), nil
	})
	method(th, th.ArrayProto, "slice", func(th *Thread, this Value, args []Value) (Value, error) {
		a, ok := arrayOf(this)
		if !ok {
			return nil, fmt.Errorf("TypeError: Array.prototype.slice called on non-array")
		}
		start, end := sliceBounds(a.Len(), args)
		return th.Heap.Alloc(th, NewArray(th.ArrayProto, append([]Value(nil), a.Elements()[start:end]...))), nil
	})
	method(th, th.ArrayProto, "indexOf", func(th *Thread, this Value, args []Value) (Value, error) {
		a, ok := arrayOf(this)
		if !ok {
			return nil, fmt.Errorf("TypeError: Array.prototype.indexOf called on non-array")
		}
		target := arg(args, 0)
		for i, e := range a.Elements() {
			if strictEquals(e, target) {
				return SmallInt(i), nil
			}
		}
		return SmallInt(-1), nil
	})
	method(th, th.ArrayProto, "includes", func(th *Thread, this Value, args []Value) (Value, error) {
		a, ok := arrayOf(this)
		if !ok {
			return nil, fmt.Errorf("TypeError: Array.prototype.includes called on non-array")
		}
		target := arg(args, 0)
		for _, e := range a.Elements() {
			if strictEquals(e, target) {
				return True, nil
			}
		}
		return False, nil
	})
	method(th, th.ArrayProto, "forEach", func(th *Thread, this Value, args []Value) (Value, error) {
		a, ok := arrayOf(this)
		if !ok {
			return nil, fmt.Errorf("TypeError: Array.prototype.forEach called on non-array")
		}
		cb, ok := arg(args, 0).(Callable)
		if !ok {
			return nil, fmt.Errorf("TypeError: callback is not a function")
		}
		for i, e := range a.Elements() {
			if _, err := cb.CallInternal(th, Undefined, []Value{e, SmallInt(i), this}); err != nil {
				return nil, err
			}
		}
		return Undefined, nil
	})
	method(th, th.ArrayProto, "map", func(th *Thread, this Value, args []Value) (Value, error) {
		a, ok := arrayOf(this)
		if !ok {
			return nil, fmt.Errorf("TypeError: Array.prototype.map called on non-array")
		}
		cb, ok := arg(args, 0).(Callable)
		if !ok {
			return nil, fmt.Errorf("TypeError: callback is not a function")
		}
		elems := a.Elements()
		out := make([]Value, len(elems))
		for i, e := range elems {
			v, err := cb.CallInternal(th, Undefined, []Value{e, SmallInt(i), this})
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return th.Heap.Alloc(th, NewArray(th.ArrayProto, out)), nil
	})
	method(th, th.ArrayProto, "filter", func(th *Thread, this Value, args []Value) (Value, error) {
		a, ok := arrayOf(this)
		if !ok {
			return nil, fmt.Errorf("TypeError: Array.prototype.filter called on non-array")
		}
		cb, ok := arg(args, 0).(Callable)
		if !ok {
			return nil, fmt.Errorf("TypeError: callback is not a function")
		}
		var out []Value
		for i, e := range a.Elements() {
			v, err := cb.CallInternal(th, Undefined, []Value{e, SmallInt(i), this})
			if err != nil {
				return nil, err
			}
			if v.Truth() {
				out = append(out, e)
			}
		}
		return th.Heap.Alloc(th, NewArray(th.ArrayProto, out)), nil
	})
	method(th, th.ArrayProto, "reduce", func(th *Thread, this Value, args []Value) (Value, error) {
		a, ok := arrayOf(this)
		if !ok {
			return nil, fmt.Errorf("TypeError: Array.prototype.reduce called on non-array")
		}
		cb, ok := arg(args, 0).(Callable)
		if !ok {
			return nil, fmt.Errorf("TypeError: callback is not a function")
		}
		elems := a.Elements()
		i := 0
		var acc Value
		if len(args) > 1 {
			acc = args[1]
		} else {
			if len(elems) == 0 {
				return nil, fmt.Errorf("TypeError: Reduce of empty array with no initial value")
			}
			acc = elems[0]
			i = 1
		}
		for ; i < len(elems); i++ {
			v, err := cb.CallInternal(th, Undefined, []Value{acc, elems[i], SmallInt(i), this})
			if err != nil {
				return nil, err
			}
			acc = v
		}
		return acc, nil
	})
	method(th, th.ArrayProto, "find", func(th *Thread, this Value, args []Value) (Value, error) {
		a, ok := arrayOf(this)
		if !ok {
			return nil, fmt.Errorf("TypeError: Array.prototype.find called on non-array")
		}
		cb, ok := arg(args, 0).(Callable)
		if !ok {
			return nil, fmt.Errorf("TypeError: callback is not a function")
		}
		for i, e := range a.Elements() {
			v, err := cb.CallInternal(th, Undefined, []Value{e, SmallInt(i), this})
			if err != nil {
				return nil, err
			}
			if v.Truth() {
				return e, nil
			}
		}
		return Undefined, nil
	})
	method(th, th.ArrayProto, "findLast", func(th *Thread, this Value, args []Value) (Value, error) {
		a, ok := arrayOf(this)
		if !ok {
			return nil, fmt.Errorf("TypeError: Array.prototype.findLast called on non-array")
		}
		cb, ok := arg(args, 0).(Callable)
		if !ok {
			return nil, fmt.Errorf("TypeError: callback is not a function")
		}
		elems := a.Elements()
		for i := len(elems) - 1; i >= 0; i-- {
			v, err := cb.CallInternal(th, Undefined, []Value{elems[i], SmallInt(i), this})
			if err != nil {
				return nil, err
			}
			if v.Truth() {
				return elems[i], nil
			}
		}
		return Undefined, nil
	})
	method(th, th.ArrayProto, "findLastIndex", func(th *Thread, this Value, args []Value) (Value, error) {
		a, ok := arrayOf(this)
		if !ok {
			return nil, fmt.Errorf("TypeError: Array.prototype.findLastIndex called on non-array")
		}
		cb, ok := arg(args, 0).(Callable)
		if !ok {
			return nil, fmt.Errorf("TypeError: callback is not a function")
		}
		elems := a.Elements()
		for i := len(elems) - 1; i >= 0; i-- {
			v, err := cb.CallInternal(th, Undefined, []Value{elems[i], SmallInt(i), this})
			if err != nil {
				return nil, err
			}
			if v.Truth() {
				return SmallInt(i), nil
			}
		}
		return SmallInt(-1), nil
	})
	method(th, th.ArrayProto, "with", func(th *Thread, this Value, args []Value) (Value, error) {
		a, ok := arrayOf(this)
		if !ok {
			return nil, fmt.Errorf("TypeError: Array.prototype.with called on non-array")
		}
		elems := append([]Value(nil), a.Elements()...)
		i := int(toInt32(arg(args, 0)))
		if i < 0 || i >= len(elems) {
			return nil, fmt.Errorf("RangeError: invalid index")
		}
		elems[i] = arg(args, 1)
		return th.Heap.Alloc(th, NewArray(th.ArrayProto, elems)), nil
	})
	method(th, th.ArrayProto, "toReversed", func(th *Thread, this Value, args []Value) (Value, error) {
		a, ok := arrayOf(this)
		if !ok {
			return nil, fmt.Errorf("TypeError: Array.prototype.toReversed called on non-array")
		}
		src := a.Elements()
		out := make([]Value, len(src))
		for i, e := range src {
			out[len(src)-1-i] = e
		}
		return th.Heap.Alloc(th, NewArray(th.ArrayProto, out)), nil
	})
	method(th, th.ArrayProto, "toSorted", func(th *Thread, this Value, args []Value) (Value, error) {
		a, ok := arrayOf(this)
		if !ok {
			return nil, fmt.Errorf("TypeError: Array.prototype.toSorted called on non-array")
		}
		out := append([]Value(nil), a.Elements()...)
		cmp, _ := arg(args, 0).(Callable)
		var sortErr error
		sort.SliceStable(out, func(i, j int) bool {
			if sortErr != nil {
				return false
			}
			if cmp != nil {
				v, err := cmp.CallInternal(th, Undefined, []Value{out[i], out[j]})
				if err != nil {
					sortErr = err
					return false
				}
				return ToFloat64(v) < 0
			}
			return out[i].String() < out[j].String()
		})
		if sortErr != nil {
			return nil, sortErr
		}
		return th.Heap.Alloc(th, NewArray(th.ArrayProto, out)), nil
	})
	method(th, th.ArrayProto, "toSpliced", func(th *Thread, this Value, args []Value) (Value, error) {
		a, ok := arrayOf(this)
		if !ok {
			return nil, fmt.Errorf("TypeError: Array.prototype.toSpliced called on non-array")
		}
		src := a.Elements()
		start, _ := sliceBounds(len(src), args[:min(1, len(args))])
		deleteCount := len(src) - start
		if len(args) > 1 {
			deleteCount = int(toInt32(args[1]))
			if deleteCount < 0 {
				deleteCount = 0
			}
			if start+deleteCount > len(src) {
				deleteCount = len(src) - start
			}
		}
		var out []Value
		out = append(out, src[:start]...)
		if len(args) > 2 {
			out = append(out, args[2:]...)
		}
		out = append(out, src[start+deleteCount:]...)
		return th.Heap.Alloc(th, NewArray(th.ArrayProto, out)), nil
	})
}

// sliceBounds resolves Array.prototype.slice/toSpliced-style (start, end)
// arguments, clamping negative indices against length like the language's
// own relative-index rule.
func sliceBounds(length int, args []Value) (int, int) {
	resolve := func(v Value, def int) int {
		if v == nil {
			return def
		}
		n := int(toInt32(v))
		if n < 0 {
			n += length
		}
		if n < 0 {
			n = 0
		}
		if n > length {
			n = length
		}
		return n
	}
	start := resolve(arg(args, 0), 0)
	end := length
	if len(args) > 1 {
		end = resolve(args[1], length)
	}
	if end < start {
		end = start
	}
	return start, end
}

// populateStringProto wires the subset of String.prototype this runtime
// implements natively; String values are UTF-16 code unit slices (value.go),
// so every method here operates through .String()/.Len() rather than a
// property map of its own.
func populateStringProto(th *Thread) {
	stringOf := func(this Value) (String, bool) {
		s, ok := this.(String)
		return s, ok
	}
	method(th, th.StringProto, "charAt", func(th *Thread, this Value, args []Value) (Value, error) {
		s, ok := stringOf(this)
		if !ok {
			return NewString(""), nil
		}
		i := int(toInt32(arg(args, 0)))
		if i < 0 || i >= s.Len() {
			return NewString(""), nil
		}
		return s[i : i+1], nil
	})
	method(th, th.StringProto, "slice", func(th *Thread, this Value, args []Value) (Value, error) {
		s, ok := stringOf(this)
		if !ok {
			return NewString(""), nil
		}
		start, end := sliceBounds(s.Len(), args)
		return s[start:end], nil
	})
	method(th, th.StringProto, "toUpperCase", func(th *Thread, this Value, args []Value) (Value, error) {
		s, ok := stringOf(this)
		if !ok {
			return NewString(""), nil
		}
		return NewString(strings.ToUpper(s.String())), nil
	})
	method(th, th.StringProto, "toLowerCase", func(th *Thread, this Value, args []Value) (Value, error) {
		s, ok := stringOf(this)
		if !ok {
			return NewString(""), nil
		}
		return NewString(strings.ToLower(s.String())), nil
	})
	method(th, th.StringProto, "trim", func(th *Thread, this Value, args []Value) (Value, error) {
		s, ok := stringOf(this)
		if !ok {
			return NewString(""), nil
		}
		return NewString(strings.TrimSpace(s.String())), nil
	})
	method(th, th.StringProto, "indexOf", func(th *Thread, this Value, args []Value) (Value, error) {
		s, ok := stringOf(this)
		if !ok {
			return SmallInt(-1), nil
		}
		return SmallInt(strings.Index(s.String(), arg(args, 0).String())), nil
	})
	method(th, th.StringProto, "includes", func(th *Thread, this Value, args []Value) (Value, error) {
		s, ok := stringOf(this)
		if !ok {
			return False, nil
		}
		return Boolean(strings.Contains(s.String(), arg(args, 0).String())), nil
	})
	method(th, th.StringProto, "split", func(th *Thread, this Value, args []Value) (Value, error) {
		s, ok := stringOf(this)
		if !ok {
			return th.Heap.Alloc(th, NewArray(th.ArrayProto, nil)), nil
		}
		sep := arg(args, 0)
		var parts []string
		if _, ok := sep.(undefinedType); ok {
			parts = []string{s.String()}
		} else {
			parts = strings.Split(s.String(), sep.String())
		}
		elems := make([]Value, len(parts))
		for i, p := range parts {
			elems[i] = NewString(p)
		}
		return th.Heap.Alloc(th, NewArray(th.ArrayProto, elems)), nil
	})
	method(th, th.StringProto, "repeat", func(th *Thread, this Value, args []Value) (Value, error) {
		s, ok := stringOf(this)
		if !ok {
			return NewString(""), nil
		}
		n := int(toInt32(arg(args, 0)))
		if n < 0 {
			return nil, fmt.Errorf("RangeError: invalid count value")
		}
		return NewString(strings.Repeat(s.String(), n)), nil
	})
	method(th, th.StringProto, "toString", func(th *Thread, this Value, args []Value) (Value, error) {
		return this, nil
	})
}

func populatePromiseProto(th *Thread) {
	promiseOf := func(this Value) (*Promise, bool) {
		r, ok := this.(HeapRef)
		if !ok {
			return nil, false
		}
		p, ok := r.Object().(*Promise)
		return p, ok
	}
	method(th, th.PromiseProto, "then", func(th *Thread, this Value, args []Value) (Value, error) {
		p, ok := promiseOf(this)
		if !ok {
			return nil, fmt.Errorf("TypeError: Promise.prototype.then called on non-promise")
		}
		return p.then(th, arg(args, 0), arg(args, 1)), nil
	})
	method(th, th.PromiseProto, "catch", func(th *Thread, this Value, args []Value) (Value, error) {
		p, ok := promiseOf(this)
		if !ok {
			return nil, fmt.Errorf("TypeError: Promise.prototype.catch called on non-promise")
		}
		return p.then(th, Undefined, arg(args, 0)), nil
	})
	method(th, th.PromiseProto, "finally", func(th *Thread, this Value, args []Value) (Value, error) {
		p, ok := promiseOf(this)
		if !ok {
			return nil, fmt.Errorf("TypeError: Promise.prototype.finally called on non-promise")
		}
		cb, _ := arg(args, 0).(Callable)
		wrap := func(passthrough bool) NativeFunc {
			return func(th *Thread, this Value, args []Value) (Value, error) {
				if cb != nil {
					if _, err := cb.CallInternal(th, Undefined, nil); err != nil {
						return nil, err
					}
				}
				if passthrough {
					return arg(args, 0), nil
				}
				return nil, throwValue(arg(args, 0))
			}
		}
		onFulfilled := newCallable(th, "", wrap(true))
		onRejected := newCallable(th, "", wrap(false))
		return p.then(th, onFulfilled, onRejected), nil
	})
}
