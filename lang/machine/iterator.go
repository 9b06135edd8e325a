package machine

import "fmt"

// Iterator drives both the values-iteration opcodes (ITERPUSH/ITERJMP,
// for-of and spread) and FOR_IN_PUSH's own-key walk: Next reports one more
// element and reports whether the sequence is exhausted; Done releases any
// resources the iterator holds (nothing, for the kinds below, but script
// iterables may run arbitrary cleanup through it in future work).
type Iterator interface {
	Next(p *Value) bool
	Done()
}

// arrayIterator walks an Array's elements by index, re-reading At each
// step so a mutation to the array during the loop body is observed, per
// the language's live-indexing iteration semantics for arrays.
type arrayIterator struct {
	arr *Array
	i   int
}

func (it *arrayIterator) Next(p *Value) bool {
	if it.i >= it.arr.Len() {
		return false
	}
	*p = it.arr.At(it.i)
	it.i++
	return true
}
func (it *arrayIterator) Done() {}

// stringIterator walks a String's UTF-16 code units, merging a valid
// surrogate pair into one element, matching for-of's code-point iteration
// of strings rather than raw code-unit iteration.
type stringIterator struct {
	s String
	i  int
}

func (it *stringIterator) Next(p *Value) bool {
	if it.i >= len(it.s) {
		return false
	}
	u := it.s[it.i]
	if u >= 0xD800 && u <= 0xDBFF && it.i+1 < len(it.s) && it.s[it.i+1] >= 0xDC00 && it.s[it.i+1] <= 0xDFFF {
		*p = it.s[it.i : it.i+2]
		it.i += 2
	} else {
		*p = it.s[it.i : it.i+1]
		it.i++
	}
	return true
}
func (it *stringIterator) Done() {}

// keyIterator drives for-in: every own-or-inherited enumerable string key,
// walking the prototype chain, each key yielded only once even when
// shadowed further up the chain.
type keyIterator struct {
	keys []string
	i    int
}

func newKeyIterator(o *Object) *keyIterator {
	if o == nil {
		return &keyIterator{}
	}
	seen := map[string]bool{}
	var keys []string
	cur := o
	for {
		for _, k := range cur.OwnEnumerableKeys() {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
		if !cur.hasProto {
			break
		}
		next, ok := objectOf(cur.proto)
		if !ok {
			break
		}
		cur = next
	}
	return &keyIterator{keys: keys}
}

func (it *keyIterator) Next(p *Value) bool {
	if it.i >= len(it.keys) {
		return false
	}
	*p = NewString(it.keys[it.i])
	it.i++
	return true
}
func (it *keyIterator) Done() {}

// protocolIterator drives for-of/spread over a user-defined iterable: an
// object exposing an "iterator" method that returns an iterator object
// with a "next" method yielding {value, done} result objects (spec.md
// §4.K's Iteration Protocol).
type protocolIterator struct {
	th      *Thread
	iterObj Value
	nextFn  Callable
}

func newProtocolIterator(th *Thread, v Value) (*protocolIterator, error) {
	obj, ok := objectOf(v)
	if !ok {
		return nil, fmt.Errorf("TypeError: %s is not iterable", v.Type())
	}
	iterFnV, err := GetProperty(th, obj, v, "iterator")
	if err != nil {
		return nil, err
	}
	iterFn, ok := iterFnV.(Callable)
	if !ok {
		return nil, fmt.Errorf("TypeError: %s is not iterable", v.Type())
	}
	iterObj, err := iterFn.CallInternal(th, v, nil)
	if err != nil {
		return nil, err
	}
	iterObjObj, ok := objectOf(iterObj)
	if !ok {
		return nil, fmt.Errorf("TypeError: iterator() did not return an object")
	}
	nextV, err := GetProperty(th, iterObjObj, iterObj, "next")
	if err != nil {
		return nil, err
	}
	nextFn, ok := nextV.(Callable)
	if !ok {
		return nil, fmt.Errorf("TypeError: iterator has no next method")
	}
	return &protocolIterator{th: th, iterObj: iterObj, nextFn: nextFn}, nil
}

func (it *protocolIterator) Next(p *Value) bool {
	res, err := it.nextFn.CallInternal(it.th, it.iterObj, nil)
	if err != nil {
		it.th.pendingIterErr = err
		return false
	}
	resObj, ok := objectOf(res)
	if !ok {
		it.th.pendingIterErr = fmt.Errorf("TypeError: iterator result is not an object")
		return false
	}
	done, err := GetProperty(it.th, resObj, res, "done")
	if err != nil {
		it.th.pendingIterErr = err
		return false
	}
	if done.Truth() {
		return false
	}
	val, err := GetProperty(it.th, resObj, res, "value")
	if err != nil {
		it.th.pendingIterErr = err
		return false
	}
	*p = val
	return true
}
func (it *protocolIterator) Done() {}

// Iterate builds the Iterator for v, dispatching on its concrete kind:
// String and Array have direct native iterators; any other heap object is
// assumed to implement the Iteration Protocol.
func Iterate(th *Thread, v Value) (Iterator, error) {
	if s, ok := v.(String); ok {
		return &stringIterator{s: s}, nil
	}
	r, ok := v.(HeapRef)
	if !ok {
		return nil, fmt.Errorf("TypeError: %s is not iterable", v.Type())
	}
	if arr, ok := r.Object().(*Array); ok {
		return &arrayIterator{arr: arr}, nil
	}
	return newProtocolIterator(th, v)
}
