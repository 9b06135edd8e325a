package machine

import (
	"fmt"

	"github.com/dolthub/swiss"
)

// Property is a single property-map entry: either a data property (Value,
// Writable) or an accessor property (Get/Set), per the language's property
// descriptor model. Enumerable and Configurable apply to both kinds.
type Property struct {
	Value      Value
	Get, Set   Value // Callable, or nil; set only when Accessor is true
	Accessor   bool
	Writable   bool
	Enumerable bool
	Configurable bool
}

// Object is the property-map object model every plain object, array,
// function and error value is built from: an O(1) string-keyed index
// (dolthub/swiss, as used by the teacher's Map for the same purpose) paired
// with an explicit insertion-order slice, since a hash map alone cannot
// satisfy the language's insertion-order enumeration requirement. A
// prototype link completes the chain that Get/Has walk.
type Object struct {
	class      string // diagnostic class tag: "Object", "Array", "Error", ...
	props      *swiss.Map[string, *Property]
	order      []string
	proto      HeapRef
	hasProto   bool
	extensible bool
}

var (
	_ HeapObject = (*Object)(nil)
)

// NewObject returns an empty, extensible object with the given prototype
// (pass hasProto=false for an object whose prototype is null).
func NewObject(proto HeapRef, hasProto bool) *Object {
	return &Object{
		class:      "Object",
		props:      swiss.NewMap[string, *Property](8),
		proto:      proto,
		hasProto:   hasProto,
		extensible: true,
	}
}

func (o *Object) String() string { return fmt.Sprintf("[object %s]", o.class) }
func (o *Object) Type() string   { return "object" }

func (o *Object) ReferencedCells() []HeapRef {
	var refs []HeapRef
	if o.hasProto {
		refs = append(refs, o.proto)
	}
	for _, k := range o.order {
		p, _ := o.props.Get(k)
		if p == nil {
			continue
		}
		if p.Accessor {
			if r, ok := p.Get.(HeapRef); ok {
				refs = append(refs, r)
			}
			if r, ok := p.Set.(HeapRef); ok {
				refs = append(refs, r)
			}
		} else if r, ok := p.Value.(HeapRef); ok {
			refs = append(refs, r)
		}
	}
	return refs
}

// OwnProperty returns the object's own (non-inherited) property, if any.
func (o *Object) OwnProperty(key string) (*Property, bool) {
	p, ok := o.props.Get(key)
	return p, ok
}

// DefineOwnProperty installs desc as key's own property, appending to the
// insertion order only the first time key is defined.
func (o *Object) DefineOwnProperty(key string, desc *Property) {
	if _, exists := o.props.Get(key); !exists {
		o.order = append(o.order, key)
	}
	o.props.Put(key, desc)
}

// HasOwn reports whether key is an own property of o.
func (o *Object) HasOwn(key string) bool {
	_, ok := o.props.Get(key)
	return ok
}

// DeleteOwn removes key from o, honoring Configurable. Returns false (a
// TypeError in strict contexts) if the property exists and is
// non-configurable.
func (o *Object) DeleteOwn(key string) bool {
	p, ok := o.props.Get(key)
	if !ok {
		return true
	}
	if !p.Configurable {
		return false
	}
	o.props.Delete(key)
	for i, k := range o.order {
		if k == key {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	return true
}

// OwnKeys returns the object's own enumerable-and-non-enumerable keys in
// insertion order, per [[OwnPropertyKeys]].
func (o *Object) OwnKeys() []string {
	return append([]string(nil), o.order...)
}

// OwnEnumerableKeys returns the subset of OwnKeys whose property is
// enumerable, the set walked by for-in and Object.keys.
func (o *Object) OwnEnumerableKeys() []string {
	var keys []string
	for _, k := range o.order {
		if p, ok := o.props.Get(k); ok && p.Enumerable {
			keys = append(keys, k)
		}
	}
	return keys
}

func (o *Object) Prototype() (HeapRef, bool) { return o.proto, o.hasProto }

func (o *Object) SetPrototype(r HeapRef) {
	o.proto = r
	o.hasProto = true
}

// dataProperty is the descriptor most object literal and assignment-driven
// property creation uses: a plain, fully-permissive data property.
func dataProperty(v Value) *Property {
	return &Property{Value: v, Writable: true, Enumerable: true, Configurable: true}
}

// GetProperty implements [[Get]]: walk the prototype chain for key,
// invoking an accessor's getter (bound to `this`, the original receiver)
// if found, else returning the data value, else Undefined if key is
// nowhere in the chain.
func GetProperty(th *Thread, o *Object, this Value, key string) (Value, error) {
	cur := o
	for {
		if p, ok := cur.OwnProperty(key); ok {
			if p.Accessor {
				if p.Get == nil {
					return Undefined, nil
				}
				fn, ok := p.Get.(Callable)
				if !ok {
					return Undefined, nil
				}
				return fn.CallInternal(th, this, nil)
			}
			return p.Value, nil
		}
		if !cur.hasProto {
			return Undefined, nil
		}
		cur = cur.proto.Object().(*Object)
	}
}

// SetProperty implements [[Set]]: walk the chain for an accessor's setter
// or a non-writable data property; otherwise define/overwrite an own data
// property on o itself (prototype data properties are never mutated by an
// assignment through an instance, per the language's shadowing rule).
func SetProperty(th *Thread, o *Object, this Value, key string, v Value) error {
	for cur := o; ; {
		if p, ok := cur.OwnProperty(key); ok {
			if p.Accessor {
				if p.Set == nil {
					return nil // no setter: silently ignored outside strict mode
				}
				fn, ok := p.Set.(Callable)
				if !ok {
					return nil
				}
				_, err := fn.CallInternal(th, this, []Value{v})
				return err
			}
			if cur == o {
				if !p.Writable {
					return fmt.Errorf("TypeError: cannot assign to read only property %q", key)
				}
				p.Value = v
				return nil
			}
			if !p.Writable {
				return fmt.Errorf("TypeError: cannot assign to read only property %q", key)
			}
			break
		}
		if !cur.hasProto {
			break
		}
		cur = cur.proto.Object().(*Object)
	}
	if !o.extensible {
		return fmt.Errorf("TypeError: cannot add property %q, object is not extensible", key)
	}
	o.DefineOwnProperty(key, dataProperty(v))
	return nil
}

// HasProperty implements [[HasProperty]] (the `in` operator): true if key
// is found anywhere in the prototype chain.
func HasProperty(o *Object, key string) bool {
	for cur := o; ; {
		if cur.HasOwn(key) {
			return true
		}
		if !cur.hasProto {
			return false
		}
		cur = cur.proto.Object().(*Object)
	}
}

// objectOf extracts the *Object embedded in v's concrete heap kind, if v is
// a HeapRef to one of Object/Array/Function/Promise. GET_PROP, SET_PROP and
// the iteration protocol all need this: the property map lives on the
// embedded Object regardless of which of those kinds actually holds it.
func objectOf(v Value) (*Object, bool) {
	r, ok := v.(HeapRef)
	if !ok {
		return nil, false
	}
	switch o := r.Object().(type) {
	case *Object:
		return o, true
	case *Array:
		return &o.Object, true
	case *Function:
		return &o.Object, true
	case *Promise:
		return &o.Object, true
	default:
		return nil, false
	}
}
