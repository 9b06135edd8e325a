package machine

// ThrownValue wraps a language Value thrown by a THROW instruction (or by
// Promise rejection) so it can travel through Go's error-returning call
// chain and still be recovered verbatim by GET_CAUGHT, instead of being
// flattened to a string. A plain Go error (a TypeError raised internally by
// GetProperty, SetProperty, an arithmetic coercion, and so on) has no
// Value to recover, so errorValueOf synthesizes a String from its message.
type ThrownValue struct{ V Value }

func (t *ThrownValue) Error() string { return t.V.String() }

// throwValue wraps v as the error carried by an in-flight THROW.
func throwValue(v Value) error { return &ThrownValue{V: v} }

// errorValueOf recovers the language Value a failing operation should
// expose to a catch block: the original thrown value, or a String built
// from a plain Go error's message.
func errorValueOf(err error) Value {
	if err == nil {
		return Undefined
	}
	if tv, ok := err.(*ThrownValue); ok {
		return tv.V
	}
	return NewString(err.Error())
}
