// Package jsonval implements a lossless, tagged-variant JSON value
// model with a parser and a pretty-printer. Unlike encoding/json it
// keeps integers and reals distinct at the type level, which the
// catalogue's stat replies depend on (route_length is an int,
// curvature is a real, even when its fractional part is zero).
package jsonval

import "fmt"

// Kind identifies which alternative of the JSON grammar a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindReal
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindReal:
		return "real"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is a tagged union over the JSON grammar: null, bool, int,
// real, string, array, object.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	arr  []Value
	obj  *Object
}

// Null returns the JSON null value.
func Null() Value { return Value{kind: KindNull} }

// Bool wraps a bool value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Real wraps a floating-point value.
func Real(f float64) Value { return Value{kind: KindReal, f: f} }

// String wraps a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array wraps a slice of Values.
func Array(vs []Value) Value { return Value{kind: KindArray, arr: vs} }

// FromObject wraps an *Object.
func FromObject(o *Object) Value { return Value{kind: KindObject, obj: o} }

// Kind reports which grammar alternative v holds.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns v's boolean value or a TypeMismatch.
func (v Value) Bool() (bool, error) {
	if v.kind != KindBool {
		return false, &TypeMismatch{Want: KindBool, Got: v.kind}
	}
	return v.b, nil
}

// Int returns v's integer value or a TypeMismatch.
func (v Value) Int() (int64, error) {
	if v.kind != KindInt {
		return 0, &TypeMismatch{Want: KindInt, Got: v.kind}
	}
	return v.i, nil
}

// Real returns v's value as a float64, accepting both KindReal and
// KindInt (an int is a valid real), mirroring how the original
// consumes numeric fields without caring which alternative produced
// them.
func (v Value) Real() (float64, error) {
	switch v.kind {
	case KindReal:
		return v.f, nil
	case KindInt:
		return float64(v.i), nil
	default:
		return 0, &TypeMismatch{Want: KindReal, Got: v.kind}
	}
}

// Str returns v's string value or a TypeMismatch.
func (v Value) Str() (string, error) {
	if v.kind != KindString {
		return "", &TypeMismatch{Want: KindString, Got: v.kind}
	}
	return v.s, nil
}

// Array returns v's element slice or a TypeMismatch.
func (v Value) Array() ([]Value, error) {
	if v.kind != KindArray {
		return nil, &TypeMismatch{Want: KindArray, Got: v.kind}
	}
	return v.arr, nil
}

// Object returns v's *Object or a TypeMismatch.
func (v Value) Object() (*Object, error) {
	if v.kind != KindObject {
		return nil, &TypeMismatch{Want: KindObject, Got: v.kind}
	}
	return v.obj, nil
}
