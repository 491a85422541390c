package request

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/juju/errors"
)

// Kind enumerates the value shapes a property override can take on the wire.
type Kind byte

const (
	KindInvalid Kind = iota
	KindBool
	KindString
	KindInt
	KindUint
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	}
	return fmt.Sprintf("Kind(%d)", byte(k))
}

// Value is a tagged, wire-representable scalar. The zero Value is invalid.
type Value struct {
	kind Kind
	b    bool
	s    string
	i    int64
	u    uint64
	f    float64
}

func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

func StringValue(s string) Value { return Value{kind: KindString, s: s} }

func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }

func UintValue(u uint64) Value { return Value{kind: KindUint, u: u} }

// FloatValue rejects NaN and infinities, which have no JSON representation.
func FloatValue(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, errors.NotValidf("non-finite float %v", f)
	}
	return Value{kind: KindFloat, f: f}, nil
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) Bool() bool { return v.b }

func (v Value) Str() string { return v.s }

func (v Value) Int() int64 { return v.i }

func (v Value) Uint() uint64 { return v.u }

func (v Value) Float() float64 { return v.f }

// Interface returns the value as the Go type encoding/json would produce for it.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindUint:
		return v.u
	case KindFloat:
		return v.f
	}
	return nil
}

func (v Value) String() string {
	if v.kind == KindString {
		return fmt.Sprintf("%q", v.s)
	}
	return fmt.Sprint(v.Interface())
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindInvalid {
		return nil, errors.NotValidf("zero Value")
	}
	return json.Marshal(v.Interface())
}
