// Package record defines YourDB's scalar value model and the record/schema
// types that the storage engine validates against. The concrete
// serialization of a Value onto disk is delegated to internal/codec; this
// package only fixes the in-memory shape and the small set of recognized
// scalar kinds.
package record

import (
	"fmt"
)

// Kind identifies the declared type of a schema field.
type Kind uint8

const (
	// KindInvalid is the zero value and never a valid declared kind.
	KindInvalid Kind = iota
	KindInt
	KindFloat
	KindString
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "invalid"
	}
}

// ParseKind maps the original Python type-name strings ("int", "float",
// "str", "bool") used by the source project onto a Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "int":
		return KindInt, true
	case "float":
		return KindFloat, true
	case "str", "string":
		return KindString, true
	case "bool":
		return KindBool, true
	default:
		return KindInvalid, false
	}
}

// Value is a tagged scalar. Integer and floating-point are distinct kinds;
// there is no implicit widening between them (spec.md §4.1: "Integer/float
// interchange is rejected").
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    bool
}

func IntValue(i int64) Value      { return Value{kind: KindInt, i: i} }
func FloatValue(f float64) Value  { return Value{kind: KindFloat, f: f} }
func StringValue(s string) Value  { return Value{kind: KindString, s: s} }
func BoolValue(b bool) Value      { return Value{kind: KindBool, b: b} }

// Kind reports the value's tag. A zero Value has KindInvalid.
func (v Value) Kind() Kind { return v.kind }

func (v Value) Int() (int64, bool)     { return v.i, v.kind == KindInt }
func (v Value) Float() (float64, bool) { return v.f, v.kind == KindFloat }
func (v Value) String() (string, bool) { return v.s, v.kind == KindString }
func (v Value) Bool() (bool, bool)     { return v.b, v.kind == KindBool }

// Raw returns the value as an untyped interface{}, for callers (the codec,
// diagnostics) that want to print or hash a Value without a type switch.
func (v Value) Raw() interface{} {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// Equal reports whether two values have the same kind and content.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f
	case KindString:
		return v.s == other.s
	case KindBool:
		return v.b == other.b
	default:
		return true
	}
}

// Compare orders two values of the same kind: negative if v < other, zero if
// equal, positive if v > other. It errors on a kind mismatch — the filter
// evaluator and the index's ordered buckets never compare across kinds.
func (v Value) Compare(other Value) (int, error) {
	if v.kind != other.kind {
		return 0, fmt.Errorf("record: cannot compare %s to %s", v.kind, other.kind)
	}
	switch v.kind {
	case KindInt:
		switch {
		case v.i < other.i:
			return -1, nil
		case v.i > other.i:
			return 1, nil
		default:
			return 0, nil
		}
	case KindFloat:
		switch {
		case v.f < other.f:
			return -1, nil
		case v.f > other.f:
			return 1, nil
		default:
			return 0, nil
		}
	case KindString:
		switch {
		case v.s < other.s:
			return -1, nil
		case v.s > other.s:
			return 1, nil
		default:
			return 0, nil
		}
	case KindBool:
		switch {
		case v.b == other.b:
			return 0, nil
		case !v.b && other.b:
			return -1, nil
		default:
			return 1, nil
		}
	default:
		return 0, fmt.Errorf("record: cannot compare invalid values")
	}
}

// CanonicalKey returns a string uniquely identifying the value, suitable as
// a map or btree key. Different kinds never collide because the encoding is
// kind-prefixed.
func (v Value) CanonicalKey() string {
	switch v.kind {
	case KindInt:
		return fmt.Sprintf("i:%d", v.i)
	case KindFloat:
		return fmt.Sprintf("f:%g", v.f)
	case KindString:
		return fmt.Sprintf("s:%s", v.s)
	case KindBool:
		return fmt.Sprintf("b:%t", v.b)
	default:
		return "n:"
	}
}
