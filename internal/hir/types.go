package hir

import (
	"fmt"
	"strings"
)

// Type is the declared data type of a schedule variable. Only the class of
// the type matters here: it decides which sorts the variable takes part in.
type Type uint8

const (
	TypeUnknown Type = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeBuffer
	TypeFence
	TypeEncoder
	TypeEvent
)

func (t Type) String() string {
	switch t {
	case TypeInt:
		return "i64"
	case TypeFloat:
		return "f64"
	case TypeBool:
		return "bool"
	case TypeBuffer:
		return "buffer"
	case TypeFence:
		return "fence"
	case TypeEncoder:
		return "encoder"
	case TypeEvent:
		return "event"
	default:
		return "_"
	}
}

// ParseType accepts the type spellings of the input format.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "_":
		return TypeUnknown, nil
	case "i32", "i64", "u32", "u64", "int":
		return TypeInt, nil
	case "f32", "f64", "float":
		return TypeFloat, nil
	case "bool":
		return TypeBool, nil
	case "buffer", "ref":
		return TypeBuffer, nil
	case "fence":
		return TypeFence, nil
	case "encoder":
		return TypeEncoder, nil
	case "event":
		return TypeEvent, nil
	default:
		return TypeUnknown, fmt.Errorf("unknown type %q", s)
	}
}

// Timeline reports whether the type lives only in the timeline sort.
func (t Type) Timeline() bool {
	return t == TypeFence || t == TypeEncoder || t == TypeEvent
}

// InSort reports whether a variable of type t takes part in sort s.
// Untyped variables take part everywhere.
func (t Type) InSort(s Sort) bool {
	if t == TypeUnknown {
		return true
	}
	if s == SortTimeline {
		return t.Timeline()
	}
	return !t.Timeline()
}
