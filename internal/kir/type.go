// Package kir defines the machine-level IR the lowering layer emits: interned
// machine types, SSA-ish values, ops with nested regions, and a deterministic
// textual form. Ops print with a "kir." prefix and types with a "!" sigil.
package kir

import "fmt"

// TypeID uniquely identifies a machine type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates all machine type kinds.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindVoid
	KindBool
	KindInt
	KindFloat
	KindPointer
	KindArray
	KindRecord
	KindFn
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindVoid:
		return "void"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindPointer:
		return "pointer"
	case KindArray:
		return "array"
	case KindRecord:
		return "record"
	case KindFn:
		return "fn"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Type is a compact descriptor for one machine type. Integers may take any
// bit width; aggregate coercion mints widths like 24 or 64 on demand. Record
// and function kinds keep their variable-size parts in side tables.
type Type struct {
	Kind    Kind
	Elem    TypeID // pointee (pointer) / element (array)
	Count   uint32 // array length
	Width   uint16 // integer/float bit width
	Signed  bool
	Payload uint32 // record / fn side-table slot
}

// MakeInt describes an integer of the given bit width and signedness.
func MakeInt(width uint16, signed bool) Type {
	return Type{Kind: KindInt, Width: width, Signed: signed}
}

// MakeFloat describes a floating-point type.
func MakeFloat(width uint16) Type {
	return Type{Kind: KindFloat, Width: width}
}

// MakePointer describes a pointer to elem.
func MakePointer(elem TypeID) Type {
	return Type{Kind: KindPointer, Elem: elem}
}

// MakeArray describes a fixed-length array of elem.
func MakeArray(elem TypeID, count uint32) Type {
	return Type{Kind: KindArray, Elem: elem, Count: count}
}

// IsScalar reports whether values of the type pass through registers
// directly.
func (t Type) IsScalar() bool {
	switch t.Kind {
	case KindBool, KindInt, KindFloat, KindPointer:
		return true
	default:
		return false
	}
}
