package types

import "fmt"

// TypeID uniquely identifies a canonical source type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates all supported kinds of source types.
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
	KindFnProto
	KindFnNoProto
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
	case KindFnProto:
		return "fn_proto"
	case KindFnNoProto:
		return "fn_noproto"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Width captures the precision of integers and floats, in bits.
type Width uint8

const (
	Width8  Width = 8
	Width16 Width = 16
	Width32 Width = 32
	Width64 Width = 64
)

// Quals is the cv-qualifier bitset on a canonical type. Address-space
// qualification is tracked separately because the two behave differently
// at ABI boundaries: cv drops off implicit receiver types, address space
// does not.
type Quals uint8

const (
	QualConst Quals = 1 << iota
	QualVolatile
	QualRestrict
)

// Has reports whether all bits of f are set.
func (q Quals) Has(f Quals) bool {
	return q&f == f
}

// AddrSpace identifies a target address space; zero is the default space.
type AddrSpace uint8

// AddrSpaceDefault is the generic address space.
const AddrSpaceDefault AddrSpace = 0

// Type is a compact descriptor for one canonical source type. Record and
// function kinds keep their variable-size parts in interner side tables,
// addressed through Payload.
type Type struct {
	Kind      Kind
	Elem      TypeID // pointee (pointer) / element (array)
	Count     uint32 // array length
	Width     Width  // numeric primitives
	Signed    bool   // integers
	Quals     Quals
	AddrSpace AddrSpace
	Payload   uint32 // record / function side-table slot
}

// Descriptor helpers ---------------------------------------------------------

// MakeInt describes an integer of the given width and signedness.
func MakeInt(width Width, signed bool) Type {
	return Type{Kind: KindInt, Width: width, Signed: signed}
}

// MakeFloat describes a floating-point type.
func MakeFloat(width Width) Type {
	return Type{Kind: KindFloat, Width: width}
}

// MakePointer describes a pointer to elem in the default address space.
func MakePointer(elem TypeID) Type {
	return Type{Kind: KindPointer, Elem: elem}
}

// MakePointerAS describes a pointer to elem in the given address space.
func MakePointerAS(elem TypeID, space AddrSpace) Type {
	return Type{Kind: KindPointer, Elem: elem, AddrSpace: space}
}

// MakeArray describes a fixed-length array of elem.
func MakeArray(elem TypeID, count uint32) Type {
	return Type{Kind: KindArray, Elem: elem, Count: count}
}

// IsScalar reports whether the descriptor passes through registers directly:
// bool, integer, float, or pointer.
func (t Type) IsScalar() bool {
	switch t.Kind {
	case KindBool, KindInt, KindFloat, KindPointer:
		return true
	default:
		return false
	}
}

// IsFn reports whether the descriptor is a function type, prototyped or not.
func (t Type) IsFn() bool {
	return t.Kind == KindFnProto || t.Kind == KindFnNoProto
}
