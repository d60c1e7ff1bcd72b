package kir

import (
	"fmt"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for common machine primitives.
type Builtins struct {
	Invalid TypeID
	Void    TypeID
	Bool    TypeID
	S8      TypeID
	U8      TypeID
	S16     TypeID
	U16     TypeID
	S32     TypeID
	U32     TypeID
	S64     TypeID
	U64     TypeID
	F32     TypeID
	F64     TypeID
	VoidPtr TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors.
// Records are nominal: every RegisterRecord call mints a fresh TypeID.
type Interner struct {
	types    []Type
	index    map[typeKey]TypeID
	builtins Builtins
	records  []RecordInfo
	fns      []FnTy
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{
		index: make(map[typeKey]TypeID, 64),
	}
	in.records = append(in.records, RecordInfo{}) // reserve 0 as invalid sentinel
	in.fns = append(in.fns, FnTy{})
	in.builtins.Invalid = in.internRaw(Type{Kind: KindInvalid})
	in.builtins.Void = in.Intern(Type{Kind: KindVoid})
	in.builtins.Bool = in.Intern(Type{Kind: KindBool})
	in.builtins.S8 = in.Intern(MakeInt(8, true))
	in.builtins.U8 = in.Intern(MakeInt(8, false))
	in.builtins.S16 = in.Intern(MakeInt(16, true))
	in.builtins.U16 = in.Intern(MakeInt(16, false))
	in.builtins.S32 = in.Intern(MakeInt(32, true))
	in.builtins.U32 = in.Intern(MakeInt(32, false))
	in.builtins.S64 = in.Intern(MakeInt(64, true))
	in.builtins.U64 = in.Intern(MakeInt(64, false))
	in.builtins.F32 = in.Intern(MakeFloat(32))
	in.builtins.F64 = in.Intern(MakeFloat(64))
	in.builtins.VoidPtr = in.Intern(MakePointer(in.builtins.Void))
	return in
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Intern ensures the provided descriptor has a stable TypeID.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	key := typeKey(t)
	if id, ok := in.index[key]; ok {
		return id
	}
	return in.internRaw(t)
}

func (in *Interner) internRaw(t Type) TypeID {
	lenTypes, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(lenTypes)
	in.types = append(in.types, t)
	key := typeKey(t)
	in.index[key] = id
	return id
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("kir: invalid TypeID")
	}
	return tt
}

// PtrTo interns a pointer to elem.
func (in *Interner) PtrTo(elem TypeID) TypeID {
	return in.Intern(MakePointer(elem))
}

// Pointee returns the element type of a pointer, or NoTypeID.
func (in *Interner) Pointee(id TypeID) TypeID {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindPointer {
		return NoTypeID
	}
	return tt.Elem
}

// IntN interns an integer type of an arbitrary bit width; coercion types
// like !u24i and !u64i come from here.
func (in *Interner) IntN(width uint16, signed bool) TypeID {
	return in.Intern(MakeInt(width, signed))
}

// IsVoid reports whether id is the void type.
func (in *Interner) IsVoid(id TypeID) bool {
	tt, ok := in.Lookup(id)
	return ok && tt.Kind == KindVoid
}

type typeKey struct {
	Kind    Kind
	Elem    TypeID
	Count   uint32
	Width   uint16
	Signed  bool
	Payload uint32
}
