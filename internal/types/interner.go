package types

import (
	"fmt"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for common primitive types.
type Builtins struct {
	Invalid TypeID
	Void    TypeID
	Bool    TypeID
	I8      TypeID
	U8      TypeID
	I16     TypeID
	U16     TypeID
	I32     TypeID
	U32     TypeID
	I64     TypeID
	U64     TypeID
	F32     TypeID
	F64     TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors.
// Records are nominal: every RegisterRecord call mints a fresh TypeID.
type Interner struct {
	types    []Type
	index    map[typeKey]TypeID
	builtins Builtins
	records  []RecordInfo
	fns      []FnInfo
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{
		index: make(map[typeKey]TypeID, 64),
	}
	in.records = append(in.records, RecordInfo{}) // reserve 0 as invalid sentinel
	in.fns = append(in.fns, FnInfo{})
	in.builtins.Invalid = in.internRaw(Type{Kind: KindInvalid})
	in.builtins.Void = in.Intern(Type{Kind: KindVoid})
	in.builtins.Bool = in.Intern(Type{Kind: KindBool})
	in.builtins.I8 = in.Intern(MakeInt(Width8, true))
	in.builtins.U8 = in.Intern(MakeInt(Width8, false))
	in.builtins.I16 = in.Intern(MakeInt(Width16, true))
	in.builtins.U16 = in.Intern(MakeInt(Width16, false))
	in.builtins.I32 = in.Intern(MakeInt(Width32, true))
	in.builtins.U32 = in.Intern(MakeInt(Width32, false))
	in.builtins.I64 = in.Intern(MakeInt(Width64, true))
	in.builtins.U64 = in.Intern(MakeInt(Width64, false))
	in.builtins.F32 = in.Intern(MakeFloat(Width32))
	in.builtins.F64 = in.Intern(MakeFloat(Width64))
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

// internRaw adds the descriptor to the storage without consulting the map.
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
		panic("types: invalid TypeID")
	}
	return tt
}

// WithoutCV re-interns id with const/volatile/restrict cleared. Address-space
// qualification is preserved. Implicit receiver types are built this way.
func (in *Interner) WithoutCV(id TypeID) TypeID {
	tt, ok := in.Lookup(id)
	if !ok || tt.Quals == 0 {
		return id
	}
	tt.Quals = 0
	return in.Intern(tt)
}

// WithAddrSpace re-interns id in the given address space.
func (in *Interner) WithAddrSpace(id TypeID, space AddrSpace) TypeID {
	tt, ok := in.Lookup(id)
	if !ok || tt.AddrSpace == space {
		return id
	}
	tt.AddrSpace = space
	return in.Intern(tt)
}

// Pointee returns the element type of a pointer, or NoTypeID.
func (in *Interner) Pointee(id TypeID) TypeID {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindPointer {
		return NoTypeID
	}
	return tt.Elem
}

type typeKey struct {
	Kind      Kind
	Elem      TypeID
	Count     uint32
	Width     Width
	Signed    bool
	Quals     Quals
	AddrSpace AddrSpace
	Payload   uint32
}
