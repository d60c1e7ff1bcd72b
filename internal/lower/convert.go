package lower

import (
	"karst/internal/abi"
	"karst/internal/kir"
	"karst/internal/source"
	"karst/internal/types"
)

// convertType maps a canonical source type onto its machine representation.
// Qualifiers do not survive the mapping: cv variants of one type share one
// machine type. Records are registered before their fields are converted,
// so a record may reference itself through a pointer.
func (g *Gen) convertType(t types.TypeID) (kir.TypeID, error) {
	if id, ok := g.converted[t]; ok {
		return id, nil
	}
	tt, ok := g.Types.Lookup(t)
	if !ok {
		return kir.NoTypeID, faultf(source.Span{}, "convert of invalid type %d", t)
	}
	ti := g.Module.Types
	bt := ti.Builtins()

	var out kir.TypeID
	switch tt.Kind {
	case types.KindVoid:
		out = bt.Void
	case types.KindBool:
		out = bt.Bool
	case types.KindInt:
		out = ti.IntN(uint16(tt.Width), tt.Signed)
	case types.KindFloat:
		out = ti.Intern(kir.MakeFloat(uint16(tt.Width)))
	case types.KindPointer:
		elem, err := g.convertType(tt.Elem)
		if err != nil {
			return kir.NoTypeID, err
		}
		out = ti.PtrTo(elem)
	case types.KindArray:
		elem, err := g.convertType(tt.Elem)
		if err != nil {
			return kir.NoTypeID, err
		}
		out = ti.Intern(kir.MakeArray(elem, tt.Count))
	case types.KindRecord:
		return g.convertRecord(t)
	case types.KindFnProto, types.KindFnNoProto:
		fi, err := g.ArrangeFreeFnType(t)
		if err != nil {
			return kir.NoTypeID, err
		}
		out, err = g.lowerFnType(fi)
		if err != nil {
			return kir.NoTypeID, err
		}
	default:
		return kir.NoTypeID, faultf(source.Span{}, "convert of %v type", tt.Kind)
	}
	g.converted[t] = out
	return out, nil
}

// convertRecord mints one machine record per nominal source record,
// however the source type is qualified.
func (g *Gen) convertRecord(t types.TypeID) (kir.TypeID, error) {
	canon := g.Types.WithAddrSpace(g.Types.WithoutCV(t), types.AddrSpaceDefault)
	if canon != t {
		id, err := g.convertType(canon)
		if err != nil {
			return kir.NoTypeID, err
		}
		g.converted[t] = id
		return id, nil
	}

	info, ok := g.Types.RecordInfo(t)
	if !ok {
		return kir.NoTypeID, faultf(source.Span{}, "convert of unregistered record")
	}
	ti := g.Module.Types
	rec := ti.RegisterRecord(info.Name, nil)
	g.converted[t] = rec

	fields := make([]kir.TypeID, 0, len(info.Fields))
	for _, f := range info.Fields {
		ft, err := g.convertType(f.Type)
		if err != nil {
			return kir.NoTypeID, err
		}
		fields = append(fields, ft)
	}
	ti.SetRecordFields(rec, fields)
	return rec, nil
}

// lowerFnType maps an arranged signature onto its machine function type.
// Function types can reference themselves through pointers; reaching a
// signature again while it is still being lowered is a fault, not a hang.
func (g *Gen) lowerFnType(fi *abi.FuncInfo) (kir.TypeID, error) {
	if g.inProgress[fi] {
		return kir.NoTypeID, faultf(source.Span{}, "function type is recursively being processed")
	}
	g.inProgress[fi] = true
	defer delete(g.inProgress, fi)

	ret, err := g.lowerRetType(fi.Ret)
	if err != nil {
		return kir.NoTypeID, err
	}
	params := make([]kir.TypeID, 0, fi.NumArgs())
	for _, arg := range fi.Args {
		p, err := g.lowerArgType(arg)
		if err != nil {
			return kir.NoTypeID, err
		}
		params = append(params, p)
	}
	return g.Module.Types.RegisterFn(ret, params, fi.IsVariadic()), nil
}

// lowerArgType picks the machine type an argument travels as: scalars
// convert directly, records coerce into the policy's register shape.
func (g *Gen) lowerArgType(t types.TypeID) (kir.TypeID, error) {
	tt, ok := g.Types.Lookup(t)
	if !ok {
		return kir.NoTypeID, faultf(source.Span{}, "argument of invalid type %d", t)
	}
	if tt.Kind != types.KindRecord {
		return g.convertType(t)
	}
	coerced, err := g.coercedRecordType(t)
	if err != nil {
		return kir.NoTypeID, err
	}
	if coerced == kir.NoTypeID {
		return kir.NoTypeID, unimplementedf(source.Span{}, "record argument passed in memory")
	}
	return coerced, nil
}

// lowerRetType is lowerArgType for the return slot.
func (g *Gen) lowerRetType(t types.TypeID) (kir.TypeID, error) {
	tt, ok := g.Types.Lookup(t)
	if !ok {
		return kir.NoTypeID, faultf(source.Span{}, "return of invalid type %d", t)
	}
	if tt.Kind != types.KindRecord {
		return g.convertType(t)
	}
	coerced, err := g.coercedRecordType(t)
	if err != nil {
		return kir.NoTypeID, err
	}
	if coerced == kir.NoTypeID {
		return kir.NoTypeID, unimplementedf(source.Span{}, "record return passed in memory")
	}
	return coerced, nil
}

// coercedRecordType asks the policy how a record travels in registers.
// NoTypeID with a nil error means the record must go to memory.
func (g *Gen) coercedRecordType(t types.TypeID) (kir.TypeID, error) {
	natural, err := g.convertType(t)
	if err != nil {
		return kir.NoTypeID, err
	}
	size, err := g.Layout.SizeOf(natural)
	if err != nil {
		return kir.NoTypeID, faultf(source.Span{}, "layout of record: %v", err)
	}
	coerced, ok := g.Policy.CoerceRecord(g.Module.Types, size)
	if !ok {
		return kir.NoTypeID, nil
	}
	return coerced, nil
}
