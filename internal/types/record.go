package types

import (
	"fmt"
	"slices"

	"fortio.org/safecast"

	"karst/internal/source"
)

// Field describes a single field inside a record type.
type Field struct {
	Name string
	Type TypeID
}

// RecordInfo stores metadata for a record type. Fields may be attached after
// registration so records can reference themselves through pointers.
type RecordInfo struct {
	Name            string
	Decl            source.Span
	Fields          []Field
	HasVirtualBases bool
}

// RegisterRecord allocates a nominal record type slot and returns its TypeID.
func (in *Interner) RegisterRecord(name string, decl source.Span) TypeID {
	slot := in.appendRecordInfo(RecordInfo{Name: name, Decl: decl})
	return in.internRaw(Type{Kind: KindRecord, Payload: slot})
}

// SetRecordFields stores the resolved field descriptors for the record type.
func (in *Interner) SetRecordFields(typeID TypeID, fields []Field) {
	info := in.recordInfo(typeID)
	if info == nil {
		return
	}
	info.Fields = cloneFields(fields)
}

// RecordInfo returns metadata for the provided record TypeID.
func (in *Interner) RecordInfo(typeID TypeID) (*RecordInfo, bool) {
	info := in.recordInfo(typeID)
	if info == nil {
		return nil, false
	}
	return info, true
}

// RecordFields returns a copy of record fields for the TypeID.
func (in *Interner) RecordFields(typeID TypeID) []Field {
	info := in.recordInfo(typeID)
	if info == nil || len(info.Fields) == 0 {
		return nil
	}
	return cloneFields(info.Fields)
}

func (in *Interner) recordInfo(typeID TypeID) *RecordInfo {
	if typeID == NoTypeID {
		return nil
	}
	tt, ok := in.Lookup(typeID)
	if !ok || tt.Kind != KindRecord {
		return nil
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.records) {
		return nil
	}
	return &in.records[tt.Payload]
}

func (in *Interner) appendRecordInfo(info RecordInfo) uint32 {
	if in.records == nil {
		in.records = append(in.records, RecordInfo{})
	}
	in.records = append(in.records, RecordInfo{
		Name:            info.Name,
		Decl:            info.Decl,
		Fields:          cloneFields(info.Fields),
		HasVirtualBases: info.HasVirtualBases,
	})
	slot, err := safecast.Conv[uint32](len(in.records) - 1)
	if err != nil {
		panic(fmt.Errorf("record info overflow: %w", err))
	}
	return slot
}

func cloneFields(fields []Field) []Field {
	if len(fields) == 0 {
		return nil
	}
	return slices.Clone(fields)
}
