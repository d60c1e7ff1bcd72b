package kir

import (
	"fmt"
	"slices"

	"fortio.org/safecast"
)

// RecordInfo stores metadata for a machine record type. An empty Name means
// an anonymous record (coercion pairs and the like) printed structurally.
type RecordInfo struct {
	Name   string
	Fields []TypeID
	Packed bool
}

// RegisterRecord allocates a nominal record type slot and returns its TypeID.
func (in *Interner) RegisterRecord(name string, fields []TypeID) TypeID {
	slot := in.appendRecordInfo(RecordInfo{Name: name, Fields: fields})
	return in.internRaw(Type{Kind: KindRecord, Payload: slot})
}

// SetRecordFields replaces the field list of an already-registered record.
// Incomplete records are registered first and completed once their fields
// are converted.
func (in *Interner) SetRecordFields(typeID TypeID, fields []TypeID) {
	info := in.recordInfo(typeID)
	if info == nil {
		return
	}
	info.Fields = slices.Clone(fields)
}

// RecordInfo returns metadata for the provided record TypeID.
func (in *Interner) RecordInfo(typeID TypeID) (*RecordInfo, bool) {
	info := in.recordInfo(typeID)
	if info == nil {
		return nil, false
	}
	return info, true
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
		Name:   info.Name,
		Fields: slices.Clone(info.Fields),
		Packed: info.Packed,
	})
	slot, err := safecast.Conv[uint32](len(in.records) - 1)
	if err != nil {
		panic(fmt.Errorf("record info overflow: %w", err))
	}
	return slot
}
