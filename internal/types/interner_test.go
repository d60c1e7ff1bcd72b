package types

import (
	"testing"

	"karst/internal/source"
)

func TestInternDedup(t *testing.T) {
	in := NewInterner()

	a := in.Intern(MakeInt(Width32, true))
	b := in.Intern(MakeInt(Width32, true))
	if a != b {
		t.Errorf("Expected identical descriptors to intern to one ID, got %d and %d", a, b)
	}

	c := in.Intern(MakeInt(Width32, false))
	if c == a {
		t.Error("Expected signedness to distinguish interned integers")
	}

	if got := in.Builtins().I32; got != a {
		t.Errorf("Expected builtin I32 to match interned descriptor, got %d vs %d", got, a)
	}
}

func TestInternInvalid(t *testing.T) {
	in := NewInterner()

	if got := in.Intern(Type{Kind: KindInvalid}); got != NoTypeID {
		t.Errorf("Expected invalid descriptor to intern as NoTypeID, got %d", got)
	}

	if _, ok := in.Lookup(NoTypeID); ok {
		t.Error("Expected Lookup(NoTypeID) to fail")
	}
}

func TestPointerIdentity(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()

	p1 := in.Intern(MakePointer(b.I32))
	p2 := in.Intern(MakePointer(b.I32))
	if p1 != p2 {
		t.Errorf("Expected pointer types to dedup, got %d and %d", p1, p2)
	}

	p3 := in.Intern(MakePointer(b.I64))
	if p3 == p1 {
		t.Error("Expected pointee to distinguish pointer types")
	}

	if got := in.Pointee(p1); got != b.I32 {
		t.Errorf("Expected pointee %d, got %d", b.I32, got)
	}
	if got := in.Pointee(b.I32); got != NoTypeID {
		t.Errorf("Expected NoTypeID pointee for non-pointer, got %d", got)
	}
}

func TestWithoutCV(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()

	qualified := in.Intern(Type{Kind: KindInt, Width: Width32, Signed: true, Quals: QualConst | QualVolatile, AddrSpace: 3})
	stripped := in.WithoutCV(qualified)
	if stripped == qualified {
		t.Error("Expected WithoutCV to produce a distinct ID for a qualified type")
	}

	tt := in.MustLookup(stripped)
	if tt.Quals != 0 {
		t.Errorf("Expected no qualifiers after WithoutCV, got %b", tt.Quals)
	}
	if tt.AddrSpace != 3 {
		t.Errorf("Expected address space 3 to survive WithoutCV, got %d", tt.AddrSpace)
	}

	// Unqualified types come back unchanged.
	if got := in.WithoutCV(b.I32); got != b.I32 {
		t.Errorf("Expected unqualified type to pass through, got %d", got)
	}
}

func TestWithAddrSpace(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()

	moved := in.WithAddrSpace(b.I32, 5)
	if moved == b.I32 {
		t.Error("Expected a distinct ID for a non-default address space")
	}
	if got := in.MustLookup(moved).AddrSpace; got != 5 {
		t.Errorf("Expected address space 5, got %d", got)
	}

	if got := in.WithAddrSpace(moved, 5); got != moved {
		t.Errorf("Expected same-space re-qualification to be a no-op, got %d vs %d", got, moved)
	}
}

func TestRecordIsNominal(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()

	r1 := in.RegisterRecord("S1", source.Span{})
	r2 := in.RegisterRecord("S1", source.Span{})
	if r1 == r2 {
		t.Error("Expected records with the same name to stay distinct types")
	}

	in.SetRecordFields(r1, []Field{{Name: "a", Type: b.I32}, {Name: "b", Type: b.I32}})

	info, ok := in.RecordInfo(r1)
	if !ok {
		t.Fatal("Expected record info for registered record")
	}
	if info.Name != "S1" {
		t.Errorf("Expected record name 'S1', got %q", info.Name)
	}
	if len(info.Fields) != 2 {
		t.Fatalf("Expected 2 fields, got %d", len(info.Fields))
	}
	if info.Fields[0].Name != "a" || info.Fields[0].Type != b.I32 {
		t.Errorf("Unexpected first field: %+v", info.Fields[0])
	}

	if fields := in.RecordFields(r2); fields != nil {
		t.Errorf("Expected no fields on the second record, got %v", fields)
	}

	if _, ok := in.RecordInfo(b.I32); ok {
		t.Error("Expected RecordInfo to fail for a non-record type")
	}
}

func TestRecordFieldsAreCopied(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()

	r := in.RegisterRecord("S", source.Span{})
	fields := []Field{{Name: "x", Type: b.I64}}
	in.SetRecordFields(r, fields)
	fields[0].Name = "mutated"

	got := in.RecordFields(r)
	if got[0].Name != "x" {
		t.Errorf("Expected stored fields to be insulated from caller mutation, got %q", got[0].Name)
	}
}
