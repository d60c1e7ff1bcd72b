package decl

import (
	"testing"

	"karst/internal/source"
	"karst/internal/types"
)

func TestFuncKindPredicates(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	parent := in.RegisterRecord("Widget", source.Span{})

	free := &Func{Name: "f", Kind: KindFree, Type: in.RegisterFnProto(types.FnInfo{Ret: b.Void})}
	if free.IsInstance() {
		t.Error("Expected free function to take no receiver")
	}
	if free.IsStructor() {
		t.Error("Expected free function to not be a structor")
	}

	method := &Func{Name: "m", Kind: KindMethod, Parent: parent, Type: free.Type}
	if !method.IsInstance() {
		t.Error("Expected method to take a receiver")
	}
	if method.IsStructor() {
		t.Error("Expected method to not be a structor")
	}

	ctor := &Func{Name: "Widget", Kind: KindCtor, Parent: parent, Type: free.Type}
	if !ctor.IsInstance() || !ctor.IsStructor() {
		t.Error("Expected constructor to be an instance structor")
	}

	dtor := &Func{Name: "~Widget", Kind: KindDtor, Parent: parent, Type: free.Type}
	if !dtor.IsInstance() || !dtor.IsStructor() {
		t.Error("Expected destructor to be an instance structor")
	}
}

func TestIsVirtualMethod(t *testing.T) {
	virtual := &Func{Name: "m", Kind: KindMethod, Virtual: true}
	if !virtual.IsVirtualMethod() {
		t.Error("Expected virtual method to dispatch virtually")
	}

	freeVirtual := &Func{Name: "f", Kind: KindFree, Virtual: true}
	if freeVirtual.IsVirtualMethod() {
		t.Error("Expected virtual flag on a free function to be inert")
	}

	var nilFunc *Func
	if nilFunc.IsVirtualMethod() {
		t.Error("Expected nil receiver to report non-virtual")
	}
	if nilFunc.IsInstance() {
		t.Error("Expected nil receiver to report non-instance")
	}
	if nilFunc.NumParams() != 0 {
		t.Error("Expected nil receiver to report zero params")
	}
}

func TestRefString(t *testing.T) {
	fn := &Func{Name: "g", Kind: KindFree}
	if got := FreeRef(fn).String(); got != "g" {
		t.Errorf("Expected ref string 'g', got %q", got)
	}

	dtor := &Func{Name: "~W", Kind: KindDtor}
	if got := StructorRef(dtor, StructorDeleting).String(); got != "~W[deleting]" {
		t.Errorf("Expected ref string '~W[deleting]', got %q", got)
	}

	if got := (Ref{}).String(); got != "<nil>" {
		t.Errorf("Expected '<nil>' for empty ref, got %q", got)
	}
}

func TestAttrList(t *testing.T) {
	var attrs AttrList
	if attrs.Has(AttrNoThrow) {
		t.Error("Expected empty list to carry nothing")
	}

	attrs = attrs.With(AttrNoThrow).With(AttrConst)
	if !attrs.Has(AttrNoThrow) || !attrs.Has(AttrConst) {
		t.Errorf("Expected nothrow and const to be present, got %v", attrs)
	}

	again := attrs.With(AttrConst)
	if len(again) != len(attrs) {
		t.Errorf("Expected With to not duplicate attributes, got %v", again)
	}
}
