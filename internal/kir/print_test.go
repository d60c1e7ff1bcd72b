package kir

import (
	"testing"

	"karst/internal/source"
)

func TestTypeString(t *testing.T) {
	ti := NewInterner()
	bt := ti.Builtins()

	cases := []struct {
		id   TypeID
		want string
	}{
		{bt.Void, "!void"},
		{bt.Bool, "!bool"},
		{bt.S32, "!s32i"},
		{bt.U64, "!u64i"},
		{ti.IntN(24, false), "!u24i"},
		{bt.F64, "!f64"},
		{ti.PtrTo(bt.S8), "!ptr<!s8i>"},
		{ti.Intern(MakeArray(bt.S32, 4)), "!arr<!s32i x 4>"},
	}
	for _, tc := range cases {
		if got := TypeString(ti, tc.id); got != tc.want {
			t.Errorf("TypeString(%d) = %q, want %q", tc.id, got, tc.want)
		}
	}

	rec := ti.RegisterRecord("S1", []TypeID{bt.S32, bt.S32})
	if got := TypeString(ti, rec); got != "!rec_S1" {
		t.Errorf("Expected '!rec_S1', got %q", got)
	}

	anon := ti.RegisterRecord("", []TypeID{bt.U64, bt.U64})
	if got := TypeString(ti, anon); got != "!rec<!u64i, !u64i>" {
		t.Errorf("Expected structural anon record, got %q", got)
	}

	fn := ti.RegisterFn(bt.S32, []TypeID{ti.PtrTo(bt.S8)}, true)
	if got := TypeString(ti, fn); got != "!fn<(!ptr<!s8i>, ...) -> !s32i>" {
		t.Errorf("Expected variadic fn type, got %q", got)
	}
}

func TestPrintModuleBasic(t *testing.T) {
	m := NewModule()
	ti := m.Types
	bt := ti.Builtins()

	printfTy := ti.RegisterFn(bt.S32, []TypeID{ti.PtrTo(bt.S8)}, true)
	if err := m.Add(NewFuncOp("printf", printfTy)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	mainTy := ti.RegisterFn(bt.S32, nil, false)
	f := NewFuncOp("main", mainTy)
	entry := f.StartBody(ti)
	b := NewBuilder(ti, f)
	b.SetInsertionPoint(entry)
	c := b.CreateConstInt(source.Span{}, bt.S32, 0)
	b.CreateReturn(source.Span{}, c)
	if err := m.Add(f); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	want := `module {
  kir.func @printf : !fn<(!ptr<!s8i>, ...) -> !s32i>
  kir.func @main() -> !s32i {
    %0 = kir.const 0 : !s32i
    kir.return %0 : !s32i
  }
}
`
	if got := PrintModule(m); got != want {
		t.Errorf("Unexpected module text:\n got: %q\nwant: %q", got, want)
	}
}

func TestPrintCoercionShape(t *testing.T) {
	m := NewModule()
	ti := m.Types
	bt := ti.Builtins()

	rec := ti.RegisterRecord("S1", []TypeID{bt.S32, bt.S32})
	if err := m.Add(NewFuncOp("foo", ti.RegisterFn(bt.Void, []TypeID{bt.U64}, false))); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	f := NewFuncOp("caller", ti.RegisterFn(bt.Void, nil, false))
	entry := f.StartBody(ti)
	b := NewBuilder(ti, f)
	b.SetInsertionPoint(entry)

	slot := b.CreateAlloca(source.Span{}, rec, "s", 4)
	cast := b.CreateElementBitcast(source.Span{}, slot, bt.U64)
	val := b.CreateLoad(source.Span{}, cast, 4)
	b.CreateCall(source.Span{}, CallOp{Callee: DirectCallee("foo"), Args: []ValueID{val.ID}}, bt.Void)
	b.CreateReturn(source.Span{}, Value{})
	if err := m.Add(f); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	want := `module {
  kir.func @foo : !fn<(!u64i) -> !void>
  kir.func @caller() -> !void {
    %0 = kir.alloca !rec_S1 ["s", align 4] : !ptr<!rec_S1>
    %1 = kir.cast bitcast %0 : !ptr<!rec_S1> -> !ptr<!u64i>
    %2 = kir.load %1 [align 4] : !ptr<!u64i> -> !u64i
    kir.call @foo(%2) : (!u64i) -> !void
    kir.return
  }
}
`
	if got := PrintModule(m); got != want {
		t.Errorf("Unexpected module text:\n got: %q\nwant: %q", got, want)
	}
}

func TestPrintTryAndSuffixes(t *testing.T) {
	m := NewModule()
	ti := m.Types
	bt := ti.Builtins()

	f := NewFuncOp("caller", ti.RegisterFn(bt.Void, nil, false))
	entry := f.StartBody(ti)
	b := NewBuilder(ti, f)
	b.SetInsertionPoint(entry)

	outer := b.InsertionPoint()
	body, handler := b.CreateTry(source.Span{}, true)
	b.SetInsertionPoint(body.Entry())
	b.CreateTryCall(source.Span{}, CallOp{Callee: DirectCallee("mayfail")}, bt.S32)
	b.CreateYield(source.Span{})
	b.SetInsertionPoint(handler.Entry())
	b.CreateResume(source.Span{})
	b.Restore(outer)

	b.CreateCall(source.Span{}, CallOp{
		Callee:     DirectCallee("pow"),
		SideEffect: SideEffectConst,
		Attrs:      AttrSet{NoThrow: true},
	}, bt.Void)
	b.CreateReturn(source.Span{}, Value{})

	want := `kir.func @caller() -> !void {
  kir.try synthetic {
    %0 = kir.try_call @mayfail() : () -> !s32i
    kir.yield
  } handler {
    kir.resume
  }
  kir.call @pow() : () -> !void se(const) attrs({nothrow})
  kir.return
}
`
	if got := PrintFunc(ti, f); got != want {
		t.Errorf("Unexpected function text:\n got: %q\nwant: %q", got, want)
	}
}

func TestPrintExtensionMarkers(t *testing.T) {
	ti := NewInterner()
	bt := ti.Builtins()

	f := NewFuncOp("Bool", ti.RegisterFn(bt.Bool, []TypeID{bt.Bool}, false))
	f.ArgExt = []ExtKind{ExtZero}
	f.RetExt = ExtZero
	entry := f.StartBody(ti)
	b := NewBuilder(ti, f)
	b.SetInsertionPoint(entry)
	b.CreateReturn(source.Span{}, Value{ID: f.Params[0], Type: bt.Bool})

	want := `kir.func @Bool(%0: !bool zeroext) -> !bool zeroext {
  kir.return %0 : !bool
}
`
	if got := PrintFunc(ti, f); got != want {
		t.Errorf("Unexpected function text:\n got: %q\nwant: %q", got, want)
	}
}
