package lower

import (
	"errors"
	"testing"

	"karst/internal/abi"
	"karst/internal/decl"
	"karst/internal/kir"
	"karst/internal/source"
	"karst/internal/target"
	"karst/internal/types"
)

func walkOps(r *kir.Region, visit func(*kir.Op)) {
	if r == nil {
		return
	}
	for _, bb := range r.Blocks {
		for i := range bb.Ops {
			op := &bb.Ops[i]
			visit(op)
			if op.Kind == kir.OpTry {
				walkOps(op.Try.Body, visit)
				walkOps(op.Try.Handler, visit)
			}
		}
	}
}

func countOps(r *kir.Region, kind kir.OpKind) int {
	n := 0
	walkOps(r, func(op *kir.Op) {
		if op.Kind == kind {
			n++
		}
	})
	return n
}

func findOp(t *testing.T, r *kir.Region, kind kir.OpKind) *kir.Op {
	t.Helper()
	var found *kir.Op
	walkOps(r, func(op *kir.Op) {
		if found == nil && op.Kind == kind {
			found = op
		}
	})
	if found == nil {
		t.Fatalf("Expected a %v op in the body", kind)
	}
	return found
}

func defineVoidCaller(t *testing.T, g *Gen, name string) *FnState {
	t.Helper()
	fnTy := protoFn(g.Types, g.Types.Builtins().Void)
	fs, err := g.DefineFn(decl.FreeRef(freeFn(name, fnTy)))
	if err != nil {
		t.Fatalf("DefineFn %s failed: %v", name, err)
	}
	return fs
}

func pairRecord(in *types.Interner) types.TypeID {
	bt := in.Builtins()
	pair := in.RegisterRecord("Pair", source.Span{})
	in.SetRecordFields(pair, []types.Field{
		{Name: "a", Type: bt.I32},
		{Name: "b", Type: bt.I32},
	})
	return pair
}

func tripleRecord(in *types.Interner) types.TypeID {
	bt := in.Builtins()
	triple := in.RegisterRecord("Triple", source.Span{})
	in.SetRecordFields(triple, []types.Field{
		{Name: "a", Type: bt.I32},
		{Name: "b", Type: bt.I32},
		{Name: "c", Type: bt.I32},
	})
	return triple
}

func TestRecursiveIntCall(t *testing.T) {
	g, in := newGen(Options{})
	bt := in.Builtins()
	fnTy := protoFn(in, bt.I32, bt.I32)
	fn := freeFn("Int", fnTy)
	fn.Params = []decl.Param{{Name: "v", Type: bt.I32}}
	ref := decl.FreeRef(fn)

	fs, err := g.DefineFn(ref)
	if err != nil {
		t.Fatalf("DefineFn failed: %v", err)
	}
	if fs.FI.NumArgs() != 1 || fs.FI.IsVariadic() {
		t.Fatalf("Expected one required arg, got %d variadic=%v", fs.FI.NumArgs(), fs.FI.IsVariadic())
	}

	list := &CallArgList{}
	if err := g.ForwardParamArg(fs, list, 0, source.Span{}); err != nil {
		t.Fatalf("ForwardParamArg failed: %v", err)
	}
	callFI, err := g.ArrangeFreeFnCall(list.ArgTypes(), fnTy, false)
	if err != nil {
		t.Fatalf("ArrangeFreeFnCall failed: %v", err)
	}
	if callFI != fs.FI {
		t.Error("Expected the call site to share the declaration signature")
	}

	rv, err := g.EmitCall(fs, callFI, DirectCallee(ref), list, CallOpts{}, source.Span{})
	if err != nil {
		t.Fatalf("EmitCall failed: %v", err)
	}
	if rv.Aggregate || !rv.V.Valid() {
		t.Fatalf("Expected a scalar result, got %+v", rv)
	}
	if rv.V.Type != g.Module.Types.Builtins().S32 {
		t.Errorf("Expected an !s32i result, got type %d", rv.V.Type)
	}
	if err := g.StoreRetValue(fs, rv, source.Span{}); err != nil {
		t.Fatalf("StoreRetValue failed: %v", err)
	}
	if err := g.FinishFn(fs, source.Span{}); err != nil {
		t.Fatalf("FinishFn failed: %v", err)
	}

	if len(g.Module.Funcs) != 1 {
		t.Fatalf("Expected one function in the module, got %d", len(g.Module.Funcs))
	}
	if got := countOps(fs.Op.Body, kir.OpCall); got != 1 {
		t.Errorf("Expected exactly one call, got %d", got)
	}
	if got := countOps(fs.Op.Body, kir.OpTryCall); got != 0 {
		t.Errorf("Expected no unwind-threaded calls, got %d", got)
	}
	call := findOp(t, fs.Op.Body, kir.OpCall)
	if call.Call.Callee.Kind != kir.CalleeDirect || call.Call.Callee.Name != "Int" {
		t.Errorf("Expected a direct call to Int, got %+v", call.Call.Callee)
	}
	entry := fs.Op.Body.Entry()
	last := entry.Ops[len(entry.Ops)-1]
	if last.Kind != kir.OpReturn || !last.Return.HasValue {
		t.Errorf("Expected a value return at the end, got %v", last.Kind)
	}
}

func TestRecordCoercionRoundTrip(t *testing.T) {
	g, in := newGen(Options{})
	pair := pairRecord(in)
	fnTy := protoFn(in, pair, pair)
	mk := freeFn("mk", fnTy)
	mk.Params = []decl.Param{{Name: "p", Type: pair}}

	fs := defineVoidCaller(t, g, "caller")
	mpair, err := g.convertType(pair)
	if err != nil {
		t.Fatalf("convertType failed: %v", err)
	}
	local := fs.B.CreateAlloca(source.Span{}, mpair, "local", 4)

	list := &CallArgList{}
	list.AddAddressable(local, pair)
	callFI, err := g.ArrangeFreeFnCall(list.ArgTypes(), fnTy, false)
	if err != nil {
		t.Fatalf("ArrangeFreeFnCall failed: %v", err)
	}
	rv, err := g.EmitCall(fs, callFI, DirectCallee(decl.FreeRef(mk)), list, CallOpts{}, source.Span{})
	if err != nil {
		t.Fatalf("EmitCall failed: %v", err)
	}

	ti := g.Module.Types
	mbt := ti.Builtins()
	if !rv.Aggregate || !rv.V.Valid() {
		t.Fatalf("Expected an aggregate result, got %+v", rv)
	}
	if got := ti.Pointee(rv.V.Type); got != mpair {
		t.Errorf("Expected the result slot to hold the record, got pointee %d", got)
	}

	// The declared machine signature coerces both directions to !u64i.
	op := g.Module.Func("mk")
	if op == nil {
		t.Fatal("Expected the callee to be declared")
	}
	mfn, ok := ti.FnTy(op.Type)
	if !ok {
		t.Fatal("Expected a machine function type on the declaration")
	}
	if mfn.Ret != mbt.U64 || len(mfn.Params) != 1 || mfn.Params[0] != mbt.U64 {
		t.Errorf("Expected u64(u64), got ret %d params %v", mfn.Ret, mfn.Params)
	}

	call := findOp(t, fs.Op.Body, kir.OpCall)
	if got := fs.Op.ValueType(call.Call.Args[0]); got != mbt.U64 {
		t.Errorf("Expected the argument to travel as !u64i, got type %d", got)
	}

	// The addressable argument was copied before coercion, and the result
	// landed in a fresh slot.
	var names []string
	walkOps(fs.Op.Body, func(op *kir.Op) {
		if op.Kind == kir.OpAlloca {
			names = append(names, op.Alloca.Name)
		}
	})
	wantNames := map[string]bool{"agg.tmp": false, "tmp.call.ret": false}
	for _, n := range names {
		if _, ok := wantNames[n]; ok {
			wantNames[n] = true
		}
	}
	for n, seen := range wantNames {
		if !seen {
			t.Errorf("Expected an alloca named %q, got %v", n, names)
		}
	}

	// Both coercion windows reinterpret an address as *!u64i.
	u64p := ti.PtrTo(mbt.U64)
	casts := 0
	walkOps(fs.Op.Body, func(op *kir.Op) {
		if op.Kind == kir.OpCast && op.Type == u64p {
			casts++
		}
	})
	if casts != 2 {
		t.Errorf("Expected 2 coercion windows, got %d", casts)
	}
}

func TestSyntheticTryShape(t *testing.T) {
	g, in := newGen(Options{Exceptions: true})
	bt := in.Builtins()
	calleeTy := protoFn(in, bt.I32)
	callee := freeFn("mayThrow", calleeTy)

	fs := defineVoidCaller(t, g, "caller")
	callFI, err := g.ArrangeFreeFnCall(nil, calleeTy, false)
	if err != nil {
		t.Fatalf("ArrangeFreeFnCall failed: %v", err)
	}
	rv, err := g.EmitCall(fs, callFI, DirectCallee(decl.FreeRef(callee)), &CallArgList{}, CallOpts{}, source.Span{})
	if err != nil {
		t.Fatalf("EmitCall failed: %v", err)
	}
	if !rv.V.Valid() || rv.V.Type != g.Module.Types.Builtins().S32 {
		t.Fatalf("Expected an !s32i result, got %+v", rv)
	}

	entry := fs.Op.Body.Entry()
	if len(entry.Ops) != 3 {
		t.Fatalf("Expected [alloca, try, load] at the top level, got %d ops", len(entry.Ops))
	}
	if entry.Ops[0].Kind != kir.OpAlloca || entry.Ops[0].Alloca.Name != "tmp.try.call.res" {
		t.Errorf("Expected a result slot first, got %v %q", entry.Ops[0].Kind, entry.Ops[0].Alloca.Name)
	}
	tryOp := entry.Ops[1]
	if tryOp.Kind != kir.OpTry || !tryOp.Try.Synthetic {
		t.Fatalf("Expected a synthetic try second, got %v", tryOp.Kind)
	}
	if entry.Ops[2].Kind != kir.OpLoad || entry.Ops[2].Result != rv.V.ID {
		t.Errorf("Expected the result reloaded after the try, got %v", entry.Ops[2].Kind)
	}

	bodyOps := tryOp.Try.Body.Entry().Ops
	wantBody := []kir.OpKind{kir.OpTryCall, kir.OpStore, kir.OpYield}
	if len(bodyOps) != len(wantBody) {
		t.Fatalf("Expected %d body ops, got %d", len(wantBody), len(bodyOps))
	}
	for i, want := range wantBody {
		if bodyOps[i].Kind != want {
			t.Errorf("body op %d: expected %v, got %v", i, want, bodyOps[i].Kind)
		}
	}
	handlerOps := tryOp.Try.Handler.Entry().Ops
	if len(handlerOps) != 1 || handlerOps[0].Kind != kir.OpResume {
		t.Errorf("Expected a resume-only handler, got %d ops", len(handlerOps))
	}
}

func TestNothrowSkipsWrap(t *testing.T) {
	g, in := newGen(Options{Exceptions: true})
	bt := in.Builtins()

	emit := func(caller string, callee *decl.Func) *FnState {
		t.Helper()
		fs := defineVoidCaller(t, g, caller)
		fi, err := g.ArrangeFreeFnCall(nil, callee.Type, false)
		if err != nil {
			t.Fatalf("ArrangeFreeFnCall failed: %v", err)
		}
		if _, err := g.EmitCall(fs, fi, DirectCallee(decl.FreeRef(callee)), &CallArgList{}, CallOpts{}, source.Span{}); err != nil {
			t.Fatalf("EmitCall failed: %v", err)
		}
		return fs
	}

	attrNT := freeFn("nt1", protoFn(in, bt.Void))
	attrNT.Attrs = decl.AttrList{decl.AttrNoThrow}
	fs := emit("c1", attrNT)
	if countOps(fs.Op.Body, kir.OpTry) != 0 || countOps(fs.Op.Body, kir.OpCall) != 1 {
		t.Error("Expected a declared-nothrow callee to skip the unwind wrap")
	}

	specNT := freeFn("nt2", in.RegisterFnProto(types.FnInfo{Ret: bt.Void, Except: types.ExceptNoThrow}))
	fs = emit("c2", specNT)
	if countOps(fs.Op.Body, kir.OpTry) != 0 {
		t.Error("Expected a resolved-empty exception spec to skip the unwind wrap")
	}

	unresolved := freeFn("maybe", in.RegisterFnProto(types.FnInfo{Ret: bt.Void, Except: types.ExceptUnresolved}))
	fs = emit("c3", unresolved)
	if countOps(fs.Op.Body, kir.OpTry) != 1 {
		t.Error("Expected an unresolved exception spec to keep the unwind wrap")
	}
}

func TestExistingTryHostsCall(t *testing.T) {
	g, in := newGen(Options{Exceptions: true})
	bt := in.Builtins()
	callee := freeFn("mayThrow", protoFn(in, bt.Void))

	fs := defineVoidCaller(t, g, "caller")
	fs.EnterTry(source.Span{})
	fi, err := g.ArrangeFreeFnCall(nil, callee.Type, false)
	if err != nil {
		t.Fatalf("ArrangeFreeFnCall failed: %v", err)
	}
	if _, err := g.EmitCall(fs, fi, DirectCallee(decl.FreeRef(callee)), &CallArgList{}, CallOpts{}, source.Span{}); err != nil {
		t.Fatalf("EmitCall failed: %v", err)
	}
	fs.ExitTry(source.Span{})

	entry := fs.Op.Body.Entry()
	if len(entry.Ops) != 1 || entry.Ops[0].Kind != kir.OpTry {
		t.Fatalf("Expected only the source-level try at the top level, got %d ops", len(entry.Ops))
	}
	tryOp := entry.Ops[0]
	if tryOp.Try.Synthetic {
		t.Error("Expected a source-level try, not a synthetic one")
	}
	bodyOps := tryOp.Try.Body.Entry().Ops
	if len(bodyOps) != 2 || bodyOps[0].Kind != kir.OpTryCall || bodyOps[1].Kind != kir.OpYield {
		t.Errorf("Expected the call threaded through the open try, got %d ops", len(bodyOps))
	}
	if fs.B.Block() != entry {
		t.Error("Expected emission to resume after the try")
	}
}

func TestVirtualCallAttrSuppression(t *testing.T) {
	g, in := newGen(Options{})
	bt := in.Builtins()
	shape := in.RegisterRecord("Shape", source.Span{})
	shapeP := in.Intern(types.MakePointer(shape))
	m := &decl.Func{
		Name: "draw", Kind: decl.KindMethod, Parent: shape,
		Type: protoFn(in, bt.Void), Virtual: true, VTableSlot: 2,
		Attrs: decl.AttrList{decl.AttrNoReturn, decl.AttrNoBuiltin},
	}

	fs := defineVoidCaller(t, g, "caller")
	mshape, err := g.convertType(shape)
	if err != nil {
		t.Fatalf("convertType failed: %v", err)
	}
	obj := fs.B.CreateAlloca(source.Span{}, mshape, "obj", 1)

	list := &CallArgList{}
	list.Add(ScalarRV(obj), shapeP)
	fi, err := g.ArrangeMethodCall(list.ArgTypes(), m.Type, abi.AllArgs(), 0)
	if err != nil {
		t.Fatalf("ArrangeMethodCall failed: %v", err)
	}
	if _, err := g.EmitCall(fs, fi, VirtualCallee(m), list, CallOpts{}, source.Span{}); err != nil {
		t.Fatalf("EmitCall failed: %v", err)
	}

	vt := findOp(t, fs.Op.Body, kir.OpVTableFn)
	if vt.VTableFn.Slot != 2 {
		t.Errorf("Expected vtable slot 2, got %d", vt.VTableFn.Slot)
	}
	call := findOp(t, fs.Op.Body, kir.OpCall)
	if call.Call.Callee.Kind != kir.CalleeIndirect || call.Call.Callee.Value != vt.Result {
		t.Errorf("Expected an indirect call through the vtable pointer, got %+v", call.Call.Callee)
	}
	if call.Call.Attrs.NoReturn || call.Call.Attrs.NoBuiltin {
		t.Error("Expected noreturn and nobuiltin suppressed on the virtual site")
	}
	if g.Module.Func("draw") != nil {
		t.Error("Expected no symbol declared for a virtual dispatch")
	}

	// The same declaration called directly keeps its attributes.
	list2 := &CallArgList{}
	list2.Add(ScalarRV(obj), shapeP)
	if _, err := g.EmitCall(fs, fi, DirectCallee(decl.FreeRef(m)), list2, CallOpts{}, source.Span{}); err != nil {
		t.Fatalf("EmitCall failed: %v", err)
	}
	if g.Module.Func("draw") == nil {
		t.Fatal("Expected the direct call to declare its target")
	}
	var direct *kir.Op
	walkOps(fs.Op.Body, func(op *kir.Op) {
		if op.Kind == kir.OpCall && op.Call.Callee.Kind == kir.CalleeDirect {
			direct = op
		}
	})
	if direct == nil {
		t.Fatal("Expected a direct call op")
	}
	if !direct.Call.Attrs.NoReturn || !direct.Call.Attrs.NoBuiltin {
		t.Error("Expected noreturn and nobuiltin kept on the direct site")
	}
}

func TestMSVCCleanupSuppressesUnwind(t *testing.T) {
	emit := func(t *testing.T, opts Options) *FnState {
		t.Helper()
		g, in := newGen(opts)
		callee := freeFn("mayThrow", protoFn(in, in.Builtins().Void))
		fs := defineVoidCaller(t, g, "caller")
		fs.PushScope(ScopeCleanup)
		fi, err := g.ArrangeFreeFnCall(nil, callee.Type, false)
		if err != nil {
			t.Fatalf("ArrangeFreeFnCall failed: %v", err)
		}
		if _, err := g.EmitCall(fs, fi, DirectCallee(decl.FreeRef(callee)), &CallArgList{}, CallOpts{}, source.Span{}); err != nil {
			t.Fatalf("EmitCall failed: %v", err)
		}
		fs.PopScope()
		return fs
	}

	fs := emit(t, Options{Exceptions: true, Personality: PersonalityMSVC})
	if countOps(fs.Op.Body, kir.OpTry) != 0 {
		t.Error("Expected no unwind edge from an MSVC cleanup scope")
	}

	// Itanium cleanups keep unwinding through.
	fs = emit(t, Options{Exceptions: true})
	if countOps(fs.Op.Body, kir.OpTry) != 1 {
		t.Error("Expected the Itanium cleanup call to keep its unwind edge")
	}
}

func TestCallShapeFaults(t *testing.T) {
	g, in := newGen(Options{})
	bt := in.Builtins()
	mbt := g.Module.Types.Builtins()
	fs := defineVoidCaller(t, g, "caller")

	takesInt := freeFn("takesInt", protoFn(in, bt.Void, bt.I32))
	fi, err := g.ArrangeFnDecl(takesInt)
	if err != nil {
		t.Fatalf("ArrangeFnDecl failed: %v", err)
	}

	var fault *Fault
	if _, err := g.EmitCall(fs, fi, DirectCallee(decl.FreeRef(takesInt)), &CallArgList{}, CallOpts{}, source.Span{}); !errors.As(err, &fault) {
		t.Errorf("Expected an arity fault, got %v", err)
	}

	// A wider value never truncates silently into a narrower slot.
	wide := fs.B.CreateConstInt(source.Span{}, mbt.S64, 7)
	list := &CallArgList{}
	list.Add(ScalarRV(wide), bt.I32)
	if _, err := g.EmitCall(fs, fi, DirectCallee(decl.FreeRef(takesInt)), list, CallOpts{}, source.Span{}); !errors.As(err, &fault) {
		t.Errorf("Expected a truncation fault, got %v", err)
	}

	// A memory-held value bigger than its parameter slot.
	triple := tripleRecord(in)
	mtriple, err := g.convertType(triple)
	if err != nil {
		t.Fatalf("convertType failed: %v", err)
	}
	big := fs.B.CreateAlloca(source.Span{}, mtriple, "t", 4)
	list = &CallArgList{}
	list.Add(AggregateRV(big), bt.I32)
	if _, err := g.EmitCall(fs, fi, DirectCallee(decl.FreeRef(takesInt)), list, CallOpts{}, source.Span{}); !errors.As(err, &fault) {
		t.Errorf("Expected a fault for an oversized argument, got %v", err)
	}

	// A record slot wants memory, not a register value.
	takesTriple := freeFn("takesTriple", protoFn(in, bt.Void, triple))
	tfi, err := g.ArrangeFnDecl(takesTriple)
	if err != nil {
		t.Fatalf("ArrangeFnDecl failed: %v", err)
	}
	small := fs.B.CreateConstInt(source.Span{}, mbt.U64, 1)
	list = &CallArgList{}
	list.Add(ScalarRV(small), triple)
	if _, err := g.EmitCall(fs, tfi, DirectCallee(decl.FreeRef(takesTriple)), list, CallOpts{}, source.Span{}); !errors.As(err, &fault) {
		t.Errorf("Expected a fault for a scalar in an aggregate slot, got %v", err)
	}
}

type calleeDestroyPolicy struct{ target.Policy }

func (calleeDestroyPolicy) RecordParamDestroyedInCallee() bool { return true }

func TestCallUnimplementedCorners(t *testing.T) {
	g, in := newGen(Options{})
	bt := in.Builtins()
	fs := defineVoidCaller(t, g, "caller")
	nullary := freeFn("f", protoFn(in, bt.Void))
	fi, err := g.ArrangeFnDecl(nullary)
	if err != nil {
		t.Fatalf("ArrangeFnDecl failed: %v", err)
	}

	var unimpl *Unimplemented
	if _, err := g.EmitCall(fs, fi, DirectCallee(decl.FreeRef(nullary)), &CallArgList{}, CallOpts{MustTail: true}, source.Span{}); !errors.As(err, &unimpl) {
		t.Errorf("Expected must-tail to be unimplemented, got %v", err)
	}

	pair := pairRecord(in)
	inalloca := abi.New(abi.FuncInfo{Ret: bt.Void, IndirectRecord: pair})
	if _, err := g.EmitCall(fs, inalloca, DirectCallee(decl.FreeRef(nullary)), &CallArgList{}, CallOpts{}, source.Span{}); !errors.As(err, &unimpl) {
		t.Errorf("Expected inalloca blocks to be unimplemented, got %v", err)
	}

	// Indirect calls only support the default convention.
	regTy := in.RegisterFnProto(types.FnInfo{Ret: bt.Void, Ext: types.ExtInfo{CC: types.CallConvRegCall}})
	regFI, err := g.ArrangeFreeFnCall(nil, regTy, false)
	if err != nil {
		t.Fatalf("ArrangeFreeFnCall failed: %v", err)
	}
	fptr := fs.B.CreateUndef(source.Span{}, g.Module.Types.Builtins().VoidPtr)
	if _, err := g.EmitCall(fs, regFI, IndirectCallee(fptr, nil), &CallArgList{}, CallOpts{}, source.Span{}); !errors.As(err, &unimpl) {
		t.Errorf("Expected a non-default indirect convention to be unimplemented, got %v", err)
	}

	fs.PushScope(ScopeSEHTry)
	if _, err := g.EmitCall(fs, fi, DirectCallee(decl.FreeRef(nullary)), &CallArgList{}, CallOpts{}, source.Span{}); !errors.As(err, &unimpl) {
		t.Errorf("Expected SEH scopes to be unimplemented, got %v", err)
	}
	fs.PopScope()

	// A callee-destroys target refuses record arguments outright.
	gd, ind := newGenWith(calleeDestroyPolicy{target.Default()}, Options{})
	fsd := defineVoidCaller(t, gd, "caller")
	dpair := pairRecord(ind)
	takesPair := freeFn("takesPair", protoFn(ind, ind.Builtins().Void, dpair))
	dfi, err := gd.ArrangeFnDecl(takesPair)
	if err != nil {
		t.Fatalf("ArrangeFnDecl failed: %v", err)
	}
	mdpair, err := gd.convertType(dpair)
	if err != nil {
		t.Fatalf("convertType failed: %v", err)
	}
	addr := fsd.B.CreateAlloca(source.Span{}, mdpair, "p", 4)
	dlist := &CallArgList{}
	dlist.Add(AggregateRV(addr), dpair)
	if _, err := gd.EmitCall(fsd, dfi, DirectCallee(decl.FreeRef(takesPair)), dlist, CallOpts{}, source.Span{}); !errors.As(err, &unimpl) {
		t.Errorf("Expected callee-destroyed records to be unimplemented, got %v", err)
	}
}

type rtlPolicy struct{ target.Policy }

func (rtlPolicy) AreArgsDestroyedLeftToRightInCallee() bool { return true }

func TestEmitCallArgsOrder(t *testing.T) {
	span := source.Span{}

	g, in := newGen(Options{})
	bt := in.Builtins()
	mbt := g.Module.Types.Builtins()
	fs := defineVoidCaller(t, g, "caller")

	var order []int
	input := func(fs *FnState, i int, srcTy types.TypeID, mTy kir.TypeID, order *[]int) ArgInput {
		return ArgInput{Ty: srcTy, Emit: func(l *CallArgList) error {
			*order = append(*order, i)
			l.Add(ScalarRV(fs.B.CreateConstInt(span, mTy, uint64(i))), srcTy)
			return nil
		}}
	}
	inputs := []ArgInput{
		input(fs, 0, bt.I32, mbt.S32, &order),
		input(fs, 1, bt.U8, mbt.U8, &order),
		input(fs, 2, bt.I64, mbt.S64, &order),
	}
	list, err := g.EmitCallArgs(fs, inputs, span)
	if err != nil {
		t.Fatalf("EmitCallArgs failed: %v", err)
	}
	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Errorf("Expected left-to-right evaluation, got %v", order)
	}
	want := []types.TypeID{bt.I32, bt.U8, bt.I64}
	for i, w := range want {
		if list.Args[i].Ty != w {
			t.Errorf("arg %d: expected type %d, got %d", i, w, list.Args[i].Ty)
		}
	}

	// Callee-destroys targets evaluate right-to-left but still hand over a
	// left-to-right list.
	g2, in2 := newGenWith(rtlPolicy{target.Default()}, Options{})
	bt2 := in2.Builtins()
	mbt2 := g2.Module.Types.Builtins()
	fs2 := defineVoidCaller(t, g2, "caller")
	var order2 []int
	inputs2 := []ArgInput{
		input(fs2, 0, bt2.I32, mbt2.S32, &order2),
		input(fs2, 1, bt2.U8, mbt2.U8, &order2),
		input(fs2, 2, bt2.I64, mbt2.S64, &order2),
	}
	list2, err := g2.EmitCallArgs(fs2, inputs2, span)
	if err != nil {
		t.Fatalf("EmitCallArgs failed: %v", err)
	}
	if len(order2) != 3 || order2[0] != 2 || order2[1] != 1 || order2[2] != 0 {
		t.Errorf("Expected right-to-left evaluation, got %v", order2)
	}
	want2 := []types.TypeID{bt2.I32, bt2.U8, bt2.I64}
	for i, w := range want2 {
		if list2.Args[i].Ty != w {
			t.Errorf("arg %d: expected type %d, got %d", i, w, list2.Args[i].Ty)
		}
	}
}

func TestObjectSizeArgs(t *testing.T) {
	span := source.Span{}
	g, in := newGen(Options{})
	bt := in.Builtins()
	u8p := in.Intern(types.MakePointer(bt.U8))
	fs := defineVoidCaller(t, g, "caller")
	ti := g.Module.Types

	consts := func() []uint64 {
		var out []uint64
		walkOps(fs.Op.Body, func(op *kir.Op) {
			if op.Kind == kir.OpConstInt {
				out = append(out, op.ConstInt.Value)
			}
		})
		return out
	}
	ptrInput := func(kind uint8) ArgInput {
		return ArgInput{
			Ty:    u8p,
			Param: &decl.Param{Name: "buf", Type: u8p, ObjectSize: &decl.PassObjectSize{Kind: kind}},
			Emit: func(l *CallArgList) error {
				l.Add(ScalarRV(fs.B.CreateUndef(span, ti.PtrTo(ti.Builtins().U8))), u8p)
				return nil
			},
		}
	}

	list, err := g.EmitCallArgs(fs, []ArgInput{ptrInput(0)}, span)
	if err != nil {
		t.Fatalf("EmitCallArgs failed: %v", err)
	}
	if len(list.Args) != 2 || list.Args[1].Ty != bt.U64 {
		t.Fatalf("Expected [ptr, size], got %d args", len(list.Args))
	}
	cs := consts()
	if len(cs) != 1 || cs[0] != ^uint64(0) {
		t.Errorf("Expected the all-ones sentinel for kind 0, got %v", cs)
	}

	if _, err := g.EmitCallArgs(fs, []ArgInput{ptrInput(2)}, span); err != nil {
		t.Fatalf("EmitCallArgs failed: %v", err)
	}
	cs = consts()
	if len(cs) != 2 || cs[1] != 0 {
		t.Errorf("Expected the zero sentinel for kind 2, got %v", cs)
	}

	// Under right-to-left evaluation the size still rides behind its
	// pointer in the final order.
	g2, in2 := newGenWith(rtlPolicy{target.Default()}, Options{})
	bt2 := in2.Builtins()
	u8p2 := in2.Intern(types.MakePointer(bt2.U8))
	fs2 := defineVoidCaller(t, g2, "caller")
	ti2 := g2.Module.Types
	inputs := []ArgInput{
		{
			Ty:    u8p2,
			Param: &decl.Param{Name: "buf", Type: u8p2, ObjectSize: &decl.PassObjectSize{Kind: 0}},
			Emit: func(l *CallArgList) error {
				l.Add(ScalarRV(fs2.B.CreateUndef(span, ti2.PtrTo(ti2.Builtins().U8))), u8p2)
				return nil
			},
		},
		{Ty: bt2.I32, Emit: func(l *CallArgList) error {
			l.Add(ScalarRV(fs2.B.CreateConstInt(span, g2.Module.Types.Builtins().S32, 9)), bt2.I32)
			return nil
		}},
	}
	list2, err := g2.EmitCallArgs(fs2, inputs, span)
	if err != nil {
		t.Fatalf("EmitCallArgs failed: %v", err)
	}
	wantTys := []types.TypeID{u8p2, bt2.U64, bt2.I32}
	if len(list2.Args) != len(wantTys) {
		t.Fatalf("Expected %d args, got %d", len(wantTys), len(list2.Args))
	}
	for i, w := range wantTys {
		if list2.Args[i].Ty != w {
			t.Errorf("arg %d: expected type %d, got %d", i, w, list2.Args[i].Ty)
		}
	}
}

func TestNonNullAssert(t *testing.T) {
	span := source.Span{}
	g, in := newGen(Options{NullChecks: true})
	bt := in.Builtins()
	u8p := in.Intern(types.MakePointer(bt.U8))
	fs := defineVoidCaller(t, g, "caller")
	ti := g.Module.Types

	param := &decl.Param{Name: "p", Type: u8p, NonNull: true}
	inputs := []ArgInput{{Ty: u8p, Param: param, Emit: func(l *CallArgList) error {
		l.Add(ScalarRV(fs.B.CreateUndef(span, ti.PtrTo(ti.Builtins().U8))), u8p)
		return nil
	}}}
	if _, err := g.EmitCallArgs(fs, inputs, span); err != nil {
		t.Fatalf("EmitCallArgs failed: %v", err)
	}
	if got := countOps(fs.Op.Body, kir.OpAssertNonNull); got != 1 {
		t.Errorf("Expected one non-null assertion, got %d", got)
	}

	// Addressable slots carry no assertion; the location is checked at its
	// use, not at the call boundary.
	pair := pairRecord(in)
	mpair, err := g.convertType(pair)
	if err != nil {
		t.Fatalf("convertType failed: %v", err)
	}
	aggParam := &decl.Param{Name: "q", Type: pair, NonNull: true}
	aggInputs := []ArgInput{{Ty: pair, Param: aggParam, Emit: func(l *CallArgList) error {
		l.AddAddressable(fs.B.CreateAlloca(span, mpair, "q", 4), pair)
		return nil
	}}}
	if _, err := g.EmitCallArgs(fs, aggInputs, span); err != nil {
		t.Fatalf("EmitCallArgs failed: %v", err)
	}
	if got := countOps(fs.Op.Body, kir.OpAssertNonNull); got != 1 {
		t.Errorf("Expected no assertion for an addressable argument, got %d total", got)
	}

	// Checks are off by default.
	g2, in2 := newGen(Options{})
	u8p2 := in2.Intern(types.MakePointer(in2.Builtins().U8))
	fs2 := defineVoidCaller(t, g2, "caller")
	ti2 := g2.Module.Types
	inputs2 := []ArgInput{{Ty: u8p2, Param: &decl.Param{Name: "p", Type: u8p2, NonNull: true}, Emit: func(l *CallArgList) error {
		l.Add(ScalarRV(fs2.B.CreateUndef(span, ti2.PtrTo(ti2.Builtins().U8))), u8p2)
		return nil
	}}}
	if _, err := g2.EmitCallArgs(fs2, inputs2, span); err != nil {
		t.Fatalf("EmitCallArgs failed: %v", err)
	}
	if got := countOps(fs2.Op.Body, kir.OpAssertNonNull); got != 0 {
		t.Errorf("Expected no assertions with checks disabled, got %d", got)
	}
}

func TestForwardParamArg(t *testing.T) {
	g, in := newGen(Options{})
	bt := in.Builtins()
	pair := pairRecord(in)
	fn := freeFn("h", protoFn(in, bt.Void, bt.I32, pair))
	fn.Params = []decl.Param{
		{Name: "n", Type: bt.I32},
		{Name: "p", Type: pair},
	}
	fs, err := g.DefineFn(decl.FreeRef(fn))
	if err != nil {
		t.Fatalf("DefineFn failed: %v", err)
	}

	list := &CallArgList{}
	if err := g.ForwardParamArg(fs, list, 0, source.Span{}); err != nil {
		t.Fatalf("ForwardParamArg failed: %v", err)
	}
	if err := g.ForwardParamArg(fs, list, 1, source.Span{}); err != nil {
		t.Fatalf("ForwardParamArg failed: %v", err)
	}
	if len(list.Args) != 2 {
		t.Fatalf("Expected 2 forwarded args, got %d", len(list.Args))
	}
	if list.Args[0].RV.Aggregate || list.Args[0].Ty != bt.I32 {
		t.Errorf("Expected the scalar reloaded, got %+v", list.Args[0])
	}
	if !list.Args[1].RV.Aggregate || list.Args[1].RV.Addr != fs.ParamSlots[1] {
		t.Errorf("Expected the record forwarded by address, got %+v", list.Args[1])
	}
	if list.Args[1].HasLV {
		t.Error("Expected a forwarded record to skip the defensive copy")
	}

	var fault *Fault
	if err := g.ForwardParamArg(fs, list, 5, source.Span{}); !errors.As(err, &fault) {
		t.Errorf("Expected an out-of-range fault, got %v", err)
	}
}
