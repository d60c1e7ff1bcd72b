package lower

import (
	"strconv"

	"karst/internal/abi"
	"karst/internal/decl"
	"karst/internal/kir"
	"karst/internal/source"
	"karst/internal/trace"
	"karst/internal/types"
)

// symbolOf names the lowered symbol of a declaration. Structor variants get
// distinct symbols; everything else keeps its declared name.
func symbolOf(ref decl.Ref) string {
	if ref.Fn == nil {
		return ""
	}
	if !ref.Fn.IsStructor() {
		return ref.Fn.Name
	}
	return ref.Fn.Name + "." + ref.Variant.String()
}

// DeclareFn returns the module-level FuncOp for a declaration, creating it
// on first use. Pass a nil fi to arrange the declaration's own signature;
// call sites must not pass their extended descriptors here, the declared
// shape stays the declaration's.
func (g *Gen) DeclareFn(ref decl.Ref, fi *abi.FuncInfo) (*kir.FuncOp, error) {
	fn := ref.Fn
	if fn == nil {
		return nil, faultf(source.Span{}, "declare of a nil function")
	}
	name := symbolOf(ref)
	if op := g.Module.Func(name); op != nil {
		return op, nil
	}

	var err error
	if fi == nil {
		fi, err = g.ArrangeRef(ref)
		if err != nil {
			return nil, err
		}
	}
	fnTy, err := g.lowerFnType(fi)
	if err != nil {
		return nil, err
	}

	op := kir.NewFuncOp(name, fnTy)
	op.CC, err = lowerCallConv(fi.CC, fn.Span)
	if err != nil {
		return nil, err
	}
	_, op.Attrs = g.synthAttrs(fn, fi, false, false)
	op.RetExt = g.retExt(fi)
	op.ArgExt = g.argExts(fi)
	op.Span = fn.Span
	if err := g.Module.Add(op); err != nil {
		return nil, faultf(fn.Span, "%v", err)
	}
	return op, nil
}

// argExts maps each canonical argument to its boundary extension marker,
// or nil when no argument needs one.
func (g *Gen) argExts(fi *abi.FuncInfo) []kir.ExtKind {
	out := make([]kir.ExtKind, fi.NumArgs())
	any := false
	for i, a := range fi.Args {
		if tt, ok := g.Types.Lookup(a); ok {
			out[i] = g.Policy.ExtendAttr(tt)
		}
		if out[i] != kir.ExtNone {
			any = true
		}
	}
	if !any {
		return nil
	}
	return out
}

func (g *Gen) retExt(fi *abi.FuncInfo) kir.ExtKind {
	if tt, ok := g.Types.Lookup(fi.Ret); ok {
		return g.Policy.ExtendAttr(tt)
	}
	return kir.ExtNone
}

// DefineFn starts a function definition: it declares the symbol, attaches
// a body, spills every incoming argument into a named local of its natural
// type, and reserves the return slot. The caller emits the body through
// the returned state and closes it with FinishFn.
func (g *Gen) DefineFn(ref decl.Ref) (*FnState, error) {
	fi, err := g.ArrangeRef(ref)
	if err != nil {
		return nil, err
	}
	op, err := g.DeclareFn(ref, fi)
	if err != nil {
		return nil, err
	}
	if !op.IsDeclaration() {
		return nil, faultf(ref.Fn.Span, "%s defined twice", op.Name)
	}

	ti := g.Module.Types
	entry := op.StartBody(ti)
	b := kir.NewBuilder(ti, op)
	b.SetInsertionPoint(entry)
	fs := &FnState{Ref: ref, FI: fi, Op: op, B: b}
	fs.sp = trace.Begin(g.tracer, trace.ScopeFunc, "define "+op.Name, g.link)

	mfn, ok := ti.FnTy(op.Type)
	if !ok {
		return nil, faultf(ref.Fn.Span, "declaration lowered to a non-function type")
	}
	span := ref.Fn.Span
	names := g.paramNames(ref, fi)
	for i, src := range fi.Args {
		natural, err := g.convertType(src)
		if err != nil {
			return nil, err
		}
		slot := b.CreateAlloca(span, natural, names[i], g.alignOf(natural))
		incoming := kir.Value{ID: op.Params[i], Type: mfn.Params[i]}
		g.storeCoerced(fs, incoming, slot, span)
		fs.ParamSlots = append(fs.ParamSlots, slot)
	}

	retNat, err := g.convertType(fi.Ret)
	if err != nil {
		return nil, err
	}
	if !ti.IsVoid(retNat) {
		fs.RetSlot = b.CreateAlloca(span, retNat, "__retval", g.alignOf(retNat))
	}
	return fs, nil
}

// paramNames assigns slot names in canonical argument order: the receiver,
// implicit structor arguments, then the formals with their object-size
// companions. Unnamed slots fall back to positional names.
func (g *Gen) paramNames(ref decl.Ref, fi *abi.FuncInfo) []string {
	names := make([]string, fi.NumArgs())
	for i := range names {
		names[i] = "arg" + strconv.Itoa(i)
	}
	next := 0
	if fi.InstanceMethod {
		names[0] = "this"
		next = 1
	}
	if ref.Fn.IsStructor() {
		prefix, _ := g.Policy.StructorArgs(g.Types, ref)
		next += len(prefix)
		if !g.structorPassParams(ref) {
			return names
		}
	}
	for _, p := range ref.Fn.Params {
		if next >= len(names) {
			break
		}
		if p.Name != "" {
			names[next] = p.Name
		}
		next++
		if p.ObjectSize != nil && next < len(names) {
			if p.Name != "" {
				names[next] = p.Name + ".size"
			}
			next++
		}
	}
	return names
}

// FinishFn closes a definition: it reloads the return slot in the machine
// return shape and terminates the body.
func (g *Gen) FinishFn(fs *FnState, span source.Span) error {
	defer fs.sp.End("")
	ti := g.Module.Types
	mfn, ok := ti.FnTy(fs.Op.Type)
	if !ok {
		return faultf(span, "finish of a non-function")
	}
	if ti.IsVoid(mfn.Ret) {
		fs.B.CreateReturn(span, kir.Value{})
		return nil
	}
	if !fs.RetSlot.Valid() {
		return faultf(span, "finish of %s without a return slot", fs.Op.Name)
	}
	v := g.loadCoerced(fs, fs.RetSlot, mfn.Ret, span)
	fs.B.CreateReturn(span, v)
	return nil
}

// StoreRetValue writes a produced value into the function's return slot.
func (g *Gen) StoreRetValue(fs *FnState, rv ReturnValue, span source.Span) error {
	if !fs.RetSlot.Valid() {
		return faultf(span, "return value in a void function")
	}
	if !rv.V.Valid() {
		return faultf(span, "missing return value")
	}
	if rv.Aggregate {
		natural := g.Module.Types.Pointee(fs.RetSlot.Type)
		align := g.alignOf(natural)
		v := fs.B.CreateLoad(span, rv.V, align)
		fs.B.CreateStore(span, v, fs.RetSlot, align)
		return nil
	}
	g.storeCoerced(fs, rv.V, fs.RetSlot, span)
	return nil
}

// MachineType converts a source type to its machine representation.
func (g *Gen) MachineType(t types.TypeID) (kir.TypeID, error) {
	return g.convertType(t)
}

// EmitLocal materializes a named addressable local of the given source
// type and returns the slot address.
func (g *Gen) EmitLocal(fs *FnState, name string, t types.TypeID, span source.Span) (kir.Value, error) {
	mt, err := g.convertType(t)
	if err != nil {
		return kir.Value{}, err
	}
	return fs.B.CreateAlloca(span, mt, name, g.alignOf(mt)), nil
}

// EmitVAArg fetches the next variadic argument of the given source type
// from a va_list address.
func (g *Gen) EmitVAArg(fs *FnState, list kir.Value, t types.TypeID, span source.Span) (kir.Value, error) {
	mt, err := g.convertType(t)
	if err != nil {
		return kir.Value{}, err
	}
	return fs.B.CreateVAArg(span, list, mt), nil
}

// EmitRuntimeCall calls a runtime helper by symbol. Helpers follow the C
// convention and never unwind, so no try scope is involved.
func (g *Gen) EmitRuntimeCall(fs *FnState, name string, args []kir.Value, retTy kir.TypeID, span source.Span) kir.Value {
	ids := make([]kir.ValueID, len(args))
	for i, a := range args {
		ids[i] = a.ID
	}
	call := kir.CallOp{
		Callee:     kir.DirectCallee(name),
		Args:       ids,
		CC:         kir.CallingConvC,
		SideEffect: kir.SideEffectAll,
		Attrs:      kir.AttrSet{NoThrow: true},
	}
	return fs.B.CreateCall(span, call, retTy)
}
