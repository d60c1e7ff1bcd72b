package kir

import (
	"karst/internal/source"
)

// Builder appends ops at an insertion point inside one function. The
// structured-op helpers (try scopes) hand back their nested regions so the
// caller can move the point inside and restore it afterwards.
type Builder struct {
	types *Interner
	fn    *FuncOp
	block *Block
}

// InsertPoint is a saved insertion position.
type InsertPoint struct {
	block *Block
}

// Valid reports whether the point refers to a block.
func (ip InsertPoint) Valid() bool {
	return ip.block != nil
}

// NewBuilder constructs a builder over fn with no insertion point set.
func NewBuilder(types *Interner, fn *FuncOp) *Builder {
	return &Builder{types: types, fn: fn}
}

// Func returns the function being built.
func (b *Builder) Func() *FuncOp {
	return b.fn
}

// Types returns the machine type interner.
func (b *Builder) Types() *Interner {
	return b.types
}

// SetInsertionPoint moves the builder to append at the end of bb.
func (b *Builder) SetInsertionPoint(bb *Block) {
	b.block = bb
}

// InsertionPoint returns the current position for a later Restore.
func (b *Builder) InsertionPoint() InsertPoint {
	return InsertPoint{block: b.block}
}

// Restore moves the builder back to a saved position.
func (b *Builder) Restore(ip InsertPoint) {
	b.block = ip.block
}

// Block returns the current insertion block.
func (b *Builder) Block() *Block {
	return b.block
}

// Region returns the region of the current insertion block.
func (b *Builder) Region() *Region {
	if b.block == nil {
		return nil
	}
	return b.block.region
}

func (b *Builder) regionID() RegionID {
	if r := b.Region(); r != nil {
		return r.ID
	}
	return 0
}

func (b *Builder) append(op Op) {
	b.block.Ops = append(b.block.Ops, op)
}

func (b *Builder) newResult(typ TypeID) Value {
	return Value{ID: b.fn.NewValue(typ, b.regionID()), Type: typ}
}

// CreateAlloca reserves a stack slot for elem and yields its address.
func (b *Builder) CreateAlloca(span source.Span, elem TypeID, name string, align uint32) Value {
	res := b.newResult(b.types.PtrTo(elem))
	b.append(Op{
		Kind:   OpAlloca,
		Result: res.ID,
		Type:   res.Type,
		Span:   span,
		Alloca: AllocaOp{Elem: elem, Name: name, Align: align},
	})
	return res
}

// CreateLoad reads through addr; the result type is addr's pointee.
func (b *Builder) CreateLoad(span source.Span, addr Value, align uint32) Value {
	res := b.newResult(b.types.Pointee(addr.Type))
	b.append(Op{
		Kind:   OpLoad,
		Result: res.ID,
		Type:   res.Type,
		Span:   span,
		Load:   LoadOp{Addr: addr.ID, Align: align},
	})
	return res
}

// CreateStore writes val through addr.
func (b *Builder) CreateStore(span source.Span, val, addr Value, align uint32) {
	b.append(Op{
		Kind:  OpStore,
		Span:  span,
		Store: StoreOp{Val: val.ID, Addr: addr.ID, Align: align},
	})
}

// CreateCast converts val to the destination type.
func (b *Builder) CreateCast(span source.Span, kind CastKind, val Value, to TypeID) Value {
	res := b.newResult(to)
	b.append(Op{
		Kind:   OpCast,
		Result: res.ID,
		Type:   res.Type,
		Span:   span,
		Cast:   CastOp{CastKind: kind, Val: val.ID},
	})
	return res
}

// CreateBitcast reinterprets val's bits as the destination type.
func (b *Builder) CreateBitcast(span source.Span, val Value, to TypeID) Value {
	return b.CreateCast(span, CastBitcast, val, to)
}

// CreateElementBitcast reinterprets a pointer as pointing at elem.
func (b *Builder) CreateElementBitcast(span source.Span, addr Value, elem TypeID) Value {
	return b.CreateCast(span, CastBitcast, addr, b.types.PtrTo(elem))
}

// CreateIntCast converts an integer value to another integer type.
func (b *Builder) CreateIntCast(span source.Span, val Value, to TypeID) Value {
	return b.CreateCast(span, CastIntegral, val, to)
}

// CreateConstInt yields an integer constant of the given type.
func (b *Builder) CreateConstInt(span source.Span, typ TypeID, v uint64) Value {
	res := b.newResult(typ)
	b.append(Op{
		Kind:     OpConstInt,
		Result:   res.ID,
		Type:     res.Type,
		Span:     span,
		ConstInt: ConstIntOp{Value: v},
	})
	return res
}

// CreateConstFloat yields a floating-point constant of the given type.
func (b *Builder) CreateConstFloat(span source.Span, typ TypeID, v float64) Value {
	res := b.newResult(typ)
	b.append(Op{
		Kind:       OpConstFloat,
		Result:     res.ID,
		Type:       res.Type,
		Span:       span,
		ConstFloat: ConstFloatOp{Value: v},
	})
	return res
}

// CreateUndef yields an undefined value of the given type.
func (b *Builder) CreateUndef(span source.Span, typ TypeID) Value {
	res := b.newResult(typ)
	b.append(Op{
		Kind:   OpUndef,
		Result: res.ID,
		Type:   res.Type,
		Span:   span,
	})
	return res
}

// CreateGetGlobal yields the address of the named symbol.
func (b *Builder) CreateGetGlobal(span source.Span, name string, typ TypeID) Value {
	res := b.newResult(typ)
	b.append(Op{
		Kind:      OpGetGlobal,
		Result:    res.ID,
		Type:      res.Type,
		Span:      span,
		GetGlobal: GetGlobalOp{Name: name},
	})
	return res
}

// CreateCall emits a call with no unwind edge. The returned value is
// invalid when the result type is void.
func (b *Builder) CreateCall(span source.Span, call CallOp, resTy TypeID) Value {
	return b.createCallLike(OpCall, span, call, resTy)
}

// CreateTryCall emits a call threaded through the enclosing try scope.
func (b *Builder) CreateTryCall(span source.Span, call CallOp, resTy TypeID) Value {
	return b.createCallLike(OpTryCall, span, call, resTy)
}

func (b *Builder) createCallLike(kind OpKind, span source.Span, call CallOp, resTy TypeID) Value {
	var res Value
	if resTy != NoTypeID && !b.types.IsVoid(resTy) {
		res = b.newResult(resTy)
	}
	b.append(Op{
		Kind:   kind,
		Result: res.ID,
		Type:   res.Type,
		Span:   span,
		Call:   call,
	})
	return res
}

// CreateTry emits a try scope and returns its body and handler regions,
// each holding one empty block. The caller moves the insertion point into
// the body, emits, and restores.
func (b *Builder) CreateTry(span source.Span, synthetic bool) (body, handler *Region) {
	body = b.fn.NewRegion()
	body.NewBlock()
	handler = b.fn.NewRegion()
	handler.NewBlock()
	b.append(Op{
		Kind: OpTry,
		Span: span,
		Try:  TryOp{Synthetic: synthetic, Body: body, Handler: handler},
	})
	return body, handler
}

// CreateYield terminates the current nested region.
func (b *Builder) CreateYield(span source.Span) {
	b.append(Op{Kind: OpYield, Span: span})
}

// CreateResume terminates a handler region by continuing the unwind.
func (b *Builder) CreateResume(span source.Span) {
	b.append(Op{Kind: OpResume, Span: span})
}

// CreateReturn terminates the function body. Pass an invalid value for a
// void return.
func (b *Builder) CreateReturn(span source.Span, val Value) {
	b.append(Op{
		Kind:   OpReturn,
		Span:   span,
		Return: ReturnOp{HasValue: val.Valid(), Value: val.ID},
	})
}

// CreateVAArg fetches the next variadic argument of the given type.
func (b *Builder) CreateVAArg(span source.Span, list Value, typ TypeID) Value {
	res := b.newResult(typ)
	b.append(Op{
		Kind:   OpVAArg,
		Result: res.ID,
		Type:   res.Type,
		Span:   span,
		VAArg:  VAArgOp{List: list.ID},
	})
	return res
}

// CreateVTableFn loads the virtual function pointer at slot of object's
// vtable; fnPtrTy is the loaded pointer's type.
func (b *Builder) CreateVTableFn(span source.Span, object Value, slot uint32, fnPtrTy TypeID) Value {
	res := b.newResult(fnPtrTy)
	b.append(Op{
		Kind:     OpVTableFn,
		Result:   res.ID,
		Type:     res.Type,
		Span:     span,
		VTableFn: VTableFnOp{Object: object.ID, Slot: slot},
	})
	return res
}

// CreateAssertNonNull traps at runtime when val is null.
func (b *Builder) CreateAssertNonNull(span source.Span, val Value) {
	b.append(Op{
		Kind:          OpAssertNonNull,
		Span:          span,
		AssertNonNull: AssertNonNullOp{Val: val.ID},
	})
}
