package lower

import (
	"slices"

	"karst/internal/decl"
	"karst/internal/kir"
	"karst/internal/source"
	"karst/internal/types"
)

// RValue is an evaluated argument: a scalar machine value, or the address
// of an aggregate held in memory.
type RValue struct {
	Scalar    kir.Value
	Addr      kir.Value
	Aggregate bool
}

// ScalarRV wraps a scalar value.
func ScalarRV(v kir.Value) RValue {
	return RValue{Scalar: v}
}

// AggregateRV wraps the address of an aggregate value.
func AggregateRV(addr kir.Value) RValue {
	return RValue{Addr: addr, Aggregate: true}
}

// CallArg is one materialization slot. HasLV marks a slot bound to a live
// addressable location; consuming it as a value copies through a temporary
// first.
type CallArg struct {
	RV    RValue
	Ty    types.TypeID
	HasLV bool
}

// CallArgList collects evaluated call arguments in final left-to-right
// order.
type CallArgList struct {
	Args []CallArg
}

// Add appends a plain value argument.
func (l *CallArgList) Add(rv RValue, ty types.TypeID) {
	l.Args = append(l.Args, CallArg{RV: rv, Ty: ty})
}

// AddAddressable appends an argument bound to a live memory location.
func (l *CallArgList) AddAddressable(addr kir.Value, ty types.TypeID) {
	l.Args = append(l.Args, CallArg{RV: AggregateRV(addr), Ty: ty, HasLV: true})
}

// ArgTypes lists the source types of the collected arguments in order.
func (l *CallArgList) ArgTypes() []types.TypeID {
	out := make([]types.TypeID, len(l.Args))
	for i, a := range l.Args {
		out[i] = a.Ty
	}
	return out
}

// ArgEmitter evaluates one source argument at its sequence point,
// appending exactly one slot to the list.
type ArgEmitter func(l *CallArgList) error

// ArgInput is one call-site argument before evaluation. Param carries the
// formal it binds to when the callee declaration is known; object-size and
// non-null handling need it.
type ArgInput struct {
	Ty    types.TypeID
	Param *decl.Param
	Emit  ArgEmitter
}

// EmitCallArgs evaluates the inputs in the ABI's order and returns the
// final left-to-right argument list. When the policy destroys arguments
// left-to-right in the callee, evaluation runs right-to-left and the list
// is reversed afterwards. Implicit object-size arguments are emitted right
// after their natural argument and stay behind it in either order.
func (g *Gen) EmitCallArgs(fs *FnState, inputs []ArgInput, span source.Span) (*CallArgList, error) {
	ltr := !g.Policy.AreArgsDestroyedLeftToRightInCallee()
	list := &CallArgList{}

	for i := range inputs {
		idx := i
		if !ltr {
			idx = len(inputs) - i - 1
		}
		in := inputs[idx]
		if in.Emit == nil {
			return nil, faultf(span, "argument %d has no emitter", idx)
		}
		before := len(list.Args)
		if err := in.Emit(list); err != nil {
			return nil, err
		}
		if len(list.Args) != before+1 {
			return nil, faultf(span, "argument emitter added %d slots", len(list.Args)-before)
		}

		slot := &list.Args[len(list.Args)-1]
		if g.Opts.NullChecks && in.Param != nil && in.Param.NonNull &&
			!slot.HasLV && !slot.RV.Aggregate && slot.RV.Scalar.Valid() {
			fs.B.CreateAssertNonNull(span, slot.RV.Scalar)
		}

		if in.Param != nil && in.Param.ObjectSize != nil {
			g.emitObjectSize(fs, list, in.Param.ObjectSize, span)
			if !ltr {
				// Keep the size behind its pointer once the list flips.
				n := len(list.Args)
				list.Args[n-1], list.Args[n-2] = list.Args[n-2], list.Args[n-1]
			}
		}
	}

	if !ltr {
		slices.Reverse(list.Args)
	}
	return list, nil
}

// emitObjectSize appends the implicit size argument of a parameter marked
// to carry its object size. Without static size information the sentinel
// goes out: all-ones for kinds 0 and 1, zero for kinds 2 and 3.
func (g *Gen) emitObjectSize(fs *FnState, list *CallArgList, pos *decl.PassObjectSize, span source.Span) {
	sentinel := ^uint64(0)
	if pos.Kind&2 != 0 {
		sentinel = 0
	}
	v := fs.B.CreateConstInt(span, g.Module.Types.Builtins().U64, sentinel)
	list.Add(ScalarRV(v), g.Types.Builtins().U64)
}

// materializeArg shapes one evaluated argument into the machine value its
// parameter slot demands. Scalars coerce in registers; memory-held values
// load through the slot's shape, which may differ from their natural one.
func (g *Gen) materializeArg(fs *FnState, arg CallArg, slotTy kir.TypeID, span source.Span) (kir.Value, error) {
	ti := g.Module.Types
	if !arg.RV.Aggregate {
		slot, ok := ti.Lookup(slotTy)
		if !ok {
			return kir.Value{}, faultf(span, "parameter slot of invalid type")
		}
		if !slot.IsScalar() {
			return kir.Value{}, faultf(span, "aggregate parameter slot needs an addressable value")
		}
		if !arg.RV.Scalar.Valid() {
			return kir.Value{}, faultf(span, "missing value for a scalar parameter slot")
		}
		return g.coerceScalar(fs, arg.RV.Scalar, slotTy, span)
	}

	addr := arg.RV.Addr
	if !addr.Valid() {
		return kir.Value{}, faultf(span, "aggregate argument without an address")
	}
	if arg.HasLV {
		// The location is live elsewhere; consuming it as a value copies
		// it whole into a temporary first.
		natural := ti.Pointee(addr.Type)
		align := g.alignOf(natural)
		tmp := fs.B.CreateAlloca(span, natural, "agg.tmp", align)
		val := fs.B.CreateLoad(span, addr, align)
		fs.B.CreateStore(span, val, tmp, align)
		addr = tmp
	}

	natural := ti.Pointee(addr.Type)
	nsize, err := g.Layout.SizeOf(natural)
	if err != nil {
		return kir.Value{}, faultf(span, "layout of argument: %v", err)
	}
	csize, err := g.Layout.SizeOf(slotTy)
	if err != nil {
		return kir.Value{}, faultf(span, "layout of parameter slot: %v", err)
	}
	if nsize > csize {
		return kir.Value{}, faultf(span, "%d-byte argument for a %d-byte parameter slot", nsize, csize)
	}
	return g.loadCoerced(fs, addr, slotTy, span), nil
}

// loadCoerced reads a value of the wanted machine type out of a slot of
// the natural type. Equal shapes load directly; equal sizes load through a
// reinterpreted address; a wider wanted type round-trips through a
// temporary so the load never reads past the slot. The bits the slot does
// not cover stay undefined.
func (g *Gen) loadCoerced(fs *FnState, slot kir.Value, want kir.TypeID, span source.Span) kir.Value {
	ti := g.Module.Types
	natural := ti.Pointee(slot.Type)
	nalign := g.alignOf(natural)
	if natural == want {
		return fs.B.CreateLoad(span, slot, nalign)
	}
	nsize, nerr := g.Layout.SizeOf(natural)
	wsize, werr := g.Layout.SizeOf(want)
	if nerr == nil && werr == nil && wsize > nsize {
		walign := g.alignOf(want)
		tmp := fs.B.CreateAlloca(span, want, "coerce.spill", walign)
		window := fs.B.CreateElementBitcast(span, tmp, natural)
		v := fs.B.CreateLoad(span, slot, nalign)
		fs.B.CreateStore(span, v, window, nalign)
		return fs.B.CreateLoad(span, tmp, walign)
	}
	src := fs.B.CreateElementBitcast(span, slot, want)
	return fs.B.CreateLoad(span, src, nalign)
}

// storeCoerced writes a coerced machine value into a slot of the natural
// type. A wider value spills whole into a temporary first so the store
// never writes past the slot.
func (g *Gen) storeCoerced(fs *FnState, v, slot kir.Value, span source.Span) {
	ti := g.Module.Types
	natural := ti.Pointee(slot.Type)
	nalign := g.alignOf(natural)
	if natural == v.Type {
		fs.B.CreateStore(span, v, slot, nalign)
		return
	}
	nsize, nerr := g.Layout.SizeOf(natural)
	vsize, verr := g.Layout.SizeOf(v.Type)
	if nerr == nil && verr == nil && vsize > nsize {
		valign := g.alignOf(v.Type)
		tmp := fs.B.CreateAlloca(span, v.Type, "coerce.spill", valign)
		fs.B.CreateStore(span, v, tmp, valign)
		window := fs.B.CreateElementBitcast(span, tmp, natural)
		nv := fs.B.CreateLoad(span, window, nalign)
		fs.B.CreateStore(span, nv, slot, nalign)
		return
	}
	dst := fs.B.CreateElementBitcast(span, slot, v.Type)
	fs.B.CreateStore(span, v, dst, nalign)
}

// coerceScalar widens or reinterprets a scalar for its parameter slot.
// Truncation never happens silently.
func (g *Gen) coerceScalar(fs *FnState, v kir.Value, slotTy kir.TypeID, span source.Span) (kir.Value, error) {
	if v.Type == slotTy {
		return v, nil
	}
	ti := g.Module.Types
	have := ti.MustLookup(v.Type)
	want := ti.MustLookup(slotTy)

	switch {
	case have.Kind == kir.KindInt && want.Kind == kir.KindInt:
		if have.Width > want.Width {
			return kir.Value{}, faultf(span, "scalar truncation from %d to %d bits", have.Width, want.Width)
		}
		if have.Width < want.Width {
			return fs.B.CreateIntCast(span, v, slotTy), nil
		}
		return fs.B.CreateBitcast(span, v, slotTy), nil
	case have.Kind == kir.KindFloat && want.Kind == kir.KindFloat:
		if have.Width > want.Width {
			return kir.Value{}, faultf(span, "floating truncation from %d to %d bits", have.Width, want.Width)
		}
		return fs.B.CreateCast(span, kir.CastFloating, v, slotTy), nil
	case have.Kind == kir.KindBool && want.Kind == kir.KindInt:
		return fs.B.CreateCast(span, kir.CastBoolToInt, v, slotTy), nil
	default:
		hsize, herr := g.Layout.SizeOf(v.Type)
		wsize, werr := g.Layout.SizeOf(slotTy)
		if herr == nil && werr == nil && hsize == wsize {
			return fs.B.CreateBitcast(span, v, slotTy), nil
		}
		return kir.Value{}, faultf(span, "cannot place %s in a %s parameter slot",
			kir.TypeString(ti, v.Type), kir.TypeString(ti, slotTy))
	}
}

// ForwardParamArg turns an already-lowered parameter's local slot back into
// a call argument, for delegating one variant of a function to another.
// Aggregates forward their address uncopied; scalars reload the slot.
func (g *Gen) ForwardParamArg(fs *FnState, list *CallArgList, idx int, span source.Span) error {
	if idx < 0 || idx >= len(fs.ParamSlots) {
		return faultf(span, "forward of parameter %d of %d", idx, len(fs.ParamSlots))
	}
	slot := fs.ParamSlots[idx]
	srcTy := fs.FI.Args[idx]
	if tt, ok := g.Types.Lookup(srcTy); ok && tt.Kind == types.KindRecord {
		list.Add(AggregateRV(slot), srcTy)
		return nil
	}
	elem := g.Module.Types.Pointee(slot.Type)
	v := fs.B.CreateLoad(span, slot, g.alignOf(elem))
	list.Add(ScalarRV(v), srcTy)
	return nil
}
