package lower

import (
	"fmt"

	"karst/internal/abi"
	"karst/internal/decl"
	"karst/internal/kir"
	"karst/internal/source"
	"karst/internal/trace"
	"karst/internal/types"
)

type calleeKind uint8

const (
	calleeDirect calleeKind = iota
	calleeIndirect
	calleeVirtual
)

// Callee names the target of one call: a declaration called by symbol, a
// function-pointer value, or a declaration dispatched through its vtable.
type Callee struct {
	kind calleeKind
	ref  decl.Ref
	ptr  kir.Value
}

// DirectCallee targets a declaration by symbol.
func DirectCallee(ref decl.Ref) Callee {
	return Callee{kind: calleeDirect, ref: ref}
}

// IndirectCallee targets a function-pointer value. fn, when known, supplies
// declaration attributes; nil means a bare pointer.
func IndirectCallee(ptr kir.Value, fn *decl.Func) Callee {
	return Callee{kind: calleeIndirect, ref: decl.FreeRef(fn), ptr: ptr}
}

// VirtualCallee dispatches fn through the receiver's vtable.
func VirtualCallee(fn *decl.Func) Callee {
	return Callee{kind: calleeVirtual, ref: decl.FreeRef(fn)}
}

// IsVirtual reports whether the call dispatches through a vtable.
func (c Callee) IsVirtual() bool {
	return c.kind == calleeVirtual
}

// Fn returns the callee's declaration, or nil for a bare pointer.
func (c Callee) Fn() *decl.Func {
	return c.ref.Fn
}

func (c Callee) describe() string {
	switch c.kind {
	case calleeIndirect:
		return "indirect"
	case calleeVirtual:
		return "virtual " + c.ref.String()
	default:
		return c.ref.String()
	}
}

// ReturnValue is what a call produced: a scalar machine value, or the
// address of the slot holding an aggregate result.
type ReturnValue struct {
	V         kir.Value
	Aggregate bool
}

// CallOpts adjust one emission. RetSlot, when valid, receives an aggregate
// result in place of a fresh temporary.
type CallOpts struct {
	RetSlot  kir.Value
	MustTail bool
}

// EmitCall lowers one call. The signature must be the call site's arranged
// descriptor and args must already sit in canonical order; each argument is
// materialized into its parameter slot's machine shape, the target is
// resolved, attributes are synthesized, and the call lands inside the
// unwind scope the lexical state demands.
func (g *Gen) EmitCall(fs *FnState, fi *abi.FuncInfo, callee Callee, args *CallArgList, opts CallOpts, span source.Span) (ReturnValue, error) {
	if fi == nil {
		return ReturnValue{}, faultf(span, "call emission without a signature")
	}
	if args == nil {
		return ReturnValue{}, faultf(span, "call emission without an argument list")
	}
	if fi.IndirectRecord != types.NoTypeID {
		return ReturnValue{}, unimplementedf(span, "inalloca argument blocks")
	}
	if opts.MustTail {
		return ReturnValue{}, unimplementedf(span, "must-tail calls")
	}
	if g.Policy.RecordParamDestroyedInCallee() {
		for _, a := range args.Args {
			if tt, ok := g.Types.Lookup(a.Ty); ok && tt.Kind == types.KindRecord {
				return ReturnValue{}, unimplementedf(span, "record parameters destroyed in the callee")
			}
		}
	}
	if len(args.Args) != fi.NumArgs() {
		return ReturnValue{}, faultf(span, "call passes %d args, signature has %d", len(args.Args), fi.NumArgs())
	}
	if callee.kind != calleeDirect && fi.CC != types.CallConvDefault {
		return ReturnValue{}, unimplementedf(span, "non-default convention on an indirect call")
	}

	ti := g.Module.Types
	fnTy, err := g.lowerFnType(fi)
	if err != nil {
		return ReturnValue{}, err
	}
	mfn, ok := ti.FnTy(fnTy)
	if !ok {
		return ReturnValue{}, faultf(span, "signature lowered to a non-function type")
	}

	vals := make([]kir.ValueID, len(args.Args))
	for i, a := range args.Args {
		v, err := g.materializeArg(fs, a, mfn.Params[i], span)
		if err != nil {
			return ReturnValue{}, err
		}
		vals[i] = v.ID
	}

	var target kir.Callee
	var declOp *kir.FuncOp
	switch callee.kind {
	case calleeDirect:
		declOp, err = g.DeclareFn(callee.ref, nil)
		if err != nil {
			return ReturnValue{}, err
		}
		target = kir.DirectCallee(declOp.Name)
	case calleeIndirect:
		if !callee.ptr.Valid() {
			return ReturnValue{}, faultf(span, "indirect call without a target value")
		}
		target = kir.IndirectCallee(callee.ptr.ID)
	case calleeVirtual:
		if len(vals) == 0 {
			return ReturnValue{}, faultf(span, "virtual call without a receiver")
		}
		this := kir.Value{ID: vals[0], Type: mfn.Params[0]}
		vptr := fs.B.CreateVTableFn(span, this, callee.Fn().VTableSlot, ti.PtrTo(fnTy))
		target = kir.IndirectCallee(vptr.ID)
	}

	se, attrs := g.synthAttrs(callee.Fn(), fi, true, callee.IsVirtual())
	mcc, err := lowerCallConv(fi.CC, span)
	if err != nil {
		return ReturnValue{}, err
	}

	if fs.inSEHTry() {
		return ReturnValue{}, unimplementedf(span, "SEH unwind scopes")
	}
	cannotThrow := (fs.innermostScope() == ScopeCleanup && g.Opts.Personality == PersonalityMSVC) ||
		attrs.NoThrow ||
		(declOp != nil && declOp.Attrs.NoThrow)
	mayUnwind := g.Opts.Exceptions && !cannotThrow

	retTy := mfn.Ret
	isVoid := ti.IsVoid(retTy)
	retRec := false
	if tt, ok := g.Types.Lookup(fi.Ret); ok && tt.Kind == types.KindRecord {
		retRec = true
	}
	var aggSlot kir.Value
	if retRec {
		aggSlot = opts.RetSlot
		if !aggSlot.Valid() {
			natural, err := g.convertType(fi.Ret)
			if err != nil {
				return ReturnValue{}, err
			}
			aggSlot = fs.B.CreateAlloca(span, natural, "tmp.call.ret", g.alignOf(natural))
		}
	}

	call := kir.CallOp{
		Callee:     target,
		Args:       vals,
		CC:         mcc,
		SideEffect: se,
		Attrs:      attrs,
	}

	var raw kir.Value
	switch {
	case !mayUnwind:
		raw = fs.B.CreateCall(span, call, retTy)
	case fs.closestTry() != nil:
		raw = fs.B.CreateTryCall(span, call, retTy)
	default:
		// No enclosing try: wrap the call in a synthetic one whose handler
		// only resumes. Scalar results round-trip through a slot in the
		// outer region; values defined inside the body stay there.
		var viaTmp kir.Value
		if !isVoid && !retRec {
			viaTmp = fs.B.CreateAlloca(span, retTy, "tmp.try.call.res", g.alignOf(retTy))
		}
		body, handler := fs.B.CreateTry(span, true)
		saved := fs.B.InsertionPoint()
		fs.B.SetInsertionPoint(handler.Entry())
		fs.B.CreateResume(span)
		fs.B.SetInsertionPoint(body.Entry())
		raw = fs.B.CreateTryCall(span, call, retTy)
		if retRec && raw.Valid() {
			g.storeCoerced(fs, raw, aggSlot, span)
			raw = kir.Value{}
		} else if viaTmp.Valid() {
			fs.B.CreateStore(span, raw, viaTmp, g.alignOf(retTy))
		}
		fs.B.CreateYield(span)
		fs.B.Restore(saved)
		if viaTmp.Valid() {
			raw = fs.B.CreateLoad(span, viaTmp, g.alignOf(retTy))
		}
	}

	trace.Point(g.tracer, trace.ScopeCall, "call "+callee.describe(),
		fmt.Sprintf("%d args, unwind=%t", len(vals), mayUnwind), fs.spanLink())

	if retRec {
		if raw.Valid() {
			g.storeCoerced(fs, raw, aggSlot, span)
		}
		return ReturnValue{V: aggSlot, Aggregate: true}, nil
	}
	if isVoid {
		return ReturnValue{}, nil
	}
	return ReturnValue{V: raw}, nil
}
