package lower

import (
	"slices"

	"karst/internal/abi"
	"karst/internal/decl"
	"karst/internal/source"
	"karst/internal/types"
)

type arrangeFlags struct {
	instance  bool
	chainCall bool
}

// arrangeFnInfo funnels every arrangement through one descriptor build.
// The cache makes structurally identical signatures pointer-identical,
// which is what the conversion re-entrancy guard keys on.
func (g *Gen) arrangeFnInfo(ret types.TypeID, args []types.TypeID, exts []types.ExtParamInfo, ext types.ExtInfo, required abi.RequiredArgs, flags arrangeFlags) *abi.FuncInfo {
	return g.sigs.Intern(abi.New(abi.FuncInfo{
		CC:                g.Policy.CanonCC(ext.CC),
		DeclCC:            ext.CC,
		InstanceMethod:    flags.instance,
		ChainCall:         flags.chainCall,
		NoReturn:          ext.NoReturn,
		ReturnsRetained:   ext.ProducesResult,
		NoCallerSavedRegs: ext.NoCallerSavedRegs,
		NoCfCheck:         ext.NoCfCheck,
		HasRegParm:        ext.HasRegParm,
		RegParm:           ext.RegParm,
		Required:          required,
		Ret:               g.Types.WithoutCV(ret),
		Args:              args,
		ExtParams:         exts,
	}))
}

// receiverType derives the implicit receiver: a pointer to the parent
// record whose pointee drops cv-qualification but keeps the method's
// address space. A declaration without a parent receives a void pointer.
func (g *Gen) receiverType(fn *decl.Func) types.TypeID {
	parent := fn.Parent
	if parent == types.NoTypeID {
		parent = g.Types.Builtins().Void
	}
	parent = g.Types.WithoutCV(parent)
	if fn.MethodAddrSpace != types.AddrSpaceDefault {
		parent = g.Types.WithAddrSpace(parent, fn.MethodAddrSpace)
	}
	return g.Types.Intern(types.MakePointer(parent))
}

// appendParams adds a prototype's formals after any already-inserted prefix
// arguments, expanding each object-size parameter into a value plus a size
// argument right behind it. The ext-info list stays empty unless the
// prototype carries ext-param info.
func (g *Gen) appendParams(args []types.TypeID, exts []types.ExtParamInfo, info *types.FnInfo) ([]types.TypeID, []types.ExtParamInfo) {
	if len(info.ExtParams) == 0 {
		return append(args, info.Params...), exts
	}
	for len(exts) < len(args) {
		exts = append(exts, types.ExtParamInfo{})
	}
	sizeTy := g.Types.Builtins().U64
	for i, p := range info.Params {
		args = append(args, p)
		exts = append(exts, info.ExtParams[i])
		if info.ExtParams[i].HasPassObjectSize {
			args = append(args, sizeTy)
			exts = append(exts, types.ExtParamInfo{})
		}
	}
	return args, exts
}

// ArrangeFreeFnType arranges a free function type. Unprototyped types are
// always variadic with zero required arguments.
func (g *Gen) ArrangeFreeFnType(fnType types.TypeID) (*abi.FuncInfo, error) {
	tt, ok := g.Types.Lookup(fnType)
	if !ok || !tt.IsFn() {
		return nil, faultf(source.Span{}, "arrange of a non-function type")
	}
	info, _ := g.Types.FnInfo(fnType)
	if tt.Kind == types.KindFnNoProto {
		return g.arrangeFnInfo(info.Ret, nil, nil, info.Ext, abi.RequireFirst(0), arrangeFlags{}), nil
	}
	required := abi.ForPrototypePlus(info, 0)
	args, exts := g.appendParams(nil, nil, info)
	return g.arrangeFnInfo(info.Ret, args, exts, info.Ext, required, arrangeFlags{}), nil
}

// ArrangeFnDecl arranges a declaration of any kind. Structor declarations
// default to the complete variant; use ArrangeRef to pick another.
func (g *Gen) ArrangeFnDecl(fn *decl.Func) (*abi.FuncInfo, error) {
	return g.ArrangeRef(decl.FreeRef(fn))
}

// ArrangeRef arranges a declaration reference, dispatching on its kind.
func (g *Gen) ArrangeRef(ref decl.Ref) (*abi.FuncInfo, error) {
	fn := ref.Fn
	if fn == nil {
		return nil, faultf(source.Span{}, "arrange of a nil declaration")
	}
	switch fn.Kind {
	case decl.KindCtor, decl.KindDtor:
		return g.ArrangeStructorDecl(ref)
	case decl.KindMethod:
		return g.ArrangeMethodDecl(fn)
	case decl.KindFree:
	default:
		return nil, faultf(fn.Span, "arrange of %v declaration", fn.Kind)
	}

	fnType := g.kernelAdjustedType(fn)
	tt, ok := g.Types.Lookup(fnType)
	if !ok || !tt.IsFn() {
		return nil, faultf(fn.Span, "declaration %s has no function type", fn.Name)
	}
	if tt.Kind == types.KindFnNoProto {
		// A declaration without a prototype is not variadic; only calls
		// through the bare type are.
		info, _ := g.Types.FnInfo(fnType)
		return g.arrangeFnInfo(info.Ret, nil, nil, info.Ext, abi.AllArgs(), arrangeFlags{}), nil
	}
	return g.ArrangeFreeFnType(fnType)
}

// kernelAdjustedType rewrites the declared convention of offload kernels
// before arranging, so argument classification sees the device convention
// rather than the source-declared one.
func (g *Gen) kernelAdjustedType(fn *decl.Func) types.TypeID {
	if !fn.Attrs.Has(decl.AttrOffloadKernel) {
		return fn.Type
	}
	info, ok := g.Types.FnInfo(fn.Type)
	if !ok {
		return fn.Type
	}
	kcc := g.Policy.KernelCC()
	if info.Ext.CC == kcc {
		return fn.Type
	}
	adjusted := *info
	adjusted.Ext.CC = kcc
	if tt := g.Types.MustLookup(fn.Type); tt.Kind == types.KindFnNoProto {
		return g.Types.RegisterFnNoProto(adjusted.Ret, adjusted.Ext)
	}
	return g.Types.RegisterFnProto(adjusted)
}

// ArrangeMethodDecl arranges an instance method: the receiver pointer is
// prepended, the formals follow.
func (g *Gen) ArrangeMethodDecl(fn *decl.Func) (*abi.FuncInfo, error) {
	fnType := g.kernelAdjustedType(fn)
	info, ok := g.Types.FnInfo(fnType)
	if !ok {
		return nil, faultf(fn.Span, "method %s has no function type", fn.Name)
	}
	args := []types.TypeID{g.receiverType(fn)}
	required := abi.ForPrototypePlus(info, len(args))
	args, exts := g.appendParams(args, nil, info)
	return g.arrangeFnInfo(info.Ret, args, exts, info.Ext, required, arrangeFlags{instance: true}), nil
}

// structorPassParams reports whether the variant forwards the declared
// formals. An inheriting constructor drops them when lowering a base
// variant whose inherited constructor builds a virtual base under an ABI
// with separate constructor variants; the virtual base is someone else's
// job there.
func (g *Gen) structorPassParams(ref decl.Ref) bool {
	fn := ref.Fn
	if fn.Kind != decl.KindCtor || fn.Inherited == nil {
		return true
	}
	return ref.Variant == decl.StructorComplete ||
		!fn.Inherited.ConstructsVirtualBase ||
		!g.Policy.HasConstructorVariants()
}

// ArrangeStructorDecl arranges one constructor or destructor variant: the
// receiver first, then the formals (unless elided), with the ABI policy's
// implicit arguments spliced in as a prefix after the receiver and a
// suffix after everything else.
func (g *Gen) ArrangeStructorDecl(ref decl.Ref) (*abi.FuncInfo, error) {
	fn := ref.Fn
	if fn == nil || !fn.IsStructor() {
		return nil, faultf(source.Span{}, "structor arrange of a non-structor")
	}
	info, ok := g.Types.FnInfo(fn.Type)
	if !ok {
		return nil, faultf(fn.Span, "structor %s has no function type", fn.Name)
	}

	args := []types.TypeID{g.receiverType(fn)}
	var exts []types.ExtParamInfo

	passParams := g.structorPassParams(ref)
	if passParams {
		args, exts = g.appendParams(args, exts, info)
	}

	prefix, suffix := g.Policy.StructorArgs(g.Types, ref)
	if len(prefix) > 0 {
		args = slices.Insert(args, 1, prefix...)
		if len(exts) > 0 {
			exts = slices.Insert(exts, 1, make([]types.ExtParamInfo, len(prefix))...)
		}
	}
	if len(suffix) > 0 {
		args = append(args, suffix...)
		if len(exts) > 0 {
			exts = append(exts, make([]types.ExtParamInfo, len(suffix))...)
		}
	}

	// The required count is fixed only after the ABI arguments are in.
	required := abi.AllArgs()
	if passParams && info.Variadic {
		required = abi.RequireFirst(len(args))
	}

	var ret types.TypeID
	switch {
	case g.Policy.HasThisReturn(ref):
		ret = args[0]
	case g.Policy.HasMostDerivedReturn(ref):
		ret = g.Types.Intern(types.MakePointer(g.Types.Builtins().Void))
	default:
		ret = g.Types.Builtins().Void
	}

	return g.arrangeFnInfo(ret, args, exts, info.Ext, required, arrangeFlags{instance: true}), nil
}

// ArrangeFreeFnCall arranges a call through a free function type from the
// actual evaluated argument list. A chain call reserves the first argument.
func (g *Gen) ArrangeFreeFnCall(argTypes []types.TypeID, fnType types.TypeID, chainCall bool) (*abi.FuncInfo, error) {
	extra := 0
	if chainCall {
		extra = 1
	}
	return g.arrangeFreeLikeCall(argTypes, fnType, extra, arrangeFlags{chainCall: chainCall})
}

func (g *Gen) arrangeFreeLikeCall(argTypes []types.TypeID, fnType types.TypeID, extraRequired int, flags arrangeFlags) (*abi.FuncInfo, error) {
	tt, ok := g.Types.Lookup(fnType)
	if !ok || !tt.IsFn() {
		return nil, faultf(source.Span{}, "call through a non-function type")
	}
	if len(argTypes) < extraRequired {
		return nil, faultf(source.Span{}, "call passes %d args, needs %d prefix args", len(argTypes), extraRequired)
	}
	info, _ := g.Types.FnInfo(fnType)

	required := abi.AllArgs()
	var exts []types.ExtParamInfo
	if tt.Kind == types.KindFnProto {
		if info.Variadic {
			required = abi.ForPrototypePlus(info, extraRequired)
		}
		if len(info.ExtParams) != 0 {
			exts = callExtParams(info, extraRequired, len(argTypes))
			if len(exts) > len(argTypes) {
				return nil, faultf(source.Span{}, "call passes %d args, prototype needs %d", len(argTypes), len(exts))
			}
		}
	} else if g.Policy.NoProtoCallVariadic(info.Ext.CC) {
		// No prototype, but the target wants the variadic convention for
		// such calls: everything supplied is required, more could follow.
		required = abi.RequireFirst(len(argTypes))
	}

	return g.arrangeFnInfo(info.Ret, unqualifiedArgs(g.Types, argTypes), exts, info.Ext, required, flags), nil
}

// ArrangeMethodCall arranges a method call site from the actual argument
// list. The receiver is args[0]; extraPrefix counts ABI arguments between
// it and the formals. The required marker comes from the callee's own
// arrangement.
func (g *Gen) ArrangeMethodCall(argTypes []types.TypeID, fnType types.TypeID, required abi.RequiredArgs, extraPrefix int) (*abi.FuncInfo, error) {
	info, ok := g.Types.FnInfo(fnType)
	if !ok {
		return nil, faultf(source.Span{}, "method call through a non-function type")
	}
	totalPrefix := 1 + extraPrefix
	if len(argTypes) < totalPrefix {
		return nil, faultf(source.Span{}, "method call passes %d args, needs %d prefix args", len(argTypes), totalPrefix)
	}
	var exts []types.ExtParamInfo
	if len(info.ExtParams) != 0 {
		exts = callExtParams(info, totalPrefix, len(argTypes))
		if len(exts) > len(argTypes) {
			return nil, faultf(source.Span{}, "method call passes %d args, prototype needs %d", len(argTypes), len(exts))
		}
	}
	return g.arrangeFnInfo(info.Ret, unqualifiedArgs(g.Types, argTypes), exts, info.Ext, required, arrangeFlags{instance: true}), nil
}

// ArrangeCtorCall arranges a constructor call site. The argument list
// already carries the receiver as args[0] plus any ABI prefix and suffix
// arguments; passProto is false when an inheriting constructor elides the
// formals.
func (g *Gen) ArrangeCtorCall(argTypes []types.TypeID, ref decl.Ref, extraPrefix, extraSuffix int, passProto bool) (*abi.FuncInfo, error) {
	fn := ref.Fn
	if fn == nil || fn.Kind != decl.KindCtor {
		return nil, faultf(source.Span{}, "constructor call through a non-constructor")
	}
	if len(argTypes) == 0 {
		return nil, faultf(fn.Span, "constructor call without a receiver")
	}
	info, ok := g.Types.FnInfo(fn.Type)
	if !ok {
		return nil, faultf(fn.Span, "constructor %s has no function type", fn.Name)
	}

	totalPrefix := 1 + extraPrefix
	required := abi.AllArgs()
	if passProto {
		required = abi.ForPrototypePlus(info, totalPrefix+extraSuffix)
	}

	var exts []types.ExtParamInfo
	if passProto && len(info.ExtParams) != 0 {
		// Suffix arguments ride behind the formals like a variadic tail.
		exts = callExtParams(info, totalPrefix, len(argTypes))
		if len(exts) > len(argTypes) {
			return nil, faultf(fn.Span, "constructor call passes %d args, prototype needs %d", len(argTypes), len(exts))
		}
	}

	var ret types.TypeID
	switch {
	case g.Policy.HasThisReturn(ref):
		ret = argTypes[0]
	case g.Policy.HasMostDerivedReturn(ref):
		ret = g.Types.Intern(types.MakePointer(g.Types.Builtins().Void))
	default:
		ret = g.Types.Builtins().Void
	}

	return g.arrangeFnInfo(ret, unqualifiedArgs(g.Types, argTypes), exts, info.Ext, required, arrangeFlags{instance: true}), nil
}

// ArrangeCall extends a variadic signature to the actual argument list of
// one call site. A signature that already covers the arguments is returned
// unchanged.
func (g *Gen) ArrangeCall(sig *abi.FuncInfo, argTypes []types.TypeID) (*abi.FuncInfo, error) {
	if sig == nil {
		return nil, faultf(source.Span{}, "call extension of a nil signature")
	}
	if len(argTypes) < sig.NumArgs() {
		return nil, faultf(source.Span{}, "call passes %d args, signature carries %d", len(argTypes), sig.NumArgs())
	}
	if len(argTypes) == sig.NumArgs() {
		return sig, nil
	}
	if !sig.Required.AllowsOptionalArgs() {
		return nil, faultf(source.Span{}, "extra arguments on a non-variadic signature")
	}

	var exts []types.ExtParamInfo
	if len(sig.ExtParams) != 0 {
		exts = make([]types.ExtParamInfo, len(argTypes))
		copy(exts, sig.ExtParams)
	}
	ext := types.ExtInfo{
		CC:                sig.DeclCC,
		NoReturn:          sig.NoReturn,
		ProducesResult:    sig.ReturnsRetained,
		NoCallerSavedRegs: sig.NoCallerSavedRegs,
		NoCfCheck:         sig.NoCfCheck,
		HasRegParm:        sig.HasRegParm,
		RegParm:           sig.RegParm,
	}
	flags := arrangeFlags{instance: sig.InstanceMethod, chainCall: sig.ChainCall}
	return g.arrangeFnInfo(sig.Ret, unqualifiedArgs(g.Types, argTypes), exts, ext, sig.Required, flags), nil
}

// ArrangeNullaryFn arranges "void f()" for compiler-synthesized helpers.
func (g *Gen) ArrangeNullaryFn() *abi.FuncInfo {
	return g.arrangeFnInfo(g.Types.Builtins().Void, nil, nil, types.ExtInfo{}, abi.AllArgs(), arrangeFlags{})
}

// callExtParams maps a prototype's ext-param info onto an actual argument
// list: defaults for the prefix slots, the prototype's entries with a
// default slot after each object-size parameter, defaults for the tail.
func callExtParams(info *types.FnInfo, prefixArgs, totalArgs int) []types.ExtParamInfo {
	exts := make([]types.ExtParamInfo, prefixArgs, max(prefixArgs, totalArgs))
	for _, ep := range info.ExtParams {
		exts = append(exts, ep)
		if ep.HasPassObjectSize {
			exts = append(exts, types.ExtParamInfo{})
		}
	}
	for len(exts) < totalArgs {
		exts = append(exts, types.ExtParamInfo{})
	}
	return exts
}

// unqualifiedArgs strips cv from each call-site argument type.
func unqualifiedArgs(in *types.Interner, argTypes []types.TypeID) []types.TypeID {
	out := make([]types.TypeID, len(argTypes))
	for i, t := range argTypes {
		out[i] = in.WithoutCV(t)
	}
	return out
}
