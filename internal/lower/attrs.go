package lower

import (
	"karst/internal/abi"
	"karst/internal/decl"
	"karst/internal/kir"
	"karst/internal/source"
	"karst/internal/types"
)

// synthAttrs derives the side-effect class and the attribute set for one
// call site (attrOnCallSite true) or function definition. fn is nil for
// calls through bare function pointers; only type-level properties apply
// then. isVirtual marks virtually dispatched call sites.
func (g *Gen) synthAttrs(fn *decl.Func, fi *abi.FuncInfo, attrOnCallSite, isVirtual bool) (kir.SideEffect, kir.AttrSet) {
	se := kir.SideEffectAll
	var attrs kir.AttrSet

	if g.Opts.DeviceCompile {
		// Device dialects assume convergent, non-unwinding calls; later
		// passes relax both where provably safe.
		attrs.Convergent = true
		attrs.NoThrow = true
	}

	if fi != nil && fi.NoReturn {
		attrs.NoReturn = true
	}

	if fn != nil {
		// A bare noalias annotation is classification-neutral: it
		// promotes to neither pure nor const.
		if fn.Attrs.Has(decl.AttrConst) {
			se = kir.SideEffectConst
		} else if fn.Attrs.Has(decl.AttrPure) {
			se = kir.SideEffectPure
		}

		if fn.Attrs.Has(decl.AttrNoThrow) {
			attrs.NoThrow = true
		}
		// An unresolved exception spec never proves nothrow.
		if info, ok := g.Types.FnInfo(fn.Type); ok && info.Except.IsNothrow() {
			attrs.NoThrow = true
		}

		// The runtime-dispatched target of a virtual call may not share
		// these, so they only propagate to direct call sites.
		if !(attrOnCallSite && isVirtual) {
			if fn.Attrs.Has(decl.AttrNoReturn) {
				attrs.NoReturn = true
			}
			if fn.Attrs.Has(decl.AttrNoBuiltin) {
				attrs.NoBuiltin = true
			}
		}
		if attrOnCallSite && fn.Attrs.Has(decl.AttrNoMerge) {
			attrs.NoMerge = true
		}
		if fn.Attrs.Has(decl.AttrConvergent) {
			attrs.Convergent = true
		}
		if fn.Attrs.Has(decl.AttrAlwaysInline) {
			attrs.AlwaysInline = true
		} else if fn.Attrs.Has(decl.AttrNoInline) {
			attrs.NoInline = true
		}

		if fn.Attrs.Has(decl.AttrOffloadKernel) {
			if attrOnCallSite && !g.Opts.DeviceCompile {
				// Host-side launch of a device kernel: record the kernel
				// symbol for the launch machinery.
				attrs.KernelName = fn.Name
			} else {
				attrs.OffloadKernel = true
				if g.Opts.DialectVersion < 2 || g.Opts.UniformWorkGroup {
					attrs.UniformWorkGroup = true
				}
			}
		}
	}

	if fi != nil {
		if fi.NoCallerSavedRegs {
			attrs.NoCallerSavedRegs = true
		}
		if fi.NoCfCheck {
			attrs.NoCfCheck = true
		}
	}

	if !attrOnCallSite && g.Opts.O0 && !attrs.AlwaysInline {
		attrs.OptNone = true
		attrs.NoInline = true
	}

	return se, attrs
}

// lowerCallConv maps an effective source convention onto the machine one.
func lowerCallConv(cc types.CallConv, span source.Span) (kir.CallingConv, error) {
	switch cc {
	case types.CallConvDefault:
		return kir.CallingConvC, nil
	case types.CallConvDeviceKernel:
		return kir.CallingConvDeviceKernel, nil
	default:
		return kir.CallingConvC, unimplementedf(span, "calling convention %v", cc)
	}
}
