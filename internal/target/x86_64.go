package target

import (
	"karst/internal/decl"
	"karst/internal/kir"
	"karst/internal/layout"
	"karst/internal/types"
)

func init() {
	Register(X86_64SysV{})
}

// X86_64SysV is the System V x86-64 policy with Itanium structor rules.
// Records up to sixteen bytes coerce into integer register chunks; larger
// ones go to memory. Arguments are destroyed by the caller, so evaluation
// stays left to right.
type X86_64SysV struct{}

// Name returns the target triple.
func (X86_64SysV) Name() string {
	return "x86_64-linux-gnu"
}

// Layout describes the target for the data layout engine.
func (X86_64SysV) Layout() layout.Target {
	return layout.X86_64LinuxGNU()
}

// CanonCC collapses conventions that re-state the platform default.
func (X86_64SysV) CanonCC(cc types.CallConv) types.CallConv {
	if cc == types.CallConvSysV64 {
		return types.CallConvDefault
	}
	return cc
}

// KernelCC is the convention offload kernels run under.
func (X86_64SysV) KernelCC() types.CallConv {
	return types.CallConvDeviceKernel
}

// NoProtoCallVariadic reports that unprototyped calls take the variadic
// path; the System V save-area setup tolerates any argument count.
func (X86_64SysV) NoProtoCallVariadic(types.CallConv) bool {
	return true
}

// AreArgsDestroyedLeftToRightInCallee is false: the caller destroys
// arguments, in reverse construction order.
func (X86_64SysV) AreArgsDestroyedLeftToRightInCallee() bool {
	return false
}

// RecordParamDestroyedInCallee is false under the Itanium ABI.
func (X86_64SysV) RecordParamDestroyedInCallee() bool {
	return false
}

// HasConstructorVariants is true: complete and base constructor bodies
// are emitted separately.
func (X86_64SysV) HasConstructorVariants() bool {
	return true
}

// StructorArgs inserts the VTT pointer on base-variant structors of
// records with virtual bases. No variant takes suffix arguments.
func (X86_64SysV) StructorArgs(in *types.Interner, ref decl.Ref) (prefix, suffix []types.TypeID) {
	fn := ref.Fn
	if fn == nil || !fn.IsStructor() || ref.Variant != decl.StructorBase {
		return nil, nil
	}
	info, ok := in.RecordInfo(fn.Parent)
	if !ok || !info.HasVirtualBases {
		return nil, nil
	}
	vtt := in.Intern(types.MakePointer(in.Builtins().Void))
	return []types.TypeID{vtt}, nil
}

// HasThisReturn is false; returning the receiver is an ARM and Microsoft
// convention.
func (X86_64SysV) HasThisReturn(decl.Ref) bool {
	return false
}

// HasMostDerivedReturn is false; only Microsoft deleting destructors
// return the most-derived pointer.
func (X86_64SysV) HasMostDerivedReturn(decl.Ref) bool {
	return false
}

// CoerceRecord classifies a record by size: up to eight bytes travel as
// one integer chunk of exactly the record's width, nine to sixteen as a
// pair of eight-byte chunks, anything larger in memory.
func (X86_64SysV) CoerceRecord(in *kir.Interner, size int) (kir.TypeID, bool) {
	switch {
	case size <= 0 || size > 16:
		return kir.NoTypeID, false
	case size <= 8:
		return in.IntN(uint16(size*8), false), true
	default:
		return in.Intern(kir.MakeArray(in.Builtins().U64, 2)), true
	}
}

// ExtendAttr extends bools and sub-32-bit integers at function
// boundaries, by signedness. Wider scalars pass unchanged.
func (X86_64SysV) ExtendAttr(tt types.Type) kir.ExtKind {
	switch tt.Kind {
	case types.KindBool:
		return kir.ExtZero
	case types.KindInt:
		if tt.Width >= types.Width32 {
			return kir.ExtNone
		}
		if tt.Signed {
			return kir.ExtSign
		}
		return kir.ExtZero
	default:
		return kir.ExtNone
	}
}
