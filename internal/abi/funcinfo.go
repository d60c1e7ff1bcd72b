// Package abi defines the function-signature descriptor: the immutable ABI
// contract of one callable, produced by signature arranging and consumed by
// call emission. Descriptors describe signatures in source-type terms; the
// machine-type mapping happens later, during lowering.
package abi

import (
	"fmt"
	"slices"

	"fortio.org/safecast"

	"karst/internal/types"
)

// RequiredArgs encodes how many leading arguments a signature demands.
// Three states: all arguments required (non-variadic signatures), a required
// prefix of K arguments with the rest optional (prototyped variadics), and
// the K = 0 case, an unrestricted variadic. The zero value requires every
// argument.
type RequiredArgs struct {
	state uint32 // 0 = all required, otherwise 1 + required prefix length
}

// AllArgs marks every argument as required.
func AllArgs() RequiredArgs {
	return RequiredArgs{}
}

// RequireFirst marks the first n arguments as required and the rest optional.
func RequireFirst(n int) RequiredArgs {
	v, err := safecast.Conv[uint32](n)
	if err != nil || v == ^uint32(0) {
		panic(fmt.Errorf("abi: required count %d out of range", n))
	}
	return RequiredArgs{state: v + 1}
}

// ForPrototypePlus computes the marker for a prototyped function type with
// additional implicit arguments inserted ahead of the formals. Non-variadic
// prototypes require everything; variadic ones require exactly the formals
// plus the implicits. Parameters carrying an object size count double: the
// synthetic size argument is required alongside its pointer.
func ForPrototypePlus(fn *types.FnInfo, additional int) RequiredArgs {
	if fn == nil || !fn.Variadic {
		return AllArgs()
	}
	for _, ep := range fn.ExtParams {
		if ep.HasPassObjectSize {
			additional++
		}
	}
	return RequireFirst(len(fn.Params) + additional)
}

// AllowsOptionalArgs reports whether calls may pass arguments past the
// required prefix.
func (r RequiredArgs) AllowsOptionalArgs() bool {
	return r.state != 0
}

// NumRequired returns the required prefix length. Panics when every argument
// is required; callers check AllowsOptionalArgs first.
func (r RequiredArgs) NumRequired() int {
	if r.state == 0 {
		panic("abi: required prefix of a non-variadic signature")
	}
	return int(r.state - 1)
}

// FuncInfo describes one function signature's full ABI contract. Args is the
// canonical argument order after implicit receivers, structor arguments, and
// object-size expansion; the return type rides in its own slot. Descriptors
// are built by New, shared through a Cache, and never mutated afterwards.
type FuncInfo struct {
	// CC is the convention calls are emitted with. DeclCC is the one the
	// source declared; the two differ after target rewriting, e.g. for
	// device kernels.
	CC     types.CallConv
	DeclCC types.CallConv

	InstanceMethod bool
	ChainCall      bool

	NoReturn          bool
	ReturnsRetained   bool
	NoCallerSavedRegs bool
	NoCfCheck         bool
	HasRegParm        bool
	RegParm           uint8

	Required RequiredArgs

	Ret  types.TypeID
	Args []types.TypeID

	// ExtParams is empty or parallel to Args.
	ExtParams []types.ExtParamInfo

	// IndirectRecord, when set, is the synthesized record some ABIs use to
	// pass the whole argument block as one in-memory aggregate. No supported
	// target sets it today.
	IndirectRecord types.TypeID
	IndirectAlign  uint32
}

// New validates and freezes a descriptor. The argument and ext-param slices
// are copied so later mutation of the caller's slices cannot leak in.
func New(info FuncInfo) *FuncInfo {
	if len(info.ExtParams) != 0 && len(info.ExtParams) != len(info.Args) {
		panic("abi: ext param info length mismatch")
	}
	if info.Required.AllowsOptionalArgs() && info.Required.NumRequired() > len(info.Args) {
		panic("abi: required argument count exceeds argument count")
	}
	info.Args = slices.Clone(info.Args)
	info.ExtParams = slices.Clone(info.ExtParams)
	return &info
}

// NumArgs returns the canonical argument count, implicit arguments included.
func (fi *FuncInfo) NumArgs() int {
	return len(fi.Args)
}

// IsVariadic reports whether calls may pass extra arguments.
func (fi *FuncInfo) IsVariadic() bool {
	return fi.Required.AllowsOptionalArgs()
}

// NumRequiredArgs returns how many leading arguments a call must supply.
func (fi *FuncInfo) NumRequiredArgs() int {
	if fi.Required.AllowsOptionalArgs() {
		return fi.Required.NumRequired()
	}
	return len(fi.Args)
}

// ExtParam returns the extended info of argument i, or the zero value when
// the descriptor carries none.
func (fi *FuncInfo) ExtParam(i int) types.ExtParamInfo {
	if len(fi.ExtParams) == 0 || i < 0 || i >= len(fi.ExtParams) {
		return types.ExtParamInfo{}
	}
	return fi.ExtParams[i]
}

func (fi *FuncInfo) equal(other *FuncInfo) bool {
	return fi.CC == other.CC &&
		fi.DeclCC == other.DeclCC &&
		fi.InstanceMethod == other.InstanceMethod &&
		fi.ChainCall == other.ChainCall &&
		fi.NoReturn == other.NoReturn &&
		fi.ReturnsRetained == other.ReturnsRetained &&
		fi.NoCallerSavedRegs == other.NoCallerSavedRegs &&
		fi.NoCfCheck == other.NoCfCheck &&
		fi.HasRegParm == other.HasRegParm &&
		fi.RegParm == other.RegParm &&
		fi.Required == other.Required &&
		fi.Ret == other.Ret &&
		fi.IndirectRecord == other.IndirectRecord &&
		fi.IndirectAlign == other.IndirectAlign &&
		slices.Equal(fi.Args, other.Args) &&
		slices.Equal(fi.ExtParams, other.ExtParams)
}
