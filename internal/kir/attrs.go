package kir

import (
	"fmt"
	"strings"
)

// CallingConv is the convention recorded on lowered functions and call sites.
// Only the default C convention and the device-kernel convention survive
// lowering; everything else faults upstream before reaching the IR.
type CallingConv uint8

const (
	CallingConvC CallingConv = iota
	CallingConvDeviceKernel
)

func (c CallingConv) String() string {
	switch c {
	case CallingConvC:
		return "c"
	case CallingConvDeviceKernel:
		return "device_kernel"
	default:
		return fmt.Sprintf("CallingConv(%d)", c)
	}
}

// SideEffect classifies a call site's observable effects. Const is stricter
// than Pure; All is the default.
type SideEffect uint8

const (
	SideEffectAll SideEffect = iota
	SideEffectPure
	SideEffectConst
)

func (s SideEffect) String() string {
	switch s {
	case SideEffectAll:
		return "all"
	case SideEffectPure:
		return "pure"
	case SideEffectConst:
		return "const"
	default:
		return fmt.Sprintf("SideEffect(%d)", s)
	}
}

// ExtKind marks how a narrow scalar widens at a function boundary.
type ExtKind uint8

const (
	ExtNone ExtKind = iota
	ExtZero
	ExtSign
)

func (e ExtKind) String() string {
	switch e {
	case ExtNone:
		return ""
	case ExtZero:
		return "zeroext"
	case ExtSign:
		return "signext"
	default:
		return fmt.Sprintf("ExtKind(%d)", e)
	}
}

// AttrSet is the named attribute set attached to a function or call site.
type AttrSet struct {
	NoThrow           bool
	NoReturn          bool
	NoBuiltin         bool
	NoMerge           bool
	Convergent        bool
	NoInline          bool
	AlwaysInline      bool
	OptNone           bool
	NoCallerSavedRegs bool
	NoCfCheck         bool
	OffloadKernel     bool
	UniformWorkGroup  bool
	KernelName        string // host-side marker naming the device kernel
}

// IsEmpty reports whether no attribute is set.
func (a AttrSet) IsEmpty() bool {
	return a == AttrSet{}
}

// String renders the set in a stable order, e.g. "{nothrow, noreturn}".
func (a AttrSet) String() string {
	var parts []string
	add := func(on bool, name string) {
		if on {
			parts = append(parts, name)
		}
	}
	add(a.NoThrow, "nothrow")
	add(a.NoReturn, "noreturn")
	add(a.NoBuiltin, "nobuiltin")
	add(a.NoMerge, "nomerge")
	add(a.Convergent, "convergent")
	add(a.NoInline, "noinline")
	add(a.AlwaysInline, "always_inline")
	add(a.OptNone, "optnone")
	add(a.NoCallerSavedRegs, "no_caller_saved_regs")
	add(a.NoCfCheck, "nocf_check")
	add(a.OffloadKernel, "offload_kernel")
	add(a.UniformWorkGroup, "uniform_work_group")
	if a.KernelName != "" {
		parts = append(parts, fmt.Sprintf("kernel_name = %q", a.KernelName))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
