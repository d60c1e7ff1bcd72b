// Package target holds the per-ABI policy objects the lowering layer
// queries: how records coerce into register shapes, which implicit
// arguments structor variants take, argument destruction order, and the
// calling-convention rewrites a target applies before arranging.
package target

import (
	"fmt"
	"sort"
	"sync"

	"karst/internal/decl"
	"karst/internal/kir"
	"karst/internal/layout"
	"karst/internal/types"
)

// Policy answers the ABI questions one target needs decided during
// signature arrangement and call emission. Implementations are stateless
// value types; a single Policy serves any number of lowering contexts.
type Policy interface {
	// Name is the registry key, conventionally the target triple.
	Name() string

	// Layout describes the target for the data layout engine.
	Layout() layout.Target

	// CanonCC maps a source-declared convention onto the one calls are
	// actually emitted with. Conventions that merely re-state the target
	// default collapse to it here.
	CanonCC(cc types.CallConv) types.CallConv

	// KernelCC is the convention offload kernels are rewritten to before
	// arranging.
	KernelCC() types.CallConv

	// NoProtoCallVariadic reports whether calls through an unprototyped
	// function type use the variadic convention under cc.
	NoProtoCallVariadic(cc types.CallConv) bool

	// AreArgsDestroyedLeftToRightInCallee reports whether the callee
	// destroys arguments left to right, which forces right-to-left
	// evaluation at every call site.
	AreArgsDestroyedLeftToRightInCallee() bool

	// RecordParamDestroyedInCallee reports whether by-value record
	// parameters are destroyed by the callee rather than the caller.
	RecordParamDestroyedInCallee() bool

	// HasConstructorVariants reports whether the ABI emits separate
	// complete and base constructor bodies.
	HasConstructorVariants() bool

	// StructorArgs lists the implicit arguments a structor variant takes
	// beyond the receiver: prefix types inserted right after it and
	// suffix types appended after the formals.
	StructorArgs(in *types.Interner, ref decl.Ref) (prefix, suffix []types.TypeID)

	// HasThisReturn reports whether the declaration returns its receiver.
	HasThisReturn(ref decl.Ref) bool

	// HasMostDerivedReturn reports whether the declaration returns the
	// most-derived object pointer.
	HasMostDerivedReturn(ref decl.Ref) bool

	// CoerceRecord picks the machine shape a record of the given byte
	// size travels as in registers. ok is false when the record must be
	// passed in memory instead.
	CoerceRecord(in *kir.Interner, size int) (coerced kir.TypeID, ok bool)

	// ExtendAttr picks the boundary extension marker for a scalar of the
	// given source type.
	ExtendAttr(tt types.Type) kir.ExtKind
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Policy)
	defaultCfg Policy
)

// Register adds a policy under its name. The first registration becomes
// the default target. Re-registering a name panics; policies are wired
// once, at init time.
func Register(p Policy) {
	registryMu.Lock()
	defer registryMu.Unlock()
	name := p.Name()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("target: duplicate registration of %q", name))
	}
	registry[name] = p
	if defaultCfg == nil {
		defaultCfg = p
	}
}

// Get returns the policy registered under name.
func Get(name string) (Policy, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("target: unknown target %q", name)
	}
	return p, nil
}

// Default returns the default target policy.
func Default() Policy {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if defaultCfg == nil {
		panic("target: no targets registered")
	}
	return defaultCfg
}

// Names lists every registered target, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
