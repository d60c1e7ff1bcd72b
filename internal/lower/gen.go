// Package lower turns typed declarations and call descriptions into
// ABI-correct KIR. It arranges function signatures against the target
// policy, materializes call arguments into the machine shapes those
// signatures demand, synthesizes call-site and definition attributes, and
// emits call ops threaded through the right unwind scope.
package lower

import (
	"fortio.org/safecast"

	"karst/internal/abi"
	"karst/internal/kir"
	"karst/internal/layout"
	"karst/internal/target"
	"karst/internal/trace"
	"karst/internal/types"
)

// Options configure one lowering context.
type Options struct {
	// Exceptions enables unwind edges on calls that may throw.
	Exceptions bool
	// Personality is the unit's exception personality model.
	Personality Personality
	// O0 marks an unoptimized build; definitions carry optnone and
	// noinline unless declared always-inline.
	O0 bool
	// NullChecks enables runtime assertions on non-null arguments.
	NullChecks bool
	// DeviceCompile marks device-side compilation of offload code.
	DeviceCompile bool
	// DialectVersion is the device dialect major version.
	DialectVersion int
	// UniformWorkGroup opts kernels into the uniform work-group marker on
	// dialect 2 and later; earlier dialects always carry it.
	UniformWorkGroup bool
	// Tracer receives lowering spans. Nil disables tracing.
	Tracer trace.Tracer
}

// Gen is one compilation context. It owns the output module, the signature
// cache, and the conversion caches. A Gen is single-threaded; parallelism
// happens one Gen per compilation, never inside one.
type Gen struct {
	Module *kir.Module
	Types  *types.Interner
	Policy target.Policy
	Layout *layout.Engine
	Opts   Options

	sigs       *abi.Cache
	converted  map[types.TypeID]kir.TypeID
	inProgress map[*abi.FuncInfo]bool

	tracer trace.Tracer
	link   trace.Link
}

// NewGen creates a lowering context over a fresh KIR module.
func NewGen(in *types.Interner, policy target.Policy, opts Options) *Gen {
	mod := kir.NewModule()
	tr := opts.Tracer
	if tr == nil {
		tr = trace.Nop
	}
	return &Gen{
		Module:     mod,
		Types:      in,
		Policy:     policy,
		Layout:     layout.New(policy.Layout(), mod.Types),
		Opts:       opts,
		sigs:       abi.NewCache(),
		converted:  make(map[types.TypeID]kir.TypeID),
		inProgress: make(map[*abi.FuncInfo]bool),
		tracer:     tr,
	}
}

// SetTraceLink parents subsequent trace spans under an outer span and
// pins them to its lane.
func (g *Gen) SetTraceLink(l trace.Link) {
	g.link = l
}

// Signatures returns the number of distinct arranged signatures.
func (g *Gen) Signatures() int {
	return g.sigs.Len()
}

// alignOf returns a type's ABI alignment in bytes. Layout failures surface
// on the size query; alignment degrades to 1.
func (g *Gen) alignOf(t kir.TypeID) uint32 {
	a, err := g.Layout.AlignOf(t)
	if err != nil || a <= 0 {
		return 1
	}
	v, err := safecast.Conv[uint32](a)
	if err != nil {
		panic(err)
	}
	return v
}
