package driver

import (
	"fmt"
	"strconv"

	"karst/internal/decl"
	"karst/internal/kir"
	"karst/internal/lower"
	"karst/internal/source"
	"karst/internal/target"
	"karst/internal/trace"
	"karst/internal/types"
)

// Lowered is the outcome of lowering one scenario.
type Lowered struct {
	Path  string
	Gen   *lower.Gen
	Funcs []string // declared symbols, scenario order
	refs  []decl.Ref
}

// BuildOptions adjust scenario lowering beyond what the scenario itself
// declares.
type BuildOptions struct {
	Tracer trace.Tracer
	// Link parents the lowering spans under the batch span and pins them
	// to the scenario's lane.
	Link trace.Link
}

// LowerScenario runs one scenario through a fresh lowering context. The
// span covers the scenario file so every emitted op points back at it.
func LowerScenario(sc *Scenario, span source.Span, opts BuildOptions) (*Lowered, error) {
	policy, err := resolvePolicy(sc.Target)
	if err != nil {
		return nil, err
	}
	personality, err := parsePersonality(sc.Options.Personality)
	if err != nil {
		return nil, err
	}
	in := types.NewInterner()
	gen := lower.NewGen(in, policy, lower.Options{
		Exceptions:       sc.Options.Exceptions,
		Personality:      personality,
		O0:               sc.Options.O0,
		NullChecks:       sc.Options.NullChecks,
		DeviceCompile:    sc.Options.Device,
		DialectVersion:   sc.Options.Dialect,
		UniformWorkGroup: sc.Options.UniformWorkGroup,
		Tracer:           opts.Tracer,
	})
	gen.SetTraceLink(opts.Link)

	p := &program{
		sc:      sc,
		in:      in,
		gen:     gen,
		span:    span,
		records: make(map[string]types.TypeID, len(sc.Records)),
		decls:   make(map[string]*decl.Func, len(sc.Funcs)),
		specs:   make(map[string]*ScenarioFunc, len(sc.Funcs)),
	}
	if err := p.registerRecords(); err != nil {
		return nil, err
	}
	if err := p.registerFuncs(); err != nil {
		return nil, err
	}
	out := &Lowered{Gen: gen}
	for i := range sc.Funcs {
		spec := &sc.Funcs[i]
		fn := p.decls[spec.Name]
		for _, ref := range p.declaredRefs(spec, fn) {
			if _, err := gen.DeclareFn(ref, nil); err != nil {
				return nil, fmt.Errorf("%s: %w", ref, err)
			}
			out.Funcs = append(out.Funcs, ref.String())
			out.refs = append(out.refs, ref)
		}
	}
	for i := range sc.Funcs {
		spec := &sc.Funcs[i]
		if len(spec.Body) == 0 {
			continue
		}
		fn := p.decls[spec.Name]
		ref, err := definedRef(spec, fn)
		if err != nil {
			return nil, err
		}
		if err := p.runBody(ref, spec); err != nil {
			return nil, fmt.Errorf("%s: %w", ref, err)
		}
	}
	return out, nil
}

// KIR renders the lowered module as text.
func (l *Lowered) KIR() string {
	return kir.PrintModule(l.Gen.Module)
}

// program holds one scenario resolved against its lowering context.
type program struct {
	sc      *Scenario
	in      *types.Interner
	gen     *lower.Gen
	span    source.Span
	records map[string]types.TypeID
	decls   map[string]*decl.Func
	specs   map[string]*ScenarioFunc
}

func resolvePolicy(name string) (target.Policy, error) {
	if name == "" {
		return target.Default(), nil
	}
	return target.Get(name)
}

func parsePersonality(s string) (lower.Personality, error) {
	switch s {
	case "", "itanium":
		return lower.PersonalityItanium, nil
	case "msvc":
		return lower.PersonalityMSVC, nil
	case "seh":
		return lower.PersonalitySEH, nil
	default:
		return 0, fmt.Errorf("unknown personality %q (itanium|msvc|seh)", s)
	}
}

func parseCC(s string) (types.CallConv, error) {
	switch s {
	case "", "default":
		return types.CallConvDefault, nil
	case "std":
		return types.CallConvStd, nil
	case "fast":
		return types.CallConvFast, nil
	case "this":
		return types.CallConvThis, nil
	case "vector":
		return types.CallConvVector, nil
	case "regcall":
		return types.CallConvRegCall, nil
	case "win64":
		return types.CallConvWin64, nil
	case "sysv64":
		return types.CallConvSysV64, nil
	case "device_kernel":
		return types.CallConvDeviceKernel, nil
	default:
		return 0, fmt.Errorf("unknown calling convention %q", s)
	}
}

func parseExcept(s string) (types.ExceptSpec, error) {
	switch s {
	case "", "none":
		return types.ExceptNone, nil
	case "nothrow":
		return types.ExceptNoThrow, nil
	case "throws":
		return types.ExceptThrow, nil
	case "unresolved":
		return types.ExceptUnresolved, nil
	default:
		return 0, fmt.Errorf("unknown exception spec %q", s)
	}
}

func parseAttr(s string) (decl.AttrKind, error) {
	switch s {
	case "nothrow":
		return decl.AttrNoThrow, nil
	case "noreturn":
		return decl.AttrNoReturn, nil
	case "const":
		return decl.AttrConst, nil
	case "pure":
		return decl.AttrPure, nil
	case "noalias":
		return decl.AttrNoAlias, nil
	case "nobuiltin":
		return decl.AttrNoBuiltin, nil
	case "nomerge":
		return decl.AttrNoMerge, nil
	case "noinline":
		return decl.AttrNoInline, nil
	case "always_inline":
		return decl.AttrAlwaysInline, nil
	case "convergent":
		return decl.AttrConvergent, nil
	case "offload_kernel":
		return decl.AttrOffloadKernel, nil
	default:
		return 0, fmt.Errorf("unknown attribute %q", s)
	}
}

func parseVariant(s string) (decl.StructorKind, error) {
	switch s {
	case "", "complete":
		return decl.StructorComplete, nil
	case "base":
		return decl.StructorBase, nil
	case "deleting":
		return decl.StructorDeleting, nil
	default:
		return 0, fmt.Errorf("unknown structor variant %q", s)
	}
}

func parseKind(s string) (decl.FuncKind, error) {
	switch s {
	case "", "free":
		return decl.KindFree, nil
	case "method":
		return decl.KindMethod, nil
	case "ctor":
		return decl.KindCtor, nil
	case "dtor":
		return decl.KindDtor, nil
	default:
		return 0, fmt.Errorf("unknown func kind %q", s)
	}
}

// resolveType maps a scenario type spec to an interned type. Pointer
// prefixes nest left to right: "**Pair" is a pointer to a pointer to Pair.
func (p *program) resolveType(spec string) (types.TypeID, error) {
	elem, depth := splitPointer(spec)
	bt := p.in.Builtins()
	var id types.TypeID
	switch elem {
	case "", "void":
		id = bt.Void
	case "bool":
		id = bt.Bool
	case "i8":
		id = bt.I8
	case "u8":
		id = bt.U8
	case "i16":
		id = bt.I16
	case "u16":
		id = bt.U16
	case "i32":
		id = bt.I32
	case "u32":
		id = bt.U32
	case "i64":
		id = bt.I64
	case "u64":
		id = bt.U64
	case "f32":
		id = bt.F32
	case "f64":
		id = bt.F64
	default:
		rec, ok := p.records[elem]
		if !ok {
			return bt.Invalid, fmt.Errorf("unknown type %q", spec)
		}
		id = rec
	}
	for range depth {
		id = p.in.Intern(types.MakePointer(id))
	}
	return id, nil
}

func (p *program) registerRecords() error {
	for i := range p.sc.Records {
		r := &p.sc.Records[i]
		p.records[r.Name] = p.in.RegisterRecord(r.Name, p.span)
	}
	// Second pass so fields may point at any record, including their own.
	for i := range p.sc.Records {
		r := &p.sc.Records[i]
		id := p.records[r.Name]
		fields := make([]types.Field, len(r.Fields))
		for j, f := range r.Fields {
			ft, err := p.resolveType(f.Type)
			if err != nil {
				return fmt.Errorf("record %q field %q: %w", r.Name, f.Name, err)
			}
			fields[j] = types.Field{Name: f.Name, Type: ft}
		}
		p.in.SetRecordFields(id, fields)
		if r.VirtualBases {
			if info, ok := p.in.RecordInfo(id); ok {
				info.HasVirtualBases = true
			}
		}
	}
	return nil
}

func (p *program) registerFuncs() error {
	for i := range p.sc.Funcs {
		spec := &p.sc.Funcs[i]
		fn, err := p.buildDecl(spec)
		if err != nil {
			return fmt.Errorf("func %q: %w", spec.Name, err)
		}
		p.decls[spec.Name] = fn
		p.specs[spec.Name] = spec
	}
	return nil
}

func (p *program) buildDecl(spec *ScenarioFunc) (*decl.Func, error) {
	kind, err := parseKind(spec.Kind)
	if err != nil {
		return nil, err
	}
	cc, err := parseCC(spec.CC)
	if err != nil {
		return nil, err
	}
	except, err := parseExcept(spec.Except)
	if err != nil {
		return nil, err
	}
	attrs := make(decl.AttrList, 0, len(spec.Attrs))
	for _, a := range spec.Attrs {
		k, err := parseAttr(a)
		if err != nil {
			return nil, err
		}
		attrs = attrs.With(k)
	}
	ret, err := p.resolveType(spec.Ret)
	if err != nil {
		return nil, fmt.Errorf("return type: %w", err)
	}

	params := make([]decl.Param, len(spec.Params))
	paramTypes := make([]types.TypeID, len(spec.Params))
	exts := make([]types.ExtParamInfo, len(spec.Params))
	hasExt := false
	for i, sp := range spec.Params {
		pt, err := p.resolveType(sp.Type)
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
		params[i] = decl.Param{
			Name:     sp.Name,
			Type:     pt,
			NonNull:  sp.NonNull,
			NoEscape: sp.NoEscape,
		}
		if sp.ObjectSize != "" {
			osKind, err := strconv.ParseUint(sp.ObjectSize, 10, 8)
			if err != nil {
				return nil, fmt.Errorf("param %d: object_size: %w", i, err)
			}
			params[i].ObjectSize = &decl.PassObjectSize{Kind: uint8(osKind), Dynamic: sp.Dynamic}
			exts[i].HasPassObjectSize = true
			hasExt = true
		}
		if sp.NoEscape {
			exts[i].NoEscape = true
			hasExt = true
		}
		paramTypes[i] = pt
	}
	if !hasExt {
		exts = nil
	}

	ext := types.ExtInfo{CC: cc, NoReturn: attrs.Has(decl.AttrNoReturn)}
	var fnType types.TypeID
	if spec.NoProto {
		fnType = p.in.RegisterFnNoProto(ret, ext)
	} else {
		fnType = p.in.RegisterFnProto(types.FnInfo{
			Ret:       ret,
			Params:    paramTypes,
			Variadic:  spec.Variadic,
			Ext:       ext,
			Except:    except,
			ExtParams: exts,
		})
	}

	fn := &decl.Func{
		Name:       spec.Name,
		Kind:       kind,
		Type:       fnType,
		Virtual:    spec.Virtual,
		VTableSlot: spec.Slot,
		Variadic:   spec.Variadic,
		Params:     params,
		Attrs:      attrs,
		Span:       p.span,
	}
	if spec.Parent != "" {
		fn.Parent = p.records[spec.Parent]
	}
	if spec.Inherits {
		fn.Inherited = &decl.Inherited{ConstructsVirtualBase: spec.VirtBase}
	}
	return fn, nil
}

// declaredRefs lists the refs a scenario entry declares: structors expand
// to their listed variants, everything else is a single ref.
func (p *program) declaredRefs(spec *ScenarioFunc, fn *decl.Func) []decl.Ref {
	if !fn.IsStructor() {
		return []decl.Ref{decl.FreeRef(fn)}
	}
	variants := spec.Variants
	if len(variants) == 0 {
		variants = []string{"complete"}
	}
	refs := make([]decl.Ref, 0, len(variants))
	for _, v := range variants {
		kind, err := parseVariant(v)
		if err != nil {
			continue // validated at load time
		}
		refs = append(refs, decl.StructorRef(fn, kind))
	}
	return refs
}

func definedRef(spec *ScenarioFunc, fn *decl.Func) (decl.Ref, error) {
	if !fn.IsStructor() {
		return decl.FreeRef(fn), nil
	}
	kind, err := parseVariant(spec.Variant)
	if err != nil {
		return decl.Ref{}, err
	}
	return decl.StructorRef(fn, kind), nil
}
