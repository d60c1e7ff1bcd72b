package kir

import (
	"fmt"

	"fortio.org/safecast"

	"karst/internal/source"
)

type (
	// ValueID identifies one SSA value inside a function.
	ValueID uint32
	// RegionID identifies one region inside a function.
	RegionID uint32
)

// NoValueID marks the absence of a value.
const NoValueID ValueID = 0

// Value pairs a ValueID with its type for convenient threading through the
// lowering. The zero Value means "no value" (void results).
type Value struct {
	ID   ValueID
	Type TypeID
}

// Valid reports whether the value exists.
func (v Value) Valid() bool {
	return v.ID != NoValueID
}

type valueInfo struct {
	typ    TypeID
	region RegionID
}

// Region is an ordered list of blocks nested under a function body or an op.
type Region struct {
	ID     RegionID
	Blocks []*Block
}

// NewBlock appends an empty block to the region.
func (r *Region) NewBlock() *Block {
	bb := &Block{region: r}
	r.Blocks = append(r.Blocks, bb)
	return bb
}

// Entry returns the first block, or nil for an empty region.
func (r *Region) Entry() *Block {
	if r == nil || len(r.Blocks) == 0 {
		return nil
	}
	return r.Blocks[0]
}

// Block is an ordered list of ops inside a region.
type Block struct {
	region *Region
	Ops    []Op
}

// Region returns the block's parent region.
func (bb *Block) Region() *Region {
	if bb == nil {
		return nil
	}
	return bb.region
}

// Terminated reports whether the block already ends in a terminator.
func (bb *Block) Terminated() bool {
	if bb == nil || len(bb.Ops) == 0 {
		return false
	}
	return bb.Ops[len(bb.Ops)-1].IsTerminator()
}

// FuncOp is one lowered function: a declaration when Body is nil, a
// definition otherwise. ArgExt and RetExt carry the boundary extension
// markers the ABI policy assigned to narrow scalars.
type FuncOp struct {
	Name   string
	Type   TypeID // machine fn type
	CC     CallingConv
	Attrs  AttrSet
	ArgExt []ExtKind
	RetExt ExtKind
	Params []ValueID // entry block arguments
	Body   *Region
	Span   source.Span

	values      []valueInfo
	nextRegion  uint32
	nextValueID uint32
}

// NewFuncOp constructs a function declaration with no body.
func NewFuncOp(name string, fnType TypeID) *FuncOp {
	f := &FuncOp{Name: name, Type: fnType}
	f.values = append(f.values, valueInfo{}) // reserve ValueID 0
	f.nextValueID = 1
	f.nextRegion = 1 // region 0 means "no region"
	return f
}

// IsDeclaration reports whether the function has no body.
func (f *FuncOp) IsDeclaration() bool {
	return f == nil || f.Body == nil
}

// NewRegion mints a region with a function-unique ID. The region is owned
// by whoever attaches it (the body slot or a structured op).
func (f *FuncOp) NewRegion() *Region {
	id := RegionID(f.nextRegion)
	f.nextRegion++
	return &Region{ID: id}
}

// NewValue allocates a value of the given type, defined in region.
func (f *FuncOp) NewValue(typ TypeID, region RegionID) ValueID {
	lenValues, err := safecast.Conv[uint32](len(f.values))
	if err != nil {
		panic(fmt.Errorf("value table overflow: %w", err))
	}
	id := ValueID(lenValues)
	f.values = append(f.values, valueInfo{typ: typ, region: region})
	return id
}

// ValueType returns the type of a value, or NoTypeID.
func (f *FuncOp) ValueType(id ValueID) TypeID {
	if f == nil || id == NoValueID || int(id) >= len(f.values) {
		return NoTypeID
	}
	return f.values[id].typ
}

// ValueRegion returns the region a value is defined in, or zero.
func (f *FuncOp) ValueRegion(id ValueID) RegionID {
	if f == nil || id == NoValueID || int(id) >= len(f.values) {
		return 0
	}
	return f.values[id].region
}

// NumValues returns the number of allocated values, counting the reserved
// zero slot.
func (f *FuncOp) NumValues() int {
	if f == nil {
		return 0
	}
	return len(f.values)
}

// StartBody attaches a body region with one entry block and materializes
// the entry block arguments from the function type's parameter list.
func (f *FuncOp) StartBody(ti *Interner) *Block {
	body := f.NewRegion()
	f.Body = body
	entry := body.NewBlock()
	info, ok := ti.FnTy(f.Type)
	if !ok {
		return entry
	}
	f.Params = f.Params[:0]
	for _, p := range info.Params {
		f.Params = append(f.Params, f.NewValue(p, body.ID))
	}
	return entry
}

// Module is an ordered collection of lowered functions.
type Module struct {
	Types *Interner
	Funcs []*FuncOp

	index map[string]int
}

// NewModule constructs an empty module with a fresh type interner.
func NewModule() *Module {
	return &Module{
		Types: NewInterner(),
		index: make(map[string]int),
	}
}

// Add registers a function. Adding a second function with the same name is
// an error; get-or-create logic belongs to the caller.
func (m *Module) Add(f *FuncOp) error {
	if f == nil {
		return fmt.Errorf("kir: nil func")
	}
	if _, ok := m.index[f.Name]; ok {
		return fmt.Errorf("kir: duplicate function %q", f.Name)
	}
	m.index[f.Name] = len(m.Funcs)
	m.Funcs = append(m.Funcs, f)
	return nil
}

// Func returns the function with the given name, or nil.
func (m *Module) Func(name string) *FuncOp {
	if m == nil {
		return nil
	}
	i, ok := m.index[name]
	if !ok {
		return nil
	}
	return m.Funcs[i]
}
