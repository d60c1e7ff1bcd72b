// Package layout computes target-dependent size, alignment, and field
// offsets for machine types. Results are cached per engine; recursive
// by-value records are reported as errors instead of recursing forever.
package layout

import (
	"karst/internal/kir"
)

// TypeLayout is the ABI layout of a type for a specific Target.
type TypeLayout struct {
	Size  int
	Align int

	// Record-only:
	FieldOffsets []int
}

// Engine computes memory layout for machine types.
type Engine struct {
	Target Target
	Types  *kir.Interner

	cache *cache
}

// New creates an Engine for the specified target.
func New(target Target, typesIn *kir.Interner) *Engine {
	return &Engine{
		Target: target,
		Types:  typesIn,
		cache:  newCache(),
	}
}

type layoutState struct {
	stack []kir.TypeID
	index map[kir.TypeID]int
}

func newLayoutState() *layoutState {
	return &layoutState{
		stack: nil,
		index: make(map[kir.TypeID]int, 32),
	}
}

// LayoutOf computes and caches the layout of a type.
func (e *Engine) LayoutOf(t kir.TypeID) (TypeLayout, error) {
	if e == nil {
		return TypeLayout{Size: 0, Align: 1}, nil
	}
	if e.cache == nil {
		e.cache = newCache()
	}
	state := newLayoutState()
	layout, err := e.layoutOf(t, state)
	if err != nil {
		return layout, err
	}
	return layout, nil
}

func (e *Engine) layoutOf(t kir.TypeID, state *layoutState) (TypeLayout, *LayoutError) {
	if state == nil {
		state = newLayoutState()
	}
	if cached, ok := e.cache.get(t); ok {
		return cached.Layout, cached.Err
	}

	if idx, ok := state.index[t]; ok {
		cycle := append([]kir.TypeID(nil), state.stack[idx:]...)
		cycle = append(cycle, t)
		err := &LayoutError{
			Kind:  LayoutErrRecursiveUnsized,
			Type:  t,
			Cycle: cycle,
		}
		e.cache.put(t, &cacheEntry{Layout: TypeLayout{Size: 0, Align: 1}, Err: err})
		return TypeLayout{Size: 0, Align: 1}, err
	}

	state.index[t] = len(state.stack)
	state.stack = append(state.stack, t)
	layout, err := e.computeLayout(t, state)
	state.stack = state.stack[:len(state.stack)-1]
	delete(state.index, t)

	e.cache.put(t, &cacheEntry{Layout: layout, Err: err})
	return layout, err
}

// SizeOf returns the size of a type in bytes.
func (e *Engine) SizeOf(t kir.TypeID) (int, error) {
	l, err := e.LayoutOf(t)
	return l.Size, err
}

// AlignOf returns the alignment requirement of a type in bytes.
func (e *Engine) AlignOf(t kir.TypeID) (int, error) {
	l, err := e.LayoutOf(t)
	return l.Align, err
}

// FieldOffset returns the byte offset of a record field.
func (e *Engine) FieldOffset(recordT kir.TypeID, fieldIdx int) (int, error) {
	l, err := e.LayoutOf(recordT)
	if err != nil {
		return 0, err
	}
	if fieldIdx < 0 || fieldIdx >= len(l.FieldOffsets) {
		return 0, nil
	}
	return l.FieldOffsets[fieldIdx], nil
}
