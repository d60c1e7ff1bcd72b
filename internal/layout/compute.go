package layout

import (
	"fortio.org/safecast"

	"karst/internal/kir"
)

func (e *Engine) computeLayout(t kir.TypeID, state *layoutState) (TypeLayout, *LayoutError) {
	tt, ok := e.Types.Lookup(t)
	if !ok {
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrUnsized, Type: t}
	}
	switch tt.Kind {
	case kir.KindBool:
		return TypeLayout{Size: 1, Align: 1}, nil
	case kir.KindInt:
		size := (int(tt.Width) + 7) / 8
		return TypeLayout{Size: size, Align: intAlign(size)}, nil
	case kir.KindFloat:
		size := int(tt.Width) / 8
		return TypeLayout{Size: size, Align: size}, nil
	case kir.KindPointer:
		return TypeLayout{Size: e.Target.PtrSize, Align: e.Target.PtrAlign}, nil
	case kir.KindArray:
		return e.arrayLayout(t, tt, state)
	case kir.KindRecord:
		return e.recordLayout(t, state)
	default:
		// void, fn, invalid: no object layout.
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrUnsized, Type: t}
	}
}

func (e *Engine) arrayLayout(t kir.TypeID, tt kir.Type, state *layoutState) (TypeLayout, *LayoutError) {
	elem, err := e.layoutOf(tt.Elem, state)
	if err != nil {
		return TypeLayout{Size: 0, Align: 1}, err
	}
	count, convErr := safecast.Conv[int](tt.Count)
	if convErr != nil {
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrLengthConversion, Type: t, Err: convErr}
	}
	stride := alignTo(elem.Size, elem.Align)
	return TypeLayout{Size: stride * count, Align: elem.Align}, nil
}

func (e *Engine) recordLayout(t kir.TypeID, state *layoutState) (TypeLayout, *LayoutError) {
	info, ok := e.Types.RecordInfo(t)
	if !ok {
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrUnsized, Type: t}
	}

	size := 0
	align := 1
	offsets := make([]int, 0, len(info.Fields))
	for _, field := range info.Fields {
		fl, err := e.layoutOf(field, state)
		if err != nil {
			return TypeLayout{Size: 0, Align: 1}, err
		}
		fieldAlign := fl.Align
		if info.Packed {
			fieldAlign = 1
		}
		size = alignTo(size, fieldAlign)
		offsets = append(offsets, size)
		size += fl.Size
		if fieldAlign > align {
			align = fieldAlign
		}
	}
	size = alignTo(size, align)
	return TypeLayout{Size: size, Align: align, FieldOffsets: offsets}, nil
}

// intAlign returns the natural alignment of an integer of the given byte
// size: the next power of two, capped at eight bytes.
func intAlign(size int) int {
	align := 1
	for align < size && align < 8 {
		align <<= 1
	}
	return align
}

func alignTo(offset, align int) int {
	if align <= 1 {
		return offset
	}
	rem := offset % align
	if rem == 0 {
		return offset
	}
	return offset + align - rem
}
