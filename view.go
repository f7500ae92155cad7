package peview

// PeView views a PE image as a loader mapped it: sections laid out
// contiguously at their virtual addresses, zero fill materialized. Because
// the layout is contiguous, a view's containing region always runs to the
// end of the buffer; this asymmetry with PeFile is intentional.
type PeView struct {
	image
}

// NewPeView wraps the bytes of a PE image already mapped to its virtual
// layout. The buffer must be at least SizeOfImage long as certified by the
// header validator, otherwise ErrOutOfBounds.
//
// The buffer is borrowed, not copied; it must stay alive and unmodified for
// as long as the handle and any slice derived from it are in use.
func NewPeView(data []byte, opts ...Option) (*PeView, error) {
	im, err := newImage(data, AlignSection, opts)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) < uint64(im.optionalHeader.SizeOfImage) {
		return nil, ErrOutOfBounds
	}
	return &PeView{image: im}, nil
}

// Slice implements the view primitive for the mapped layout: the rva indexes
// the buffer directly and the region runs to the buffer end.
func (v *PeView) Slice(rva Rva, minSize, align int) ([]byte, error) {
	if rva == 0 {
		return nil, ErrNull
	}
	start := uint64(rva)
	if start > uint64(len(v.data)) {
		return nil, ErrOutOfBounds
	}
	if err := v.checkAlign(start, align); err != nil {
		return nil, err
	}
	if uint64(len(v.data))-start < uint64(minSize) {
		return nil, ErrOutOfBounds
	}
	return v.data[start:], nil
}

// Read implements the VA flavor of the view primitive on top of Slice.
func (v *PeView) Read(va Va, minSize, align int) ([]byte, error) {
	rva, err := v.VaToRva(va)
	if err != nil {
		return nil, err
	}
	return v.Slice(rva, minSize, align)
}

var _ Pe = (*PeView)(nil)
