package peview

// PeFile views a PE image in its on-disk layout: section data packed at
// PointerToRawData, headers at the front, nothing mapped. Views resolved
// through it are fragmented per section, so a slice never crosses from one
// section's raw data into another's.
type PeFile struct {
	image
}

// NewPeFile wraps the raw bytes of a PE file as stored on disk.
//
// The buffer is borrowed, not copied; it must stay alive and unmodified for
// as long as the handle and any slice derived from it are in use.
func NewPeFile(data []byte, opts ...Option) (*PeFile, error) {
	im, err := newImage(data, AlignFile, opts)
	if err != nil {
		return nil, err
	}
	return &PeFile{image: im}, nil
}

// Slice implements the view primitive for the disk layout. The containing
// region is the claiming section's raw data range, or the header region for
// RVAs below SizeOfHeaders.
func (f *PeFile) Slice(rva Rva, minSize, align int) ([]byte, error) {
	if rva == 0 {
		return nil, ErrNull
	}

	// Same scan as RvaToFileOffset, but the region end is needed too.
	var start, end uint64
	claimed := false
	for i := range f.sections {
		it := &f.sections[i]
		virtualEnd := uint64(it.VirtualAddress) + uint64(maxU32(it.VirtualSize, it.SizeOfRawData))
		if uint64(rva) >= uint64(it.VirtualAddress) && uint64(rva) < virtualEnd {
			if uint64(rva) >= uint64(it.VirtualAddress)+uint64(it.SizeOfRawData) {
				return nil, ErrZeroFill
			}
			start = uint64(rva) - uint64(it.VirtualAddress) + uint64(it.PointerToRawData)
			end = uint64(it.PointerToRawData) + uint64(it.SizeOfRawData)
			claimed = true
			break
		}
	}
	if !claimed {
		if uint32(rva) >= f.optionalHeader.SizeOfHeaders {
			return nil, ErrOutOfBounds
		}
		start = uint64(rva)
		end = uint64(f.optionalHeader.SizeOfHeaders)
	}

	// Clamp the region to the physical buffer; raw ranges are untrusted and
	// the file may simply be truncated.
	if end > uint64(len(f.data)) {
		end = uint64(len(f.data))
	}
	if start > end {
		return nil, ErrOutOfBounds
	}
	if err := f.checkAlign(start, align); err != nil {
		return nil, err
	}
	if end-start < uint64(minSize) {
		return nil, ErrOutOfBounds
	}
	return f.data[start:end], nil
}

// Read implements the VA flavor of the view primitive on top of Slice.
func (f *PeFile) Read(va Va, minSize, align int) ([]byte, error) {
	rva, err := f.VaToRva(va)
	if err != nil {
		return nil, err
	}
	return f.Slice(rva, minSize, align)
}

var _ Pe = (*PeFile)(nil)
