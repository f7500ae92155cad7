package peview

import "math"

// image is the state shared by both backends: the borrowed byte buffer, the
// alignment mode, and the headers parsed once at construction. It is
// immutable after newImage returns.
type image struct {
	data            []byte
	align           Align
	unsafeAlignment bool

	dosHeader      DosHeader
	fileHeader     FileHeader
	optionalHeader OptionalHeader
	is64           bool
	sections       []SectionHeader
	dataDirectory  []DataDirectory
}

func newImage(data []byte, align Align, opts []Option) (image, error) {
	h, err := validateHeaders(data)
	if err != nil {
		return image{}, err
	}

	im := image{
		data:           data,
		align:          align,
		dosHeader:      h.dosHeader,
		fileHeader:     h.fileHeader,
		optionalHeader: h.optionalHeader,
		is64:           h.is64,
	}

	// Both unpacks are within bounds certified by validateHeaders.
	if h.numDataDirs > 0 {
		im.dataDirectory = make([]DataDirectory, h.numDataDirs)
		if err := structUnpack(data, h.dataDirOffset, h.numDataDirs*DataDirectorySize, im.dataDirectory); err != nil {
			return image{}, err
		}
	}
	if n := uint32(h.fileHeader.NumberOfSections); n > 0 {
		im.sections = make([]SectionHeader, n)
		if err := structUnpack(data, h.sectionsOffset, n*SectionHeaderSize, im.sections); err != nil {
			return image{}, err
		}
	}

	for _, opt := range opts {
		opt(&im)
	}
	return im, nil
}

func (p *image) Image() []byte { return p.data }

func (p *image) Align() Align { return p.align }

func (p *image) DosHeader() DosHeader { return p.dosHeader }

func (p *image) FileHeader() FileHeader { return p.fileHeader }

func (p *image) OptionalHeader() OptionalHeader { return p.optionalHeader }

func (p *image) Is64() bool { return p.is64 }

func (p *image) SectionHeaders() []SectionHeader { return p.sections }

func (p *image) DataDirectory() []DataDirectory { return p.dataDirectory }

// RvaToFileOffset translates an RVA through the section table.
//
// Section fields are untrusted, so all range arithmetic is widened to uint64;
// the first section in storage order whose virtual range contains the rva
// wins, overlapping ranges are deliberately not merged or deduplicated.
func (p *image) RvaToFileOffset(rva Rva) (FileOffset, error) {
	for i := range p.sections {
		it := &p.sections[i]
		virtualEnd := uint64(it.VirtualAddress) + uint64(maxU32(it.VirtualSize, it.SizeOfRawData))
		if uint64(rva) >= uint64(it.VirtualAddress) && uint64(rva) < virtualEnd {
			if uint64(rva) < uint64(it.VirtualAddress)+uint64(it.SizeOfRawData) {
				offset := uint64(rva) - uint64(it.VirtualAddress) + uint64(it.PointerToRawData)
				if offset > math.MaxUint32 {
					return 0, ErrOutOfBounds
				}
				return FileOffset(offset), nil
			}
			return 0, ErrZeroFill
		}
	}
	// The headers are always considered mapped.
	if uint32(rva) < p.optionalHeader.SizeOfHeaders {
		return FileOffset(rva), nil
	}
	return 0, ErrOutOfBounds
}

// FileOffsetToRva translates an on-disk offset through the section table.
func (p *image) FileOffsetToRva(offset FileOffset) (Rva, error) {
	for i := range p.sections {
		it := &p.sections[i]
		rawEnd := uint64(it.PointerToRawData) + uint64(it.SizeOfRawData)
		if uint64(offset) >= uint64(it.PointerToRawData) && uint64(offset) < rawEnd {
			if uint64(offset) < uint64(it.PointerToRawData)+uint64(it.VirtualSize) {
				rva := uint64(offset) - uint64(it.PointerToRawData) + uint64(it.VirtualAddress)
				if rva > math.MaxUint32 {
					return 0, ErrOutOfBounds
				}
				return Rva(rva), nil
			}
			// Raw bytes beyond the virtual size never get mapped.
			return 0, ErrOutOfBounds
		}
	}
	if uint32(offset) < p.optionalHeader.SizeOfHeaders {
		return Rva(offset), nil
	}
	return 0, ErrOutOfBounds
}

// RvaToVa rebases an RVA onto the preferred image base.
func (p *image) RvaToVa(rva Rva) (Va, error) {
	if rva == 0 {
		return 0, ErrNull
	}
	if uint32(rva) >= p.optionalHeader.SizeOfImage {
		return 0, ErrOutOfBounds
	}
	return p.optionalHeader.ImageBase + Va(rva), nil
}

// VaToRva strips the preferred image base from a VA.
func (p *image) VaToRva(va Va) (Rva, error) {
	if va == 0 {
		return 0, ErrNull
	}
	imageBase := p.optionalHeader.ImageBase
	if va < imageBase || uint64(va-imageBase) >= uint64(p.optionalHeader.SizeOfImage) {
		return 0, ErrOutOfBounds
	}
	return Rva(va - imageBase), nil
}

// checkAlign verifies the resolved start offset satisfies the requested
// power of two alignment relative to the buffer base.
func (p *image) checkAlign(offset uint64, align int) error {
	if p.unsafeAlignment || align <= 1 {
		return nil
	}
	if offset&uint64(align-1) != 0 {
		return ErrMisaligned
	}
	return nil
}

func maxU32(x, y uint32) uint32 {
	if x < y {
		return y
	}
	return x
}
