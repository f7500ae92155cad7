package peview

// ImageBaseRelocation is the header of one base relocation block, followed
// on the wire by (SizeOfBlock-8)/2 packed uint16 entries.
type ImageBaseRelocation struct {
	VirtualAddress Rva
	SizeOfBlock    uint32
}

// IMAGE_REL_BASED relocation types the engine's consumers care about.
const (
	ImageRelBasedAbsolute = 0
	ImageRelBasedHighLow  = 3
	ImageRelBasedDir64    = 10
)

// Reloc is a single base relocation with its type and the RVA it patches.
type Reloc struct {
	Type uint8
	Rva  Rva
}

// BaseRelocBlock is one relocation block covering a 4 KiB page.
type BaseRelocBlock struct {
	VirtualAddress Rva
	Relocs         []Reloc
}

// NewBaseRelocs walks the base relocation directory. ErrNull means the image
// has no relocations; any other error means corruption. Fixups are only
// enumerated, never applied.
func NewBaseRelocs(p Pe) ([]BaseRelocBlock, error) {
	dd := p.DataDirectory()
	if ImageDirectoryEntryBaseReLoc >= len(dd) {
		return nil, ErrNull
	}
	datadir := dd[ImageDirectoryEntryBaseReLoc]
	if datadir.VirtualAddress == 0 {
		return nil, ErrNull
	}

	var blocks []BaseRelocBlock
	total := datadir.Size
	for offset := uint32(0); offset < total; {
		if total-offset < BaseRelocationSize {
			return nil, ErrOutOfBounds
		}
		header, err := DervaCopy[ImageBaseRelocation](p, datadir.VirtualAddress+Rva(offset))
		if err != nil {
			return nil, err
		}
		// SizeOfBlock includes the header and must keep the walk inside the
		// directory range.
		if header.SizeOfBlock < BaseRelocationSize || header.SizeOfBlock%2 != 0 || header.SizeOfBlock > total-offset {
			return nil, ErrOutOfBounds
		}

		count := int((header.SizeOfBlock - BaseRelocationSize) / 2)
		words, err := DervaSlice[uint16](p, datadir.VirtualAddress+Rva(offset)+BaseRelocationSize, count)
		if err != nil {
			return nil, err
		}

		block := BaseRelocBlock{
			VirtualAddress: header.VirtualAddress,
			Relocs:         make([]Reloc, 0, count),
		}
		for _, word := range words {
			block.Relocs = append(block.Relocs, Reloc{
				Type: uint8(word >> 12),
				Rva:  header.VirtualAddress + Rva(word&0x0FFF),
			})
		}
		blocks = append(blocks, block)
		offset += header.SizeOfBlock
	}
	return blocks, nil
}
