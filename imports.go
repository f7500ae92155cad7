package peview

import "github.com/pkg/errors"

// ImageImportDescriptor is one entry of the import directory, one per
// imported DLL. The directory is terminated by an all zero descriptor.
type ImageImportDescriptor struct {
	OriginalFirstThunk uint32
	TimeDateStamp      uint32
	ForwarderChain     uint32
	Name               uint32
	FirstThunk         uint32
}

// ImportFunction is a single imported symbol, either by name with a hint or
// by ordinal.
type ImportFunction struct {
	Name      string
	Hint      uint16
	ByOrdinal bool
	Ordinal   uint32
}

// Import is one imported DLL with its resolved functions.
type Import struct {
	Name       string
	Descriptor ImageImportDescriptor
	Functions  []*ImportFunction
}

// NewImports walks the import directory. ErrNull means the image imports
// nothing; any other error means corruption.
func NewImports(p Pe) ([]*Import, error) {
	dd := p.DataDirectory()
	if ImageDirectoryEntryImport >= len(dd) {
		return nil, ErrNull
	}
	datadir := dd[ImageDirectoryEntryImport]
	if datadir.VirtualAddress == 0 {
		return nil, ErrNull
	}

	descriptors, err := DervaSliceS(p, datadir.VirtualAddress, ImageImportDescriptor{})
	if err != nil {
		return nil, err
	}

	imports := make([]*Import, 0, len(descriptors))
	for _, desc := range descriptors {
		name, err := DervaString(p, Rva(desc.Name), maxDllLength)
		if errors.Is(err, ErrBadCStr) {
			// Overlong DLL names show up in deliberately corrupted samples;
			// skip the descriptor, the rest of the entry is unusable.
			continue
		}
		if err != nil {
			return nil, err
		}

		imp := &Import{Name: name, Descriptor: desc}

		// Prefer the import lookup table; some linkers leave it zero and
		// only populate the IAT.
		thunks := desc.OriginalFirstThunk
		if thunks == 0 {
			thunks = desc.FirstThunk
		}
		if thunks != 0 {
			if p.Is64() {
				imp.Functions, err = readThunks64(p, Rva(thunks))
			} else {
				imp.Functions, err = readThunks32(p, Rva(thunks))
			}
			if err != nil {
				return nil, err
			}
		}
		imports = append(imports, imp)
	}
	return imports, nil
}

func readThunks64(p Pe, rva Rva) ([]*ImportFunction, error) {
	entries, err := DervaSliceS[uint64](p, rva, 0)
	if err != nil {
		return nil, err
	}
	functions := make([]*ImportFunction, 0, len(entries))
	for _, entry := range entries {
		if entry&imageOrdinalFlag64 != 0 {
			functions = append(functions, &ImportFunction{
				ByOrdinal: true,
				Ordinal:   uint32(entry & 0xFFFF),
			})
			continue
		}
		fn, err := readHintName(p, entry&addressMask64)
		if err != nil {
			return nil, err
		}
		if fn != nil {
			functions = append(functions, fn)
		}
	}
	return functions, nil
}

func readThunks32(p Pe, rva Rva) ([]*ImportFunction, error) {
	entries, err := DervaSliceS[uint32](p, rva, 0)
	if err != nil {
		return nil, err
	}
	functions := make([]*ImportFunction, 0, len(entries))
	for _, entry := range entries {
		if entry&imageOrdinalFlag32 != 0 {
			functions = append(functions, &ImportFunction{
				ByOrdinal: true,
				Ordinal:   entry & 0xFFFF,
			})
			continue
		}
		fn, err := readHintName(p, uint64(entry&addressMask32))
		if err != nil {
			return nil, err
		}
		if fn != nil {
			functions = append(functions, fn)
		}
	}
	return functions, nil
}

// readHintName reads an IMAGE_IMPORT_BY_NAME entry: a uint16 hint followed
// by a nul-terminated name.
func readHintName(p Pe, rva uint64) (*ImportFunction, error) {
	if rva == 0 || rva > uint64(^uint32(0)) {
		return nil, ErrOutOfBounds
	}
	hint, err := DervaCopy[uint16](p, Rva(rva))
	if err != nil {
		return nil, err
	}
	name, err := DervaString(p, Rva(rva)+2, maxImportNameLength)
	if errors.Is(err, ErrBadCStr) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ImportFunction{Name: name, Hint: hint}, nil
}
