package peview

import "github.com/pkg/errors"

// ErrSymbolNotFound is returned by export lookups when no entry matches.
var ErrSymbolNotFound = errors.New("symbol not found")

// ImageExportDirectory is the export directory table header.
type ImageExportDirectory struct {
	Characteristics       uint32
	TimeDateStamp         uint32
	MajorVersion          uint16
	MinorVersion          uint16
	Name                  uint32
	Base                  uint32
	NumberOfFunctions     uint32
	NumberOfNames         uint32
	AddressOfFunctions    uint32
	AddressOfNames        uint32
	AddressOfNameOrdinals uint32
}

// Export is a resolved export table entry: either a symbol RVA or a
// forwarder reference of the form "DLLNAME.SymbolName".
type Export struct {
	Ordinal uint32
	Rva     Rva    // zero when forwarded
	Forward string // empty unless forwarded
}

// Exports interprets the export directory of an image. It is a collaborator
// of the view engine: all access goes through the typed read layer.
type Exports struct {
	pe      Pe
	datadir DataDirectory
	dir     ImageExportDirectory
}

// NewExports returns the export directory of the image. ErrNull means the
// image exports nothing; any other error means corruption.
func NewExports(p Pe) (*Exports, error) {
	dd := p.DataDirectory()
	if ImageDirectoryEntryExport >= len(dd) {
		return nil, ErrNull
	}
	datadir := dd[ImageDirectoryEntryExport]
	if datadir.VirtualAddress == 0 {
		return nil, ErrNull
	}
	dir, err := Derva[ImageExportDirectory](p, datadir.VirtualAddress)
	if err != nil {
		return nil, err
	}
	return &Exports{pe: p, datadir: datadir, dir: *dir}, nil
}

// Directory returns the raw export directory header.
func (e *Exports) Directory() ImageExportDirectory {
	return e.dir
}

// DllName returns the name the image exports under.
func (e *Exports) DllName() (string, error) {
	return DervaCStr(e.pe, Rva(e.dir.Name))
}

// OrdinalBase is the ordinal of the first entry in the address table.
func (e *Exports) OrdinalBase() uint32 {
	return e.dir.Base
}

// Functions returns the export address table. Entries may be zero for
// skipped ordinals.
func (e *Exports) Functions() ([]Rva, error) {
	return DervaSlice[Rva](e.pe, Rva(e.dir.AddressOfFunctions), int(e.dir.NumberOfFunctions))
}

// Names returns the RVAs of the exported names, sorted by the linker.
func (e *Exports) Names() ([]Rva, error) {
	return DervaSlice[Rva](e.pe, Rva(e.dir.AddressOfNames), int(e.dir.NumberOfNames))
}

// NameOrdinals returns the table mapping name index to address table index.
func (e *Exports) NameOrdinals() ([]uint16, error) {
	return DervaSlice[uint16](e.pe, Rva(e.dir.AddressOfNameOrdinals), int(e.dir.NumberOfNames))
}

// ByOrdinal looks up an export by its ordinal.
func (e *Exports) ByOrdinal(ordinal uint32) (Export, error) {
	if ordinal < e.dir.Base {
		return Export{}, ErrOutOfBounds
	}
	index := ordinal - e.dir.Base
	if index >= e.dir.NumberOfFunctions {
		return Export{}, ErrOutOfBounds
	}
	functions, err := e.Functions()
	if err != nil {
		return Export{}, err
	}
	return e.resolve(ordinal, functions[index])
}

// ByName looks up an export by name. The name table is untrusted, so this is
// a linear scan rather than the binary search a well formed table would
// allow.
func (e *Exports) ByName(name string) (Export, error) {
	names, err := e.Names()
	if err != nil {
		return Export{}, err
	}
	ordinals, err := e.NameOrdinals()
	if err != nil {
		return Export{}, err
	}
	for i, nameRva := range names {
		s, err := DervaCStr(e.pe, nameRva)
		if err != nil {
			return Export{}, err
		}
		if s == name {
			return e.ByOrdinal(e.dir.Base + uint32(ordinals[i]))
		}
	}
	return Export{}, ErrSymbolNotFound
}

// resolve classifies an address table entry. An RVA that points back inside
// the export directory's own data directory range is a forwarder string, not
// a symbol.
func (e *Exports) resolve(ordinal uint32, rva Rva) (Export, error) {
	if rva == 0 {
		return Export{}, ErrNull
	}
	start := uint32(e.datadir.VirtualAddress)
	end := uint64(start) + uint64(e.datadir.Size)
	if uint64(rva) >= uint64(start) && uint64(rva) < end {
		forward, err := DervaCStr(e.pe, rva)
		if err != nil {
			return Export{}, err
		}
		return Export{Ordinal: ordinal, Forward: forward}, nil
	}
	return Export{Ordinal: ordinal, Rva: rva}, nil
}
