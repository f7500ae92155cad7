package peview

import (
	"bytes"
	"encoding/binary"
)

// DosHeader is the legacy DOS header at the very start of the image. Only
// Magic and AddressOfNewEXEHeader matter to the engine, the rest is carried
// for completeness.
type DosHeader struct {
	Magic                    uint16
	BytesOnLastPageOfFile    uint16
	PagesInFile              uint16
	Relocations              uint16
	SizeOfHeader             uint16
	MinExtraParagraphsNeeded uint16
	MaxExtraParagraphsNeeded uint16
	InitialSS                uint16
	InitialSP                uint16
	Checksum                 uint16
	InitialIP                uint16
	InitialCS                uint16
	AddressOfRelocationTable uint16
	OverlayNumber            uint16
	ReservedWords1           [4]uint16
	OEMIdentifier            uint16
	OEMInformation           uint16
	ReservedWords2           [10]uint16
	AddressOfNewEXEHeader    uint32
}

type FileHeader struct {
	Machine              uint16
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      uint16
}

type DataDirectory struct {
	VirtualAddress Rva
	Size           uint32
}

// optionalHeader32 and optionalHeader64 are the raw wire layouts of the
// optional header without the trailing data directory array.
type optionalHeader32 struct {
	Magic                       uint16
	MajorLinkerVersion          uint8
	MinorLinkerVersion          uint8
	SizeOfCode                  uint32
	SizeOfInitializedData       uint32
	SizeOfUninitializedData     uint32
	AddressOfEntryPoint         uint32
	BaseOfCode                  uint32
	BaseOfData                  uint32
	ImageBase                   uint32
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	Win32VersionValue           uint32
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	CheckSum                    uint32
	Subsystem                   uint16
	DllCharacteristics          uint16
	SizeOfStackReserve          uint32
	SizeOfStackCommit           uint32
	SizeOfHeapReserve           uint32
	SizeOfHeapCommit            uint32
	LoaderFlags                 uint32
	NumberOfRvaAndSizes         uint32
}

type optionalHeader64 struct {
	Magic                       uint16
	MajorLinkerVersion          uint8
	MinorLinkerVersion          uint8
	SizeOfCode                  uint32
	SizeOfInitializedData       uint32
	SizeOfUninitializedData     uint32
	AddressOfEntryPoint         uint32
	BaseOfCode                  uint32
	ImageBase                   uint64
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	Win32VersionValue           uint32
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	CheckSum                    uint32
	Subsystem                   uint16
	DllCharacteristics          uint16
	SizeOfStackReserve          uint64
	SizeOfStackCommit           uint64
	SizeOfHeapReserve           uint64
	SizeOfHeapCommit            uint64
	LoaderFlags                 uint32
	NumberOfRvaAndSizes         uint32
}

// OptionalHeader is the optional header normalized to 64 bit field widths so
// the rest of the engine does not branch on image width. BaseOfData is only
// meaningful for PE32 images. The data directory is exposed separately via
// Pe.DataDirectory, already clamped to NumberOfRvaAndSizes.
type OptionalHeader struct {
	Magic                       uint16
	MajorLinkerVersion          uint8
	MinorLinkerVersion          uint8
	SizeOfCode                  uint32
	SizeOfInitializedData       uint32
	SizeOfUninitializedData     uint32
	AddressOfEntryPoint         Rva
	BaseOfCode                  uint32
	BaseOfData                  uint32
	ImageBase                   Va
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	Win32VersionValue           uint32
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	CheckSum                    uint32
	Subsystem                   uint16
	DllCharacteristics          uint16
	SizeOfStackReserve          uint64
	SizeOfStackCommit           uint64
	SizeOfHeapReserve           uint64
	SizeOfHeapCommit            uint64
	LoaderFlags                 uint32
	NumberOfRvaAndSizes         uint32
}

// SectionHeader is a section descriptor exactly as stored in the section
// table. The fields are untrusted: ranges are not guaranteed sorted or
// non-overlapping, and translation is a first-match scan in table order.
type SectionHeader struct {
	Name                 [8]uint8
	VirtualSize          uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	PointerToLineNumbers uint32
	NumberOfRelocations  uint16
	NumberOfLineNumbers  uint16
	Characteristics      uint32
}

// NameString returns the section name with trailing NULs stripped.
func (sh *SectionHeader) NameString() string {
	return cString(sh.Name[:])
}

// Flags renders the rwx characteristics of the section.
func (sh *SectionHeader) Flags() (flags string) {
	if (ImageScnMemRead & sh.Characteristics) == ImageScnMemRead {
		flags += "r"
	}
	if (ImageScnMemExecute & sh.Characteristics) == ImageScnMemExecute {
		flags += "x"
	}
	if (ImageScnMemWrite & sh.Characteristics) == ImageScnMemWrite {
		flags += "w"
	}
	return flags
}

// cString converts ASCII byte sequence b to string.
// It stops once it finds 0 or reaches end of b.
func cString(b []byte) string {
	i := bytes.IndexByte(b, 0)
	if i == -1 {
		i = len(b)
	}
	return string(b[:i])
}

// structUnpack decodes the little-endian wire layout at [offset, offset+size)
// into iface. All header decoding goes through here so that bounds and
// overflow are checked in one place.
func structUnpack(image []byte, offset, size uint32, iface any) error {
	totalSize := offset + size

	// Integer overflow
	if (totalSize > offset) != (size > 0) {
		return ErrOutOfBounds
	}

	if uint64(totalSize) > uint64(len(image)) {
		return ErrOutOfBounds
	}
	return binary.Read(bytes.NewReader(image[offset:totalSize]), binary.LittleEndian, iface)
}

func normalizeOptionalHeader32(oh *optionalHeader32) OptionalHeader {
	return OptionalHeader{
		Magic:                       oh.Magic,
		MajorLinkerVersion:          oh.MajorLinkerVersion,
		MinorLinkerVersion:          oh.MinorLinkerVersion,
		SizeOfCode:                  oh.SizeOfCode,
		SizeOfInitializedData:       oh.SizeOfInitializedData,
		SizeOfUninitializedData:     oh.SizeOfUninitializedData,
		AddressOfEntryPoint:         Rva(oh.AddressOfEntryPoint),
		BaseOfCode:                  oh.BaseOfCode,
		BaseOfData:                  oh.BaseOfData,
		ImageBase:                   Va(oh.ImageBase),
		SectionAlignment:            oh.SectionAlignment,
		FileAlignment:               oh.FileAlignment,
		MajorOperatingSystemVersion: oh.MajorOperatingSystemVersion,
		MinorOperatingSystemVersion: oh.MinorOperatingSystemVersion,
		MajorImageVersion:           oh.MajorImageVersion,
		MinorImageVersion:           oh.MinorImageVersion,
		MajorSubsystemVersion:       oh.MajorSubsystemVersion,
		MinorSubsystemVersion:       oh.MinorSubsystemVersion,
		Win32VersionValue:           oh.Win32VersionValue,
		SizeOfImage:                 oh.SizeOfImage,
		SizeOfHeaders:               oh.SizeOfHeaders,
		CheckSum:                    oh.CheckSum,
		Subsystem:                   oh.Subsystem,
		DllCharacteristics:          oh.DllCharacteristics,
		SizeOfStackReserve:          uint64(oh.SizeOfStackReserve),
		SizeOfStackCommit:           uint64(oh.SizeOfStackCommit),
		SizeOfHeapReserve:           uint64(oh.SizeOfHeapReserve),
		SizeOfHeapCommit:            uint64(oh.SizeOfHeapCommit),
		LoaderFlags:                 oh.LoaderFlags,
		NumberOfRvaAndSizes:         oh.NumberOfRvaAndSizes,
	}
}

func normalizeOptionalHeader64(oh *optionalHeader64) OptionalHeader {
	return OptionalHeader{
		Magic:                       oh.Magic,
		MajorLinkerVersion:          oh.MajorLinkerVersion,
		MinorLinkerVersion:          oh.MinorLinkerVersion,
		SizeOfCode:                  oh.SizeOfCode,
		SizeOfInitializedData:       oh.SizeOfInitializedData,
		SizeOfUninitializedData:     oh.SizeOfUninitializedData,
		AddressOfEntryPoint:         Rva(oh.AddressOfEntryPoint),
		BaseOfCode:                  oh.BaseOfCode,
		ImageBase:                   Va(oh.ImageBase),
		SectionAlignment:            oh.SectionAlignment,
		FileAlignment:               oh.FileAlignment,
		MajorOperatingSystemVersion: oh.MajorOperatingSystemVersion,
		MinorOperatingSystemVersion: oh.MinorOperatingSystemVersion,
		MajorImageVersion:           oh.MajorImageVersion,
		MinorImageVersion:           oh.MinorImageVersion,
		MajorSubsystemVersion:       oh.MajorSubsystemVersion,
		MinorSubsystemVersion:       oh.MinorSubsystemVersion,
		Win32VersionValue:           oh.Win32VersionValue,
		SizeOfImage:                 oh.SizeOfImage,
		SizeOfHeaders:               oh.SizeOfHeaders,
		CheckSum:                    oh.CheckSum,
		Subsystem:                   oh.Subsystem,
		DllCharacteristics:          oh.DllCharacteristics,
		SizeOfStackReserve:          oh.SizeOfStackReserve,
		SizeOfStackCommit:           oh.SizeOfStackCommit,
		SizeOfHeapReserve:           oh.SizeOfHeapReserve,
		SizeOfHeapCommit:            oh.SizeOfHeapCommit,
		LoaderFlags:                 oh.LoaderFlags,
		NumberOfRvaAndSizes:         oh.NumberOfRvaAndSizes,
	}
}
