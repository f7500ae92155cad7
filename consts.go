package peview

const (
	ImageDOSSignature      = 0x5A4D     // MZ
	ImageNTHeaderSignature = 0x00004550 // PE\0\0

	ImageNTOptionalHeader32Magic = 0x010B
	ImageNTOptionalHeader64Magic = 0x020B
)

// NumberOfDirectoryEntries is the capacity of the data directory.
const NumberOfDirectoryEntries = 16

// IMAGE_DIRECTORY_ENTRY constants
const (
	ImageDirectoryEntryExport        = 0
	ImageDirectoryEntryImport        = 1
	ImageDirectoryEntryResource      = 2
	ImageDirectoryEntryException     = 3
	ImageDirectoryEntrySecurity      = 4
	ImageDirectoryEntryBaseReLoc     = 5
	ImageDirectoryEntryDebug         = 6
	ImageDirectoryEntryArchitecture  = 7
	ImageDirectoryEntryGlobalPtr     = 8
	ImageDirectoryEntryTls           = 9
	ImageDirectoryEntryLoadConfig    = 10
	ImageDirectoryEntryBoundImport   = 11
	ImageDirectoryEntryIat           = 12
	ImageDirectoryEntryDelayImport   = 13
	ImageDirectoryEntryComDescriptor = 14
	ImageDirectoryEntryReserved      = 15
)

const (
	ImageScnMemExecute = 0x20000000
	ImageScnMemRead    = 0x40000000
	ImageScnMemWrite   = 0x80000000
)

// Sanity ceilings enforced by ValidateHeaders. Both are conservative
// engineering margins beyond the strict PE specification; they bound the
// offset arithmetic every later component performs over header fields.
const (
	// MaxNumberOfSections caps NumberOfSections.
	MaxNumberOfSections = 96
	// MaxNewHeaderOffset caps e_lfanew.
	MaxNewHeaderOffset = 0x01000000
)

// Fixed sizes of the header layouts as they appear on the wire.
const (
	DOSHeaderSize     = 64
	FileHeaderSize    = 20
	SectionHeaderSize = 40
	DataDirectorySize = 8

	// BaseRelocationSize is the size of the block header alone; SizeOfBlock
	// counts it plus the packed entries that follow.
	BaseRelocationSize = 8

	// Signature plus file header, the prefix before the optional header.
	ntHeaderPrefixSize = 4 + FileHeaderSize

	optionalHeader32FixedSize = 96
	optionalHeader64FixedSize = 112
)

const (
	imageOrdinalFlag32  = uint32(0x80000000)
	imageOrdinalFlag64  = uint64(0x8000000000000000)
	addressMask32       = uint32(0x7fffffff)
	addressMask64       = uint64(0x7fffffffffffffff)
	maxDllLength        = 0x200
	maxImportNameLength = 0x200
)
