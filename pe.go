package peview

// Align is the physical layout a view addresses.
type Align int

const (
	// AlignFile means section data lives at PointerToRawData with size
	// SizeOfRawData, the layout of a PE file as stored on disk.
	AlignFile Align = iota
	// AlignSection means section data lives at VirtualAddress with size
	// VirtualSize, the contiguous layout a loader maps into memory.
	AlignSection
)

func (a Align) String() string {
	switch a {
	case AlignFile:
		return "file"
	case AlignSection:
		return "section"
	default:
		return "unknown"
	}
}

// Pe is the common surface of the two image backends, PeFile and PeView.
//
// Every method is a pure, non-blocking computation over the immutable byte
// buffer supplied at construction. Handles and all derived slices are safe
// for concurrent readers. Returned slices alias the original buffer and must
// not be written to; the caller keeps the buffer alive for as long as any
// handle or derived slice is in use.
//
// Collaborators interpreting directories must go through Slice/Read and the
// typed read layer, never index Image() directly.
type Pe interface {
	// Image returns the underlying byte buffer.
	Image() []byte

	// Align reports whether the image uses file or section alignment.
	Align() Align

	// DosHeader returns the parsed DOS header.
	DosHeader() DosHeader

	// FileHeader returns the parsed COFF file header.
	FileHeader() FileHeader

	// OptionalHeader returns the optional header, normalized to 64 bit
	// widths. Is64 reports which wire layout it was decoded from.
	OptionalHeader() OptionalHeader

	// Is64 reports whether the optional header magic was PE32+.
	Is64() bool

	// SectionHeaders returns the section header table in storage order.
	// The returned slice must not be modified.
	SectionHeaders() []SectionHeader

	// DataDirectory returns the data directory, truncated to
	// min(NumberOfRvaAndSizes, NumberOfDirectoryEntries).
	// The returned slice must not be modified.
	DataDirectory() []DataDirectory

	// RvaToFileOffset translates an RVA to an offset in the on-disk
	// representation. ErrZeroFill means the RVA is valid but addresses the
	// zero filled tail of a section with no file bytes behind it.
	RvaToFileOffset(rva Rva) (FileOffset, error)

	// FileOffsetToRva translates an on-disk offset to an RVA. ErrOutOfBounds
	// includes the case of raw bytes beyond what gets mapped, when a
	// section's virtual size is shorter than its raw size.
	FileOffsetToRva(offset FileOffset) (Rva, error)

	// RvaToVa rebases an RVA onto the preferred image base.
	RvaToVa(rva Rva) (Va, error)

	// VaToRva strips the preferred image base from a VA.
	VaToRva(va Va) (Rva, error)

	// Slice returns the bytes of the image starting at rva.
	//
	// The returned slice runs from the resolved location to the end of its
	// containing region, which is often much longer than minSize; this lets
	// callers read self describing structures without a second round trip.
	// It is never shorter than minSize, otherwise ErrOutOfBounds. The
	// resolved offset must satisfy align, a power of two, relative to the
	// buffer base, otherwise ErrMisaligned; the UnsafeAlignment option
	// disables that check. A zero rva is ErrNull.
	Slice(rva Rva, minSize, align int) ([]byte, error)

	// Read is Slice addressed by VA instead of RVA, with the same contract.
	Read(va Va, minSize, align int) ([]byte, error)
}

// Option configures a handle at construction time.
type Option func(*image)

// UnsafeAlignment disables alignment checking in Slice and Read. Only for
// callers that have independently proven their reads are safe at any
// alignment.
func UnsafeAlignment() Option {
	return func(im *image) {
		im.unsafeAlignment = true
	}
}

// SliceBytes slices the image at rva with no alignment or minimum size.
func SliceBytes(p Pe, rva Rva) ([]byte, error) {
	return p.Slice(rva, 0, 1)
}

// ReadBytes reads the image at va with no alignment or minimum size.
func ReadBytes(p Pe, va Va) ([]byte, error) {
	return p.Read(va, 0, 1)
}
