package peview

// parsedHeaders carries everything the validator proved about the buffer, so
// construction does not have to re-derive offsets it already certified.
type parsedHeaders struct {
	dosHeader      DosHeader
	fileHeader     FileHeader
	optionalHeader OptionalHeader
	is64           bool

	// Offset of the data directory array, right behind the fixed part of
	// the NT headers, and its entry count clamped to capacity.
	dataDirOffset uint32
	numDataDirs   uint32

	// Offset of the section header table.
	sectionsOffset uint32
}

// ValidateHeaders certifies that a raw byte buffer is a structurally well
// formed PE image and returns SizeOfImage.
//
// Every numeric header field is attacker controlled. This single pass proves,
// once, that the offset arithmetic later components run over those same
// fields can neither overflow nor escape the buffer, which is what allows
// the rest of the engine to use that arithmetic unchecked.
func ValidateHeaders(image []byte) (uint32, error) {
	h, err := validateHeaders(image)
	if err != nil {
		return 0, err
	}
	return h.optionalHeader.SizeOfImage, nil
}

func validateHeaders(image []byte) (*parsedHeaders, error) {
	h := new(parsedHeaders)

	// Grab the DOS header.
	if DOSHeaderSize > len(image) {
		return nil, ErrOutOfBounds
	}
	if err := structUnpack(image, 0, DOSHeaderSize, &h.dosHeader); err != nil {
		return nil, err
	}
	if h.dosHeader.Magic != ImageDOSSignature {
		return nil, ErrBadMagic
	}

	// The PE specification wants e_lfanew aligned on an 8 byte boundary but
	// the Windows loader only requires 4.
	eLfanew := h.dosHeader.AddressOfNewEXEHeader
	if eLfanew%4 != 0 {
		return nil, ErrMisaligned
	}

	// Capping e_lfanew keeps every later offset computation, all of which
	// add bounded quantities to it, well inside uint32 range.
	if eLfanew > MaxNewHeaderOffset {
		return nil, ErrInsane
	}

	// Grab the NT headers. The optional header's full extent depends on its
	// magic, so bounds are checked in two steps: first the fixed prefix up
	// to and including the magic, then the whole fixed optional header.
	if uint64(eLfanew)+ntHeaderPrefixSize+2 > uint64(len(image)) {
		return nil, ErrOutOfBounds
	}

	var signature uint32
	if err := structUnpack(image, eLfanew, 4, &signature); err != nil {
		return nil, err
	}
	if signature != ImageNTHeaderSignature {
		return nil, ErrBadMagic
	}
	if err := structUnpack(image, eLfanew+4, FileHeaderSize, &h.fileHeader); err != nil {
		return nil, err
	}

	optOffset := eLfanew + ntHeaderPrefixSize
	var ohMagic uint16
	if err := structUnpack(image, optOffset, 2, &ohMagic); err != nil {
		return nil, err
	}

	var ohFixedSize uint32
	switch ohMagic {
	case ImageNTOptionalHeader32Magic:
		ohFixedSize = optionalHeader32FixedSize
	case ImageNTOptionalHeader64Magic:
		ohFixedSize = optionalHeader64FixedSize
		h.is64 = true
	default:
		return nil, ErrBadMagic
	}

	ntEnd := optOffset + ohFixedSize
	if uint64(ntEnd) > uint64(len(image)) {
		return nil, ErrOutOfBounds
	}

	if h.is64 {
		var oh64 optionalHeader64
		if err := structUnpack(image, optOffset, ohFixedSize, &oh64); err != nil {
			return nil, err
		}
		h.optionalHeader = normalizeOptionalHeader64(&oh64)
	} else {
		var oh32 optionalHeader32
		if err := structUnpack(image, optOffset, ohFixedSize, &oh32); err != nil {
			return nil, err
		}
		h.optionalHeader = normalizeOptionalHeader32(&oh32)
	}

	if h.optionalHeader.SizeOfHeaders > h.optionalHeader.SizeOfImage {
		return nil, ErrInsane
	}

	// Verify the data directory.
	numDataDirs := h.optionalHeader.NumberOfRvaAndSizes
	if numDataDirs > NumberOfDirectoryEntries {
		numDataDirs = NumberOfDirectoryEntries
	}
	if uint64(ntEnd)+uint64(numDataDirs)*DataDirectorySize > uint64(len(image)) {
		return nil, ErrOutOfBounds
	}
	h.dataDirOffset = ntEnd
	h.numDataDirs = numDataDirs

	// Verify the section header table.
	if h.fileHeader.NumberOfSections > MaxNumberOfSections {
		return nil, ErrInsane
	}
	sizeOfSections := uint64(h.fileHeader.NumberOfSections) * SectionHeaderSize
	// e_lfanew is capped, SizeOfOptionalHeader is a uint16, so the start of
	// the section table cannot overflow.
	startOfSections := optOffset + uint32(h.fileHeader.SizeOfOptionalHeader)
	if uint64(startOfSections)+sizeOfSections > uint64(len(image)) {
		return nil, ErrOutOfBounds
	}
	h.sectionsOffset = startOfSections

	return h, nil
}
