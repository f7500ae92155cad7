package peview

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// Tests run against synthetic images assembled in memory. The builder lays
// out a minimal but fully valid PE with e_lfanew = 0x40 and the full 16
// entry data directory, then callers poke directory tables into section
// contents as needed.

const (
	testELfanew   = 0x40
	testOptOffset = testELfanew + ntHeaderPrefixSize
)

type testSection struct {
	name             string
	virtualAddress   uint32
	virtualSize      uint32
	pointerToRawData uint32
	sizeOfRawData    uint32
	data             []byte
}

// put encodes v little-endian into the section contents at the given offset
// from the section start.
func (ts *testSection) put(t *testing.T, offset int, v any) {
	t.Helper()
	if ts.data == nil {
		ts.data = make([]byte, ts.sizeOfRawData)
	}
	putStruct(t, ts.data, offset, v)
}

type testImage struct {
	is64          bool
	imageBase     uint64
	sizeOfImage   uint32
	sizeOfHeaders uint32
	entryPoint    uint32
	dataDir       [NumberOfDirectoryEntries]DataDirectory
	sections      []*testSection
}

// defaultTestImage is the minimal image most tests share: one .text section
// with VirtualAddress 0x1000, VirtualSize 0x2000, SizeOfRawData 0x1000 and
// PointerToRawData 0x400, SizeOfImage 0x3000, ImageBase 0x140000000.
func defaultTestImage() *testImage {
	return &testImage{
		is64:          true,
		imageBase:     0x140000000,
		sizeOfImage:   0x3000,
		sizeOfHeaders: 0x400,
		entryPoint:    0x1000,
		sections: []*testSection{{
			name:             ".text",
			virtualAddress:   0x1000,
			virtualSize:      0x2000,
			pointerToRawData: 0x400,
			sizeOfRawData:    0x1000,
		}},
	}
}

func putStruct(t *testing.T, buf []byte, offset int, v any) {
	t.Helper()
	var w bytes.Buffer
	if err := binary.Write(&w, binary.LittleEndian, v); err != nil {
		t.Fatalf("encode %T: %v", v, err)
	}
	if offset+w.Len() > len(buf) {
		t.Fatalf("%T does not fit at offset %#x", v, offset)
	}
	copy(buf[offset:], w.Bytes())
}

// file lays the image out as stored on disk.
func (ti *testImage) file(t *testing.T) []byte {
	t.Helper()

	size := ti.sizeOfHeaders
	for _, s := range ti.sections {
		if end := s.pointerToRawData + s.sizeOfRawData; end > size {
			size = end
		}
	}
	buf := make([]byte, size)

	// DOS header
	binary.LittleEndian.PutUint16(buf[0:], ImageDOSSignature)
	binary.LittleEndian.PutUint32(buf[0x3C:], testELfanew)

	// NT headers
	binary.LittleEndian.PutUint32(buf[testELfanew:], ImageNTHeaderSignature)

	ohFixedSize := optionalHeader64FixedSize
	machine := uint16(0x8664) // AMD64
	if !ti.is64 {
		ohFixedSize = optionalHeader32FixedSize
		machine = 0x014C // I386
	}
	putStruct(t, buf, testELfanew+4, FileHeader{
		Machine:              machine,
		NumberOfSections:     uint16(len(ti.sections)),
		SizeOfOptionalHeader: uint16(ohFixedSize + NumberOfDirectoryEntries*DataDirectorySize),
		Characteristics:      0x0022,
	})

	if ti.is64 {
		putStruct(t, buf, testOptOffset, optionalHeader64{
			Magic:               ImageNTOptionalHeader64Magic,
			AddressOfEntryPoint: ti.entryPoint,
			ImageBase:           ti.imageBase,
			SectionAlignment:    0x1000,
			FileAlignment:       0x200,
			SizeOfImage:         ti.sizeOfImage,
			SizeOfHeaders:       ti.sizeOfHeaders,
			NumberOfRvaAndSizes: NumberOfDirectoryEntries,
		})
	} else {
		putStruct(t, buf, testOptOffset, optionalHeader32{
			Magic:               ImageNTOptionalHeader32Magic,
			AddressOfEntryPoint: ti.entryPoint,
			ImageBase:           uint32(ti.imageBase),
			SectionAlignment:    0x1000,
			FileAlignment:       0x200,
			SizeOfImage:         ti.sizeOfImage,
			SizeOfHeaders:       ti.sizeOfHeaders,
			NumberOfRvaAndSizes: NumberOfDirectoryEntries,
		})
	}
	putStruct(t, buf, testOptOffset+ohFixedSize, ti.dataDir)

	sectionsOffset := testOptOffset + ohFixedSize + NumberOfDirectoryEntries*DataDirectorySize
	for i, s := range ti.sections {
		var name [8]uint8
		copy(name[:], s.name)
		putStruct(t, buf, sectionsOffset+i*SectionHeaderSize, SectionHeader{
			Name:             name,
			VirtualSize:      s.virtualSize,
			VirtualAddress:   s.virtualAddress,
			SizeOfRawData:    s.sizeOfRawData,
			PointerToRawData: s.pointerToRawData,
			Characteristics:  ImageScnMemRead,
		})
		copy(buf[s.pointerToRawData:s.pointerToRawData+s.sizeOfRawData], s.data)
	}
	return buf
}

// mapped lays the image out as a loader would map it: headers at zero,
// section raw data copied to its virtual address, the rest zero filled.
func (ti *testImage) mapped(t *testing.T) []byte {
	t.Helper()

	disk := ti.file(t)
	buf := make([]byte, ti.sizeOfImage)

	headerEnd := ti.sizeOfHeaders
	if headerEnd > uint32(len(disk)) {
		headerEnd = uint32(len(disk))
	}
	copy(buf, disk[:headerEnd])

	for _, s := range ti.sections {
		copy(buf[s.virtualAddress:], disk[s.pointerToRawData:s.pointerToRawData+s.sizeOfRawData])
	}
	return buf
}

func (ti *testImage) peFile(t *testing.T, opts ...Option) *PeFile {
	t.Helper()
	f, err := NewPeFile(ti.file(t), opts...)
	if err != nil {
		t.Fatalf("NewPeFile: %v", err)
	}
	return f
}

func (ti *testImage) peView(t *testing.T, opts ...Option) *PeView {
	t.Helper()
	v, err := NewPeView(ti.mapped(t), opts...)
	if err != nil {
		t.Fatalf("NewPeView: %v", err)
	}
	return v
}

// bothBackends runs a subtest against the same logical image in both
// physical layouts; backend-agnostic behavior must hold for each.
func bothBackends(t *testing.T, ti *testImage, fn func(t *testing.T, p Pe)) {
	t.Helper()
	t.Run("file", func(t *testing.T) { fn(t, ti.peFile(t)) })
	t.Run("view", func(t *testing.T) { fn(t, ti.peView(t)) })
}
