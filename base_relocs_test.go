package peview

import (
	"testing"

	"github.com/pkg/errors"
)

func relocTestImage(t *testing.T) *testImage {
	ti := defaultTestImage()
	// Two blocks: 12 bytes (2 entries) and 16 bytes (4 entries).
	ti.dataDir[ImageDirectoryEntryBaseReLoc] = DataDirectory{VirtualAddress: 0x1000, Size: 28}

	s := ti.sections[0]
	s.put(t, 0, ImageBaseRelocation{VirtualAddress: 0x2000, SizeOfBlock: 12})
	s.put(t, 8, [2]uint16{
		uint16(ImageRelBasedDir64)<<12 | 0x010,
		uint16(ImageRelBasedAbsolute) << 12, // padding entry
	})
	s.put(t, 12, ImageBaseRelocation{VirtualAddress: 0x2000 + 0x1000, SizeOfBlock: 16})
	s.put(t, 20, [4]uint16{
		uint16(ImageRelBasedHighLow)<<12 | 0x123,
		uint16(ImageRelBasedHighLow)<<12 | 0x456,
		uint16(ImageRelBasedDir64)<<12 | 0x789,
		0,
	})
	return ti
}

func TestBaseRelocs(t *testing.T) {
	bothBackends(t, relocTestImage(t), func(t *testing.T, p Pe) {
		blocks, err := NewBaseRelocs(p)
		if err != nil {
			t.Fatalf("NewBaseRelocs: %v", err)
		}
		if len(blocks) != 2 {
			t.Fatalf("len(blocks) = %d, want 2", len(blocks))
		}

		first := blocks[0]
		if first.VirtualAddress != 0x2000 || len(first.Relocs) != 2 {
			t.Fatalf("blocks[0] = %+v", first)
		}
		if first.Relocs[0].Type != ImageRelBasedDir64 || first.Relocs[0].Rva != 0x2010 {
			t.Errorf("blocks[0].Relocs[0] = %+v", first.Relocs[0])
		}
		if first.Relocs[1].Type != ImageRelBasedAbsolute {
			t.Errorf("blocks[0].Relocs[1] = %+v", first.Relocs[1])
		}

		second := blocks[1]
		if second.VirtualAddress != 0x3000 || len(second.Relocs) != 4 {
			t.Fatalf("blocks[1] = %+v", second)
		}
		if second.Relocs[1].Rva != 0x3456 {
			t.Errorf("blocks[1].Relocs[1] = %+v", second.Relocs[1])
		}
	})
}

func TestBaseRelocsAbsent(t *testing.T) {
	f := defaultTestImage().peFile(t)
	if _, err := NewBaseRelocs(f); !errors.Is(err, ErrNull) {
		t.Errorf("error = %v, want %v", err, ErrNull)
	}
}

func TestBaseRelocsCorrupt(t *testing.T) {
	tests := []struct {
		name        string
		sizeOfBlock uint32
	}{
		{"zero block size", 0},
		{"block size below header", 4},
		{"block size past directory", 0x100},
		{"odd block size", 13},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ti := relocTestImage(t)
			ti.sections[0].put(t, 0, ImageBaseRelocation{VirtualAddress: 0x2000, SizeOfBlock: tt.sizeOfBlock})
			f := ti.peFile(t)

			if _, err := NewBaseRelocs(f); !errors.Is(err, ErrOutOfBounds) {
				t.Errorf("error = %v, want %v", err, ErrOutOfBounds)
			}
		})
	}
}
