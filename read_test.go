package peview

import (
	"math"
	"testing"

	"github.com/pkg/errors"
)

type pair struct {
	First  uint32
	Second uint32
}

func TestDerva(t *testing.T) {
	ti := defaultTestImage()
	ti.sections[0].put(t, 0, pair{First: 7, Second: 9})

	bothBackends(t, ti, func(t *testing.T, p Pe) {
		got, err := Derva[pair](p, 0x1000)
		if err != nil {
			t.Fatalf("Derva: %v", err)
		}
		if got.First != 7 || got.Second != 9 {
			t.Errorf("Derva = %+v", got)
		}
	})
}

func TestDervaAlignment(t *testing.T) {
	ti := defaultTestImage()
	ti.sections[0].put(t, 1, uint32(42))
	f := ti.peFile(t)

	// rva 0x1001 resolves to file offset 0x401, unaligned for a uint32.
	if _, err := Derva[uint32](f, 0x1001); !errors.Is(err, ErrMisaligned) {
		t.Errorf("Derva unaligned: error = %v, want %v", err, ErrMisaligned)
	}
	got, err := DervaCopy[uint32](f, 0x1001)
	if err != nil {
		t.Fatalf("DervaCopy: %v", err)
	}
	if got != 42 {
		t.Errorf("DervaCopy = %d, want 42", got)
	}
}

func TestDervaSlice(t *testing.T) {
	ti := defaultTestImage()
	ti.sections[0].put(t, 0, [4]uint32{10, 20, 30, 40})

	bothBackends(t, ti, func(t *testing.T, p Pe) {
		got, err := DervaSlice[uint32](p, 0x1000, 4)
		if err != nil {
			t.Fatalf("DervaSlice: %v", err)
		}
		if len(got) != 4 || got[0] != 10 || got[3] != 40 {
			t.Errorf("DervaSlice = %v", got)
		}
	})
}

func TestDervaSliceOverflow(t *testing.T) {
	f := defaultTestImage().peFile(t)

	// size * count wraps; the multiplication must fail before any read.
	if _, err := DervaSlice[uint64](f, 0x1000, math.MaxInt/2); !errors.Is(err, ErrOverflow) {
		t.Errorf("error = %v, want %v", err, ErrOverflow)
	}
	if _, err := DervaSlice[uint32](f, 0x1000, -1); !errors.Is(err, ErrOverflow) {
		t.Errorf("negative count: error = %v, want %v", err, ErrOverflow)
	}
	// Large but non-overflowing counts fail the bounds check instead.
	if _, err := DervaSlice[uint32](f, 0x1000, 1<<20); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("huge count: error = %v, want %v", err, ErrOutOfBounds)
	}
}

func TestDervaSliceS(t *testing.T) {
	ti := defaultTestImage()
	ti.sections[0].put(t, 0, [4]uint32{1, 2, 3, 0})

	bothBackends(t, ti, func(t *testing.T, p Pe) {
		got, err := DervaSliceS[uint32](p, 0x1000, 0)
		if err != nil {
			t.Fatalf("DervaSliceS: %v", err)
		}
		if len(got) != 3 || got[0] != 1 || got[2] != 3 {
			t.Errorf("DervaSliceS = %v", got)
		}
	})
}

func TestDervaSliceSMissingSentinel(t *testing.T) {
	// Fill the whole raw range so the sentinel never appears; the scan must
	// stop at the region end with ErrOutOfBounds, not read past it.
	ti := defaultTestImage()
	content := make([]byte, ti.sections[0].sizeOfRawData)
	for i := range content {
		content[i] = 0xFF
	}
	ti.sections[0].put(t, 0, content)
	f := ti.peFile(t)

	if _, err := DervaSliceS[uint32](f, 0x1000, 0); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("error = %v, want %v", err, ErrOutOfBounds)
	}
}

func TestDervaSliceF(t *testing.T) {
	ti := defaultTestImage()
	ti.sections[0].put(t, 0, [5]uint16{2, 4, 6, 7, 8})
	f := ti.peFile(t)

	got, err := DervaSliceF(f, 0x1000, func(v *uint16) bool { return *v%2 != 0 })
	if err != nil {
		t.Fatalf("DervaSliceF: %v", err)
	}
	if len(got) != 3 || got[2] != 6 {
		t.Errorf("DervaSliceF = %v", got)
	}
}

func TestDervaCStr(t *testing.T) {
	ti := defaultTestImage()
	ti.sections[0].put(t, 0x10, []byte("GetProcAddress\x00"))

	bothBackends(t, ti, func(t *testing.T, p Pe) {
		got, err := DervaCStr(p, 0x1010)
		if err != nil {
			t.Fatalf("DervaCStr: %v", err)
		}
		if got != "GetProcAddress" {
			t.Errorf("DervaCStr = %q", got)
		}
	})
}

func TestDervaCStrUnterminated(t *testing.T) {
	// A run of non-zero bytes right up to the end of the section's raw data.
	ti := defaultTestImage()
	tail := make([]byte, 8)
	for i := range tail {
		tail[i] = 'A'
	}
	ti.sections[0].put(t, int(ti.sections[0].sizeOfRawData)-len(tail), tail)
	f := ti.peFile(t)

	rva := Rva(0x1000 + ti.sections[0].sizeOfRawData - 8)
	if _, err := DervaCStr(f, rva); !errors.Is(err, ErrBadCStr) {
		t.Errorf("error = %v, want %v", err, ErrBadCStr)
	}
}

func TestDervaString(t *testing.T) {
	ti := defaultTestImage()
	ti.sections[0].put(t, 0x10, []byte("GetProcAddress\x00"))

	bothBackends(t, ti, func(t *testing.T, p Pe) {
		got, err := DervaString(p, 0x1010, 0x200)
		if err != nil {
			t.Fatalf("DervaString: %v", err)
		}
		if got != "GetProcAddress" {
			t.Errorf("DervaString = %q", got)
		}

		// The terminator exactly at the limit still counts.
		got, err = DervaString(p, 0x1010, 15)
		if err != nil || got != "GetProcAddress" {
			t.Errorf("DervaString at limit = %q, %v", got, err)
		}

		// A limit shorter than the string must fail, not scan past it.
		if _, err := DervaString(p, 0x1010, 8); !errors.Is(err, ErrBadCStr) {
			t.Errorf("short limit: error = %v, want %v", err, ErrBadCStr)
		}
		if _, err := DervaString(p, 0x1010, -1); !errors.Is(err, ErrOverflow) {
			t.Errorf("negative limit: error = %v, want %v", err, ErrOverflow)
		}
	})
}

func TestDervaWideCStr(t *testing.T) {
	ti := defaultTestImage()
	ti.sections[0].put(t, 0x20, []uint16{'w', 'i', 'd', 'e', 0})
	f := ti.peFile(t)

	got, err := DervaWideCStr(f, 0x1020)
	if err != nil {
		t.Fatalf("DervaWideCStr: %v", err)
	}
	if got != "wide" {
		t.Errorf("DervaWideCStr = %q", got)
	}
}

func TestDerefFamily(t *testing.T) {
	ti := defaultTestImage()
	ti.sections[0].put(t, 0, uint32(0x55AA55AA))
	ti.sections[0].put(t, 8, [3]uint64{11, 22, 0})
	ti.sections[0].put(t, 0x40, []byte("kernel32.dll\x00"))

	bothBackends(t, ti, func(t *testing.T, p Pe) {
		base := p.OptionalHeader().ImageBase

		v, err := Deref[uint32](p, Ptr[uint32](base+0x1000))
		if err != nil {
			t.Fatalf("Deref: %v", err)
		}
		if *v != 0x55AA55AA {
			t.Errorf("Deref = %#x", *v)
		}

		s, err := DerefSliceS[uint64](p, Ptr[uint64](base+0x1008), 0)
		if err != nil {
			t.Fatalf("DerefSliceS: %v", err)
		}
		if len(s) != 2 || s[1] != 22 {
			t.Errorf("DerefSliceS = %v", s)
		}

		str, err := DerefCStr(p, Ptr[byte](base+0x1040))
		if err != nil {
			t.Fatalf("DerefCStr: %v", err)
		}
		if str != "kernel32.dll" {
			t.Errorf("DerefCStr = %q", str)
		}

		if _, err := Deref[uint32](p, 0); !errors.Is(err, ErrNull) {
			t.Errorf("null ptr: error = %v, want %v", err, ErrNull)
		}
	})
}

func TestDerefSliceOverflow(t *testing.T) {
	f := defaultTestImage().peFile(t)
	base := f.OptionalHeader().ImageBase

	if _, err := DerefSlice[uint64](f, Ptr[uint64](base+0x1000), math.MaxInt/2); !errors.Is(err, ErrOverflow) {
		t.Errorf("error = %v, want %v", err, ErrOverflow)
	}
}
