package peview

type imageTlsDirectory32 struct {
	StartAddressOfRawData uint32
	EndAddressOfRawData   uint32
	AddressOfIndex        uint32
	AddressOfCallBacks    uint32
	SizeOfZeroFill        uint32
	Characteristics       uint32
}

type imageTlsDirectory64 struct {
	StartAddressOfRawData uint64
	EndAddressOfRawData   uint64
	AddressOfIndex        uint64
	AddressOfCallBacks    uint64
	SizeOfZeroFill        uint32
	Characteristics       uint32
}

// TlsDirectory is the TLS directory normalized to 64 bit address widths.
// The address fields are VAs, not RVAs, and go through the Deref family.
type TlsDirectory struct {
	StartAddressOfRawData Va
	EndAddressOfRawData   Va
	AddressOfIndex        Va
	AddressOfCallBacks    Va
	SizeOfZeroFill        uint32
	Characteristics       uint32
}

// Tls interprets the TLS directory of an image.
type Tls struct {
	pe  Pe
	dir TlsDirectory
}

// NewTls returns the TLS directory of the image. ErrNull means the image has
// no TLS; any other error means corruption.
func NewTls(p Pe) (*Tls, error) {
	dd := p.DataDirectory()
	if ImageDirectoryEntryTls >= len(dd) {
		return nil, ErrNull
	}
	datadir := dd[ImageDirectoryEntryTls]
	if datadir.VirtualAddress == 0 {
		return nil, ErrNull
	}

	t := &Tls{pe: p}
	if p.Is64() {
		dir, err := Derva[imageTlsDirectory64](p, datadir.VirtualAddress)
		if err != nil {
			return nil, err
		}
		t.dir = TlsDirectory{
			StartAddressOfRawData: Va(dir.StartAddressOfRawData),
			EndAddressOfRawData:   Va(dir.EndAddressOfRawData),
			AddressOfIndex:        Va(dir.AddressOfIndex),
			AddressOfCallBacks:    Va(dir.AddressOfCallBacks),
			SizeOfZeroFill:        dir.SizeOfZeroFill,
			Characteristics:       dir.Characteristics,
		}
	} else {
		dir, err := Derva[imageTlsDirectory32](p, datadir.VirtualAddress)
		if err != nil {
			return nil, err
		}
		t.dir = TlsDirectory{
			StartAddressOfRawData: Va(dir.StartAddressOfRawData),
			EndAddressOfRawData:   Va(dir.EndAddressOfRawData),
			AddressOfIndex:        Va(dir.AddressOfIndex),
			AddressOfCallBacks:    Va(dir.AddressOfCallBacks),
			SizeOfZeroFill:        dir.SizeOfZeroFill,
			Characteristics:       dir.Characteristics,
		}
	}
	return t, nil
}

// Directory returns the normalized TLS directory.
func (t *Tls) Directory() TlsDirectory {
	return t.dir
}

// Callbacks returns the null-terminated array of TLS callback addresses.
// Images without callbacks return an empty slice.
func (t *Tls) Callbacks() ([]Va, error) {
	if t.dir.AddressOfCallBacks == 0 {
		return nil, nil
	}
	if t.pe.Is64() {
		entries, err := DerefSliceS[uint64](t.pe, Ptr[uint64](t.dir.AddressOfCallBacks), 0)
		if err != nil {
			return nil, err
		}
		callbacks := make([]Va, len(entries))
		for i, entry := range entries {
			callbacks[i] = Va(entry)
		}
		return callbacks, nil
	}
	entries, err := DerefSliceS[uint32](t.pe, Ptr[uint32](t.dir.AddressOfCallBacks), 0)
	if err != nil {
		return nil, err
	}
	callbacks := make([]Va, len(entries))
	for i, entry := range entries {
		callbacks[i] = Va(entry)
	}
	return callbacks, nil
}

// RawData returns the template bytes the loader copies into each thread's
// TLS slot, excluding the zero fill.
func (t *Tls) RawData() ([]byte, error) {
	start, end := t.dir.StartAddressOfRawData, t.dir.EndAddressOfRawData
	if start == 0 || end == 0 {
		return nil, ErrNull
	}
	if end < start {
		return nil, ErrOutOfBounds
	}
	size := uint64(end - start)
	if size > uint64(^uint32(0)) {
		return nil, ErrOverflow
	}
	b, err := t.pe.Read(start, int(size), 1)
	if err != nil {
		return nil, err
	}
	return b[:size], nil
}
