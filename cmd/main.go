package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/h2non/filetype"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	peview "github.com/wanglei-coder/peview"
)

var (
	filename string
	mapped   bool
	log      zerolog.Logger
)

func init() {
	flag.StringVar(&filename, "filename", "", "Please enter the file path")
	flag.BoolVar(&mapped, "mapped", false, "Treat the input as an already mapped image")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

type Info struct {
	MachineType  uint16
	Is64         bool
	EntryPoint   peview.Rva
	ImageBase    peview.Va
	SizeOfImage  uint32
	Alignment    string
	Sections     []*SectionInfo
	Exports      *ExportInfo `json:",omitempty"`
	Imports      []*ImportInfo
	RelocBlocks  int
	TlsCallbacks []peview.Va
}

type SectionInfo struct {
	Name           string
	Flags          string
	VirtualAddress uint32
	VirtualSize    uint32
	RawSize        uint32
	RawOffset      uint32
}

type ExportInfo struct {
	DllName   string
	Functions []string
}

type ImportInfo struct {
	DllName   string
	Functions []string
}

func main() {
	if filename == "" {
		flag.Usage()
		os.Exit(2)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		log.Fatal().Err(err).Str("filename", filename).Msg("read failed")
	}

	if kind, _ := filetype.Match(data); kind != filetype.Unknown {
		log.Info().Str("type", kind.MIME.Value).Msg("detected file type")
	}

	info, err := dump(data)
	if err != nil {
		log.Fatal().Err(err).Msg("parse failed")
	}

	out, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("encode failed")
	}
	fmt.Println(string(out))
}

func dump(data []byte) (*Info, error) {
	var (
		pe  peview.Pe
		err error
	)
	if mapped {
		pe, err = peview.NewPeView(data)
	} else {
		pe, err = peview.NewPeFile(data)
	}
	if err != nil {
		return nil, errors.WithMessage(err, "not a well formed PE image")
	}

	opt := pe.OptionalHeader()
	info := &Info{
		MachineType: pe.FileHeader().Machine,
		Is64:        pe.Is64(),
		EntryPoint:  opt.AddressOfEntryPoint,
		ImageBase:   opt.ImageBase,
		SizeOfImage: opt.SizeOfImage,
		Alignment:   pe.Align().String(),
	}

	for i := range pe.SectionHeaders() {
		sh := &pe.SectionHeaders()[i]
		info.Sections = append(info.Sections, &SectionInfo{
			Name:           sh.NameString(),
			Flags:          sh.Flags(),
			VirtualAddress: sh.VirtualAddress,
			VirtualSize:    sh.VirtualSize,
			RawSize:        sh.SizeOfRawData,
			RawOffset:      sh.PointerToRawData,
		})
	}

	if exports, err := peview.NewExports(pe); err == nil {
		info.Exports, err = dumpExports(pe, exports)
		if err != nil {
			log.Warn().Err(err).Msg("export directory damaged")
		}
	} else if !errors.Is(err, peview.ErrNull) {
		log.Warn().Err(err).Msg("export directory damaged")
	}

	if imports, err := peview.NewImports(pe); err == nil {
		for _, imp := range imports {
			ii := &ImportInfo{DllName: imp.Name}
			for _, fn := range imp.Functions {
				if fn.ByOrdinal {
					ii.Functions = append(ii.Functions, fmt.Sprintf("#%d", fn.Ordinal))
				} else {
					ii.Functions = append(ii.Functions, fn.Name)
				}
			}
			info.Imports = append(info.Imports, ii)
		}
	} else if !errors.Is(err, peview.ErrNull) {
		log.Warn().Err(err).Msg("import directory damaged")
	}

	if blocks, err := peview.NewBaseRelocs(pe); err == nil {
		info.RelocBlocks = len(blocks)
	} else if !errors.Is(err, peview.ErrNull) {
		log.Warn().Err(err).Msg("relocation directory damaged")
	}

	if tls, err := peview.NewTls(pe); err == nil {
		info.TlsCallbacks, err = tls.Callbacks()
		if err != nil {
			log.Warn().Err(err).Msg("tls callbacks damaged")
		}
	} else if !errors.Is(err, peview.ErrNull) {
		log.Warn().Err(err).Msg("tls directory damaged")
	}

	return info, nil
}

func dumpExports(pe peview.Pe, exports *peview.Exports) (*ExportInfo, error) {
	ei := new(ExportInfo)

	dllName, err := exports.DllName()
	if err != nil {
		return nil, err
	}
	ei.DllName = dllName

	names, err := exports.Names()
	if err != nil {
		return nil, err
	}
	for _, nameRva := range names {
		name, err := peview.DervaCStr(pe, nameRva)
		if err != nil {
			return nil, err
		}
		ei.Functions = append(ei.Functions, name)
	}
	return ei, nil
}
