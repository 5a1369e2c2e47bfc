package object

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/Manu343726/staticld/internal/linkerr"
	"github.com/Manu343726/staticld/pkg/utils"
)

// ParseObject parses one x86_64 ELF64 relocatable object from data. data
// must outlive the returned Object: section byte slices are borrowed, not
// copied.
func ParseObject(data []byte) (*Object, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, utils.MakeError(linkerr.ErrParse, "reading ELF file: %v", err)
	}

	if f.Class != elf.ELFCLASS64 || f.Data != elf.ELFDATA2LSB {
		return nil, utils.MakeError(linkerr.ErrUnsupportedArchitecture, "only little-endian ELF64 is supported")
	}
	if f.Machine != elf.EM_X86_64 {
		return nil, utils.MakeError(linkerr.ErrUnsupportedArchitecture, "machine %v is not x86_64", f.Machine)
	}
	if f.Type != elf.ET_REL {
		return nil, utils.MakeError(linkerr.ErrParse, "expected a relocatable object (ET_REL), got %v", f.Type)
	}

	obj := &Object{bySection: make(map[int]int)}

	if err := obj.readSections(f, data); err != nil {
		return nil, err
	}
	if err := obj.readRelocations(f); err != nil {
		return nil, err
	}
	if err := obj.readSymbols(f); err != nil {
		return nil, err
	}

	return obj, nil
}

func (o *Object) readSections(f *elf.File, file []byte) error {
	for i, sec := range f.Sections {
		if sec.Flags&elf.SHF_ALLOC == 0 {
			continue
		}

		kind := classifySection(sec)

		var data []byte
		if sec.Type != elf.SHT_NOBITS {
			end := sec.Offset + sec.Size
			if end < sec.Offset || end > uint64(len(file)) {
				return utils.MakeError(linkerr.ErrParse, "section %q data lies outside the file", sec.Name)
			}
			data = file[sec.Offset:end:end]
		}

		o.bySection[i] = len(o.Sections)
		o.Sections = append(o.Sections, Section{
			OriginalIndex: i,
			Name:          sec.Name,
			Kind:          kind,
			RawType:       uint32(sec.Type),
			Size:          sec.Size,
			Align:         sec.Addralign,
			Data:          data,
		})
	}
	return nil
}

func classifySection(sec *elf.Section) SectionKind {
	return classifySectionFromRaw(uint32(sec.Type), uint64(sec.Flags))
}

// classifySectionFromRaw is the pure classification rule, kept separate
// from *elf.Section so it can be exercised directly in tests.
func classifySectionFromRaw(shType uint32, flags uint64) SectionKind {
	const (
		shfWrite     = 0x1
		shfAlloc     = 0x2
		shfExecInstr = 0x4
		shfStrings   = 0x20
		shfTLS       = 0x400
		shtNOBITS    = 8
		shtPROGBITS  = 1
	)
	switch {
	case flags&shfTLS != 0:
		return SectionTLS
	case shType == shtNOBITS:
		return SectionUninitializedData
	case flags&shfExecInstr != 0:
		return SectionText
	case shType != shtPROGBITS:
		return SectionOther
	case flags&shfWrite != 0:
		return SectionData
	case flags&shfStrings != 0:
		return SectionReadOnlyString
	default:
		return SectionReadOnlyData
	}
}

// readRelocations finds every SHT_RELA/SHT_REL section and attaches its
// decoded entries to the Section it relocates (identified by sh_info).
// debug/elf exposes no high-level relocation reader for relocatable
// objects, so the raw entries are decoded by hand here, matching the
// approach every ELF-reading tool in the retrieval pack takes.
func (o *Object) readRelocations(f *elf.File) error {
	for _, sec := range f.Sections {
		var entrySize int
		var rela bool
		switch sec.Type {
		case elf.SHT_RELA:
			entrySize, rela = 24, true
		case elf.SHT_REL:
			entrySize, rela = 16, false
		default:
			continue
		}

		targetPos, ok := o.bySection[int(sec.Info)]
		if !ok {
			// Relocations against a section we dropped (not SHF_ALLOC) are irrelevant.
			continue
		}

		raw, err := sec.Data()
		if err != nil {
			return utils.MakeError(linkerr.ErrParse, "reading relocation section %q: %v", sec.Name, err)
		}
		if len(raw)%entrySize != 0 {
			return utils.MakeError(linkerr.ErrParse, "relocation section %q has a truncated entry", sec.Name)
		}

		target := &o.Sections[targetPos]
		for off := 0; off+entrySize <= len(raw); off += entrySize {
			entry := raw[off : off+entrySize]
			offset := binary.LittleEndian.Uint64(entry[0:8])
			info := binary.LittleEndian.Uint64(entry[8:16])
			symIndex := elf.R_SYM64(info)
			rawType := uint32(elf.R_TYPE64(info))

			var addend int64
			if rela {
				addend = int64(binary.LittleEndian.Uint64(entry[16:24]))
			}

			target.Relocs = append(target.Relocs, Reloc{
				Offset:   offset,
				Kind:     classifyRelocKind(rawType),
				RawType:  rawType,
				SizeBits: relocSizeBits(rawType),
				Addend:   addend,
				Target:   RelocTarget{Kind: TargetSymbol, Index: int(symIndex)},
			})
		}
	}
	return nil
}

// classifyRelocKind buckets the raw x86_64 relocation type into the
// arithmetic family spec.md's arch backend cares about. Types this linker
// has no formula for fall into RelocOther and are logged, not applied.
func classifyRelocKind(rawType uint32) RelocKind {
	switch rawType {
	case uint32(elf.R_X86_64_64):
		return RelocAbsolute
	case uint32(elf.R_X86_64_PC32):
		return RelocRelative
	case uint32(elf.R_X86_64_PLT32):
		return RelocPltRelative
	case uint32(elf.R_X86_64_GOT32):
		return RelocGot
	case RawGOTPCREL, RawGOTPCRELX, RawRexGOTPCRELX:
		return RelocGotRelative
	default:
		return RelocOther
	}
}

// relocSizeBits returns the natural size of a relocation's write, or 0 when
// the arch backend must infer it (the GOTPCRELX size-0 coercion).
func relocSizeBits(rawType uint32) int {
	switch rawType {
	case uint32(elf.R_X86_64_64):
		return 64
	case uint32(elf.R_X86_64_PC32), uint32(elf.R_X86_64_PLT32), uint32(elf.R_X86_64_GOT32), RawGOTPCREL:
		return 32
	default:
		return 0
	}
}

func (o *Object) readSymbols(f *elf.File) error {
	syms, err := f.Symbols()
	if err != nil && err != elf.ErrNoSymbols {
		return utils.MakeError(linkerr.ErrParse, "reading symbol table: %v", err)
	}

	// debug/elf omits the null symbol at index 0; put it back so that
	// Symbols[i] is ELF symbol index i, as relocation entries expect.
	o.Symbols = make([]Symbol, len(syms)+1)
	o.Symbols[0] = Symbol{Local: true}
	for i, s := range syms {
		bind := elf.ST_BIND(s.Info)
		typ := elf.ST_TYPE(s.Info)

		sym := Symbol{
			Name:       s.Name,
			Value:      s.Value,
			Size:       s.Size,
			Local:      bind == elf.STB_LOCAL,
			Weak:       bind == elf.STB_WEAK,
			Visibility: classifyVisibility(elf.ST_VISIBILITY(s.Other)),
			Kind:       classifySymbolKind(typ),
		}

		switch s.Section {
		case elf.SHN_UNDEF:
			sym.Undefined = true
		case elf.SHN_ABS:
			// no section: absolute value, not undefined
		case elf.SHN_COMMON:
			// tentative definitions are not part of this linker's scope;
			// treat as an absolute-valued definition whose value is the
			// symbol's st_value (its alignment, for a common symbol).
		default:
			sym.HasSection = true
			sym.SectionIndex = int(s.Section)
		}

		o.Symbols[i+1] = sym
	}
	return nil
}

func classifyVisibility(v elf.SymVis) Visibility {
	switch v {
	case elf.STV_HIDDEN:
		return VisibilityHidden
	case elf.STV_INTERNAL:
		return VisibilityInternal
	case elf.STV_PROTECTED:
		return VisibilityProtected
	default:
		return VisibilityDefault
	}
}

func classifySymbolKind(t elf.SymType) SymbolKind {
	switch t {
	case elf.STT_FUNC:
		return KindText
	case elf.STT_OBJECT, elf.STT_COMMON:
		return KindData
	case elf.STT_SECTION:
		return KindSection
	case elf.STT_TLS:
		return KindTLS
	case elf.STT_FILE:
		return KindFile
	case elf.STT_NOTYPE:
		return KindNone
	default:
		return KindOther
	}
}

// ParseErrorf is a small helper for callers outside this package that need
// to surface a linkerr.ErrParse with the same formatting convention used
// here.
func ParseErrorf(format string, args ...any) error {
	return utils.MakeError(linkerr.ErrParse, fmt.Sprintf(format, args...))
}
