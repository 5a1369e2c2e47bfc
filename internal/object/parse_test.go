package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	stbLocal  = 0
	stbGlobal = 1
	stbWeak   = 2

	sttNotype  = 0
	sttObject  = 1
	sttFunc    = 2
	sttSection = 3

	stvDefault = 0
	stvHidden  = 2

	relX8664PC32 = 2
)

func symInfo(bind, typ uint8) uint8 {
	return bind<<4 | typ
}

func buildFixtureObject() []byte {
	b := newELFBuilder()

	text := b.add(elfBuilderSection{
		name:      ".text",
		shType:    elfSHT_PROGBITS,
		flags:     elfSHF_ALLOC | elfSHF_EXECINSTR,
		data:      []byte{0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0xc3},
		addralign: 16,
	})
	data := b.add(elfBuilderSection{
		name:      ".data",
		shType:    elfSHT_PROGBITS,
		flags:     elfSHF_ALLOC | elfSHF_WRITE,
		data:      []byte{1, 2, 3, 4},
		addralign: 4,
	})
	bss := b.add(elfBuilderSection{
		name:      ".bss",
		shType:    elfSHT_NOBITS,
		flags:     elfSHF_ALLOC | elfSHF_WRITE,
		size:      16,
		addralign: 8,
	})
	_ = bss

	strtabContent := "\x00value\x00main\x00printf\x00"
	strtab := b.add(elfBuilderSection{
		name:   ".strtab",
		shType: elfSHT_STRTAB,
		flags:  elfSHF_STRINGS,
		data:   []byte(strtabContent),
	})

	symtabData := append([]byte{}, symtabEntry(0, 0, 0, 0, 0, 0)...)                        // null symbol
	symtabData = append(symtabData, symtabEntry(1, symInfo(stbLocal, sttObject), stvDefault, uint16(data), 0, 4)...)    // "value"
	symtabData = append(symtabData, symtabEntry(7, symInfo(stbGlobal, sttFunc), stvDefault, uint16(text), 0, 8)...)     // "main"
	symtabData = append(symtabData, symtabEntry(12, symInfo(stbGlobal, sttNotype), stvDefault, 0, 0, 0)...)             // "printf" (undefined)

	symtab := b.add(elfBuilderSection{
		name:    ".symtab",
		shType:  elfSHT_SYMTAB,
		data:    symtabData,
		link:    uint32(strtab),
		info:    2, // index of first global symbol
		entsize: 24,
	})

	relaData := relaEntry(4, 1, relX8664PC32, -4) // relocate .text@4 against "value", PC32
	b.add(elfBuilderSection{
		name:    ".rela.text",
		shType:  elfSHT_RELA,
		link:    uint32(symtab),
		info:    uint32(text),
		entsize: 24,
		data:    relaData,
	})

	return b.build()
}

func TestParseObjectSections(t *testing.T) {
	obj, err := ParseObject(buildFixtureObject())
	require.NoError(t, err)

	names := make([]string, len(obj.Sections))
	for i, s := range obj.Sections {
		names[i] = s.Name
	}
	assert.Equal(t, []string{".text", ".data", ".bss"}, names)

	text := obj.Sections[0]
	assert.Equal(t, SectionText, text.Kind)
	assert.Len(t, text.Data, 8)

	data := obj.Sections[1]
	assert.Equal(t, SectionData, data.Kind)
	assert.Equal(t, []byte{1, 2, 3, 4}, data.Data)

	bss := obj.Sections[2]
	assert.Equal(t, SectionUninitializedData, bss.Kind)
	assert.Nil(t, bss.Data)
	assert.Equal(t, uint64(16), bss.Size)
}

func TestParseObjectSymbols(t *testing.T) {
	obj, err := ParseObject(buildFixtureObject())
	require.NoError(t, err)

	require.Len(t, obj.Symbols, 4)

	value := obj.Symbols[1]
	assert.Equal(t, "value", value.Name)
	assert.True(t, value.Local)
	assert.True(t, value.HasSection)
	assert.Equal(t, KindData, value.Kind)

	main := obj.Symbols[2]
	assert.Equal(t, "main", main.Name)
	assert.False(t, main.Local)
	assert.True(t, main.HasSection)
	assert.Equal(t, KindText, main.Kind)
	assert.False(t, main.Undefined)

	printf := obj.Symbols[3]
	assert.Equal(t, "printf", printf.Name)
	assert.True(t, printf.Undefined)
	assert.False(t, printf.HasSection)
}

func TestParseObjectRelocations(t *testing.T) {
	obj, err := ParseObject(buildFixtureObject())
	require.NoError(t, err)

	text := obj.Sections[0]
	require.Len(t, text.Relocs, 1)

	r := text.Relocs[0]
	assert.Equal(t, uint64(4), r.Offset)
	assert.Equal(t, RelocRelative, r.Kind)
	assert.Equal(t, int64(-4), r.Addend)
	assert.Equal(t, TargetSymbol, r.Target.Kind)
	assert.Equal(t, 1, r.Target.Index)
}

func TestClassifySectionKinds(t *testing.T) {
	tests := []struct {
		name  string
		shTyp uint32
		flags uint64
		want  SectionKind
	}{
		{"text", elfSHT_PROGBITS, elfSHF_ALLOC | elfSHF_EXECINSTR, SectionText},
		{"rodata", elfSHT_PROGBITS, elfSHF_ALLOC, SectionReadOnlyData},
		{"rodata.str", elfSHT_PROGBITS, elfSHF_ALLOC | elfSHF_STRINGS, SectionReadOnlyString},
		{"data", elfSHT_PROGBITS, elfSHF_ALLOC | elfSHF_WRITE, SectionData},
		{"bss", elfSHT_NOBITS, elfSHF_ALLOC | elfSHF_WRITE, SectionUninitializedData},
		{"tdata", elfSHT_PROGBITS, elfSHF_ALLOC | elfSHF_WRITE | elfSHF_TLS, SectionTLS},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifySectionFromRaw(tt.shTyp, tt.flags))
		})
	}
}

func TestRelocSizeBitsCoercion(t *testing.T) {
	assert.Equal(t, 0, relocSizeBits(RawGOTPCRELX))
	assert.Equal(t, 0, relocSizeBits(RawRexGOTPCRELX))
	assert.Equal(t, 32, relocSizeBits(relX8664PC32))
}
