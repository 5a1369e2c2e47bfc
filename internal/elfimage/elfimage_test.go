package elfimage

import (
	"bytes"
	"debug/elf"
	"testing"

	"github.com/Manu343726/staticld/internal/layout"
	"github.com/Manu343726/staticld/internal/object"
	"github.com/Manu343726/staticld/internal/symtab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSimpleLayout(t *testing.T) (*layout.Layout, uint64) {
	t.Helper()

	objs := []*object.Object{
		{
			Symbols: []object.Symbol{
				{},
				{Name: "_start", HasSection: true, SectionIndex: 1, Value: 0},
			},
			Sections: []object.Section{
				{OriginalIndex: 1, Name: ".text", Kind: object.SectionText, Size: 4, Align: 16, Data: []byte{0x90, 0x90, 0x90, 0xc3}},
				{OriginalIndex: 2, Name: ".bss", Kind: object.SectionUninitializedData, Size: 8, Align: 8},
			},
		},
	}
	syms := symtab.New()
	syms.Define("_start", false, false, symtab.Origin{ObjectIndex: 0, SectionIndex: 1}, 0)

	l, skipped := layout.Build(objs, syms)
	require.Empty(t, skipped)

	def, ok := syms.Lookup("_start")
	require.True(t, ok)
	addr, has := def.Address()
	require.True(t, has)
	return l, addr
}

func TestBuildRoundTripsThroughDebugElf(t *testing.T) {
	l, entry := buildSimpleLayout(t)
	image := Build(l, entry)

	f, err := elf.NewFile(bytes.NewReader(image))
	require.NoError(t, err)

	assert.Equal(t, elf.ET_EXEC, f.Type)
	assert.Equal(t, elf.EM_X86_64, f.Machine)
	assert.Equal(t, entry, f.Entry)

	require.Len(t, f.Progs, 1)
	prog := f.Progs[0]
	assert.Equal(t, elf.PT_LOAD, prog.Type)
	assert.Equal(t, elf.ProgFlag(elf.PF_R|elf.PF_W|elf.PF_X), prog.Flags)
	assert.Equal(t, uint64(layout.BaseAddr), prog.Vaddr)
	assert.Equal(t, uint64(layout.PageSize), prog.Align)

	var names []string
	for _, sec := range f.Sections {
		names = append(names, sec.Name)
	}
	assert.Contains(t, names, ".text")
	assert.Contains(t, names, ".bss")
	assert.Contains(t, names, ".shstrtab")
}

func TestBuildShoffPatchedCorrectly(t *testing.T) {
	l, entry := buildSimpleLayout(t)
	image := Build(l, entry)

	f, err := elf.NewFile(bytes.NewReader(image))
	require.NoError(t, err)
	_ = f

	shoffFromHeader := le64(image[40:48])
	assert.Less(t, shoffFromHeader, uint64(len(image)))
	assert.Greater(t, shoffFromHeader, uint64(0))
}

func le64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
