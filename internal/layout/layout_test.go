package layout

import (
	"testing"

	"github.com/Manu343726/staticld/internal/object"
	"github.com/Manu343726/staticld/internal/symtab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPlacesSectionsInFixedOrder(t *testing.T) {
	objs := []*object.Object{
		{
			Sections: []object.Section{
				{OriginalIndex: 1, Name: ".text", Kind: object.SectionText, Size: 8, Align: 16, Data: make([]byte, 8)},
				{OriginalIndex: 2, Name: ".data", Kind: object.SectionData, Size: 4, Align: 4, Data: []byte{1, 2, 3, 4}},
				{OriginalIndex: 3, Name: ".bss", Kind: object.SectionUninitializedData, Size: 16, Align: 8},
			},
		},
	}
	syms := symtab.New()

	l, skipped := Build(objs, syms)
	assert.Empty(t, skipped)

	text := l.segmentFor(KindText)
	assert.Equal(t, uint64(8), text.Size)
	data := l.segmentFor(KindData)
	assert.Equal(t, uint64(4), data.Size)
	bss := l.segmentFor(KindUninitializedData)
	assert.Equal(t, uint64(16), bss.Size)
	assert.Nil(t, bss.Data)

	assert.Same(t, l.Segments[0], text)
	assert.Same(t, l.Segments[4], data)
	assert.Same(t, l.Segments[7], bss)
}

func TestAssignAddressesPageAligned(t *testing.T) {
	objs := []*object.Object{
		{
			Sections: []object.Section{
				{OriginalIndex: 1, Name: ".text", Kind: object.SectionText, Size: 8, Align: 16, Data: make([]byte, 8)},
				{OriginalIndex: 2, Name: ".bss", Kind: object.SectionUninitializedData, Size: 16, Align: 8},
			},
		},
	}
	syms := symtab.New()
	l, _ := Build(objs, syms)

	text := l.segmentFor(KindText)
	assert.Equal(t, uint64(BaseAddr+PageSize), text.VirtualAddress)
	assert.Equal(t, uint64(PageSize), text.FileOffset)
	assert.Zero(t, text.VirtualAddress%PageSize)

	bss := l.segmentFor(KindUninitializedData)
	assert.NotZero(t, bss.VirtualAddress)
	assert.Zero(t, bss.VirtualAddress%PageSize)
}

func TestBuildSkipsUnknownSectionKind(t *testing.T) {
	objs := []*object.Object{
		{
			Sections: []object.Section{
				{OriginalIndex: 1, Name: ".note", Kind: object.SectionOther, Size: 4, Data: []byte{0, 0, 0, 0}},
			},
		},
	}
	syms := symtab.New()
	_, skipped := Build(objs, syms)
	require.Len(t, skipped, 1)
	assert.Equal(t, ".note", skipped[0].SectionName)
}

func TestGotConstruction(t *testing.T) {
	objs := []*object.Object{
		{
			Symbols: []object.Symbol{
				{}, // null
				{Name: "puts", Undefined: true},
			},
			Sections: []object.Section{
				{
					OriginalIndex: 1, Name: ".text", Kind: object.SectionText, Size: 8, Align: 16, Data: make([]byte, 8),
					Relocs: []object.Reloc{
						{Offset: 4, Kind: object.RelocGotRelative, RawType: object.RawGOTPCREL, Target: object.RelocTarget{Kind: object.TargetSymbol, Index: 1}},
					},
				},
			},
		},
	}
	syms := symtab.New()
	l, _ := Build(objs, syms)

	require.Contains(t, l.GotMap, "puts")
	assert.Equal(t, uint64(0), l.GotMap["puts"])

	got := l.segmentFor(KindGot)
	assert.Equal(t, uint64(8), got.Size)
}
