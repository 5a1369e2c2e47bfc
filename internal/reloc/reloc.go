// Package reloc computes per-relocation (P, S, A) over a finished layout,
// fills the GOT, and delegates byte-patching to the architecture backend.
package reloc

import (
	"github.com/Manu343726/staticld/internal/arch/amd64"
	"github.com/Manu343726/staticld/internal/layout"
	"github.com/Manu343726/staticld/internal/linkerr"
	"github.com/Manu343726/staticld/internal/object"
	"github.com/Manu343726/staticld/internal/symtab"
	"github.com/Manu343726/staticld/pkg/utils"
)

// globalOffsetTableSymbol is resolved directly to the .got segment's base
// address rather than through the symbol table, per spec.md 4.5.
const globalOffsetTableSymbol = "_GLOBAL_OFFSET_TABLE_"

// FillGot writes every got_map entry's resolved symbol address (0 for a
// weak-undefined name) into the .got segment, in allocation (ascending
// offset) order, so fill order always agrees with slot allocation.
func FillGot(l *layout.Layout, syms *symtab.Table) error {
	got := l.Segments[gotIndex(l)]
	for _, name := range l.SortedGotNames() {
		addr, err := resolveByName(l, syms, name)
		if err != nil {
			return err
		}
		offset := l.GotMap[name]
		if offset+8 > uint64(len(got.Data)) {
			return utils.MakeError(linkerr.ErrMissingGotEntry, "got slot for %q at offset 0x%x exceeds .got size", name, offset)
		}
		putLE64(got.Data[offset:offset+8], addr)
	}
	return nil
}

func putLE64(b []byte, v uint64) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	b[4] = byte(v >> 32)
	b[5] = byte(v >> 40)
	b[6] = byte(v >> 48)
	b[7] = byte(v >> 56)
}

func gotIndex(l *layout.Layout) int {
	for i, seg := range l.Segments {
		if seg.Kind == layout.KindGot {
			return i
		}
	}
	return -1
}

func resolveByName(l *layout.Layout, syms *symtab.Table, name string) (uint64, error) {
	if name == globalOffsetTableSymbol {
		return l.GotAddress(), nil
	}
	if def, ok := syms.Lookup(name); ok {
		if addr, has := def.Address(); has {
			return addr, nil
		}
	}
	if syms.IsWeakUndefined(name) {
		return 0, nil
	}
	return 0, utils.MakeError(linkerr.ErrUndefinedSymbol, "%s", name)
}

// ApplyAll applies every relocation carried by every placed input section,
// in segment/section order (the order is not observable: relocations
// never depend on each other's result).
func ApplyAll(objs []*object.Object, l *layout.Layout, syms *symtab.Table) error {
	if err := FillGot(l, syms); err != nil {
		return err
	}

	for _, seg := range l.Segments {
		for _, placement := range seg.Sections {
			sec, ok := objs[placement.ObjectIndex].SectionByIndex(placement.SectionIndex)
			if !ok {
				continue
			}
			for _, r := range sec.Relocs {
				if err := applyOne(objs, l, syms, seg, placement, r); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func applyOne(objs []*object.Object, l *layout.Layout, syms *symtab.Table, seg *layout.Segment, placement layout.Placement, r object.Reloc) error {
	p := seg.VirtualAddress + placement.OffsetInSeg + r.Offset

	s, err := resolveTarget(objs, l, syms, placement.ObjectIndex, r)
	if err != nil {
		return err
	}

	offsetInSegment := placement.OffsetInSeg + r.Offset
	return amd64.Apply(offsetInSegment, r.Kind, r.RawType, r.SizeBits, p, s, r.Addend, seg.Data)
}

func resolveTarget(objs []*object.Object, l *layout.Layout, syms *symtab.Table, objectIndex int, r object.Reloc) (uint64, error) {
	switch r.Target.Kind {
	case object.TargetSection:
		addr, ok := l.SectionAddress(objectIndex, r.Target.Index)
		if !ok {
			return 0, nil
		}
		return addr, nil
	case object.TargetAbsolute:
		return 0, nil
	}

	obj := objs[objectIndex]
	sym := obj.Symbols[r.Target.Index]

	if layout.NeedsGot(r, sym.Kind == object.KindTLS) {
		offset, ok := l.GotMap[sym.Name]
		if !ok {
			return 0, utils.MakeError(linkerr.ErrMissingGotEntry, "%s", sym.Name)
		}
		return l.GotAddress() + offset, nil
	}

	if sym.Kind == object.KindSection || sym.Local {
		if sym.HasSection {
			addr, ok := l.SectionAddress(objectIndex, sym.SectionIndex)
			if !ok {
				return 0, nil
			}
			return addr + sym.Value, nil
		}
	}

	return resolveByName(l, syms, sym.Name)
}
