// Package elfimage emits the final ET_EXEC ELF64 image from a finished
// layout: one file header, one PT_LOAD program header, the segment
// bytes, a section header string table, and the section headers
// themselves.
package elfimage

import (
	"encoding/binary"

	"github.com/Manu343726/staticld/internal/layout"
)

const (
	ehSize    = 64
	phSize    = 56
	shSize    = 64
	etExec    = 2
	emX8664   = 62
	evCurrent = 1

	ptLoad = 1
	pfX    = 1
	pfW    = 2
	pfR    = 4

	shtNull     = 0
	shtProgbits = 1
	shtStrtab   = 3
	shtNobits   = 8

	shfWrite     = 0x1
	shfAlloc     = 0x2
	shfExecInstr = 0x4

	shOffsetPatchLocation = 40
)

// Build assembles the final executable image. entry is the resolved
// address of _start, or 0 if the symbol is absent.
func Build(l *layout.Layout, entry uint64) []byte {
	segs := nonEmptySegments(l)
	filesz, memsz := extents(segs)
	shstrtab, nameOffsets := buildShstrtab(segs)

	// filesz is already an absolute file offset (segments start at
	// PageSize, not 0), so shstrtab and the section headers simply
	// continue right after it. A link with no file-backed segments still
	// emits the first PageSize bytes of header, program header, and pad.
	dataEnd := filesz
	if dataEnd < layout.PageSize {
		dataEnd = layout.PageSize
	}
	shoff := dataEnd + uint64(len(shstrtab))
	shnum := uint16(len(segs) + 2) // null + one per segment + .shstrtab
	shstrndx := uint16(len(segs) + 1)

	var out []byte
	out = appendHeader(out, shnum, shstrndx, entry)
	out = appendProgramHeader(out, filesz, memsz)
	out = padTo(out, layout.PageSize)
	out = appendSegments(out, segs)
	out = append(out, shstrtab...)
	out = appendSectionHeaders(out, segs, nameOffsets, shoff-uint64(len(shstrtab)), uint64(len(shstrtab)))

	patchShoff(out, shoff)
	return out
}

func nonEmptySegments(l *layout.Layout) []*layout.Segment {
	var segs []*layout.Segment
	for _, seg := range l.Segments {
		if seg.Size > 0 {
			segs = append(segs, seg)
		}
	}
	return segs
}

// extents computes p_filesz (the file span of every non-bss segment) and
// p_memsz (the full virtual span including bss).
func extents(segs []*layout.Segment) (filesz, memsz uint64) {
	var lastFileEnd, maxVirtEnd uint64
	for _, seg := range segs {
		if seg.Kind != layout.KindUninitializedData {
			if end := seg.FileOffset + seg.Size; end > lastFileEnd {
				lastFileEnd = end
			}
		}
		if end := seg.VirtualAddress + seg.Size; end > maxVirtEnd {
			maxVirtEnd = end
		}
	}
	return lastFileEnd, maxVirtEnd - layout.BaseAddr
}

func appendHeader(out []byte, shnum, shstrndx uint16, entry uint64) []byte {
	ident := [16]byte{0x7f, 'E', 'L', 'F', 2, 1, evCurrent, 0}
	out = append(out, ident[:]...)
	out = appendU16(out, etExec)
	out = appendU16(out, emX8664)
	out = appendU32(out, evCurrent)
	out = appendU64(out, entry)
	out = appendU64(out, ehSize) // e_phoff
	out = appendU64(out, 0)      // e_shoff, patched once the buffer is complete
	out = appendU32(out, 0)      // e_flags
	out = appendU16(out, ehSize)
	out = appendU16(out, phSize)
	out = appendU16(out, 1) // e_phnum
	out = appendU16(out, shSize)
	out = appendU16(out, shnum)
	out = appendU16(out, shstrndx)
	return out
}

func appendProgramHeader(out []byte, filesz, memsz uint64) []byte {
	out = appendU32(out, ptLoad)
	out = appendU32(out, pfR|pfW|pfX)
	out = appendU64(out, 0) // p_offset
	out = appendU64(out, layout.BaseAddr)
	out = appendU64(out, layout.BaseAddr)
	out = appendU64(out, filesz)
	out = appendU64(out, memsz)
	out = appendU64(out, layout.PageSize)
	return out
}

func padTo(out []byte, align uint64) []byte {
	target := alignUp(uint64(len(out)), align)
	for uint64(len(out)) < target {
		out = append(out, 0)
	}
	return out
}

func appendSegments(out []byte, segs []*layout.Segment) []byte {
	for _, seg := range segs {
		if seg.Kind == layout.KindUninitializedData {
			continue
		}
		for uint64(len(out)) < seg.FileOffset {
			out = append(out, 0)
		}
		out = append(out, seg.Data...)
	}
	return out
}

// buildShstrtab lays out the section header string table: a leading nul,
// each segment's name (already dotted, e.g. ".text"), then ".shstrtab" itself.
func buildShstrtab(segs []*layout.Segment) ([]byte, []uint32) {
	buf := []byte{0}
	offsets := make([]uint32, len(segs)+1) // last slot is .shstrtab's own name
	for i, seg := range segs {
		offsets[i] = uint32(len(buf))
		buf = append(buf, []byte(seg.Name)...)
		buf = append(buf, 0)
	}
	offsets[len(segs)] = uint32(len(buf))
	buf = append(buf, []byte(".shstrtab")...)
	buf = append(buf, 0)
	return buf, offsets
}

func appendSectionHeaders(out []byte, segs []*layout.Segment, nameOffsets []uint32, shstrtabFileOffset, shstrtabSize uint64) []byte {
	out = appendSectionHeader(out, 0, shtNull, 0, 0, 0, 0)

	for i, seg := range segs {
		shType := uint64(shtProgbits)
		if seg.Kind == layout.KindUninitializedData {
			shType = shtNobits
		}
		out = appendSectionHeader(out, nameOffsets[i], shType, sectionFlags(seg.Kind), seg.VirtualAddress, seg.FileOffset, seg.Size)
	}

	out = appendSectionHeader(out, nameOffsets[len(segs)], shtStrtab, 0, 0, shstrtabFileOffset, shstrtabSize)
	return out
}

func sectionFlags(kind layout.SegmentKind) uint64 {
	switch kind {
	case layout.KindText:
		return shfAlloc | shfExecInstr
	case layout.KindData, layout.KindUninitializedData:
		return shfAlloc | shfWrite
	default:
		return shfAlloc
	}
}

func appendSectionHeader(out []byte, name uint32, shType, flags, addr, offset, size uint64) []byte {
	out = appendU32(out, name)
	out = appendU32(out, uint32(shType))
	out = appendU64(out, flags)
	out = appendU64(out, addr)
	out = appendU64(out, offset)
	out = appendU64(out, size)
	out = appendU32(out, 0)  // sh_link
	out = appendU32(out, 0)  // sh_info
	out = appendU64(out, 16) // sh_addralign
	out = appendU64(out, 0)  // sh_entsize
	return out
}

func patchShoff(out []byte, shoff uint64) {
	binary.LittleEndian.PutUint64(out[shOffsetPatchLocation:shOffsetPatchLocation+8], shoff)
}

func alignUp(v, align uint64) uint64 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

func appendU16(out []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(out, b[:]...)
}

func appendU32(out []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(out, b[:]...)
}

func appendU64(out []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(out, b[:]...)
}
