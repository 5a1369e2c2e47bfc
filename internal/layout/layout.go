// Package layout places input sections into fixed output segments,
// builds the Global Offset Table from observed relocations, and assigns
// virtual addresses and file offsets to the result.
package layout

import (
	"sort"

	"github.com/Manu343726/staticld/internal/object"
	"github.com/Manu343726/staticld/internal/symtab"
)

const (
	PageSize = 0x1000
	BaseAddr = 0x400000
)

// SegmentKind mirrors object.SectionKind but at the output-segment level;
// Tls and UninitializedData each get exactly one segment.
type SegmentKind int

const (
	KindText SegmentKind = iota
	KindInit
	KindFini
	KindReadOnlyData
	KindData
	KindGot
	KindTLS
	KindUninitializedData
)

func (k SegmentKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInit:
		return "init"
	case KindFini:
		return "fini"
	case KindReadOnlyData:
		return "rodata"
	case KindData:
		return "data"
	case KindGot:
		return "got"
	case KindTLS:
		return "tdata"
	case KindUninitializedData:
		return "bss"
	default:
		return "other"
	}
}

// Placement records where one input section landed.
type Placement struct {
	ObjectIndex  int
	SectionIndex int // original ELF section index
	OffsetInSeg  uint64
	Size         uint64
}

// Segment is one output region: a fixed-order aggregation of input
// sections of compatible kind.
type Segment struct {
	Name           string
	Kind           SegmentKind
	Data           []byte // empty for UninitializedData
	Size           uint64
	VirtualAddress uint64
	FileOffset     uint64
	Sections       []Placement
}

// sectionKey identifies a placed input section for the section_map.
type sectionKey struct {
	ObjectIndex  int
	SectionIndex int
}

// Layout is the fully populated output: the fixed segment list, the
// section_map from (object, section) to its placement, and the got_map
// from symbol name to offset within the .got segment.
type Layout struct {
	Segments   [8]*Segment
	sectionMap map[sectionKey]sectionLocation
	GotMap     map[string]uint64
	gotOrder   []string // insertion order, for deterministic fill
}

type sectionLocation struct {
	SegmentIndex int
	OffsetInSeg  uint64
}

// fixedOrder is the mandatory segment order: .bss MUST be last so the
// single-PT_LOAD file-offset/vaddr identity holds.
var fixedOrder = [8]SegmentKind{
	KindText, KindInit, KindFini, KindReadOnlyData, KindData, KindGot, KindTLS, KindUninitializedData,
}

func newLayout() *Layout {
	l := &Layout{
		sectionMap: make(map[sectionKey]sectionLocation),
		GotMap:     make(map[string]uint64),
	}
	names := [8]string{".text", ".init", ".fini", ".rodata", ".data", ".got", ".tdata", ".bss"}
	for i, k := range fixedOrder {
		l.Segments[i] = &Segment{Name: names[i], Kind: k}
	}
	return l
}

func (l *Layout) segmentFor(kind SegmentKind) *Segment {
	for _, seg := range l.Segments {
		if seg.Kind == kind {
			return seg
		}
	}
	return nil
}

func (l *Layout) segmentIndex(kind SegmentKind) int {
	for i, seg := range l.Segments {
		if seg.Kind == kind {
			return i
		}
	}
	return -1
}

func alignUp(value, align uint64) uint64 {
	if align <= 1 {
		return value
	}
	return (value + align - 1) / align * align
}

// destinationKind implements spec.md 4.4's section placement rule. ok is
// false when the section must be skipped (logged by the caller).
func destinationKind(sec object.Section) (SegmentKind, bool) {
	switch sec.Name {
	case ".init":
		return KindInit, true
	case ".fini":
		return KindFini, true
	}
	switch sec.Kind {
	case object.SectionText:
		return KindText, true
	case object.SectionReadOnlyData, object.SectionReadOnlyString:
		return KindReadOnlyData, true
	case object.SectionData:
		return KindData, true
	case object.SectionTLS:
		return KindTLS, true
	case object.SectionUninitializedData:
		return KindUninitializedData, true
	default:
		if sec.RawType == 14 || sec.RawType == 15 { // SHT_INIT_ARRAY / SHT_FINI_ARRAY
			return KindData, true
		}
		return 0, false
	}
}

// NeedsGot reports whether a relocation requires a GOT slot: its kind is
// Got/GotRelative, its raw ELF type is a GOTPCRELX variant, or its target
// symbol (when known) is TLS-typed. The layout and relocation engines
// share this exact predicate so GOT construction and GOT use never
// diverge.
func NeedsGot(r object.Reloc, targetIsTLS bool) bool {
	switch r.Kind {
	case object.RelocGot, object.RelocGotRelative:
		return true
	}
	switch r.RawType {
	case object.RawGOTPCREL, object.RawGOTPCRELX, object.RawRexGOTPCRELX:
		return true
	}
	return targetIsTLS
}

// Skipped records a section the placement pass declined to place, for the
// caller to log as a warning.
type Skipped struct {
	ObjectIndex  int
	SectionName  string
	SectionIndex int
}

// Build runs section placement, GOT construction, and address assignment
// over every object's sections, looking relocation targets up in each
// object's own symbol list to find GOT-needing references, then sets the
// final address of every definition in syms. Section skips are returned,
// not logged, so the caller controls diagnostic formatting.
func Build(objs []*object.Object, syms *symtab.Table) (*Layout, []Skipped) {
	l := newLayout()
	var skipped []Skipped

	for objIdx, obj := range objs {
		for _, sec := range obj.Sections {
			if sec.Size == 0 {
				continue
			}
			kind, ok := destinationKind(sec)
			if !ok {
				skipped = append(skipped, Skipped{ObjectIndex: objIdx, SectionName: sec.Name, SectionIndex: sec.OriginalIndex})
				continue
			}
			seg := l.segmentFor(kind)
			offset := alignUp(seg.Size, maxU64(sec.Align, 1))
			if kind != KindUninitializedData {
				if pad := int(offset) - len(seg.Data); pad > 0 {
					seg.Data = append(seg.Data, make([]byte, pad)...)
				}
				seg.Data = append(seg.Data, sec.Data...)
			}
			seg.Size = offset + sec.Size

			placement := Placement{ObjectIndex: objIdx, SectionIndex: sec.OriginalIndex, OffsetInSeg: offset, Size: sec.Size}
			seg.Sections = append(seg.Sections, placement)
			l.sectionMap[sectionKey{objIdx, sec.OriginalIndex}] = sectionLocation{SegmentIndex: l.segmentIndex(kind), OffsetInSeg: offset}
		}
	}

	l.buildGot(objs)
	l.assignAddresses()
	l.resolveSymbolAddresses(objs, syms)

	return l, skipped
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// buildGot scans every relocation in file order, assigning the next
// 8-byte slot to each qualifying target name not already present.
func (l *Layout) buildGot(objs []*object.Object) {
	for _, obj := range objs {
		for _, sec := range obj.Sections {
			for _, r := range sec.Relocs {
				if r.Target.Kind != object.TargetSymbol {
					continue
				}
				sym := obj.Symbols[r.Target.Index]
				if !NeedsGot(r, sym.Kind == object.KindTLS) {
					continue
				}
				name := sym.Name
				if name == "" {
					continue
				}
				if _, ok := l.GotMap[name]; ok {
					continue
				}
				l.GotMap[name] = uint64(len(l.gotOrder)) * 8
				l.gotOrder = append(l.gotOrder, name)
			}
		}
	}

	got := l.segmentFor(KindGot)
	got.Size = uint64(len(l.gotOrder)) * 8
	got.Data = make([]byte, got.Size)
}

// assignAddresses walks segments in fixed order, skipping empty ones,
// aligning both counters to PageSize before each non-empty segment.
func (l *Layout) assignAddresses() {
	vaddr := uint64(BaseAddr + PageSize)
	foff := uint64(PageSize)

	for _, seg := range l.Segments {
		if seg.Size == 0 {
			continue
		}
		vaddr = alignUp(vaddr, PageSize)
		foff = alignUp(foff, PageSize)
		seg.VirtualAddress = vaddr
		seg.FileOffset = foff
		vaddr += seg.Size
		if seg.Kind != KindUninitializedData {
			foff += seg.Size
		}
	}
}

// resolveSymbolAddresses populates resolved_address for every definition
// whose section was actually placed; absolute symbols use their value
// directly.
func (l *Layout) resolveSymbolAddresses(objs []*object.Object, syms *symtab.Table) {
	for _, name := range syms.DefinedNames() {
		def, _ := syms.Lookup(name)
		if def.Absolute {
			def.SetAddress(def.Value)
			continue
		}
		loc, ok := l.sectionMap[sectionKey{def.Origin.ObjectIndex, def.Origin.SectionIndex}]
		if !ok {
			continue
		}
		seg := l.Segments[loc.SegmentIndex]
		def.SetAddress(seg.VirtualAddress + loc.OffsetInSeg + def.Value)
	}
}

// SectionAddress resolves an (object, section) pair to its final virtual
// address, or false if that section was skipped at placement time.
func (l *Layout) SectionAddress(objectIndex, sectionIndex int) (uint64, bool) {
	loc, ok := l.sectionMap[sectionKey{objectIndex, sectionIndex}]
	if !ok {
		return 0, false
	}
	seg := l.Segments[loc.SegmentIndex]
	return seg.VirtualAddress + loc.OffsetInSeg, true
}

// GotAddress returns the .got segment's virtual address, used both for
// GOT-relative relocations and for resolving _GLOBAL_OFFSET_TABLE_.
func (l *Layout) GotAddress() uint64 {
	return l.segmentFor(KindGot).VirtualAddress
}

// SortedGotNames returns the GOT's entries in insertion order, which this
// package always keeps consistent with an ascending offset sort, so
// filling and allocation agree byte-for-byte across runs.
func (l *Layout) SortedGotNames() []string {
	names := append([]string{}, l.gotOrder...)
	sort.Slice(names, func(i, j int) bool { return l.GotMap[names[i]] < l.GotMap[names[j]] })
	return names
}
