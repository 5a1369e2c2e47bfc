// Package archive reads System V ar archives and resolves which members
// a link actually needs, pulling members in only when they define a
// currently-undefined symbol.
package archive

import (
	"sort"
	"strconv"
	"strings"

	"github.com/Manu343726/staticld/internal/linkerr"
	"github.com/Manu343726/staticld/internal/object"
	"github.com/Manu343726/staticld/pkg/utils"
)

// Magic is the System V ar file signature.
const Magic = "!<arch>\n"

const headerSize = 60

// Member is one named entry of an archive: its name and its (possibly
// re-aligned) byte slice.
type Member struct {
	Name string
	Data []byte
}

// Archive is a parsed ar file: its members in native file order. A member
// that didn't start on an 8-byte boundary relative to the start of the
// archive's owning input carries an owned, re-aligned copy as its Data.
type Archive struct {
	Members []Member
}

// Parse splits data into its member entries. Members whose offset within
// data is not 8-byte aligned are copied into a freshly allocated,
// 8-byte-aligned buffer, per spec.md 4.3's re-alignment pre-step; every
// other member keeps borrowing data directly.
func Parse(data []byte) (*Archive, error) {
	if len(data) < len(Magic) || string(data[:len(Magic)]) != Magic {
		return nil, utils.MakeError(linkerr.ErrParse, "missing ar magic")
	}

	a := &Archive{}
	offset := len(Magic)

	for offset+headerSize <= len(data) {
		header := data[offset : offset+headerSize]
		rawName := strings.TrimRight(string(header[0:16]), " ")

		sizeField := strings.TrimSpace(string(header[48:58]))
		size, err := strconv.Atoi(sizeField)
		if err != nil {
			return nil, utils.MakeError(linkerr.ErrParse, "invalid ar member size field %q: %v", sizeField, err)
		}

		memberStart := offset + headerSize
		memberEnd := memberStart + size
		if memberEnd > len(data) {
			return nil, utils.MakeError(linkerr.ErrParse, "ar member %q overruns archive", rawName)
		}

		raw := data[memberStart:memberEnd]
		memberData := raw
		if memberStart%8 != 0 {
			memberData = make([]byte, len(raw))
			copy(memberData, raw)
		}

		// "/" is the GNU symbol table and "//" the long-name string table;
		// both are archive bookkeeping, never an object to parse.
		if rawName != "/" && rawName != "//" {
			name := strings.TrimSuffix(rawName, "/")
			a.Members = append(a.Members, Member{Name: name, Data: memberData})
		}

		offset = memberEnd
		if offset%2 != 0 {
			offset++ // members are padded to an even boundary
		}
	}

	return a, nil
}

// memberSymbols is the per-member defined-symbol index built while
// scanning an archive once, ahead of the fixpoint pull-in loop.
type memberSymbols struct {
	member  Member
	obj     *object.Object
	defines map[string]bool
}

// Resolve runs the selective-linking fixpoint: starting from the set of
// names currently undefined (as tracked by needed), it repeatedly scans
// the archive's members in native order and pulls in any member that
// defines at least one still-undefined name, until a full pass pulls in
// nothing. Each pulled-in member's object is passed to ingest so the
// caller can fold its symbols and sections into the ongoing link.
//
// needed and ingest let this package stay ignorant of symtab/object
// construction details; it only drives the iteration.
func Resolve(ar *Archive, needed func() []string, ingest func(*object.Object) error) error {
	indexed := make([]*memberSymbols, 0, len(ar.Members))
	for _, m := range ar.Members {
		obj, err := object.ParseObject(m.Data)
		if err != nil {
			return utils.MakeError(linkerr.ErrParse, "parsing archive member %q: %v", m.Name, err)
		}
		bySymbolName := utils.GenMap(obj.Symbols, func(sym object.Symbol) string { return sym.Name })
		defines := make(map[string]bool, len(bySymbolName))
		for name, sym := range bySymbolName {
			if !sym.Undefined && !sym.Local {
				defines[name] = true
			}
		}
		indexed = append(indexed, &memberSymbols{member: m, obj: obj, defines: defines})
	}

	pulled := make(map[int]bool)

	for {
		undefined := needed()
		sort.Strings(undefined)

		pulledThisPass := false

		for i, entry := range indexed {
			if pulled[i] {
				continue
			}
			if !satisfiesAny(entry.defines, undefined) {
				continue
			}
			if err := ingest(entry.obj); err != nil {
				return err
			}
			pulled[i] = true
			pulledThisPass = true
		}

		if !pulledThisPass {
			return nil
		}
	}
}

func satisfiesAny(defines map[string]bool, undefined []string) bool {
	for _, name := range undefined {
		if defines[name] {
			return true
		}
	}
	return false
}
