// Package loader dispatches an input byte slice to the object or archive
// path and feeds every ingested object's symbols into the symbol table.
package loader

import (
	"strings"

	"github.com/Manu343726/staticld/internal/archive"
	"github.com/Manu343726/staticld/internal/linkerr"
	"github.com/Manu343726/staticld/internal/object"
	"github.com/Manu343726/staticld/internal/symtab"
	"github.com/Manu343726/staticld/pkg/utils"
)

// Loader owns every object pulled into the link (directly or via an
// archive) and the symbol table built while doing so. Objects and their
// display paths are kept in parallel, file_index-indexed arrays, matching
// how the layout and relocation engines later address them.
type Loader struct {
	Objects []*object.Object
	Paths   []string
	Symbols *symtab.Table
}

// New returns an empty loader with a fresh symbol table.
func New() *Loader {
	return &Loader{Symbols: symtab.New()}
}

// LoadInput dispatches data by magic: an ar archive is resolved
// selectively against the symbol table's current undefined set; anything
// else is parsed as a single relocatable object and ingested directly.
func (l *Loader) LoadInput(displayPath string, data []byte) error {
	if len(data) >= len(archive.Magic) && string(data[:len(archive.Magic)]) == archive.Magic {
		return l.loadArchive(displayPath, data)
	}
	obj, err := object.ParseObject(data)
	if err != nil {
		return utils.MakeError(linkerr.ErrParse, "%s: %v", displayPath, err)
	}
	return l.IngestObject(displayPath, obj)
}

func (l *Loader) loadArchive(displayPath string, data []byte) error {
	ar, err := archive.Parse(data)
	if err != nil {
		return utils.MakeError(linkerr.ErrParse, "%s: %v", displayPath, err)
	}
	return archive.Resolve(ar, l.Symbols.Undefined, func(obj *object.Object) error {
		return l.IngestObject(displayPath, obj)
	})
}

// IngestObject records obj at the next file index and applies spec.md
// 4.2's three-way symbol classification to every symbol it carries:
// undefined symbols feed the undefined/weak-undefined sets, locals are
// skipped (they resolve per-use by file+section+address), and global
// definitions are recorded in the symbol table.
func (l *Loader) IngestObject(displayPath string, obj *object.Object) error {
	fileIndex := len(l.Objects)
	l.Objects = append(l.Objects, obj)
	l.Paths = append(l.Paths, displayPath)

	for _, sym := range obj.Symbols {
		switch {
		case sym.Undefined:
			l.Symbols.ReferenceUndefined(sym)
		case sym.Local:
			// resolved per-use via (file_index, section_index) + value
		default:
			l.Symbols.Define(sym.Name, sym.Weak, !sym.HasSection, symtab.Origin{
				ObjectIndex:  fileIndex,
				SectionIndex: sym.SectionIndex,
			}, sym.Value)
		}
	}

	return nil
}

// DisplayName trims a path down to its base component for diagnostics,
// matching the terse style the rest of the pipeline logs with.
func DisplayName(path string) string {
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
