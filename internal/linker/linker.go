// Package linker wires the five pipeline stages — input loading, archive
// resolution, layout, relocation, and ELF image writing — into the single
// entry point the driver calls.
package linker

import (
	"log/slog"

	"github.com/Manu343726/staticld/internal/diagnostics"
	"github.com/Manu343726/staticld/internal/elfimage"
	"github.com/Manu343726/staticld/internal/layout"
	"github.com/Manu343726/staticld/internal/linkerr"
	"github.com/Manu343726/staticld/internal/loader"
	"github.com/Manu343726/staticld/internal/reloc"
	"github.com/Manu343726/staticld/pkg/utils"
)

// Input is one file handed to the linker: its display path (for
// diagnostics) and its already-read bytes.
type Input struct {
	Path string
	Data []byte
}

const entrySymbol = "_start"

// Link runs the full pipeline over inputs in argument order and returns
// the finished ET_EXEC image. Every object and archive member is loaded
// before layout begins. Inputs are loaded one at a time, so an archive's
// selective pull-in (internal/archive) sees only the names left undefined
// by the inputs before it and by the members it pulls in.
func Link(inputs []Input, logger *slog.Logger) ([]byte, error) {
	l := loader.New()

	for _, in := range inputs {
		logger.Debug("loading input", "path", in.Path)
		if err := l.LoadInput(in.Path, in.Data); err != nil {
			return nil, err
		}
	}

	if unresolved := l.Symbols.Undefined(); len(unresolved) > 0 {
		return nil, utils.MakeError(linkerr.ErrUndefinedSymbol, "%s", unresolved[0])
	}

	lay, skipped := layout.Build(l.Objects, l.Symbols)
	for _, s := range skipped {
		diagnostics.Warn("skipping section %q in %s: unrecognized kind", s.SectionName, loader.DisplayName(l.Paths[s.ObjectIndex]))
	}

	if err := reloc.ApplyAll(l.Objects, lay, l.Symbols); err != nil {
		return nil, err
	}

	entry := entryAddress(l)
	return elfimage.Build(lay, entry), nil
}

func entryAddress(l *loader.Loader) uint64 {
	def, ok := l.Symbols.Lookup(entrySymbol)
	if !ok {
		return 0
	}
	addr, has := def.Address()
	if !has {
		return 0
	}
	return addr
}
