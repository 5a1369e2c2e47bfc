// Package symtab tracks global symbol definitions across every object
// pulled into a link: who defines what, which names still need a
// definition, and which undefined names are allowed to resolve to zero.
package symtab

import (
	"sort"
	"strings"

	"github.com/Manu343726/staticld/internal/object"
	"github.com/Manu343726/staticld/pkg/utils"
)

// Origin identifies the object and section a definition came from, so the
// layout engine can later turn it into an address.
type Origin struct {
	ObjectIndex  int
	SectionIndex int // original ELF section index within that object
}

// Definition is one globally visible symbol definition: its value within
// its owning section (or its absolute value), and, once the layout engine
// runs, its final virtual address.
type Definition struct {
	Name            string
	Weak            bool
	Absolute        bool // true iff the symbol has no section index
	Origin          Origin
	Value           uint64
	ResolvedAddress uint64
	hasAddress      bool
}

// SetAddress records the final virtual address computed for this symbol.
func (d *Definition) SetAddress(addr uint64) {
	d.ResolvedAddress = addr
	d.hasAddress = true
}

// Address returns the resolved address and whether layout has run yet.
func (d *Definition) Address() (uint64, bool) {
	return d.ResolvedAddress, d.hasAddress
}

// wellKnownOptional names runtime/compiler marker symbols that a
// freestanding link is allowed to leave undefined. _GLOBAL_OFFSET_TABLE_ is
// here too: it is never defined by any object, since the linker resolves it
// directly to .got's address (internal/reloc), so a reference to it must
// never land in the hard undefined set.
var wellKnownOptional = map[string]bool{
	"_DYNAMIC":              true,
	"__dso_handle":          true,
	"_dl_find_object":       true,
	"__TMC_END__":           true,
	"_GLOBAL_OFFSET_TABLE_": true,
}

// wellKnownOptionalPrefixes names runtime/compiler marker symbol prefixes
// whose undefined references are likewise tolerated.
var wellKnownOptionalPrefixes = []string{"__TMC_", "__gcc_", "__morestack", "__bid_"}

// IsOptional reports whether an undefined symbol is allowed to stay that
// way: it is weak, hidden, TLS-typed, or a well-known runtime/compiler
// marker name.
func IsOptional(sym object.Symbol) bool {
	if sym.Weak {
		return true
	}
	if sym.Visibility == object.VisibilityHidden {
		return true
	}
	if sym.Kind == object.KindTLS {
		return true
	}
	if wellKnownOptional[sym.Name] {
		return true
	}
	for _, prefix := range wellKnownOptionalPrefixes {
		if strings.HasPrefix(sym.Name, prefix) {
			return true
		}
	}
	return false
}

// Table accumulates symbol definitions as objects are ingested. It keeps
// two disjoint name sets: undefined (must be resolved, drives archive
// pull-in) and weakUndefined (permitted to resolve to 0). A name leaves
// undefined the moment a non-weak definition is added.
type Table struct {
	defined       map[string]*Definition
	undefined     map[string]bool
	weakUndefined map[string]bool
}

// New returns an empty symbol table.
func New() *Table {
	return &Table{
		defined:       make(map[string]*Definition),
		undefined:     make(map[string]bool),
		weakUndefined: make(map[string]bool),
	}
}

// Define records a definition for name. A strong (non-weak) definition
// always wins over a previously recorded weak one; a second strong
// definition of the same name is silently accepted, keeping the first; a
// duplicate strong definition is not an error.
func (t *Table) Define(name string, weak bool, absolute bool, origin Origin, value uint64) {
	delete(t.undefined, name)
	delete(t.weakUndefined, name)

	existing, ok := t.defined[name]
	if !ok {
		t.defined[name] = &Definition{Name: name, Weak: weak, Absolute: absolute, Origin: origin, Value: value}
		return
	}
	if existing.Weak && !weak {
		t.defined[name] = &Definition{Name: name, Weak: weak, Absolute: absolute, Origin: origin, Value: value}
	}
}

// ReferenceUndefined records an undefined symbol reference. sym classifies
// the reference via IsOptional: optional references go to the
// weak-undefined set (tolerated, resolve to 0); everything else goes to
// the undefined set and must eventually gain a definition.
func (t *Table) ReferenceUndefined(sym object.Symbol) {
	if _, ok := t.defined[sym.Name]; ok {
		return
	}
	if IsOptional(sym) {
		if !t.undefined[sym.Name] {
			t.weakUndefined[sym.Name] = true
		}
		return
	}
	delete(t.weakUndefined, sym.Name)
	t.undefined[sym.Name] = true
}

// Lookup returns the current definition for name, if any.
func (t *Table) Lookup(name string) (*Definition, bool) {
	d, ok := t.defined[name]
	return d, ok
}

// IsWeakUndefined reports whether name was referenced only optionally and
// still has no definition.
func (t *Table) IsWeakUndefined(name string) bool {
	return t.weakUndefined[name]
}

// Undefined returns the names that must still be resolved, sorted for
// deterministic archive traversal and diagnostics.
func (t *Table) Undefined() []string {
	return sortedKeys(t.undefined)
}

// DefinedNames returns every currently defined name, sorted.
func (t *Table) DefinedNames() []string {
	names := utils.Keys(t.defined)
	sortStrings(names)
	return names
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sortStrings(keys)
	return keys
}

func sortStrings(s []string) {
	sort.Strings(s)
}
