// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package ion

import (
	"reflect"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// system symbols occupy sids 1-9; index 0 is the reserved
// unknown-text symbol and is never looked up by name.
var systemsyms = []string{
	"", // sid 0: unknown text, always
	"$ion",
	"$ion_1_0",
	"$ion_symbol_table",
	"name",
	"version",
	"imports",
	"symbols",
	"max_id",
	"$ion_shared_symbol_table",
}

const (
	symDollarIon       Symbol = 1
	symDollarIon_1_0   Symbol = 2
	symIonSymbolTable  Symbol = 3
	symName            Symbol = 4
	symVersion         Symbol = 5
	symImports         Symbol = 6
	symSymbols         Symbol = 7
	symMaxID           Symbol = 8
	symIonSharedSymtab Symbol = 9
)

var system2id map[string]Symbol

func init() {
	system2id = make(map[string]Symbol, len(systemsyms)-1)
	for i := 1; i < len(systemsyms); i++ {
		system2id[systemsyms[i]] = Symbol(i)
	}
}

// MinimumID returns the lowest symbol ID that str could be assigned:
// its system-symbol ID if str is one of the nine predefined names, or
// the first available local ID (10) otherwise.
func MinimumID(str string) Symbol {
	if i, ok := system2id[str]; ok {
		return i
	}
	return Symbol(len(systemsyms))
}

// Symtab is a LOCAL Ion symbol table: it implicitly imports the
// system table, may import a sequence of SharedSymtabs resolved
// through a Catalog, and may append local symbol text.
//
// The zero value is a valid, empty local symbol table.
type Symtab struct {
	catalog *Catalog

	imports     []*SharedSymtab
	importBase  []Symbol // sid of the first symbol contributed by imports[i]
	importMaxID Symbol   // total sids contributed by imports, i.e. imports[last].base+imports[last].MaxID() - systemBase

	interned []string // local symbol -> string lookup
	aliased  int      // read-only prefix length of interned (shared via alias())
	toindex  map[string]Symbol
	memsize  int
}

var systemBase = Symbol(len(systemsyms)) // 10: first local (non-system) sid absent imports

func (s *Symtab) init() {
	s.toindex = make(map[string]Symbol, len(systemsyms))
}

// Reset clears s back to an empty local table importing only the
// system table, as happens on every Ion version marker (§3).
func (s *Symtab) Reset() {
	s.imports = nil
	s.importBase = nil
	s.importMaxID = 0
	s.clear()
}

func (s *Symtab) clear() {
	s.interned = s.interned[:0]
	s.aliased = 0
	s.memsize = 0
	if s.toindex != nil {
		maps.Clear(s.toindex)
	}
}

// SetCatalog installs the catalog used to resolve shared-table
// imports declared by a subsequent LST. A nil catalog means imports
// with an undeclared max_id always fail with CannotSubstituteTable.
func (s *Symtab) SetCatalog(c *Catalog) { s.catalog = c }

// Catalog returns the catalog installed with SetCatalog, or nil.
func (s *Symtab) Catalog() *Catalog { return s.catalog }

// SetImports replaces the table's shared-table imports (and
// implicitly rebases every local symbol above them), matching what a
// local-symbol-table literal's non-append "imports" field declares.
// Existing local symbols (appended via Intern) are kept and rebased.
func (s *Symtab) SetImports(imports []*SharedSymtab) {
	local := slices.Clone(s.interned)
	s.imports = imports
	s.importBase = make([]Symbol, len(imports))
	base := systemBase
	for i, imp := range imports {
		s.importBase[i] = base
		base += Symbol(imp.MaxID())
	}
	s.importMaxID = base - systemBase
	s.clear()
	for _, txt := range local {
		s.append(txt)
	}
}

// Imports returns the shared tables imported by s, in import order.
func (s *Symtab) Imports() []*SharedSymtab {
	out := make([]*SharedSymtab, len(s.imports))
	copy(out, s.imports)
	return out
}

// LocalBase returns the first sid available for locally-appended
// symbols: 10 (the first non-system sid) plus every sid contributed
// by imports.
func (s *Symtab) LocalBase() Symbol {
	return systemBase + s.importMaxID
}

// Get returns the text for x, or "" if x has no known text.
func (s *Symtab) Get(x Symbol) string {
	txt, _ := s.Lookup(x)
	return txt
}

// Lookup returns the text associated with symbol x and whether it is
// known. A sid within [1, MaxID] always "resolves" in the sense that
// Lookup succeeds in returning a (possibly empty, "unknown") result
// consistently with §3; callers needing to distinguish out-of-range
// sids from in-range-but-unknown-text sids should compare x against
// MaxID directly.
func (s *Symtab) Lookup(x Symbol) (string, bool) {
	if x == 0 {
		return "", false
	}
	if int(x) < len(systemsyms) {
		return systemsyms[x], true
	}
	rel := x - systemBase
	if rel < s.importMaxID {
		return s.lookupImport(rel)
	}
	local := int(rel - s.importMaxID)
	if local < len(s.interned) {
		txt := s.interned[local]
		return txt, txt != ""
	}
	return "", false
}

func (s *Symtab) lookupImport(rel Symbol) (string, bool) {
	for i := len(s.imports) - 1; i >= 0; i-- {
		if rel >= s.importBase[i]-systemBase {
			local := int(rel-(s.importBase[i]-systemBase)) + 1
			return s.imports[i].Lookup(local)
		}
	}
	return "", false
}

// ImportLocationFor returns the shared-table origin of x when x falls
// within an import's declared range but that import has no text at
// that position (its max_id reaches further than the catalog could
// resolve), distinguishing such a sid from one with genuinely no
// known origin (§3). It returns nil for sids outside every import's
// range, including system and local symbols.
func (s *Symtab) ImportLocationFor(x Symbol) *ImportLocation {
	if x < systemBase {
		return nil
	}
	rel := x - systemBase
	if rel >= s.importMaxID {
		return nil
	}
	for i := len(s.imports) - 1; i >= 0; i-- {
		if rel >= s.importBase[i]-systemBase {
			local := int(rel-(s.importBase[i]-systemBase)) + 1
			if _, ok := s.imports[i].Lookup(local); ok {
				return nil
			}
			return &ImportLocation{Name: s.imports[i].Name(), Sid: Symbol(local)}
		}
	}
	return nil
}

// MaxID returns the highest sid this table assigns meaning to: 9
// system symbols, plus every symbol contributed by imports, plus
// every locally-interned symbol.
func (s *Symtab) MaxID() Symbol {
	return systemBase - 1 + s.importMaxID + Symbol(len(s.interned))
}

// Symbolize returns the symbol ID already assigned to x, if any.
func (s *Symtab) Symbolize(x string) (Symbol, bool) {
	if i, ok := system2id[x]; ok {
		return i, true
	}
	for i, imp := range s.imports {
		if local, ok := imp.symbolize(x); ok {
			return s.importBase[i] + Symbol(local) - 1, true
		}
	}
	if s.toindex == nil {
		return 0, false
	}
	i, ok := s.toindex[x]
	return i, ok
}

// SymbolizeBytes is Symbolize for a []byte, avoiding an allocation on
// the miss path the way the binary reader needs it to.
func (s *Symtab) SymbolizeBytes(x []byte) (Symbol, bool) {
	return s.Symbolize(string(x))
}

// Intern interns x if it is not already present (whether via the
// system table, an import, or a prior local Intern) and returns its
// symbol ID.
func (s *Symtab) Intern(x string) Symbol {
	if i, ok := s.Symbolize(x); ok {
		return i
	}
	if s.toindex == nil {
		s.init()
	}
	id := s.LocalBase() + Symbol(len(s.interned))
	s.toindex[x] = id
	s.append(x)
	s.memsize += len(x)
	return id
}

// InternBytes is Intern for a []byte argument.
func (s *Symtab) InternBytes(buf []byte) Symbol {
	return s.Intern(string(buf))
}

func (s *Symtab) append(v string) {
	if i := len(s.interned); i < cap(s.interned) {
		s.interned = s.interned[:i+1]
		s.set(i, v)
	} else {
		s.interned = append(s.interned, v)
		s.aliased = 0
	}
}

func (s *Symtab) set(i int, v string) {
	if s.interned[i] != v {
		if i < s.aliased {
			s.interned = slices.Clone(s.interned)
			s.aliased = 0
		}
		s.interned[i] = v
	}
}

// alias returns a read-only reference to the locally-interned
// symbols, marking them aliased so later mutation copy-on-writes
// instead of clobbering the alias (used by consumers that snapshot a
// Symtab cheaply, per SPEC_FULL.md §C).
func (s *Symtab) alias() []string {
	n := len(s.interned)
	if n > s.aliased {
		s.aliased = n
	}
	return s.interned[:n:n]
}

// Clone returns an independent copy of s.
func (s *Symtab) Clone() *Symtab {
	out := &Symtab{catalog: s.catalog}
	s.CloneInto(out)
	return out
}

// CloneInto deep-copies s into o, reusing o's existing local-symbol
// storage where the prefixes already agree to reduce churn.
func (s *Symtab) CloneInto(o *Symtab) {
	o.imports = slices.Clone(s.imports)
	o.importBase = slices.Clone(s.importBase)
	o.importMaxID = s.importMaxID
	i := 0
	for i < len(o.interned) && i < len(s.interned) && s.interned[i] == o.interned[i] {
		i++
	}
	if o.toindex == nil {
		o.init()
	} else {
		maps.Clear(o.toindex)
	}
	o.interned = o.interned[:0]
	o.aliased = 0
	o.memsize = 0
	for _, txt := range s.interned {
		o.append(txt)
		o.memsize += len(txt)
	}
	base := o.LocalBase()
	for i, txt := range o.interned {
		if txt != "" {
			if _, exists := o.toindex[txt]; !exists {
				o.toindex[txt] = base + Symbol(i)
			}
		}
	}
}

// Equal reports whether s and o assign identical meaning to every
// sid (used by tests and by callers comparing snapshots).
func (s *Symtab) Equal(o *Symtab) bool {
	return reflect.DeepEqual(s.imports, o.imports) && slices.Equal(s.interned, o.interned)
}

// Contains reports whether s is a superset of inner: every sid valid
// in inner resolves to the same text in s. If s.Contains(inner), s is
// a semantically equivalent substitute for inner.
func (s *Symtab) Contains(inner *Symtab) bool {
	if len(inner.imports) > len(s.imports) {
		return false
	}
	for i, imp := range inner.imports {
		if s.imports[i] != imp {
			return false
		}
	}
	return stcontains(s.interned, inner.interned)
}

func stcontains(s, in []string) bool {
	return len(in) == 0 || (len(in) <= len(s) && slices.Equal(s[:len(in)], in))
}
