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

// SharedSymtab is an immutable, named and versioned symbol table,
// usable as a local-symbol-table import. Unlike a LOCAL Symtab, a
// shared table has no implicit system import.
type SharedSymtab struct {
	name    string
	version int
	symbols []string // 1-indexed conceptually; symbols[i] has sid i+1
	index   map[string]int

	// placeholder is true when this table is a substitute synthesized
	// by Catalog.Resolve for a (name, version) that wasn't registered,
	// or for a max_id extending a registered table (a truncated copy
	// keeps the flag of the table it was cut from). Its
	// symbols beyond what was genuinely registered resolve to unknown
	// text, per §3 "Catalog" substitution rule.
	placeholder bool
}

// NewSharedSymtab builds a shared symbol table out of band, for
// registration in a Catalog. version must be positive and name must
// be non-empty and not "$ion" (§6 "Shared symbol table literal").
func NewSharedSymtab(name string, version int, symbols []string) *SharedSymtab {
	syms := make([]string, len(symbols))
	copy(syms, symbols)
	return &SharedSymtab{
		name:    name,
		version: version,
		symbols: syms,
		index:   buildIndex(syms),
	}
}

func buildIndex(symbols []string) map[string]int {
	idx := make(map[string]int, len(symbols))
	for i, s := range symbols {
		if s == "" {
			continue
		}
		if _, ok := idx[s]; !ok {
			idx[s] = i + 1
		}
	}
	return idx
}

func (s *SharedSymtab) Name() string    { return s.name }
func (s *SharedSymtab) Version() int    { return s.version }
func (s *SharedSymtab) MaxID() int      { return len(s.symbols) }
func (s *SharedSymtab) Symbols() []string {
	out := make([]string, len(s.symbols))
	copy(out, s.symbols)
	return out
}

// Lookup returns the text for local sid i (1-indexed) within this
// shared table, or ("", false) if i is out of range or the text at
// that position is unknown (a null in the source "symbols" list).
func (s *SharedSymtab) Lookup(i int) (string, bool) {
	if i < 1 || i > len(s.symbols) {
		return "", false
	}
	txt := s.symbols[i-1]
	return txt, txt != ""
}

func (s *SharedSymtab) symbolize(text string) (int, bool) {
	i, ok := s.index[text]
	return i, ok
}

// adjust returns a copy of s truncated or extended to maxID symbols.
// Symbols beyond the original registered length resolve to unknown
// text (the "placeholder/extension" substitute of §3's Catalog).
func (s *SharedSymtab) adjust(maxID int) *SharedSymtab {
	if maxID == len(s.symbols) {
		return s
	}
	out := &SharedSymtab{name: s.name, version: s.version, placeholder: s.placeholder}
	if maxID < len(s.symbols) {
		out.symbols = s.symbols[:maxID]
		out.index = buildIndex(out.symbols)
		return out
	}
	out.symbols = make([]string, maxID)
	copy(out.symbols, s.symbols)
	out.index = s.index
	out.placeholder = true
	return out
}

// placeholderTable synthesizes an all-unknown-text shared table of
// the requested shape, used when the catalog has never heard of the
// requested name at all.
func placeholderTable(name string, version, maxID int) *SharedSymtab {
	return &SharedSymtab{
		name:        name,
		version:     version,
		symbols:     make([]string, maxID),
		placeholder: true,
	}
}

// Catalog maps a shared table name and version to a registered
// SharedSymtab. It is read-only once populated and may be shared
// freely by concurrent readers, provided no registration races with
// a lookup (§5).
type Catalog struct {
	tables map[string]map[int]*SharedSymtab
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{tables: make(map[string]map[int]*SharedSymtab)}
}

// Register adds t to the catalog, keyed by (t.Name(), t.Version()).
func (c *Catalog) Register(t *SharedSymtab) {
	byver := c.tables[t.name]
	if byver == nil {
		byver = make(map[int]*SharedSymtab)
		c.tables[t.name] = byver
	}
	byver[t.version] = t
}

// bestVersion returns the registered table for name at the requested
// version (the exact version if present, else the highest
// registered version, matching a typical Ion catalog's "best effort"
// substitution), or nil if name isn't registered at all.
func (c *Catalog) bestVersion(name string, version int) *SharedSymtab {
	byver := c.tables[name]
	if len(byver) == 0 {
		return nil
	}
	if t, ok := byver[version]; ok {
		return t
	}
	var best *SharedSymtab
	for v, t := range byver {
		if best == nil || v > best.version {
			best = t
		}
	}
	return best
}

// Resolve looks up the shared table (name, version) in the catalog.
// If the exact version is present, it is returned as-is. Otherwise,
// when maxID >= 0, a substitute is synthesized: either an adjustment
// of the highest registered version to maxID symbols, or (if nothing
// is registered under name at all) an all-unknown-text placeholder of
// maxID symbols. When maxID < 0 (not declared by the importing LST)
// and no exact match exists, Resolve returns CannotSubstituteTable,
// since no substitute shape can be inferred (§7).
func (c *Catalog) Resolve(name string, version, maxID int) (*SharedSymtab, error) {
	if t := c.bestVersion(name, version); t != nil {
		if t.version == version {
			return t, nil
		}
		if maxID < 0 {
			return nil, &CannotSubstituteTable{Name: name, Version: version}
		}
		return t.adjust(maxID), nil
	}
	if maxID < 0 {
		return nil, &CannotSubstituteTable{Name: name, Version: version}
	}
	return placeholderTable(name, version, maxID), nil
}
