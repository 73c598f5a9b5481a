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

// rawReader is the driver-protocol surface shared by BinaryReader and
// TextReader: ManagedReader is a stateful filter over either one.
type rawReader interface {
	Next() (Event, error)
	Data([]byte) (Event, error)
	MarkEOF()
	Skip() (bool, error)
}

// lstMode tracks which part of an in-progress local-symbol-table
// struct ManagedReader is currently consuming.
type lstMode int

const (
	lstTop lstMode = iota // directly inside the LST struct, awaiting a field
	lstSymbolsList
	lstImportsList
	lstImportFields // inside one element of the imports list
)

// tokenIsSystemSymbol reports whether tok denotes the given system
// symbol, whichever format supplied it: a text-format token carries
// the text directly, while a binary-format token carries only the
// sid, which is fixed and resolvable without consulting any table.
func tokenIsSystemSymbol(tok SymbolToken, sym Symbol, text string) bool {
	if tok.HasText {
		return tok.Text == text
	}
	return tok.Sid == sym
}

// importDesc accumulates one element of an "imports" list while it is
// being read field by field.
type importDesc struct {
	name           string
	version, maxID int
	hasMaxID       bool
}

// lstBuild accumulates a local symbol table under construction,
// persisted across ManagedReader.Next() calls so an INCOMPLETE from
// the underlying raw reader mid-struct can be resumed without losing
// progress (the raw reader itself never re-delivers an event once
// consumed, so this state is exactly what must be remembered).
type lstBuild struct {
	active     bool
	mode       lstMode
	baseDepth  int // event Depth of the LST struct's own fields
	appendSelf bool
	symbols    []string
	imports    []*SharedSymtab
	cur        importDesc
	// skipping is set while discarding an unknown field's container
	// value; stepLST must call raw.Skip() again on resume rather than
	// raw.Next(), since Skip (unlike Next) may itself need to be
	// retried after an INCOMPLETE without losing its place.
	skipping bool
}

// ManagedReader is the symbol-table-aware filter described in §4.4: it
// wraps a raw BinaryReader or TextReader, intercepts version markers
// and local-symbol-table structs to maintain the active Symtab, and
// resolves every field name, annotation, and symbol value against it
// before handing the event to its caller. The output stream contains
// neither version markers nor symbol-table structs.
type ManagedReader struct {
	raw     rawReader
	symtab  Symtab
	catalog *Catalog
	lst     lstBuild
	held    *Event // event returned by raw.Data, not yet taken by Next
}

// NewManagedBinaryReader wraps a fresh BinaryReader.
func NewManagedBinaryReader(catalog *Catalog) *ManagedReader {
	return newManagedReader(NewBinaryReader(), catalog)
}

// NewManagedTextReader wraps a fresh TextReader.
func NewManagedTextReader(catalog *Catalog) *ManagedReader {
	return newManagedReader(NewTextReader(), catalog)
}

func newManagedReader(raw rawReader, catalog *Catalog) *ManagedReader {
	m := &ManagedReader{raw: raw, catalog: catalog}
	m.symtab.SetCatalog(catalog)
	return m
}

// Data appends b to the input and returns the next event, as Next would.
func (m *ManagedReader) Data(b []byte) (Event, error) {
	ev, err := m.raw.Data(b)
	if err != nil {
		return Event{}, err
	}
	if ev.Type != Incomplete {
		m.held = &ev
	}
	return m.Next()
}

// rawNext returns the event held back by Data, if any, and otherwise
// steps the raw reader.
func (m *ManagedReader) rawNext() (Event, error) {
	if ev := m.held; ev != nil {
		m.held = nil
		return *ev, nil
	}
	return m.raw.Next()
}

// MarkEOF records that no further bytes will ever be appended.
func (m *ManagedReader) MarkEOF() { m.raw.MarkEOF() }

// Skip discards the body of the container most recently opened by a
// CONTAINER_START, exactly as the underlying raw reader's Skip does.
func (m *ManagedReader) Skip() (bool, error) { return m.raw.Skip() }

// Symtab returns the currently active symbol table. The returned
// value must not be retained across a further call to Next, Data, or
// Skip, which may mutate it in place; callers needing a snapshot
// should use Symtab.Clone.
func (m *ManagedReader) Symtab() *Symtab { return &m.symtab }

// Next produces the next user-visible event, transparently consuming
// and applying any version markers or local-symbol-table structs
// encountered along the way.
func (m *ManagedReader) Next() (Event, error) {
	for {
		if m.lst.active {
			done, err := m.stepLST()
			if err != nil {
				return Event{}, err
			}
			if !done {
				return Event{Type: Incomplete}, nil
			}
			continue
		}

		ev, err := m.rawNext()
		if err != nil {
			return Event{}, err
		}
		switch ev.Type {
		case Incomplete, StreamEnd:
			return ev, nil
		case VersionMarker:
			m.symtab.Reset()
			continue
		case ContainerStart:
			if ev.Depth == 0 && ev.Ion == StructType && len(ev.Annotations) > 0 &&
				tokenIsSystemSymbol(ev.Annotations[0], symIonSymbolTable, "$ion_symbol_table") {
				m.lst = lstBuild{active: true, mode: lstTop, baseDepth: ev.Depth + 1}
				continue
			}
		case Scalar:
			if ev.Depth == 0 && !ev.HasField && len(ev.Annotations) == 0 && ev.Ion == SymbolType {
				sym, _ := ev.Value.Sym()
				if tokenIsSystemSymbol(sym, symDollarIon_1_0, "$ion_1_0") {
					continue // NOP
				}
			}
		}
		if err := m.resolve(&ev); err != nil {
			return Event{}, err
		}
		return ev, nil
	}
}

// resolve rewrites every sid-only SymbolToken in ev (field name,
// annotations, and a symbol-typed scalar value) into one with text
// filled in from the active table where known.
func (m *ManagedReader) resolve(ev *Event) error {
	if ev.HasField {
		tok, err := m.resolveToken(ev.FieldName)
		if err != nil {
			return err
		}
		ev.FieldName = tok
	}
	for i := range ev.Annotations {
		tok, err := m.resolveToken(ev.Annotations[i])
		if err != nil {
			return err
		}
		ev.Annotations[i] = tok
	}
	if ev.Type == Scalar && ev.Ion == SymbolType && ev.Value != nil {
		sym, err := ev.Value.Sym()
		if err != nil {
			return err
		}
		resolved, err := m.resolveToken(sym)
		if err != nil {
			return err
		}
		ev.Value = NewValue(resolved)
	}
	return nil
}

// resolveToken fills in Text for a sid-only token by looking it up in
// the active table; a token that already carries text (from the text
// format) passes through unchanged; an out-of-range sid is fatal.
func (m *ManagedReader) resolveToken(tok SymbolToken) (SymbolToken, error) {
	if tok.HasText {
		return tok, nil
	}
	if tok.Sid > m.symtab.MaxID() {
		return SymbolToken{}, ionErr(-1, "symbol id %d is out of range for the active symbol table", tok.Sid)
	}
	if txt, ok := m.symtab.Lookup(tok.Sid); ok {
		return TextToken(txt), nil
	}
	if loc := m.symtab.ImportLocationFor(tok.Sid); loc != nil {
		return SidToken(tok.Sid, loc), nil
	}
	return tok, nil
}

// stepLST drives the raw reader through one or more events of an
// in-progress local-symbol-table struct, updating m.lst. done is
// false if the raw reader needs more input; m.lst is left untouched
// in that case so a later call resumes exactly here.
func (m *ManagedReader) stepLST() (bool, error) {
	for {
		if m.lst.skipping {
			done, err := m.raw.Skip()
			if err != nil {
				return false, err
			}
			if !done {
				return false, nil
			}
			m.lst.skipping = false
			continue
		}

		ev, err := m.rawNext()
		if err != nil {
			return false, err
		}
		if ev.Type == Incomplete {
			return false, nil
		}
		if ev.Type == StreamEnd {
			return false, ionErr(-1, "stream ended inside a local symbol table struct")
		}

		switch m.lst.mode {
		case lstTop:
			if ev.Type == ContainerEnd && ev.Depth == m.lst.baseDepth-1 {
				m.finishLST()
				return true, nil
			}
			if !ev.HasField {
				continue // malformed, but tolerated as an unknown element
			}
			switch {
			case tokenIsSystemSymbol(ev.FieldName, symSymbols, "symbols"):
				if ev.Type == ContainerStart && ev.Ion == ListType {
					m.lst.mode = lstSymbolsList
					continue
				}
				// wrong shape: ignore the (already-consumed) value
			case tokenIsSystemSymbol(ev.FieldName, symImports, "imports"):
				if ev.Type == Scalar && ev.Ion == SymbolType {
					sym, _ := ev.Value.Sym()
					if tokenIsSystemSymbol(sym, symIonSymbolTable, "$ion_symbol_table") {
						m.lst.appendSelf = true
					}
					continue
				}
				if ev.Type == ContainerStart && ev.Ion == ListType {
					m.lst.mode = lstImportsList
					continue
				}
			}
			// unknown field or unexpected value shape: skip it
			if ev.Type == ContainerStart {
				m.lst.skipping = true
			}

		case lstSymbolsList:
			if ev.Type == ContainerEnd {
				m.lst.mode = lstTop
				continue
			}
			if ev.Type == Scalar {
				if ev.Ion == StringType {
					s, err := ev.Value.Str()
					if err != nil {
						return false, err
					}
					m.lst.symbols = append(m.lst.symbols, s)
				} else {
					m.lst.symbols = append(m.lst.symbols, "") // null or wrong shape: unknown text
				}
			}

		case lstImportsList:
			if ev.Type == ContainerEnd {
				m.lst.mode = lstTop
				continue
			}
			if ev.Type == ContainerStart && ev.Ion == StructType {
				m.lst.cur = importDesc{version: 1}
				m.lst.mode = lstImportFields
				continue
			}
			// non-struct element: ignore

		case lstImportFields:
			if ev.Type == ContainerEnd {
				if err := m.commitImport(); err != nil {
					return false, err
				}
				m.lst.mode = lstImportsList
				continue
			}
			if !ev.HasField || ev.Type != Scalar {
				continue
			}
			switch {
			case tokenIsSystemSymbol(ev.FieldName, symName, "name"):
				if ev.Ion == StringType {
					s, err := ev.Value.Str()
					if err != nil {
						return false, err
					}
					m.lst.cur.name = s
				}
			case tokenIsSystemSymbol(ev.FieldName, symVersion, "version"):
				if ev.Ion == IntType {
					v, err := ev.Value.Int()
					if err != nil {
						return false, err
					}
					m.lst.cur.version = int(v.Int64())
				}
			case tokenIsSystemSymbol(ev.FieldName, symMaxID, "max_id"):
				if ev.Ion == IntType {
					v, err := ev.Value.Int()
					if err != nil {
						return false, err
					}
					m.lst.cur.maxID = int(v.Int64())
					m.lst.cur.hasMaxID = true
				}
			}
		}
	}
}

// commitImport resolves the just-finished import descriptor through
// the catalog and appends it to the table under construction.
func (m *ManagedReader) commitImport() error {
	d := m.lst.cur
	if d.name == "" || d.name == "$ion" {
		return nil // malformed import descriptor: ignored
	}
	maxID := -1
	if d.hasMaxID {
		maxID = d.maxID
	}
	t, err := m.catalogOrEmpty().Resolve(d.name, d.version, maxID)
	if err != nil {
		return err
	}
	m.lst.imports = append(m.lst.imports, t)
	return nil
}

func (m *ManagedReader) catalogOrEmpty() *Catalog {
	if m.catalog != nil {
		return m.catalog
	}
	return emptyCatalog
}

var emptyCatalog = NewCatalog()

// finishLST installs the table accumulated in m.lst as the active
// symbol table, applying the append-self special case and then the
// "symbols" field's new local symbols.
//
// Per §4.4, an "imports" value of the symbol $ion_symbol_table means
// extend the table currently active (its imports and its local
// symbols survive); any other shape starts a fresh local table whose
// only imports are the ones this LST declares (none, if it declares
// no imports field at all).
func (m *ManagedReader) finishLST() {
	if !m.lst.appendSelf {
		m.symtab.Reset()
		m.symtab.SetImports(m.lst.imports)
	}
	for _, s := range m.lst.symbols {
		m.symtab.Intern(s)
	}
	m.lst = lstBuild{}
}
