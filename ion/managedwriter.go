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

import "math/big"

// ManagedBinaryWriter is the symbol-table-aware counterpart of
// ManagedReader (§4.6): callers supply events whose field names,
// annotations, and symbol values may carry text; it interns that text
// into the active local table, substitutes sids, and delegates to an
// internal raw BinaryWriter. A stream boundary's IVM and local symbol
// table (if any symbol was interned or imports were declared) are not
// knowable until every event of the segment has been seen, so nothing
// is emitted until STREAM_END, at which point IVM, LST, and the
// buffered value bytes are queued for the driver in that order.
type ManagedBinaryWriter struct {
	symtab         Symtab
	imports        []*SharedSymtab // persists across segments until SetImports changes it
	values         *BinaryWriter
	newSyms        []string
	segmentStarted bool
	pending        [][]byte
	pendIdx        int
}

// NewManagedBinaryWriter returns a writer positioned at the start of
// a fresh segment with no declared imports.
func NewManagedBinaryWriter() *ManagedBinaryWriter {
	return &ManagedBinaryWriter{values: NewBinaryWriter()}
}

// SetImports declares the shared-table imports that every subsequent
// segment's local symbol table should import, starting immediately.
func (m *ManagedBinaryWriter) SetImports(imports []*SharedSymtab) {
	m.imports = imports
	m.symtab.SetImports(imports)
}

// Write accepts one event and returns the driver's next action.
func (m *ManagedBinaryWriter) Write(ev Event) (WriteSignal, error) {
	if ev.Type == Incomplete {
		return NeedsInput, usageErr("Write", "INCOMPLETE is not a valid writer input")
	}
	if ev.Type != StreamEnd {
		m.segmentStarted = true
		if err := m.resolveEvent(&ev); err != nil {
			return NeedsInput, err
		}
		if _, err := m.values.Write(ev); err != nil {
			return NeedsInput, err
		}
		return NeedsInput, nil
	}
	return m.finishSegment()
}

// Pending returns the next ready output chunk without requiring a
// further event.
func (m *ManagedBinaryWriter) Pending() (chunk []byte, signal WriteSignal) {
	if m.pendIdx >= len(m.pending) {
		return nil, Complete
	}
	chunk = m.pending[m.pendIdx]
	m.pendIdx++
	signal = HasPending
	if m.pendIdx == len(m.pending) {
		m.pending = nil
		m.pendIdx = 0
		signal = Complete
	}
	return chunk, signal
}

func (m *ManagedBinaryWriter) finishSegment() (WriteSignal, error) {
	if !m.segmentStarted {
		return Complete, nil
	}
	if _, err := m.values.Write(Event{Type: StreamEnd}); err != nil {
		return NeedsInput, err
	}

	var out [][]byte
	out = append(out, []byte{0xE0, 0x01, 0x00, 0xEA})
	if len(m.symtab.Imports()) > 0 || len(m.newSyms) > 0 {
		lst, err := m.buildLST()
		if err != nil {
			return NeedsInput, err
		}
		out = append(out, lst...)
	}
	for {
		chunk, sig := m.values.Pending()
		if chunk != nil {
			out = append(out, chunk)
		}
		if sig != HasPending {
			break
		}
	}

	m.pending = append(m.pending, out...)
	m.beginNewSegment()
	if len(m.pending) == 0 {
		return Complete, nil
	}
	return HasPending, nil
}

func (m *ManagedBinaryWriter) beginNewSegment() {
	m.symtab.Reset()
	if m.imports != nil {
		m.symtab.SetImports(m.imports)
	}
	m.newSyms = m.newSyms[:0]
	m.segmentStarted = false
	m.values = NewBinaryWriter()
}

// resolve fills in a sid for a text-bearing token by looking it up (or
// interning it as a new local symbol) in the active table; a token
// that already carries only a sid passes through unchanged, trusting
// the caller to have assigned it correctly (e.g. against a shared
// import it resolved itself).
func (m *ManagedBinaryWriter) resolve(tok SymbolToken) (SymbolToken, error) {
	if !tok.HasText {
		return tok, nil
	}
	before := len(m.symtab.interned)
	sid := m.symtab.Intern(tok.Text)
	if len(m.symtab.interned) > before {
		m.newSyms = append(m.newSyms, tok.Text)
	}
	return SidToken(sid, nil), nil
}

func (m *ManagedBinaryWriter) resolveEvent(ev *Event) error {
	if ev.HasField {
		tok, err := m.resolve(ev.FieldName)
		if err != nil {
			return err
		}
		ev.FieldName = tok
	}
	for i := range ev.Annotations {
		tok, err := m.resolve(ev.Annotations[i])
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
		tok, err := m.resolve(sym)
		if err != nil {
			return err
		}
		ev.Value = NewValue(tok)
	}
	return nil
}

// buildLST encodes the segment's "$ion_symbol_table"-annotated struct
// by driving a scratch raw BinaryWriter with synthetic events, reusing
// the same encoder that handles user data.
func (m *ManagedBinaryWriter) buildLST() ([][]byte, error) {
	imports := m.symtab.Imports()

	steps := []Event{
		{Type: ContainerStart, Ion: StructType, Annotations: []SymbolToken{SidToken(symIonSymbolTable, nil)}},
	}
	if len(imports) > 0 {
		steps = append(steps, Event{Type: ContainerStart, Ion: ListType, HasField: true, FieldName: SidToken(symImports, nil)})
		for _, imp := range imports {
			steps = append(steps,
				Event{Type: ContainerStart, Ion: StructType},
				Event{Type: Scalar, Ion: StringType, HasField: true, FieldName: SidToken(symName, nil), Value: NewValue(imp.Name())},
				Event{Type: Scalar, Ion: IntType, HasField: true, FieldName: SidToken(symVersion, nil), Value: NewValue(big.NewInt(int64(imp.Version())))},
				Event{Type: Scalar, Ion: IntType, HasField: true, FieldName: SidToken(symMaxID, nil), Value: NewValue(big.NewInt(int64(imp.MaxID())))},
				Event{Type: ContainerEnd},
			)
		}
		steps = append(steps, Event{Type: ContainerEnd})
	}
	if len(m.newSyms) > 0 {
		steps = append(steps, Event{Type: ContainerStart, Ion: ListType, HasField: true, FieldName: SidToken(symSymbols, nil)})
		for _, s := range m.newSyms {
			steps = append(steps, Event{Type: Scalar, Ion: StringType, Value: NewValue(s)})
		}
		steps = append(steps, Event{Type: ContainerEnd})
	}
	steps = append(steps, Event{Type: ContainerEnd}, Event{Type: StreamEnd})

	sw := NewBinaryWriter()
	for _, ev := range steps {
		if _, err := sw.Write(ev); err != nil {
			return nil, err
		}
	}
	var out [][]byte
	for {
		chunk, sig := sw.Pending()
		if chunk != nil {
			out = append(out, chunk)
		}
		if sig != HasPending {
			break
		}
	}
	return out, nil
}
