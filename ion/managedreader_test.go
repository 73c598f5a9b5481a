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

import "testing"

func readAllManaged(t *testing.T, m *ManagedReader, src string) []Event {
	t.Helper()
	m.MarkEOF()
	var evs []Event
	rest := []byte(src)
	for {
		ev, err := m.Data(rest)
		rest = nil
		if err != nil {
			t.Fatalf("reading %q: %v", src, err)
		}
		switch ev.Type {
		case StreamEnd:
			return evs
		case Incomplete:
			ev, err = m.Next()
			if err != nil {
				t.Fatalf("flushing %q: %v", src, err)
			}
			if ev.Type == StreamEnd {
				return evs
			}
			evs = append(evs, ev)
		default:
			evs = append(evs, ev)
		}
	}
}

func TestManagedReaderInterpretsLocalSymbolTable(t *testing.T) {
	m := NewManagedTextReader(nil)
	evs := readAllManaged(t, m, `$ion_symbol_table::{symbols:["foo","bar"]} $10 $11`)
	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2 (the LST struct must not be surfaced): %+v", len(evs), evs)
	}
	s0, err := evs[0].Value.Sym()
	if err != nil || !s0.HasText || s0.Text != "foo" {
		t.Fatalf("evs[0] = %+v, err=%v", s0, err)
	}
	s1, err := evs[1].Value.Sym()
	if err != nil || !s1.HasText || s1.Text != "bar" {
		t.Fatalf("evs[1] = %+v, err=%v", s1, err)
	}
}

func TestManagedReaderResolvesFieldNamesAndAnnotations(t *testing.T) {
	m := NewManagedTextReader(nil)
	evs := readAllManaged(t, m, `$ion_symbol_table::{symbols:["x","ann"]} {$10:$11::1}`)
	if len(evs) != 3 {
		t.Fatalf("got %d events: %+v", len(evs), evs)
	}
	field := evs[1]
	if !field.HasField || !field.FieldName.HasText || field.FieldName.Text != "x" {
		t.Fatalf("field name not resolved: %+v", field.FieldName)
	}
	if len(field.Annotations) != 1 || !field.Annotations[0].HasText || field.Annotations[0].Text != "ann" {
		t.Fatalf("annotation not resolved: %+v", field.Annotations)
	}
}

func TestManagedReaderVersionMarkerResetsSymtab(t *testing.T) {
	m := NewManagedTextReader(nil)
	evs := readAllManaged(t, m, `$ion_symbol_table::{symbols:["foo"]} $10 $ion_1_0 $10`)
	if len(evs) != 2 {
		t.Fatalf("got %d events: %+v", len(evs), evs)
	}
	s0, err := evs[0].Value.Sym()
	if err != nil || !s0.HasText || s0.Text != "foo" {
		t.Fatalf("evs[0] should resolve before the reset: %+v", s0)
	}
	s1, err := evs[1].Value.Sym()
	if err != nil || s1.HasText {
		t.Fatalf("evs[1] should be an unresolved sid-10 token after the version marker reset the table: %+v", s1)
	}
}

func TestManagedReaderAppendSelfExtendsTable(t *testing.T) {
	m := NewManagedTextReader(nil)
	src := `$ion_symbol_table::{symbols:["foo"]} ` +
		`$ion_symbol_table::{imports:$ion_symbol_table, symbols:["bar"]} $10 $11`
	evs := readAllManaged(t, m, src)
	if len(evs) != 2 {
		t.Fatalf("got %d events: %+v", len(evs), evs)
	}
	s0, err := evs[0].Value.Sym()
	if err != nil || s0.Text != "foo" {
		t.Fatalf("evs[0]: expected the earlier table's sid 10 ('foo') to survive an append-self LST, got %+v", s0)
	}
	s1, err := evs[1].Value.Sym()
	if err != nil || s1.Text != "bar" {
		t.Fatalf("evs[1]: expected the newly appended sid 11 ('bar'), got %+v", s1)
	}
}

func TestManagedReaderNonAppendLSTReplacesTable(t *testing.T) {
	m := NewManagedTextReader(nil)
	src := `$ion_symbol_table::{symbols:["foo"]} ` +
		`$ion_symbol_table::{symbols:["bar"]} $10`
	evs := readAllManaged(t, m, src)
	if len(evs) != 1 {
		t.Fatalf("got %d events: %+v", len(evs), evs)
	}
	s0, err := evs[0].Value.Sym()
	if err != nil || s0.Text != "bar" {
		t.Fatalf("evs[0]: expected sid 10 to be re-based to the fresh table's 'bar', got %+v", s0)
	}
}

func TestManagedReaderUnresolvedImportSymbolCarriesLocation(t *testing.T) {
	// "unregistered" is not in any catalog, so the declared max_id of 2
	// produces a placeholder import whose two symbols have no text;
	// resolving $10/$11 against it must still report where each sid
	// came from, per the shared-table location-equivalence rule.
	m := NewManagedTextReader(nil)
	src := `$ion_symbol_table::{imports:[{name:"unregistered", version:1, max_id:2}]} $10 $11`
	evs := readAllManaged(t, m, src)
	if len(evs) != 2 {
		t.Fatalf("got %d events: %+v", len(evs), evs)
	}
	s0, err := evs[0].Value.Sym()
	if err != nil {
		t.Fatal(err)
	}
	if s0.HasText {
		t.Fatalf("evs[0]: expected no text for an unresolved import symbol, got %+v", s0)
	}
	if s0.Location == nil || s0.Location.Name != "unregistered" || s0.Location.Sid != 1 {
		t.Fatalf("evs[0]: expected ImportLocation{unregistered, 1}, got %+v", s0.Location)
	}
	s1, err := evs[1].Value.Sym()
	if err != nil {
		t.Fatal(err)
	}
	if s1.Location == nil || s1.Location.Name != "unregistered" || s1.Location.Sid != 2 {
		t.Fatalf("evs[1]: expected ImportLocation{unregistered, 2}, got %+v", s1.Location)
	}
	if s0.Equal(s1) {
		t.Fatal("symbols at different positions within the same import must not be equal")
	}
}

func TestManagedReaderOutOfRangeSidIsFatal(t *testing.T) {
	m := NewManagedTextReader(nil)
	m.MarkEOF()
	if _, err := m.Data([]byte("$500")); err == nil {
		t.Fatal("expected an error resolving a symbol id beyond the active table's max id")
	}
}

func TestManagedReaderBinaryRoundTripThroughManagedWriter(t *testing.T) {
	w := NewManagedBinaryWriter()
	sig, err := w.Write(Event{Type: ContainerStart, Ion: StructType})
	if err != nil || sig != NeedsInput {
		t.Fatalf("open struct: %v %v", sig, err)
	}
	name := TextToken("greeting")
	sig, err = w.Write(Event{
		Type: Scalar, Ion: StringType,
		HasField: true, FieldName: name,
		Value: NewValue("hello"),
	})
	if err != nil || sig != NeedsInput {
		t.Fatalf("write field: %v %v", sig, err)
	}
	if sig, err = w.Write(Event{Type: ContainerEnd}); err != nil || sig != NeedsInput {
		t.Fatalf("close struct: %v %v", sig, err)
	}
	if sig, err = w.Write(Event{Type: StreamEnd}); err != nil {
		t.Fatalf("stream end: %v", err)
	}
	var out []byte
	for {
		chunk, psig := w.Pending()
		out = append(out, chunk...)
		if psig == Complete {
			break
		}
	}

	m := NewManagedBinaryReader(nil)
	m.MarkEOF()
	ev, err := m.Data(out)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != ContainerStart || ev.Ion != StructType {
		t.Fatalf("got %+v", ev)
	}
	ev, err = m.Next()
	if err != nil {
		t.Fatal(err)
	}
	if !ev.HasField || !ev.FieldName.HasText || ev.FieldName.Text != "greeting" {
		t.Fatalf("field name round trip: %+v", ev.FieldName)
	}
	s, err := ev.Value.Str()
	if err != nil || s != "hello" {
		t.Fatalf("value round trip: %q %v", s, err)
	}
}
