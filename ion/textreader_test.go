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

func readAllTextEvents(t *testing.T, src string) []Event {
	t.Helper()
	r := NewTextReader()
	r.MarkEOF()
	var evs []Event
	rest := []byte(src)
	for {
		ev, err := r.Data(rest)
		rest = nil
		if err != nil {
			t.Fatalf("reading %q: %v", src, err)
		}
		if ev.Type == StreamEnd {
			return evs
		}
		if ev.Type == Incomplete {
			// a second bare Next performs the top-level flush
			ev, err = r.Next()
			if err != nil {
				t.Fatalf("flushing %q: %v", src, err)
			}
			if ev.Type == StreamEnd {
				return evs
			}
		}
		evs = append(evs, ev)
	}
}

func TestTextReaderTopLevelScalars(t *testing.T) {
	evs := readAllTextEvents(t, "1 true \"hi\"")
	if len(evs) != 3 {
		t.Fatalf("got %d events: %+v", len(evs), evs)
	}
	v, err := evs[0].Value.Int()
	if err != nil || v.Int64() != 1 {
		t.Fatalf("evs[0]: %v %v", v, err)
	}
	b, err := evs[1].Value.Bool()
	if err != nil || !b {
		t.Fatalf("evs[1]: %v %v", b, err)
	}
	s, err := evs[2].Value.Str()
	if err != nil || s != "hi" {
		t.Fatalf("evs[2]: %q %v", s, err)
	}
}

func TestTextReaderStructWithFieldsAndAnnotations(t *testing.T) {
	evs := readAllTextEvents(t, `{a:1, 'b c':ann::2}`)
	if len(evs) != 4 {
		t.Fatalf("got %d events: %+v", len(evs), evs)
	}
	if evs[0].Type != ContainerStart || evs[0].Ion != StructType {
		t.Fatalf("evs[0] = %+v", evs[0])
	}
	f1 := evs[1]
	if !f1.HasField || !f1.FieldName.HasText || f1.FieldName.Text != "a" {
		t.Fatalf("evs[1] field: %+v", f1.FieldName)
	}
	f2 := evs[2]
	if !f2.HasField || f2.FieldName.Text != "b c" {
		t.Fatalf("evs[2] field: %+v", f2.FieldName)
	}
	if len(f2.Annotations) != 1 || f2.Annotations[0].Text != "ann" {
		t.Fatalf("evs[2] annotations: %+v", f2.Annotations)
	}
}

func TestTextReaderListAndNesting(t *testing.T) {
	evs := readAllTextEvents(t, "[1, [2, 3]]")
	if len(evs) != 7 {
		t.Fatalf("got %d events, want 7 (outer start, 1, inner start, 2, 3, inner end, outer end): %+v", len(evs), evs)
	}
	if evs[0].Type != ContainerStart || evs[0].Depth != 0 {
		t.Fatalf("evs[0] = %+v", evs[0])
	}
	if evs[2].Type != ContainerStart || evs[2].Depth != 1 {
		t.Fatalf("evs[2] = %+v", evs[2])
	}
}

func TestTextReaderSexpNoCommaNeeded(t *testing.T) {
	evs := readAllTextEvents(t, "(a b)")
	if len(evs) != 4 {
		t.Fatalf("got %d events: %+v", len(evs), evs)
	}
	sym0, err := evs[1].Value.Sym()
	if err != nil || sym0.Text != "a" {
		t.Fatalf("evs[1]: %+v %v", sym0, err)
	}
}

func TestTextReaderSidOnlySymbol(t *testing.T) {
	evs := readAllTextEvents(t, "$11")
	if len(evs) != 1 {
		t.Fatalf("got %d events: %+v", len(evs), evs)
	}
	sym, err := evs[0].Value.Sym()
	if err != nil || sym.HasText || sym.Sid != 11 {
		t.Fatalf("evs[0]: %+v %v", sym, err)
	}
}

func TestTextReaderTypedNull(t *testing.T) {
	evs := readAllTextEvents(t, "null.struct")
	if len(evs) != 1 {
		t.Fatalf("got %d events: %+v", len(evs), evs)
	}
	isNull, err := evs[0].Value.IsNull()
	if err != nil || !isNull || evs[0].Ion != StructType {
		t.Fatalf("evs[0]: %+v isNull=%v err=%v", evs[0], isNull, err)
	}
}

func TestTextReaderSkipContainer(t *testing.T) {
	r := NewTextReader()
	r.MarkEOF()
	ev, err := r.Data([]byte("[1, 2, 3] true"))
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != ContainerStart {
		t.Fatalf("got %+v", ev)
	}
	done, err := r.Skip()
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatal("expected Skip to finish with all bytes already queued")
	}
	ev, err = r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != Scalar || ev.Ion != BoolType {
		t.Fatalf("expected the trailing top-level bool after skipping the list, got %+v", ev)
	}
}

func TestTextReaderSkipOutsideContainerStartIsUsageError(t *testing.T) {
	r := NewTextReader()
	if _, err := r.Skip(); err == nil {
		t.Fatal("expected a usage error calling Skip with no open container")
	}
}

func TestTextReaderMissingCommaIsFatal(t *testing.T) {
	r := NewTextReader()
	r.MarkEOF()
	// Data reports only the list's start; the error comes when the
	// reader reaches the second element.
	ev, err := r.Data([]byte("[1 2]"))
	for i := 0; err == nil && ev.Type != StreamEnd && i < 8; i++ {
		ev, err = r.Next()
	}
	if err == nil {
		t.Fatal("expected an error for a missing ',' between list elements")
	}
}
