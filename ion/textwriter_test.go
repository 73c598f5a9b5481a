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
	"math/big"
	"testing"
)

func drainText(t *testing.T, w *TextWriter, events []Event) string {
	t.Helper()
	var out []byte
	for _, ev := range events {
		sig, err := w.Write(ev)
		if err != nil {
			t.Fatalf("Write(%v): %v", ev.Type, err)
		}
		for sig == HasPending {
			var chunk []byte
			chunk, sig = w.Pending()
			out = append(out, chunk...)
		}
	}
	return string(out)
}

func TestTextWriterScalarsAndTopLevelSeparator(t *testing.T) {
	events := []Event{
		{Type: Scalar, Ion: IntType, Value: NewValue(big.NewInt(42))},
		{Type: Scalar, Ion: BoolType, Value: NewValue(false)},
		{Type: Scalar, Ion: StringType, Value: NewValue("hi")},
		{Type: StreamEnd},
	}
	w := NewTextWriter()
	got := drainText(t, w, events)
	want := "42\nfalse\n\"hi\""
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTextWriterStructWithFieldsAndAnnotations(t *testing.T) {
	events := []Event{
		{Type: ContainerStart, Ion: StructType},
		{Type: Scalar, Ion: IntType, HasField: true, FieldName: TextToken("a"), Value: NewValue(big.NewInt(1))},
		{Type: Scalar, Ion: IntType, HasField: true, FieldName: TextToken("weird name"),
			Annotations: []SymbolToken{TextToken("ann")}, Value: NewValue(big.NewInt(2))},
		{Type: ContainerEnd},
		{Type: StreamEnd},
	}
	w := NewTextWriter()
	got := drainText(t, w, events)
	want := `{a:1,'weird name':ann::2}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTextWriterSexpUsesSpaceSeparator(t *testing.T) {
	events := []Event{
		{Type: ContainerStart, Ion: SexpType},
		{Type: Scalar, Ion: SymbolType, Value: NewValue(TextToken("a"))},
		{Type: Scalar, Ion: SymbolType, Value: NewValue(TextToken("b"))},
		{Type: ContainerEnd},
		{Type: StreamEnd},
	}
	w := NewTextWriter()
	got := drainText(t, w, events)
	want := "(a b)"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTextWriterListNesting(t *testing.T) {
	events := []Event{
		{Type: ContainerStart, Ion: ListType},
		{Type: Scalar, Ion: IntType, Value: NewValue(big.NewInt(1))},
		{Type: ContainerStart, Ion: ListType},
		{Type: Scalar, Ion: IntType, Value: NewValue(big.NewInt(2))},
		{Type: ContainerEnd},
		{Type: ContainerEnd},
		{Type: StreamEnd},
	}
	w := NewTextWriter()
	got := drainText(t, w, events)
	want := "[1,[2]]"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTextWriterEmptyContainer(t *testing.T) {
	events := []Event{
		{Type: ContainerStart, Ion: StructType},
		{Type: ContainerEnd},
		{Type: StreamEnd},
	}
	w := NewTextWriter()
	got := drainText(t, w, events)
	if got != "{}" {
		t.Fatalf("got %q, want %q", got, "{}")
	}
}

func TestTextWriterStringEscaping(t *testing.T) {
	events := []Event{
		{Type: Scalar, Ion: StringType, Value: NewValue("a\tb\nc\"d\\e")},
		{Type: StreamEnd},
	}
	w := NewTextWriter()
	got := drainText(t, w, events)
	want := `"a\tb\nc\"d\\e"`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTextWriterSymbolSidOnly(t *testing.T) {
	events := []Event{
		{Type: Scalar, Ion: SymbolType, Value: NewValue(SidToken(11, nil))},
		{Type: StreamEnd},
	}
	w := NewTextWriter()
	got := drainText(t, w, events)
	if got != "$11" {
		t.Fatalf("got %q, want %q", got, "$11")
	}
}

func TestTextWriterFloatAndDecimal(t *testing.T) {
	events := []Event{
		{Type: Scalar, Ion: FloatType, Value: NewValue(1.5)},
		{Type: Scalar, Ion: DecimalType, Value: NewValue(NewDecimal(123, -2))},
		{Type: Scalar, Ion: DecimalType, Value: NewValue(NewDecimal(5, 0))},
		{Type: StreamEnd},
	}
	w := NewTextWriter()
	got := drainText(t, w, events)
	want := "1.5e+00\n123d-2\n5."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTextWriterTypedNull(t *testing.T) {
	events := []Event{
		{Type: Scalar, Ion: StructType, Value: NewValue(nullValue{Type: StructType})},
		{Type: StreamEnd},
	}
	w := NewTextWriter()
	got := drainText(t, w, events)
	if got != "null.struct" {
		t.Fatalf("got %q, want %q", got, "null.struct")
	}
}

func TestTextWriterRejectsUnbalancedContainerEnd(t *testing.T) {
	w := NewTextWriter()
	if _, err := w.Write(Event{Type: ContainerEnd}); err == nil {
		t.Fatal("expected an error ending a container that was never started")
	}
}

func TestTextWriterBlobUsesBase64(t *testing.T) {
	events := []Event{
		{Type: Scalar, Ion: BlobType, Value: NewValue([]byte{0x00, 0xff, 0x10})},
		{Type: StreamEnd},
	}
	w := NewTextWriter()
	got := drainText(t, w, events)
	if got != "{{AP8Q}}" {
		t.Fatalf("got %q, want %q", got, "{{AP8Q}}")
	}
}

func TestTextWriterClobEscapesNonASCIIBytewise(t *testing.T) {
	// 0xff is not valid UTF-8 on its own; a rune-wise encoder would
	// silently replace it with the 3-byte U+FFFD sequence instead of
	// escaping the original octet.
	events := []Event{
		{Type: Scalar, Ion: ClobType, Value: NewValue([]byte{'a', 0xff, '"', '\\', 0x09, 0x7f})},
		{Type: StreamEnd},
	}
	w := NewTextWriter()
	got := drainText(t, w, events)
	want := `{{"a\xff\"\\\t\x7f"}}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSymbolNeedsQuoting(t *testing.T) {
	cases := map[string]bool{
		"abc":       false,
		"_abc123":   false,
		"$foo":      false,
		"true":      true,
		"nan":       true,
		"":          true,
		"has space": true,
		"9leading":  true,
	}
	for in, want := range cases {
		if got := symbolNeedsQuoting(in); got != want {
			t.Errorf("symbolNeedsQuoting(%q) = %v, want %v", in, got, want)
		}
	}
}
