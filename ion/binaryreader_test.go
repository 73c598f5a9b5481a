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

func TestBinaryReaderBoolAndNull(t *testing.T) {
	r := NewBinaryReader()
	r.MarkEOF()
	ev, err := r.Data([]byte{0x11, 0x0f}) // true, null.null
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != Scalar || ev.Ion != BoolType {
		t.Fatalf("got %+v", ev)
	}
	b, err := ev.Value.Bool()
	if err != nil || !b {
		t.Fatalf("bool value: %v %v", b, err)
	}
	ev, err = r.Next()
	if err != nil {
		t.Fatal(err)
	}
	isNull, err := ev.Value.IsNull()
	if err != nil || !isNull || ev.Ion != NullType {
		t.Fatalf("null value: %+v isNull=%v err=%v", ev, isNull, err)
	}
}

func TestBinaryReaderIncompleteThenData(t *testing.T) {
	r := NewBinaryReader()
	ev, err := r.Data([]byte{0x21}) // a one-byte positive int header, body pending
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != Incomplete {
		t.Fatalf("expected INCOMPLETE before the body arrives, got %+v", ev)
	}
	ev, err = r.Data([]byte{0x7b}) // body byte: 123
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != Scalar {
		t.Fatalf("got %+v", ev)
	}
	v, err := ev.Value.Int()
	if err != nil || v.Int64() != 123 {
		t.Fatalf("int value: %v %v", v, err)
	}
}

func TestBinaryReaderStreamEndAtTopLevel(t *testing.T) {
	r := NewBinaryReader()
	r.MarkEOF()
	ev, err := r.Data(nil)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != StreamEnd {
		t.Fatalf("expected STREAM_END on an empty stream, got %+v", ev)
	}
}

func TestBinaryReaderTruncatedContainerIsFatal(t *testing.T) {
	r := NewBinaryReader()
	r.MarkEOF()
	// a struct header declaring a 4-byte body but only 1 byte present
	if _, err := r.Data([]byte{0xd4, 0x8a}); err == nil {
		t.Fatal("expected a truncation error")
	}
}

func TestBinaryReaderSkipContainer(t *testing.T) {
	r := NewBinaryReader()
	r.MarkEOF()
	// list [true, true] followed by a top-level bool
	data := []byte{0xb2, 0x11, 0x11, 0x11}
	ev, err := r.Data(data)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != ContainerStart || ev.Ion != ListType {
		t.Fatalf("got %+v", ev)
	}
	done, err := r.Skip()
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatal("expected Skip to finish in one call with all bytes already queued")
	}
	ev, err = r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != Scalar || ev.Ion != BoolType {
		t.Fatalf("expected the trailing top-level bool after skipping the list, got %+v", ev)
	}
}

func TestBinaryReaderSkipOutsideContainerStartIsUsageError(t *testing.T) {
	r := NewBinaryReader()
	if _, err := r.Skip(); err == nil {
		t.Fatal("expected a usage error calling Skip with no open container")
	}
}

func TestBinaryReaderStructFieldNames(t *testing.T) {
	// {10: true} -- field sid 10, value true
	data := []byte{0xd2, 0x8a, 0x11}
	r := NewBinaryReader()
	r.MarkEOF()
	ev, err := r.Data(data)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != ContainerStart || ev.Ion != StructType {
		t.Fatalf("got %+v", ev)
	}
	ev, err = r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if !ev.HasField || ev.FieldName.Sid != 10 {
		t.Fatalf("expected field sid 10, got %+v", ev.FieldName)
	}
}

func TestBinaryReaderVersionMarker(t *testing.T) {
	r := NewBinaryReader()
	r.MarkEOF()
	ev, err := r.Data([]byte{0xE0, 0x01, 0x00, 0xEA})
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != VersionMarker {
		t.Fatalf("got %+v", ev)
	}
	ev, err = r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != StreamEnd {
		t.Fatalf("expected STREAM_END after a bare version marker, got %+v", ev)
	}
}
