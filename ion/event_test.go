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

func TestValueNewValueIsAlreadyForced(t *testing.T) {
	v := NewValue(true)
	b, err := v.Bool()
	if err != nil || !b {
		t.Fatalf("Bool() = %v, %v", b, err)
	}
}

func TestValueThunkDecodesOnceAndCaches(t *testing.T) {
	calls := 0
	v := NewThunk([]byte{1, 2, 3}, func(raw []byte) (interface{}, error) {
		calls++
		return len(raw), nil
	})
	n1, err := as[int](v)
	if err != nil || n1 != 3 {
		t.Fatalf("first force: %v %v", n1, err)
	}
	n2, err := as[int](v)
	if err != nil || n2 != 3 {
		t.Fatalf("second force: %v %v", n2, err)
	}
	if calls != 1 {
		t.Fatalf("decode called %d times, want 1 (result should be cached)", calls)
	}
}

func TestValueThunkDecodeErrorIsCached(t *testing.T) {
	calls := 0
	v := NewThunk(nil, func(raw []byte) (interface{}, error) {
		calls++
		return nil, usageErr("test", "boom")
	})
	if _, err := v.Bool(); err == nil {
		t.Fatal("expected an error from the decode function")
	}
	if _, err := v.Bool(); err == nil {
		t.Fatal("expected the cached error on a second call")
	}
	if calls != 1 {
		t.Fatalf("decode called %d times, want 1", calls)
	}
}

func TestValueWrongAccessorIsUsageError(t *testing.T) {
	v := NewValue(int64(5))
	if _, err := v.Str(); err == nil {
		t.Fatal("expected an error requesting Str() on an int-decoded value")
	}
}

func TestValueIsNull(t *testing.T) {
	v := NewValue(nullValue{Type: StructType})
	isNull, err := v.IsNull()
	if err != nil || !isNull {
		t.Fatalf("IsNull() = %v, %v", isNull, err)
	}
	nonNull := NewValue(int64(1))
	isNull, err = nonNull.IsNull()
	if err != nil || isNull {
		t.Fatalf("IsNull() on a non-null value = %v, %v", isNull, err)
	}
}

func TestEventTypeString(t *testing.T) {
	cases := map[EventType]string{
		VersionMarker:  "VERSION_MARKER",
		Scalar:         "SCALAR",
		ContainerStart: "CONTAINER_START",
		ContainerEnd:   "CONTAINER_END",
		StreamEnd:      "STREAM_END",
		Incomplete:     "INCOMPLETE",
	}
	for ev, want := range cases {
		if got := ev.String(); got != want {
			t.Fatalf("%d.String() = %q, want %q", ev, got, want)
		}
	}
}
