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

func TestTimestampAppendRFC3339Precisions(t *testing.T) {
	offset := 0
	cases := []struct {
		ts   Timestamp
		want string
	}{
		{Timestamp{Year: 2022, Precision: YearPrecision}, "2022T"},
		{Timestamp{Year: 2022, Month: 6, Precision: MonthPrecision}, "2022-06T"},
		{Timestamp{Year: 2022, Month: 6, Day: 1, Precision: DayPrecision}, "2022-06-01T"},
		{
			Timestamp{Year: 2022, Month: 6, Day: 1, Hour: 12, Minute: 30, Precision: MinutePrecision, OffsetMinutes: &offset},
			"2022-06-01T12:30Z",
		},
		{
			Timestamp{Year: 2022, Month: 6, Day: 1, Hour: 12, Minute: 30, Second: 15, Precision: SecondPrecision, OffsetMinutes: &offset},
			"2022-06-01T12:30:15Z",
		},
	}
	for _, c := range cases {
		if got := c.ts.String(); got != c.want {
			t.Fatalf("String() = %q, want %q", got, c.want)
		}
	}
}

func TestTimestampUnknownOffsetRendersDash0000(t *testing.T) {
	ts := Timestamp{Year: 2022, Month: 1, Day: 1, Hour: 0, Minute: 0, Precision: MinutePrecision, OffsetMinutes: UnknownOffset}
	if got, want := ts.String(), "2022-01-01T00:00-00:00"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestTimestampNegativeOffset(t *testing.T) {
	off := -330 // -05:30
	ts := Timestamp{Year: 2022, Month: 1, Day: 1, Hour: 10, Minute: 0, Precision: MinutePrecision, OffsetMinutes: &off}
	if got, want := ts.String(), "2022-01-01T10:00-05:30"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestTimestampFractionalSecondsPreservesDigits(t *testing.T) {
	offset := 0
	frac := NewDecimal(500, -3) // .500, three digits, including a trailing zero
	ts := Timestamp{
		Year: 2022, Month: 1, Day: 1, Hour: 0, Minute: 0, Second: 0,
		Precision: SecondPrecision, OffsetMinutes: &offset, FractionalSeconds: &frac,
	}
	if got, want := ts.String(), "2022-01-01T00:00:00.500Z"; got != want {
		t.Fatalf("String() = %q, want %q (trailing zero must survive)", got, want)
	}
}

func TestTimestampEqualRequiresSamePrecision(t *testing.T) {
	offset := 0
	a := Timestamp{Year: 2022, Month: 1, Day: 1, Precision: DayPrecision}
	b := Timestamp{Year: 2022, Month: 1, Day: 1, Hour: 0, Minute: 0, Precision: MinutePrecision, OffsetMinutes: &offset}
	if a.Equal(b) {
		t.Fatal("differing precision must not compare Equal")
	}
}

func TestTimestampInstantEqualIgnoresOffsetRepresentation(t *testing.T) {
	utc := 0
	plusOne := 60
	a := Timestamp{Year: 2022, Month: 1, Day: 1, Hour: 12, Minute: 0, Precision: MinutePrecision, OffsetMinutes: &utc}
	b := Timestamp{Year: 2022, Month: 1, Day: 1, Hour: 13, Minute: 0, Precision: MinutePrecision, OffsetMinutes: &plusOne}
	if !a.InstantEqual(b) {
		t.Fatal("12:00Z and 13:00+01:00 denote the same instant")
	}
	if a.Equal(b) {
		t.Fatal("differing offsets must not compare data-model Equal even if InstantEqual")
	}
}
