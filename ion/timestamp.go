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
	"fmt"
	"math/big"
	"time"
)

// Precision records which fields of a Timestamp were present in its
// source representation.
type Precision uint8

const (
	YearPrecision Precision = iota
	MonthPrecision
	DayPrecision
	MinutePrecision
	SecondPrecision
)

func (p Precision) String() string {
	switch p {
	case YearPrecision:
		return "year"
	case MonthPrecision:
		return "month"
	case DayPrecision:
		return "day"
	case MinutePrecision:
		return "minute"
	case SecondPrecision:
		return "second"
	default:
		return "unknown"
	}
}

// Timestamp is an Ion timestamp: a date-time with a declared
// precision, an optional UTC offset (nil means "unknown local
// offset", written -00:00), and optional fractional seconds carried
// as an arbitrary-precision Decimal whose exponent is <= 0.
//
// Timestamp intentionally does not embed time.Time: Ion timestamps
// can carry fractional-second precision far beyond a nanosecond (an
// exponent of, say, -12), and must round-trip the exact digit count
// written by the source (including trailing zeros), which a
// nanosecond int cannot represent.
type Timestamp struct {
	Year, Month, Day       int
	Hour, Minute, Second   int
	Precision              Precision
	OffsetMinutes          *int // nil = unknown local offset ("-00:00")
	FractionalSeconds      *Decimal
}

// UnknownOffset is the sentinel meaning "-00:00": an unknown local
// offset, distinct from a UTC (+00:00 / zero) offset.
var UnknownOffset *int = nil

// Equal implements data-model equality: all present fields and the
// precision must match (§3). Two timestamps with differing precision
// are never data-model-equal, even if they denote the same instant.
func (t Timestamp) Equal(o Timestamp) bool {
	if t.Precision != o.Precision {
		return false
	}
	if t.Year != o.Year {
		return false
	}
	if t.Precision == YearPrecision {
		return offsetsEqual(t.OffsetMinutes, o.OffsetMinutes) && fracEqual(t.FractionalSeconds, o.FractionalSeconds)
	}
	if t.Month != o.Month {
		return false
	}
	if t.Precision == MonthPrecision {
		return true
	}
	if t.Day != o.Day {
		return false
	}
	if t.Precision == DayPrecision {
		return true
	}
	if t.Hour != o.Hour || t.Minute != o.Minute {
		return false
	}
	if !offsetsEqual(t.OffsetMinutes, o.OffsetMinutes) {
		return false
	}
	if t.Precision == MinutePrecision {
		return true
	}
	if t.Second != o.Second {
		return false
	}
	return fracEqual(t.FractionalSeconds, o.FractionalSeconds)
}

func offsetsEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func fracEqual(a, b *Decimal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// UTC returns the instant this timestamp denotes as a stdlib
// time.Time, treating an unknown offset as UTC. Two timestamps that
// are Instant-equal (but not necessarily Equal) produce the same
// UTC() result apart from the monotonic/location metadata.
func (t Timestamp) UTC() time.Time {
	offset := 0
	if t.OffsetMinutes != nil {
		offset = *t.OffsetMinutes
	}
	nsec := 0
	if t.FractionalSeconds != nil {
		nsec = t.FractionalSeconds.nanoseconds()
	}
	loc := time.FixedZone("", offset*60)
	return time.Date(t.Year, time.Month(monthOrOne(t)), dayOrOne(t), t.Hour, t.Minute, t.Second, nsec, loc).UTC()
}

func monthOrOne(t Timestamp) int {
	if t.Precision < MonthPrecision {
		return 1
	}
	return t.Month
}

func dayOrOne(t Timestamp) int {
	if t.Precision < DayPrecision {
		return 1
	}
	return t.Day
}

// InstantEqual reports whether t and o denote the same UTC instant,
// regardless of precision or offset (§3, property 5 of §8).
func (t Timestamp) InstantEqual(o Timestamp) bool {
	return t.UTC().Equal(o.UTC())
}

// nanoseconds converts the fractional-seconds decimal to a
// nanosecond count, truncating precision beyond 1e-9.
func (d *Decimal) nanoseconds() int {
	// fraction = coeff * 10^exp seconds; convert to nanoseconds,
	// i.e. multiply by 10^9 and shift the exponent accordingly.
	ten := big.NewInt(10)
	mag := new(big.Int).Set(&d.Coeff)
	shift := d.Exp + 9
	if shift >= 0 {
		mag.Mul(mag, new(big.Int).Exp(ten, big.NewInt(int64(shift)), nil))
	} else {
		mag.Quo(mag, new(big.Int).Exp(ten, big.NewInt(int64(-shift)), nil))
	}
	n := mag.Int64()
	if d.Neg {
		n = -n
	}
	return int(n)
}

// AppendRFC3339 appends the RFC3339-style textual rendering of t
// (with the correct precision and fractional-second digit count) to
// dst, following the conventions of the text writer (§4.7).
func (t Timestamp) AppendRFC3339(dst []byte) []byte {
	dst = appendPadInt(dst, t.Year, 4)
	if t.Precision == YearPrecision {
		return append(dst, 'T')
	}
	dst = append(dst, '-')
	dst = appendPadInt(dst, t.Month, 2)
	if t.Precision == MonthPrecision {
		return append(dst, 'T')
	}
	dst = append(dst, '-')
	dst = appendPadInt(dst, t.Day, 2)
	if t.Precision == DayPrecision {
		return append(dst, 'T')
	}
	dst = append(dst, 'T')
	dst = appendPadInt(dst, t.Hour, 2)
	dst = append(dst, ':')
	dst = appendPadInt(dst, t.Minute, 2)
	if t.Precision >= SecondPrecision {
		dst = append(dst, ':')
		dst = appendPadInt(dst, t.Second, 2)
		if t.FractionalSeconds != nil {
			dst = append(dst, '.')
			digits := t.FractionalSeconds.Coeff.String()
			pad := -t.FractionalSeconds.Exp - len(digits)
			for i := 0; i < pad; i++ {
				dst = append(dst, '0')
			}
			dst = append(dst, digits...)
		}
	}
	if t.OffsetMinutes == nil {
		return append(dst, '-', '0', '0', ':', '0', '0')
	}
	off := *t.OffsetMinutes
	if off == 0 {
		return append(dst, 'Z')
	}
	sign := byte('+')
	if off < 0 {
		sign = '-'
		off = -off
	}
	dst = append(dst, sign)
	dst = appendPadInt(dst, off/60, 2)
	dst = append(dst, ':')
	return appendPadInt(dst, off%60, 2)
}

func (t Timestamp) String() string {
	return string(t.AppendRFC3339(nil))
}

func appendPadInt(dst []byte, v, width int) []byte {
	s := fmt.Sprintf("%0*d", width, v)
	return append(dst, s...)
}
