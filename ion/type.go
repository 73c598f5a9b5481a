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

// Package ion implements a codec for the Amazon Ion data format: a
// binary reader and writer, a text reader and writer, and the
// symbol-table management that binds the two representations together.
package ion

import "fmt"

// Type is one of the thirteen Ion value types.
type Type byte

const (
	NullType Type = iota
	BoolType
	IntType
	FloatType
	DecimalType
	TimestampType
	SymbolType
	StringType
	ClobType
	BlobType
	ListType
	SexpType
	StructType

	// NoType is returned by a reader that is not
	// currently positioned on a value.
	NoType Type = 0xfe
	// InvalidType marks a value whose type tag could
	// not be determined.
	InvalidType Type = 0xff
)

func (t Type) String() string {
	switch t {
	case NullType:
		return "null"
	case BoolType:
		return "bool"
	case IntType:
		return "int"
	case FloatType:
		return "float"
	case DecimalType:
		return "decimal"
	case TimestampType:
		return "timestamp"
	case SymbolType:
		return "symbol"
	case StringType:
		return "string"
	case ClobType:
		return "clob"
	case BlobType:
		return "blob"
	case ListType:
		return "list"
	case SexpType:
		return "sexp"
	case StructType:
		return "struct"
	case NoType:
		return "<no type>"
	default:
		return fmt.Sprintf("<unknown type %#x>", byte(t))
	}
}

// Composite reports whether t is a container type
// (list, sexp, or struct).
func (t Type) Composite() bool {
	switch t {
	case ListType, SexpType, StructType:
		return true
	default:
		return false
	}
}

// binary type codes, distinct from Type: the wire encoding
// reserves codes for annotation wrappers (14) and a reserved
// code (15) that have no corresponding Type value.
type tcode byte

const (
	tcNull        tcode = 0
	tcBool        tcode = 1
	tcPosInt      tcode = 2
	tcNegInt      tcode = 3
	tcFloat       tcode = 4
	tcDecimal     tcode = 5
	tcTimestamp   tcode = 6
	tcSymbol      tcode = 7
	tcString      tcode = 8
	tcClob        tcode = 9
	tcBlob        tcode = 10
	tcList        tcode = 11
	tcSexp        tcode = 12
	tcStruct      tcode = 13
	tcAnnotation  tcode = 14
	tcReserved    tcode = 15
)

func (c tcode) ionType() Type {
	switch c {
	case tcNull:
		return NullType
	case tcBool:
		return BoolType
	case tcPosInt, tcNegInt:
		return IntType
	case tcFloat:
		return FloatType
	case tcDecimal:
		return DecimalType
	case tcTimestamp:
		return TimestampType
	case tcSymbol:
		return SymbolType
	case tcString:
		return StringType
	case tcClob:
		return ClobType
	case tcBlob:
		return BlobType
	case tcList:
		return ListType
	case tcSexp:
		return SexpType
	case tcStruct:
		return StructType
	default:
		return InvalidType
	}
}

// TypeError is returned when a value's concrete type does
// not match the type a caller expected.
type TypeError struct {
	Wanted, Found Type
	Func          string
}

func (e *TypeError) Error() string {
	if e.Func == "" {
		return fmt.Sprintf("found type %s, wanted type %s", e.Found, e.Wanted)
	}
	return fmt.Sprintf("ion.%s: found type %s, wanted type %s", e.Func, e.Found, e.Wanted)
}

func badType(got, want Type, fn string) error {
	return &TypeError{Wanted: want, Found: got, Func: fn}
}
