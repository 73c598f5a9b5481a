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

// EventType classifies an Event produced by a reader.
type EventType uint8

const (
	// VersionMarker reports an Ion version marker was read. Raw
	// readers surface it; the managed reader consumes and suppresses
	// it while resetting the active symbol table.
	VersionMarker EventType = iota
	// Scalar carries a single non-container value, possibly as an
	// unforced thunk.
	Scalar
	// ContainerStart opens a list, sexp, or struct; Depth is the depth
	// the container itself sits at (0 at top level), and its children
	// carry Depth one greater.
	ContainerStart
	// ContainerEnd closes the most recently opened container.
	ContainerEnd
	// StreamEnd reports a logical end of stream at depth 0: no value
	// is in progress and no further DATA is expected (or, for DATA
	// that does arrive, it begins an unrelated value).
	StreamEnd
	// Incomplete reports the reader needs a DATA event to proceed; it
	// is never valid input to a writer (§4.6).
	Incomplete
)

func (e EventType) String() string {
	switch e {
	case VersionMarker:
		return "VERSION_MARKER"
	case Scalar:
		return "SCALAR"
	case ContainerStart:
		return "CONTAINER_START"
	case ContainerEnd:
		return "CONTAINER_END"
	case StreamEnd:
		return "STREAM_END"
	case Incomplete:
		return "INCOMPLETE"
	default:
		return "INVALID_EVENT"
	}
}

// DriverType classifies the input a reader's driver loop feeds back
// into the parser between events.
type DriverType uint8

const (
	// Next requests the next event using only already-queued input.
	Next DriverType = iota
	// Skip is valid only immediately after a ContainerStart and
	// advances past the container's body without materializing it.
	Skip
	// Data appends more input bytes and then behaves like Next.
	Data
)

// Event is a single step of Ion's tagged event stream (§3 "Event").
type Event struct {
	Type        EventType
	Ion         Type // the Ion type of Value; zero value for non-Scalar/non-ContainerStart events
	Value       *Value
	FieldName   SymbolToken
	HasField    bool
	Annotations []SymbolToken
	Depth       int
}

// Value is the tagged-sum carrier for a decoded scalar or a realized
// container, matching the specification's IonValue sum type. It holds
// one decoded Go value whose kind is selected by the surrounding
// Event's Ion type; containers are represented by their child Events
// rather than inline here (the event stream IS the container's
// serialization).
//
// A Scalar Event's Value may be an unforced thunk: raw holds the
// captured source bytes and decode lazily materializes Bool/Int/...
// on first access, cached thereafter. Consumers should use the
// accessor methods (Bool, Int, ...) rather than reading fields
// directly so forcing happens transparently.
type Value struct {
	raw     []byte
	decode  func([]byte) (interface{}, error)
	forced  bool
	err     error
	decoded interface{}
}

// NewValue wraps an already-decoded value (no thunk involved).
func NewValue(v interface{}) *Value {
	return &Value{decoded: v, forced: true}
}

// NewThunk builds a deferred scalar: raw is the captured source bytes
// and decode lazily interprets them on first Force.
func NewThunk(raw []byte, decode func([]byte) (interface{}, error)) *Value {
	return &Value{raw: raw, decode: decode}
}

// Force decodes the value if it has not already been, caching the
// result (and any error) so repeated calls are free.
func (v *Value) Force() (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if !v.forced {
		v.decoded, v.err = v.decode(v.raw)
		v.forced = true
	}
	return v.decoded, v.err
}

func (v *Value) Bool() (bool, error)             { return as[bool](v) }
func (v *Value) Int() (*big.Int, error)           { return as[*big.Int](v) }
func (v *Value) Float() (float64, error)          { return as[float64](v) }
func (v *Value) IonDecimal() (Decimal, error)     { return as[Decimal](v) }
func (v *Value) Timestamp() (Timestamp, error)    { return as[Timestamp](v) }
func (v *Value) Sym() (SymbolToken, error)        { return as[SymbolToken](v) }
func (v *Value) Str() (string, error)             { return as[string](v) }
func (v *Value) Bytes() ([]byte, error)           { return as[[]byte](v) }
func (v *Value) IsNull() (bool, error) {
	val, err := v.Force()
	if err != nil {
		return false, err
	}
	_, isNull := val.(nullValue)
	return isNull, nil
}

// nullValue is the decoded value of a typed null scalar.
type nullValue struct{ Type Type }

func as[T any](v *Value) (T, error) {
	var zero T
	val, err := v.Force()
	if err != nil {
		return zero, err
	}
	t, ok := val.(T)
	if !ok {
		return zero, usageErr("Value", "value is not of the requested type")
	}
	return t, nil
}
