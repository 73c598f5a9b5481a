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
	"encoding/binary"
	"math"
	"math/big"
)

// binFrame is an open container on a BinaryReader's stack.
type binFrame struct {
	end      int // absolute byteQueue position where this container's body ends
	isStruct bool
}

// BinaryReader turns a byte queue into the Ion event stream described
// in the specification's raw binary reader (symbols are left as bare
// sids; resolving them against a symbol table is ManagedReader's job).
//
// A BinaryReader is driven one step at a time: Next requests the next
// event from whatever input is already queued, Data appends bytes and
// then behaves like Next, and Skip (valid only directly after a
// CONTAINER_START) discards a container's body without decoding it.
// Rather than a byte-by-byte resumable continuation, a value's header
// and body are only ever consumed once they are entirely buffered;
// until then Next reports INCOMPLETE and leaves the queue untouched,
// so a later Data call simply retries the same decode.
type BinaryReader struct {
	q         byteQueue
	stack     []binFrame
	skipArmed bool
}

// NewBinaryReader returns a reader positioned at the start of a stream.
func NewBinaryReader() *BinaryReader {
	return &BinaryReader{}
}

// Data appends b to the input and returns the next event, as Next would.
func (r *BinaryReader) Data(b []byte) (Event, error) {
	r.q.extend(b)
	return r.Next()
}

// MarkEOF records that no further bytes will ever be appended. After
// it, input that ends inside a value or an unfinished container is a
// truncation error rather than INCOMPLETE. An empty queue at depth 0
// reports STREAM_END whether or not MarkEOF was called.
func (r *BinaryReader) MarkEOF() { r.q.markEOF() }

// Skip discards the body of the container most recently opened by a
// CONTAINER_START, without materializing its contents, and consumes
// the container's end, so the following Next reports whatever comes
// after the container. It is a usage error to call Skip anywhere
// else. A container is only opened once its whole body is buffered,
// so Skip completes in one call.
func (r *BinaryReader) Skip() (done bool, err error) {
	if !r.skipArmed {
		return false, usageErr("Skip", "Skip is only valid immediately after CONTAINER_START")
	}
	r.skipArmed = false
	top := r.stack[len(r.stack)-1]
	need := top.end - r.q.position()
	r.q.skip(need)
	if r.q.position() != top.end {
		return false, nil
	}
	r.stack = r.stack[:len(r.stack)-1]
	return true, nil
}

// Next produces the next event from already-queued input.
func (r *BinaryReader) Next() (Event, error) {
	r.skipArmed = false
	for {
		if n := len(r.stack); n > 0 {
			top := &r.stack[n-1]
			pos := r.q.position()
			if pos == top.end {
				depth := n - 1
				r.stack = r.stack[:n-1]
				return Event{Type: ContainerEnd, Depth: depth}, nil
			}
			if pos > top.end {
				return Event{}, ionErr(pos, "value overruns the length of its enclosing container")
			}
		}

		if r.q.len() == 0 {
			if len(r.stack) == 0 {
				return Event{Type: StreamEnd}, nil
			}
			if !r.q.atEOF() {
				return Event{Type: Incomplete}, nil
			}
			return Event{}, ionErr(r.q.position(), "truncated input inside an open container")
		}

		inStruct := len(r.stack) > 0 && r.stack[len(r.stack)-1].isStruct

		var fieldSid Symbol
		haveField := false
		if inStruct {
			sid, n, ok := r.peekFieldSid()
			if !ok {
				return r.needMoreOrTruncated()
			}
			h, ok2, err := r.peekHeaderAt(n)
			if err != nil {
				return Event{}, err
			}
			if !ok2 {
				return r.needMoreOrTruncated()
			}
			if h.ivm {
				return Event{}, ionErr(r.q.position(), "version marker is not valid inside a struct")
			}
			total := n + h.hdrLen + h.bodyLen
			if r.q.len() < total {
				return r.needMoreOrTruncated()
			}
			if h.tc == tcNull && !h.isNull {
				if sid != 0 {
					return Event{}, ionErr(r.q.position(), "NOP padding in a struct field position must have field name sid 0")
				}
				r.q.skip(total)
				continue
			}
			fieldSid = Symbol(sid)
			haveField = true
			r.q.skip(n)
		}

		ev, needMore, err := r.decodeValue()
		if err != nil {
			return Event{}, err
		}
		if needMore {
			return r.needMoreOrTruncated()
		}
		if ev == nil {
			continue // NOP padding outside a struct field position
		}
		if haveField {
			ev.FieldName = SidToken(fieldSid, nil)
			ev.HasField = true
		}
		r.skipArmed = ev.Type == ContainerStart
		return *ev, nil
	}
}

func (r *BinaryReader) needMoreOrTruncated() (Event, error) {
	if r.q.eof {
		return Event{}, ionErr(r.q.position(), "truncated value")
	}
	return Event{Type: Incomplete}, nil
}

// peekFieldSid reads the VarUInt field-name sid at the current
// position without consuming it, returning the number of bytes it
// occupies.
func (r *BinaryReader) peekFieldSid() (sid uint64, n int, ok bool) {
	buf := r.q.peek(r.q.len())
	v, rest, ok := readuv(buf)
	if !ok {
		return 0, 0, false
	}
	return v, len(buf) - len(rest), true
}

// header is the decoded type-descriptor octet (plus any VarUInt
// extended length) of one Ion value.
type header struct {
	tc      tcode
	hdrLen  int
	bodyLen int
	isNull  bool
	ivm     bool
	// boolVal holds the literal bool value for tc==tcBool (its value
	// is encoded entirely in the length nibble; bodyLen is always 0).
	boolVal bool
}

// peekHeaderAt decodes the type-descriptor octet and any extended
// length located skip bytes past the current queue position.
func (r *BinaryReader) peekHeaderAt(skip int) (h header, ok bool, err error) {
	buf := r.q.peek(r.q.len())
	if skip > len(buf) {
		return header{}, false, nil
	}
	return decodeHeaderBytes(buf[skip:])
}

// peekHeader decodes the type-descriptor octet (and extended length)
// at the current queue position.
func (r *BinaryReader) peekHeader() (header, bool, error) {
	return r.peekHeaderAt(0)
}

// decodeHeaderBytes decodes a type-descriptor octet (and any VarUInt
// extended length) from the front of buf, without requiring the
// value's body to be present. ok is false only when buf is too short
// to contain the header/length itself (the IVM is a fixed 4 bytes).
func decodeHeaderBytes(buf []byte) (h header, ok bool, err error) {
	if len(buf) == 0 {
		return header{}, false, nil
	}
	b0 := buf[0]
	if b0 == 0xe0 {
		if len(buf) < 4 {
			return header{}, false, nil
		}
		if buf[1] != 0x01 || buf[2] != 0x00 || buf[3] != 0xea {
			return header{}, false, ionErr(0, "malformed Ion version marker")
		}
		return header{hdrLen: 4, ivm: true}, true, nil
	}
	tc := tcode(b0 >> 4)
	L := b0 & 0x0f
	if tc == tcReserved {
		return header{}, false, ionErr(0, "reserved type code 15")
	}
	if L == 0x0f {
		return header{tc: tc, hdrLen: 1, isNull: true}, true, nil
	}
	if tc == tcBool && L <= 1 {
		return header{tc: tc, hdrLen: 1, boolVal: L == 1}, true, nil
	}
	if L == 0x0e || (tc == tcStruct && L == 0x01) {
		if len(buf) < 2 {
			return header{}, false, nil
		}
		uv, rest, uok := readuv(buf[1:])
		if !uok {
			return header{}, false, nil
		}
		if tc == tcStruct && L == 0x01 && uv == 0 {
			return header{}, false, ionErr(0, "sorted struct (D1) must contain at least one field")
		}
		hdrLen := 1 + (len(buf[1:]) - len(rest))
		return header{tc: tc, hdrLen: hdrLen, bodyLen: int(uv)}, true, nil
	}
	return header{tc: tc, hdrLen: 1, bodyLen: int(L)}, true, nil
}

// decodeValue decodes the value at the current queue position
// (already past any struct field sid), pushing a container frame or
// consuming a scalar's body as appropriate. needMore indicates the
// header/body is not yet fully buffered.
func (r *BinaryReader) decodeValue() (ev *Event, needMore bool, err error) {
	h, ok, err := r.peekHeader()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, true, nil
	}
	total := h.hdrLen + h.bodyLen
	if r.q.len() < total {
		return nil, true, nil
	}
	if h.ivm {
		r.q.skip(4)
		return &Event{Type: VersionMarker}, false, nil
	}
	if h.tc == tcNull && !h.isNull {
		r.q.skip(total) // NOP padding, not a field: silently discarded
		return nil, false, nil
	}
	if h.tc == tcAnnotation {
		return r.decodeAnnotated(h.hdrLen, h.bodyLen)
	}
	if h.tc == tcNegInt && h.bodyLen == 0 && !h.isNull {
		return nil, false, ionErr(r.q.position(), "negative zero integer is illegal")
	}
	depth := len(r.stack)
	r.q.skip(h.hdrLen)
	return r.decodeBody(h, depth, nil)
}

// decodeAnnotated decodes an annotation wrapper (type code 14) whose
// header+body (already known to total hdrLen+bodyLen bytes, fully
// buffered) is at the current queue position, then decodes the single
// wrapped value it must contain.
func (r *BinaryReader) decodeAnnotated(hdrLen, bodyLen int) (*Event, bool, error) {
	whole := r.q.peek(hdrLen + bodyLen)
	body := whole[hdrLen:]
	annListLen, tail, ok := readuv(body)
	if !ok {
		return nil, false, ionErr(r.q.position(), "malformed annotation-wrapper length prefix")
	}
	prefixLen := len(body) - len(tail)
	if int(annListLen) > len(tail) {
		return nil, false, ionErr(r.q.position(), "annotation-wrapper annotation list overruns wrapper length")
	}
	annBuf := tail[:annListLen]
	valueBuf := tail[annListLen:]

	var annots []Symbol
	for len(annBuf) > 0 {
		sid, rest, ok := readuv(annBuf)
		if !ok {
			return nil, false, ionErr(r.q.position(), "malformed annotation sid")
		}
		annots = append(annots, Symbol(sid))
		annBuf = rest
	}
	if len(annots) == 0 {
		return nil, false, ionErr(r.q.position(), "annotation wrapper must declare at least one annotation")
	}

	vh, vok, err := decodeHeaderBytes(valueBuf)
	if err != nil {
		return nil, false, err
	}
	if !vok {
		return nil, false, ionErr(r.q.position(), "malformed annotated value header")
	}
	if vh.ivm {
		return nil, false, ionErr(r.q.position(), "a version marker cannot be annotated")
	}
	if vh.tc == tcAnnotation {
		return nil, false, ionErr(r.q.position(), "annotations on annotations are rejected")
	}
	if vh.hdrLen+vh.bodyLen != len(valueBuf) {
		return nil, false, ionErr(r.q.position(), "annotation wrapper length does not match its wrapped value")
	}
	if vh.tc == tcNegInt && vh.bodyLen == 0 && !vh.isNull {
		return nil, false, ionErr(r.q.position(), "negative zero integer is illegal")
	}

	depth := len(r.stack)
	r.q.skip(hdrLen + prefixLen + int(annListLen)) // wrapper header + length-prefix varuint + annotation sids
	r.q.skip(vh.hdrLen)
	ev, _, err := r.decodeBody(vh, depth, nil)
	if err != nil {
		return nil, false, err
	}
	ev.Annotations = make([]SymbolToken, len(annots))
	for i, a := range annots {
		ev.Annotations[i] = SidToken(a, nil)
	}
	return ev, false, nil
}

// decodeBody completes decoding of a value whose header has already
// been skipped from the queue (h.hdrLen bytes just prior to the
// current position), pushing a container frame or reading+decoding a
// scalar body as appropriate.
func (r *BinaryReader) decodeBody(h header, depth int, annots []SymbolToken) (*Event, bool, error) {
	ionType := h.tc.ionType()
	if h.tc == tcList || h.tc == tcSexp || h.tc == tcStruct {
		if h.isNull {
			return &Event{Type: Scalar, Ion: ionType, Value: NewValue(nullValue{ionType}), Depth: depth, Annotations: annots}, false, nil
		}
		end := r.q.position() + h.bodyLen
		r.stack = append(r.stack, binFrame{end: end, isStruct: h.tc == tcStruct})
		return &Event{Type: ContainerStart, Ion: ionType, Depth: depth, Annotations: annots}, false, nil
	}

	if h.tc == tcNull {
		return &Event{Type: Scalar, Ion: NullType, Value: NewValue(nullValue{NullType}), Depth: depth, Annotations: annots}, false, nil
	}

	if h.tc == tcBool {
		return &Event{Type: Scalar, Ion: BoolType, Value: NewValue(h.boolVal), Depth: depth, Annotations: annots}, false, nil
	}

	if h.isNull {
		return &Event{Type: Scalar, Ion: ionType, Value: NewValue(nullValue{ionType}), Depth: depth, Annotations: annots}, false, nil
	}

	raw := append([]byte(nil), r.q.read(h.bodyLen)...)
	var dec func([]byte) (interface{}, error)
	switch h.tc {
	case tcPosInt:
		dec = func(b []byte) (interface{}, error) { return decodeIntBody(b, false) }
	case tcNegInt:
		dec = func(b []byte) (interface{}, error) { return decodeIntBody(b, true) }
	case tcFloat:
		dec = decodeFloatBody
	case tcDecimal:
		dec = decodeDecimalBody
	case tcTimestamp:
		dec = decodeTimestampBody
	case tcSymbol:
		dec = decodeSymbolBody
	case tcString:
		dec = decodeStringBody
	case tcClob, tcBlob:
		dec = decodeLobBody
	default:
		return nil, false, ionErr(r.q.position(), "unsupported binary type code")
	}
	return &Event{Type: Scalar, Ion: ionType, Value: NewThunk(raw, dec), Depth: depth, Annotations: annots}, false, nil
}

func decodeIntBody(body []byte, neg bool) (interface{}, error) {
	mag := readmag(body)
	if neg {
		mag.Neg(mag)
	}
	return mag, nil
}

func decodeFloatBody(body []byte) (interface{}, error) {
	switch len(body) {
	case 0:
		return float64(0), nil
	case 4:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(body))), nil
	case 8:
		return math.Float64frombits(binary.BigEndian.Uint64(body)), nil
	default:
		return nil, ionErr(-1, "float value must be 0, 4, or 8 octets, got %d", len(body))
	}
}

func decodeDecimalBody(body []byte) (interface{}, error) {
	if len(body) == 0 {
		return NewDecimal(0, 0), nil
	}
	exp, rest, ok := readiv(body)
	if !ok {
		return nil, ionErr(-1, "malformed decimal exponent")
	}
	mag, neg := readIntSubfield(rest)
	d := Decimal{Coeff: *mag, Neg: neg, Exp: int(exp)}
	return d, nil
}

// readIntSubfield decodes an Ion "Int" subfield: a signed-magnitude
// big-endian integer whose first octet's high bit carries the sign.
// An empty body means the value (and sign) is absent (+0).
func readIntSubfield(body []byte) (*big.Int, bool) {
	if len(body) == 0 {
		return new(big.Int), false
	}
	neg := body[0]&0x80 != 0
	tmp := append([]byte(nil), body...)
	tmp[0] &^= 0x80
	return new(big.Int).SetBytes(tmp), neg
}

func decodeTimestampBody(body []byte) (interface{}, error) {
	offRaw, rest, ok := readivRaw(body)
	if !ok {
		return nil, ionErr(-1, "malformed timestamp offset")
	}
	var offset *int
	if !(offRaw.neg && offRaw.mag == 0) {
		v := int(offRaw.signedValue())
		offset = &v
	}
	year, rest, ok := readuv(rest)
	if !ok {
		return nil, ionErr(-1, "malformed timestamp year")
	}
	ts := Timestamp{Year: int(year), Month: 1, Day: 1, Precision: YearPrecision, OffsetMinutes: offset}
	if len(rest) == 0 {
		return ts, nil
	}
	month, rest, ok := readuv(rest)
	if !ok {
		return nil, ionErr(-1, "malformed timestamp month")
	}
	ts.Month = int(month)
	ts.Precision = MonthPrecision
	if len(rest) == 0 {
		return ts, nil
	}
	day, rest, ok := readuv(rest)
	if !ok {
		return nil, ionErr(-1, "malformed timestamp day")
	}
	ts.Day = int(day)
	ts.Precision = DayPrecision
	if len(rest) == 0 {
		return ts, nil
	}
	hour, rest, ok := readuv(rest)
	if !ok {
		return nil, ionErr(-1, "malformed timestamp hour")
	}
	minute, rest, ok := readuv(rest)
	if !ok {
		return nil, ionErr(-1, "malformed timestamp minute")
	}
	ts.Hour, ts.Minute = int(hour), int(minute)
	ts.Precision = MinutePrecision
	if len(rest) == 0 {
		return ts, nil
	}
	second, rest, ok := readuv(rest)
	if !ok {
		return nil, ionErr(-1, "malformed timestamp second")
	}
	ts.Second = int(second)
	ts.Precision = SecondPrecision
	if len(rest) == 0 {
		return ts, nil
	}
	fexp, rest, ok := readiv(rest)
	if !ok {
		return nil, ionErr(-1, "malformed timestamp fractional-second exponent")
	}
	fmag, fneg := readIntSubfield(rest)
	frac := Decimal{Coeff: *fmag, Neg: fneg, Exp: int(fexp)}
	ts.FractionalSeconds = &frac
	return ts, nil
}

type rawVarInt struct {
	mag uint64
	neg bool
}

func (r rawVarInt) signedValue() int64 {
	if r.neg {
		return -int64(r.mag)
	}
	return int64(r.mag)
}

// readivRaw decodes a VarInt without collapsing a negative-zero
// magnitude to positive zero, so callers needing that distinction
// (timestamp offsets) can recover it.
func readivRaw(msg []byte) (v rawVarInt, rest []byte, ok bool) {
	if len(msg) == 0 {
		return rawVarInt{}, nil, false
	}
	out := uint64(msg[0] & 0x3f)
	neg := msg[0]&0x40 != 0
	if msg[0]&0x80 != 0 {
		return rawVarInt{mag: out, neg: neg}, msg[1:], true
	}
	rest = msg[1:]
	for i := range rest {
		out = out<<7 | uint64(rest[i]&0x7f)
		if rest[i]&0x80 != 0 {
			return rawVarInt{mag: out, neg: neg}, rest[i+1:], true
		}
	}
	return rawVarInt{}, nil, false
}

func decodeSymbolBody(body []byte) (interface{}, error) {
	if len(body) > 8 {
		return nil, ionErr(-1, "symbol id of %d octets out of range", len(body))
	}
	mag := readmag(body)
	return SidToken(Symbol(mag.Uint64()), nil), nil
}

func decodeStringBody(body []byte) (interface{}, error) {
	return string(body), nil
}

func decodeLobBody(body []byte) (interface{}, error) {
	return append([]byte(nil), body...), nil
}
