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

// WriteSignal tells a writer's driver what to do next.
type WriteSignal int

const (
	// NeedsInput means the writer accepted the last event and wants
	// another.
	NeedsInput WriteSignal = iota
	// HasPending means a chunk of encoded output is ready; the driver
	// should call Pending (possibly more than once) before sending
	// another event.
	HasPending
	// Complete means a full Ion stream boundary (STREAM_END) has been
	// reached and every byte of it has been drained.
	Complete
)

func (s WriteSignal) String() string {
	switch s {
	case NeedsInput:
		return "NEEDS_INPUT"
	case HasPending:
		return "HAS_PENDING"
	case Complete:
		return "COMPLETE"
	default:
		return "INVALID_SIGNAL"
	}
}

// writerFrame is one container open on a BinaryWriter's stack.
type writerFrame struct {
	tc        tcode
	annotated bool // this container was opened inside an annotation wrapper that must also be closed
}

// BinaryWriter is the raw event-driven binary encoder described in
// §4.6: it encodes events verbatim, treating every SymbolToken's Sid
// as already assigned (interning is ManagedBinaryWriter's job). It
// never reads its own output back, so unlike the readers it has no
// notion of INCOMPLETE; it buffers encoded bytes in a BufferTree until
// a container's total length is known, draining whatever is ready
// every time the open-container stack returns to depth 0.
type BinaryWriter struct {
	tree        *BufferTree
	stack       []writerFrame
	pending     [][]byte
	pendIdx     int
	streamEnded bool
}

// NewBinaryWriter returns a writer ready to accept its first event.
func NewBinaryWriter() *BinaryWriter {
	return &BinaryWriter{tree: NewBufferTree()}
}

// Write accepts one event and returns the driver's next action.
func (w *BinaryWriter) Write(ev Event) (WriteSignal, error) {
	w.streamEnded = false
	switch ev.Type {
	case Incomplete:
		return NeedsInput, usageErr("Write", "INCOMPLETE is not a valid writer input")
	case VersionMarker:
		w.tree.AddScalarValue([]byte{0xE0, 0x01, 0x00, 0xEA})
	case Scalar:
		if err := w.writeScalar(ev); err != nil {
			return NeedsInput, err
		}
	case ContainerStart:
		if err := w.writeContainerStart(ev); err != nil {
			return NeedsInput, err
		}
	case ContainerEnd:
		if err := w.writeContainerEnd(); err != nil {
			return NeedsInput, err
		}
	case StreamEnd:
		if len(w.stack) != 0 {
			return NeedsInput, usageErr("Write", "STREAM_END received with an open container")
		}
		w.streamEnded = true
	default:
		return NeedsInput, usageErr("Write", "unrecognized event type")
	}

	if w.tree.Depth() == 0 && w.tree.Len() > 0 {
		chunks, err := w.tree.Drain()
		if err != nil {
			return NeedsInput, err
		}
		w.pending = append(w.pending, chunks...)
	}
	return w.signal(), nil
}

func (w *BinaryWriter) signal() WriteSignal {
	if w.pendIdx < len(w.pending) {
		return HasPending
	}
	if w.streamEnded {
		return Complete
	}
	return NeedsInput
}

// Pending returns the next ready output chunk without requiring a
// further event, together with the writer's signal after it; chunk
// is nil if nothing is queued right now.
func (w *BinaryWriter) Pending() (chunk []byte, signal WriteSignal) {
	if w.pendIdx >= len(w.pending) {
		return nil, w.signal()
	}
	chunk = w.pending[w.pendIdx]
	w.pendIdx++
	if w.pendIdx == len(w.pending) {
		w.pending = nil
		w.pendIdx = 0
	}
	return chunk, w.signal()
}

// WriteNopPad emits n bytes of padding (tcode 0, L != 15) at the
// current position in the stream: a single NOP octet for n == 1, or a
// length-prefixed NOP spanning the remaining bytes otherwise. It is
// valid between any two values at the current nesting depth and is
// invisible to readers (§8 property 6).
func (w *BinaryWriter) WriteNopPad(n int) error {
	if n <= 0 {
		return usageErr("WriteNopPad", "n must be positive")
	}
	if n <= 14 {
		// a 1-byte header declaring L = n-1 directly, followed by n-1
		// zero-filled body bytes, totals exactly n bytes.
		body := make([]byte, n)
		body[0] = byte(tcNull)<<4 | byte(n-1)
		w.tree.AddScalarValue(body)
	} else {
		// the extended-length form's VarUInt field itself consumes
		// bytes out of n, so its own encoded size must be solved for.
		k := 1
		for {
			bodyLen := n - 1 - k
			if bodyLen >= 0 && uvsize(uint64(bodyLen)) == k {
				out := make([]byte, n)
				out[0] = byte(tcNull)<<4 | 0x0e
				putuv(out[1:1+k], uint64(bodyLen))
				w.tree.AddScalarValue(out)
				break
			}
			k++
		}
	}
	if w.tree.Depth() == 0 && w.tree.Len() > 0 {
		chunks, err := w.tree.Drain()
		if err != nil {
			return err
		}
		w.pending = append(w.pending, chunks...)
	}
	return nil
}

func (w *BinaryWriter) writeFieldName(ev Event) error {
	if !ev.HasField {
		return nil
	}
	if len(w.stack) == 0 || w.stack[len(w.stack)-1].tc != tcStruct {
		return usageErr("Write", "a field name was supplied outside a struct")
	}
	w.tree.AddScalarValue(encodeUvarint(uint64(ev.FieldName.Sid)))
	return nil
}

// openAnnotationWrapper opens a BufferTree container for the
// annotation-wrapper subfields if ev carries any annotations,
// returning whether it did so (so the caller knows to close it once
// the wrapped value is finished).
func (w *BinaryWriter) openAnnotationWrapper(ev Event) bool {
	if len(ev.Annotations) == 0 {
		return false
	}
	var sidBytes []byte
	for _, a := range ev.Annotations {
		sidBytes = append(sidBytes, encodeUvarint(uint64(a.Sid))...)
	}
	w.tree.StartContainer()
	w.tree.AddScalarValue(encodeUvarint(uint64(len(sidBytes))))
	w.tree.AddScalarValue(sidBytes)
	return true
}

func (w *BinaryWriter) closeAnnotationWrapper() error {
	header := makeLengthHeader(tcAnnotation, w.tree.Len())
	return w.tree.EndContainer(header)
}

func (w *BinaryWriter) writeScalar(ev Event) error {
	if err := w.writeFieldName(ev); err != nil {
		return err
	}
	wrapped := w.openAnnotationWrapper(ev)
	body, err := encodeScalar(ev)
	if err != nil {
		return err
	}
	w.tree.AddScalarValue(body)
	if wrapped {
		return w.closeAnnotationWrapper()
	}
	return nil
}

func (w *BinaryWriter) writeContainerStart(ev Event) error {
	if err := w.writeFieldName(ev); err != nil {
		return err
	}
	tc, err := containerTcode(ev.Ion)
	if err != nil {
		return err
	}
	wrapped := w.openAnnotationWrapper(ev)
	w.tree.StartContainer()
	w.stack = append(w.stack, writerFrame{tc: tc, annotated: wrapped})
	return nil
}

func (w *BinaryWriter) writeContainerEnd() error {
	if len(w.stack) == 0 {
		return usageErr("Write", "CONTAINER_END received with no open container")
	}
	frame := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]
	header := makeLengthHeader(frame.tc, w.tree.Len())
	if err := w.tree.EndContainer(header); err != nil {
		return err
	}
	if frame.annotated {
		return w.closeAnnotationWrapper()
	}
	return nil
}

func containerTcode(ion Type) (tcode, error) {
	switch ion {
	case ListType:
		return tcList, nil
	case SexpType:
		return tcSexp, nil
	case StructType:
		return tcStruct, nil
	default:
		return 0, usageErr("Write", "not a container ion type")
	}
}

func scalarTcode(ion Type) (tcode, error) {
	switch ion {
	case NullType:
		return tcNull, nil
	case BoolType:
		return tcBool, nil
	case IntType:
		return tcPosInt, nil
	case FloatType:
		return tcFloat, nil
	case DecimalType:
		return tcDecimal, nil
	case TimestampType:
		return tcTimestamp, nil
	case SymbolType:
		return tcSymbol, nil
	case StringType:
		return tcString, nil
	case ClobType:
		return tcClob, nil
	case BlobType:
		return tcBlob, nil
	default:
		return 0, usageErr("Write", "not a scalar ion type")
	}
}

// makeLengthHeader builds a type-descriptor octet (and, if needed, a
// trailing VarUInt) declaring a body of the given length, the inverse
// of peekHeader's length decoding.
func makeLengthHeader(tc tcode, length int) []byte {
	if length < 14 {
		return []byte{byte(tc)<<4 | byte(length)}
	}
	lenBytes := encodeUvarint(uint64(length))
	header := make([]byte, 1+len(lenBytes))
	header[0] = byte(tc)<<4 | 0x0e
	copy(header[1:], lenBytes)
	return header
}

// encodeScalar returns the complete header+body encoding of a scalar
// event's value, the inverse of decodeBody's scalar branches.
func encodeScalar(ev Event) ([]byte, error) {
	isNull, err := ev.Value.IsNull()
	if err != nil {
		return nil, err
	}
	if isNull {
		tc, err := scalarTcode(ev.Ion)
		if err != nil {
			return nil, err
		}
		return []byte{byte(tc)<<4 | 0x0f}, nil
	}

	switch ev.Ion {
	case BoolType:
		v, err := ev.Value.Bool()
		if err != nil {
			return nil, err
		}
		l := byte(0)
		if v {
			l = 1
		}
		return []byte{byte(tcBool)<<4 | l}, nil
	case IntType:
		mag, err := ev.Value.Int()
		if err != nil {
			return nil, err
		}
		tc := tcPosInt
		m := mag
		if mag.Sign() < 0 {
			tc = tcNegInt
			m = new(big.Int).Neg(mag)
		}
		return wrapLengthPrefixed(tc, encodeMagnitude(m)), nil
	case FloatType:
		f, err := ev.Value.Float()
		if err != nil {
			return nil, err
		}
		if f == 0 && !math.Signbit(f) {
			return []byte{byte(tcFloat) << 4}, nil
		}
		body := make([]byte, 8)
		binary.BigEndian.PutUint64(body, math.Float64bits(f))
		return wrapLengthPrefixed(tcFloat, body), nil
	case DecimalType:
		d, err := ev.Value.IonDecimal()
		if err != nil {
			return nil, err
		}
		return wrapLengthPrefixed(tcDecimal, encodeDecimalBody(d)), nil
	case TimestampType:
		ts, err := ev.Value.Timestamp()
		if err != nil {
			return nil, err
		}
		return wrapLengthPrefixed(tcTimestamp, encodeTimestampBody(ts)), nil
	case SymbolType:
		sym, err := ev.Value.Sym()
		if err != nil {
			return nil, err
		}
		return wrapLengthPrefixed(tcSymbol, encodeMagnitude(big.NewInt(int64(sym.Sid)))), nil
	case StringType:
		s, err := ev.Value.Str()
		if err != nil {
			return nil, err
		}
		return wrapLengthPrefixed(tcString, []byte(s)), nil
	case ClobType:
		b, err := ev.Value.Bytes()
		if err != nil {
			return nil, err
		}
		return wrapLengthPrefixed(tcClob, b), nil
	case BlobType:
		b, err := ev.Value.Bytes()
		if err != nil {
			return nil, err
		}
		return wrapLengthPrefixed(tcBlob, b), nil
	default:
		return nil, usageErr("Write", "not a scalar ion type")
	}
}

func wrapLengthPrefixed(tc tcode, body []byte) []byte {
	return append(makeLengthHeader(tc, len(body)), body...)
}

// encodeSignedMagnitude is the inverse of readIntSubfield: a
// sign-bit-carrying big-endian magnitude, growing by one leading zero
// byte when the natural encoding's top bit would otherwise collide
// with the sign bit.
func encodeSignedMagnitude(mag *big.Int, neg bool) []byte {
	raw := mag.Bytes()
	out := make([]byte, len(raw))
	copy(out, raw)
	if len(out) == 0 || out[0]&0x80 != 0 {
		out = append([]byte{0}, out...)
	}
	if neg {
		out[0] |= 0x80
	}
	return out
}

func encodeDecimalBody(d Decimal) []byte {
	if d.Exp == 0 && d.IsZero() && !d.Neg {
		return nil
	}
	body := encodeVarint(int64(d.Exp))
	if d.IsZero() {
		if d.Neg {
			body = append(body, 0x80)
		}
		return body
	}
	return append(body, encodeSignedMagnitude(&d.Coeff, d.Neg)...)
}

func encodeOffsetVarInt(offset *int) []byte {
	if offset == nil {
		return []byte{0xc0} // -00:00: sign bit set, zero magnitude
	}
	return encodeVarint(int64(*offset))
}

func encodeTimestampBody(ts Timestamp) []byte {
	body := encodeOffsetVarInt(ts.OffsetMinutes)
	body = append(body, encodeUvarint(uint64(ts.Year))...)
	if ts.Precision == YearPrecision {
		return body
	}
	body = append(body, encodeUvarint(uint64(ts.Month))...)
	if ts.Precision == MonthPrecision {
		return body
	}
	body = append(body, encodeUvarint(uint64(ts.Day))...)
	if ts.Precision == DayPrecision {
		return body
	}
	body = append(body, encodeUvarint(uint64(ts.Hour))...)
	body = append(body, encodeUvarint(uint64(ts.Minute))...)
	if ts.Precision == MinutePrecision {
		return body
	}
	body = append(body, encodeUvarint(uint64(ts.Second))...)
	if ts.FractionalSeconds == nil {
		return body
	}
	frac := ts.FractionalSeconds
	body = append(body, encodeVarint(int64(frac.Exp))...)
	return append(body, encodeSignedMagnitude(&frac.Coeff, frac.Neg)...)
}

func encodeVarint(v int64) []byte {
	dst := make([]byte, ivsize(v))
	putiv(dst, v)
	return dst
}

func encodeUvarint(v uint64) []byte {
	dst := make([]byte, uvsize(v))
	putuv(dst, v)
	return dst
}

func encodeMagnitude(mag *big.Int) []byte {
	dst := make([]byte, magsize(mag))
	putmag(dst, mag)
	return dst
}
