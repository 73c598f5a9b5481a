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
	"bytes"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// tfKind classifies the container (if any) a writerFrame tracks.
type tfKind int

const (
	tfTop tfKind = iota
	tfList
	tfSexp
	tfStruct
)

// writerTextFrame is one level of TextWriter's open-container stack:
// the implicit frame at index 0 (tfTop) represents the top-level
// value sequence, which has no delimiting brackets of its own.
type writerTextFrame struct {
	kind  tfKind
	first bool // true until the first child value has been written
}

// TextWriter is an event-driven producer of UTF-8 Ion text (§4.7). It
// is the raw counterpart of BinaryWriter: symbols are written exactly
// as the supplied SymbolToken dictates (literal text if present, a
// "$<sid>" reference otherwise), with no interning. Unlike the binary
// writer it never needs to defer output for length backpatching, so
// every event's text is ready to drain as soon as Write returns.
type TextWriter struct {
	// Pretty selects multi-line, indented output. The compact form
	// (the default) still separates top-level values with a newline,
	// since Ion text has no other top-level value separator.
	Pretty bool

	stack       []writerTextFrame
	out         bytes.Buffer
	streamEnded bool
}

// NewTextWriter returns a writer positioned at the start of a stream.
func NewTextWriter() *TextWriter {
	return &TextWriter{stack: []writerTextFrame{{kind: tfTop, first: true}}}
}

// Write accepts one event and returns the driver's next action.
func (w *TextWriter) Write(ev Event) (WriteSignal, error) {
	if ev.Type == Incomplete {
		return NeedsInput, usageErr("Write", "INCOMPLETE is not a valid writer input")
	}
	switch ev.Type {
	case VersionMarker:
		w.writeTopSeparator()
		w.out.WriteString("$ion_1_0")
	case Scalar:
		w.writePrefix(ev)
		if err := w.writeScalar(ev); err != nil {
			return NeedsInput, err
		}
	case ContainerStart:
		w.writePrefix(ev)
		w.openContainer(ev.Ion)
	case ContainerEnd:
		if len(w.stack) == 1 {
			return NeedsInput, usageErr("Write", "ContainerEnd received with no matching ContainerStart")
		}
		w.closeContainer()
	case StreamEnd:
		if len(w.stack) != 1 {
			return NeedsInput, usageErr("Write", "STREAM_END received with an open container")
		}
		w.streamEnded = true
	default:
		return NeedsInput, usageErr("Write", "unrecognized event type")
	}
	return w.signal(), nil
}

func (w *TextWriter) signal() WriteSignal {
	if w.out.Len() > 0 {
		return HasPending
	}
	if w.streamEnded {
		return Complete
	}
	return NeedsInput
}

// Pending returns the next ready output chunk without requiring a
// further event.
func (w *TextWriter) Pending() (chunk []byte, signal WriteSignal) {
	if w.out.Len() == 0 {
		if w.streamEnded {
			return nil, Complete
		}
		return nil, NeedsInput
	}
	chunk = append([]byte(nil), w.out.Bytes()...)
	w.out.Reset()
	if w.streamEnded {
		return chunk, Complete
	}
	return chunk, HasPending
}

// writeTopSeparator inserts the newline that separates successive
// top-level productions (a bare version marker is a top-level
// production with no frame of its own to route through writePrefix).
func (w *TextWriter) writeTopSeparator() {
	top := &w.stack[0]
	if !top.first {
		w.out.WriteByte('\n')
	}
	top.first = false
}

// writePrefix emits whatever separates ev's value from its
// predecessor at the current depth (comma, space, or newline),
// indentation when Pretty, the field name (inside a struct), and any
// annotations, leaving the cursor positioned to write the value text.
func (w *TextWriter) writePrefix(ev Event) {
	top := &w.stack[len(w.stack)-1]
	if !top.first {
		switch top.kind {
		case tfSexp:
			w.out.WriteByte(' ')
		case tfTop:
			w.out.WriteByte('\n')
		default:
			w.out.WriteByte(',')
		}
	}
	top.first = false
	if w.Pretty && top.kind != tfTop {
		w.out.WriteByte('\n')
		w.writeIndent(len(w.stack))
	}
	if top.kind == tfStruct && ev.HasField {
		w.writeSymbolToken(ev.FieldName)
		w.out.WriteByte(':')
		if w.Pretty {
			w.out.WriteByte(' ')
		}
	}
	for _, a := range ev.Annotations {
		w.writeSymbolToken(a)
		w.out.WriteString("::")
	}
}

func (w *TextWriter) writeIndent(depth int) {
	for i := 1; i < depth; i++ {
		w.out.WriteString("  ")
	}
}

func (w *TextWriter) openContainer(ion Type) {
	var kind tfKind
	switch ion {
	case ListType:
		kind = tfList
		w.out.WriteByte('[')
	case SexpType:
		kind = tfSexp
		w.out.WriteByte('(')
	case StructType:
		kind = tfStruct
		w.out.WriteByte('{')
	}
	w.stack = append(w.stack, writerTextFrame{kind: kind, first: true})
}

func (w *TextWriter) closeContainer() {
	f := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]
	if w.Pretty && !f.first {
		w.out.WriteByte('\n')
		w.writeIndent(len(w.stack))
	}
	switch f.kind {
	case tfList:
		w.out.WriteByte(']')
	case tfSexp:
		w.out.WriteByte(')')
	case tfStruct:
		w.out.WriteByte('}')
	}
}

// writeSymbolToken renders a field name, annotation, or symbol value:
// its literal text, quoted if it is not a bare identifier and is not
// one of the reserved keywords, or "$<sid>" if no text is known.
func (w *TextWriter) writeSymbolToken(tok SymbolToken) {
	if !tok.HasText {
		fmt.Fprintf(&w.out, "$%d", tok.Sid)
		return
	}
	if symbolNeedsQuoting(tok.Text) {
		w.writeQuotedSymbol(tok.Text)
	} else {
		w.out.WriteString(tok.Text)
	}
}

var reservedSymbolWords = map[string]bool{
	"true": true, "false": true, "null": true, "nan": true,
}

// symbolNeedsQuoting reports whether text cannot be written as a bare
// identifier symbol: it must match [A-Za-z$_][A-Za-z0-9$_]* and not be
// one of the keyword-shaped reserved words.
func symbolNeedsQuoting(text string) bool {
	if text == "" || reservedSymbolWords[text] {
		return true
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		ok := c == '_' || c == '$' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
		if i > 0 {
			ok = ok || isDigit(c)
		}
		if !ok {
			return true
		}
	}
	return false
}

func (w *TextWriter) writeQuotedSymbol(text string) {
	w.out.WriteByte('\'')
	w.writeEscapedRunes(text, '\'')
	w.out.WriteByte('\'')
}

func (w *TextWriter) writeScalar(ev Event) error {
	isNull, err := ev.Value.IsNull()
	if err != nil {
		return err
	}
	if isNull {
		w.out.WriteString(nullKeyword(ev.Ion))
		return nil
	}
	switch ev.Ion {
	case BoolType:
		v, err := ev.Value.Bool()
		if err != nil {
			return err
		}
		if v {
			w.out.WriteString("true")
		} else {
			w.out.WriteString("false")
		}
	case IntType:
		v, err := ev.Value.Int()
		if err != nil {
			return err
		}
		w.out.WriteString(v.String())
	case FloatType:
		v, err := ev.Value.Float()
		if err != nil {
			return err
		}
		w.out.WriteString(formatFloatText(v))
	case DecimalType:
		v, err := ev.Value.IonDecimal()
		if err != nil {
			return err
		}
		w.out.WriteString(formatDecimalText(v))
	case TimestampType:
		v, err := ev.Value.Timestamp()
		if err != nil {
			return err
		}
		w.out.Write(v.AppendRFC3339(nil))
	case SymbolType:
		v, err := ev.Value.Sym()
		if err != nil {
			return err
		}
		w.writeSymbolToken(v)
	case StringType:
		v, err := ev.Value.Str()
		if err != nil {
			return err
		}
		w.writeQuotedString(v)
	case ClobType:
		v, err := ev.Value.Bytes()
		if err != nil {
			return err
		}
		w.out.WriteString("{{")
		w.writeQuotedClobBytes(v)
		w.out.WriteString("}}")
	case BlobType:
		v, err := ev.Value.Bytes()
		if err != nil {
			return err
		}
		w.out.WriteString("{{")
		w.out.WriteString(base64.StdEncoding.EncodeToString(v))
		w.out.WriteString("}}")
	default:
		return usageErr("Write", "scalar event with unrecognized Ion type")
	}
	return nil
}

var typeNullKeyword = map[Type]string{
	NullType:      "null",
	BoolType:      "null.bool",
	IntType:       "null.int",
	FloatType:     "null.float",
	DecimalType:   "null.decimal",
	TimestampType: "null.timestamp",
	SymbolType:    "null.symbol",
	StringType:    "null.string",
	ClobType:      "null.clob",
	BlobType:      "null.blob",
	ListType:      "null.list",
	SexpType:      "null.sexp",
	StructType:    "null.struct",
}

func nullKeyword(ion Type) string {
	if s, ok := typeNullKeyword[ion]; ok {
		return s
	}
	return "null"
}

// formatFloatText renders a float the way Ion text requires: an
// exponent is always present, and the three special values use their
// keyword spellings rather than a numeric form.
func formatFloatText(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "+inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(v, 'e', -1, 64)
	// Go spells the exponent with a sign and at least two digits
	// ("e+05", "e-05", "e+00"); Ion text accepts that form as is.
	return s
}

// formatDecimalText renders d using a decimal point when its exponent
// is zero (so the literal is unambiguous with an integer) and the 'd'
// exponent form otherwise, preserving the exact coefficient digits
// (including significant trailing zeros).
func formatDecimalText(d Decimal) string {
	var b strings.Builder
	if d.Neg {
		b.WriteByte('-')
	}
	b.WriteString(d.Coeff.String())
	if d.Exp == 0 {
		b.WriteByte('.')
		return b.String()
	}
	b.WriteByte('d')
	if d.Exp > 0 {
		b.WriteByte('+')
	}
	b.WriteString(strconv.Itoa(d.Exp))
	return b.String()
}

// writeQuotedClobBytes writes a clob's raw octets as a double-quoted
// string, one byte at a time: clob content is not text, so a byte is
// never decoded as part of a UTF-8 sequence, and every octet above
// printable ASCII goes through \xHH rather than \uHHHH/\UHHHHHHHH,
// which are forbidden in clobs.
func (w *TextWriter) writeQuotedClobBytes(v []byte) {
	w.out.WriteByte('"')
	for _, c := range v {
		switch {
		case c == '"' || c == '\\':
			w.out.WriteByte('\\')
			w.out.WriteByte(c)
		case c == '\n':
			w.out.WriteString(`\n`)
		case c == '\t':
			w.out.WriteString(`\t`)
		case c == '\r':
			w.out.WriteString(`\r`)
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&w.out, `\x%02x`, c)
		default:
			w.out.WriteByte(c)
		}
	}
	w.out.WriteByte('"')
}

func (w *TextWriter) writeQuotedString(s string) {
	w.out.WriteByte('"')
	w.writeEscapedRunes(s, '"')
	w.out.WriteByte('"')
}

// writeEscapedRunes writes s with the minimal escaping Ion text
// requires inside a quote character quote: the quote itself and the
// backslash are backslash-escaped, newline, tab and carriage return
// use \n, \t and \r, the other C0 controls and DEL use \xHH, and every
// other rune (non-ASCII included) is written as raw UTF-8.
func (w *TextWriter) writeEscapedRunes(s string, quote byte) {
	for _, r := range s {
		switch {
		case r == rune(quote) || r == '\\':
			w.out.WriteByte('\\')
			w.out.WriteRune(r)
		case r == '\n':
			w.out.WriteString(`\n`)
		case r == '\t':
			w.out.WriteString(`\t`)
		case r == '\r':
			w.out.WriteString(`\r`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&w.out, `\x%02x`, r)
		case r < utf8.RuneSelf:
			w.out.WriteByte(byte(r))
		default:
			w.out.WriteRune(r)
		}
	}
}
