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

// textFrame is an open container on a TextReader's stack.
type textFrame struct {
	kind       tcode // tcList, tcSexp, or tcStruct
	sawElement bool  // at least one element already read
}

// TextReader turns a character queue into the Ion event stream
// described by the specification's raw text reader. Like
// BinaryReader, symbols are surfaced as bare SymbolTokens (sid-only
// for "$digits" syntax, text-only otherwise); resolving them against
// a symbol table is ManagedReader's job.
//
// A production (field name, annotations, and value; or a container
// delimiter) is only ever recognized once every token it needs is
// fully lexed and buffered; Next never partially consumes a
// production, so a later Data call simply retries. Once Next reports
// INCOMPLETE at the true end of queued input, a second bare call to
// Next performs a "flush": any value whose extent was only implied by
// whitespace/EOF (a bare number, keyword, or an already-closed quote)
// is completed and emitted, followed by STREAM_END. A later Data call
// begins an unrelated value in the same position, never extending the
// flushed one.
type TextReader struct {
	lx         textLexer
	stack      []textFrame
	toks       []token
	flushTried bool
	skipArmed  bool
}

// NewTextReader returns a reader positioned at the start of a stream.
func NewTextReader() *TextReader {
	return &TextReader{}
}

// Data appends b to the input and returns the next event, as Next would.
func (r *TextReader) Data(b []byte) (Event, error) {
	r.lx.extend(b)
	r.flushTried = false
	return r.Next()
}

// MarkEOF records that no further bytes will ever be appended.
func (r *TextReader) MarkEOF() { r.lx.markEOF() }

// Skip discards the remainder of the container most recently opened
// by a CONTAINER_START, without materializing its contents. It is a
// usage error to call Skip anywhere else.
func (r *TextReader) Skip() (done bool, err error) {
	if !r.skipArmed {
		return false, usageErr("Skip", "Skip is only valid immediately after CONTAINER_START")
	}
	r.skipArmed = false
	depth := len(r.stack)
	for len(r.stack) >= depth {
		ev, err := r.Next()
		if err != nil {
			return false, err
		}
		switch ev.Type {
		case Incomplete:
			return false, nil
		case StreamEnd:
			return false, ionErr(r.lx.position(), "stream ended while skipping a container")
		}
	}
	return true, nil
}

// ensure buffers tokens until at least n are available (r.toks[0:n]),
// or reports that more input is needed.
func (r *TextReader) ensure(n int, flush bool) (bool, error) {
	for len(r.toks) < n {
		tok, ok, err := r.lx.next(flush)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		r.toks = append(r.toks, tok)
	}
	return true, nil
}

func isContainerCloser(k tokenKind, containerKind tcode) bool {
	switch containerKind {
	case tcList:
		return k == tokRBracket
	case tcSexp:
		return k == tokRParen
	case tcStruct:
		return k == tokRBrace
	}
	return false
}

// Next produces the next event from already-queued input, performing
// a top-level flush on a call that immediately follows an INCOMPLETE
// result at the true end of queued input.
func (r *TextReader) Next() (Event, error) {
	r.skipArmed = false
	flush := r.flushTried

	needMore := func() (Event, error) {
		if flush {
			return Event{}, ionErr(r.lx.position(), "truncated input")
		}
		r.flushTried = true
		return Event{Type: Incomplete}, nil
	}

	if ok, err := r.ensure(1, flush); err != nil {
		return Event{}, err
	} else if !ok {
		return needMore()
	}
	r.flushTried = false

	idx := 0
	if n := len(r.stack); n > 0 {
		top := &r.stack[n-1]
		tok := r.toks[0]
		if isContainerCloser(tok.kind, top.kind) {
			r.toks = r.toks[1:]
			depth := n - 1
			r.stack = r.stack[:depth]
			return Event{Type: ContainerEnd, Depth: depth}, nil
		}
		if top.sawElement && top.kind != tcSexp {
			if tok.kind != tokComma {
				return Event{}, ionErr(r.lx.position(), "expected ',' between container elements")
			}
			idx = 1
			if ok, err := r.ensure(idx+1, flush); err != nil {
				return Event{}, err
			} else if !ok {
				return needMore()
			}
			if isContainerCloser(r.toks[idx].kind, top.kind) {
				return Event{}, ionErr(r.lx.position(), "trailing ',' before container close is not permitted")
			}
		}
	}

	tok := r.toks[idx]
	if tok.kind == tokEOF {
		if len(r.stack) != 0 {
			return Event{}, ionErr(r.lx.position(), "truncated input inside an open container")
		}
		r.toks = r.toks[idx+1:]
		return Event{Type: StreamEnd}, nil
	}

	depth := len(r.stack)
	inStruct := depth > 0 && r.stack[depth-1].kind == tcStruct

	var fieldName SymbolToken
	haveField := false
	if inStruct {
		if tok.kind != tokSymbol && tok.kind != tokString {
			return Event{}, ionErr(r.lx.position(), "expected field name in struct")
		}
		if tok.kind == tokSymbol {
			fieldName = tok.sym
		} else {
			fieldName = TextToken(tok.str)
		}
		haveField = true
		idx++
		if ok, err := r.ensure(idx+1, flush); err != nil {
			return Event{}, err
		} else if !ok {
			return needMore()
		}
		if r.toks[idx].kind != tokColon {
			return Event{}, ionErr(r.lx.position(), "expected ':' after field name")
		}
		idx++
		if ok, err := r.ensure(idx+1, flush); err != nil {
			return Event{}, err
		} else if !ok {
			return needMore()
		}
		tok = r.toks[idx]
	}

	var annots []SymbolToken
	for tok.kind == tokSymbol {
		if ok, err := r.ensure(idx+2, flush); err != nil {
			return Event{}, err
		} else if !ok {
			return needMore()
		}
		if r.toks[idx+1].kind != tokDoubleColon {
			break
		}
		annots = append(annots, tok.sym)
		idx += 2
		if ok, err := r.ensure(idx+1, flush); err != nil {
			return Event{}, err
		} else if !ok {
			return needMore()
		}
		tok = r.toks[idx]
	}

	ev, err := r.decodeValueToken(tok, depth)
	if err != nil {
		return Event{}, err
	}
	idx++
	r.toks = r.toks[idx:]
	ev.Annotations = annots
	if haveField {
		ev.FieldName = fieldName
		ev.HasField = true
	}
	if depth > 0 {
		r.stack[depth-1].sawElement = true
	}
	r.skipArmed = ev.Type == ContainerStart
	return *ev, nil
}

func (r *TextReader) decodeValueToken(tok token, depth int) (*Event, error) {
	switch tok.kind {
	case tokLBracket:
		r.stack = append(r.stack, textFrame{kind: tcList})
		return &Event{Type: ContainerStart, Ion: ListType, Depth: depth}, nil
	case tokLParen:
		r.stack = append(r.stack, textFrame{kind: tcSexp})
		return &Event{Type: ContainerStart, Ion: SexpType, Depth: depth}, nil
	case tokLBrace:
		r.stack = append(r.stack, textFrame{kind: tcStruct})
		return &Event{Type: ContainerStart, Ion: StructType, Depth: depth}, nil
	case tokSymbol:
		// A bare unannotated "$ion_1_0" symbol at the top level is a
		// version-marker NOP; ManagedReader special-cases it. The raw
		// reader has no version concept of its own and reports the
		// symbol like any other.
		return &Event{Type: Scalar, Ion: SymbolType, Value: NewValue(tok.sym), Depth: depth}, nil
	case tokString:
		return &Event{Type: Scalar, Ion: StringType, Value: NewValue(tok.str), Depth: depth}, nil
	case tokInt:
		return &Event{Type: Scalar, Ion: IntType, Value: NewValue(tok.i), Depth: depth}, nil
	case tokFloat:
		return &Event{Type: Scalar, Ion: FloatType, Value: NewValue(tok.f), Depth: depth}, nil
	case tokDecimal:
		return &Event{Type: Scalar, Ion: DecimalType, Value: NewValue(tok.dec), Depth: depth}, nil
	case tokTimestamp:
		return &Event{Type: Scalar, Ion: TimestampType, Value: NewValue(tok.ts), Depth: depth}, nil
	case tokBlob:
		return &Event{Type: Scalar, Ion: BlobType, Value: NewValue(tok.lob), Depth: depth}, nil
	case tokClob:
		return &Event{Type: Scalar, Ion: ClobType, Value: NewValue(tok.lob), Depth: depth}, nil
	case tokBool:
		return &Event{Type: Scalar, Ion: BoolType, Value: NewValue(tok.b), Depth: depth}, nil
	case tokNull:
		return &Event{Type: Scalar, Ion: NullType, Value: NewValue(nullValue{NullType}), Depth: depth}, nil
	case tokTypedNull:
		t := tok.nullType
		if t == NoType {
			t = NullType
		}
		return &Event{Type: Scalar, Ion: t, Value: NewValue(nullValue{t}), Depth: depth}, nil
	default:
		return nil, ionErr(r.lx.position(), "unexpected token where a value was expected")
	}
}
