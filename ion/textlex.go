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
	"encoding/base64"
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"
)

// tokenKind classifies one lexical token of the text format.
type tokenKind int

const (
	tokIncomplete tokenKind = iota
	tokEOF
	tokLBracket
	tokRBracket
	tokLParen
	tokRParen
	tokLBrace
	tokRBrace
	tokComma
	tokColon
	tokDoubleColon
	tokSymbol // identifier, quoted symbol, operator run, or $<digits>
	tokString
	tokInt
	tokFloat
	tokDecimal
	tokTimestamp
	tokBlob
	tokClob
	tokBool
	tokNull     // bare "null" keyword, equivalent to null.null
	tokTypedNull
)

// token is one lexed unit, carrying a decoded payload in the field
// selected by kind.
type token struct {
	kind     tokenKind
	sym      SymbolToken
	str      string
	i        *big.Int
	f        float64
	dec      Decimal
	ts       Timestamp
	lob      []byte
	b        bool
	nullType Type
}

// textLexer tokenizes a charQueue's contents one token at a time. It
// never decodes a token that might still be extended by further
// input: if the run of candidate characters reaches the end of
// currently-queued input without the driver having marked EOF, lexing
// reports "not ok" (needs more DATA) and leaves the queue untouched,
// mirroring the binary reader's buffer-until-complete discipline.
type textLexer struct {
	q charQueue
}

func (lx *textLexer) extend(b []byte) { lx.q.extend(b) }
func (lx *textLexer) markEOF()        { lx.q.markEOF() }
func (lx *textLexer) atEOF() bool     { return lx.q.atEOF() }
func (lx *textLexer) position() int   { return lx.q.position() }
func (lx *textLexer) reset()          { lx.q.reset() }

// next scans the next token. flush additionally permits a token whose
// extent is only implied by EOF (a bare number, keyword, or closed
// quote) to be recognized even though the driver has not marked EOF,
// per the text reader's top-level flush protocol (§4.3).
func (lx *textLexer) next(flush bool) (tok token, ok bool, err error) {
	buf := lx.q.q.peek(lx.q.q.len())
	atEnd := lx.q.q.eof || flush
	n, tok, complete, err := scanToken(buf, atEnd, false)
	if err != nil {
		return token{}, false, err
	}
	if !complete {
		return token{}, false, nil
	}
	lx.q.skip(n)
	return tok, true, nil
}

// scanToken scans a single token from the front of buf. atEnd reports
// whether the caller should treat the end of buf as equivalent to a
// hard stream boundary for the purpose of terminating otherwise
// unbounded tokens (identifiers, numbers, keywords). complete is
// false whenever recognizing the token would require bytes beyond
// buf and atEnd is false. inClob is true only when scanning a clob's
// quoted string contents, where \u and \U escapes are forbidden
// regardless of the codepoint they would decode to.
func scanToken(buf []byte, atEnd bool, inClob bool) (n int, tok token, complete bool, err error) {
	i := 0
	for {
		skip, cdone, cerr := skipWhitespaceAndComments(buf[i:], atEnd)
		if cerr != nil {
			return 0, token{}, false, cerr
		}
		i += skip
		if !cdone {
			return 0, token{}, false, nil
		}
		if i >= len(buf) {
			if atEnd {
				return i, token{kind: tokEOF}, true, nil
			}
			return 0, token{}, false, nil
		}
		break
	}

	rest := buf[i:]
	c := rest[0]
	switch c {
	case '[':
		return i + 1, token{kind: tokLBracket}, true, nil
	case ']':
		return i + 1, token{kind: tokRBracket}, true, nil
	case '(':
		return i + 1, token{kind: tokLParen}, true, nil
	case ')':
		return i + 1, token{kind: tokRParen}, true, nil
	case '}':
		return i + 1, token{kind: tokRBrace}, true, nil
	case ',':
		return i + 1, token{kind: tokComma}, true, nil
	case ':':
		if len(rest) >= 2 && rest[1] == ':' {
			return i + 2, token{kind: tokDoubleColon}, true, nil
		}
		if len(rest) < 1+1 && !atEnd {
			return 0, token{}, false, nil
		}
		return i + 1, token{kind: tokColon}, true, nil
	case '{':
		if len(rest) >= 2 && rest[1] == '{' {
			return lexLob(buf, i, atEnd)
		}
		if len(rest) < 2 && !atEnd {
			return 0, token{}, false, nil
		}
		return i + 1, token{kind: tokLBrace}, true, nil
	case '"':
		return lexShortString(buf, i, atEnd, inClob)
	case '\'':
		return lexQuotedSymbolOrLongString(buf, i, atEnd, inClob)
	}

	if c == '$' || isIdentStart(c) {
		return lexSymbolOrKeyword(buf, i, atEnd)
	}
	if c == '-' || isDigit(c) {
		return lexNumberOrTimestamp(buf, i, atEnd)
	}
	if isOperatorChar(c) {
		return lexOperatorSymbol(buf, i, atEnd)
	}
	return 0, token{}, false, ionErr(i, "unexpected character %q in text input", c)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '$'
}

const operatorChars = "!#%&*+-./;<=>?@^`|~"

func isOperatorChar(c byte) bool {
	return strings.IndexByte(operatorChars, c) >= 0
}

var keywordNulls = map[string]Type{
	"null":      NoType, // bare null.null, resolved by caller to NullType
	"bool":      BoolType,
	"int":       IntType,
	"float":     FloatType,
	"decimal":   DecimalType,
	"timestamp": TimestampType,
	"symbol":    SymbolType,
	"string":    StringType,
	"clob":      ClobType,
	"blob":      BlobType,
	"list":      ListType,
	"sexp":      SexpType,
	"struct":    StructType,
}

// skipWhitespaceAndComments advances past runs of whitespace, line
// comments, and block comments at the front of buf. done is false if
// a block comment's closing "*/" (or a line comment's terminating
// newline, when not atEnd) is not yet present in buf.
func skipWhitespaceAndComments(buf []byte, atEnd bool) (n int, done bool, err error) {
	i := 0
	for i < len(buf) {
		switch buf[i] {
		case ' ', '\t', '\r', '\n', '\f', '\v':
			i++
			continue
		case '/':
			if i+1 >= len(buf) {
				if atEnd {
					return i, true, nil
				}
				return i, false, nil
			}
			switch buf[i+1] {
			case '/':
				j := i + 2
				for j < len(buf) && buf[j] != '\n' {
					j++
				}
				if j == len(buf) && !atEnd {
					return i, false, nil
				}
				i = j
				continue
			case '*':
				end := strings.Index(string(buf[i+2:]), "*/")
				if end < 0 {
					if atEnd {
						return i, false, ionErr(i, "unterminated block comment")
					}
					return i, false, nil
				}
				i = i + 2 + end + 2
				continue
			}
		}
		return i, true, nil
	}
	return i, true, nil
}

// lexSymbolOrKeyword scans an identifier, a $<digits> sid token, or
// one of the reserved keywords (true, false, null, null.<type>, nan).
func lexSymbolOrKeyword(buf []byte, i int, atEnd bool) (int, token, bool, error) {
	start := i
	if buf[i] == '$' {
		j := i + 1
		for j < len(buf) && isDigit(buf[j]) {
			j++
		}
		if j > i+1 {
			if j == len(buf) && !atEnd {
				return 0, token{}, false, nil
			}
			sid, err := strconv.ParseUint(string(buf[i+1:j]), 10, 64)
			if err != nil {
				return 0, token{}, false, ionErr(i, "symbol id out of range")
			}
			return j, token{kind: tokSymbol, sym: SidToken(Symbol(sid), nil)}, true, nil
		}
	}
	j := i
	for j < len(buf) && isIdentCont(buf[j]) {
		j++
	}
	if j == len(buf) && !atEnd {
		return 0, token{}, false, nil
	}
	word := string(buf[start:j])
	switch word {
	case "true":
		return j, token{kind: tokBool, b: true}, true, nil
	case "false":
		return j, token{kind: tokBool, b: false}, true, nil
	case "nan":
		return j, token{kind: tokFloat, f: nan()}, true, nil
	case "null":
		if j < len(buf) && buf[j] == '.' {
			k := j + 1
			for k < len(buf) && isIdentCont(buf[k]) {
				k++
			}
			if k == len(buf) && !atEnd {
				return 0, token{}, false, nil
			}
			typeName := string(buf[j+1 : k])
			t, ok := keywordNulls[typeName]
			if !ok {
				return 0, token{}, false, ionErr(i, "unknown typed null null.%s", typeName)
			}
			if typeName == "null" {
				t = NullType
			}
			return k, token{kind: tokTypedNull, nullType: t}, true, nil
		}
		return j, token{kind: tokNull}, true, nil
	}
	return j, token{kind: tokSymbol, sym: TextToken(word)}, true, nil
}

// lexOperatorSymbol scans a run of operator characters, used for
// unquoted symbols inside s-expressions (e.g. the "+" in "(a+b)").
func lexOperatorSymbol(buf []byte, i int, atEnd bool) (int, token, bool, error) {
	j := i
	for j < len(buf) && isOperatorChar(buf[j]) {
		j++
	}
	if j == len(buf) && !atEnd {
		return 0, token{}, false, nil
	}
	return j, token{kind: tokSymbol, sym: TextToken(string(buf[i:j]))}, true, nil
}

// lexShortString scans a double-quoted string with backslash escapes.
func lexShortString(buf []byte, i int, atEnd bool, inClob bool) (int, token, bool, error) {
	var sb strings.Builder
	j := i + 1
	for {
		if j >= len(buf) {
			if atEnd {
				return 0, token{}, false, ionErr(i, "unterminated string literal")
			}
			return 0, token{}, false, nil
		}
		if buf[j] == '"' {
			return j + 1, token{kind: tokString, str: sb.String()}, true, nil
		}
		if buf[j] == '\\' {
			r, adv, ok, err := decodeEscape(buf[j:], inClob)
			if err != nil {
				return 0, token{}, false, err
			}
			if !ok {
				if atEnd {
					return 0, token{}, false, ionErr(j, "unterminated escape sequence")
				}
				return 0, token{}, false, nil
			}
			if r >= 0 {
				sb.WriteRune(r)
			}
			j += adv
			continue
		}
		r, size := utf8.DecodeRune(buf[j:])
		if r == utf8.RuneError && size <= 1 {
			if j+utf8.UTFMax > len(buf) && !atEnd {
				return 0, token{}, false, nil
			}
			return 0, token{}, false, ionErr(j, "invalid UTF-8 in string literal")
		}
		sb.WriteRune(r)
		j += size
	}
}

// lexQuotedSymbolOrLongString disambiguates a single-quoted symbol
// ('...') from a triple-quoted long string ('''...'''), concatenating
// adjacent long-string literals (separated only by whitespace/
// comments) into one string value per §4.3.
func lexQuotedSymbolOrLongString(buf []byte, i int, atEnd bool, inClob bool) (int, token, bool, error) {
	if len(buf) < i+3 && !atEnd {
		return 0, token{}, false, nil
	}
	if len(buf) >= i+3 && buf[i+1] == '\'' && buf[i+2] == '\'' {
		return lexLongStringRun(buf, i, atEnd, inClob)
	}
	var sb strings.Builder
	j := i + 1
	for {
		if j >= len(buf) {
			if atEnd {
				return 0, token{}, false, ionErr(i, "unterminated quoted symbol")
			}
			return 0, token{}, false, nil
		}
		if buf[j] == '\'' {
			return j + 1, token{kind: tokSymbol, sym: TextToken(sb.String())}, true, nil
		}
		if buf[j] == '\\' {
			r, adv, ok, err := decodeEscape(buf[j:], inClob)
			if err != nil {
				return 0, token{}, false, err
			}
			if !ok {
				if atEnd {
					return 0, token{}, false, ionErr(j, "unterminated escape sequence")
				}
				return 0, token{}, false, nil
			}
			if r >= 0 {
				sb.WriteRune(r)
			}
			j += adv
			continue
		}
		r, size := utf8.DecodeRune(buf[j:])
		sb.WriteRune(r)
		j += size
	}
}

// lexLongStringRun scans one or more triple-quoted long-string
// segments, concatenated across intervening whitespace/comments, as a
// single string token.
func lexLongStringRun(buf []byte, i int, atEnd bool, inClob bool) (int, token, bool, error) {
	var sb strings.Builder
	j := i
	for {
		if j+3 > len(buf) {
			if atEnd {
				return 0, token{}, false, ionErr(j, "unterminated long string")
			}
			return 0, token{}, false, nil
		}
		if buf[j] != '\'' || buf[j+1] != '\'' || buf[j+2] != '\'' {
			break
		}
		j += 3
		for {
			if j+3 > len(buf) {
				if atEnd {
					return 0, token{}, false, ionErr(j, "unterminated long string")
				}
				return 0, token{}, false, nil
			}
			if buf[j] == '\'' && buf[j+1] == '\'' && buf[j+2] == '\'' {
				j += 3
				break
			}
			if buf[j] == '\\' {
				r, adv, ok, err := decodeEscape(buf[j:], inClob)
				if err != nil {
					return 0, token{}, false, err
				}
				if !ok {
					if atEnd {
						return 0, token{}, false, ionErr(j, "unterminated escape sequence")
					}
					return 0, token{}, false, nil
				}
				if r >= 0 {
					sb.WriteRune(r)
				}
				j += adv
				continue
			}
			r, size := utf8.DecodeRune(buf[j:])
			sb.WriteRune(r)
			j += size
		}
		skip, done, err := skipWhitespaceAndComments(buf[j:], atEnd)
		if err != nil {
			return 0, token{}, false, err
		}
		if !done {
			return 0, token{}, false, nil
		}
		j += skip
	}
	return j, token{kind: tokString, str: sb.String()}, true, nil
}

// lexLob scans a {{ ... }} blob or clob. Whitespace inside the double
// braces is insignificant for base64 blobs; clob quoted contents
// follow the same string-escape rules as short/long strings but
// reject any byte above 0x7F.
func lexLob(buf []byte, i int, atEnd bool) (int, token, bool, error) {
	j := i + 2
	skip, done, err := skipWhitespaceAndComments(buf[j:], atEnd)
	if err != nil {
		return 0, token{}, false, err
	}
	if !done {
		return 0, token{}, false, nil
	}
	j += skip
	if j >= len(buf) {
		if atEnd {
			return 0, token{}, false, ionErr(i, "unterminated blob/clob")
		}
		return 0, token{}, false, nil
	}
	if buf[j] == '"' || buf[j] == '\'' {
		n, strTok, complete, err := scanToken(buf[j:], atEnd, true)
		if err != nil || !complete {
			return 0, token{}, complete, err
		}
		if strTok.kind != tokString {
			return 0, token{}, false, ionErr(j, "clob contents must be a double- or triple-quoted string")
		}
		for _, r := range strTok.str {
			if r > 0x7f {
				return 0, token{}, false, ionErr(j, "clob contents must be ASCII")
			}
		}
		k := j + n
		skip2, done2, err := skipWhitespaceAndComments(buf[k:], atEnd)
		if err != nil {
			return 0, token{}, false, err
		}
		if !done2 {
			return 0, token{}, false, nil
		}
		k += skip2
		if k+2 > len(buf) {
			if atEnd {
				return 0, token{}, false, ionErr(i, "unterminated clob")
			}
			return 0, token{}, false, nil
		}
		if buf[k] != '}' || buf[k+1] != '}' {
			return 0, token{}, false, ionErr(k, "expected closing }} for clob")
		}
		return k + 2, token{kind: tokClob, lob: []byte(strTok.str)}, true, nil
	}
	end := strings.Index(string(buf[j:]), "}}")
	if end < 0 {
		if atEnd {
			return 0, token{}, false, ionErr(i, "unterminated blob")
		}
		return 0, token{}, false, nil
	}
	raw := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n', '\f', '\v':
			return -1
		}
		return r
	}, string(buf[j:j+end]))
	data, err := base64Decode(raw)
	if err != nil {
		return 0, token{}, false, ionErr(i, "malformed base64 in blob: %v", err)
	}
	return j + end + 2, token{kind: tokBlob, lob: data}, true, nil
}

// lexNumberOrTimestamp scans a number (int, float, or decimal) or a
// timestamp, disambiguated by a 4-digit-then-'-' or 'T' lookahead.
func lexNumberOrTimestamp(buf []byte, i int, atEnd bool) (int, token, bool, error) {
	if buf[i] == '-' && i+1 < len(buf) && (buf[i+1] == 'i' || buf[i+1] == 'I') {
		kw := "-inf"
		if len(buf)-i < len(kw) {
			if atEnd {
				return 0, token{}, false, ionErr(i, "malformed numeric literal")
			}
			return 0, token{}, false, nil
		}
		if strings.EqualFold(string(buf[i:i+len(kw)]), kw) {
			j := i + len(kw)
			if j == len(buf) && !atEnd {
				return 0, token{}, false, nil
			}
			return j, token{kind: tokFloat, f: negInf()}, true, nil
		}
	}
	if buf[i] == '+' && i+1 < len(buf) && (buf[i+1] == 'i' || buf[i+1] == 'I') {
		kw := "+inf"
		if len(buf)-i < len(kw) {
			if atEnd {
				return 0, token{}, false, ionErr(i, "malformed numeric literal")
			}
			return 0, token{}, false, nil
		}
		if strings.EqualFold(string(buf[i:i+len(kw)]), kw) {
			j := i + len(kw)
			if j == len(buf) && !atEnd {
				return 0, token{}, false, nil
			}
			return j, token{kind: tokFloat, f: posInf()}, true, nil
		}
	}

	digStart := i
	if buf[i] == '-' {
		digStart = i + 1
	}
	ndig := 0
	for digStart+ndig < len(buf) && isDigit(buf[digStart+ndig]) {
		ndig++
	}
	if digStart+ndig == len(buf) && !atEnd {
		return 0, token{}, false, nil
	}
	if ndig == 4 && digStart+4 < len(buf) && buf[digStart+4] == '-' {
		return lexTimestamp(buf, i, atEnd)
	}

	// hex / binary radix integers
	if ndig >= 1 && buf[digStart] == '0' && digStart+1 < len(buf) &&
		(buf[digStart+1] == 'x' || buf[digStart+1] == 'X' || buf[digStart+1] == 'b' || buf[digStart+1] == 'B') {
		return lexRadixInt(buf, i, digStart, atEnd)
	}

	j := digStart
	for j < len(buf) && (isDigit(buf[j]) || buf[j] == '_') {
		j++
	}
	if j == len(buf) && !atEnd {
		return 0, token{}, false, nil
	}
	kind := tokInt
	if j < len(buf) && buf[j] == '.' {
		kind = tokDecimal
		j++
		for j < len(buf) && (isDigit(buf[j]) || buf[j] == '_') {
			j++
		}
		if j == len(buf) && !atEnd {
			return 0, token{}, false, nil
		}
	}
	if j < len(buf) && (buf[j] == 'd' || buf[j] == 'D' || buf[j] == 'e' || buf[j] == 'E') {
		isFloat := buf[j] == 'e' || buf[j] == 'E'
		if isFloat {
			kind = tokFloat
		} else {
			kind = tokDecimal
		}
		j++
		if j < len(buf) && (buf[j] == '+' || buf[j] == '-') {
			j++
		}
		expStart := j
		for j < len(buf) && isDigit(buf[j]) {
			j++
		}
		if j == expStart {
			if j == len(buf) && !atEnd {
				return 0, token{}, false, nil
			}
			return 0, token{}, false, ionErr(i, "malformed exponent")
		}
		if j == len(buf) && !atEnd {
			return 0, token{}, false, nil
		}
	}

	text := strings.ReplaceAll(string(buf[i:j]), "_", "")
	switch kind {
	case tokInt:
		v, ok := new(big.Int).SetString(text, 10)
		if !ok {
			return 0, token{}, false, ionErr(i, "malformed integer literal %q", text)
		}
		return j, token{kind: tokInt, i: v}, true, nil
	case tokFloat:
		normalized := strings.Map(func(r rune) rune {
			if r == 'd' || r == 'D' {
				return 'e'
			}
			return r
		}, text)
		f, err := strconv.ParseFloat(normalized, 64)
		if err != nil {
			return 0, token{}, false, ionErr(i, "malformed float literal %q", text)
		}
		return j, token{kind: tokFloat, f: f}, true, nil
	default:
		d, err := parseDecimalLiteral(text)
		if err != nil {
			return 0, token{}, false, ionErr(i, "malformed decimal literal %q: %v", text, err)
		}
		return j, token{kind: tokDecimal, dec: d}, true, nil
	}
}

func lexRadixInt(buf []byte, i, digStart int, atEnd bool) (int, token, bool, error) {
	base := 16
	if buf[digStart+1] == 'b' || buf[digStart+1] == 'B' {
		base = 2
	}
	j := digStart + 2
	start := j
	for j < len(buf) && (isHexOrBinDigit(buf[j], base) || buf[j] == '_') {
		j++
	}
	if j == len(buf) && !atEnd {
		return 0, token{}, false, nil
	}
	if j == start {
		return 0, token{}, false, ionErr(i, "malformed radix integer literal")
	}
	digits := strings.ReplaceAll(string(buf[start:j]), "_", "")
	v, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return 0, token{}, false, ionErr(i, "malformed radix integer literal")
	}
	if buf[i] == '-' {
		v.Neg(v)
	}
	return j, token{kind: tokInt, i: v}, true, nil
}

func isHexOrBinDigit(c byte, base int) bool {
	if base == 2 {
		return c == '0' || c == '1'
	}
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// parseDecimalLiteral parses digits[.digits][d|D[+-]digits] into a
// Decimal, preserving the coefficient's significant trailing zeros and
// the written exponent rather than normalizing them away.
func parseDecimalLiteral(text string) (Decimal, error) {
	neg := false
	if strings.HasPrefix(text, "-") {
		neg = true
		text = text[1:]
	} else if strings.HasPrefix(text, "+") {
		text = text[1:]
	}
	mantissa := text
	exp := 0
	if k := strings.IndexAny(text, "dD"); k >= 0 {
		mantissa = text[:k]
		e, err := strconv.Atoi(text[k+1:])
		if err != nil {
			return Decimal{}, err
		}
		exp = e
	}
	fracDigits := 0
	digits := mantissa
	if k := strings.IndexByte(mantissa, '.'); k >= 0 {
		digits = mantissa[:k] + mantissa[k+1:]
		fracDigits = len(mantissa) - k - 1
	}
	if digits == "" {
		digits = "0"
	}
	coeff, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Decimal{}, ionErr(-1, "malformed decimal coefficient")
	}
	return Decimal{Coeff: *coeff, Neg: neg, Exp: exp - fracDigits}, nil
}

// lexTimestamp scans a timestamp literal at increasing precision:
// year, year-month, date, date-time-minute, ...-second,
// ...-fractional-second, each requiring the offset suffix once a time
// of day is present.
func lexTimestamp(buf []byte, i int, atEnd bool) (int, token, bool, error) {
	need := func(n int) bool {
		if i+n > len(buf) {
			return !atEnd
		}
		return false
	}
	if need(4) {
		return 0, token{}, false, nil
	}
	year, err := strconv.Atoi(string(buf[i : i+4]))
	if err != nil {
		return 0, token{}, false, ionErr(i, "malformed timestamp year")
	}
	j := i + 4
	ts := Timestamp{Year: year, Month: 1, Day: 1, Precision: YearPrecision}
	if j >= len(buf) || buf[j] != '-' {
		if j == len(buf) && !atEnd {
			return 0, token{}, false, nil
		}
		return j, token{kind: tokTimestamp, ts: ts}, true, nil
	}
	if i+7 > len(buf) {
		if atEnd {
			return 0, token{}, false, ionErr(i, "malformed timestamp")
		}
		return 0, token{}, false, nil
	}
	month, err := strconv.Atoi(string(buf[j+1 : j+3]))
	if err != nil {
		return 0, token{}, false, ionErr(j, "malformed timestamp month")
	}
	ts.Month = month
	ts.Precision = MonthPrecision
	j += 3
	if j >= len(buf) || buf[j] != '-' {
		if j == len(buf) && !atEnd {
			return 0, token{}, false, nil
		}
		return j, token{kind: tokTimestamp, ts: ts}, true, nil
	}
	if j+3 > len(buf) {
		if atEnd {
			return 0, token{}, false, ionErr(j, "malformed timestamp")
		}
		return 0, token{}, false, nil
	}
	day, err := strconv.Atoi(string(buf[j+1 : j+3]))
	if err != nil {
		return 0, token{}, false, ionErr(j, "malformed timestamp day")
	}
	ts.Day = day
	ts.Precision = DayPrecision
	j += 3
	if j >= len(buf) || buf[j] != 'T' {
		if j == len(buf) && !atEnd {
			return 0, token{}, false, nil
		}
		return j, token{kind: tokTimestamp, ts: ts}, true, nil
	}
	j++
	// date-only "T" with no time of day, e.g. 2022-01-01T
	if j >= len(buf) || !isDigit(buf[j]) {
		if j == len(buf) && !atEnd {
			return 0, token{}, false, nil
		}
		return j, token{kind: tokTimestamp, ts: ts}, true, nil
	}
	if j+5 > len(buf) {
		if atEnd {
			return 0, token{}, false, ionErr(j, "malformed timestamp time")
		}
		return 0, token{}, false, nil
	}
	hour, err1 := strconv.Atoi(string(buf[j : j+2]))
	minute, err2 := strconv.Atoi(string(buf[j+3 : j+5]))
	if err1 != nil || err2 != nil || buf[j+2] != ':' {
		return 0, token{}, false, ionErr(j, "malformed timestamp time")
	}
	ts.Hour, ts.Minute = hour, minute
	ts.Precision = MinutePrecision
	j += 5
	if j < len(buf) && buf[j] == ':' {
		if j+3 > len(buf) {
			if atEnd {
				return 0, token{}, false, ionErr(j, "malformed timestamp seconds")
			}
			return 0, token{}, false, nil
		}
		sec, err := strconv.Atoi(string(buf[j+1 : j+3]))
		if err != nil {
			return 0, token{}, false, ionErr(j, "malformed timestamp seconds")
		}
		ts.Second = sec
		ts.Precision = SecondPrecision
		j += 3
		if j < len(buf) && buf[j] == '.' {
			k := j + 1
			for k < len(buf) && isDigit(buf[k]) {
				k++
			}
			if k == len(buf) && !atEnd {
				return 0, token{}, false, nil
			}
			fracDigits := string(buf[j+1 : k])
			coeff, ok := new(big.Int).SetString(fracDigits, 10)
			if !ok {
				coeff = new(big.Int)
			}
			frac := Decimal{Coeff: *coeff, Exp: -len(fracDigits)}
			ts.FractionalSeconds = &frac
			j = k
		}
	}
	// offset: Z or +hh:mm / -hh:mm (an unpaired "-00:00" means unknown)
	if j >= len(buf) {
		if atEnd {
			return 0, token{}, false, ionErr(j, "timestamp missing required offset")
		}
		return 0, token{}, false, nil
	}
	if buf[j] == 'Z' || buf[j] == 'z' {
		j++
		offset := 0
		ts.OffsetMinutes = &offset
		if j == len(buf) && !atEnd {
			return 0, token{}, false, nil
		}
		return j, token{kind: tokTimestamp, ts: ts}, true, nil
	}
	if buf[j] != '+' && buf[j] != '-' {
		return 0, token{}, false, ionErr(j, "timestamp missing required offset")
	}
	sign := buf[j]
	if j+6 > len(buf) {
		if atEnd {
			return 0, token{}, false, ionErr(j, "malformed timestamp offset")
		}
		return 0, token{}, false, nil
	}
	offH, err1o := strconv.Atoi(string(buf[j+1 : j+3]))
	offM, err2o := strconv.Atoi(string(buf[j+4 : j+6]))
	if err1o != nil || err2o != nil || buf[j+3] != ':' {
		return 0, token{}, false, ionErr(j, "malformed timestamp offset")
	}
	j += 6
	if sign == '-' && offH == 0 && offM == 0 {
		ts.OffsetMinutes = nil // unknown local offset
	} else {
		total := offH*60 + offM
		if sign == '-' {
			total = -total
		}
		ts.OffsetMinutes = &total
	}
	if j == len(buf) && !atEnd {
		return 0, token{}, false, nil
	}
	return j, token{kind: tokTimestamp, ts: ts}, true, nil
}

// decodeEscape decodes one backslash escape at the front of buf
// (buf[0] == '\\'). inClob forbids \u and \U escapes (§4.3). r is -1
// for the line-continuation escape, which contributes no character.
func decodeEscape(buf []byte, inClob bool) (r rune, adv int, ok bool, err error) {
	if len(buf) < 2 {
		return 0, 0, false, nil
	}
	switch buf[1] {
	case 'a':
		return '\a', 2, true, nil
	case 'b':
		return '\b', 2, true, nil
	case 't':
		return '\t', 2, true, nil
	case 'n':
		return '\n', 2, true, nil
	case 'f':
		return '\f', 2, true, nil
	case 'r':
		return '\r', 2, true, nil
	case 'v':
		return '\v', 2, true, nil
	case '0':
		return 0, 2, true, nil
	case '?':
		return '?', 2, true, nil
	case '\'':
		return '\'', 2, true, nil
	case '"':
		return '"', 2, true, nil
	case '/':
		return '/', 2, true, nil
	case '\\':
		return '\\', 2, true, nil
	case '\n':
		return -1, 2, true, nil
	case '\r':
		if len(buf) >= 3 && buf[2] == '\n' {
			return -1, 3, true, nil
		}
		return -1, 2, true, nil
	case 'x':
		if len(buf) < 4 {
			return 0, 0, false, nil
		}
		v, err := strconv.ParseUint(string(buf[2:4]), 16, 8)
		if err != nil {
			return 0, 0, false, ionErr(-1, "malformed \\x escape")
		}
		return rune(v), 4, true, nil
	case 'u':
		if inClob {
			return 0, 0, false, ionErr(-1, "\\u escapes are not permitted in clobs")
		}
		if len(buf) < 6 {
			return 0, 0, false, nil
		}
		v, err := strconv.ParseUint(string(buf[2:6]), 16, 16)
		if err != nil {
			return 0, 0, false, ionErr(-1, "malformed \\u escape")
		}
		r := rune(v)
		if r >= 0xd800 && r <= 0xdbff {
			if len(buf) < 12 || buf[6] != '\\' || buf[7] != 'u' {
				return 0, 0, false, ionErr(-1, "unpaired high surrogate escape")
			}
			lo, err := strconv.ParseUint(string(buf[8:12]), 16, 16)
			if err != nil || lo < 0xdc00 || lo > 0xdfff {
				return 0, 0, false, ionErr(-1, "unpaired high surrogate escape")
			}
			combined := 0x10000 + (rune(v)-0xd800)<<10 + (rune(lo) - 0xdc00)
			return combined, 12, true, nil
		}
		if r >= 0xdc00 && r <= 0xdfff {
			return 0, 0, false, ionErr(-1, "unpaired low surrogate escape")
		}
		return r, 6, true, nil
	case 'U':
		if inClob {
			return 0, 0, false, ionErr(-1, "\\U escapes are not permitted in clobs")
		}
		if len(buf) < 10 {
			return 0, 0, false, nil
		}
		v, err := strconv.ParseUint(string(buf[2:10]), 16, 32)
		if err != nil {
			return 0, 0, false, ionErr(-1, "malformed \\U escape")
		}
		return rune(v), 10, true, nil
	default:
		return 0, 0, false, ionErr(-1, "unrecognized escape sequence \\%c", buf[1])
	}
}

func base64Decode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

func nan() float64    { return math.NaN() }
func posInf() float64 { return math.Inf(1) }
func negInf() float64 { return math.Inf(-1) }
