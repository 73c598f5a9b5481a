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

import "fmt"

// Symbol is an interned symbol ID, an index into an active Symtab.
// Sid 0 always denotes the symbol with unknown text.
type Symbol uint64

// SymbolToken is a symbolic identifier: some combination of text and
// a symbol ID, plus (when the token was produced by resolving an
// import) the shared table it came from.
//
// Two tokens with equal non-empty Text are equivalent regardless of
// Sid or Location. Two tokens with empty Text compare equal only when
// their Sid matches and their Location matches (or both lack a
// Location and both refer to the active local scope).
type SymbolToken struct {
	Text     string
	HasText  bool
	Sid      Symbol
	Location *ImportLocation
}

// ImportLocation records the shared table a symbol with unknown text
// was resolved through.
type ImportLocation struct {
	Name string
	Sid  Symbol // position within that shared table
}

// TextToken builds a SymbolToken with known text.
func TextToken(text string) SymbolToken {
	return SymbolToken{Text: text, HasText: true}
}

// SidToken builds a SymbolToken with unknown text, identified only
// by its symbol ID (and optionally the import it came from).
func SidToken(sid Symbol, loc *ImportLocation) SymbolToken {
	return SymbolToken{Sid: sid, Location: loc}
}

// Equal implements the symbol-token equivalence relation from §3 of
// the specification.
func (s SymbolToken) Equal(o SymbolToken) bool {
	if s.HasText && o.HasText {
		return s.Text == o.Text
	}
	if s.HasText != o.HasText {
		return false
	}
	if s.Sid != o.Sid {
		return false
	}
	return locationsEqual(s.Location, o.Location)
}

func locationsEqual(a, b *ImportLocation) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.Name == b.Name && a.Sid == b.Sid
}

func (s SymbolToken) String() string {
	if s.HasText {
		return s.Text
	}
	if s.Location != nil {
		return fmt.Sprintf("$%d(%s@%d)", s.Sid, s.Location.Name, s.Location.Sid)
	}
	return fmt.Sprintf("$%d", s.Sid)
}
