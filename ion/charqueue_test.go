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

func TestCharQueueReadsASCII(t *testing.T) {
	var c charQueue
	c.extend([]byte("ab"))
	r, size, ok := c.readRune()
	if !ok || r != 'a' || size != 1 {
		t.Fatalf("readRune() = %q, %d, %v", r, size, ok)
	}
	r, size, ok = c.readRune()
	if !ok || r != 'b' || size != 1 {
		t.Fatalf("readRune() = %q, %d, %v", r, size, ok)
	}
}

func TestCharQueueReadsMultibyteRune(t *testing.T) {
	var c charQueue
	c.extend([]byte("é")) // 'é', 2 UTF-8 bytes
	r, size, ok := c.readRune()
	if !ok || r != 'é' || size != 2 {
		t.Fatalf("readRune() = %q, %d, %v", r, size, ok)
	}
}

func TestCharQueueIncompleteMultibyteRuneWithoutEOF(t *testing.T) {
	var c charQueue
	c.extend([]byte("é")[:1]) // only the lead byte of 'é'
	_, _, ok := c.peekRune()
	if ok {
		t.Fatal("a truncated multi-byte sequence should not decode before EOF or more bytes")
	}
}

func TestCharQueueMalformedRuneAtEOFDecodesAsReplacementChar(t *testing.T) {
	var c charQueue
	c.extend([]byte{0xff})
	c.markEOF()
	r, size, ok := c.readRune()
	if !ok || size != 1 {
		t.Fatalf("readRune() at EOF on a malformed byte = %q, %d, %v", r, size, ok)
	}
}

func TestCharQueueUnreadRune(t *testing.T) {
	var c charQueue
	c.extend([]byte("xy"))
	_, size, _ := c.readRune()
	c.unreadRune(size)
	r, _, ok := c.readRune()
	if !ok || r != 'x' {
		t.Fatalf("expected unreadRune to restore 'x', got %q, %v", r, ok)
	}
}
