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

import "unicode/utf8"

// charQueue is the text reader's analog of byteQueue: a FIFO of UTF-8
// bytes that the tokenizer addresses one decoded rune at a time.
// Incomplete trailing UTF-8 sequences are left queued (rather than
// decoded as utf8.RuneError) so a stream cut mid-rune produces
// INCOMPLETE rather than a decode error, per §4.1/§4.3.
type charQueue struct {
	q byteQueue
}

// extend appends newly-arrived text bytes.
func (c *charQueue) extend(b []byte) { c.q.extend(b) }

// markEOF records that no further bytes will arrive.
func (c *charQueue) markEOF() { c.q.markEOF() }

// atEOF reports whether the queue is closed and fully drained.
func (c *charQueue) atEOF() bool { return c.q.atEOF() }

// position returns the byte offset consumed so far, for diagnostics.
func (c *charQueue) position() int { return c.q.position() }

// peekRune returns the next decoded rune without consuming it, the
// number of bytes it occupies, and whether a rune is currently
// available. A false result means the queue is empty, or it holds
// fewer than utf8.UTFMax bytes that do not decode yet and EOF has not
// been marked, so more bytes may complete the sequence. Once EOF is
// marked, or utf8.UTFMax bytes are buffered, a byte that does not
// decode is returned as utf8.RuneError with size 1 and ok=true.
func (c *charQueue) peekRune() (r rune, size int, ok bool) {
	buf := c.q.peek(utf8.UTFMax)
	if len(buf) == 0 {
		return 0, 0, false
	}
	r, size = utf8.DecodeRune(buf)
	if r == utf8.RuneError && size <= 1 {
		if len(buf) < utf8.UTFMax && !c.q.eof {
			return 0, 0, false // might still complete
		}
		if len(buf) == 0 {
			return 0, 0, false
		}
		// genuinely malformed, or a valid encoding of RuneError itself
	}
	return r, size, true
}

// readRune consumes and returns the next decoded rune.
func (c *charQueue) readRune() (r rune, size int, ok bool) {
	r, size, ok = c.peekRune()
	if !ok {
		return
	}
	c.q.read(size)
	return
}

// unreadRune pushes size bytes back onto the front of the queue,
// undoing the most recent readRune.
func (c *charQueue) unreadRune(size int) { c.q.unread(size) }

// skip discards n raw bytes (used for ASCII fast paths where the
// caller already knows a run of bytes is single-byte runes).
func (c *charQueue) skip(n int) int { return c.q.skip(n) }

// reset drops all content, used when resynchronizing after a
// framing error.
func (c *charQueue) reset() { c.q.reset() }
