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

func TestByteQueueReadAndPeek(t *testing.T) {
	var q byteQueue
	q.extend([]byte{1, 2, 3, 4})
	if got := q.peek(2); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("peek(2) = %v", got)
	}
	if q.len() != 4 {
		t.Fatalf("peek must not consume: len() = %d, want 4", q.len())
	}
	got := q.read(2)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("read(2) = %v", got)
	}
	if q.len() != 2 {
		t.Fatalf("len() after read = %d, want 2", q.len())
	}
	if q.position() != 2 {
		t.Fatalf("position() = %d, want 2", q.position())
	}
}

func TestByteQueueUnread(t *testing.T) {
	var q byteQueue
	q.extend([]byte{10, 20, 30})
	b, _ := q.readByte()
	if b != 10 {
		t.Fatalf("readByte() = %d, want 10", b)
	}
	q.unread(1)
	if q.len() != 3 {
		t.Fatalf("len() after unread = %d, want 3", q.len())
	}
	b2, _ := q.readByte()
	if b2 != 10 {
		t.Fatalf("readByte() after unread = %d, want 10 again", b2)
	}
}

func TestByteQueueAtEOF(t *testing.T) {
	var q byteQueue
	q.extend([]byte{1})
	if q.atEOF() {
		t.Fatal("atEOF must be false before markEOF, even with no bytes queued elsewhere")
	}
	q.read(1)
	q.markEOF()
	if !q.atEOF() {
		t.Fatal("atEOF should be true once markEOF is set and the queue is drained")
	}
}

func TestByteQueueSkipClampsToAvailable(t *testing.T) {
	var q byteQueue
	q.extend([]byte{1, 2, 3})
	n := q.skip(10)
	if n != 3 {
		t.Fatalf("skip(10) on a 3-byte queue returned %d, want 3", n)
	}
	if q.len() != 0 {
		t.Fatalf("len() after skip = %d, want 0", q.len())
	}
}

func TestByteQueueExtendCompactsFullyConsumedBuffer(t *testing.T) {
	var q byteQueue
	q.extend([]byte{1, 2})
	q.read(2)
	q.extend([]byte{3, 4})
	if q.len() != 2 {
		t.Fatalf("len() = %d, want 2", q.len())
	}
	got := q.read(2)
	if got[0] != 3 || got[1] != 4 {
		t.Fatalf("read after compaction = %v, want [3 4]", got)
	}
}

func TestByteQueueReset(t *testing.T) {
	var q byteQueue
	q.extend([]byte{1, 2, 3})
	q.read(1)
	q.markEOF()
	q.reset()
	if q.len() != 0 || q.atEOF() || q.position() != 0 {
		t.Fatal("reset should fully clear the queue's state")
	}
}
