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

// bufNode is one node of a BufferTree: a leaf carries a payload and
// no children, a container carries no payload of its own and an
// ordered list of children (the first of which becomes its header
// once EndContainer installs one).
//
// Children are held as pointers so that a parent's slice can grow
// (via further StartContainer/AddScalarValue calls on an ancestor)
// without invalidating pointers the frame stack holds into nodes
// deeper in the tree.
type bufNode struct {
	payload  []byte
	children []*bufNode
}

// bufFrame is one open container on a BufferTree's stack: the node
// being filled in, and the running total of bytes appended to it so
// far (excluding the header it does not have yet).
type bufFrame struct {
	node *bufNode
	len  int
}

// BufferTree accumulates encoded value fragments in a tree mirroring
// the Ion container structure, deferring a container's header (which
// must record the byte length of its body) until all of that body has
// been produced. This is the writer-side counterpart of the reader's
// peek-before-consume discipline: a binary writer can ask for the
// current container's accumulated length, synthesize a header from
// it, and only then close the container.
//
// The tree always has an implicit root container at depth 0 holding
// the top-level sequence of values; StartContainer/EndContainer pairs
// nest additional containers beneath it.
type BufferTree struct {
	root   bufNode
	frames []bufFrame
}

// NewBufferTree returns an empty tree positioned at depth 0.
func NewBufferTree() *BufferTree {
	t := &BufferTree{}
	t.frames = []bufFrame{{node: &t.root}}
	return t
}

// Depth reports the number of currently open (unmatched) containers.
func (t *BufferTree) Depth() int { return len(t.frames) - 1 }

// Len reports the number of payload bytes accumulated so far in the
// current container, i.e. what a header synthesized right now would
// need to declare as the body length.
func (t *BufferTree) Len() int { return t.frames[len(t.frames)-1].len }

// StartContainer pushes a new empty container as a child of the
// current one.
func (t *BufferTree) StartContainer() {
	cur := &t.frames[len(t.frames)-1]
	child := &bufNode{}
	cur.node.children = append(cur.node.children, child)
	t.frames = append(t.frames, bufFrame{node: child})
}

// EndContainer installs headerBytes as the leftmost leaf of the
// container most recently opened by StartContainer and pops it,
// adding its total encoded length (body plus header) to the
// now-current container's running length.
func (t *BufferTree) EndContainer(headerBytes []byte) error {
	if t.Depth() == 0 {
		return usageErr("EndContainer", "EndContainer called with no matching StartContainer")
	}
	closed := t.frames[len(t.frames)-1]
	t.frames = t.frames[:len(t.frames)-1]
	closed.node.children = append([]*bufNode{{payload: headerBytes}}, closed.node.children...)
	parent := &t.frames[len(t.frames)-1]
	parent.len += closed.len + len(headerBytes)
	return nil
}

// AddScalarValue appends a leaf holding an already-encoded scalar to
// the current container.
func (t *BufferTree) AddScalarValue(b []byte) {
	f := &t.frames[len(t.frames)-1]
	f.node.children = append(f.node.children, &bufNode{payload: b})
	f.len += len(b)
}

// Drain returns the tree's leaves in depth-first, in-order traversal
// order (the order their bytes must be written to reconstruct the
// encoded stream) and resets the tree to a fresh, empty state. It is
// an error to call Drain with any container still open.
func (t *BufferTree) Drain() ([][]byte, error) {
	if t.Depth() != 0 {
		return nil, usageErr("Drain", "Drain requires depth 0; a container was started but never ended")
	}
	var out [][]byte
	var walk func(n *bufNode)
	walk = func(n *bufNode) {
		if n.payload != nil {
			out = append(out, n.payload)
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(&t.root)
	t.reset()
	return out, nil
}

// reset returns the tree to the same state NewBufferTree produces.
func (t *BufferTree) reset() {
	t.root = bufNode{}
	t.frames = t.frames[:1]
	t.frames[0] = bufFrame{node: &t.root}
}
