// Package hierarchy models the position of an artifact inside the expansion
// tree and the filename convention that persists it. All hierarchy logic works
// on ID values; raw filenames only appear at the Codec boundary.
package hierarchy

import (
	"strconv"
	"strings"
)

// ID is an ordered, non-empty sequence of positive integers. Its length is the
// artifact's depth in the expansion tree and a child's ID is its parent's ID
// with exactly one integer appended.
type ID []int

// New builds an ID from the given components.
func New(parts ...int) ID {
	return append(ID{}, parts...)
}

// Depth returns the number of components.
func (id ID) Depth() int {
	return len(id)
}

// Valid reports whether the ID is non-empty and every component is positive.
func (id ID) Valid() bool {
	if len(id) == 0 {
		return false
	}
	for _, part := range id {
		if part < 1 {
			return false
		}
	}
	return true
}

// Last returns the final component (the sibling index) or zero for an empty ID.
func (id ID) Last() int {
	if len(id) == 0 {
		return 0
	}
	return id[len(id)-1]
}

// Parent returns the ID with its last component removed. The parent of a
// depth-one ID is empty.
func (id ID) Parent() ID {
	if len(id) <= 1 {
		return ID{}
	}
	return id[:len(id)-1].Clone()
}

// Child returns a new ID extending this one by n.
func (id ID) Child(n int) ID {
	child := make(ID, len(id), len(id)+1)
	copy(child, id)
	return append(child, n)
}

// Clone returns an independent copy.
func (id ID) Clone() ID {
	if id == nil {
		return nil
	}
	out := make(ID, len(id))
	copy(out, id)
	return out
}

// Equal reports component-wise equality.
func (id ID) Equal(other ID) bool {
	return id.Compare(other) == 0
}

// HasPrefix reports whether the ID starts with every component of prefix.
func (id ID) HasPrefix(prefix ID) bool {
	if len(prefix) > len(id) {
		return false
	}
	for i := range prefix {
		if id[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Compare orders IDs lexicographically over their integer components: the
// first differing component decides, and a proper prefix sorts first. This is
// the depth-first, left-to-right order of the expansion tree.
func (id ID) Compare(other ID) int {
	for i := 0; i < len(id) && i < len(other); i++ {
		switch {
		case id[i] < other[i]:
			return -1
		case id[i] > other[i]:
			return 1
		}
	}
	switch {
	case len(id) < len(other):
		return -1
	case len(id) > len(other):
		return 1
	}
	return 0
}

// String renders the ID as dotted components, e.g. "3.2.1".
func (id ID) String() string {
	parts := make([]string, len(id))
	for i, part := range id {
		parts[i] = strconv.Itoa(part)
	}
	return strings.Join(parts, ".")
}
