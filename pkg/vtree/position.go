package vtree

import (
	"strconv"
	"strings"

	"github.com/presage-dev/presage/internal/errors"
)

// PositionID is a stable per-node identifier within a sibling run.
//
// IDs are allocated on a gap scheme: the Nth child created during a
// render pass gets (N+1)*PositionGap, leaving 268M free slots between
// any two siblings. Inserting a sibling takes a midpoint ID and never
// renumbers existing siblings, so position paths stay valid across
// unrelated structural edits.
type PositionID uint32

// PositionGap is the spacing between consecutive allocated IDs.
const PositionGap PositionID = 0x10000000

// ChildPosition returns the gap-aligned position ID for child index i.
func ChildPosition(i int) PositionID {
	return PositionID(i+1) * PositionGap
}

// Between returns a free position ID strictly between a and b.
// It fails with a structural error when the local gap is exhausted;
// the caller should then renumber the affected sibling run.
func Between(a, b PositionID) (PositionID, error) {
	if b <= a+1 {
		return 0, errors.New("E006").WithDetail("no free slot between %08x and %08x", uint32(a), uint32(b))
	}
	return a + (b-a)/2, nil
}

// Before returns a free position ID below a, for inserting at the head.
func Before(a PositionID) (PositionID, error) {
	return Between(0, a)
}

// After returns a free position ID above a, for appending at the tail.
func After(a PositionID) (PositionID, error) {
	return Between(a, ^PositionID(0))
}

// RenumberSiblings reassigns gap-aligned IDs to the children of parent.
// It is the local escape hatch for gap exhaustion: only the affected
// sibling run is touched, never the rest of the tree. All cached
// patches addressing the old IDs become invalid; callers must
// invalidate dependent forecast entries (see forecast.Store.Invalidate).
func RenumberSiblings(parent *Node) {
	for i, c := range parent.Children {
		if c != nil {
			c.Pos = ChildPosition(i)
		}
	}
}

// Path is a position path: the sequence of position IDs from the root's
// children down to a node. An empty Path addresses the root itself.
type Path []PositionID

// String renders the path as dot-joined hex segments, e.g.
// "10000000.20000000".
func (p Path) String() string {
	if len(p) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, seg := range p {
		if i > 0 {
			sb.WriteByte('.')
		}
		s := strconv.FormatUint(uint64(seg), 16)
		for pad := 8 - len(s); pad > 0; pad-- {
			sb.WriteByte('0')
		}
		sb.WriteString(s)
	}
	return sb.String()
}

// ParsePath parses a dot-joined hex path. The empty string is the root.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return nil, nil
	}
	segs := strings.Split(s, ".")
	p := make(Path, len(segs))
	for i, seg := range segs {
		v, err := strconv.ParseUint(seg, 16, 32)
		if err != nil {
			return nil, errors.New("E003").WithDetail("segment %q: %v", seg, err)
		}
		p[i] = PositionID(v)
	}
	return p, nil
}

// Child returns a new path extended by one segment.
func (p Path) Child(pos PositionID) Path {
	child := make(Path, len(p)+1)
	copy(child, p)
	child[len(p)] = pos
	return child
}

// Parent returns the path with the last segment removed.
// The parent of the root path is the root path.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1]
}

// Equal reports whether two paths address the same slot.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the path.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	cp := make(Path, len(p))
	copy(cp, p)
	return cp
}
