package vtree

import "github.com/presage-dev/presage/internal/errors"

// Validate checks structural invariants of the tree: no duplicate
// position ID within a sibling run, and no nil child slots (an absent
// child is a Null node, never nil). Both are programmer errors in the
// upstream tree producer and are reported rather than silently
// resolved.
func Validate(root *Node) error {
	if root == nil {
		return nil
	}
	return validateNode(root, nil)
}

func validateNode(n *Node, path Path) error {
	seen := make(map[PositionID]bool, len(n.Children))
	for i, c := range n.Children {
		if c == nil {
			return errors.New("E007").WithDetail("child %d under %q is nil", i, path.String())
		}
		if seen[c.Pos] {
			return errors.New("E001").WithDetail("position %08x repeats under %q", uint32(c.Pos), path.String())
		}
		seen[c.Pos] = true
	}
	for _, c := range n.Children {
		if err := validateNode(c, path.Child(c.Pos)); err != nil {
			return err
		}
	}
	return nil
}
