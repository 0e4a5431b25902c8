package vtree

import "github.com/presage-dev/presage/internal/errors"

// Resolve walks a position path from root and returns the addressed
// node. It is idempotent and side-effect free: the same path against
// the same tree always yields the same node, and Null placeholders
// participate in resolution like any other child.
func Resolve(root *Node, path Path) (*Node, error) {
	n := root
	for _, pos := range path {
		if n == nil {
			break
		}
		n = n.Child(pos)
	}
	if n == nil {
		return nil, errors.New("E002").WithDetail("path %q", path.String())
	}
	return n, nil
}

// Apply applies a patch list in order to a copy of root and returns the
// mutated tree. The input tree is never modified. A patch list produced
// by the reconciler yields a tree equal to the reconciler's "after"
// argument.
func Apply(root *Node, patches []Patch) (*Node, error) {
	out := root.Clone()
	for i := range patches {
		next, err := applyOne(out, &patches[i])
		if err != nil {
			return nil, err
		}
		out = next
	}
	return out, nil
}

func applyOne(root *Node, p *Patch) (*Node, error) {
	switch p.Op {
	case OpSetText:
		target, err := Resolve(root, p.Path)
		if err != nil {
			return nil, err
		}
		if target.Kind != KindText {
			return nil, errors.New("E004").WithDetail("SetText against %s at %q", target.Kind, p.Path.String())
		}
		target.Text = p.Value
		return root, nil

	case OpSetAttr:
		target, err := Resolve(root, p.Path)
		if err != nil {
			return nil, err
		}
		if target.Kind != KindElement {
			return nil, errors.New("E004").WithDetail("SetAttribute against %s at %q", target.Kind, p.Path.String())
		}
		if target.Attrs == nil {
			target.Attrs = make(map[string]string, 1)
		}
		target.Attrs[p.Key] = p.Value
		return root, nil

	case OpRemoveAttr:
		target, err := Resolve(root, p.Path)
		if err != nil {
			return nil, err
		}
		if target.Kind != KindElement {
			return nil, errors.New("E004").WithDetail("RemoveAttribute against %s at %q", target.Kind, p.Path.String())
		}
		delete(target.Attrs, p.Key)
		return root, nil

	case OpInsertNode:
		parent, err := Resolve(root, p.Path)
		if err != nil {
			return nil, err
		}
		if p.Index < 0 || p.Index > len(parent.Children) {
			return nil, errors.New("E005").WithDetail("index %d of %d at %q", p.Index, len(parent.Children), p.Path.String())
		}
		node := p.Node.Clone()
		parent.Children = append(parent.Children, nil)
		copy(parent.Children[p.Index+1:], parent.Children[p.Index:])
		parent.Children[p.Index] = node
		return root, nil

	case OpRemoveNode:
		if len(p.Path) == 0 {
			return nil, errors.New("E004").WithDetail("RemoveNode against the root")
		}
		parent, err := Resolve(root, p.Path.Parent())
		if err != nil {
			return nil, err
		}
		idx := parent.ChildIndex(p.Path[len(p.Path)-1])
		if idx < 0 {
			return nil, errors.New("E002").WithDetail("path %q", p.Path.String())
		}
		parent.Children = append(parent.Children[:idx], parent.Children[idx+1:]...)
		return root, nil

	case OpMoveNode:
		if len(p.Path) == 0 {
			return nil, errors.New("E004").WithDetail("MoveNode against the root")
		}
		parent, err := Resolve(root, p.Path.Parent())
		if err != nil {
			return nil, err
		}
		idx := parent.ChildIndex(p.Path[len(p.Path)-1])
		if idx < 0 {
			return nil, errors.New("E002").WithDetail("path %q", p.Path.String())
		}
		if p.Index < 0 || p.Index >= len(parent.Children) {
			return nil, errors.New("E005").WithDetail("index %d of %d at %q", p.Index, len(parent.Children), p.Path.String())
		}
		node := parent.Children[idx]
		parent.Children = append(parent.Children[:idx], parent.Children[idx+1:]...)
		parent.Children = append(parent.Children, nil)
		copy(parent.Children[p.Index+1:], parent.Children[p.Index:])
		parent.Children[p.Index] = node
		return root, nil

	case OpReplaceNode:
		if len(p.Path) == 0 {
			return p.Node.Clone(), nil
		}
		parent, err := Resolve(root, p.Path.Parent())
		if err != nil {
			return nil, err
		}
		idx := parent.ChildIndex(p.Path[len(p.Path)-1])
		if idx < 0 {
			return nil, errors.New("E002").WithDetail("path %q", p.Path.String())
		}
		parent.Children[idx] = p.Node.Clone()
		return root, nil

	default:
		return nil, errors.New("E032").WithDetail("op 0x%02x", uint8(p.Op))
	}
}
