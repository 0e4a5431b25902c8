package vtree

// Kind is the node type discriminator.
type Kind uint8

const (
	KindElement Kind = iota // <div>, <button>, etc.
	KindText                // Plain text run
	KindNull                // Placeholder for a conditionally-absent branch
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	case KindNull:
		return "Null"
	default:
		return "Unknown"
	}
}

// Node is one element or text run in a view tree.
//
// Nodes are immutable once created: a changed node is a new Node with
// the same position ID if it occupies the same slot, or a fresh ID if
// it was newly inserted. Null nodes occupy a slot so that sibling
// position IDs stay stable when a conditional branch renders nothing.
type Node struct {
	Kind     Kind
	Tag      string            // Element tag name (Element only)
	Attrs    map[string]string // Attributes (Element only), order irrelevant
	Text     string            // For KindText
	Children []*Node           // Ordered, order significant
	Pos      PositionID        // Stable position ID, assigned at creation
}

// Element creates an element node.
func Element(pos PositionID, tag string, attrs map[string]string, children ...*Node) *Node {
	return &Node{Kind: KindElement, Pos: pos, Tag: tag, Attrs: attrs, Children: children}
}

// Text creates a text node.
func Text(pos PositionID, text string) *Node {
	return &Node{Kind: KindText, Pos: pos, Text: text}
}

// Null creates a placeholder node for an absent conditional branch.
func Null(pos PositionID) *Node {
	return &Node{Kind: KindNull, Pos: pos}
}

// IsNull reports whether the node is a Null placeholder.
func (n *Node) IsNull() bool {
	return n != nil && n.Kind == KindNull
}

// Child returns the child with the given position ID, or nil.
func (n *Node) Child(pos PositionID) *Node {
	for _, c := range n.Children {
		if c != nil && c.Pos == pos {
			return c
		}
	}
	return nil
}

// ChildIndex returns the index of the child with the given position ID,
// or -1 if no such child exists.
func (n *Node) ChildIndex(pos PositionID) int {
	for i, c := range n.Children {
		if c != nil && c.Pos == pos {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := &Node{
		Kind: n.Kind,
		Tag:  n.Tag,
		Text: n.Text,
		Pos:  n.Pos,
	}
	if n.Attrs != nil {
		cp.Attrs = make(map[string]string, len(n.Attrs))
		for k, v := range n.Attrs {
			cp.Attrs[k] = v
		}
	}
	if n.Children != nil {
		cp.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			cp.Children[i] = c.Clone()
		}
	}
	return cp
}

// Equal reports deep structural, attribute, and text equality of two trees.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || a.Pos != b.Pos || a.Tag != b.Tag || a.Text != b.Text {
		return false
	}
	if len(a.Attrs) != len(b.Attrs) {
		return false
	}
	for k, v := range a.Attrs {
		if bv, ok := b.Attrs[k]; !ok || bv != v {
			return false
		}
	}
	if len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

// Size returns the number of nodes in the tree, Null placeholders included.
func (n *Node) Size() int {
	if n == nil {
		return 0
	}
	total := 1
	for _, c := range n.Children {
		total += c.Size()
	}
	return total
}
