package vtree

// Op is the type of patch operation.
type Op uint8

const (
	OpSetText     Op = 0x01 // Update text content
	OpSetAttr     Op = 0x02 // Set/update attribute
	OpRemoveAttr  Op = 0x03 // Remove attribute
	OpInsertNode  Op = 0x04 // Insert new node under path at Index
	OpRemoveNode  Op = 0x05 // Remove node at path
	OpMoveNode    Op = 0x06 // Move node at path to Index within its parent
	OpReplaceNode Op = 0x07 // Replace node at path
)

// String returns the string representation of the Op.
func (op Op) String() string {
	switch op {
	case OpSetText:
		return "SetText"
	case OpSetAttr:
		return "SetAttribute"
	case OpRemoveAttr:
		return "RemoveAttribute"
	case OpInsertNode:
		return "InsertNode"
	case OpRemoveNode:
		return "RemoveNode"
	case OpMoveNode:
		return "MoveNode"
	case OpReplaceNode:
		return "ReplaceNode"
	default:
		return "Unknown"
	}
}

// Patch is one mutation operation addressed by position path.
//
// Path addresses the target node, except for InsertNode where it
// addresses the parent and Index is the concrete child index at apply
// time. The position-path resolver converts paths to indices when
// applying, accounting for Null placeholders.
type Patch struct {
	Op    Op
	Path  Path
	Key   string // Attribute key (SetAttr/RemoveAttr)
	Value string // New text or attribute value
	Index int    // Child index (InsertNode/MoveNode)
	Node  *Node  // Payload (InsertNode/ReplaceNode)
}

// NewSetTextPatch creates a SetText patch.
func NewSetTextPatch(path Path, text string) Patch {
	return Patch{Op: OpSetText, Path: path, Value: text}
}

// NewSetAttrPatch creates a SetAttribute patch.
func NewSetAttrPatch(path Path, key, value string) Patch {
	return Patch{Op: OpSetAttr, Path: path, Key: key, Value: value}
}

// NewRemoveAttrPatch creates a RemoveAttribute patch.
func NewRemoveAttrPatch(path Path, key string) Patch {
	return Patch{Op: OpRemoveAttr, Path: path, Key: key}
}

// NewInsertNodePatch creates an InsertNode patch. Path addresses the
// parent; index is the concrete position in the parent's child list.
func NewInsertNodePatch(parent Path, index int, node *Node) Patch {
	return Patch{Op: OpInsertNode, Path: parent, Index: index, Node: node}
}

// NewRemoveNodePatch creates a RemoveNode patch.
func NewRemoveNodePatch(path Path) Patch {
	return Patch{Op: OpRemoveNode, Path: path}
}

// NewMoveNodePatch creates a MoveNode patch.
func NewMoveNodePatch(path Path, index int) Patch {
	return Patch{Op: OpMoveNode, Path: path, Index: index}
}

// NewReplaceNodePatch creates a ReplaceNode patch.
func NewReplaceNodePatch(path Path, node *Node) Patch {
	return Patch{Op: OpReplaceNode, Path: path, Node: node}
}

// PatchEqual reports structural and value equality of two patches.
func PatchEqual(a, b Patch) bool {
	if a.Op != b.Op || a.Key != b.Key || a.Value != b.Value || a.Index != b.Index {
		return false
	}
	if !a.Path.Equal(b.Path) {
		return false
	}
	return Equal(a.Node, b.Node)
}

// PatchesEqual reports equality of two patch lists, order included.
func PatchesEqual(a, b []Patch) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !PatchEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
