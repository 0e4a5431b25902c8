package reconcile

import (
	"github.com/presage-dev/presage/pkg/vtree"
)

// Diff compares two view trees and returns the patch list that
// transforms before into after when applied in order.
//
// Children are matched by position ID, never by index: patches stay
// valid when unrelated siblings are inserted or removed. A Null
// placeholder turning into content (or back) at the same position is a
// single ReplaceNode, which is what keeps sibling indices stable under
// conditional rendering.
//
// Both trees are validated first; a duplicate position ID among
// siblings is a structural error and aborts the diff.
func Diff(before, after *vtree.Node) ([]vtree.Patch, error) {
	if err := vtree.Validate(before); err != nil {
		return nil, err
	}
	if err := vtree.Validate(after); err != nil {
		return nil, err
	}

	var patches []vtree.Patch
	diffNode(before, after, nil, &patches)
	return patches, nil
}

// diffNode compares two nodes occupying the same slot (same position
// path). path addresses the node itself; nil is the root.
func diffNode(before, after *vtree.Node, path vtree.Path, patches *[]vtree.Patch) {
	// Identical subtrees produce nothing. This also guarantees that a
	// subtree which only moved is not re-diffed by its new parent walk.
	if vtree.Equal(before, after) {
		return
	}

	// Kind or tag change replaces the whole subtree. Null to non-Null
	// (and back) lands here by construction.
	if before.Kind != after.Kind || before.Tag != after.Tag {
		*patches = append(*patches, vtree.NewReplaceNodePatch(path, after))
		return
	}

	switch before.Kind {
	case vtree.KindText:
		if before.Text != after.Text {
			*patches = append(*patches, vtree.NewSetTextPatch(path, after.Text))
		}
	case vtree.KindNull:
		// Null to Null: nothing to do.
	case vtree.KindElement:
		diffAttrs(before, after, path, patches)
		diffChildren(before, after, path, patches)
	}
}

// diffAttrs emits SetAttribute/RemoveAttribute for actual differences only.
func diffAttrs(before, after *vtree.Node, path vtree.Path, patches *[]vtree.Patch) {
	for key, oldVal := range before.Attrs {
		newVal, ok := after.Attrs[key]
		if !ok {
			*patches = append(*patches, vtree.NewRemoveAttrPatch(path, key))
		} else if oldVal != newVal {
			*patches = append(*patches, vtree.NewSetAttrPatch(path, key, newVal))
		}
	}
	for key, newVal := range after.Attrs {
		if _, ok := before.Attrs[key]; !ok {
			*patches = append(*patches, vtree.NewSetAttrPatch(path, key, newVal))
		}
	}
}

// diffChildren matches children by position ID and emits removals,
// moves, and inserts so that sequential application reproduces after's
// child order. Indices are computed against a working copy of the
// child list that mirrors each emitted operation, so every index is the
// concrete index at its own apply time, not a logical list index.
func diffChildren(before, after *vtree.Node, parentPath vtree.Path, patches *[]vtree.Patch) {
	afterPos := make(map[vtree.PositionID]*vtree.Node, len(after.Children))
	for _, c := range after.Children {
		afterPos[c.Pos] = c
	}
	beforePos := make(map[vtree.PositionID]*vtree.Node, len(before.Children))
	for _, c := range before.Children {
		beforePos[c.Pos] = c
	}

	// Removals first; the working list starts as before's children
	// minus everything that is gone.
	working := make([]vtree.PositionID, 0, len(before.Children))
	for _, c := range before.Children {
		if _, kept := afterPos[c.Pos]; kept {
			working = append(working, c.Pos)
		} else {
			*patches = append(*patches, vtree.NewRemoveNodePatch(parentPath.Child(c.Pos)))
		}
	}

	// Walk after's children left to right. The prefix working[:i] is
	// final once index i has been processed.
	for i, ac := range after.Children {
		bc, existed := beforePos[ac.Pos]

		if !existed {
			// New child: insert at its concrete index.
			working = insertAt(working, i, ac.Pos)
			*patches = append(*patches, vtree.NewInsertNodePatch(parentPath, i, ac))
			continue
		}

		if working[i] != ac.Pos {
			// Same set, different order: one MoveNode per displaced child.
			working = moveTo(working, indexOf(working, ac.Pos), i)
			*patches = append(*patches, vtree.NewMoveNodePatch(parentPath.Child(ac.Pos), i))
		}

		diffNode(bc, ac, parentPath.Child(ac.Pos), patches)
	}
}

func indexOf(ids []vtree.PositionID, pos vtree.PositionID) int {
	for i, id := range ids {
		if id == pos {
			return i
		}
	}
	return -1
}

func insertAt(ids []vtree.PositionID, i int, pos vtree.PositionID) []vtree.PositionID {
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = pos
	return ids
}

func moveTo(ids []vtree.PositionID, from, to int) []vtree.PositionID {
	pos := ids[from]
	ids = append(ids[:from], ids[from+1:]...)
	return insertAt(ids, to, pos)
}
