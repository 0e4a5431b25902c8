package vtree

import (
	"testing"

	"github.com/presage-dev/presage/internal/errors"
)

func sampleTree() *Node {
	return Element(ChildPosition(0), "div", map[string]string{"class": "root"},
		Text(ChildPosition(0), "hello"),
		Element(ChildPosition(1), "span", map[string]string{"id": "s"}),
		Null(ChildPosition(2)),
	)
}

func TestResolve(t *testing.T) {
	root := sampleTree()

	n, err := Resolve(root, Path{ChildPosition(1)})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if n.Tag != "span" {
		t.Errorf("Tag = %q, want span", n.Tag)
	}

	if _, err := Resolve(root, Path{PositionID(42)}); err == nil {
		t.Error("expected error for unknown path")
	}
}

func TestResolveRoot(t *testing.T) {
	root := sampleTree()
	n, err := Resolve(root, nil)
	if err != nil || n != root {
		t.Errorf("Resolve(root, nil) = %v, %v", n, err)
	}
}

func TestApplySetText(t *testing.T) {
	root := sampleTree()
	out, err := Apply(root, []Patch{NewSetTextPatch(Path{ChildPosition(0)}, "bye")})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if out.Children[0].Text != "bye" {
		t.Errorf("Text = %q, want bye", out.Children[0].Text)
	}
	if root.Children[0].Text != "hello" {
		t.Error("Apply mutated the input tree")
	}
}

func TestApplySetTextAgainstElement(t *testing.T) {
	root := sampleTree()
	_, err := Apply(root, []Patch{NewSetTextPatch(Path{ChildPosition(1)}, "x")})
	if err == nil {
		t.Fatal("expected type mismatch error")
	}
	if !errors.IsStructural(err) {
		t.Error("patch type mismatch should be structural")
	}
}

func TestApplyAttrs(t *testing.T) {
	root := sampleTree()
	out, err := Apply(root, []Patch{
		NewSetAttrPatch(Path{ChildPosition(1)}, "id", "t"),
		NewSetAttrPatch(Path{ChildPosition(1)}, "role", "button"),
		NewRemoveAttrPatch(nil, "class"),
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	span := out.Children[1]
	if span.Attrs["id"] != "t" || span.Attrs["role"] != "button" {
		t.Errorf("Attrs = %v", span.Attrs)
	}
	if _, ok := out.Attrs["class"]; ok {
		t.Error("class attribute should be removed from root")
	}
}

func TestApplyInsertRemove(t *testing.T) {
	root := sampleTree()
	newNode := Element(ChildPosition(5), "p", nil)

	out, err := Apply(root, []Patch{NewInsertNodePatch(nil, 1, newNode)})
	if err != nil {
		t.Fatalf("Apply insert failed: %v", err)
	}
	if len(out.Children) != 4 || out.Children[1].Tag != "p" {
		t.Fatalf("insert misplaced: %v", out.Children)
	}

	out, err = Apply(out, []Patch{NewRemoveNodePatch(Path{ChildPosition(5)})})
	if err != nil {
		t.Fatalf("Apply remove failed: %v", err)
	}
	if len(out.Children) != 3 {
		t.Errorf("children = %d, want 3", len(out.Children))
	}
}

func TestApplyInsertOutOfRange(t *testing.T) {
	root := sampleTree()
	_, err := Apply(root, []Patch{NewInsertNodePatch(nil, 9, Text(ChildPosition(9), "x"))})
	if err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestApplyMove(t *testing.T) {
	root := sampleTree()
	out, err := Apply(root, []Patch{NewMoveNodePatch(Path{ChildPosition(1)}, 0)})
	if err != nil {
		t.Fatalf("Apply move failed: %v", err)
	}
	if out.Children[0].Tag != "span" {
		t.Errorf("child 0 = %v, want span", out.Children[0])
	}
	if out.Children[1].Kind != KindText {
		t.Errorf("child 1 kind = %v, want Text", out.Children[1].Kind)
	}
}

func TestApplyReplaceNullSlot(t *testing.T) {
	root := sampleTree()
	replacement := Element(ChildPosition(2), "footer", nil)

	out, err := Apply(root, []Patch{NewReplaceNodePatch(Path{ChildPosition(2)}, replacement)})
	if err != nil {
		t.Fatalf("Apply replace failed: %v", err)
	}
	if out.Children[2].Tag != "footer" {
		t.Errorf("replacement missing: %v", out.Children[2])
	}
	// Sibling indices are untouched by the conditional branch filling in.
	if out.Children[1].Tag != "span" {
		t.Error("replace shifted sibling positions")
	}
}

func TestApplyReplaceRoot(t *testing.T) {
	root := sampleTree()
	out, err := Apply(root, []Patch{NewReplaceNodePatch(nil, Text(ChildPosition(0), "gone"))})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if out.Kind != KindText || out.Text != "gone" {
		t.Errorf("root = %v", out)
	}
}

func TestValidateDuplicateSiblings(t *testing.T) {
	bad := Element(ChildPosition(0), "div", nil,
		Text(ChildPosition(0), "a"),
		Text(ChildPosition(0), "b"),
	)
	err := Validate(bad)
	if err == nil {
		t.Fatal("expected duplicate position error")
	}
	if !errors.IsStructural(err) {
		t.Error("duplicate positions should be structural")
	}

	if err := Validate(sampleTree()); err != nil {
		t.Errorf("valid tree rejected: %v", err)
	}
}

func TestValidateNilChild(t *testing.T) {
	bad := Element(ChildPosition(0), "div", nil,
		Text(ChildPosition(0), "a"),
	)
	bad.Children = append(bad.Children, nil)

	err := Validate(bad)
	if err == nil {
		t.Fatal("expected nil child error")
	}
	if !errors.IsStructural(err) {
		t.Error("nil child should be structural")
	}

	// Nested nil slots are caught too.
	deep := sampleTree()
	deep.Children[1].Children = []*Node{nil}
	if err := Validate(deep); err == nil {
		t.Error("expected nested nil child error")
	}
}

func TestPatchesEqual(t *testing.T) {
	a := []Patch{NewSetTextPatch(Path{ChildPosition(0)}, "x")}
	b := []Patch{NewSetTextPatch(Path{ChildPosition(0)}, "x")}
	c := []Patch{NewSetTextPatch(Path{ChildPosition(0)}, "y")}

	if !PatchesEqual(a, b) {
		t.Error("identical patch lists should be equal")
	}
	if PatchesEqual(a, c) {
		t.Error("different values should not be equal")
	}
	if PatchesEqual(a, nil) {
		t.Error("different lengths should not be equal")
	}
}
