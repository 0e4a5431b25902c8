package main

import (
	"testing"

	"github.com/presage-dev/presage/pkg/reconcile"
	"github.com/presage-dev/presage/pkg/state"
	"github.com/presage-dev/presage/pkg/vtree"
)

func diffTrees(before, after *vtree.Node) ([]vtree.Patch, error) {
	return reconcile.Diff(before, after)
}

func TestStateRendererMirrorsChanges(t *testing.T) {
	root := vtree.Element(vtree.ChildPosition(0), "root", map[string]string{})
	r := stateRenderer{}

	next, err := r.Render(root, "Counter", []state.Change{
		{Component: "Counter", Key: "count", OldValue: float64(0), NewValue: float64(1)},
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if len(next.Children) != 1 {
		t.Fatalf("children = %d, want 1", len(next.Children))
	}
	child := next.Children[0]
	if child.Attrs["data-component"] != "Counter" || child.Attrs["data-count"] != "1" {
		t.Errorf("attrs = %v", child.Attrs)
	}
	if len(root.Children) != 0 {
		t.Error("Render must not mutate the current tree")
	}

	// Same component again updates in place; a second component gets
	// its own child.
	next2, err := r.Render(next, "Counter", []state.Change{
		{Component: "Counter", Key: "count", OldValue: float64(1), NewValue: float64(2)},
	})
	if err != nil {
		t.Fatal(err)
	}
	next3, err := r.Render(next2, "Modal", []state.Change{
		{Component: "Modal", Key: "open", OldValue: false, NewValue: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(next3.Children) != 2 {
		t.Fatalf("children = %d, want 2", len(next3.Children))
	}
	if next3.Children[0].Attrs["data-count"] != "2" {
		t.Errorf("count attr = %q", next3.Children[0].Attrs["data-count"])
	}
	if next3.Children[1].Attrs["data-component"] != "Modal" {
		t.Errorf("second child attrs = %v", next3.Children[1].Attrs)
	}

	// Trees produced this way must stay structurally valid.
	if err := vtree.Validate(next3); err != nil {
		t.Errorf("rendered tree invalid: %v", err)
	}

	patches, err := diffTrees(next2, next3)
	if err != nil {
		t.Fatal(err)
	}
	if len(patches) == 0 {
		t.Error("adding a component should produce patches")
	}
}
