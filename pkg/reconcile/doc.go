// Package reconcile computes minimal patch lists between view-tree
// snapshots, matching children by stable position ID so that the
// emitted patches survive unrelated sibling edits.
package reconcile
