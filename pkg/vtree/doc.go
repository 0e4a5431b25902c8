// Package vtree defines the shared view-tree data model: nodes with
// stable gap-allocated position IDs, position paths, and the patch
// operations that mutate a tree.
//
// A position path uniquely and durably identifies a node across
// structural edits that do not touch it. Inserting or removing an
// unrelated sibling never renumbers existing IDs; Null placeholder
// nodes keep conditional slots occupied so indices derived from paths
// remain stable.
package vtree
