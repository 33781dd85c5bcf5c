// Package keypath implements the bounded key stack that identifies a node
// across renders.
//
// A node's Path is its parent's Path with the node's own key pushed on top;
// unkeyed nodes inherit the parent's Path unchanged. Combined with the
// node's kind and content, the Path is what the reconciler matches on.
//
// Unkeyed siblings all share the same Path, so among them identity reduces
// to scan position. Lists that can be reordered or filtered should key each
// item by a stable id rather than by its index.
package keypath
