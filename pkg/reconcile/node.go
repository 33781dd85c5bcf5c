package reconcile

import (
	"github.com/vango-dev/domafic/pkg/host"
	"github.com/vango-dev/domafic/pkg/keypath"
	"github.com/vango-dev/domafic/pkg/vdom"
)

// Node is the live, host-bound counterpart of a previously reconciled
// vdom.Node. Nodes are owned by the Reconciler that created them and must
// not be modified by callers.
type Node struct {
	path      keypath.Path
	value     vdom.Value
	handle    host.Handle
	attrs     []vdom.Attr
	listeners []attachment
	children  []*Node
}

// attachment is a listener currently attached on the host.
type attachment struct {
	id     vdom.ListenerID
	token  Token
	handle host.ListenerHandle
}

// Path returns the key path the node was matched under.
func (n *Node) Path() keypath.Path { return n.path }

// Value returns the node's variant and content. The root has a zero Value.
func (n *Node) Value() vdom.Value { return n.value }

// Handle returns the host handle of the node.
func (n *Node) Handle() host.Handle { return n.handle }

// Len returns the number of materialized children.
func (n *Node) Len() int { return len(n.children) }

// Child returns the i'th materialized child.
func (n *Node) Child(i int) *Node { return n.children[i] }

// Children returns a copy of the materialized children.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// Attrs returns a copy of the attributes currently set on the host.
func (n *Node) Attrs() []vdom.Attr {
	out := make([]vdom.Attr, len(n.attrs))
	copy(out, n.attrs)
	return out
}

// Listeners returns the identities of the attached listeners, in the order
// they were last declared.
func (n *Node) Listeners() []vdom.ListenerID {
	out := make([]vdom.ListenerID, len(n.listeners))
	for i, l := range n.listeners {
		out[i] = l.id
	}
	return out
}

// Tokens returns the dispatch tokens of the attached listeners.
func (n *Node) Tokens() []Token {
	out := make([]Token, len(n.listeners))
	for i, l := range n.listeners {
		out[i] = l.token
	}
	return out
}

// matches reports whether n can stand for a new node with the given
// identity.
func (n *Node) matches(path keypath.Path, value vdom.Value) bool {
	return n.path == path && n.value == value
}

// insertChild splices c into the children at index i.
func (n *Node) insertChild(i int, c *Node) {
	n.children = append(n.children, nil)
	copy(n.children[i+1:], n.children[i:])
	n.children[i] = c
}

// moveChild splices the child at from to index to, shifting the children
// in between.
func (n *Node) moveChild(from, to int) {
	c := n.children[from]
	if from > to {
		copy(n.children[to+1:from+1], n.children[to:from])
	} else {
		copy(n.children[from:to], n.children[from+1:to+1])
	}
	n.children[to] = c
}
