package vdom

import "github.com/vango-dev/domafic/pkg/keypath"

// Message is an application-defined value produced by listeners and side
// effects and consumed by the update function.
type Message = any

// Kind is the node variant discriminator. The set of kinds is closed.
type Kind uint8

const (
	KindElement Kind = iota + 1 // <div>, <button>, etc.
	KindText                    // Plain text node
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	default:
		return "Unknown"
	}
}

// Value is a node's variant together with its content: the tag of an
// element or the text of a text node. Values are comparable with ==, and two
// nodes can only share a materialized counterpart when their Values are equal.
type Value struct {
	Kind Kind
	Tag  string // KindElement only
	Text string // KindText only
}

// ElementValue returns the Value of an element with the given tag.
func ElementValue(tag string) Value { return Value{Kind: KindElement, Tag: tag} }

// TextValue returns the Value of a text node with the given content.
func TextValue(content string) Value { return Value{Kind: KindText, Text: content} }

// String returns a short description such as <div> or "hello".
func (v Value) String() string {
	switch v.Kind {
	case KindElement:
		return "<" + v.Tag + ">"
	case KindText:
		return "\"" + v.Text + "\""
	default:
		return "<?>"
	}
}

// Node is anything that can be reconciled into the host document.
//
// A Node is also a one-item Nodes, so single nodes, slices of nodes and
// groups of mixed node types compose uniformly as children.
type Node interface {
	// Traverse visits the node itself, satisfying Nodes.
	Traverse(visit func(Node) error) error

	// Value returns the node's variant and content.
	Value() Value

	// Key returns the node's identity among its siblings, if it has one.
	Key() (keypath.Key, bool)

	// Attributes traverses the node's attributes in declared order.
	Attributes() Traversal[Attr]

	// Listeners traverses the node's event listeners in declared order.
	Listeners() Traversal[Listener]

	// Children traverses the node's children in declared order.
	Children() Nodes
}

// IsNil reports whether n is nil or a nil *Element.
func IsNil(n Node) bool {
	if n == nil {
		return true
	}
	e, ok := n.(*Element)
	return ok && e == nil
}

// Element is an element node built by El and the tag helpers.
type Element struct {
	tag       string
	key       keypath.Key
	keyed     bool
	attrs     []Attr
	listeners []Listener
	children  []Nodes
}

// Value implements Node.
func (e *Element) Value() Value { return ElementValue(e.tag) }

// Tag returns the element's tag name.
func (e *Element) Tag() string { return e.tag }

// Key implements Node.
func (e *Element) Key() (keypath.Key, bool) { return e.key, e.keyed }

// Attributes implements Node.
func (e *Element) Attributes() Traversal[Attr] { return Slice[Attr](e.attrs) }

// Listeners implements Node.
func (e *Element) Listeners() Traversal[Listener] { return Slice[Listener](e.listeners) }

// Children implements Node.
func (e *Element) Children() Nodes { return Group(e.children...) }

// Traverse implements Nodes by visiting the element itself. A nil element
// visits nothing.
func (e *Element) Traverse(visit func(Node) error) error {
	if e == nil {
		return nil
	}
	return visit(e)
}

// WithKey sets the element's key and returns the element.
func (e *Element) WithKey(k keypath.Key) *Element {
	e.key = k
	e.keyed = true
	return e
}

// TextNode is a text leaf.
type TextNode struct {
	content string
	key     keypath.Key
	keyed   bool
}

// Value implements Node.
func (t TextNode) Value() Value { return TextValue(t.content) }

// Content returns the text.
func (t TextNode) Content() string { return t.content }

// Key implements Node.
func (t TextNode) Key() (keypath.Key, bool) { return t.key, t.keyed }

// Attributes implements Node. Text nodes have none.
func (t TextNode) Attributes() Traversal[Attr] { return Empty[Attr]() }

// Listeners implements Node. Text nodes have none.
func (t TextNode) Listeners() Traversal[Listener] { return Empty[Listener]() }

// Children implements Node. Text nodes have none.
func (t TextNode) Children() Nodes { return Empty[Node]() }

// Traverse implements Nodes by visiting the text node itself.
func (t TextNode) Traverse(visit func(Node) error) error { return visit(t) }

// WithKey returns a copy of the text node carrying the key.
func (t TextNode) WithKey(k keypath.Key) TextNode {
	t.key = k
	t.keyed = true
	return t
}

// keyedNode overrides the key of an arbitrary Node.
type keyedNode struct {
	Node
	key keypath.Key
}

func (k keyedNode) Key() (keypath.Key, bool) { return k.key, true }

func (k keyedNode) Traverse(visit func(Node) error) error { return visit(k) }

// Keyed returns n with its key replaced by k. Use it to key nodes whose
// concrete type has no WithKey method.
func Keyed(k keypath.Key, n Node) Node {
	return keyedNode{Node: n, key: k}
}
