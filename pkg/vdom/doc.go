// Package vdom provides the declarative node model reconciled by domafic.
//
// A render function describes the UI as a tree of Nodes. Each Node exposes
// its variant (element tag or text content), an optional key, and three
// traversals: attributes, listeners and children. The reconciler walks those
// traversals and patches the host document to match.
//
// # Core Types
//
// Node is the interface every node-like value implements. Element and
// TextNode are the built-in implementations; Keyed overrides the key of any
// Node. Attr pairs a key with an AttrValue (a string or a bool). Listener
// binds an event name to a Handler that turns an Event into a Message.
//
// # Element API
//
// Elements are created using variadic factory functions:
//
//	Div(Class("card"), ID("main"),
//	    H1("Title"),
//	    Ul(Map(items, renderItem)),
//	    Maybe(showFooter, Footer("done")),
//	    OnClick(func(Event) Message { return Clicked{} }),
//	)
//
// # Traversals
//
// Children are a Traversal[Node] (aliased as Nodes). A single Node is a
// one-item traversal, Slice wraps a slice, Group concatenates traversals of
// different shapes, Maybe and Optional express conditional children, and Map
// renders a list lazily. Every traversal visits in a fixed order and stops at
// the first error, which Fold and Collect propagate to their caller.
package vdom
