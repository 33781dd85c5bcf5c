// Package reconcile applies declared vdom trees to a host document.
//
// A Reconciler keeps a materialized tree of Nodes mirroring what it last put
// on the host. Each pass walks the new tree depth first and, for every
// sibling, scans the not yet consumed materialized siblings for the first one
// with the same key path and value:
//
//   - on a match the host node is reused: listeners and attributes are
//     diffed, children are reconciled recursively, and the node is moved into
//     place if it was found further along;
//   - otherwise a new host subtree is built and inserted at the cursor.
//
// Materialized siblings left past the cursor are destroyed in order.
//
// Listener identity is the event name plus the listener's ordinal among the
// element's listeners for that event, so a closure rebuilt on every render
// keeps its host registration. Host
// callbacks carry a Token only; the owner resolves it with Resolve against
// the handler declared by the latest pass.
//
// Unkeyed siblings with the same value are matched by position. Key any
// content that can be reordered.
package reconcile
