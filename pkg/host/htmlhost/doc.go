// Package htmlhost implements host.Document on an in-memory HTML tree from
// golang.org/x/net/html.
//
// It backs the replay command and the reconciler tests: listeners are kept
// in a side table and fired with Dispatch, elements are located with simple
// compound selectors, and the resulting document can be written out with
// Render for inspection.
package htmlhost
