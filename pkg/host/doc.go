// Package host defines the document surface the reconciler mutates.
//
// The reconciler only ever talks to a Surface: it creates elements and text
// nodes, inserts, moves and removes them, sets and removes attributes, and
// attaches and detaches listeners. Concrete bindings live in subpackages:
//
//   - htmlhost: an in-process document built on golang.org/x/net/html
//   - wshost: a remote browser document driven over a WebSocket
//   - jshost: the browser's own document, for js/wasm builds
//
// Recorder wraps any Surface and logs every call, which is how tests assert
// on the exact mutations a reconciliation pass performed.
package host
