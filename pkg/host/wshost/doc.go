// Package wshost implements a host document that lives in a browser on the
// other end of a WebSocket connection.
//
// The server keeps a shadow of the client's node structure so that index
// errors are caught before anything is sent. Each reconciliation pass is
// sent as one JSON OpsFrame:
//
//	{"ops":[{"op":"create","id":2,"tag":"li"},{"op":"insert","parent":1,"id":2}]}
//
// The client answers with one EventFrame per fired listener:
//
//	{"listener":3,"event":{"type":"click","clientX":10,"clientY":4}}
//
// Handles are uint32 IDs allocated by the server and never reused, so a
// frame that races with a detach refers to a listener that no longer exists
// and is dropped.
package wshost
