// Package app drives a domafic program: it owns the application state, runs
// one message cycle at a time and keeps the host document in step with the
// rendered tree.
//
// A cycle takes the next queued message or host event, resolves events to
// the message of the listener that produced them, applies the message with
// the update function, renders the new state and reconciles the result into
// the host. Messages sent while a cycle runs are queued and processed in
// FIFO order once it completes; cycles never nest.
//
//	p := app.New(doc, update, view, State{})
//	if err := p.Start("#app"); err != nil {
//		return err
//	}
//	return p.Run(ctx)
//
// Any failure inside a cycle stops the program. Later calls return an error
// wrapping ErrStopped and the original cause.
//
// Middleware wraps every cycle and sees its kind, message and outcome. See
// package middleware for tracing and metrics.
package app
