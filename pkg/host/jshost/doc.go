// Package jshost implements a host document on the browser DOM for
// programs compiled with GOOS=js GOARCH=wasm.
//
// Handles are js.Value nodes. Each attached listener owns a js.Func that is
// released when the listener is detached.
//
//	doc := jshost.New()
//	err := app.Run(ctx, doc, "#app", update, view, State{})
package jshost
