// Package server serves domafic programs to browsers.
//
// A Server answers three kinds of requests:
//   - GET / returns a page with an empty root element and the thin client
//   - GET /_domafic/client.js returns the thin client
//   - the WebSocket endpoint (default /ws) runs one program per connection
//
// Each connection gets its own wshost.Document and its own program, so state
// is never shared between browser tabs. The program's HTTP effects run on
// the server. When MetricsPath is set the server also exposes Prometheus
// metrics and installs the metrics middleware on every program.
//
//	srv := server.New(server.DefaultConfig(), todomvc.Run)
//	err := srv.ListenAndServe(ctx)
//
// Server implements http.Handler and can be mounted in another router:
//
//	r := chi.NewRouter()
//	r.Mount("/todo", srv)
package server
