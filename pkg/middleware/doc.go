// Package middleware provides observability middleware for domafic programs.
//
// This package includes:
//   - OpenTelemetry tracing of every message cycle
//   - Prometheus metrics about cycles, host mutations and dropped events
//
// Both are app.Middleware and are installed with app.WithMiddleware. The
// first middleware given is the outermost, so put tracing first when the
// metrics middleware should run inside the span.
//
// # OpenTelemetry Middleware
//
// Each cycle gets a span named after its kind ("domafic.init",
// "domafic.message" or "domafic.event"). Spans carry the message type, the
// key path of the originating listener and the reconciliation counts.
//
//	p := app.New(doc, update, render, initial,
//	    app.WithMiddleware(
//	        middleware.OpenTelemetry(
//	            middleware.WithTracerName("todo"),
//	            middleware.WithCycleFilter(func(c *app.Cycle) bool {
//	                return c.Kind != app.CycleInit
//	            }),
//	        ),
//	    ),
//	)
//
// # Prometheus Metrics
//
// The Prometheus middleware collects:
//   - domafic_cycles_total: Cycles by kind and status
//   - domafic_cycle_duration_seconds: Cycle duration histogram
//   - domafic_host_mutations_total: Host changes by op
//   - domafic_events_dropped_total: Events for listeners that no longer exist
//   - domafic_queue_depth: Messages waiting behind the last cycle
//
// Collectors are registered once per registry, so a server may call
// Prometheus for every connection:
//
//	metrics := middleware.Prometheus()
//	http.Handle("/metrics", promhttp.Handler())
package middleware
