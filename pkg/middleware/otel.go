package middleware

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/domafic/pkg/app"
)

// Default tracer name for domafic programs.
const defaultTracerName = "domafic"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "domafic").
	TracerName string

	// Tracer overrides the tracer from the global provider.
	Tracer trace.Tracer

	// IncludeOrigin adds the key path of the originating listener.
	// Enabled by default.
	IncludeOrigin bool

	// Filter determines which cycles to trace.
	// If nil, all cycles are traced.
	Filter func(c *app.Cycle) bool

	// AttributeExtractor extracts custom attributes from the cycle.
	AttributeExtractor func(c *app.Cycle) []attribute.KeyValue
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracer sets the tracer directly.
func WithTracer(t trace.Tracer) OTelOption {
	return func(c *OTelConfig) {
		c.Tracer = t
	}
}

// WithIncludeOrigin enables/disables the origin key path attribute.
func WithIncludeOrigin(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeOrigin = include
	}
}

// WithCycleFilter sets a filter function for cycles.
func WithCycleFilter(filter func(c *app.Cycle) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(c *app.Cycle) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName:    defaultTracerName,
		IncludeOrigin: true,
	}
}

// OpenTelemetry returns middleware that traces every cycle.
//
// Each span is named after the cycle kind ("domafic.event") and carries the
// message type, the queue depth and, once the cycle completes, the
// reconciliation counts. Failures are recorded with codes.Error. The span's
// context is installed on the cycle so later middleware can reach it with
// SpanFromCycle.
//
// The tracer comes from the global provider unless WithTracer is given.
// Configure the provider before starting programs:
//
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) app.Middleware {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}
	tracer := config.Tracer
	if tracer == nil {
		tracer = otel.Tracer(config.TracerName)
	}

	return app.MiddlewareFunc(func(c *app.Cycle, next func() error) error {
		if config.Filter != nil && !config.Filter(c) {
			return next()
		}

		attrs := []attribute.KeyValue{
			attribute.String("domafic.kind", c.Kind.String()),
			attribute.Int("domafic.pending", c.Pending),
		}
		if c.Kind == app.CycleEvent {
			attrs = append(attrs, attribute.String("domafic.event_type", c.Event.Type))
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(c)...)
		}

		ctx, span := tracer.Start(
			c.Context(),
			fmt.Sprintf("domafic.%s", c.Kind),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attrs...),
		)
		defer span.End()
		c.SetContext(ctx)

		err := next()

		// The message of an event is only known after resolution.
		span.SetAttributes(
			attribute.String("domafic.msg_type", c.MsgType()),
			attribute.String("domafic.status", c.Status.String()),
			attribute.Int("domafic.created", c.Stats.Created),
			attribute.Int("domafic.reused", c.Stats.Reused),
			attribute.Int("domafic.moved", c.Stats.Moved),
			attribute.Int("domafic.removed", c.Stats.Removed),
			attribute.Int("domafic.mutations", c.Stats.Mutations()),
		)
		if config.IncludeOrigin && !c.Origin.IsEmpty() {
			span.SetAttributes(attribute.String("domafic.origin", c.Origin.String()))
		}

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	})
}

// SpanFromCycle returns the span installed by OpenTelemetry, or a no-op span.
func SpanFromCycle(c *app.Cycle) trace.Span {
	return trace.SpanFromContext(c.Context())
}

// TraceContext returns the cycle's context for propagation to external
// calls.
func TraceContext(c *app.Cycle) context.Context {
	return c.Context()
}
