package middleware

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vango-dev/domafic/pkg/app"
	"github.com/vango-dev/domafic/pkg/keypath"
	"github.com/vango-dev/domafic/pkg/vdom"
)

// recordingSpan captures what the middleware writes to a span.
type recordingSpan struct {
	noop.Span
	name  string
	attrs map[attribute.Key]attribute.Value
	code  codes.Code
	errs  []error
	ended bool
}

func (s *recordingSpan) SetAttributes(kv ...attribute.KeyValue) {
	for _, a := range kv {
		s.attrs[a.Key] = a.Value
	}
}

func (s *recordingSpan) SetStatus(code codes.Code, _ string) { s.code = code }

func (s *recordingSpan) RecordError(err error, _ ...trace.EventOption) {
	s.errs = append(s.errs, err)
}

func (s *recordingSpan) End(...trace.SpanEndOption) { s.ended = true }

type recordingTracer struct {
	noop.Tracer
	spans []*recordingSpan
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	s := &recordingSpan{name: name, attrs: map[attribute.Key]attribute.Value{}}
	cfg := trace.NewSpanStartConfig(opts...)
	s.SetAttributes(cfg.Attributes()...)
	t.spans = append(t.spans, s)
	return trace.ContextWithSpan(ctx, s), s
}

func TestOpenTelemetryMiddleware_RecordsCycle(t *testing.T) {
	tracer := &recordingTracer{}
	mw := OpenTelemetry(
		WithTracer(tracer),
		WithAttributeExtractor(func(*app.Cycle) []attribute.KeyValue {
			return []attribute.KeyValue{attribute.String("test.attr", "ok")}
		}),
	)

	c := &app.Cycle{
		Kind:    app.CycleEvent,
		Event:   vdom.Event{Type: "click"},
		Pending: 1,
	}
	err := mw.Handle(c, func() error {
		if _, ok := SpanFromCycle(c).(*recordingSpan); !ok {
			t.Fatal("expected SpanFromCycle to return the cycle span during execution")
		}
		c.Msg = "inc"
		c.Origin = keypath.Path{}.MustPush("a")
		c.Status = app.StatusOK
		c.Stats.Created = 2
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(tracer.spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(tracer.spans))
	}
	s := tracer.spans[0]
	if s.name != "domafic.event" {
		t.Errorf("span name = %q, want domafic.event", s.name)
	}
	if !s.ended {
		t.Error("span was not ended")
	}
	if s.code != codes.Ok {
		t.Errorf("status = %v, want Ok", s.code)
	}

	want := map[attribute.Key]string{
		"domafic.kind":       "event",
		"domafic.event_type": "click",
		"domafic.msg_type":   "string",
		"domafic.status":     "ok",
		"domafic.origin":     c.Origin.String(),
		"test.attr":          "ok",
	}
	for k, v := range want {
		if got := s.attrs[k].Emit(); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if got := s.attrs["domafic.created"].AsInt64(); got != 2 {
		t.Errorf("domafic.created = %d, want 2", got)
	}
	if got := s.attrs["domafic.pending"].AsInt64(); got != 1 {
		t.Errorf("domafic.pending = %d, want 1", got)
	}

	if SpanFromCycle(c) != trace.Span(s) {
		t.Error("expected the span to stay on the cycle context after the cycle")
	}
	if TraceContext(c) != c.Context() {
		t.Error("expected TraceContext to return the cycle context")
	}
}

func TestOpenTelemetryMiddleware_ErrorSetsStatus(t *testing.T) {
	tracer := &recordingTracer{}
	mw := OpenTelemetry(WithTracer(tracer), WithIncludeOrigin(false))
	wantErr := errors.New("boom")

	c := &app.Cycle{Kind: app.CycleMessage, Origin: keypath.Path{}.MustPush("x")}
	err := mw.Handle(c, func() error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}

	s := tracer.spans[0]
	if s.code != codes.Error {
		t.Errorf("status = %v, want Error", s.code)
	}
	if len(s.errs) != 1 || !errors.Is(s.errs[0], wantErr) {
		t.Errorf("recorded errors = %v", s.errs)
	}
	if _, ok := s.attrs["domafic.origin"]; ok {
		t.Error("origin recorded with WithIncludeOrigin(false)")
	}
}

func TestOpenTelemetryMiddleware_FilterSkipsTracing(t *testing.T) {
	tracer := &recordingTracer{}
	mw := OpenTelemetry(
		WithTracer(tracer),
		WithCycleFilter(func(c *app.Cycle) bool { return c.Kind != app.CycleInit }),
	)

	called := false
	c := &app.Cycle{Kind: app.CycleInit}
	if err := mw.Handle(c, func() error { called = true; return nil }); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Fatal("next was not called")
	}
	if len(tracer.spans) != 0 {
		t.Fatalf("spans = %d, want 0", len(tracer.spans))
	}
}

func TestOpenTelemetryConfig(t *testing.T) {
	config := defaultOTelConfig()
	if config.TracerName != "domafic" {
		t.Errorf("TracerName = %q, want domafic", config.TracerName)
	}
	if !config.IncludeOrigin {
		t.Error("IncludeOrigin should default to true")
	}

	WithTracerName("todo")(&config)
	if config.TracerName != "todo" {
		t.Errorf("TracerName = %q, want todo", config.TracerName)
	}
}

func TestSpanFromCycle_NoSpan(t *testing.T) {
	span := SpanFromCycle(&app.Cycle{})
	if span.SpanContext().IsValid() {
		t.Fatal("expected an invalid span context outside a traced cycle")
	}
}
