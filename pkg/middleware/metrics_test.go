package middleware

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	domerrors "github.com/vango-dev/domafic/internal/errors"
	"github.com/vango-dev/domafic/pkg/app"
	"github.com/vango-dev/domafic/pkg/effect"
	"github.com/vango-dev/domafic/pkg/host/htmlhost"
	"github.com/vango-dev/domafic/pkg/keypath"
	"github.com/vango-dev/domafic/pkg/reconcile"
	"github.com/vango-dev/domafic/pkg/vdom"
)

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func metricGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	if m.Gauge == nil {
		t.Fatal("expected gauge metric to have Gauge field")
	}
	return m.GetGauge().GetValue()
}

func metricHistogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}

func TestPrometheusMiddleware_RecordsCycles(t *testing.T) {
	t.Run("ok cycle records status, duration and mutations", func(t *testing.T) {
		m := Prometheus(WithRegistry(prometheus.NewRegistry()))
		c := &app.Cycle{Kind: app.CycleMessage, Pending: 2}

		err := m.Handle(c, func() error {
			c.Status = app.StatusOK
			c.Stats = reconcile.Stats{Created: 2, Moved: 1, AttrsSet: 3}
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := metricCounterValue(t, m.cyclesTotal.WithLabelValues("message", "ok")); got != 1 {
			t.Fatalf("cycles_total(message,ok)=%v, want 1", got)
		}
		if got := metricHistogramCount(t, m.cycleDuration.WithLabelValues("message")); got != 1 {
			t.Fatalf("cycle_duration_seconds count=%v, want 1", got)
		}
		if got := metricGaugeValue(t, m.queueDepth); got != 2 {
			t.Fatalf("queue_depth=%v, want 2", got)
		}
		for op, want := range map[string]float64{"created": 2, "moved": 1, "attrs_set": 3} {
			if got := metricCounterValue(t, m.hostMutations.WithLabelValues(op)); got != want {
				t.Errorf("host_mutations_total(%s)=%v, want %v", op, got, want)
			}
		}
		if got := metricCounterValue(t, m.hostMutations.WithLabelValues("removed")); got != 0 {
			t.Errorf("host_mutations_total(removed)=%v, want 0", got)
		}
	})

	t.Run("dropped event increments dropped counter", func(t *testing.T) {
		m := Prometheus(WithRegistry(prometheus.NewRegistry()))
		c := &app.Cycle{Kind: app.CycleEvent}

		_ = m.Handle(c, func() error {
			c.Status = app.StatusDropped
			return nil
		})

		if got := metricCounterValue(t, m.eventsDropped); got != 1 {
			t.Fatalf("events_dropped_total=%v, want 1", got)
		}
		if got := metricCounterValue(t, m.cyclesTotal.WithLabelValues("event", "dropped")); got != 1 {
			t.Fatalf("cycles_total(event,dropped)=%v, want 1", got)
		}
	})

	t.Run("error is propagated and counted by code", func(t *testing.T) {
		m := Prometheus(WithRegistry(prometheus.NewRegistry()))
		c := &app.Cycle{Kind: app.CycleMessage}
		want := domerrors.New(domerrors.CodeHostFailure)

		err := m.Handle(c, func() error {
			c.Status = app.StatusError
			return want
		})
		if !errors.Is(err, want) {
			t.Fatalf("error = %v, want %v", err, want)
		}
		if got := metricCounterValue(t, m.cycleErrors.WithLabelValues(domerrors.CodeHostFailure)); got != 1 {
			t.Fatalf("cycle_errors_total(E005)=%v, want 1", got)
		}

		_ = m.Handle(c, func() error { return errors.New("boom") })
		if got := metricCounterValue(t, m.cycleErrors.WithLabelValues("unknown")); got != 1 {
			t.Fatalf("cycle_errors_total(unknown)=%v, want 1", got)
		}
	})
}

func TestPrometheus_SharesCollectorsPerRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := Prometheus(WithRegistry(reg))
	b := Prometheus(WithRegistry(reg), WithBuckets([]float64{1}))
	if a != b {
		t.Fatal("expected the same collectors for the same registry and namespace")
	}
	other := Prometheus(WithRegistry(reg), WithNamespace("todo"))
	if other == a {
		t.Fatal("expected fresh collectors for a different namespace")
	}
	if sub := Prometheus(WithRegistry(reg), WithNamespace("todo"), WithSubsystem("ui")); sub == other {
		t.Fatal("expected fresh collectors for a different subsystem")
	}

	other.ProgramStarted()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "todo_active_programs" {
			found = true
		}
	}
	if !found {
		t.Error("todo_active_programs not registered")
	}
	if c := Prometheus(WithRegistry(prometheus.NewRegistry())); c == a {
		t.Fatal("expected fresh collectors for a new registry")
	}
}

func TestMetricsConfig(t *testing.T) {
	config := defaultMetricsConfig()
	if config.Namespace != "domafic" {
		t.Errorf("Namespace = %q, want domafic", config.Namespace)
	}
	if config.Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should default to prometheus.DefaultRegisterer")
	}

	buckets := []float64{0.001, 0.01}
	labels := prometheus.Labels{"env": "test"}
	for _, opt := range []MetricsOption{
		WithNamespace("todo"),
		WithSubsystem("ui"),
		WithConstLabels(labels),
		WithBuckets(buckets),
	} {
		opt(&config)
	}
	if config.Namespace != "todo" || config.Subsystem != "ui" {
		t.Errorf("Namespace/Subsystem = %q/%q", config.Namespace, config.Subsystem)
	}
	if config.ConstLabels["env"] != "test" {
		t.Errorf("ConstLabels = %v", config.ConstLabels)
	}
	if len(config.Buckets) != 2 {
		t.Errorf("Buckets = %v", config.Buckets)
	}
}

func TestMetrics_ProgramAndWebSocketRecorders(t *testing.T) {
	m := Prometheus(WithRegistry(prometheus.NewRegistry()))

	m.ProgramStarted()
	m.ProgramStarted()
	m.ProgramStopped()
	if got := metricGaugeValue(t, m.activePrograms); got != 1 {
		t.Fatalf("active_programs=%v, want 1", got)
	}

	m.WebSocketError("read")
	m.WebSocketError("read")
	if got := metricCounterValue(t, m.wsErrors.WithLabelValues("read")); got != 2 {
		t.Fatalf("websocket_errors_total(read)=%v, want 2", got)
	}
}

type clicks struct{ N int }

func clicksUpdate(s *clicks, msg vdom.Message, _ keypath.Path, _ effect.IO) {
	if msg == "inc" {
		s.N++
	}
}

func clicksView(s *clicks) vdom.Nodes {
	return vdom.Button(vdom.OnClick(vdom.Send("inc")), vdom.Textf("%d", s.N))
}

func TestPrometheusMiddleware_InProgram(t *testing.T) {
	m := Prometheus(WithRegistry(prometheus.NewRegistry()))
	doc := htmlhost.New()
	p := app.New(doc, clicksUpdate, clicksView, clicks{}, app.WithMiddleware(m))
	if err := p.Start("body"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	btn := p.Root().Child(0).Handle()
	doc.Dispatch(btn, vdom.Event{Type: "click"})
	doc.Dispatch(btn, vdom.Event{Type: "click"})
	if err := p.Drain(); err != nil {
		t.Fatal(err)
	}

	if got := metricCounterValue(t, m.cyclesTotal.WithLabelValues("init", "ok")); got != 1 {
		t.Errorf("cycles_total(init,ok)=%v, want 1", got)
	}
	if got := metricCounterValue(t, m.cyclesTotal.WithLabelValues("event", "ok")); got != 2 {
		t.Errorf("cycles_total(event,ok)=%v, want 2", got)
	}

	total := p.Stats()
	if got := metricCounterValue(t, m.hostMutations.WithLabelValues("created")); got != float64(total.Created) {
		t.Errorf("host_mutations_total(created)=%v, want %d", got, total.Created)
	}
	if got := metricCounterValue(t, m.hostMutations.WithLabelValues("removed")); got != float64(total.Removed) {
		t.Errorf("host_mutations_total(removed)=%v, want %d", got, total.Removed)
	}
}
