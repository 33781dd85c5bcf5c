package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	domerrors "github.com/vango-dev/domafic/internal/errors"
	"github.com/vango-dev/domafic/pkg/effect"
	"github.com/vango-dev/domafic/pkg/host"
	"github.com/vango-dev/domafic/pkg/host/htmlhost"
	"github.com/vango-dev/domafic/pkg/keypath"
	"github.com/vango-dev/domafic/pkg/vdom"
)

type counter struct {
	N       int
	Log     []string
	Origins []string
}

func counterUpdate(s *counter, msg vdom.Message, origin keypath.Path, _ effect.IO) {
	switch m := msg.(type) {
	case string:
		s.Log = append(s.Log, m)
		if m == "inc" {
			s.N++
		}
	}
	s.Origins = append(s.Origins, origin.String())
}

func counterView(s *counter) vdom.Nodes {
	return vdom.Button(vdom.OnClick(vdom.Send("inc")), vdom.Textf("%d", s.N))
}

func start[S any](t *testing.T, doc host.Document, update UpdateFunc[S], render RenderFunc[S], initial S, opts ...Option) *Program[S] {
	t.Helper()
	p := New(doc, update, render, initial, opts...)
	if err := p.Start("body"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return p
}

func TestClickUpdatesAndRerenders(t *testing.T) {
	doc := htmlhost.New()
	p := start(t, doc, counterUpdate, counterView, counter{})

	btn := p.Root().Child(0).Handle()
	if got := htmlhost.InnerHTML(p.Root().Handle()); got != "<button>0</button>" {
		t.Fatalf("initial html = %q", got)
	}

	for i := 0; i < 3; i++ {
		doc.Dispatch(btn, vdom.Event{Type: "click"})
	}
	if p.Pending() != 3 {
		t.Errorf("Pending() = %d, want 3", p.Pending())
	}
	if err := p.Drain(); err != nil {
		t.Fatal(err)
	}

	if got := p.State().N; got != 3 {
		t.Errorf("N = %d, want 3", got)
	}
	if got := htmlhost.InnerHTML(p.Root().Handle()); got != "<button>3</button>" {
		t.Errorf("html = %q", got)
	}
	if p.Root().Child(0).Handle() != btn {
		t.Error("button was recreated")
	}
}

func TestStepBeforeStart(t *testing.T) {
	p := New(htmlhost.New(), counterUpdate, counterView, counter{})
	p.Send("inc")
	if _, err := p.Step(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Step() err = %v, want ErrNotStarted", err)
	}
}

func TestStartMissingRoot(t *testing.T) {
	p := New(htmlhost.New(), counterUpdate, counterView, counter{})
	err := p.Start("#nope")
	if !domerrors.HasCode(err, domerrors.CodeRootNotFound) || !errors.Is(err, host.ErrRootNotFound) {
		t.Errorf("Start err = %v", err)
	}
}

func TestMessagesAreFIFO(t *testing.T) {
	p := start(t, htmlhost.New(), counterUpdate, counterView, counter{})
	for i := 0; i < 5; i++ {
		p.Send(fmt.Sprint(i))
	}
	if err := p.Drain(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"0", "1", "2", "3", "4"}, p.State().Log); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}

func TestReentrantSendIsQueued(t *testing.T) {
	var p *Program[counter]
	depth := 0
	update := func(s *counter, msg vdom.Message, origin keypath.Path, fx effect.IO) {
		depth++
		defer func() { depth-- }()
		if depth > 1 {
			t.Errorf("cycle re-entered with %v", msg)
		}
		counterUpdate(s, msg, origin, fx)
		if msg == "first" {
			p.Send("second")
			// A nested drain must not start another cycle.
			if err := p.Drain(); err != nil {
				t.Errorf("nested Drain: %v", err)
			}
			if len(s.Log) != 1 {
				t.Errorf("second message processed inside the first cycle")
			}
		}
	}
	p = start(t, htmlhost.New(), update, counterView, counter{})

	p.Send("first")
	if err := p.Drain(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"first", "second"}, p.State().Log); diff != "" {
		t.Errorf("log (-want +got):\n%s", diff)
	}
}

type pickList struct {
	IDs    []string
	Picked []string
}

func pickUpdate(s *pickList, msg vdom.Message, origin keypath.Path, _ effect.IO) {
	if msg == "pick" {
		k, _ := origin.Last()
		s.Picked = append(s.Picked, string(k))
	}
	if msg == "drop-b" {
		s.IDs = []string{"a", "c"}
	}
}

func pickView(s *pickList) vdom.Nodes {
	return vdom.Map(s.IDs, func(_ int, id string) vdom.Node {
		return vdom.Button(vdom.OnClick(vdom.Send("pick")), id).WithKey(keypath.Key(id))
	})
}

func TestEventOrigin(t *testing.T) {
	doc := htmlhost.New()
	p := start(t, doc, pickUpdate, pickView, pickList{IDs: []string{"a", "b", "c"}})

	doc.Dispatch(p.Root().Child(2).Handle(), vdom.Event{Type: "click"})
	doc.Dispatch(p.Root().Child(0).Handle(), vdom.Event{Type: "click"})
	if err := p.Drain(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"c", "a"}, p.State().Picked); diff != "" {
		t.Errorf("picked (-want +got):\n%s", diff)
	}
}

func TestStaleEventIsDropped(t *testing.T) {
	var statuses []Status
	record := MiddlewareFunc(func(c *Cycle, next func() error) error {
		err := next()
		statuses = append(statuses, c.Status)
		return err
	})

	doc := htmlhost.New()
	p := start(t, doc, pickUpdate, pickView, pickList{IDs: []string{"a", "b", "c"}}, WithMiddleware(record))
	stale := p.Root().Child(1).Tokens()[0]

	p.Send("drop-b")
	if err := p.Drain(); err != nil {
		t.Fatal(err)
	}
	p.Deliver(stale, vdom.Event{Type: "click"})
	if err := p.Drain(); err != nil {
		t.Fatal(err)
	}

	if len(p.State().Picked) != 0 {
		t.Errorf("stale event reached update: %v", p.State().Picked)
	}
	want := []Status{StatusOK, StatusOK, StatusDropped}
	if diff := cmp.Diff(want, statuses); diff != "" {
		t.Errorf("statuses (-want +got):\n%s", diff)
	}
}

func TestIgnoredEvent(t *testing.T) {
	var statuses []Status
	record := MiddlewareFunc(func(c *Cycle, next func() error) error {
		err := next()
		statuses = append(statuses, c.Status)
		return err
	})
	view := func(s *counter) vdom.Nodes {
		return vdom.Input(vdom.OnKeyDown(func(ev vdom.Event) vdom.Message {
			if ev.KeyCode != vdom.KeyEnter {
				return nil
			}
			return "inc"
		}))
	}

	doc := htmlhost.New()
	p := start(t, doc, counterUpdate, view, counter{}, WithMiddleware(record))
	in := p.Root().Child(0).Handle()
	doc.Dispatch(in, vdom.Event{Type: "keydown", KeyCode: 65})
	doc.Dispatch(in, vdom.Event{Type: "keydown", KeyCode: vdom.KeyEnter})
	if err := p.Drain(); err != nil {
		t.Fatal(err)
	}

	if p.State().N != 1 {
		t.Errorf("N = %d, want 1", p.State().N)
	}
	if diff := cmp.Diff([]Status{StatusOK, StatusIgnored, StatusOK}, statuses); diff != "" {
		t.Errorf("statuses (-want +got):\n%s", diff)
	}
}

func TestMiddlewareOrder(t *testing.T) {
	var trace []string
	mw := func(name string) Middleware {
		return MiddlewareFunc(func(c *Cycle, next func() error) error {
			trace = append(trace, name+" before "+c.Kind.String())
			err := next()
			trace = append(trace, name+" after "+c.Status.String())
			return err
		})
	}

	start(t, htmlhost.New(), counterUpdate, counterView, counter{}, WithMiddleware(mw("outer"), mw("inner")))

	want := []string{"outer before init", "inner before init", "inner after ok", "outer after ok"}
	if diff := cmp.Diff(want, trace); diff != "" {
		t.Errorf("trace (-want +got):\n%s", diff)
	}
}

// brokenDoc fails every InsertChild once armed.
type brokenDoc struct {
	*htmlhost.Document
	armed bool
}

func (d *brokenDoc) InsertChild(parent host.Handle, index int, child host.Handle) error {
	if d.armed {
		return errors.New("surface detached")
	}
	return d.Document.InsertChild(parent, index, child)
}

func TestReconcileFailureStopsProgram(t *testing.T) {
	doc := &brokenDoc{Document: htmlhost.New()}
	p := start(t, doc, pickUpdate, pickView, pickList{})

	doc.armed = true
	p.Send("drop-b")
	err := p.Drain()
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("Drain err = %v, want ErrStopped", err)
	}
	if !domerrors.HasCode(err, domerrors.CodeHostFailure) {
		t.Errorf("err = %v, want E005 in chain", err)
	}

	p.Send("drop-b")
	if _, err2 := p.Step(); !errors.Is(err2, ErrStopped) {
		t.Errorf("Step after failure = %v", err2)
	}
	if !errors.Is(p.Err(), ErrStopped) {
		t.Errorf("Err() = %v", p.Err())
	}
}

// flushDoc counts flushes.
type flushDoc struct {
	*htmlhost.Document
	flushes int
}

func (d *flushDoc) Flush() error {
	d.flushes++
	return nil
}

func TestFlushOncePerCycle(t *testing.T) {
	doc := &flushDoc{Document: htmlhost.New()}
	p := start(t, doc, counterUpdate, counterView, counter{})
	p.Send("inc")
	p.Send("inc")
	if err := p.Drain(); err != nil {
		t.Fatal(err)
	}
	if doc.flushes != 3 {
		t.Errorf("flushes = %d, want 3", doc.flushes)
	}
}

type fetchState struct {
	Status int
	Body   string
	Err    error
}

type fetched struct{ res effect.Result }

func TestHTTPEffectRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "three todos")
	}))
	defer srv.Close()

	update := func(s *fetchState, msg vdom.Message, _ keypath.Path, fx effect.IO) {
		switch m := msg.(type) {
		case string:
			fx.SetTitle("Loading")
			fx.HTTP(effect.Request{URL: srv.URL + "/" + m, Timeout: time.Second},
				func(res effect.Result) vdom.Message { return fetched{res} })
		case fetched:
			if m.res.Err != nil {
				s.Err = m.res.Err
				return
			}
			s.Status = m.res.Response.StatusCode
			s.Body = m.res.Response.Body
			fx.SetTitle("Loaded")
		}
	}
	view := func(s *fetchState) vdom.Nodes { return vdom.P(s.Body) }

	doc := htmlhost.New()
	p := start(t, doc, update, view, fetchState{}, WithHTTPClient(srv.Client()))
	p.Send("todos")
	if err := p.Drain(); err != nil {
		t.Fatal(err)
	}
	if got := doc.Title(); got != "Loading" {
		t.Errorf("title = %q", got)
	}

	p.WaitEffects()
	if err := p.Drain(); err != nil {
		t.Fatal(err)
	}
	st := p.State()
	if st.Err != nil || st.Status != http.StatusOK || st.Body != "three todos" {
		t.Errorf("state = %+v", st)
	}
	if got := doc.Title(); got != "Loaded" {
		t.Errorf("title = %q", got)
	}
	if got := htmlhost.InnerHTML(p.Root().Handle()); got != "<p>three todos</p>" {
		t.Errorf("html = %q", got)
	}
}

// fakeIO records effect calls.
type fakeIO struct{ titles []string }

func (f *fakeIO) HTTP(effect.Request, effect.ResponseHandler) {}
func (f *fakeIO) SetTitle(t string)                            { f.titles = append(f.titles, t) }

func TestWithEffects(t *testing.T) {
	fx := &fakeIO{}
	update := func(s *counter, msg vdom.Message, _ keypath.Path, io effect.IO) {
		io.SetTitle(fmt.Sprint(msg))
	}
	p := start(t, htmlhost.New(), update, counterView, counter{}, WithEffects(fx))
	p.Send("hello")
	if err := p.Drain(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"hello"}, fx.titles); diff != "" {
		t.Errorf("titles (-want +got):\n%s", diff)
	}
}

func TestRunUntilCancelled(t *testing.T) {
	cycles := make(chan Status, 16)
	notify := MiddlewareFunc(func(c *Cycle, next func() error) error {
		err := next()
		cycles <- c.Status
		return err
	})

	doc := htmlhost.New()
	p := start(t, doc, counterUpdate, counterView, counter{}, WithMiddleware(notify))
	<-cycles

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- p.Run(ctx) }()

	go p.Send("inc")
	select {
	case st := <-cycles:
		if st != StatusOK {
			t.Errorf("status = %v", st)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message was not processed")
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if got := htmlhost.InnerHTML(p.Root().Handle()); got != "<button>1</button>" {
		t.Errorf("html = %q", got)
	}
}

func TestRunFunc(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc := htmlhost.New()
	if err := Run(ctx, doc, "body", counterUpdate, counterView, counter{}); err != nil {
		t.Errorf("Run = %v", err)
	}
	if got := htmlhost.InnerHTML(doc.Find("body")); got != "<button>0</button>" {
		t.Errorf("html = %q", got)
	}

	err := Run(ctx, htmlhost.New(), "#missing", counterUpdate, counterView, counter{})
	if !errors.Is(err, host.ErrRootNotFound) {
		t.Errorf("Run with missing root = %v", err)
	}
}
