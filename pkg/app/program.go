package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	domerrors "github.com/vango-dev/domafic/internal/errors"
	"github.com/vango-dev/domafic/pkg/effect"
	"github.com/vango-dev/domafic/pkg/host"
	"github.com/vango-dev/domafic/pkg/keypath"
	"github.com/vango-dev/domafic/pkg/reconcile"
	"github.com/vango-dev/domafic/pkg/vdom"
)

var (
	// ErrStopped wraps the cause of the failure that stopped a Program.
	ErrStopped error = domerrors.New(domerrors.CodeProgramStopped)

	// ErrNotStarted is returned when messages are processed before Start.
	ErrNotStarted = errors.New("app: program not started")
)

// UpdateFunc applies msg to state. origin is the key path of the listener
// that produced msg, or the empty path for messages that did not come from
// a listener. Side effects are issued through fx and never block.
type UpdateFunc[S any] func(state *S, msg vdom.Message, origin keypath.Path, fx effect.IO)

// RenderFunc declares the UI for state.
type RenderFunc[S any] func(state *S) vdom.Nodes

// envelope is a queued unit of work.
type envelope struct {
	kind  CycleKind
	msg   vdom.Message
	token reconcile.Token
	event vdom.Event
}

// Program owns an application's state, its rendered tree and the
// materialized tree on the host, and runs message cycles one at a time.
//
// Send and Deliver may be called from any goroutine. Everything else must
// be called from the goroutine that drives the program.
type Program[S any] struct {
	doc    host.Document
	update UpdateFunc[S]
	render RenderFunc[S]
	state  S

	rec    *reconcile.Reconciler
	root   *reconcile.Node
	fx     effect.IO
	runner *effect.Runner
	logger *slog.Logger
	cycle  func(*Cycle) error

	mu      sync.Mutex
	queue   []envelope
	wake    chan struct{}
	cycling bool
	err     error

	total reconcile.Stats
}

// New creates a Program rendering into doc. Nothing touches the host until
// Start.
func New[S any](doc host.Document, update UpdateFunc[S], render RenderFunc[S], initial S, opts ...Option) *Program[S] {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Program[S]{
		doc:    doc,
		update: update,
		render: render,
		state:  initial,
		logger: o.logger,
		wake:   make(chan struct{}, 1),
	}
	p.rec = reconcile.New(doc, p, reconcile.WithLogger(o.logger))

	p.fx = o.io
	if p.fx == nil {
		fxOpts := []effect.Option{
			effect.WithClient(o.client),
			effect.WithLogger(o.logger),
			effect.WithDefaultTimeout(o.fxTimeout),
		}
		if t, ok := doc.(host.Titler); ok {
			fxOpts = append(fxOpts, effect.WithTitler(t))
		}
		p.runner = effect.NewRunner(p.Send, fxOpts...)
		p.fx = p.runner
	}

	p.cycle = chain(o.middleware, p.run)
	return p
}

// Start mounts the program at the element matching selector and renders
// the initial state.
func (p *Program[S]) Start(selector string) error {
	if p.root != nil {
		return errors.New("app: program already started")
	}
	h, err := p.doc.Mount(selector)
	if err != nil {
		return domerrors.New(domerrors.CodeRootNotFound).
			WithDetailf("selector %q", selector).
			Wrap(err)
	}
	p.root = p.rec.Mount(h)
	return p.process(envelope{kind: CycleInit})
}

// Send queues msg. It never blocks and is safe to call from any goroutine,
// including from inside an update function.
func (p *Program[S]) Send(msg vdom.Message) {
	p.enqueue(envelope{kind: CycleMessage, msg: msg})
}

// Deliver queues a host event for the listener identified by token. It
// implements reconcile.Sink.
func (p *Program[S]) Deliver(token reconcile.Token, ev vdom.Event) {
	p.enqueue(envelope{kind: CycleEvent, token: token, event: ev})
}

func (p *Program[S]) enqueue(env envelope) {
	p.mu.Lock()
	p.queue = append(p.queue, env)
	p.mu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Step processes the next queued message, if any, and reports whether it
// did. It does nothing when called from inside a cycle; the message stays
// queued until the current cycle completes.
func (p *Program[S]) Step() (bool, error) {
	p.mu.Lock()
	if p.err != nil {
		err := p.err
		p.mu.Unlock()
		return false, err
	}
	if p.root == nil {
		p.mu.Unlock()
		return false, ErrNotStarted
	}
	if p.cycling || len(p.queue) == 0 {
		p.mu.Unlock()
		return false, nil
	}
	env := p.queue[0]
	p.queue[0] = envelope{}
	p.queue = p.queue[1:]
	p.mu.Unlock()

	return true, p.process(env)
}

// Drain processes queued messages until the queue is empty, including
// messages queued by the cycles it runs.
func (p *Program[S]) Drain() error {
	for {
		ok, err := p.Step()
		if err != nil || !ok {
			return err
		}
	}
}

// Run processes messages as they arrive until ctx is done or a cycle fails.
// It returns nil when ctx is done.
func (p *Program[S]) Run(ctx context.Context) error {
	for {
		if err := p.Drain(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-p.wake:
		}
	}
}

// process runs one cycle. Any failure stops the program for good.
func (p *Program[S]) process(env envelope) error {
	p.mu.Lock()
	p.cycling = true
	pending := len(p.queue)
	p.mu.Unlock()

	c := &Cycle{
		Kind:    env.kind,
		Msg:     env.msg,
		Token:   env.token,
		Event:   env.event,
		Pending: pending,
	}
	err := p.cycle(c)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.cycling = false
	if err != nil {
		p.err = fmt.Errorf("%w: %w", ErrStopped, err)
		p.logger.Error("cycle failed, program stopped",
			"kind", c.Kind,
			"msg", c.MsgType(),
			"error", err,
		)
		return p.err
	}
	return nil
}

// run is the innermost cycle: resolve, update, render, reconcile, flush.
func (p *Program[S]) run(c *Cycle) error {
	if c.Kind == CycleEvent {
		msg, origin, ok := p.rec.Resolve(c.Token, c.Event)
		if !ok {
			c.Status = StatusDropped
			p.logger.Debug("dropped event for stale listener",
				"token", uint64(c.Token),
				"event", c.Event.Type,
			)
			return nil
		}
		if msg == nil {
			c.Status = StatusIgnored
			return nil
		}
		c.Msg = msg
		c.Origin = origin
	}

	if c.Kind != CycleInit {
		p.update(&p.state, c.Msg, c.Origin, p.fx)
	}

	stats, err := p.rec.Reconcile(p.root, p.render(&p.state))
	c.Stats = stats
	p.total = p.total.Add(stats)
	if err != nil {
		c.Status = StatusError
		return err
	}

	if f, ok := p.doc.(host.Flusher); ok {
		if err := f.Flush(); err != nil {
			c.Status = StatusError
			return domerrors.New(domerrors.CodeHostFailure).WithDetail("Flush").Wrap(err)
		}
	}
	c.Status = StatusOK
	return nil
}

// State returns a copy of the current state.
func (p *Program[S]) State() S {
	return p.state
}

// Root returns the materialized root, or nil before Start.
func (p *Program[S]) Root() *reconcile.Node {
	return p.root
}

// Stats returns the reconciliation totals over the program's lifetime.
func (p *Program[S]) Stats() reconcile.Stats {
	return p.total
}

// Pending returns the number of queued messages.
func (p *Program[S]) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Err returns the error that stopped the program, if any.
func (p *Program[S]) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// WaitEffects blocks until every HTTP effect issued so far has posted its
// outcome. It only applies to the built-in effect runner.
func (p *Program[S]) WaitEffects() {
	if p.runner != nil {
		p.runner.Wait()
	}
}

// Run creates a Program, starts it at selector and runs it until ctx is done
// or a cycle fails.
func Run[S any](ctx context.Context, doc host.Document, selector string,
	update UpdateFunc[S], render RenderFunc[S], initial S, opts ...Option) error {
	p := New(doc, update, render, initial, opts...)
	if err := p.Start(selector); err != nil {
		return err
	}
	return p.Run(ctx)
}
