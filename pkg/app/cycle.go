package app

import (
	"context"
	"fmt"

	"github.com/vango-dev/domafic/pkg/keypath"
	"github.com/vango-dev/domafic/pkg/reconcile"
	"github.com/vango-dev/domafic/pkg/vdom"
)

// CycleKind says what started a cycle.
type CycleKind uint8

const (
	CycleInit    CycleKind = iota // Initial render after Start
	CycleMessage                  // Message posted with Send
	CycleEvent                    // Host event delivered for a listener
)

// String returns the string representation of the CycleKind.
func (k CycleKind) String() string {
	switch k {
	case CycleInit:
		return "init"
	case CycleMessage:
		return "message"
	case CycleEvent:
		return "event"
	default:
		return "unknown"
	}
}

// Status is the outcome of a cycle.
type Status uint8

const (
	StatusOK      Status = iota // State updated and rendered
	StatusDropped               // Event for a listener that no longer exists
	StatusIgnored               // Listener produced a nil message
	StatusError                 // Fatal failure
)

// String returns the string representation of the Status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusDropped:
		return "dropped"
	case StatusIgnored:
		return "ignored"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Cycle describes one message-handling cycle as it passes through the
// middleware chain. Fields describing the outcome are filled in by the time
// next returns.
type Cycle struct {
	ctx context.Context

	// Kind says what started the cycle.
	Kind CycleKind

	// Msg is the message applied to the state. For events it is set once
	// the listener has been resolved.
	Msg vdom.Message

	// Origin is the key path of the listener the event came from. It is
	// empty for other kinds.
	Origin keypath.Path

	// Token and Event are set for CycleEvent.
	Token reconcile.Token
	Event vdom.Event

	// Pending is the number of messages still queued when the cycle began.
	Pending int

	// Status and Stats describe the outcome.
	Status Status
	Stats  reconcile.Stats
}

// Context returns the cycle's context.
func (c *Cycle) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// SetContext replaces the cycle's context, e.g. to carry a span.
func (c *Cycle) SetContext(ctx context.Context) {
	c.ctx = ctx
}

// MsgType returns the dynamic type of Msg, e.g. "todomvc.Add".
func (c *Cycle) MsgType() string {
	if c.Msg == nil {
		return "none"
	}
	return fmt.Sprintf("%T", c.Msg)
}

// Middleware wraps every cycle. Middleware must call next exactly once and
// may inspect the Cycle before and after.
type Middleware interface {
	Handle(c *Cycle, next func() error) error
}

// MiddlewareFunc adapts a function to the Middleware interface.
type MiddlewareFunc func(c *Cycle, next func() error) error

// Handle implements Middleware.
func (f MiddlewareFunc) Handle(c *Cycle, next func() error) error {
	return f(c, next)
}

// chain composes middleware around core. The first middleware is the
// outermost.
func chain(mw []Middleware, core func(*Cycle) error) func(*Cycle) error {
	h := core
	for i := len(mw) - 1; i >= 0; i-- {
		m, next := mw[i], h
		h = func(c *Cycle) error {
			return m.Handle(c, func() error { return next(c) })
		}
	}
	return h
}
