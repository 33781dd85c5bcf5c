package reconcile

import (
	"github.com/vango-dev/domafic/pkg/keypath"
	"github.com/vango-dev/domafic/pkg/vdom"
)

// Token identifies an attached listener. Host callbacks carry only the
// token; the owner of the Reconciler resolves it back into a message on its
// own goroutine with Resolve. Tokens are never reused.
type Token uint64

// Sink receives host events for attached listeners. Deliver is called from
// whatever goroutine the host fires callbacks on and must not block.
type Sink interface {
	Deliver(token Token, ev vdom.Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(token Token, ev vdom.Event)

// Deliver implements Sink.
func (f SinkFunc) Deliver(token Token, ev vdom.Event) { f(token, ev) }

type discardSink struct{}

func (discardSink) Deliver(Token, vdom.Event) {}

// registration is the latest handler declared for a token.
type registration struct {
	handler vdom.Handler
	path    keypath.Path
}

func (r *Reconciler) register(path keypath.Path, h vdom.Handler) Token {
	r.next++
	r.tokens[r.next] = &registration{handler: h, path: path}
	return r.next
}

func (r *Reconciler) refresh(t Token, h vdom.Handler) {
	if reg, ok := r.tokens[t]; ok {
		reg.handler = h
	}
}

func (r *Reconciler) unregister(t Token) {
	delete(r.tokens, t)
}

// Resolve converts an event delivered for token into a message using the
// handler declared by the most recent pass, and returns the key path of the
// node that declared it. ok is false when the listener has since been
// detached or destroyed. A handler may return a nil message to ignore the
// event.
//
// Resolve must not be called concurrently with Reconcile.
func (r *Reconciler) Resolve(token Token, ev vdom.Event) (msg vdom.Message, path keypath.Path, ok bool) {
	reg, found := r.tokens[token]
	if !found || reg.handler == nil {
		return nil, keypath.Path{}, false
	}
	return reg.handler(ev), reg.path, true
}

// Registered returns the number of live listener tokens.
func (r *Reconciler) Registered() int {
	return len(r.tokens)
}
