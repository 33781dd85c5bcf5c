package reconcile

import (
	"errors"
	"log/slog"

	domerrors "github.com/vango-dev/domafic/internal/errors"
	"github.com/vango-dev/domafic/pkg/host"
	"github.com/vango-dev/domafic/pkg/keypath"
	"github.com/vango-dev/domafic/pkg/vdom"
)

// Reconciler applies declared vdom trees to a host surface, reusing the
// host nodes created by earlier passes wherever a new node has the same key
// path and value as a materialized one.
//
// A Reconciler is not safe for concurrent use.
type Reconciler struct {
	surface host.Surface
	sink    Sink
	logger  *slog.Logger

	tokens map[Token]*registration
	next   Token

	stats Stats
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger used for pass diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Reconciler driving surface. Events for attached listeners
// are forwarded to sink; a nil sink discards them.
func New(surface host.Surface, sink Sink, opts ...Option) *Reconciler {
	if sink == nil {
		sink = discardSink{}
	}
	r := &Reconciler{
		surface: surface,
		sink:    sink,
		logger:  slog.Default(),
		tokens:  make(map[Token]*registration),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Mount returns an empty materialized root bound to the given host element.
// The element is expected to have no children.
func (r *Reconciler) Mount(h host.Handle) *Node {
	return &Node{handle: h}
}

// Reconcile makes the children of root match tree.
//
// Any failure aborts the pass immediately. The materialized tree is left
// as it was at the point of failure and no host changes are rolled back, so
// the caller should treat an error as fatal for root.
func (r *Reconciler) Reconcile(root *Node, tree vdom.Nodes) (Stats, error) {
	r.stats = Stats{}
	if tree == nil {
		tree = vdom.Empty[vdom.Node]()
	}
	err := r.reconcileChildren(root, root.path, tree)
	stats := r.stats
	if err != nil {
		r.logger.Debug("reconcile pass aborted", "error", err, "stats", stats)
		return stats, err
	}
	r.logger.Debug("reconcile pass", "stats", stats)
	return stats, nil
}

// reconcileChildren reconciles one sibling level, then destroys whatever
// was not matched.
func (r *Reconciler) reconcileChildren(parent *Node, path keypath.Path, nodes vdom.Nodes) error {
	cursor := 0
	var inner error
	err := nodes.Traverse(func(n vdom.Node) error {
		if vdom.IsNil(n) {
			return nil
		}
		if inner = r.reconcileNode(parent, cursor, path, n); inner != nil {
			return inner
		}
		cursor++
		return nil
	})
	if inner != nil {
		return inner
	}
	if err != nil {
		return traversalError("children", path, err)
	}
	return r.trim(parent, cursor)
}

func (r *Reconciler) reconcileNode(parent *Node, cursor int, parentPath keypath.Path, n vdom.Node) error {
	path := parentPath
	if k, ok := n.Key(); ok {
		next, err := path.Push(k)
		if err != nil {
			return domerrors.New(domerrors.CodeKeyPathOverflow).
				WithDetailf("pushing %q onto %s", k, path).
				Wrap(err)
		}
		path = next
	}
	value := n.Value()

	listeners, err := vdom.Collect(n.Listeners())
	if err != nil {
		return traversalError("listeners", path, err)
	}
	attrs, err := vdom.Collect(n.Attributes())
	if err != nil {
		return traversalError("attributes", path, err)
	}

	// First match at or after the cursor. Earlier entries were consumed by
	// previous siblings in this pass.
	match := -1
	for i := cursor; i < len(parent.children); i++ {
		if parent.children[i].matches(path, value) {
			match = i
			break
		}
	}

	if match < 0 {
		return r.create(parent, cursor, path, value, listeners, attrs, n.Children())
	}

	m := parent.children[match]
	r.stats.Reused++
	if err := r.diffListeners(m, listeners); err != nil {
		return err
	}
	if err := r.diffAttrs(m, attrs); err != nil {
		return err
	}
	if err := r.reconcileChildren(m, path, n.Children()); err != nil {
		return err
	}
	if match != cursor {
		if err := r.surface.MoveChild(parent.handle, match, cursor); err != nil {
			return hostError("MoveChild", err)
		}
		parent.moveChild(match, cursor)
		r.stats.Moved++
	}
	return nil
}

// create builds a new host subtree and inserts it at cursor.
func (r *Reconciler) create(parent *Node, cursor int, path keypath.Path, value vdom.Value,
	listeners []vdom.Listener, attrs []vdom.Attr, children vdom.Nodes) error {
	var (
		h   host.Handle
		err error
	)
	switch value.Kind {
	case vdom.KindElement:
		h, err = r.surface.CreateElement(value.Tag)
		if err != nil {
			return hostError("CreateElement", err)
		}
	case vdom.KindText:
		h, err = r.surface.CreateText(value.Text)
		if err != nil {
			return hostError("CreateText", err)
		}
	default:
		return domerrors.New(domerrors.CodeHostFailure).
			WithDetailf("cannot create node of kind %s at %s", value.Kind, path)
	}

	m := &Node{path: path, value: value, handle: h}
	if err := r.diffListeners(m, listeners); err != nil {
		return err
	}
	if err := r.diffAttrs(m, attrs); err != nil {
		return err
	}
	if err := r.reconcileChildren(m, path, children); err != nil {
		return err
	}
	if err := r.surface.InsertChild(parent.handle, cursor, h); err != nil {
		return hostError("InsertChild", err)
	}
	parent.insertChild(cursor, m)
	r.stats.Created++
	return nil
}

// diffListeners detaches listeners whose identity is no longer declared,
// attaches newly declared ones and refreshes the handler of the rest.
func (r *Reconciler) diffListeners(m *Node, declared []vdom.Listener) error {
	order := vdom.ListenerIDs(declared)
	ids := make(map[vdom.ListenerID]vdom.Handler, len(declared))
	for i, id := range order {
		ids[id] = declared[i].Handler
	}

	current := make(map[vdom.ListenerID]attachment, len(m.listeners))
	for _, a := range m.listeners {
		if _, keep := ids[a.id]; !keep {
			if err := r.surface.DetachListener(m.handle, a.id.Event, a.handle); err != nil {
				return hostError("DetachListener", err)
			}
			r.unregister(a.token)
			r.stats.ListenersDetached++
			continue
		}
		current[a.id] = a
	}

	next := make([]attachment, 0, len(order))
	for _, id := range order {
		if a, ok := current[id]; ok {
			r.refresh(a.token, ids[id])
			next = append(next, a)
			continue
		}
		token := r.register(m.path, ids[id])
		sink := r.sink
		lh, err := r.surface.AttachListener(m.handle, id.Event, func(ev vdom.Event) {
			sink.Deliver(token, ev)
		})
		if err != nil {
			r.unregister(token)
			return hostError("AttachListener", err)
		}
		next = append(next, attachment{id: id, token: token, handle: lh})
		r.stats.ListenersAttached++
	}
	m.listeners = next
	return nil
}

// diffAttrs drops retained attributes that are not declared with the same
// value and sets declared attributes that are not already retained. A
// removal is not sent to the host when the same key is set again in this
// pass, since the set overwrites it.
func (r *Reconciler) diffAttrs(m *Node, declared []vdom.Attr) error {
	for _, old := range m.attrs {
		if containsAttr(declared, old) {
			continue
		}
		if containsKey(declared, old.Key) {
			continue
		}
		if err := r.surface.RemoveAttribute(m.handle, old.Key); err != nil {
			return hostError("RemoveAttribute", err)
		}
		r.stats.AttrsRemoved++
	}
	for _, a := range declared {
		if containsAttr(m.attrs, a) {
			continue
		}
		if err := r.surface.SetAttribute(m.handle, a.Key, a.Value); err != nil {
			return hostError("SetAttribute", err)
		}
		r.stats.AttrsSet++
	}
	m.attrs = append(m.attrs[:0:0], declared...)
	return nil
}

func containsAttr(attrs []vdom.Attr, a vdom.Attr) bool {
	for _, b := range attrs {
		if b == a {
			return true
		}
	}
	return false
}

func containsKey(attrs []vdom.Attr, key string) bool {
	for _, b := range attrs {
		if b.Key == key {
			return true
		}
	}
	return false
}

// trim destroys every child at or past cursor, in ascending order.
func (r *Reconciler) trim(parent *Node, cursor int) error {
	for i := cursor; i < len(parent.children); i++ {
		if err := r.destroy(parent.children[i]); err != nil {
			// Keep the not yet destroyed tail so the tree still mirrors
			// the host.
			parent.children = append(parent.children[:cursor], parent.children[i:]...)
			return err
		}
	}
	clear(parent.children[cursor:])
	parent.children = parent.children[:cursor]
	return nil
}

// destroy detaches m from its parent and releases its whole subtree.
func (r *Reconciler) destroy(m *Node) error {
	if err := r.surface.RemoveChild(m.handle); err != nil {
		return hostError("RemoveChild", err)
	}
	r.release(m)
	r.stats.Removed++
	return nil
}

func (r *Reconciler) release(m *Node) {
	for _, c := range m.children {
		r.release(c)
	}
	for _, a := range m.listeners {
		r.unregister(a.token)
	}
	r.surface.Release(m.handle)
	m.children = nil
	m.listeners = nil
}

func traversalError(what string, path keypath.Path, err error) error {
	return domerrors.New(domerrors.CodeTraversalAborted).
		WithDetailf("%s of %s", what, path).
		Wrap(err)
}

func hostError(op string, err error) error {
	code := domerrors.CodeHostFailure
	if errors.Is(err, host.ErrIndexOutOfRange) {
		switch op {
		case "InsertChild":
			code = domerrors.CodeInsertOutOfRange
		case "MoveChild":
			code = domerrors.CodeMoveOutOfRange
		}
	}
	return domerrors.New(code).WithDetail(op).Wrap(err)
}
