package wshost

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	domerrors "github.com/vango-dev/domafic/internal/errors"
	"github.com/vango-dev/domafic/pkg/host"
	"github.com/vango-dev/domafic/pkg/vdom"
)

// ID is the handle type issued by a Document. IDs are never reused within
// a Document.
type ID uint32

// Conn is the subset of *websocket.Conn a Document uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
}

// DefaultWriteTimeout bounds each frame write.
const DefaultWriteTimeout = 10 * time.Second

// node mirrors the structure of a client-side node so that out-of-range
// indices are caught on the server.
type node struct {
	parent   ID
	children []ID
	element  bool
}

type listener struct {
	node  ID
	event string
	cb    host.Callback
}

// Document is a host.Document whose nodes live in a browser on the other
// end of a WebSocket. Changes are buffered and sent as one OpsFrame per
// Flush; event frames from the client invoke the attached callbacks.
//
// Surface methods and Flush must be called from one goroutine. ReadLoop and
// HandleFrame may run concurrently with them.
type Document struct {
	conn         Conn
	logger       *slog.Logger
	writeTimeout time.Duration

	nodes  map[ID]*node
	nextID ID
	ops    []Op

	mu        sync.Mutex
	listeners map[uint32]listener
	nextLID   uint32
}

// Option configures a Document.
type Option func(*Document)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Document) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithWriteTimeout sets the deadline applied to each frame write.
func WithWriteTimeout(t time.Duration) Option {
	return func(d *Document) {
		d.writeTimeout = t
	}
}

// New creates a Document sending frames over conn.
func New(conn Conn, opts ...Option) *Document {
	d := &Document{
		conn:         conn,
		logger:       slog.Default(),
		writeTimeout: DefaultWriteTimeout,
		nodes:        make(map[ID]*node),
		listeners:    make(map[uint32]listener),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Document) lookup(h host.Handle) (ID, *node, error) {
	id, ok := h.(ID)
	if !ok {
		return 0, nil, domerrors.New(domerrors.CodeUnknownHandle).
			WithDetailf("handle of type %T", h).
			Wrap(host.ErrUnknownHandle)
	}
	n, ok := d.nodes[id]
	if !ok {
		return 0, nil, domerrors.New(domerrors.CodeUnknownHandle).
			WithDetailf("handle %d", id).
			Wrap(host.ErrUnknownHandle)
	}
	return id, n, nil
}

func (d *Document) alloc(element bool) ID {
	d.nextID++
	d.nodes[d.nextID] = &node{element: element}
	return d.nextID
}

// Mount implements host.Document. The client clears the element matching
// selector; a selector that matches nothing is reported by the client and
// surfaces as a closed connection.
func (d *Document) Mount(selector string) (host.Handle, error) {
	if selector == "" {
		return nil, host.ErrRootNotFound
	}
	id := d.alloc(true)
	d.ops = append(d.ops, Op{Op: OpMount, ID: uint32(id), Selector: selector})
	return id, nil
}

// CreateElement implements host.Surface.
func (d *Document) CreateElement(tag string) (host.Handle, error) {
	id := d.alloc(true)
	d.ops = append(d.ops, Op{Op: OpCreate, ID: uint32(id), Tag: tag})
	return id, nil
}

// CreateText implements host.Surface.
func (d *Document) CreateText(content string) (host.Handle, error) {
	id := d.alloc(false)
	d.ops = append(d.ops, Op{Op: OpText, ID: uint32(id), Text: content})
	return id, nil
}

func (d *Document) detach(id ID, n *node) {
	if n.parent == 0 {
		return
	}
	if p, ok := d.nodes[n.parent]; ok {
		p.children = slices.DeleteFunc(p.children, func(c ID) bool { return c == id })
	}
	n.parent = 0
}

// InsertChild implements host.Surface.
func (d *Document) InsertChild(parent host.Handle, index int, child host.Handle) error {
	pid, p, err := d.lookup(parent)
	if err != nil {
		return err
	}
	cid, c, err := d.lookup(child)
	if err != nil {
		return err
	}
	if !p.element {
		return fmt.Errorf("wshost: insert into text node %d", pid)
	}
	n := len(p.children)
	if c.parent == pid {
		n--
	}
	if index < 0 || index > n {
		return fmt.Errorf("%w: insert at %d of %d", host.ErrIndexOutOfRange, index, n)
	}
	d.detach(cid, c)
	p.children = slices.Insert(p.children, index, cid)
	c.parent = pid
	d.ops = append(d.ops, Op{Op: OpInsert, Parent: uint32(pid), Index: index, ID: uint32(cid)})
	return nil
}

// MoveChild implements host.Surface.
func (d *Document) MoveChild(parent host.Handle, oldIndex, newIndex int) error {
	pid, p, err := d.lookup(parent)
	if err != nil {
		return err
	}
	n := len(p.children)
	if oldIndex < 0 || oldIndex >= n || newIndex < 0 || newIndex >= n {
		return fmt.Errorf("%w: move %d->%d of %d", host.ErrIndexOutOfRange, oldIndex, newIndex, n)
	}
	c := p.children[oldIndex]
	p.children = slices.Delete(p.children, oldIndex, oldIndex+1)
	p.children = slices.Insert(p.children, newIndex, c)
	d.ops = append(d.ops, Op{Op: OpMove, Parent: uint32(pid), From: oldIndex, To: newIndex})
	return nil
}

// RemoveChild implements host.Surface.
func (d *Document) RemoveChild(child host.Handle) error {
	id, n, err := d.lookup(child)
	if err != nil {
		return err
	}
	if n.parent == 0 {
		return fmt.Errorf("wshost: node %d has no parent", id)
	}
	d.detach(id, n)
	d.ops = append(d.ops, Op{Op: OpRemove, ID: uint32(id)})
	return nil
}

// SetAttribute implements host.Surface. A false boolean removes the
// attribute; a true boolean sets it with an empty value.
func (d *Document) SetAttribute(h host.Handle, key string, value vdom.AttrValue) error {
	id, n, err := d.lookup(h)
	if err != nil {
		return err
	}
	if !n.element {
		return fmt.Errorf("wshost: set attribute %q on text node %d", key, id)
	}
	switch {
	case value.IsBool() && !value.BoolValue():
		d.ops = append(d.ops, Op{Op: OpRemoveAttr, ID: uint32(id), Key: key})
	case value.IsBool():
		d.ops = append(d.ops, Op{Op: OpSetAttr, ID: uint32(id), Key: key})
	default:
		d.ops = append(d.ops, Op{Op: OpSetAttr, ID: uint32(id), Key: key, Value: value.String()})
	}
	return nil
}

// RemoveAttribute implements host.Surface.
func (d *Document) RemoveAttribute(h host.Handle, key string) error {
	id, _, err := d.lookup(h)
	if err != nil {
		return err
	}
	d.ops = append(d.ops, Op{Op: OpRemoveAttr, ID: uint32(id), Key: key})
	return nil
}

// AttachListener implements host.Surface. The returned handle is a uint32
// that the client echoes back in EventFrame.Listener.
func (d *Document) AttachListener(h host.Handle, event string, cb host.Callback) (host.ListenerHandle, error) {
	id, _, err := d.lookup(h)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.nextLID++
	lid := d.nextLID
	d.listeners[lid] = listener{node: id, event: event, cb: cb}
	d.mu.Unlock()

	d.ops = append(d.ops, Op{Op: OpListen, ID: uint32(id), Event: event, Listener: lid})
	return lid, nil
}

// DetachListener implements host.Surface.
func (d *Document) DetachListener(h host.Handle, event string, l host.ListenerHandle) error {
	id, _, err := d.lookup(h)
	if err != nil {
		return err
	}
	lid, ok := l.(uint32)
	if !ok {
		return fmt.Errorf("%w: listener %T", host.ErrUnknownHandle, l)
	}

	d.mu.Lock()
	ln, ok := d.listeners[lid]
	if ok && ln.node == id && ln.event == event {
		delete(d.listeners, lid)
	}
	d.mu.Unlock()
	if !ok || ln.node != id || ln.event != event {
		return fmt.Errorf("%w: listener %d", host.ErrUnknownHandle, lid)
	}

	d.ops = append(d.ops, Op{Op: OpUnlisten, ID: uint32(id), Event: event, Listener: lid})
	return nil
}

// Release implements host.Surface.
func (d *Document) Release(h host.Handle) {
	id, n, err := d.lookup(h)
	if err != nil {
		return
	}
	d.detach(id, n)
	delete(d.nodes, id)

	d.mu.Lock()
	for lid, ln := range d.listeners {
		if ln.node == id {
			delete(d.listeners, lid)
		}
	}
	d.mu.Unlock()

	d.ops = append(d.ops, Op{Op: OpRelease, ID: uint32(id)})
}

// SetTitle implements host.Titler. The title is sent with the next frame.
func (d *Document) SetTitle(title string) error {
	d.ops = append(d.ops, Op{Op: OpTitle, Text: title})
	return nil
}

// Pending returns the number of buffered ops.
func (d *Document) Pending() int {
	return len(d.ops)
}

// Flush implements host.Flusher: it sends the buffered ops as one frame.
// Nothing is sent when no ops are buffered.
func (d *Document) Flush() error {
	if len(d.ops) == 0 {
		return nil
	}
	data, err := json.Marshal(OpsFrame{Ops: d.ops})
	if err != nil {
		return err
	}
	d.ops = d.ops[:0]

	if d.writeTimeout > 0 {
		_ = d.conn.SetWriteDeadline(time.Now().Add(d.writeTimeout))
	}
	if err := d.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("wshost: write frame: %w", err)
	}
	return nil
}

// HandleFrame decodes an EventFrame and invokes the listener it names.
func (d *Document) HandleFrame(data []byte) error {
	var f EventFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return domerrors.New(domerrors.CodeBadFrame).Wrap(err)
	}
	if f.Listener == 0 || f.Event.Type == "" {
		return domerrors.New(domerrors.CodeBadFrame).
			WithDetail("event frame needs a listener and an event type")
	}

	d.mu.Lock()
	ln, ok := d.listeners[f.Listener]
	d.mu.Unlock()
	if !ok {
		return domerrors.New(domerrors.CodeUnknownListener).
			WithDetailf("listener %d", f.Listener)
	}
	if ln.event != f.Event.Type {
		return domerrors.New(domerrors.CodeBadFrame).
			WithDetailf("listener %d handles %q, got %q", f.Listener, ln.event, f.Event.Type)
	}
	ln.cb(f.Event)
	return nil
}

// ReadLoop reads event frames until the connection closes. It returns nil
// on a normal close. Malformed frames and frames for listeners that were
// detached in the meantime are logged and skipped.
func (d *Document) ReadLoop() error {
	for {
		_, msg, err := d.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		if err := d.HandleFrame(msg); err != nil {
			if domerrors.HasCode(err, domerrors.CodeUnknownListener) {
				d.logger.Debug("event for detached listener", "error", err)
				continue
			}
			d.logger.Warn("frame decode error", "error", err)
		}
	}
}

// ListenerCount returns the number of attached listeners.
func (d *Document) ListenerCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners)
}

// NodeCount returns the number of live handles, including mounted roots.
func (d *Document) NodeCount() int {
	return len(d.nodes)
}
