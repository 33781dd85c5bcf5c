package host

import (
	"fmt"
	"sync"

	"github.com/vango-dev/domafic/pkg/vdom"
)

// OpKind is the type of a recorded host operation.
type OpKind uint8

const (
	OpCreateElement   OpKind = 0x01 // Allocate element
	OpCreateText      OpKind = 0x02 // Allocate text node
	OpInsertChild     OpKind = 0x03 // Insert node at index
	OpMoveChild       OpKind = 0x04 // Move node to new index
	OpRemoveChild     OpKind = 0x05 // Detach node
	OpSetAttribute    OpKind = 0x06 // Set/overwrite attribute
	OpRemoveAttribute OpKind = 0x07 // Remove attribute
	OpAttachListener  OpKind = 0x08 // Add event listener
	OpDetachListener  OpKind = 0x09 // Remove event listener
	OpRelease         OpKind = 0x0A // Free host bookkeeping
	OpMount           OpKind = 0x0B // Locate and clear root
)

// String returns the string representation of the OpKind.
func (k OpKind) String() string {
	switch k {
	case OpCreateElement:
		return "CreateElement"
	case OpCreateText:
		return "CreateText"
	case OpInsertChild:
		return "InsertChild"
	case OpMoveChild:
		return "MoveChild"
	case OpRemoveChild:
		return "RemoveChild"
	case OpSetAttribute:
		return "SetAttribute"
	case OpRemoveAttribute:
		return "RemoveAttribute"
	case OpAttachListener:
		return "AttachListener"
	case OpDetachListener:
		return "DetachListener"
	case OpRelease:
		return "Release"
	case OpMount:
		return "Mount"
	default:
		return "Unknown"
	}
}

// IsMutation reports whether the operation changes the document.
// Release and Mount are bookkeeping and do not count.
func (k OpKind) IsMutation() bool {
	return k >= OpCreateElement && k <= OpDetachListener
}

// Op is a single recorded host call.
type Op struct {
	Kind     OpKind
	Handle   Handle         // Target (or created) node
	Parent   Handle         // InsertChild/MoveChild parent
	Index    int            // Insert position, or move destination
	OldIndex int            // Move source
	Tag      string         // CreateElement
	Text     string         // CreateText
	Key      string         // Attribute key, or event name for listeners
	Value    vdom.AttrValue // SetAttribute
	Listener ListenerHandle // Attach/DetachListener
}

// String returns a compact description, e.g. "InsertChild[1]".
func (o Op) String() string {
	switch o.Kind {
	case OpCreateElement:
		return fmt.Sprintf("%s<%s>", o.Kind, o.Tag)
	case OpCreateText:
		return fmt.Sprintf("%s(%q)", o.Kind, o.Text)
	case OpInsertChild:
		return fmt.Sprintf("%s[%d]", o.Kind, o.Index)
	case OpMoveChild:
		return fmt.Sprintf("%s[%d->%d]", o.Kind, o.OldIndex, o.Index)
	case OpSetAttribute:
		return fmt.Sprintf("%s(%s=%s)", o.Kind, o.Key, o.Value)
	case OpRemoveAttribute, OpAttachListener, OpDetachListener:
		return fmt.Sprintf("%s(%s)", o.Kind, o.Key)
	default:
		return o.Kind.String()
	}
}

// Recorder is a Document that forwards every call to an underlying Document
// and records it. Only successful calls are recorded.
type Recorder struct {
	Document

	// OnOp, if set, is called after each recorded operation.
	OnOp func(Op)

	mu  sync.Mutex
	ops []Op
}

// NewRecorder wraps doc.
func NewRecorder(doc Document) *Recorder {
	return &Recorder{Document: doc}
}

func (r *Recorder) record(op Op) {
	r.mu.Lock()
	r.ops = append(r.ops, op)
	r.mu.Unlock()
	if r.OnOp != nil {
		r.OnOp(op)
	}
}

// Ops returns a copy of the recorded operations.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Op, len(r.ops))
	copy(out, r.ops)
	return out
}

// Mutations returns the recorded operations that changed the document.
func (r *Recorder) Mutations() []Op {
	var out []Op
	for _, op := range r.Ops() {
		if op.Kind.IsMutation() {
			out = append(out, op)
		}
	}
	return out
}

// Reset clears the log.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.ops = nil
	r.mu.Unlock()
}

// Mount implements Document.
func (r *Recorder) Mount(selector string) (Handle, error) {
	h, err := r.Document.Mount(selector)
	if err == nil {
		r.record(Op{Kind: OpMount, Handle: h, Text: selector})
	}
	return h, err
}

// CreateElement implements Surface.
func (r *Recorder) CreateElement(tag string) (Handle, error) {
	h, err := r.Document.CreateElement(tag)
	if err == nil {
		r.record(Op{Kind: OpCreateElement, Handle: h, Tag: tag})
	}
	return h, err
}

// CreateText implements Surface.
func (r *Recorder) CreateText(content string) (Handle, error) {
	h, err := r.Document.CreateText(content)
	if err == nil {
		r.record(Op{Kind: OpCreateText, Handle: h, Text: content})
	}
	return h, err
}

// InsertChild implements Surface.
func (r *Recorder) InsertChild(parent Handle, index int, child Handle) error {
	err := r.Document.InsertChild(parent, index, child)
	if err == nil {
		r.record(Op{Kind: OpInsertChild, Handle: child, Parent: parent, Index: index})
	}
	return err
}

// MoveChild implements Surface.
func (r *Recorder) MoveChild(parent Handle, oldIndex, newIndex int) error {
	err := r.Document.MoveChild(parent, oldIndex, newIndex)
	if err == nil {
		r.record(Op{Kind: OpMoveChild, Parent: parent, OldIndex: oldIndex, Index: newIndex})
	}
	return err
}

// RemoveChild implements Surface.
func (r *Recorder) RemoveChild(child Handle) error {
	err := r.Document.RemoveChild(child)
	if err == nil {
		r.record(Op{Kind: OpRemoveChild, Handle: child})
	}
	return err
}

// SetAttribute implements Surface.
func (r *Recorder) SetAttribute(h Handle, key string, value vdom.AttrValue) error {
	err := r.Document.SetAttribute(h, key, value)
	if err == nil {
		r.record(Op{Kind: OpSetAttribute, Handle: h, Key: key, Value: value})
	}
	return err
}

// RemoveAttribute implements Surface.
func (r *Recorder) RemoveAttribute(h Handle, key string) error {
	err := r.Document.RemoveAttribute(h, key)
	if err == nil {
		r.record(Op{Kind: OpRemoveAttribute, Handle: h, Key: key})
	}
	return err
}

// AttachListener implements Surface.
func (r *Recorder) AttachListener(h Handle, event string, cb Callback) (ListenerHandle, error) {
	l, err := r.Document.AttachListener(h, event, cb)
	if err == nil {
		r.record(Op{Kind: OpAttachListener, Handle: h, Key: event, Listener: l})
	}
	return l, err
}

// DetachListener implements Surface.
func (r *Recorder) DetachListener(h Handle, event string, l ListenerHandle) error {
	err := r.Document.DetachListener(h, event, l)
	if err == nil {
		r.record(Op{Kind: OpDetachListener, Handle: h, Key: event, Listener: l})
	}
	return err
}

// Release implements Surface.
func (r *Recorder) Release(h Handle) {
	r.Document.Release(h)
	r.record(Op{Kind: OpRelease, Handle: h})
}

// Flush forwards to the underlying document if it buffers mutations.
func (r *Recorder) Flush() error {
	if f, ok := r.Document.(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// SetTitle forwards to the underlying document if it supports titles.
func (r *Recorder) SetTitle(title string) error {
	if t, ok := r.Document.(Titler); ok {
		return t.SetTitle(title)
	}
	return nil
}
