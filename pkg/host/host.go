package host

import (
	"errors"

	"github.com/vango-dev/domafic/pkg/vdom"
)

// Sentinel errors returned by host implementations.
var (
	// ErrIndexOutOfRange is returned by InsertChild and MoveChild when an
	// index is past the end of the parent's children. The reconciler never
	// issues such a call, so receiving it means the materialized tree and
	// the document have diverged.
	ErrIndexOutOfRange = errors.New("host: child index out of range")

	// ErrUnknownHandle is returned when a handle was never issued by the
	// host or has already been released.
	ErrUnknownHandle = errors.New("host: unknown handle")

	// ErrRootNotFound is returned by Mount when no element matches the selector.
	ErrRootNotFound = errors.New("host: root element not found")
)

// Handle is an opaque reference to a node of the host document. Each host
// defines its own concrete handle type.
type Handle any

// ListenerHandle is an opaque reference to an attached listener.
type ListenerHandle any

// Callback is invoked by the host whenever an attached listener fires.
type Callback func(vdom.Event)

// Surface is the set of synchronous document primitives the reconciler
// drives. Implementations need not be safe for concurrent use; the
// reconciler calls them from a single goroutine.
type Surface interface {
	// CreateElement allocates a detached element.
	CreateElement(tag string) (Handle, error)

	// CreateText allocates a detached text node.
	CreateText(content string) (Handle, error)

	// InsertChild inserts child into parent so that it ends up at index.
	// index may equal the current child count (append).
	InsertChild(parent Handle, index int, child Handle) error

	// MoveChild moves the child at oldIndex so that it ends up at newIndex.
	MoveChild(parent Handle, oldIndex, newIndex int) error

	// RemoveChild detaches child from its parent.
	RemoveChild(child Handle) error

	// SetAttribute sets or overwrites an attribute.
	SetAttribute(h Handle, key string, value vdom.AttrValue) error

	// RemoveAttribute removes an attribute.
	RemoveAttribute(h Handle, key string) error

	// AttachListener registers cb for the named event on h.
	AttachListener(h Handle, event string, cb Callback) (ListenerHandle, error)

	// DetachListener unregisters a listener returned by AttachListener.
	DetachListener(h Handle, event string, l ListenerHandle) error

	// Release frees any bookkeeping the host keeps for h, including its
	// listeners. h must already be detached (or be a descendant of a
	// detached node) and is never used again.
	Release(h Handle)
}

// Document is a Surface that can also locate the element a program renders
// into.
type Document interface {
	Surface

	// Mount returns the element matching selector with all of its existing
	// children removed.
	Mount(selector string) (Handle, error)
}

// Flusher is implemented by hosts that buffer mutations. Flush is called
// once at the end of every reconciliation pass.
type Flusher interface {
	Flush() error
}

// Titler is implemented by hosts that can set the document title.
type Titler interface {
	SetTitle(title string) error
}
