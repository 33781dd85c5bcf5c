//go:build js && wasm

package jshost

import (
	"fmt"
	"syscall/js"

	"github.com/vango-dev/domafic/pkg/host"
	"github.com/vango-dev/domafic/pkg/vdom"
)

// Document drives the browser document of the running wasm module. Handles
// are js.Value nodes.
type Document struct {
	doc js.Value
}

// listener is the handle returned by AttachListener. The js.Func must be
// released once the listener is detached.
type listener struct {
	fn js.Func
}

// New returns a Document bound to the global document.
func New() *Document {
	return &Document{doc: js.Global().Get("document")}
}

func asValue(h host.Handle) (js.Value, error) {
	v, ok := h.(js.Value)
	if !ok || v.IsUndefined() || v.IsNull() {
		return js.Value{}, fmt.Errorf("%w: %T", host.ErrUnknownHandle, h)
	}
	return v, nil
}

// Mount implements host.Document.
func (d *Document) Mount(selector string) (host.Handle, error) {
	root := d.doc.Call("querySelector", selector)
	if root.IsNull() || root.IsUndefined() {
		return nil, fmt.Errorf("%w: %q", host.ErrRootNotFound, selector)
	}
	for c := root.Get("firstChild"); !c.IsNull(); c = root.Get("firstChild") {
		root.Call("removeChild", c)
	}
	return root, nil
}

// CreateElement implements host.Surface.
func (d *Document) CreateElement(tag string) (host.Handle, error) {
	return d.doc.Call("createElement", tag), nil
}

// CreateText implements host.Surface.
func (d *Document) CreateText(content string) (host.Handle, error) {
	return d.doc.Call("createTextNode", content), nil
}

// InsertChild implements host.Surface.
func (d *Document) InsertChild(parent host.Handle, index int, child host.Handle) error {
	p, err := asValue(parent)
	if err != nil {
		return err
	}
	c, err := asValue(child)
	if err != nil {
		return err
	}
	kids := p.Get("childNodes")
	n := kids.Length()
	switch {
	case index < 0 || index > n:
		return fmt.Errorf("%w: insert at %d of %d", host.ErrIndexOutOfRange, index, n)
	case index == n:
		p.Call("appendChild", c)
	default:
		p.Call("insertBefore", c, kids.Index(index))
	}
	return nil
}

// MoveChild implements host.Surface.
func (d *Document) MoveChild(parent host.Handle, oldIndex, newIndex int) error {
	p, err := asValue(parent)
	if err != nil {
		return err
	}
	kids := p.Get("childNodes")
	n := kids.Length()
	if oldIndex < 0 || oldIndex >= n || newIndex < 0 || newIndex >= n {
		return fmt.Errorf("%w: move %d->%d of %d", host.ErrIndexOutOfRange, oldIndex, newIndex, n)
	}
	c := kids.Index(oldIndex)
	p.Call("removeChild", c)
	if newIndex == kids.Length() {
		p.Call("appendChild", c)
	} else {
		p.Call("insertBefore", c, kids.Index(newIndex))
	}
	return nil
}

// RemoveChild implements host.Surface.
func (d *Document) RemoveChild(child host.Handle) error {
	c, err := asValue(child)
	if err != nil {
		return err
	}
	parent := c.Get("parentNode")
	if parent.IsNull() {
		return fmt.Errorf("jshost: node has no parent")
	}
	parent.Call("removeChild", c)
	return nil
}

// SetAttribute implements host.Surface. value and checked are also written
// to the element's properties so that edits made by the user are
// overwritten.
func (d *Document) SetAttribute(h host.Handle, key string, value vdom.AttrValue) error {
	el, err := asValue(h)
	if err != nil {
		return err
	}
	switch {
	case value.IsBool() && !value.BoolValue():
		el.Call("removeAttribute", key)
	case value.IsBool():
		el.Call("setAttribute", key, "")
	default:
		el.Call("setAttribute", key, value.String())
	}
	switch key {
	case "value":
		el.Set("value", value.String())
	case "checked":
		el.Set("checked", value.BoolValue())
	}
	return nil
}

// RemoveAttribute implements host.Surface.
func (d *Document) RemoveAttribute(h host.Handle, key string) error {
	el, err := asValue(h)
	if err != nil {
		return err
	}
	el.Call("removeAttribute", key)
	return nil
}

// AttachListener implements host.Surface.
func (d *Document) AttachListener(h host.Handle, event string, cb host.Callback) (host.ListenerHandle, error) {
	el, err := asValue(h)
	if err != nil {
		return nil, err
	}
	fn := js.FuncOf(func(_ js.Value, args []js.Value) any {
		if len(args) > 0 {
			cb(toEvent(args[0]))
		}
		return nil
	})
	el.Call("addEventListener", event, fn)
	return &listener{fn: fn}, nil
}

// DetachListener implements host.Surface.
func (d *Document) DetachListener(h host.Handle, event string, l host.ListenerHandle) error {
	el, err := asValue(h)
	if err != nil {
		return err
	}
	ln, ok := l.(*listener)
	if !ok {
		return fmt.Errorf("%w: listener %T", host.ErrUnknownHandle, l)
	}
	el.Call("removeEventListener", event, ln.fn)
	ln.fn.Release()
	return nil
}

// Release implements host.Surface. Listener funcs are released by
// DetachListener; the reconciler detaches before releasing.
func (d *Document) Release(host.Handle) {}

// SetTitle implements host.Titler.
func (d *Document) SetTitle(title string) error {
	d.doc.Set("title", title)
	return nil
}

func toEvent(v js.Value) vdom.Event {
	ev := vdom.Event{
		Type:     v.Get("type").String(),
		ClientX:  intProp(v, "clientX"),
		ClientY:  intProp(v, "clientY"),
		OffsetX:  intProp(v, "offsetX"),
		OffsetY:  intProp(v, "offsetY"),
		KeyCode:  intProp(v, "keyCode"),
		ShiftKey: boolProp(v, "shiftKey"),
		AltKey:   boolProp(v, "altKey"),
		CtrlKey:  boolProp(v, "ctrlKey"),
		MetaKey:  boolProp(v, "metaKey"),
	}
	if ev.KeyCode == 0 {
		ev.KeyCode = intProp(v, "which")
	}
	if t := v.Get("target"); !t.IsUndefined() && !t.IsNull() {
		if val := t.Get("value"); val.Type() == js.TypeString {
			ev = ev.WithValue(val.String())
		}
	}
	return ev
}

func intProp(v js.Value, name string) int {
	p := v.Get(name)
	if p.Type() != js.TypeNumber {
		return 0
	}
	return p.Int()
}

func boolProp(v js.Value, name string) bool {
	p := v.Get(name)
	return p.Type() == js.TypeBoolean && p.Bool()
}
