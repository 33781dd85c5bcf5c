package htmlhost

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vango-dev/domafic/pkg/host"
	"github.com/vango-dev/domafic/pkg/vdom"
)

const blankPage = "<!DOCTYPE html><html><head><title></title></head><body></body></html>"

// Document is an in-process host document. Handles are *html.Node values.
// A Document is not safe for concurrent use.
type Document struct {
	root      *html.Node
	listeners map[*html.Node][]listener
	nextID    uint64
}

// listener is an attached callback. Its ListenerHandle is the id.
type listener struct {
	id    uint64
	event string
	cb    host.Callback
}

var _ host.Document = (*Document)(nil)

// New returns a blank HTML document.
func New() *Document {
	doc, err := Parse(strings.NewReader(blankPage))
	if err != nil {
		panic(err) // blankPage is constant
	}
	return doc
}

// Parse builds a Document from HTML.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmlhost: parse: %w", err)
	}
	return &Document{
		root:      root,
		listeners: make(map[*html.Node][]listener),
	}, nil
}

// Root returns the underlying document node.
func (d *Document) Root() *html.Node { return d.root }

func asNode(h host.Handle) (*html.Node, error) {
	n, ok := h.(*html.Node)
	if !ok || n == nil {
		return nil, fmt.Errorf("%w: %T", host.ErrUnknownHandle, h)
	}
	return n, nil
}

// Mount implements host.Document.
func (d *Document) Mount(selector string) (host.Handle, error) {
	n := d.Find(selector)
	if n == nil {
		return nil, fmt.Errorf("%w: %q", host.ErrRootNotFound, selector)
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		d.releaseTree(c)
		c = next
	}
	return n, nil
}

// CreateElement implements host.Surface.
func (d *Document) CreateElement(tag string) (host.Handle, error) {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}, nil
}

// CreateText implements host.Surface.
func (d *Document) CreateText(content string) (host.Handle, error) {
	return &html.Node{Type: html.TextNode, Data: content}, nil
}

// childAt returns the index'th child of n, or nil if n has fewer children.
func childAt(n *html.Node, index int) *html.Node {
	c := n.FirstChild
	for i := 0; c != nil && i < index; i++ {
		c = c.NextSibling
	}
	return c
}

func childCount(n *html.Node) int {
	count := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		count++
	}
	return count
}

// InsertChild implements host.Surface.
func (d *Document) InsertChild(parent host.Handle, index int, child host.Handle) error {
	p, err := asNode(parent)
	if err != nil {
		return err
	}
	c, err := asNode(child)
	if err != nil {
		return err
	}
	count := childCount(p)
	if index < 0 || index > count {
		return fmt.Errorf("%w: insert at %d of %d", host.ErrIndexOutOfRange, index, count)
	}
	if c.Parent != nil {
		c.Parent.RemoveChild(c)
	}
	if index == count {
		p.AppendChild(c)
	} else {
		p.InsertBefore(c, childAt(p, index))
	}
	return nil
}

// MoveChild implements host.Surface.
func (d *Document) MoveChild(parent host.Handle, oldIndex, newIndex int) error {
	p, err := asNode(parent)
	if err != nil {
		return err
	}
	count := childCount(p)
	if oldIndex < 0 || oldIndex >= count || newIndex < 0 || newIndex >= count {
		return fmt.Errorf("%w: move %d->%d of %d", host.ErrIndexOutOfRange, oldIndex, newIndex, count)
	}
	if oldIndex == newIndex {
		return nil
	}
	c := childAt(p, oldIndex)
	p.RemoveChild(c)
	if ref := childAt(p, newIndex); ref != nil {
		p.InsertBefore(c, ref)
	} else {
		p.AppendChild(c)
	}
	return nil
}

// RemoveChild implements host.Surface.
func (d *Document) RemoveChild(child host.Handle) error {
	c, err := asNode(child)
	if err != nil {
		return err
	}
	if c.Parent != nil {
		c.Parent.RemoveChild(c)
	}
	return nil
}

// SetAttribute implements host.Surface. A false boolean removes the
// attribute; a true boolean sets it with an empty value.
func (d *Document) SetAttribute(h host.Handle, key string, value vdom.AttrValue) error {
	n, err := asNode(h)
	if err != nil {
		return err
	}
	if n.Type != html.ElementNode {
		return fmt.Errorf("htmlhost: set attribute %q on non-element", key)
	}
	if value.IsBool() {
		if !value.BoolValue() {
			removeAttr(n, key)
			return nil
		}
		setAttr(n, key, "")
		return nil
	}
	setAttr(n, key, value.String())
	return nil
}

// RemoveAttribute implements host.Surface.
func (d *Document) RemoveAttribute(h host.Handle, key string) error {
	n, err := asNode(h)
	if err != nil {
		return err
	}
	removeAttr(n, key)
	return nil
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	n.Attr = slices.DeleteFunc(n.Attr, func(a html.Attribute) bool {
		return a.Namespace == "" && a.Key == key
	})
}

// Attr returns the value of an attribute of h.
func Attr(h host.Handle, key string) (string, bool) {
	n, err := asNode(h)
	if err != nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// AttachListener implements host.Surface. The returned handle is a uint64.
func (d *Document) AttachListener(h host.Handle, event string, cb host.Callback) (host.ListenerHandle, error) {
	n, err := asNode(h)
	if err != nil {
		return nil, err
	}
	d.nextID++
	d.listeners[n] = append(d.listeners[n], listener{id: d.nextID, event: event, cb: cb})
	return d.nextID, nil
}

// DetachListener implements host.Surface.
func (d *Document) DetachListener(h host.Handle, event string, l host.ListenerHandle) error {
	n, err := asNode(h)
	if err != nil {
		return err
	}
	id, ok := l.(uint64)
	if !ok {
		return fmt.Errorf("%w: listener %T", host.ErrUnknownHandle, l)
	}
	before := len(d.listeners[n])
	d.listeners[n] = slices.DeleteFunc(d.listeners[n], func(x listener) bool {
		return x.id == id && x.event == event
	})
	if len(d.listeners[n]) == before {
		return fmt.Errorf("%w: listener %d", host.ErrUnknownHandle, id)
	}
	if len(d.listeners[n]) == 0 {
		delete(d.listeners, n)
	}
	return nil
}

// Release implements host.Surface.
func (d *Document) Release(h host.Handle) {
	if n, err := asNode(h); err == nil {
		delete(d.listeners, n)
	}
}

func (d *Document) releaseTree(n *html.Node) {
	delete(d.listeners, n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.releaseTree(c)
	}
}

// ListenerCount returns the number of listeners attached to h.
func (d *Document) ListenerCount(h host.Handle) int {
	n, err := asNode(h)
	if err != nil {
		return 0
	}
	return len(d.listeners[n])
}

// Dispatch fires every listener for ev.Type attached to h, in attach order,
// and returns how many ran. Listeners attached or detached by a callback
// take effect for the next dispatch.
func (d *Document) Dispatch(h host.Handle, ev vdom.Event) int {
	n, err := asNode(h)
	if err != nil {
		return 0
	}
	var fired []host.Callback
	for _, l := range d.listeners[n] {
		if l.event == ev.Type {
			fired = append(fired, l.cb)
		}
	}
	for _, cb := range fired {
		cb(ev)
	}
	return len(fired)
}

// SetTitle implements host.Titler.
func (d *Document) SetTitle(title string) error {
	t := d.Find("title")
	if t == nil {
		return fmt.Errorf("%w: title", host.ErrRootNotFound)
	}
	for c := t.FirstChild; c != nil; {
		next := c.NextSibling
		t.RemoveChild(c)
		c = next
	}
	t.AppendChild(&html.Node{Type: html.TextNode, Data: title})
	return nil
}

// Title returns the text of the <title> element.
func (d *Document) Title() string {
	t := d.Find("title")
	if t == nil || t.FirstChild == nil {
		return ""
	}
	return t.FirstChild.Data
}

// Render writes the whole document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// InnerHTML returns the serialized children of h.
func InnerHTML(h host.Handle) string {
	n, err := asNode(h)
	if err != nil {
		return ""
	}
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}
