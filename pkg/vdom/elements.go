package vdom

import "fmt"

// El creates an element with the given tag. Arguments are applied in order
// and may be: nil, Attr, []Attr, Listener, []Listener, Node, []Node, Nodes
// or string (a text child). Any other argument type panics.
//
// A later attribute with the same key replaces the earlier one in place, so
// an element's attributes are always unique by key.
func El(tag string, args ...any) *Element {
	e := &Element{tag: tag}
	for _, arg := range args {
		e.apply(arg)
	}
	return e
}

func (e *Element) apply(arg any) {
	switch v := arg.(type) {
	case nil:
		// Ignore nil (allows conditional arguments)
	case Attr:
		e.setAttr(v)
	case []Attr:
		for _, a := range v {
			e.setAttr(a)
		}
	case Listener:
		if v.Handler != nil {
			e.listeners = append(e.listeners, v)
		}
	case []Listener:
		for _, l := range v {
			e.apply(l)
		}
	case string:
		e.children = append(e.children, Text(v))
	case Node:
		if !IsNil(v) {
			e.children = append(e.children, v)
		}
	case []Node:
		e.children = append(e.children, Slice[Node](v))
	case Nodes:
		e.children = append(e.children, v)
	default:
		panic(fmt.Sprintf("vdom: unsupported argument %T for <%s>", arg, e.tag))
	}
}

func (e *Element) setAttr(a Attr) {
	if a.IsEmpty() {
		return
	}
	for i := range e.attrs {
		if e.attrs[i].Key == a.Key {
			e.attrs[i] = a
			return
		}
	}
	e.attrs = append(e.attrs, a)
}

// Text creates a text node.
func Text(content string) TextNode {
	return TextNode{content: content}
}

// Textf creates a formatted text node.
func Textf(format string, args ...any) TextNode {
	return Text(fmt.Sprintf(format, args...))
}

// Document structure

func Header(args ...any) *Element  { return El("header", args...) }
func Footer(args ...any) *Element  { return El("footer", args...) }
func Main(args ...any) *Element    { return El("main", args...) }
func Nav(args ...any) *Element     { return El("nav", args...) }
func Section(args ...any) *Element { return El("section", args...) }
func Article(args ...any) *Element { return El("article", args...) }
func Aside(args ...any) *Element   { return El("aside", args...) }
func H1(args ...any) *Element      { return El("h1", args...) }
func H2(args ...any) *Element      { return El("h2", args...) }
func H3(args ...any) *Element      { return El("h3", args...) }
func H4(args ...any) *Element      { return El("h4", args...) }

// Content grouping

func Div(args ...any) *Element        { return El("div", args...) }
func P(args ...any) *Element          { return El("p", args...) }
func Span(args ...any) *Element       { return El("span", args...) }
func Pre(args ...any) *Element        { return El("pre", args...) }
func Blockquote(args ...any) *Element { return El("blockquote", args...) }
func Ul(args ...any) *Element         { return El("ul", args...) }
func Ol(args ...any) *Element         { return El("ol", args...) }
func Li(args ...any) *Element         { return El("li", args...) }
func Hr(args ...any) *Element         { return El("hr", args...) }

// Inline text

func Anchor(args ...any) *Element { return El("a", args...) }
func Strong(args ...any) *Element { return El("strong", args...) }
func Em(args ...any) *Element     { return El("em", args...) }
func Small(args ...any) *Element  { return El("small", args...) }
func Code(args ...any) *Element   { return El("code", args...) }
func Br(args ...any) *Element     { return El("br", args...) }

// Forms

func Form(args ...any) *Element     { return El("form", args...) }
func Input(args ...any) *Element    { return El("input", args...) }
func Textarea(args ...any) *Element { return El("textarea", args...) }
func Select(args ...any) *Element   { return El("select", args...) }
func Option(args ...any) *Element   { return El("option", args...) }
func Button(args ...any) *Element   { return El("button", args...) }
func Label(args ...any) *Element    { return El("label", args...) }
func Fieldset(args ...any) *Element { return El("fieldset", args...) }

// Tables

func Table(args ...any) *Element { return El("table", args...) }
func Thead(args ...any) *Element { return El("thead", args...) }
func Tbody(args ...any) *Element { return El("tbody", args...) }
func Tr(args ...any) *Element    { return El("tr", args...) }
func Th(args ...any) *Element    { return El("th", args...) }
func Td(args ...any) *Element    { return El("td", args...) }

// Media

func Img(args ...any) *Element { return El("img", args...) }
