package htmlhost

import (
	"strings"

	"golang.org/x/net/html"
)

// selector is a single compound selector: an optional tag, an optional
// #id and any number of .class parts, e.g. "ul#todos.open".
type selector struct {
	tag     string
	id      string
	classes []string
}

func parseSelector(s string) selector {
	var sel selector
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, "#.")
	if i < 0 {
		sel.tag = strings.ToLower(s)
		return sel
	}
	sel.tag = strings.ToLower(s[:i])
	rest := s[i:]
	for rest != "" {
		marker := rest[0]
		rest = rest[1:]
		end := strings.IndexAny(rest, "#.")
		if end < 0 {
			end = len(rest)
		}
		part := rest[:end]
		rest = rest[end:]
		if marker == '#' {
			sel.id = part
		} else if part != "" {
			sel.classes = append(sel.classes, part)
		}
	}
	return sel
}

func (sel selector) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if sel.tag != "" && sel.tag != "*" && n.Data != sel.tag {
		return false
	}
	if sel.id != "" && attrOf(n, "id") != sel.id {
		return false
	}
	if len(sel.classes) > 0 {
		have := strings.Fields(attrOf(n, "class"))
		for _, want := range sel.classes {
			found := false
			for _, c := range have {
				if c == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func attrOf(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

// Find returns the first element, in document order, matching a compound
// selector such as "body", "#app" or "li.done". Combinators are not
// supported. It returns nil when nothing matches.
func (d *Document) Find(selector string) *html.Node {
	all := d.findAll(parseSelector(selector), 1)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

// FindAll returns every element matching selector, in document order.
func (d *Document) FindAll(selector string) []*html.Node {
	return d.findAll(parseSelector(selector), -1)
}

func (d *Document) findAll(sel selector, limit int) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if sel.matches(n) {
			out = append(out, n)
			if limit > 0 && len(out) >= limit {
				return false
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(d.root)
	return out
}
