package vdom

import (
	"strconv"
	"strings"
)

// AttrValue is an attribute value: either a string or a boolean.
// AttrValue is comparable with ==.
type AttrValue struct {
	isBool bool
	b      bool
	s      string
}

// Str returns a string attribute value.
func Str(s string) AttrValue { return AttrValue{s: s} }

// Bool returns a boolean attribute value.
func Bool(b bool) AttrValue { return AttrValue{isBool: true, b: b} }

// IsBool reports whether the value is a boolean.
func (v AttrValue) IsBool() bool { return v.isBool }

// BoolValue returns the boolean, or false for string values.
func (v AttrValue) BoolValue() bool { return v.isBool && v.b }

// String returns the value as a string. Booleans render as "true"/"false".
func (v AttrValue) String() string {
	if v.isBool {
		return strconv.FormatBool(v.b)
	}
	return v.s
}

// Attr is a single key/value attribute.
type Attr struct {
	Key   string
	Value AttrValue
}

// IsEmpty returns true if this is an empty/nil attribute.
func (a Attr) IsEmpty() bool {
	return a.Key == ""
}

// attr creates a string Attr with the given key and value.
func attr(key, value string) Attr {
	return Attr{Key: key, Value: Str(value)}
}

// boolAttr creates a boolean Attr.
func boolAttr(key string, value bool) Attr {
	return Attr{Key: key, Value: Bool(value)}
}

// A creates a string attribute with an arbitrary key.
func A(key, value string) Attr { return attr(key, value) }

// BoolA creates a boolean attribute with an arbitrary key.
func BoolA(key string, value bool) Attr { return boolAttr(key, value) }

// Identity attributes

// ID sets the id attribute.
func ID(id string) Attr { return attr("id", id) }

// Class sets the class attribute, joining multiple classes with spaces.
func Class(classes ...string) Attr { return attr("class", strings.Join(classes, " ")) }

// ClassIf sets the class attribute only when cond is true.
func ClassIf(cond bool, classes ...string) Attr {
	if !cond {
		return Attr{}
	}
	return Class(classes...)
}

// StyleAttr sets the style attribute.
func StyleAttr(style string) Attr { return attr("style", style) }

// TitleAttr sets the title attribute (tooltip).
func TitleAttr(title string) Attr { return attr("title", title) }

// Data creates a data-* attribute.
// Example: Data("id", "123") → data-id="123"
func Data(key, value string) Attr { return attr("data-"+key, value) }

// Link attributes

// Href sets the href attribute.
func Href(url string) Attr { return attr("href", url) }

// Target sets the target attribute.
func Target(target string) Attr { return attr("target", target) }

// Form attributes

// Type sets the type attribute.
func Type(t string) Attr { return attr("type", t) }

// Name sets the name attribute.
func Name(name string) Attr { return attr("name", name) }

// ValueAttr sets the value attribute.
func ValueAttr(value string) Attr { return attr("value", value) }

// Placeholder sets the placeholder attribute.
func Placeholder(text string) Attr { return attr("placeholder", text) }

// For sets the for attribute of a label.
func For(id string) Attr { return attr("for", id) }

// Autofocus sets the autofocus attribute.
func Autofocus(on bool) Attr { return boolAttr("autofocus", on) }

// Checked sets the checked attribute.
func Checked(on bool) Attr { return boolAttr("checked", on) }

// Disabled sets the disabled attribute.
func Disabled(on bool) Attr { return boolAttr("disabled", on) }

// Readonly sets the readonly attribute.
func Readonly(on bool) Attr { return boolAttr("readonly", on) }

// Required sets the required attribute.
func Required(on bool) Attr { return boolAttr("required", on) }

// Hidden sets the hidden attribute.
func Hidden(on bool) Attr { return boolAttr("hidden", on) }

// Accessibility attributes

// Role sets the role attribute.
func Role(role string) Attr { return attr("role", role) }

// AriaLabel sets the aria-label attribute.
func AriaLabel(label string) Attr { return attr("aria-label", label) }

// AriaHidden sets the aria-hidden attribute.
func AriaHidden(hidden bool) Attr { return boolAttr("aria-hidden", hidden) }
