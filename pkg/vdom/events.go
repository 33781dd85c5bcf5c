package vdom

// Event is the host-independent record of a DOM event delivered to a
// listener's handler.
type Event struct {
	Type        string  `json:"type"`
	TargetValue *string `json:"value,omitempty"`
	ClientX     int     `json:"clientX"`
	ClientY     int     `json:"clientY"`
	OffsetX     int     `json:"offsetX"`
	OffsetY     int     `json:"offsetY"`
	KeyCode     int     `json:"keyCode"`
	ShiftKey    bool    `json:"shiftKey"`
	AltKey      bool    `json:"altKey"`
	CtrlKey     bool    `json:"ctrlKey"`
	MetaKey     bool    `json:"metaKey"`
}

// Value returns the event target's value, if the target had one.
func (e Event) Value() (string, bool) {
	if e.TargetValue == nil {
		return "", false
	}
	return *e.TargetValue, true
}

// WithValue returns a copy of e whose target value is v.
func (e Event) WithValue(v string) Event {
	e.TargetValue = &v
	return e
}

// Key codes reported in Event.KeyCode.
const (
	KeyBackspace = 8
	KeyTab       = 9
	KeyEnter     = 13
	KeyEscape    = 27
	KeySpace     = 32
	KeyLeft      = 37
	KeyUp        = 38
	KeyRight     = 39
	KeyDown      = 40
	KeyDelete    = 46
)

// Handler converts a host event into an application message.
type Handler func(Event) Message

// Listener binds a Handler to an event name such as "click".
type Listener struct {
	Event   string
	Handler Handler
}

// ListenerID identifies a listener across renders: the event name together
// with its ordinal among the element's listeners for that event. Handlers
// are not part of the identity; a retained listener picks up the handler
// declared by the latest render.
type ListenerID struct {
	Event string
	Index int
}

// ListenerIDs returns the identity of each listener in ls, in order.
func ListenerIDs(ls []Listener) []ListenerID {
	ids := make([]ListenerID, len(ls))
	seen := make(map[string]int, len(ls))
	for i, l := range ls {
		ids[i] = ListenerID{Event: l.Event, Index: seen[l.Event]}
		seen[l.Event]++
	}
	return ids
}

// On creates a Listener for the named event.
func On(event string, handler Handler) Listener {
	return Listener{Event: event, Handler: handler}
}

// Send returns a handler that ignores the event and produces msg.
func Send(msg Message) Handler {
	return func(Event) Message { return msg }
}

// Mouse events

// OnClick handles click events.
func OnClick(handler Handler) Listener { return On("click", handler) }

// OnDblClick handles double-click events.
func OnDblClick(handler Handler) Listener { return On("dblclick", handler) }

// OnMouseDown handles mousedown events.
func OnMouseDown(handler Handler) Listener { return On("mousedown", handler) }

// OnMouseUp handles mouseup events.
func OnMouseUp(handler Handler) Listener { return On("mouseup", handler) }

// OnMouseMove handles mousemove events.
func OnMouseMove(handler Handler) Listener { return On("mousemove", handler) }

// OnMouseEnter handles mouseenter events.
func OnMouseEnter(handler Handler) Listener { return On("mouseenter", handler) }

// OnMouseLeave handles mouseleave events.
func OnMouseLeave(handler Handler) Listener { return On("mouseleave", handler) }

// Keyboard events

// OnKeyDown handles keydown events.
func OnKeyDown(handler Handler) Listener { return On("keydown", handler) }

// OnKeyUp handles keyup events.
func OnKeyUp(handler Handler) Listener { return On("keyup", handler) }

// Form events

// OnInput handles input events (fired when value changes).
func OnInput(handler Handler) Listener { return On("input", handler) }

// OnChange handles change events (fired when value is committed).
func OnChange(handler Handler) Listener { return On("change", handler) }

// OnSubmit handles form submit events.
func OnSubmit(handler Handler) Listener { return On("submit", handler) }

// OnFocus handles focus events.
func OnFocus(handler Handler) Listener { return On("focus", handler) }

// OnBlur handles blur events.
func OnBlur(handler Handler) Listener { return On("blur", handler) }
