package effect

import (
	"errors"
	"strings"
	"time"

	"github.com/vango-dev/domafic/pkg/vdom"
)

// Outcome errors carried in Result.Err. Use errors.Is to test for them; the
// underlying transport error is wrapped.
var (
	// ErrNetwork means the request could not be completed: connection
	// failure, invalid request, or a body that could not be read.
	ErrNetwork = errors.New("effect: network error")

	// ErrTimeout means the request did not complete within its timeout.
	ErrTimeout = errors.New("effect: request timed out")
)

// Header is a single header field. Order is preserved.
type Header struct {
	Key   string
	Value string
}

// Request describes an HTTP request issued from an update function.
type Request struct {
	Method  string // Defaults to GET
	URL     string
	Headers []Header
	Body    string

	// Timeout bounds the whole request, including reading the body. Zero
	// means the runner's default, which may be no timeout.
	Timeout time.Duration
}

// Response is a completed HTTP response.
type Response struct {
	StatusCode int
	StatusText string
	Headers    []Header // Sorted by key
	Body       string
}

// Header returns the first value of the named header, matched case
// insensitively.
func (r *Response) Header(key string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Key, key) {
			return h.Value, true
		}
	}
	return "", false
}

// Result is the eventual outcome of a Request. Exactly one of Response and
// Err is set.
type Result struct {
	Response *Response
	Err      error
}

// OK reports whether the request completed, regardless of status code.
func (r Result) OK() bool { return r.Err == nil && r.Response != nil }

// ResponseHandler turns the outcome of a request into a message for the
// update function. A nil message is dropped.
type ResponseHandler func(Result) vdom.Message

// IO is the side-effect surface handed to update functions. Calls never
// block: outcomes come back later as ordinary messages.
type IO interface {
	// HTTP issues req and eventually delivers handle's message.
	HTTP(req Request, handle ResponseHandler)

	// SetTitle sets the document title.
	SetTitle(title string)
}

// Nop is an IO that ignores every call.
type Nop struct{}

// HTTP implements IO.
func (Nop) HTTP(Request, ResponseHandler) {}

// SetTitle implements IO.
func (Nop) SetTitle(string) {}
