package effect

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/domafic/pkg/host/htmlhost"
	"github.com/vango-dev/domafic/pkg/vdom"
)

// collector gathers posted messages.
type collector struct {
	mu   sync.Mutex
	msgs []vdom.Message
}

func (c *collector) send(msg vdom.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *collector) results(t *testing.T) []Result {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Result
	for _, m := range c.msgs {
		res, ok := m.(Result)
		if !ok {
			t.Fatalf("unexpected message %T", m)
		}
		out = append(out, res)
	}
	return out
}

func passThrough(res Result) vdom.Message { return res }

func TestHTTPSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Method", r.Method)
		w.Header().Set("X-Token", r.Header.Get("X-Token"))
		w.Header().Add("Set-Cookie", "a=1")
		w.Header().Add("Set-Cookie", "b=2")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(append([]byte("echo:"), body...))
	}))
	defer srv.Close()

	var c collector
	r := NewRunner(c.send)
	r.HTTP(Request{
		Method:  http.MethodPost,
		URL:     srv.URL,
		Headers: []Header{{"X-Token", "secret"}},
		Body:    "buy milk",
	}, passThrough)
	r.Wait()

	results := c.results(t)
	if len(results) != 1 {
		t.Fatalf("got %d results", len(results))
	}
	res := results[0]
	if !res.OK() {
		t.Fatalf("request failed: %v", res.Err)
	}
	if res.Response.StatusCode != http.StatusCreated || res.Response.StatusText != "Created" {
		t.Errorf("status = %d %q", res.Response.StatusCode, res.Response.StatusText)
	}
	if res.Response.Body != "echo:buy milk" {
		t.Errorf("body = %q", res.Response.Body)
	}
	if v, _ := res.Response.Header("x-method"); v != http.MethodPost {
		t.Errorf("X-Method = %q", v)
	}
	if v, _ := res.Response.Header("X-Token"); v != "secret" {
		t.Errorf("X-Token = %q", v)
	}

	var cookies []Header
	for _, h := range res.Response.Headers {
		if h.Key == "Set-Cookie" {
			cookies = append(cookies, h)
		}
	}
	want := []Header{{"Set-Cookie", "a=1"}, {"Set-Cookie", "b=2"}}
	if diff := cmp.Diff(want, cookies); diff != "" {
		t.Errorf("repeated headers (-want +got):\n%s", diff)
	}
}

func TestHTTPTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	tests := []struct {
		name string
		req  Request
		opts []Option
	}{
		{"request timeout", Request{URL: srv.URL, Timeout: 20 * time.Millisecond}, nil},
		{"default timeout", Request{URL: srv.URL}, []Option{WithDefaultTimeout(20 * time.Millisecond)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c collector
			r := NewRunner(c.send, tt.opts...)
			r.HTTP(tt.req, passThrough)
			r.Wait()

			results := c.results(t)
			if len(results) != 1 {
				t.Fatalf("got %d results", len(results))
			}
			if !errors.Is(results[0].Err, ErrTimeout) {
				t.Errorf("Err = %v, want ErrTimeout", results[0].Err)
			}
			if results[0].Response != nil {
				t.Error("timed out request carries a response")
			}
		})
	}
}

func TestHTTPNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	tests := []struct {
		name string
		req  Request
	}{
		{"connection refused", Request{URL: url}},
		{"invalid method", Request{Method: "BAD METHOD", URL: url}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c collector
			r := NewRunner(c.send)
			r.HTTP(tt.req, passThrough)
			r.Wait()

			results := c.results(t)
			if len(results) != 1 || !errors.Is(results[0].Err, ErrNetwork) {
				t.Errorf("results = %+v, want one ErrNetwork", results)
			}
		})
	}
}

func TestHTTPDropsNilMessages(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	var c collector
	r := NewRunner(c.send)
	r.HTTP(Request{URL: srv.URL}, func(Result) vdom.Message { return nil })
	r.HTTP(Request{URL: srv.URL}, nil)
	r.Wait()

	if len(c.results(t)) != 0 {
		t.Error("nil messages were posted")
	}
}

func TestSetTitle(t *testing.T) {
	doc := htmlhost.New()
	r := NewRunner(func(vdom.Message) {}, WithTitler(doc))
	r.SetTitle("Todos")
	if got := doc.Title(); got != "Todos" {
		t.Errorf("Title() = %q", got)
	}

	// Without a titler the call is ignored.
	NewRunner(func(vdom.Message) {}).SetTitle("ignored")
	Nop{}.SetTitle("ignored")
}
