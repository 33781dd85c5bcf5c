package effect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/vango-dev/domafic/pkg/host"
	"github.com/vango-dev/domafic/pkg/vdom"
)

// Runner is the standard IO. HTTP requests run on their own goroutine with
// a net/http client and post their outcome through send.
type Runner struct {
	send    func(vdom.Message)
	client  *http.Client
	titler  host.Titler
	logger  *slog.Logger
	timeout time.Duration

	wg sync.WaitGroup
}

// Option configures a Runner.
type Option func(*Runner)

// WithClient sets the HTTP client. The default is http.DefaultClient.
func WithClient(c *http.Client) Option {
	return func(r *Runner) {
		if c != nil {
			r.client = c
		}
	}
}

// WithTitler sets where SetTitle goes. Without one SetTitle is ignored.
func WithTitler(t host.Titler) Option {
	return func(r *Runner) {
		r.titler = t
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithDefaultTimeout applies d to requests that carry no timeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// NewRunner creates a Runner posting outcomes with send. send must be safe
// to call from any goroutine.
func NewRunner(send func(vdom.Message), opts ...Option) *Runner {
	r := &Runner{
		send:   send,
		client: http.DefaultClient,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HTTP implements IO.
func (r *Runner) HTTP(req Request, handle ResponseHandler) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		res := r.do(req)
		if handle == nil {
			return
		}
		if msg := handle(res); msg != nil {
			r.send(msg)
		}
	}()
}

// SetTitle implements IO. It must be called from the goroutine that owns
// the host, which is the case inside an update function.
func (r *Runner) SetTitle(title string) {
	if r.titler == nil {
		return
	}
	if err := r.titler.SetTitle(title); err != nil {
		r.logger.Warn("set title failed", "error", err)
	}
}

// Wait blocks until every request issued so far has delivered its outcome.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) do(req Request) Result {
	start := time.Now()
	ctx := context.Background()
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return Result{Err: fmt.Errorf("%w: %w", ErrNetwork, err)}
	}
	for _, h := range req.Headers {
		hreq.Header.Add(h.Key, h.Value)
	}

	resp, err := r.client.Do(hreq)
	if err != nil {
		res := Result{Err: classify(err)}
		r.logger.Debug("http effect failed", "method", method, "url", req.URL, "error", err)
		return res
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Err: classify(err)}
	}

	r.logger.Debug("http effect",
		"method", method,
		"url", req.URL,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)
	return Result{Response: &Response{
		StatusCode: resp.StatusCode,
		StatusText: statusText(resp),
		Headers:    flattenHeaders(resp.Header),
		Body:       string(data),
	}}
}

func classify(err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}

// statusText strips the code from resp.Status ("200 OK" -> "OK").
func statusText(resp *http.Response) string {
	if _, text, ok := strings.Cut(resp.Status, " "); ok {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

func flattenHeaders(h http.Header) []Header {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	var out []Header
	for _, k := range keys {
		for _, v := range h[k] {
			out = append(out, Header{Key: k, Value: v})
		}
	}
	return out
}
