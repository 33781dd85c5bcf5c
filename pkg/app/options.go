package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/vango-dev/domafic/pkg/effect"
)

// Option configures a Program.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	middleware []Middleware
	client     *http.Client
	io         effect.IO
	fxTimeout  time.Duration
}

// WithLogger sets the logger for the program and its reconciler.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMiddleware appends cycle middleware. The first one added is the
// outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *options) {
		o.middleware = append(o.middleware, mw...)
	}
}

// WithHTTPClient sets the client used for HTTP effects.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithEffectTimeout sets the default timeout of HTTP effects that carry
// none.
func WithEffectTimeout(d time.Duration) Option {
	return func(o *options) {
		o.fxTimeout = d
	}
}

// WithEffects replaces the side-effect surface handed to the update
// function. WithHTTPClient and WithEffectTimeout are ignored when set.
func WithEffects(io effect.IO) Option {
	return func(o *options) {
		o.io = io
	}
}
