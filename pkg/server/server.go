package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/domafic/pkg/app"
	"github.com/vango-dev/domafic/pkg/host"
	"github.com/vango-dev/domafic/pkg/host/wshost"
	"github.com/vango-dev/domafic/pkg/middleware"
)

// RunFunc runs one program on doc, mounted at selector, until ctx is done.
// It is called once per WebSocket connection.
type RunFunc func(ctx context.Context, doc host.Document, selector string, opts ...app.Option) error

// Server serves a page with the thin client and runs one program per
// WebSocket connection, rendering into the browser that opened it.
type Server struct {
	config  *Config
	run     RunFunc
	logger  *slog.Logger
	metrics *middleware.Metrics

	upgrader websocket.Upgrader
	router   chi.Router

	// Programs stop when base is cancelled.
	base   context.Context
	cancel context.CancelFunc
	conns  sync.WaitGroup
	active atomic.Int64

	mu         sync.Mutex
	closing    bool // guarded by mu, together with conns.Add
	httpServer *http.Server
}

// New creates a Server running run for every connection.
func New(cfg *Config, run RunFunc) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg = cfg.withDefaults()

	base, cancel := context.WithCancel(context.Background())
	s := &Server{
		config: cfg,
		run:    run,
		logger: cfg.Logger.With("component", "server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
		base:   base,
		cancel: cancel,
	}

	if cfg.MetricsPath != "" {
		opts := []middleware.MetricsOption{middleware.WithNamespace(cfg.MetricsNamespace)}
		if cfg.Registry != nil {
			opts = append(opts, middleware.WithRegistry(cfg.Registry))
		}
		s.metrics = middleware.Prometheus(opts...)
	}

	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/", s.servePage)
	r.Head("/", s.servePage)
	r.Get(ClientPath, s.serveThinClient)
	r.Head(ClientPath, s.serveThinClient)
	r.Get(s.config.WSPath, s.HandleWebSocket)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})

	if s.config.MetricsPath != "" {
		var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
		if s.config.Registry != nil {
			gatherer = s.config.Registry
		}
		r.Handle(s.config.MetricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the server's router for mounting in another mux.
func (s *Server) Handler() http.Handler {
	return s.router
}

// programOptions returns the options every program is started with.
func (s *Server) programOptions(logger *slog.Logger) []app.Option {
	opts := []app.Option{
		app.WithLogger(logger),
		app.WithEffectTimeout(s.config.EffectTimeout),
	}
	if s.config.Tracing {
		opts = append(opts, app.WithMiddleware(middleware.OpenTelemetry(
			middleware.WithTracerName(s.config.TracerName),
		)))
	}
	if s.metrics != nil {
		opts = append(opts, app.WithMiddleware(s.metrics))
	}
	return opts
}

// HandleWebSocket upgrades the connection and runs a program on it until
// the client goes away or the server shuts down.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.track() {
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.conns.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		s.wsError("upgrade")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.config.MaxMessageSize)

	s.active.Add(1)
	defer s.active.Add(-1)
	if s.metrics != nil {
		s.metrics.ProgramStarted()
		defer s.metrics.ProgramStopped()
	}

	logger := s.logger.With("remote", r.RemoteAddr, "request_id", chimw.GetReqID(r.Context()))
	logger.Info("program started")

	ctx, cancel := context.WithCancel(s.base)
	defer cancel()

	doc := wshost.New(conn, wshost.WithLogger(logger))
	go func() {
		defer cancel()
		if err := doc.ReadLoop(); err != nil && ctx.Err() == nil {
			logger.Warn("read error", "error", err)
			s.wsError("read")
		}
	}()

	selector := "#" + s.config.rootID()
	if err := s.run(ctx, doc, selector, s.programOptions(logger)...); err != nil {
		logger.Error("program stopped", "error", err)
		s.wsError("program")
		msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "program stopped")
		_ = conn.WriteMessage(websocket.CloseMessage, msg)
		return
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteMessage(websocket.CloseMessage, msg)
	logger.Info("program finished")
}

// track registers a connection with the shutdown wait group. It reports
// false once Shutdown has begun.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns.Add(1)
	return true
}

func (s *Server) wsError(kind string) {
	if s.metrics != nil {
		s.metrics.WebSocketError(kind)
	}
}

// Active returns the number of running programs.
func (s *Server) Active() int {
	return int(s.active.Load())
}

// ListenAndServe listens on the configured address and serves until ctx is
// done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops every program and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	// Stop programs first; hijacked connections are not tracked by http.Server.
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("programs still running at shutdown", "active", s.Active())
	}

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Config returns the server configuration.
func (s *Server) Config() *Config {
	return s.config
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}
