package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/domafic/internal/config"
)

// Config configures a Server.
type Config struct {
	// Address is the address to listen on (e.g., ":3000").
	Address string

	// WSPath is the path of the WebSocket endpoint.
	// Default: "/ws".
	WSPath string

	// Root is the selector every program mounts at. The page renders an
	// element with the matching id.
	// Default: "#app".
	Root string

	// Title is the page title served before the program starts.
	Title string

	// ReadBufferSize and WriteBufferSize size the WebSocket buffers.
	// Default: 4096.
	ReadBufferSize  int
	WriteBufferSize int

	// MaxMessageSize limits client frames.
	// Default: 64KB.
	MaxMessageSize int64

	// CheckOrigin is called to validate the request origin.
	// Default: SameOriginCheck.
	CheckOrigin func(r *http.Request) bool

	// MetricsPath mounts a Prometheus endpoint when non-empty.
	MetricsPath string

	// MetricsNamespace prefixes every metric name.
	// Default: "domafic".
	MetricsNamespace string

	// Registry holds the metrics. Default: the global registry.
	Registry *prometheus.Registry

	// Tracing installs OpenTelemetry middleware on every program.
	Tracing bool

	// TracerName is the tracer name used when Tracing is set.
	TracerName string

	// EffectTimeout is the default timeout of HTTP effects.
	EffectTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// ReadHeaderTimeout bounds reading request headers.
	// Default: 10 seconds.
	ReadHeaderTimeout time.Duration

	// Logger is the server logger. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with default values.
//
// SECURITY: CheckOrigin enforces same-origin by default.
func DefaultConfig() *Config {
	return &Config{
		Address:           ":3000",
		WSPath:            config.DefaultWSPath,
		Root:              config.DefaultRoot,
		Title:             "domafic",
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		MaxMessageSize:    64 * 1024,
		CheckOrigin:       SameOriginCheck,
		MetricsNamespace:  config.DefaultNamespace,
		TracerName:        config.DefaultNamespace,
		ShutdownTimeout:   30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// FromConfig converts a loaded domafic.json into a server Config.
func FromConfig(c *config.Config, logger *slog.Logger) *Config {
	cfg := DefaultConfig()
	cfg.Address = c.Address()
	cfg.WSPath = c.Server.WSPath
	cfg.Root = c.App.Root
	cfg.Title = c.App.Title
	if c.Server.ReadBufferSize > 0 {
		cfg.ReadBufferSize = c.Server.ReadBufferSize
	}
	if c.Server.WriteBufferSize > 0 {
		cfg.WriteBufferSize = c.Server.WriteBufferSize
	}
	if len(c.Server.AllowedOrigins) > 0 {
		cfg.CheckOrigin = AllowedOriginsCheck(c.Server.AllowedOrigins)
	}
	if c.Metrics.Enabled {
		cfg.MetricsPath = c.Metrics.Path
	}
	cfg.MetricsNamespace = c.Metrics.Namespace
	cfg.Tracing = c.Tracing.Enabled
	cfg.TracerName = c.Tracing.TracerName
	cfg.EffectTimeout = c.EffectTimeout()
	cfg.Logger = logger
	return cfg
}

// withDefaults fills in default values for unset fields.
func (c *Config) withDefaults() *Config {
	out := *c
	d := DefaultConfig()
	if out.Address == "" {
		out.Address = d.Address
	}
	if out.WSPath == "" {
		out.WSPath = d.WSPath
	}
	if out.Root == "" {
		out.Root = d.Root
	}
	if out.ReadBufferSize == 0 {
		out.ReadBufferSize = d.ReadBufferSize
	}
	if out.WriteBufferSize == 0 {
		out.WriteBufferSize = d.WriteBufferSize
	}
	if out.MaxMessageSize == 0 {
		out.MaxMessageSize = d.MaxMessageSize
	}
	if out.CheckOrigin == nil {
		out.CheckOrigin = d.CheckOrigin
	}
	if out.MetricsNamespace == "" {
		out.MetricsNamespace = d.MetricsNamespace
	}
	if out.TracerName == "" {
		out.TracerName = d.TracerName
	}
	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = d.ShutdownTimeout
	}
	if out.ReadHeaderTimeout == 0 {
		out.ReadHeaderTimeout = d.ReadHeaderTimeout
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return &out
}

// rootID returns the id of the element the page renders for Root.
func (c *Config) rootID() string {
	if id, ok := strings.CutPrefix(c.Root, "#"); ok && id != "" {
		return id
	}
	return strings.TrimPrefix(config.DefaultRoot, "#")
}

// SameOriginCheck validates that the WebSocket request origin matches the host.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// No Origin header (e.g., same-origin request or curl)
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := r.Host
	if host == "" {
		return false
	}
	return originURL.Host == host
}

// AllowedOriginsCheck accepts same-origin requests and requests whose
// Origin is one of origins.
func AllowedOriginsCheck(origins []string) func(r *http.Request) bool {
	allowed := make([]string, 0, len(origins))
	for _, o := range origins {
		allowed = append(allowed, strings.TrimSuffix(o, "/"))
	}
	return func(r *http.Request) bool {
		if SameOriginCheck(r) {
			return true
		}
		return slices.Contains(allowed, r.Header.Get("Origin"))
	}
}
