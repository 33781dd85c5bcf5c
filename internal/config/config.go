package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vango-dev/domafic/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "domafic.json"

	// DefaultPort is the default server port.
	DefaultPort = 3000

	// DefaultHost is the default server host.
	DefaultHost = "localhost"

	// DefaultWSPath is the default WebSocket endpoint.
	DefaultWSPath = "/ws"

	// DefaultMetricsPath is the default Prometheus endpoint.
	DefaultMetricsPath = "/metrics"

	// DefaultNamespace is the default metrics namespace and tracer name.
	DefaultNamespace = "domafic"

	// DefaultRoot is the default root selector programs mount at.
	DefaultRoot = "#app"

	// DefaultEffectTimeout is the default timeout of HTTP effects.
	DefaultEffectTimeout = "30s"
)

// Config represents the complete domafic.json configuration.
type Config struct {
	// Name is the project name.
	Name string `json:"name,omitempty"`

	// Server contains the HTTP and WebSocket server configuration.
	Server ServerConfig `json:"server"`

	// Metrics contains Prometheus configuration.
	Metrics MetricsConfig `json:"metrics"`

	// Tracing contains OpenTelemetry configuration.
	Tracing TracingConfig `json:"tracing"`

	// Log contains logging configuration.
	Log LogConfig `json:"log"`

	// Effects contains side-effect configuration.
	Effects EffectsConfig `json:"effects"`

	// App contains settings for the served program.
	App AppConfig `json:"app"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains server settings.
type ServerConfig struct {
	// Host is the host to bind to.
	Host string `json:"host" validate:"required"`

	// Port is the port to listen on.
	Port int `json:"port"`

	// WSPath is the path of the WebSocket endpoint.
	WSPath string `json:"wsPath" validate:"required,startswith=/"`

	// AllowedOrigins lists origins accepted for WebSocket upgrades.
	// Empty means same-origin only.
	AllowedOrigins []string `json:"allowedOrigins,omitempty" validate:"dive,url"`

	// ReadBufferSize and WriteBufferSize size the WebSocket buffers.
	ReadBufferSize  int `json:"readBufferSize,omitempty" validate:"min=0"`
	WriteBufferSize int `json:"writeBufferSize,omitempty" validate:"min=0"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled mounts the metrics endpoint and installs the middleware.
	Enabled bool `json:"enabled"`

	// Path is the path of the metrics endpoint.
	Path string `json:"path" validate:"required,startswith=/"`

	// Namespace prefixes every metric name.
	Namespace string `json:"namespace" validate:"required"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	// Enabled installs the tracing middleware.
	Enabled bool `json:"enabled"`

	// TracerName is the name passed to the tracer provider.
	TracerName string `json:"tracerName" validate:"required"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `json:"level" validate:"oneof=debug info warn error"`

	// Format is text or json.
	Format string `json:"format" validate:"oneof=text json"`
}

// EffectsConfig contains side-effect settings.
type EffectsConfig struct {
	// Timeout is the default HTTP effect timeout (e.g., "30s").
	Timeout string `json:"timeout" validate:"duration"`
}

// AppConfig contains settings for the served program.
type AppConfig struct {
	// Root is the selector of the element the program mounts at.
	Root string `json:"root" validate:"required"`

	// Title is the initial document title.
	Title string `json:"title,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host:   DefaultHost,
			Port:   DefaultPort,
			WSPath: DefaultWSPath,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Path:      DefaultMetricsPath,
			Namespace: DefaultNamespace,
		},
		Tracing: TracingConfig{
			TracerName: DefaultNamespace,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Effects: EffectsConfig{
			Timeout: DefaultEffectTimeout,
		},
		App: AppConfig{
			Root:  DefaultRoot,
			Title: "domafic",
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for domafic.json in the directory.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	return LoadFile(configPath)
}

// LoadOrDefault is like Load but returns the defaults when dir holds no
// domafic.json.
func LoadOrDefault(dir string) (*Config, error) {
	if !Exists(dir) {
		return New(), nil
	}
	return Load(dir)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeMissingConfig).
				WithDetail("No " + ConfigFileName + " found in " + filepath.Dir(path)).
				WithSuggestion("Create " + ConfigFileName + " or run without --config to use defaults")
		}
		return nil, errors.New(errors.CodeInvalidConfig).Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New(errors.CodeInvalidConfig).
			WithDetail("Failed to parse " + ConfigFileName + ": " + err.Error())
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New(errors.CodeInvalidConfig).Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New(errors.CodeInvalidConfig).Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	d := New()

	// Server
	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Server.WSPath == "" {
		c.Server.WSPath = d.Server.WSPath
	}

	// Metrics and tracing
	if c.Metrics.Path == "" {
		c.Metrics.Path = d.Metrics.Path
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = d.Metrics.Namespace
	}
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = c.Metrics.Namespace
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)

	// Effects
	if c.Effects.Timeout == "" {
		c.Effects.Timeout = d.Effects.Timeout
	}

	// App
	if c.App.Root == "" {
		c.App.Root = d.App.Root
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON names rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d >= 0
	})
	return v
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.New(errors.CodeInvalidPort).
			WithDetail("Port must be between 0 and 65535")
	}

	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.New(errors.CodeInvalidSection).Wrap(err)
	}

	code := errors.CodeInvalidSection
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		if e.Tag() == "required" {
			code = errors.CodeMissingConfig
		}
		msgs = append(msgs, describe(e))
	}
	return errors.New(code).WithDetail(strings.Join(msgs, "; "))
}

// describe renders a validation failure with the field's JSON path, e.g.
// "log.level must be one of: debug info warn error".
func describe(e validator.FieldError) string {
	field := e.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	switch e.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "startswith":
		return fmt.Sprintf("%s must start with %q", field, e.Param())
	case "duration":
		return fmt.Sprintf("%s must be a duration such as \"30s\", got %q", field, e.Value())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a URL, got %q", field, e.Value())
	default:
		return field + " is invalid"
	}
}

// Address returns the address string for the server.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// URL returns the base URL of the server.
func (c *Config) URL() string {
	return "http://" + c.Address()
}

// EffectTimeout returns the parsed default effect timeout. Invalid values
// yield zero, which leaves effects without a default timeout.
func (c *Config) EffectTimeout() time.Duration {
	d, err := time.ParseDuration(c.Effects.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	_, err := os.Stat(path)
	return err == nil
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing domafic.json, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New(errors.CodeMissingConfig).
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the nearest domafic.json at or
// above the working directory, or the defaults when there is none.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		if errors.HasCode(err, errors.CodeMissingConfig) {
			return New(), nil
		}
		return nil, err
	}

	return Load(root)
}
