package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/domafic/examples/todomvc"
	"github.com/vango-dev/domafic/internal/config"
	"github.com/vango-dev/domafic/pkg/server"
)

type serveOptions struct {
	dir     string
	port    int
	host    string
	metrics bool
	tracing bool
}

func serveCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the todo program over WebSocket",
		Long: `Serve a page with the thin client and run one todo program per
WebSocket connection.

Settings come from domafic.json in the project directory; flags override
them.

Examples:
  domafic serve
  domafic serve --port=8080
  domafic serve --host=0.0.0.0 --tracing`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.dir, "config", "c", "", "Directory holding domafic.json (default: nearest to the working directory)")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "Port to listen on (default from domafic.json)")
	cmd.Flags().StringVarP(&opts.host, "host", "H", "", "Host to bind to (default from domafic.json)")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", true, "Serve Prometheus metrics")
	cmd.Flags().BoolVar(&opts.tracing, "tracing", false, "Trace program cycles with OpenTelemetry")

	return cmd
}

// loadServeConfig resolves the configuration and applies flag overrides.
func loadServeConfig(cmd *cobra.Command, opts serveOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.dir != "" {
		cfg, err = config.LoadOrDefault(opts.dir)
	} else {
		cfg, err = config.LoadFromWorkingDir()
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if opts.port > 0 {
		cfg.Server.Port = opts.port
	}
	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if flags.Changed("metrics") {
		cfg.Metrics.Enabled = opts.metrics
	}
	if flags.Changed("tracing") {
		cfg.Tracing.Enabled = opts.tracing
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(ctx context.Context, cmd *cobra.Command, opts serveOptions) error {
	cfg, err := loadServeConfig(cmd, opts)
	if err != nil {
		return err
	}

	logger := cfg.Log.NewLogger(os.Stderr)
	srv := server.New(server.FromConfig(cfg, logger), todomvc.Run)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	success("Serving todo program")
	info("Open %s", cfg.URL())
	if cfg.Metrics.Enabled {
		info("Metrics at %s%s", cfg.URL(), cfg.Metrics.Path)
	}

	return srv.ListenAndServe(ctx)
}
