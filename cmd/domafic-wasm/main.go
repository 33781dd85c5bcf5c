//go:build js && wasm

// Command domafic-wasm runs the todo program directly in the browser.
// Build with GOOS=js GOARCH=wasm and load it with wasm_exec.js on a page
// holding an element with id "app".
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/vango-dev/domafic/examples/todomvc"
	"github.com/vango-dev/domafic/pkg/app"
	"github.com/vango-dev/domafic/pkg/host/jshost"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := todomvc.Run(context.Background(), jshost.New(), "#app", app.WithLogger(logger)); err != nil {
		logger.Error("program stopped", "error", err)
		os.Exit(1)
	}
}
