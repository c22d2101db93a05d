// Package logger configures the process-wide slog logger for connectorctl.
// Connectors log through slog; this package only decides where that output
// goes and how chatty it is.
package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	mu     sync.Mutex
	output io.Writer = os.Stderr
)

// SetOutput redirects log output. Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Setup installs the default logger. Verbose mode lowers the level to
// Debug; otherwise only warnings and errors surface, keeping command
// output readable.
func Setup(verbose bool) {
	mu.Lock()
	defer mu.Unlock()

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(output, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
