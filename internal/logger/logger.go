// Package logger provides the structured logging used throughout this
// module: a leveled slog.Logger per component, with a process-wide
// level that can be raised or lowered at runtime via SetLevel (cfg and
// cmd do not call SetLevel; the logging.severity setting does not
// change it).
package logger

import (
	"log/slog"
	"os"
	"sync"
)

var (
	mu      sync.Mutex
	level   = new(slog.LevelVar)
	handler slog.Handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
)

// SetLevel changes the process-wide minimum log level.
func SetLevel(l slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	level.Set(l)
}

// SetOutput makes h the handler of every logger returned by later New
// calls; loggers created earlier keep their handler. Intended for tests
// that want to capture or silence logging.
func SetOutput(h slog.Handler) {
	mu.Lock()
	defer mu.Unlock()
	handler = h
}

// New returns a logger tagged with the given component name, e.g.
// "memfs", "pagefs", "router".
func New(component string) *slog.Logger {
	mu.Lock()
	h := handler
	mu.Unlock()
	return slog.New(h).With("component", component)
}

// Nop returns a logger that discards all records, for callers that
// didn't configure one.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
