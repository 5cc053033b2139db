package framepipe

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// discard drops every record. Enabled reports false, so attributes of
// disabled log calls are never evaluated.
type discard struct{}

func (discard) Enabled(context.Context, slog.Level) bool  { return false }
func (discard) Handle(context.Context, slog.Record) error { return nil }
func (discard) WithAttrs([]slog.Attr) slog.Handler        { return discard{} }
func (discard) WithGroup(string) slog.Handler             { return discard{} }

var silent = slog.New(discard{})

// current is read on every log call from the UI goroutine and the GPU
// timeline goroutines.
var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(silent)
}

// SetLogger routes the log output of framepipe and its sub-packages to l.
// Nothing is logged until it is called; nil silences logging again.
//
// Levels:
//   - [slog.LevelDebug]: per-frame diagnostics (fence values, buffer index)
//   - [slog.LevelInfo]: lifecycle (device opened, surface resized, paused)
//   - [slog.LevelWarn]: recoverable problems (unknown keys, failed snapshots)
//   - [slog.LevelError]: fatal pipeline errors, with fence and frame attributes
//
// The command line installs a text handler:
//
//	framepipe.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = silent
	}
	current.Store(l)
}

// Logger returns the logger installed with SetLogger.
func Logger() *slog.Logger {
	return current.Load()
}
