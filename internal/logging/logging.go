// Package logging provides the replicator's default slog.Logger
// instances: a shared JSON-handler default logger for production use,
// and a disabled logger for tests and components that don't take a
// logger explicitly.
package logging

import (
	"context"
	"log/slog"
	"os"
)

var (
	defaultLevel   slog.LevelVar
	defaultHandler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: &defaultLevel})
	defaultLogger  = slog.New(defaultHandler)
	disabledLogger = slog.New(&disabledHandler{})
)

type disabledHandler struct{}

func (d *disabledHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (d *disabledHandler) Handle(context.Context, slog.Record) error { return nil }
func (d *disabledHandler) WithAttrs([]slog.Attr) slog.Handler        { return d }
func (d *disabledHandler) WithGroup(string) slog.Handler             { return d }

// DefaultLogger returns the package-wide default logger.
func DefaultLogger() *slog.Logger { return defaultLogger }

// SetDefaultLevel sets the minimum level the default logger emits.
func SetDefaultLevel(l slog.Level) { defaultLevel.Set(l) }

// DisabledLogger returns a logger that discards everything, for tests
// and call sites that were not given a logger explicitly.
func DisabledLogger() *slog.Logger { return disabledLogger }

// TextLogger returns a text-handler logger at the given level, used by
// the CLI so operators reading a terminal don't have to parse JSON.
func TextLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
