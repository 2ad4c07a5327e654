// Package logging builds the process's single *slog.Logger. It is
// constructed once in main and threaded through every constructor from
// there — no slog.SetDefault, no ambient globals (SPEC_FULL.md AMBIENT
// STACK, spec.md §9 "Global state").
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// New builds a *slog.Logger for the given level string ("debug", "info",
// "warn", "error") and format ("console" or "json"). Console format uses
// tint's colorized handler when the destination is a terminal; json
// format always uses slog's stock JSON handler, matching the teacher
// corpus's console/JSON split for interactive vs. aggregated output.
func New(w io.Writer, levelStr, format string) *slog.Logger {
	level := ParseLevel(levelStr)

	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}

	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// ParseLevel converts a case-insensitive level name to a slog.Level,
// defaulting to Info on an unrecognized value.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}
