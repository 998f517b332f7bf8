// Package logging builds the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// ParseLevel maps a config string to a slog level. Unknown values are Info.
func ParseLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// New returns a logger writing to w. format "json" selects the JSON handler;
// anything else gets the colourised tint handler.
func New(w io.Writer, level, format string) *slog.Logger {
	lvl := ParseLevel(level)
	format = strings.ToLower(strings.TrimSpace(format))
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	default:
		handler = tint.NewHandler(w, &tint.Options{
			Level:      lvl,
			TimeFormat: time.Kitchen,
			NoColor:    format == "plain",
		})
	}
	return slog.New(handler)
}
