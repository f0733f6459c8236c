// Package logging builds the slog loggers used by the client and its tools.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Output formats accepted by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options selects the level and format of a logger.
type Options struct {
	Level  string
	Format string

	// AddSource reports the calling file and line. Only honored by the text format.
	AddSource bool
}

// New returns a logger writing to w. The text format is colorized for
// terminals, the json format emits one object per line keyed by "ts".
func New(w io.Writer, opts Options) (*slog.Logger, error) {
	level := ParseLevel(opts.Level)

	var h slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", FormatText:
		h = tint.NewHandler(w, &tint.Options{
			Level:      level,
			AddSource:  opts.AddSource,
			TimeFormat: "15:04:05.000",
		})
	case FormatJSON:
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey && len(groups) == 0 {
					return slog.String("ts", a.Value.Time().UTC().Format(time.RFC3339Nano))
				}
				return a
			},
		})
	default:
		return nil, fmt.Errorf("logging: unknown format %q", opts.Format)
	}

	return slog.New(h), nil
}

// ParseLevel maps a level name to a slog.Level. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
