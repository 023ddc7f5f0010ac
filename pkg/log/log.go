// Package log builds the loggers used by kpipe binaries.
package log

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/lmittmann/tint"
	"github.com/rs/zerolog"
)

// Format selects the output encoding.
type Format string

const (
	FormatAuto    Format = ""
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

func inKubernetes() bool {
	return os.Getenv("KUBERNETES_SERVICE_HOST") != ""
}

// New returns a slog logger writing to w. FormatAuto writes JSON when running
// in Kubernetes and colored console output otherwise.
func New(w io.Writer, format Format, level slog.Level) *slog.Logger {
	if format == FormatAuto {
		format = FormatConsole
		if inKubernetes() {
			format = FormatJSON
		}
	}

	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	default:
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: "2006-01-02T15:04:05.999Z07:00",
			NoColor:    w != os.Stdout && w != os.Stderr,
		})
	}
	return slog.New(handler)
}

// NewZerolog returns a zerolog logger with the same output rules as New.
func NewZerolog(w io.Writer, format Format) *zerolog.Logger {
	if format == FormatAuto && !inKubernetes() || format == FormatConsole {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02T15:04:05.999Z07:00"}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	logger := zerolog.New(w).With().Timestamp().Logger()
	return &logger
}

// FromZerolog adapts a zerolog logger into slog through logr, for callers
// that already standardized on zerolog.
func FromZerolog(z *zerolog.Logger) *slog.Logger {
	zerologr.NameFieldName = "logger"
	zerologr.NameSeparator = "/"
	return slog.New(logr.ToSlogHandler(zerologr.New(z)))
}

// Parse parses a level name (debug, info, warn, error).
func Parse(level string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(level))
	return l, err
}
