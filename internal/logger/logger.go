// Package logger installs the process wide slog handler.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", level)
	}
	return l, nil
}

// NewHandler builds a tint handler for text and the stdlib JSON handler for json.
func NewHandler(w io.Writer, level slog.Level, format string) (slog.Handler, error) {
	switch format {
	case "", "text":
		return tint.NewHandler(w, &tint.Options{
			Level:		level,
			TimeFormat:	time.TimeOnly,
			NoColor:	!isTerminal(w),
		}), nil
	case "json":
		return slog.NewJSONHandler(w, &slog.HandlerOptions{ Level: level }), nil
	}
	return nil, fmt.Errorf("invalid log format %q", format)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok { return false }
	st, err := f.Stat()
	return err == nil && st.Mode() & os.ModeCharDevice != 0
}

// Setup installs the default logger. output is stdout, stderr or a file path;
// the returned close releases the file.
func Setup(level, format, output string) (func() error, error) {
	lvl, err := ParseLevel(level)
	if err != nil { return nil, err }

	var w io.Writer
	closeFn := func() error { return nil }
	switch output {
	case "", "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		f, err := os.OpenFile(output, os.O_CREATE | os.O_WRONLY | os.O_APPEND, 0o644)
		if err != nil { return nil, fmt.Errorf("failed to open log file: %w", err) }
		w = f
		closeFn = f.Close
	}

	h, err := NewHandler(w, lvl, format)
	if err != nil {
		closeFn()
		return nil, err
	}
	slog.SetDefault(slog.New(h))
	return closeFn, nil
}
