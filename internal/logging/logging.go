package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"azchat/internal/config"
)

// New builds the process logger. An empty file logs to w; "-" discards output.
func New(cfg config.LoggingConfig, w io.Writer, component string) (zerolog.Logger, io.Closer, error) {
	out, closer, err := output(cfg.File, w)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: cfg.File != ""}
	}
	logger := zerolog.New(out).
		With().
		Timestamp().
		Str("component", component).
		Logger().
		Level(parseLevel(cfg.Level))
	return logger, closer, nil
}

func output(file string, w io.Writer) (io.Writer, io.Closer, error) {
	switch file {
	case "":
		if w == nil {
			w = os.Stderr
		}
		return w, io.NopCloser(nil), nil
	case "-":
		return io.Discard, io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, f, nil
}

func parseLevel(raw string) zerolog.Level {
	if raw == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(raw))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
