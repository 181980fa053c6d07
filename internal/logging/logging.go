package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/petems/audioviz/internal/config"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a new zerolog logger with console and file output at info level
func New() zerolog.Logger {
	return NewWithLevel("info")
}

// NewWithLevel is New with an explicit level ("debug", "info", "warn", ...).
// Unknown levels fall back to info.
func NewWithLevel(level string) zerolog.Logger {
	logPath := config.LogPath()

	writers := []io.Writer{
		zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339},
	}

	// File logging is best effort; the console still works without it
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err == nil {
		writers = append(writers, &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}

	multi := zerolog.MultiLevelWriter(writers...)

	return zerolog.New(multi).
		Level(ParseLevel(level)).
		With().Timestamp().Caller().Logger()
}

// ParseLevel maps a config string to a zerolog level
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
