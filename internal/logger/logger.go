package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// New returns a logger writing to out at the given level. An empty or
// unparsable level falls back to info.
func New(lvl string, out io.Writer) *log.Logger {
	logger := log.New()
	logger.SetOutput(out)
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true, DisableColors: true})

	level := log.InfoLevel
	if lvl != "" {
		parsed, err := log.ParseLevel(lvl)
		if err != nil {
			logger.Info("Log Level is not setup right, falling back to info level")
		} else {
			level = parsed
		}
	}
	logger.SetLevel(level)
	return logger
}

// Setup returns a logger appending to path, or writing to stderr when path
// is empty. The terminal belongs to the TUI, so a file is the usual choice.
// The returned func closes the file.
func Setup(lvl, path string) (*log.Logger, func() error, error) {
	if path == "" {
		return New(lvl, os.Stderr), func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return New(lvl, f), f.Close, nil
}
