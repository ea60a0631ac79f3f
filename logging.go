package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"sheetstamp/internal/config"
)

const logFileName = "sheetstamp.log"

// setupLogging sends the standard logger to the log file when event logging
// is on, and to stderr when verbose. It returns the file to close, if any.
func setupLogging(settings config.Settings, verbose bool) (io.Closer, error) {
	log.SetFlags(log.Ldate | log.Ltime)

	var writers []io.Writer
	if verbose {
		writers = append(writers, os.Stderr)
	}

	var file *os.File
	if settings.LogEvents {
		if err := os.MkdirAll(settings.LogDirectory, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(settings.LogDirectory, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		file = f
		writers = append(writers, f)
	}

	switch len(writers) {
	case 0:
		log.SetOutput(io.Discard)
	case 1:
		log.SetOutput(writers[0])
	default:
		log.SetOutput(io.MultiWriter(writers...))
	}

	if file == nil {
		return nil, nil
	}
	return file, nil
}
