// Package logging builds the process logger from configuration.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/cryptoverlay/internal/config"
)

// New returns a logger writing to stdout and, when cfg.File is set, to that
// file as well. A log file that cannot be opened is reported on the returned
// logger and skipped; only an invalid level or format is an error.
func New(cfg config.LoggingConfig) (*logrus.Logger, error) {
	return newWithOutput(cfg, os.Stdout)
}

func newWithOutput(cfg config.LoggingConfig, stdout io.Writer) (*logrus.Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(orDefault(cfg.Level, "info"))
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	log.SetLevel(level)

	switch strings.ToLower(orDefault(cfg.Format, "text")) {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("logging.format: unknown format %q", cfg.Format)
	}

	log.SetOutput(stdout)
	if cfg.File == "" {
		return log, nil
	}

	f, err := openLogFile(cfg.File)
	if err != nil {
		log.WithError(err).WithField("file", cfg.File).Warn("log file disabled")
		return log, nil
	}
	log.SetOutput(io.MultiWriter(stdout, f))
	return log, nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
