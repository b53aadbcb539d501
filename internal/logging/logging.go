// internal/logging/logging.go
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/coffeye/xpod/internal/config"
)

const timestampFormat = "2006-01-02 15:04:05"

// New builds the process logger. The returned closer releases the log file
// when output is "file" and is a no-op otherwise.
func New(cfg config.LogConfig) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: timestampFormat,
		})
	}

	if cfg.Output != "file" {
		log.SetOutput(os.Stdout)
		return log, nopCloser{}, nil
	}

	file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("logging: open %s: %w", cfg.FilePath, err)
	}
	log.SetOutput(file)
	return log, file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
