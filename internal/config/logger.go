package config

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds a component logger with the given bracketed prefix.
// When file logging is configured, output goes to both stderr and a
// size-rotated log file, so a long-running daemon can't fill the disk.
func NewLogger(prefix string, cfg LogConfig) *log.Logger {
	var w io.Writer = os.Stderr

	if cfg.File != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}

	return log.New(w, prefix, log.LstdFlags)
}
