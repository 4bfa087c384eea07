package config

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logs hands out component loggers sharing one rotated file.
type Logs struct {
	out  io.Writer
	file *lumberjack.Logger
}

// NewLogs opens the configured log file. With verbose set, output is also
// copied to stderr.
func NewLogs(c LogConfig, verbose bool) *Logs {
	l := &Logs{}
	var writers []io.Writer
	if c.File != "" && c.File != "-" {
		l.file = &lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			MaxAge:     c.MaxAgeDays,
		}
		writers = append(writers, l.file)
	}
	if verbose || l.file == nil {
		writers = append(writers, os.Stderr)
	}
	l.out = io.MultiWriter(writers...)
	return l
}

// Logger returns a logger prefixed with "[component] ".
func (l *Logs) Logger(component string) *log.Logger {
	return log.New(l.out, "["+component+"] ", log.LstdFlags)
}

// Close closes the log file.
func (l *Logs) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
