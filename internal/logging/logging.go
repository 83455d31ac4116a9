// Package logging builds the zerolog logger shared by the application.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

const permission = 0o664

// Builder configures where log lines go
type Builder struct {
	writer io.Writer
	path   string
	level  string
}

// Log is a built logger plus the file it owns, if any
type Log struct {
	Logger zerolog.Logger
	file   *os.File
}

func New() *Builder {
	return &Builder{}
}

// FromPath appends to the file at path, creating parent directories
func (b *Builder) FromPath(path string) *Builder {
	b.path = path
	return b
}

// FromWriter writes to w; ignored when a path is set
func (b *Builder) FromWriter(w io.Writer) *Builder {
	b.writer = w
	return b
}

// WithLevel sets the minimum level by name ("debug", "info", ...)
func (b *Builder) WithLevel(level string) *Builder {
	b.level = level
	return b
}

func (b *Builder) Make() (*Log, error) {
	l := &Log{}
	w := b.writer
	if w == nil {
		w = io.Discard
	}
	if b.path != "" {
		if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		l.file = f
		w = zerolog.SyncWriter(f)
	}

	level := zerolog.InfoLevel
	if b.level != "" {
		parsed, err := zerolog.ParseLevel(b.level)
		if err != nil {
			l.Close()
			return nil, err
		}
		level = parsed
	}

	l.Logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
	return l, nil
}

// Close releases the log file
func (l *Log) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
