// Package logging builds the audit logger used by the CLI. Every event is
// written as a JSON line to an owner-only file after passing through the PHI
// log sanitizer.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/odaudit/odaudit/internal/phi"
)

// DefaultFile is the audit log path used when none is configured.
const DefaultFile = "audit.log"

// FileMode is the permission enforced on the audit log.
const FileMode os.FileMode = 0o600

// Config holds configuration for the audit logger.
type Config struct {
	// File is the audit log path. Defaults to DefaultFile.
	File string

	// Level is a zerolog level name. Defaults to info.
	Level string

	// Verbose mirrors events to Console in human-readable form.
	Verbose bool

	// Console receives the verbose mirror. Defaults to os.Stderr.
	Console io.Writer
}

// AuditLog is an open audit logger.
type AuditLog struct {
	Logger zerolog.Logger
	RunID  string

	file *os.File
}

// New opens the audit log described by cfg. The caller must Close it.
func New(cfg Config) (*AuditLog, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	path := cfg.File
	if path == "" {
		path = DefaultFile
	}
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}

	var w io.Writer = f
	if cfg.Verbose {
		console := cfg.Console
		if console == nil {
			console = os.Stderr
		}
		w = zerolog.MultiLevelWriter(f, zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339})
	}

	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }

	runID := uuid.NewString()
	logger := zerolog.New(phi.NewLogWriter(w)).
		Level(level).
		With().
		Timestamp().
		Str("run_id", runID).
		Logger()

	return &AuditLog{Logger: logger, RunID: runID, file: f}, nil
}

// Close flushes and closes the log file.
func (l *AuditLog) Close() error {
	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		_ = l.file.Close()
		return err
	}
	return l.file.Close()
}

func openFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, FileMode)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	// OpenFile only applies the mode on creation.
	if err := f.Chmod(FileMode); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("securing audit log: %w", err)
	}
	return f, nil
}
