// Package logger provides a minimal slog-based logging wrapper.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Config describes logger settings.
type Config struct {
	Enabled bool
	Level   string
	Format  string // text (default) or json
	Stdout  bool
	File    string
}

var (
	mu      sync.RWMutex
	base    *slog.Logger
	enabled = true

	savedCfg  Config
	savedFile *os.File
	intercept io.Writer // non-nil while the TUI owns the terminal
)

// Init initializes the logger with the provided config. Relative log file
// paths are resolved against dir.
func Init(cfg Config, dir string) error {
	mu.Lock()
	defer mu.Unlock()

	savedCfg = cfg
	if savedFile != nil {
		_ = savedFile.Close()
		savedFile = nil
	}

	if !cfg.Enabled {
		enabled = false
		base = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
		return nil
	}

	var initErr error
	if cfg.File != "" {
		path := expandPath(cfg.File, dir)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("logger: create log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			initErr = fmt.Errorf("logger: open log file: %w", err)
		} else {
			savedFile = f
		}
	}

	rebuild()
	return initErr
}

// Intercept routes console output to w (the TUI log panel). The file writer,
// if any, keeps receiving every record.
func Intercept(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	intercept = w
	rebuild()
}

// Restore undoes Intercept.
func Restore() {
	mu.Lock()
	defer mu.Unlock()
	intercept = nil
	rebuild()
}

// Must be called with mu held.
func rebuild() {
	opts := &slog.HandlerOptions{Level: parseLevel(savedCfg.Level)}

	var writers []io.Writer
	if intercept != nil {
		writers = append(writers, intercept)
	} else if savedCfg.Stdout {
		writers = append(writers, os.Stderr)
	}
	if savedFile != nil {
		writers = append(writers, savedFile)
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	out := io.MultiWriter(writers...)
	var h slog.Handler
	if strings.EqualFold(savedCfg.Format, "json") {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	base = slog.New(h)
	enabled = true
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	log(slog.LevelDebug, msg, args...)
}

// Info logs an info message.
func Info(msg string, args ...any) {
	log(slog.LevelInfo, msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	log(slog.LevelWarn, msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	log(slog.LevelError, msg, args...)
}

func log(level slog.Level, msg string, args ...any) {
	mu.RLock()
	l := base
	on := enabled
	mu.RUnlock()

	if !on {
		return
	}
	if l == nil {
		// Init was never called (library use, tests); fall back to slog's default.
		l = slog.Default()
	}

	l.Log(context.Background(), level, msg, args...)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func expandPath(path, dir string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	if filepath.IsAbs(path) {
		return path
	}
	if dir != "" {
		return filepath.Join(dir, path)
	}
	return path
}

// Component is a logger that tags every record with a component name. Its
// method set matches the logger interfaces third-party schedulers accept.
type Component struct {
	name string
}

// For returns a Component logger.
func For(name string) Component {
	return Component{name: name}
}

func (c Component) Debug(msg string, args ...any) { log(slog.LevelDebug, msg, c.with(args)...) }
func (c Component) Info(msg string, args ...any)  { log(slog.LevelInfo, msg, c.with(args)...) }
func (c Component) Warn(msg string, args ...any)  { log(slog.LevelWarn, msg, c.with(args)...) }
func (c Component) Error(msg string, args ...any) { log(slog.LevelError, msg, c.with(args)...) }

func (c Component) with(args []any) []any {
	return append([]any{"component", c.name}, args...)
}

// Scheduler adapts c for a job scheduler. The scheduler's own Info records
// are lifecycle chatter emitted on every start, so they are logged at Debug.
func (c Component) Scheduler() SchedulerLogger {
	return SchedulerLogger{Component: c}
}

// SchedulerLogger is a Component whose Info logs at Debug.
type SchedulerLogger struct {
	Component
}

func (s SchedulerLogger) Info(msg string, args ...any) { s.Debug(msg, args...) }
