// Package logger is relayd's process-wide structured logger built on log/slog.
//
// Call sites use the package functions directly:
//
//	logger.Info("Client connected", logger.KeyClientAddr, addr, logger.KeyConnID, id)
//
// Context variants (InfoCtx, ...) prepend the fields of a LogContext stored
// in the context, which is how worker tasks tag every line with the
// connection they serve.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Config holds logger configuration.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or file path
}

var (
	level = new(slog.LevelVar)

	mu       sync.RWMutex
	slogger  *slog.Logger
	output   io.Writer = os.Stdout
	closer   io.Closer
	format   = "text"
	useColor bool
)

func init() {
	level.Set(slog.LevelInfo)
	useColor = isTerminal(os.Stdout.Fd())
	rebuild()
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// rebuild swaps in a handler for the current output and format. The level
// is shared through the LevelVar so SetLevel does not need a rebuild.
func rebuild() {
	mu.Lock()
	defer mu.Unlock()

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(output, opts)
	} else {
		h = NewColorTextHandler(output, opts, useColor)
	}
	slogger = slog.New(h)
}

// Init applies cfg. Output is "stdout", "stderr" or a file path opened for
// appending. Empty fields keep their current value.
func Init(cfg Config) error {
	if cfg.Level != "" {
		if _, err := ParseLevel(cfg.Level); err != nil {
			return err
		}
	}
	if f := strings.ToLower(cfg.Format); f != "" && f != "text" && f != "json" {
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}

	if cfg.Output != "" {
		var (
			w     io.Writer
			c     io.Closer
			color bool
		)
		switch strings.ToLower(cfg.Output) {
		case "stdout":
			w, color = os.Stdout, isTerminal(os.Stdout.Fd())
		case "stderr":
			w, color = os.Stderr, isTerminal(os.Stderr.Fd())
		default:
			f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return fmt.Errorf("failed to open log file %q: %w", cfg.Output, err)
			}
			w, c = f, f
		}
		swapOutput(w, c, color)
	}

	if cfg.Level != "" {
		SetLevel(cfg.Level)
	}
	if cfg.Format != "" {
		SetFormat(cfg.Format)
	}
	rebuild()
	return nil
}

func swapOutput(w io.Writer, c io.Closer, color bool) {
	mu.Lock()
	prev := closer
	output, closer, useColor = w, c, color
	mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
}

// InitWithWriter directs output to w. Used by tests.
func InitWithWriter(w io.Writer, lvl, fmtName string, enableColor bool) {
	swapOutput(w, nil, enableColor)
	if lvl != "" {
		SetLevel(lvl)
	}
	if fmtName != "" {
		SetFormat(fmtName)
	}
	rebuild()
}

// SetLevel sets the minimum level. Unknown names are ignored.
func SetLevel(name string) {
	l, err := ParseLevel(name)
	if err != nil {
		return
	}
	level.Set(l)
}

// Level returns the current minimum level.
func Level() slog.Level {
	return level.Level()
}

// SetFormat switches between "text" and "json". Unknown names are ignored.
func SetFormat(name string) {
	name = strings.ToLower(name)
	if name != "text" && name != "json" {
		return
	}
	mu.Lock()
	format = name
	mu.Unlock()
	rebuild()
}

func get() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

// Enabled reports whether records at l would be written.
func Enabled(l slog.Level) bool {
	return l >= level.Level()
}

// ============================================================================
// Structured logging
// ============================================================================

// Debug logs at debug level: Debug("message", "key1", value1, ...).
func Debug(msg string, args ...any) {
	if !Enabled(slog.LevelDebug) {
		return
	}
	get().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	if !Enabled(slog.LevelInfo) {
		return
	}
	get().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	if !Enabled(slog.LevelWarn) {
		return
	}
	get().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	get().Error(msg, args...)
}

// ============================================================================
// Context-aware logging
// ============================================================================

// DebugCtx logs at debug level with the LogContext fields of ctx.
func DebugCtx(ctx context.Context, msg string, args ...any) {
	if !Enabled(slog.LevelDebug) {
		return
	}
	get().Debug(msg, withContextFields(ctx, args)...)
}

// InfoCtx logs at info level with the LogContext fields of ctx.
func InfoCtx(ctx context.Context, msg string, args ...any) {
	if !Enabled(slog.LevelInfo) {
		return
	}
	get().Info(msg, withContextFields(ctx, args)...)
}

// WarnCtx logs at warn level with the LogContext fields of ctx.
func WarnCtx(ctx context.Context, msg string, args ...any) {
	if !Enabled(slog.LevelWarn) {
		return
	}
	get().Warn(msg, withContextFields(ctx, args)...)
}

// ErrorCtx logs at error level with the LogContext fields of ctx.
func ErrorCtx(ctx context.Context, msg string, args ...any) {
	get().Error(msg, withContextFields(ctx, args)...)
}

func withContextFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}

	out := make([]any, 0, 12+len(args))
	if lc.TraceID != "" {
		out = append(out, KeyTraceID, lc.TraceID)
	}
	if lc.SpanID != "" {
		out = append(out, KeySpanID, lc.SpanID)
	}
	if lc.Task != "" {
		out = append(out, KeyTask, lc.Task)
	}
	if lc.ConnID >= 0 {
		out = append(out, KeyConnID, lc.ConnID)
	}
	if lc.SessionID != "" {
		out = append(out, KeySessionID, lc.SessionID)
	}
	if lc.ClientAddr != "" {
		out = append(out, KeyClientAddr, lc.ClientAddr)
	}
	return append(out, args...)
}

// With returns a logger with pre-bound attributes.
func With(args ...any) *slog.Logger {
	return get().With(args...)
}

// Duration returns the time since start in milliseconds.
func Duration(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
