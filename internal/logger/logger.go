package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Level represents log levels
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Config holds logger configuration
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or file path
}

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

var (
	currentLevel  atomic.Int32
	currentFormat atomic.Value

	mu       sync.RWMutex
	slogger  *slog.Logger
	output   io.Writer = os.Stderr
	useColor bool
	logFile  *os.File
)

func init() {
	currentLevel.Store(int32(LevelInfo))
	currentFormat.Store("text")
	useColor = isTerminal(os.Stderr.Fd())
	reconfigure()
}

func (l Level) String() string {
	if l < LevelDebug || int(l) >= len(levelNames) {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel converts a level name to a Level. Unknown names report false.
func ParseLevel(s string) (Level, bool) {
	up := strings.ToUpper(strings.TrimSpace(s))
	if up == "WARNING" {
		up = "WARN"
	}
	for i, name := range levelNames {
		if name == up {
			return Level(i), true
		}
	}
	return LevelInfo, false
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// reconfigure rebuilds the slog handler from the current settings
func reconfigure() {
	mu.Lock()
	defer mu.Unlock()

	opts := &slog.HandlerOptions{Level: Level(currentLevel.Load()).slogLevel()}

	var h slog.Handler
	if format, _ := currentFormat.Load().(string); format == "json" {
		h = slog.NewJSONHandler(output, opts)
	} else {
		h = NewColorTextHandler(output, opts, useColor)
	}
	slogger = slog.New(h)
}

// Init applies cfg. Output can be "stdout", "stderr", or a file path.
func Init(cfg Config) error {
	if cfg.Output != "" {
		if err := setOutput(cfg.Output); err != nil {
			return err
		}
	}
	if cfg.Level != "" {
		SetLevel(cfg.Level)
	}
	if cfg.Format != "" {
		SetFormat(cfg.Format)
	}
	reconfigure()
	return nil
}

func setOutput(dest string) error {
	mu.Lock()
	defer mu.Unlock()

	var (
		w     io.Writer
		color bool
		file  *os.File
	)
	switch strings.ToLower(dest) {
	case "stdout":
		w, color = os.Stdout, isTerminal(os.Stdout.Fd())
	case "stderr":
		w, color = os.Stderr, isTerminal(os.Stderr.Fd())
	default:
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", dest, err)
		}
		w, file = f, f
	}

	if logFile != nil {
		_ = logFile.Close()
	}
	output, useColor, logFile = w, color, file
	return nil
}

// InitWithWriter points the logger at w. Intended for tests.
func InitWithWriter(w io.Writer, level, format string, enableColor bool) {
	mu.Lock()
	output = w
	useColor = enableColor
	mu.Unlock()

	if level != "" {
		SetLevel(level)
	}
	if format != "" {
		SetFormat(format)
	}
	reconfigure()
}

// SetLevel sets the minimum log level. Invalid names are ignored.
func SetLevel(level string) {
	l, ok := ParseLevel(level)
	if !ok {
		return
	}
	currentLevel.Store(int32(l))
	reconfigure()
}

// SetFormat sets the output format (text or json)
func SetFormat(format string) {
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return
	}
	currentFormat.Store(format)
	reconfigure()
}

func enabled(l Level) bool {
	return l >= Level(currentLevel.Load())
}

func getLogger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

// Debug logs at debug level with key/value pairs.
func Debug(msg string, args ...any) {
	if enabled(LevelDebug) {
		getLogger().Debug(msg, args...)
	}
}

// Info logs at info level with key/value pairs.
func Info(msg string, args ...any) {
	if enabled(LevelInfo) {
		getLogger().Info(msg, args...)
	}
}

// Warn logs at warn level with key/value pairs.
func Warn(msg string, args ...any) {
	if enabled(LevelWarn) {
		getLogger().Warn(msg, args...)
	}
}

// Error logs at error level with key/value pairs.
func Error(msg string, args ...any) {
	getLogger().Error(msg, args...)
}

// DebugCtx logs at debug level, prepending the LogContext fields found in ctx.
func DebugCtx(ctx context.Context, msg string, args ...any) {
	if enabled(LevelDebug) {
		getLogger().Debug(msg, appendContextFields(ctx, args)...)
	}
}

// InfoCtx logs at info level with context fields.
func InfoCtx(ctx context.Context, msg string, args ...any) {
	if enabled(LevelInfo) {
		getLogger().Info(msg, appendContextFields(ctx, args)...)
	}
}

// WarnCtx logs at warn level with context fields.
func WarnCtx(ctx context.Context, msg string, args ...any) {
	if enabled(LevelWarn) {
		getLogger().Warn(msg, appendContextFields(ctx, args)...)
	}
}

// ErrorCtx logs at error level with context fields.
func ErrorCtx(ctx context.Context, msg string, args ...any) {
	getLogger().Error(msg, appendContextFields(ctx, args)...)
}

func appendContextFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}

	fields := make([]any, 0, 12+len(args))
	add := func(key, val string) {
		if val != "" {
			fields = append(fields, key, val)
		}
	}
	add(KeyTraceID, lc.TraceID)
	add(KeySpanID, lc.SpanID)
	add(KeyRequestID, lc.RequestID)
	add(KeyClientIP, lc.ClientIP)
	add(KeyNamespace, lc.Namespace)
	add(KeyUsername, lc.Username)

	return append(fields, args...)
}

// With returns a logger carrying the given attributes.
func With(args ...any) *slog.Logger {
	return getLogger().With(args...)
}

// Duration returns the time elapsed since start in milliseconds.
func Duration(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
