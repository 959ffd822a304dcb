package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

var (
	logger *slog.Logger
	base   slog.Handler
	mu     sync.RWMutex
)

func init() {
	base = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	logger = slog.New(base)
}

// Level represents logging levels
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// ExecutionLogName is the per-stage log file written under agents/<adw_id>/<stage>/.
const ExecutionLogName = "execution.log"

// Options configures the logger
type Options struct {
	Level   Level
	JSON    bool
	Output  io.Writer
	Verbose bool
}

// Configure sets up the global logger
func Configure(opts Options) {
	mu.Lock()
	defer mu.Unlock()

	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	level := opts.Level
	if opts.Verbose {
		level = LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{
		Level: level,
	}

	if opts.JSON {
		base = slog.NewJSONHandler(output, handlerOpts)
	} else {
		base = slog.NewTextHandler(output, handlerOpts)
	}

	logger = slog.New(base)
}

// RunLog is an open per-run log file attached to the global logger.
type RunLog struct {
	path string
	file *os.File
	prev *slog.Logger
}

// Path returns the log file location.
func (r *RunLog) Path() string {
	return r.path
}

// Close detaches the file from the global logger and closes it.
func (r *RunLog) Close() error {
	mu.Lock()
	logger = r.prev
	mu.Unlock()

	return r.file.Close()
}

// OpenRunLog tees the global logger into agentsDir/<adwID>/<stage>/execution.log.
// The file always receives debug output regardless of the console level.
func OpenRunLog(agentsDir, adwID, stage string) (*RunLog, error) {
	dir := filepath.Join(agentsDir, adwID, stage)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	path := filepath.Join(dir, ExecutionLogName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()

	fileHandler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: LevelDebug})
	prev := logger
	logger = slog.New(teeHandler{handlers: []slog.Handler{base, fileHandler}}).
		With(ADWID(adwID), Stage(stage))

	return &RunLog{path: path, file: f, prev: prev}, nil
}

// teeHandler fans a record out to every handler that accepts its level.
type teeHandler struct {
	handlers []slog.Handler
}

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range t.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		hs[i] = h.WithAttrs(attrs)
	}

	return teeHandler{handlers: hs}
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		hs[i] = h.WithGroup(name)
	}

	return teeHandler{handlers: hs}
}

// SetLevel changes the logging level
func SetLevel(level Level) {
	Configure(Options{Level: level})
}

// EnableDebug enables debug logging
func EnableDebug() {
	SetLevel(LevelDebug)
}

// Logger returns the global logger
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// With returns a logger with additional attributes
func With(args ...any) *slog.Logger {
	return Logger().With(args...)
}

// Debug logs at debug level
func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// Info logs at info level
func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

// Warn logs at warn level
func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

// Error logs at error level
func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

// InfoContext logs at info level with context
func InfoContext(ctx context.Context, msg string, args ...any) {
	Logger().InfoContext(ctx, msg, args...)
}

// ErrorContext logs at error level with context
func ErrorContext(ctx context.Context, msg string, args ...any) {
	Logger().ErrorContext(ctx, msg, args...)
}

// Err is a helper for logging errors
func Err(err error) slog.Attr {
	return slog.Any("error", err)
}

// ADWID tags a record with the workflow run identifier.
func ADWID(id string) slog.Attr {
	return slog.String("adw_id", id)
}

// Stage tags a record with the pipeline stage name.
func Stage(name string) slog.Attr {
	return slog.String("stage", name)
}

// Phase is a helper for logging phase transitions
func Phase(from, to string) []any {
	return []any{
		slog.String("from", from),
		slog.String("to", to),
	}
}
