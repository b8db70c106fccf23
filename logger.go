package tickgo

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with tickgo-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithSymbol adds a symbol field to the logger.
func (l *Logger) WithSymbol(symbol string) *Logger {
	return &Logger{
		Logger: l.Logger.With("symbol", symbol),
	}
}

// WithFingerprint adds a fingerprint field to the logger.
func (l *Logger) WithFingerprint(fp uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("fingerprint", fp),
	}
}

// WithBytes adds a bytes field to the logger.
func (l *Logger) WithBytes(bytes int64) *Logger {
	return &Logger{
		Logger: l.Logger.With("bytes", bytes),
	}
}

// LogFetch logs the outcome of an underlying fetch and decode.
func (l *Logger) LogFetch(ctx context.Context, fp uint64, symbol string, duration time.Duration, bytes int64, waiters int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "fetch failed",
			"fingerprint", fp,
			"symbol", symbol,
			"duration", duration,
			"waiters", waiters,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "fetch completed",
			"fingerprint", fp,
			"symbol", symbol,
			"duration", duration,
			"bytes", bytes,
			"waiters", waiters,
		)
	}
}

// LogEviction logs cache evictions.
func (l *Logger) LogEviction(ctx context.Context, count int, residentBytes int64) {
	l.DebugContext(ctx, "cache eviction",
		"count", count,
		"resident_bytes", residentBytes,
	)
}

// LogPressure logs a cache pressure event: the byte budget is exceeded
// because every resident entry is pinned.
func (l *Logger) LogPressure(ctx context.Context, residentBytes, maxBytes int64) {
	l.WarnContext(ctx, "cache pressure",
		"resident_bytes", residentBytes,
		"max_bytes", maxBytes,
	)
}
