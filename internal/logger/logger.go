package logger

import (
	"context"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LoggingConfig mirrors config.LoggingConfig to avoid a circular import.
type LoggingConfig struct {
	Level     string
	Format    string // json (default) or console
	Output    string // stdout (default), stderr or file
	FilePath  string
	MaxSizeMB int
	MaxFiles  int
}

type contextKey string

const (
	loggerKey        contextKey = "logger"
	correlationIDKey contextKey = "correlation_id"
)

// New creates a zerolog.Logger with the specified level and JSON output on
// stdout. If the level string is invalid, it defaults to info.
func New(level string) zerolog.Logger {
	return zerolog.New(os.Stdout).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// NewFromConfig creates a logger for component, selecting the writer from
// cfg.Output:
//   - "file": rotating file via lumberjack
//   - "stderr": os.Stderr
//   - anything else: os.Stdout
//
// A "console" format renders human-readable lines instead of JSON.
func NewFromConfig(cfg LoggingConfig, component string) zerolog.Logger {
	var writer io.Writer
	switch cfg.Output {
	case "file":
		writer = NewFileWriter(FileConfig{
			Path:      cfg.FilePath,
			MaxSizeMB: cfg.MaxSizeMB,
			MaxFiles:  cfg.MaxFiles,
		})
	case "stderr":
		writer = os.Stderr
	default:
		writer = os.Stdout
	}
	if cfg.Format == "console" {
		writer = zerolog.ConsoleWriter{Out: writer, NoColor: cfg.Output == "file"}
	}

	ctx := zerolog.New(writer).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp()
	if component != "" {
		ctx = ctx.Str("component", component)
	}
	return ctx.Logger()
}

// ParseLevel converts a level name into a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WithCorrelationID stores a correlation ID in the context.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// CorrelationIDFromContext retrieves the correlation ID from the context.
// Returns an empty string if not set.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// FromContext retrieves the logger from the context with the correlation ID
// attached. Without a stored logger an info-level stdout logger is used.
func FromContext(ctx context.Context) zerolog.Logger {
	var log zerolog.Logger

	if l, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		log = l
	} else {
		log = New("info")
	}

	if id := CorrelationIDFromContext(ctx); id != "" {
		log = log.With().Str("correlation_id", id).Logger()
	}

	return log
}

// NewCorrelationID generates a new UUID-based correlation ID.
func NewCorrelationID() string {
	return uuid.New().String()
}
