package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RequestIDField is the log field carrying the request ID
const RequestIDField = "request_id"

type requestIDKey struct{}

var Logger *logrus.Logger

// Options configures the package logger
type Options struct {
	Level string
	// Format is "json" or "text"
	Format string
	// File, when set, adds a rotating file sink next to stdout
	File string
	// Stderr replaces stdout as the console sink
	Stderr bool
}

func init() {
	Logger = logrus.New()
	// environment defaults until Configure runs with the loaded config
	if err := Configure(Options{Level: os.Getenv("LOG_LEVEL"), Format: os.Getenv("LOG_FORMAT")}); err != nil {
		Logger.SetLevel(logrus.InfoLevel)
	}
}

// Configure applies level, format and output to the package logger
func Configure(opts Options) error {
	Logger.SetLevel(parseLevel(opts.Level))

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "json":
		Logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	case "text":
		Logger.SetFormatter(&formatter.Formatter{
			TimestampFormat: "2006-01-02 15:04:05",
			HideKeys:        false,
			NoColors:        true,
			FieldsOrder:     []string{RequestIDField, "component"},
		})
	default:
		return fmt.Errorf("unknown log format %q", opts.Format)
	}

	var console io.Writer = os.Stdout
	if opts.Stderr {
		console = os.Stderr
	}
	writers := []io.Writer{console}
	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
		})
	}
	Logger.SetOutput(io.MultiWriter(writers...))
	return nil
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// ContextWithRequestID stores id for WithRequestID
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID stored in ctx, or "unknown"
func RequestID(ctx context.Context) string {
	if ctx != nil {
		if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
			return id
		}
	}
	return "unknown"
}

// WithRequestID creates an entry tagged with the request ID from ctx
func WithRequestID(ctx context.Context) *logrus.Entry {
	return Logger.WithField(RequestIDField, RequestID(ctx))
}

// WithFields creates a new entry with the given fields
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Logger.WithFields(fields)
}

// WithField creates a new entry with a single field
func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}

// WithError creates a new entry with an error field
func WithError(err error) *logrus.Entry {
	return Logger.WithError(err)
}

// Info logs an info message
func Info(msg string) {
	Logger.Info(msg)
}

// Error logs an error message
func Error(msg string) {
	Logger.Error(msg)
}

// Debug logs a debug message
func Debug(msg string) {
	Logger.Debug(msg)
}

// Warn logs a warning message
func Warn(msg string) {
	Logger.Warn(msg)
}
