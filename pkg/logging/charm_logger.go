package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// CharmLogger implements Logger on top of charmbracelet/log
type CharmLogger struct {
	logger *charmlog.Logger
	closer io.Closer
}

// ParseLevel maps a config level name to a charm level; unknown names are info
func ParseLevel(level string) charmlog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return charmlog.DebugLevel
	case "warn", "warning":
		return charmlog.WarnLevel
	case "error":
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

// NewLogger creates a logger from config
func NewLogger(cfg LogConfig) (*CharmLogger, error) {
	var out io.Writer
	var closer io.Closer

	switch cfg.Output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	case "file":
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("file_path is required when output is file")
		}
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out, closer = f, f
	default:
		return nil, fmt.Errorf("unknown log output: %s", cfg.Output)
	}

	logger := NewWriterLogger(out, cfg)
	logger.closer = closer
	return logger, nil
}

// NewWriterLogger creates a logger writing to w
func NewWriterLogger(w io.Writer, cfg LogConfig) *CharmLogger {
	charm := charmlog.NewWithOptions(w, charmlog.Options{
		ReportCaller:    cfg.IncludeCaller,
		ReportTimestamp: cfg.IncludeTimestamp,
		TimeFormat:      "15:04:05",
		Level:           ParseLevel(cfg.Level),
	})
	if cfg.Format == "json" {
		charm.SetFormatter(charmlog.JSONFormatter)
	} else {
		charm.SetFormatter(charmlog.TextFormatter)
	}
	return &CharmLogger{logger: charm}
}

// Close releases the log file, if any
func (l *CharmLogger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Debug logs a debug message
func (l *CharmLogger) Debug(msg string, fields ...Field) {
	l.logger.Debug(msg, keyvals(fields)...)
}

// Info logs an info message
func (l *CharmLogger) Info(msg string, fields ...Field) {
	l.logger.Info(msg, keyvals(fields)...)
}

// Warn logs a warning message
func (l *CharmLogger) Warn(msg string, fields ...Field) {
	l.logger.Warn(msg, keyvals(fields)...)
}

// Error logs an error message
func (l *CharmLogger) Error(msg string, fields ...Field) {
	l.logger.Error(msg, keyvals(fields)...)
}

// WithFields returns a new logger with the given fields
func (l *CharmLogger) WithFields(fields ...Field) Logger {
	return &CharmLogger{logger: l.logger.With(keyvals(fields)...), closer: l.closer}
}

// WithContext returns a new logger carrying the request ID stored in ctx
func (l *CharmLogger) WithContext(ctx context.Context) Logger {
	id := RequestIDFromContext(ctx)
	if id == "" {
		return l
	}
	return l.WithFields(F("request_id", id))
}

// LogNormalize records the outcome of normalizing an editor document
func (l *CharmLogger) LogNormalize(workflow string, taskCount int, err error) {
	if err != nil {
		l.Warn("normalization failed", F("workflow", workflow), F("error", err.Error()))
		return
	}
	l.Info("workflow normalized", F("workflow", workflow), F("tasks", taskCount))
}

// LogPublish records a definition sent to the engine
func (l *CharmLogger) LogPublish(definitionID string, workflow string, version int, err error) {
	fields := []Field{F("definition_id", definitionID), F("workflow", workflow), F("version", version)}
	if err != nil {
		l.Error("publish failed", append(fields, F("error", err.Error()))...)
		return
	}
	l.Info("definition published", fields...)
}

// LogSystemEvent records system-level events
func (l *CharmLogger) LogSystemEvent(event string, data map[string]any) {
	l.Info(event, mapFields(data)...)
}

func keyvals(fields []Field) []any {
	kv := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		kv = append(kv, f.Key, f.Value)
	}
	return kv
}
