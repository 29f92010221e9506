package logging

import (
	"context"
	"sort"
)

type nopLogger struct{}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() Logger {
	return nopLogger{}
}

// Debug discards the message
func (nopLogger) Debug(string, ...Field) {}

// Info discards the message
func (nopLogger) Info(string, ...Field) {}

// Warn discards the message
func (nopLogger) Warn(string, ...Field) {}

// Error discards the message
func (nopLogger) Error(string, ...Field) {}

// WithFields returns the same logger
func (n nopLogger) WithFields(...Field) Logger {
	return n
}

// WithContext returns the same logger
func (n nopLogger) WithContext(context.Context) Logger {
	return n
}

// LogNormalize discards the event
func (nopLogger) LogNormalize(string, int, error) {}

// LogPublish discards the event
func (nopLogger) LogPublish(string, string, int, error) {}

// LogSystemEvent discards the event
func (nopLogger) LogSystemEvent(string, map[string]any) {}

// mapFields turns event data into fields with sorted keys
func mapFields(data map[string]any) []Field {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, F(k, data[k]))
	}
	return fields
}
