// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"sync"

	"github.com/nimburion/docstream/pkg/observability/logger"
)

// LogEntry is one entry captured by RecordingLogger.
type LogEntry struct {
	Level  string
	Msg    string
	Fields map[string]any
}

type logSink struct {
	mu      sync.Mutex
	entries []LogEntry
}

// RecordingLogger captures entries for assertions. Children created with
// With share the parent's sink and prepend their fields.
type RecordingLogger struct {
	sink   *logSink
	fields []any
}

// NewRecordingLogger returns an empty recording logger.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{sink: &logSink{}}
}

func (r *RecordingLogger) Debug(msg string, args ...any) { r.record("debug", msg, args) }
func (r *RecordingLogger) Info(msg string, args ...any)  { r.record("info", msg, args) }
func (r *RecordingLogger) Warn(msg string, args ...any)  { r.record("warn", msg, args) }
func (r *RecordingLogger) Error(msg string, args ...any) { r.record("error", msg, args) }

// With returns a child sharing the same sink.
func (r *RecordingLogger) With(args ...any) logger.Logger {
	fields := make([]any, 0, len(r.fields)+len(args))
	fields = append(fields, r.fields...)
	fields = append(fields, args...)
	return &RecordingLogger{sink: r.sink, fields: fields}
}

// WithContext adds the operation id from ctx when present.
func (r *RecordingLogger) WithContext(ctx context.Context) logger.Logger {
	if id := logger.OperationIDFromContext(ctx); id != "" {
		return r.With("operation_id", id)
	}
	return r
}

// Entries returns a copy of everything captured so far.
func (r *RecordingLogger) Entries() []LogEntry {
	r.sink.mu.Lock()
	defer r.sink.mu.Unlock()
	out := make([]LogEntry, len(r.sink.entries))
	copy(out, r.sink.entries)
	return out
}

// Count returns how many entries were captured at level.
func (r *RecordingLogger) Count(level string) int {
	n := 0
	for _, e := range r.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}

// Find returns the first entry with the given message.
func (r *RecordingLogger) Find(msg string) (LogEntry, bool) {
	for _, e := range r.Entries() {
		if e.Msg == msg {
			return e, true
		}
	}
	return LogEntry{}, false
}

func (r *RecordingLogger) record(level, msg string, args []any) {
	fields := argsToMap(r.fields)
	for k, v := range argsToMap(args) {
		fields[k] = v
	}
	r.sink.mu.Lock()
	r.sink.entries = append(r.sink.entries, LogEntry{Level: level, Msg: msg, Fields: fields})
	r.sink.mu.Unlock()
}

func argsToMap(args []any) map[string]any {
	fields := make(map[string]any)
	for i := 0; i < len(args)-1; i += 2 {
		if key, ok := args[i].(string); ok {
			fields[key] = args[i+1]
		}
	}
	return fields
}
