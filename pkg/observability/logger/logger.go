// Package logger provides the structured logger used across the store, the
// transports and the CLI.
package logger

import "context"

// Logger is a leveled key/value logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// With returns a child logger that adds the given key/value pairs to every entry.
	With(args ...any) Logger

	// WithContext returns a child logger tagged with the operation id carried by ctx, if any.
	WithContext(ctx context.Context) Logger
}

type operationIDKey struct{}

// ContextWithOperationID tags ctx with an id that WithContext adds to log entries.
func ContextWithOperationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, operationIDKey{}, id)
}

// OperationIDFromContext returns the id set by ContextWithOperationID.
func OperationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(operationIDKey{}).(string)
	return id
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Debug(string, ...any)                  {}
func (Nop) Info(string, ...any)                   {}
func (Nop) Warn(string, ...any)                   {}
func (Nop) Error(string, ...any)                  {}
func (n Nop) With(...any) Logger                  { return n }
func (n Nop) WithContext(context.Context) Logger { return n }
