// Package logger configures the global slog logger and provides helpers to
// propagate request-scoped fields (such as request IDs) through context.
package logger

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/shardmesh/searchcore/pkg/hidden"
)

type contextKey struct{}

// hideUserData mirrors the active config's Logging.HideUserDataFromLog flag.
// Call sites across internal/cluster and internal/indexer read it indirectly
// through IndexName, FieldName, FieldPath and DocumentKey below, so that a
// single Setup call governs every obfuscated log field in the process.
var hideUserData atomic.Bool

// Setup configures the global slog logger with the given level and format
// ("json" or "text"). When hideUserDataFromLog is true, subsequent calls to
// IndexName, FieldName, FieldPath and DocumentKey render their obfuscated
// form instead of the raw value.
func Setup(level string, format string, hideUserDataFromLog bool) {
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
	hideUserData.Store(hideUserDataFromLog)
}

// HideUserData reports whether the process is configured to obfuscate
// user-controlled identifiers in log output.
func HideUserData() bool {
	return hideUserData.Load()
}

// IndexName renders an index name for logging, obfuscated to Index@<sha1>
// when HideUserData is set.
func IndexName(name string) string {
	return hidden.NewIndexName(name).Format(!hideUserData.Load())
}

// FieldName renders a field name for logging, obfuscated to Field@<id> when
// HideUserData is set.
func FieldName(name string, fieldID uint64) string {
	return hidden.NewFieldName(name, fieldID).Format(!hideUserData.Load())
}

// FieldPath renders a JSON field path for logging, obfuscated to
// FieldPath@<id> when HideUserData is set.
func FieldPath(path string, fieldID uint64) string {
	return hidden.NewFieldPath(path, fieldID).Format(!hideUserData.Load())
}

// DocumentKey renders a document key for logging, obfuscated to
// Document@<id> when HideUserData is set. docID should be a stable numeric
// identifier for the document; callers with only a string key derive one
// with a non-cryptographic hash (see internal/indexer/consumer.hiddenDocID).
func DocumentKey(key string, docID uint64) string {
	return hidden.NewDocumentKey(key, docID).Format(!hideUserData.Load())
}

// WithRequestID stores a request ID in the context for later retrieval by
// FromContext.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

// FromContext returns a logger enriched with the request ID from ctx, if
// present.
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if requestID, ok := ctx.Value(contextKey{}).(string); ok {
		logger = logger.With("request_id", requestID)
	}
	return logger
}

// RequestIDFromContext returns the request ID stored by WithRequestID, or
// "" if none is present.
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(contextKey{}).(string)
	return requestID
}

// WithComponent returns a logger with the "component" field set.
func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

// parseLevel converts a level string to an slog.Level.
func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
