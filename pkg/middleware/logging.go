// Package middleware provides HTTP middleware for the admin debug surface
// exposed alongside the Encore services — the user-facing API paths are
// Encore endpoints and don't run through this net/http chain.
//
// This file implements structured request logging middleware with:
//   - Request/response logging with timing
//   - Correlation ID propagation (X-Request-ID header)
//   - Context-based request ID storage
//   - Structured logging via zap
//   - Low-overhead design for hot paths
//
// Design Notes:
//   - Correlation IDs enable distributed tracing across services
//   - Request IDs stored in context for downstream use
//   - Logs include method, path, status, duration, size
//   - Log level: Info for success, Warn for 4xx, Error for 5xx
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// contextKey type for context keys to avoid collisions
type contextKey string

const (
	// requestIDKey is the context key for request IDs
	requestIDKey contextKey = "request-id"
)

// RequestLogger is a middleware that logs HTTP requests with structured logging.
//
// Example usage:
//
//	mux := http.NewServeMux()
//	loggedMux := RequestLogger(logger, mux)
//	http.ListenAndServe(":8080", loggedMux)
//
// Logs include:
//   - Request ID (from X-Request-ID header or generated)
//   - HTTP method and path
//   - Response status code
//   - Response size in bytes
//   - Duration in milliseconds
//   - Remote address
func RequestLogger(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Extract or generate request ID
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		// Store request ID in context
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		// Set request ID in response header
		w.Header().Set("X-Request-ID", requestID)

		// Wrap response writer to capture status code and size
		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK, // Default
		}

		// Call next handler
		next.ServeHTTP(wrapped, r)

		// Calculate duration
		duration := time.Since(start)

		// Log request
		logRequest(log, requestID, r, wrapped.statusCode, wrapped.bytesWritten, duration)
	})
}

// WithRequestID adds a request ID to the context.
// Useful for manually propagating request IDs.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromCtx retrieves the request ID from the context.
// Returns empty string if not found.
func RequestIDFromCtx(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// generateRequestID creates a new UUID-based request ID.
// Format: uuid v4 (e.g., "550e8400-e29b-41d4-a716-446655440000")
//
// Alternative implementations:
//   - Timestamp + counter: "20240115-123456-0001"
//   - Base64(timestamp + random): "MTYxMDQ4NzY0MA=="
func generateRequestID() string {
	return uuid.New().String()
}

// logRequest writes a structured log entry, leveled by status code.
func logRequest(log *zap.Logger, requestID string, r *http.Request, statusCode int, bytesWritten int, duration time.Duration) {
	fields := []zap.Field{
		zap.String("request_id", requestID),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("query", r.URL.RawQuery),
		zap.Int("status", statusCode),
		zap.Int64("duration_ms", duration.Milliseconds()),
		zap.Int("bytes", bytesWritten),
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("user_agent", r.UserAgent()),
	}

	switch {
	case statusCode >= 500:
		log.Error("admin request", fields...)
	case statusCode >= 400:
		log.Warn("admin request", fields...)
	default:
		log.Info("admin request", fields...)
	}
}

// responseWriter wraps http.ResponseWriter to capture status code and bytes written.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

// WriteHeader captures the status code.
func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Write captures the number of bytes written.
func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// Flush implements http.Flusher interface.
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// LogWithRequestID logs a message with the request ID from context.
// Useful for application-level logging that should include correlation IDs.
func LogWithRequestID(ctx context.Context, log *zap.Logger, message string, fields map[string]any) {
	requestID := RequestIDFromCtx(ctx)

	zapFields := make([]zap.Field, 0, len(fields)+1)
	zapFields = append(zapFields, zap.String("request_id", requestID))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}

	log.Info(message, zapFields...)
}