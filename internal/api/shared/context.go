package shared

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ContextKey is the type of request context keys set by the API layer.
type ContextKey string

const (
	// UserIDContextKey holds the authenticated user's uuid.UUID.
	UserIDContextKey ContextKey = "userID"

	// EmailContextKey holds the authenticated user's email.
	EmailContextKey ContextKey = "email"

	// TraceIDKey holds the request's trace ID.
	TraceIDKey ContextKey = "traceID"

	// TraceIDLength is the number of random bytes in a trace ID.
	TraceIDLength = 16
)

// SetTraceID returns a copy of ctx carrying a fresh trace ID.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, generateTraceID())
}

// GetTraceID returns the trace ID in ctx, or "".
func GetTraceID(ctx context.Context) string {
	traceID, _ := ctx.Value(TraceIDKey).(string)
	return traceID
}

// WithUser returns a copy of ctx carrying the authenticated user.
func WithUser(ctx context.Context, userID uuid.UUID, email string) context.Context {
	ctx = context.WithValue(ctx, UserIDContextKey, userID)
	return context.WithValue(ctx, EmailContextKey, email)
}

// UserIDFromContext returns the authenticated user's ID, if present.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, false
	}
	return userID, true
}

// generateTraceID returns 32 hex characters. When crypto/rand fails the ID
// is built from the clock, which is unique enough for log correlation.
func generateTraceID() string {
	b := make([]byte, TraceIDLength)
	if _, err := rand.Read(b); err != nil {
		slog.Error("failed to generate random trace ID, using time-based fallback", "error", err)
		now := time.Now()
		binary.BigEndian.PutUint64(b[:8], uint64(now.UnixNano()))
		binary.BigEndian.PutUint64(b[8:], uint64(now.Unix())^uint64(now.Nanosecond()))
	}
	return hex.EncodeToString(b)
}
