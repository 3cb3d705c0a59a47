package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds request-scoped logging fields for one login attempt.
type LogContext struct {
	TraceID   string
	SpanID    string
	RequestID string
	ClientIP  string
	Namespace string
	Username  string
	StartTime time.Time
}

// WithContext returns a new context carrying lc
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from ctx, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a LogContext for a request from clientIP.
func NewLogContext(requestID, clientIP string) *LogContext {
	return &LogContext{
		RequestID: requestID,
		ClientIP:  clientIP,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// WithUser returns a copy with the principal identity set
func (lc *LogContext) WithUser(namespace, username string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.Namespace = namespace
		c.Username = username
	}
	return c
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.TraceID = traceID
		c.SpanID = spanID
	}
	return c
}

// DurationMs returns the time since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return Duration(lc.StartTime)
}
