// Package traceid propagates a request's X-Trace-ID across HTTP handlers
// and into log lines via context.Context, rather than the process-global
// ContextVar the original service used. Context keeps the value scoped to
// the single request it belongs to, which matters once a coordinator
// forwards a request to a shard node on the same goroutine pool.
package traceid

import (
	"context"
	"log"
	"net/http"

	"github.com/google/uuid"
)

type contextKey struct{}

var key = contextKey{}

// Header is the HTTP header trace ids travel on, both inbound and
// outbound.
const Header = "X-Trace-ID"

// FromContext returns the trace id carried by ctx, or "N/A" if none was
// ever attached. "N/A" mirrors the original service's fallback value so log
// lines stay grep-compatible across the two implementations.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(key).(string); ok && id != "" {
		return id
	}
	return "N/A"
}

// WithTraceID returns a copy of ctx carrying id.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, key, id)
}

// Middleware adopts the inbound X-Trace-ID header, or mints a new uuid if
// the caller didn't send one, attaches it to the request context, and
// echoes it back on the response so a caller that didn't set one can still
// correlate logs after the fact.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(WithTraceID(r.Context(), id)))
	})
}

// Logf writes a log line tagged with the trace id carried by ctx, matching
// the "[TraceID: ...]" tag format the original logger's formatter produced.
func Logf(ctx context.Context, format string, args ...any) {
	log.Printf("[TraceID: %s] "+format, append([]any{FromContext(ctx)}, args...)...)
}
