package observability

import (
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Audit emits one record per security-relevant action. All records share the
// "audit" message so the stream can be filtered as a whole; the action and
// its subject ride along as attributes.
func Audit(r *http.Request, action string, attrs ...any) {
	fields := append([]any{
		"action", action,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", chimiddleware.GetReqID(r.Context()),
		"remote", r.RemoteAddr,
	}, attrs...)
	slog.InfoContext(r.Context(), "audit", fields...)
}
