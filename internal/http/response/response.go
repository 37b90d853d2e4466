package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Body is the uniform shape of every JSON response. Exactly one of Data or
// Error is set; Meta carries the correlation fields clients echo back in
// support reports.
type Body struct {
	Success bool     `json:"success"`
	Data    any      `json:"data,omitempty"`
	Error   *Problem `json:"error,omitempty"`
	Meta    Meta     `json:"meta"`
}

// Problem describes a failed request. Code is a stable machine-readable tag;
// Message is for humans and says nothing the status code does not already
// reveal.
type Problem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type Meta struct {
	RequestID string    `json:"request_id"`
	ServedAt  time.Time `json:"served_at"`
}

func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	write(w, r, status, Body{Success: true, Data: data})
}

func Error(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	write(w, r, status, Body{Success: false, Error: &Problem{Code: code, Message: message, Details: details}})
}

func write(w http.ResponseWriter, r *http.Request, status int, body Body) {
	body.Meta = Meta{
		RequestID: chimiddleware.GetReqID(r.Context()),
		ServedAt:  time.Now().UTC(),
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(r.Context(), "encode response body", "error", err)
	}
}
